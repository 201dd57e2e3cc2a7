package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"alpha_sim/internal/calendar"
	calalpaca "alpha_sim/internal/calendar/alpaca"
	"alpha_sim/internal/clock"
	"alpha_sim/internal/config"
	"alpha_sim/internal/factors"
	"alpha_sim/internal/logger"
	"alpha_sim/internal/models"
	"alpha_sim/internal/storage"

	"go.uber.org/zap"
)

// alpha_sim inspects the factor chain for one instrument: the retained rows,
// the price factor applicable on a date, and the corporate actions the chain
// implies.
func main() {
	symbol := flag.String("symbol", "", "ticker to inspect (required)")
	secType := flag.String("type", string(models.SecurityTypeEquity), "security type (equity, option, future, crypto)")
	dateStr := flag.String("date", "", "lookup date as YYYYMMDD (default: today)")
	mode := flag.String("mode", "adjusted", "normalization mode: raw, adjusted, split, total")
	flag.Parse()

	if *symbol == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log := logger.Setup(cfg.LogFile, cfg.MaxLogSizeMB, cfg.MaxLogBackups)
	defer log.Sync()

	date := time.Now().UTC()
	if *dateStr != "" {
		date, err = time.Parse("20060102", *dateStr)
		if err != nil {
			log.Fatal("invalid -date, want YYYYMMDD", zap.String("date", *dateStr))
		}
	}

	store := storage.NewStore(cfg.DataDir)
	provider := factors.NewProvider(store, models.IdentityResolver{}, clock.RealClock{}, log, cfg.UseArchives)
	provider.Start(cfg.CacheInvalidationPeriod)
	defer provider.Stop()

	sym := models.Symbol{
		Ticker:       *symbol,
		SecurityType: models.SecurityType(*secType),
		Market:       cfg.Market,
	}
	chain, err := provider.Get(sym)
	if err != nil {
		log.Fatal("loading factor chain", zap.String("symbol", sym.String()), zap.Error(err))
	}

	factor := chain.PriceFactor(date, parseMode(*mode))
	fmt.Printf("%s: %d factor rows, price factor on %s (%s) = %s\n",
		chain.Permtick, chain.Count(), date.Format("2006-01-02"), *mode, factor)
	if chain.MinimumDate != nil {
		fmt.Printf("minimum tradable date: %s\n", chain.MinimumDate.Format("2006-01-02"))
	}
	for _, line := range chain.FileFormat() {
		fmt.Println(line)
	}

	printImpliedActions(chain, sym, buildCalendar(cfg, chain, log))
}

func parseMode(mode string) factors.NormalizationMode {
	switch mode {
	case "raw":
		return factors.NormalizationRaw
	case "split":
		return factors.NormalizationSplitAdjusted
	case "total":
		return factors.NormalizationTotalReturn
	}
	return factors.NormalizationAdjusted
}

func buildCalendar(cfg *config.Config, chain *factors.Chain, log *zap.Logger) calendar.ExchangeCalendar {
	if cfg.UseAlpacaCalendar && !chain.IsEmpty() {
		hours, err := calalpaca.NewProvider().Hours(chain.Earliest().Date, chain.Latest().Date)
		if err == nil {
			return hours
		}
		log.Warn("alpaca calendar unavailable, using static hours", zap.Error(err))
	}
	return calendar.NewUSEquityHours()
}

// printImpliedActions derives the dividend or split behind each adjacent pair
// of factor rows.
func printImpliedActions(chain *factors.Chain, sym models.Symbol, cal calendar.ExchangeCalendar) {
	rows := chain.Rows()
	for i := 0; i+1 < len(rows); i++ {
		row, next := rows[i], rows[i+1]
		if !row.SplitFactor().Equal(next.SplitFactor()) {
			if split, err := row.Split(next, sym, cal); err == nil {
				fmt.Printf("%s  %s\n", split.Time.Format("2006-01-02"), split)
			}
		}
		if !row.PriceFactor().Equal(next.PriceFactor()) {
			if div, err := row.Dividend(next, sym, cal, 2); err == nil && !div.Distribution.IsZero() {
				fmt.Printf("%s  %s\n", div.Time.Format("2006-01-02"), div)
			}
		}
	}
}
