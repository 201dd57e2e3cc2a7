package config

import (
	"fmt"
	"log"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config carries every tunable of the simulation core. Values come from the
// environment (optionally seeded by a .env file); defaults suit a local
// backtest over daily data.
type Config struct {
	// DataDir is the root of the factor-file layout
	// (<securityType>/<market>/factor_files/...).
	DataDir string `env:"ALPHA_SIM_DATA_DIR" envDefault:"data"`
	Market  string `env:"ALPHA_SIM_MARKET" envDefault:"usa"`

	// UseArchives loads whole-market factor archives instead of flat
	// per-instrument files.
	UseArchives bool `env:"ALPHA_SIM_USE_ARCHIVES" envDefault:"false"`
	// CacheInvalidationPeriod is how often the provider forgets which
	// archives it already hydrated.
	CacheInvalidationPeriod time.Duration `env:"ALPHA_SIM_CACHE_INVALIDATION" envDefault:"24h"`

	// StalePriceThreshold flags market fills on data older than this.
	StalePriceThreshold time.Duration `env:"ALPHA_SIM_STALE_PRICE_THRESHOLD" envDefault:"24h"`
	// ExtendedMarketHours lets limit-family orders fill pre/post market.
	ExtendedMarketHours bool `env:"ALPHA_SIM_EXTENDED_HOURS" envDefault:"false"`
	// SlippageAmount is the constant per-fill slippage in price units.
	SlippageAmount float64 `env:"ALPHA_SIM_SLIPPAGE" envDefault:"0"`

	// UseAlpacaCalendar swaps the static US-equity calendar for one derived
	// from the Alpaca trading API (requires APCA_API_* credentials).
	UseAlpacaCalendar bool `env:"ALPHA_SIM_USE_ALPACA_CALENDAR" envDefault:"false"`

	LogFile       string `env:"ALPHA_SIM_LOG_FILE" envDefault:"alpha_sim.log"`
	MaxLogSizeMB  int64  `env:"ALPHA_SIM_MAX_LOG_SIZE_MB" envDefault:"10"`
	MaxLogBackups int    `env:"ALPHA_SIM_MAX_LOG_BACKUPS" envDefault:"3"`
}

// Load reads a .env file when present, then parses the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: No .env file found, using system environment variables")
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parsing environment config: %w", err)
	}
	return &cfg, nil
}
