// Package factors reconstructs corporate-action-adjusted prices: it models
// factor rows and chains, the split/dividend algebra that builds them, and a
// caching provider that loads them from disk.
package factors

import (
	"errors"
	"fmt"
	"time"

	"alpha_sim/internal/calendar"
	"alpha_sim/internal/models"

	"github.com/shopspring/decimal"
)

var (
	// ErrZeroReferencePrice is returned when a dividend carries no reference
	// price; the adjustment ratio would divide by zero.
	ErrZeroReferencePrice = errors.New("factors: dividend reference price is zero")
	// ErrWarningSplit is returned when an unconfirmed split announcement is
	// applied to a chain.
	ErrWarningSplit = errors.New("factors: warning-type split cannot be applied")
	// ErrZeroFactor is returned when a dividend/split derivation would divide
	// by a zero factor on the neighboring row.
	ErrZeroFactor = errors.New("factors: neighboring row has zero factor")
)

// Row is one corporate-action adjustment point. The two factors are the only
// mutable fields; they change together through SetFactors so the derived
// price scale never goes stale.
type Row struct {
	Date           time.Time
	ReferencePrice decimal.Decimal
	Source         string

	priceFactor      decimal.Decimal
	splitFactor      decimal.Decimal
	priceScaleFactor decimal.Decimal
}

// NewRow builds a row and its derived price scale factor.
func NewRow(date time.Time, priceFactor, splitFactor, referencePrice decimal.Decimal) *Row {
	r := &Row{Date: date, ReferencePrice: referencePrice}
	r.SetFactors(priceFactor, splitFactor)
	return r
}

func (r *Row) PriceFactor() decimal.Decimal      { return r.priceFactor }
func (r *Row) SplitFactor() decimal.Decimal      { return r.splitFactor }
func (r *Row) PriceScaleFactor() decimal.Decimal { return r.priceScaleFactor }

// SetFactors replaces both factors and recomputes the derived scale.
func (r *Row) SetFactors(priceFactor, splitFactor decimal.Decimal) {
	r.priceFactor = priceFactor
	r.splitFactor = splitFactor
	r.priceScaleFactor = priceFactor.Mul(splitFactor)
}

// ApplyDividend produces the row preceding r in time after the given dividend
// went ex. Factors are built walking backward from the present, so r must be
// chronologically at or after the dividend's previous trading day.
func (r *Row) ApplyDividend(div models.Dividend, cal calendar.ExchangeCalendar) (*Row, error) {
	if div.ReferencePrice.IsZero() {
		return nil, ErrZeroReferencePrice
	}
	prevDay := cal.PreviousTradingDay(div.Time)
	if dayBefore(r.Date, prevDay) {
		return nil, fmt.Errorf("factors: dividend out of order: row date %s precedes previous trading day %s",
			r.Date.Format("2006-01-02"), prevDay.Format("2006-01-02"))
	}
	priceFactor := r.priceFactor.
		Mul(div.ReferencePrice.Sub(div.Distribution)).
		Div(div.ReferencePrice)
	row := NewRow(prevDay, priceFactor, r.splitFactor, div.ReferencePrice)
	row.Source = r.Source
	return row, nil
}

// ApplySplit produces the row preceding r in time after the given split
// executed. Warning-type splits announce a future action and must never
// reach a chain.
func (r *Row) ApplySplit(split models.Split, cal calendar.ExchangeCalendar) (*Row, error) {
	if split.Type == models.SplitTypeWarning {
		return nil, ErrWarningSplit
	}
	prevDay := cal.PreviousTradingDay(split.Time)
	if dayBefore(r.Date, prevDay) {
		return nil, fmt.Errorf("factors: split out of order: row date %s precedes previous trading day %s",
			r.Date.Format("2006-01-02"), prevDay.Format("2006-01-02"))
	}
	row := NewRow(prevDay, r.priceFactor, r.splitFactor.Mul(split.SplitFactor), split.ReferencePrice)
	row.Source = r.Source
	return row, nil
}

// Dividend derives the distribution implied by the price-factor step between
// r and the next row in time. Inverse of ApplyDividend up to rounding.
func (r *Row) Dividend(next *Row, symbol models.Symbol, cal calendar.ExchangeCalendar, decimalPlaces int32) (models.Dividend, error) {
	if next.priceFactor.IsZero() {
		return models.Dividend{}, fmt.Errorf("deriving dividend for %s: %w", symbol, ErrZeroFactor)
	}
	ratio := r.priceFactor.Div(next.priceFactor)
	distribution := r.ReferencePrice.Mul(decimal.NewFromInt(1).Sub(ratio)).Round(decimalPlaces)
	return models.Dividend{
		Symbol:         symbol,
		Time:           cal.NextTradingDay(r.Date),
		Distribution:   distribution,
		ReferencePrice: r.ReferencePrice,
	}, nil
}

// Split derives the split implied by the split-factor step between r and the
// next row in time. Inverse of ApplySplit.
func (r *Row) Split(next *Row, symbol models.Symbol, cal calendar.ExchangeCalendar) (models.Split, error) {
	if next.splitFactor.IsZero() {
		return models.Split{}, fmt.Errorf("deriving split for %s: %w", symbol, ErrZeroFactor)
	}
	return models.Split{
		Symbol:         symbol,
		Time:           cal.NextTradingDay(r.Date),
		Type:           models.SplitTypeSplitOccurred,
		SplitFactor:    r.splitFactor.Div(next.splitFactor),
		ReferencePrice: r.ReferencePrice,
	}, nil
}

// FileFormat serializes the row in the archive CSV layout. Field precision is
// fixed (7/8/4 places) so rewritten files stay byte-compatible with existing
// factor-file archives.
func (r *Row) FileFormat() string {
	line := fmt.Sprintf("%s,%s,%s,%s",
		r.Date.Format("20060102"),
		r.priceFactor.Round(7),
		r.splitFactor.Round(8),
		r.ReferencePrice.Round(4))
	if r.Source != "" {
		line += "," + r.Source
	}
	return line
}

// dayBefore reports whether a's calendar date precedes b's, each read in its
// own location.
func dayBefore(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	if ay != by {
		return ay < by
	}
	if am != bm {
		return am < bm
	}
	return ad < bd
}
