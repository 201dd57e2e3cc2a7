package factors

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// NormalizationMode selects which factor a price lookup returns.
type NormalizationMode int

const (
	// NormalizationRaw leaves prices untouched.
	NormalizationRaw NormalizationMode = iota
	// NormalizationAdjusted applies the combined price*split scale.
	NormalizationAdjusted
	// NormalizationSplitAdjusted applies only the split factor.
	NormalizationSplitAdjusted
	// NormalizationTotalReturn reinvests distributions; same combined scale
	// as Adjusted at the factor-chain level.
	NormalizationTotalReturn
)

// Chain is the ordered factor history for one permtick. Rows are ascending by
// date with no duplicates. MinimumDate, when set, is one day before the
// earliest retained row: rows dropped at parse time (extreme split ratios
// losing precision) make prices before that date unreliable.
type Chain struct {
	Permtick    string
	MinimumDate *time.Time

	rows []*Row
}

// NewChain sorts rows ascending by date, drops duplicate dates, and derives
// the minimum tradable date.
func NewChain(permtick string, rows []*Row) *Chain {
	sort.Slice(rows, func(i, j int) bool { return rows[i].Date.Before(rows[j].Date) })
	deduped := rows[:0]
	for i, r := range rows {
		if i > 0 && !dayBefore(deduped[len(deduped)-1].Date, r.Date) {
			continue
		}
		deduped = append(deduped, r)
	}
	c := &Chain{Permtick: permtick, rows: deduped}
	if len(deduped) > 0 {
		min := deduped[0].Date.AddDate(0, 0, -1)
		c.MinimumDate = &min
	}
	return c
}

// NewEmptyChain is the identity chain used when no factor data exists: every
// lookup returns 1.
func NewEmptyChain(permtick string) *Chain {
	return &Chain{Permtick: permtick}
}

// Parse builds a chain from factor-file CSV lines:
//
//	YYYYMMDD,priceFactor,splitFactor[,referencePrice[,source]]
//
// Lines containing an infinity marker or exponential notation are artifacts
// of extreme historical split ratios; keeping them would corrupt the chain
// with wrong precision, so they are dropped, which in turn advances the
// chain's minimum date instead of silently producing wrong prices. Rows whose
// combined scale is not strictly positive are dropped for the same reason.
func Parse(permtick string, lines []string) *Chain {
	var rows []*Row
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.Contains(line, "inf") || strings.Contains(line, "e+") {
			continue
		}
		fields := strings.Split(line, ",")
		if len(fields) < 3 {
			continue
		}
		date, err := time.Parse("20060102", strings.TrimSpace(fields[0]))
		if err != nil {
			continue
		}
		priceFactor, err := decimal.NewFromString(strings.TrimSpace(fields[1]))
		if err != nil {
			continue
		}
		splitFactor, err := decimal.NewFromString(strings.TrimSpace(fields[2]))
		if err != nil {
			continue
		}
		referencePrice := decimal.Zero
		if len(fields) > 3 && fields[3] != "" {
			if ref, err := decimal.NewFromString(strings.TrimSpace(fields[3])); err == nil {
				referencePrice = ref
			}
		}
		row := NewRow(date, priceFactor, splitFactor, referencePrice)
		if !row.PriceScaleFactor().IsPositive() {
			continue
		}
		if len(fields) > 4 {
			row.Source = strings.TrimSpace(fields[4])
		}
		rows = append(rows, row)
	}
	return NewChain(permtick, rows)
}

// Rows returns the rows in ascending date order. Callers must not mutate the
// slice.
func (c *Chain) Rows() []*Row { return c.rows }

func (c *Chain) Count() int { return len(c.rows) }

// IsEmpty reports the identity chain.
func (c *Chain) IsEmpty() bool { return len(c.rows) == 0 }

// Earliest returns the oldest row, or nil on an empty chain.
func (c *Chain) Earliest() *Row {
	if len(c.rows) == 0 {
		return nil
	}
	return c.rows[0]
}

// Latest returns the most recent row, or nil on an empty chain.
func (c *Chain) Latest() *Row {
	if len(c.rows) == 0 {
		return nil
	}
	return c.rows[len(c.rows)-1]
}

// row returns the applicable row for a date: the latest row whose date is not
// after searchDate, or nil before the earliest row.
func (c *Chain) row(searchDate time.Time) *Row {
	// first row strictly after searchDate
	idx := sort.Search(len(c.rows), func(i int) bool {
		return dayBefore(searchDate, c.rows[i].Date)
	})
	if idx == 0 {
		return nil
	}
	return c.rows[idx-1]
}

// PriceFactor returns the multiplier that adjusts a raw price dated
// searchDate under the given normalization mode. Deterministic and free of
// side effects; unknown modes behave as Raw.
func (c *Chain) PriceFactor(searchDate time.Time, mode NormalizationMode) decimal.Decimal {
	one := decimal.NewFromInt(1)
	if mode == NormalizationRaw {
		return one
	}
	row := c.row(searchDate)
	if row == nil {
		return one
	}
	switch mode {
	case NormalizationSplitAdjusted:
		return row.SplitFactor()
	case NormalizationAdjusted, NormalizationTotalReturn:
		return row.PriceScaleFactor()
	}
	return one
}

// FileFormat serializes every row in archive CSV layout, ascending by date.
func (c *Chain) FileFormat() []string {
	lines := make([]string, 0, len(c.rows))
	for _, r := range c.rows {
		lines = append(lines, r.FileFormat())
	}
	return lines
}
