package calendar

import "time"

// Hours is a static ExchangeCalendar: one regular session per weekday with
// optional pre/post-market windows, minus a holiday set. Timestamps are
// interpreted in the exchange's location.
type Hours struct {
	Location        *time.Location
	MarketOpen      time.Duration // offset from local midnight
	MarketClose     time.Duration
	PreMarketOpen   time.Duration
	PostMarketClose time.Duration
	AlwaysOpen      bool
	holidays        map[string]struct{} // "2006-01-02" in Location
}

var _ ExchangeCalendar = (*Hours)(nil)

// NewUSEquityHours models the NYSE/Nasdaq session: regular 09:30-16:00 ET,
// pre-market from 04:00, post-market until 20:00.
func NewUSEquityHours(holidays ...time.Time) *Hours {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		loc = time.FixedZone("EST", -5*3600)
	}
	h := &Hours{
		Location:        loc,
		MarketOpen:      9*time.Hour + 30*time.Minute,
		MarketClose:     16 * time.Hour,
		PreMarketOpen:   4 * time.Hour,
		PostMarketClose: 20 * time.Hour,
		holidays:        make(map[string]struct{}),
	}
	for _, d := range holidays {
		h.holidays[d.In(loc).Format("2006-01-02")] = struct{}{}
	}
	return h
}

// NewAlwaysOpenHours models a venue that never closes (crypto).
func NewAlwaysOpenHours() *Hours {
	return &Hours{Location: time.UTC, AlwaysOpen: true}
}

func (h *Hours) tradesOn(local time.Time) bool {
	if h.AlwaysOpen {
		return true
	}
	if wd := local.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return false
	}
	_, holiday := h.holidays[local.Format("2006-01-02")]
	return !holiday
}

func (h *Hours) midnight(local time.Time) time.Time {
	y, m, d := local.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, h.Location)
}

// dateOf reads t's calendar date in t's own location. Day-granularity inputs
// (factor row dates, ex-dates) are midnight UTC; converting those instants to
// the exchange zone would land on the previous day.
func (h *Hours) dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, h.Location)
}

func (h *Hours) IsOpen(t time.Time, extendedHours bool) bool {
	if h.AlwaysOpen {
		return true
	}
	local := t.In(h.Location)
	if !h.tradesOn(local) {
		return false
	}
	offset := local.Sub(h.midnight(local))
	open, close := h.MarketOpen, h.MarketClose
	if extendedHours {
		open, close = h.PreMarketOpen, h.PostMarketClose
	}
	return offset >= open && offset < close
}

func (h *Hours) IsAlwaysOpen() bool { return h.AlwaysOpen }

func (h *Hours) PreviousTradingDay(t time.Time) time.Time {
	day := h.dateOf(t).AddDate(0, 0, -1)
	for !h.tradesOn(day) {
		day = day.AddDate(0, 0, -1)
	}
	return day
}

func (h *Hours) NextTradingDay(t time.Time) time.Time {
	day := h.dateOf(t).AddDate(0, 0, 1)
	for !h.tradesOn(day) {
		day = day.AddDate(0, 0, 1)
	}
	return day
}

func (h *Hours) NextMarketOpen(t time.Time) time.Time {
	if h.AlwaysOpen {
		return t
	}
	local := t.In(h.Location)
	day := h.midnight(local)
	for {
		if h.tradesOn(day) {
			open := day.Add(h.MarketOpen)
			if open.After(local) {
				return open
			}
		}
		day = day.AddDate(0, 0, 1)
	}
}

func (h *Hours) NextMarketClose(t time.Time) time.Time {
	if h.AlwaysOpen {
		return t
	}
	local := t.In(h.Location)
	day := h.midnight(local)
	for {
		if h.tradesOn(day) {
			close := day.Add(h.MarketClose)
			if !close.Before(local) {
				return close
			}
		}
		day = day.AddDate(0, 0, 1)
	}
}
