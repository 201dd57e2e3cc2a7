package calendar

import "time"

// ExchangeCalendar answers the session questions the factor chain and fill
// engine need: whether the exchange trades at an instant, and where the
// neighboring trading days and session boundaries are.
type ExchangeCalendar interface {
	// IsOpen reports whether the exchange trades at t. With extendedHours
	// the pre/post-market windows count as open.
	IsOpen(t time.Time, extendedHours bool) bool
	// IsAlwaysOpen reports a venue with no closes (e.g. crypto). Session
	// relative orders (MOO/MOC) are undefined on such venues.
	IsAlwaysOpen() bool
	// PreviousTradingDay returns the last trading date strictly before t's date.
	PreviousTradingDay(t time.Time) time.Time
	// NextTradingDay returns the first trading date strictly after t's date.
	NextTradingDay(t time.Time) time.Time
	// NextMarketOpen returns the first regular-session open strictly after t.
	NextMarketOpen(t time.Time) time.Time
	// NextMarketClose returns the first regular-session close at or after t.
	NextMarketClose(t time.Time) time.Time
}
