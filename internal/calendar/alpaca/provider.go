// Package alpaca backs an ExchangeCalendar with the Alpaca trading API, so a
// live process uses the venue's real holiday schedule instead of a static one.
package alpaca

import (
	"fmt"
	"time"

	"alpha_sim/internal/calendar"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
)

// Provider fetches trading-calendar days from Alpaca. API keys are read from
// the environment (APCA_API_KEY_ID / APCA_API_SECRET_KEY), checked at config
// load time.
type Provider struct {
	tradeClient *alpaca.Client
}

func NewProvider() *Provider {
	return &Provider{
		tradeClient: alpaca.NewClient(alpaca.ClientOpts{}),
	}
}

// Hours builds a US-equity calendar whose holiday set is derived from the
// Alpaca trading calendar between start and end: any weekday Alpaca does not
// list as a session is a holiday.
func (p *Provider) Hours(start, end time.Time) (*calendar.Hours, error) {
	days, err := p.tradeClient.GetCalendar(alpaca.GetCalendarRequest{
		Start: start,
		End:   end,
	})
	if err != nil {
		return nil, fmt.Errorf("fetching alpaca calendar: %w", err)
	}

	sessions := make(map[string]struct{}, len(days))
	for _, d := range days {
		sessions[d.Date] = struct{}{}
	}

	// start/end are day-granularity; read their calendar dates as-is rather
	// than converting the instants to the exchange zone.
	var holidays []time.Time
	base := calendar.NewUSEquityHours()
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		y, m, d := day.Date()
		date := time.Date(y, m, d, 0, 0, 0, 0, base.Location)
		if wd := date.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}
		if _, ok := sessions[date.Format("2006-01-02")]; !ok {
			holidays = append(holidays, date)
		}
	}
	return calendar.NewUSEquityHours(holidays...), nil
}

// NextClose asks the venue clock directly, bypassing the static schedule.
func (p *Provider) NextClose() (time.Time, error) {
	c, err := p.tradeClient.GetClock()
	if err != nil {
		return time.Time{}, err
	}
	return c.NextClose, nil
}
