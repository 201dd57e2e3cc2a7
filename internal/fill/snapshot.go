// Package fill decides, bar by bar, whether and at what price a pending
// order would have executed against the market.
package fill

import (
	"errors"
	"time"

	"alpha_sim/internal/models"

	"github.com/shopspring/decimal"
)

// ErrNoPriceSource means no subscribed data type yielded a usable price.
// This is a configuration error and is never silently absorbed: filling
// without a real price would corrupt simulated P&L.
var ErrNoPriceSource = errors.New("fill: no subscribed data type provides a usable price")

// Snapshot is the read-only view of a security's current market state,
// assembled per call from whichever granularities are subscribed.
type Snapshot struct {
	Symbol     models.Symbol
	EndTimeUtc time.Time

	TradeBar  *models.Bar
	QuoteBar  *models.QuoteBar
	TradeTick *models.Tick
	QuoteTick *models.Tick
}

// Prices is the per-direction price view a fill branch works with. With tick
// data all five prices collapse to the tick price.
type Prices struct {
	EndTime time.Time
	Current decimal.Decimal
	Open    decimal.Decimal
	High    decimal.Decimal
	Low     decimal.Decimal
	Close   decimal.Decimal
}

func flatPrices(endTime time.Time, price decimal.Decimal) Prices {
	return Prices{EndTime: endTime, Current: price, Open: price, High: price, Low: price, Close: price}
}

func barPrices(endTime time.Time, b *models.Bar) Prices {
	return Prices{EndTime: endTime, Current: b.Close, Open: b.Open, High: b.High, Low: b.Low, Close: b.Close}
}

func subscribedTo(types []models.DataType, t models.DataType) bool {
	for _, s := range types {
		if s == t {
			return true
		}
	}
	return false
}

// Prices selects the security's prices by granularity preference: ticks, then
// quote bars, then trade bars. Within ticks an actual nonzero bid/ask wins
// over the last trade. Sells read the bid side, buys the ask side, holds the
// plain last/close.
func (s *Snapshot) Prices(direction models.Direction, subscribed []models.DataType) (Prices, error) {
	if subscribedTo(subscribed, models.DataTypeTick) {
		if p, ok := s.tickPrices(direction); ok {
			return p, nil
		}
	}
	if subscribedTo(subscribed, models.DataTypeQuoteBar) && s.QuoteBar != nil {
		if p, ok := s.quoteBarPrices(direction); ok {
			return p, nil
		}
	}
	if subscribedTo(subscribed, models.DataTypeTradeBar) && s.TradeBar != nil {
		return barPrices(s.TradeBar.EndTime(), s.TradeBar), nil
	}
	return Prices{}, ErrNoPriceSource
}

func (s *Snapshot) tickPrices(direction models.Direction) (Prices, bool) {
	if q := s.QuoteTick; q != nil {
		switch direction {
		case models.DirectionSell:
			if q.BidPrice.IsPositive() {
				return flatPrices(q.Time, q.BidPrice), true
			}
		case models.DirectionBuy:
			if q.AskPrice.IsPositive() {
				return flatPrices(q.Time, q.AskPrice), true
			}
		}
	}
	if t := s.TradeTick; t != nil && t.Price.IsPositive() {
		return flatPrices(t.Time, t.Price), true
	}
	return Prices{}, false
}

func (s *Snapshot) quoteBarPrices(direction models.Direction) (Prices, bool) {
	q := s.QuoteBar
	var bar *models.Bar
	switch direction {
	case models.DirectionBuy:
		bar = q.Ask
	case models.DirectionSell:
		bar = q.Bid
	default:
		bar = midBar(q)
	}
	if bar == nil {
		return Prices{}, false
	}
	return barPrices(q.EndTime(), bar), true
}

// midBar synthesizes a mid-quote bar, or returns whichever side exists.
func midBar(q *models.QuoteBar) *models.Bar {
	switch {
	case q.Bid != nil && q.Ask != nil:
		two := decimal.NewFromInt(2)
		return &models.Bar{
			Open:  q.Bid.Open.Add(q.Ask.Open).Div(two),
			High:  q.Bid.High.Add(q.Ask.High).Div(two),
			Low:   q.Bid.Low.Add(q.Ask.Low).Div(two),
			Close: q.Bid.Close.Add(q.Ask.Close).Div(two),
		}
	case q.Bid != nil:
		return q.Bid
	default:
		return q.Ask
	}
}

// TradeHighLow returns the trade-side extremes, used by touch triggers that
// must only react to actual prints, never to quotes.
func (s *Snapshot) TradeHighLow(subscribed []models.DataType) (high, low decimal.Decimal, ok bool) {
	if subscribedTo(subscribed, models.DataTypeTick) {
		if t := s.TradeTick; t != nil && t.Price.IsPositive() {
			return t.Price, t.Price, true
		}
	}
	if subscribedTo(subscribed, models.DataTypeTradeBar) && s.TradeBar != nil {
		return s.TradeBar.High, s.TradeBar.Low, true
	}
	return decimal.Zero, decimal.Zero, false
}

// BestBidAsk returns the current quote, from ticks first, then quote bars.
func (s *Snapshot) BestBidAsk(subscribed []models.DataType) (bid, ask decimal.Decimal, ok bool) {
	if subscribedTo(subscribed, models.DataTypeTick) {
		if q := s.QuoteTick; q != nil && q.BidPrice.IsPositive() && q.AskPrice.IsPositive() {
			return q.BidPrice, q.AskPrice, true
		}
	}
	if subscribedTo(subscribed, models.DataTypeQuoteBar) && s.QuoteBar != nil {
		q := s.QuoteBar
		if q.Bid != nil && q.Ask != nil {
			return q.Bid.Close, q.Ask.Close, true
		}
	}
	return decimal.Zero, decimal.Zero, false
}
