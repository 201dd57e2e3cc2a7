package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DataType enumerates the market-data granularities a security can be
// subscribed to. The fill engine prefers the most granular type available.
type DataType int

const (
	DataTypeTradeBar DataType = iota
	DataTypeQuoteBar
	DataTypeTick
)

// TickType distinguishes trade prints from quote updates.
type TickType int

const (
	TickTypeTrade TickType = iota
	TickTypeQuote
)

// Tick is a single trade print or quote update.
type Tick struct {
	Symbol   Symbol
	Time     time.Time
	Type     TickType
	Price    decimal.Decimal // last trade price (trade ticks)
	BidPrice decimal.Decimal
	BidSize  decimal.Decimal
	AskPrice decimal.Decimal
	AskSize  decimal.Decimal
}

// EndTime of a tick is the tick time itself.
func (t *Tick) EndTime() time.Time { return t.Time }

// Bar represents a trade candlestick for a timeframe.
type Bar struct {
	Symbol Symbol
	Time   time.Time // bar start
	Period time.Duration
	Open   decimal.Decimal
	High   decimal.Decimal
	Low    decimal.Decimal
	Close  decimal.Decimal
	Volume int64
}

// EndTime is when the bar's information became known.
func (b *Bar) EndTime() time.Time { return b.Time.Add(b.Period) }

// QuoteBar aggregates bid and ask sides over a timeframe.
type QuoteBar struct {
	Symbol Symbol
	Time   time.Time
	Period time.Duration
	Bid    *Bar
	Ask    *Bar
}

// EndTime is when the bar's information became known.
func (q *QuoteBar) EndTime() time.Time { return q.Time.Add(q.Period) }

// Close is the mid close, or whichever side exists.
func (q *QuoteBar) Close() decimal.Decimal {
	switch {
	case q.Bid != nil && q.Ask != nil:
		return q.Bid.Close.Add(q.Ask.Close).Div(decimal.NewFromInt(2))
	case q.Bid != nil:
		return q.Bid.Close
	case q.Ask != nil:
		return q.Ask.Close
	}
	return decimal.Zero
}
