package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderType is the enumerated tag the fill engine dispatches on.
type OrderType int

const (
	OrderTypeMarket OrderType = iota
	OrderTypeLimit
	OrderTypeStopMarket
	OrderTypeStopLimit
	OrderTypeLimitIfTouched
	OrderTypeMarketOnOpen
	OrderTypeMarketOnClose
	// OrderTypeFixedPrice fills exactly like market-on-close today but is a
	// distinct tag: some venues settle at a published fixing price rather
	// than the exchange close, and the two may diverge later.
	OrderTypeFixedPrice
)

func (t OrderType) String() string {
	switch t {
	case OrderTypeMarket:
		return "market"
	case OrderTypeLimit:
		return "limit"
	case OrderTypeStopMarket:
		return "stop_market"
	case OrderTypeStopLimit:
		return "stop_limit"
	case OrderTypeLimitIfTouched:
		return "limit_if_touched"
	case OrderTypeMarketOnOpen:
		return "market_on_open"
	case OrderTypeMarketOnClose:
		return "market_on_close"
	case OrderTypeFixedPrice:
		return "fixed_price"
	}
	return "unknown"
}

// Direction of an order. Hold exists so a flat target can flow through the
// same price-selection code without picking a quote side.
type Direction int

const (
	DirectionBuy Direction = iota
	DirectionSell
	DirectionHold
)

func (d Direction) String() string {
	switch d {
	case DirectionBuy:
		return "buy"
	case DirectionSell:
		return "sell"
	}
	return "hold"
}

// OrderStatus mirrors the broker-style lifecycle states.
type OrderStatus string

const (
	OrderStatusNew             OrderStatus = "new"
	OrderStatusSubmitted       OrderStatus = "submitted"
	OrderStatusPartiallyFilled OrderStatus = "partially_filled"
	OrderStatusFilled          OrderStatus = "filled"
	OrderStatusCanceled        OrderStatus = "canceled"
	OrderStatusInvalid         OrderStatus = "invalid"
)

// Order is owned by the strategy layer; the fill engine only reads it and
// flips the two trigger flags.
//
// StopTriggered and TriggerTouched are sticky: they record that a stop or
// touch condition fired on some earlier bar, and once true they never reset.
// Keeping them on the order (instead of inside the engine) makes ownership
// and lifetime unambiguous when the same order is evaluated bar after bar.
type Order struct {
	ID               string          `json:"id"`
	Symbol           Symbol          `json:"symbol"`
	Type             OrderType       `json:"type"`
	Direction        Direction       `json:"direction"`
	Quantity         decimal.Decimal `json:"qty"`
	LimitPrice       decimal.Decimal `json:"limit_price,omitempty"`
	StopPrice        decimal.Decimal `json:"stop_price,omitempty"`
	TriggerPrice     decimal.Decimal `json:"trigger_price,omitempty"`
	Status           OrderStatus     `json:"status"`
	StopTriggered    bool            `json:"stop_triggered"`
	TriggerTouched   bool            `json:"trigger_touched"`
	SubmittedTimeUtc time.Time       `json:"submitted_at"`
}
