package fill

import (
	"errors"
	"fmt"
	"time"

	"alpha_sim/internal/calendar"
	"alpha_sim/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ErrExchangeNeverCloses rejects session-relative orders (MOO/MOC/fixed
// price) on venues with no session boundaries: "next open/close" is
// undefined there, so deferring the fill would wait forever.
var ErrExchangeNeverCloses = errors.New("fill: session-relative order on an always-open exchange")

// Status of a fill evaluation.
type Status int

const (
	// StatusNone: no fill this call; the order stays pending.
	StatusNone Status = iota
	// StatusFilled: the order executed at FillPrice.
	StatusFilled
)

// Result is produced fresh on every Fill call and never mutated afterward.
type Result struct {
	Status       Status
	FillPrice    decimal.Decimal
	FillQuantity decimal.Decimal
	Message      string
	TimestampUtc time.Time
}

// Parameters tune the engine per backtest.
type Parameters struct {
	// StalePriceThreshold bounds how old market data may be before a market
	// fill gets a stale-price warning attached.
	StalePriceThreshold time.Duration
	// ExtendedMarketHours lets limit-family orders fill in pre/post-market
	// sessions. Market, stop-market and session-relative orders always
	// require regular hours.
	ExtendedMarketHours bool
}

// DefaultParameters matches one bar of daily data.
func DefaultParameters() Parameters {
	return Parameters{StalePriceThreshold: 24 * time.Hour}
}

type fillFunc func(e *Engine, order *models.Order, snap *Snapshot, subscribed []models.DataType) (Result, error)

// Engine is the per-order-type fill decision function. Dispatch is a plain
// table keyed by the order-type tag; custom behavior is injected as values
// (slippage model, parameters), not subclasses.
//
// The only side effect beyond the returned Result is flipping an order's
// sticky trigger flags (StopTriggered, TriggerTouched) from false to true.
type Engine struct {
	calendar calendar.ExchangeCalendar
	slippage SlippageModel
	params   Parameters
	log      *zap.Logger
	table    map[models.OrderType]fillFunc
}

func NewEngine(cal calendar.ExchangeCalendar, slippage SlippageModel, params Parameters, log *zap.Logger) *Engine {
	if slippage == nil {
		slippage = ZeroSlippage()
	}
	if log == nil {
		log = zap.NewNop()
	}
	e := &Engine{calendar: cal, slippage: slippage, params: params, log: log}
	e.table = map[models.OrderType]fillFunc{
		models.OrderTypeMarket:         (*Engine).fillMarket,
		models.OrderTypeLimit:          (*Engine).fillLimit,
		models.OrderTypeStopMarket:     (*Engine).fillStopMarket,
		models.OrderTypeStopLimit:      (*Engine).fillStopLimit,
		models.OrderTypeLimitIfTouched: (*Engine).fillLimitIfTouched,
		models.OrderTypeMarketOnOpen:   (*Engine).fillMarketOnOpen,
		models.OrderTypeMarketOnClose:  (*Engine).fillMarketOnClose,
		// Fixed-price orders currently settle exactly like market-on-close;
		// the tag stays separate because some venues publish a fixing price
		// that may diverge from the exchange close.
		models.OrderTypeFixedPrice: (*Engine).fillMarketOnClose,
	}
	return e
}

// Fill evaluates one open order against the current snapshot. A canceled
// order is always unfilled; a closed exchange (for the order's allowed
// session) is a silent no-fill, not an error.
func (e *Engine) Fill(order *models.Order, snap *Snapshot, subscribed []models.DataType) (Result, error) {
	unfilled := Result{Status: StatusNone, TimestampUtc: snap.EndTimeUtc}

	if order.Status == models.OrderStatusCanceled {
		return unfilled, nil
	}
	fn, ok := e.table[order.Type]
	if !ok {
		return unfilled, fmt.Errorf("fill: unsupported order type %s", order.Type)
	}
	if gateOnSession(order.Type) {
		extended := e.params.ExtendedMarketHours && isLimitFamily(order.Type)
		if !e.calendar.IsOpen(snap.EndTimeUtc, extended) {
			return unfilled, nil
		}
	}
	return fn(e, order, snap, subscribed)
}

// gateOnSession: market-on-close (and fixed-price) fills evaluate at or
// after the closing bell, when the exchange already reads as closed; gating
// them on an open session would deadlock them forever.
func gateOnSession(t models.OrderType) bool {
	return t != models.OrderTypeMarketOnClose && t != models.OrderTypeFixedPrice
}

func isLimitFamily(t models.OrderType) bool {
	switch t {
	case models.OrderTypeLimit, models.OrderTypeStopLimit, models.OrderTypeLimitIfTouched:
		return true
	}
	return false
}

// adjustForSlippage worsens the price for the trader.
func (e *Engine) adjustForSlippage(price decimal.Decimal, order *models.Order, snap *Snapshot) decimal.Decimal {
	slip := e.slippage.Slippage(snap, order)
	switch order.Direction {
	case models.DirectionBuy:
		return price.Add(slip)
	case models.DirectionSell:
		return price.Sub(slip)
	}
	return price
}

// stale reports data that predates the order: information that arrived
// before the order existed can never fill it.
func stale(prices Prices, order *models.Order) bool {
	return !prices.EndTime.After(order.SubmittedTimeUtc)
}

func (e *Engine) fillMarket(order *models.Order, snap *Snapshot, subscribed []models.DataType) (Result, error) {
	prices, err := snap.Prices(order.Direction, subscribed)
	if err != nil {
		return Result{Status: StatusNone, TimestampUtc: snap.EndTimeUtc}, err
	}

	result := Result{
		Status:       StatusFilled,
		FillPrice:    e.adjustForSlippage(prices.Current, order, snap),
		FillQuantity: order.Quantity,
		TimestampUtc: snap.EndTimeUtc,
	}
	// Market orders fill even on old data, but a fill beyond the staleness
	// threshold is flagged rather than silently accepted.
	if prices.EndTime.Add(e.params.StalePriceThreshold).Before(order.SubmittedTimeUtc) {
		result.Message = fmt.Sprintf("warning: market fill at stale price (%s)",
			prices.EndTime.UTC().Format(time.RFC3339))
		e.log.Warn("market fill at stale price",
			zap.String("order", order.ID),
			zap.Time("data_end", prices.EndTime),
			zap.Time("order_time", order.SubmittedTimeUtc))
	}
	return result, nil
}

func (e *Engine) fillLimit(order *models.Order, snap *Snapshot, subscribed []models.DataType) (Result, error) {
	unfilled := Result{Status: StatusNone, TimestampUtc: snap.EndTimeUtc}
	prices, err := snap.Prices(order.Direction, subscribed)
	if err != nil {
		return unfilled, err
	}
	if stale(prices, order) {
		return unfilled, nil
	}

	limit := order.LimitPrice
	switch order.Direction {
	case models.DirectionBuy:
		if prices.Low.LessThan(limit) {
			// Assume a fluid market: the intrabar ordering of high and low
			// is unknowable, so take the worse of high vs limit.
			return e.filledAt(decimal.Min(prices.High, limit), order, snap), nil
		}
	case models.DirectionSell:
		if prices.High.GreaterThan(limit) {
			return e.filledAt(decimal.Max(prices.Low, limit), order, snap), nil
		}
	}
	return unfilled, nil
}

func (e *Engine) fillStopMarket(order *models.Order, snap *Snapshot, subscribed []models.DataType) (Result, error) {
	unfilled := Result{Status: StatusNone, TimestampUtc: snap.EndTimeUtc}
	prices, err := snap.Prices(order.Direction, subscribed)
	if err != nil {
		return unfilled, err
	}
	if stale(prices, order) {
		return unfilled, nil
	}

	stop := order.StopPrice
	switch order.Direction {
	case models.DirectionSell:
		if prices.Low.LessThan(stop) {
			price := e.adjustForSlippage(decimal.Min(stop, prices.Current), order, snap)
			return e.filledAt(price, order, snap), nil
		}
	case models.DirectionBuy:
		if prices.High.GreaterThan(stop) {
			price := e.adjustForSlippage(decimal.Max(stop, prices.Current), order, snap)
			return e.filledAt(price, order, snap), nil
		}
	}
	return unfilled, nil
}

func (e *Engine) fillStopLimit(order *models.Order, snap *Snapshot, subscribed []models.DataType) (Result, error) {
	unfilled := Result{Status: StatusNone, TimestampUtc: snap.EndTimeUtc}
	prices, err := snap.Prices(order.Direction, subscribed)
	if err != nil {
		return unfilled, err
	}
	if stale(prices, order) {
		return unfilled, nil
	}

	switch order.Direction {
	case models.DirectionBuy:
		if prices.High.GreaterThan(order.StopPrice) {
			order.StopTriggered = true
		}
		if order.StopTriggered && prices.Current.LessThan(order.LimitPrice) {
			return e.filledAt(decimal.Min(prices.High, order.LimitPrice), order, snap), nil
		}
	case models.DirectionSell:
		if prices.Low.LessThan(order.StopPrice) {
			order.StopTriggered = true
		}
		if order.StopTriggered && prices.Current.GreaterThan(order.LimitPrice) {
			return e.filledAt(decimal.Max(prices.Low, order.LimitPrice), order, snap), nil
		}
	}
	return unfilled, nil
}

func (e *Engine) fillLimitIfTouched(order *models.Order, snap *Snapshot, subscribed []models.DataType) (Result, error) {
	unfilled := Result{Status: StatusNone, TimestampUtc: snap.EndTimeUtc}
	prices, err := snap.Prices(order.Direction, subscribed)
	if err != nil {
		return unfilled, err
	}
	if stale(prices, order) {
		return unfilled, nil
	}

	// The touch must come from an actual print, never a quote.
	if tradeHigh, tradeLow, ok := snap.TradeHighLow(subscribed); ok {
		switch order.Direction {
		case models.DirectionSell:
			if tradeHigh.GreaterThanOrEqual(order.TriggerPrice) {
				order.TriggerTouched = true
			}
		case models.DirectionBuy:
			if tradeLow.LessThanOrEqual(order.TriggerPrice) {
				order.TriggerTouched = true
			}
		}
	}
	if !order.TriggerTouched {
		return unfilled, nil
	}

	bid, ask, ok := snap.BestBidAsk(subscribed)
	if !ok {
		bid, ask = prices.Current, prices.Current
	}
	switch order.Direction {
	case models.DirectionSell:
		if ask.GreaterThanOrEqual(order.LimitPrice) {
			return e.filledAt(order.LimitPrice, order, snap), nil
		}
	case models.DirectionBuy:
		if bid.LessThanOrEqual(order.LimitPrice) {
			return e.filledAt(order.LimitPrice, order, snap), nil
		}
	}
	return unfilled, nil
}

func (e *Engine) fillMarketOnOpen(order *models.Order, snap *Snapshot, subscribed []models.DataType) (Result, error) {
	unfilled := Result{Status: StatusNone, TimestampUtc: snap.EndTimeUtc}
	if e.calendar.IsAlwaysOpen() {
		return unfilled, fmt.Errorf("%w: %s order for %s", ErrExchangeNeverCloses, order.Type, order.Symbol)
	}
	prices, err := snap.Prices(order.Direction, subscribed)
	if err != nil {
		return unfilled, err
	}

	// Never fill against the session the order was submitted in: wait for a
	// bar from on or after the next open.
	nextOpen := e.calendar.NextMarketOpen(order.SubmittedTimeUtc)
	if !prices.EndTime.After(nextOpen) {
		return unfilled, nil
	}
	price := e.adjustForSlippage(prices.Open, order, snap)
	return e.filledAt(price, order, snap), nil
}

func (e *Engine) fillMarketOnClose(order *models.Order, snap *Snapshot, subscribed []models.DataType) (Result, error) {
	unfilled := Result{Status: StatusNone, TimestampUtc: snap.EndTimeUtc}
	if e.calendar.IsAlwaysOpen() {
		return unfilled, fmt.Errorf("%w: %s order for %s", ErrExchangeNeverCloses, order.Type, order.Symbol)
	}
	prices, err := snap.Prices(order.Direction, subscribed)
	if err != nil {
		return unfilled, err
	}

	nextClose := e.calendar.NextMarketClose(order.SubmittedTimeUtc)
	if snap.EndTimeUtc.Before(nextClose) {
		return unfilled, nil
	}
	price := e.adjustForSlippage(prices.Close, order, snap)
	return e.filledAt(price, order, snap), nil
}

// filledAt builds a result at an already worst-cased price. Limit-family
// fills execute at their computed price with no further slippage.
func (e *Engine) filledAt(price decimal.Decimal, order *models.Order, snap *Snapshot) Result {
	return Result{
		Status:       StatusFilled,
		FillPrice:    price,
		FillQuantity: order.Quantity,
		TimestampUtc: snap.EndTimeUtc,
	}
}
