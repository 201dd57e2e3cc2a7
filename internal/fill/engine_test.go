package fill

import (
	"errors"
	"testing"
	"time"

	"alpha_sim/internal/calendar"
	"alpha_sim/internal/models"

	"github.com/shopspring/decimal"
)

// Tuesday 2024-06-11, regular session (EDT): open 13:30 UTC, close 20:00 UTC.
var (
	orderTime = time.Date(2024, 6, 11, 14, 0, 0, 0, time.UTC)
	barTime   = time.Date(2024, 6, 11, 15, 0, 0, 0, time.UTC)

	tradeBarTypes = []models.DataType{models.DataTypeTradeBar}
)

func d(f float64) decimal.Decimal { return decimal.NewFromFloat(f) }

func usEngine(params Parameters) *Engine {
	return NewEngine(calendar.NewUSEquityHours(), nil, params, nil)
}

func tradeSnapshot(endTime time.Time, open, high, low, close float64) *Snapshot {
	return &Snapshot{
		EndTimeUtc: endTime,
		TradeBar: &models.Bar{
			Time:   endTime.Add(-time.Minute),
			Period: time.Minute,
			Open:   d(open),
			High:   d(high),
			Low:    d(low),
			Close:  d(close),
		},
	}
}

func newOrder(orderType models.OrderType, direction models.Direction, qty float64) *models.Order {
	return &models.Order{
		ID:               "o1",
		Symbol:           models.Symbol{Ticker: "SPY", SecurityType: models.SecurityTypeEquity, Market: "usa"},
		Type:             orderType,
		Direction:        direction,
		Quantity:         d(qty),
		Status:           models.OrderStatusSubmitted,
		SubmittedTimeUtc: orderTime,
	}
}

func TestCanceledOrderNeverFills(t *testing.T) {
	e := usEngine(DefaultParameters())
	order := newOrder(models.OrderTypeMarket, models.DirectionBuy, 10)
	order.Status = models.OrderStatusCanceled

	result, err := e.Fill(order, tradeSnapshot(barTime, 100, 105, 95, 101), tradeBarTypes)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != StatusNone {
		t.Errorf("canceled order filled: %+v", result)
	}
	if !result.FillPrice.IsZero() {
		t.Errorf("canceled order got a fill price: %s", result.FillPrice)
	}
}

func TestMarketOrderFillsAtCurrentWithSlippage(t *testing.T) {
	e := NewEngine(calendar.NewUSEquityHours(), ConstantSlippage{Amount: d(0.05)}, DefaultParameters(), nil)

	buy := newOrder(models.OrderTypeMarket, models.DirectionBuy, 10)
	result, err := e.Fill(buy, tradeSnapshot(barTime, 100, 105, 95, 101), tradeBarTypes)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != StatusFilled {
		t.Fatal("market buy did not fill")
	}
	if !result.FillPrice.Equal(d(101.05)) {
		t.Errorf("buy fill price = %s, want 101.05", result.FillPrice)
	}
	if !result.FillQuantity.Equal(d(10)) {
		t.Errorf("fill quantity = %s, want 10", result.FillQuantity)
	}

	sell := newOrder(models.OrderTypeMarket, models.DirectionSell, 10)
	result, err = e.Fill(sell, tradeSnapshot(barTime, 100, 105, 95, 101), tradeBarTypes)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.FillPrice.Equal(d(100.95)) {
		t.Errorf("sell fill price = %s, want 100.95", result.FillPrice)
	}
}

func TestMarketOrderStalePriceWarning(t *testing.T) {
	e := usEngine(Parameters{StalePriceThreshold: 24 * time.Hour})

	// Bar from the previous session, more than a day older than the order.
	staleEnd := time.Date(2024, 6, 10, 15, 0, 0, 0, time.UTC)
	order := newOrder(models.OrderTypeMarket, models.DirectionBuy, 1)
	order.SubmittedTimeUtc = time.Date(2024, 6, 11, 16, 0, 0, 0, time.UTC)

	result, err := e.Fill(order, tradeSnapshot(staleEnd, 100, 105, 95, 101), tradeBarTypes)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != StatusFilled {
		t.Fatal("stale market order should still fill")
	}
	if result.Message == "" {
		t.Error("expected a stale price warning message")
	}
}

func TestLimitBuyWorstCasesFillPrice(t *testing.T) {
	e := usEngine(DefaultParameters())
	order := newOrder(models.OrderTypeLimit, models.DirectionBuy, 1)
	order.LimitPrice = d(100)

	result, err := e.Fill(order, tradeSnapshot(barTime, 96, 105, 95, 104), tradeBarTypes)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != StatusFilled {
		t.Fatal("limit buy did not fill")
	}
	if !result.FillPrice.Equal(d(100)) {
		t.Errorf("fill price = %s, want min(105, 100) = 100", result.FillPrice)
	}

	// Low never crossed the limit: no fill.
	result, err = e.Fill(order, tradeSnapshot(barTime, 102, 105, 101, 104), tradeBarTypes)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != StatusNone {
		t.Error("limit buy filled without the low crossing the limit")
	}
}

func TestLimitSellWorstCasesFillPrice(t *testing.T) {
	e := usEngine(DefaultParameters())
	order := newOrder(models.OrderTypeLimit, models.DirectionSell, 1)
	order.LimitPrice = d(100)

	result, err := e.Fill(order, tradeSnapshot(barTime, 96, 105, 95, 104), tradeBarTypes)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != StatusFilled {
		t.Fatal("limit sell did not fill")
	}
	if !result.FillPrice.Equal(d(100)) {
		t.Errorf("fill price = %s, want max(95, 100) = 100", result.FillPrice)
	}
}

func TestStopMarketSell(t *testing.T) {
	e := usEngine(DefaultParameters())
	order := newOrder(models.OrderTypeStopMarket, models.DirectionSell, 1)
	order.StopPrice = d(50)

	// Bar low 48 pierced the stop; current 49 gaps below it.
	result, err := e.Fill(order, tradeSnapshot(barTime, 51, 51, 48, 49), tradeBarTypes)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != StatusFilled {
		t.Fatal("stop sell did not fill")
	}
	if !result.FillPrice.Equal(d(49)) {
		t.Errorf("fill price = %s, want min(50, 49) = 49", result.FillPrice)
	}

	// Low stayed above the stop: untouched.
	result, _ = e.Fill(order, tradeSnapshot(barTime, 51, 52, 50.5, 51), tradeBarTypes)
	if result.Status != StatusNone {
		t.Error("stop sell filled without the low crossing the stop")
	}
}

func TestStopMarketBuy(t *testing.T) {
	e := usEngine(DefaultParameters())
	order := newOrder(models.OrderTypeStopMarket, models.DirectionBuy, 1)
	order.StopPrice = d(50)

	result, err := e.Fill(order, tradeSnapshot(barTime, 49, 55, 49, 54), tradeBarTypes)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != StatusFilled {
		t.Fatal("stop buy did not fill")
	}
	if !result.FillPrice.Equal(d(54)) {
		t.Errorf("fill price = %s, want max(50, 54) = 54", result.FillPrice)
	}
}

func TestStopLimitBuyTriggerIsSticky(t *testing.T) {
	e := usEngine(DefaultParameters())
	order := newOrder(models.OrderTypeStopLimit, models.DirectionBuy, 1)
	order.StopPrice = d(50)
	order.LimitPrice = d(52)

	// High below the stop: nothing happens.
	result, _ := e.Fill(order, tradeSnapshot(barTime, 48, 49, 47, 48.5), tradeBarTypes)
	if result.Status != StatusNone || order.StopTriggered {
		t.Fatal("stop-limit buy reacted below the stop")
	}

	// High breaks the stop but current is above the limit: triggered, unfilled.
	result, _ = e.Fill(order, tradeSnapshot(barTime.Add(time.Minute), 49, 55, 49, 53), tradeBarTypes)
	if result.Status != StatusNone {
		t.Fatal("stop-limit buy filled with current above the limit")
	}
	if !order.StopTriggered {
		t.Fatal("stop break did not set the sticky trigger")
	}

	// Trigger persists: fills once current drops under the limit, even
	// though this bar never touched the stop.
	result, err := e.Fill(order, tradeSnapshot(barTime.Add(2*time.Minute), 51, 51.5, 50.5, 51), tradeBarTypes)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != StatusFilled {
		t.Fatal("triggered stop-limit buy did not fill under the limit")
	}
	if !result.FillPrice.Equal(d(51.5)) {
		t.Errorf("fill price = %s, want min(51.5, 52) = 51.5", result.FillPrice)
	}
}

func TestStopLimitSell(t *testing.T) {
	e := usEngine(DefaultParameters())
	order := newOrder(models.OrderTypeStopLimit, models.DirectionSell, 1)
	order.StopPrice = d(50)
	order.LimitPrice = d(48)

	// Low breaks the stop, current below the limit: triggered, no fill yet.
	result, _ := e.Fill(order, tradeSnapshot(barTime, 50, 50.5, 47, 47.5), tradeBarTypes)
	if result.Status != StatusNone || !order.StopTriggered {
		t.Fatal("expected sticky trigger without a fill")
	}

	result, err := e.Fill(order, tradeSnapshot(barTime.Add(time.Minute), 48, 49.5, 48.5, 49), tradeBarTypes)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != StatusFilled {
		t.Fatal("triggered stop-limit sell did not fill above the limit")
	}
	if !result.FillPrice.Equal(d(48.5)) {
		t.Errorf("fill price = %s, want max(48.5, 48) = 48.5", result.FillPrice)
	}
}

func TestLimitIfTouched(t *testing.T) {
	e := usEngine(DefaultParameters())
	types := []models.DataType{models.DataTypeTradeBar, models.DataTypeQuoteBar}

	sell := newOrder(models.OrderTypeLimitIfTouched, models.DirectionSell, 1)
	sell.TriggerPrice = d(100)
	sell.LimitPrice = d(101)

	// Trade high touches the trigger; ask sits at the limit.
	snap := tradeSnapshot(barTime, 99, 100, 98, 99.5)
	snap.QuoteBar = &models.QuoteBar{
		Time:   barTime.Add(-time.Minute),
		Period: time.Minute,
		Bid:    &models.Bar{Open: d(100.5), High: d(101), Low: d(100), Close: d(100.5)},
		Ask:    &models.Bar{Open: d(101), High: d(101.5), Low: d(100.5), Close: d(101)},
	}
	result, err := e.Fill(sell, snap, types)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !sell.TriggerTouched {
		t.Fatal("trade high at the trigger did not set the sticky touch flag")
	}
	if result.Status != StatusFilled {
		t.Fatal("touched LIT sell did not fill with ask at the limit")
	}
	if !result.FillPrice.Equal(d(101)) {
		t.Errorf("fill price = %s, want the limit 101", result.FillPrice)
	}

	buy := newOrder(models.OrderTypeLimitIfTouched, models.DirectionBuy, 1)
	buy.TriggerPrice = d(100)
	buy.LimitPrice = d(99)

	// Trade low never reaches the trigger: untouched, unfilled.
	snap = tradeSnapshot(barTime, 101, 102, 100.5, 101)
	result, _ = e.Fill(buy, snap, types)
	if result.Status != StatusNone || buy.TriggerTouched {
		t.Fatal("LIT buy reacted without a touch")
	}
}

func TestStaleDataNeverFillsRestingOrders(t *testing.T) {
	e := usEngine(DefaultParameters())
	order := newOrder(models.OrderTypeLimit, models.DirectionBuy, 1)
	order.LimitPrice = d(100)
	order.SubmittedTimeUtc = barTime.Add(time.Hour)

	// The bar predates the order; repeated evaluation is a no-op.
	snap := tradeSnapshot(barTime, 96, 105, 95, 104)
	for i := 0; i < 3; i++ {
		result, err := e.Fill(order, snap, tradeBarTypes)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.Status != StatusNone {
			t.Fatal("order filled on data older than its submission")
		}
	}

	stop := newOrder(models.OrderTypeStopLimit, models.DirectionBuy, 1)
	stop.StopPrice = d(100)
	stop.LimitPrice = d(110)
	stop.SubmittedTimeUtc = barTime.Add(time.Hour)
	if _, err := e.Fill(stop, snap, tradeBarTypes); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stop.StopTriggered {
		t.Error("stale data must not flip trigger flags")
	}
}

func TestClosedExchangeIsSilentNoFill(t *testing.T) {
	e := usEngine(DefaultParameters())
	saturday := time.Date(2024, 6, 15, 15, 0, 0, 0, time.UTC)

	order := newOrder(models.OrderTypeMarket, models.DirectionBuy, 1)
	result, err := e.Fill(order, tradeSnapshot(saturday, 100, 105, 95, 101), tradeBarTypes)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != StatusNone {
		t.Error("market order filled on a closed exchange")
	}
}

func TestExtendedHoursOnlyForLimitFamily(t *testing.T) {
	e := usEngine(Parameters{StalePriceThreshold: 24 * time.Hour, ExtendedMarketHours: true})
	preMarket := time.Date(2024, 6, 11, 12, 0, 0, 0, time.UTC) // 08:00 ET

	limit := newOrder(models.OrderTypeLimit, models.DirectionBuy, 1)
	limit.LimitPrice = d(100)
	limit.SubmittedTimeUtc = preMarket.Add(-time.Hour)
	result, err := e.Fill(limit, tradeSnapshot(preMarket, 96, 105, 95, 104), tradeBarTypes)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != StatusFilled {
		t.Error("limit order did not fill pre-market with extended hours enabled")
	}

	market := newOrder(models.OrderTypeMarket, models.DirectionBuy, 1)
	market.SubmittedTimeUtc = preMarket.Add(-time.Hour)
	result, _ = e.Fill(market, tradeSnapshot(preMarket, 96, 105, 95, 104), tradeBarTypes)
	if result.Status != StatusNone {
		t.Error("market order filled pre-market; extended hours are limit-family only")
	}
}

func TestMarketOnOpenWaitsForNextSession(t *testing.T) {
	e := usEngine(DefaultParameters())
	order := newOrder(models.OrderTypeMarketOnOpen, models.DirectionBuy, 1)
	order.SubmittedTimeUtc = barTime // during Tuesday's session

	// Later Tuesday bar: same session, no fill.
	result, err := e.Fill(order, tradeSnapshot(barTime.Add(time.Hour), 100, 101, 99, 100.5), tradeBarTypes)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != StatusNone {
		t.Fatal("MOO filled against the session it was submitted in")
	}

	// Wednesday's opening bar (13:30-13:31 UTC) fills at the open.
	wedOpenBarEnd := time.Date(2024, 6, 12, 13, 31, 0, 0, time.UTC)
	result, err = e.Fill(order, tradeSnapshot(wedOpenBarEnd, 102, 103, 101.5, 102.5), tradeBarTypes)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != StatusFilled {
		t.Fatal("MOO did not fill on the next session's opening bar")
	}
	if !result.FillPrice.Equal(d(102)) {
		t.Errorf("fill price = %s, want the session open 102", result.FillPrice)
	}
}

func TestMarketOnCloseWaitsForScheduledClose(t *testing.T) {
	e := usEngine(DefaultParameters())
	order := newOrder(models.OrderTypeMarketOnClose, models.DirectionBuy, 1)

	// Tuesday 19:59 UTC: one minute before the close.
	result, err := e.Fill(order, tradeSnapshot(time.Date(2024, 6, 11, 19, 59, 0, 0, time.UTC), 100, 101, 99, 100.5), tradeBarTypes)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != StatusNone {
		t.Fatal("MOC filled before the scheduled close")
	}

	closeBarEnd := time.Date(2024, 6, 11, 20, 0, 0, 0, time.UTC)
	result, err = e.Fill(order, tradeSnapshot(closeBarEnd, 100, 101, 99, 100.75), tradeBarTypes)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != StatusFilled {
		t.Fatal("MOC did not fill at the close")
	}
	if !result.FillPrice.Equal(d(100.75)) {
		t.Errorf("fill price = %s, want the session close 100.75", result.FillPrice)
	}
}

func TestFixedPriceSharesCloseFill(t *testing.T) {
	e := usEngine(DefaultParameters())
	order := newOrder(models.OrderTypeFixedPrice, models.DirectionSell, 1)

	closeBarEnd := time.Date(2024, 6, 11, 20, 0, 0, 0, time.UTC)
	result, err := e.Fill(order, tradeSnapshot(closeBarEnd, 100, 101, 99, 100.75), tradeBarTypes)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != StatusFilled || !result.FillPrice.Equal(d(100.75)) {
		t.Errorf("fixed-price fill = %+v, want the close 100.75", result)
	}
}

func TestSessionOrdersRejectedOnAlwaysOpenExchange(t *testing.T) {
	e := NewEngine(calendar.NewAlwaysOpenHours(), nil, DefaultParameters(), nil)
	snap := tradeSnapshot(barTime, 100, 101, 99, 100.5)

	for _, orderType := range []models.OrderType{
		models.OrderTypeMarketOnOpen,
		models.OrderTypeMarketOnClose,
		models.OrderTypeFixedPrice,
	} {
		order := newOrder(orderType, models.DirectionBuy, 1)
		if _, err := e.Fill(order, snap, tradeBarTypes); !errors.Is(err, ErrExchangeNeverCloses) {
			t.Errorf("%s on an always-open exchange: got %v, want ErrExchangeNeverCloses", orderType, err)
		}
	}
}

func TestNoUsablePriceSourceIsAnError(t *testing.T) {
	e := usEngine(DefaultParameters())
	order := newOrder(models.OrderTypeMarket, models.DirectionBuy, 1)

	// Snapshot carries only a trade bar, but the security claims a tick-only
	// subscription: misconfiguration, not a silent fallback.
	snap := tradeSnapshot(barTime, 100, 101, 99, 100.5)
	if _, err := e.Fill(order, snap, []models.DataType{models.DataTypeTick}); !errors.Is(err, ErrNoPriceSource) {
		t.Errorf("got %v, want ErrNoPriceSource", err)
	}
}
