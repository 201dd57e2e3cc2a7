package fill

import (
	"alpha_sim/internal/models"

	"github.com/shopspring/decimal"
)

// SlippageModel prices the execution penalty for an order. The engine applies
// it in the adverse direction: added for buys, subtracted for sells.
type SlippageModel interface {
	Slippage(snap *Snapshot, order *models.Order) decimal.Decimal
}

// ConstantSlippage charges a fixed absolute amount per fill.
type ConstantSlippage struct {
	Amount decimal.Decimal
}

func (c ConstantSlippage) Slippage(_ *Snapshot, _ *models.Order) decimal.Decimal {
	return c.Amount
}

// ZeroSlippage is the default model.
func ZeroSlippage() ConstantSlippage {
	return ConstantSlippage{Amount: decimal.Zero}
}

// SpreadSlippage charges a fraction of the quoted bid/ask spread, zero when
// no quote is available.
type SpreadSlippage struct {
	Fraction decimal.Decimal // e.g. 0.5 pays half the spread
}

func (s SpreadSlippage) Slippage(snap *Snapshot, _ *models.Order) decimal.Decimal {
	subscribed := []models.DataType{models.DataTypeTick, models.DataTypeQuoteBar}
	bid, ask, ok := snap.BestBidAsk(subscribed)
	if !ok || !ask.GreaterThan(bid) {
		return decimal.Zero
	}
	return ask.Sub(bid).Mul(s.Fraction)
}
