package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OpenOrder is a read-only copy of a resting exchange order.
type OpenOrder struct {
	Symbol        string
	Side          Side
	OrigQty       decimal.Decimal
	ExecutedQty   decimal.Decimal
	Price         decimal.Decimal
	OrderID       int64
	ClientOrderID string
	PlacedAt      time.Time
}

// Outstanding is the quantity still resting on the book.
func (o OpenOrder) Outstanding() decimal.Decimal {
	return o.OrigQty.Sub(o.ExecutedQty)
}

// Notional is Outstanding × Price rounded up, so locked capital is never
// under-accounted.
func (o OpenOrder) Notional() decimal.Decimal {
	return o.Outstanding().Mul(o.Price).RoundCeil(Scale)
}

// OrderView is one open sell order enriched with the market state of the
// current cycle. It only lives for the duration of a cycle.
type OrderView struct {
	Order OpenOrder
	Rules SymbolRules

	Outstanding     decimal.Decimal
	Notional        decimal.Decimal // ceil
	CurrentPrice    decimal.Decimal // lowest ask, zero when the book is empty
	CurrentNotional decimal.Decimal // floor

	TargetPrice       decimal.Decimal // ceil, then tick up
	ProfitFraction    decimal.Decimal
	SellMarginPercent decimal.Decimal // floor
	PriceDropPercent  decimal.Decimal // toward zero
	VolatilityPercent decimal.Decimal // floor

	RequiredHoldHours  decimal.Decimal // ceil
	ActualHoldHours    decimal.Decimal // floor
	RemainingHoldHours decimal.Decimal // exact: required − actual
}

// Symbol returns the order symbol.
func (v OrderView) Symbol() string { return v.Order.Symbol }

// HoldElapsed reports whether the order has waited its minimum hold.
func (v OrderView) HoldElapsed() bool { return v.RemainingHoldHours.IsNegative() }

// RebuyCost is what buying back Outstanding at the current price costs.
func (v OrderView) RebuyCost() decimal.Decimal {
	return v.Outstanding.Mul(v.CurrentPrice).RoundCeil(Scale)
}

// HeldLongerThan reports whether the order has been open for more than hours.
func (v OrderView) HeldLongerThan(hours decimal.Decimal) bool {
	return v.ActualHoldHours.GreaterThan(hours)
}
