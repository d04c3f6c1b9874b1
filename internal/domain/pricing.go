package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PricingConfig holds the profit and patience curves. It is immutable and
// passed explicitly to the calculator.
type PricingConfig struct {
	// MinHalfProfit and MaxHalfProfit bound each of the two profit terms.
	MinHalfProfit decimal.Decimal
	MaxHalfProfit decimal.Decimal
	// MinProfit floors the summed profit fraction.
	MinProfit decimal.Decimal
	// RatioSlope and RatioIntercept define the free/total balance term.
	RatioSlope     decimal.Decimal
	RatioIntercept decimal.Decimal

	// HoldScale multiplies √notional in timeFromAmount (hours).
	HoldScale decimal.Decimal
	// Patience curve f(p) = A·p² + B·p + C over the price-drop percentage.
	PatienceA decimal.Decimal
	PatienceB decimal.Decimal
	PatienceC decimal.Decimal
}

// DefaultPricingConfig returns the production curves.
func DefaultPricingConfig() PricingConfig {
	return PricingConfig{
		MinHalfProfit:  decimal.RequireFromString("0.005"),
		MaxHalfProfit:  decimal.RequireFromString("0.02"),
		MinProfit:      decimal.RequireFromString("0.01"),
		RatioSlope:     decimal.RequireFromString("-0.015"),
		RatioIntercept: decimal.RequireFromString("0.02"),
		HoldScale:      decimal.NewFromInt(100),
		PatienceA:      decimal.RequireFromString("-0.0008"),
		PatienceB:      decimal.RequireFromString("0.15"),
		PatienceC:      decimal.RequireFromString("0.5"),
	}
}

// PricingInput is everything the calculator needs to enrich one order.
type PricingInput struct {
	Order          OpenOrder
	Rules          SymbolRules
	CurrentPrice   decimal.Decimal // lowest ask
	RecentCandles  []Candle        // 15m candles
	LockedInSymbol decimal.Decimal // notional of every open order on the symbol
	FreeBalance    decimal.Decimal // free base asset
	TotalBalance   decimal.Decimal // free base + base value of every held asset
	Now            time.Time
}

// View derives the OrderView of one open order.
func (c PricingConfig) View(in PricingInput) OrderView {
	o := in.Order
	v := OrderView{
		Order:        o,
		Rules:        in.Rules,
		Outstanding:  o.Outstanding(),
		Notional:     o.Notional(),
		CurrentPrice: in.CurrentPrice,
	}
	v.CurrentNotional = v.Outstanding.Mul(in.CurrentPrice).RoundFloor(Scale)
	v.PriceDropPercent = PriceDropPercent(o.Price, in.CurrentPrice)
	v.VolatilityPercent = VolatilityPercent(in.RecentCandles)

	v.ProfitFraction = c.ProfitFraction(v.Notional, in.FreeBalance, in.TotalBalance)
	v.TargetPrice = c.TargetPrice(in.Rules, o.Price, in.CurrentPrice, v.ProfitFraction)
	if in.CurrentPrice.IsPositive() {
		v.SellMarginPercent = hundred.Mul(v.TargetPrice.Div(in.CurrentPrice).Sub(one)).RoundFloor(Scale)
	}

	v.RequiredHoldHours = c.RequiredHoldHours(v.Notional, in.LockedInSymbol, v.PriceDropPercent, v.VolatilityPercent)
	v.ActualHoldHours = HoursSince(o.PlacedAt, in.Now)
	v.RemainingHoldHours = v.RequiredHoldHours.Sub(v.ActualHoldHours)
	return v
}

// PriceDropPercent is 100 × (1 − current/limit), negative when the market is
// above the limit price. An empty book counts as a full drop.
func PriceDropPercent(limit, current decimal.Decimal) decimal.Decimal {
	if !limit.IsPositive() {
		return decimal.Zero
	}
	return Percent(current, limit).RoundDown(Scale)
}

// VolatilityPercent is the drop of the lowest low below the highest high of
// the given candles.
func VolatilityPercent(candles []Candle) decimal.Decimal {
	if len(candles) == 0 {
		return decimal.Zero
	}
	lo, hi := candles[0].Low, candles[0].High
	for _, c := range candles[1:] {
		lo = decimal.Min(lo, c.Low)
		hi = decimal.Max(hi, c.High)
	}
	return Percent(lo, hi).RoundFloor(Scale)
}

// ProfitFraction sums the order-size term and the liquidity term, each clamped
// to [MinHalfProfit, MaxHalfProfit], and floors the sum at MinProfit.
func (c PricingConfig) ProfitFraction(notional, free, total decimal.Decimal) decimal.Decimal {
	byAmount := c.MaxHalfProfit
	reductionPoint := free.Div(two)
	if reductionPoint.IsPositive() {
		slope := c.MinHalfProfit.Sub(c.MaxHalfProfit).Div(reductionPoint)
		byAmount = slope.Mul(notional).Add(c.MaxHalfProfit)
	}
	byAmount = clamp(byAmount, c.MinHalfProfit, c.MaxHalfProfit)

	ratio := decimal.Zero
	if total.IsPositive() {
		ratio = free.Div(total)
	}
	byLiquidity := clamp(c.RatioSlope.Mul(ratio).Add(c.RatioIntercept), c.MinHalfProfit, c.MaxHalfProfit)

	return decimal.Max(c.MinProfit, byAmount.Add(byLiquidity)).Round(Scale)
}

// TargetPrice is the break-even midpoint of limit and current price plus the
// profit fraction, rounded up to the symbol tick.
func (c PricingConfig) TargetPrice(r SymbolRules, limit, current, profit decimal.Decimal) decimal.Decimal {
	mid := limit.Add(current).Div(two)
	return RoundPriceUp(r, mid.Mul(one.Add(profit)).RoundCeil(Scale))
}

// TimeFromAmount is HoldScale·√x hours.
func (c PricingConfig) TimeFromAmount(x decimal.Decimal) decimal.Decimal {
	return c.HoldScale.Mul(sqrt(x))
}

// Patience evaluates the quadratic patience curve at price-drop p.
func (c PricingConfig) Patience(p decimal.Decimal) decimal.Decimal {
	return c.PatienceA.Mul(p).Mul(p).Add(c.PatienceB.Mul(p)).Add(c.PatienceC)
}

// RequiredHoldHours is the minimum time an order waits before it may be rebought.
// Recent volatility shortens it proportionally.
func (c PricingConfig) RequiredHoldHours(notional, lockedInSymbol, dropPct, volatilityPct decimal.Decimal) decimal.Decimal {
	base := c.TimeFromAmount(notional).Add(c.TimeFromAmount(lockedInSymbol))
	volFactor := one.Add(volatilityPct.Neg().Div(hundred))
	return base.Mul(c.Patience(dropPct)).Mul(volFactor).RoundCeil(Scale)
}

// HoursSince returns the hours elapsed from t to now, floored at Scale digits.
func HoursSince(t, now time.Time) decimal.Decimal {
	ms := now.Sub(t).Milliseconds()
	return decimal.NewFromInt(ms).Div(decimal.NewFromInt(int64(time.Hour / time.Millisecond))).RoundFloor(Scale)
}
