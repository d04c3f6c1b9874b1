package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// RoundQuantity rounds qty down to a multiple of the symbol step size.
// A quantity is never rounded up above what is funded.
func RoundQuantity(r SymbolRules, qty decimal.Decimal) decimal.Decimal {
	if !r.StepSize.IsPositive() {
		return qty.RoundDown(Scale)
	}
	return qty.Div(r.StepSize).Floor().Mul(r.StepSize)
}

// RoundPriceUp rounds price up to the next tick. Used for sell prices that
// must never land below the intended target.
func RoundPriceUp(r SymbolRules, price decimal.Decimal) decimal.Decimal {
	if !r.TickSize.IsPositive() {
		return price.RoundCeil(Scale)
	}
	return price.Div(r.TickSize).Ceil().Mul(r.TickSize)
}

// RoundPriceDown rounds price down to the previous tick. Used where the caller
// must not overstate value.
func RoundPriceDown(r SymbolRules, price decimal.Decimal) decimal.Decimal {
	if !r.TickSize.IsPositive() {
		return price.RoundFloor(Scale)
	}
	return price.Div(r.TickSize).Floor().Mul(r.TickSize)
}

// MeetsMinNotional reports whether qty × price reaches the symbol minimum notional.
func MeetsMinNotional(r SymbolRules, qty, price decimal.Decimal) bool {
	if !qty.IsPositive() || !price.IsPositive() {
		return false
	}
	return qty.Mul(price).GreaterThanOrEqual(r.MinNotional)
}

// NormalizeSell rounds a sell quantity down and its price up, and rejects the
// pair before it reaches the exchange if it falls below the minimum notional.
func NormalizeSell(r SymbolRules, qty, price decimal.Decimal) (decimal.Decimal, decimal.Decimal, error) {
	q := RoundQuantity(r, qty)
	p := RoundPriceUp(r, price)
	if !MeetsMinNotional(r, q, p) {
		return q, p, fmt.Errorf("%s sell %s @ %s: %w", r.Symbol, q, p, ErrBelowMinNotional)
	}
	return q, p, nil
}

// NormalizeBuy rounds a quantity bought at the given reference price and
// rejects it below the minimum notional.
func NormalizeBuy(r SymbolRules, qty, price decimal.Decimal) (decimal.Decimal, error) {
	q := RoundQuantity(r, qty)
	if !MeetsMinNotional(r, q, price) {
		return q, fmt.Errorf("%s buy %s @ %s: %w", r.Symbol, q, price, ErrBelowMinNotional)
	}
	return q, nil
}
