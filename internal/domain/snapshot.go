package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PortfolioSnapshot aggregates one cycle of live exchange state. It is built
// once and only read afterwards.
type PortfolioSnapshot struct {
	Views             []OrderView
	LockedBySymbol    map[string]decimal.Decimal
	LockedTotal       decimal.Decimal
	FreeBalance       decimal.Decimal // free base asset
	FreeOtherValue    decimal.Decimal // free non-base assets valued at best bid
	TotalBalance      decimal.Decimal // free base + base value of every held asset
	DistinctSymbols   int
	MinRequiredOrders int
	TakenAt           time.Time
}

// Value is the solvency measure: locked order notional plus free balances,
// all in the base asset.
func (s PortfolioSnapshot) Value() decimal.Decimal {
	return s.LockedTotal.Add(s.FreeBalance).Add(s.FreeOtherValue)
}

// LockedPerSymbol sums the notional of orders by symbol.
func LockedPerSymbol(orders []OpenOrder) (map[string]decimal.Decimal, decimal.Decimal) {
	bySymbol := make(map[string]decimal.Decimal)
	total := decimal.Zero
	for _, o := range orders {
		n := o.Notional()
		bySymbol[o.Symbol] = bySymbol[o.Symbol].Add(n)
		total = total.Add(n)
	}
	return bySymbol, total
}

// MinRequiredOrders is how many distinct positions the free balance should fund.
func MinRequiredOrders(free, unit decimal.Decimal) int {
	if !unit.IsPositive() || !free.IsPositive() {
		return 0
	}
	return int(free.Div(unit).Floor().IntPart())
}

// AllHeldLongerThan reports whether every order is older than hours. It is
// false for an empty portfolio.
func (s PortfolioSnapshot) AllHeldLongerThan(hours decimal.Decimal) bool {
	if len(s.Views) == 0 {
		return false
	}
	for _, v := range s.Views {
		if !v.HeldLongerThan(hours) {
			return false
		}
	}
	return true
}

// AllOverdue reports whether every order has passed its required hold.
func (s PortfolioSnapshot) AllOverdue() bool {
	if len(s.Views) == 0 {
		return false
	}
	for _, v := range s.Views {
		if !v.HoldElapsed() {
			return false
		}
	}
	return true
}

// NoneAffordable reports whether no order's rebuy cost fits the free balance.
func (s PortfolioSnapshot) NoneAffordable() bool {
	for _, v := range s.Views {
		if v.RebuyCost().LessThanOrEqual(s.FreeBalance) {
			return false
		}
	}
	return true
}

// Symbols returns the set of symbols with an open order.
func (s PortfolioSnapshot) Symbols() map[string]bool {
	set := make(map[string]bool, len(s.Views))
	for _, v := range s.Views {
		set[v.Symbol()] = true
	}
	return set
}
