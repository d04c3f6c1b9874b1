package domain

import "github.com/shopspring/decimal"

// Fibonacci returns F(n) with F(1) = F(2) = 1. F(n) = 0 for n < 1.
func Fibonacci(n int) int64 {
	if n < 1 {
		return 0
	}
	var a, b int64 = 0, 1
	for i := 1; i < n; i++ {
		a, b = b, a+b
	}
	return b
}

// FibonacciTranches splits total into at most slots tranches of unit × F(i).
// Allocation stops once what is left would drop below twice the unit, and the
// remainder is folded into the last tranche. Returns nil when total < unit.
func FibonacciTranches(total, unit decimal.Decimal, slots int) []decimal.Decimal {
	if slots <= 0 || !unit.IsPositive() || total.LessThan(unit) {
		return nil
	}
	minLeft := unit.Mul(two)
	remaining := total
	tranches := make([]decimal.Decimal, 0, slots)
	for i := 1; i <= slots && remaining.IsPositive(); i++ {
		t := decimal.Min(unit.Mul(decimal.NewFromInt(Fibonacci(i))), remaining)
		if remaining.Sub(t).LessThan(minLeft) {
			tranches = append(tranches, remaining)
			remaining = decimal.Zero
			break
		}
		tranches = append(tranches, t)
		remaining = remaining.Sub(t)
	}
	if remaining.IsPositive() {
		last := len(tranches) - 1
		tranches[last] = tranches[last].Add(remaining)
	}
	return tranches
}

// Halves splits total into two tranches, the second absorbing any odd digit.
// Returns nil when either half would fall below unit.
func Halves(total, unit decimal.Decimal) []decimal.Decimal {
	half := total.Div(two).RoundFloor(Scale)
	if half.LessThan(unit) {
		return nil
	}
	return []decimal.Decimal{half, total.Sub(half)}
}
