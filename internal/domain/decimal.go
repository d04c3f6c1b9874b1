package domain

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// Scale is the number of fractional digits every price, quantity and
// percentage is carried with.
const Scale int32 = 8

var (
	hundred = decimal.NewFromInt(100)
	two     = decimal.NewFromInt(2)
	one     = decimal.NewFromInt(1)
)

// ParseDecimal parses an exchange decimal string. Empty strings are zero.
func ParseDecimal(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("domain.ParseDecimal %q: %w", s, err)
	}
	return d, nil
}

// Percent returns 100 × (1 − num/den), the drop of num below den.
// Returns zero when den is not positive.
func Percent(num, den decimal.Decimal) decimal.Decimal {
	if !den.IsPositive() {
		return decimal.Zero
	}
	return hundred.Mul(one.Sub(num.Div(den)))
}

// sqrt is only used by the hold-time curve; the result is cut back to Scale digits.
func sqrt(d decimal.Decimal) decimal.Decimal {
	if !d.IsPositive() {
		return decimal.Zero
	}
	return decimal.NewFromFloat(math.Sqrt(d.InexactFloat64())).RoundFloor(Scale)
}

// clamp bounds d to [lo, hi].
func clamp(d, lo, hi decimal.Decimal) decimal.Decimal {
	if d.LessThan(lo) {
		return lo
	}
	if d.GreaterThan(hi) {
		return hi
	}
	return d
}
