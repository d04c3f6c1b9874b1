package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Soft failures: the running strategy stops and the cycle ends without further
// action. The next scheduled cycle starts from fresh exchange state.
var (
	ErrOrderNotFound       = errors.New("order no longer exists")
	ErrBelowMinNotional    = errors.New("below symbol minimum notional")
	ErrStalePrice          = errors.New("price moved since scoring")
	ErrNoCandidates        = errors.New("no buy candidates")
	ErrInsufficientBalance = errors.New("insufficient free balance")
)

// Hard failures abort the cycle and are surfaced to the caller.
var (
	ErrSettlementTimeout = errors.New("balance did not settle")
	ErrCycleInProgress   = errors.New("cycle already running")
	ErrValueRegression   = errors.New("portfolio value regressed")
	ErrUnknownSymbol     = errors.New("symbol not listed")
)

// IsSoft reports whether err is a business-rule failure that only ends the
// current strategy.
func IsSoft(err error) bool {
	return errors.Is(err, ErrOrderNotFound) ||
		errors.Is(err, ErrBelowMinNotional) ||
		errors.Is(err, ErrStalePrice) ||
		errors.Is(err, ErrNoCandidates) ||
		errors.Is(err, ErrInsufficientBalance)
}

// ValueRegressionError is raised when the portfolio is worth less, in the base
// asset, after a cycle than before it.
type ValueRegressionError struct {
	Before decimal.Decimal
	After  decimal.Decimal
}

func (e *ValueRegressionError) Error() string {
	return fmt.Sprintf("portfolio value regressed: %s -> %s (%s)",
		e.Before, e.After, e.After.Sub(e.Before))
}

func (e *ValueRegressionError) Unwrap() error { return ErrValueRegression }

// CheckSolvency returns a *ValueRegressionError when after < before.
func CheckSolvency(before, after decimal.Decimal) error {
	if after.LessThan(before) {
		return &ValueRegressionError{Before: before, After: after}
	}
	return nil
}
