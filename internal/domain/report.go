package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CycleReport summarises one cycle for the console and the cycle history.
type CycleReport struct {
	ID           string
	StartedAt    time.Time
	FinishedAt   time.Time
	Action       ActionKind
	Rule         int
	Reason       string
	Symbols      string
	OrdersPlaced int
	ValueBefore  decimal.Decimal
	ValueAfter   decimal.Decimal
	SoftError    string
	Views        []OrderView
}

// ValueDelta is ValueAfter − ValueBefore.
func (r CycleReport) ValueDelta() decimal.Decimal {
	return r.ValueAfter.Sub(r.ValueBefore)
}

// Duration is the wall-clock length of the cycle.
func (r CycleReport) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// PositionRecord is the tracked life of one open sell order across cycles.
type PositionRecord struct {
	OrderID    int64
	Symbol     string
	LimitPrice decimal.Decimal
	Notional   decimal.Decimal
	DropPct    float64
	WorstDrop  float64
	PlacedAt   time.Time
	FirstSeen  time.Time
	LastSeen   time.Time
}
