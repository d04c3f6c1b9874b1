package notify_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/rotabot/internal/adapters/notify"
	"github.com/alejandrodnm/rotabot/internal/domain"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func makeView(symbol string, remaining string) domain.OrderView {
	return domain.OrderView{
		Order: domain.OpenOrder{
			Symbol:  symbol,
			Side:    domain.SideSell,
			OrigQty: d("1"),
			Price:   d("0.05"),
			OrderID: 7,
		},
		Outstanding:        d("1"),
		Notional:           d("0.05"),
		CurrentPrice:       d("0.045"),
		TargetPrice:        d("0.04533"),
		SellMarginPercent:  d("10.3"),
		PriceDropPercent:   d("10"),
		VolatilityPercent:  d("2.5"),
		RequiredHoldHours:  d("30"),
		ActualHoldHours:    d("12"),
		RemainingHoldHours: d(remaining),
	}
}

func makeReport() domain.CycleReport {
	start := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	return domain.CycleReport{
		ID:           "0123456789abcdef",
		StartedAt:    start,
		FinishedAt:   start.Add(2 * time.Second),
		Action:       domain.ActionRebuy,
		Rule:         8,
		Reason:       "orders past their hold with enough margin",
		Symbols:      "ETHBTC",
		OrdersPlaced: 2,
		ValueBefore:  d("0.1"),
		ValueAfter:   d("0.10000020"),
		Views:        []domain.OrderView{makeView("ETHBTC", "-1"), makeView("ADABTC", "18")},
	}
}

func TestConsole_Notify_Table(t *testing.T) {
	var buf bytes.Buffer
	n := notify.NewConsoleWriter(&buf, "BTC", true)

	require.NoError(t, n.Notify(context.Background(), makeReport()))

	out := buf.String()
	assert.Contains(t, out, "cycle 01234567")
	assert.Contains(t, out, "ETHBTC")
	assert.Contains(t, out, "ADABTC")
	assert.Contains(t, out, "10.30")
	assert.Contains(t, out, "due")
	assert.Contains(t, out, "18.0")
	assert.Contains(t, out, "rebuy (rule 8) ETHBTC")
	assert.Contains(t, out, "+0.00000020")
	assert.NotContains(t, out, "soft:")
}

func TestConsole_Notify_Compact(t *testing.T) {
	var buf bytes.Buffer
	n := notify.NewConsoleWriter(&buf, "BTC", false)

	r := makeReport()
	r.SoftError = "order no longer exists"
	r.ValueAfter = d("0.09")
	require.NoError(t, n.Notify(context.Background(), r))

	out := buf.String()
	assert.Contains(t, out, "2 orders")
	assert.Contains(t, out, "placed:2")
	assert.Contains(t, out, "-0.01000000")
	assert.Contains(t, out, "soft: order no longer exists")
	assert.Equal(t, 1, bytes.Count(buf.Bytes(), []byte("\n")), "compact mode is one line")
}

func TestConsole_Notify_NoAction(t *testing.T) {
	var buf bytes.Buffer
	n := notify.NewConsoleWriter(&buf, "BTC", true)

	r := domain.CycleReport{StartedAt: time.Now(), FinishedAt: time.Now(), Action: domain.ActionNone}
	require.NoError(t, n.Notify(context.Background(), r))
	assert.Contains(t, buf.String(), "decision: none")
}

func TestConsole_PrintHistory(t *testing.T) {
	var buf bytes.Buffer
	n := notify.NewConsoleWriter(&buf, "BTC", true)

	older := makeReport()
	newer := makeReport()
	newer.StartedAt = older.StartedAt.Add(time.Hour)
	newer.FinishedAt = newer.StartedAt.Add(time.Second)
	newer.ValueBefore = d("0.10000020")
	newer.ValueAfter = d("0.1")
	newer.Action = domain.ActionCancel
	newer.Rule = 7

	n.PrintHistory([]domain.CycleReport{newer, older})

	out := buf.String()
	assert.Contains(t, out, "LAST 2 CYCLES")
	assert.Contains(t, out, "cancel")
	assert.Contains(t, out, "rebuy")
	assert.Contains(t, out, "1 cycles closed below their starting value")
}

func TestConsole_PrintHistory_Empty(t *testing.T) {
	var buf bytes.Buffer
	notify.NewConsoleWriter(&buf, "BTC", true).PrintHistory(nil)
	assert.Contains(t, buf.String(), "no cycles recorded")
}

func TestConsole_PrintPositions(t *testing.T) {
	var buf bytes.Buffer
	n := notify.NewConsoleWriter(&buf, "BTC", true)

	n.PrintPositions([]domain.PositionRecord{{
		OrderID:    42,
		Symbol:     "ETHBTC",
		LimitPrice: d("0.05"),
		Notional:   d("0.05"),
		DropPct:    5,
		WorstDrop:  25.5,
		PlacedAt:   time.Now(),
		LastSeen:   time.Now(),
	}})

	out := buf.String()
	assert.Contains(t, out, "POSITIONS (1)")
	assert.Contains(t, out, "42")
	assert.Contains(t, out, "25.50")
}
