package storage_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/rotabot/internal/adapters/storage"
	"github.com/alejandrodnm/rotabot/internal/domain"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func makeView(orderID int64, symbol, drop string) domain.OrderView {
	return domain.OrderView{
		Order: domain.OpenOrder{
			Symbol:   symbol,
			Side:     domain.SideSell,
			OrigQty:  d("1"),
			Price:    d("0.05"),
			OrderID:  orderID,
			PlacedAt: time.Now().Add(-48 * time.Hour).UTC(),
		},
		Notional:         d("0.05"),
		PriceDropPercent: d(drop),
	}
}

func makeReport(id string, startedAt time.Time, views ...domain.OrderView) domain.CycleReport {
	return domain.CycleReport{
		ID:           id,
		StartedAt:    startedAt,
		FinishedAt:   startedAt.Add(3 * time.Second),
		Action:       domain.ActionRebuy,
		Rule:         8,
		Reason:       "orders past their hold with enough margin",
		Symbols:      "ETHBTC",
		OrdersPlaced: 2,
		ValueBefore:  d("0.12345678"),
		ValueAfter:   d("0.12345679"),
		Views:        views,
	}
}

func TestSQLiteStorage_SaveAndRecentCycles(t *testing.T) {
	db, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	defer db.Close()
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Millisecond)
	require.NoError(t, db.SaveCycle(ctx, makeReport("c1", now.Add(-time.Hour))))
	soft := makeReport("c2", now)
	soft.Action = domain.ActionSplit
	soft.SoftError = "order no longer exists"
	require.NoError(t, db.SaveCycle(ctx, soft))

	cycles, err := db.RecentCycles(ctx, 10)
	require.NoError(t, err)
	require.Len(t, cycles, 2)

	// Newest first
	assert.Equal(t, "c2", cycles[0].ID)
	assert.Equal(t, domain.ActionSplit, cycles[0].Action)
	assert.Equal(t, "order no longer exists", cycles[0].SoftError)
	assert.Equal(t, now, cycles[0].StartedAt)
	assert.Equal(t, 3*time.Second, cycles[0].Duration())

	assert.Equal(t, domain.ActionRebuy, cycles[1].Action)
	assert.Equal(t, 8, cycles[1].Rule)
	assert.True(t, d("0.12345678").Equal(cycles[1].ValueBefore), "decimals keep every digit")
	assert.True(t, d("0.00000001").Equal(cycles[1].ValueDelta()))
}

func TestSQLiteStorage_RecentCyclesLimit(t *testing.T) {
	db, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	defer db.Close()
	ctx := context.Background()

	start := time.Now().UTC()
	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, db.SaveCycle(ctx, makeReport(id, start.Add(time.Duration(i)*time.Minute))))
	}
	cycles, err := db.RecentCycles(ctx, 2)
	require.NoError(t, err)
	require.Len(t, cycles, 2)
	assert.Equal(t, "c", cycles[0].ID)
}

func TestSQLiteStorage_EmptyHistory(t *testing.T) {
	db, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	defer db.Close()

	cycles, err := db.RecentCycles(context.Background(), 5)
	require.NoError(t, err)
	assert.Empty(t, cycles)
}

func TestSQLiteStorage_PositionsTrackWorstDrop(t *testing.T) {
	db, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	defer db.Close()
	ctx := context.Background()

	start := time.Now().UTC()
	require.NoError(t, db.SaveCycle(ctx, makeReport("c1", start,
		makeView(1, "ETHBTC", "10"), makeView(2, "ADABTC", "4"))))
	require.NoError(t, db.SaveCycle(ctx, makeReport("c2", start.Add(time.Minute),
		makeView(1, "ETHBTC", "25"))))
	// Recovery does not lower the worst drop.
	require.NoError(t, db.SaveCycle(ctx, makeReport("c3", start.Add(2*time.Minute),
		makeView(1, "ETHBTC", "5"))))

	positions, err := db.Positions(ctx, start.Add(-time.Minute))
	require.NoError(t, err)
	require.Len(t, positions, 2)

	assert.Equal(t, int64(1), positions[0].OrderID)
	assert.InDelta(t, 25.0, positions[0].WorstDrop, 1e-9)
	assert.InDelta(t, 5.0, positions[0].DropPct, 1e-9)
	assert.True(t, d("0.05").Equal(positions[0].LimitPrice))
	assert.Equal(t, "ADABTC", positions[1].Symbol)
}

func TestSQLiteStorage_UnchangedPositionsStaySeen(t *testing.T) {
	db, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	defer db.Close()
	ctx := context.Background()

	start := time.Now().UTC().Truncate(time.Millisecond)
	require.NoError(t, db.SaveCycle(ctx, makeReport("c1", start, makeView(1, "ETHBTC", "10"))))
	// A 1% relative move is under the rewrite threshold.
	later := start.Add(40 * 24 * time.Hour)
	require.NoError(t, db.SaveCycle(ctx, makeReport("c2", later, makeView(1, "ETHBTC", "10.1"))))

	positions, err := db.Positions(ctx, later.Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, positions, 1, "an open order is not hidden by an unchanged drop")
	assert.True(t, later.Add(3*time.Second).Equal(positions[0].LastSeen), "last seen %s", positions[0].LastSeen)
	assert.True(t, start.Add(3*time.Second).Equal(positions[0].FirstSeen), "first seen %s", positions[0].FirstSeen)
	assert.InDelta(t, 10.0, positions[0].DropPct, 1e-9, "drop columns untouched")
}
