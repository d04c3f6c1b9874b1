package storage

// sqlite.go keeps the cycle history light.
//
//   - `cycles`: one row per cycle (decision, value before/after, soft error).
//   - `positions`: ONE row per open sell order (UPSERT), tracking first/last
//     sighting and the deepest price drop seen. The drop columns are only
//     rewritten when the drop moved by more than 5% relative, cached in
//     memory; last_seen is bumped for every order still open.
//   - Old rows are pruned on open: cycles after 90d, positions unseen for 30d.
//
// Decimals are stored as TEXT to keep every digit; times as unix millis.

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/alejandrodnm/rotabot/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS cycles (
    id            TEXT PRIMARY KEY,
    started_at    INTEGER NOT NULL,
    finished_at   INTEGER NOT NULL,
    action        TEXT    NOT NULL,
    rule          INTEGER NOT NULL DEFAULT 0,
    reason        TEXT    NOT NULL DEFAULT '',
    symbols       TEXT    NOT NULL DEFAULT '',
    orders_placed INTEGER NOT NULL DEFAULT 0,
    value_before  TEXT    NOT NULL DEFAULT '0',
    value_after   TEXT    NOT NULL DEFAULT '0',
    soft_error    TEXT    NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS positions (
    order_id     INTEGER PRIMARY KEY,
    symbol       TEXT    NOT NULL,
    limit_price  TEXT    NOT NULL,
    notional     TEXT    NOT NULL,
    drop_pct     REAL    NOT NULL DEFAULT 0,
    worst_drop   REAL    NOT NULL DEFAULT 0,
    placed_at    INTEGER NOT NULL,
    first_seen   INTEGER NOT NULL,
    last_seen    INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_cycles_at ON cycles(started_at DESC);
CREATE INDEX IF NOT EXISTS idx_pos_last  ON positions(last_seen DESC);
`

const (
	retentionCycles    = 90 * 24 * time.Hour
	retentionPositions = 30 * 24 * time.Hour
	dropChangePct      = 0.05 // 5% relative change in drop → rewrite
)

// SQLiteStorage implements ports.CycleStorage on SQLite (pure Go, no CGo).
type SQLiteStorage struct {
	db    *sql.DB
	cache map[int64]float64 // orderID → last written drop %
	mu    sync.Mutex
}

// NewSQLiteStorage opens (or creates) the database at path, applies the
// schema, prunes old rows and warms the cache.
func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteStorage: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite is single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteStorage: apply schema: %w", err)
	}

	s := &SQLiteStorage{
		db:    db,
		cache: make(map[int64]float64),
	}
	s.pruneOld(context.Background())
	s.warmCache(context.Background())
	return s, nil
}

// SaveCycle stores the cycle row, upserts the positions whose drop changed and
// marks the others as seen.
func (s *SQLiteStorage) SaveCycle(ctx context.Context, r domain.CycleReport) error {
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO cycles
			(id, started_at, finished_at, action, rule, reason, symbols,
			 orders_placed, value_before, value_after, soft_error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.StartedAt.UnixMilli(), r.FinishedAt.UnixMilli(), r.Action.String(), r.Rule,
		r.Reason, r.Symbols, r.OrdersPlaced, r.ValueBefore.String(), r.ValueAfter.String(), r.SoftError,
	); err != nil {
		return fmt.Errorf("storage.SaveCycle: insert cycle: %w", err)
	}

	if len(r.Views) == 0 {
		return nil
	}
	changed, seen := s.splitChanged(r.Views)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage.SaveCycle: begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO positions
			(order_id, symbol, limit_price, notional, drop_pct, worst_drop,
			 placed_at, first_seen, last_seen)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(order_id) DO UPDATE SET
			notional   = excluded.notional,
			drop_pct   = excluded.drop_pct,
			worst_drop = MAX(worst_drop, excluded.drop_pct),
			last_seen  = excluded.last_seen
	`)
	if err != nil {
		return fmt.Errorf("storage.SaveCycle: prepare: %w", err)
	}
	defer stmt.Close()

	now := r.FinishedAt.UnixMilli()
	for _, v := range changed {
		drop := v.PriceDropPercent.InexactFloat64()
		if _, err := stmt.ExecContext(ctx,
			v.Order.OrderID,
			v.Symbol(),
			v.Order.Price.String(),
			v.Notional.String(),
			drop,
			drop,
			v.Order.PlacedAt.UnixMilli(),
			now, // first_seen: kept on conflict
			now,
		); err != nil {
			return fmt.Errorf("storage.SaveCycle: upsert %d: %w", v.Order.OrderID, err)
		}
	}
	for _, id := range seen {
		if _, err := tx.ExecContext(ctx, `UPDATE positions SET last_seen = ? WHERE order_id = ?`, now, id); err != nil {
			return fmt.Errorf("storage.SaveCycle: touch %d: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage.SaveCycle: commit: %w", err)
	}
	s.remember(changed)
	return nil
}

// RecentCycles returns the last limit cycles, newest first. Views are not stored.
func (s *SQLiteStorage) RecentCycles(ctx context.Context, limit int) ([]domain.CycleReport, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, started_at, finished_at, action, rule, reason, symbols,
		       orders_placed, value_before, value_after, soft_error
		FROM cycles
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("storage.RecentCycles: query: %w", err)
	}
	defer rows.Close()

	var out []domain.CycleReport
	for rows.Next() {
		var r domain.CycleReport
		var started, finished int64
		var action, before, after string
		if err := rows.Scan(
			&r.ID, &started, &finished, &action, &r.Rule, &r.Reason, &r.Symbols,
			&r.OrdersPlaced, &before, &after, &r.SoftError,
		); err != nil {
			return nil, fmt.Errorf("storage.RecentCycles: scan row: %w", err)
		}
		r.StartedAt = time.UnixMilli(started).UTC()
		r.FinishedAt = time.UnixMilli(finished).UTC()
		r.Action = domain.ParseActionKind(action)
		if r.ValueBefore, err = decimal.NewFromString(before); err != nil {
			return nil, fmt.Errorf("storage.RecentCycles: value_before: %w", err)
		}
		if r.ValueAfter, err = decimal.NewFromString(after); err != nil {
			return nil, fmt.Errorf("storage.RecentCycles: value_after: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Positions returns the tracked orders seen since the given time, deepest
// drop first.
func (s *SQLiteStorage) Positions(ctx context.Context, since time.Time) ([]domain.PositionRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT order_id, symbol, limit_price, notional, drop_pct, worst_drop,
		       placed_at, first_seen, last_seen
		FROM positions
		WHERE last_seen >= ?
		ORDER BY worst_drop DESC
	`, since.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("storage.Positions: query: %w", err)
	}
	defer rows.Close()

	var out []domain.PositionRecord
	for rows.Next() {
		var p domain.PositionRecord
		var price, notional string
		var placed, first, last int64
		if err := rows.Scan(&p.OrderID, &p.Symbol, &price, &notional, &p.DropPct, &p.WorstDrop,
			&placed, &first, &last); err != nil {
			return nil, fmt.Errorf("storage.Positions: scan row: %w", err)
		}
		p.LimitPrice, _ = decimal.NewFromString(price)
		p.Notional, _ = decimal.NewFromString(notional)
		p.PlacedAt = time.UnixMilli(placed).UTC()
		p.FirstSeen = time.UnixMilli(first).UTC()
		p.LastSeen = time.UnixMilli(last).UTC()
		out = append(out, p)
	}
	return out, rows.Err()
}

// Close closes the database.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// --- internal helpers ---

// splitChanged separates the views whose drop moved since the last write from
// the ids of those that only need last_seen bumped. The cache is left alone.
func (s *SQLiteStorage) splitChanged(views []domain.OrderView) (changed []domain.OrderView, seen []int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, v := range views {
		drop := v.PriceDropPercent.InexactFloat64()
		if prev, ok := s.cache[v.Order.OrderID]; ok && relChange(prev, drop) < dropChangePct {
			seen = append(seen, v.Order.OrderID)
			continue
		}
		changed = append(changed, v)
	}
	return changed, seen
}

// remember records the drops written by a committed transaction.
func (s *SQLiteStorage) remember(written []domain.OrderView) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range written {
		s.cache[v.Order.OrderID] = v.PriceDropPercent.InexactFloat64()
	}
}

// pruneOld deletes old rows to keep the database small.
func (s *SQLiteStorage) pruneOld(ctx context.Context) {
	now := time.Now().UTC()
	s.db.ExecContext(ctx, `DELETE FROM cycles WHERE started_at < ?`, now.Add(-retentionCycles).UnixMilli())
	s.db.ExecContext(ctx, `DELETE FROM positions WHERE last_seen < ?`, now.Add(-retentionPositions).UnixMilli())
}

// warmCache preloads the cache so the first cycle after a restart does not
// rewrite every position.
func (s *SQLiteStorage) warmCache(ctx context.Context) {
	rows, err := s.db.QueryContext(ctx, `SELECT order_id, drop_pct FROM positions`)
	if err != nil {
		return
	}
	defer rows.Close()

	s.mu.Lock()
	defer s.mu.Unlock()
	for rows.Next() {
		var id int64
		var drop float64
		if rows.Scan(&id, &drop) == nil {
			s.cache[id] = drop
		}
	}
}

// relChange returns the relative change between two values (0 to +Inf).
func relChange(old, new float64) float64 {
	if old == 0 {
		if new == 0 {
			return 0
		}
		return 1.0 // force a write when the drop leaves zero
	}
	return math.Abs(new-old) / math.Abs(old)
}
