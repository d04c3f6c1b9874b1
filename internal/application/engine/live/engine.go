package live

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alejandrodnm/rotabot/internal/application/engine"
	"github.com/alejandrodnm/rotabot/internal/domain"
	"github.com/alejandrodnm/rotabot/internal/metrics"
	"github.com/alejandrodnm/rotabot/internal/ports"
)

const (
	defaultBookDepth      = 5
	defaultRecentMinutes  = 24 * 60
	defaultRetryCooldown  = 3 * time.Second
	defaultSettleInterval = 500 * time.Millisecond
	defaultSettleAttempts = 20
	clientIDPrefix        = "rb"
)

// Config holds the immutable configuration of the live engine.
type Config struct {
	BaseAsset string // asset every position is quoted in (BTC)
	FeeAsset  string // asset commissions are paid in (BNB), empty to disable the reserve

	Pricing  domain.PricingConfig
	Decision domain.DecisionConfig

	BookDepth     int // order-book levels fetched per symbol
	RecentMinutes int // 15m-candle window used for volatility

	// SplitMarginPercent is added on top of the recovered value when a split
	// or extract re-sells its tranches.
	SplitMarginPercent decimal.Decimal

	AcquireMinVolatility    decimal.Decimal
	AcquireMaxVolatility    decimal.Decimal
	AcquireMinMarginPercent decimal.Decimal
	AcquireMaxDriftPercent  decimal.Decimal
	AcquireProfitPercent    decimal.Decimal

	// FeeReserveFloor is the fee-asset quantity below which the reserve is
	// topped up, spending at most FeeReserveSpend of the base asset.
	FeeReserveFloor decimal.Decimal
	FeeReserveSpend decimal.Decimal

	RetryCooldown      time.Duration
	SettlePollInterval time.Duration
	SettleMaxAttempts  int
}

// DefaultConfig returns the production engine configuration for a BTC base.
func DefaultConfig() Config {
	return Config{
		BaseAsset:               "BTC",
		FeeAsset:                "BNB",
		Pricing:                 domain.DefaultPricingConfig(),
		Decision:                domain.DefaultDecisionConfig(),
		BookDepth:               defaultBookDepth,
		RecentMinutes:           defaultRecentMinutes,
		SplitMarginPercent:      decimal.NewFromInt(1),
		AcquireMinVolatility:    decimal.NewFromInt(2),
		AcquireMaxVolatility:    decimal.NewFromInt(15),
		AcquireMinMarginPercent: decimal.NewFromInt(1),
		AcquireMaxDriftPercent:  decimal.RequireFromString("0.5"),
		AcquireProfitPercent:    decimal.NewFromInt(2),
		FeeReserveFloor:         decimal.RequireFromString("0.05"),
		FeeReserveSpend:         decimal.RequireFromString("0.0002"),
		RetryCooldown:           defaultRetryCooldown,
		SettlePollInterval:      defaultSettleInterval,
		SettleMaxAttempts:       defaultSettleAttempts,
	}
}

// Engine runs rotation cycles against an exchange account. One cycle takes
// at most one capital-reallocation action.
type Engine struct {
	ex         ports.Exchange
	candidates engine.CandidateSource
	store      ports.CycleStorage
	notifier   ports.Notifier
	cfg        Config
	now        func() time.Time

	// mu keeps the mutating phase of a cycle non-reentrant.
	mu sync.Mutex
}

// New creates a live engine. store and notifier may be nil.
func New(
	ex ports.Exchange,
	candidates engine.CandidateSource,
	store ports.CycleStorage,
	notifier ports.Notifier,
	cfg Config,
) *Engine {
	if cfg.BookDepth <= 0 {
		cfg.BookDepth = defaultBookDepth
	}
	if cfg.RecentMinutes <= 0 {
		cfg.RecentMinutes = defaultRecentMinutes
	}
	if cfg.SettleMaxAttempts <= 0 {
		cfg.SettleMaxAttempts = defaultSettleAttempts
	}
	return &Engine{
		ex:         ex,
		candidates: candidates,
		store:      store,
		notifier:   notifier,
		cfg:        cfg,
		now:        time.Now,
	}
}

// RunOnce executes one cycle: fee reserve → snapshot → decide → execute →
// solvency check → report. Soft failures end the strategy and are recorded in
// the report; hard failures and value regressions are returned. A call made
// while another cycle runs fails fast with domain.ErrCycleInProgress.
func (e *Engine) RunOnce(ctx context.Context) (domain.CycleReport, error) {
	if !e.mu.TryLock() {
		return domain.CycleReport{}, domain.ErrCycleInProgress
	}
	defer e.mu.Unlock()

	report := domain.CycleReport{ID: uuid.NewString(), StartedAt: e.now().UTC()}

	// 1. Fee reserve, before the value is measured
	if err := e.maintainFeeReserve(ctx); err != nil {
		if !domain.IsSoft(err) {
			return report, fmt.Errorf("live.RunOnce: fee reserve: %w", err)
		}
		slog.Warn("live: fee reserve skipped", "err", err)
	}

	// 2. Snapshot
	before, err := e.snapshot(ctx)
	if err != nil {
		return report, fmt.Errorf("live.RunOnce: snapshot: %w", err)
	}
	report.ValueBefore = before.Value()
	report.Views = before.Views
	slog.Info("live: cycle start",
		"orders", len(before.Views),
		"symbols", before.DistinctSymbols,
		"free", before.FreeBalance,
		"locked", before.LockedTotal,
		"value", report.ValueBefore,
	)

	// 3. Decide
	dec := domain.Decide(before, e.cfg.Decision)
	report.Action, report.Rule, report.Reason, report.Symbols = dec.Kind, dec.Rule, dec.Reason, dec.Symbols()
	metrics.IncDecision(dec.Kind.String())
	slog.Info("live: decision",
		"action", dec.Kind,
		"rule", dec.Rule,
		"reason", dec.Reason,
		"symbols", report.Symbols,
	)

	// 4. Execute
	c := &cycle{e: e, snap: before}
	runErr := c.execute(ctx, dec)
	if runErr != nil && domain.IsSoft(runErr) {
		slog.Warn("live: strategy stopped", "action", dec.Kind, "err", runErr)
		report.SoftError = runErr.Error()
		runErr = nil
	}
	report.OrdersPlaced = c.placed

	// 5. Solvency, also after a failed strategy
	var solvencyErr error
	after, err := e.snapshot(ctx)
	if err != nil {
		solvencyErr = fmt.Errorf("live.RunOnce: closing snapshot: %w", err)
	} else {
		report.ValueAfter = after.Value()
		metrics.SetPortfolioValue(report.ValueAfter.InexactFloat64())
		solvencyErr = domain.CheckSolvency(report.ValueBefore, report.ValueAfter)
		if solvencyErr != nil {
			metrics.IncValueRegression()
			slog.Error("live: VALUE REGRESSION",
				"before", report.ValueBefore,
				"after", report.ValueAfter,
				"delta", report.ValueDelta(),
			)
		} else {
			slog.Info("live: value check passed",
				"before", report.ValueBefore,
				"after", report.ValueAfter,
				"delta", report.ValueDelta(),
			)
		}
	}

	report.FinishedAt = e.now().UTC()
	metrics.ObserveCycle(report.Duration().Seconds())
	e.record(ctx, report)

	return report, errors.Join(runErr, solvencyErr)
}

// record persists and prints the report. Failures only warn.
func (e *Engine) record(ctx context.Context, r domain.CycleReport) {
	if e.store != nil {
		if err := e.store.SaveCycle(ctx, r); err != nil {
			slog.Warn("live: storage error", "err", err)
		}
	}
	if e.notifier != nil {
		if err := e.notifier.Notify(ctx, r); err != nil {
			slog.Warn("live: notifier error", "err", err)
		}
	}
}

// Run executes a cycle immediately and then every interval until ctx is
// cancelled. Cycle errors are logged, never fatal. beforeCycle, when set, runs
// ahead of each cycle (paper matching).
func (e *Engine) Run(ctx context.Context, interval time.Duration, beforeCycle func(context.Context)) error {
	slog.Info("live: engine starting", "interval", interval, "base", e.cfg.BaseAsset)

	runCycle := func() {
		if beforeCycle != nil {
			beforeCycle(ctx)
		}
		if _, err := e.RunOnce(ctx); err != nil {
			slog.Error("live: cycle failed", "err", err)
		}
	}

	runCycle()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			slog.Info("live: engine stopped")
			return nil
		case <-ticker.C:
			runCycle()
		}
	}
}
