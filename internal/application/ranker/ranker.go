// Package ranker sweeps the exchange for coins worth buying: tradable pairs
// quoted in the base asset, liquid enough, with a long daily history and a
// non-dust price. Scoring and ordering happen in domain.RankCandidates.
package ranker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alejandrodnm/rotabot/internal/application/engine"
	"github.com/alejandrodnm/rotabot/internal/domain"
	"github.com/alejandrodnm/rotabot/internal/ports"
)

// Config tunes the candidate sweep.
type Config struct {
	BaseAsset       string
	MinQuoteVolume  decimal.Decimal // 24h volume floor, in the base asset
	LookbackDays    int             // daily candles requested per symbol
	MinDailyCandles int             // history required to be considered
	MinTrendCandles int             // decline candles required to be ranked
	DustPrice       decimal.Decimal // lowest ask must be above this
	BookDepth       int
	Workers         int           // goroutines for the per-symbol fetches (0 = NumCPU*2)
	Cooldown        time.Duration // pause between the market-wide reads and the per-symbol sweep
}

// DefaultConfig returns the production sweep for a BTC base.
func DefaultConfig() Config {
	return Config{
		BaseAsset:       "BTC",
		MinQuoteVolume:  decimal.NewFromInt(1),
		LookbackDays:    90,
		MinDailyCandles: 90,
		MinTrendCandles: 30,
		DustPrice:       decimal.RequireFromString("0.00000100"),
		BookDepth:       5,
		Cooldown:        time.Second,
	}
}

// Ranker implements engine.CandidateSource.
type Ranker struct {
	cfg Config
	md  ports.MarketData
}

// New creates a Ranker reading market data from md.
func New(cfg Config, md ports.MarketData) *Ranker {
	if cfg.BookDepth <= 0 {
		cfg.BookDepth = 5
	}
	return &Ranker{cfg: cfg, md: md}
}

// Candidates sweeps the market and returns the ranked buy candidates,
// best first, skipping the symbols in exclude.
func (r *Ranker) Candidates(ctx context.Context, exclude map[string]bool) ([]domain.Candidate, error) {
	pool, err := r.Collect(ctx)
	if err != nil {
		return nil, err
	}
	ranked := domain.RankCandidates(pool, exclude, r.cfg.MinTrendCandles)
	slog.Info("ranker: candidates ranked",
		"pool", len(pool),
		"ranked", len(ranked),
		"excluded", len(exclude),
	)
	return ranked, nil
}

// Collect returns the unscored candidate pool: every symbol that passes the
// rules, volume, history and dust filters.
func (r *Ranker) Collect(ctx context.Context) ([]domain.Candidate, error) {
	start := time.Now()

	tickers, err := r.md.Tickers24h(ctx)
	if err != nil {
		return nil, fmt.Errorf("ranker.Collect: tickers: %w", err)
	}
	rules, err := r.md.AllSymbolRules(ctx)
	if err != nil {
		return nil, fmt.Errorf("ranker.Collect: rules: %w", err)
	}

	eligible := filterEligible(r.cfg, rules, tickers)

	// Rate-limit courtesy: the ticker sweep is heavy on the request weight.
	slog.Debug("ranker: cooling down before sweep", "eligible", len(eligible), "cooldown", r.cfg.Cooldown)
	if err := engine.Sleep(ctx, r.cfg.Cooldown); err != nil {
		return nil, fmt.Errorf("ranker.Collect: cooldown: %w", err)
	}

	pool := collectConcurrent(ctx, r.md, r.cfg, eligible)
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("ranker.Collect: %w", err)
	}

	slog.Debug("ranker: sweep complete",
		"symbols", len(rules),
		"eligible", len(eligible),
		"pool", len(pool),
		"duration", time.Since(start).Round(time.Millisecond),
	)
	return pool, nil
}
