package live

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/alejandrodnm/rotabot/internal/domain"
)

// acquire opens a brand-new position on the first ranked candidate whose
// recent volatility and estimated margin pass the filters.
func (c *cycle) acquire(ctx context.Context) error {
	cands, err := c.candidates(ctx)
	if err != nil {
		return fmt.Errorf("live.acquire: %w", err)
	}

	for _, cand := range cands {
		ok, err := c.acquirable(ctx, cand)
		if err != nil {
			return fmt.Errorf("live.acquire: %w", err)
		}
		if !ok {
			continue
		}
		return c.acquireCandidate(ctx, cand)
	}
	return fmt.Errorf("live.acquire: none of %d candidates passes the filters: %w", len(cands), domain.ErrNoCandidates)
}

// acquirable applies the volatility band and the estimated-margin floor over
// the recent 15m candles.
func (c *cycle) acquirable(ctx context.Context, cand domain.Candidate) (bool, error) {
	cfg := c.e.cfg
	recent, err := c.e.ex.RecentCandles(ctx, cand.Symbol(), cfg.RecentMinutes)
	if err != nil {
		return false, fmt.Errorf("recent candles %s: %w", cand.Symbol(), err)
	}
	if len(recent) == 0 || !cand.CurrentPrice.IsPositive() {
		return false, nil
	}

	vol := domain.VolatilityPercent(recent)
	if vol.LessThan(cfg.AcquireMinVolatility) || vol.GreaterThan(cfg.AcquireMaxVolatility) {
		slog.Debug("live: candidate volatility out of band", "symbol", cand.Symbol(), "volatility", vol)
		return false, nil
	}

	high := recent[0].High
	for _, k := range recent[1:] {
		high = decimal.Max(high, k.High)
	}
	margin := hundred.Mul(high.Div(cand.CurrentPrice).Sub(decimal.NewFromInt(1)))
	if margin.LessThan(cfg.AcquireMinMarginPercent) {
		slog.Debug("live: candidate margin too thin", "symbol", cand.Symbol(), "margin", margin)
		return false, nil
	}
	return true, nil
}

// acquireCandidate re-checks the price against the scored one, then buys
// AcquireUnit worth and rests a protective sell.
func (c *cycle) acquireCandidate(ctx context.Context, cand domain.Candidate) error {
	cfg := c.e.cfg
	_, ask, err := c.bestPrices(ctx, cand.Symbol())
	if err != nil {
		return fmt.Errorf("live.acquire: %w", err)
	}
	drift := hundred.Mul(ask.Div(cand.CurrentPrice).Sub(decimal.NewFromInt(1))).Abs()
	if drift.GreaterThan(cfg.AcquireMaxDriftPercent) {
		return fmt.Errorf("live.acquire %s: ask %s vs scored %s (%s%%): %w",
			cand.Symbol(), ask, cand.CurrentPrice, drift.StringFixed(2), domain.ErrStalePrice)
	}

	target := ask.Mul(decimal.NewFromInt(1).Add(cfg.AcquireProfitPercent.Div(hundred)))
	slog.Info("live: acquiring",
		"symbol", cand.Symbol(),
		"amount", cfg.Decision.AcquireUnit,
		"ask", ask,
		"target", target,
		"score", cand.Score,
	)
	return c.buyAndProtect(ctx, cand.Rules, cfg.Decision.AcquireUnit, func(decimal.Decimal) decimal.Decimal {
		return target
	})
}
