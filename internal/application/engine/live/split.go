package live

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/alejandrodnm/rotabot/internal/domain"
)

var hundred = decimal.NewFromInt(100)

// split liquidates the order and spreads the proceeds over the ranked
// candidates in Fibonacci-weighted tranches.
func (c *cycle) split(ctx context.Context, v domain.OrderView) error {
	cands, err := c.candidates(ctx)
	if err != nil {
		return fmt.Errorf("live.split %s: %w", v.Symbol(), err)
	}
	peg, err := c.pegRatio(v)
	if err != nil {
		return fmt.Errorf("live.split: %w", err)
	}

	proceeds, err := c.liquidate(ctx, v)
	if err != nil {
		return err
	}
	tranches := domain.FibonacciTranches(proceeds, c.e.cfg.Decision.SplitUnit, len(cands))
	slog.Info("live: splitting",
		"symbol", v.Symbol(),
		"proceeds", proceeds,
		"tranches", len(tranches),
	)
	return c.reinvest(ctx, tranches, peg)
}

// extract liquidates each target and re-buys two half-sized positions.
func (c *cycle) extract(ctx context.Context, targets []domain.OrderView) error {
	if _, err := c.candidates(ctx); err != nil {
		return fmt.Errorf("live.extract: %w", err)
	}
	for _, v := range targets {
		peg, err := c.pegRatio(v)
		if err != nil {
			return fmt.Errorf("live.extract: %w", err)
		}
		proceeds, err := c.liquidate(ctx, v)
		if err != nil {
			return err
		}
		tranches := domain.Halves(proceeds, c.e.cfg.Decision.SplitUnit)
		if tranches == nil {
			tranches = []decimal.Decimal{proceeds}
		}
		slog.Info("live: extracting", "symbol", v.Symbol(), "proceeds", proceeds, "tranches", len(tranches))
		if err := c.reinvest(ctx, tranches, peg); err != nil {
			return err
		}
	}
	return nil
}

// diversify optionally splits one order, then acquires a new position when
// the free balance still allows it.
func (c *cycle) diversify(ctx context.Context, dec domain.Decision) error {
	if len(dec.Orders) > 0 {
		if err := c.split(ctx, dec.Orders[0]); err != nil {
			return err
		}
	}
	if !dec.Acquire {
		return nil
	}
	free, err := c.freeBalance(ctx, c.e.cfg.BaseAsset)
	if err != nil {
		return fmt.Errorf("live.diversify: %w", err)
	}
	if free.LessThan(c.e.cfg.Decision.AcquireUnit) {
		slog.Info("live: acquire skipped, not enough free balance", "free", free, "unit", c.e.cfg.Decision.AcquireUnit)
		return nil
	}
	return c.acquire(ctx)
}

// pegRatio is limit/current × (1 + SplitMarginPercent/100): the factor that
// makes the replacement sells recover the cancelled order's nominal value.
func (c *cycle) pegRatio(v domain.OrderView) (decimal.Decimal, error) {
	if !v.CurrentPrice.IsPositive() {
		return decimal.Zero, fmt.Errorf("%s has no current price: %w", v.Symbol(), domain.ErrStalePrice)
	}
	margin := decimal.NewFromInt(1).Add(c.e.cfg.SplitMarginPercent.Div(hundred))
	return v.Order.Price.Div(v.CurrentPrice).Mul(margin), nil
}

// reinvest buys one candidate per tranche and protects each with a sell at
// fill price × peg. A tranche under the symbol minimum is skipped.
func (c *cycle) reinvest(ctx context.Context, tranches []decimal.Decimal, peg decimal.Decimal) error {
	for _, amount := range tranches {
		cand := c.takeCandidate()
		err := c.buyAndProtect(ctx, cand.Rules, amount, func(avg decimal.Decimal) decimal.Decimal {
			return avg.Mul(peg)
		})
		if errors.Is(err, domain.ErrBelowMinNotional) {
			slog.Info("live: tranche skipped", "symbol", cand.Symbol(), "amount", amount, "err", err)
			continue
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// cancel liquidates the order with no replacement.
func (c *cycle) cancel(ctx context.Context, v domain.OrderView) error {
	proceeds, err := c.liquidate(ctx, v)
	if err != nil {
		return err
	}
	slog.Info("live: position closed", "symbol", v.Symbol(), "proceeds", proceeds, "notional", v.Notional)
	return nil
}
