package live

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alejandrodnm/rotabot/internal/domain"
)

// rebuyAll rebuys each target in turn. A soft failure stops the remaining
// targets; guards that do not hold only skip the order.
func (c *cycle) rebuyAll(ctx context.Context, targets []domain.OrderView, ignoreHold bool) error {
	for _, v := range targets {
		if err := c.rebuy(ctx, v, ignoreHold); err != nil {
			return err
		}
	}
	return nil
}

// rebuy cancels the sell, buys the outstanding quantity back at market and
// rests a sell for the doubled position at the order's target price.
func (c *cycle) rebuy(ctx context.Context, v domain.OrderView, ignoreHold bool) error {
	cfg := c.e.cfg.Decision
	log := slog.With("symbol", v.Symbol(), "order_id", v.Order.OrderID)

	if v.SellMarginPercent.LessThan(cfg.MinProfitPercent) {
		log.Info("live: rebuy skipped, margin below minimum",
			"margin", v.SellMarginPercent, "min", cfg.MinProfitPercent)
		return nil
	}
	if !ignoreHold && !v.HoldElapsed() {
		log.Info("live: rebuy skipped, hold not elapsed", "remaining_h", v.RemainingHoldHours)
		return nil
	}

	r := v.Rules
	_, ask, err := c.bestPrices(ctx, v.Symbol())
	if err != nil {
		return fmt.Errorf("live.rebuy: %w", err)
	}
	qty, err := domain.NormalizeBuy(r, v.Outstanding, ask)
	if err != nil {
		return fmt.Errorf("live.rebuy: %w", err)
	}
	free, err := c.freeBalance(ctx, r.Quote)
	if err != nil {
		return fmt.Errorf("live.rebuy: %w", err)
	}
	if cost := qty.Mul(ask).RoundCeil(domain.Scale); cost.GreaterThan(free) {
		log.Info("live: rebuy skipped, not enough free balance", "cost", cost, "free", free)
		return nil
	}

	if err := c.cancelSell(ctx, v); err != nil {
		return fmt.Errorf("live.rebuy: %w", err)
	}
	bought, err := c.marketOrder(ctx, r, domain.SideBuy, qty)
	if err != nil {
		return fmt.Errorf("live.rebuy: buy %s: %w", v.Symbol(), c.restoreSell(ctx, v, err))
	}

	total := v.Outstanding.Add(bought.ExecutedQty).Sub(bought.CommissionIn(r.Coin))
	if _, err := c.awaitFree(ctx, r.Coin, total); err != nil {
		return err
	}
	sellQty, price, err := domain.NormalizeSell(r, total, v.TargetPrice)
	if err != nil {
		return fmt.Errorf("live.rebuy: %w", err)
	}
	if _, err := c.limitOrder(ctx, r, domain.SideSell, sellQty, price); err != nil {
		slog.Error("live: REBUY LEFT POSITION UNPROTECTED", "symbol", v.Symbol(), "qty", total, "err", err)
		return fmt.Errorf("live.rebuy: sell %s: %w", v.Symbol(), err)
	}

	log.Info("live: rebought",
		"bought", bought.ExecutedQty,
		"avg_price", bought.AvgPrice(),
		"sell_qty", sellQty,
		"target", price,
	)
	return nil
}
