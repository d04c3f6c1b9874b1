package live

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/alejandrodnm/rotabot/internal/domain"
)

// maintainFeeReserve tops up the fee asset with a resting buy at the best bid
// when its free balance falls below the floor. At most one top-up rests at a
// time.
func (e *Engine) maintainFeeReserve(ctx context.Context) error {
	cfg := e.cfg
	if cfg.FeeAsset == "" || cfg.FeeAsset == cfg.BaseAsset || !cfg.FeeReserveSpend.IsPositive() {
		return nil
	}
	symbol := cfg.FeeAsset + cfg.BaseAsset

	balances, err := e.ex.Balances(ctx)
	if err != nil {
		return fmt.Errorf("live.maintainFeeReserve: balances: %w", err)
	}
	feeFree, baseFree := decimal.Zero, decimal.Zero
	for _, b := range balances {
		switch b.Asset {
		case cfg.FeeAsset:
			feeFree = b.Free
		case cfg.BaseAsset:
			baseFree = b.Free
		}
	}
	if feeFree.GreaterThanOrEqual(cfg.FeeReserveFloor) {
		return nil
	}

	orders, err := e.ex.OpenOrders(ctx)
	if err != nil {
		return fmt.Errorf("live.maintainFeeReserve: open orders: %w", err)
	}
	for _, o := range orders {
		if o.Symbol == symbol && o.Side == domain.SideBuy {
			slog.Debug("live: fee top-up already resting", "symbol", symbol, "order_id", o.OrderID)
			return nil
		}
	}

	r, err := e.ex.SymbolRules(ctx, symbol)
	if errors.Is(err, domain.ErrUnknownSymbol) {
		slog.Warn("live: fee asset has no base market", "symbol", symbol)
		return nil
	}
	if err != nil {
		return fmt.Errorf("live.maintainFeeReserve: %w", err)
	}
	book, err := e.ex.OrderBook(ctx, symbol, e.cfg.BookDepth)
	if err != nil {
		return fmt.Errorf("live.maintainFeeReserve: book: %w", err)
	}
	bid, ok := book.BestBid()
	if !ok {
		return fmt.Errorf("live.maintainFeeReserve: %s has no bids: %w", symbol, domain.ErrStalePrice)
	}

	spend := decimal.Min(cfg.FeeReserveSpend, baseFree)
	price := domain.RoundPriceDown(r, bid)
	qty, err := domain.NormalizeBuy(r, spend.Div(price), price)
	if err != nil {
		return fmt.Errorf("live.maintainFeeReserve: %w", err)
	}

	c := &cycle{e: e}
	if _, err := c.limitOrder(ctx, r, domain.SideBuy, qty, price); err != nil {
		return fmt.Errorf("live.maintainFeeReserve: %w", err)
	}
	slog.Info("live: fee reserve top-up placed",
		"asset", cfg.FeeAsset, "free", feeFree, "floor", cfg.FeeReserveFloor, "qty", qty, "price", price)
	return nil
}
