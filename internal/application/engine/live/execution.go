package live

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/alejandrodnm/rotabot/internal/application/engine"
	"github.com/alejandrodnm/rotabot/internal/domain"
	"github.com/alejandrodnm/rotabot/internal/metrics"
)

// cycle is the mutable state of one RunOnce: the snapshot the decision was
// taken on, the lazily ranked candidates and the placed-order count.
type cycle struct {
	e    *Engine
	snap domain.PortfolioSnapshot

	ranked   []domain.Candidate
	rankedOK bool
	next     int // next candidate handed out by takeCandidate
	placed   int
}

// execute runs the strategy selected by the decision.
func (c *cycle) execute(ctx context.Context, dec domain.Decision) error {
	if dec.Noop() {
		slog.Info("live: rule matched without an eligible order, nothing to do",
			"action", dec.Kind, "rule", dec.Rule)
		return nil
	}
	switch dec.Kind {
	case domain.ActionNone:
		return nil
	case domain.ActionRebuy:
		return c.rebuyAll(ctx, dec.Orders, dec.IgnoreHold)
	case domain.ActionSplit:
		return c.split(ctx, dec.Orders[0])
	case domain.ActionExtract:
		return c.extract(ctx, dec.Orders)
	case domain.ActionDiversify:
		return c.diversify(ctx, dec)
	case domain.ActionCancel:
		return c.cancel(ctx, dec.Orders[0])
	default:
		return fmt.Errorf("live.execute: unknown action %d", dec.Kind)
	}
}

// candidates ranks the market on first use. Symbols with an open position and
// forbidden pairs are excluded.
func (c *cycle) candidates(ctx context.Context) ([]domain.Candidate, error) {
	if c.rankedOK {
		return c.ranked, nil
	}
	if c.e.candidates == nil {
		return nil, domain.ErrNoCandidates
	}
	exclude := c.snap.Symbols()
	for s, forbidden := range c.e.cfg.Decision.ForbiddenPairs {
		if forbidden {
			exclude[s] = true
		}
	}
	ranked, err := c.e.candidates.Candidates(ctx, exclude)
	if err != nil {
		return nil, fmt.Errorf("live.candidates: %w", err)
	}
	if len(ranked) == 0 {
		return nil, domain.ErrNoCandidates
	}
	c.ranked, c.rankedOK = ranked, true
	return ranked, nil
}

// takeCandidate hands out ranked candidates in order, wrapping around.
func (c *cycle) takeCandidate() domain.Candidate {
	cand := c.ranked[c.next%len(c.ranked)]
	c.next++
	return cand
}

// retryOnce runs a placement and, if it fails, runs it again once after the
// retry cooldown. The client order id is reused so a duplicate is rejected.
func (c *cycle) retryOnce(ctx context.Context, op string, place func() (domain.PlacedOrder, error)) (domain.PlacedOrder, error) {
	res, err := place()
	if err == nil || ctx.Err() != nil {
		return res, err
	}
	metrics.IncRetry(op)
	slog.Warn("live: placement failed, retrying once",
		"op", op,
		"cooldown", c.e.cfg.RetryCooldown,
		"err", err,
	)
	if serr := engine.Sleep(ctx, c.e.cfg.RetryCooldown); serr != nil {
		return res, errors.Join(err, serr)
	}
	return place()
}

func (c *cycle) marketOrder(ctx context.Context, r domain.SymbolRules, side domain.Side, qty decimal.Decimal) (domain.PlacedOrder, error) {
	clientID := engine.ClientOrderID(clientIDPrefix)
	op := "market_" + strings.ToLower(string(side))
	placed, err := c.retryOnce(ctx, op, func() (domain.PlacedOrder, error) {
		return c.e.ex.PlaceMarketOrder(ctx, r.Symbol, side, qty, clientID)
	})
	if err != nil {
		return domain.PlacedOrder{}, err
	}
	c.placed++
	metrics.IncOrder(string(side), "market")
	slog.Info("live: market order filled",
		"symbol", r.Symbol,
		"side", side,
		"qty", placed.ExecutedQty,
		"avg_price", placed.AvgPrice(),
		"quote", placed.QuoteQty,
	)
	return placed, nil
}

func (c *cycle) limitOrder(ctx context.Context, r domain.SymbolRules, side domain.Side, qty, price decimal.Decimal) (domain.PlacedOrder, error) {
	clientID := engine.ClientOrderID(clientIDPrefix)
	op := "limit_" + strings.ToLower(string(side))
	placed, err := c.retryOnce(ctx, op, func() (domain.PlacedOrder, error) {
		return c.e.ex.PlaceLimitOrder(ctx, r.Symbol, side, qty, price, clientID)
	})
	if err != nil {
		return domain.PlacedOrder{}, err
	}
	c.placed++
	metrics.IncOrder(string(side), "limit")
	slog.Info("live: limit order placed",
		"symbol", r.Symbol,
		"side", side,
		"qty", qty,
		"price", price,
		"order_id", placed.OrderID,
	)
	return placed, nil
}

// freeBalance re-reads the free amount of asset.
func (c *cycle) freeBalance(ctx context.Context, asset string) (decimal.Decimal, error) {
	balances, err := c.e.ex.Balances(ctx)
	if err != nil {
		return decimal.Zero, fmt.Errorf("balances: %w", err)
	}
	for _, b := range balances {
		if b.Asset == asset {
			return b.Free, nil
		}
	}
	return decimal.Zero, nil
}

// awaitFree polls balances until asset has at least want free. It gives up
// after SettleMaxAttempts polls with domain.ErrSettlementTimeout.
func (c *cycle) awaitFree(ctx context.Context, asset string, want decimal.Decimal) (decimal.Decimal, error) {
	var free decimal.Decimal
	for attempt := 1; attempt <= c.e.cfg.SettleMaxAttempts; attempt++ {
		var err error
		if free, err = c.freeBalance(ctx, asset); err != nil {
			return decimal.Zero, fmt.Errorf("live.awaitFree %s: %w", asset, err)
		}
		if free.GreaterThanOrEqual(want) {
			return free, nil
		}
		slog.Debug("live: waiting for balance to settle",
			"asset", asset, "free", free, "want", want, "attempt", attempt)
		if err := engine.Sleep(ctx, c.e.cfg.SettlePollInterval); err != nil {
			return decimal.Zero, fmt.Errorf("live.awaitFree %s: %w", asset, err)
		}
	}
	return free, fmt.Errorf("live.awaitFree: %s free %s, want %s after %d polls: %w",
		asset, free, want, c.e.cfg.SettleMaxAttempts, domain.ErrSettlementTimeout)
}

// bestPrices fetches a fresh book for symbol.
func (c *cycle) bestPrices(ctx context.Context, symbol string) (bid, ask decimal.Decimal, err error) {
	book, err := c.e.ex.OrderBook(ctx, symbol, c.e.cfg.BookDepth)
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("book %s: %w", symbol, err)
	}
	bid, okBid := book.BestBid()
	ask, okAsk := book.BestAsk()
	if !okBid || !okAsk {
		return bid, ask, fmt.Errorf("%s book is empty: %w", symbol, domain.ErrStalePrice)
	}
	return bid, ask, nil
}

// liquidate cancels the sell order and sells what it held at market. It
// returns the base asset received net of commission. Nothing is cancelled
// when the sale would break the minimum notional.
func (c *cycle) liquidate(ctx context.Context, v domain.OrderView) (decimal.Decimal, error) {
	r := v.Rules
	bid, _, err := c.bestPrices(ctx, v.Symbol())
	if err != nil {
		return decimal.Zero, fmt.Errorf("live.liquidate: %w", err)
	}
	qty := domain.RoundQuantity(r, v.Outstanding)
	if !domain.MeetsMinNotional(r, qty, bid) {
		return decimal.Zero, fmt.Errorf("live.liquidate %s: %s @ %s: %w", v.Symbol(), qty, bid, domain.ErrBelowMinNotional)
	}

	if err := c.cancelSell(ctx, v); err != nil {
		return decimal.Zero, fmt.Errorf("live.liquidate: %w", err)
	}

	if _, err := c.awaitFree(ctx, r.Coin, qty); err != nil {
		return decimal.Zero, err
	}
	sold, err := c.marketOrder(ctx, r, domain.SideSell, qty)
	if err != nil {
		return decimal.Zero, fmt.Errorf("live.liquidate: sell %s: %w", v.Symbol(), c.restoreSell(ctx, v, err))
	}
	return sold.QuoteQty.Sub(sold.CommissionIn(r.Quote)), nil
}

// cancelSell cancels the protective sell of v. When the exchange no longer
// has it open, the final status and fills are looked up so the soft failure
// tells whether the order filled in between.
func (c *cycle) cancelSell(ctx context.Context, v domain.OrderView) error {
	err := c.e.ex.CancelOrder(ctx, v.Symbol(), v.Order.OrderID)
	if err == nil {
		slog.Info("live: order cancelled", "symbol", v.Symbol(), "order_id", v.Order.OrderID, "qty", v.Outstanding)
		return nil
	}
	if !errors.Is(err, domain.ErrOrderNotFound) {
		return err
	}

	status, serr := c.e.ex.OrderStatus(ctx, v.Symbol(), v.Order.OrderID)
	if serr != nil {
		slog.Debug("live: vanished order has no status", "symbol", v.Symbol(), "err", serr)
		return err
	}
	if status != domain.StatusFilled && status != domain.StatusPartiallyFilled {
		return fmt.Errorf("%w (status %s)", err, status)
	}
	fills, ferr := c.e.ex.Fills(ctx, v.Symbol(), v.Order.OrderID)
	if ferr != nil {
		slog.Debug("live: vanished order has no fills", "symbol", v.Symbol(), "err", ferr)
		return fmt.Errorf("%w (status %s)", err, status)
	}
	qty, quote := decimal.Zero, decimal.Zero
	for _, f := range fills {
		qty = qty.Add(f.Qty)
		quote = quote.Add(f.Qty.Mul(f.Price))
	}
	quote = quote.RoundFloor(domain.Scale)
	slog.Info("live: order filled before it could be cancelled",
		"symbol", v.Symbol(), "status", status, "qty", qty, "quote", quote)
	return fmt.Errorf("%w (status %s, %s %s sold for %s %s)", err, status, qty, v.Rules.Coin, quote, v.Rules.Quote)
}

// restoreSell puts the cancelled sell back at its original price after the
// market order that should have replaced it failed. It returns cause, joined
// with the placement error when the coin stays unprotected.
func (c *cycle) restoreSell(ctx context.Context, v domain.OrderView, cause error) error {
	if _, err := c.limitOrder(ctx, v.Rules, domain.SideSell, v.Outstanding, v.Order.Price); err != nil {
		slog.Error("live: CANCELLED POSITION LEFT UNPROTECTED",
			"symbol", v.Symbol(), "qty", v.Outstanding, "err", err)
		return errors.Join(cause, err)
	}
	slog.Warn("live: cancelled sell restored", "symbol", v.Symbol(), "qty", v.Outstanding, "price", v.Order.Price)
	return cause
}

// buyAndProtect spends about amount of the base asset on the symbol at
// market and rests a sell for everything received at sellPrice(avgFill).
func (c *cycle) buyAndProtect(ctx context.Context, r domain.SymbolRules, amount decimal.Decimal, sellPrice func(avg decimal.Decimal) decimal.Decimal) error {
	_, ask, err := c.bestPrices(ctx, r.Symbol)
	if err != nil {
		return fmt.Errorf("live.buyAndProtect: %w", err)
	}
	qty, err := domain.NormalizeBuy(r, amount.Div(ask), ask)
	if err != nil {
		return fmt.Errorf("live.buyAndProtect: %w", err)
	}

	bought, err := c.marketOrder(ctx, r, domain.SideBuy, qty)
	if err != nil {
		return fmt.Errorf("live.buyAndProtect: buy %s: %w", r.Symbol, err)
	}
	received := bought.ExecutedQty.Sub(bought.CommissionIn(r.Coin))
	if _, err := c.awaitFree(ctx, r.Coin, received); err != nil {
		return err
	}

	sellQty, price, err := domain.NormalizeSell(r, received, sellPrice(bought.AvgPrice()))
	if err != nil {
		return fmt.Errorf("live.buyAndProtect: %w", err)
	}
	if _, err := c.limitOrder(ctx, r, domain.SideSell, sellQty, price); err != nil {
		slog.Error("live: BOUGHT ASSET LEFT UNPROTECTED", "symbol", r.Symbol, "qty", received, "err", err)
		return fmt.Errorf("live.buyAndProtect: protective sell %s: %w", r.Symbol, err)
	}
	return nil
}
