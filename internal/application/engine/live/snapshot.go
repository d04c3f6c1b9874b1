package live

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/alejandrodnm/rotabot/internal/domain"
)

const fetchConcurrency = 8

// marketState is what one symbol contributes to a snapshot.
type marketState struct {
	rules  domain.SymbolRules
	book   domain.OrderBook
	recent []domain.Candle
	listed bool
}

// snapshot reads the live account once and derives the PortfolioSnapshot.
// Only SELL orders are positions; resting BUY orders are ignored.
func (e *Engine) snapshot(ctx context.Context) (domain.PortfolioSnapshot, error) {
	orders, err := e.ex.OpenOrders(ctx)
	if err != nil {
		return domain.PortfolioSnapshot{}, fmt.Errorf("live.snapshot: open orders: %w", err)
	}
	balances, err := e.ex.Balances(ctx)
	if err != nil {
		return domain.PortfolioSnapshot{}, fmt.Errorf("live.snapshot: balances: %w", err)
	}

	sells := make([]domain.OpenOrder, 0, len(orders))
	positions := make(map[string]bool)
	for _, o := range orders {
		if o.Side != domain.SideSell {
			continue
		}
		sells = append(sells, o)
		positions[o.Symbol] = true
	}

	baseBal := domain.Balance{Asset: e.cfg.BaseAsset}
	held := make([]domain.Balance, 0, len(balances))
	for _, b := range balances {
		if b.Asset == e.cfg.BaseAsset {
			baseBal = b
			continue
		}
		held = append(held, b)
	}

	// Every position symbol plus the base market of every held asset.
	need := make(map[string]bool, len(positions)+len(held))
	for s := range positions {
		need[s] = true
	}
	for _, b := range held {
		need[b.Asset+e.cfg.BaseAsset] = true
	}
	states, err := e.fetchMarkets(ctx, need, positions)
	if err != nil {
		return domain.PortfolioSnapshot{}, err
	}

	free := baseBal.Free
	freeOther, total := decimal.Zero, baseBal.Total()
	for _, b := range held {
		st := states[b.Asset+e.cfg.BaseAsset]
		bid, ok := st.book.BestBid()
		if !st.listed || !ok {
			slog.Debug("live: asset without base market, not valued", "asset", b.Asset)
			continue
		}
		freeOther = freeOther.Add(b.Free.Mul(bid).RoundFloor(domain.Scale))
		total = total.Add(b.Total().Mul(bid).RoundFloor(domain.Scale))
	}

	lockedBySymbol, lockedTotal := domain.LockedPerSymbol(sells)
	now := e.now()

	views := make([]domain.OrderView, 0, len(sells))
	for _, o := range sells {
		st := states[o.Symbol]
		ask, _ := st.book.BestAsk()
		views = append(views, e.cfg.Pricing.View(domain.PricingInput{
			Order:          o,
			Rules:          st.rules,
			CurrentPrice:   ask,
			RecentCandles:  st.recent,
			LockedInSymbol: lockedBySymbol[o.Symbol],
			FreeBalance:    free,
			TotalBalance:   total,
			Now:            now,
		}))
	}
	sort.SliceStable(views, func(i, j int) bool {
		return views[i].Order.OrderID < views[j].Order.OrderID
	})

	return domain.PortfolioSnapshot{
		Views:             views,
		LockedBySymbol:    lockedBySymbol,
		LockedTotal:       lockedTotal,
		FreeBalance:       free,
		FreeOtherValue:    freeOther,
		TotalBalance:      total,
		DistinctSymbols:   len(positions),
		MinRequiredOrders: domain.MinRequiredOrders(free, e.cfg.Decision.OrderCountUnit),
		TakenAt:           now,
	}, nil
}

// fetchMarkets loads rules and books for every symbol in need, in parallel.
// Recent candles are only fetched for positions. A symbol that is not listed
// is an error for a position and skipped otherwise.
func (e *Engine) fetchMarkets(ctx context.Context, need, positions map[string]bool) (map[string]marketState, error) {
	symbols := make([]string, 0, len(need))
	for s := range need {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)
	results := make([]marketState, len(symbols))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fetchConcurrency)
	for i, symbol := range symbols {
		g.Go(func() error {
			st, err := e.fetchMarket(gctx, symbol, positions[symbol])
			if err != nil {
				return err
			}
			results[i] = st
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("live.snapshot: %w", err)
	}

	out := make(map[string]marketState, len(symbols))
	for i, s := range symbols {
		out[s] = results[i]
	}
	return out, nil
}

func (e *Engine) fetchMarket(ctx context.Context, symbol string, position bool) (marketState, error) {
	rules, err := e.ex.SymbolRules(ctx, symbol)
	if err != nil {
		if !position && errors.Is(err, domain.ErrUnknownSymbol) {
			return marketState{}, nil
		}
		return marketState{}, fmt.Errorf("rules %s: %w", symbol, err)
	}
	st := marketState{rules: rules, listed: true}

	if st.book, err = e.ex.OrderBook(ctx, symbol, e.cfg.BookDepth); err != nil {
		return marketState{}, fmt.Errorf("book %s: %w", symbol, err)
	}
	if position {
		if st.recent, err = e.ex.RecentCandles(ctx, symbol, e.cfg.RecentMinutes); err != nil {
			return marketState{}, fmt.Errorf("recent candles %s: %w", symbol, err)
		}
	}
	return st, nil
}
