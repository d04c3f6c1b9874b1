package paper

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alejandrodnm/rotabot/internal/domain"
	"github.com/alejandrodnm/rotabot/internal/ports"
)

const defaultBookDepth = 100

// Config tunes the simulated account.
type Config struct {
	// FeeRate is charged on every execution, in the asset received.
	FeeRate decimal.Decimal
	// BookDepth is how many levels a market order may sweep.
	BookDepth int
	// Now stamps new orders. Defaults to time.Now.
	Now func() time.Time
}

type order struct {
	open     domain.OpenOrder
	rules    domain.SymbolRules
	status   domain.OrderStatus
	reserved decimal.Decimal // quote locked by a resting buy
	fills    []domain.Fill
}

func (o *order) isOpen() bool {
	return o.status == domain.StatusNew || o.status == domain.StatusPartiallyFilled
}

// Exchange is a simulated spot account implementing ports.Exchange. Market
// data is delegated to the wrapped ports.MarketData; balances and orders live
// in memory and fills settle instantly.
type Exchange struct {
	ports.MarketData

	cfg Config

	mu       sync.Mutex
	balances map[string]*domain.Balance
	orders   map[int64]*order
	nextID   int64
}

// NewExchange creates an empty account on top of md.
func NewExchange(md ports.MarketData, cfg Config) *Exchange {
	if cfg.BookDepth <= 0 {
		cfg.BookDepth = defaultBookDepth
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Exchange{
		MarketData: md,
		cfg:        cfg,
		balances:   make(map[string]*domain.Balance),
		orders:     make(map[int64]*order),
		nextID:     1,
	}
}

// Deposit credits amount to the free balance of asset.
func (e *Exchange) Deposit(asset string, amount decimal.Decimal) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.balance(asset).Free = e.balance(asset).Free.Add(amount)
}

// SeedSellOrder rests a sell order as if it had been placed at placedAt.
// The coin is credited straight to the locked balance.
func (e *Exchange) SeedSellOrder(ctx context.Context, symbol string, qty, price decimal.Decimal, placedAt time.Time) (int64, error) {
	r, err := e.SymbolRules(ctx, symbol)
	if err != nil {
		return 0, fmt.Errorf("paper.SeedSellOrder: %w", err)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	b := e.balance(r.Coin)
	b.Locked = b.Locked.Add(qty)
	o := e.newOrder(r, domain.SideSell, qty, price, "seed")
	o.open.PlacedAt = placedAt
	return o.open.OrderID, nil
}

func (e *Exchange) balance(asset string) *domain.Balance {
	b, ok := e.balances[asset]
	if !ok {
		b = &domain.Balance{Asset: asset}
		e.balances[asset] = b
	}
	return b
}

// newOrder registers a resting order. Callers hold e.mu.
func (e *Exchange) newOrder(r domain.SymbolRules, side domain.Side, qty, price decimal.Decimal, clientID string) *order {
	o := &order{
		open: domain.OpenOrder{
			Symbol:        r.Symbol,
			Side:          side,
			OrigQty:       qty,
			ExecutedQty:   decimal.Zero,
			Price:         price,
			OrderID:       e.nextID,
			ClientOrderID: clientID,
			PlacedAt:      e.cfg.Now(),
		},
		rules:  r,
		status: domain.StatusNew,
	}
	e.orders[o.open.OrderID] = o
	e.nextID++
	return o
}

func (e *Exchange) Balances(_ context.Context) ([]domain.Balance, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]domain.Balance, 0, len(e.balances))
	for _, b := range e.balances {
		if b.Total().IsZero() {
			continue
		}
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Asset < out[j].Asset })
	return out, nil
}

func (e *Exchange) OpenOrders(_ context.Context) ([]domain.OpenOrder, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []domain.OpenOrder
	for _, o := range e.orders {
		if o.isOpen() {
			out = append(out, o.open)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderID < out[j].OrderID })
	return out, nil
}

// validate applies the checks the real exchange runs on every new order.
func validate(r domain.SymbolRules, qty, price decimal.Decimal) error {
	if !r.Trading {
		return fmt.Errorf("%s is not trading", r.Symbol)
	}
	if !qty.IsPositive() || !domain.RoundQuantity(r, qty).Equal(qty) {
		return fmt.Errorf("%s quantity %s violates LOT_SIZE %s", r.Symbol, qty, r.StepSize)
	}
	if !domain.MeetsMinNotional(r, qty, price) {
		return fmt.Errorf("%s %s @ %s: %w", r.Symbol, qty, price, domain.ErrBelowMinNotional)
	}
	return nil
}

// sweep walks book levels best first until qty is filled.
func sweep(levels []domain.BookLevel, qty, feeRate decimal.Decimal, feeAsset string, quoteFee bool) ([]domain.Fill, decimal.Decimal, decimal.Decimal) {
	var fills []domain.Fill
	filled, quote := decimal.Zero, decimal.Zero
	for _, lvl := range levels {
		if filled.GreaterThanOrEqual(qty) {
			break
		}
		take := decimal.Min(lvl.Qty, qty.Sub(filled))
		notional := take.Mul(lvl.Price)
		base := take
		if quoteFee {
			base = notional
		}
		fills = append(fills, domain.Fill{
			Price:           lvl.Price,
			Qty:             take,
			Commission:      base.Mul(feeRate).RoundCeil(domain.Scale),
			CommissionAsset: feeAsset,
		})
		filled = filled.Add(take)
		quote = quote.Add(notional)
	}
	return fills, filled, quote.RoundCeil(domain.Scale)
}

func (e *Exchange) PlaceMarketOrder(ctx context.Context, symbol string, side domain.Side, qty decimal.Decimal, clientID string) (domain.PlacedOrder, error) {
	r, err := e.SymbolRules(ctx, symbol)
	if err != nil {
		return domain.PlacedOrder{}, fmt.Errorf("paper.PlaceMarketOrder: %w", err)
	}
	book, err := e.OrderBook(ctx, symbol, e.cfg.BookDepth)
	if err != nil {
		return domain.PlacedOrder{}, fmt.Errorf("paper.PlaceMarketOrder: book: %w", err)
	}

	levels, feeAsset := book.Asks, r.Coin
	if side == domain.SideSell {
		levels, feeAsset = book.Bids, r.Quote
	}
	if len(levels) == 0 {
		return domain.PlacedOrder{}, fmt.Errorf("paper.PlaceMarketOrder: %s has no liquidity", symbol)
	}
	if err := validate(r, qty, levels[0].Price); err != nil {
		return domain.PlacedOrder{}, fmt.Errorf("paper.PlaceMarketOrder: %w", err)
	}

	fills, filled, quote := sweep(levels, qty, e.cfg.FeeRate, feeAsset, side == domain.SideSell)
	if filled.LessThan(qty) {
		return domain.PlacedOrder{}, fmt.Errorf("paper.PlaceMarketOrder: %s book too thin for %s", symbol, qty)
	}
	fee := decimal.Zero
	for _, f := range fills {
		fee = fee.Add(f.Commission)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	coin, quoteBal := e.balance(r.Coin), e.balance(r.Quote)
	switch side {
	case domain.SideBuy:
		if quoteBal.Free.LessThan(quote) {
			return domain.PlacedOrder{}, fmt.Errorf("paper.PlaceMarketOrder: need %s %s: %w", quote, r.Quote, domain.ErrInsufficientBalance)
		}
		quoteBal.Free = quoteBal.Free.Sub(quote)
		coin.Free = coin.Free.Add(filled.Sub(fee))
	case domain.SideSell:
		if coin.Free.LessThan(qty) {
			return domain.PlacedOrder{}, fmt.Errorf("paper.PlaceMarketOrder: need %s %s: %w", qty, r.Coin, domain.ErrInsufficientBalance)
		}
		coin.Free = coin.Free.Sub(qty)
		quoteBal.Free = quoteBal.Free.Add(quote.Sub(fee))
	}

	o := e.newOrder(r, side, qty, decimal.Zero, clientID)
	o.status = domain.StatusFilled
	o.open.ExecutedQty = filled
	o.fills = fills

	slog.Debug("paper: market order filled",
		"symbol", symbol, "side", side, "qty", qty, "quote", quote, "fee", fee)
	return domain.PlacedOrder{
		Symbol:        symbol,
		OrderID:       o.open.OrderID,
		ClientOrderID: clientID,
		Side:          side,
		Status:        domain.StatusFilled,
		ExecutedQty:   filled,
		QuoteQty:      quote,
		Fills:         fills,
	}, nil
}

func (e *Exchange) PlaceLimitOrder(ctx context.Context, symbol string, side domain.Side, qty, price decimal.Decimal, clientID string) (domain.PlacedOrder, error) {
	r, err := e.SymbolRules(ctx, symbol)
	if err != nil {
		return domain.PlacedOrder{}, fmt.Errorf("paper.PlaceLimitOrder: %w", err)
	}
	if err := validate(r, qty, price); err != nil {
		return domain.PlacedOrder{}, fmt.Errorf("paper.PlaceLimitOrder: %w", err)
	}
	if !domain.RoundPriceDown(r, price).Equal(price) {
		return domain.PlacedOrder{}, fmt.Errorf("paper.PlaceLimitOrder: %s price %s violates PRICE_FILTER %s", symbol, price, r.TickSize)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	reserved := decimal.Zero
	switch side {
	case domain.SideBuy:
		b := e.balance(r.Quote)
		reserved = qty.Mul(price).RoundCeil(domain.Scale)
		if b.Free.LessThan(reserved) {
			return domain.PlacedOrder{}, fmt.Errorf("paper.PlaceLimitOrder: need %s %s: %w", reserved, r.Quote, domain.ErrInsufficientBalance)
		}
		b.Free = b.Free.Sub(reserved)
		b.Locked = b.Locked.Add(reserved)
	case domain.SideSell:
		b := e.balance(r.Coin)
		if b.Free.LessThan(qty) {
			return domain.PlacedOrder{}, fmt.Errorf("paper.PlaceLimitOrder: need %s %s: %w", qty, r.Coin, domain.ErrInsufficientBalance)
		}
		b.Free = b.Free.Sub(qty)
		b.Locked = b.Locked.Add(qty)
	}

	o := e.newOrder(r, side, qty, price, clientID)
	o.reserved = reserved

	slog.Debug("paper: limit order placed", "symbol", symbol, "side", side, "qty", qty, "price", price)
	return domain.PlacedOrder{
		Symbol:        symbol,
		OrderID:       o.open.OrderID,
		ClientOrderID: clientID,
		Side:          side,
		Status:        domain.StatusNew,
		ExecutedQty:   decimal.Zero,
		QuoteQty:      decimal.Zero,
	}, nil
}

func (e *Exchange) CancelOrder(_ context.Context, symbol string, orderID int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	o, ok := e.orders[orderID]
	if !ok || o.open.Symbol != symbol || !o.isOpen() {
		return fmt.Errorf("paper.CancelOrder %s %d: %w", symbol, orderID, domain.ErrOrderNotFound)
	}
	e.release(o)
	o.status = domain.StatusCanceled
	return nil
}

// release returns the funds a resting order holds. Callers hold e.mu.
func (e *Exchange) release(o *order) {
	switch o.open.Side {
	case domain.SideBuy:
		b := e.balance(o.rules.Quote)
		b.Locked = b.Locked.Sub(o.reserved)
		b.Free = b.Free.Add(o.reserved)
	case domain.SideSell:
		b := e.balance(o.rules.Coin)
		left := o.open.Outstanding()
		b.Locked = b.Locked.Sub(left)
		b.Free = b.Free.Add(left)
	}
}

func (e *Exchange) OrderStatus(_ context.Context, symbol string, orderID int64) (domain.OrderStatus, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	o, ok := e.orders[orderID]
	if !ok || o.open.Symbol != symbol {
		return "", fmt.Errorf("paper.OrderStatus %s %d: %w", symbol, orderID, domain.ErrOrderNotFound)
	}
	return o.status, nil
}

func (e *Exchange) Fills(_ context.Context, symbol string, orderID int64) ([]domain.Fill, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	o, ok := e.orders[orderID]
	if !ok || o.open.Symbol != symbol {
		return nil, fmt.Errorf("paper.Fills %s %d: %w", symbol, orderID, domain.ErrOrderNotFound)
	}
	return append([]domain.Fill(nil), o.fills...), nil
}

// Match fills every resting order the current books cross, in full, at the
// order's limit price. Paper mode calls it before each cycle.
func (e *Exchange) Match(ctx context.Context) (int, error) {
	open, err := e.OpenOrders(ctx)
	if err != nil {
		return 0, err
	}
	books := make(map[string]domain.OrderBook)
	for _, o := range open {
		if _, ok := books[o.Symbol]; ok {
			continue
		}
		book, err := e.OrderBook(ctx, o.Symbol, 1)
		if err != nil {
			return 0, fmt.Errorf("paper.Match: book %s: %w", o.Symbol, err)
		}
		books[o.Symbol] = book
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	matched := 0
	for _, oo := range open {
		o := e.orders[oo.OrderID]
		if !o.isOpen() || !crosses(o.open, books[o.open.Symbol]) {
			continue
		}
		e.fill(o)
		matched++
	}
	return matched, nil
}

func crosses(o domain.OpenOrder, book domain.OrderBook) bool {
	if o.Side == domain.SideSell {
		bid, ok := book.BestBid()
		return ok && bid.GreaterThanOrEqual(o.Price)
	}
	ask, ok := book.BestAsk()
	return ok && ask.LessThanOrEqual(o.Price)
}

// fill executes the outstanding quantity of a resting order. Callers hold e.mu.
func (e *Exchange) fill(o *order) {
	qty := o.open.Outstanding()
	notional := qty.Mul(o.open.Price).RoundFloor(domain.Scale)
	coin, quote := e.balance(o.rules.Coin), e.balance(o.rules.Quote)

	var f domain.Fill
	switch o.open.Side {
	case domain.SideSell:
		fee := notional.Mul(e.cfg.FeeRate).RoundCeil(domain.Scale)
		coin.Locked = coin.Locked.Sub(qty)
		quote.Free = quote.Free.Add(notional.Sub(fee))
		f = domain.Fill{Price: o.open.Price, Qty: qty, Commission: fee, CommissionAsset: o.rules.Quote}
	case domain.SideBuy:
		fee := qty.Mul(e.cfg.FeeRate).RoundCeil(domain.Scale)
		quote.Locked = quote.Locked.Sub(o.reserved)
		quote.Free = quote.Free.Add(o.reserved.Sub(notional))
		coin.Free = coin.Free.Add(qty.Sub(fee))
		f = domain.Fill{Price: o.open.Price, Qty: qty, Commission: fee, CommissionAsset: o.rules.Coin}
	}
	o.open.ExecutedQty = o.open.OrigQty
	o.status = domain.StatusFilled
	o.fills = append(o.fills, f)
	slog.Info("paper: resting order filled",
		"symbol", o.open.Symbol, "side", o.open.Side, "qty", qty, "price", o.open.Price)
}
