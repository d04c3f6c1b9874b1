// Package paper simulates an exchange account in memory. Market data comes
// from any ports.MarketData (the live Binance client in paper mode, a static
// Market in tests); orders, balances and matching never leave the process.
package paper

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/alejandrodnm/rotabot/internal/domain"
)

// Market is a static, in-memory ports.MarketData. Tests and offline runs fill
// it through the setters.
type Market struct {
	mu      sync.RWMutex
	rules   map[string]domain.SymbolRules
	books   map[string]domain.OrderBook
	daily   map[string][]domain.Candle
	recent  map[string][]domain.Candle
	tickers map[string]domain.Ticker
}

// NewMarket returns an empty Market.
func NewMarket() *Market {
	return &Market{
		rules:   make(map[string]domain.SymbolRules),
		books:   make(map[string]domain.OrderBook),
		daily:   make(map[string][]domain.Candle),
		recent:  make(map[string][]domain.Candle),
		tickers: make(map[string]domain.Ticker),
	}
}

func (m *Market) SetRules(r domain.SymbolRules) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules[r.Symbol] = r
}

func (m *Market) SetBook(book domain.OrderBook) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.books[book.Symbol] = book
}

func (m *Market) SetDailyCandles(symbol string, candles []domain.Candle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.daily[symbol] = candles
}

func (m *Market) SetRecentCandles(symbol string, candles []domain.Candle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recent[symbol] = candles
}

func (m *Market) SetTicker(t domain.Ticker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tickers[t.Symbol] = t
}

func (m *Market) SymbolRules(_ context.Context, symbol string) (domain.SymbolRules, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rules[symbol]
	if !ok {
		return domain.SymbolRules{}, fmt.Errorf("paper.Market.SymbolRules %s: %w", symbol, domain.ErrUnknownSymbol)
	}
	return r, nil
}

func (m *Market) AllSymbolRules(_ context.Context) ([]domain.SymbolRules, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.SymbolRules, 0, len(m.rules))
	for _, r := range m.rules {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}

// OrderBook returns the stored book cut to depth. A symbol without a book
// returns an empty book, as the exchange does for a halted market.
func (m *Market) OrderBook(_ context.Context, symbol string, depth int) (domain.OrderBook, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	book, ok := m.books[symbol]
	if !ok {
		return domain.OrderBook{Symbol: symbol}, nil
	}
	out := domain.OrderBook{Symbol: symbol}
	out.Bids = append(out.Bids, book.Bids[:levels(depth, len(book.Bids))]...)
	out.Asks = append(out.Asks, book.Asks[:levels(depth, len(book.Asks))]...)
	return out, nil
}

func levels(depth, n int) int {
	if depth <= 0 {
		return n
	}
	return min(depth, n)
}

func (m *Market) DailyCandles(_ context.Context, symbol string, days int) ([]domain.Candle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return tail(m.daily[symbol], days), nil
}

func (m *Market) RecentCandles(_ context.Context, symbol string, minutes int) ([]domain.Candle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return tail(m.recent[symbol], minutes/15), nil
}

func (m *Market) Tickers24h(_ context.Context) ([]domain.Ticker, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Ticker, 0, len(m.tickers))
	for _, t := range m.tickers {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}

// tail returns a copy of the last n candles.
func tail(candles []domain.Candle, n int) []domain.Candle {
	if n <= 0 || n > len(candles) {
		n = len(candles)
	}
	out := make([]domain.Candle, n)
	copy(out, candles[len(candles)-n:])
	return out
}
