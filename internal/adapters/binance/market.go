package binance

import (
	"context"
	"fmt"
	"sort"
	"time"

	gobinance "github.com/adshao/go-binance/v2"

	"github.com/alejandrodnm/rotabot/internal/domain"
)

// loadRules refreshes the symbol-rules cache when it is older than rulesTTL.
// Concurrent callers wait for the single in-flight fetch.
func (c *Client) loadRules(ctx context.Context) (map[string]domain.SymbolRules, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rules != nil && time.Since(c.rulesAt) < rulesTTL {
		return c.rules, nil
	}

	var info *gobinance.ExchangeInfo
	err := c.read(ctx, "exchange_info", func() error {
		var err error
		info, err = c.api.NewExchangeInfoService().Do(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("binance.loadRules: %w", err)
	}

	rules := make(map[string]domain.SymbolRules, len(info.Symbols))
	for _, s := range info.Symbols {
		r, err := toRules(s)
		if err != nil {
			return nil, err
		}
		rules[r.Symbol] = r
	}
	c.rules, c.rulesAt = rules, time.Now()
	return rules, nil
}

func (c *Client) SymbolRules(ctx context.Context, symbol string) (domain.SymbolRules, error) {
	rules, err := c.loadRules(ctx)
	if err != nil {
		return domain.SymbolRules{}, err
	}
	r, ok := rules[symbol]
	if !ok {
		return domain.SymbolRules{}, fmt.Errorf("binance.SymbolRules %s: %w", symbol, domain.ErrUnknownSymbol)
	}
	return r, nil
}

func (c *Client) AllSymbolRules(ctx context.Context) ([]domain.SymbolRules, error) {
	rules, err := c.loadRules(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.SymbolRules, 0, len(rules))
	for _, r := range rules {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}

func (c *Client) OrderBook(ctx context.Context, symbol string, depth int) (domain.OrderBook, error) {
	var res *gobinance.DepthResponse
	err := c.read(ctx, "depth", func() error {
		var err error
		res, err = c.api.NewDepthService().Symbol(symbol).Limit(depth).Do(ctx)
		return err
	})
	if err != nil {
		return domain.OrderBook{}, fmt.Errorf("binance.OrderBook %s: %w", symbol, err)
	}

	var p parser
	book := domain.OrderBook{Symbol: symbol}
	for _, b := range res.Bids {
		book.Bids = append(book.Bids, domain.BookLevel{Price: p.dec("bid.price", b.Price), Qty: p.dec("bid.qty", b.Quantity)})
	}
	for _, a := range res.Asks {
		book.Asks = append(book.Asks, domain.BookLevel{Price: p.dec("ask.price", a.Price), Qty: p.dec("ask.qty", a.Quantity)})
	}
	if p.err != nil {
		return domain.OrderBook{}, fmt.Errorf("binance.OrderBook %s: %w", symbol, p.err)
	}
	return book, nil
}

func (c *Client) klines(ctx context.Context, symbol, interval string, since time.Duration, limit int) ([]domain.Candle, error) {
	start := time.Now().Add(-since).UnixMilli()
	var res []*gobinance.Kline
	err := c.read(ctx, "klines", func() error {
		var err error
		res, err = c.api.NewKlinesService().
			Symbol(symbol).
			Interval(interval).
			StartTime(start).
			Limit(limit).
			Do(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("binance.klines %s %s: %w", symbol, interval, err)
	}
	candles := make([]domain.Candle, 0, len(res))
	for _, k := range res {
		cdl, err := toCandle(k)
		if err != nil {
			return nil, err
		}
		candles = append(candles, cdl)
	}
	return candles, nil
}

func (c *Client) DailyCandles(ctx context.Context, symbol string, days int) ([]domain.Candle, error) {
	return c.klines(ctx, symbol, "1d", time.Duration(days)*24*time.Hour, min(days+1, 1000))
}

func (c *Client) RecentCandles(ctx context.Context, symbol string, minutes int) ([]domain.Candle, error) {
	return c.klines(ctx, symbol, "15m", time.Duration(minutes)*time.Minute, min(minutes/15+1, 1000))
}

func (c *Client) Tickers24h(ctx context.Context) ([]domain.Ticker, error) {
	var res []*gobinance.PriceChangeStats
	err := c.read(ctx, "ticker_24h", func() error {
		var err error
		res, err = c.api.NewListPriceChangeStatsService().Do(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("binance.Tickers24h: %w", err)
	}
	var p parser
	out := make([]domain.Ticker, 0, len(res))
	for _, s := range res {
		out = append(out, domain.Ticker{Symbol: s.Symbol, QuoteVolume: p.dec("quoteVolume", s.QuoteVolume)})
	}
	if p.err != nil {
		return nil, fmt.Errorf("binance.Tickers24h: %w", p.err)
	}
	return out, nil
}
