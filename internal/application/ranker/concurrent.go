package ranker

// concurrent.go fetches the daily candles and book of every eligible symbol
// in parallel. Rate limiting is the adapter's job.

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"github.com/alejandrodnm/rotabot/internal/domain"
	"github.com/alejandrodnm/rotabot/internal/ports"
)

// collectConcurrent builds one Candidate per listing that has enough history
// and a non-dust lowest ask. Symbols failing a fetch are skipped.
func collectConcurrent(ctx context.Context, md ports.MarketData, cfg Config, listings []listing) []domain.Candidate {
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU() * 2
	}

	workCh := make(chan listing, len(listings))
	resultCh := make(chan domain.Candidate, len(listings))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for l := range workCh {
				if ctx.Err() != nil {
					continue
				}
				c, err := fetchCandidate(ctx, md, cfg, l)
				if err != nil {
					slog.Debug("ranker: symbol skipped", "symbol", l.rules.Symbol, "reason", err)
					continue
				}
				resultCh <- c
			}
		}()
	}

	for _, l := range listings {
		workCh <- l
	}
	close(workCh)

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	pool := make([]domain.Candidate, 0, len(listings))
	for c := range resultCh {
		pool = append(pool, c)
	}
	return pool
}

func fetchCandidate(ctx context.Context, md ports.MarketData, cfg Config, l listing) (domain.Candidate, error) {
	symbol := l.rules.Symbol
	candles, err := md.DailyCandles(ctx, symbol, cfg.LookbackDays)
	if err != nil {
		return domain.Candidate{}, fmt.Errorf("daily candles: %w", err)
	}
	if len(candles) < cfg.MinDailyCandles {
		return domain.Candidate{}, fmt.Errorf("%d daily candles, need %d", len(candles), cfg.MinDailyCandles)
	}

	book, err := md.OrderBook(ctx, symbol, cfg.BookDepth)
	if err != nil {
		return domain.Candidate{}, fmt.Errorf("book: %w", err)
	}
	ask, ok := book.BestAsk()
	if !ok || !ask.GreaterThan(cfg.DustPrice) {
		return domain.Candidate{}, fmt.Errorf("ask %s at or below dust %s", ask, cfg.DustPrice)
	}

	return domain.Candidate{
		Rules:        l.rules,
		QuoteVolume:  l.volume,
		CurrentPrice: ask,
		Candles:      candles,
	}, nil
}
