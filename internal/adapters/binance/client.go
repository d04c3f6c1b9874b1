// Package binance implements the exchange gateway over the Binance spot REST
// API. Read calls are rate limited and retried with backoff; calls that move
// capital are rate limited but never retried here.
package binance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	gobinance "github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
	"golang.org/x/time/rate"

	"github.com/alejandrodnm/rotabot/internal/domain"
	"github.com/alejandrodnm/rotabot/internal/metrics"
)

const (
	// Request weight budget is 6000/min; stay well under it.
	defaultRatePerSec = 10
	defaultBurst      = 5

	maxRetries    = 3
	baseRetryWait = 500 * time.Millisecond

	// Exchange filters change rarely; one fetch serves many cycles.
	rulesTTL = 10 * time.Minute

	codeUnknownOrder = -2011
	codeTooMany      = -1003
)

// Config configures the client.
type Config struct {
	APIKey     string
	APISecret  string
	BaseURL    string // empty for production
	RatePerSec float64
	Burst      int
}

// Client wraps the go-binance client with rate limiting, retries and a cache
// of symbol rules. It implements ports.Exchange.
type Client struct {
	api     *gobinance.Client
	limiter *rate.Limiter

	mu      sync.Mutex
	rules   map[string]domain.SymbolRules
	rulesAt time.Time
}

// NewClient creates a Client. Without API keys only market data works.
func NewClient(cfg Config) *Client {
	api := gobinance.NewClient(cfg.APIKey, cfg.APISecret)
	if cfg.BaseURL != "" {
		api.BaseURL = cfg.BaseURL
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = defaultRatePerSec
	}
	if cfg.Burst <= 0 {
		cfg.Burst = defaultBurst
	}
	return &Client{
		api:     api,
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.Burst),
	}
}

// read runs an idempotent call with rate limiting and exponential backoff.
// API errors other than rate limiting are returned at once.
func (c *Client) read(ctx context.Context, op string, fn func() error) error {
	var err error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if werr := c.limiter.Wait(ctx); werr != nil {
			return fmt.Errorf("rate limiter: %w", werr)
		}
		err = fn()
		if err == nil {
			return nil
		}
		if !retryable(err) || attempt == maxRetries {
			break
		}
		slog.Warn("binance: retrying read", "op", op, "attempt", attempt+1, "err", err)
		metrics.IncRetry(op)
		if serr := sleep(ctx, attempt); serr != nil {
			return serr
		}
	}
	return mapError(err)
}

// write runs a call that moves capital: rate limited, never retried.
func (c *Client) write(ctx context.Context, fn func() error) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}
	return mapError(fn())
}

func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	// A zero code means the body carried no Binance error: a 5xx or a proxy page.
	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == codeTooMany || apiErr.Code == 0
	}
	return true
}

// mapError translates exchange error codes into domain errors.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *common.APIError
	if errors.As(err, &apiErr) && apiErr.Code == codeUnknownOrder {
		return fmt.Errorf("%s: %w", apiErr.Message, domain.ErrOrderNotFound)
	}
	return err
}

// sleep waits with exponential backoff, honouring the context.
func sleep(ctx context.Context, attempt int) error {
	wait := time.Duration(math.Pow(2, float64(attempt))) * baseRetryWait
	select {
	case <-time.After(wait):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
