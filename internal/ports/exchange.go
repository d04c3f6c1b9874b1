package ports

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/alejandrodnm/rotabot/internal/domain"
)

// MarketData is the read-only half of the exchange gateway. Every call is
// side-effect free and safe to run concurrently across symbols.
type MarketData interface {
	// SymbolRules returns the trading constraints of one symbol.
	SymbolRules(ctx context.Context, symbol string) (domain.SymbolRules, error)

	// AllSymbolRules returns the constraints of every listed symbol.
	AllSymbolRules(ctx context.Context) ([]domain.SymbolRules, error)

	// OrderBook returns up to depth levels per side, best first.
	OrderBook(ctx context.Context, symbol string, depth int) (domain.OrderBook, error)

	// DailyCandles returns daily candles covering the last days, oldest first.
	DailyCandles(ctx context.Context, symbol string, days int) ([]domain.Candle, error)

	// RecentCandles returns 15m candles covering the last minutes, oldest first.
	RecentCandles(ctx context.Context, symbol string, minutes int) ([]domain.Candle, error)

	// Tickers24h returns the rolling 24h statistic of every symbol.
	Tickers24h(ctx context.Context) ([]domain.Ticker, error)
}

// Trading is the account half of the exchange gateway. Calls that place or
// cancel orders move capital and are never retried by the adapter.
type Trading interface {
	// OpenOrders returns every resting order of the account.
	OpenOrders(ctx context.Context) ([]domain.OpenOrder, error)

	// Balances returns free and locked amounts of every non-empty asset.
	Balances(ctx context.Context) ([]domain.Balance, error)

	// PlaceMarketOrder buys or sells qty of the coin at market.
	PlaceMarketOrder(ctx context.Context, symbol string, side domain.Side, qty decimal.Decimal, clientID string) (domain.PlacedOrder, error)

	// PlaceLimitOrder rests a GTC limit order at price.
	PlaceLimitOrder(ctx context.Context, symbol string, side domain.Side, qty, price decimal.Decimal, clientID string) (domain.PlacedOrder, error)

	// CancelOrder cancels a resting order. Returns domain.ErrOrderNotFound when
	// the exchange no longer knows it.
	CancelOrder(ctx context.Context, symbol string, orderID int64) error

	// OrderStatus returns the current lifecycle state of an order.
	OrderStatus(ctx context.Context, symbol string, orderID int64) (domain.OrderStatus, error)

	// Fills returns the executions of an order.
	Fills(ctx context.Context, symbol string, orderID int64) ([]domain.Fill, error)
}

// Exchange is the full gateway consumed by the cycle engine.
type Exchange interface {
	MarketData
	Trading
}
