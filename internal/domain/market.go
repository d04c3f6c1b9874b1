package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side is the side of an order.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// OrderStatus is the exchange lifecycle state of an order.
type OrderStatus string

const (
	StatusNew             OrderStatus = "NEW"
	StatusPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	StatusFilled          OrderStatus = "FILLED"
	StatusCanceled        OrderStatus = "CANCELED"
	StatusRejected        OrderStatus = "REJECTED"
	StatusExpired         OrderStatus = "EXPIRED"
)

// SymbolRules are the per-symbol trading constraints published by the exchange.
// Coin is the traded asset (ETH in ETHBTC), Quote the asset it is priced in.
type SymbolRules struct {
	Symbol        string
	Coin          string
	Quote         string
	Trading       bool
	TickSize      decimal.Decimal
	StepSize      decimal.Decimal
	MinNotional   decimal.Decimal
	MaxOpenOrders int
}

// Candle is one OHLCV bar.
type Candle struct {
	OpenTime time.Time
	Open     decimal.Decimal
	High     decimal.Decimal
	Low      decimal.Decimal
	Close    decimal.Decimal
	Volume   decimal.Decimal
}

// AvgPrice is the mean of open, high, low and close.
func (c Candle) AvgPrice() decimal.Decimal {
	return c.Open.Add(c.High).Add(c.Low).Add(c.Close).Div(decimal.NewFromInt(4)).Round(Scale)
}

// BookLevel is one price level of an order book.
type BookLevel struct {
	Price decimal.Decimal
	Qty   decimal.Decimal
}

// OrderBook holds bids (best first, descending) and asks (best first, ascending).
type OrderBook struct {
	Symbol string
	Bids   []BookLevel
	Asks   []BookLevel
}

// BestAsk returns the lowest ask. ok is false when the book has no asks.
func (ob OrderBook) BestAsk() (decimal.Decimal, bool) {
	if len(ob.Asks) == 0 {
		return decimal.Zero, false
	}
	return ob.Asks[0].Price, true
}

// BestBid returns the highest bid. ok is false when the book has no bids.
func (ob OrderBook) BestBid() (decimal.Decimal, bool) {
	if len(ob.Bids) == 0 {
		return decimal.Zero, false
	}
	return ob.Bids[0].Price, true
}

// Ticker is the 24h rolling statistic of a symbol. QuoteVolume is expressed
// in the quote asset.
type Ticker struct {
	Symbol      string
	QuoteVolume decimal.Decimal
}

// Balance is the spendable (Free) and order-reserved (Locked) amount of an asset.
type Balance struct {
	Asset  string
	Free   decimal.Decimal
	Locked decimal.Decimal
}

// Total returns free + locked.
func (b Balance) Total() decimal.Decimal { return b.Free.Add(b.Locked) }

// Fill is one execution of an order.
type Fill struct {
	Price           decimal.Decimal
	Qty             decimal.Decimal
	Commission      decimal.Decimal
	CommissionAsset string
}

// PlacedOrder is the exchange acknowledgement of a new order.
type PlacedOrder struct {
	Symbol        string
	OrderID       int64
	ClientOrderID string
	Side          Side
	Status        OrderStatus
	ExecutedQty   decimal.Decimal
	QuoteQty      decimal.Decimal // cumulative quote spent/received
	Fills         []Fill
}

// CommissionIn sums the commission paid in asset.
func (p PlacedOrder) CommissionIn(asset string) decimal.Decimal {
	total := decimal.Zero
	for _, f := range p.Fills {
		if f.CommissionAsset == asset {
			total = total.Add(f.Commission)
		}
	}
	return total
}

// AvgPrice returns QuoteQty / ExecutedQty, or zero when nothing executed.
func (p PlacedOrder) AvgPrice() decimal.Decimal {
	if !p.ExecutedQty.IsPositive() {
		return decimal.Zero
	}
	return p.QuoteQty.Div(p.ExecutedQty).Round(Scale)
}
