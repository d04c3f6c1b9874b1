package binance

import (
	"fmt"
	"time"

	gobinance "github.com/adshao/go-binance/v2"
	"github.com/shopspring/decimal"

	"github.com/alejandrodnm/rotabot/internal/domain"
)

// parser converts exchange decimal strings and keeps the first failure, so a
// whole struct can be mapped before checking a single error.
type parser struct {
	err error
}

func (p *parser) dec(field, s string) decimal.Decimal {
	d, err := domain.ParseDecimal(s)
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("%s: %w", field, err)
	}
	return d
}

func filterString(f map[string]interface{}, key string) string {
	s, _ := f[key].(string)
	return s
}

func filterInt(f map[string]interface{}, key string) int {
	switch v := f[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case int64:
		return int(v)
	}
	return 0
}

// toRules maps exchangeInfo filters onto SymbolRules. NOTIONAL replaced
// MIN_NOTIONAL on spot; both are accepted.
func toRules(s gobinance.Symbol) (domain.SymbolRules, error) {
	r := domain.SymbolRules{
		Symbol:  s.Symbol,
		Coin:    s.BaseAsset,
		Quote:   s.QuoteAsset,
		Trading: s.Status == "TRADING",
	}
	var p parser
	for _, f := range s.Filters {
		switch filterString(f, "filterType") {
		case "PRICE_FILTER":
			r.TickSize = p.dec("tickSize", filterString(f, "tickSize"))
		case "LOT_SIZE":
			r.StepSize = p.dec("stepSize", filterString(f, "stepSize"))
		case "MIN_NOTIONAL", "NOTIONAL":
			r.MinNotional = p.dec("minNotional", filterString(f, "minNotional"))
		case "MAX_NUM_ORDERS":
			r.MaxOpenOrders = filterInt(f, "maxNumOrders")
		}
	}
	if p.err != nil {
		return domain.SymbolRules{}, fmt.Errorf("binance.toRules %s: %w", s.Symbol, p.err)
	}
	return r, nil
}

func toOpenOrder(o *gobinance.Order) (domain.OpenOrder, error) {
	var p parser
	out := domain.OpenOrder{
		Symbol:        o.Symbol,
		Side:          domain.Side(o.Side),
		OrigQty:       p.dec("origQty", o.OrigQuantity),
		ExecutedQty:   p.dec("executedQty", o.ExecutedQuantity),
		Price:         p.dec("price", o.Price),
		OrderID:       o.OrderID,
		ClientOrderID: o.ClientOrderID,
		PlacedAt:      time.UnixMilli(o.Time).UTC(),
	}
	if p.err != nil {
		return domain.OpenOrder{}, fmt.Errorf("binance.toOpenOrder %d: %w", o.OrderID, p.err)
	}
	return out, nil
}

func toCandle(k *gobinance.Kline) (domain.Candle, error) {
	var p parser
	c := domain.Candle{
		OpenTime: time.UnixMilli(k.OpenTime).UTC(),
		Open:     p.dec("open", k.Open),
		High:     p.dec("high", k.High),
		Low:      p.dec("low", k.Low),
		Close:    p.dec("close", k.Close),
		Volume:   p.dec("volume", k.Volume),
	}
	if p.err != nil {
		return domain.Candle{}, fmt.Errorf("binance.toCandle: %w", p.err)
	}
	return c, nil
}

func toBalance(b gobinance.Balance) (domain.Balance, error) {
	var p parser
	out := domain.Balance{
		Asset:  b.Asset,
		Free:   p.dec("free", b.Free),
		Locked: p.dec("locked", b.Locked),
	}
	if p.err != nil {
		return domain.Balance{}, fmt.Errorf("binance.toBalance %s: %w", b.Asset, p.err)
	}
	return out, nil
}

func toPlaced(r *gobinance.CreateOrderResponse) (domain.PlacedOrder, error) {
	var p parser
	out := domain.PlacedOrder{
		Symbol:        r.Symbol,
		OrderID:       r.OrderID,
		ClientOrderID: r.ClientOrderID,
		Side:          domain.Side(r.Side),
		Status:        domain.OrderStatus(r.Status),
		ExecutedQty:   p.dec("executedQty", r.ExecutedQuantity),
		QuoteQty:      p.dec("cummulativeQuoteQty", r.CummulativeQuoteQuantity),
	}
	for _, f := range r.Fills {
		out.Fills = append(out.Fills, domain.Fill{
			Price:           p.dec("fill.price", f.Price),
			Qty:             p.dec("fill.qty", f.Quantity),
			Commission:      p.dec("fill.commission", f.Commission),
			CommissionAsset: f.CommissionAsset,
		})
	}
	if p.err != nil {
		return domain.PlacedOrder{}, fmt.Errorf("binance.toPlaced %d: %w", r.OrderID, p.err)
	}
	return out, nil
}

func toFill(t *gobinance.TradeV3) (domain.Fill, error) {
	var p parser
	f := domain.Fill{
		Price:           p.dec("price", t.Price),
		Qty:             p.dec("qty", t.Quantity),
		Commission:      p.dec("commission", t.Commission),
		CommissionAsset: t.CommissionAsset,
	}
	if p.err != nil {
		return domain.Fill{}, fmt.Errorf("binance.toFill %d: %w", t.ID, p.err)
	}
	return f, nil
}
