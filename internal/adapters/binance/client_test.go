package binance_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/rotabot/internal/adapters/binance"
	"github.com/alejandrodnm/rotabot/internal/domain"
)

const depthJSON = `{"lastUpdateId":1027024,
 "bids":[["0.04900000","3.00000000"],["0.04890000","1.50000000"]],
 "asks":[["0.05000000","1.00000000"],["0.05100000","2.00000000"]]}`

const exchangeInfoJSON = `{"timezone":"UTC","serverTime":1760000000000,"symbols":[
 {"symbol":"ETHBTC","status":"TRADING","baseAsset":"ETH","quoteAsset":"BTC","filters":[
   {"filterType":"PRICE_FILTER","minPrice":"0.00001000","maxPrice":"922327.00000000","tickSize":"0.00001000"},
   {"filterType":"LOT_SIZE","minQty":"0.00010000","maxQty":"100000.00000000","stepSize":"0.00010000"},
   {"filterType":"NOTIONAL","minNotional":"0.00010000","applyMinToMarket":true},
   {"filterType":"MAX_NUM_ORDERS","maxNumOrders":200}]},
 {"symbol":"LUNABTC","status":"BREAK","baseAsset":"LUNA","quoteAsset":"BTC","filters":[
   {"filterType":"MIN_NOTIONAL","minNotional":"0.00020000"}]}]}`

const klinesJSON = `[
 [1759968000000,"0.05000000","0.05200000","0.04800000","0.05100000","1200.5",1760054399999,"60.1",300,"600.2","30.0","0"],
 [1760054400000,"0.05100000","0.05300000","0.04900000","0.05000000","900.0",1760140799999,"45.0",250,"450.0","22.5","0"]]`

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newTestClient(srv *httptest.Server) *binance.Client {
	return binance.NewClient(binance.Config{BaseURL: srv.URL, RatePerSec: 1000, Burst: 100})
}

func TestOrderBook_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/depth", r.URL.Path)
		assert.Equal(t, "ETHBTC", r.URL.Query().Get("symbol"))
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(depthJSON))
	}))
	defer srv.Close()

	book, err := newTestClient(srv).OrderBook(context.Background(), "ETHBTC", 5)
	require.NoError(t, err)

	ask, ok := book.BestAsk()
	require.True(t, ok)
	assert.True(t, d("0.05").Equal(ask))
	bid, ok := book.BestBid()
	require.True(t, ok)
	assert.True(t, d("0.049").Equal(bid))
	assert.Len(t, book.Asks, 2)
	assert.True(t, d("1.5").Equal(book.Bids[1].Qty))
}

func TestOrderBook_RetriesServerError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(depthJSON))
	}))
	defer srv.Close()

	_, err := newTestClient(srv).OrderBook(context.Background(), "ETHBTC", 5)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestSymbolRules_ParsesAndCachesFilters(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/exchangeInfo", r.URL.Path)
		calls.Add(1)
		w.Write([]byte(exchangeInfoJSON))
	}))
	defer srv.Close()
	client := newTestClient(srv)
	ctx := context.Background()

	r, err := client.SymbolRules(ctx, "ETHBTC")
	require.NoError(t, err)
	assert.Equal(t, "ETH", r.Coin)
	assert.Equal(t, "BTC", r.Quote)
	assert.True(t, r.Trading)
	assert.True(t, d("0.00001").Equal(r.TickSize))
	assert.True(t, d("0.0001").Equal(r.StepSize))
	assert.True(t, d("0.0001").Equal(r.MinNotional))
	assert.Equal(t, 200, r.MaxOpenOrders)

	all, err := client.AllSymbolRules(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "LUNABTC", all[1].Symbol)
	assert.False(t, all[1].Trading)
	assert.True(t, d("0.0002").Equal(all[1].MinNotional))

	_, err = client.SymbolRules(ctx, "DOGEBTC")
	assert.ErrorIs(t, err, domain.ErrUnknownSymbol)
	assert.Equal(t, int32(1), calls.Load(), "exchange info is cached")
}

func TestDailyCandles(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/klines", r.URL.Path)
		assert.Equal(t, "1d", r.URL.Query().Get("interval"))
		assert.Equal(t, "91", r.URL.Query().Get("limit"))
		assert.NotEmpty(t, r.URL.Query().Get("startTime"))
		w.Write([]byte(klinesJSON))
	}))
	defer srv.Close()

	candles, err := newTestClient(srv).DailyCandles(context.Background(), "ETHBTC", 90)
	require.NoError(t, err)
	require.Len(t, candles, 2)
	assert.True(t, d("0.052").Equal(candles[0].High))
	assert.True(t, d("0.048").Equal(candles[0].Low))
	assert.True(t, d("0.05").Equal(candles[1].Close))
	assert.Equal(t, int64(1760054400000), candles[1].OpenTime.UnixMilli())
}

func TestCancelOrder_UnknownOrderIsSoft(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/api/v3/order", r.URL.Path)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"code":-2011,"msg":"Unknown order sent."}`))
	}))
	defer srv.Close()

	err := newTestClient(srv).CancelOrder(context.Background(), "ETHBTC", 42)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
	assert.True(t, domain.IsSoft(err))
}

func TestPlaceLimitOrder_SendsRoundedStrings(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v3/order", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "ETHBTC", r.Form.Get("symbol"))
		assert.Equal(t, "SELL", r.Form.Get("side"))
		assert.Equal(t, "LIMIT", r.Form.Get("type"))
		assert.Equal(t, "GTC", r.Form.Get("timeInForce"))
		assert.Equal(t, "0.5", r.Form.Get("quantity"))
		assert.Equal(t, "0.06", r.Form.Get("price"))
		assert.Equal(t, "rbtest", r.Form.Get("newClientOrderId"))
		w.Write([]byte(`{"symbol":"ETHBTC","orderId":28,"clientOrderId":"rbtest","transactTime":1760000000000,
			"price":"0.06000000","origQty":"0.50000000","executedQty":"0.00000000","cummulativeQuoteQty":"0.00000000",
			"status":"NEW","timeInForce":"GTC","type":"LIMIT","side":"SELL","fills":[]}`))
	}))
	defer srv.Close()

	placed, err := newTestClient(srv).PlaceLimitOrder(context.Background(), "ETHBTC", domain.SideSell, d("0.5"), d("0.06"), "rbtest")
	require.NoError(t, err)
	assert.Equal(t, int64(28), placed.OrderID)
	assert.Equal(t, domain.StatusNew, placed.Status)
	assert.Equal(t, domain.SideSell, placed.Side)
	assert.True(t, placed.ExecutedQty.IsZero())
}

func TestPlaceMarketOrder_MapsFills(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "MARKET", r.Form.Get("type"))
		assert.Equal(t, "FULL", r.Form.Get("newOrderRespType"))
		w.Write([]byte(`{"symbol":"ETHBTC","orderId":29,"clientOrderId":"rbmkt","transactTime":1760000000000,
			"price":"0.00000000","origQty":"1.50000000","executedQty":"1.50000000","cummulativeQuoteQty":"0.07550000",
			"status":"FILLED","timeInForce":"GTC","type":"MARKET","side":"BUY","fills":[
			{"price":"0.05000000","qty":"1.00000000","commission":"0.00100000","commissionAsset":"ETH","tradeId":1},
			{"price":"0.05100000","qty":"0.50000000","commission":"0.00050000","commissionAsset":"ETH","tradeId":2}]}`))
	}))
	defer srv.Close()

	placed, err := newTestClient(srv).PlaceMarketOrder(context.Background(), "ETHBTC", domain.SideBuy, d("1.5"), "rbmkt")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFilled, placed.Status)
	require.Len(t, placed.Fills, 2)
	assert.True(t, d("0.0015").Equal(placed.CommissionIn("ETH")))
	assert.True(t, d("0.05033333").Equal(placed.AvgPrice()))
}
