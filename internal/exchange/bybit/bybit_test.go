package bybit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	bybit_api "github.com/bybit-exchange/bybit.go.api"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeResult(t *testing.T) {
	t.Run("api error", func(t *testing.T) {
		var out orderResult
		err := decodeResult(&bybit_api.ServerResponse{RetCode: ErrCodeInsufficientBalance, RetMsg: "ab not enough for new order"}, &out)
		require.Error(t, err)
		assert.True(t, IsInsufficientBalanceError(err))
	})

	t.Run("wrong type", func(t *testing.T) {
		var out orderResult
		assert.Error(t, decodeResult("nope", &out))
	})

	t.Run("ok", func(t *testing.T) {
		var out orderResult
		resp := &bybit_api.ServerResponse{Result: map[string]interface{}{"orderId": "1321003749386327552", "orderLinkId": "x"}}
		require.NoError(t, decodeResult(resp, &out))
		assert.Equal(t, "1321003749386327552", out.OrderID)
	})
}

func TestErrorPredicates(t *testing.T) {
	tests := []struct {
		code      int
		retryable bool
		auth      bool
		notFound  bool
		invalid   bool
	}{
		{ErrCodeRateLimitExceeded, true, false, false, false},
		{http.StatusBadGateway, true, false, false, false},
		{ErrCodeInvalidAPIKey, false, true, false, false},
		{ErrCodeOrderNotFound, false, false, true, false},
		{ErrCodeInvalidQuantity, false, false, false, true},
	}

	for _, tt := range tests {
		err := NewBybitError(tt.code, "x")
		assert.Equal(t, tt.retryable, IsRetryableError(err), "code %d", tt.code)
		assert.Equal(t, tt.auth, IsAuthenticationError(err), "code %d", tt.code)
		assert.Equal(t, tt.notFound, IsOrderNotFoundError(err), "code %d", tt.code)
		assert.Equal(t, tt.invalid, IsInvalidOrderError(err), "code %d", tt.code)
	}

	assert.False(t, IsRetryableError(assert.AnError))
	assert.Nil(t, ParseAPIError(0, "OK"))
}

func TestParseKlinesOldestFirst(t *testing.T) {
	body := klineResult{List: [][]string{
		{"1700000120000", "3", "4", "2", "3.5", "10", "35"},
		{"1700000060000", "2", "3", "1", "2.5", "10", "25"},
		{"short"},
	}}

	klines := parseKlines(body)
	require.Len(t, klines, 2)
	assert.True(t, klines[0].StartTime.Before(klines[1].StartTime))
	assert.Equal(t, 2.5, klines[0].ClosePrice)
	assert.Equal(t, 3.5, klines[1].ClosePrice)
}

func TestParseTicker(t *testing.T) {
	var body tickerResult
	body.List = append(body.List, struct {
		Symbol    string `json:"symbol"`
		Bid1Price string `json:"bid1Price"`
		Ask1Price string `json:"ask1Price"`
		LastPrice string `json:"lastPrice"`
		MarkPrice string `json:"markPrice"`
		Volume24h string `json:"volume24h"`
	}{Symbol: "BTCUSDT", Bid1Price: "30000.1", Ask1Price: "30000.2", LastPrice: "30000.15"})

	tk, err := parseTicker(body, "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, 30000.1, tk.Bid)
	assert.Equal(t, 30000.15, tk.Last)

	_, err = parseTicker(body, "ETHUSDT")
	assert.True(t, IsSymbolNotFoundError(err))
}

func TestParseInterval(t *testing.T) {
	iv, err := ParseInterval("1h")
	require.NoError(t, err)
	assert.Equal(t, Interval1h, iv)

	iv, err = ParseInterval("D")
	require.NoError(t, err)
	assert.Equal(t, Interval1d, iv)

	_, err = ParseInterval("7m")
	assert.Error(t, err)
}

func TestPlaceOrderParams(t *testing.T) {
	_, err := PlaceOrderParams{Symbol: "BTCUSDT", Side: OrderSideBuy, OrderType: OrderTypeLimit, Qty: "0.01"}.apiParams()
	assert.Error(t, err, "limit without price")

	m, err := PlaceOrderParams{
		Category:         "spot",
		Symbol:           "BTCUSDT",
		Side:             OrderSideSell,
		OrderType:        OrderTypeLimit,
		Qty:              "0.01",
		Price:            "97.02",
		TriggerPrice:     "98",
		TriggerDirection: TriggerFall,
	}.apiParams()
	require.NoError(t, err)
	assert.Equal(t, "GTC", m["timeInForce"])
	assert.Equal(t, "98", m["triggerPrice"])
	assert.Equal(t, 2, m["triggerDirection"])
	assert.Equal(t, "StopOrder", m["orderFilter"])
	assert.NotContains(t, m, "marketUnit")

	m, err = PlaceOrderParams{
		Category:   "spot",
		Symbol:     "BTCUSDT",
		Side:       OrderSideBuy,
		OrderType:  OrderTypeMarket,
		Qty:        "0.01",
		MarketUnit: "baseCoin",
	}.apiParams()
	require.NoError(t, err)
	assert.Equal(t, "baseCoin", m["marketUnit"])
	assert.NotContains(t, m, "timeInForce")
}

func TestInstrumentConstraints(t *testing.T) {
	var spot InstrumentInfo
	spot.Symbol = "BTCUSDT"
	spot.PriceFilter.TickSize = "0.01"
	spot.LotSizeFilter.BasePrecision = "0.000001"
	spot.LotSizeFilter.MinOrderQty = "0.000048"
	spot.LotSizeFilter.MaxOrderQty = "71.73956243"
	spot.LotSizeFilter.MinOrderAmt = "1"

	c, err := spot.Constraints()
	require.NoError(t, err)
	assert.Equal(t, 6, c.AmountPrecision)
	assert.Equal(t, 2, c.PricePrecision)
	assert.Equal(t, 1.0, c.MinNotional)
	assert.Equal(t, 0.000048, c.MinAmount)

	var linear InstrumentInfo
	linear.Symbol = "ETHUSDT"
	linear.PriceFilter.TickSize = "0.01"
	linear.LotSizeFilter.QtyStep = "0.01"
	linear.LotSizeFilter.MinOrderQty = "0.01"
	linear.LotSizeFilter.MaxOrderQty = "7240.00"
	linear.LotSizeFilter.MinNotionalValue = "5"

	c, err = linear.Constraints()
	require.NoError(t, err)
	assert.Equal(t, 2, c.AmountPrecision)
	assert.Equal(t, 5.0, c.MinNotional)

	_, err = findInstrument([]InstrumentInfo{linear}, "XRPUSDT")
	assert.True(t, IsSymbolNotFoundError(err))
}

func TestFindCoin(t *testing.T) {
	var body walletResult
	require.NoError(t, decodeResult(&bybit_api.ServerResponse{Result: map[string]interface{}{
		"list": []interface{}{map[string]interface{}{
			"accountType": "UNIFIED",
			"coin": []interface{}{
				map[string]interface{}{"coin": "USDT", "walletBalance": "1500.5", "locked": "0", "totalOrderIM": "100.5"},
			},
		}},
	}}, &body))

	b, err := findCoin(body, "USDT")
	require.NoError(t, err)
	assert.Equal(t, 1500.5, b.WalletBalance)
	assert.Equal(t, 100.5, b.Locked)

	_, err = findCoin(body, "BTC")
	assert.Error(t, err)
}

func TestStreamHandleMessageMergesDeltas(t *testing.T) {
	s := NewTickerStream("ws://unused")

	require.NoError(t, s.handleMessage([]byte(`{"topic":"tickers.BTCUSDT","type":"snapshot","ts":1700000000000,"data":{"symbol":"BTCUSDT","lastPrice":"30000","bid1Price":"29999.5","ask1Price":"30000.5"}}`)))
	require.NoError(t, s.handleMessage([]byte(`{"topic":"tickers.BTCUSDT","type":"delta","ts":1700000001000,"data":{"symbol":"BTCUSDT","lastPrice":"30010"}}`)))
	require.NoError(t, s.handleMessage([]byte(`{"op":"pong","success":true}`)))

	tk, ok := s.Latest("BTCUSDT")
	require.True(t, ok)
	assert.Equal(t, 30010.0, tk.Last)
	assert.Equal(t, 29999.5, tk.Bid)
	assert.Equal(t, time.UnixMilli(1700000001000), tk.UpdatedAt)

	assert.Error(t, s.handleMessage([]byte(`{"op":"subscribe","success":false,"ret_msg":"invalid topic"}`)))
	assert.Error(t, s.handleMessage([]byte(`not json`)))
}

func TestStreamRun(t *testing.T) {
	upgrader := websocket.Upgrader{}
	subscribed := make(chan []string, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var req struct {
			Op   string   `json:"op"`
			Args []string `json:"args"`
		}
		if err := conn.ReadJSON(&req); err != nil {
			return
		}
		subscribed <- req.Args
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"op":"subscribe","success":true}`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"topic":"tickers.ETHUSDT","type":"snapshot","ts":1700000000000,"data":{"symbol":"ETHUSDT","lastPrice":"2000.5"}}`))

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	s := NewTickerStream("ws" + strings.TrimPrefix(srv.URL, "http"))
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- s.Run(ctx, "ETHUSDT") }()

	select {
	case args := <-subscribed:
		assert.Equal(t, []string{"tickers.ETHUSDT"}, args)
	case <-time.After(5 * time.Second):
		t.Fatal("no subscription received")
	}

	assert.Eventually(t, func() bool {
		tk, ok := s.Latest("ETHUSDT")
		return ok && tk.Last == 2000.5
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("stream did not stop")
	}
}

func TestStreamURL(t *testing.T) {
	assert.Equal(t, "wss://stream.bybit.com/v5/public/linear", StreamURL("linear", false))
	assert.Equal(t, "wss://stream-testnet.bybit.com/v5/public/spot", StreamURL("", true))
}

func TestClientEnvironment(t *testing.T) {
	c := NewClient(Config{APIKey: "k", APISecret: "s", Demo: true})
	assert.Equal(t, "demo", c.GetEnvironment())
	assert.Equal(t, "spot", c.Category())
	assert.NotNil(t, c.Instruments())

	c = NewClient(Config{Testnet: true, Category: "linear"})
	assert.Equal(t, "testnet", c.GetEnvironment())
	assert.Equal(t, "linear", c.Category())
}
