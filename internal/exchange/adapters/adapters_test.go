package adapters

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ducminhle1904/crypto-trade-engine/internal/exchange"
	"github.com/ducminhle1904/crypto-trade-engine/internal/exchange/bybit"
	"github.com/ducminhle1904/crypto-trade-engine/internal/exchange/paper"
	"github.com/ducminhle1904/crypto-trade-engine/internal/order"
	"github.com/ducminhle1904/crypto-trade-engine/internal/safety"
)

// TestFactory_CreateExchange tests adapter selection by name
func TestFactory_CreateExchange(t *testing.T) {
	f := NewFactory()

	ex, err := f.CreateExchange(exchange.ExchangeConfig{Name: " Paper ", Paper: &exchange.PaperConfig{InitialBalance: 500}})
	require.NoError(t, err)
	p, ok := ex.(*paper.Exchange)
	require.True(t, ok)
	bal, err := p.FetchBalance(context.Background(), "USDT")
	require.NoError(t, err)
	assert.Equal(t, 500.0, bal.Free)

	ex, err = f.CreateExchange(exchange.ExchangeConfig{Name: "bybit", Bybit: &exchange.BybitConfig{APIKey: "k", APISecret: "s", Testnet: true}})
	require.NoError(t, err)
	assert.Equal(t, "Bybit", ex.GetName())

	_, err = f.CreateExchange(exchange.ExchangeConfig{Name: "kraken"})
	assert.Error(t, err)
}

// TestBybitAdapter_Throttled tests that REST calls wait for the rate limiter
func TestBybitAdapter_Throttled(t *testing.T) {
	adapter, err := NewBybitAdapter(&exchange.BybitConfig{APIKey: "k", APISecret: "s", Testnet: true})
	require.NoError(t, err)
	adapter.limit = safety.NewRateLimiter("empty", 0, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = adapter.FetchTicker(ctx, "BTCUSDT")
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, adapter.CancelOrder(ctx, "1", "BTCUSDT"), context.Canceled)
}

// TestNewBybitAdapter_NilConfig tests the missing configuration error
func TestNewBybitAdapter_NilConfig(t *testing.T) {
	_, err := NewBybitAdapter(nil)
	var exErr *exchange.ExchangeError
	require.ErrorAs(t, err, &exErr)
	assert.Equal(t, exchange.CodeInvalidConfig, exErr.Code)
}

// TestOrderParams_MarketUnit tests that spot market orders are sized in the base coin
func TestOrderParams_MarketUnit(t *testing.T) {
	tests := []struct {
		name     string
		kind     order.Kind
		category string
		want     string
	}{
		{"spot market", order.Market{}, "spot", "baseCoin"},
		{"linear market", order.Market{}, "linear", ""},
		{"spot limit", order.Limit{Price: 95}, "spot", ""},
		{"spot stop loss", order.StopLossLimit{Price: 97.02, Trigger: 98}, "spot", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := order.Spec{Symbol: "BTCUSDT", Side: order.SideBuy, Kind: tt.kind, Amount: 0.01}
			params, err := orderParams(spec, tt.category)
			require.NoError(t, err)
			assert.Equal(t, tt.category, params.Category)
			assert.Equal(t, tt.want, params.MarketUnit)
			if tt.want != "" {
				assert.Equal(t, bybit.OrderTypeMarket, params.OrderType)
				assert.Equal(t, "0.01", params.Qty)
			}
		})
	}
}

// TestBybitAdapter_ConvertContextErrors tests that cancellation keeps its chain and timeouts become connection failures
func TestBybitAdapter_ConvertContextErrors(t *testing.T) {
	adapter, err := NewBybitAdapter(&exchange.BybitConfig{APIKey: "k", APISecret: "s", Testnet: true})
	require.NoError(t, err)

	got := adapter.convertError(fmt.Errorf("place order: %w", context.Canceled))
	assert.ErrorIs(t, got, context.Canceled)
	var exErr *exchange.ExchangeError
	assert.False(t, stderrors.As(got, &exErr))

	got = adapter.convertError(context.DeadlineExceeded)
	require.ErrorAs(t, got, &exErr)
	assert.Equal(t, exchange.CodeConnectionFailed, exErr.Code)
}
