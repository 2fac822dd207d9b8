package adapters

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ducminhle1904/crypto-trade-engine/internal/exchange"
	"github.com/ducminhle1904/crypto-trade-engine/internal/exchange/bybit"
	"github.com/ducminhle1904/crypto-trade-engine/internal/market"
	"github.com/ducminhle1904/crypto-trade-engine/internal/order"
	"github.com/ducminhle1904/crypto-trade-engine/internal/position"
	"github.com/ducminhle1904/crypto-trade-engine/internal/safety"
	"github.com/ducminhle1904/crypto-trade-engine/pkg/types"
)

const (
	// streamMaxAge is how old a streamed ticker may be before REST is used instead
	streamMaxAge = 5 * time.Second

	// Bybit allows 10 requests per second per UID on most REST endpoints
	bybitRequestBurst      = 10
	bybitRequestsPerSecond = 10
)

// BybitAdapter implements the Exchange interface for Bybit
type BybitAdapter struct {
	client *bybit.Client
	config *exchange.BybitConfig
	stream *bybit.TickerStream
	limit  *safety.RateLimiter

	mu        sync.RWMutex
	connected bool
}

// NewBybitAdapter creates a new Bybit adapter instance
func NewBybitAdapter(config *exchange.BybitConfig) (*BybitAdapter, error) {
	if config == nil {
		return nil, exchange.NewError(exchange.CodeInvalidConfig, "Bybit configuration is required")
	}

	client := bybit.NewClient(bybit.Config{
		APIKey:    config.APIKey,
		APISecret: config.APISecret,
		Testnet:   config.Testnet,
		Demo:      config.Demo,
		Category:  config.Category,
	})

	return &BybitAdapter{
		client: client,
		config: config,
		limit:  safety.NewRateLimiter("bybit-rest", bybitRequestBurst, bybitRequestsPerSecond),
	}, nil
}

// GetName returns the exchange name
func (b *BybitAdapter) GetName() string {
	return "Bybit"
}

// GetEnvironment returns the current environment string
func (b *BybitAdapter) GetEnvironment() string {
	return b.client.GetEnvironment()
}

// Connect checks connectivity by loading instrument info for a known symbol
func (b *BybitAdapter) Connect(ctx context.Context) error {
	symbol := b.config.PingSymbol
	if symbol == "" {
		symbol = "BTCUSDT"
	}
	if err := b.limit.Wait(ctx); err != nil {
		return err
	}
	if _, err := b.client.Instruments().GetInstrumentInfo(ctx, "", symbol); err != nil {
		return exchange.NewError(exchange.CodeConnectionFailed, "Failed to connect to Bybit", err.Error())
	}

	b.mu.Lock()
	b.connected = true
	b.mu.Unlock()
	return nil
}

// Disconnect marks the adapter as disconnected
func (b *BybitAdapter) Disconnect() error {
	b.mu.Lock()
	b.connected = false
	b.mu.Unlock()
	return nil
}

// IsConnected returns whether the adapter is connected
func (b *BybitAdapter) IsConnected() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.connected
}

// StartTickerStream subscribes to public tickers for symbols in the
// background. FetchTicker prefers fresh streamed values afterwards.
func (b *BybitAdapter) StartTickerStream(ctx context.Context, onError func(error), symbols ...string) {
	stream := bybit.NewTickerStream(bybit.StreamURL(b.client.Category(), b.config.Testnet))

	b.mu.Lock()
	b.stream = stream
	b.mu.Unlock()

	go stream.RunWithReconnect(ctx, 5*time.Second, onError, symbols...)
}

// FetchMarketConstraints loads lot size and price filters for symbol
func (b *BybitAdapter) FetchMarketConstraints(ctx context.Context, symbol string) (market.Constraints, error) {
	if err := b.limit.Wait(ctx); err != nil {
		return market.Constraints{}, err
	}
	info, err := b.client.Instruments().GetInstrumentInfo(ctx, "", symbol)
	if err != nil {
		return market.Constraints{}, b.convertError(err)
	}
	c, err := info.Constraints()
	if err != nil {
		return market.Constraints{}, exchange.NewError(exchange.CodeUnknown, "Malformed instrument info", err.Error())
	}
	c.FetchedAt = time.Now()
	return c, nil
}

// FetchTicker returns the streamed ticker when fresh, otherwise asks REST
func (b *BybitAdapter) FetchTicker(ctx context.Context, symbol string) (types.Ticker, error) {
	b.mu.RLock()
	stream := b.stream
	b.mu.RUnlock()

	if stream != nil {
		if st, ok := stream.Latest(symbol); ok && time.Since(st.UpdatedAt) < streamMaxAge && st.Last > 0 {
			return convertTicker(st.Ticker, st.UpdatedAt), nil
		}
	}

	if err := b.limit.Wait(ctx); err != nil {
		return types.Ticker{}, err
	}
	t, err := b.client.GetTicker(ctx, "", symbol)
	if err != nil {
		return types.Ticker{}, b.convertError(err)
	}
	return convertTicker(*t, time.Now()), nil
}

// FetchOHLCV retrieves candles oldest first
func (b *BybitAdapter) FetchOHLCV(ctx context.Context, symbol, timeframe string, limit int) ([]types.OHLCV, error) {
	interval, err := bybit.ParseInterval(timeframe)
	if err != nil {
		return nil, exchange.NewError(exchange.CodeInvalidConfig, "Unsupported timeframe", err.Error())
	}

	if err := b.limit.Wait(ctx); err != nil {
		return nil, err
	}
	klines, err := b.client.GetKlines(ctx, bybit.KlineParams{Symbol: symbol, Interval: interval, Limit: limit})
	if err != nil {
		return nil, b.convertError(err)
	}

	result := make([]types.OHLCV, len(klines))
	for i, kline := range klines {
		result[i] = types.OHLCV{
			Timestamp: kline.StartTime,
			Open:      kline.OpenPrice,
			High:      kline.HighPrice,
			Low:       kline.LowPrice,
			Close:     kline.ClosePrice,
			Volume:    kline.Volume,
		}
	}
	return result, nil
}

// FetchBalance returns the unified account balance of asset
func (b *BybitAdapter) FetchBalance(ctx context.Context, asset string) (types.Balance, error) {
	if err := b.limit.Wait(ctx); err != nil {
		return types.Balance{}, err
	}
	balance, err := b.client.GetCoinBalance(ctx, bybit.AccountTypeUnified, asset)
	if err != nil {
		return types.Balance{}, b.convertError(err)
	}
	return types.Balance{
		Asset:  balance.Coin,
		Free:   balance.WalletBalance - balance.Locked,
		Locked: balance.Locked,
	}, nil
}

// FetchPositions retrieves open derivatives positions. Spot accounts hold
// balances, not positions, so the result is always empty there.
func (b *BybitAdapter) FetchPositions(ctx context.Context, symbol string) ([]position.Position, error) {
	if b.client.Category() == "spot" {
		return nil, nil
	}

	if err := b.limit.Wait(ctx); err != nil {
		return nil, err
	}
	positions, err := b.client.GetPositions(ctx, "", symbol)
	if err != nil {
		return nil, b.convertError(err)
	}

	result := make([]position.Position, 0, len(positions))
	for _, pos := range positions {
		side := position.SideLong
		if pos.Side == string(bybit.OrderSideSell) {
			side = position.SideShort
		}
		result = append(result, position.Position{
			Symbol:        pos.Symbol,
			Side:          side,
			Size:          pos.Size,
			EntryPrice:    pos.AvgPrice,
			MarkPrice:     pos.MarkPrice,
			UnrealizedPnl: pos.UnrealisedPnl,
			FetchedAt:     pos.UpdatedTime,
		})
	}
	return result, nil
}

// SubmitOrder places a market, limit or conditional stop-loss-limit order
func (b *BybitAdapter) SubmitOrder(ctx context.Context, spec order.Spec) (*exchange.Order, error) {
	params, err := orderParams(spec, b.client.Category())
	if err != nil {
		return nil, exchange.NewError(exchange.CodeInvalidOrder, "Order rejected by exchange", err.Error())
	}

	if err := b.limit.Wait(ctx); err != nil {
		return nil, err
	}
	placed, err := b.client.PlaceOrder(ctx, params)
	if err != nil {
		return nil, b.convertError(err)
	}

	result := &exchange.Order{
		OrderID:     placed.OrderID,
		Symbol:      spec.Symbol,
		Side:        spec.Side,
		Kind:        spec.Kind,
		Amount:      spec.Amount,
		Status:      exchange.OrderStatusNew,
		CreatedTime: placed.CreatedTime,
		UpdatedTime: placed.UpdatedTime,
	}
	if _, ok := spec.Kind.(order.StopLossLimit); ok {
		result.Status = exchange.OrderStatusUntriggered
	}

	// Market orders usually fill before the acknowledgement; report that when visible.
	if _, ok := spec.Kind.(order.Market); ok {
		if current, err := b.client.GetOrder(ctx, "", spec.Symbol, placed.OrderID); err == nil {
			result.Status = convertStatus(current.OrderStatus)
			result.FilledAmount = current.CumExecQty
			result.AvgPrice = current.AvgPrice
			result.UpdatedTime = current.UpdatedTime
		}
	}
	return result, nil
}

// CancelOrder cancels an open order
func (b *BybitAdapter) CancelOrder(ctx context.Context, orderID, symbol string) error {
	if err := b.limit.Wait(ctx); err != nil {
		return err
	}
	if err := b.client.CancelOrder(ctx, "", symbol, orderID); err != nil {
		return b.convertError(err)
	}
	return nil
}

// orderParams maps an order spec onto Bybit request parameters. Spot market
// quantities are always expressed in the base coin.
func orderParams(spec order.Spec, category string) (bybit.PlaceOrderParams, error) {
	params := bybit.PlaceOrderParams{
		Category:    category,
		Symbol:      spec.Symbol,
		Side:        convertOrderSide(spec.Side),
		Qty:         formatFloat(spec.Amount),
		OrderLinkID: uuid.NewString(),
	}

	switch k := spec.Kind.(type) {
	case order.Market:
		params.OrderType = bybit.OrderTypeMarket
		if category == "spot" {
			params.MarketUnit = "baseCoin"
		}
	case order.Limit:
		params.OrderType = bybit.OrderTypeLimit
		params.Price = formatFloat(k.Price)
	case order.StopLossLimit:
		params.OrderType = bybit.OrderTypeLimit
		params.Price = formatFloat(k.Price)
		params.TriggerPrice = formatFloat(k.Trigger)
		params.TriggerDirection = bybit.TriggerFall
		if spec.Side == order.SideBuy {
			params.TriggerDirection = bybit.TriggerRise
		}
	default:
		return params, fmt.Errorf("unsupported order kind %T", spec.Kind)
	}
	return params, nil
}

// Helper functions

func convertOrderSide(side order.Side) bybit.OrderSide {
	if side == order.SideSell {
		return bybit.OrderSideSell
	}
	return bybit.OrderSideBuy
}

func convertStatus(s bybit.OrderStatus) exchange.OrderStatus {
	switch s {
	case bybit.OrderStatusFilled:
		return exchange.OrderStatusFilled
	case bybit.OrderStatusPartiallyFilled:
		return exchange.OrderStatusPartiallyFilled
	case bybit.OrderStatusCancelled, bybit.OrderStatusDeactivated:
		return exchange.OrderStatusCancelled
	case bybit.OrderStatusRejected:
		return exchange.OrderStatusRejected
	case bybit.OrderStatusUntriggered:
		return exchange.OrderStatusUntriggered
	default:
		return exchange.OrderStatusNew
	}
}

func convertTicker(t bybit.Ticker, at time.Time) types.Ticker {
	return types.Ticker{
		Symbol:    t.Symbol,
		Bid:       t.Bid,
		Ask:       t.Ask,
		Last:      t.Last,
		MarkPrice: t.MarkPrice,
		Volume:    t.Volume,
		Timestamp: at,
	}
}

func formatFloat(f float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.10f", f), "0"), ".")
}

// convertError converts Bybit-specific errors to our standard error format
func (b *BybitAdapter) convertError(err error) error {
	if err == nil {
		return nil
	}

	var exchangeErr *exchange.ExchangeError
	if errors.As(err, &exchangeErr) {
		return exchangeErr
	}

	switch {
	case errors.Is(err, context.Canceled):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return exchange.NewError(exchange.CodeConnectionFailed, "Bybit request timed out", err.Error())
	case bybit.IsAuthenticationError(err):
		return exchange.NewError(exchange.CodeAuthenticationError, "Bybit API authentication failed", err.Error())
	case bybit.IsInsufficientBalanceError(err):
		return exchange.NewError(exchange.CodeInsufficientFunds, "Insufficient balance for trade", err.Error())
	case bybit.IsOrderNotFoundError(err):
		return exchange.NewError(exchange.CodeOrderNotFound, "Order not found", err.Error())
	case bybit.IsSymbolNotFoundError(err):
		return exchange.NewError(exchange.CodeInvalidSymbol, "Invalid trading symbol", err.Error())
	case bybit.IsInvalidOrderError(err):
		return exchange.NewError(exchange.CodeInvalidOrder, "Order rejected by exchange", err.Error())
	case bybit.IsRetryableError(err):
		return exchange.NewError(exchange.CodeRateLimitExceeded, "Bybit API rate limit exceeded", err.Error())
	}

	var bybitErr *bybit.BybitError
	if !errors.As(err, &bybitErr) {
		// Transport failures never reach the API and carry no retCode.
		return exchange.NewError(exchange.CodeConnectionFailed, "Failed to reach Bybit", err.Error())
	}

	return exchange.NewError(exchange.CodeUnknown, "Unknown error from Bybit", err.Error())
}

var (
	_ exchange.Exchange  = (*BybitAdapter)(nil)
	_ exchange.Connector = (*BybitAdapter)(nil)
)
