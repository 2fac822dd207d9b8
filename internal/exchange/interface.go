package exchange

import (
	"context"
	"time"

	"github.com/ducminhle1904/crypto-trade-engine/internal/market"
	"github.com/ducminhle1904/crypto-trade-engine/internal/order"
	"github.com/ducminhle1904/crypto-trade-engine/internal/position"
	"github.com/ducminhle1904/crypto-trade-engine/pkg/types"
)

// Exchange is the trading capability consumed by the engine. Implementations
// return *ExchangeError values so callers can classify failures.
type Exchange interface {
	GetName() string

	// Market metadata and data
	FetchMarketConstraints(ctx context.Context, symbol string) (market.Constraints, error)
	FetchTicker(ctx context.Context, symbol string) (types.Ticker, error)
	FetchOHLCV(ctx context.Context, symbol, timeframe string, limit int) ([]types.OHLCV, error)

	// Account
	FetchPositions(ctx context.Context, symbol string) ([]position.Position, error)
	FetchBalance(ctx context.Context, asset string) (types.Balance, error)

	// Trading
	SubmitOrder(ctx context.Context, spec order.Spec) (*Order, error)
	CancelOrder(ctx context.Context, orderID, symbol string) error
}

// Connector is implemented by exchanges that need a connectivity check
// before use.
type Connector interface {
	Connect(ctx context.Context) error
	Disconnect() error
	IsConnected() bool
}

// OrderStatus is the exchange-reported state of an order.
type OrderStatus string

const (
	OrderStatusNew             OrderStatus = "New"
	OrderStatusPartiallyFilled OrderStatus = "PartiallyFilled"
	OrderStatusUntriggered     OrderStatus = "Untriggered"
	OrderStatusFilled          OrderStatus = "Filled"
	OrderStatusCancelled       OrderStatus = "Cancelled"
	OrderStatusRejected        OrderStatus = "Rejected"
)

// Order is the exchange acknowledgement of a submitted order.
type Order struct {
	OrderID      string
	Symbol       string
	Side         order.Side
	Kind         order.Kind
	Amount       float64
	FilledAmount float64
	AvgPrice     float64
	Status       OrderStatus
	CreatedTime  time.Time
	UpdatedTime  time.Time
}
