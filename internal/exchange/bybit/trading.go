package bybit

import (
	"context"
	"fmt"
	"time"
)

// OrderSide represents the side of an order
type OrderSide string

const (
	OrderSideBuy  OrderSide = "Buy"
	OrderSideSell OrderSide = "Sell"
)

// OrderType represents the type of an order
type OrderType string

const (
	OrderTypeMarket OrderType = "Market"
	OrderTypeLimit  OrderType = "Limit"
)

// TimeInForce represents how long an order remains active
type TimeInForce string

const (
	TimeInForceGTC TimeInForce = "GTC" // Good Till Cancelled
	TimeInForceIOC TimeInForce = "IOC" // Immediate Or Cancel
)

// TriggerDirection tells Bybit which way the price must cross the trigger
type TriggerDirection int

const (
	TriggerRise TriggerDirection = 1
	TriggerFall TriggerDirection = 2
)

// OrderStatus represents the status of an order
type OrderStatus string

const (
	OrderStatusCreated         OrderStatus = "Created"
	OrderStatusNew             OrderStatus = "New"
	OrderStatusPartiallyFilled OrderStatus = "PartiallyFilled"
	OrderStatusUntriggered     OrderStatus = "Untriggered"
	OrderStatusTriggered       OrderStatus = "Triggered"
	OrderStatusFilled          OrderStatus = "Filled"
	OrderStatusCancelled       OrderStatus = "Cancelled"
	OrderStatusRejected        OrderStatus = "Rejected"
	OrderStatusDeactivated     OrderStatus = "Deactivated"
)

// Order represents a trading order
type Order struct {
	OrderID     string
	OrderLinkID string
	Symbol      string
	Side        OrderSide
	OrderType   OrderType
	Qty         float64
	Price       float64
	CumExecQty  float64
	AvgPrice    float64
	OrderStatus OrderStatus
	CreatedTime time.Time
	UpdatedTime time.Time
}

// PlaceOrderParams holds parameters for placing an order
type PlaceOrderParams struct {
	Category         string
	Symbol           string
	Side             OrderSide
	OrderType        OrderType
	Qty              string
	Price            string
	TimeInForce      TimeInForce
	OrderLinkID      string
	TriggerPrice     string
	TriggerDirection TriggerDirection
	ReduceOnly       bool
	MarketUnit       string // baseCoin, quoteCoin
}

// apiParams converts params to the request map, validating required fields
func (params PlaceOrderParams) apiParams() (map[string]interface{}, error) {
	if params.Symbol == "" {
		return nil, fmt.Errorf("symbol is required")
	}
	if params.Side == "" {
		return nil, fmt.Errorf("side is required")
	}
	if params.OrderType == "" {
		return nil, fmt.Errorf("orderType is required")
	}
	if params.Qty == "" {
		return nil, fmt.Errorf("qty is required")
	}
	if params.OrderType == OrderTypeLimit && params.Price == "" {
		return nil, fmt.Errorf("price is required for limit orders")
	}
	if params.OrderType == OrderTypeLimit && params.TimeInForce == "" {
		params.TimeInForce = TimeInForceGTC
	}

	out := map[string]interface{}{
		"category":  params.Category,
		"symbol":    params.Symbol,
		"side":      string(params.Side),
		"orderType": string(params.OrderType),
		"qty":       params.Qty,
	}
	if params.Price != "" {
		out["price"] = params.Price
	}
	if params.TimeInForce != "" {
		out["timeInForce"] = string(params.TimeInForce)
	}
	if params.OrderLinkID != "" {
		out["orderLinkId"] = params.OrderLinkID
	}
	if params.MarketUnit != "" {
		out["marketUnit"] = params.MarketUnit
	}
	if params.TriggerPrice != "" {
		out["triggerPrice"] = params.TriggerPrice
		out["triggerDirection"] = int(params.TriggerDirection)
		if params.Category == "spot" {
			out["orderFilter"] = "StopOrder"
		}
	}
	if params.ReduceOnly {
		out["reduceOnly"] = true
	}
	return out, nil
}

// PlaceOrder places a new order and returns its identifiers
func (c *Client) PlaceOrder(ctx context.Context, params PlaceOrderParams) (*Order, error) {
	params.Category = c.categoryOr(params.Category)
	apiParams, err := params.apiParams()
	if err != nil {
		return nil, err
	}

	result, err := c.httpClient.NewUtaBybitServiceWithParams(apiParams).PlaceOrder(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to place order: %w", err)
	}

	var body orderResult
	if err := decodeResult(result, &body); err != nil {
		return nil, err
	}

	now := time.Now()
	return &Order{
		OrderID:     body.OrderID,
		OrderLinkID: body.OrderLinkID,
		Symbol:      params.Symbol,
		Side:        params.Side,
		OrderType:   params.OrderType,
		Qty:         parseFloat64(params.Qty),
		Price:       parseFloat64(params.Price),
		OrderStatus: OrderStatusNew,
		CreatedTime: now,
		UpdatedTime: now,
	}, nil
}

// GetOrder looks up a recent order by ID
func (c *Client) GetOrder(ctx context.Context, category, symbol, orderID string) (*Order, error) {
	params := map[string]interface{}{
		"category": c.categoryOr(category),
		"symbol":   symbol,
		"orderId":  orderID,
	}

	result, err := c.httpClient.NewUtaBybitServiceWithParams(params).GetOpenOrders(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	var body struct {
		List []struct {
			OrderID     string `json:"orderId"`
			OrderLinkID string `json:"orderLinkId"`
			Symbol      string `json:"symbol"`
			Side        string `json:"side"`
			OrderType   string `json:"orderType"`
			Qty         string `json:"qty"`
			Price       string `json:"price"`
			CumExecQty  string `json:"cumExecQty"`
			AvgPrice    string `json:"avgPrice"`
			OrderStatus string `json:"orderStatus"`
			CreatedTime string `json:"createdTime"`
			UpdatedTime string `json:"updatedTime"`
		} `json:"list"`
	}
	if err := decodeResult(result, &body); err != nil {
		return nil, err
	}

	for _, o := range body.List {
		if o.OrderID != orderID {
			continue
		}
		return &Order{
			OrderID:     o.OrderID,
			OrderLinkID: o.OrderLinkID,
			Symbol:      o.Symbol,
			Side:        OrderSide(o.Side),
			OrderType:   OrderType(o.OrderType),
			Qty:         parseFloat64(o.Qty),
			Price:       parseFloat64(o.Price),
			CumExecQty:  parseFloat64(o.CumExecQty),
			AvgPrice:    parseFloat64(o.AvgPrice),
			OrderStatus: OrderStatus(o.OrderStatus),
			CreatedTime: parseTimestamp(o.CreatedTime),
			UpdatedTime: parseTimestamp(o.UpdatedTime),
		}, nil
	}
	return nil, NewBybitError(ErrCodeOrderNotFound, "order not found", orderID)
}

// CancelOrder cancels an existing order
func (c *Client) CancelOrder(ctx context.Context, category, symbol, orderID string) error {
	params := map[string]interface{}{
		"category": c.categoryOr(category),
		"symbol":   symbol,
		"orderId":  orderID,
	}

	result, err := c.httpClient.NewUtaBybitServiceWithParams(params).CancelOrder(ctx)
	if err != nil {
		return fmt.Errorf("failed to cancel order: %w", err)
	}

	var body orderResult
	return decodeResult(result, &body)
}

// PositionInfo represents a derivatives position
type PositionInfo struct {
	Symbol        string
	Side          string // Buy, Sell or empty when flat
	Size          float64
	AvgPrice      float64
	MarkPrice     float64
	UnrealisedPnl float64
	UpdatedTime   time.Time
}

// GetPositions retrieves positions. Spot accounts have no position endpoint.
func (c *Client) GetPositions(ctx context.Context, category, symbol string) ([]PositionInfo, error) {
	category = c.categoryOr(category)
	if category == "spot" {
		return nil, fmt.Errorf("positions are not available for spot category")
	}

	params := map[string]interface{}{
		"category": category,
	}
	if symbol != "" {
		params["symbol"] = symbol
	} else {
		params["settleCoin"] = "USDT"
	}

	result, err := c.httpClient.NewUtaBybitServiceWithParams(params).GetPositionList(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get positions: %w", err)
	}

	var body positionResult
	if err := decodeResult(result, &body); err != nil {
		return nil, err
	}
	return parsePositions(body), nil
}

func parsePositions(body positionResult) []PositionInfo {
	positions := make([]PositionInfo, 0, len(body.List))
	for _, p := range body.List {
		positions = append(positions, PositionInfo{
			Symbol:        p.Symbol,
			Side:          p.Side,
			Size:          parseFloat64(p.Size),
			AvgPrice:      parseFloat64(p.AvgPrice),
			MarkPrice:     parseFloat64(p.MarkPrice),
			UnrealisedPnl: parseFloat64(p.UnrealisedPnl),
			UpdatedTime:   parseTimestamp(p.UpdatedTime),
		})
	}
	return positions
}
