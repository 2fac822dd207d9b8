package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ducminhle1904/crypto-trade-engine/internal/execution"
	"github.com/ducminhle1904/crypto-trade-engine/internal/notifications"
	"github.com/ducminhle1904/crypto-trade-engine/internal/order"
	"github.com/ducminhle1904/crypto-trade-engine/internal/risk"
)

// orderRequest is the order described on the command line
type orderRequest struct {
	Symbol  string
	Side    order.Side
	Kind    string
	Amount  float64
	Price   float64
	Trigger float64

	StopLoss   float64
	StopLimit  float64
	TakeProfit float64
	Protect    bool
}

// kind builds the order kind from the request
func (r orderRequest) kind() (order.Kind, error) {
	switch strings.ToLower(r.Kind) {
	case "", "market":
		return order.Market{}, nil
	case "limit":
		return order.Limit{Price: r.Price}, nil
	case "stop_loss_limit", "stop":
		return order.StopLossLimit{Price: r.Price, Trigger: r.Trigger}, nil
	}
	return nil, fmt.Errorf("unknown order kind %q: use market, limit or stop_loss_limit", r.Kind)
}

// entryPrice is the limit price, else the current ticker
func (t *Trader) entryPrice(ctx context.Context, symbol string, kind order.Kind) (float64, error) {
	if p, ok := order.PriceOf(kind); ok {
		return p, nil
	}
	tk, err := t.exchange.FetchTicker(ctx, symbol)
	if err != nil {
		return 0, err
	}
	if tk.Price() <= 0 {
		return 0, fmt.Errorf("no price available for %s", symbol)
	}
	return tk.Price(), nil
}

// Place sizes, protects and submits the request. A zero amount is sized to
// the largest position the risk policy allows.
func (t *Trader) Place(ctx context.Context, req orderRequest) (*execution.Placement, error) {
	kind, err := req.kind()
	if err != nil {
		return nil, err
	}

	needPrice := req.Amount <= 0 || (req.Protect && (req.StopLoss <= 0 || req.TakeProfit <= 0))
	var entry float64
	if needPrice {
		if entry, err = t.entryPrice(ctx, req.Symbol, kind); err != nil {
			return nil, err
		}
	}

	amount := req.Amount
	if amount <= 0 {
		portfolio, err := t.portfolioValue(ctx)
		if err != nil {
			return nil, err
		}
		c, err := t.resolver.Resolve(req.Symbol)
		if err != nil {
			return nil, err
		}
		amount = c.FloorAmount(t.sizer.MaxAmount(entry, risk.Side(req.Side), portfolio))
		if amount <= 0 {
			return nil, fmt.Errorf("risk policy allows no %s position at %.8g", req.Symbol, entry)
		}
		t.log.Info("Sized %s %s to %.8g from portfolio %.2f", req.Side, req.Symbol, amount, portfolio)
	}

	po := execution.ProtectedOrder{
		Order: order.Spec{Symbol: req.Symbol, Side: req.Side, Kind: kind, Amount: amount},
	}

	stop, tp := req.StopLoss, req.TakeProfit
	if req.Protect {
		if stop <= 0 {
			policy := t.sizer.Policy()
			_, stop = risk.StopLossPrices(entry, risk.Side(req.Side), policy.StopLossPct, policy.BufferPct)
		}
		if tp <= 0 {
			tp = t.sizer.TakeProfit(entry, risk.Side(req.Side))
		}
	}
	if stop > 0 {
		params := execution.StopLossParams{StopPrice: stop}
		if req.StopLimit > 0 {
			limit := req.StopLimit
			params.LimitPrice = &limit
		}
		po.StopLoss = &params
	}
	if tp > 0 {
		po.TakeProfit = &tp
	}

	placement, err := t.manager.PlaceWithProtection(ctx, po)
	if err != nil {
		t.health.RecordError(err.Error())
		t.alert(ctx, notifications.LevelError, "%s %s %.8g rejected: %v", req.Side, req.Symbol, amount, err)
		return nil, err
	}
	price := placement.Primary.AvgPrice
	if price == 0 {
		price = placement.Primary.Price()
	}
	t.health.RecordOrder(price)
	failures := placement.Failures()
	for _, f := range failures {
		t.health.RecordError(f.Error())
	}
	if len(failures) > 0 {
		t.alert(ctx, notifications.LevelWarning, "%s %s entry %s is open without full protection: %v",
			req.Side, req.Symbol, placement.Primary.OrderID, errors.Join(failures...))
	}
	return placement, nil
}

// Cancel cancels a resting order
func (t *Trader) Cancel(ctx context.Context, orderID, symbol string) error {
	if err := t.manager.Cancel(ctx, orderID, symbol); err != nil {
		t.health.RecordError(err.Error())
		return err
	}
	return nil
}

// History returns the orders accepted this session
func (t *Trader) History() []execution.OrderResult {
	return t.manager.History()
}
