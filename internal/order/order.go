package order

import (
	"fmt"
	"math"
	"strings"
)

// Side is the direction of an order.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// ParseSide accepts "buy" or "sell" in any case.
func ParseSide(s string) (Side, error) {
	switch Side(strings.ToLower(strings.TrimSpace(s))) {
	case SideBuy:
		return SideBuy, nil
	case SideSell:
		return SideSell, nil
	}
	return "", &Rejection{Reason: ReasonInvalidSide, Detail: fmt.Sprintf("side %q is not buy or sell", s)}
}

// Opposite returns the side that closes a position opened by s.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// Kind is the execution style of an order. The set is closed: Market, Limit
// and StopLossLimit.
type Kind interface {
	Name() string
	isKind()
}

// Market executes at the prevailing price.
type Market struct{}

// Limit rests at Price.
type Limit struct {
	Price float64
}

// StopLossLimit becomes a limit order at Price once Trigger trades.
type StopLossLimit struct {
	Price   float64
	Trigger float64
}

func (Market) Name() string        { return "market" }
func (Limit) Name() string         { return "limit" }
func (StopLossLimit) Name() string { return "stop_loss_limit" }

func (Market) isKind()        {}
func (Limit) isKind()         {}
func (StopLossLimit) isKind() {}

// PriceOf returns the limit price carried by k, if any.
func PriceOf(k Kind) (float64, bool) {
	switch v := k.(type) {
	case Limit:
		return v.Price, true
	case StopLossLimit:
		return v.Price, true
	}
	return 0, false
}

// TriggerOf returns the stop trigger carried by k, if any.
func TriggerOf(k Kind) (float64, bool) {
	if v, ok := k.(StopLossLimit); ok {
		return v.Trigger, true
	}
	return 0, false
}

// Spec describes an order to be placed.
type Spec struct {
	Symbol string
	Side   Side
	Kind   Kind
	Amount float64
}

// Check verifies the structural shape of the spec before any market rules apply.
func (s Spec) Check() error {
	if s.Symbol == "" {
		return &Rejection{Reason: ReasonInvalidSymbol, Detail: "symbol is empty"}
	}
	if _, err := ParseSide(string(s.Side)); err != nil {
		return err
	}
	if s.Kind == nil {
		return &Rejection{Reason: ReasonInvalidKind, Detail: "order kind is missing"}
	}
	if !positive(s.Amount) {
		return &Rejection{Reason: ReasonInvalidAmount, Detail: fmt.Sprintf("amount %v must be positive", s.Amount)}
	}
	if p, ok := PriceOf(s.Kind); ok && !positive(p) {
		return &Rejection{Reason: ReasonInvalidPrice, Detail: fmt.Sprintf("%s price %v must be positive", s.Kind.Name(), p)}
	}
	if tr, ok := TriggerOf(s.Kind); ok && !positive(tr) {
		return &Rejection{Reason: ReasonInvalidPrice, Detail: fmt.Sprintf("stop trigger %v must be positive", tr)}
	}
	return nil
}

func (s Spec) String() string {
	switch k := s.Kind.(type) {
	case Limit:
		return fmt.Sprintf("%s %s %.8g %s @ %.8g", s.Kind.Name(), s.Side, s.Amount, s.Symbol, k.Price)
	case StopLossLimit:
		return fmt.Sprintf("%s %s %.8g %s @ %.8g (trigger %.8g)", s.Kind.Name(), s.Side, s.Amount, s.Symbol, k.Price, k.Trigger)
	case nil:
		return fmt.Sprintf("<no kind> %s %.8g %s", s.Side, s.Amount, s.Symbol)
	}
	return fmt.Sprintf("%s %s %.8g %s", s.Kind.Name(), s.Side, s.Amount, s.Symbol)
}

func positive(x float64) bool {
	return x > 0 && !math.IsNaN(x) && !math.IsInf(x, 0)
}
