package order

import (
	"fmt"

	"github.com/ducminhle1904/crypto-trade-engine/internal/market"
)

// Rejection reasons.
const (
	ReasonInvalidSide      = "invalid side"
	ReasonInvalidAmount    = "invalid amount"
	ReasonInvalidPrice     = "invalid price"
	ReasonInvalidSymbol    = "invalid symbol"
	ReasonInvalidKind      = "invalid order kind"
	ReasonAmountBelowMin   = "amount below minimum"
	ReasonAmountAboveMax   = "amount above maximum"
	ReasonNotionalBelowMin = "notional below minimum"
)

// Rejection is a validation failure. It is never retryable.
type Rejection struct {
	Reason string
	Detail string
}

func (r *Rejection) Error() string {
	if r.Detail == "" {
		return r.Reason
	}
	return fmt.Sprintf("%s: %s", r.Reason, r.Detail)
}

// Normalized is an order whose amount and price satisfy the market constraints.
type Normalized struct {
	Side   Side
	Amount float64
	Price  *float64
}

// Validate checks side, amount and optional price against c, in that order,
// and returns the rounded values. Validating the output again yields the same output.
func Validate(c market.Constraints, side string, amount float64, price *float64) (Normalized, error) {
	s, err := ParseSide(side)
	if err != nil {
		return Normalized{}, err
	}
	if !positive(amount) {
		return Normalized{}, &Rejection{Reason: ReasonInvalidAmount, Detail: fmt.Sprintf("amount %v must be positive", amount)}
	}
	if price != nil && !positive(*price) {
		return Normalized{}, &Rejection{Reason: ReasonInvalidPrice, Detail: fmt.Sprintf("price %v must be positive", *price)}
	}

	amount = c.RoundAmount(amount)
	if amount < c.MinAmount || amount <= 0 {
		return Normalized{}, &Rejection{
			Reason: ReasonAmountBelowMin,
			Detail: fmt.Sprintf("amount %v < min %v for %s", amount, c.MinAmount, c.Symbol),
		}
	}
	if c.HasMaxAmount() && amount > c.MaxAmount {
		return Normalized{}, &Rejection{
			Reason: ReasonAmountAboveMax,
			Detail: fmt.Sprintf("amount %v > max %v for %s", amount, c.MaxAmount, c.Symbol),
		}
	}

	out := Normalized{Side: s, Amount: amount}
	if price != nil {
		p := c.RoundPrice(*price)
		if !positive(p) {
			return Normalized{}, &Rejection{Reason: ReasonInvalidPrice, Detail: fmt.Sprintf("price %v rounds to zero", *price)}
		}
		if notional := amount * p; notional < c.MinNotional {
			return Normalized{}, &Rejection{
				Reason: ReasonNotionalBelowMin,
				Detail: fmt.Sprintf("notional %v < min %v for %s", notional, c.MinNotional, c.Symbol),
			}
		}
		out.Price = &p
	}
	return out, nil
}

// ValidateSpec applies Validate to a full order spec. The price of limit and
// stop-loss-limit orders takes part in the notional check and the stop trigger
// is rounded with the price precision.
func ValidateSpec(c market.Constraints, s Spec) (Spec, error) {
	if err := s.Check(); err != nil {
		return Spec{}, err
	}

	var price *float64
	if p, ok := PriceOf(s.Kind); ok {
		price = &p
	}

	n, err := Validate(c, string(s.Side), s.Amount, price)
	if err != nil {
		return Spec{}, err
	}

	out := Spec{Symbol: s.Symbol, Side: n.Side, Amount: n.Amount}
	switch k := s.Kind.(type) {
	case Market:
		out.Kind = k
	case Limit:
		out.Kind = Limit{Price: *n.Price}
	case StopLossLimit:
		trigger := c.RoundPrice(k.Trigger)
		if !positive(trigger) {
			return Spec{}, &Rejection{Reason: ReasonInvalidPrice, Detail: fmt.Sprintf("stop trigger %v rounds to zero", k.Trigger)}
		}
		out.Kind = StopLossLimit{Price: *n.Price, Trigger: trigger}
	default:
		return Spec{}, &Rejection{Reason: ReasonInvalidKind, Detail: fmt.Sprintf("unsupported order kind %T", s.Kind)}
	}
	return out, nil
}
