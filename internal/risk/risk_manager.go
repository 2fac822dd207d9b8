package risk

import (
	"fmt"
	"math"
)

// Gate violation messages.
const (
	ReasonPortfolioNotSet = "Portfolio value is zero or not set."
	ReasonZeroAmount      = "Trade amount is zero."
	ReasonNoRisk          = "Risk per trade is zero or negative."
)

// StopLossPrices returns the raw and buffered stop for an entry. The buffer is
// applied in the same direction as the stop, away from entry.
func StopLossPrices(entry float64, side Side, stopLossPct, bufferPct float64) (raw, buffered float64) {
	if side == SideSell {
		raw = entry * (1 + stopLossPct)
		return raw, raw * (1 + bufferPct)
	}
	raw = entry * (1 - stopLossPct)
	return raw, raw * (1 - bufferPct)
}

// TakeProfitPrice returns the take-profit level takeProfitPct away from entry.
func TakeProfitPrice(entry float64, side Side, takeProfitPct float64) float64 {
	if side == SideSell {
		return entry * (1 - takeProfitPct)
	}
	return entry * (1 + takeProfitPct)
}

// Assess sizes the protective stop for a trade and runs the sanity gate.
// maxRiskPctPerTrade is a percentage of portfolioValue.
func Assess(entry float64, side Side, amount, stopLossPct, bufferPct, portfolioValue, maxRiskPctPerTrade float64) Assessment {
	raw, buffered := StopLossPrices(entry, side, stopLossPct, bufferPct)

	riskPerUnit := math.Abs(entry - buffered)
	riskTotal := riskPerUnit * amount
	riskPct := 0.0
	if portfolioValue > 0 {
		riskPct = riskTotal / portfolioValue * 100
	}

	a := Assessment{
		Entry:              entry,
		Side:               side,
		Amount:             amount,
		StopLossRaw:        raw,
		StopLossBuffered:   buffered,
		RiskPerUnit:        riskPerUnit,
		RiskTotal:          riskTotal,
		RiskPctOfPortfolio: riskPct,
	}

	if !(portfolioValue > 0) {
		a.Reasons = append(a.Reasons, ReasonPortfolioNotSet)
	}
	if !(amount > 0) {
		a.Reasons = append(a.Reasons, ReasonZeroAmount)
	}
	if !(riskTotal > 0) {
		a.Reasons = append(a.Reasons, ReasonNoRisk)
	}
	if riskPct > maxRiskPctPerTrade {
		a.Reasons = append(a.Reasons, fmt.Sprintf("Risk per trade (%.2f%%) exceeds allowed (%.2f%%).", riskPct, maxRiskPctPerTrade))
	}
	a.Passed = len(a.Reasons) == 0
	return a
}

// Sizer applies a fixed policy to every request.
type Sizer struct {
	policy Policy
}

// NewSizer creates a sizer for a validated policy.
func NewSizer(policy Policy) (*Sizer, error) {
	if err := policy.Validate(); err != nil {
		return nil, fmt.Errorf("invalid risk policy: %w", err)
	}
	return &Sizer{policy: policy}, nil
}

// Policy returns the policy the sizer enforces.
func (s *Sizer) Policy() Policy {
	return s.policy
}

// Assess evaluates req against the policy.
func (s *Sizer) Assess(req Request) Assessment {
	return Assess(req.Entry, req.Side, req.Amount, s.policy.StopLossPct, s.policy.BufferPct, req.PortfolioValue, s.policy.MaxRiskPctPerTrade)
}

// TakeProfit returns the policy take-profit price, or 0 when disabled.
func (s *Sizer) TakeProfit(entry float64, side Side) float64 {
	if s.policy.TakeProfitPct <= 0 {
		return 0
	}
	return TakeProfitPrice(entry, side, s.policy.TakeProfitPct)
}

// MaxAmount returns the largest amount whose buffered stop risk stays within
// the policy for the given portfolio value.
func (s *Sizer) MaxAmount(entry float64, side Side, portfolioValue float64) float64 {
	if entry <= 0 || portfolioValue <= 0 {
		return 0
	}
	_, buffered := StopLossPrices(entry, side, s.policy.StopLossPct, s.policy.BufferPct)
	perUnit := math.Abs(entry - buffered)
	if perUnit == 0 {
		return 0
	}
	return portfolioValue * s.policy.MaxRiskPctPerTrade / 100 / perUnit
}

var _ Assessor = (*Sizer)(nil)
