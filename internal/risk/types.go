package risk

import (
	"fmt"
	"math"
)

// Side is the direction of the entry order.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Policy is the externally configured risk budget. StopLossPct, BufferPct and
// TakeProfitPct are fractions of the entry price; MaxRiskPctPerTrade is a
// percentage of the portfolio value.
type Policy struct {
	MaxRiskPctPerTrade float64 `yaml:"max_risk_pct_per_trade" json:"max_risk_pct_per_trade"`
	StopLossPct        float64 `yaml:"stop_loss_pct" json:"stop_loss_pct"`
	BufferPct          float64 `yaml:"buffer_pct" json:"buffer_pct"`
	TakeProfitPct      float64 `yaml:"take_profit_pct" json:"take_profit_pct"`
}

// DefaultPolicy risks at most 1% of the portfolio behind a 2% stop.
func DefaultPolicy() Policy {
	return Policy{
		MaxRiskPctPerTrade: 1.0,
		StopLossPct:        0.02,
		BufferPct:          0.001,
		TakeProfitPct:      0.04,
	}
}

// Validate checks the policy values are plain positive numbers and that the
// stop and buffer fractions are below 1.
func (p Policy) Validate() error {
	if !finite(p.MaxRiskPctPerTrade) || p.MaxRiskPctPerTrade <= 0 || p.MaxRiskPctPerTrade > 100 {
		return fmt.Errorf("max risk per trade must be in (0, 100], got %v", p.MaxRiskPctPerTrade)
	}
	if !finite(p.StopLossPct) || p.StopLossPct <= 0 || p.StopLossPct >= 1 {
		return fmt.Errorf("stop loss pct must be in (0, 1), got %v", p.StopLossPct)
	}
	if !finite(p.BufferPct) || p.BufferPct < 0 || p.BufferPct >= 1 {
		return fmt.Errorf("buffer pct must be in [0, 1), got %v", p.BufferPct)
	}
	if !finite(p.TakeProfitPct) || p.TakeProfitPct < 0 {
		return fmt.Errorf("take profit pct must be non-negative, got %v", p.TakeProfitPct)
	}
	return nil
}

// Request is a proposed entry to be assessed.
type Request struct {
	Entry          float64
	Side           Side
	Amount         float64
	PortfolioValue float64
}

// Assessment is the result of one risk evaluation. Reasons lists every
// violated condition in check order.
type Assessment struct {
	Entry              float64
	Side               Side
	Amount             float64
	StopLossRaw        float64
	StopLossBuffered   float64
	RiskPerUnit        float64
	RiskTotal          float64
	RiskPctOfPortfolio float64
	Passed             bool
	Reasons            []string
}

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
