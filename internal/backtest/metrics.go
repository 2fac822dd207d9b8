package backtest

import (
	"math"
)

const (
	// TradingDaysPerYear annualizes the Sharpe ratio.
	TradingDaysPerYear = 252

	// profitFactorFloor keeps the profit factor finite without losing trades.
	profitFactorFloor = 0.001
)

func summarize(run *BacktestRun) Summary {
	s := Summary{
		TotalReturn:  (run.FinalEquity - run.InitialCapital) / run.InitialCapital,
		MaxDrawdown:  MaxDrawdown(run.EquityCurve),
		SharpeRatio:  SharpeRatio(run.EquityCurve),
		TradeCount:   len(run.Trades),
		ProfitFactor: ProfitFactor(run.Trades),
		WinRate:      WinRate(run.Trades),
	}
	for _, t := range run.Trades {
		if t.Won() {
			s.WinningTrades++
		} else {
			s.LosingTrades++
		}
	}
	return s
}

// MaxDrawdown returns the largest peak-to-trough decline as a fraction of the
// peak. The running peak starts at the first point.
func MaxDrawdown(curve []EquityPoint) float64 {
	if len(curve) == 0 {
		return 0
	}
	peak := curve[0].Equity
	maxDD := 0.0
	for _, p := range curve {
		if p.Equity > peak {
			peak = p.Equity
		}
		if peak <= 0 {
			continue
		}
		if dd := (peak - p.Equity) / peak; dd > maxDD {
			maxDD = dd
		}
	}
	return maxDD
}

// SharpeRatio is the mean over the population standard deviation of the log
// returns of the curve, annualized with sqrt(252). Non-positive equity values
// are skipped.
func SharpeRatio(curve []EquityPoint) float64 {
	var returns []float64
	for i := 1; i < len(curve); i++ {
		prev, cur := curve[i-1].Equity, curve[i].Equity
		if prev <= 0 || cur <= 0 {
			continue
		}
		returns = append(returns, math.Log(cur/prev))
	}
	if len(returns) < 2 {
		return 0
	}

	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	variance := 0.0
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(returns))
	stdDev := math.Sqrt(variance)

	if stdDev < 1e-12 {
		return 0
	}
	return mean / stdDev * math.Sqrt(TradingDaysPerYear)
}

// ProfitFactor is gross profit over gross loss, with the loss floored at 0.001.
func ProfitFactor(trades []Trade) float64 {
	if len(trades) == 0 {
		return 0
	}
	var gains, losses float64
	for _, t := range trades {
		if t.PnL > 0 {
			gains += t.PnL
		} else {
			losses += t.PnL
		}
	}
	return gains / math.Max(math.Abs(losses), profitFactorFloor)
}

// WinRate is the fraction of closed trades that exited above their entry.
func WinRate(trades []Trade) float64 {
	if len(trades) == 0 {
		return 0
	}
	wins := 0
	for _, t := range trades {
		if t.Won() {
			wins++
		}
	}
	return float64(wins) / float64(len(trades))
}
