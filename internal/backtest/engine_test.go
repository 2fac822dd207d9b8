package backtest

import (
	"math"
	"testing"
	"time"

	"github.com/ducminhle1904/crypto-trade-engine/internal/market"
	"github.com/ducminhle1904/crypto-trade-engine/internal/order"
	"github.com/ducminhle1904/crypto-trade-engine/internal/risk"
	"github.com/ducminhle1904/crypto-trade-engine/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// TestNewEngine tests the defaults and option handling
func TestNewEngine(t *testing.T) {
	e := NewEngine()
	assert.Equal(t, DefaultAllocation, e.allocation)
	assert.Nil(t, e.constraints)
	assert.Nil(t, e.policy)

	e = NewEngine(WithAllocation(0.5), WithSymbol("ETHUSDT"))
	assert.Equal(t, 0.5, e.allocation)
	assert.Equal(t, "ETHUSDT", e.symbol)

	e = NewEngine(WithAllocation(1.5))
	assert.Equal(t, DefaultAllocation, e.allocation, "out of range allocation is ignored")
}

// TestRun_RisingBars tests a single round trip over ten rising daily closes
func TestRun_RisingBars(t *testing.T) {
	bars := generateLinearBars(10, 100, 110)
	signals := holdSignals(10)
	signals[2] = types.ActionBuy
	signals[9] = types.ActionSell

	run := Run(bars, signals, 10000, 0.001)

	require.NotNil(t, run)
	assert.Empty(t, run.Invalid)
	require.Len(t, run.Trades, 1)
	assert.Equal(t, 1, run.Summary.TradeCount)
	assert.Greater(t, run.Summary.TotalReturn, 0.0)
	assert.Equal(t, 0.0, run.Summary.MaxDrawdown)
	assert.Equal(t, 1.0, run.Summary.WinRate)
	assert.Len(t, run.EquityCurve, 9, "the first bar is only the reference mark")
	assert.Equal(t, bars[0].Timestamp, run.Start)
	assert.Equal(t, bars[9].Timestamp, run.End)

	trade := run.Trades[0]
	assert.Equal(t, bars[2].Close, trade.EntryPrice)
	assert.Equal(t, bars[9].Close, trade.ExitPrice)
	assert.Equal(t, ExitSignal, trade.ExitReason)
	assert.Greater(t, trade.PnL, 0.0)
}

// TestRun_Deterministic tests that identical inputs produce identical runs
func TestRun_Deterministic(t *testing.T) {
	bars := generateVolatileBars(60)
	signals := alternatingSignals(60, 5)
	policy := risk.DefaultPolicy()

	e := NewEngine(WithSymbol("BTCUSDT"), WithRiskPolicy(policy))
	first := e.Run(bars, signals, 10000, 0.001)
	second := e.Run(bars, signals, 10000, 0.001)

	assert.Equal(t, first, second)
	assert.NotEmpty(t, first.Trades)
}

// TestRun_InvalidInputs tests that malformed inputs degrade to a zero-activity run
func TestRun_InvalidInputs(t *testing.T) {
	good := generateLinearBars(5, 100, 104)
	badBar := generateLinearBars(5, 100, 104)
	badBar[3].Close = -1

	tests := []struct {
		name       string
		bars       []types.OHLCV
		signals    []types.Action
		capital    float64
		commission float64
		equity     float64
	}{
		{"no bars", nil, nil, 10000, 0.001, 10000},
		{"signal count mismatch", good, holdSignals(4), 10000, 0.001, 10000},
		{"zero capital", good, holdSignals(5), 0, 0.001, 0},
		{"negative capital", good, holdSignals(5), -50, 0.001, 0},
		{"negative commission", good, holdSignals(5), 10000, -0.01, 10000},
		{"commission not a fraction", good, holdSignals(5), 10000, 1, 10000},
		{"bad prices", badBar, holdSignals(5), 10000, 0.001, 10000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			run := Run(tt.bars, tt.signals, tt.capital, tt.commission)

			require.NotNil(t, run)
			assert.NotEmpty(t, run.Invalid)
			assert.Empty(t, run.Fills)
			assert.Empty(t, run.Trades)
			assert.Empty(t, run.EquityCurve)
			assert.Equal(t, tt.equity, run.FinalEquity)
			assert.Equal(t, Summary{}, run.Summary)
		})
	}
}

// TestRun_Commission tests that both legs pay commission on their notional
func TestRun_Commission(t *testing.T) {
	bars := generateFlatBars(3, 100)
	signals := []types.Action{types.ActionHold, types.ActionBuy, types.ActionSell}

	run := Run(bars, signals, 10000, 0.001)

	require.Len(t, run.Fills, 2)
	assert.InDelta(t, 95.0, run.Fills[0].Amount, 1e-9)
	assert.InDelta(t, 9.5, run.Fills[0].Commission, 1e-9)
	assert.InDelta(t, 9.5, run.Fills[1].Commission, 1e-9)

	require.Len(t, run.Trades, 1)
	assert.InDelta(t, -19.0, run.Trades[0].PnL, 1e-9)
	assert.InDelta(t, 19.0, run.Trades[0].Commission, 1e-9)
	assert.InDelta(t, 9981.0, run.FinalEquity, 1e-9)
	assert.InDelta(t, -0.0019, run.Summary.TotalReturn, 1e-12)
	assert.Equal(t, 1, run.Summary.LosingTrades, "an exit at the entry price is not a win")
	assert.Equal(t, 0.0, run.Summary.ProfitFactor)
}

// TestRun_SignalHandling tests which signals are acted upon
func TestRun_SignalHandling(t *testing.T) {
	bars := generateLinearBars(6, 100, 105)

	tests := []struct {
		name    string
		signals []types.Action
		fills   int
		trades  int
	}{
		{"first bar signal ignored", []types.Action{"buy", "hold", "hold", "hold", "hold", "hold"}, 0, 0},
		{"sell while flat", []types.Action{"hold", "sell", "hold", "hold", "hold", "hold"}, 0, 0},
		{"buy while holding", []types.Action{"hold", "buy", "buy", "buy", "hold", "hold"}, 1, 0},
		{"two round trips", []types.Action{"hold", "buy", "sell", "buy", "sell", "hold"}, 4, 2},
		{"unknown action", []types.Action{"hold", "short", "hold", "hold", "hold", "hold"}, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			run := Run(bars, tt.signals, 10000, 0.001)

			assert.Empty(t, run.Invalid)
			assert.Len(t, run.Fills, tt.fills)
			assert.Len(t, run.Trades, tt.trades)
		})
	}
}

// TestRun_OpenPositionMarkedToMarket tests that an unclosed entry counts in final equity only
func TestRun_OpenPositionMarkedToMarket(t *testing.T) {
	bars := generateLinearBars(5, 100, 120)
	signals := holdSignals(5)
	signals[1] = types.ActionBuy

	run := Run(bars, signals, 10000, 0)

	assert.Empty(t, run.Trades)
	require.Len(t, run.Fills, 1)
	size := run.Fills[0].Amount
	cash := 10000 - size*bars[1].Close
	assert.InDelta(t, cash+size*bars[4].Close, run.FinalEquity, 1e-9)
	assert.Greater(t, run.Summary.TotalReturn, 0.0)
}

// TestRun_FallingBars tests a losing round trip
func TestRun_FallingBars(t *testing.T) {
	bars := generateLinearBars(20, 120, 100)
	signals := holdSignals(20)
	signals[1] = types.ActionBuy
	signals[19] = types.ActionSell

	run := Run(bars, signals, 10000, 0.001)

	require.Len(t, run.Trades, 1)
	assert.Less(t, run.Summary.TotalReturn, 0.0)
	assert.Greater(t, run.Summary.MaxDrawdown, 0.0)
	assert.Less(t, run.Summary.SharpeRatio, 0.0)
	assert.Equal(t, 0.0, run.Summary.WinRate)
}

// TestRun_WithConstraints tests entries routed through the order validator
func TestRun_WithConstraints(t *testing.T) {
	bars := generateFlatBars(3, 30)
	signals := []types.Action{types.ActionHold, types.ActionBuy, types.ActionHold}

	c := market.Constraints{Symbol: "BTCUSDT", MinAmount: 0.1, MinNotional: 5, AmountPrecision: 1, PricePrecision: 2}
	run := NewEngine(WithConstraints(c)).Run(bars, signals, 10000, 0.001)

	require.Len(t, run.Fills, 1)
	assert.InDelta(t, 316.7, run.Fills[0].Amount, 1e-9)
	assert.Equal(t, order.SideBuy, run.Fills[0].Side)

	c.MinAmount = 1000
	run = NewEngine(WithConstraints(c)).Run(bars, signals, 10000, 0.001)
	assert.Empty(t, run.Fills)
	assert.Equal(t, 1, run.SkippedEntries)
}

// TestRun_ProtectiveExits tests intrabar stop-loss and take-profit exits
func TestRun_ProtectiveExits(t *testing.T) {
	policy := risk.Policy{MaxRiskPctPerTrade: 1, StopLossPct: 0.02, BufferPct: 0.001, TakeProfitPct: 0.04}

	tests := []struct {
		name   string
		bar    types.OHLCV
		price  float64
		reason ExitReason
	}{
		{"stop inside range", ohlc(99, 100, 97, 98.5), 97.902, ExitStopLoss},
		{"gap below stop", ohlc(95, 96, 94, 95.5), 95, ExitStopLoss},
		{"take profit inside range", ohlc(101, 105, 100.5, 103), 104, ExitTakeProfit},
		{"gap above take profit", ohlc(106, 107, 105.5, 106.5), 106, ExitTakeProfit},
		{"both touched books the stop", ohlc(100, 105, 97, 100), 97.902, ExitStopLoss},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bars := generateFlatBars(3, 100)
			tt.bar.Timestamp = bars[2].Timestamp
			bars[2] = tt.bar
			signals := []types.Action{types.ActionHold, types.ActionBuy, types.ActionBuy}

			run := NewEngine(WithRiskPolicy(policy)).Run(bars, signals, 10000, 0)

			require.Len(t, run.Trades, 1)
			assert.InDelta(t, tt.price, run.Trades[0].ExitPrice, 1e-9)
			assert.Equal(t, tt.reason, run.Trades[0].ExitReason)
			assert.Len(t, run.Fills, 2, "no re-entry on the exit bar")
		})
	}

	t.Run("quiet bar keeps the position", func(t *testing.T) {
		bars := generateFlatBars(3, 100)
		signals := []types.Action{types.ActionHold, types.ActionBuy, types.ActionHold}

		run := NewEngine(WithRiskPolicy(policy)).Run(bars, signals, 10000, 0)

		assert.Empty(t, run.Trades)
		assert.Len(t, run.Fills, 1)
	})
}

func holdSignals(n int) []types.Action {
	signals := make([]types.Action, n)
	for i := range signals {
		signals[i] = types.ActionHold
	}
	return signals
}

func alternatingSignals(n, every int) []types.Action {
	signals := holdSignals(n)
	buy := true
	for i := every; i < n; i += every {
		if buy {
			signals[i] = types.ActionBuy
		} else {
			signals[i] = types.ActionSell
		}
		buy = !buy
	}
	return signals
}

func ohlc(open, high, low, close float64) types.OHLCV {
	return types.OHLCV{Open: open, High: high, Low: low, Close: close, Volume: 1000}
}

// generateLinearBars creates daily bars whose closes move linearly from first to last
func generateLinearBars(count int, first, last float64) []types.OHLCV {
	data := make([]types.OHLCV, count)
	step := 0.0
	if count > 1 {
		step = (last - first) / float64(count-1)
	}
	for i := 0; i < count; i++ {
		price := first + float64(i)*step
		data[i] = types.OHLCV{
			Timestamp: baseTime.Add(time.Duration(i) * 24 * time.Hour),
			Open:      price,
			High:      price + 0.5,
			Low:       price - 0.5,
			Close:     price,
			Volume:    1000.0,
		}
	}
	return data
}

// generateFlatBars creates bars that never move
func generateFlatBars(count int, price float64) []types.OHLCV {
	data := generateLinearBars(count, price, price)
	for i := range data {
		data[i].High = price
		data[i].Low = price
	}
	return data
}

// generateVolatileBars creates data with large alternating swings
func generateVolatileBars(count int) []types.OHLCV {
	data := make([]types.OHLCV, count)
	for i := 0; i < count; i++ {
		price := 100.0 + 10*math.Sin(float64(i)/3)
		data[i] = types.OHLCV{
			Timestamp: baseTime.Add(time.Duration(i) * time.Hour),
			Open:      price,
			High:      price + 3.0,
			Low:       price - 3.0,
			Close:     price,
			Volume:    1000.0,
		}
	}
	return data
}
