package backtest

import (
	"context"
	"testing"

	"github.com/ducminhle1904/crypto-trade-engine/internal/risk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSweep tests that parallel variants match sequential runs and keep their order
func TestSweep(t *testing.T) {
	bars := generateVolatileBars(80)
	signals := alternatingSignals(80, 4)

	tight := risk.DefaultPolicy()
	tight.StopLossPct = 0.01
	variants := []Variant{
		{Name: "plain"},
		{Name: "half", Options: []Option{WithAllocation(0.5)}},
		{Name: "protected", Options: []Option{WithRiskPolicy(risk.DefaultPolicy())}},
		{Name: "tight", Options: []Option{WithRiskPolicy(tight)}},
	}

	runs, err := Sweep(context.Background(), bars, signals, 10000, 0.001, variants, 3)
	require.NoError(t, err)
	require.Len(t, runs, len(variants))

	for i, v := range variants {
		expected := NewEngine(v.Options...).Run(bars, signals, 10000, 0.001)
		assert.Equal(t, expected, runs[i], v.Name)
	}
}

// TestSweep_Cancelled tests that a cancelled context stops the sweep
func TestSweep_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	variants := make([]Variant, 4)
	_, err := Sweep(ctx, generateFlatBars(3, 100), holdSignals(3), 10000, 0, variants, 2)
	assert.Error(t, err)
}

// TestWorkerPool tests submitting jobs directly to the pool
func TestWorkerPool(t *testing.T) {
	pool := NewWorkerPool(context.Background(), 2, 3)
	pool.Start()

	bars := generateLinearBars(10, 100, 110)
	for i := 0; i < 3; i++ {
		require.NoError(t, pool.SubmitJob(Job{ID: "job", Index: i, Bars: bars, Signals: holdSignals(10), InitialCapital: 1000}))
	}
	pool.Stop()

	seen := make(map[int]bool)
	for r := range pool.Results() {
		require.NotNil(t, r.Run)
		assert.Empty(t, r.Run.Invalid)
		seen[r.Index] = true
	}
	assert.Len(t, seen, 3)
}
