package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ducminhle1904/crypto-trade-engine/internal/exchange"
	"github.com/ducminhle1904/crypto-trade-engine/internal/exchange/paper"
	"github.com/ducminhle1904/crypto-trade-engine/pkg/data"
	"github.com/ducminhle1904/crypto-trade-engine/pkg/types"
)

const testConfig = `exchange:
  name: paper
trading:
  symbols: [BTCUSDT]
  interval: 1h
`

func hourlyBars(n int) []types.OHLCV {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]types.OHLCV, n)
	for i := range bars {
		p := 50 + float64(i)
		bars[i] = types.OHLCV{Timestamp: start.Add(time.Duration(i) * time.Hour), Open: p, High: p + 2, Low: p - 1, Close: p + 1, Volume: 3}
	}
	return bars
}

// withPaper serves bars for BTCUSDT from a paper exchange for the test
func withPaper(t *testing.T, bars []types.OHLCV) {
	t.Helper()
	orig := newExchange
	newExchange = func(exchange.ExchangeConfig) (exchange.Exchange, error) {
		p := paper.New(paper.DefaultConfig())
		p.LoadBars("BTCUSDT", bars)
		return p, nil
	}
	t.Cleanup(func() { newExchange = orig })
}

func writeConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fetch.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testConfig), 0o644))
	return path
}

// TestRun_SavesToDataLayout tests that fetched bars land where the backtest looks
func TestRun_SavesToDataLayout(t *testing.T) {
	withPaper(t, hourlyBars(48))
	root := t.TempDir()

	var out bytes.Buffer
	err := run(context.Background(), []string{"-config", writeConfig(t), "-data-root", root, "-limit", "24", "-no-emojis"}, &out)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "DOWNLOADS")
	assert.Contains(t, out.String(), "24 bars")

	path, err := data.NewDataManager().FindDataFile(root, "paper", "BTCUSDT", "1h")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "paper", "spot", "BTCUSDT", "60", "candles.csv"), path)

	s, err := data.NewDataManager().Load(path)
	require.NoError(t, err)
	assert.Equal(t, hourlyBars(48)[24:], s.Bars)
}

// TestRun_ExplicitOutput tests the single file mode
func TestRun_ExplicitOutput(t *testing.T) {
	withPaper(t, hourlyBars(5))
	path := filepath.Join(t.TempDir(), "nested", "btc.csv")

	err := run(context.Background(), []string{"-config", writeConfig(t), "-output", path, "-category", "linear", "-silent"}, &bytes.Buffer{})
	require.NoError(t, err)
	assert.FileExists(t, path)

	err = run(context.Background(), []string{"-config", writeConfig(t), "-output", path, "-symbols", "BTCUSDT,ETHUSDT"}, &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exactly one symbol")
}

// TestRun_PartialFailure tests that a missing symbol is reported but others are saved
func TestRun_PartialFailure(t *testing.T) {
	withPaper(t, hourlyBars(5))
	root := t.TempDir()

	err := run(context.Background(), []string{"-config", writeConfig(t), "-data-root", root, "-symbols", "btcusdt, ethusdt"}, &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ETHUSDT 1h bars: no data provided")
	assert.FileExists(t, filepath.Join(root, "paper", "spot", "BTCUSDT", "60", "candles.csv"))
}

// TestRun_InvalidLimit tests flag validation
func TestRun_InvalidLimit(t *testing.T) {
	err := run(context.Background(), []string{"-limit", "5000"}, &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "limit must be between 1 and 1000")
}

// TestSplitList tests list flag parsing
func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, splitList(" btcusdt,,ethusdt ", strings.ToUpper))
	assert.Nil(t, splitList("", strings.ToUpper))
}

// TestPriceRange tests the summary low and high
func TestPriceRange(t *testing.T) {
	d := download{series: data.Series{Bars: hourlyBars(3)}}
	low, high := d.priceRange()
	assert.Equal(t, 49.0, low)
	assert.Equal(t, 54.0, high)
}
