package reporting

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/ducminhle1904/crypto-trade-engine/internal/backtest"
	"github.com/ducminhle1904/crypto-trade-engine/internal/exchange"
	"github.com/ducminhle1904/crypto-trade-engine/internal/execution"
	"github.com/ducminhle1904/crypto-trade-engine/internal/order"
	"github.com/ducminhle1904/crypto-trade-engine/pkg/types"
)

// sampleRun replays two round trips over twelve daily bars
func sampleRun(t *testing.T) *backtest.BacktestRun {
	t.Helper()
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	closes := []float64{100, 101, 103, 102, 105, 104, 101, 99, 100, 102, 104, 106}
	bars := make([]types.OHLCV, len(closes))
	signals := make([]types.Action, len(closes))
	for i, c := range closes {
		bars[i] = types.OHLCV{Timestamp: start.AddDate(0, 0, i), Open: c, High: c + 1, Low: c - 1, Close: c, Volume: 10}
		signals[i] = types.ActionHold
	}
	signals[1], signals[4] = types.ActionBuy, types.ActionSell
	signals[5], signals[7] = types.ActionBuy, types.ActionSell

	run := backtest.NewEngine(backtest.WithSymbol("BTCUSDT")).Run(bars, signals, 10000, 0.001)
	require.Len(t, run.Trades, 2)
	return run
}

func sampleHistory() []execution.OrderResult {
	return []execution.OrderResult{
		{
			OrderID: "p-1", Symbol: "BTCUSDT", Side: order.SideBuy, Kind: order.Market{}, Role: execution.RolePrimary,
			Amount: 0.5, FilledAmount: 0.5, AvgPrice: 100, Status: exchange.OrderStatusFilled, State: execution.StateFilled,
			Trail: []execution.State{execution.StateRequested, execution.StateValidated, execution.StateSubmitted, execution.StateFilled},
		},
		{
			OrderID: "p-2", Symbol: "BTCUSDT", Side: order.SideSell, Kind: order.StopLossLimit{Price: 97.9, Trigger: 98},
			Role: execution.RoleStopLoss, Amount: 0.5, Status: exchange.OrderStatusUntriggered, State: execution.StatePending,
		},
	}
}

// TestConsoleReporter tests the rendered tables
func TestConsoleReporter(t *testing.T) {
	run := sampleRun(t)
	r := NewDefaultConsoleReporter()

	var buf bytes.Buffer
	r.OutputRun(&buf, run)
	out := buf.String()
	assert.Contains(t, out, "BACKTEST RESULTS")
	assert.Contains(t, out, "BTCUSDT")
	assert.Contains(t, out, "$10000.00")

	buf.Reset()
	r.OutputTrades(&buf, run)
	assert.Contains(t, buf.String(), "signal")

	buf.Reset()
	r.OutputOrders(&buf, sampleHistory())
	assert.Contains(t, buf.String(), "stop_loss_limit")
	assert.Contains(t, buf.String(), "97.9000")

	buf.Reset()
	r.OutputRun(&buf, backtest.Run(nil, nil, 1000, 0))
	assert.Contains(t, buf.String(), "no bars")
}

// TestWriteTradesCSV tests the trades file layout
func TestWriteTradesCSV(t *testing.T) {
	run := sampleRun(t)
	path := filepath.Join(t.TempDir(), "out", "trades.csv")

	require.NoError(t, WriteTradesCSV(run, path))

	rows := readCSV(t, path)
	require.Len(t, rows, 4, "header, two trades, summary")
	assert.Equal(t, "Trade", rows[0][0])
	assert.Equal(t, "101", rows[1][3])
	assert.Equal(t, "W", rows[1][10])
	assert.Equal(t, "L", rows[2][10])
	assert.Contains(t, rows[3][10], "trades=2")
}

// TestWriteOrdersCSV tests the order history file
func TestWriteOrdersCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orders.csv")
	require.NoError(t, NewDefaultCSVReporter().WriteOrdersCSV(sampleHistory(), path))

	rows := readCSV(t, path)
	require.Len(t, rows, 3)
	assert.Equal(t, "requested>validated>submitted>filled", rows[1][12])
	assert.Equal(t, "98", rows[2][7])
	assert.Equal(t, "", rows[1][7])
}

// TestWriteRunJSON tests the JSON report
func TestWriteRunJSON(t *testing.T) {
	run := sampleRun(t)
	path := filepath.Join(t.TempDir(), "run.json")
	require.NoError(t, NewDefaultJSONFormatter().WriteRunJSON(run, path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var rep RunReport
	require.NoError(t, json.Unmarshal(raw, &rep))

	assert.Equal(t, "BTCUSDT", rep.Symbol)
	assert.Len(t, rep.Trades, 2)
	assert.Len(t, rep.Equity, len(run.EquityCurve))
	assert.Equal(t, run.Summary.TradeCount, rep.Summary.TradeCount)
	assert.InDelta(t, run.FinalEquity, rep.FinalEquity, 1e-9)
	require.NotNil(t, rep.Start)
	assert.True(t, run.Start.Equal(*rep.Start))
}

// TestWriteRunXLSX tests the workbook sheets
func TestWriteRunXLSX(t *testing.T) {
	run := sampleRun(t)
	path := filepath.Join(t.TempDir(), "backtest.xlsx")
	require.NoError(t, WriteRunXLSX(run, path))

	fx, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer fx.Close()

	assert.Equal(t, []string{"Summary", "Trades", "Equity"}, fx.GetSheetList())

	label, err := fx.GetCellValue("Summary", "A1")
	require.NoError(t, err)
	assert.Equal(t, "Symbol", label)

	trades, err := fx.GetRows("Trades")
	require.NoError(t, err)
	assert.Len(t, trades, 3)

	equity, err := fx.GetRows("Equity")
	require.NoError(t, err)
	assert.Len(t, equity, len(run.EquityCurve)+1)
}

// TestWriteAll tests the combined writer
func TestWriteAll(t *testing.T) {
	dir := t.TempDir()
	r := NewDefaultReporter()

	cfg := DefaultReportingConfig(dir)
	cfg.ExcelEnabled = false
	written, err := r.WriteAll(sampleRun(t), cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "trades.csv"), filepath.Join(dir, "run.json")}, written)
}

// TestPaths tests output directory helpers
func TestPaths(t *testing.T) {
	assert.Equal(t, filepath.Join("results", "BTCUSDT_1h"), DefaultOutputDir(" btcusdt ", "1H"))
	assert.Equal(t, filepath.Join("results", "UNKNOWN_unknown"), DefaultOutputDir("", ""))
	assert.Equal(t, "5m", ExtractIntervalFromPath("data/bybit/linear/BTCUSDT/5m/candles.csv"))
	assert.Equal(t, "", ExtractIntervalFromPath("data/candles.csv"))

	r := NewDefaultReporter()
	assert.Equal(t, DefaultOutputDir("ethusdt", "4h"), r.GetDefaultOutputDir("ethusdt", "4h"))

	target := filepath.Join(t.TempDir(), "nested", "run", "trades.csv")
	require.NoError(t, r.EnsureDirectoryExists(target))
	info, err := os.Stat(filepath.Dir(target))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.NoError(t, r.EnsureDirectoryExists("trades.csv"))
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}
