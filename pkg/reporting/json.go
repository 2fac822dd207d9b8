package reporting

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ducminhle1904/crypto-trade-engine/internal/backtest"
)

// RunReport is the JSON shape of a backtest run.
type RunReport struct {
	Symbol         string         `json:"symbol"`
	Start          *time.Time     `json:"start,omitempty"`
	End            *time.Time     `json:"end,omitempty"`
	InitialCapital float64        `json:"initial_capital"`
	CommissionRate float64        `json:"commission_rate"`
	FinalEquity    float64        `json:"final_equity"`
	Invalid        string         `json:"invalid,omitempty"`
	SkippedEntries int            `json:"skipped_entries,omitempty"`
	Summary        SummaryReport  `json:"summary"`
	Trades         []TradeReport  `json:"trades"`
	Equity         []EquityReport `json:"equity_curve"`
}

// SummaryReport is the JSON shape of a run summary.
type SummaryReport struct {
	TotalReturn   float64 `json:"total_return"`
	MaxDrawdown   float64 `json:"max_drawdown"`
	SharpeRatio   float64 `json:"sharpe_ratio"`
	TradeCount    int     `json:"trade_count"`
	WinningTrades int     `json:"winning_trades"`
	LosingTrades  int     `json:"losing_trades"`
	WinRate       float64 `json:"win_rate"`
	ProfitFactor  float64 `json:"profit_factor"`
}

// TradeReport is the JSON shape of a closed trade.
type TradeReport struct {
	EntryTime  time.Time `json:"entry_time"`
	ExitTime   time.Time `json:"exit_time"`
	EntryPrice float64   `json:"entry_price"`
	ExitPrice  float64   `json:"exit_price"`
	Quantity   float64   `json:"quantity"`
	PnL        float64   `json:"pnl"`
	Commission float64   `json:"commission"`
	ExitReason string    `json:"exit_reason"`
}

// EquityReport is one equity curve point.
type EquityReport struct {
	Bar       int       `json:"bar"`
	Timestamp time.Time `json:"timestamp"`
	Equity    float64   `json:"equity"`
}

// NewRunReport converts a run into its JSON shape
func NewRunReport(run *backtest.BacktestRun) RunReport {
	s := run.Summary
	rep := RunReport{
		Symbol:         run.Symbol,
		InitialCapital: run.InitialCapital,
		CommissionRate: run.CommissionRate,
		FinalEquity:    run.FinalEquity,
		Invalid:        run.Invalid,
		SkippedEntries: run.SkippedEntries,
		Summary: SummaryReport{
			TotalReturn:   s.TotalReturn,
			MaxDrawdown:   s.MaxDrawdown,
			SharpeRatio:   s.SharpeRatio,
			TradeCount:    s.TradeCount,
			WinningTrades: s.WinningTrades,
			LosingTrades:  s.LosingTrades,
			WinRate:       s.WinRate,
			ProfitFactor:  s.ProfitFactor,
		},
		Trades: make([]TradeReport, 0, len(run.Trades)),
		Equity: make([]EquityReport, 0, len(run.EquityCurve)),
	}
	if !run.Start.IsZero() {
		start, end := run.Start, run.End
		rep.Start, rep.End = &start, &end
	}
	for _, t := range run.Trades {
		rep.Trades = append(rep.Trades, TradeReport{
			EntryTime:  t.EntryTime,
			ExitTime:   t.ExitTime,
			EntryPrice: t.EntryPrice,
			ExitPrice:  t.ExitPrice,
			Quantity:   t.Quantity,
			PnL:        t.PnL,
			Commission: t.Commission,
			ExitReason: string(t.ExitReason),
		})
	}
	for _, p := range run.EquityCurve {
		rep.Equity = append(rep.Equity, EquityReport{Bar: p.Bar, Timestamp: p.Timestamp, Equity: p.Equity})
	}
	return rep
}

// DefaultJSONFormatter implements JSON output
type DefaultJSONFormatter struct{}

// NewDefaultJSONFormatter creates a new JSON formatter
func NewDefaultJSONFormatter() *DefaultJSONFormatter {
	return &DefaultJSONFormatter{}
}

// FormatRun returns the indented JSON of a run
func (f *DefaultJSONFormatter) FormatRun(run *backtest.BacktestRun) ([]byte, error) {
	return json.MarshalIndent(NewRunReport(run), "", "  ")
}

// WriteRunJSON writes the run report to path
func (f *DefaultJSONFormatter) WriteRunJSON(run *backtest.BacktestRun, path string) error {
	data, err := f.FormatRun(run)
	if err != nil {
		return err
	}
	if err := ensureParentDir(path); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ExtractIntervalFromPath finds an interval directory such as "5m" or "1h"
// in a data file path.
// Example: "data/bybit/linear/BTCUSDT/5m/candles.csv" -> "5m"
func ExtractIntervalFromPath(dataPath string) string {
	if dataPath == "" {
		return ""
	}

	parts := strings.Split(filepath.ToSlash(dataPath), "/")
	for i := len(parts) - 1; i >= 0; i-- {
		part := parts[i]
		if len(part) < 2 {
			continue
		}
		switch part[len(part)-1] {
		case 'm', 'h', 'd':
			if _, err := strconv.Atoi(part[:len(part)-1]); err == nil {
				return part
			}
		}
	}
	return ""
}
