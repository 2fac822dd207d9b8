package reporting

import (
	"io"

	"github.com/ducminhle1904/crypto-trade-engine/internal/backtest"
	"github.com/ducminhle1904/crypto-trade-engine/internal/execution"
)

// Package reporting renders backtest runs and order histories

// ConsoleReporter renders tables for a terminal
type ConsoleReporter interface {
	OutputRun(w io.Writer, run *backtest.BacktestRun)
	OutputTrades(w io.Writer, run *backtest.BacktestRun)
	OutputOrders(w io.Writer, history []execution.OrderResult)
}

// FileReporter writes reports to disk
type FileReporter interface {
	WriteTradesCSV(run *backtest.BacktestRun, path string) error
	WriteOrdersCSV(history []execution.OrderResult, path string) error
	WriteRunJSON(run *backtest.BacktestRun, path string) error
	WriteRunXLSX(run *backtest.BacktestRun, path string) error
}

// PathManager manages output locations
type PathManager interface {
	GetDefaultOutputDir(symbol, interval string) string
	EnsureDirectoryExists(path string) error
}

// Reporter combines all reporting interfaces
type Reporter interface {
	ConsoleReporter
	FileReporter
	PathManager
}

// ExcelStyles holds Excel formatting styles
type ExcelStyles struct {
	HeaderStyle   int
	CurrencyStyle int
	PercentStyle  int
	NumberStyle   int
	TimeStyle     int
	LabelStyle    int
	WinStyle      int
	LossStyle     int
}

// ReportingConfig selects which outputs WriteAll produces
type ReportingConfig struct {
	OutputDirectory string
	CSVEnabled      bool
	JSONEnabled     bool
	ExcelEnabled    bool
}

// DefaultReportingConfig enables every file output
func DefaultReportingConfig(dir string) ReportingConfig {
	return ReportingConfig{
		OutputDirectory: dir,
		CSVEnabled:      true,
		JSONEnabled:     true,
		ExcelEnabled:    true,
	}
}
