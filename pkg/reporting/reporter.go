package reporting

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ducminhle1904/crypto-trade-engine/internal/backtest"
	"github.com/ducminhle1904/crypto-trade-engine/internal/execution"
)

// DefaultReporter implements the complete Reporter interface
type DefaultReporter struct {
	console *DefaultConsoleReporter
	csv     *DefaultCSVReporter
	excel   *DefaultExcelReporter
	json    *DefaultJSONFormatter
}

// NewDefaultReporter creates a new default reporter with all functionality
func NewDefaultReporter() *DefaultReporter {
	return &DefaultReporter{
		console: NewDefaultConsoleReporter(),
		csv:     NewDefaultCSVReporter(),
		excel:   NewDefaultExcelReporter(),
		json:    NewDefaultJSONFormatter(),
	}
}

// Console output methods
func (r *DefaultReporter) OutputRun(w io.Writer, run *backtest.BacktestRun) {
	r.console.OutputRun(w, run)
}

func (r *DefaultReporter) OutputTrades(w io.Writer, run *backtest.BacktestRun) {
	r.console.OutputTrades(w, run)
}

func (r *DefaultReporter) OutputOrders(w io.Writer, history []execution.OrderResult) {
	r.console.OutputOrders(w, history)
}

// File output methods
func (r *DefaultReporter) WriteTradesCSV(run *backtest.BacktestRun, path string) error {
	return r.csv.WriteTradesCSV(run, path)
}

func (r *DefaultReporter) WriteOrdersCSV(history []execution.OrderResult, path string) error {
	return r.csv.WriteOrdersCSV(history, path)
}

func (r *DefaultReporter) WriteRunJSON(run *backtest.BacktestRun, path string) error {
	return r.json.WriteRunJSON(run, path)
}

func (r *DefaultReporter) WriteRunXLSX(run *backtest.BacktestRun, path string) error {
	return r.excel.WriteRunXLSX(run, path)
}

// resultsRoot is where runs land when no output directory is given.
const resultsRoot = "results"

// GetDefaultOutputDir returns results/{SYMBOL}_{interval}
func (r *DefaultReporter) GetDefaultOutputDir(symbol, interval string) string {
	return DefaultOutputDir(symbol, interval)
}

// EnsureDirectoryExists creates the parent directory of path
func (r *DefaultReporter) EnsureDirectoryExists(path string) error {
	return ensureParentDir(path)
}

// DefaultOutputDir names the run directory for a symbol and interval. Blank
// parts become "UNKNOWN" and "unknown".
func DefaultOutputDir(symbol, interval string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	if s == "" {
		s = "UNKNOWN"
	}
	i := strings.ToLower(strings.TrimSpace(interval))
	if i == "" {
		i = "unknown"
	}
	return filepath.Join(resultsRoot, fmt.Sprintf("%s_%s", s, i))
}

func ensureParentDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0755)
}

// WriteAll writes the enabled file outputs for run into cfg.OutputDirectory
// and returns the written paths.
func (r *DefaultReporter) WriteAll(run *backtest.BacktestRun, cfg ReportingConfig) ([]string, error) {
	var written []string
	outputs := []struct {
		enabled bool
		name    string
		write   func(*backtest.BacktestRun, string) error
	}{
		{cfg.CSVEnabled, "trades.csv", r.WriteTradesCSV},
		{cfg.JSONEnabled, "run.json", r.WriteRunJSON},
		{cfg.ExcelEnabled, "backtest.xlsx", r.WriteRunXLSX},
	}
	for _, out := range outputs {
		if !out.enabled {
			continue
		}
		path := filepath.Join(cfg.OutputDirectory, out.name)
		if err := out.write(run, path); err != nil {
			return written, err
		}
		written = append(written, path)
	}
	return written, nil
}

var _ Reporter = (*DefaultReporter)(nil)
