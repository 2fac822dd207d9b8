package reporting

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/ducminhle1904/crypto-trade-engine/internal/backtest"
	"github.com/ducminhle1904/crypto-trade-engine/internal/execution"
	"github.com/ducminhle1904/crypto-trade-engine/internal/order"
)

// DefaultCSVReporter implements CSV output
type DefaultCSVReporter struct{}

// NewDefaultCSVReporter creates a new CSV reporter
func NewDefaultCSVReporter() *DefaultCSVReporter {
	return &DefaultCSVReporter{}
}

// WriteTradesCSV writes one row per closed trade followed by a summary row.
// A path ending in .xlsx is written as a workbook instead.
func (r *DefaultCSVReporter) WriteTradesCSV(run *backtest.BacktestRun, path string) error {
	if strings.HasSuffix(strings.ToLower(path), ".xlsx") {
		return WriteRunXLSX(run, path)
	}

	header := []string{
		"Trade", "Entry_Time", "Exit_Time", "Entry_Price", "Exit_Price",
		"Quantity", "Commission", "PnL", "Return_%", "Exit_Reason", "Win_Loss",
	}
	rows := make([][]string, 0, len(run.Trades)+1)

	totalPnL := 0.0
	for i, t := range run.Trades {
		totalPnL += t.PnL
		winLoss := "L"
		if t.Won() {
			winLoss = "W"
		}
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			t.EntryTime.Format(timeLayout),
			t.ExitTime.Format(timeLayout),
			formatFloat(t.EntryPrice),
			formatFloat(t.ExitPrice),
			formatFloat(t.Quantity),
			fmt.Sprintf("%.4f", t.Commission),
			fmt.Sprintf("%.4f", t.PnL),
			fmt.Sprintf("%.2f", tradeReturn(t)*100),
			string(t.ExitReason),
			winLoss,
		})
	}

	summary := make([]string, len(header))
	summary[len(header)-1] = fmt.Sprintf("SUMMARY: total_pnl=%.2f; total_return=%.2f%%; max_drawdown=%.2f%%; trades=%d",
		totalPnL, run.Summary.TotalReturn*100, run.Summary.MaxDrawdown*100, run.Summary.TradeCount)
	rows = append(rows, summary)

	return writeCSV(path, header, rows)
}

// WriteOrdersCSV writes an execution history
func (r *DefaultCSVReporter) WriteOrdersCSV(history []execution.OrderResult, path string) error {
	header := []string{
		"Order_ID", "Symbol", "Role", "Side", "Kind", "Amount", "Price", "Trigger",
		"Filled", "Avg_Price", "Status", "State", "Trail", "Submitted_At",
	}
	rows := make([][]string, 0, len(history))
	for _, o := range history {
		trail := make([]string, len(o.Trail))
		for i, s := range o.Trail {
			trail[i] = string(s)
		}
		var trigger string
		if p, ok := order.TriggerOf(o.Kind); ok {
			trigger = formatFloat(p)
		}
		rows = append(rows, []string{
			o.OrderID,
			o.Symbol,
			string(o.Role),
			string(o.Side),
			kindName(o),
			formatFloat(o.Amount),
			formatFloat(o.Price()),
			trigger,
			formatFloat(o.FilledAmount),
			formatFloat(o.AvgPrice),
			string(o.Status),
			string(o.State),
			strings.Join(trail, ">"),
			o.SubmittedAt.Format(timeLayout),
		})
	}
	return writeCSV(path, header, rows)
}

func writeCSV(path string, header []string, rows [][]string) error {
	if err := ensureParentDir(path); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return err
	}
	if err := w.WriteAll(rows); err != nil {
		return err
	}
	return f.Close()
}

func tradeReturn(t backtest.Trade) float64 {
	if t.EntryPrice <= 0 {
		return 0
	}
	return (t.ExitPrice - t.EntryPrice) / t.EntryPrice
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// WriteTradesCSV is a convenience function using the default reporter
func WriteTradesCSV(run *backtest.BacktestRun, path string) error {
	return NewDefaultCSVReporter().WriteTradesCSV(run, path)
}
