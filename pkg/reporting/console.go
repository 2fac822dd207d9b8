package reporting

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/ducminhle1904/crypto-trade-engine/internal/backtest"
	"github.com/ducminhle1904/crypto-trade-engine/internal/execution"
)

const timeLayout = "2006-01-02 15:04:05"

// DefaultConsoleReporter renders go-pretty tables
type DefaultConsoleReporter struct {
	style table.Style
}

// NewDefaultConsoleReporter creates a console reporter with rounded tables
func NewDefaultConsoleReporter() *DefaultConsoleReporter {
	return &DefaultConsoleReporter{style: table.StyleRounded}
}

func (r *DefaultConsoleReporter) newTable(w io.Writer, title string) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle(title)
	t.SetStyle(r.style)
	return t
}

// OutputRun prints the run summary
func (r *DefaultConsoleReporter) OutputRun(w io.Writer, run *backtest.BacktestRun) {
	t := r.newTable(w, "BACKTEST RESULTS")

	t.AppendRows([]table.Row{
		{"Symbol", displaySymbol(run.Symbol)},
		{"Period", period(run)},
	})
	if run.Invalid != "" {
		t.AppendRow(table.Row{"Skipped", run.Invalid})
	}
	t.AppendSeparator()

	s := run.Summary
	t.AppendRows([]table.Row{
		{"Initial Capital", fmt.Sprintf("$%.2f", run.InitialCapital)},
		{"Final Equity", fmt.Sprintf("$%.2f", run.FinalEquity)},
		{"Total Return", fmt.Sprintf("%.2f%%", s.TotalReturn*100)},
		{"Max Drawdown", fmt.Sprintf("%.2f%%", s.MaxDrawdown*100)},
		{"Sharpe Ratio", fmt.Sprintf("%.2f", s.SharpeRatio)},
	})
	t.AppendSeparator()
	t.AppendRows([]table.Row{
		{"Trades", s.TradeCount},
		{"Winning / Losing", fmt.Sprintf("%d / %d", s.WinningTrades, s.LosingTrades)},
		{"Win Rate", fmt.Sprintf("%.1f%%", s.WinRate*100)},
		{"Profit Factor", fmt.Sprintf("%.2f", s.ProfitFactor)},
		{"Commission Rate", fmt.Sprintf("%.4f%%", run.CommissionRate*100)},
	})
	if run.SkippedEntries > 0 {
		t.AppendRow(table.Row{"Skipped Entries", run.SkippedEntries})
	}

	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, WidthMin: 18, WidthMax: 18, Align: text.AlignLeft},
		{Number: 2, WidthMin: 25, WidthMax: 50, Align: text.AlignLeft},
	})
	t.Render()
}

// OutputTrades prints one row per closed trade
func (r *DefaultConsoleReporter) OutputTrades(w io.Writer, run *backtest.BacktestRun) {
	t := r.newTable(w, "TRADES")
	t.AppendHeader(table.Row{"#", "Entry", "Exit", "Entry Price", "Exit Price", "Qty", "PnL", "Exit Reason"})

	total := 0.0
	for i, tr := range run.Trades {
		total += tr.PnL
		t.AppendRow(table.Row{
			i + 1,
			tr.EntryTime.Format(timeLayout),
			tr.ExitTime.Format(timeLayout),
			fmt.Sprintf("%.4f", tr.EntryPrice),
			fmt.Sprintf("%.4f", tr.ExitPrice),
			fmt.Sprintf("%.6f", tr.Quantity),
			fmt.Sprintf("%.2f", tr.PnL),
			string(tr.ExitReason),
		})
	}
	t.AppendFooter(table.Row{"", "", "", "", "", "Total", fmt.Sprintf("%.2f", total), ""})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 4, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
		{Number: 6, Align: text.AlignRight},
		{Number: 7, Align: text.AlignRight},
	})
	t.Render()
}

// OutputOrders prints an execution history
func (r *DefaultConsoleReporter) OutputOrders(w io.Writer, history []execution.OrderResult) {
	t := r.newTable(w, "ORDERS")
	t.AppendHeader(table.Row{"Order ID", "Symbol", "Role", "Side", "Kind", "Amount", "Price", "Filled", "State"})

	for _, o := range history {
		t.AppendRow(table.Row{
			o.OrderID,
			o.Symbol,
			string(o.Role),
			string(o.Side),
			kindName(o),
			fmt.Sprintf("%.6f", o.Amount),
			formatPrice(o),
			fmt.Sprintf("%.6f", o.FilledAmount),
			string(o.State),
		})
	}
	t.Render()
}

func kindName(o execution.OrderResult) string {
	if o.Kind == nil {
		return ""
	}
	return o.Kind.Name()
}

func formatPrice(o execution.OrderResult) string {
	if o.AvgPrice > 0 {
		return fmt.Sprintf("%.4f", o.AvgPrice)
	}
	if p := o.Price(); p > 0 {
		return fmt.Sprintf("%.4f", p)
	}
	return "market"
}

func displaySymbol(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func period(run *backtest.BacktestRun) string {
	if run.Start.IsZero() {
		return "-"
	}
	return fmt.Sprintf("%s to %s", run.Start.Format(timeLayout), run.End.Format(timeLayout))
}
