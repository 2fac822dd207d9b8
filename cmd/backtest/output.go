package main

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/ducminhle1904/crypto-trade-engine/internal/backtest"
)

// outputSweep prints one row per variant, best return first marked with *
func outputSweep(w io.Writer, variants []backtest.Variant, runs []*backtest.BacktestRun) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle("ALLOCATION SWEEP")
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"", "Variant", "Final Equity", "Return", "Max DD", "Sharpe", "Trades", "Win Rate", "Skipped"})

	best := bestRun(runs)
	for i, run := range runs {
		if run == nil {
			continue
		}
		mark := ""
		if i == best {
			mark = "*"
		}
		s := run.Summary
		t.AppendRow(table.Row{
			mark,
			variants[i].Name,
			fmt.Sprintf("$%.2f", run.FinalEquity),
			fmt.Sprintf("%.2f%%", s.TotalReturn*100),
			fmt.Sprintf("%.2f%%", s.MaxDrawdown*100),
			fmt.Sprintf("%.2f", s.SharpeRatio),
			s.TradeCount,
			fmt.Sprintf("%.1f%%", s.WinRate*100),
			run.SkippedEntries,
		})
	}
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
	})
	t.Render()
}

// bestRun returns the index of the highest total return, or -1
func bestRun(runs []*backtest.BacktestRun) int {
	best := -1
	for i, run := range runs {
		if run == nil || run.Invalid != "" {
			continue
		}
		if best < 0 || run.Summary.TotalReturn > runs[best].Summary.TotalReturn {
			best = i
		}
	}
	return best
}
