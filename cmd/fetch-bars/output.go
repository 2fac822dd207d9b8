package main

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/ducminhle1904/crypto-trade-engine/pkg/data"
)

const timeLayout = "2006-01-02 15:04"

type download struct {
	symbol   string
	interval string
	path     string
	series   data.Series
}

// priceRange returns the lowest low and highest high
func (d download) priceRange() (low, high float64) {
	for i, bar := range d.series.Bars {
		if i == 0 || bar.Low < low {
			low = bar.Low
		}
		if i == 0 || bar.High > high {
			high = bar.High
		}
	}
	return low, high
}

func outputDownloads(w io.Writer, downloads []download) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle("DOWNLOADS")
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Symbol", "Interval", "Bars", "First", "Last", "Low", "High", "File"})

	for _, d := range downloads {
		bars := d.series.Bars
		low, high := d.priceRange()
		t.AppendRow(table.Row{
			d.symbol,
			d.interval,
			len(bars),
			bars[0].Timestamp.UTC().Format(timeLayout),
			bars[len(bars)-1].Timestamp.UTC().Format(timeLayout),
			fmt.Sprintf("%.8g", low),
			fmt.Sprintf("%.8g", high),
			d.path,
		})
	}
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 3, Align: text.AlignRight},
		{Number: 6, Align: text.AlignRight},
		{Number: 7, Align: text.AlignRight},
	})
	t.Render()
}
