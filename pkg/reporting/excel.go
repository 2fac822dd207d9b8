package reporting

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/ducminhle1904/crypto-trade-engine/internal/backtest"
)

const (
	summarySheet = "Summary"
	tradesSheet  = "Trades"
	equitySheet  = "Equity"
)

// DefaultExcelReporter writes backtest workbooks
type DefaultExcelReporter struct{}

// NewDefaultExcelReporter creates a new Excel reporter
func NewDefaultExcelReporter() *DefaultExcelReporter {
	return &DefaultExcelReporter{}
}

// WriteRunXLSX writes a workbook with Summary, Trades and Equity sheets
func (r *DefaultExcelReporter) WriteRunXLSX(run *backtest.BacktestRun, path string) error {
	if err := ensureParentDir(path); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}

	fx, err := r.Build(run)
	if err != nil {
		return err
	}
	defer fx.Close()

	return fx.SaveAs(path)
}

// Build assembles the workbook in memory
func (r *DefaultExcelReporter) Build(run *backtest.BacktestRun) (*excelize.File, error) {
	fx := excelize.NewFile()

	if err := fx.SetSheetName(fx.GetSheetName(0), summarySheet); err != nil {
		fx.Close()
		return nil, err
	}
	for _, sheet := range []string{tradesSheet, equitySheet} {
		if _, err := fx.NewSheet(sheet); err != nil {
			fx.Close()
			return nil, err
		}
	}

	styles, err := r.createExcelStyles(fx)
	if err != nil {
		fx.Close()
		return nil, err
	}

	steps := []func(*excelize.File, *backtest.BacktestRun, ExcelStyles) error{
		r.writeSummarySheet,
		r.writeTradesSheet,
		r.writeEquitySheet,
	}
	for _, step := range steps {
		if err := step(fx, run, styles); err != nil {
			fx.Close()
			return nil, err
		}
	}
	return fx, nil
}

func (r *DefaultExcelReporter) createExcelStyles(fx *excelize.File) (ExcelStyles, error) {
	var styles ExcelStyles
	border := []excelize.Border{
		{Type: "left", Color: "E0E0E0", Style: 1},
		{Type: "right", Color: "E0E0E0", Style: 1},
		{Type: "bottom", Color: "E0E0E0", Style: 1},
	}

	defs := []struct {
		target *int
		style  *excelize.Style
	}{
		{&styles.HeaderStyle, &excelize.Style{
			Font:      &excelize.Font{Bold: true, Size: 11, Color: "FFFFFF", Family: "Calibri"},
			Fill:      excelize.Fill{Type: "pattern", Color: []string{"2F4F4F"}, Pattern: 1},
			Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
			Border: []excelize.Border{
				{Type: "left", Color: "000000", Style: 1},
				{Type: "right", Color: "000000", Style: 1},
				{Type: "top", Color: "000000", Style: 1},
				{Type: "bottom", Color: "000000", Style: 1},
			},
		}},
		{&styles.CurrencyStyle, &excelize.Style{NumFmt: 7, Alignment: &excelize.Alignment{Horizontal: "right"}, Border: border}},
		{&styles.PercentStyle, &excelize.Style{NumFmt: 10, Alignment: &excelize.Alignment{Horizontal: "right"}, Border: border}},
		{&styles.NumberStyle, &excelize.Style{NumFmt: 4, Alignment: &excelize.Alignment{Horizontal: "right"}, Border: border}},
		{&styles.TimeStyle, &excelize.Style{NumFmt: 22, Border: border}},
		{&styles.LabelStyle, &excelize.Style{Font: &excelize.Font{Bold: true}, Border: border}},
		{&styles.WinStyle, &excelize.Style{NumFmt: 7, Font: &excelize.Font{Color: "008000"}, Border: border}},
		{&styles.LossStyle, &excelize.Style{NumFmt: 7, Font: &excelize.Font{Color: "FF0000"}, Border: border}},
	}
	for _, d := range defs {
		id, err := fx.NewStyle(d.style)
		if err != nil {
			return styles, err
		}
		*d.target = id
	}
	return styles, nil
}

func (r *DefaultExcelReporter) writeSummarySheet(fx *excelize.File, run *backtest.BacktestRun, styles ExcelStyles) error {
	const sheet = summarySheet
	if err := fx.SetColWidth(sheet, "A", "A", 20); err != nil {
		return err
	}
	if err := fx.SetColWidth(sheet, "B", "B", 24); err != nil {
		return err
	}

	s := run.Summary
	rows := []struct {
		label string
		value interface{}
		style int
	}{
		{"Symbol", displaySymbol(run.Symbol), 0},
		{"Period", period(run), 0},
		{"Initial Capital", run.InitialCapital, styles.CurrencyStyle},
		{"Final Equity", run.FinalEquity, styles.CurrencyStyle},
		{"Total Return", s.TotalReturn, styles.PercentStyle},
		{"Max Drawdown", s.MaxDrawdown, styles.PercentStyle},
		{"Sharpe Ratio", s.SharpeRatio, styles.NumberStyle},
		{"Trades", s.TradeCount, 0},
		{"Winning Trades", s.WinningTrades, 0},
		{"Losing Trades", s.LosingTrades, 0},
		{"Win Rate", s.WinRate, styles.PercentStyle},
		{"Profit Factor", s.ProfitFactor, styles.NumberStyle},
		{"Commission Rate", run.CommissionRate, styles.PercentStyle},
	}
	if run.Invalid != "" {
		rows = append(rows, struct {
			label string
			value interface{}
			style int
		}{"Skipped", run.Invalid, 0})
	}

	for i, row := range rows {
		label, _ := excelize.CoordinatesToCellName(1, i+1)
		value, _ := excelize.CoordinatesToCellName(2, i+1)
		if err := fx.SetCellValue(sheet, label, row.label); err != nil {
			return err
		}
		if err := fx.SetCellStyle(sheet, label, label, styles.LabelStyle); err != nil {
			return err
		}
		if err := fx.SetCellValue(sheet, value, row.value); err != nil {
			return err
		}
		if row.style != 0 {
			if err := fx.SetCellStyle(sheet, value, value, row.style); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *DefaultExcelReporter) writeTradesSheet(fx *excelize.File, run *backtest.BacktestRun, styles ExcelStyles) error {
	const sheet = tradesSheet
	headers := []string{"#", "Entry Time", "Exit Time", "Entry Price", "Exit Price", "Quantity", "Commission", "PnL", "Return", "Exit Reason"}
	if err := writeHeader(fx, sheet, headers, styles.HeaderStyle); err != nil {
		return err
	}
	if err := fx.SetColWidth(sheet, "B", "C", 20); err != nil {
		return err
	}

	for i, t := range run.Trades {
		row := i + 2
		pnlStyle := styles.LossStyle
		if t.PnL > 0 {
			pnlStyle = styles.WinStyle
		}
		values := []struct {
			value interface{}
			style int
		}{
			{i + 1, 0},
			{t.EntryTime, styles.TimeStyle},
			{t.ExitTime, styles.TimeStyle},
			{t.EntryPrice, styles.NumberStyle},
			{t.ExitPrice, styles.NumberStyle},
			{t.Quantity, 0},
			{t.Commission, styles.CurrencyStyle},
			{t.PnL, pnlStyle},
			{tradeReturn(t), styles.PercentStyle},
			{string(t.ExitReason), 0},
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			if err := fx.SetCellValue(sheet, cell, v.value); err != nil {
				return err
			}
			if v.style != 0 {
				if err := fx.SetCellStyle(sheet, cell, cell, v.style); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (r *DefaultExcelReporter) writeEquitySheet(fx *excelize.File, run *backtest.BacktestRun, styles ExcelStyles) error {
	const sheet = equitySheet
	if err := writeHeader(fx, sheet, []string{"Bar", "Time", "Equity", "Cash", "Position"}, styles.HeaderStyle); err != nil {
		return err
	}
	if err := fx.SetColWidth(sheet, "B", "B", 20); err != nil {
		return err
	}

	for i, p := range run.EquityCurve {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := fx.SetSheetRow(sheet, cell, &[]interface{}{p.Bar, p.Timestamp, p.Equity, p.Cash, p.Position}); err != nil {
			return err
		}
	}
	if n := len(run.EquityCurve); n > 0 {
		if err := fx.SetCellStyle(sheet, "B2", fmt.Sprintf("B%d", n+1), styles.TimeStyle); err != nil {
			return err
		}
		if err := fx.SetCellStyle(sheet, "C2", fmt.Sprintf("D%d", n+1), styles.CurrencyStyle); err != nil {
			return err
		}
	}
	return nil
}

func writeHeader(fx *excelize.File, sheet string, headers []string, style int) error {
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := fx.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
		if err := fx.SetCellStyle(sheet, cell, cell, style); err != nil {
			return err
		}
	}
	return nil
}

// WriteRunXLSX is a convenience function using the default reporter
func WriteRunXLSX(run *backtest.BacktestRun, path string) error {
	return NewDefaultExcelReporter().WriteRunXLSX(run, path)
}
