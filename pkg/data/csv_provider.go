package data

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ducminhle1904/crypto-trade-engine/pkg/types"
)

// CSVProvider implements DataProvider for CSV files with a header row. When
// the header names its columns the mapping is taken from the names, so a
// "signal" column is picked up wherever it is.
type CSVProvider struct {
	format CSVColumnMapping
}

// NewCSVProvider creates a CSV provider with the default format
func NewCSVProvider() *CSVProvider {
	return &CSVProvider{format: DefaultCSVFormat}
}

// NewCSVProviderWithFormat creates a CSV provider with a custom format
func NewCSVProviderWithFormat(format CSVColumnMapping) *CSVProvider {
	return &CSVProvider{format: format}
}

// GetName returns the name of the data provider
func (p *CSVProvider) GetName() string {
	return "CSV Provider"
}

// LoadSeries loads a series from a CSV file
func (p *CSVProvider) LoadSeries(source string) (Series, error) {
	file, err := os.Open(source)
	if err != nil {
		return Series{}, fmt.Errorf("open %s: %w", source, err)
	}
	defer file.Close()

	s, err := p.Read(file)
	if err != nil {
		return Series{}, fmt.Errorf("read %s: %w", source, err)
	}
	return s, nil
}

// Read parses CSV rows from r. Rows with unparsable or inconsistent prices
// are skipped and counted; a bad signal cell fails the whole read.
func (p *CSVProvider) Read(r io.Reader) (Series, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Series{}, fmt.Errorf("empty file")
		}
		return Series{}, err
	}
	format := mappingFromHeader(header, p.format)

	var s Series
	lineNum := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		lineNum++
		if err != nil {
			return Series{}, fmt.Errorf("error reading CSV at line %d: %w", lineNum, err)
		}

		if len(record) < format.MinColumns {
			s.Skipped++
			continue
		}

		bar, ok := parseBar(record, format)
		if !ok {
			s.Skipped++
			continue
		}

		if format.SignalCol >= 0 {
			cell := ""
			if format.SignalCol < len(record) {
				cell = record[format.SignalCol]
			}
			action, err := types.ParseAction(cell)
			if err != nil {
				return Series{}, fmt.Errorf("line %d: %w", lineNum, err)
			}
			s.Signals = append(s.Signals, action)
		}
		s.Bars = append(s.Bars, bar)
	}

	return s, nil
}

func parseBar(record []string, format CSVColumnMapping) (types.OHLCV, bool) {
	timestamp, err := parseTimestamp(record[format.TimestampCol], format.DateFormat)
	if err != nil {
		return types.OHLCV{}, false
	}

	var values [5]float64
	cols := [5]int{format.OpenCol, format.HighCol, format.LowCol, format.CloseCol, format.VolumeCol}
	for i, col := range cols {
		if col < 0 || col >= len(record) {
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(record[col]), 64)
		if err != nil {
			return types.OHLCV{}, false
		}
		values[i] = v
	}

	bar := types.OHLCV{
		Timestamp: timestamp,
		Open:      values[0],
		High:      values[1],
		Low:       values[2],
		Close:     values[3],
		Volume:    values[4],
	}
	if !bar.Valid() || bar.High < bar.Open || bar.High < bar.Close || bar.Low > bar.Open || bar.Low > bar.Close {
		return types.OHLCV{}, false
	}
	return bar, true
}

func parseTimestamp(raw, layout string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if layout == TimestampUnixMillis {
		ms, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return time.Time{}, err
		}
		return time.UnixMilli(ms).UTC(), nil
	}
	if t, err := time.Parse(layout, raw); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, raw)
}

// mappingFromHeader maps columns by name when the header names at least the
// close column; otherwise the positional fallback is used.
func mappingFromHeader(header []string, fallback CSVColumnMapping) CSVColumnMapping {
	m := CSVColumnMapping{
		TimestampCol: -1, OpenCol: -1, HighCol: -1, LowCol: -1, CloseCol: -1,
		VolumeCol: -1, SignalCol: -1, DateFormat: fallback.DateFormat,
	}
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "timestamp", "time", "date", "datetime", "start_time":
			m.TimestampCol = i
		case "open":
			m.OpenCol = i
		case "high":
			m.HighCol = i
		case "low":
			m.LowCol = i
		case "close":
			m.CloseCol = i
		case "volume":
			m.VolumeCol = i
		case "signal", "action":
			m.SignalCol = i
		}
	}
	if m.CloseCol < 0 || m.TimestampCol < 0 || m.OpenCol < 0 || m.HighCol < 0 || m.LowCol < 0 {
		return fallback
	}
	m.MinColumns = max(m.TimestampCol, m.OpenCol, m.HighCol, m.LowCol, m.CloseCol) + 1
	return m
}

// ValidateData validates the integrity of loaded bars
func (p *CSVProvider) ValidateData(data []types.OHLCV) error {
	if len(data) == 0 {
		return fmt.Errorf("no data provided")
	}

	for i, candle := range data {
		if !candle.Valid() {
			return fmt.Errorf("invalid price data at index %d: prices must be positive and high >= low", i)
		}
		if candle.High < candle.Open || candle.High < candle.Close {
			return fmt.Errorf("invalid price data at index %d: high (%.4f) must be >= open (%.4f) and close (%.4f)",
				i, candle.High, candle.Open, candle.Close)
		}
		if candle.Low > candle.Open || candle.Low > candle.Close {
			return fmt.Errorf("invalid price data at index %d: low (%.4f) must be <= open (%.4f) and close (%.4f)",
				i, candle.Low, candle.Open, candle.Close)
		}
	}

	return NewDefaultDataFilter().ValidateTimeSequence(data)
}

// LoadSignals reads one action per line. Blank lines and lines starting with
// '#' are skipped; for comma separated lines the last field is the action.
func LoadSignals(path string) ([]types.Action, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()
	return ReadSignals(file)
}

// ReadSignals is LoadSignals over a reader.
func ReadSignals(r io.Reader) ([]types.Action, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	var out []types.Action
	for i, line := range strings.Split(string(raw), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if idx := strings.LastIndex(line, ","); idx >= 0 {
			line = line[idx+1:]
		}
		action, err := types.ParseAction(line)
		if err != nil {
			if len(out) == 0 && i == 0 {
				continue // header
			}
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}
		out = append(out, action)
	}
	return out, nil
}
