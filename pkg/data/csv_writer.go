package data

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/shopspring/decimal"
)

// WriteCSV writes s in the default layout read back by CSVProvider. The
// signal column is written only when the series has signals.
func WriteCSV(w io.Writer, s Series) error {
	if len(s.Signals) > 0 && len(s.Signals) != len(s.Bars) {
		return fmt.Errorf("series has %d signals for %d bars", len(s.Signals), len(s.Bars))
	}

	cw := csv.NewWriter(w)
	header := []string{"timestamp", "open", "high", "low", "close", "volume"}
	if s.HasSignals() {
		header = append(header, "signal")
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	for i, bar := range s.Bars {
		record := []string{
			bar.Timestamp.UTC().Format(DefaultCSVFormat.DateFormat),
			formatValue(bar.Open),
			formatValue(bar.High),
			formatValue(bar.Low),
			formatValue(bar.Close),
			formatValue(bar.Volume),
		}
		if s.HasSignals() {
			record = append(record, string(s.Signals[i]))
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// SaveSeries writes s to path, creating parent directories
func SaveSeries(path string, s Series) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteCSV(file, s); err != nil {
		file.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return file.Close()
}

func formatValue(v float64) string {
	return decimal.NewFromFloat(v).String()
}
