package data

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const candleFile = "candles.csv"

// DefaultFileLocator implements FileLocator over the layout
// {root}/{exchange}/{category}/{SYMBOL}/{minutes}/candles.csv.
type DefaultFileLocator struct{}

// NewDefaultFileLocator creates a new default file locator
func NewDefaultFileLocator() *DefaultFileLocator {
	return &DefaultFileLocator{}
}

// ConvertIntervalToMinutes converts "5m", "1h", "1d", "1w" to minute counts.
// Plain numbers and unknown formats are returned unchanged.
func (f *DefaultFileLocator) ConvertIntervalToMinutes(interval string) string {
	if _, err := strconv.Atoi(interval); err == nil {
		return interval
	}

	interval = strings.ToLower(strings.TrimSpace(interval))
	if len(interval) < 2 {
		return interval
	}

	num, err := strconv.Atoi(interval[:len(interval)-1])
	if err != nil {
		return interval
	}

	switch interval[len(interval)-1:] {
	case "m":
		return strconv.Itoa(num)
	case "h":
		return strconv.Itoa(num * 60)
	case "d":
		return strconv.Itoa(num * 24 * 60)
	case "w":
		return strconv.Itoa(num * 7 * 24 * 60)
	default:
		return interval
	}
}

// DataFilePath is where the candle file for one market category lives
func (f *DefaultFileLocator) DataFilePath(dataRoot, exchange, category, symbol, interval string) string {
	return filepath.Join(dataRoot, strings.ToLower(exchange), strings.ToLower(category),
		strings.ToUpper(symbol), f.ConvertIntervalToMinutes(interval), candleFile)
}

// FindDataFile tries each market category of the exchange in turn and
// returns the first candle file that exists.
func (f *DefaultFileLocator) FindDataFile(dataRoot, exchange, symbol, interval string) (string, error) {
	symbol = strings.ToUpper(symbol)
	minutes := f.ConvertIntervalToMinutes(interval)

	var categories []string
	switch strings.ToLower(exchange) {
	case "bybit":
		categories = []string{"spot", "linear", "inverse"}
	default:
		categories = []string{"spot", "futures", "linear", "inverse"}
	}

	attempted := make([]string, 0, len(categories))
	for _, category := range categories {
		path := filepath.Join(dataRoot, exchange, category, symbol, minutes, candleFile)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
		attempted = append(attempted, path)
	}

	return "", fmt.Errorf("no data file for %s %s %s (tried %s): %w",
		exchange, symbol, interval, strings.Join(attempted, ", "), os.ErrNotExist)
}
