package data

import (
	"time"

	"github.com/ducminhle1904/crypto-trade-engine/pkg/types"
)

// Series is a bar history with an optional, index-aligned signal column.
type Series struct {
	Bars    []types.OHLCV
	Signals []types.Action
	// Skipped counts rows dropped while parsing.
	Skipped int
}

// HasSignals reports whether the series carries one action per bar.
func (s Series) HasSignals() bool {
	return len(s.Signals) > 0 && len(s.Signals) == len(s.Bars)
}

// Len returns the number of bars.
func (s Series) Len() int {
	return len(s.Bars)
}

// DataProvider loads historical data from a source such as a file path
type DataProvider interface {
	// LoadSeries loads bars, and signals when the source has them
	LoadSeries(source string) (Series, error)

	// ValidateData validates the integrity of the loaded bars
	ValidateData(data []types.OHLCV) error

	// GetName returns the name of the data provider
	GetName() string
}

// DataCache caches loaded series by source
type DataCache interface {
	Get(key string) (Series, bool)
	Set(key string, s Series)
	Clear()
	Size() int
}

// DataFilter narrows and checks bar histories
type DataFilter interface {
	// FilterByPeriod keeps the trailing period ending at the last bar
	FilterByPeriod(s Series, period time.Duration) Series

	// FilterByDateRange keeps bars within [start, end]; a zero bound is open
	FilterByDateRange(s Series, start, end time.Time) Series

	// ValidateTimeSequence ensures bars are strictly chronological
	ValidateTimeSequence(data []types.OHLCV) error
}

// TimestampUnixMillis as a DateFormat reads the timestamp column as epoch milliseconds.
const TimestampUnixMillis = "unixms"

// CSVColumnMapping defines the column positions for a CSV layout. A negative
// SignalCol means the file has no signal column.
type CSVColumnMapping struct {
	TimestampCol int
	OpenCol      int
	HighCol      int
	LowCol       int
	CloseCol     int
	VolumeCol    int
	SignalCol    int
	MinColumns   int
	DateFormat   string
}

// Predefined CSV formats
var (
	DefaultCSVFormat = CSVColumnMapping{
		TimestampCol: 0,
		OpenCol:      1,
		HighCol:      2,
		LowCol:       3,
		CloseCol:     4,
		VolumeCol:    5,
		SignalCol:    -1,
		MinColumns:   6,
		DateFormat:   "2006-01-02 15:04:05",
	}

	BybitCSVFormat = CSVColumnMapping{
		TimestampCol: 0,
		OpenCol:      1,
		HighCol:      2,
		LowCol:       3,
		CloseCol:     4,
		VolumeCol:    5,
		SignalCol:    -1,
		MinColumns:   6,
		DateFormat:   TimestampUnixMillis,
	}
)

// FileLocator finds data files
type FileLocator interface {
	// FindDataFile locates the candle file for an exchange, symbol and interval
	FindDataFile(dataRoot, exchange, symbol, interval string) (string, error)

	// ConvertIntervalToMinutes converts "5m", "1h", "4h" to minute counts
	ConvertIntervalToMinutes(interval string) string
}
