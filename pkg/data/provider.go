package data

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ducminhle1904/crypto-trade-engine/pkg/types"
)

// DataManager combines loading, filtering and locating behind one type
type DataManager struct {
	provider DataProvider
	filter   *DefaultDataFilter
	locator  FileLocator
}

// NewDataManager creates a data manager over a cached CSV provider
func NewDataManager() *DataManager {
	return NewDataManagerWithProvider(NewCachedProvider(NewCSVProvider()))
}

// NewDataManagerWithProvider creates a data manager with a custom provider
func NewDataManagerWithProvider(provider DataProvider) *DataManager {
	return &DataManager{
		provider: provider,
		filter:   NewDefaultDataFilter(),
		locator:  NewDefaultFileLocator(),
	}
}

// Load reads source, sorts it, drops duplicate timestamps and validates the
// result.
func (dm *DataManager) Load(source string) (Series, error) {
	s, err := dm.provider.LoadSeries(source)
	if err != nil {
		return Series{}, err
	}
	s = dm.filter.RemoveDuplicates(dm.filter.SortByTimestamp(s))
	if err := dm.provider.ValidateData(s.Bars); err != nil {
		return Series{}, fmt.Errorf("%s: %w", source, err)
	}
	return s, nil
}

// FilterByPeriod keeps the trailing period of s
func (dm *DataManager) FilterByPeriod(s Series, period time.Duration) Series {
	return dm.filter.FilterByPeriod(s, period)
}

// FilterByDateRange keeps bars of s within [start, end]
func (dm *DataManager) FilterByDateRange(s Series, start, end time.Time) Series {
	return dm.filter.FilterByDateRange(s, start, end)
}

// FindDataFile locates a candle file under dataRoot
func (dm *DataManager) FindDataFile(dataRoot, exchange, symbol, interval string) (string, error) {
	return dm.locator.FindDataFile(dataRoot, exchange, symbol, interval)
}

// KlineSource fetches recent bars from an exchange.
type KlineSource interface {
	FetchOHLCV(ctx context.Context, symbol, timeframe string, limit int) ([]types.OHLCV, error)
}

// FetchSeries loads recent bars from an exchange into a sorted, validated
// series without signals.
func (dm *DataManager) FetchSeries(ctx context.Context, src KlineSource, symbol, timeframe string, limit int) (Series, error) {
	bars, err := src.FetchOHLCV(ctx, symbol, timeframe, limit)
	if err != nil {
		return Series{}, fmt.Errorf("fetch %s %s bars: %w", symbol, timeframe, err)
	}
	s := dm.filter.RemoveDuplicates(dm.filter.SortByTimestamp(Series{Bars: bars}))
	if err := dm.provider.ValidateData(s.Bars); err != nil {
		return Series{}, fmt.Errorf("%s %s bars: %w", symbol, timeframe, err)
	}
	return s, nil
}

// ParseTrailingPeriod parses period strings like "7d", "30days" or any
// time.ParseDuration value such as "168h".
func ParseTrailingPeriod(s string) (time.Duration, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if strings.HasSuffix(s, "days") {
		s = strings.TrimSuffix(s, "days") + "d"
	}
	if strings.HasSuffix(s, "d") {
		n, err := strconv.Atoi(strings.TrimSuffix(s, "d"))
		if err != nil || n <= 0 {
			return 0, false
		}
		return time.Duration(n) * 24 * time.Hour, true
	}
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d, true
	}
	return 0, false
}
