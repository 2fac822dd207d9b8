package data

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ducminhle1904/crypto-trade-engine/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const signalCSV = `timestamp,open,high,low,close,volume,signal
2024-01-01 00:00:00,100,101,99,100.5,10,hold
2024-01-02 00:00:00,100.5,102,100,101.5,12,buy
2024-01-03 00:00:00,101.5,101,100,100.8,9,hold
2024-01-04 00:00:00,100.8,103,100.5,102.9,15,
2024-01-05 00:00:00,102.9,104,102,103.7,11,SELL
`

// TestCSVProvider_ReadWithSignals tests header mapping, row skipping and the signal column
func TestCSVProvider_ReadWithSignals(t *testing.T) {
	s, err := NewCSVProvider().Read(strings.NewReader(signalCSV))
	require.NoError(t, err)

	assert.Equal(t, 4, s.Len())
	assert.Equal(t, 1, s.Skipped, "the row with high below open is dropped")
	require.True(t, s.HasSignals())
	assert.Equal(t, []types.Action{types.ActionHold, types.ActionBuy, types.ActionHold, types.ActionSell}, s.Signals)
	assert.Equal(t, 102.9, s.Bars[2].Close)
	assert.Equal(t, time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC), s.Bars[3].Timestamp)
}

// TestCSVProvider_ReorderedColumns tests that named columns may appear in any order
func TestCSVProvider_ReorderedColumns(t *testing.T) {
	csv := "signal,close,low,high,open,time\nbuy,10,9,11,10,2024-01-01T00:00:00Z\n"

	s, err := NewCSVProvider().Read(strings.NewReader(csv))
	require.NoError(t, err)
	require.Equal(t, 1, s.Len())
	assert.Equal(t, 11.0, s.Bars[0].High)
	assert.Equal(t, 0.0, s.Bars[0].Volume)
	assert.Equal(t, []types.Action{types.ActionBuy}, s.Signals)
}

// TestCSVProvider_BybitFormat tests positional columns with epoch millisecond timestamps
func TestCSVProvider_BybitFormat(t *testing.T) {
	csv := "c0,c1,c2,c3,c4,c5\n1704067200000,100,101,99,100,5\n1704070800000,100,102,99,101,6\n"

	s, err := NewCSVProviderWithFormat(BybitCSVFormat).Read(strings.NewReader(csv))
	require.NoError(t, err)
	require.Equal(t, 2, s.Len())
	assert.False(t, s.HasSignals())
	assert.Equal(t, time.Date(2024, 1, 1, 1, 0, 0, 0, time.UTC), s.Bars[1].Timestamp)
}

// TestCSVProvider_Errors tests unreadable inputs
func TestCSVProvider_Errors(t *testing.T) {
	_, err := NewCSVProvider().Read(strings.NewReader(""))
	assert.Error(t, err)

	bad := "timestamp,open,high,low,close,volume,signal\n2024-01-01 00:00:00,1,1,1,1,1,short\n"
	_, err = NewCSVProvider().Read(strings.NewReader(bad))
	assert.ErrorContains(t, err, "line 2")

	_, err = NewCSVProvider().LoadSeries(filepath.Join(t.TempDir(), "missing.csv"))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

// TestReadSignals tests the one-action-per-line signal format
func TestReadSignals(t *testing.T) {
	in := "action\nbuy\n\n# comment\nHOLD\n2024-01-03,sell\n"

	signals, err := ReadSignals(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, []types.Action{types.ActionBuy, types.ActionHold, types.ActionSell}, signals)

	_, err = ReadSignals(strings.NewReader("buy\nmaybe\n"))
	assert.ErrorContains(t, err, "line 2")
}

// TestFilters tests that filtering keeps signals aligned with bars
func TestFilters(t *testing.T) {
	s := dailySeries(10)
	f := NewDefaultDataFilter()

	last := f.FilterByPeriod(s, 72*time.Hour)
	assert.Equal(t, 4, last.Len())
	assert.Equal(t, s.Signals[6:], last.Signals)

	ranged := f.FilterByDateRange(s, s.Bars[2].Timestamp, s.Bars[4].Timestamp)
	assert.Equal(t, 3, ranged.Len())
	assert.Equal(t, s.Signals[2:5], ranged.Signals)

	open := f.FilterByDateRange(s, time.Time{}, s.Bars[1].Timestamp)
	assert.Equal(t, 2, open.Len())
}

// TestSortAndDeduplicate tests ordering repair and sequence validation
func TestSortAndDeduplicate(t *testing.T) {
	s := dailySeries(4)
	shuffled := Series{
		Bars:    []types.OHLCV{s.Bars[2], s.Bars[0], s.Bars[2], s.Bars[1], s.Bars[3]},
		Signals: []types.Action{"sell", "hold", "buy", "buy", "hold"},
	}
	f := NewDefaultDataFilter()
	assert.Error(t, f.ValidateTimeSequence(shuffled.Bars))

	fixed := f.RemoveDuplicates(f.SortByTimestamp(shuffled))
	require.Equal(t, 4, fixed.Len())
	assert.NoError(t, f.ValidateTimeSequence(fixed.Bars))
	assert.Equal(t, []types.Action{"hold", "buy", "sell", "hold"}, fixed.Signals, "first occurrence wins")
}

// TestDataManager_Load tests loading through the cache from disk
func TestDataManager_Load(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "candles.csv")
	require.NoError(t, os.WriteFile(path, []byte(signalCSV), 0o644))

	provider := NewCachedProvider(NewCSVProvider())
	dm := NewDataManagerWithProvider(provider)

	s, err := dm.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 4, s.Len())
	assert.Equal(t, 1, provider.GetCacheSize())

	require.NoError(t, os.Remove(path))
	again, err := dm.Load(path)
	require.NoError(t, err, "served from cache")
	assert.Equal(t, s, again)
}

// TestFindDataFile tests the exchange directory layout lookup
func TestFindDataFile(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "bybit", "linear", "BTCUSDT", "60")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "candles.csv"), []byte("x"), 0o644))

	l := NewDefaultFileLocator()
	path, err := l.FindDataFile(root, "bybit", "btcusdt", "1h")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "candles.csv"), path)

	_, err = l.FindDataFile(root, "bybit", "ETHUSDT", "1h")
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

// TestConvertIntervalToMinutes tests interval conversion
func TestConvertIntervalToMinutes(t *testing.T) {
	l := NewDefaultFileLocator()
	tests := map[string]string{"5m": "5", "1h": "60", "4h": "240", "1d": "1440", "1w": "10080", "15": "15", "x": "x", "3y": "3y"}
	for in, expected := range tests {
		assert.Equal(t, expected, l.ConvertIntervalToMinutes(in), in)
	}
}

// TestParseTrailingPeriod tests trailing period parsing
func TestParseTrailingPeriod(t *testing.T) {
	tests := []struct {
		in       string
		expected time.Duration
		ok       bool
	}{
		{"7d", 7 * 24 * time.Hour, true},
		{"30days", 30 * 24 * time.Hour, true},
		{"168h", 168 * time.Hour, true},
		{"0d", 0, false},
		{"soon", 0, false},
	}
	for _, tt := range tests {
		d, ok := ParseTrailingPeriod(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.expected, d, tt.in)
	}
}

type stubKlines struct {
	bars []types.OHLCV
	err  error
}

func (s stubKlines) FetchOHLCV(ctx context.Context, symbol, timeframe string, limit int) ([]types.OHLCV, error) {
	return s.bars, s.err
}

// TestFetchSeries tests loading bars from an exchange source
func TestFetchSeries(t *testing.T) {
	s := dailySeries(3)
	reversed := []types.OHLCV{s.Bars[2], s.Bars[1], s.Bars[0]}
	dm := NewDataManager()

	got, err := dm.FetchSeries(context.Background(), stubKlines{bars: reversed}, "BTCUSDT", "1d", 3)
	require.NoError(t, err)
	assert.Equal(t, s.Bars, got.Bars)

	_, err = dm.FetchSeries(context.Background(), stubKlines{err: errors.New("boom")}, "BTCUSDT", "1d", 3)
	assert.ErrorContains(t, err, "boom")
}

// TestSaveSeries tests that written files load back unchanged
func TestSaveSeries(t *testing.T) {
	root := t.TempDir()
	l := NewDefaultFileLocator()
	path := l.DataFilePath(root, "Bybit", "Linear", "btcusdt", "4h")
	assert.Equal(t, filepath.Join(root, "bybit", "linear", "BTCUSDT", "240", "candles.csv"), path)

	s := dailySeries(4)
	s.Bars[1].Close = 101.125
	require.NoError(t, SaveSeries(path, s))

	found, err := l.FindDataFile(root, "bybit", "BTCUSDT", "240")
	require.NoError(t, err)
	assert.Equal(t, path, found)

	loaded, err := NewCSVProvider().LoadSeries(path)
	require.NoError(t, err)
	assert.Equal(t, s.Bars, loaded.Bars)
	assert.Equal(t, s.Signals, loaded.Signals)

	var b strings.Builder
	require.NoError(t, WriteCSV(&b, Series{Bars: s.Bars}))
	assert.True(t, strings.HasPrefix(b.String(), "timestamp,open,high,low,close,volume\n"))
	assert.Error(t, WriteCSV(&b, Series{Bars: s.Bars, Signals: s.Signals[:2]}))
}

func dailySeries(n int) Series {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := Series{}
	actions := []types.Action{types.ActionHold, types.ActionBuy, types.ActionSell}
	for i := 0; i < n; i++ {
		p := 100 + float64(i)
		s.Bars = append(s.Bars, types.OHLCV{
			Timestamp: start.Add(time.Duration(i) * 24 * time.Hour),
			Open:      p, High: p + 1, Low: p - 1, Close: p, Volume: 1,
		})
		s.Signals = append(s.Signals, actions[i%3])
	}
	return s
}
