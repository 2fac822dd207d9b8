package data

import (
	"fmt"
	"sort"
	"time"

	"github.com/ducminhle1904/crypto-trade-engine/pkg/types"
)

// DefaultDataFilter implements DataFilter. Filters keep the signal column
// aligned with the bars.
type DefaultDataFilter struct{}

// NewDefaultDataFilter creates a new default data filter
func NewDefaultDataFilter() *DefaultDataFilter {
	return &DefaultDataFilter{}
}

// FilterByPeriod keeps the trailing period ending at the last bar
func (f *DefaultDataFilter) FilterByPeriod(s Series, period time.Duration) Series {
	if period <= 0 || len(s.Bars) == 0 {
		return s
	}

	cutoff := s.Bars[len(s.Bars)-1].Timestamp.Add(-period)
	start := sort.Search(len(s.Bars), func(i int) bool {
		return !s.Bars[i].Timestamp.Before(cutoff)
	})
	return s.slice(start, len(s.Bars))
}

// FilterByDateRange keeps bars within [start, end]. A zero bound is open.
func (f *DefaultDataFilter) FilterByDateRange(s Series, start, end time.Time) Series {
	if len(s.Bars) == 0 {
		return s
	}

	out := Series{Skipped: s.Skipped}
	withSignals := s.HasSignals()
	for i, candle := range s.Bars {
		if !start.IsZero() && candle.Timestamp.Before(start) {
			continue
		}
		if !end.IsZero() && candle.Timestamp.After(end) {
			continue
		}
		out.Bars = append(out.Bars, candle)
		if withSignals {
			out.Signals = append(out.Signals, s.Signals[i])
		}
	}
	return out
}

// ValidateTimeSequence ensures bars are strictly chronological
func (f *DefaultDataFilter) ValidateTimeSequence(data []types.OHLCV) error {
	for i := 1; i < len(data); i++ {
		if data[i].Timestamp.Before(data[i-1].Timestamp) {
			return fmt.Errorf("data not in chronological order at index %d: %s comes after %s",
				i, data[i].Timestamp.Format(time.RFC3339), data[i-1].Timestamp.Format(time.RFC3339))
		}
		if data[i].Timestamp.Equal(data[i-1].Timestamp) {
			return fmt.Errorf("duplicate timestamp at index %d: %s",
				i, data[i].Timestamp.Format(time.RFC3339))
		}
	}
	return nil
}

// SortByTimestamp returns a chronologically sorted copy. Equal timestamps
// keep their file order.
func (f *DefaultDataFilter) SortByTimestamp(s Series) Series {
	idx := make([]int, len(s.Bars))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return s.Bars[idx[a]].Timestamp.Before(s.Bars[idx[b]].Timestamp)
	})
	return s.pick(idx)
}

// RemoveDuplicates drops bars whose timestamp equals the previous bar's,
// keeping the first occurrence. The series must already be sorted.
func (f *DefaultDataFilter) RemoveDuplicates(s Series) Series {
	var idx []int
	for i := range s.Bars {
		if i > 0 && s.Bars[i].Timestamp.Equal(s.Bars[i-1].Timestamp) {
			continue
		}
		idx = append(idx, i)
	}
	return s.pick(idx)
}

func (s Series) slice(from, to int) Series {
	out := Series{Bars: s.Bars[from:to], Skipped: s.Skipped}
	if s.HasSignals() {
		out.Signals = s.Signals[from:to]
	}
	return out
}

func (s Series) pick(idx []int) Series {
	out := Series{Bars: make([]types.OHLCV, len(idx)), Skipped: s.Skipped}
	withSignals := s.HasSignals()
	if withSignals {
		out.Signals = make([]types.Action, len(idx))
	}
	for j, i := range idx {
		out.Bars[j] = s.Bars[i]
		if withSignals {
			out.Signals[j] = s.Signals[i]
		}
	}
	return out
}

var (
	_ DataFilter   = (*DefaultDataFilter)(nil)
	_ DataProvider = (*CSVProvider)(nil)
	_ DataProvider = (*CachedProvider)(nil)
	_ FileLocator  = (*DefaultFileLocator)(nil)
)
