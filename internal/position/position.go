package position

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Side of an open position.
type Side string

const (
	SideLong  Side = "long"
	SideShort Side = "short"
)

// Position is the last known state of an open position on one symbol.
type Position struct {
	Symbol        string
	Side          Side
	Size          float64
	EntryPrice    float64
	MarkPrice     float64
	UnrealizedPnl float64
	FetchedAt     time.Time
}

// Entry returns the entry price, falling back to the mark price when the
// exchange did not report one.
func (p Position) Entry() float64 {
	if p.EntryPrice > 0 {
		return p.EntryPrice
	}
	return p.MarkPrice
}

// Open reports whether the position holds any size.
func (p Position) Open() bool {
	return p.Size != 0
}

// Fetcher loads open positions from the exchange. An empty symbol asks for
// every open position.
type Fetcher interface {
	FetchPositions(ctx context.Context, symbol string) ([]Position, error)
}

// Tracker is a read-through cache of open positions keyed by symbol. Entries
// are only written by fetches, never by order placement.
type Tracker struct {
	fetcher Fetcher
	now     func() time.Time

	mu        sync.RWMutex
	positions map[string]*Position
}

// NewTracker creates a tracker backed by fetcher.
func NewTracker(fetcher Fetcher) *Tracker {
	return &Tracker{
		fetcher:   fetcher,
		now:       time.Now,
		positions: make(map[string]*Position),
	}
}

// Get returns the cached position for symbol, fetching it when unknown.
// A nil position with a nil error means the symbol is flat.
func (t *Tracker) Get(ctx context.Context, symbol string) (*Position, error) {
	t.mu.RLock()
	p, ok := t.positions[symbol]
	t.mu.RUnlock()
	if ok {
		return copyOf(p), nil
	}
	return t.Refresh(ctx, symbol)
}

// Cached returns the last fetched position without any I/O.
func (t *Tracker) Cached(symbol string) (*Position, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	p, ok := t.positions[symbol]
	return copyOf(p), ok
}

// Refresh fetches symbol from the exchange and replaces its cache entry.
// With an empty symbol every reported position is refreshed and nil is returned.
func (t *Tracker) Refresh(ctx context.Context, symbol string) (*Position, error) {
	if t.fetcher == nil {
		return nil, fmt.Errorf("position tracker has no fetcher")
	}

	list, err := t.fetcher.FetchPositions(ctx, symbol)
	if err != nil {
		if symbol == "" {
			return nil, fmt.Errorf("failed to fetch positions: %w", err)
		}
		return nil, fmt.Errorf("failed to fetch position for %s: %w", symbol, err)
	}

	fetchedAt := t.now()
	t.mu.Lock()
	defer t.mu.Unlock()

	if symbol == "" {
		fresh := make(map[string]*Position, len(list))
		for i := range list {
			if p := normalize(list[i], fetchedAt); p != nil {
				fresh[p.Symbol] = p
			}
		}
		t.positions = fresh
		return nil, nil
	}

	var found *Position
	for i := range list {
		if list[i].Symbol != symbol {
			continue
		}
		if p := normalize(list[i], fetchedAt); p != nil {
			found = p
			break
		}
	}
	t.positions[symbol] = found
	return copyOf(found), nil
}

// Invalidate drops the cache entry so the next Get fetches again.
func (t *Tracker) Invalidate(symbol string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.positions, symbol)
}

// All returns every cached open position.
func (t *Tracker) All() []Position {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]Position, 0, len(t.positions))
	for _, p := range t.positions {
		if p != nil {
			out = append(out, *p)
		}
	}
	return out
}

func normalize(p Position, fetchedAt time.Time) *Position {
	if !p.Open() {
		return nil
	}
	if p.Size < 0 {
		p.Size = -p.Size
		if p.Side == "" {
			p.Side = SideShort
		}
	}
	if p.Side == "" {
		p.Side = SideLong
	}
	p.EntryPrice = p.Entry()
	if p.FetchedAt.IsZero() {
		p.FetchedAt = fetchedAt
	}
	return &p
}

func copyOf(p *Position) *Position {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}
