package market

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Source loads constraints for a symbol from an exchange.
type Source interface {
	FetchMarketConstraints(ctx context.Context, symbol string) (Constraints, error)
}

// Resolver holds the constraint snapshot for a set of symbols.
type Resolver struct {
	source  Source
	symbols []string

	mu      sync.RWMutex
	markets map[string]Constraints
}

// NewResolver creates a resolver that refreshes the given symbols from source.
// source may be nil when the snapshot is seeded with Load.
func NewResolver(source Source, symbols ...string) *Resolver {
	return &Resolver{
		source:  source,
		symbols: append([]string(nil), symbols...),
		markets: make(map[string]Constraints),
	}
}

// Resolve returns the constraints for symbol or ErrSymbolNotFound.
func (r *Resolver) Resolve(symbol string) (Constraints, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.markets[symbol]
	if !ok {
		return Constraints{}, fmt.Errorf("%w: %s", ErrSymbolNotFound, symbol)
	}
	return c, nil
}

// Load replaces the constraints of the given symbols.
func (r *Resolver) Load(cs ...Constraints) error {
	for _, c := range cs {
		if err := c.Validate(); err != nil {
			return err
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range cs {
		r.markets[c.Symbol] = c
	}
	return nil
}

// Refresh reloads every configured symbol. The snapshot is swapped only when
// all symbols load, so a failed refresh leaves the previous one intact.
func (r *Resolver) Refresh(ctx context.Context) error {
	if r.source == nil {
		return fmt.Errorf("resolver has no constraint source")
	}

	fresh := make(map[string]Constraints, len(r.symbols))
	for _, symbol := range r.symbols {
		c, err := r.source.FetchMarketConstraints(ctx, symbol)
		if err != nil {
			return fmt.Errorf("failed to load constraints for %s: %w", symbol, err)
		}
		if c.Symbol == "" {
			c.Symbol = symbol
		}
		if err := c.Validate(); err != nil {
			return err
		}
		fresh[symbol] = c
	}

	r.mu.Lock()
	r.markets = fresh
	r.mu.Unlock()
	return nil
}

// Symbols lists the symbols currently resolvable, sorted.
func (r *Resolver) Symbols() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.markets))
	for s := range r.markets {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
