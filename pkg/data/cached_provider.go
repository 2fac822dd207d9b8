package data

import (
	"sync"

	"github.com/ducminhle1904/crypto-trade-engine/pkg/types"
)

// MemoryCache implements DataCache using in-memory storage
type MemoryCache struct {
	cache map[string]Series
	mutex sync.RWMutex
}

// NewMemoryCache creates a new in-memory cache
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		cache: make(map[string]Series),
	}
}

// Get returns a copy of the cached series
func (c *MemoryCache) Get(key string) (Series, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	s, exists := c.cache[key]
	if !exists {
		return Series{}, false
	}
	return s.copy(), true
}

// Set stores a copy of s
func (c *MemoryCache) Set(key string, s Series) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.cache[key] = s.copy()
}

// Clear removes all cached data
func (c *MemoryCache) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.cache = make(map[string]Series)
}

// Size returns the number of cached entries
func (c *MemoryCache) Size() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.cache)
}

func (s Series) copy() Series {
	out := Series{Skipped: s.Skipped}
	if s.Bars != nil {
		out.Bars = append([]types.OHLCV(nil), s.Bars...)
	}
	if s.Signals != nil {
		out.Signals = append([]types.Action(nil), s.Signals...)
	}
	return out
}

// CachedProvider wraps another DataProvider with a cache keyed by source
type CachedProvider struct {
	provider DataProvider
	cache    DataCache
}

// NewCachedProvider creates a new cached data provider
func NewCachedProvider(provider DataProvider) *CachedProvider {
	return NewCachedProviderWithCache(provider, NewMemoryCache())
}

// NewCachedProviderWithCache creates a cached data provider with a custom cache
func NewCachedProviderWithCache(provider DataProvider, cache DataCache) *CachedProvider {
	return &CachedProvider{
		provider: provider,
		cache:    cache,
	}
}

// GetName returns the name of the underlying provider with cache indication
func (p *CachedProvider) GetName() string {
	return "Cached " + p.provider.GetName()
}

// LoadSeries returns the cached series for source, loading it on a miss
func (p *CachedProvider) LoadSeries(source string) (Series, error) {
	if s, ok := p.cache.Get(source); ok {
		return s, nil
	}

	s, err := p.provider.LoadSeries(source)
	if err != nil {
		return Series{}, err
	}
	p.cache.Set(source, s)
	return s, nil
}

// ValidateData validates data using the underlying provider
func (p *CachedProvider) ValidateData(data []types.OHLCV) error {
	return p.provider.ValidateData(data)
}

// ClearCache clears all cached data
func (p *CachedProvider) ClearCache() {
	p.cache.Clear()
}

// GetCacheSize returns the number of cached entries
func (p *CachedProvider) GetCacheSize() int {
	return p.cache.Size()
}
