package spaced_repetition

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/example/engbot/pkg/models"
)

// DefaultCacheCapacity is the number of entries a Cache holds unless configured otherwise.
const DefaultCacheCapacity = 1000

// CacheKey identifies one deterministic SM-2 calculation.
type CacheKey struct {
	Quality     int
	Repetitions int
	Interval    int
	EaseFactor  float64
}

// CacheStats is a point-in-time view of cache usage.
type CacheStats struct {
	Entries  int
	Capacity int
	Hits     uint64
	Misses   uint64
	Dropped  uint64
}

// Cache memoizes calculation results. It is bounded: once full, new entries are
// dropped rather than evicting old ones. Cached results never carry NextReview.
//
// A nil *Cache is valid and caches nothing.
type Cache struct {
	mu       sync.RWMutex
	entries  map[CacheKey]models.CalculationResult
	capacity int

	hits    atomic.Uint64
	misses  atomic.Uint64
	dropped atomic.Uint64
}

// NewCache creates a cache holding at most capacity entries.
// A non-positive capacity falls back to DefaultCacheCapacity.
func NewCache(capacity int) *Cache {
	if capacity <= 0 {
		capacity = DefaultCacheCapacity
	}
	return &Cache{
		entries:  make(map[CacheKey]models.CalculationResult, capacity),
		capacity: capacity,
	}
}

// Lookup returns the cached result for key.
func (c *Cache) Lookup(key CacheKey) (models.CalculationResult, bool) {
	if c == nil {
		return models.CalculationResult{}, false
	}
	c.mu.RLock()
	result, ok := c.entries[key]
	c.mu.RUnlock()

	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return result, ok
}

// Store records result under key. Stores into a full cache are silently dropped.
func (c *Cache) Store(key CacheKey, result models.CalculationResult) {
	if c == nil {
		return
	}
	result.NextReview = time.Time{}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.capacity {
		c.dropped.Add(1)
		return
	}
	c.entries[key] = result
}

// Clear removes every entry. Statistics are kept.
func (c *Cache) Clear() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.entries = make(map[CacheKey]models.CalculationResult, c.capacity)
	c.mu.Unlock()
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stats returns hit, miss and drop counters along with the current size.
func (c *Cache) Stats() CacheStats {
	if c == nil {
		return CacheStats{}
	}
	return CacheStats{
		Entries:  c.Len(),
		Capacity: c.capacity,
		Hits:     c.hits.Load(),
		Misses:   c.misses.Load(),
		Dropped:  c.dropped.Load(),
	}
}
