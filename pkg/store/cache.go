package store

import (
	"sync"
	"time"

	"github.com/queryglass/queryglass/pkg/models"
)

type searchCacheEntry struct {
	results  []models.SchemaVectorEntry
	cachedAt time.Time
}

// SearchCache is a time-boxed in-memory cache of search results keyed by
// normalized query text and limit. Constructed once at process start and
// passed to the store explicitly so tests can build isolated instances.
type SearchCache struct {
	mu         sync.Mutex
	entries    map[string]searchCacheEntry
	ttl        time.Duration
	maxEntries int
	sweepEvery time.Duration
	lastSweep  time.Time
}

// NewSearchCache creates a search cache. Zero values fall back to a
// 5-minute TTL, 200 entries and a 30-second sweep interval.
func NewSearchCache(ttl time.Duration, maxEntries int) *SearchCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if maxEntries <= 0 {
		maxEntries = 200
	}
	return &SearchCache{
		entries:    make(map[string]searchCacheEntry),
		ttl:        ttl,
		maxEntries: maxEntries,
		sweepEvery: 30 * time.Second,
	}
}

// Get returns cached results if present and within TTL.
func (c *SearchCache) Get(key string) ([]models.SchemaVectorEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if time.Since(entry.cachedAt) > c.ttl {
		delete(c.entries, key)
		return nil, false
	}
	return entry.results, true
}

// Put stores results under key and opportunistically evicts. The sweep is
// rate-limited so cleanup cost stays bounded; if the cache still exceeds
// its cap afterwards, oldest entries go first.
func (c *SearchCache) Put(key string, results []models.SchemaVectorEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = searchCacheEntry{results: results, cachedAt: time.Now()}

	if time.Since(c.lastSweep) >= c.sweepEvery {
		c.sweepLocked()
		c.lastSweep = time.Now()
	}

	for len(c.entries) > c.maxEntries {
		c.evictOldestLocked()
	}
}

// Len reports the current entry count.
func (c *SearchCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *SearchCache) sweepLocked() {
	now := time.Now()
	for key, entry := range c.entries {
		if now.Sub(entry.cachedAt) > c.ttl {
			delete(c.entries, key)
		}
	}
}

func (c *SearchCache) evictOldestLocked() {
	var oldestKey string
	var oldestAt time.Time
	first := true
	for key, entry := range c.entries {
		if first || entry.cachedAt.Before(oldestAt) {
			oldestKey = key
			oldestAt = entry.cachedAt
			first = false
		}
	}
	if !first {
		delete(c.entries, oldestKey)
	}
}
