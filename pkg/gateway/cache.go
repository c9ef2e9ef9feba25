package gateway

import (
	"fmt"
	"sync"
	"time"
)

const connIdentityLength = 20

type cachedExecution struct {
	outcome  Outcome
	cachedAt time.Time
}

// ExecutionCache holds recent execution outcomes for a very short TTL.
// It exists to absorb duplicate near-simultaneous submissions (UI
// double-invocation, overlapping critique agents), not to serve stale
// analytical data.
type ExecutionCache struct {
	mu         sync.Mutex
	entries    map[string]cachedExecution
	ttl        time.Duration
	maxEntries int
}

// NewExecutionCache creates an execution cache. Zero values fall back to
// a 1-second TTL and 100 entries.
func NewExecutionCache(ttl time.Duration, maxEntries int) *ExecutionCache {
	if ttl <= 0 {
		ttl = time.Second
	}
	if maxEntries <= 0 {
		maxEntries = 100
	}
	return &ExecutionCache{
		entries:    make(map[string]cachedExecution),
		ttl:        ttl,
		maxEntries: maxEntries,
	}
}

// Key builds the cache key from normalized SQL and a truncated connection
// identity. Truncation keeps full credentials out of cache keys while
// still separating different target databases.
func (c *ExecutionCache) Key(normalizedSQL, connString string) string {
	identity := connString
	if len(identity) > connIdentityLength {
		identity = identity[:connIdentityLength]
	}
	return fmt.Sprintf("%s|%s", normalizedSQL, identity)
}

// Get returns a cached outcome if present and within TTL.
func (c *ExecutionCache) Get(key string) (Outcome, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return Outcome{}, false
	}
	if time.Since(entry.cachedAt) > c.ttl {
		delete(c.entries, key)
		return Outcome{}, false
	}
	return entry.outcome, true
}

// Put stores an outcome, evicting oldest entries while over capacity.
func (c *ExecutionCache) Put(key string, outcome Outcome) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = cachedExecution{outcome: outcome, cachedAt: time.Now()}

	for len(c.entries) > c.maxEntries {
		c.evictOldestLocked()
	}
}

func (c *ExecutionCache) evictOldestLocked() {
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
