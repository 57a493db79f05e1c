package cache

import (
	"sync"
	"time"
)

// KEVEntry is one CISA Known Exploited Vulnerabilities catalog row,
// trimmed to the fields the enrichment stage reads.
type KEVEntry struct {
	Vendor        string
	Product       string
	DateAdded     time.Time
	DueDate       *time.Time
	RansomwareUse bool
}

// KEVFetchFunc performs the actual network fetch of the catalog. It is
// injected so the cache's stale-on-failure behavior can be unit tested
// without a live HTTP call.
type KEVFetchFunc func() (map[string]KEVEntry, error)

// KEVCache fetches the KEV catalog once per process per 24h TTL window
// and serves stale data if a refresh fails, falling back to an empty
// map only when nothing has ever succeeded.
type KEVCache struct {
	mu        sync.Mutex
	data      map[string]KEVEntry
	fetchedAt time.Time
	ttl       time.Duration
	fetch     KEVFetchFunc
}

// NewKEVCache wraps fetch with a 24h TTL.
func NewKEVCache(fetch KEVFetchFunc) *KEVCache {
	return &KEVCache{
		data:  make(map[string]KEVEntry),
		ttl:   24 * time.Hour,
		fetch: fetch,
	}
}

// Get returns the current catalog, refreshing it first if the TTL has
// elapsed. A refresh failure after a prior success returns the stale
// map rather than an error.
func (c *KEVCache) Get(now time.Time) map[string]KEVEntry {
	c.mu.Lock()
	defer c.mu.Unlock()

	if now.Sub(c.fetchedAt) <= c.ttl && !c.fetchedAt.IsZero() {
		return c.data
	}

	fresh, err := c.fetch()
	if err != nil {
		return c.data
	}
	c.data = fresh
	c.fetchedAt = now
	return c.data
}
