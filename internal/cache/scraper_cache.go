// Package cache holds the cross-tenant caches shared by the scraper
// and CVE enrichment stages. Both are mutex-guarded maps with
// TTL-checked reads.
package cache

import (
	"sync"
	"time"

	"github.com/greywatch/sentinel/internal/models"
)

// ScraperEntry is a cached parse result. Articles are stored without a
// source id so the same URL can serve any user's source record on read.
type ScraperEntry struct {
	Articles  []models.Article
	FetchedAt time.Time
}

// ScraperCache caches parsed feed/page content keyed by source URL.
// Reads within TTL are side-effect free w.r.t. the caller's database
// identity: the caller re-tags the returned articles with its own
// source id, the cache entry itself is never mutated.
type ScraperCache struct {
	mu      sync.RWMutex
	entries map[string]ScraperEntry
	ttl     time.Duration
}

// NewScraperCache builds a cache with a 1 hour TTL.
func NewScraperCache() *ScraperCache {
	return &ScraperCache{
		entries: make(map[string]ScraperEntry),
		ttl:     time.Hour,
	}
}

// Get returns a copy of the cached articles for url, re-tagged with
// sourceID, and true if the entry exists and has not expired as of now.
func (c *ScraperCache) Get(url string, sourceID string, now time.Time) ([]models.Article, bool) {
	c.mu.RLock()
	entry, ok := c.entries[url]
	c.mu.RUnlock()
	if !ok || now.Sub(entry.FetchedAt) > c.ttl {
		return nil, false
	}

	out := make([]models.Article, len(entry.Articles))
	for i, a := range entry.Articles {
		a.SourceID = sourceID
		out[i] = a
	}
	return out, true
}

// Put stores a fresh parse. Articles are stored as-is; Get strips the
// caller's source id back out on re-tagging, so callers may pass
// either a zeroed or populated SourceID here.
func (c *ScraperCache) Put(url string, articles []models.Article, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[url] = ScraperEntry{Articles: articles, FetchedAt: now}
}

// Len reports the number of cached URLs, for diagnostics/tests.
func (c *ScraperCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
