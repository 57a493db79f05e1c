package cache

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greywatch/sentinel/internal/models"
)

func TestScraperCache_ReTagsOnReadWithoutMutatingEntry(t *testing.T) {
	c := NewScraperCache()
	now := time.Unix(1700000000, 0)

	c.Put("https://feed.example/rss", []models.Article{{URL: "https://feed.example/a"}}, now)

	got, ok := c.Get("https://feed.example/rss", "source-1", now)
	require.True(t, ok)
	require.Len(t, got, 1)
	assert.Equal(t, "source-1", got[0].SourceID)

	gotAgain, ok := c.Get("https://feed.example/rss", "source-2", now)
	require.True(t, ok)
	assert.Equal(t, "source-2", gotAgain[0].SourceID, "a second caller's source id must not leak from the first read")
}

func TestScraperCache_ExpiresAfterTTL(t *testing.T) {
	c := NewScraperCache()
	now := time.Unix(1700000000, 0)
	c.Put("https://feed.example/rss", []models.Article{{URL: "https://feed.example/a"}}, now)

	_, ok := c.Get("https://feed.example/rss", "s1", now.Add(61*time.Minute))
	assert.False(t, ok, "an entry older than the 1h TTL must miss")
}

func TestKEVCache_ReturnsStaleOnFetchFailure(t *testing.T) {
	calls := 0
	cache := NewKEVCache(func() (map[string]KEVEntry, error) {
		calls++
		if calls == 1 {
			return map[string]KEVEntry{"CVE-2024-0001": {Vendor: "acme"}}, nil
		}
		return nil, errors.New("network down")
	})

	t0 := time.Unix(1700000000, 0)
	first := cache.Get(t0)
	require.Len(t, first, 1)

	second := cache.Get(t0.Add(25 * time.Hour))
	assert.Len(t, second, 1, "a failed refresh after TTL expiry should return the prior stale data")
}

func TestKEVCache_EmptyMapBeforeAnySuccess(t *testing.T) {
	cache := NewKEVCache(func() (map[string]KEVEntry, error) {
		return nil, errors.New("down")
	})
	got := cache.Get(time.Unix(1700000000, 0))
	assert.Empty(t, got)
}
