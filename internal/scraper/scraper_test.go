package scraper

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greywatch/sentinel/internal/cache"
	"github.com/greywatch/sentinel/internal/models"
)

const sampleRSS = `<?xml version="1.0"?>
<rss version="2.0"><channel>
<item><title>New ransomware strain</title><link>https://news.example/a</link><description>details</description><guid>guid-1</guid></item>
<item><title>Old story</title><link>https://news.example/old</link><description>old</description><pubDate>Mon, 02 Jan 1990 15:04:05 -0700</pubDate></item>
</channel></rss>`

func TestScrape_FiltersItemsOlderThanSevenDays(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(sampleRSS))
	}))
	defer srv.Close()

	s := New(cache.NewScraperCache())
	source := models.Source{ID: "src-1", URL: srv.URL, Type: models.SourceRSS}

	articles, err := s.Scrape(t.Context(), source)
	require.NoError(t, err)
	require.Len(t, articles, 1, "the 1990 item should be dropped by the 7-day age filter")
	assert.Equal(t, "https://news.example/a", articles[0].URL)
	assert.Equal(t, "src-1", articles[0].SourceID)
}

func TestScrape_CacheHitReTagsWithoutRefetch(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(sampleRSS))
	}))
	defer srv.Close()

	s := New(cache.NewScraperCache())
	src1 := models.Source{ID: "src-1", URL: srv.URL, Type: models.SourceRSS}
	src2 := models.Source{ID: "src-2", URL: srv.URL, Type: models.SourceRSS}

	_, err := s.Scrape(t.Context(), src1)
	require.NoError(t, err)
	got2, err := s.Scrape(t.Context(), src2)
	require.NoError(t, err)

	assert.Equal(t, 1, calls, "second caller must hit the cache, not the network")
	require.Len(t, got2, 1)
	assert.Equal(t, "src-2", got2[0].SourceID, "cache read must re-tag with the new caller's source id")
}

func TestParseWebsite_StripsScriptAndStyle(t *testing.T) {
	html := `<html><head><style>.x{}</style></head><body><script>evil()</script><p>Hello  world</p></body></html>`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(html))
	}))
	defer srv.Close()

	s := New(cache.NewScraperCache())
	source := models.Source{ID: "src-1", URL: srv.URL, Name: "Example", Type: models.SourceWebsite}

	articles, err := s.Scrape(t.Context(), source)
	require.NoError(t, err)
	require.Len(t, articles, 1)
	assert.NotContains(t, articles[0].Content, "evil()")
	assert.Contains(t, articles[0].Content, "Hello world")
}

func TestPreWarm_DedupesURLsAcrossSources(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(sampleRSS))
	}))
	defer srv.Close()

	s := New(cache.NewScraperCache())
	sources := []models.Source{
		{ID: "a", URL: srv.URL, Type: models.SourceRSS},
		{ID: "b", URL: srv.URL, Type: models.SourceRSS},
	}

	require.NoError(t, s.PreWarm(t.Context(), sources))
	assert.Equal(t, 1, calls, "pre-warm must dedupe identical source URLs before fetching")
}

func TestParsePubDate_AcceptsRFC1123Z(t *testing.T) {
	got := parsePubDate("Mon, 02 Jan 2006 15:04:05 -0700")
	require.NotNil(t, got)
	assert.Equal(t, 2006, got.Year())
}

func TestScraperCache_TTLBoundary(t *testing.T) {
	c := cache.NewScraperCache()
	now := time.Now()
	c.Put("u", []models.Article{{URL: "u"}}, now)
	_, ok := c.Get("u", "s", now.Add(59*time.Minute))
	assert.True(t, ok)
}
