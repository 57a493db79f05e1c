// Package scraper implements the feed scraper with its cross-user
// cache: RSS/Atom sources parse into article items, WEBSITE sources
// become a single pseudo-article, and parses are cached by URL so peer
// users subscribed to the same feed never trigger a second fetch.
package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/greywatch/sentinel/internal/cache"
	"github.com/greywatch/sentinel/internal/models"
)

const (
	fetchTimeout = 15 * time.Second
	userAgent    = "SentinelDigestBot/1.0 (+https://sentinel.example/bot)"
	maxItemAge   = 7 * 24 * time.Hour
	preWarmLimit = 32
)

// Scraper fetches and parses feed sources, backed by a shared
// cross-user cache.
type Scraper struct {
	client *http.Client
	cache  *cache.ScraperCache
}

// New builds a Scraper with a fixed fetch timeout and User-Agent.
func New(c *cache.ScraperCache) *Scraper {
	return &Scraper{
		client: &http.Client{Timeout: fetchTimeout},
		cache:  c,
	}
}

// Scrape returns the source's current articles (age filter already
// applied), tagged with source.ID, consulting the cache first.
func (s *Scraper) Scrape(ctx context.Context, source models.Source) ([]models.Article, error) {
	now := time.Now()
	if cached, ok := s.cache.Get(source.URL, source.ID, now); ok {
		return cached, nil
	}

	articles, err := s.fetch(ctx, source)
	if err != nil {
		return nil, err
	}

	s.cache.Put(source.URL, articles, now)

	tagged := make([]models.Article, len(articles))
	for i, a := range articles {
		a.SourceID = source.ID
		tagged[i] = a
	}
	return tagged, nil
}

func (s *Scraper) fetch(ctx context.Context, source models.Source) ([]models.Article, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source.URL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("scraper: %s returned status %d", source.URL, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	switch source.Type {
	case models.SourceWebsite:
		return s.parseWebsite(source, body)
	default:
		return s.parseFeed(source, body)
	}
}

func (s *Scraper) parseFeed(source models.Source, body []byte) ([]models.Article, error) {
	raw, err := parseRSSOrAtom(body)
	if err != nil {
		return nil, fmt.Errorf("scraper: parsing feed %s: %w", source.URL, err)
	}

	cutoff := time.Now().Add(-maxItemAge)
	articles := make([]models.Article, 0, len(raw))
	for _, item := range raw {
		if item.URL == "" {
			continue
		}
		if item.PublishedAt != nil && item.PublishedAt.Before(cutoff) {
			continue
		}
		articles = append(articles, models.Article{
			URL:         item.URL,
			Title:       item.Title,
			Content:     item.Snippet,
			Author:      item.Author,
			GUID:        item.GUID,
			PublishedAt: item.PublishedAt,
		})
	}
	return articles, nil
}

// parseWebsite turns a WEBSITE source's whole page into a single
// pseudo-article: strip <script>/<style>, collapse whitespace.
func (s *Scraper) parseWebsite(source models.Source, body []byte) ([]models.Article, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return nil, fmt.Errorf("scraper: parsing website %s: %w", source.URL, err)
	}

	doc.Find("script, style").Remove()
	title := strings.TrimSpace(doc.Find("title").First().Text())
	if title == "" {
		title = source.Name
	}
	text := collapseWhitespace(doc.Find("body").Text())

	return []models.Article{{
		URL:     source.URL,
		Title:   title,
		Content: text,
	}}, nil
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// PreWarm fans out across the union of due users' active RSS source
// URLs so subsequent per-user scrapes hit the cache, bounded by
// preWarmLimit concurrent fetches.
func (s *Scraper) PreWarm(ctx context.Context, sources []models.Source) error {
	seen := make(map[string]bool, len(sources))
	unique := make([]models.Source, 0, len(sources))
	for _, src := range sources {
		if seen[src.URL] {
			continue
		}
		seen[src.URL] = true
		unique = append(unique, src)
	}

	sem := semaphore.NewWeighted(preWarmLimit)
	g, gctx := errgroup.WithContext(ctx)

	for _, src := range unique {
		src := src
		if err := sem.Acquire(gctx, 1); err != nil {
			break
		}
		g.Go(func() error {
			defer sem.Release(1)
			// A failed pre-warm fetch is discarded (the URL is simply
			// left uncached); it never aborts the batch.
			_, _ = s.Scrape(gctx, src)
			return nil
		})
	}

	return g.Wait()
}
