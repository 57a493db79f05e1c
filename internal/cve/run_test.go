package cve

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greywatch/sentinel/internal/cache"
	"github.com/greywatch/sentinel/internal/models"
	"github.com/greywatch/sentinel/internal/store/memory"
)

type fakeNVD struct {
	calls   int
	lookups map[string]NVDRecord
}

func (f *fakeNVD) Lookup(ctx context.Context, cveID string) (NVDRecord, error) {
	f.calls++
	return f.lookups[cveID], nil
}

func TestRun_DeduplicatesEnrichmentAcrossArticles(t *testing.T) {
	stores, seeder := memory.New()
	_ = seeder

	score := 9.8
	fake := &fakeNVD{lookups: map[string]NVDRecord{
		"CVE-2024-1234": {CVSSScore: &score},
	}}
	kevCache := cache.NewKEVCache(func() (map[string]cache.KEVEntry, error) {
		return map[string]cache.KEVEntry{}, nil
	})
	svc := &Service{nvd: fake, kev: kevCache}

	articles := []models.Article{
		{ID: "a1", Title: "Exploit for CVE-2024-1234 found"},
		{ID: "a2", Title: "Second report on CVE-2024-1234"},
	}
	articles[0].URL = "https://news.example/a1"
	articles[1].URL = "https://news.example/a2"
	_, err := stores.Articles.FindOrCreate(context.Background(), articles[0])
	require.NoError(t, err)
	_, err = stores.Articles.FindOrCreate(context.Background(), articles[1])
	require.NoError(t, err)

	err = svc.Run(context.Background(), stores, articles)
	require.NoError(t, err)
	assert.Equal(t, 1, fake.calls, "enrichment should be fetched once across both articles")

	rows, err := stores.ArticleCVEs.ListByArticles(context.Background(), []string{"a1", "a2"})
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	a1, err := stores.Articles.Get(context.Background(), "a1")
	require.NoError(t, err)
	assert.True(t, a1.CVEsExtracted)
}

func TestRun_MarksExtractedWhenNoCVEsFound(t *testing.T) {
	stores, _ := memory.New()
	svc := &Service{nvd: &fakeNVD{}, kev: cache.NewKEVCache(func() (map[string]cache.KEVEntry, error) {
		return map[string]cache.KEVEntry{}, nil
	})}

	a := models.Article{ID: "a1", URL: "https://news.example/a1", Title: "Routine patch Tuesday roundup"}
	_, err := stores.Articles.FindOrCreate(context.Background(), a)
	require.NoError(t, err)

	require.NoError(t, svc.Run(context.Background(), stores, []models.Article{a}))

	got, err2 := stores.Articles.Get(context.Background(), "a1")
	require.NoError(t, err2)
	assert.True(t, got.CVEsExtracted)
}

func TestRun_TagsInKEVEntries(t *testing.T) {
	stores, _ := memory.New()
	due := time.Now().Add(14 * 24 * time.Hour)
	kevCache := cache.NewKEVCache(func() (map[string]cache.KEVEntry, error) {
		return map[string]cache.KEVEntry{
			"CVE-2024-5555": {Vendor: "acme", Product: "widget", DueDate: &due, RansomwareUse: true},
		}, nil
	})
	svc := &Service{nvd: &fakeNVD{}, kev: kevCache}

	a := models.Article{ID: "a1", URL: "https://news.example/a1", Title: "CVE-2024-5555 actively exploited"}
	_, err := stores.Articles.FindOrCreate(context.Background(), a)
	require.NoError(t, err)
	require.NoError(t, svc.Run(context.Background(), stores, []models.Article{a}))

	rows, err := stores.ArticleCVEs.ListByArticle(context.Background(), "a1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].InKEV)
	assert.True(t, rows[0].KEVRansomwareUse)
}
