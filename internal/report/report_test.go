package report

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greywatch/sentinel/internal/models"
	"github.com/greywatch/sentinel/internal/store/memory"
)

type fakeProvider struct{ response string }

func (f *fakeProvider) Complete(ctx context.Context, systemPrompt, userPrompt string, jsonMode bool, maxTokens int, temperature float64) (string, error) {
	return f.response, nil
}

func TestCVEStats_BucketsByThresholdAndDedupesAcrossArticles(t *testing.T) {
	critical := 9.8
	medium := 5.0
	cves := []models.ArticleCVE{
		{CVEID: "CVE-2024-1", CVSSScore: &critical},
		{CVEID: "CVE-2024-1", CVSSScore: &critical}, // same CVE from a second article
		{CVEID: "CVE-2024-2", CVSSScore: &medium},
	}
	stats := cveStats(cves)
	assert.Equal(t, 2, stats.UniqueCount)
	assert.Equal(t, 1, stats.BucketCritical)
	assert.Equal(t, 1, stats.BucketMedium)
}

func TestStoriesPerDay_IncludesEmptyDays(t *testing.T) {
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 1, 3, 0, 0, 0, 0, time.UTC)
	groups := []models.NewsGroup{{Date: from}}

	days := storiesPerDay(groups, from, to)
	require.Len(t, days, 3)
	assert.Equal(t, 1, days[0].Count)
	assert.Equal(t, 0, days[1].Count)
	assert.Equal(t, 0, days[2].Count)
}

func TestTopEntitiesByTypes_FiltersAndCapsAtLimit(t *testing.T) {
	entities := []models.ArticleEntity{
		{Type: models.EntityProduct, Name: "Widget"},
		{Type: models.EntityProduct, Name: "Widget"},
		{Type: models.EntityPerson, Name: "SomeActor"},
	}
	products := topEntitiesByTypes(entities, []models.EntityType{models.EntityProduct}, 10)
	require.Len(t, products, 1)
	assert.Equal(t, 2, products[0].Count)
}

func TestRun_PersistsReportForPeriod(t *testing.T) {
	stores, seeder := memory.New()
	seeder.User(models.User{ID: "u1"})

	builder := New(&fakeProvider{response: "narrative summary"})
	now := time.Now().UTC()

	err := builder.Run(context.Background(), stores, "u1", models.Period7Days, now)
	require.NoError(t, err)
}

func TestRun_RejectsUnknownPeriod(t *testing.T) {
	stores, seeder := memory.New()
	seeder.User(models.User{ID: "u1"})
	builder := New(&fakeProvider{response: "x"})

	err := builder.Run(context.Background(), stores, "u1", models.Period("9d"), time.Now())
	assert.Error(t, err)
}
