package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greywatch/sentinel/internal/errs"
	"github.com/greywatch/sentinel/internal/models"
)

func TestArticles_FindOrCreate_DedupesByURL(t *testing.T) {
	stores, _ := New()
	ctx := context.Background()

	a1, err := stores.Articles.FindOrCreate(ctx, models.Article{URL: "https://example.com/a", Title: "first"})
	require.NoError(t, err)
	require.NotEmpty(t, a1.ID)

	a2, err := stores.Articles.FindOrCreate(ctx, models.Article{URL: "https://example.com/a", Title: "second"})
	require.NoError(t, err)

	assert.Equal(t, a1.ID, a2.ID, "second insert with the same URL should return the original row")
	assert.Equal(t, "first", a2.Title, "the winning row is the one already stored, not the racing write")
}

func TestArticles_GetNotFound(t *testing.T) {
	stores, _ := New()
	_, err := stores.Articles.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestTechStack_CreateRejectsDuplicate(t *testing.T) {
	stores, _ := New()
	ctx := context.Background()

	item := models.TechStackItem{UserID: "u1", Vendor: "apache", Product: "http_server"}
	_, err := stores.TechStack.Create(ctx, item)
	require.NoError(t, err)

	_, err = stores.TechStack.Create(ctx, item)
	assert.ErrorIs(t, err, errs.ErrConflict)
}

func TestExposures_ManualOverrideIsAFixpoint(t *testing.T) {
	stores, _ := New()
	ctx := context.Background()

	manual := models.UserCVEExposure{
		UserID:          "u1",
		CVEID:           "CVE-2024-0001",
		ExposureState:   models.ExposureFixed,
		AutoClassified:  false,
		FirstDetectedAt: time.Now(),
	}
	require.NoError(t, stores.Exposures.Upsert(ctx, manual))

	auto := manual
	auto.ExposureState = models.ExposureVulnerable
	auto.AutoClassified = true
	require.NoError(t, stores.Exposures.Upsert(ctx, auto))

	got, ok, err := stores.Exposures.Get(ctx, "u1", "CVE-2024-0001")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, models.ExposureFixed, got.ExposureState, "an auto-classified write must never overwrite a manual override")
	assert.False(t, got.AutoClassified)
}

func TestUserArticles_ListUngroupedExcludesGrouped(t *testing.T) {
	stores, _ := New()
	ctx := context.Background()

	require.NoError(t, stores.UserArticles.Upsert(ctx, models.UserArticle{UserID: "u1", ArticleID: "a1", Matched: true}))
	require.NoError(t, stores.UserArticles.Upsert(ctx, models.UserArticle{UserID: "u1", ArticleID: "a2", Matched: true}))
	require.NoError(t, stores.UserArticles.SetNewsGroup(ctx, "u1", []string{"a1"}, "g1"))

	ungrouped, err := stores.UserArticles.ListUngrouped(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, ungrouped, 1)
	assert.Equal(t, "a2", ungrouped[0].ArticleID)
}

func TestArticleEntities_CreateManySkipDuplicates(t *testing.T) {
	stores, _ := New()
	ctx := context.Background()

	rows := []models.ArticleEntity{
		{ArticleID: "a1", Type: models.EntityCompany, Name: "Acme", Confidence: 0.9},
		{ArticleID: "a1", Type: models.EntityCompany, Name: "Acme", Confidence: 0.5},
	}
	require.NoError(t, stores.ArticleEntities.CreateManySkipDuplicates(ctx, rows))

	got, err := stores.ArticleEntities.ListByArticle(ctx, "a1")
	require.NoError(t, err)
	require.Len(t, got, 1, "the second identical (articleID, type, name) row must be skipped")
	assert.Equal(t, 0.9, got[0].Confidence, "the first write wins")
}

func TestSeeder_UsersVisibleThroughUserStore(t *testing.T) {
	stores, seed := New()
	seed.User(models.User{ID: "u1", DigestFrequency: models.Freq1Day})

	got, err := stores.Users.Get(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, models.Freq1Day, got.DigestFrequency)
}
