package cluster

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greywatch/sentinel/internal/models"
	"github.com/greywatch/sentinel/internal/store/memory"
)

func mustCreateArticle(t *testing.T, stores interface {
	FindOrCreate(ctx context.Context, a models.Article) (models.Article, error)
}, a models.Article) models.Article {
	t.Helper()
	out, err := stores.FindOrCreate(context.Background(), a)
	require.NoError(t, err)
	return out
}

func TestRun_ClustersByEntityAndSignalOverlap(t *testing.T) {
	stores, _ := memory.New()
	now := time.Now().UTC()

	var articles []models.Article
	for i := 0; i < 3; i++ {
		a := mustCreateArticle(t, stores.Articles, models.Article{
			URL:         "https://news.example/fortinet-" + string(rune('a'+i)),
			Title:       "Fortinet vulnerability disclosed",
			PublishedAt: timePtr(now.Add(-time.Duration(i) * time.Hour)),
		})
		articles = append(articles, a)
		require.NoError(t, stores.UserArticles.Upsert(context.Background(), models.UserArticle{
			UserID: "u1", ArticleID: a.ID, Matched: true,
		}))
		require.NoError(t, stores.ArticleEntities.CreateManySkipDuplicates(context.Background(), []models.ArticleEntity{
			{ArticleID: a.ID, Type: models.EntityCompany, Name: "Fortinet", Confidence: 0.9},
		}))
		require.NoError(t, stores.Signals.UpsertArticleSignal(context.Background(), models.ArticleSignal{
			ArticleID: a.ID, IndustrySignalID: "vulnerability", Confidence: 0.9,
		}))
	}

	// A decoy article with unrelated entity/signal keeps df(fortinet) <
	// N so the term still carries IDF weight; a term present in every
	// document contributes zero.
	decoy := mustCreateArticle(t, stores.Articles, models.Article{
		URL:         "https://news.example/decoy",
		Title:       "Unrelated roundup",
		PublishedAt: timePtr(now),
	})
	require.NoError(t, stores.UserArticles.Upsert(context.Background(), models.UserArticle{
		UserID: "u1", ArticleID: decoy.ID, Matched: true,
	}))
	require.NoError(t, stores.ArticleEntities.CreateManySkipDuplicates(context.Background(), []models.ArticleEntity{
		{ArticleID: decoy.ID, Type: models.EntityCompany, Name: "OtherCo", Confidence: 0.9},
	}))
	require.NoError(t, stores.Signals.UpsertArticleSignal(context.Background(), models.ArticleSignal{
		ArticleID: decoy.ID, IndustrySignalID: "phishing", Confidence: 0.9,
	}))

	groups, err := Run(context.Background(), stores, "u1", now)
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Len(t, groups[0].ArticleIDs, 3)
	assert.Contains(t, groups[0].DominantEntities, "Fortinet")
}

func TestRun_IDFSuppressionYieldsSingletons(t *testing.T) {
	stores, _ := memory.New()
	now := time.Now().UTC()

	for i := 0; i < 10; i++ {
		a := mustCreateArticle(t, stores.Articles, models.Article{
			URL:         "https://news.example/article-" + string(rune('a'+i)),
			Title:       "Roundup",
			PublishedAt: timePtr(now),
		})
		require.NoError(t, stores.UserArticles.Upsert(context.Background(), models.UserArticle{
			UserID: "u1", ArticleID: a.ID, Matched: true,
		}))
		require.NoError(t, stores.Signals.UpsertArticleSignal(context.Background(), models.ArticleSignal{
			ArticleID: a.ID, IndustrySignalID: "vulnerability", Confidence: 0.9,
		}))
		require.NoError(t, stores.ArticleEntities.CreateManySkipDuplicates(context.Background(), []models.ArticleEntity{
			{ArticleID: a.ID, Type: models.EntityCompany, Name: "vendor-" + string(rune('a'+i)), Confidence: 0.9},
		}))
	}

	groups, err := Run(context.Background(), stores, "u1", now)
	require.NoError(t, err)
	assert.Len(t, groups, 10, "a signal present in every article should contribute zero weight")
}

func TestAgglomerate_RespectsMaxGroupSize(t *testing.T) {
	n := 12
	docs := make([]doc, n)
	sims := make([][]float64, n)
	for i := range sims {
		sims[i] = make([]float64, n)
		for j := range sims[i] {
			if i != j {
				sims[i][j] = 0.9
			}
		}
	}
	groups := agglomerate(docs, sims)
	for _, g := range groups {
		assert.LessOrEqual(t, len(g), maxGroupSize)
	}
}

func TestGroupTitle_PrefersEntityAndSignal(t *testing.T) {
	title := groupTitle([]string{"fortinet"}, []string{"vulnerability"}, "seed")
	assert.Equal(t, "Fortinet: Vulnerability", title)
}

func TestGroupTitle_FallsBackToSeed(t *testing.T) {
	title := groupTitle(nil, nil, "Seed Title")
	assert.Equal(t, "Seed Title", title)
}

func timePtr(t time.Time) *time.Time { return &t }
