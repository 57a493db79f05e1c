package exposure

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/greywatch/sentinel/internal/models"
	"github.com/greywatch/sentinel/internal/store/memory"
)

func TestBatchMatch_ExactMatchClassifiesVulnerable(t *testing.T) {
	ctx := context.Background()
	stores, seeder := memory.New()
	seeder.User(models.User{ID: "u1"})

	art, err := stores.Articles.FindOrCreate(ctx, models.Article{URL: "https://x/1", Title: "t"})
	require.NoError(t, err)
	require.NoError(t, stores.UserArticles.Upsert(ctx, models.UserArticle{UserID: "u1", ArticleID: art.ID, Matched: true}))
	require.NoError(t, stores.ArticleCVEs.Upsert(ctx, models.ArticleCVE{
		ArticleID:  art.ID,
		CVEID:      "CVE-2024-0001",
		CPEMatches: []string{"cpe:2.3:a:fortinet:fortios:7.0.0:*:*:*:*:*:*:*"},
	}))
	_, err = stores.TechStack.Create(ctx, models.TechStackItem{
		UserID: "u1", Vendor: "fortinet", Product: "fortios", Version: ver("7.0.0"),
		CPEPattern: GenerateCPEPattern("fortinet", "fortios"), Active: true,
	})
	require.NoError(t, err)

	now := time.Now()
	require.NoError(t, BatchMatch(ctx, stores, "u1", now))

	exp, found, err := stores.Exposures.Get(ctx, "u1", "CVE-2024-0001")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, models.ExposureVulnerable, exp.ExposureState)
	require.NotNil(t, exp.MatchedCPE)
	require.True(t, exp.AutoClassified)
}

func TestBatchMatch_ManualOverrideIsFixpoint(t *testing.T) {
	ctx := context.Background()
	stores, seeder := memory.New()
	seeder.User(models.User{ID: "u1"})

	art, err := stores.Articles.FindOrCreate(ctx, models.Article{URL: "https://x/1", Title: "t"})
	require.NoError(t, err)
	require.NoError(t, stores.UserArticles.Upsert(ctx, models.UserArticle{UserID: "u1", ArticleID: art.ID, Matched: true}))
	require.NoError(t, stores.ArticleCVEs.Upsert(ctx, models.ArticleCVE{
		ArticleID:  art.ID,
		CVEID:      "CVE-2024-0001",
		CPEMatches: []string{"cpe:2.3:a:fortinet:fortios:7.0.0:*:*:*:*:*:*:*"},
	}))
	_, err = stores.TechStack.Create(ctx, models.TechStackItem{
		UserID: "u1", Vendor: "fortinet", Product: "fortios", Version: ver("7.0.0"), Active: true,
	})
	require.NoError(t, err)

	now := time.Now()
	require.NoError(t, stores.Exposures.Upsert(ctx, models.UserCVEExposure{
		UserID: "u1", CVEID: "CVE-2024-0001",
		ExposureState: models.ExposureFixed, AutoClassified: false, FirstDetectedAt: now,
	}))

	require.NoError(t, BatchMatch(ctx, stores, "u1", now.Add(time.Hour)))

	exp, found, err := stores.Exposures.Get(ctx, "u1", "CVE-2024-0001")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, models.ExposureFixed, exp.ExposureState)
	require.False(t, exp.AutoClassified)
}

func TestRetroactive_ExactMatchUpsertsNotVendorOnly(t *testing.T) {
	ctx := context.Background()
	stores, seeder := memory.New()
	seeder.User(models.User{ID: "u1"})

	art, err := stores.Articles.FindOrCreate(ctx, models.Article{URL: "https://x/1", Title: "t"})
	require.NoError(t, err)
	require.NoError(t, stores.UserArticles.Upsert(ctx, models.UserArticle{UserID: "u1", ArticleID: art.ID, Matched: true}))
	require.NoError(t, stores.ArticleCVEs.Upsert(ctx, models.ArticleCVE{
		ArticleID:  art.ID,
		CVEID:      "CVE-2024-0001",
		CPEMatches: []string{"cpe:2.3:a:fortinet:fortios:7.0.0:*:*:*:*:*:*:*"},
	}))

	now := time.Now()
	vendorOnlyItem := models.TechStackItem{ID: "vo", UserID: "u1", Vendor: "fortinet", Product: "fortimail", Version: ver("1.0")}
	require.NoError(t, Retroactive(ctx, stores, "u1", vendorOnlyItem, now))
	_, found, err := stores.Exposures.Get(ctx, "u1", "CVE-2024-0001")
	require.NoError(t, err)
	require.False(t, found, "vendor-only matches are never applied retroactively")

	exactItem := models.TechStackItem{ID: "exact", UserID: "u1", Vendor: "fortinet", Product: "fortios", Version: ver("7.0.0")}
	require.NoError(t, Retroactive(ctx, stores, "u1", exactItem, now))
	exp, found, err := stores.Exposures.Get(ctx, "u1", "CVE-2024-0001")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, models.ExposureVulnerable, exp.ExposureState)
}

func TestAddStackItem_NormalizesAndMatchesRetroactively(t *testing.T) {
	ctx := context.Background()
	stores, seeder := memory.New()
	seeder.User(models.User{ID: "u1"})

	art, err := stores.Articles.FindOrCreate(ctx, models.Article{URL: "https://x/1", Title: "t"})
	require.NoError(t, err)
	require.NoError(t, stores.UserArticles.Upsert(ctx, models.UserArticle{UserID: "u1", ArticleID: art.ID, Matched: true}))
	require.NoError(t, stores.ArticleCVEs.Upsert(ctx, models.ArticleCVE{
		ArticleID:  art.ID,
		CVEID:      "CVE-2024-0001",
		CPEMatches: []string{"cpe:2.3:a:fortinet:fortios:7.0.0:*:*:*:*:*:*:*"},
	}))

	item, err := AddStackItem(ctx, stores, "u1", "Fortinet", "FortiOS", ver("7.0.0"), "firewall", time.Now())
	require.NoError(t, err)
	require.Equal(t, "fortinet", item.Vendor)
	require.Equal(t, "fortios", item.Product)
	require.Equal(t, "cpe:2.3:a:fortinet:fortios:*:*:*:*:*:*:*:*", item.CPEPattern)

	exp, found, err := stores.Exposures.Get(ctx, "u1", "CVE-2024-0001")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, models.ExposureVulnerable, exp.ExposureState)
}

func TestComputeMetrics_PatchRateAndMTTR(t *testing.T) {
	ctx := context.Background()
	stores, seeder := memory.New()
	seeder.User(models.User{ID: "u1"})

	now := time.Now()
	detected := now.Add(-10 * 24 * time.Hour)
	patched := now.Add(-5 * 24 * time.Hour)

	require.NoError(t, stores.Exposures.Upsert(ctx, models.UserCVEExposure{
		UserID: "u1", CVEID: "CVE-2024-0001",
		ExposureState: models.ExposureFixed, AutoClassified: true,
		FirstDetectedAt: detected, PatchedAt: &patched,
	}))
	require.NoError(t, stores.Exposures.Upsert(ctx, models.UserCVEExposure{
		UserID: "u1", CVEID: "CVE-2024-0002",
		ExposureState: models.ExposureVulnerable, AutoClassified: true,
		FirstDetectedAt: now,
	}))

	m, err := ComputeMetrics(ctx, stores, "u1", now)
	require.NoError(t, err)
	require.Equal(t, 50.0, m.PatchRatePct)
	require.Equal(t, 5.0, m.MTTRAvgDays)
	require.Equal(t, 100.0, m.SLACompliancePct, "no deadline-bearing FIXED rows defaults to 100")
}
