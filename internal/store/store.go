// Package store defines the persistence contracts that
// every other package depends on through an interface rather than a
// concrete database client. The module ships one reference
// implementation (store/memory) suitable for tests and for running the
// whole pipeline standalone; a production deployment swaps in a SQL-backed
// implementation of the same interfaces — "any SQL engine with unique
// constraints and transactions suffices".
package store

import (
	"context"
	"time"

	"github.com/greywatch/sentinel/internal/models"
)

// UserStore reads the scheduler's due-user catalog.
type UserStore interface {
	ListAll(ctx context.Context) ([]models.User, error)
	Get(ctx context.Context, userID string) (models.User, error)
	SetLastDigestAt(ctx context.Context, userID string, at time.Time) error
}

// SourceStore reads a user's active feed sources.
type SourceStore interface {
	ListActiveByUser(ctx context.Context, userID string) ([]models.Source, error)
}

// KeywordStore reads a user's keyword list.
type KeywordStore interface {
	ListByUser(ctx context.Context, userID string) ([]models.Keyword, error)
}

// ArticleStore enforces uniqueness on Article.URL. FindOrCreate must be
// safe under a duplicate-key race: on conflict it re-runs the find and
// returns the winning row.
type ArticleStore interface {
	FindByURL(ctx context.Context, url string) (models.Article, bool, error)
	FindOrCreate(ctx context.Context, a models.Article) (models.Article, error)
	Get(ctx context.Context, articleID string) (models.Article, error)
	Update(ctx context.Context, a models.Article) error
	// ListMissingCleanText returns articles in ids lacking CleanText.
	ListMissingCleanText(ctx context.Context, ids []string) ([]models.Article, error)
	// ListMissingEntities returns articles in ids with EntitiesExtracted=false.
	ListMissingEntities(ctx context.Context, ids []string) ([]models.Article, error)
	// ListMissingCVEs returns articles in ids with CVEsExtracted=false.
	ListMissingCVEs(ctx context.Context, ids []string) ([]models.Article, error)
}

// UserArticleStore enforces uniqueness on (UserID, ArticleID).
type UserArticleStore interface {
	// Upsert creates or updates the link; errs.ErrConflict is never
	// returned to the caller here since the unique key is also the
	// natural update key.
	Upsert(ctx context.Context, ua models.UserArticle) error
	ListByUser(ctx context.Context, userID string) ([]models.UserArticle, error)
	// ListURLsForUser returns the URLs of every article the user already has.
	ListURLsForUser(ctx context.Context, userID string) (map[string]bool, error)
	// ListUngrouped returns matched rows with NewsGroupID == nil.
	ListUngrouped(ctx context.Context, userID string) ([]models.UserArticle, error)
	SetNewsGroup(ctx context.Context, userID string, articleIDs []string, groupID string) error
}

// ArticleEntityStore supports createMany(skipDuplicates).
type ArticleEntityStore interface {
	CreateManySkipDuplicates(ctx context.Context, rows []models.ArticleEntity) error
	ListByArticle(ctx context.Context, articleID string) ([]models.ArticleEntity, error)
	ListByArticles(ctx context.Context, articleIDs []string) ([]models.ArticleEntity, error)
}

// IndustrySignalStore reads the signal catalog and persists detections.
type IndustrySignalStore interface {
	ListByIndustry(ctx context.Context, industryID string) ([]models.IndustrySignal, error)
	// ListByIDs resolves catalog rows by ID; unknown IDs are silently
	// omitted from the result.
	ListByIDs(ctx context.Context, ids []string) ([]models.IndustrySignal, error)
	// UpsertArticleSignal upserts on (ArticleID, IndustrySignalID), updating Confidence.
	UpsertArticleSignal(ctx context.Context, s models.ArticleSignal) error
	ListSignalsByArticles(ctx context.Context, articleIDs []string) ([]models.ArticleSignal, error)
}

// ArticleCVEStore enforces uniqueness on (ArticleID, CVEID).
type ArticleCVEStore interface {
	Upsert(ctx context.Context, row models.ArticleCVE) error
	ListByArticle(ctx context.Context, articleID string) ([]models.ArticleCVE, error)
	ListByArticles(ctx context.Context, articleIDs []string) ([]models.ArticleCVE, error)
	// ListEnrichedCVEIDs returns the subset of ids that already have a
	// persisted row with non-null enrichment fields, for any article.
	ListEnrichedCVEIDs(ctx context.Context, ids []string) (map[string]models.ArticleCVE, error)
}

// TechStackStore is the user's declared inventory.
type TechStackStore interface {
	ListActiveByUser(ctx context.Context, userID string) ([]models.TechStackItem, error)
	Create(ctx context.Context, item models.TechStackItem) (models.TechStackItem, error)
}

// ExposureStore enforces uniqueness on (UserID, CVEID).
type ExposureStore interface {
	Get(ctx context.Context, userID, cveID string) (models.UserCVEExposure, bool, error)
	// Upsert must never overwrite a row where AutoClassified==false with
	// an auto-classified update;
	// callers are expected to check Get first, but implementations
	// should enforce this at the storage boundary too.
	Upsert(ctx context.Context, e models.UserCVEExposure) error
	ListByUser(ctx context.Context, userID string) ([]models.UserCVEExposure, error)
}

// NewsGroupStore.
type NewsGroupStore interface {
	Create(ctx context.Context, g models.NewsGroup) (models.NewsGroup, error)
	Update(ctx context.Context, g models.NewsGroup) error
	ListByUser(ctx context.Context, userID string) ([]models.NewsGroup, error)
	// ListByUserSince returns groups with at least one article published
	// at or after since.
	ListByUserSince(ctx context.Context, userID string, since time.Time) ([]models.NewsGroup, error)
}

// ReportStore enforces uniqueness on (UserID, Period).
type ReportStore interface {
	Upsert(ctx context.Context, r models.PeriodReport) error
}

// SnapshotStore enforces uniqueness on (UserID, Period, SnapDate).
type SnapshotStore interface {
	Upsert(ctx context.Context, s models.PeriodSnapshot) error
	// Latest returns the newest snapshot at or before asOf for the
	// given user/period, used for delta computation.
	Latest(ctx context.Context, userID string, period models.Period, asOf time.Time) (models.PeriodSnapshot, bool, error)
}

// Stores bundles every repository the pipeline touches. It is the
// single dependency orchestrator/scheduler code takes.
type Stores struct {
	Users           UserStore
	Sources         SourceStore
	Keywords        KeywordStore
	Articles        ArticleStore
	UserArticles    UserArticleStore
	ArticleEntities ArticleEntityStore
	Signals         IndustrySignalStore
	ArticleCVEs     ArticleCVEStore
	TechStack       TechStackStore
	Exposures       ExposureStore
	NewsGroups      NewsGroupStore
	Reports         ReportStore
	Snapshots       SnapshotStore
}
