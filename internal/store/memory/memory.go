// Package memory is the in-process reference implementation of the
// store interfaces: one mutex-guarded state struct carrying the full
// entity set, with the unique-constraint/upsert semantics any backing
// persistence layer must provide.
//
// Each store.* interface is satisfied by its own thin adapter type
// (Users, Sources, Articles, ...) rather than by one god-type, since
// several interfaces share a method name (Get, Upsert, ListByUser)
// with different signatures and Go does not allow overloading. All
// adapters share one mutex-guarded db underneath.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/greywatch/sentinel/internal/errs"
	"github.com/greywatch/sentinel/internal/models"
	"github.com/greywatch/sentinel/internal/store"
)

type db struct {
	mu sync.RWMutex

	users    map[string]models.User
	sources  map[string][]models.Source // by userID
	keywords map[string][]models.Keyword

	articlesByID  map[string]models.Article
	articlesByURL map[string]string // url -> id

	userArticles map[string]models.UserArticle // "userID|articleID"

	articleEntities map[string][]models.ArticleEntity // by articleID
	entityKeys      map[string]bool                   // dedup key articleID|type|name

	signalCatalog  map[string][]models.IndustrySignal // by industryID
	articleSignals map[string]models.ArticleSignal    // "articleID|signalID"

	articleCVEs map[string]models.ArticleCVE // "articleID|cveID"

	techStack map[string][]models.TechStackItem // by userID

	exposures map[string]models.UserCVEExposure // "userID|cveID"

	newsGroups map[string]models.NewsGroup // by groupID

	reports   map[string]models.PeriodReport   // "userID|period"
	snapshots map[string]models.PeriodSnapshot // "userID|period|snapDate"
}

func newDB() *db {
	return &db{
		users:           make(map[string]models.User),
		sources:         make(map[string][]models.Source),
		keywords:        make(map[string][]models.Keyword),
		articlesByID:    make(map[string]models.Article),
		articlesByURL:   make(map[string]string),
		userArticles:    make(map[string]models.UserArticle),
		articleEntities: make(map[string][]models.ArticleEntity),
		entityKeys:      make(map[string]bool),
		signalCatalog:   make(map[string][]models.IndustrySignal),
		articleSignals:  make(map[string]models.ArticleSignal),
		articleCVEs:     make(map[string]models.ArticleCVE),
		techStack:       make(map[string][]models.TechStackItem),
		exposures:       make(map[string]models.UserCVEExposure),
		newsGroups:      make(map[string]models.NewsGroup),
		reports:         make(map[string]models.PeriodReport),
		snapshots:       make(map[string]models.PeriodSnapshot),
	}
}

// New returns a fully wired, empty store.Stores backed by shared
// in-memory state. The Seeder returned alongside reaches into direct
// inserts for reference data (users, sources, keywords, signal
// catalog) that the store.* interfaces never expose a write path for.
func New() (store.Stores, *Seeder) {
	d := newDB()
	stores := store.Stores{
		Users:           &Users{d},
		Sources:         &Sources{d},
		Keywords:        &Keywords{d},
		Articles:        &Articles{d},
		UserArticles:    &UserArticles{d},
		ArticleEntities: &ArticleEntities{d},
		Signals:         &Signals{d},
		ArticleCVEs:     &ArticleCVEs{d},
		TechStack:       &TechStack{d},
		Exposures:       &Exposures{d},
		NewsGroups:      &NewsGroups{d},
		Reports:         &Reports{d},
		Snapshots:       &Snapshots{d},
	}
	return stores, &Seeder{d}
}

// Seeder is a test/bootstrap helper for populating a store.Stores
// built by New.
type Seeder struct{ d *db }

func (s *Seeder) User(u models.User) {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	s.d.users[u.ID] = u
}

func (s *Seeder) Source(src models.Source) {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	s.d.sources[src.UserID] = append(s.d.sources[src.UserID], src)
}

func (s *Seeder) Keyword(k models.Keyword) {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	s.d.keywords[k.UserID] = append(s.d.keywords[k.UserID], k)
}

func (s *Seeder) Signal(sig models.IndustrySignal) {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	s.d.signalCatalog[sig.IndustryID] = append(s.d.signalCatalog[sig.IndustryID], sig)
}

// --- Users ---

type Users struct{ d *db }

func (u *Users) ListAll(ctx context.Context) ([]models.User, error) {
	u.d.mu.RLock()
	defer u.d.mu.RUnlock()
	out := make([]models.User, 0, len(u.d.users))
	for _, usr := range u.d.users {
		out = append(out, usr)
	}
	return out, nil
}

func (u *Users) Get(ctx context.Context, userID string) (models.User, error) {
	u.d.mu.RLock()
	defer u.d.mu.RUnlock()
	usr, ok := u.d.users[userID]
	if !ok {
		return models.User{}, errs.ErrNotFound
	}
	return usr, nil
}

func (u *Users) SetLastDigestAt(ctx context.Context, userID string, at time.Time) error {
	u.d.mu.Lock()
	defer u.d.mu.Unlock()
	usr, ok := u.d.users[userID]
	if !ok {
		return errs.ErrNotFound
	}
	atCopy := at
	usr.LastDigestAt = &atCopy
	u.d.users[userID] = usr
	return nil
}

// --- Sources ---

type Sources struct{ d *db }

func (s *Sources) ListActiveByUser(ctx context.Context, userID string) ([]models.Source, error) {
	s.d.mu.RLock()
	defer s.d.mu.RUnlock()
	var out []models.Source
	for _, src := range s.d.sources[userID] {
		if src.Active {
			out = append(out, src)
		}
	}
	return out, nil
}

// --- Keywords ---

type Keywords struct{ d *db }

func (k *Keywords) ListByUser(ctx context.Context, userID string) ([]models.Keyword, error) {
	k.d.mu.RLock()
	defer k.d.mu.RUnlock()
	return append([]models.Keyword(nil), k.d.keywords[userID]...), nil
}

// --- Articles ---

type Articles struct{ d *db }

func (a *Articles) FindByURL(ctx context.Context, url string) (models.Article, bool, error) {
	a.d.mu.RLock()
	defer a.d.mu.RUnlock()
	id, ok := a.d.articlesByURL[url]
	if !ok {
		return models.Article{}, false, nil
	}
	return a.d.articlesByID[id], true, nil
}

func (a *Articles) FindOrCreate(ctx context.Context, art models.Article) (models.Article, error) {
	a.d.mu.Lock()
	defer a.d.mu.Unlock()

	if id, ok := a.d.articlesByURL[art.URL]; ok {
		// Duplicate-key race swallowed: re-run the find.
		return a.d.articlesByID[id], nil
	}

	if art.ID == "" {
		art.ID = uuid.NewString()
	}
	a.d.articlesByID[art.ID] = art
	a.d.articlesByURL[art.URL] = art.ID
	return art, nil
}

func (a *Articles) Get(ctx context.Context, articleID string) (models.Article, error) {
	a.d.mu.RLock()
	defer a.d.mu.RUnlock()
	art, ok := a.d.articlesByID[articleID]
	if !ok {
		return models.Article{}, errs.ErrNotFound
	}
	return art, nil
}

func (a *Articles) Update(ctx context.Context, art models.Article) error {
	a.d.mu.Lock()
	defer a.d.mu.Unlock()
	if _, ok := a.d.articlesByID[art.ID]; !ok {
		return errs.ErrNotFound
	}
	a.d.articlesByID[art.ID] = art
	return nil
}

func (a *Articles) ListMissingCleanText(ctx context.Context, ids []string) ([]models.Article, error) {
	a.d.mu.RLock()
	defer a.d.mu.RUnlock()
	var out []models.Article
	for _, id := range ids {
		if art, ok := a.d.articlesByID[id]; ok && art.CleanText == nil {
			out = append(out, art)
		}
	}
	return out, nil
}

func (a *Articles) ListMissingEntities(ctx context.Context, ids []string) ([]models.Article, error) {
	a.d.mu.RLock()
	defer a.d.mu.RUnlock()
	var out []models.Article
	for _, id := range ids {
		if art, ok := a.d.articlesByID[id]; ok && !art.EntitiesExtracted {
			out = append(out, art)
		}
	}
	return out, nil
}

func (a *Articles) ListMissingCVEs(ctx context.Context, ids []string) ([]models.Article, error) {
	a.d.mu.RLock()
	defer a.d.mu.RUnlock()
	var out []models.Article
	for _, id := range ids {
		if art, ok := a.d.articlesByID[id]; ok && !art.CVEsExtracted {
			out = append(out, art)
		}
	}
	return out, nil
}

// --- UserArticles ---

type UserArticles struct{ d *db }

func uaKey(userID, articleID string) string { return userID + "|" + articleID }

func (ua *UserArticles) Upsert(ctx context.Context, row models.UserArticle) error {
	ua.d.mu.Lock()
	defer ua.d.mu.Unlock()
	ua.d.userArticles[uaKey(row.UserID, row.ArticleID)] = row
	return nil
}

func (ua *UserArticles) ListByUser(ctx context.Context, userID string) ([]models.UserArticle, error) {
	ua.d.mu.RLock()
	defer ua.d.mu.RUnlock()
	var out []models.UserArticle
	for _, row := range ua.d.userArticles {
		if row.UserID == userID {
			out = append(out, row)
		}
	}
	return out, nil
}

func (ua *UserArticles) ListURLsForUser(ctx context.Context, userID string) (map[string]bool, error) {
	ua.d.mu.RLock()
	defer ua.d.mu.RUnlock()
	out := make(map[string]bool)
	for _, row := range ua.d.userArticles {
		if row.UserID != userID {
			continue
		}
		if art, ok := ua.d.articlesByID[row.ArticleID]; ok {
			out[art.URL] = true
		}
	}
	return out, nil
}

func (ua *UserArticles) ListUngrouped(ctx context.Context, userID string) ([]models.UserArticle, error) {
	ua.d.mu.RLock()
	defer ua.d.mu.RUnlock()
	var out []models.UserArticle
	for _, row := range ua.d.userArticles {
		if row.UserID == userID && row.Matched && row.NewsGroupID == nil {
			out = append(out, row)
		}
	}
	return out, nil
}

func (ua *UserArticles) SetNewsGroup(ctx context.Context, userID string, articleIDs []string, groupID string) error {
	ua.d.mu.Lock()
	defer ua.d.mu.Unlock()
	gid := groupID
	for _, aid := range articleIDs {
		k := uaKey(userID, aid)
		row, ok := ua.d.userArticles[k]
		if !ok {
			continue
		}
		row.NewsGroupID = &gid
		ua.d.userArticles[k] = row
	}
	return nil
}

// --- ArticleEntities ---

type ArticleEntities struct{ d *db }

func (e *ArticleEntities) CreateManySkipDuplicates(ctx context.Context, rows []models.ArticleEntity) error {
	e.d.mu.Lock()
	defer e.d.mu.Unlock()
	for _, r := range rows {
		key := r.ArticleID + "|" + string(r.Type) + "|" + r.Name
		if e.d.entityKeys[key] {
			continue
		}
		e.d.entityKeys[key] = true
		e.d.articleEntities[r.ArticleID] = append(e.d.articleEntities[r.ArticleID], r)
	}
	return nil
}

func (e *ArticleEntities) ListByArticle(ctx context.Context, articleID string) ([]models.ArticleEntity, error) {
	e.d.mu.RLock()
	defer e.d.mu.RUnlock()
	return append([]models.ArticleEntity(nil), e.d.articleEntities[articleID]...), nil
}

func (e *ArticleEntities) ListByArticles(ctx context.Context, articleIDs []string) ([]models.ArticleEntity, error) {
	e.d.mu.RLock()
	defer e.d.mu.RUnlock()
	var out []models.ArticleEntity
	for _, id := range articleIDs {
		out = append(out, e.d.articleEntities[id]...)
	}
	return out, nil
}

// --- Signals ---

type Signals struct{ d *db }

func (s *Signals) ListByIndustry(ctx context.Context, industryID string) ([]models.IndustrySignal, error) {
	s.d.mu.RLock()
	defer s.d.mu.RUnlock()
	return append([]models.IndustrySignal(nil), s.d.signalCatalog[industryID]...), nil
}

func (s *Signals) ListByIDs(ctx context.Context, ids []string) ([]models.IndustrySignal, error) {
	s.d.mu.RLock()
	defer s.d.mu.RUnlock()
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []models.IndustrySignal
	for _, catalog := range s.d.signalCatalog {
		for _, sig := range catalog {
			if want[sig.ID] {
				out = append(out, sig)
			}
		}
	}
	return out, nil
}

func (s *Signals) UpsertArticleSignal(ctx context.Context, sig models.ArticleSignal) error {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	s.d.articleSignals[sig.ArticleID+"|"+sig.IndustrySignalID] = sig
	return nil
}

func (s *Signals) ListSignalsByArticles(ctx context.Context, articleIDs []string) ([]models.ArticleSignal, error) {
	s.d.mu.RLock()
	defer s.d.mu.RUnlock()
	want := make(map[string]bool, len(articleIDs))
	for _, id := range articleIDs {
		want[id] = true
	}
	var out []models.ArticleSignal
	for _, sig := range s.d.articleSignals {
		if want[sig.ArticleID] {
			out = append(out, sig)
		}
	}
	return out, nil
}

// --- ArticleCVEs ---

type ArticleCVEs struct{ d *db }

func (c *ArticleCVEs) Upsert(ctx context.Context, row models.ArticleCVE) error {
	c.d.mu.Lock()
	defer c.d.mu.Unlock()
	c.d.articleCVEs[row.ArticleID+"|"+row.CVEID] = row
	return nil
}

func (c *ArticleCVEs) ListByArticle(ctx context.Context, articleID string) ([]models.ArticleCVE, error) {
	c.d.mu.RLock()
	defer c.d.mu.RUnlock()
	var out []models.ArticleCVE
	for _, r := range c.d.articleCVEs {
		if r.ArticleID == articleID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (c *ArticleCVEs) ListByArticles(ctx context.Context, articleIDs []string) ([]models.ArticleCVE, error) {
	c.d.mu.RLock()
	defer c.d.mu.RUnlock()
	want := make(map[string]bool, len(articleIDs))
	for _, id := range articleIDs {
		want[id] = true
	}
	var out []models.ArticleCVE
	for _, r := range c.d.articleCVEs {
		if want[r.ArticleID] {
			out = append(out, r)
		}
	}
	return out, nil
}

func (c *ArticleCVEs) ListEnrichedCVEIDs(ctx context.Context, ids []string) (map[string]models.ArticleCVE, error) {
	c.d.mu.RLock()
	defer c.d.mu.RUnlock()
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	out := make(map[string]models.ArticleCVE)
	for _, r := range c.d.articleCVEs {
		if !want[r.CVEID] {
			continue
		}
		if r.CVSSScore != nil || r.Description != nil {
			out[r.CVEID] = r
		}
	}
	return out, nil
}

// --- TechStack ---

type TechStack struct{ d *db }

func (t *TechStack) ListActiveByUser(ctx context.Context, userID string) ([]models.TechStackItem, error) {
	t.d.mu.RLock()
	defer t.d.mu.RUnlock()
	var out []models.TechStackItem
	for _, it := range t.d.techStack[userID] {
		if it.Active {
			out = append(out, it)
		}
	}
	return out, nil
}

func (t *TechStack) Create(ctx context.Context, item models.TechStackItem) (models.TechStackItem, error) {
	t.d.mu.Lock()
	defer t.d.mu.Unlock()
	for _, it := range t.d.techStack[item.UserID] {
		if it.Vendor == item.Vendor && it.Product == item.Product && eqVersion(it.Version, item.Version) {
			return models.TechStackItem{}, errs.ErrConflict
		}
	}
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	t.d.techStack[item.UserID] = append(t.d.techStack[item.UserID], item)
	return item, nil
}

func eqVersion(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// --- Exposures ---

type Exposures struct{ d *db }

func expKey(userID, cveID string) string { return userID + "|" + cveID }

func (e *Exposures) Get(ctx context.Context, userID, cveID string) (models.UserCVEExposure, bool, error) {
	e.d.mu.RLock()
	defer e.d.mu.RUnlock()
	row, ok := e.d.exposures[expKey(userID, cveID)]
	return row, ok, nil
}

func (e *Exposures) Upsert(ctx context.Context, row models.UserCVEExposure) error {
	e.d.mu.Lock()
	defer e.d.mu.Unlock()
	k := expKey(row.UserID, row.CVEID)
	if existing, ok := e.d.exposures[k]; ok && !existing.AutoClassified && row.AutoClassified {
		// Manual overrides are a fixpoint.
		return nil
	}
	e.d.exposures[k] = row
	return nil
}

func (e *Exposures) ListByUser(ctx context.Context, userID string) ([]models.UserCVEExposure, error) {
	e.d.mu.RLock()
	defer e.d.mu.RUnlock()
	var out []models.UserCVEExposure
	for _, row := range e.d.exposures {
		if row.UserID == userID {
			out = append(out, row)
		}
	}
	return out, nil
}

// --- NewsGroups ---

type NewsGroups struct{ d *db }

func (g *NewsGroups) Create(ctx context.Context, group models.NewsGroup) (models.NewsGroup, error) {
	g.d.mu.Lock()
	defer g.d.mu.Unlock()
	if group.ID == "" {
		group.ID = uuid.NewString()
	}
	g.d.newsGroups[group.ID] = group
	return group, nil
}

func (g *NewsGroups) Update(ctx context.Context, group models.NewsGroup) error {
	g.d.mu.Lock()
	defer g.d.mu.Unlock()
	if _, ok := g.d.newsGroups[group.ID]; !ok {
		return errs.ErrNotFound
	}
	g.d.newsGroups[group.ID] = group
	return nil
}

func (g *NewsGroups) ListByUser(ctx context.Context, userID string) ([]models.NewsGroup, error) {
	g.d.mu.RLock()
	defer g.d.mu.RUnlock()
	var out []models.NewsGroup
	for _, group := range g.d.newsGroups {
		if group.UserID == userID {
			out = append(out, group)
		}
	}
	return out, nil
}

func (g *NewsGroups) ListByUserSince(ctx context.Context, userID string, since time.Time) ([]models.NewsGroup, error) {
	g.d.mu.RLock()
	defer g.d.mu.RUnlock()
	var out []models.NewsGroup
	for _, group := range g.d.newsGroups {
		if group.UserID != userID {
			continue
		}
		for _, aid := range group.ArticleIDs {
			art, ok := g.d.articlesByID[aid]
			if ok && art.PublishedAt != nil && !art.PublishedAt.Before(since) {
				out = append(out, group)
				break
			}
		}
	}
	return out, nil
}

// --- Reports ---

type Reports struct{ d *db }

func (r *Reports) Upsert(ctx context.Context, rep models.PeriodReport) error {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	r.d.reports[rep.UserID+"|"+string(rep.Period)] = rep
	return nil
}

// --- Snapshots ---

type Snapshots struct{ d *db }

func (s *Snapshots) Upsert(ctx context.Context, snap models.PeriodSnapshot) error {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	key := snap.UserID + "|" + string(snap.Period) + "|" + snap.SnapDate.Format("2006-01-02")
	s.d.snapshots[key] = snap
	return nil
}

func (s *Snapshots) Latest(ctx context.Context, userID string, period models.Period, asOf time.Time) (models.PeriodSnapshot, bool, error) {
	s.d.mu.RLock()
	defer s.d.mu.RUnlock()
	var best models.PeriodSnapshot
	found := false
	for _, snap := range s.d.snapshots {
		if snap.UserID != userID || snap.Period != period {
			continue
		}
		if snap.SnapDate.After(asOf) {
			continue
		}
		if !found || snap.SnapDate.After(best.SnapDate) {
			best = snap
			found = true
		}
	}
	return best, found, nil
}
