// Package orchestrator drives the digest pipeline end-to-end for one
// user: scrape -> match -> persist -> content -> entities -> CVEs ->
// cluster -> brief -> period reports, plus exposure reclassification
// against the same freshly-enriched CVE set. Every stage is
// best-effort: a stage failure is recorded in RunResult.Errors and the
// run proceeds to the next stage. A failure to load the user or to scrape
// its sources ends the run early, and is likewise recorded, not returned.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/greywatch/sentinel/internal/briefing"
	"github.com/greywatch/sentinel/internal/cluster"
	"github.com/greywatch/sentinel/internal/content"
	"github.com/greywatch/sentinel/internal/cve"
	"github.com/greywatch/sentinel/internal/entityextract"
	"github.com/greywatch/sentinel/internal/errs"
	"github.com/greywatch/sentinel/internal/exposure"
	"github.com/greywatch/sentinel/internal/matcher"
	"github.com/greywatch/sentinel/internal/models"
	"github.com/greywatch/sentinel/internal/report"
	"github.com/greywatch/sentinel/internal/scraper"
	"github.com/greywatch/sentinel/internal/store"
)

// RunResult summarizes one user's digest run. Errors are typed rather
// than bare strings so callers can report partial failures by category.
type RunResult struct {
	UserID     string
	Scraped    int
	Matched    int
	Summarized int
	Errors     []*errs.PipelineError
	Duration   time.Duration
}

// Orchestrator bundles the per-stage services a digest run depends on.
type Orchestrator struct {
	Stores    store.Stores
	Scraper   *scraper.Scraper
	Content   *content.Extractor
	Entities  *entityextract.Extractor
	CVEs      *cve.Service
	Briefings *briefing.Generator
	Reports   *report.Builder
}

// Run executes one full digest pipeline pass for userID. It never
// returns an error to the scheduler: a panic in Run's own goroutine is
// recovered and converted into a KindFatal entry in the result's
// Errors slice; only this outermost scope may classify a failure as
// fatal.
func (o *Orchestrator) Run(ctx context.Context, userID string, now time.Time) (res RunResult) {
	res = RunResult{UserID: userID}
	defer func() {
		if r := recover(); r != nil {
			res.Errors = append(res.Errors, errs.New(errs.KindFatal, "run", fmt.Errorf("panic: %v", r)))
		}
		res.Duration = time.Since(now)
	}()

	user, err := o.Stores.Users.Get(ctx, userID)
	if err != nil {
		res.Errors = append(res.Errors, errs.New(errs.KindFatal, "load-user", err))
		return res
	}

	signalCatalog, err := o.loadSignalCatalog(ctx, user)
	if err != nil {
		res.Errors = append(res.Errors, errs.New(errs.KindDB, "signal-catalog", err))
	}

	keywords, err := o.Stores.Keywords.ListByUser(ctx, userID)
	if err != nil {
		res.Errors = append(res.Errors, errs.New(errs.KindDB, "load-keywords", err))
	}

	articles, err := o.scrapeAndDedup(ctx, userID)
	if err != nil {
		res.Errors = append(res.Errors, errs.New(errs.KindScrape, "scrape", err))
		return res
	}
	res.Scraped = len(articles)
	if len(articles) == 0 {
		return res
	}

	m := matcher.New(keywords)
	matched := filterMatched(articles, m)

	persisted, err := o.persistMatched(ctx, userID, matched, m)
	if err != nil {
		res.Errors = append(res.Errors, errs.New(errs.KindDB, "persist-matched", err))
	}
	res.Matched = len(persisted)
	if len(persisted) == 0 {
		return res
	}

	articleIDs := articleIDsOf(persisted)

	o.runContentStage(ctx, articleIDs, &res)
	o.runEntityStage(ctx, articleIDs, signalCatalog, &res)
	o.runCVEStage(ctx, articleIDs, &res)

	groups := o.runClusterStage(ctx, userID, now, &res)
	res.Summarized = o.runBriefStage(ctx, groups, &res)

	o.runExposureStage(ctx, userID, now, &res)
	o.runPeriodReports(ctx, userID, now, &res)

	return res
}

func (o *Orchestrator) loadSignalCatalog(ctx context.Context, user models.User) ([]models.IndustrySignal, error) {
	if user.IndustryID == nil {
		return nil, nil
	}
	return o.Stores.Signals.ListByIndustry(ctx, *user.IndustryID)
}

// scrapeAndDedup scrapes every active source and subtracts URLs
// the user already has. A single
// source's scrape failure is skipped, never fatal to the rest of the
// user's sources.
func (o *Orchestrator) scrapeAndDedup(ctx context.Context, userID string) ([]models.Article, error) {
	sources, err := o.Stores.Sources.ListActiveByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing sources: %w", err)
	}
	if len(sources) == 0 {
		return nil, nil
	}

	existing, err := o.Stores.UserArticles.ListURLsForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing existing urls: %w", err)
	}

	var all []models.Article
	for _, src := range sources {
		fetched, err := o.Scraper.Scrape(ctx, src)
		if err != nil {
			continue
		}
		for _, a := range fetched {
			if !existing[a.URL] {
				all = append(all, a)
			}
		}
	}
	return all, nil
}

// filterMatched applies the keyword matcher in memory.
func filterMatched(articles []models.Article, m *matcher.Matcher) []models.Article {
	var matched []models.Article
	for _, a := range articles {
		if m.MatchArticle(a).Matched {
			matched = append(matched, a)
		}
	}
	return matched
}

func articleIDsOf(articles []models.Article) []string {
	ids := make([]string, len(articles))
	for i, a := range articles {
		ids[i] = a.ID
	}
	return ids
}

// persistMatched finds-or-creates each matched article by URL and
// upserts its UserArticle link.
func (o *Orchestrator) persistMatched(ctx context.Context, userID string, matched []models.Article, m *matcher.Matcher) ([]models.Article, error) {
	out := make([]models.Article, 0, len(matched))
	for _, a := range matched {
		persisted, err := o.Stores.Articles.FindOrCreate(ctx, a)
		if err != nil {
			continue
		}
		kws := m.MatchArticle(a).MatchedKeywords
		if err := o.Stores.UserArticles.Upsert(ctx, models.UserArticle{
			UserID:          userID,
			ArticleID:       persisted.ID,
			Matched:         true,
			MatchedKeywords: kws,
		}); err != nil {
			continue
		}
		out = append(out, persisted)
	}
	return out, nil
}

func (o *Orchestrator) runContentStage(ctx context.Context, articleIDs []string, res *RunResult) {
	articles, err := o.Stores.Articles.ListMissingCleanText(ctx, articleIDs)
	if err != nil {
		res.Errors = append(res.Errors, errs.New(errs.KindDB, "content-select", err))
		return
	}
	if len(articles) == 0 {
		return
	}
	if err := o.Content.Run(ctx, o.Stores, articles); err != nil {
		res.Errors = append(res.Errors, errs.New(errs.KindContent, "content", err))
	}
}

func (o *Orchestrator) runEntityStage(ctx context.Context, articleIDs []string, signalCatalog []models.IndustrySignal, res *RunResult) {
	if len(signalCatalog) == 0 {
		return
	}
	articles, err := o.Stores.Articles.ListMissingEntities(ctx, articleIDs)
	if err != nil {
		res.Errors = append(res.Errors, errs.New(errs.KindDB, "entity-select", err))
		return
	}
	if len(articles) == 0 {
		return
	}
	if err := o.Entities.Run(ctx, o.Stores, articles, signalCatalog); err != nil {
		res.Errors = append(res.Errors, errs.New(errs.KindLLM, "entity-extract", err))
	}
}

func (o *Orchestrator) runCVEStage(ctx context.Context, articleIDs []string, res *RunResult) {
	articles, err := o.Stores.Articles.ListMissingCVEs(ctx, articleIDs)
	if err != nil {
		res.Errors = append(res.Errors, errs.New(errs.KindDB, "cve-select", err))
		return
	}
	if len(articles) == 0 {
		return
	}
	if err := o.CVEs.Run(ctx, o.Stores, articles); err != nil {
		res.Errors = append(res.Errors, errs.New(errs.KindCVE, "cve-extract", err))
	}
}

func (o *Orchestrator) runClusterStage(ctx context.Context, userID string, now time.Time, res *RunResult) []models.NewsGroup {
	groups, err := cluster.Run(ctx, o.Stores, userID, now)
	if err != nil {
		res.Errors = append(res.Errors, errs.New(errs.KindDB, "cluster", err))
		return nil
	}
	return groups
}

func (o *Orchestrator) runBriefStage(ctx context.Context, groups []models.NewsGroup, res *RunResult) int {
	if len(groups) == 0 {
		return 0
	}
	summarized, err := o.Briefings.Run(ctx, o.Stores, groups)
	if err != nil {
		res.Errors = append(res.Errors, errs.New(errs.KindLLM, "briefing", err))
	}
	return summarized
}

// runExposureStage reclassifies the user's exposure ledger against
// whatever CVEs the run just enriched, once per digest, so a user's
// exposure view never drifts behind their CVE feed.
func (o *Orchestrator) runExposureStage(ctx context.Context, userID string, now time.Time, res *RunResult) {
	if err := exposure.BatchMatch(ctx, o.Stores, userID, now); err != nil {
		res.Errors = append(res.Errors, errs.New(errs.KindExposure, "exposure-match", err))
	}
}

// runPeriodReports builds all three period reports in parallel,
// isolating each period's failure. After a period's report lands, its
// remediation-metrics snapshot is upserted so period-over-period
// deltas have a baseline.
func (o *Orchestrator) runPeriodReports(ctx context.Context, userID string, now time.Time, res *RunResult) {
	periods := []models.Period{models.Period1Day, models.Period7Days, models.Period30Days}
	periodErrs := make([]error, len(periods))
	snapErrs := make([]error, len(periods))

	eg, egCtx := errgroup.WithContext(ctx)
	for i, p := range periods {
		i, p := i, p
		eg.Go(func() error {
			if periodErrs[i] = o.Reports.Run(egCtx, o.Stores, userID, p, now); periodErrs[i] != nil {
				return nil
			}
			_, _, snapErrs[i] = exposure.SnapshotAndDelta(egCtx, o.Stores, userID, p, now)
			return nil
		})
	}
	_ = eg.Wait()

	for i, err := range periodErrs {
		if err != nil {
			res.Errors = append(res.Errors, errs.New(errs.KindLLM, "period-report-"+string(periods[i]), err))
		}
		if snapErrs[i] != nil {
			res.Errors = append(res.Errors, errs.New(errs.KindExposure, "snapshot-"+string(periods[i]), snapErrs[i]))
		}
	}
}
