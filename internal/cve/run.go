package cve

import (
	"context"
	"fmt"
	"time"

	"github.com/greywatch/sentinel/internal/cache"
	"github.com/greywatch/sentinel/internal/models"
	"github.com/greywatch/sentinel/internal/store"
)

// nvdLookuper is the subset of NVDClient Run depends on, so tests can
// substitute a fake without a live NVD call.
type nvdLookuper interface {
	Lookup(ctx context.Context, cveID string) (NVDRecord, error)
}

// Service runs the extract-enrich-persist stage for a batch of
// articles sharing a pipeline run.
type Service struct {
	nvd nvdLookuper
	kev *cache.KEVCache
}

func NewService(nvd *NVDClient, kev *cache.KEVCache) *Service {
	return &Service{nvd: nvd, kev: kev}
}

// Run extracts CVE IDs from each article, enriches any not already
// known from a prior article (enrichment is deduplicated cross-article
// by CVE ID), persists one ArticleCVE row per (article, CVE) pair, and
// flips CVEsExtracted.
func (s *Service) Run(ctx context.Context, stores store.Stores, articles []models.Article) error {
	perArticleIDs := make(map[string][]string, len(articles))
	var allIDs []string
	seenAll := make(map[string]bool)
	for _, a := range articles {
		text := a.Title + " " + a.Content
		if a.CleanText != nil {
			text += " " + *a.CleanText
		}
		ids := ExtractIDs(text)
		perArticleIDs[a.ID] = ids
		for _, id := range ids {
			if !seenAll[id] {
				seenAll[id] = true
				allIDs = append(allIDs, id)
			}
		}
	}
	if len(allIDs) == 0 {
		return s.markExtracted(ctx, stores, articles)
	}

	enriched, err := stores.ArticleCVEs.ListEnrichedCVEIDs(ctx, allIDs)
	if err != nil {
		return fmt.Errorf("cve: listing enriched ids: %w", err)
	}

	records := make(map[string]models.ArticleCVE, len(allIDs))
	for _, id := range allIDs {
		if row, ok := enriched[id]; ok {
			records[id] = row
			continue
		}
		row, err := s.enrich(ctx, id)
		if err != nil {
			// Enrichment failure for one CVE must not block the
			// others; the row is persisted unenriched.
			row = models.ArticleCVE{CVEID: id}
		}
		records[id] = row
	}

	kevNow := time.Now()
	catalog := s.kev.Get(kevNow)

	for _, a := range articles {
		for _, id := range perArticleIDs[a.ID] {
			row := records[id]
			row.ArticleID = a.ID
			row.CVEID = id
			if entry, ok := catalog[id]; ok {
				row.InKEV = true
				dateAdded := entry.DateAdded
				row.KEVDateAdded = &dateAdded
				row.KEVDueDate = entry.DueDate
				row.KEVRansomwareUse = entry.RansomwareUse
			}
			if err := stores.ArticleCVEs.Upsert(ctx, row); err != nil {
				return fmt.Errorf("cve: persisting %s for %s: %w", id, a.ID, err)
			}
		}
	}

	return s.markExtracted(ctx, stores, articles)
}

func (s *Service) enrich(ctx context.Context, cveID string) (models.ArticleCVE, error) {
	rec, err := s.nvd.Lookup(ctx, cveID)
	if err != nil {
		return models.ArticleCVE{}, err
	}
	return models.ArticleCVE{
		CVEID:         cveID,
		CVSSScore:     rec.CVSSScore,
		Severity:      rec.Severity,
		Description:   rec.Description,
		CPEMatches:    rec.CPEMatches,
		PublishedDate: rec.PublishedDate,
	}, nil
}

func (s *Service) markExtracted(ctx context.Context, stores store.Stores, articles []models.Article) error {
	for _, a := range articles {
		a.CVEsExtracted = true
		if err := stores.Articles.Update(ctx, a); err != nil {
			return err
		}
	}
	return nil
}
