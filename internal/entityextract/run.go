package entityextract

import (
	"context"
	"fmt"

	"github.com/greywatch/sentinel/internal/models"
	"github.com/greywatch/sentinel/internal/store"
)

// Run processes articles in batches of batchSize, persists the
// filtered results, and flips EntitiesExtracted on success. Batches
// are processed serially — the LLM provider is the bottleneck resource
// here, not the store. ExtractBatch works in terms of slugs (the only
// vocabulary the LLM sees); the catalog mapping back to IndustrySignal
// IDs happens here at the persistence boundary.
func (e *Extractor) Run(ctx context.Context, stores store.Stores, articles []models.Article, catalog []models.IndustrySignal) error {
	slugs := make([]string, len(catalog))
	idBySlug := make(map[string]string, len(catalog))
	for i, s := range catalog {
		slugs[i] = s.Slug
		idBySlug[s.Slug] = s.ID
	}

	for start := 0; start < len(articles); start += batchSize {
		end := start + batchSize
		if end > len(articles) {
			end = len(articles)
		}
		batch := articles[start:end]

		results, err := e.ExtractBatch(ctx, batch, slugs)
		if err != nil {
			return fmt.Errorf("entityextract: batch %d-%d: %w", start, end, err)
		}

		if err := persist(ctx, stores, batch, results, idBySlug); err != nil {
			return fmt.Errorf("entityextract: persisting batch %d-%d: %w", start, end, err)
		}
	}
	return nil
}

func persist(ctx context.Context, stores store.Stores, batch []models.Article, results []Result, idBySlug map[string]string) error {
	for i, r := range results {
		if len(r.Entities) > 0 {
			if err := stores.ArticleEntities.CreateManySkipDuplicates(ctx, r.Entities); err != nil {
				return err
			}
		}
		for _, s := range r.Signals {
			id, ok := idBySlug[s.IndustrySignalID]
			if !ok {
				continue
			}
			s.IndustrySignalID = id
			if err := stores.Signals.UpsertArticleSignal(ctx, s); err != nil {
				return err
			}
		}

		a := batch[i]
		a.EntitiesExtracted = true
		if err := stores.Articles.Update(ctx, a); err != nil {
			return err
		}
	}
	return nil
}
