package briefing

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/greywatch/sentinel/internal/models"
	"github.com/greywatch/sentinel/internal/store"
)

const fanOutLimit = 10

// Run narrates every group in groups, fanning out up to fanOutLimit
// concurrent LLM calls, and persists whichever
// groups were successfully narrated. One group's failure never aborts
// the others; the count of groups that actually received a briefing is
// returned alongside the first error seen.
func (g *Generator) Run(ctx context.Context, stores store.Stores, groups []models.NewsGroup) (int, error) {
	sem := semaphore.NewWeighted(fanOutLimit)
	eg, egCtx := errgroup.WithContext(ctx)

	var mu sync.Mutex
	var summarized int
	var firstErr error

	for _, group := range groups {
		group := group
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		eg.Go(func() error {
			defer sem.Release(1)
			narrated, err := g.narrateAndPersist(egCtx, stores, group)
			mu.Lock()
			if narrated {
				summarized++
			}
			if err != nil && firstErr == nil {
				firstErr = err
			}
			mu.Unlock()
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return summarized, err
	}
	return summarized, firstErr
}

// narrateAndPersist reports whether the group actually gained a
// briefing: a failed Generate leaves the stored group untouched and
// does not count toward the run's summarized total.
func (g *Generator) narrateAndPersist(ctx context.Context, stores store.Stores, group models.NewsGroup) (bool, error) {
	articles := make([]models.Article, 0, len(group.ArticleIDs))
	for _, id := range group.ArticleIDs {
		a, err := stores.Articles.Get(ctx, id)
		if err != nil {
			return false, fmt.Errorf("briefing: loading article %s: %w", id, err)
		}
		articles = append(articles, a)
	}

	narrated, ok := g.Generate(ctx, group, articles)
	if !ok {
		return false, nil
	}
	if err := stores.NewsGroups.Update(ctx, narrated); err != nil {
		return false, fmt.Errorf("briefing: persisting group %s: %w", group.ID, err)
	}
	return true, nil
}
