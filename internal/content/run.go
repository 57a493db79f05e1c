package content

import (
	"context"
	"log"
	"net/url"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/greywatch/sentinel/internal/models"
	"github.com/greywatch/sentinel/internal/store"
)

const fanOutLimit = 15

// Run fetches and extracts body/links for every article in articles
// lacking CleanText, fanning out up to fanOutLimit concurrent fetches.
// A per-article failure is logged and skipped — the pipeline continues
// with the RSS snippet — and never aborts its peers.
func (e *Extractor) Run(ctx context.Context, stores store.Stores, articles []models.Article) error {
	sem := semaphore.NewWeighted(fanOutLimit)
	eg, egCtx := errgroup.WithContext(ctx)

	for _, a := range articles {
		a := a
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		eg.Go(func() error {
			defer sem.Release(1)
			e.extractAndPersist(egCtx, stores, a)
			return nil
		})
	}

	return eg.Wait()
}

func (e *Extractor) extractAndPersist(ctx context.Context, stores store.Stores, a models.Article) {
	host := sourceHost(a.URL)
	res, err := e.Extract(ctx, a.URL, host)
	if err != nil {
		log.Printf("[content] extract %s: %v", a.URL, err)
		return
	}

	a.CleanText = &res.CleanText
	a.ExternalLinks = res.ExternalLinks
	if err := stores.Articles.Update(ctx, a); err != nil {
		log.Printf("[content] persisting %s: %v", a.URL, err)
	}
}

func sourceHost(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
