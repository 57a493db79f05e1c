// Package scheduler implements the per-user due-time evaluator,
// batch cache pre-warm, and orchestrator dispatch.
// The host's hourly cron trigger itself is an out-of-core collaborator
//; this
// package is what that trigger calls into each tick.
package scheduler

import (
	"context"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/greywatch/sentinel/internal/models"
	"github.com/greywatch/sentinel/internal/orchestrator"
	"github.com/greywatch/sentinel/internal/scraper"
	"github.com/greywatch/sentinel/internal/store"
)

// Notifier is the out-of-core email collaborator. A nil Notifier
// simply skips the emailEnabled branch, without logging.
type Notifier interface {
	Notify(ctx context.Context, userID string) error
}

// Scheduler runs one hourly tick across every user.
type Scheduler struct {
	Stores       store.Stores
	Scraper      *scraper.Scraper
	Orchestrator *orchestrator.Orchestrator
	Notifier     Notifier
}

// TickResult summarizes one scheduler pass for diagnostics.
type TickResult struct {
	Due     int
	Results []orchestrator.RunResult
}

// Tick evaluates every user's due-time, pre-warms the scraper cache
// across the union of due users' RSS sources, then runs the
// orchestrator for each due user in turn, isolating each user's
// failure from the others. Concurrent scheduler runs are not guarded
// against: the persistence layer's upserts absorb duplicate dispatch.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) TickResult {
	users, err := s.Stores.Users.ListAll(ctx)
	if err != nil {
		log.Printf("[scheduler] listing users: %v", err)
		return TickResult{}
	}

	var due []models.User
	for _, u := range users {
		if isDue(u, now) {
			due = append(due, u)
		}
	}

	s.preWarm(ctx, due)

	result := TickResult{Due: len(due)}
	for _, u := range due {
		run := s.Orchestrator.Run(ctx, u.ID, now)
		result.Results = append(result.Results, run)

		if err := s.Stores.Users.SetLastDigestAt(ctx, u.ID, now); err != nil {
			log.Printf("[scheduler] user %s: updating lastDigestAt: %v", u.ID, err)
		}

		if u.EmailEnabled && run.Matched > 0 && s.Notifier != nil {
			if err := s.Notifier.Notify(ctx, u.ID); err != nil {
				log.Printf("[scheduler] user %s: notify: %v", u.ID, err)
			}
		}
	}
	return result
}

func (s *Scheduler) preWarm(ctx context.Context, due []models.User) {
	var sources []models.Source
	for _, u := range due {
		userSources, err := s.Stores.Sources.ListActiveByUser(ctx, u.ID)
		if err != nil {
			log.Printf("[scheduler] pre-warm: listing sources for %s: %v", u.ID, err)
			continue
		}
		for _, src := range userSources {
			if src.Type == models.SourceRSS {
				sources = append(sources, src)
			}
		}
	}
	if len(sources) == 0 {
		return
	}
	if err := s.Scraper.PreWarm(ctx, sources); err != nil {
		log.Printf("[scheduler] pre-warm: %v", err)
	}
}

// isDue evaluates the per-user due-time predicate: a known frequency,
// the interval elapsed since the last digest, and — for cadences of a
// day or longer — the configured UTC hour.
func isDue(u models.User, now time.Time) bool {
	interval, ok := models.FreqMS[u.DigestFrequency]
	if !ok {
		return false
	}

	if u.LastDigestAt != nil && now.Sub(*u.LastDigestAt) < interval {
		return false
	}

	if interval >= 24*time.Hour {
		hour, err := digestHour(u.DigestTime)
		if err != nil || now.UTC().Hour() != hour {
			return false
		}
	}

	return true
}

func digestHour(digestTime string) (int, error) {
	parts := strings.SplitN(digestTime, ":", 2)
	return strconv.Atoi(parts[0])
}
