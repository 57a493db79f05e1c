package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/greywatch/sentinel/internal/briefing"
	"github.com/greywatch/sentinel/internal/cache"
	"github.com/greywatch/sentinel/internal/config"
	"github.com/greywatch/sentinel/internal/content"
	"github.com/greywatch/sentinel/internal/cve"
	"github.com/greywatch/sentinel/internal/entityextract"
	"github.com/greywatch/sentinel/internal/llmclient"
	"github.com/greywatch/sentinel/internal/orchestrator"
	"github.com/greywatch/sentinel/internal/report"
	"github.com/greywatch/sentinel/internal/scheduler"
	"github.com/greywatch/sentinel/internal/scraper"
	"github.com/greywatch/sentinel/internal/store/memory"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	fastProvider, err := llmclient.NewGenkitProvider(ctx, cfg.LLM, cfg.LLM.ModelFast)
	if err != nil {
		log.Fatalf("initializing fast llm provider: %v", err)
	}
	smartProvider, err := llmclient.NewGenkitProvider(ctx, cfg.LLM, cfg.LLM.ModelSmart)
	if err != nil {
		log.Fatalf("initializing smart llm provider: %v", err)
	}

	nvdClient := cve.NewNVDClient(cfg.NVD.APIKey)
	kevCache := cache.NewKEVCache(cve.NewKEVFetchFunc(ctx))

	// store/memory is the reference persistence layer; swapping in a
	// real database means providing a store.Stores backed by it, with
	// no caller-side change.
	stores, _ := memory.New()

	// One scraper, one cache: the scheduler's pre-warm and every
	// per-user scrape must hit the same entries.
	feedScraper := scraper.New(cache.NewScraperCache())

	o := &orchestrator.Orchestrator{
		Stores:    stores,
		Scraper:   feedScraper,
		Content:   content.New(),
		Entities:  entityextract.New(fastProvider),
		CVEs:      cve.NewService(nvdClient, kevCache),
		Briefings: briefing.New(smartProvider),
		Reports:   report.New(smartProvider),
	}

	sched := &scheduler.Scheduler{
		Stores:       stores,
		Scraper:      feedScraper,
		Orchestrator: o,
		Notifier:     newNotifier(cfg.ResendAPIKey),
	}

	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	log.Println("sentinel: scheduler started, hourly tick")
	runTickAt(ctx, sched, time.Now())

	for {
		select {
		case <-ctx.Done():
			log.Println("sentinel: shutting down")
			return
		case now := <-ticker.C:
			runTickAt(ctx, sched, now)
		}
	}
}

func runTickAt(ctx context.Context, sched *scheduler.Scheduler, now time.Time) {
	result := sched.Tick(ctx, now)
	log.Printf("sentinel: tick complete, %d user(s) due", result.Due)
	for _, r := range result.Results {
		if len(r.Errors) > 0 {
			log.Printf("sentinel: user %s completed with %d error(s)", r.UserID, len(r.Errors))
		}
	}
}
