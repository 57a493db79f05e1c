package report

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/greywatch/sentinel/internal/llmclient"
	"github.com/greywatch/sentinel/internal/models"
	"github.com/greywatch/sentinel/internal/store"
)

const maxGroupContextChars = 30000

var maxTokensByPeriod = map[models.Period]int{
	models.Period1Day:   2500,
	models.Period7Days:  3500,
	models.Period30Days: 4000,
}

// Builder runs the per-period stats aggregation plus narrative call.
type Builder struct {
	provider llmclient.Provider
}

func New(provider llmclient.Provider) *Builder {
	return &Builder{provider: provider}
}

// Run builds and persists the report for one (userID, period) pair.
func (b *Builder) Run(ctx context.Context, stores store.Stores, userID string, period models.Period, now time.Time) error {
	days, ok := models.PeriodDays[period]
	if !ok {
		return fmt.Errorf("report: unknown period %q", period)
	}
	from := now.AddDate(0, 0, -days)

	groups, err := stores.NewsGroups.ListByUserSince(ctx, userID, from)
	if err != nil {
		return fmt.Errorf("report: listing groups: %w", err)
	}

	var articleIDs []string
	for _, g := range groups {
		articleIDs = append(articleIDs, g.ArticleIDs...)
	}

	entities, err := stores.ArticleEntities.ListByArticles(ctx, articleIDs)
	if err != nil {
		return fmt.Errorf("report: loading entities: %w", err)
	}
	signals, err := stores.Signals.ListSignalsByArticles(ctx, articleIDs)
	if err != nil {
		return fmt.Errorf("report: loading signals: %w", err)
	}
	cves, err := stores.ArticleCVEs.ListByArticles(ctx, articleIDs)
	if err != nil {
		return fmt.Errorf("report: loading cves: %w", err)
	}

	signalNames, err := loadSignalNames(ctx, stores, userID)
	if err != nil {
		return fmt.Errorf("report: loading signal catalog: %w", err)
	}

	stats := buildStats(groups, entities, signals, signalNames, cves, from, now)

	summary, err := b.narrate(ctx, period, groups, stats)
	if err != nil {
		// A narration failure still persists the computed stats with no
		// summary, rather than losing the whole period's aggregation.
		summary = ""
	}

	rep := models.PeriodReport{
		UserID:      userID,
		Period:      period,
		FromDate:    from,
		ToDate:      now,
		Stats:       stats,
		GeneratedAt: now,
	}
	if summary != "" {
		rep.Summary = &summary
	}

	return stores.Reports.Upsert(ctx, rep)
}

func (b *Builder) narrate(ctx context.Context, period models.Period, groups []models.NewsGroup, stats models.PeriodStats) (string, error) {
	sorted := append([]models.NewsGroup(nil), groups...)
	sort.SliceStable(sorted, func(i, j int) bool {
		ci, cj := caseRank(sorted[i].CaseType), caseRank(sorted[j].CaseType)
		return ci < cj
	})

	groupContext := buildGroupContext(sorted)
	statsJSON, err := json.Marshal(stats)
	if err != nil {
		return "", err
	}

	system := promptForPeriod(period, string(statsJSON))
	maxTokens := maxTokensByPeriod[period]

	return b.provider.Complete(ctx, system, groupContext, false, maxTokens, 0.4)
}

func loadSignalNames(ctx context.Context, stores store.Stores, userID string) (map[string]string, error) {
	user, err := stores.Users.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.IndustryID == nil {
		return map[string]string{}, nil
	}
	catalog, err := stores.Signals.ListByIndustry(ctx, *user.IndustryID)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(catalog))
	for _, s := range catalog {
		names[s.ID] = s.Name
	}
	return names, nil
}

func caseRank(ct *models.CaseType) int {
	if ct == nil {
		return int(models.CaseInfo) + 1
	}
	return int(*ct)
}

func buildGroupContext(groups []models.NewsGroup) string {
	var b strings.Builder
	for _, g := range groups {
		synopsis := ""
		if g.Synopsis != nil {
			synopsis = *g.Synopsis
		}
		fmt.Fprintf(&b, "- %s: %s\n", g.Title, synopsis)
	}
	out := b.String()
	if len(out) > maxGroupContextChars {
		out = out[:maxGroupContextChars] + "\n[... truncated for length]"
	}
	return out
}

func promptForPeriod(period models.Period, statsJSON string) string {
	switch period {
	case models.Period1Day:
		return fmt.Sprintf("You are writing a daily operational SOC briefing. Precomputed stats: %s", statsJSON)
	case models.Period7Days:
		return fmt.Sprintf("You are writing a weekly tactical leadership report with trend tables. Precomputed stats: %s", statsJSON)
	default:
		return fmt.Sprintf("You are writing a monthly strategic board-level security posture report. Precomputed stats: %s", statsJSON)
	}
}
