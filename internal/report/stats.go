// Package report implements the period report builder: pure stats
// aggregation over a window's NewsGroups/CVEs followed by one
// period-scaled LLM call via llmclient.Provider.
package report

import (
	"math"
	"sort"
	"time"

	"github.com/greywatch/sentinel/internal/models"
)

// buildStats computes PeriodStats purely from the groups and CVE rows
// belonging to a period window.
func buildStats(groups []models.NewsGroup, entities []models.ArticleEntity, signals []models.ArticleSignal, signalNames map[string]string, cves []models.ArticleCVE, from, to time.Time) models.PeriodStats {
	stats := models.PeriodStats{
		StoryTotalsByCaseType: caseTotals(groups),
		SignalDistribution:    signalDistribution(signals, signalNames),
		TopEntities:           topEntitiesByTypes(entities, nil, 10),
		TopAffectedProducts:   topEntitiesByTypes(entities, []models.EntityType{models.EntityProduct}, 10),
		TopAffectedSectors:    topEntitiesByTypes(entities, []models.EntityType{models.EntitySector}, 10),
		TopThreatActors:       topEntitiesByTypes(entities, []models.EntityType{models.EntityPerson, models.EntityCompany}, 10),
		StoriesPerDay:         storiesPerDay(groups, from, to),
		CVE:                   cveStats(cves),
	}
	return stats
}

func caseTotals(groups []models.NewsGroup) map[models.CaseType]int {
	out := make(map[models.CaseType]int)
	for _, g := range groups {
		if g.CaseType != nil {
			out[*g.CaseType]++
		}
	}
	return out
}

func signalDistribution(signals []models.ArticleSignal, names map[string]string) []models.NamedCount {
	counts := make(map[string]int)
	var order []string
	for _, s := range signals {
		name := names[s.IndustrySignalID]
		if name == "" {
			name = s.IndustrySignalID
		}
		if _, ok := counts[name]; !ok {
			order = append(order, name)
		}
		counts[name]++
	}
	return sortedNamedCounts(counts, order, len(order))
}

func topEntitiesByTypes(entities []models.ArticleEntity, types []models.EntityType, limit int) []models.NamedCount {
	allowed := make(map[models.EntityType]bool, len(types))
	for _, t := range types {
		allowed[t] = true
	}
	counts := make(map[string]int)
	var order []string
	for _, e := range entities {
		if len(types) > 0 && !allowed[e.Type] {
			continue
		}
		if _, ok := counts[e.Name]; !ok {
			order = append(order, e.Name)
		}
		counts[e.Name]++
	}
	return sortedNamedCounts(counts, order, limit)
}

func sortedNamedCounts(counts map[string]int, order []string, limit int) []models.NamedCount {
	out := make([]models.NamedCount, 0, len(order))
	for _, name := range order {
		out = append(out, models.NamedCount{Name: name, Count: counts[name]})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// storiesPerDay buckets group.Date (UTC) into a day histogram covering
// every day in [from,to] inclusive of empty days.
func storiesPerDay(groups []models.NewsGroup, from, to time.Time) []models.DayCount {
	counts := make(map[string]int)
	for _, g := range groups {
		day := g.Date.UTC().Format("2006-01-02")
		counts[day]++
	}

	var out []models.DayCount
	for d := from.UTC(); !d.After(to.UTC()); d = d.AddDate(0, 0, 1) {
		day := d.Format("2006-01-02")
		out = append(out, models.DayCount{Day: day, Count: counts[day]})
	}
	return out
}

func cveStats(cves []models.ArticleCVE) models.CVEStats {
	seen := make(map[string]models.ArticleCVE)
	for _, c := range cves {
		if existing, ok := seen[c.CVEID]; !ok || betterScore(c, existing) {
			seen[c.CVEID] = c
		}
	}

	var stats models.CVEStats
	var sum float64
	var scored int
	var summaries []models.CVESummary
	var kevEntries []models.KEVDueEntry

	for _, c := range seen {
		stats.UniqueCount++
		if c.InKEV {
			stats.KEVCount++
			var due *string
			if c.KEVDueDate != nil {
				s := c.KEVDueDate.Format(time.RFC3339)
				due = &s
			}
			kevEntries = append(kevEntries, models.KEVDueEntry{CVEID: c.CVEID, DueDate: due})
		}
		if c.CVSSScore == nil {
			continue
		}
		score := *c.CVSSScore
		sum += score
		scored++
		if score > stats.MaxCVSS {
			stats.MaxCVSS = score
		}
		switch {
		case score >= 9:
			stats.BucketCritical++
		case score >= 7:
			stats.BucketHigh++
		case score >= 4:
			stats.BucketMedium++
		default:
			stats.BucketLow++
		}
		severity := ""
		if c.Severity != nil {
			severity = *c.Severity
		}
		summaries = append(summaries, models.CVESummary{CVEID: c.CVEID, CVSSScore: score, Severity: severity})
	}

	if scored > 0 {
		stats.AvgCVSS = round1(sum / float64(scored))
	}
	stats.MaxCVSS = round1(stats.MaxCVSS)

	sort.SliceStable(summaries, func(i, j int) bool {
		if summaries[i].CVSSScore != summaries[j].CVSSScore {
			return summaries[i].CVSSScore > summaries[j].CVSSScore
		}
		return summaries[i].CVEID < summaries[j].CVEID
	})
	if len(summaries) > 10 {
		summaries = summaries[:10]
	}
	sort.SliceStable(kevEntries, func(i, j int) bool { return kevEntries[i].CVEID < kevEntries[j].CVEID })
	stats.TopCVEs = summaries
	stats.KEVCVEs = kevEntries

	return stats
}

func betterScore(a, b models.ArticleCVE) bool {
	if a.CVSSScore == nil {
		return false
	}
	if b.CVSSScore == nil {
		return true
	}
	return *a.CVSSScore > *b.CVSSScore
}

func round1(f float64) float64 {
	return math.Round(f*10) / 10
}
