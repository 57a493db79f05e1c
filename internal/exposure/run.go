package exposure

import (
	"context"
	"time"

	"github.com/greywatch/sentinel/internal/models"
	"github.com/greywatch/sentinel/internal/store"
)

// cveGroup is one distinct CVE's merged view across every article that
// mentions it — enrichment is deduplicated cross-article, so every
// article sharing a CVEID carries identical CPE data.
type cveGroup struct {
	articleID  string // the first article this CVE was seen on
	cpeMatches []string
}

// loadUserCVEGroups gathers every distinct CVE touched by userID's
// matched articles, grouped for batch matching.
func loadUserCVEGroups(ctx context.Context, stores store.Stores, userID string) (map[string]cveGroup, error) {
	links, err := stores.UserArticles.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	var articleIDs []string
	for _, l := range links {
		if l.Matched {
			articleIDs = append(articleIDs, l.ArticleID)
		}
	}
	if len(articleIDs) == 0 {
		return map[string]cveGroup{}, nil
	}

	rows, err := stores.ArticleCVEs.ListByArticles(ctx, articleIDs)
	if err != nil {
		return nil, err
	}

	groups := make(map[string]cveGroup)
	for _, row := range rows {
		g, ok := groups[row.CVEID]
		if !ok {
			groups[row.CVEID] = cveGroup{articleID: row.ArticleID, cpeMatches: row.CPEMatches}
			continue
		}
		g.cpeMatches = unionStrings(g.cpeMatches, row.CPEMatches)
		groups[row.CVEID] = g
	}
	return groups, nil
}

func unionStrings(a, b []string) []string {
	seen := make(map[string]bool, len(a))
	out := append([]string(nil), a...)
	for _, s := range a {
		seen[s] = true
	}
	for _, s := range b {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// BatchMatch runs the full batch classification across a user's
// entire tech stack and CVE set, upserting one UserCVEExposure per
// distinct CVE. Manual overrides
// (AutoClassified==false) are left untouched; the store layer enforces
// this as a fixpoint independently, but skipping here avoids shifting
// FirstDetectedAt on every scheduled run.
func BatchMatch(ctx context.Context, stores store.Stores, userID string, now time.Time) error {
	stack, err := stores.TechStack.ListActiveByUser(ctx, userID)
	if err != nil {
		return err
	}

	groups, err := loadUserCVEGroups(ctx, stores, userID)
	if err != nil {
		return err
	}

	for cveID, g := range groups {
		if len(g.cpeMatches) == 0 {
			continue
		}

		existing, found, err := stores.Exposures.Get(ctx, userID, cveID)
		if err != nil {
			return err
		}
		if found && !existing.AutoClassified {
			continue
		}

		row := models.UserCVEExposure{
			UserID:          userID,
			CVEID:           cveID,
			ArticleCVEID:    &g.articleID,
			AutoClassified:  true,
			FirstDetectedAt: now,
		}
		if found {
			row.FirstDetectedAt = existing.FirstDetectedAt
			row.PatchedAt = existing.PatchedAt
			row.RemediationDeadline = existing.RemediationDeadline
			row.Notes = existing.Notes
		}

		level, item, matchedCPE, ok := BestMatch(g.cpeMatches, stack)
		if !ok {
			row.ExposureState = models.ExposureNotApplicable
		} else {
			row.ExposureState = ClassifyState(level)
			techItemID := item.ID
			row.TechStackItemID = &techItemID
			row.MatchedCPE = &matchedCPE
		}

		if err := stores.Exposures.Upsert(ctx, row); err != nil {
			return err
		}
	}
	return nil
}

// Retroactive runs the narrower reclassification triggered by
// tech-stack-item creation: only CVEs whose best match against the new
// item specifically is exact or product are upserted; a vendor-only
// match is never applied retroactively, and any CVE whose existing
// exposure is a manual override is skipped outright.
func Retroactive(ctx context.Context, stores store.Stores, userID string, item models.TechStackItem, now time.Time) error {
	groups, err := loadUserCVEGroups(ctx, stores, userID)
	if err != nil {
		return err
	}

	for cveID, g := range groups {
		if len(g.cpeMatches) == 0 {
			continue
		}

		existing, found, err := stores.Exposures.Get(ctx, userID, cveID)
		if err != nil {
			return err
		}
		if found && !existing.AutoClassified {
			continue
		}

		level, _, matchedCPE, ok := BestMatch(g.cpeMatches, []models.TechStackItem{item})
		if !ok || level == LevelVendor {
			continue
		}

		row := models.UserCVEExposure{
			UserID:          userID,
			CVEID:           cveID,
			ArticleCVEID:    &g.articleID,
			TechStackItemID: &item.ID,
			ExposureState:   ClassifyState(level),
			AutoClassified:  true,
			MatchedCPE:      &matchedCPE,
			FirstDetectedAt: now,
		}
		if found {
			row.FirstDetectedAt = existing.FirstDetectedAt
			row.PatchedAt = existing.PatchedAt
			row.RemediationDeadline = existing.RemediationDeadline
			row.Notes = existing.Notes
		}

		if err := stores.Exposures.Upsert(ctx, row); err != nil {
			return err
		}
	}
	return nil
}

// SnapshotAndDelta upserts today's remediation-metrics snapshot and
// returns the delta against the newest snapshot at or before now-P for
// the same period.
func SnapshotAndDelta(ctx context.Context, stores store.Stores, userID string, period models.Period, now time.Time) (current, delta models.RemediationMetrics, err error) {
	current, err = ComputeMetrics(ctx, stores, userID, now)
	if err != nil {
		return models.RemediationMetrics{}, models.RemediationMetrics{}, err
	}

	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if err := stores.Snapshots.Upsert(ctx, models.PeriodSnapshot{
		UserID:   userID,
		Period:   period,
		SnapDate: midnight,
		Metrics:  current,
	}); err != nil {
		return models.RemediationMetrics{}, models.RemediationMetrics{}, err
	}

	days := models.PeriodDays[period]
	asOf := now.AddDate(0, 0, -days)
	prior, found, err := stores.Snapshots.Latest(ctx, userID, period, asOf)
	if err != nil {
		return models.RemediationMetrics{}, models.RemediationMetrics{}, err
	}
	if !found {
		return current, models.RemediationMetrics{}, nil
	}

	delta = models.RemediationMetrics{
		PatchRatePct:     round1(current.PatchRatePct - prior.Metrics.PatchRatePct),
		SLACompliancePct: round1(current.SLACompliancePct - prior.Metrics.SLACompliancePct),
		MTTRAvgDays:      round1(current.MTTRAvgDays - prior.Metrics.MTTRAvgDays),
		MTTRMedianDays:   round1(current.MTTRMedianDays - prior.Metrics.MTTRMedianDays),
		KEVExposureCount: current.KEVExposureCount - prior.Metrics.KEVExposureCount,
		KEVOverdueCount:  current.KEVOverdueCount - prior.Metrics.KEVOverdueCount,
		CriticalExposed:  current.CriticalExposed - prior.Metrics.CriticalExposed,
		AvgCVSSExposed:   round1(current.AvgCVSSExposed - prior.Metrics.AvgCVSSExposed),
		VulnerableCount:  current.VulnerableCount - prior.Metrics.VulnerableCount,
		FixedCount:       current.FixedCount - prior.Metrics.FixedCount,
	}
	return current, delta, nil
}
