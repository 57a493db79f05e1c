package exposure

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/greywatch/sentinel/internal/models"
	"github.com/greywatch/sentinel/internal/store"
)

// ComputeMetrics aggregates a user's UserCVEExposure rows into
// remediation metrics. All percentage/float outputs are rounded to 1
// decimal; a zero denominator yields a defined default rather than
// NaN (patch rate 0, SLA compliance 100).
func ComputeMetrics(ctx context.Context, stores store.Stores, userID string, now time.Time) (models.RemediationMetrics, error) {
	exposures, err := stores.Exposures.ListByUser(ctx, userID)
	if err != nil {
		return models.RemediationMetrics{}, err
	}

	cveIDs := make([]string, 0, len(exposures))
	for _, e := range exposures {
		cveIDs = append(cveIDs, e.CVEID)
	}
	enriched, err := stores.ArticleCVEs.ListEnrichedCVEIDs(ctx, cveIDs)
	if err != nil {
		return models.RemediationMetrics{}, err
	}

	var m models.RemediationMetrics
	var mttrDays []float64
	var cvssExposed []float64
	var slaEligible, slaMet int

	for _, e := range exposures {
		cve, haveCVE := enriched[e.CVEID]

		switch e.ExposureState {
		case models.ExposureVulnerable:
			m.VulnerableCount++
			if haveCVE && cve.CVSSScore != nil {
				cvssExposed = append(cvssExposed, *cve.CVSSScore)
				if *cve.CVSSScore >= 9 {
					m.CriticalExposed++
				}
			}
			if haveCVE && cve.InKEV {
				m.KEVExposureCount++
				if cve.KEVDueDate != nil && cve.KEVDueDate.Before(now) {
					m.KEVOverdueCount++
				}
			}
		case models.ExposureFixed:
			m.FixedCount++
			if e.PatchedAt != nil {
				mttrDays = append(mttrDays, e.PatchedAt.Sub(e.FirstDetectedAt).Hours()/24)
				if e.RemediationDeadline != nil {
					slaEligible++
					if !e.PatchedAt.After(*e.RemediationDeadline) {
						slaMet++
					}
				}
			}
		}
	}

	denom := m.VulnerableCount + m.FixedCount
	if denom > 0 {
		m.PatchRatePct = round1(float64(m.FixedCount) / float64(denom) * 100)
	}

	if slaEligible > 0 {
		m.SLACompliancePct = round1(float64(slaMet) / float64(slaEligible) * 100)
	} else {
		m.SLACompliancePct = 100
	}

	if len(mttrDays) > 0 {
		m.MTTRAvgDays = round1(mean(mttrDays))
		m.MTTRMedianDays = round1(median(mttrDays))
	}

	if len(cvssExposed) > 0 {
		m.AvgCVSSExposed = round1(mean(cvssExposed))
	}

	return m, nil
}

func mean(vs []float64) float64 {
	var sum float64
	for _, v := range vs {
		sum += v
	}
	return sum / float64(len(vs))
}

func median(vs []float64) float64 {
	sorted := append([]float64(nil), vs...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
