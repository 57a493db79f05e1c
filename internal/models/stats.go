package models

// PeriodStats is the structured form of PeriodReport.Stats. It is
// still serialized to a JSON object on the wire, but kept typed
// internally for the aggregation and prompt-baking logic in the report
// package.
type PeriodStats struct {
	StoryTotalsByCaseType map[CaseType]int `json:"story_totals_by_case_type"`

	SignalDistribution []NamedCount `json:"signal_distribution"`

	TopEntities         []NamedCount `json:"top_entities"`
	TopAffectedProducts []NamedCount `json:"top_affected_products"`
	TopAffectedSectors  []NamedCount `json:"top_affected_sectors"`
	TopThreatActors     []NamedCount `json:"top_threat_actors"`

	StoriesPerDay []DayCount `json:"stories_per_day"`

	CVE CVEStats `json:"cve"`
}

// NamedCount is a generic (name, count) pair used for the various
// top-N distributions in PeriodStats.
type NamedCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// DayCount is one bucket of the stories-per-day histogram. Day is
// formatted YYYY-MM-DD (UTC).
type DayCount struct {
	Day   string `json:"day"`
	Count int    `json:"count"`
}

// CVEStats summarizes the CVEs touched by a period's stories.
type CVEStats struct {
	UniqueCount int `json:"unique_count"`

	BucketCritical int `json:"bucket_critical"` // >= 9
	BucketHigh     int `json:"bucket_high"`     // [7,9)
	BucketMedium   int `json:"bucket_medium"`   // [4,7)
	BucketLow      int `json:"bucket_low"`      // < 4

	KEVCount int     `json:"kev_count"`
	AvgCVSS  float64 `json:"avg_cvss"`
	MaxCVSS  float64 `json:"max_cvss"`

	TopCVEs []CVESummary  `json:"top_cves"` // top-10 by CVSS desc
	KEVCVEs []KEVDueEntry `json:"kev_cves"`
}

// CVESummary is a compact per-CVE row for report prompts/UI.
type CVESummary struct {
	CVEID     string  `json:"cve_id"`
	CVSSScore float64 `json:"cvss_score"`
	Severity  string  `json:"severity"`
}

// KEVDueEntry lists a KEV CVE alongside its CISA remediation due date.
type KEVDueEntry struct {
	CVEID   string  `json:"cve_id"`
	DueDate *string `json:"due_date,omitempty"` // RFC3339 date, nil if unknown
}

// RemediationMetrics is the exposure engine's pure-aggregation output.
// All percentage/float fields are rounded to 1 decimal.
type RemediationMetrics struct {
	PatchRatePct      float64 `json:"patch_rate_pct"`
	SLACompliancePct  float64 `json:"sla_compliance_pct"`
	MTTRAvgDays       float64 `json:"mttr_avg_days"`
	MTTRMedianDays    float64 `json:"mttr_median_days"`
	KEVExposureCount  int     `json:"kev_exposure_count"`
	KEVOverdueCount   int     `json:"kev_overdue_count"`
	CriticalExposed   int     `json:"critical_exposed"`
	AvgCVSSExposed    float64 `json:"avg_cvss_exposed"`
	VulnerableCount   int     `json:"vulnerable_count"`
	FixedCount        int     `json:"fixed_count"`
}
