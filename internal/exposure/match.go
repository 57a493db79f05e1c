package exposure

import (
	"strings"

	"github.com/greywatch/sentinel/internal/models"
)

// Level is the three-tier match hierarchy, ordered worst-to-best so
// numeric comparison picks the highest-ranked match.
type Level int

const (
	LevelNone Level = iota
	LevelVendor
	LevelProduct
	LevelExact
)

// matchItem compares one parsed CPE against one tech stack item and
// returns the match level the pair supports.
func matchItem(c CPE, item models.TechStackItem) Level {
	if normalizeComponent(c.Vendor) != item.Vendor {
		return LevelNone
	}
	if normalizeComponent(c.Product) != item.Product {
		return LevelVendor
	}
	if versionMatches(c.Version, item.Version) {
		return LevelExact
	}
	return LevelProduct
}

// versionMatches implements the exact-version rule: equal, or the
// item's concrete version string starts with the CPE's version token.
// A wildcard CPE version with a concrete item version never reaches
// "exact" — it is handled by the caller as "product".
func versionMatches(cpeVersion string, itemVersion *string) bool {
	if itemVersion == nil || *itemVersion == "" {
		return false
	}
	if cpeVersion == "" || cpeVersion == "*" {
		return false
	}
	v := *itemVersion
	if strings.EqualFold(v, cpeVersion) {
		return true
	}
	return strings.HasPrefix(strings.ToLower(v), strings.ToLower(cpeVersion))
}

// BestMatch scans every (cpe string × stack item) combination and
// returns the single highest-ranked match, or ok=false if nothing
// beats LevelNone.
func BestMatch(cpeStrings []string, stack []models.TechStackItem) (level Level, item models.TechStackItem, matchedCPE string, ok bool) {
	best := LevelNone
	for _, raw := range cpeStrings {
		parsed, valid := ParseCPE(raw)
		if !valid {
			continue
		}
		for _, it := range stack {
			lvl := matchItem(parsed, it)
			if lvl > best {
				best = lvl
				item = it
				matchedCPE = raw
			}
		}
	}
	if best == LevelNone {
		return LevelNone, models.TechStackItem{}, "", false
	}
	return best, item, matchedCPE, true
}

// ClassifyState maps a match level to its exposure state: none ->
// NOT_APPLICABLE, vendor -> INDIRECT, product/exact -> VULNERABLE.
func ClassifyState(level Level) models.ExposureState {
	switch level {
	case LevelVendor:
		return models.ExposureIndirect
	case LevelProduct, LevelExact:
		return models.ExposureVulnerable
	default:
		return models.ExposureNotApplicable
	}
}
