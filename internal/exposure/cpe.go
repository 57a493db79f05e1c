// Package exposure implements the exposure engine: CPE 2.3 parsing,
// the three-tier vendor/product/exact match hierarchy, the
// VULNERABLE/FIXED/NOT_APPLICABLE/INDIRECT state machine, retroactive
// reclassification on stack-item creation, and the remediation-metrics
// aggregation.
package exposure

import "strings"

// CPE is a parsed CPE 2.3 identifier, trimmed to the fields the match
// hierarchy reads.
type CPE struct {
	Part    string
	Vendor  string
	Product string
	Version string
}

// ParseCPE splits a CPE 2.3 string and rejects anything whose head
// does not start with the "cpe:2.3" prefix. A
// well-formed CPE 2.3 string has 13 colon-separated fields
// (cpe:2.3:part:vendor:product:version:update:edition:lang:sw_edition:
// target_sw:target_hw:other); callers only need the first six (through
// version).
func ParseCPE(s string) (CPE, bool) {
	parts := strings.Split(s, ":")
	if len(parts) < 13 || parts[0] != "cpe" || parts[1] != "2.3" {
		return CPE{}, false
	}
	return CPE{
		Part:    parts[2],
		Vendor:  parts[3],
		Product: parts[4],
		Version: parts[5],
	}, true
}

// normalizeComponent lowercases and replaces whitespace runs with
// underscores, the same rule TechStackItem vendor/product carry at
// write time.
func normalizeComponent(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(s))), "_")
}

// GenerateCPEPattern builds the informational cpe23 pattern stored on
// TechStackItem.CPEPattern. It is not consulted by the match hierarchy
// itself (that compares parsed CPE fields against the item's own
// vendor/product/version directly), but it is a pure, case- and
// whitespace-insensitive normalization: variants of the same name
// yield equal outputs.
func GenerateCPEPattern(vendor, product string) string {
	return "cpe:2.3:a:" + normalizeComponent(vendor) + ":" + normalizeComponent(product) + ":*:*:*:*:*:*:*:*"
}

// NormalizeVendorProduct applies the TechStackItem normalization rule
// to a raw vendor or product string.
func NormalizeVendorProduct(s string) string {
	return normalizeComponent(s)
}
