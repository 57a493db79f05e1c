package cve

import (
	"regexp"
	"strings"
)

var cveIDPattern = regexp.MustCompile(`CVE-\d{4}-\d{4,7}`)

// ExtractIDs scans text for CVE identifiers, case-normalizing to
// upper-case and deduplicating within the call.
func ExtractIDs(text string) []string {
	matches := cveIDPattern.FindAllString(strings.ToUpper(text), -1)
	if len(matches) == 0 {
		return nil
	}

	seen := make(map[string]bool, len(matches))
	var out []string
	for _, m := range matches {
		if seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, m)
	}
	return out
}
