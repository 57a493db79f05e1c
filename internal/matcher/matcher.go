// Package matcher implements the pure keyword-matching stage:
// case-insensitive word-boundary patterns over title + content, with
// regex metacharacters in keywords escaped before compilation.
package matcher

import (
	"regexp"
	"strings"

	"github.com/greywatch/sentinel/internal/models"
)

// Result is the per-article outcome of matching against a user's
// keyword list.
type Result struct {
	Matched         bool
	MatchedKeywords []string
}

// Matcher precompiles a user's keyword patterns once so repeated calls
// to Match across a batch of articles don't re-escape and re-compile
// regexes per article. A Matcher is immutable after New and safe for
// concurrent use.
type Matcher struct {
	patterns []compiledKeyword
}

type compiledKeyword struct {
	word string
	re   *regexp.Regexp
}

// New builds a Matcher for the given keyword list. An empty list
// produces a Matcher that matches nothing.
func New(keywords []models.Keyword) *Matcher {
	patterns := make([]compiledKeyword, 0, len(keywords))
	for _, k := range keywords {
		patterns = append(patterns, compiledKeyword{
			word: k.Word,
			re:   regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(k.Word) + `\b`),
		})
	}
	return &Matcher{patterns: patterns}
}

// Match scans title+" "+content against every keyword pattern.
func (m *Matcher) Match(title, content string) Result {
	if len(m.patterns) == 0 {
		return Result{}
	}

	haystack := title + " " + content
	var hits []string
	for _, p := range m.patterns {
		if p.re.MatchString(haystack) {
			hits = append(hits, p.word)
		}
	}
	return Result{Matched: len(hits) > 0, MatchedKeywords: hits}
}

// MatchArticle is a convenience wrapper combining Title and Content.
func (m *Matcher) MatchArticle(a models.Article) Result {
	return m.Match(a.Title, a.Content)
}

// Normalize lowercases and trims a keyword. No store in this module
// calls it on write.
func Normalize(word string) string {
	return strings.ToLower(strings.TrimSpace(word))
}
