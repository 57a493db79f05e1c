// Package briefing implements the per-cluster AI briefing generator:
// one llmclient.Provider call per NewsGroup, producing a typed
// multi-section narrative plus a case-type classification.
package briefing

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/greywatch/sentinel/internal/llmclient"
	"github.com/greywatch/sentinel/internal/models"
)

const (
	maxJoinedChars = 20000
	maxTokens      = 1200
	temperature    = 0.3
)

type briefingResponse struct {
	Title             string `json:"title"`
	Synopsis          string `json:"synopsis"`
	ExecutiveSummary  string `json:"executiveSummary"`
	ImpactAnalysis    string `json:"impactAnalysis"`
	Actionability     string `json:"actionability"`
	CaseType          int    `json:"caseType"`
}

// Generator runs the single-call-per-group briefing.
type Generator struct {
	provider llmclient.Provider
}

func New(provider llmclient.Provider) *Generator {
	return &Generator{provider: provider}
}

// Generate narrates one group from its member articles' text. On
// failure — an LLM error, unparseable JSON, or an empty title/synopsis
// — the group is returned unchanged with ok=false.
func (g *Generator) Generate(ctx context.Context, group models.NewsGroup, articles []models.Article) (models.NewsGroup, bool) {
	joined := joinArticleText(articles)

	raw, err := g.provider.Complete(ctx, systemPrompt, buildUserPrompt(group, joined), true, maxTokens, temperature)
	if err != nil {
		return group, false
	}

	var resp briefingResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return group, false
	}
	if strings.TrimSpace(resp.Title) == "" || strings.TrimSpace(resp.Synopsis) == "" {
		return group, false
	}

	caseType := models.CaseType(resp.CaseType)
	if caseType < models.CaseActivelyExploited || caseType > models.CaseInfo {
		caseType = models.CaseInfo
	}

	group.Title = resp.Title
	synopsis := resp.Synopsis
	group.Synopsis = &synopsis
	execSummary := resp.ExecutiveSummary
	group.ExecutiveSummary = &execSummary
	impact := resp.ImpactAnalysis
	group.ImpactAnalysis = &impact
	actionability := resp.Actionability
	group.Actionability = &actionability
	group.CaseType = &caseType

	return group, true
}

// joinArticleText concatenates each article's cleanText (falling back
// to its RSS content), capping the total at maxJoinedChars by giving
// every article an equal share when the total would overflow.
func joinArticleText(articles []models.Article) string {
	texts := make([]string, len(articles))
	for i, a := range articles {
		if a.CleanText != nil && *a.CleanText != "" {
			texts[i] = *a.CleanText
		} else {
			texts[i] = a.Content
		}
	}

	total := 0
	for _, t := range texts {
		total += len(t)
	}
	if total > maxJoinedChars && len(texts) > 0 {
		share := maxJoinedChars / len(texts)
		for i, t := range texts {
			if len(t) > share {
				texts[i] = t[:share]
			}
		}
	}

	return strings.Join(texts, "\n\n---\n\n")
}

func buildUserPrompt(group models.NewsGroup, joined string) string {
	return fmt.Sprintf("Cluster seed title: %s\nDominant entities: %s\nDominant signals: %s\n\nArticles:\n%s",
		group.Title, strings.Join(group.DominantEntities, ", "), strings.Join(group.DominantSignals, ", "), joined)
}

const systemPrompt = `You are a cyber-security intelligence analyst producing a briefing for one news cluster. Respond with a single JSON object with exactly these fields: title (string), synopsis (string), executiveSummary (string), impactAnalysis (string), actionability (string), caseType (integer, one of 1=actively exploited, 2=vulnerable with no known exploit, 3=fixed/patched, 4=informational). Never omit a field.`
