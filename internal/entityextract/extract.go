// Package entityextract implements the batched entity/industry-signal
// extractor: one JSON-mode completion per batch of articles, filtered
// against confidence floors and the allowed signal vocabulary before
// anything is persisted.
package entityextract

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/greywatch/sentinel/internal/llmclient"
	"github.com/greywatch/sentinel/internal/models"
)

const (
	batchSize           = 5
	entityConfidenceMin = 0.3
	signalConfidenceMin = 0.5
	perArticleTextCap   = 4000
)

// namedConfidence is the wire shape for one entity-name-and-confidence
// pair, reused across companies/people/products/geographies/sectors.
type namedConfidence struct {
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
}

type signalHit struct {
	Slug       string  `json:"slug"`
	Confidence float64 `json:"confidence"`
}

type articleExtraction struct {
	Companies   []namedConfidence `json:"companies"`
	People      []namedConfidence `json:"people"`
	Products    []namedConfidence `json:"products"`
	Geographies []namedConfidence `json:"geographies"`
	Sectors     []namedConfidence `json:"sectors"`
	Signals     []signalHit       `json:"signals"`
}

type batchResponse struct {
	Articles map[string]articleExtraction `json:"articles"`
}

// Result is the filtered, persistence-ready output for one article.
type Result struct {
	ArticleID string
	Entities  []models.ArticleEntity
	Signals   []models.ArticleSignal
}

// Extractor runs the batched entity/signal LLM calls.
type Extractor struct {
	provider llmclient.Provider
}

func New(provider llmclient.Provider) *Extractor {
	return &Extractor{provider: provider}
}

// ExtractBatch processes up to batchSize articles in one LLM call.
// Callers are responsible for splitting larger sets into batches.
func (e *Extractor) ExtractBatch(ctx context.Context, articles []models.Article, allowedSignalSlugs []string) ([]Result, error) {
	if len(articles) == 0 {
		return nil, nil
	}
	if len(articles) > batchSize {
		return nil, fmt.Errorf("entityextract: batch of %d exceeds max %d", len(articles), batchSize)
	}

	allowed := make(map[string]bool, len(allowedSignalSlugs))
	for _, s := range allowedSignalSlugs {
		allowed[s] = true
	}

	userPrompt := buildBatchPrompt(articles, allowedSignalSlugs)
	raw, err := e.provider.Complete(ctx, systemPrompt, userPrompt, true, 2000, 0.2)
	if err != nil {
		return nil, fmt.Errorf("entityextract: llm call failed: %w", err)
	}

	var parsed batchResponse
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, fmt.Errorf("entityextract: parsing llm response: %w", err)
	}

	results := make([]Result, 0, len(articles))
	for _, a := range articles {
		ex := parsed.Articles[a.ID]
		results = append(results, Result{
			ArticleID: a.ID,
			Entities:  filterEntities(a.ID, ex),
			Signals:   filterSignals(a.ID, ex.Signals, allowed),
		})
	}
	return results, nil
}

func filterEntities(articleID string, ex articleExtraction) []models.ArticleEntity {
	var out []models.ArticleEntity
	add := func(typ models.EntityType, items []namedConfidence) {
		for _, it := range items {
			if it.Confidence < entityConfidenceMin || it.Name == "" {
				continue
			}
			out = append(out, models.ArticleEntity{
				ArticleID:  articleID,
				Type:       typ,
				Name:       it.Name,
				Confidence: it.Confidence,
			})
		}
	}
	add(models.EntityCompany, ex.Companies)
	add(models.EntityPerson, ex.People)
	add(models.EntityProduct, ex.Products)
	add(models.EntityGeography, ex.Geographies)
	add(models.EntitySector, ex.Sectors)
	return out
}

func filterSignals(articleID string, hits []signalHit, allowed map[string]bool) []models.ArticleSignal {
	var out []models.ArticleSignal
	for _, h := range hits {
		if h.Confidence < signalConfidenceMin {
			continue
		}
		if !allowed[h.Slug] {
			continue
		}
		out = append(out, models.ArticleSignal{ArticleID: articleID, IndustrySignalID: h.Slug, Confidence: h.Confidence})
	}
	return out
}

const systemPrompt = `You are a cyber-security news analyst. For each article, extract named entities (companies, people, products, geographies, sectors) with a confidence in [0,1], and any matching industry signals from the allowed list with a confidence in [0,1]. Respond with a single JSON object: {"articles": {"<articleId>": {"companies":[...], "people":[...], "products":[...], "geographies":[...], "sectors":[...], "signals":[{"slug":"...","confidence":0.0}]}}}. Never invent a signal slug outside the allowed list.`

func buildBatchPrompt(articles []models.Article, allowedSignalSlugs []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Allowed signal slugs: %s\n\n", strings.Join(allowedSignalSlugs, ", "))
	for _, a := range articles {
		text := a.Content
		if a.CleanText != nil && *a.CleanText != "" {
			text = *a.CleanText
		}
		if len(text) > perArticleTextCap {
			text = text[:perArticleTextCap]
		}
		fmt.Fprintf(&b, "Article %s:\nTitle: %s\nText: %s\n\n", a.ID, a.Title, text)
	}
	return b.String()
}
