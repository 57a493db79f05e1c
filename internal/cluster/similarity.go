package cluster

import (
	"math"
	"strings"
	"time"

	"github.com/greywatch/sentinel/internal/models"
)

const (
	weightEntities      = 0.35
	weightSignals       = 0.30
	weightKeywords      = 0.15
	weightTemporal      = 0.20
	temporalWindowHours = 72.0
	mergeThreshold      = 0.30
	maxGroupSize        = 10
)

// doc is one article's clustering-relevant term-spaces, built once per
// run and reused across all pairwise comparisons. Entity terms are
// lowercased for matching; entityNames keeps the first-seen original
// casing so dominant-entity output reads "Fortinet", not "fortinet".
// The *Order slices preserve insertion order — dominant-term ties must
// break deterministically, and map iteration would not.
type doc struct {
	articleID   string
	userArticle models.UserArticle
	article     models.Article
	entities    map[string]bool
	entityOrder []string
	entityNames map[string]string
	signals     map[string]bool
	signalOrder []string
	keywords    map[string]bool
}

func buildDoc(ua models.UserArticle, a models.Article, entities []models.ArticleEntity, signalNames []string) doc {
	d := doc{
		articleID:   a.ID,
		userArticle: ua,
		article:     a,
		entities:    make(map[string]bool),
		entityNames: make(map[string]string),
		signals:     make(map[string]bool),
		keywords:    make(map[string]bool),
	}
	for _, e := range entities {
		lower := strings.ToLower(e.Name)
		if !d.entities[lower] {
			d.entities[lower] = true
			d.entityOrder = append(d.entityOrder, lower)
			d.entityNames[lower] = e.Name
		}
	}
	for _, s := range signalNames {
		lower := strings.ToLower(s)
		if !d.signals[lower] {
			d.signals[lower] = true
			d.signalOrder = append(d.signalOrder, lower)
		}
	}
	for _, k := range ua.MatchedKeywords {
		d.keywords[strings.ToLower(k)] = true
	}
	return d
}

// weightedJaccard computes Σ idf(A∩B) / Σ idf(A∪B), 0 if the union is
// empty.
func weightedJaccard(a, b map[string]bool, weights map[string]float64) float64 {
	union := make(map[string]bool, len(a)+len(b))
	for t := range a {
		union[t] = true
	}
	for t := range b {
		union[t] = true
	}
	if len(union) == 0 {
		return 0
	}

	var unionW, interW float64
	for t := range union {
		w := weights[t]
		unionW += w
		if a[t] && b[t] {
			interW += w
		}
	}
	if unionW == 0 {
		return 0
	}
	return interW / unionW
}

func temporalScore(a, b *time.Time) float64 {
	if a == nil || b == nil {
		return 0
	}
	delta := a.Sub(*b)
	if delta < 0 {
		delta = -delta
	}
	hours := delta.Hours()
	score := 1 - hours/temporalWindowHours
	return math.Max(0, score)
}

func similarity(a, b doc, entityW, signalW, keywordW map[string]float64) float64 {
	wJEntities := weightedJaccard(a.entities, b.entities, entityW)
	wJSignals := weightedJaccard(a.signals, b.signals, signalW)
	wJKeywords := weightedJaccard(a.keywords, b.keywords, keywordW)
	temporal := temporalScore(a.article.PublishedAt, b.article.PublishedAt)

	return weightEntities*wJEntities + weightSignals*wJSignals + weightKeywords*wJKeywords + weightTemporal*temporal
}
