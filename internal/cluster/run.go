package cluster

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/greywatch/sentinel/internal/models"
	"github.com/greywatch/sentinel/internal/store"
)

// Run clusters a user's ungrouped matched articles and persists the
// resulting NewsGroups, linking member UserArticle rows back to their
// group.
func Run(ctx context.Context, stores store.Stores, userID string, now time.Time) ([]models.NewsGroup, error) {
	ungrouped, err := stores.UserArticles.ListUngrouped(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("cluster: listing ungrouped: %w", err)
	}
	if len(ungrouped) == 0 {
		return nil, nil
	}

	// Stable input order: tie-breaks downstream (pair emission, dominant
	// terms) all derive from this ordering.
	sort.SliceStable(ungrouped, func(i, j int) bool {
		return ungrouped[i].ArticleID < ungrouped[j].ArticleID
	})

	articleIDs := make([]string, len(ungrouped))
	for i, ua := range ungrouped {
		articleIDs[i] = ua.ArticleID
	}

	articles := make(map[string]models.Article, len(articleIDs))
	for _, id := range articleIDs {
		a, err := stores.Articles.Get(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("cluster: loading article %s: %w", id, err)
		}
		articles[id] = a
	}

	entities, err := stores.ArticleEntities.ListByArticles(ctx, articleIDs)
	if err != nil {
		return nil, fmt.Errorf("cluster: loading entities: %w", err)
	}
	entitiesByArticle := make(map[string][]models.ArticleEntity)
	for _, e := range entities {
		entitiesByArticle[e.ArticleID] = append(entitiesByArticle[e.ArticleID], e)
	}

	signals, err := stores.Signals.ListSignalsByArticles(ctx, articleIDs)
	if err != nil {
		return nil, fmt.Errorf("cluster: loading signals: %w", err)
	}

	slugByID, err := resolveSignalSlugs(ctx, stores, signals)
	if err != nil {
		return nil, fmt.Errorf("cluster: resolving signal slugs: %w", err)
	}
	signalsByArticle := make(map[string][]string)
	for _, s := range signals {
		signalsByArticle[s.ArticleID] = append(signalsByArticle[s.ArticleID], slugByID[s.IndustrySignalID])
	}

	docs := make([]doc, len(ungrouped))
	for i, ua := range ungrouped {
		docs[i] = buildDoc(ua, articles[ua.ArticleID], entitiesByArticle[ua.ArticleID], signalsByArticle[ua.ArticleID])
	}

	entityW := idf(collect(docs, func(d doc) map[string]bool { return d.entities }))
	signalW := idf(collect(docs, func(d doc) map[string]bool { return d.signals }))
	keywordW := idf(collect(docs, func(d doc) map[string]bool { return d.keywords }))

	sims := make([][]float64, len(docs))
	for i := range sims {
		sims[i] = make([]float64, len(docs))
	}
	for i := 0; i < len(docs); i++ {
		for j := i + 1; j < len(docs); j++ {
			s := similarity(docs[i], docs[j], entityW, signalW, keywordW)
			sims[i][j] = s
			sims[j][i] = s
		}
	}

	indexGroups := agglomerate(docs, sims)

	// Result order is by article count desc, ties broken by the
	// smallest member index.
	sort.SliceStable(indexGroups, func(a, b int) bool {
		if len(indexGroups[a]) != len(indexGroups[b]) {
			return len(indexGroups[a]) > len(indexGroups[b])
		}
		return minIndex(indexGroups[a]) < minIndex(indexGroups[b])
	})

	var result []models.NewsGroup
	for _, idxs := range indexGroups {
		group := buildGroup(userID, docs, idxs, sims, now)
		persisted, err := stores.NewsGroups.Create(ctx, group)
		if err != nil {
			return nil, fmt.Errorf("cluster: creating group: %w", err)
		}
		memberIDs := make([]string, len(idxs))
		for i, idx := range idxs {
			memberIDs[i] = docs[idx].articleID
		}
		if err := stores.UserArticles.SetNewsGroup(ctx, userID, memberIDs, persisted.ID); err != nil {
			return nil, fmt.Errorf("cluster: linking group %s: %w", persisted.ID, err)
		}
		result = append(result, persisted)
	}
	return result, nil
}

// resolveSignalSlugs maps each distinct ArticleSignal.IndustrySignalID
// to its catalog slug, so the term space and group titles speak the
// signal vocabulary rather than opaque catalog IDs. An ID with no
// catalog row falls back to itself.
func resolveSignalSlugs(ctx context.Context, stores store.Stores, signals []models.ArticleSignal) (map[string]string, error) {
	distinct := make(map[string]bool, len(signals))
	var ids []string
	for _, s := range signals {
		if !distinct[s.IndustrySignalID] {
			distinct[s.IndustrySignalID] = true
			ids = append(ids, s.IndustrySignalID)
		}
	}

	out := make(map[string]string, len(ids))
	for _, id := range ids {
		out[id] = id
	}
	if len(ids) == 0 {
		return out, nil
	}

	catalog, err := stores.Signals.ListByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, sig := range catalog {
		out[sig.ID] = sig.Slug
	}
	return out, nil
}

func minIndex(idxs []int) int {
	m := idxs[0]
	for _, i := range idxs[1:] {
		if i < m {
			m = i
		}
	}
	return m
}

func collect(docs []doc, sel func(doc) map[string]bool) []map[string]bool {
	out := make([]map[string]bool, len(docs))
	for i, d := range docs {
		out[i] = sel(d)
	}
	return out
}

func buildGroup(userID string, docs []doc, idxs []int, sims [][]float64, now time.Time) models.NewsGroup {
	articleIDs := make([]string, len(idxs))
	entityCounts := make(map[string]int)
	var entityOrder []string
	signalCounts := make(map[string]int)
	var signalOrder []string

	displayName := make(map[string]string)
	for i, idx := range idxs {
		articleIDs[i] = docs[idx].articleID
		for _, e := range docs[idx].entityOrder {
			if _, ok := entityCounts[e]; !ok {
				entityOrder = append(entityOrder, e)
			}
			entityCounts[e]++
			if _, ok := displayName[e]; !ok {
				displayName[e] = docs[idx].entityNames[e]
			}
		}
		for _, s := range docs[idx].signalOrder {
			if _, ok := signalCounts[s]; !ok {
				signalOrder = append(signalOrder, s)
			}
			signalCounts[s]++
		}
	}

	dominantEntities := topN(entityCounts, entityOrder, 3)
	for i, e := range dominantEntities {
		if name := displayName[e]; name != "" {
			dominantEntities[i] = name
		}
	}
	dominantSignals := topN(signalCounts, signalOrder, 3)

	confidence := groupConfidence(idxs, sims)
	title := groupTitle(dominantEntities, dominantSignals, docs[idxs[0]].article.Title)

	return models.NewsGroup{
		UserID:           userID,
		Title:            title,
		Confidence:       confidence,
		Date:             now,
		ArticleIDs:       articleIDs,
		DominantSignals:  dominantSignals,
		DominantEntities: dominantEntities,
	}
}

func groupConfidence(idxs []int, sims [][]float64) float64 {
	if len(idxs) < 2 {
		return 0.5
	}
	var sum float64
	var count int
	for i := 0; i < len(idxs); i++ {
		for j := i + 1; j < len(idxs); j++ {
			sum += sims[idxs[i]][idxs[j]]
			count++
		}
	}
	if count == 0 {
		return 0.5
	}
	return sum / float64(count)
}

func groupTitle(dominantEntities, dominantSignals []string, seedTitle string) string {
	switch {
	case len(dominantEntities) > 0 && len(dominantSignals) > 0:
		return fmt.Sprintf("%s: %s", titleCase(dominantEntities[0]), titleCase(dominantSignals[0]))
	case len(dominantEntities) > 0:
		return fmt.Sprintf("%s Incident", titleCase(dominantEntities[0]))
	case len(dominantSignals) > 0:
		return fmt.Sprintf("%s Activity", titleCase(dominantSignals[0]))
	default:
		return seedTitle
	}
}
