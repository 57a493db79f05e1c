package cluster

import (
	"sort"
	"strings"
)

type pair struct {
	i, j int
	sim  float64
}

// agglomerate runs a greedy merge over every docs pair with similarity
// ≥ mergeThreshold, sorted descending, ties broken by input order
// (stable sort preserves the original pair emission order, which
// itself iterates i,j ascending).
func agglomerate(docs []doc, sims [][]float64) [][]int {
	var pairs []pair
	for i := 0; i < len(docs); i++ {
		for j := i + 1; j < len(docs); j++ {
			if sims[i][j] >= mergeThreshold {
				pairs = append(pairs, pair{i: i, j: j, sim: sims[i][j]})
			}
		}
	}
	sort.SliceStable(pairs, func(a, b int) bool { return pairs[a].sim > pairs[b].sim })

	groupOf := make([]int, len(docs))
	for i := range groupOf {
		groupOf[i] = -1
	}
	var groups [][]int

	for _, p := range pairs {
		gi, gj := groupOf[p.i], groupOf[p.j]
		switch {
		case gi == -1 && gj == -1:
			groups = append(groups, []int{p.i, p.j})
			id := len(groups) - 1
			groupOf[p.i], groupOf[p.j] = id, id
		case gi != -1 && gj == -1:
			if len(groups[gi]) < maxGroupSize {
				groups[gi] = append(groups[gi], p.j)
				groupOf[p.j] = gi
			}
		case gi == -1 && gj != -1:
			if len(groups[gj]) < maxGroupSize {
				groups[gj] = append(groups[gj], p.i)
				groupOf[p.i] = gj
			}
		case gi != gj:
			if len(groups[gi])+len(groups[gj]) <= maxGroupSize {
				groups[gi] = append(groups[gi], groups[gj]...)
				for _, m := range groups[gj] {
					groupOf[m] = gi
				}
				groups[gj] = nil
			}
		}
		// gi == gj (already in the same group): nothing to do.
	}

	var out [][]int
	for _, g := range groups {
		if len(g) > 0 {
			out = append(out, g)
		}
	}
	for i, gi := range groupOf {
		if gi == -1 {
			out = append(out, []int{i})
		}
	}
	return out
}

// topN returns the n most frequent keys in counts, ties broken by
// first-seen order via the accompanying order slice.
func topN(counts map[string]int, order []string, n int) []string {
	type kv struct {
		key   string
		count int
	}
	kvs := make([]kv, 0, len(counts))
	seen := make(map[string]bool, len(order))
	for _, k := range order {
		if seen[k] {
			continue
		}
		seen[k] = true
		if c, ok := counts[k]; ok {
			kvs = append(kvs, kv{k, c})
		}
	}
	sort.SliceStable(kvs, func(i, j int) bool { return kvs[i].count > kvs[j].count })
	if len(kvs) > n {
		kvs = kvs[:n]
	}
	out := make([]string, len(kvs))
	for i, e := range kvs {
		out[i] = e.key
	}
	return out
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		if len(w) > 0 {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}
