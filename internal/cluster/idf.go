// Package cluster implements the similarity clusterer: IDF-weighted
// Jaccard similarity across three term-spaces plus temporal decay,
// followed by greedy size-capped agglomeration.
package cluster

import "math"

// idf computes the normalized inverse document frequency for each term
// across N documents: idf(t) = log(N/df(t)) / log(N), so a term in
// every document weighs 0 and a term in exactly one weighs 1, with a
// fallback weight of 1 when N==1 (log(1)==0 would otherwise divide by
// zero).
func idf(termSets []map[string]bool) map[string]float64 {
	n := len(termSets)
	df := make(map[string]int)
	for _, terms := range termSets {
		for t := range terms {
			df[t]++
		}
	}

	weights := make(map[string]float64, len(df))
	if n <= 1 {
		for t := range df {
			weights[t] = 1
		}
		return weights
	}

	logN := math.Log(float64(n))
	for t, d := range df {
		weights[t] = math.Log(float64(n)/float64(d)) / logN
	}
	return weights
}
