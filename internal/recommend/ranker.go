package recommend

import "sort"

// Rank sorts items by score descending, keeping input order on ties, and
// truncates to topN. topN <= 0 keeps everything. The input is not modified.
func Rank[T any](items []T, score func(T) float64, topN int) []T {
	ranked := make([]T, len(items))
	copy(ranked, items)

	sort.SliceStable(ranked, func(i, j int) bool {
		return score(ranked[i]) > score(ranked[j])
	})

	if topN > 0 && len(ranked) > topN {
		ranked = ranked[:topN]
	}
	return ranked
}
