package retrieval

import (
	"sort"

	"github.com/dshills/codeintel/pkg/types"
)

// less orders by confidence descending, then doc-type priority, then id
func less(a, b *types.ScoredResult) bool {
	if a.Confidence != b.Confidence {
		return a.Confidence > b.Confidence
	}
	if pa, pb := a.DocType.Priority(), b.DocType.Priority(); pa != pb {
		return pa < pb
	}
	return a.ID < b.ID
}

// dedup keeps the best result per dedup key; ties keep the one that sorts first
func dedup(results []types.ScoredResult) []types.ScoredResult {
	best := make(map[string]int, len(results))
	out := make([]types.ScoredResult, 0, len(results))
	for _, r := range results {
		key := r.Key()
		i, seen := best[key]
		if !seen {
			best[key] = len(out)
			out = append(out, r)
			continue
		}
		if less(&r, &out[i]) {
			out[i] = r
		}
	}
	return out
}

// rank sorts, truncates to limit and assigns 1-based ranks
func rank(results []types.ScoredResult, limit int) []types.ScoredResult {
	sort.Slice(results, func(i, j int) bool {
		return less(&results[i], &results[j])
	})
	if len(results) > limit {
		results = results[:limit]
	}
	for i := range results {
		results[i].Rank = i + 1
	}
	return results
}
