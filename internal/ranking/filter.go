package ranking

import (
	"sort"

	"github.com/jonathan/luckin/internal/types"
)

// FilterAndSort drops unscored candidates and those below threshold, then
// orders the rest by score descending. Equal scores keep their input order.
func FilterAndSort(candidates []types.Candidate, threshold float64) []types.Candidate {
	ranked := make([]types.Candidate, 0, len(candidates))
	for _, c := range candidates {
		if !c.Scored() || c.Relevance.Score < threshold {
			continue
		}
		ranked = append(ranked, c)
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Relevance.Score > ranked[j].Relevance.Score
	})
	return ranked
}
