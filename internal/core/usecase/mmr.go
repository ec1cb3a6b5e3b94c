package usecase

import "github.com/wastewise/disposal-assistant/internal/core/domain"

// MMRSelector re-ranks a single list with maximal marginal relevance:
// greedy selection that trades retrieval relevance against content
// redundancy with items already selected. Lambda=1 reproduces the original
// relevance order.
type MMRSelector struct {
	Lambda float64
	Size   int
}

func NewMMRSelector(lambda float64, size int) MMRSelector {
	if lambda < 0 || lambda > 1 {
		lambda = 0.6
	}
	if size <= 0 {
		size = 5
	}
	return MMRSelector{Lambda: lambda, Size: size}
}

// Select returns a new RankedList of min(Size, len(list)) hits drawn from
// the input, with fresh 1-based ranks. Input hits are not mutated.
func (s MMRSelector) Select(list domain.RankedList) domain.RankedList {
	n := s.Size
	if n > len(list.Hits) {
		n = len(list.Hits)
	}
	if n == 0 {
		return domain.RankedList{SourceID: list.SourceID}
	}

	relevance := normalizeScores(list.Hits)
	remaining := make([]int, 0, len(list.Hits))
	for i := 1; i < len(list.Hits); i++ {
		remaining = append(remaining, i)
	}

	selected := make([]int, 0, n)
	selected = append(selected, 0) // highest-scoring hit seeds the output

	for len(selected) < n && len(remaining) > 0 {
		bestPos := 0
		bestCombined := s.combinedScore(list.Hits, relevance, remaining[0], selected)
		for pos := 1; pos < len(remaining); pos++ {
			combined := s.combinedScore(list.Hits, relevance, remaining[pos], selected)
			// Strict improvement only: equal scores keep the earlier
			// candidate, which is the one with the lower original rank.
			if combined > bestCombined {
				bestCombined = combined
				bestPos = pos
			}
		}
		selected = append(selected, remaining[bestPos])
		remaining = append(remaining[:bestPos], remaining[bestPos+1:]...)
	}

	out := make([]domain.ScoredHit, 0, len(selected))
	for _, idx := range selected {
		hit := list.Hits[idx]
		hit.Rank = len(out) + 1
		out = append(out, hit)
	}
	return domain.RankedList{SourceID: list.SourceID, Hits: out}
}

func (s MMRSelector) combinedScore(hits []domain.ScoredHit, relevance []float64, candidate int, selected []int) float64 {
	maxSim := 0.0
	for _, idx := range selected {
		sim := tokenSimilarity(hits[candidate].Document.Excerpt, hits[idx].Document.Excerpt)
		if sim > maxSim {
			maxSim = sim
		}
	}
	return s.Lambda*relevance[candidate] - (1-s.Lambda)*maxSim
}

// normalizeScores min-max normalizes retrieval scores into [0,1] within
// the list, preserving order. A flat list normalizes to all-ones.
func normalizeScores(hits []domain.ScoredHit) []float64 {
	out := make([]float64, len(hits))
	if len(hits) == 0 {
		return out
	}

	minScore := hits[0].Score
	maxScore := hits[0].Score
	for _, hit := range hits[1:] {
		if hit.Score < minScore {
			minScore = hit.Score
		}
		if hit.Score > maxScore {
			maxScore = hit.Score
		}
	}

	span := maxScore - minScore
	for i, hit := range hits {
		if span <= 0 {
			out[i] = 1
			continue
		}
		out[i] = (hit.Score - minScore) / span
	}
	return out
}
