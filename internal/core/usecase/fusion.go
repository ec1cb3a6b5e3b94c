package usecase

import (
	"sort"

	"github.com/wastewise/disposal-assistant/internal/core/domain"
)

const defaultRRFK = 60

// FuseRRF merges the per-source ranked lists into one FusedResult with
// reciprocal rank fusion: fused(d) = sum over lists containing d of
// 1/(k + rank). The function is pure and deterministic: lists are combined
// in sorted source-ID order, and exact score ties break by the document's
// best rank across lists, then by document ID.
func FuseRRF(lists map[string]domain.RankedList, k, limit int) domain.FusedResult {
	if k <= 0 {
		k = defaultRRFK
	}

	sourceIDs := make([]string, 0, len(lists))
	for id := range lists {
		sourceIDs = append(sourceIDs, id)
	}
	sort.Strings(sourceIDs)

	type fusedCandidate struct {
		doc      domain.Document
		score    float64
		bestRank int
		sources  []string
	}

	acc := make(map[string]*fusedCandidate)
	order := make([]string, 0)
	for _, sourceID := range sourceIDs {
		for _, hit := range lists[sourceID].Hits {
			candidate, ok := acc[hit.Document.ID]
			if !ok {
				candidate = &fusedCandidate{
					doc:      hit.Document,
					bestRank: hit.Rank,
				}
				acc[hit.Document.ID] = candidate
				order = append(order, hit.Document.ID)
			}
			candidate.doc = preferRicherDocument(candidate.doc, hit.Document)
			candidate.score += 1.0 / float64(k+hit.Rank)
			if hit.Rank < candidate.bestRank {
				candidate.bestRank = hit.Rank
			}
			candidate.sources = append(candidate.sources, sourceID)
		}
	}

	out := make([]domain.FusedDocument, 0, len(order))
	for _, id := range order {
		candidate := acc[id]
		out = append(out, domain.FusedDocument{
			Document:   candidate.doc,
			FusedScore: candidate.score,
			BestRank:   candidate.bestRank,
			Sources:    candidate.sources,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].FusedScore != out[j].FusedScore {
			return out[i].FusedScore > out[j].FusedScore
		}
		if out[i].BestRank != out[j].BestRank {
			return out[i].BestRank < out[j].BestRank
		}
		return out[i].Document.ID < out[j].Document.ID
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return domain.FusedResult{Documents: out}
}

// preferRicherDocument keeps the most complete field values when the same
// document arrives from several sources.
func preferRicherDocument(current, candidate domain.Document) domain.Document {
	if current.ID == "" {
		return candidate
	}
	if current.Title == "" && candidate.Title != "" {
		current.Title = candidate.Title
	}
	if current.Locator == "" && candidate.Locator != "" {
		current.Locator = candidate.Locator
	}
	if current.Excerpt == "" && candidate.Excerpt != "" {
		current.Excerpt = candidate.Excerpt
	}
	if !current.Region.Known() && candidate.Region.Known() {
		current.Region = candidate.Region
	}
	return current
}
