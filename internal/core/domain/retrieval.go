package domain

import "fmt"

// Document is a read-only copy of an indexed or web source. Locator is a
// page/section reference for index documents and a URL for web hits.
type Document struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Region  Region `json:"region"`
	Locator string `json:"locator"`
	Excerpt string `json:"excerpt"`
}

// ScoredHit is one retrieval result. Rank is the 1-based position within
// the list identified by SourceID. Hits are never mutated after creation;
// re-ranking produces new values.
type ScoredHit struct {
	Document Document `json:"document"`
	Score    float64  `json:"score"`
	SourceID string   `json:"source_id"`
	Rank     int      `json:"rank"`
}

// RankedList holds the hits of one retrieval source, ordered by descending
// score, with no duplicate document within the list.
type RankedList struct {
	SourceID string      `json:"source_id"`
	Hits     []ScoredHit `json:"hits"`
}

func (l RankedList) Empty() bool {
	return len(l.Hits) == 0
}

// BestScore returns the highest relevance score in the list, or 0 when the
// list is empty.
func (l RankedList) BestScore() float64 {
	if len(l.Hits) == 0 {
		return 0
	}
	return l.Hits[0].Score
}

// FusedDocument is one entry of a fused result: the document, its
// reciprocal-rank fused score, the best (lowest) rank it held in any input
// list, and the source IDs that returned it.
type FusedDocument struct {
	Document   Document `json:"document"`
	FusedScore float64  `json:"fused_score"`
	BestRank   int      `json:"best_rank"`
	Sources    []string `json:"sources"`
}

// FusedResult is the deduplicated, re-ranked union of all per-source lists
// for one turn. Document IDs are unique across entries.
type FusedResult struct {
	Documents []FusedDocument `json:"documents"`
}

func (f FusedResult) Empty() bool {
	return len(f.Documents) == 0
}

// Citation is the user-facing provenance record for one fused entry.
// Reference carries the link or locator; documents without a public
// locator still get a best-effort identifier so citation numbering stays
// aligned with fused ranks.
type Citation struct {
	DocumentID string `json:"document_id"`
	Title      string `json:"title"`
	Reference  string `json:"reference"`
	Rank       int    `json:"rank"`
	Region     Region `json:"region"`
}

// RetrievalPlan is the tagged routing decision for one turn.
type RetrievalPlan string

const (
	PlanVectorOnly    RetrievalPlan = "vector_only"
	PlanVectorPlusWeb RetrievalPlan = "vector_plus_web"
)

// WebSourceID identifies the web-search list in fan-out output and fusion
// input.
const WebSourceID = "web"

// SubQuerySourceID returns the stable source identifier for the ranked
// list produced by the sub-query at the given expansion index.
func SubQuerySourceID(index int) string {
	return fmt.Sprintf("sq:%d", index)
}
