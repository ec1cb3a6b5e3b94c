package usecase

import (
	"strings"

	"github.com/wastewise/disposal-assistant/internal/core/domain"
)

// WebSearchMode selects when the live web-search path runs.
type WebSearchMode string

const (
	WebSearchAlways    WebSearchMode = "always"
	WebSearchNever     WebSearchMode = "never"
	WebSearchThreshold WebSearchMode = "threshold"
)

func ParseWebSearchMode(raw string) (WebSearchMode, bool) {
	switch WebSearchMode(strings.ToLower(strings.TrimSpace(raw))) {
	case WebSearchAlways:
		return WebSearchAlways, true
	case WebSearchNever:
		return WebSearchNever, true
	case WebSearchThreshold, "":
		return WebSearchThreshold, true
	default:
		return WebSearchThreshold, false
	}
}

// RetrievalPolicy decides the retrieval plan for a turn. In threshold mode
// the decision needs the best post-MMR document-store score, so the web
// lookup runs as a conditional second fan-out pass after the vector join.
type RetrievalPolicy struct {
	Mode          WebSearchMode
	MinConfidence float64
}

// PlanUpfront is the plan component known before any retrieval happens.
// Threshold mode stays vector-only here and is re-evaluated by PlanAfter.
func (p RetrievalPolicy) PlanUpfront() domain.RetrievalPlan {
	if p.Mode == WebSearchAlways {
		return domain.PlanVectorPlusWeb
	}
	return domain.PlanVectorOnly
}

// PlanAfter finalizes the plan once document-store results are known.
// bestScore is the highest post-MMR score across all sub-query lists.
func (p RetrievalPolicy) PlanAfter(bestScore float64, hasHits bool) domain.RetrievalPlan {
	switch p.Mode {
	case WebSearchAlways:
		return domain.PlanVectorPlusWeb
	case WebSearchNever:
		return domain.PlanVectorOnly
	}
	if !hasHits || bestScore < p.MinConfidence {
		return domain.PlanVectorPlusWeb
	}
	return domain.PlanVectorOnly
}
