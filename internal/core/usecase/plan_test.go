package usecase

import (
	"testing"

	"github.com/wastewise/disposal-assistant/internal/core/domain"
)

func TestParseWebSearchMode(t *testing.T) {
	cases := []struct {
		raw  string
		want WebSearchMode
		ok   bool
	}{
		{"always", WebSearchAlways, true},
		{"NEVER", WebSearchNever, true},
		{" threshold ", WebSearchThreshold, true},
		{"", WebSearchThreshold, true},
		{"sometimes", WebSearchThreshold, false},
	}
	for _, tc := range cases {
		got, ok := ParseWebSearchMode(tc.raw)
		if got != tc.want || ok != tc.ok {
			t.Fatalf("ParseWebSearchMode(%q) = (%s, %v), want (%s, %v)", tc.raw, got, ok, tc.want, tc.ok)
		}
	}
}

func TestRetrievalPolicyPlans(t *testing.T) {
	always := RetrievalPolicy{Mode: WebSearchAlways}
	if always.PlanUpfront() != domain.PlanVectorPlusWeb {
		t.Fatalf("always mode must include web upfront")
	}

	never := RetrievalPolicy{Mode: WebSearchNever}
	if never.PlanUpfront() != domain.PlanVectorOnly {
		t.Fatalf("never mode must stay vector-only upfront")
	}
	if never.PlanAfter(0.0, false) != domain.PlanVectorOnly {
		t.Fatalf("never mode must stay vector-only even with no hits")
	}

	threshold := RetrievalPolicy{Mode: WebSearchThreshold, MinConfidence: 0.55}
	if threshold.PlanUpfront() != domain.PlanVectorOnly {
		t.Fatalf("threshold mode decides after retrieval, not upfront")
	}
	if threshold.PlanAfter(0.91, true) != domain.PlanVectorOnly {
		t.Fatalf("confident hits must not trigger web search")
	}
	if threshold.PlanAfter(0.30, true) != domain.PlanVectorPlusWeb {
		t.Fatalf("low-confidence hits must trigger web search")
	}
	if threshold.PlanAfter(0, false) != domain.PlanVectorPlusWeb {
		t.Fatalf("zero hits must trigger web search")
	}
}
