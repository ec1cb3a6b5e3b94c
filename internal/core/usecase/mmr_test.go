package usecase

import (
	"testing"

	"github.com/wastewise/disposal-assistant/internal/core/domain"
)

func mmrList(hits ...domain.ScoredHit) domain.RankedList {
	for i := range hits {
		hits[i].SourceID = "sq:0"
		hits[i].Rank = i + 1
	}
	return domain.RankedList{SourceID: "sq:0", Hits: hits}
}

func excerptHit(id, excerpt string, score float64) domain.ScoredHit {
	return domain.ScoredHit{
		Document: domain.Document{ID: id, Title: "title-" + id, Excerpt: excerpt},
		Score:    score,
	}
}

func TestMMRSelectSizeBound(t *testing.T) {
	selector := NewMMRSelector(0.6, 3)

	list := mmrList(
		excerptHit("a", "glass bottles go in the bottle bank", 0.9),
		excerptHit("b", "batteries belong at collection points", 0.8),
		excerptHit("c", "paint is hazardous household waste", 0.7),
		excerptHit("d", "compost food scraps at home", 0.6),
	)
	selected := selector.Select(list)
	if len(selected.Hits) != 3 {
		t.Fatalf("expected 3 selected hits, got %d", len(selected.Hits))
	}

	short := mmrList(excerptHit("a", "glass bottles", 0.9))
	selected = selector.Select(short)
	if len(selected.Hits) != 1 {
		t.Fatalf("expected 1 selected hit for a shorter input, got %d", len(selected.Hits))
	}
	if selected.Hits[0].Rank != 1 {
		t.Fatalf("expected fresh rank 1, got %d", selected.Hits[0].Rank)
	}
}

func TestMMRSelectLambdaOneKeepsOriginalOrder(t *testing.T) {
	selector := NewMMRSelector(1.0, 4)

	list := mmrList(
		excerptHit("a", "identical excerpt text", 0.9),
		excerptHit("b", "identical excerpt text", 0.8),
		excerptHit("c", "identical excerpt text", 0.7),
		excerptHit("d", "identical excerpt text", 0.6),
	)
	selected := selector.Select(list)

	want := []string{"a", "b", "c", "d"}
	for i, id := range want {
		if selected.Hits[i].Document.ID != id {
			t.Fatalf("position %d: got %s, want %s (lambda=1 must keep relevance order)", i, selected.Hits[i].Document.ID, id)
		}
		if selected.Hits[i].Rank != i+1 {
			t.Fatalf("position %d: rank = %d, want %d", i, selected.Hits[i].Rank, i+1)
		}
	}
}

func TestMMRSelectDemotesRedundantHit(t *testing.T) {
	selector := NewMMRSelector(0.5, 3)

	// b duplicates a's excerpt; c is distinct but scored lower than b.
	list := mmrList(
		excerptHit("a", "put eggshells in the compost bin with other food waste", 1.0),
		excerptHit("b", "put eggshells in the compost bin with other food waste", 0.9),
		excerptHit("c", "rinse glass jars before the recycling container", 0.5),
	)
	selected := selector.Select(list)

	if selected.Hits[0].Document.ID != "a" {
		t.Fatalf("expected top-relevance seed a, got %s", selected.Hits[0].Document.ID)
	}
	if selected.Hits[1].Document.ID != "c" {
		t.Fatalf("expected distinct hit c promoted over redundant b, got %s", selected.Hits[1].Document.ID)
	}
	if selected.Hits[2].Document.ID != "b" {
		t.Fatalf("expected redundant b demoted last, got %s", selected.Hits[2].Document.ID)
	}
}

func TestMMRSelectEmptyList(t *testing.T) {
	selector := NewMMRSelector(0.6, 5)
	selected := selector.Select(domain.RankedList{SourceID: "sq:0"})
	if !selected.Empty() {
		t.Fatalf("expected empty output for empty input")
	}
	if selected.SourceID != "sq:0" {
		t.Fatalf("source id not preserved: %q", selected.SourceID)
	}
}

func TestNewMMRSelectorDefaults(t *testing.T) {
	selector := NewMMRSelector(-0.2, 0)
	if selector.Lambda != 0.6 {
		t.Fatalf("invalid lambda should default to 0.6, got %v", selector.Lambda)
	}
	if selector.Size != 5 {
		t.Fatalf("invalid size should default to 5, got %d", selector.Size)
	}
}
