package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/wastewise/disposal-assistant/internal/core/domain"
)

type paraphraseGenFake struct {
	responses []string
	errs      []error
	calls     int
}

func (g *paraphraseGenFake) GenerateAnswer(context.Context, string, []domain.FusedDocument, []domain.Citation) (string, error) {
	return "", errors.New("not used")
}

func (g *paraphraseGenFake) GenerateJSONFromPrompt(_ context.Context, _ string) (string, error) {
	idx := g.calls
	g.calls++
	if idx < len(g.errs) && g.errs[idx] != nil {
		return "", g.errs[idx]
	}
	if idx < len(g.responses) {
		return g.responses[idx], nil
	}
	return "", errors.New("unexpected generator call")
}

func TestExpandFirstSubQueryIsVerbatimOriginal(t *testing.T) {
	gen := &paraphraseGenFake{responses: []string{`["how to throw away eggshells","are eggshells compostable"]`}}
	expander := NewQueryExpander(gen, 4, time.Second, testLogger())

	query := domain.Query{Text: "How should I dispose of eggshells?", TurnIndex: 1}
	subQueries := expander.Expand(context.Background(), query)

	if len(subQueries) != 3 {
		t.Fatalf("expected 3 sub-queries, got %d", len(subQueries))
	}
	if subQueries[0].Text != query.Text || subQueries[0].Index != 0 {
		t.Fatalf("sub-query 0 must be the verbatim original, got %+v", subQueries[0])
	}
	for i, sub := range subQueries {
		if sub.Index != i {
			t.Fatalf("sub-query %d has index %d", i, sub.Index)
		}
		if sub.ParentText != query.Text {
			t.Fatalf("sub-query %d parent = %q, want original text", i, sub.ParentText)
		}
	}
}

func TestExpandDeduplicatesAndCaps(t *testing.T) {
	gen := &paraphraseGenFake{responses: []string{
		`["How should I dispose of EGGSHELLS","eggshell disposal","Eggshell disposal!","compost eggshells","eggshells in trash","eggshells and bins"]`,
	}}
	expander := NewQueryExpander(gen, 4, time.Second, testLogger())

	query := domain.Query{Text: "how should i dispose of eggshells", TurnIndex: 1}
	subQueries := expander.Expand(context.Background(), query)

	if len(subQueries) != 4 {
		t.Fatalf("expected cap at 4 sub-queries, got %d", len(subQueries))
	}
	seen := map[string]bool{}
	for _, sub := range subQueries {
		key := normalizedKey(sub.Text)
		if seen[key] {
			t.Fatalf("duplicate sub-query after normalization: %q", sub.Text)
		}
		seen[key] = true
	}
}

func TestExpandGeneratorFailureDegradesToIdentity(t *testing.T) {
	gen := &paraphraseGenFake{errs: []error{errors.New("model unavailable")}}
	expander := NewQueryExpander(gen, 4, time.Second, testLogger())

	query := domain.Query{Text: "where do old batteries go", TurnIndex: 2}
	subQueries := expander.Expand(context.Background(), query)

	if len(subQueries) != 1 {
		t.Fatalf("degraded expansion must return exactly the original, got %d sub-queries", len(subQueries))
	}
	if subQueries[0].Text != query.Text {
		t.Fatalf("degraded expansion text = %q, want original", subQueries[0].Text)
	}
}

func TestExpandRepairsAlmostJSONOutput(t *testing.T) {
	gen := &paraphraseGenFake{responses: []string{
		"Sure! Here are some paraphrases:\n- how to recycle glass",
		`{"paraphrases":["how to recycle glass","glass bottle disposal"]}`,
	}}
	expander := NewQueryExpander(gen, 4, time.Second, testLogger())

	query := domain.Query{Text: "where does glass go", TurnIndex: 1}
	subQueries := expander.Expand(context.Background(), query)

	if gen.calls != 2 {
		t.Fatalf("expected one repair round-trip, got %d generator calls", gen.calls)
	}
	if len(subQueries) != 3 {
		t.Fatalf("expected repaired paraphrases to be used, got %d sub-queries", len(subQueries))
	}
}

func TestExpandUnrepairableOutputDegrades(t *testing.T) {
	gen := &paraphraseGenFake{responses: []string{"not json", "still not json"}}
	expander := NewQueryExpander(gen, 4, time.Second, testLogger())

	query := domain.Query{Text: "where does glass go", TurnIndex: 1}
	subQueries := expander.Expand(context.Background(), query)

	if len(subQueries) != 1 {
		t.Fatalf("unrepairable output must degrade to identity, got %d sub-queries", len(subQueries))
	}
}
