package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/wastewise/disposal-assistant/internal/core/domain"
)

type pipelineGenFake struct {
	mu             sync.Mutex
	paraphraseJSON string
	paraphraseErr  error
	answer         string
	answerErr      error
	gotQuestion    string
	gotDocs        []domain.FusedDocument
	gotCitations   []domain.Citation
}

func (g *pipelineGenFake) GenerateAnswer(_ context.Context, question string, docs []domain.FusedDocument, citations []domain.Citation) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.gotQuestion = question
	g.gotDocs = docs
	g.gotCitations = citations
	if g.answerErr != nil {
		return "", g.answerErr
	}
	return g.answer, nil
}

func (g *pipelineGenFake) GenerateJSONFromPrompt(context.Context, string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.paraphraseErr != nil {
		return "", g.paraphraseErr
	}
	return g.paraphraseJSON, nil
}

type fakeQueue struct {
	mu      sync.Mutex
	records []domain.TurnRecord
	err     error
}

func (q *fakeQueue) PublishTurnCompleted(_ context.Context, record domain.TurnRecord) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.records = append(q.records, record)
	return nil
}

func (q *fakeQueue) SubscribeTurnCompleted(context.Context, func(context.Context, domain.TurnRecord) error) error {
	return errors.New("not used")
}

func (q *fakeQueue) published() []domain.TurnRecord {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]domain.TurnRecord, len(q.records))
	copy(out, q.records)
	return out
}

type dialogueFixture struct {
	index    *fakeIndex
	web      *fakeWeb
	gen      *pipelineGenFake
	queue    *fakeQueue
	observer *fakeObserver
	orch     *DialogueOrchestrator
}

func newDialogueFixture(policy RetrievalPolicy, fallback domain.Region) *dialogueFixture {
	logger := testLogger()
	index := newFakeIndex()
	web := &fakeWeb{}
	gen := &pipelineGenFake{paraphraseJSON: "[]", answer: "Put eggshells in the compost bin. [1]"}
	queue := &fakeQueue{}
	observer := newFakeObserver()

	orch := NewDialogueOrchestrator(
		NewRegionRouter(fallback, logger),
		NewQueryExpander(gen, 3, time.Second, logger),
		NewRetrievalFanOut(index, index, web, 5, time.Second, observer, logger),
		NewMMRSelector(0.6, 5),
		policy,
		gen,
		queue,
		DialogueLimits{},
		observer,
		logger,
	)
	return &dialogueFixture{index: index, web: web, gen: gen, queue: queue, observer: observer, orch: orch}
}

func regionHit(id, title, excerpt string, score float64, region domain.Region) domain.ScoredHit {
	return domain.ScoredHit{
		Document: domain.Document{
			ID:      id,
			Title:   title,
			Region:  region,
			Locator: "guides/" + id,
			Excerpt: excerpt,
		},
		Score: score,
	}
}

func TestRespondFullTurn(t *testing.T) {
	fx := newDialogueFixture(RetrievalPolicy{Mode: WebSearchThreshold, MinConfidence: 0.55}, domain.RegionUS)
	fx.gen.paraphraseJSON = `["how to throw away eggshells","are eggshells compostable"]`

	question := "How should I dispose of eggshells?"
	fx.index.hits[question] = []domain.ScoredHit{
		regionHit("compost-guidelines", "Compost Guidelines", "eggshells and coffee grounds belong in home compost", 0.91, domain.RegionUS),
		regionHit("organics-cart", "Organics Cart Rules", "accepted items for the green organics cart", 0.74, domain.RegionUS),
		regionHit("food-scraps", "Food Scrap Drop-Off", "weekly food scrap drop off locations", 0.68, domain.RegionUS),
	}
	fx.index.hits["how to throw away eggshells"] = []domain.ScoredHit{
		regionHit("compost-guidelines", "Compost Guidelines", "eggshells and coffee grounds belong in home compost", 0.88, domain.RegionUS),
		regionHit("trash-basics", "Trash Basics", "what goes in the landfill cart", 0.41, domain.RegionUS),
	}
	fx.index.hits["are eggshells compostable"] = []domain.ScoredHit{
		regionHit("compost-science", "What Breaks Down in Compost", "shells break down slowly but are compostable", 0.62, domain.RegionUS),
	}

	result, err := fx.orch.Respond(context.Background(), domain.TurnRequest{
		SessionID: "s-1",
		Question:  question,
		Region:    domain.RegionUS,
	})
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}

	if result.Region != domain.RegionUS {
		t.Fatalf("region = %s, want us", result.Region)
	}
	if result.Degraded || result.FallbackReason != "" {
		t.Fatalf("healthy turn reported degraded: %+v", result)
	}
	if result.Answer != fx.gen.answer {
		t.Fatalf("answer = %q", result.Answer)
	}
	if fx.web.callCount() != 0 {
		t.Fatalf("confident retrieval must not hit web search, got %d calls", fx.web.callCount())
	}

	if len(result.Citations) == 0 {
		t.Fatalf("expected citations")
	}
	top := result.Citations[0]
	if top.Rank != 1 || top.Title != "Compost Guidelines" {
		t.Fatalf("top citation = %+v, want rank-1 Compost Guidelines", top)
	}
	if top.Reference == "" {
		t.Fatalf("citation reference must not be empty")
	}

	if fx.gen.gotQuestion != question {
		t.Fatalf("generator saw question %q", fx.gen.gotQuestion)
	}
	if len(fx.gen.gotDocs) == 0 || len(fx.gen.gotCitations) != len(result.Citations) {
		t.Fatalf("generator must receive the fused context and citations")
	}

	history, ok := fx.orch.History("s-1")
	if !ok || len(history.Turns) != 1 {
		t.Fatalf("expected one recorded turn, got %v %d", ok, len(history.Turns))
	}
	turn := history.Turns[0]
	if turn.TurnIndex != 1 || turn.SourceCount == 0 || turn.Degraded {
		t.Fatalf("unexpected recorded turn: %+v", turn)
	}

	records := fx.queue.published()
	if len(records) != 1 {
		t.Fatalf("expected one audit event, got %d", len(records))
	}
	if records[0].SessionID != "s-1" || records[0].TurnIndex != 1 || records[0].Degraded {
		t.Fatalf("unexpected audit record: %+v", records[0])
	}
}

func TestRespondSurvivesPartialSourceFailure(t *testing.T) {
	fx := newDialogueFixture(RetrievalPolicy{Mode: WebSearchNever}, domain.RegionUS)
	fx.gen.paraphraseJSON = `["eggshell disposal"]`

	question := "How should I dispose of eggshells?"
	fx.index.hits[question] = []domain.ScoredHit{
		regionHit("compost-guidelines", "Compost Guidelines", "eggshells belong in compost", 0.91, domain.RegionUS),
	}
	fx.index.searchErr["eggshell disposal"] = errors.New("index shard down")

	result, err := fx.orch.Respond(context.Background(), domain.TurnRequest{Question: question, Region: domain.RegionUS})
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if result.Degraded {
		t.Fatalf("partial source failure must not degrade the turn")
	}
	if len(result.Citations) == 0 {
		t.Fatalf("surviving source must still produce citations")
	}
	if kind := fx.observer.failureKindFor("sq:1"); kind != "document_store" {
		t.Fatalf("failure not recorded, kind = %q", kind)
	}
}

func TestRespondNoSourcesFallback(t *testing.T) {
	fx := newDialogueFixture(RetrievalPolicy{Mode: WebSearchNever}, domain.RegionUS)
	fx.gen.answer = ""

	result, err := fx.orch.Respond(context.Background(), domain.TurnRequest{Question: "question with no matches"})
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if result.FallbackReason != "no_sources_found" {
		t.Fatalf("fallback reason = %q, want no_sources_found", result.FallbackReason)
	}
	if result.Degraded {
		t.Fatalf("an empty index is a fallback, not a degraded turn")
	}
	if len(result.Citations) != 0 {
		t.Fatalf("no sources means no citations, got %d", len(result.Citations))
	}
	if result.Answer == "" {
		t.Fatalf("turn must still carry a user-facing answer")
	}

	history, _ := fx.orch.History(result.SessionID)
	if len(history.Turns) != 1 {
		t.Fatalf("fallback turns are still recorded, got %d", len(history.Turns))
	}
}

func TestRespondGenerationFailureDegrades(t *testing.T) {
	fx := newDialogueFixture(RetrievalPolicy{Mode: WebSearchNever}, domain.RegionUS)
	fx.index.hits["why is my trash bin full"] = []domain.ScoredHit{
		regionHit("trash-basics", "Trash Basics", "landfill cart rules", 0.8, domain.RegionUS),
	}
	fx.gen.answerErr = errors.New("model overloaded")

	result, err := fx.orch.Respond(context.Background(), domain.TurnRequest{Question: "why is my trash bin full"})
	if err != nil {
		t.Fatalf("generation failure must not surface to the caller: %v", err)
	}
	if !result.Degraded || result.FallbackReason != "generation_unavailable" {
		t.Fatalf("expected degraded generation_unavailable turn, got %+v", result)
	}
	if result.Answer == "" {
		t.Fatalf("degraded turn must still answer")
	}
	if len(fx.observer.degraded) != 1 || fx.observer.degraded[0] != "generation_unavailable" {
		t.Fatalf("degraded turn not observed: %v", fx.observer.degraded)
	}

	records := fx.queue.published()
	if len(records) != 1 || !records[0].Degraded {
		t.Fatalf("audit record must flag the degradation: %+v", records)
	}
}

func TestRespondThresholdTriggersWebSearch(t *testing.T) {
	fx := newDialogueFixture(RetrievalPolicy{Mode: WebSearchThreshold, MinConfidence: 0.55}, domain.RegionUS)

	question := "disposal rules for a niche material"
	fx.index.hits[question] = []domain.ScoredHit{
		regionHit("weak-match", "Loosely Related Guide", "general waste guidance", 0.30, domain.RegionUS),
	}
	fx.web.hits = []domain.ScoredHit{
		regionHit("web-result", "Municipal FAQ", "take it to the hazardous waste facility", 0.9, domain.RegionUnknown),
	}

	result, err := fx.orch.Respond(context.Background(), domain.TurnRequest{Question: question, Region: domain.RegionUS})
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if fx.web.callCount() != 1 {
		t.Fatalf("low confidence must trigger exactly one web lookup, got %d", fx.web.callCount())
	}

	var cited bool
	for _, c := range result.Citations {
		if c.DocumentID == "web-result" {
			cited = true
		}
	}
	if !cited {
		t.Fatalf("web hit missing from citations: %+v", result.Citations)
	}

	if len(fx.observer.webTriggers) != 1 || fx.observer.webTriggers[0] != string(WebSearchThreshold) {
		t.Fatalf("web trigger not observed: %v", fx.observer.webTriggers)
	}
}

func TestRespondRegionFallbackConsistency(t *testing.T) {
	fx := newDialogueFixture(RetrievalPolicy{Mode: WebSearchNever}, domain.RegionDE)

	question := "how do I get rid of an old mattress"
	fx.index.hits[question] = []domain.ScoredHit{
		// Region missing on the stored document.
		{Document: domain.Document{ID: "bulky", Title: "Bulky Waste Pickup", Excerpt: "bulky waste collection"}, Score: 0.8},
	}

	result, err := fx.orch.Respond(context.Background(), domain.TurnRequest{Question: question})
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if result.Region != domain.RegionDE {
		t.Fatalf("ambiguous question must resolve to the fallback region, got %s", result.Region)
	}
	for _, region := range fx.index.searchedRegions() {
		if region != domain.RegionDE {
			t.Fatalf("retrieval used region %s, want de everywhere", region)
		}
	}
	for _, c := range result.Citations {
		if c.Region != domain.RegionDE {
			t.Fatalf("citation region %s diverges from the resolved region", c.Region)
		}
	}
}

func TestRespondEmptyQuestionRejected(t *testing.T) {
	fx := newDialogueFixture(RetrievalPolicy{Mode: WebSearchNever}, domain.RegionUS)

	_, err := fx.orch.Respond(context.Background(), domain.TurnRequest{Question: "   "})
	if err == nil {
		t.Fatalf("expected an error for a blank question")
	}
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("error kind = %v, want invalid input", err)
	}
}

func TestRespondTurnIndexingAcrossSession(t *testing.T) {
	fx := newDialogueFixture(RetrievalPolicy{Mode: WebSearchNever}, domain.RegionUS)
	fx.index.hits["first question"] = []domain.ScoredHit{
		regionHit("a", "Guide A", "first excerpt", 0.8, domain.RegionUS),
	}
	fx.index.hits["second question"] = []domain.ScoredHit{
		regionHit("b", "Guide B", "second excerpt", 0.8, domain.RegionUS),
	}

	first, err := fx.orch.Respond(context.Background(), domain.TurnRequest{SessionID: "s-2", Question: "first question"})
	if err != nil {
		t.Fatalf("first turn: %v", err)
	}
	second, err := fx.orch.Respond(context.Background(), domain.TurnRequest{SessionID: "s-2", Question: "second question"})
	if err != nil {
		t.Fatalf("second turn: %v", err)
	}

	if first.TurnIndex != 1 || second.TurnIndex != 2 {
		t.Fatalf("turn indices = %d, %d, want 1, 2", first.TurnIndex, second.TurnIndex)
	}
	history, _ := fx.orch.History("s-2")
	if len(history.Turns) != 2 {
		t.Fatalf("expected two recorded turns, got %d", len(history.Turns))
	}
}

func TestRespondGeneratesSessionID(t *testing.T) {
	fx := newDialogueFixture(RetrievalPolicy{Mode: WebSearchNever}, domain.RegionUS)

	result, err := fx.orch.Respond(context.Background(), domain.TurnRequest{Question: "anything"})
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if result.SessionID == "" {
		t.Fatalf("missing session id must be generated")
	}
	if _, ok := fx.orch.History(result.SessionID); !ok {
		t.Fatalf("generated session must be addressable for history")
	}
}
