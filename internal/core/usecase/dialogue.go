package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wastewise/disposal-assistant/internal/core/domain"
	"github.com/wastewise/disposal-assistant/internal/core/ports"
)

var errQuestionRequired = errors.New("question is required")

// TurnState names the stations of the per-turn state machine.
type TurnState string

const (
	StateIdle               TurnState = "idle"
	StateRoutingRegion      TurnState = "routing_region"
	StateExpandingQuery     TurnState = "expanding_query"
	StateRetrieving         TurnState = "retrieving"
	StateFusing             TurnState = "fusing"
	StateResolvingCitations TurnState = "resolving_citations"
	StateGenerating         TurnState = "generating"
	StateResponded          TurnState = "responded"
)

const (
	fallbackNoSources       = "no_sources_found"
	fallbackGeneration      = "generation_unavailable"
	degradedAnswerText      = "I am unable to generate an answer right now. Please try again in a moment."
	publishTimeout          = 3 * time.Second
	defaultTurnTimeout      = 30 * time.Second
	defaultGenerateTimeout  = 20 * time.Second
	defaultFinalResultSize  = 5
	defaultFusionSmoothingK = 60
)

// DialogueLimits bounds one turn of the pipeline.
type DialogueLimits struct {
	TurnTimeout       time.Duration
	GenerationTimeout time.Duration
	FusionK           int
	FinalSize         int
}

func (l DialogueLimits) withDefaults() DialogueLimits {
	if l.TurnTimeout <= 0 {
		l.TurnTimeout = defaultTurnTimeout
	}
	if l.GenerationTimeout <= 0 {
		l.GenerationTimeout = defaultGenerateTimeout
	}
	if l.FusionK <= 0 {
		l.FusionK = defaultFusionSmoothingK
	}
	if l.FinalSize <= 0 {
		l.FinalSize = defaultFinalResultSize
	}
	return l
}

// DialogueOrchestrator sequences one conversation turn:
// Idle -> RoutingRegion -> ExpandingQuery -> Retrieving -> Fusing ->
// ResolvingCitations -> Generating -> Responded. Every step absorbs its
// own failures; a turn always reaches Responded, degrading to partial or
// empty context instead of surfacing upstream errors. Conversation history
// is appended exactly once, at Responded.
type DialogueOrchestrator struct {
	router    *RegionRouter
	expander  *QueryExpander
	fanout    *RetrievalFanOut
	mmr       MMRSelector
	policy    RetrievalPolicy
	generator ports.TextGenerator
	events    ports.TurnEventQueue
	limits    DialogueLimits
	observer  PipelineObserver
	logger    *slog.Logger

	mu       sync.Mutex
	sessions map[string]*sessionHandle
}

// sessionHandle serializes turns within one session; its state is owned by
// this orchestrator and mutated only at the Responded transition.
type sessionHandle struct {
	mu    sync.Mutex
	state *domain.ConversationState
}

func NewDialogueOrchestrator(
	router *RegionRouter,
	expander *QueryExpander,
	fanout *RetrievalFanOut,
	mmr MMRSelector,
	policy RetrievalPolicy,
	generator ports.TextGenerator,
	events ports.TurnEventQueue,
	limits DialogueLimits,
	observer PipelineObserver,
	logger *slog.Logger,
) *DialogueOrchestrator {
	if observer == nil {
		observer = noopObserver{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &DialogueOrchestrator{
		router:    router,
		expander:  expander,
		fanout:    fanout,
		mmr:       mmr,
		policy:    policy,
		generator: generator,
		events:    events,
		limits:    limits.withDefaults(),
		observer:  observer,
		logger:    logger,
		sessions:  make(map[string]*sessionHandle),
	}
}

// Respond runs one full turn. The only caller-visible error is invalid
// input; every upstream failure degrades inside the pipeline.
func (o *DialogueOrchestrator) Respond(ctx context.Context, req domain.TurnRequest) (*domain.TurnResult, error) {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "respond", errQuestionRequired)
	}

	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	handle := o.session(sessionID, req.Region)
	handle.mu.Lock()
	defer handle.mu.Unlock()

	turnStart := time.Now()
	turnCtx, cancel := context.WithTimeout(ctx, o.limits.TurnTimeout)
	defer cancel()

	query := domain.Query{
		Text:      question,
		Region:    domain.RegionUnknown,
		TurnIndex: handle.state.NextTurnIndex(),
	}

	explicit := req.Region
	if !explicit.Known() {
		explicit = handle.state.Region
	}

	var region domain.Region
	o.step(query.TurnIndex, StateRoutingRegion, func() string {
		region = o.router.Resolve(query, explicit)
		return "ok"
	})
	query.Region = region

	var subQueries []domain.SubQuery
	o.step(query.TurnIndex, StateExpandingQuery, func() string {
		subQueries = o.expander.Expand(turnCtx, query)
		if len(subQueries) == 1 {
			return "identity"
		}
		return "ok"
	})

	var mmrLists map[string]domain.RankedList
	o.step(query.TurnIndex, StateRetrieving, func() string {
		mmrLists = o.retrieve(turnCtx, query, subQueries, region)
		for _, list := range mmrLists {
			if !list.Empty() {
				return "ok"
			}
		}
		return "empty"
	})

	var fused domain.FusedResult
	o.step(query.TurnIndex, StateFusing, func() string {
		fused = FuseRRF(mmrLists, o.limits.FusionK, o.limits.FinalSize)
		o.observer.ObserveFusedSize(len(fused.Documents))
		if fused.Empty() {
			return "empty"
		}
		return "ok"
	})

	var citations []domain.Citation
	o.step(query.TurnIndex, StateResolvingCitations, func() string {
		citations = ResolveCitations(fused, region)
		return "ok"
	})

	answer := ""
	degraded := false
	fallbackReason := ""
	if fused.Empty() {
		fallbackReason = fallbackNoSources
	}
	o.step(query.TurnIndex, StateGenerating, func() string {
		genCtx, genCancel := context.WithTimeout(turnCtx, o.limits.GenerationTimeout)
		defer genCancel()

		generated, err := o.generator.GenerateAnswer(genCtx, query.Text, fused.Documents, citations)
		if err != nil {
			degraded = true
			fallbackReason = fallbackGeneration
			answer = degradedAnswerText
			o.observer.RecordDegradedTurn(fallbackReason)
			o.logger.Warn("answer_generation_degraded",
				"session_id", sessionID,
				"turn_index", query.TurnIndex,
				"error", err,
			)
			return "degraded"
		}
		answer = strings.TrimSpace(generated)
		if answer == "" {
			answer = "No relevant disposal guidance was found for this question."
		}
		return "ok"
	})

	turn := domain.Turn{
		TurnIndex:      query.TurnIndex,
		Question:       query.Text,
		Region:         region,
		Answer:         answer,
		Citations:      citations,
		SourceCount:    len(fused.Documents),
		Degraded:       degraded,
		FallbackReason: fallbackReason,
		CompletedAt:    time.Now().UTC(),
	}
	o.step(query.TurnIndex, StateResponded, func() string {
		handle.state.Append(turn)
		o.publishTurn(ctx, sessionID, turn, time.Since(turnStart))
		return "ok"
	})

	return &domain.TurnResult{
		SessionID:      sessionID,
		TurnIndex:      turn.TurnIndex,
		Region:         region,
		Answer:         answer,
		Citations:      citations,
		Degraded:       degraded,
		FallbackReason: fallbackReason,
	}, nil
}

// History returns a snapshot of the session's append-only state.
func (o *DialogueOrchestrator) History(sessionID string) (domain.ConversationState, bool) {
	o.mu.Lock()
	handle, ok := o.sessions[sessionID]
	o.mu.Unlock()
	if !ok {
		return domain.ConversationState{}, false
	}
	handle.mu.Lock()
	defer handle.mu.Unlock()
	return handle.state.Snapshot(), true
}

// retrieve runs the vector fan-out, applies MMR per list, then finalizes
// the retrieval plan. In threshold mode a low post-MMR confidence triggers
// the conditional web pass.
func (o *DialogueOrchestrator) retrieve(
	ctx context.Context,
	query domain.Query,
	subQueries []domain.SubQuery,
	region domain.Region,
) map[string]domain.RankedList {
	upfront := o.policy.PlanUpfront()
	lists := o.fanout.Retrieve(ctx, subQueries, region, upfront == domain.PlanVectorPlusWeb)

	out := make(map[string]domain.RankedList, len(lists)+1)
	bestScore := 0.0
	hasHits := false
	for sourceID, list := range lists {
		selected := o.mmr.Select(list)
		out[sourceID] = selected
		if sourceID == domain.WebSourceID {
			continue
		}
		if !selected.Empty() {
			hasHits = true
			if selected.BestScore() > bestScore {
				bestScore = selected.BestScore()
			}
		}
	}

	plan := o.policy.PlanAfter(bestScore, hasHits)
	if upfront == domain.PlanVectorPlusWeb {
		o.observer.RecordWebTrigger(string(WebSearchAlways))
		return out
	}
	if plan == domain.PlanVectorPlusWeb {
		o.observer.RecordWebTrigger(string(WebSearchThreshold))
		webList := o.fanout.RetrieveWeb(ctx, query.Text, region)
		out[domain.WebSourceID] = o.mmr.Select(webList)
	}
	return out
}

func (o *DialogueOrchestrator) publishTurn(ctx context.Context, sessionID string, turn domain.Turn, elapsed time.Duration) {
	if o.events == nil {
		return
	}
	// Audit publishing is best-effort and must not be cut short by an
	// already-expired turn deadline.
	publishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	record := domain.TurnRecord{
		ID:             uuid.NewString(),
		SessionID:      sessionID,
		TurnIndex:      turn.TurnIndex,
		Question:       turn.Question,
		Region:         turn.Region.String(),
		Answer:         turn.Answer,
		SourceCount:    turn.SourceCount,
		Degraded:       turn.Degraded,
		FallbackReason: turn.FallbackReason,
		DurationMS:     elapsed.Milliseconds(),
		CompletedAt:    turn.CompletedAt,
	}
	if err := o.events.PublishTurnCompleted(publishCtx, record); err != nil {
		o.logger.Warn("turn_audit_publish_failed",
			"session_id", sessionID,
			"turn_index", turn.TurnIndex,
			"error", err,
		)
	}
}

func (o *DialogueOrchestrator) session(sessionID string, explicit domain.Region) *sessionHandle {
	o.mu.Lock()
	defer o.mu.Unlock()
	if handle, ok := o.sessions[sessionID]; ok {
		return handle
	}
	handle := &sessionHandle{
		state: domain.NewConversationState(sessionID, explicit),
	}
	o.sessions[sessionID] = handle
	return handle
}

func (o *DialogueOrchestrator) step(turnIndex int, state TurnState, fn func() string) {
	start := time.Now()
	outcome := fn()
	duration := time.Since(start)
	o.observer.ObserveTransition(state, duration, outcome)
	o.logger.Debug("turn_transition",
		"turn_index", turnIndex,
		"state", string(state),
		"outcome", outcome,
		"duration_ms", float64(duration.Microseconds())/1000.0,
	)
}
