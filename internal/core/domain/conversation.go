package domain

import "time"

// Query is one immutable user question within a session.
type Query struct {
	Text      string `json:"text"`
	Region    Region `json:"region"`
	TurnIndex int    `json:"turn_index"`
}

// SubQuery is a paraphrase or decomposition of a Query, used to widen
// retrieval recall. ParentText references the originating query for
// provenance only. Index 0 is always the verbatim original.
type SubQuery struct {
	Text       string `json:"text"`
	ParentText string `json:"parent_text"`
	Index      int    `json:"index"`
}

// Turn is one completed question/answer exchange. Turns are appended to
// ConversationState only after the answer is produced, so the history
// never contains partially-completed turns.
type Turn struct {
	TurnIndex      int        `json:"turn_index"`
	Question       string     `json:"question"`
	Region         Region     `json:"region"`
	Answer         string     `json:"answer"`
	Citations      []Citation `json:"citations"`
	SourceCount    int        `json:"source_count"`
	Degraded       bool       `json:"degraded"`
	FallbackReason string     `json:"fallback_reason,omitempty"`
	CompletedAt    time.Time  `json:"completed_at"`
}

// ConversationState is the append-only per-session history. It is owned by
// exactly one orchestrator instance; other components receive values and
// never mutate it in place.
type ConversationState struct {
	SessionID string `json:"session_id"`
	Region    Region `json:"region"`
	Turns     []Turn `json:"turns"`
}

func NewConversationState(sessionID string, explicitRegion Region) *ConversationState {
	return &ConversationState{
		SessionID: sessionID,
		Region:    explicitRegion,
		Turns:     make([]Turn, 0, 8),
	}
}

func (s *ConversationState) Append(turn Turn) {
	s.Turns = append(s.Turns, turn)
}

// NextTurnIndex is 1-based.
func (s *ConversationState) NextTurnIndex() int {
	return len(s.Turns) + 1
}

// Snapshot returns a copy safe to hand to callers.
func (s *ConversationState) Snapshot() ConversationState {
	out := ConversationState{
		SessionID: s.SessionID,
		Region:    s.Region,
		Turns:     make([]Turn, len(s.Turns)),
	}
	copy(out.Turns, s.Turns)
	return out
}

// TurnRequest crosses the session boundary inbound.
type TurnRequest struct {
	SessionID string `json:"session_id,omitempty"`
	Question  string `json:"question"`
	Region    Region `json:"region,omitempty"`
}

// TurnResult crosses the session boundary outbound.
type TurnResult struct {
	SessionID      string     `json:"session_id"`
	TurnIndex      int        `json:"turn_index"`
	Region         Region     `json:"region"`
	Answer         string     `json:"answer"`
	Citations      []Citation `json:"citations"`
	Degraded       bool       `json:"degraded"`
	FallbackReason string     `json:"fallback_reason,omitempty"`
}

// TurnRecord is the audit event emitted for every completed turn. It is
// what the worker persists for diagnosing degraded-answer incidents.
type TurnRecord struct {
	ID             string    `json:"id"`
	SessionID      string    `json:"session_id"`
	TurnIndex      int       `json:"turn_index"`
	Question       string    `json:"question"`
	Region         string    `json:"region"`
	Answer         string    `json:"answer"`
	SourceCount    int       `json:"source_count"`
	Degraded       bool      `json:"degraded"`
	FallbackReason string    `json:"fallback_reason,omitempty"`
	DurationMS     int64     `json:"duration_ms"`
	CompletedAt    time.Time `json:"completed_at"`
}
