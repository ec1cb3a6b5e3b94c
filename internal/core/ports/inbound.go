package ports

import (
	"context"

	"github.com/wastewise/disposal-assistant/internal/core/domain"
)

// DialogueService is the inbound contract at the session boundary: one
// call per conversation turn.
type DialogueService interface {
	Respond(ctx context.Context, req domain.TurnRequest) (*domain.TurnResult, error)
	History(sessionID string) (domain.ConversationState, bool)
}

// TurnRecorder is the inbound contract of the audit worker.
type TurnRecorder interface {
	Record(ctx context.Context, record domain.TurnRecord) error
}
