package ports

import (
	"context"

	"github.com/wastewise/disposal-assistant/internal/core/domain"
)

// Embedder builds the query vector used for semantic index lookups.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// DocumentStore performs region-scoped semantic search over the regulatory
// index. Hits come back ordered by descending similarity score; SourceID
// and Rank are assigned by the caller.
type DocumentStore interface {
	Search(ctx context.Context, queryVector []float32, region domain.Region, topK int) ([]domain.ScoredHit, error)
}

// WebSearcher performs a live, region-scoped web search and returns
// URL-bearing hits.
type WebSearcher interface {
	Search(ctx context.Context, queryText string, region domain.Region, topK int) ([]domain.ScoredHit, error)
}

// TextGenerator is the black-box language-generation capability, used for
// query paraphrasing and for final answer synthesis.
type TextGenerator interface {
	GenerateAnswer(ctx context.Context, question string, context []domain.FusedDocument, citations []domain.Citation) (string, error)
	GenerateJSONFromPrompt(ctx context.Context, prompt string) (string, error)
}

// TurnEventQueue carries turn-completed audit events from the API process
// to the audit worker.
type TurnEventQueue interface {
	PublishTurnCompleted(ctx context.Context, record domain.TurnRecord) error
	SubscribeTurnCompleted(ctx context.Context, handler func(context.Context, domain.TurnRecord) error) error
}

// TurnRepository persists turn audit records.
type TurnRepository interface {
	InsertTurn(ctx context.Context, record domain.TurnRecord) error
	ListRecentTurns(ctx context.Context, sessionID string, limit int) ([]domain.TurnRecord, error)
}
