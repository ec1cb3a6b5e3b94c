package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/wastewise/disposal-assistant/internal/core/domain"
)

type fakeTurnRepo struct {
	inserted []domain.TurnRecord
	err      error
}

func (r *fakeTurnRepo) InsertTurn(_ context.Context, record domain.TurnRecord) error {
	if r.err != nil {
		return r.err
	}
	r.inserted = append(r.inserted, record)
	return nil
}

func (r *fakeTurnRepo) ListRecentTurns(context.Context, string, int) ([]domain.TurnRecord, error) {
	return r.inserted, nil
}

func auditRecord() domain.TurnRecord {
	return domain.TurnRecord{
		ID:          "rec-1",
		SessionID:   "s-1",
		TurnIndex:   1,
		Question:    "where do batteries go",
		Region:      "us",
		Answer:      "take them to a battery drop-off. [1]",
		SourceCount: 3,
		DurationMS:  412,
		CompletedAt: time.Now().UTC(),
	}
}

func TestTurnAuditRecord(t *testing.T) {
	repo := &fakeTurnRepo{}
	uc := NewTurnAuditUseCase(repo)

	if err := uc.Record(context.Background(), auditRecord()); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if len(repo.inserted) != 1 || repo.inserted[0].ID != "rec-1" {
		t.Fatalf("record not persisted: %+v", repo.inserted)
	}
}

func TestTurnAuditRecordValidation(t *testing.T) {
	repo := &fakeTurnRepo{}
	uc := NewTurnAuditUseCase(repo)

	missingID := auditRecord()
	missingID.ID = " "
	if err := uc.Record(context.Background(), missingID); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("missing id: err = %v, want invalid input", err)
	}

	missingSession := auditRecord()
	missingSession.SessionID = ""
	if err := uc.Record(context.Background(), missingSession); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("missing session: err = %v, want invalid input", err)
	}
	if len(repo.inserted) != 0 {
		t.Fatalf("invalid records must not be persisted")
	}
}

func TestTurnAuditRecordRepoError(t *testing.T) {
	repo := &fakeTurnRepo{err: errors.New("connection refused")}
	uc := NewTurnAuditUseCase(repo)

	if err := uc.Record(context.Background(), auditRecord()); err == nil {
		t.Fatalf("expected repository error to propagate")
	}
}
