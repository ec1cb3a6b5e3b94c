package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/wastewise/disposal-assistant/internal/core/domain"
	"github.com/wastewise/disposal-assistant/internal/core/ports"
)

// TurnAuditUseCase persists turn-completed events consumed by the worker.
type TurnAuditUseCase struct {
	repo ports.TurnRepository
}

func NewTurnAuditUseCase(repo ports.TurnRepository) *TurnAuditUseCase {
	return &TurnAuditUseCase{repo: repo}
}

func (uc *TurnAuditUseCase) Record(ctx context.Context, record domain.TurnRecord) error {
	if strings.TrimSpace(record.ID) == "" {
		return domain.WrapError(domain.ErrInvalidInput, "record turn", fmt.Errorf("record id is required"))
	}
	if strings.TrimSpace(record.SessionID) == "" {
		return domain.WrapError(domain.ErrInvalidInput, "record turn", fmt.Errorf("session id is required"))
	}
	if err := uc.repo.InsertTurn(ctx, record); err != nil {
		return fmt.Errorf("insert turn record: %w", err)
	}
	return nil
}
