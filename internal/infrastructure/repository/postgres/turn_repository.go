package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/wastewise/disposal-assistant/internal/core/domain"
)

// TurnRepository persists the turn audit trail consumed from the event
// queue. It is append-only; rows exist to diagnose degraded answers.
type TurnRepository struct {
	db *sql.DB
}

func NewTurnRepository(db *sql.DB) *TurnRepository {
	return &TurnRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *TurnRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026082401)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS turn_audit (
	id TEXT PRIMARY KEY,
	session_id TEXT NOT NULL,
	turn_index INTEGER NOT NULL,
	question TEXT NOT NULL,
	region TEXT NOT NULL,
	answer TEXT NOT NULL,
	source_count INTEGER NOT NULL DEFAULT 0,
	degraded BOOLEAN NOT NULL DEFAULT FALSE,
	fallback_reason TEXT,
	duration_ms BIGINT NOT NULL DEFAULT 0,
	completed_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_turn_audit_session ON turn_audit(session_id, turn_index);
CREATE INDEX IF NOT EXISTS idx_turn_audit_completed_at ON turn_audit(completed_at DESC);
CREATE INDEX IF NOT EXISTS idx_turn_audit_degraded ON turn_audit(degraded) WHERE degraded;
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *TurnRepository) InsertTurn(ctx context.Context, record domain.TurnRecord) error {
	if record.CompletedAt.IsZero() {
		record.CompletedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO turn_audit (
	id, session_id, turn_index, question, region, answer, source_count, degraded, fallback_reason, duration_ms, completed_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
ON CONFLICT (id) DO NOTHING
`,
		record.ID, record.SessionID, record.TurnIndex, record.Question, record.Region, record.Answer,
		record.SourceCount, record.Degraded, nullableString(record.FallbackReason), record.DurationMS, record.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("insert turn audit: %w", err)
	}
	return nil
}

func (r *TurnRepository) ListRecentTurns(ctx context.Context, sessionID string, limit int) ([]domain.TurnRecord, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, session_id, turn_index, question, region, answer, source_count, degraded, COALESCE(fallback_reason, ''), duration_ms, completed_at
FROM turn_audit
WHERE session_id = $1
ORDER BY turn_index DESC
LIMIT $2
`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent turns: %w", err)
	}
	defer rows.Close()

	out := make([]domain.TurnRecord, 0, limit)
	for rows.Next() {
		var record domain.TurnRecord
		if err := rows.Scan(
			&record.ID,
			&record.SessionID,
			&record.TurnIndex,
			&record.Question,
			&record.Region,
			&record.Answer,
			&record.SourceCount,
			&record.Degraded,
			&record.FallbackReason,
			&record.DurationMS,
			&record.CompletedAt,
		); err != nil {
			return nil, fmt.Errorf("scan turn audit row: %w", err)
		}
		out = append(out, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate turn audit rows: %w", err)
	}

	// SQL returns newest first; reverse to chronological order.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func nullableString(v string) interface{} {
	if v == "" {
		return nil
	}
	return v
}
