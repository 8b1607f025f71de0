package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"suggest_server/core/domain"
	"suggest_server/core/port/out"
	"suggest_server/pkg/snowflake"

	"github.com/jmoiron/sqlx"
)

// CursorRepository implements out.CursorRepository
type CursorRepository struct {
	db *sqlx.DB
}

// NewCursorRepository creates a new CursorRepository
func NewCursorRepository(db *sqlx.DB) out.CursorRepository {
	return &CursorRepository{db: db}
}

func (r *CursorRepository) Get(ctx context.Context, userID string, provider domain.EmailProvider) (*domain.IngestCursor, error) {
	query := `
		SELECT id, user_id, provider, last_internal_ms, last_history_id, last_received_at, last_message_id, updated_at
		FROM ingest_cursors
		WHERE user_id = $1 AND provider = $2`

	var row cursorRow
	if err := r.db.GetContext(ctx, &row, query, userID, provider); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get cursor: %w", err)
	}

	return row.toDomain(), nil
}

func (r *CursorRepository) Upsert(ctx context.Context, cursor *domain.IngestCursor) error {
	if cursor.ID == 0 {
		cursor.ID = snowflake.ID()
	}

	query := `
		INSERT INTO ingest_cursors (id, user_id, provider, last_internal_ms, last_history_id, last_received_at, last_message_id, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		ON CONFLICT (user_id, provider) DO UPDATE SET
			last_internal_ms = EXCLUDED.last_internal_ms,
			last_history_id = EXCLUDED.last_history_id,
			last_received_at = EXCLUDED.last_received_at,
			last_message_id = EXCLUDED.last_message_id,
			updated_at = NOW()`

	_, err := r.db.ExecContext(ctx, query,
		cursor.ID, cursor.UserID, cursor.Provider,
		cursor.LastInternalMs, int64(cursor.LastHistoryID), cursor.LastReceivedAt, cursor.LastMessageID,
	)
	if err != nil {
		return fmt.Errorf("upsert cursor: %w", err)
	}
	return nil
}

type cursorRow struct {
	ID             int64          `db:"id"`
	UserID         string         `db:"user_id"`
	Provider       string         `db:"provider"`
	LastInternalMs sql.NullInt64  `db:"last_internal_ms"`
	LastHistoryID  sql.NullInt64  `db:"last_history_id"`
	LastReceivedAt sql.NullTime   `db:"last_received_at"`
	LastMessageID  sql.NullString `db:"last_message_id"`
	UpdatedAt      time.Time      `db:"updated_at"`
}

func (r *cursorRow) toDomain() *domain.IngestCursor {
	cursor := &domain.IngestCursor{
		ID:        r.ID,
		UserID:    r.UserID,
		Provider:  domain.EmailProvider(r.Provider),
		UpdatedAt: r.UpdatedAt,
	}

	if r.LastInternalMs.Valid {
		cursor.LastInternalMs = r.LastInternalMs.Int64
	}
	if r.LastHistoryID.Valid {
		cursor.LastHistoryID = uint64(r.LastHistoryID.Int64)
	}
	if r.LastReceivedAt.Valid {
		cursor.LastReceivedAt = &r.LastReceivedAt.Time
	}
	if r.LastMessageID.Valid {
		cursor.LastMessageID = r.LastMessageID.String
	}

	return cursor
}
