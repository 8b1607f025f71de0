package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"suggest_server/core/domain"
	"suggest_server/core/port/out"
	"suggest_server/pkg/snowflake"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// SuggestionRepository implements out.SuggestionRepository
type SuggestionRepository struct {
	db *sqlx.DB
}

// NewSuggestionRepository creates a new SuggestionRepository
func NewSuggestionRepository(db *sqlx.DB) out.SuggestionRepository {
	return &SuggestionRepository{db: db}
}

const suggestionColumns = `id, user_id, title, detail, source, source_label,
	       source_message_ids, confidence, status, metadata,
	       created_at, updated_at`

// ReplaceForUser swaps the user's active suggestion set in one
// transaction. Accepted and dismissed rows are kept for history.
func (r *SuggestionRepository) ReplaceForUser(ctx context.Context, userID uuid.UUID, suggestions []*domain.Suggestion) ([]*domain.Suggestion, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`DELETE FROM ai_suggestions WHERE user_id = $1 AND status = $2`,
		userID, domain.SuggestionStatusSuggested)
	if err != nil {
		return nil, fmt.Errorf("clear suggestions: %w", err)
	}

	now := time.Now()
	stored := make([]*domain.Suggestion, 0, len(suggestions))
	for _, s := range suggestions {
		if s.ID == 0 {
			s.ID = snowflake.ID()
		}
		s.UserID = userID
		s.Status = domain.SuggestionStatusSuggested
		s.CreatedAt = now
		s.UpdatedAt = now

		metadata, _ := json.Marshal(s.Metadata)

		_, err := tx.ExecContext(ctx, `
			INSERT INTO ai_suggestions (
				id, user_id, title, detail, source, source_label,
				source_message_ids, confidence, status, metadata,
				created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
			s.ID, s.UserID, s.Title, s.Detail, s.Source, s.SourceLabel,
			pq.Array(s.SourceMessageIDs), s.Confidence, s.Status, metadata,
			s.CreatedAt, s.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("insert suggestion: %w", err)
		}
		stored = append(stored, s)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return stored, nil
}

func (r *SuggestionRepository) ListByUser(ctx context.Context, userID uuid.UUID, status domain.SuggestionStatus, limit int) ([]*domain.Suggestion, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT ` + suggestionColumns + `
		FROM ai_suggestions
		WHERE user_id = $1 AND status = $2
		ORDER BY created_at DESC, id DESC
		LIMIT $3`

	var rows []suggestionRow
	if err := r.db.SelectContext(ctx, &rows, query, userID, status, limit); err != nil {
		return nil, fmt.Errorf("list suggestions: %w", err)
	}

	suggestions := make([]*domain.Suggestion, len(rows))
	for i, row := range rows {
		suggestions[i] = row.toDomain()
	}
	return suggestions, nil
}

func (r *SuggestionRepository) GetByID(ctx context.Context, userID uuid.UUID, id int64) (*domain.Suggestion, error) {
	query := `
		SELECT ` + suggestionColumns + `
		FROM ai_suggestions
		WHERE user_id = $1 AND id = $2`

	var row suggestionRow
	if err := r.db.GetContext(ctx, &row, query, userID, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get suggestion: %w", err)
	}

	return row.toDomain(), nil
}

func (r *SuggestionRepository) UpdateStatus(ctx context.Context, userID uuid.UUID, id int64, status domain.SuggestionStatus) (*domain.Suggestion, error) {
	query := `
		UPDATE ai_suggestions
		SET status = $3, updated_at = NOW()
		WHERE user_id = $1 AND id = $2
		RETURNING ` + suggestionColumns

	var row suggestionRow
	if err := r.db.GetContext(ctx, &row, query, userID, id, status); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("update suggestion status: %w", err)
	}

	return row.toDomain(), nil
}

func (r *SuggestionRepository) CountAcceptedSince(ctx context.Context, userID uuid.UUID, since time.Time) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM ai_suggestions
		 WHERE user_id = $1 AND status = $2 AND updated_at >= $3`,
		userID, domain.SuggestionStatusAccepted, since)
	if err != nil {
		return 0, fmt.Errorf("count accepted suggestions: %w", err)
	}
	return count, nil
}

type suggestionRow struct {
	ID               int64           `db:"id"`
	UserID           uuid.UUID       `db:"user_id"`
	Title            string          `db:"title"`
	Detail           sql.NullString  `db:"detail"`
	Source           string          `db:"source"`
	SourceLabel      sql.NullString  `db:"source_label"`
	SourceMessageIDs pq.StringArray  `db:"source_message_ids"`
	Confidence       sql.NullFloat64 `db:"confidence"`
	Status           string          `db:"status"`
	Metadata         []byte          `db:"metadata"`
	CreatedAt        time.Time       `db:"created_at"`
	UpdatedAt        time.Time       `db:"updated_at"`
}

func (r *suggestionRow) toDomain() *domain.Suggestion {
	s := &domain.Suggestion{
		ID:               r.ID,
		UserID:           r.UserID,
		Title:            r.Title,
		Detail:           r.Detail.String,
		Source:           r.Source,
		SourceLabel:      r.SourceLabel.String,
		SourceMessageIDs: r.SourceMessageIDs,
		Status:           domain.SuggestionStatus(r.Status),
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}

	if r.Confidence.Valid {
		s.Confidence = &r.Confidence.Float64
	}
	if len(r.Metadata) > 0 {
		json.Unmarshal(r.Metadata, &s.Metadata)
	}

	return s
}
