// Package vector implements the pgvector-backed context store for
// email embeddings.
package vector

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5/pgxpool"

	"suggest_server/core/domain"
	"suggest_server/core/port/out"
)

// ContextStore stores email embeddings in the email_embeddings table.
// Gmail and Outlook share the table, Outlook rows carry the "outlook:"
// ID prefix and are filtered with a LIKE clause.
type ContextStore struct {
	db *pgxpool.Pool
}

func NewContextStore(db *pgxpool.Pool) *ContextStore {
	return &ContextStore{db: db}
}

// UpsertMany writes embeddings in one transaction. Conflicts on
// (user_id, message_id) update the row in place so re-ingesting a
// window is idempotent.
func (s *ContextStore) UpsertMany(ctx context.Context, userID string, items []domain.EmailEmbedding) (int, error) {
	if len(items) == 0 {
		return 0, nil
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin upsert tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO email_embeddings (user_id, message_id, thread_id, subject, snippet, body, sent_at, metadata, embedding, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
		ON CONFLICT (user_id, message_id) DO UPDATE SET
			thread_id = EXCLUDED.thread_id,
			subject = EXCLUDED.subject,
			snippet = EXCLUDED.snippet,
			body = EXCLUDED.body,
			sent_at = EXCLUDED.sent_at,
			metadata = EXCLUDED.metadata,
			embedding = EXCLUDED.embedding,
			updated_at = NOW()
	`

	written := 0
	for _, item := range items {
		metadata, err := json.Marshal(item.Message.Metadata)
		if err != nil {
			return written, fmt.Errorf("marshal metadata for %s: %w", item.Message.MessageID, err)
		}

		_, err = tx.Exec(ctx, query,
			userID,
			item.Message.MessageID,
			item.Message.ThreadID,
			item.Message.Subject,
			item.Message.Snippet,
			item.Message.Body,
			item.Message.SentAt,
			metadata,
			pgVector(item.Embedding),
		)
		if err != nil {
			return written, fmt.Errorf("upsert embedding %s: %w", item.Message.MessageID, err)
		}
		written++
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit upsert tx: %w", err)
	}
	return written, nil
}

// SearchSimilar returns the nearest stored messages for the query
// vector, restricted to the given providers
func (s *ContextStore) SearchSimilar(ctx context.Context, userID string, query []float32, providers []domain.EmailProvider, topK int) ([]domain.EmailContext, error) {
	if topK <= 0 {
		topK = 12
	}

	sql := `
		SELECT message_id, subject, snippet, body, sent_at, metadata,
		       embedding <=> $2::vector AS distance
		FROM email_embeddings
		WHERE user_id = $1
		AND embedding IS NOT NULL
	` + providerClause(providers) + `
		ORDER BY embedding <=> $2::vector
		LIMIT $3
	`

	rows, err := s.db.Query(ctx, sql, userID, pgVector(query), topK)
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}
	defer rows.Close()

	return scanContexts(rows)
}

// ListRecent returns the newest stored messages, the retrieval
// fallback when similarity search has nothing to offer
func (s *ContextStore) ListRecent(ctx context.Context, userID string, providers []domain.EmailProvider, limit int) ([]domain.EmailContext, error) {
	if limit <= 0 {
		limit = 12
	}

	sql := `
		SELECT message_id, subject, snippet, body, sent_at, metadata,
		       0::float8 AS distance
		FROM email_embeddings
		WHERE user_id = $1
	` + providerClause(providers) + `
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := s.db.Query(ctx, sql, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent embeddings: %w", err)
	}
	defer rows.Close()

	return scanContexts(rows)
}

type contextRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanContexts(rows contextRows) ([]domain.EmailContext, error) {
	var contexts []domain.EmailContext
	for rows.Next() {
		var c domain.EmailContext
		var sentAt *time.Time
		var metadata []byte
		if err := rows.Scan(&c.MessageID, &c.Subject, &c.Snippet, &c.Body, &sentAt, &metadata, &c.Distance); err != nil {
			return nil, err
		}
		c.SentAt = sentAt
		if len(metadata) > 0 {
			_ = json.Unmarshal(metadata, &c.Metadata)
		}
		contexts = append(contexts, c)
	}
	return contexts, rows.Err()
}

// providerClause narrows rows to the allowed providers. An empty list
// matches nothing, callers with no allowed provider must get no
// contexts.
func providerClause(providers []domain.EmailProvider) string {
	var gmail, outlook bool
	for _, p := range providers {
		switch p {
		case domain.ProviderGmail:
			gmail = true
		case domain.ProviderOutlook:
			outlook = true
		}
	}

	switch {
	case gmail && outlook:
		return ""
	case gmail:
		return ` AND message_id NOT LIKE 'outlook:%'`
	case outlook:
		return ` AND message_id LIKE 'outlook:%'`
	default:
		return ` AND 1=0`
	}
}

// pgVector converts a float32 slice to the pgvector literal format
func pgVector(v []float32) string {
	if len(v) == 0 {
		return "[0]"
	}

	buf := make([]byte, 0, len(v)*13+2)
	buf = append(buf, '[')
	for i, f := range v {
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = strconv.AppendFloat(buf, float64(f), 'f', 6, 32)
	}
	buf = append(buf, ']')
	return string(buf)
}

var _ out.ContextStore = (*ContextStore)(nil)
