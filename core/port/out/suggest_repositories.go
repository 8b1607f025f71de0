package out

import (
	"context"
	"time"

	"github.com/google/uuid"

	"suggest_server/core/domain"
)

// SuggestionRepository persists the per-user suggestion set
type SuggestionRepository interface {
	// ReplaceForUser atomically swaps the user's suggestion set
	ReplaceForUser(ctx context.Context, userID uuid.UUID, suggestions []*domain.Suggestion) ([]*domain.Suggestion, error)

	// ListByUser returns suggestions filtered by status, newest first
	ListByUser(ctx context.Context, userID uuid.UUID, status domain.SuggestionStatus, limit int) ([]*domain.Suggestion, error)

	GetByID(ctx context.Context, userID uuid.UUID, id int64) (*domain.Suggestion, error)

	// UpdateStatus transitions a suggestion's lifecycle state
	UpdateStatus(ctx context.Context, userID uuid.UUID, id int64, status domain.SuggestionStatus) (*domain.Suggestion, error)

	// CountAcceptedSince counts accepted suggestions newer than since
	CountAcceptedSince(ctx context.Context, userID uuid.UUID, since time.Time) (int, error)
}

// TodoRepository persists user tasks and serves history mining
type TodoRepository interface {
	Create(ctx context.Context, todo *domain.Todo) (*domain.Todo, error)
	GetByID(ctx context.Context, userID uuid.UUID, id int64) (*domain.Todo, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.Todo, error)

	// ListRecent returns the newest tasks for history mining
	ListRecent(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.Todo, error)

	// CountCreated counts all tasks the user ever created
	CountCreated(ctx context.Context, userID uuid.UUID) (int, error)

	// CountOpen counts tasks in an unfinished status
	CountOpen(ctx context.Context, userID uuid.UUID) (int, error)
}

// PolicyRepository persists per-provider connection policies
type PolicyRepository interface {
	// ListByUser returns the user's explicit policy rows. Providers
	// the user never touched have no row
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.ProviderPolicy, error)

	GetByProvider(ctx context.Context, userID uuid.UUID, provider domain.EmailProvider) (*domain.ProviderPolicy, error)

	Upsert(ctx context.Context, policy *domain.ProviderPolicy) (*domain.ProviderPolicy, error)
}

// CursorRepository persists per-provider ingestion watermarks
type CursorRepository interface {
	Get(ctx context.Context, userID string, provider domain.EmailProvider) (*domain.IngestCursor, error)
	Upsert(ctx context.Context, cursor *domain.IngestCursor) error
}

// TokenRepository persists OAuth connections with encrypted tokens
type TokenRepository interface {
	GetByUserAndProvider(ctx context.Context, userID uuid.UUID, provider domain.EmailProvider) (*domain.OAuthConnection, error)
	Upsert(ctx context.Context, conn *domain.OAuthConnection) error
	Delete(ctx context.Context, userID uuid.UUID, provider domain.EmailProvider) error

	// ListUserIDsWithTokens returns users holding at least one token,
	// used by the periodic refresh sweep
	ListUserIDsWithTokens(ctx context.Context) ([]uuid.UUID, error)
}

// ContextStore is the vector store holding email embeddings
type ContextStore interface {
	// UpsertMany writes embeddings transactionally, conflicts on
	// (user_id, message_id) update in place
	UpsertMany(ctx context.Context, userID string, items []domain.EmailEmbedding) (int, error)

	// SearchSimilar returns the nearest stored messages for the query
	// vector, filtered to the given providers
	SearchSimilar(ctx context.Context, userID string, query []float32, providers []domain.EmailProvider, topK int) ([]domain.EmailContext, error)

	// ListRecent returns the newest stored messages as a retrieval
	// fallback
	ListRecent(ctx context.Context, userID string, providers []domain.EmailProvider, limit int) ([]domain.EmailContext, error)
}

// EventSink records audit events. Implementations are best-effort and
// must not block the caller's main path.
type EventSink interface {
	Log(ctx context.Context, event *domain.EventLog) error
}

// PolicyCache caches the per-user policy matrix
type PolicyCache interface {
	GetMatrix(ctx context.Context, userID string) (*domain.PolicyMatrix, bool, error)
	SetMatrix(ctx context.Context, userID string, matrix *domain.PolicyMatrix, ttl time.Duration) error
	Invalidate(ctx context.Context, userID string) error
}
