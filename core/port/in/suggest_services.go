// Package in defines inbound ports (driving ports) for the application.
package in

import (
	"context"
	"time"

	"github.com/google/uuid"

	"suggest_server/core/domain"
)

// RefreshOptions controls one suggestion refresh run
type RefreshOptions struct {
	// TimeBudget bounds provider ingestion, zero means unbounded
	TimeBudget time.Duration

	// MaxMessages overrides the configured per-provider message cap,
	// zero keeps the configured default
	MaxMessages int

	// PreserveExistingOnEmpty keeps the stored set when the new run
	// produced nothing
	PreserveExistingOnEmpty bool

	// Trigger names what started the refresh, used for audit metadata
	Trigger string
}

// SuggestionService defines suggestion pipeline operations
type SuggestionService interface {
	// Refresh runs the full pipeline and replaces the stored set
	Refresh(ctx context.Context, userID uuid.UUID, opts RefreshOptions) (*domain.RefreshResult, error)

	// List returns the stored suggestions for a user
	List(ctx context.Context, userID uuid.UUID, status domain.SuggestionStatus, limit int) ([]*domain.Suggestion, error)

	// Accept converts a suggestion into a task
	Accept(ctx context.Context, userID uuid.UUID, suggestionID int64) (*domain.Todo, error)

	// Dismiss marks a suggestion as rejected
	Dismiss(ctx context.Context, userID uuid.UUID, suggestionID int64) (*domain.Suggestion, error)
}

// DisconnectOptions qualifies a provider disconnect
type DisconnectOptions struct {
	Source                string
	Automatic             bool
	Reason                string
	MarkReconnectRequired bool
}

// ProviderService defines provider policy operations
type ProviderService interface {
	// Matrix returns the per-provider connection picture
	Matrix(ctx context.Context, userID uuid.UUID) (*domain.PolicyMatrix, error)

	// Connect marks a provider linked and ingest-enabled
	Connect(ctx context.Context, userID uuid.UUID, provider domain.EmailProvider) (*domain.PolicyMatrix, error)

	// Disconnect unlinks a provider and removes its tokens
	Disconnect(ctx context.Context, userID uuid.UUID, provider domain.EmailProvider, opts DisconnectOptions) (*domain.PolicyMatrix, error)

	// SetIngestEnabled toggles ingestion, enabling also links
	SetIngestEnabled(ctx context.Context, userID uuid.UUID, provider domain.EmailProvider, enabled bool) (*domain.PolicyMatrix, error)

	// AllowedProviders returns the providers ingestion may touch
	AllowedProviders(ctx context.Context, userID uuid.UUID) ([]domain.EmailProvider, error)

	// HandleProviderError inspects a provider failure and performs an
	// automatic disconnect on unrecoverable auth errors. Returns true
	// when a disconnect happened.
	HandleProviderError(ctx context.Context, userID uuid.UUID, provider domain.EmailProvider, cause error, source string) (bool, error)
}

// CreateTodoRequest carries a manual task creation
type CreateTodoRequest struct {
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
}

// TodoService defines task operations
type TodoService interface {
	CreateTodo(ctx context.Context, userID uuid.UUID, req *CreateTodoRequest) (*domain.Todo, error)
	GetTodo(ctx context.Context, userID uuid.UUID, todoID int64) (*domain.Todo, error)
	ListTodos(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.Todo, error)
}
