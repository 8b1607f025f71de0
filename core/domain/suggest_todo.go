package domain

import (
	"time"

	"github.com/google/uuid"
)

// TodoStatus represents the status of a task
type TodoStatus string

const (
	TodoStatusPending    TodoStatus = "pending"
	TodoStatusTodo       TodoStatus = "todo"
	TodoStatusInProgress TodoStatus = "in_progress"
	TodoStatusBlocked    TodoStatus = "blocked"
	TodoStatusOpen       TodoStatus = "open"
	TodoStatusCompleted  TodoStatus = "completed"
	TodoStatusCancelled  TodoStatus = "cancelled"
)

// OpenTodoStatuses are the states counted as an unfinished backlog
var OpenTodoStatuses = []TodoStatus{
	TodoStatusPending,
	TodoStatusTodo,
	TodoStatusInProgress,
	TodoStatusBlocked,
	TodoStatusOpen,
}

// TodoSourceType represents where the task was created from
type TodoSourceType string

const (
	TodoSourceManual     TodoSourceType = "manual"
	TodoSourceSuggestion TodoSourceType = "suggestion"
)

// Todo represents a user task
type Todo struct {
	ID     int64     `json:"id"`
	UserID uuid.UUID `json:"user_id"`

	Title       string `json:"title"`
	Description string `json:"description,omitempty"`

	Status TodoStatus `json:"status"`

	DueDate *time.Time `json:"due_date,omitempty"`

	// Source linking, set when a suggestion is accepted
	SourceType   *TodoSourceType `json:"source_type,omitempty"`
	SuggestionID *int64          `json:"suggestion_id,omitempty"`

	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// IsOpen reports whether the task still needs attention
func (t *Todo) IsOpen() bool {
	for _, s := range OpenTodoStatuses {
		if t.Status == s {
			return true
		}
	}
	return false
}
