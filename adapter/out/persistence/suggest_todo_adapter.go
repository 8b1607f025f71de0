package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"suggest_server/core/domain"
	"suggest_server/core/port/out"
	"suggest_server/pkg/snowflake"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// TodoRepository implements out.TodoRepository
type TodoRepository struct {
	db *sqlx.DB
}

// NewTodoRepository creates a new TodoRepository
func NewTodoRepository(db *sqlx.DB) out.TodoRepository {
	return &TodoRepository{db: db}
}

const todoColumns = `id, user_id, title, description, status, due_date,
	       source_type, suggestion_id, completed_at, created_at, updated_at`

func (r *TodoRepository) Create(ctx context.Context, todo *domain.Todo) (*domain.Todo, error) {
	if todo.ID == 0 {
		todo.ID = snowflake.ID()
	}
	if todo.CreatedAt.IsZero() {
		todo.CreatedAt = time.Now()
	}
	todo.UpdatedAt = time.Now()

	query := `
		INSERT INTO todos (
			id, user_id, title, description, status, due_date,
			source_type, suggestion_id, completed_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := r.db.ExecContext(ctx, query,
		todo.ID, todo.UserID, todo.Title, todo.Description, todo.Status,
		todo.DueDate, todo.SourceType, todo.SuggestionID,
		todo.CompletedAt, todo.CreatedAt, todo.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("create todo: %w", err)
	}

	return todo, nil
}

func (r *TodoRepository) GetByID(ctx context.Context, userID uuid.UUID, id int64) (*domain.Todo, error) {
	query := `
		SELECT ` + todoColumns + `
		FROM todos
		WHERE user_id = $1 AND id = $2`

	var row todoRow
	if err := r.db.GetContext(ctx, &row, query, userID, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get todo: %w", err)
	}

	return row.toDomain(), nil
}

func (r *TodoRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.Todo, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT ` + todoColumns + `
		FROM todos
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`

	var rows []todoRow
	if err := r.db.SelectContext(ctx, &rows, query, userID, limit, offset); err != nil {
		return nil, fmt.Errorf("list todos: %w", err)
	}

	return rowsToDomain(rows), nil
}

func (r *TodoRepository) ListRecent(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.Todo, error) {
	if limit <= 0 {
		limit = 200
	}

	query := `
		SELECT ` + todoColumns + `
		FROM todos
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	var rows []todoRow
	if err := r.db.SelectContext(ctx, &rows, query, userID, limit); err != nil {
		return nil, fmt.Errorf("list recent todos: %w", err)
	}

	return rowsToDomain(rows), nil
}

func (r *TodoRepository) CountCreated(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM todos WHERE user_id = $1", userID)
	if err != nil {
		return 0, fmt.Errorf("count created todos: %w", err)
	}
	return count, nil
}

func (r *TodoRepository) CountOpen(ctx context.Context, userID uuid.UUID) (int, error) {
	statuses := make([]string, len(domain.OpenTodoStatuses))
	for i, s := range domain.OpenTodoStatuses {
		statuses[i] = string(s)
	}

	var count int
	err := r.db.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM todos WHERE user_id = $1 AND status = ANY($2)",
		userID, pq.Array(statuses))
	if err != nil {
		return 0, fmt.Errorf("count open todos: %w", err)
	}
	return count, nil
}

type todoRow struct {
	ID           int64          `db:"id"`
	UserID       uuid.UUID      `db:"user_id"`
	Title        string         `db:"title"`
	Description  sql.NullString `db:"description"`
	Status       string         `db:"status"`
	DueDate      sql.NullTime   `db:"due_date"`
	SourceType   sql.NullString `db:"source_type"`
	SuggestionID sql.NullInt64  `db:"suggestion_id"`
	CompletedAt  sql.NullTime   `db:"completed_at"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
}

func (r *todoRow) toDomain() *domain.Todo {
	todo := &domain.Todo{
		ID:          r.ID,
		UserID:      r.UserID,
		Title:       r.Title,
		Description: r.Description.String,
		Status:      domain.TodoStatus(r.Status),
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}

	if r.DueDate.Valid {
		todo.DueDate = &r.DueDate.Time
	}
	if r.SourceType.Valid {
		st := domain.TodoSourceType(r.SourceType.String)
		todo.SourceType = &st
	}
	if r.SuggestionID.Valid {
		todo.SuggestionID = &r.SuggestionID.Int64
	}
	if r.CompletedAt.Valid {
		todo.CompletedAt = &r.CompletedAt.Time
	}

	return todo
}

func rowsToDomain(rows []todoRow) []*domain.Todo {
	todos := make([]*domain.Todo, len(rows))
	for i, row := range rows {
		todos[i] = row.toDomain()
	}
	return todos
}
