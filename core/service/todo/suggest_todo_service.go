// Package todo implements task CRUD on top of the todo repository.
package todo

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"suggest_server/core/domain"
	"suggest_server/core/port/in"
	"suggest_server/core/port/out"
	"suggest_server/pkg/apperr"
)

// Service implements task operations
type Service struct {
	todos out.TodoRepository
}

func NewService(todos out.TodoRepository) *Service {
	return &Service{todos: todos}
}

func (s *Service) CreateTodo(ctx context.Context, userID uuid.UUID, req *in.CreateTodoRequest) (*domain.Todo, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, apperr.MissingField("title")
	}

	sourceType := domain.TodoSourceManual
	return s.todos.Create(ctx, &domain.Todo{
		UserID:      userID,
		Title:       title,
		Description: strings.TrimSpace(req.Description),
		Status:      domain.TodoStatusPending,
		DueDate:     req.DueDate,
		SourceType:  &sourceType,
	})
}

func (s *Service) GetTodo(ctx context.Context, userID uuid.UUID, todoID int64) (*domain.Todo, error) {
	return s.todos.GetByID(ctx, userID, todoID)
}

func (s *Service) ListTodos(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.Todo, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.todos.ListByUser(ctx, userID, limit, offset)
}

var _ in.TodoService = (*Service)(nil)
