package http

import (
	"strconv"

	in "suggest_server/core/port/in"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// TodoHandler handles HTTP requests for task operations
type TodoHandler struct {
	service in.TodoService
}

// NewTodoHandler creates a new TodoHandler
func NewTodoHandler(service in.TodoService) *TodoHandler {
	return &TodoHandler{service: service}
}

// Register registers todo routes
func (h *TodoHandler) Register(router fiber.Router) {
	todos := router.Group("/todos")

	todos.Get("/", h.List)
	todos.Post("/", h.Create)
	todos.Get("/:id", h.Get)
}

// List lists the user's tasks
// @Summary List tasks
// @Tags Todos
// @Produce json
// @Param limit query int false "Limit (default 20)"
// @Param offset query int false "Offset"
// @Success 200 {object} fiber.Map
// @Router /api/v1/todos [get]
func (h *TodoHandler) List(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(uuid.UUID)

	limit := c.QueryInt("limit", 20)
	offset := c.QueryInt("offset", 0)

	todos, err := h.service.ListTodos(c.Context(), userID, limit, offset)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"todos":  todos,
		"count":  len(todos),
		"limit":  limit,
		"offset": offset,
	})
}

// Create creates a new task
// @Summary Create a task
// @Tags Todos
// @Accept json
// @Produce json
// @Param request body in.CreateTodoRequest true "Task data"
// @Success 201 {object} domain.Todo
// @Router /api/v1/todos [post]
func (h *TodoHandler) Create(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(uuid.UUID)

	var req in.CreateTodoRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid request body"})
	}

	todo, err := h.service.CreateTodo(c.Context(), userID, &req)
	if err != nil {
		return err
	}

	return c.Status(201).JSON(todo)
}

// Get retrieves a task by ID
// @Summary Get a task by ID
// @Tags Todos
// @Produce json
// @Param id path int true "Task ID"
// @Success 200 {object} domain.Todo
// @Router /api/v1/todos/{id} [get]
func (h *TodoHandler) Get(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(uuid.UUID)

	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid todo ID"})
	}

	todo, err := h.service.GetTodo(c.Context(), userID, id)
	if err != nil {
		return err
	}

	return c.JSON(todo)
}
