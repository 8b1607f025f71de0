package http

import (
	"strconv"
	"time"

	"suggest_server/core/domain"
	in "suggest_server/core/port/in"
	"suggest_server/pkg/ratelimit"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// CatchUpTrigger starts an asynchronous refresh for users whose last
// run is stale. Implemented by the background scheduler.
type CatchUpTrigger interface {
	MaybeCatchUp(userID uuid.UUID) bool
	MarkRefreshed(userID uuid.UUID)
}

// SuggestionHandler handles HTTP requests for AI task suggestions
type SuggestionHandler struct {
	service   in.SuggestionService
	catchUp   CatchUpTrigger
	protector *ratelimit.Protector
}

// NewSuggestionHandler creates a new SuggestionHandler. catchUp may be
// nil when the process runs without the background scheduler.
func NewSuggestionHandler(service in.SuggestionService, catchUp CatchUpTrigger, protector *ratelimit.Protector) *SuggestionHandler {
	return &SuggestionHandler{service: service, catchUp: catchUp, protector: protector}
}

// Register registers suggestion routes
func (h *SuggestionHandler) Register(router fiber.Router) {
	suggestions := router.Group("/suggestions")

	suggestions.Get("/", h.List)
	suggestions.Post("/refresh", h.Refresh)
	suggestions.Post("/:id/accept", h.Accept)
	suggestions.Post("/:id/dismiss", h.Dismiss)
}

// List lists stored suggestions
// @Summary List AI task suggestions
// @Tags Suggestions
// @Produce json
// @Param status query string false "Filter by status (default suggested)"
// @Param limit query int false "Limit (default 20)"
// @Success 200 {object} fiber.Map
// @Router /api/v1/suggestions [get]
func (h *SuggestionHandler) List(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(uuid.UUID)

	status := domain.SuggestionStatus(c.Query("status", string(domain.SuggestionStatusSuggested)))
	limit := c.QueryInt("limit", 20)

	suggestions, err := h.service.List(c.Context(), userID, status, limit)
	if err != nil {
		return err
	}

	// A read doubles as the catch-up entry point, a stale set kicks
	// off a background refresh while the current set is returned
	catchUpStarted := false
	if h.catchUp != nil && status == domain.SuggestionStatusSuggested {
		catchUpStarted = h.catchUp.MaybeCatchUp(userID)
	}

	return c.JSON(fiber.Map{
		"suggestions":    suggestions,
		"count":          len(suggestions),
		"catchUpStarted": catchUpStarted,
	})
}

// Refresh runs the suggestion pipeline synchronously
// @Summary Refresh AI task suggestions
// @Tags Suggestions
// @Produce json
// @Param maxMessages query int false "Per-provider message cap, clamped to 200"
// @Param timeBudgetMs query int false "Time budget in milliseconds, clamped to 1s..5min"
// @Success 200 {object} domain.RefreshResult
// @Router /api/v1/suggestions/refresh [post]
func (h *SuggestionHandler) Refresh(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(uuid.UUID)

	// Manual refreshes are expensive, repeated requests inside the
	// debounce window are rejected instead of queued
	if h.protector != nil {
		admit, release := h.protector.Acquire(c.Context(), "refresh:"+userID.String())
		if !admit.Allowed {
			return c.Status(429).JSON(fiber.Map{
				"error":  "refresh already requested, try again shortly",
				"reason": admit.Reason,
			})
		}
		defer release()
	}

	opts := in.RefreshOptions{
		PreserveExistingOnEmpty: true,
		Trigger:                 "manual",
		MaxMessages:             c.QueryInt("maxMessages", 0),
	}
	if ms := c.QueryInt("timeBudgetMs", 0); ms > 0 {
		opts.TimeBudget = time.Duration(ms) * time.Millisecond
	}

	result, err := h.service.Refresh(c.Context(), userID, opts)
	if err != nil {
		return err
	}

	if h.catchUp != nil {
		h.catchUp.MarkRefreshed(userID)
	}

	return c.JSON(result)
}

// Accept converts a suggestion into a task
// @Summary Accept a suggestion
// @Tags Suggestions
// @Produce json
// @Param id path int true "Suggestion ID"
// @Success 201 {object} domain.Todo
// @Router /api/v1/suggestions/{id}/accept [post]
func (h *SuggestionHandler) Accept(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(uuid.UUID)

	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid suggestion ID"})
	}

	todo, err := h.service.Accept(c.Context(), userID, id)
	if err != nil {
		return err
	}

	return c.Status(201).JSON(todo)
}

// Dismiss marks a suggestion as rejected
// @Summary Dismiss a suggestion
// @Tags Suggestions
// @Produce json
// @Param id path int true "Suggestion ID"
// @Success 200 {object} domain.Suggestion
// @Router /api/v1/suggestions/{id}/dismiss [post]
func (h *SuggestionHandler) Dismiss(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(uuid.UUID)

	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid suggestion ID"})
	}

	suggestion, err := h.service.Dismiss(c.Context(), userID, id)
	if err != nil {
		return err
	}

	return c.JSON(suggestion)
}
