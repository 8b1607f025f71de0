package http

import (
	"suggest_server/core/domain"
	in "suggest_server/core/port/in"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// ProviderHandler handles HTTP requests for provider policies
type ProviderHandler struct {
	service in.ProviderService
}

// NewProviderHandler creates a new ProviderHandler
func NewProviderHandler(service in.ProviderService) *ProviderHandler {
	return &ProviderHandler{service: service}
}

// Register registers provider routes
func (h *ProviderHandler) Register(router fiber.Router) {
	providers := router.Group("/providers")

	providers.Get("/", h.Matrix)
	providers.Post("/:provider/connect", h.Connect)
	providers.Post("/:provider/disconnect", h.Disconnect)
	providers.Put("/:provider/ingest", h.SetIngest)
}

// Matrix returns the per-provider connection picture
// @Summary Get provider connection matrix
// @Tags Providers
// @Produce json
// @Success 200 {object} domain.PolicyMatrix
// @Router /api/v1/providers [get]
func (h *ProviderHandler) Matrix(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(uuid.UUID)

	matrix, err := h.service.Matrix(c.Context(), userID)
	if err != nil {
		return err
	}

	return c.JSON(matrix)
}

// Connect marks a provider linked and ingest-enabled
// @Summary Connect an email provider
// @Tags Providers
// @Produce json
// @Param provider path string true "Provider (gmail or outlook)"
// @Success 200 {object} domain.PolicyMatrix
// @Router /api/v1/providers/{provider}/connect [post]
func (h *ProviderHandler) Connect(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(uuid.UUID)

	provider, ok := parseProvider(c)
	if !ok {
		return c.Status(400).JSON(fiber.Map{"error": "unsupported provider"})
	}

	matrix, err := h.service.Connect(c.Context(), userID, provider)
	if err != nil {
		return err
	}

	return c.JSON(matrix)
}

// Disconnect unlinks a provider and removes its tokens
// @Summary Disconnect an email provider
// @Tags Providers
// @Produce json
// @Param provider path string true "Provider (gmail or outlook)"
// @Success 200 {object} domain.PolicyMatrix
// @Router /api/v1/providers/{provider}/disconnect [post]
func (h *ProviderHandler) Disconnect(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(uuid.UUID)

	provider, ok := parseProvider(c)
	if !ok {
		return c.Status(400).JSON(fiber.Map{"error": "unsupported provider"})
	}

	matrix, err := h.service.Disconnect(c.Context(), userID, provider, in.DisconnectOptions{
		Source: "user_request",
	})
	if err != nil {
		return err
	}

	return c.JSON(matrix)
}

// SetIngest toggles ingestion for a provider
// @Summary Toggle provider ingestion
// @Tags Providers
// @Accept json
// @Produce json
// @Param provider path string true "Provider (gmail or outlook)"
// @Param request body object true "Toggle payload"
// @Success 200 {object} domain.PolicyMatrix
// @Router /api/v1/providers/{provider}/ingest [put]
func (h *ProviderHandler) SetIngest(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(uuid.UUID)

	provider, ok := parseProvider(c)
	if !ok {
		return c.Status(400).JSON(fiber.Map{"error": "unsupported provider"})
	}

	var req struct {
		Enabled bool `json:"enabled"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid request body"})
	}

	matrix, err := h.service.SetIngestEnabled(c.Context(), userID, provider, req.Enabled)
	if err != nil {
		return err
	}

	return c.JSON(matrix)
}

func parseProvider(c *fiber.Ctx) (domain.EmailProvider, bool) {
	provider := domain.EmailProvider(c.Params("provider"))
	return provider, provider.IsSupported()
}
