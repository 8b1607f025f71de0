package bootstrap

import (
	"strings"
	"time"

	"suggest_server/adapter/in/http"
	"suggest_server/adapter/in/worker"
	"suggest_server/config"
	"suggest_server/infra/middleware"
	"suggest_server/pkg/logger"
	"suggest_server/pkg/ratelimit"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

// NewAPI builds the HTTP application on top of an already wired
// dependency set. The scheduler is optional: when present the
// suggestion handler uses it for read-triggered catch-up refreshes.
func NewAPI(cfg *config.Config, deps *Dependencies, scheduler *worker.RefreshScheduler) *fiber.App {
	middleware.InitTokenBlacklist(deps.Redis)

	app := fiber.New(fiber.Config{
		ErrorHandler:          middleware.ErrorHandler(),
		DisableStartupMessage: cfg.IsProduction(),
		Prefork:               false,
		StrictRouting:         false,
		CaseSensitive:         false,

		ReadBufferSize:  16384,
		WriteBufferSize: 16384,

		JSONEncoder: json.Marshal,
		JSONDecoder: json.Unmarshal,

		BodyLimit: 10 * 1024 * 1024, // 10MB

		ServerHeader:             "",
		DisableDefaultDate:       true,
		DisableHeaderNormalizing: false,
		DisableKeepalive:         false,
	})

	// Global middleware stack (order matters)
	app.Use(middleware.Recover())
	app.Use(middleware.RequestID())
	app.Use(middleware.SecurityHeaders())
	app.Use(middleware.PreventPathTraversal())
	app.Use(middleware.RequestLogger())

	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	// CORS: AllowCredentials requires explicit origins, never "*"
	allowOrigins := strings.Join(cfg.AllowedOrigins, ",")
	allowCredentials := true
	if allowOrigins == "" || allowOrigins == "*" {
		if cfg.IsProduction() {
			allowOrigins = ""
			allowCredentials = false
		} else {
			allowOrigins = "http://localhost:3000,http://localhost:5173"
		}
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowOrigins,
		AllowMethods:     "GET,POST,PUT,DELETE,PATCH,OPTIONS",
		AllowHeaders:     "Origin,Content-Type,Accept,Authorization,X-Request-ID",
		ExposeHeaders:    "X-Request-ID,X-RateLimit-Limit,X-RateLimit-Remaining,X-RateLimit-Reset",
		AllowCredentials: allowCredentials,
		MaxAge:           86400,
	}))

	// Health check (no auth required)
	healthHandler := http.NewHealthHandler(deps.DB, deps.Redis, deps.MongoDB)
	healthHandler.Register(app)

	// API routes (with auth and rate limiting)
	api := app.Group("/api/v1")

	rateLimiter := middleware.NewRateLimiter(100, time.Minute)
	api.Use(rateLimiter.Handler())

	api.Use(middleware.JWTAuth(cfg.JWTSecret))

	var catchUp http.CatchUpTrigger
	if scheduler != nil {
		catchUp = scheduler
	}
	// Debounce manual refreshes: one per user inside the window, and a
	// process-wide cap on concurrent pipeline runs
	refreshProtector := ratelimit.NewProtector(deps.Redis, &ratelimit.Config{
		MaxConcurrent:     16,
		RequestsPerSecond: 5,
		BurstSize:         5,
		DebounceDuration:  30 * time.Second,
	})
	suggestionHandler := http.NewSuggestionHandler(deps.SuggestionService, catchUp, refreshProtector)
	suggestionHandler.Register(api)

	providerHandler := http.NewProviderHandler(deps.ProviderService)
	providerHandler.Register(api)

	todoHandler := http.NewTodoHandler(deps.TodoService)
	todoHandler.Register(api)

	logger.Info("API server initialized successfully")

	return app
}
