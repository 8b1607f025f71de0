// Package bootstrap wires configuration, adapters, and services into a
// runnable application.
package bootstrap

import (
	"context"
	"hash/fnv"
	"strings"
	"time"

	"suggest_server/adapter/out/mongodb"
	"suggest_server/adapter/out/persistence"
	"suggest_server/adapter/out/provider"
	"suggest_server/adapter/out/vector"
	"suggest_server/config"
	"suggest_server/core/agent/llm"
	"suggest_server/core/port/out"
	"suggest_server/core/service/embedding"
	"suggest_server/core/service/ingest"
	providersvc "suggest_server/core/service/provider"
	"suggest_server/core/service/suggestion"
	"suggest_server/core/service/todo"
	"suggest_server/infra/database"
	"suggest_server/pkg/cache"
	"suggest_server/pkg/logger"
	"suggest_server/pkg/metrics"
	"suggest_server/pkg/snowflake"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver for database/sql
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
)

type Dependencies struct {
	Config  *config.Config
	DB      *pgxpool.Pool
	SQLDB   *sqlx.DB
	Redis   *redis.Client
	MongoDB *mongo.Client

	// Repositories
	SuggestionRepo out.SuggestionRepository
	TodoRepo       out.TodoRepository
	PolicyRepo     out.PolicyRepository
	CursorRepo     out.CursorRepository
	TokenRepo      out.TokenRepository
	ContextStore   out.ContextStore
	EventSink      out.EventSink
	PolicyCache    out.PolicyCache

	// Mail sources
	GmailSource   *provider.GmailSource
	OutlookSource *provider.OutlookSource

	// LLM
	LLMClient out.LLMClient
	Embedder  out.EmbeddingClient

	// Services
	EmbeddingService  *embedding.Service
	IngestEngine      *ingest.Engine
	SuggestionService *suggestion.Service
	ProviderService   *providersvc.Service
	TodoService       *todo.Service
}

func NewDependencies(cfg *config.Config) (*Dependencies, func(), error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	// Seed the ID generator before any repository writes
	if err := snowflake.Init(workerIDFromInstance(cfg.InstanceID)); err != nil {
		return nil, nil, err
	}

	deps := &Dependencies{Config: cfg}
	var cleanups []func()

	// Database (pgxpool)
	db, err := database.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	deps.DB = db
	cleanups = append(cleanups, func() { db.Close() })

	// Database (sqlx for the row-mapped adapters)
	sqlxURL := cfg.DatabaseURL
	if strings.Contains(sqlxURL, "?") {
		sqlxURL += "&default_query_exec_mode=simple_protocol"
	} else {
		sqlxURL += "?default_query_exec_mode=simple_protocol"
	}
	sqlDB, err := sqlx.Connect("pgx", sqlxURL)
	if err != nil {
		return nil, nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)
	deps.SQLDB = sqlDB
	cleanups = append(cleanups, func() { sqlDB.Close() })
	metrics.RegisterPool("postgres", sqlDB.DB)

	// Redis, optional. Without it the policy cache and token blacklist
	// degrade to pass-through.
	if cfg.RedisURL != "" {
		redisClient, err := database.NewRedis(cfg.RedisURL)
		if err != nil {
			logger.Warn("Redis connection failed: %v", err)
		} else {
			deps.Redis = redisClient
			cleanups = append(cleanups, func() { redisClient.Close() })
		}
	}

	// MongoDB, optional audit sink
	if cfg.MongoDBURL != "" {
		mongoClient, err := mongodb.NewClient(cfg.MongoDBURL, cfg.MongoDBName)
		if err != nil {
			logger.Warn("MongoDB connection failed: %v", err)
		} else {
			deps.MongoDB = mongoClient
			cleanups = append(cleanups, func() {
				mongoClient.Disconnect(context.Background())
			})
			deps.EventSink = mongodb.NewEventSink(mongoClient, cfg.MongoDBName)
		}
	}

	// Repositories
	deps.SuggestionRepo = persistence.NewSuggestionRepository(sqlDB)
	deps.TodoRepo = persistence.NewTodoRepository(sqlDB)
	deps.PolicyRepo = persistence.NewPolicyRepository(sqlDB)
	deps.CursorRepo = persistence.NewCursorRepository(sqlDB)
	deps.TokenRepo = persistence.NewTokenRepository(sqlDB)
	deps.ContextStore = vector.NewContextStore(db)

	if deps.Redis != nil {
		deps.PolicyCache = persistence.NewPolicyCache(cache.NewRedisCache(deps.Redis))
	} else {
		deps.PolicyCache = persistence.NewPolicyCache(nil)
	}

	// Mail sources
	var sources []out.MailSource
	if cfg.GoogleClientID != "" && cfg.GoogleClientSecret != "" {
		deps.GmailSource = provider.NewGmailSource(provider.NewGoogleOAuthConfig(
			cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURL,
		))
		sources = append(sources, deps.GmailSource)
		logger.Info("Gmail source initialized")
	}
	if cfg.MicrosoftClientID != "" && cfg.MicrosoftClientSecret != "" {
		deps.OutlookSource = provider.NewOutlookSource(provider.NewMicrosoftOAuthConfig(
			cfg.MicrosoftClientID, cfg.MicrosoftClientSecret,
			cfg.MicrosoftRedirectURL, cfg.MicrosoftTenantID,
		))
		sources = append(sources, deps.OutlookSource)
		logger.Info("Outlook source initialized")
	}
	if len(sources) == 0 {
		logger.Warn("No mail source configured, ingestion disabled")
	}

	// LLM clients
	llmClient, embedder, err := llm.NewFromConfig(cfg)
	if err != nil {
		return nil, nil, err
	}
	deps.LLMClient = llmClient
	deps.Embedder = embedder
	logger.Info("LLM provider initialized: %s", llmClient.ProviderName())

	// Services
	deps.EmbeddingService = embedding.NewService(embedder, cfg.EmbeddingDim)
	summarizer := ingest.NewSummarizer(llmClient, cfg.SummaryMaxWords)
	deps.IngestEngine = ingest.NewEngine(
		sources,
		deps.TokenRepo,
		deps.CursorRepo,
		deps.ContextStore,
		deps.EmbeddingService,
		summarizer,
		cfg,
	)

	deps.ProviderService = providersvc.NewService(
		deps.PolicyRepo,
		deps.TokenRepo,
		deps.PolicyCache,
		deps.EventSink,
		time.Duration(cfg.PolicyCacheTTLSec)*time.Second,
	)

	retriever := suggestion.NewRetriever(deps.ContextStore, deps.EmbeddingService, cfg.RetrievalTopK)
	generator := suggestion.NewGenerator(llmClient, cfg.MaxSuggestions)
	history := suggestion.NewHistoryMiner(deps.TodoRepo, deps.SuggestionRepo, suggestion.HistoryMinerConfig{
		MinCreatedTasks:        cfg.MinCreatedTasks,
		MinAcceptedSuggestions: cfg.MinAcceptedSuggestions,
		MaxResults:             cfg.HistoryMaxResults,
		MinRecurrence:          cfg.HistoryMinRecurrence,
		ScanLimit:              cfg.HistoryScanLimit,
	})

	deps.SuggestionService = suggestion.NewService(
		deps.ProviderService,
		deps.IngestEngine,
		retriever,
		generator,
		history,
		deps.SuggestionRepo,
		deps.TodoRepo,
		deps.EventSink,
		cfg.MaxSuggestions,
	)

	deps.TodoService = todo.NewService(deps.TodoRepo)

	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	return deps, cleanup, nil
}

// workerIDFromInstance maps the instance ID string onto the snowflake
// worker ID space.
func workerIDFromInstance(instanceID string) int64 {
	h := fnv.New32a()
	h.Write([]byte(instanceID))
	return int64(h.Sum32() % 1024)
}

func (d *Dependencies) HealthCheck(ctx context.Context) error {
	if err := d.DB.Ping(ctx); err != nil {
		return err
	}

	if d.Redis != nil {
		if err := d.Redis.Ping(ctx).Err(); err != nil {
			return err
		}
	}

	return nil
}
