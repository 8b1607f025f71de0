package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// generateInstanceID creates a unique instance ID using hostname and PID
func generateInstanceID() string {
	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "suggest"
	}
	return fmt.Sprintf("%s-%d", hostname, os.Getpid())
}

type Config struct {
	Port        string
	Environment string
	InstanceID  string

	// Database
	DatabaseURL string
	MongoDBURL  string
	MongoDBName string
	RedisURL    string

	// Auth
	JWTSecret          string
	TokenEncryptionKey string

	// AI provider selection: "openai" or "ollama"
	AIProvider string

	// OpenAI
	OpenAIAPIKey     string
	LLMModel         string
	EmbeddingModel   string
	LLMMaxTokens     int
	LLMTemperature   float64
	LLMTimeoutSec    int
	SummaryMaxTokens int

	// Ollama
	OllamaHost       string
	OllamaModel      string
	OllamaEmbedModel string

	// Embeddings
	EmbeddingDim int

	// OAuth - Google
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string

	// OAuth - Microsoft
	MicrosoftClientID     string
	MicrosoftClientSecret string
	MicrosoftRedirectURL  string
	MicrosoftTenantID     string

	// Ingestion
	IngestMaxMessages       int
	IngestLookbackDays      int
	IngestExcludeCategories []string
	IngestPageSize          int
	SummaryMaxWords         int
	ThreadSummaryMaxWords   int
	CatchUpMaxMessages      int

	// Retrieval
	RetrievalTopK int

	// Suggestions
	MaxSuggestions         int
	MinCreatedTasks        int
	MinAcceptedSuggestions int
	HistoryMaxResults      int
	HistoryMinRecurrence   int
	HistoryScanLimit       int

	// Refresh scheduling
	SchedulerEnabled     bool
	RefreshIntervalMin   int
	RefreshTimeBudgetSec int
	CatchUpLockTTLMin    int

	// Policy cache
	PolicyCacheTTLSec int

	// CORS
	AllowedOrigins []string
}

func Load() (*Config, error) {
	return &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENV", "development"),
		InstanceID:  getEnv("INSTANCE_ID", generateInstanceID()),

		// Database
		DatabaseURL: getEnv("DATABASE_URL", ""),
		MongoDBURL:  getEnv("MONGODB_URL", ""),
		MongoDBName: getEnv("MONGODB_DATABASE", "suggest"),
		RedisURL:    getEnv("REDIS_URL", ""),

		// Auth
		JWTSecret:          getEnv("JWT_SECRET", ""),
		TokenEncryptionKey: getEnv("TOKEN_ENCRYPTION_KEY", ""),

		// AI
		AIProvider:       getEnv("AI_PROVIDER", "ollama"),
		OpenAIAPIKey:     getEnv("OPENAI_API_KEY", ""),
		LLMModel:         getEnv("LLM_MODEL", "gpt-4o-mini"),
		EmbeddingModel:   getEnv("EMBEDDING_MODEL", "text-embedding-ada-002"),
		LLMMaxTokens:     getEnvInt("LLM_MAX_TOKENS", 500),
		LLMTemperature:   getEnvFloat("LLM_TEMPERATURE", 0.2),
		LLMTimeoutSec:    getEnvInt("LLM_TIMEOUT_SEC", 60),
		SummaryMaxTokens: getEnvInt("SUMMARY_MAX_TOKENS", 1400),

		// Ollama
		OllamaHost:       getEnv("OLLAMA_HOST", "http://localhost:11434"),
		OllamaModel:      getEnv("OLLAMA_MODEL", "llama3.1"),
		OllamaEmbedModel: getEnv("OLLAMA_EMBED_MODEL", "nomic-embed-text"),

		// Embeddings
		EmbeddingDim: getEnvInt("EMBEDDING_DIM", 1536),

		// OAuth - Google
		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirectURL:  getEnv("GOOGLE_REDIRECT_URL", ""),

		// OAuth - Microsoft
		MicrosoftClientID:     getEnv("MICROSOFT_CLIENT_ID", ""),
		MicrosoftClientSecret: getEnv("MICROSOFT_CLIENT_SECRET", ""),
		MicrosoftRedirectURL:  getEnv("MICROSOFT_REDIRECT_URL", ""),
		MicrosoftTenantID:     getEnv("MICROSOFT_TENANT_ID", "common"),

		// Ingestion
		IngestMaxMessages:       getEnvInt("INGEST_MAX_MESSAGES", 50),
		IngestLookbackDays:      getEnvInt("INGEST_LOOKBACK_DAYS", 30),
		IngestExcludeCategories: getEnvSlice("INGEST_EXCLUDE_CATEGORIES", []string{"promotions", "social"}),
		IngestPageSize:          getEnvInt("INGEST_PAGE_SIZE", 25),
		SummaryMaxWords:         getEnvInt("SUMMARY_MAX_WORDS", 300),
		ThreadSummaryMaxWords:   getEnvInt("SUMMARY_THREAD_MAX_WORDS", 500),
		CatchUpMaxMessages:      getEnvInt("CATCHUP_MAX_MESSAGES", 200),

		// Retrieval
		RetrievalTopK: getEnvInt("RETRIEVAL_TOP_K", 12),

		// Suggestions
		MaxSuggestions:         getEnvInt("MAX_SUGGESTIONS", 8),
		MinCreatedTasks:        getEnvInt("MIN_CREATED_TASKS", 10),
		MinAcceptedSuggestions: getEnvInt("MIN_ACCEPTED_SUGGESTIONS", 5),
		HistoryMaxResults:      getEnvInt("HISTORY_MAX_RESULTS", 4),
		HistoryMinRecurrence:   getEnvInt("HISTORY_MIN_RECURRENCE", 2),
		HistoryScanLimit:       getEnvInt("HISTORY_SCAN_LIMIT", 200),

		// Refresh scheduling
		SchedulerEnabled:     getEnvBool("SCHEDULER_ENABLED", true),
		RefreshIntervalMin:   getEnvInt("REFRESH_INTERVAL_MIN", 15),
		RefreshTimeBudgetSec: getEnvInt("REFRESH_TIME_BUDGET_SEC", 0),
		CatchUpLockTTLMin:    getEnvInt("CATCHUP_LOCK_TTL_MIN", 10),

		// Policy cache
		PolicyCacheTTLSec: getEnvInt("POLICY_CACHE_TTL_SEC", 60),

		// CORS
		AllowedOrigins: getEnvSlice("ALLOWED_ORIGINS", []string{"http://localhost:3000", "http://localhost:5173"}),
	}, nil
}

// Validate checks the settings required to serve traffic
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.AIProvider != "openai" && c.AIProvider != "ollama" {
		return fmt.Errorf("AI_PROVIDER must be openai or ollama, got %q", c.AIProvider)
	}
	if c.AIProvider == "openai" && c.OpenAIAPIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required when AI_PROVIDER=openai")
	}
	return nil
}

// RefreshInterval returns the periodic refresh cadence
func (c *Config) RefreshInterval() time.Duration {
	return time.Duration(c.RefreshIntervalMin) * time.Minute
}

// RefreshTimeBudget returns the per-refresh ingestion budget, zero
// means unbounded
func (c *Config) RefreshTimeBudget() time.Duration {
	return time.Duration(c.RefreshTimeBudgetSec) * time.Second
}

// CatchUpLockTTL returns how long a catch-up hold stays valid
func (c *Config) CatchUpLockTTL() time.Duration {
	return time.Duration(c.CatchUpLockTTLMin) * time.Minute
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
