package out

import "context"

// TokenUsage reports model token consumption for telemetry
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// CompletionOptions tunes a single completion call
type CompletionOptions struct {
	MaxTokens   int
	Temperature float64
}

// LLMClient is the outbound port for chat completion providers
type LLMClient interface {
	// Complete runs a plain user-prompt completion
	Complete(ctx context.Context, prompt string, opts CompletionOptions) (string, *TokenUsage, error)

	// CompleteWithSystem runs a completion with a system prompt
	CompleteWithSystem(ctx context.Context, system, prompt string, opts CompletionOptions) (string, *TokenUsage, error)

	// ProviderName identifies the backing provider for logging
	ProviderName() string
}

// EmbeddingClient is the outbound port for embedding providers
type EmbeddingClient interface {
	// Embedding embeds a single text
	Embedding(ctx context.Context, text string) ([]float32, error)

	// EmbeddingBatch embeds multiple texts in one call when the
	// provider supports it
	EmbeddingBatch(ctx context.Context, texts []string) ([][]float32, error)
}
