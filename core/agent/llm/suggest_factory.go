package llm

import (
	"fmt"
	"time"

	"suggest_server/config"
	"suggest_server/core/port/out"
)

// NewFromConfig builds the completion and embedding clients selected by
// AI_PROVIDER. Both interfaces are served by the same underlying client.
func NewFromConfig(cfg *config.Config) (out.LLMClient, out.EmbeddingClient, error) {
	switch cfg.AIProvider {
	case "openai":
		client := NewOpenAIClient(OpenAIConfig{
			APIKey:         cfg.OpenAIAPIKey,
			Model:          cfg.LLMModel,
			EmbeddingModel: cfg.EmbeddingModel,
		})
		return client, client, nil
	case "ollama":
		client := NewOllamaClient(OllamaConfig{
			Host:       cfg.OllamaHost,
			Model:      cfg.OllamaModel,
			EmbedModel: cfg.OllamaEmbedModel,
			Timeout:    time.Duration(cfg.LLMTimeoutSec) * time.Second,
		})
		return client, client, nil
	default:
		return nil, nil, fmt.Errorf("unknown AI provider %q", cfg.AIProvider)
	}
}
