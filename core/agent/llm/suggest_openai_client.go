package llm

import (
	"context"

	openai "github.com/sashabaranov/go-openai"

	"suggest_server/core/port/out"
	"suggest_server/pkg/httputil"
	"suggest_server/pkg/logger"
	"suggest_server/pkg/resilience"
)

const (
	DefaultModel          = "gpt-4o-mini"
	DefaultEmbeddingModel = "text-embedding-ada-002"
)

// OpenAIClient wraps the OpenAI API for completions and embeddings.
// Calls go through a circuit breaker so a degraded upstream fails fast
// instead of burning the refresh time budget.
type OpenAIClient struct {
	client         *openai.Client
	model          string
	embeddingModel openai.EmbeddingModel
	cb             *resilience.CircuitBreaker
}

type OpenAIConfig struct {
	APIKey         string
	Model          string
	EmbeddingModel string
}

func NewOpenAIClient(cfg OpenAIConfig) *OpenAIClient {
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	embeddingModel := resolveEmbeddingModel(cfg.EmbeddingModel)

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	clientCfg.HTTPClient = httputil.LLMClient()

	cb := resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig("openai"))
	cb.OnStateChange(func(name string, from, to resilience.CircuitState) {
		logger.Warn("[%s] circuit breaker %s -> %s", name, from, to)
	})

	return &OpenAIClient{
		client:         openai.NewClientWithConfig(clientCfg),
		model:          model,
		embeddingModel: embeddingModel,
		cb:             cb,
	}
}

func (c *OpenAIClient) ProviderName() string {
	return "openai"
}

func (c *OpenAIClient) Complete(ctx context.Context, prompt string, opts out.CompletionOptions) (string, *out.TokenUsage, error) {
	return c.complete(ctx, []openai.ChatCompletionMessage{
		{
			Role:    openai.ChatMessageRoleUser,
			Content: prompt,
		},
	}, opts)
}

func (c *OpenAIClient) CompleteWithSystem(ctx context.Context, system, prompt string, opts out.CompletionOptions) (string, *out.TokenUsage, error) {
	return c.complete(ctx, []openai.ChatCompletionMessage{
		{
			Role:    openai.ChatMessageRoleSystem,
			Content: system,
		},
		{
			Role:    openai.ChatMessageRoleUser,
			Content: prompt,
		},
	}, opts)
}

func (c *OpenAIClient) complete(ctx context.Context, messages []openai.ChatCompletionMessage, opts out.CompletionOptions) (string, *out.TokenUsage, error) {
	req := openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: messages,
	}
	if opts.MaxTokens > 0 {
		req.MaxTokens = opts.MaxTokens
	}
	if opts.Temperature > 0 {
		req.Temperature = float32(opts.Temperature)
	}

	var resp openai.ChatCompletionResponse
	err := c.cb.Execute(func() error {
		var callErr error
		resp, callErr = c.client.CreateChatCompletion(ctx, req)
		return callErr
	})
	if err != nil {
		return "", nil, err
	}

	usage := &out.TokenUsage{
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
	}

	if len(resp.Choices) == 0 {
		return "", usage, nil
	}

	return resp.Choices[0].Message.Content, usage, nil
}

func (c *OpenAIClient) Embedding(ctx context.Context, text string) ([]float32, error) {
	resp, err := c.createEmbeddings(ctx, []string{text})
	if err != nil {
		return nil, err
	}

	if len(resp.Data) == 0 {
		return nil, nil
	}

	return resp.Data[0].Embedding, nil
}

func (c *OpenAIClient) EmbeddingBatch(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := c.createEmbeddings(ctx, texts)
	if err != nil {
		return nil, err
	}

	result := make([][]float32, len(resp.Data))
	for i, data := range resp.Data {
		result[i] = data.Embedding
	}

	return result, nil
}

func (c *OpenAIClient) createEmbeddings(ctx context.Context, input []string) (openai.EmbeddingResponse, error) {
	var resp openai.EmbeddingResponse
	err := c.cb.Execute(func() error {
		var callErr error
		resp, callErr = c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Model: c.embeddingModel,
			Input: input,
		})
		return callErr
	})
	return resp, err
}

// resolveEmbeddingModel maps a configured model name onto the SDK's
// embedding model enum. Names the SDK does not know fall back to
// ada-002 rather than sending an Unknown model upstream.
func resolveEmbeddingModel(name string) openai.EmbeddingModel {
	if name == "" {
		name = DefaultEmbeddingModel
	}
	var model openai.EmbeddingModel
	if err := model.UnmarshalText([]byte(name)); err != nil || model == openai.Unknown {
		logger.Warn("unknown embedding model %q, using %s", name, DefaultEmbeddingModel)
		return openai.AdaEmbeddingV2
	}
	return model
}

var (
	_ out.LLMClient       = (*OpenAIClient)(nil)
	_ out.EmbeddingClient = (*OpenAIClient)(nil)
)
