package llm

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"suggest_server/core/port/out"
	"suggest_server/pkg/httputil"
)

// OllamaClient talks to a local Ollama server over its HTTP API
type OllamaClient struct {
	host       string
	model      string
	embedModel string
	httpClient *http.Client
}

type OllamaConfig struct {
	Host       string
	Model      string
	EmbedModel string
	Timeout    time.Duration
}

func NewOllamaClient(cfg OllamaConfig) *OllamaClient {
	host := cfg.Host
	if host == "" {
		host = "http://localhost:11434"
	}
	httpClient := httputil.LLMClient()
	if cfg.Timeout > 0 {
		httpClient = &http.Client{
			Transport: httpClient.Transport,
			Timeout:   cfg.Timeout,
		}
	}
	return &OllamaClient{
		host:       host,
		model:      cfg.Model,
		embedModel: cfg.EmbedModel,
		httpClient: httpClient,
	}
}

func (c *OllamaClient) ProviderName() string {
	return "ollama"
}

type ollamaChatRequest struct {
	Model    string              `json:"model"`
	Messages []ollamaChatMessage `json:"messages"`
	Stream   bool                `json:"stream"`
	Options  map[string]any      `json:"options,omitempty"`
}

type ollamaChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatResponse struct {
	Message         ollamaChatMessage `json:"message"`
	PromptEvalCount int               `json:"prompt_eval_count"`
	EvalCount       int               `json:"eval_count"`
}

func (c *OllamaClient) Complete(ctx context.Context, prompt string, opts out.CompletionOptions) (string, *out.TokenUsage, error) {
	return c.chat(ctx, []ollamaChatMessage{
		{Role: "user", Content: prompt},
	}, opts)
}

func (c *OllamaClient) CompleteWithSystem(ctx context.Context, system, prompt string, opts out.CompletionOptions) (string, *out.TokenUsage, error) {
	return c.chat(ctx, []ollamaChatMessage{
		{Role: "system", Content: system},
		{Role: "user", Content: prompt},
	}, opts)
}

func (c *OllamaClient) chat(ctx context.Context, messages []ollamaChatMessage, opts out.CompletionOptions) (string, *out.TokenUsage, error) {
	options := map[string]any{}
	if opts.Temperature > 0 {
		options["temperature"] = opts.Temperature
	}
	if opts.MaxTokens > 0 {
		options["num_predict"] = opts.MaxTokens
	}

	reqBody := ollamaChatRequest{
		Model:    c.model,
		Messages: messages,
		Stream:   false,
		Options:  options,
	}

	var resp ollamaChatResponse
	if err := c.post(ctx, "/api/chat", reqBody, &resp); err != nil {
		return "", nil, err
	}

	usage := &out.TokenUsage{
		PromptTokens:     resp.PromptEvalCount,
		CompletionTokens: resp.EvalCount,
		TotalTokens:      resp.PromptEvalCount + resp.EvalCount,
	}

	return resp.Message.Content, usage, nil
}

type ollamaEmbedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbedResponse struct {
	Embedding []float64 `json:"embedding"`
}

func (c *OllamaClient) Embedding(ctx context.Context, text string) ([]float32, error) {
	var resp ollamaEmbedResponse
	err := c.post(ctx, "/api/embeddings", ollamaEmbedRequest{
		Model:  c.embedModel,
		Prompt: text,
	}, &resp)
	if err != nil {
		return nil, err
	}

	embedding := make([]float32, len(resp.Embedding))
	for i, v := range resp.Embedding {
		embedding[i] = float32(v)
	}
	return embedding, nil
}

// EmbeddingBatch issues one request per text, the Ollama embeddings
// endpoint takes a single prompt at a time
func (c *OllamaClient) EmbeddingBatch(ctx context.Context, texts []string) ([][]float32, error) {
	result := make([][]float32, len(texts))
	for i, text := range texts {
		embedding, err := c.Embedding(ctx, text)
		if err != nil {
			return nil, err
		}
		result[i] = embedding
	}
	return result, nil
}

func (c *OllamaClient) post(ctx context.Context, path string, body any, dest any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("ollama %s returned %d: %s", path, resp.StatusCode, string(payload))
	}

	return json.NewDecoder(resp.Body).Decode(dest)
}

var (
	_ out.LLMClient       = (*OllamaClient)(nil)
	_ out.EmbeddingClient = (*OllamaClient)(nil)
)
