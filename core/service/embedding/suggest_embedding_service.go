// Package embedding turns normalized messages into fixed-dimension
// vectors for the context store.
package embedding

import (
	"context"
	"fmt"
	"strings"

	"suggest_server/core/domain"
	"suggest_server/core/port/out"
	"suggest_server/pkg/logger"
)

const DefaultDim = 1536

// Service embeds message text and pins vectors to a fixed dimension
type Service struct {
	embedder out.EmbeddingClient
	dim      int
	log      *logger.Logger
}

func NewService(embedder out.EmbeddingClient, dim int) *Service {
	if dim <= 0 {
		dim = DefaultDim
	}
	return &Service{
		embedder: embedder,
		dim:      dim,
		log:      logger.Default().WithField("component", "embedding"),
	}
}

// Dim returns the configured vector dimension
func (s *Service) Dim() int {
	return s.dim
}

// EmbedText embeds a single text and normalizes the result dimension
func (s *Service) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vector, err := s.embedder.Embedding(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed text: %w", err)
	}
	return NormalizeVector(vector, s.dim), nil
}

// EmbedMessages embeds a batch of messages. Messages whose embedding
// fails are skipped and logged, a partial batch is still useful.
func (s *Service) EmbedMessages(ctx context.Context, messages []domain.EmailMessage) ([]domain.EmailEmbedding, error) {
	if len(messages) == 0 {
		return nil, nil
	}

	texts := make([]string, len(messages))
	for i, msg := range messages {
		texts[i] = EmbeddingInput(&msg)
	}

	vectors, err := s.embedder.EmbeddingBatch(ctx, texts)
	if err != nil {
		// Batch failed wholesale, fall back to one call per message so
		// a single bad input cannot sink the run
		return s.embedOneByOne(ctx, messages, texts)
	}

	if len(vectors) != len(messages) {
		return nil, fmt.Errorf("embedding batch returned %d vectors for %d messages", len(vectors), len(messages))
	}

	items := make([]domain.EmailEmbedding, 0, len(messages))
	for i, msg := range messages {
		items = append(items, domain.EmailEmbedding{
			Message:   msg,
			Embedding: NormalizeVector(vectors[i], s.dim),
		})
	}
	return items, nil
}

// embedOneByOne retries messages individually after a failed batch.
// Calls are sequential to bound concurrent load on the embedding
// provider; failed messages are skipped, not retried.
func (s *Service) embedOneByOne(ctx context.Context, messages []domain.EmailMessage, texts []string) ([]domain.EmailEmbedding, error) {
	items := make([]domain.EmailEmbedding, 0, len(messages))
	for i, msg := range messages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		vector, err := s.embedder.Embedding(ctx, texts[i])
		if err != nil {
			s.log.WithError(err).WithField("message_id", msg.MessageID).Warn("skipping message, embedding failed")
			continue
		}
		items = append(items, domain.EmailEmbedding{
			Message:   msg,
			Embedding: NormalizeVector(vector, s.dim),
		})
	}
	if len(items) == 0 && len(messages) > 0 {
		return nil, fmt.Errorf("embedding failed for all %d messages", len(messages))
	}
	return items, nil
}

// EmbeddingInput builds the text fed to the embedding model
func EmbeddingInput(msg *domain.EmailMessage) string {
	parts := make([]string, 0, 3)
	if msg.Subject != "" {
		parts = append(parts, msg.Subject)
	}
	if msg.Snippet != "" {
		parts = append(parts, msg.Snippet)
	}
	if msg.Body != "" {
		parts = append(parts, msg.Body)
	}
	return strings.TrimSpace(strings.Join(parts, "\n"))
}

// NormalizeVector pins a vector to dim: longer vectors are truncated,
// shorter ones zero-padded. Mixed-model histories stay queryable.
func NormalizeVector(vector []float32, dim int) []float32 {
	if len(vector) == dim {
		return vector
	}
	normalized := make([]float32, dim)
	copy(normalized, vector)
	return normalized
}
