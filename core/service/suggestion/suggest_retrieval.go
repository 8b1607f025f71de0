// Package suggestion implements the task suggestion pipeline: context
// retrieval, structured generation, task-history mining, merge, and
// persistence of the per-user suggestion set.
package suggestion

import (
	"context"

	"suggest_server/core/domain"
	"suggest_server/core/port/out"
	"suggest_server/core/service/embedding"
	"suggest_server/pkg/logger"
)

// DefaultRetrievalQuery seeds the similarity search when the caller
// has no more specific intent
const DefaultRetrievalQuery = "Identify actionable tasks, follow-ups, deadlines, and reminders from these email messages."

const DefaultTopK = 12

// Retriever pulls the most relevant stored messages for generation.
// When the vector search fails or comes back empty it degrades to the
// newest stored messages so generation still has something to chew on.
type Retriever struct {
	store    out.ContextStore
	embedder *embedding.Service
	topK     int
	log      *logger.Logger
}

func NewRetriever(store out.ContextStore, embedder *embedding.Service, topK int) *Retriever {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Retriever{
		store:    store,
		embedder: embedder,
		topK:     topK,
		log:      logger.Default().WithField("component", "retrieval"),
	}
}

// Retrieve returns up to topK contexts for the user, restricted to the
// given providers. The second return reports whether the recency
// fallback was used.
func (r *Retriever) Retrieve(ctx context.Context, userID string, providers []domain.EmailProvider) ([]domain.EmailContext, bool, error) {
	if len(providers) == 0 {
		return nil, false, nil
	}

	contexts, err := r.similaritySearch(ctx, userID, providers)
	if err != nil {
		r.log.WithError(err).WithField("user_id", userID).Warn("similarity search failed, falling back to recency")
		return r.recencyFallback(ctx, userID, providers)
	}
	if len(contexts) == 0 {
		return r.recencyFallback(ctx, userID, providers)
	}
	return contexts, false, nil
}

func (r *Retriever) similaritySearch(ctx context.Context, userID string, providers []domain.EmailProvider) ([]domain.EmailContext, error) {
	query, err := r.embedder.EmbedText(ctx, DefaultRetrievalQuery)
	if err != nil {
		return nil, err
	}
	return r.store.SearchSimilar(ctx, userID, query, providers, r.topK)
}

func (r *Retriever) recencyFallback(ctx context.Context, userID string, providers []domain.EmailProvider) ([]domain.EmailContext, bool, error) {
	contexts, err := r.store.ListRecent(ctx, userID, providers, r.topK)
	if err != nil {
		return nil, true, err
	}
	return contexts, true, nil
}
