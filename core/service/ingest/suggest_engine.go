package ingest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"suggest_server/config"
	"suggest_server/core/domain"
	"suggest_server/core/port/out"
	"suggest_server/core/service/embedding"
	"suggest_server/pkg/logger"
	"suggest_server/pkg/textutil"
)

// Engine runs one provider's ingestion end to end: fetch new messages
// past the cursor, bucket them by thread, summarize each bucket, embed,
// upsert into the context store, then advance the cursor. The cursor
// only moves after a successful upsert so a failed run is retried from
// the same watermark.
type Engine struct {
	sources    map[domain.EmailProvider]out.MailSource
	tokens     out.TokenRepository
	cursors    out.CursorRepository
	store      out.ContextStore
	embedder   *embedding.Service
	summarizer *Summarizer
	cfg        *config.Config
	log        *logger.Logger
}

func NewEngine(
	sources []out.MailSource,
	tokens out.TokenRepository,
	cursors out.CursorRepository,
	store out.ContextStore,
	embedder *embedding.Service,
	summarizer *Summarizer,
	cfg *config.Config,
) *Engine {
	byName := make(map[domain.EmailProvider]out.MailSource, len(sources))
	for _, src := range sources {
		byName[src.Name()] = src
	}
	return &Engine{
		sources:    byName,
		tokens:     tokens,
		cursors:    cursors,
		store:      store,
		embedder:   embedder,
		summarizer: summarizer,
		cfg:        cfg,
		log:        logger.Default().WithField("component", "ingest"),
	}
}

// IngestProvider pulls one provider's new mail for the user. The
// deadline is the shared refresh budget, zero means unbounded.
// maxMessages overrides the configured cap, zero keeps the default.
func (e *Engine) IngestProvider(ctx context.Context, userID uuid.UUID, provider domain.EmailProvider, maxMessages int, deadline time.Time) (*domain.IngestStats, error) {
	source, ok := e.sources[provider]
	if !ok {
		return nil, fmt.Errorf("no mail source registered for provider %s", provider)
	}

	if maxMessages <= 0 {
		maxMessages = e.cfg.IngestMaxMessages
	}

	conn, err := e.tokens.GetByUserAndProvider(ctx, userID, provider)
	if err != nil {
		return nil, fmt.Errorf("load %s token: %w", provider, err)
	}

	cursor, err := e.cursors.Get(ctx, userID.String(), provider)
	if err != nil {
		return nil, fmt.Errorf("load %s cursor: %w", provider, err)
	}

	result, err := source.FetchMessages(ctx, conn, cursor, out.FetchOptions{
		MaxMessages:       maxMessages,
		PageSize:          e.cfg.IngestPageSize,
		LookbackDays:      e.cfg.IngestLookbackDays,
		ExcludeCategories: e.cfg.IngestExcludeCategories,
		Deadline:          deadline,
	})
	if err != nil {
		return nil, err
	}

	stats := &domain.IngestStats{
		Scanned:         result.Scanned,
		TruncatedReason: result.TruncatedReason,
	}

	if len(result.Messages) == 0 {
		e.log.WithField("user_id", userID.String()).WithField("provider", string(provider)).Debug("no new messages")
		return stats, nil
	}

	messages := e.summarizeThreads(ctx, result.Messages, deadline)

	items, err := e.embedder.EmbedMessages(ctx, messages)
	if err != nil {
		return stats, fmt.Errorf("embed %s messages: %w", provider, err)
	}

	embedded, err := e.store.UpsertMany(ctx, userID.String(), items)
	if err != nil {
		return stats, fmt.Errorf("store %s embeddings: %w", provider, err)
	}
	stats.Embedded = embedded

	if result.NewCursor != nil {
		if err := e.cursors.Upsert(ctx, result.NewCursor); err != nil {
			// Non-fatal, the next run re-reads the same window and
			// upserts are idempotent
			e.log.WithError(err).WithField("user_id", userID.String()).WithField("provider", string(provider)).Warn("cursor advance failed")
		}
	}

	e.log.WithField("user_id", userID.String()).
		WithField("provider", string(provider)).
		WithField("scanned", stats.Scanned).
		WithField("embedded", stats.Embedded).
		Info("ingestion complete")

	return stats, nil
}

// summarizeThreads groups messages into thread buckets and condenses
// each bucket once, writing the shared summary back to every member.
// Multi-message threads get the larger thread word cap since their
// concatenated bodies carry more context than a lone message.
func (e *Engine) summarizeThreads(ctx context.Context, messages []domain.EmailMessage, deadline time.Time) []domain.EmailMessage {
	type bucket struct {
		indexes  []int
		earliest time.Time
	}

	buckets := make(map[string]*bucket)
	for i, msg := range messages {
		key := msg.ThreadID
		if key == "" {
			key = msg.MessageID
		}
		var sentAt time.Time
		if msg.SentAt != nil {
			sentAt = *msg.SentAt
		}
		b, ok := buckets[key]
		if !ok {
			b = &bucket{earliest: sentAt}
			buckets[key] = b
		}
		b.indexes = append(b.indexes, i)
		if sentAt.Before(b.earliest) {
			b.earliest = sentAt
		}
	}

	// Buckets are processed oldest thread first so a run that hits the
	// deadline degrades the same messages every time.
	ordered := make([]*bucket, 0, len(buckets))
	for _, b := range buckets {
		ordered = append(ordered, b)
	}
	sort.Slice(ordered, func(i, j int) bool {
		if !ordered[i].earliest.Equal(ordered[j].earliest) {
			return ordered[i].earliest.Before(ordered[j].earliest)
		}
		return ordered[i].indexes[0] < ordered[j].indexes[0]
	})

	condensed := make([]domain.EmailMessage, len(messages))
	copy(condensed, messages)

	for _, b := range ordered {
		var parts []string
		for _, idx := range b.indexes {
			if body := strings.TrimSpace(condensed[idx].Body); body != "" {
				parts = append(parts, body)
			}
		}
		if len(parts) == 0 {
			continue
		}
		joined := strings.Join(parts, "\n\n")

		var summary string
		if !deadline.IsZero() && time.Now().After(deadline) {
			// Budget gone, keep raw truncated text for what remains
			summary = textutil.Truncate(joined, summaryFallbackChars)
		} else {
			maxWords := e.cfg.SummaryMaxWords
			if len(b.indexes) > 1 {
				maxWords = e.cfg.ThreadSummaryMaxWords
			}
			summary = e.summarizer.SummarizeOrTruncate(ctx, joined, maxWords)
		}
		for _, idx := range b.indexes {
			condensed[idx].Body = summary
		}
	}
	return condensed
}
