package suggestion

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"suggest_server/core/domain"
	"suggest_server/core/port/in"
	"suggest_server/core/port/out"
	"suggest_server/core/service/ingest"
	"suggest_server/pkg/apperr"
	"suggest_server/pkg/logger"
	"suggest_server/pkg/metrics"
)

// Refresh input bounds. Caller-supplied values outside these ranges
// are clamped, not rejected.
const (
	refreshMaxMessagesCap = 200
	refreshMinTimeBudget  = time.Second
	refreshMaxTimeBudget  = 5 * time.Minute
)

// CatchUpScheduler queues a follow-up refresh with a larger message
// cap after a truncated run. It reports already_running when the
// user's lock is still held. Implemented by the background scheduler.
type CatchUpScheduler interface {
	ScheduleCatchUp(userID uuid.UUID) domain.CatchUpState
}

// Service runs the suggestion pipeline and serves the stored set
type Service struct {
	providers   in.ProviderService
	engine      *ingest.Engine
	retriever   *Retriever
	generator   *Generator
	history     *HistoryMiner
	suggestions out.SuggestionRepository
	todos       out.TodoRepository
	events      out.EventSink
	catchUp     CatchUpScheduler
	maxItems    int
	log         *logger.Logger
}

func NewService(
	providers in.ProviderService,
	engine *ingest.Engine,
	retriever *Retriever,
	generator *Generator,
	history *HistoryMiner,
	suggestions out.SuggestionRepository,
	todos out.TodoRepository,
	events out.EventSink,
	maxItems int,
) *Service {
	if maxItems <= 0 {
		maxItems = MaxSuggestions
	}
	return &Service{
		providers:   providers,
		engine:      engine,
		retriever:   retriever,
		generator:   generator,
		history:     history,
		suggestions: suggestions,
		todos:       todos,
		events:      events,
		maxItems:    maxItems,
		log:         logger.Default().WithField("component", "suggestion"),
	}
}

// SetCatchUpScheduler wires the background scheduler in after
// construction, the two depend on each other at startup.
func (s *Service) SetCatchUpScheduler(scheduler CatchUpScheduler) {
	s.catchUp = scheduler
}

// Refresh runs the full pipeline for one user and replaces the stored
// suggestion set. Provider failures degrade the run instead of failing
// it: a broken provider is skipped (and auto-disconnected on
// unrecoverable auth errors), a malformed generation payload falls
// back to history-only output. Any other generation error aborts the
// run. A truncated manual run schedules a background catch-up.
func (s *Service) Refresh(ctx context.Context, userID uuid.UUID, opts in.RefreshOptions) (*domain.RefreshResult, error) {
	log := s.log.WithField("user_id", userID.String())
	started := time.Now()

	if opts.MaxMessages > refreshMaxMessagesCap {
		opts.MaxMessages = refreshMaxMessagesCap
	}
	if opts.MaxMessages < 0 {
		opts.MaxMessages = 0
	}
	if opts.TimeBudget > 0 && opts.TimeBudget < refreshMinTimeBudget {
		opts.TimeBudget = refreshMinTimeBudget
	}
	if opts.TimeBudget > refreshMaxTimeBudget {
		opts.TimeBudget = refreshMaxTimeBudget
	}

	var deadline time.Time
	if opts.TimeBudget > 0 {
		deadline = started.Add(opts.TimeBudget)
	}

	matrix, err := s.providers.Matrix(ctx, userID)
	if err != nil {
		return nil, err
	}

	info := domain.RefreshInfo{
		Mode:              matrix.Mode,
		ProvidersIngested: []string{},
		Ingestion:         map[string]domain.IngestStats{},
	}

	// Task history leg runs regardless of provider state, it is the
	// only signal for users with no mailbox connected
	historyEligible, err := s.history.Eligible(ctx, userID)
	if err != nil {
		log.WithError(err).Warn("history eligibility check failed")
		historyEligible = false
	}

	var historySuggestions []HistorySuggestion
	if historyEligible {
		historySuggestions, err = s.history.Mine(ctx, userID)
		if err != nil {
			log.WithError(err).Warn("history mining failed")
			historySuggestions = nil
		}
	}
	info.TaskHistoryCount = len(historySuggestions)

	// Mailbox leg: ingest every allowed provider under the shared
	// budget, then retrieve and generate
	ingestStarted := time.Now()
	allowed := matrix.Mode.AllowedProviders()
	for _, provider := range allowed {
		if !deadline.IsZero() && time.Now().After(deadline) {
			info.Ingestion[string(provider)] = domain.IngestStats{TruncatedReason: domain.TruncatedTimeBudget}
			continue
		}

		stats, ingestErr := s.engine.IngestProvider(ctx, userID, provider, opts.MaxMessages, deadline)
		if ingestErr != nil {
			log.WithError(ingestErr).WithField("provider", string(provider)).Warn("provider ingestion failed")
			disconnected, handleErr := s.providers.HandleProviderError(ctx, userID, provider, ingestErr, "suggestion_refresh")
			if handleErr != nil {
				log.WithError(handleErr).WithField("provider", string(provider)).Warn("provider error handling failed")
			}
			if disconnected {
				log.WithField("provider", string(provider)).Info("provider auto-disconnected during refresh")
			}
			if stats != nil {
				info.Ingestion[string(provider)] = *stats
			}
			continue
		}

		info.ProvidersIngested = append(info.ProvidersIngested, string(provider))
		if stats != nil {
			info.Ingestion[string(provider)] = *stats
		}
	}

	ingestDur := time.Since(ingestStarted)
	if len(allowed) > 0 {
		metrics.RecordLatency("pipeline.ingest", ingestDur)
	}

	for _, stats := range info.Ingestion {
		info.ProcessedMessages += stats.Scanned
		if stats.TruncatedReason == "" {
			continue
		}
		info.Partial = true
		if stats.TruncatedReason == domain.TruncatedTimeBudget || info.LimitedBy == "" {
			info.LimitedBy = stats.TruncatedReason
		}
	}

	var emailSuggestions []GeneratedSuggestion
	var retrieveDur, generateDur time.Duration
	if len(allowed) > 0 {
		retrieveStarted := time.Now()
		contexts, _, retrieveErr := s.retriever.Retrieve(ctx, userID.String(), allowed)
		retrieveDur = time.Since(retrieveStarted)
		metrics.RecordLatency("pipeline.retrieve", retrieveDur)
		if retrieveErr != nil {
			log.WithError(retrieveErr).Warn("retrieval failed, continuing without email contexts")
		}
		info.ContextsUsed = len(contexts)

		if len(contexts) > 0 {
			generateStarted := time.Now()
			var usage *out.TokenUsage
			emailSuggestions, usage, err = s.generator.Generate(ctx, contexts)
			generateDur = time.Since(generateStarted)
			metrics.RecordLatency("pipeline.generate", generateDur)
			s.logUsage(ctx, userID, usage)
			if err != nil {
				code := generationErrorCode(err)
				if code != apperr.CodeInvalidJSON {
					return nil, err
				}
				// A malformed payload is recoverable, everything
				// else means the model or transport is down
				info.GenerationFallbackUsed = true
				info.GenerationErrorCode = code
				log.WithError(err).Warn("generation returned malformed payload, falling back to history only")
				emailSuggestions = nil
			}
		}
	}

	merged := MergeSuggestions(emailSuggestions, historySuggestions, s.maxItems)
	enriched := EnrichSources(merged)

	var stored []*domain.Suggestion
	if len(enriched) == 0 && opts.PreserveExistingOnEmpty {
		existing, listErr := s.suggestions.ListByUser(ctx, userID, domain.SuggestionStatusSuggested, s.maxItems)
		if listErr != nil {
			return nil, listErr
		}
		stored = existing
		info.PreservedExisting = true
	} else {
		stored, err = s.suggestions.ReplaceForUser(ctx, userID, candidatesToSuggestions(userID, enriched))
		if err != nil {
			return nil, err
		}
	}

	if len(stored) == 0 {
		info.ReasonCode = domain.EmptyResultReason(matrix.Mode, historyEligible)
	}

	info.CatchUpState = domain.CatchUpStateSkipped
	if info.Partial && opts.Trigger == "manual" && s.catchUp != nil {
		info.CatchUpState = s.catchUp.ScheduleCatchUp(userID)
	}
	info.CatchUpScheduled = info.CatchUpState == domain.CatchUpStateScheduled

	timings := map[string]any{
		"ingestMs":   ingestDur.Milliseconds(),
		"retrieveMs": retrieveDur.Milliseconds(),
		"generateMs": generateDur.Milliseconds(),
		"totalMs":    time.Since(started).Milliseconds(),
	}
	s.logGenerated(ctx, userID, &info, matrix, len(stored), opts.Trigger, timings)
	metrics.RecordLatency("pipeline.refresh", time.Since(started))

	log.WithDuration(time.Since(started)).
		WithField("suggestions", len(stored)).
		WithField("mode", string(matrix.Mode)).
		Info("suggestion refresh complete")

	return &domain.RefreshResult{
		Suggestions: stored,
		Refresh:     info,
	}, nil
}

// List returns the stored suggestions for a user
func (s *Service) List(ctx context.Context, userID uuid.UUID, status domain.SuggestionStatus, limit int) ([]*domain.Suggestion, error) {
	if status == "" {
		status = domain.SuggestionStatusSuggested
	}
	if limit <= 0 {
		limit = 20
	}
	return s.suggestions.ListByUser(ctx, userID, status, limit)
}

// Accept converts a suggestion into a task and marks it accepted
func (s *Service) Accept(ctx context.Context, userID uuid.UUID, suggestionID int64) (*domain.Todo, error) {
	sug, err := s.suggestions.GetByID(ctx, userID, suggestionID)
	if err != nil {
		return nil, err
	}
	if sug.Status != domain.SuggestionStatusSuggested {
		return nil, apperr.Conflict("suggestion already resolved")
	}

	sourceType := domain.TodoSourceSuggestion
	todo, err := s.todos.Create(ctx, &domain.Todo{
		UserID:       userID,
		Title:        sug.Title,
		Description:  sug.Detail,
		Status:       domain.TodoStatusPending,
		SourceType:   &sourceType,
		SuggestionID: &sug.ID,
	})
	if err != nil {
		return nil, err
	}

	if _, err := s.suggestions.UpdateStatus(ctx, userID, suggestionID, domain.SuggestionStatusAccepted); err != nil {
		return nil, err
	}
	return todo, nil
}

// Dismiss marks a suggestion as rejected
func (s *Service) Dismiss(ctx context.Context, userID uuid.UUID, suggestionID int64) (*domain.Suggestion, error) {
	sug, err := s.suggestions.GetByID(ctx, userID, suggestionID)
	if err != nil {
		return nil, err
	}
	if sug.Status != domain.SuggestionStatusSuggested {
		return nil, apperr.Conflict("suggestion already resolved")
	}
	return s.suggestions.UpdateStatus(ctx, userID, suggestionID, domain.SuggestionStatusDismissed)
}

func candidatesToSuggestions(userID uuid.UUID, candidates []domain.Candidate) []*domain.Suggestion {
	suggestions := make([]*domain.Suggestion, 0, len(candidates))
	for _, c := range candidates {
		suggestions = append(suggestions, &domain.Suggestion{
			UserID:           userID,
			Title:            c.Title,
			Detail:           c.Detail,
			Source:           c.Source,
			SourceLabel:      c.SourceLabel,
			SourceMessageIDs: c.SourceMessageIDs,
			Confidence:       c.Confidence,
			Status:           domain.SuggestionStatusSuggested,
			Metadata:         c.Metadata,
		})
	}
	return suggestions
}

func generationErrorCode(err error) string {
	var appErr *apperr.AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return apperr.CodeAIError
}

func (s *Service) logUsage(ctx context.Context, userID uuid.UUID, usage *out.TokenUsage) {
	if usage == nil {
		return
	}
	s.logEventSafe(ctx, &domain.EventLog{
		UserID:    userID.String(),
		EventType: domain.EventGenerationUsage,
		Metadata: map[string]any{
			"promptTokens":     usage.PromptTokens,
			"completionTokens": usage.CompletionTokens,
			"totalTokens":      usage.TotalTokens,
		},
		CreatedAt: time.Now().UTC(),
	})
}

func (s *Service) logGenerated(ctx context.Context, userID uuid.UUID, info *domain.RefreshInfo, matrix *domain.PolicyMatrix, count int, trigger string, timings map[string]any) {
	s.logEventSafe(ctx, &domain.EventLog{
		UserID:    userID.String(),
		EventType: domain.EventSuggestionsGenerated,
		Metadata: map[string]any{
			"mode":              string(info.Mode),
			"reasonCode":        info.ReasonCode,
			"suggestionsCount":  count,
			"contextsUsed":      info.ContextsUsed,
			"taskHistoryCount":  info.TaskHistoryCount,
			"providersIngested": info.ProvidersIngested,
			"processedMessages": info.ProcessedMessages,
			"partial":           info.Partial,
			"limitedBy":         info.LimitedBy,
			"catchUpState":      string(info.CatchUpState),
			"catchUpScheduled":  info.CatchUpScheduled,
			"preservedExisting": info.PreservedExisting,
			"providerMatrix":    matrix,
			"trigger":           trigger,
			"timings":           timings,
		},
		CreatedAt: time.Now().UTC(),
	})
}

// logEventSafe writes an audit event without letting a sink failure
// touch the refresh outcome
func (s *Service) logEventSafe(ctx context.Context, event *domain.EventLog) {
	if s.events == nil {
		return
	}
	if err := s.events.Log(ctx, event); err != nil {
		s.log.WithError(err).WithField("event_type", event.EventType).Warn("event log write failed")
	}
}

var _ in.SuggestionService = (*Service)(nil)
