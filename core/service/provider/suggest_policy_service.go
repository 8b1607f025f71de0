// Package provider manages per-provider connection policies: linking,
// ingestion toggles, the derived mode matrix, and automatic disconnect
// on unrecoverable auth failures.
package provider

import (
	"context"
	"time"

	"github.com/google/uuid"

	"suggest_server/core/domain"
	"suggest_server/core/port/in"
	"suggest_server/core/port/out"
	"suggest_server/pkg/apperr"
	"suggest_server/pkg/logger"
)

// Service implements provider policy operations
type Service struct {
	policies out.PolicyRepository
	tokens   out.TokenRepository
	cache    out.PolicyCache
	events   out.EventSink
	cacheTTL time.Duration
	log      *logger.Logger
}

func NewService(policies out.PolicyRepository, tokens out.TokenRepository, cache out.PolicyCache, events out.EventSink, cacheTTL time.Duration) *Service {
	if cacheTTL <= 0 {
		cacheTTL = time.Minute
	}
	return &Service{
		policies: policies,
		tokens:   tokens,
		cache:    cache,
		events:   events,
		cacheTTL: cacheTTL,
		log:      logger.Default().WithField("component", "provider"),
	}
}

// Matrix returns the per-provider connection picture. An explicit
// policy row wins; a provider without a row falls back to stored token
// presence, and the resolved state is persisted so later reads and
// mutations see an explicit row.
func (s *Service) Matrix(ctx context.Context, userID uuid.UUID) (*domain.PolicyMatrix, error) {
	if s.cache != nil {
		if matrix, ok, err := s.cache.GetMatrix(ctx, userID.String()); err == nil && ok {
			return matrix, nil
		}
	}

	policies, err := s.policies.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	policies, err = s.reconcileMissing(ctx, userID, policies)
	if err != nil {
		return nil, err
	}

	matrix := buildMatrix(policies)

	if s.cache != nil {
		if err := s.cache.SetMatrix(ctx, userID.String(), matrix, s.cacheTTL); err != nil {
			s.log.WithError(err).Debug("policy cache write failed")
		}
	}
	return matrix, nil
}

// reconcileMissing seeds a policy row for every supported provider the
// user has no explicit row for. A stored OAuth token counts as linked
// and ingest-enabled, matching what connecting originally granted.
func (s *Service) reconcileMissing(ctx context.Context, userID uuid.UUID, policies []*domain.ProviderPolicy) ([]*domain.ProviderPolicy, error) {
	seen := make(map[domain.EmailProvider]bool, len(policies))
	for _, p := range policies {
		seen[p.Provider] = true
	}

	for _, provider := range domain.SupportedProviders {
		if seen[provider] {
			continue
		}

		hasToken := false
		if conn, err := s.tokens.GetByUserAndProvider(ctx, userID, provider); err == nil && conn != nil {
			hasToken = true
		}

		policy := &domain.ProviderPolicy{
			UserID:        userID,
			Provider:      provider,
			Linked:        hasToken,
			IngestEnabled: hasToken,
		}
		if hasToken {
			now := time.Now().UTC()
			policy.LastLinkedAt = &now
		}

		stored, err := s.policies.Upsert(ctx, policy)
		if err != nil {
			return nil, err
		}
		policies = append(policies, stored)
	}
	return policies, nil
}

// Connect marks a provider linked and ingest-enabled
func (s *Service) Connect(ctx context.Context, userID uuid.UUID, provider domain.EmailProvider) (*domain.PolicyMatrix, error) {
	if !provider.IsSupported() {
		return nil, apperr.InvalidInput("provider", "unknown provider")
	}

	policy, err := s.policyFor(ctx, userID, provider)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	policy.Linked = true
	policy.IngestEnabled = true
	policy.LastLinkedAt = &now
	policy.ReconnectRequired = false
	policy.ReconnectReason = ""
	policy.ReconnectRequiredAt = nil

	if _, err := s.policies.Upsert(ctx, policy); err != nil {
		return nil, err
	}

	s.invalidate(ctx, userID)
	return s.Matrix(ctx, userID)
}

// Disconnect unlinks a provider, removes its tokens, and records the
// event. Token removal is best-effort, a failed delete never blocks
// the policy change.
func (s *Service) Disconnect(ctx context.Context, userID uuid.UUID, provider domain.EmailProvider, opts in.DisconnectOptions) (*domain.PolicyMatrix, error) {
	if !provider.IsSupported() {
		return nil, apperr.InvalidInput("provider", "unknown provider")
	}

	policy, err := s.policyFor(ctx, userID, provider)
	if err != nil {
		return nil, err
	}

	policy.Linked = false
	policy.IngestEnabled = false
	if opts.MarkReconnectRequired {
		now := time.Now().UTC()
		policy.ReconnectRequired = true
		policy.ReconnectReason = opts.Reason
		policy.ReconnectRequiredAt = &now
	} else {
		policy.ReconnectRequired = false
		policy.ReconnectReason = ""
		policy.ReconnectRequiredAt = nil
	}

	if _, err := s.policies.Upsert(ctx, policy); err != nil {
		return nil, err
	}

	if err := s.tokens.Delete(ctx, userID, provider); err != nil {
		s.log.WithError(err).
			WithField("user_id", userID.String()).
			WithField("provider", string(provider)).
			Warn("token removal failed during disconnect")
	}

	s.invalidate(ctx, userID)

	s.logEventSafe(ctx, &domain.EventLog{
		UserID:    userID.String(),
		EventType: domain.EventProviderDisconnected,
		Metadata: map[string]any{
			"provider":          string(provider),
			"ingestEnabled":     false,
			"automatic":         opts.Automatic,
			"reason":            opts.Reason,
			"source":            opts.Source,
			"reconnectRequired": opts.MarkReconnectRequired,
		},
		CreatedAt: time.Now().UTC(),
	})

	return s.Matrix(ctx, userID)
}

// SetIngestEnabled toggles ingestion for a provider. Enabling also
// links, a user flipping the switch expects the provider to count.
func (s *Service) SetIngestEnabled(ctx context.Context, userID uuid.UUID, provider domain.EmailProvider, enabled bool) (*domain.PolicyMatrix, error) {
	if !provider.IsSupported() {
		return nil, apperr.InvalidInput("provider", "unknown provider")
	}

	policy, err := s.policyFor(ctx, userID, provider)
	if err != nil {
		return nil, err
	}

	policy.IngestEnabled = enabled
	if enabled {
		policy.Linked = true
	}

	if _, err := s.policies.Upsert(ctx, policy); err != nil {
		return nil, err
	}

	s.invalidate(ctx, userID)
	return s.Matrix(ctx, userID)
}

// AllowedProviders returns the providers ingestion may touch
func (s *Service) AllowedProviders(ctx context.Context, userID uuid.UUID) ([]domain.EmailProvider, error) {
	matrix, err := s.Matrix(ctx, userID)
	if err != nil {
		return nil, err
	}
	return matrix.Mode.AllowedProviders(), nil
}

// HandleProviderError disconnects a provider whose credentials are
// beyond refresh. Only invalid_grant class failures trigger the
// disconnect, transient errors are left for the next run.
func (s *Service) HandleProviderError(ctx context.Context, userID uuid.UUID, provider domain.EmailProvider, cause error, source string) (bool, error) {
	if cause == nil || !IsInvalidGrant(cause) {
		return false, nil
	}

	s.log.WithField("user_id", userID.String()).
		WithField("provider", string(provider)).
		Warn("invalid_grant detected, disconnecting provider")

	_, err := s.Disconnect(ctx, userID, provider, in.DisconnectOptions{
		Source:                source,
		Automatic:             true,
		Reason:                "invalid_grant",
		MarkReconnectRequired: true,
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

// policyFor loads a provider's policy row, running the full matrix
// resolution first when the user has never been seen so the row exists
// before mutation.
func (s *Service) policyFor(ctx context.Context, userID uuid.UUID, provider domain.EmailProvider) (*domain.ProviderPolicy, error) {
	policy, err := s.policies.GetByProvider(ctx, userID, provider)
	if err == nil {
		return policy, nil
	}

	if _, mErr := s.Matrix(ctx, userID); mErr != nil {
		return nil, mErr
	}
	return s.policies.GetByProvider(ctx, userID, provider)
}

func (s *Service) invalidate(ctx context.Context, userID uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, userID.String()); err != nil {
		s.log.WithError(err).Debug("policy cache invalidation failed")
	}
}

func (s *Service) logEventSafe(ctx context.Context, event *domain.EventLog) {
	if s.events == nil {
		return
	}
	if err := s.events.Log(ctx, event); err != nil {
		s.log.WithError(err).WithField("event_type", event.EventType).Warn("event log write failed")
	}
}

func buildMatrix(policies []*domain.ProviderPolicy) *domain.PolicyMatrix {
	matrix := &domain.PolicyMatrix{}
	for _, p := range policies {
		state := domain.ProviderState{
			Linked:        p.Linked,
			IngestEnabled: p.IngestEnabled,
		}
		switch p.Provider {
		case domain.ProviderGmail:
			matrix.Gmail = state
		case domain.ProviderOutlook:
			matrix.Outlook = state
		}
	}
	matrix.Mode = domain.BuildMode(matrix.Gmail, matrix.Outlook)
	return matrix
}

var _ in.ProviderService = (*Service)(nil)
