package provider

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"suggest_server/core/domain"
	"suggest_server/core/port/in"
)

var errNoPolicyRow = errors.New("policy row not found")

type memPolicyRepo struct {
	rows   map[domain.EmailProvider]*domain.ProviderPolicy
	nextID int64
}

func newMemPolicyRepo() *memPolicyRepo {
	return &memPolicyRepo{rows: make(map[domain.EmailProvider]*domain.ProviderPolicy)}
}

func (r *memPolicyRepo) ListByUser(_ context.Context, _ uuid.UUID) ([]*domain.ProviderPolicy, error) {
	out := make([]*domain.ProviderPolicy, 0, len(r.rows))
	for _, p := range r.rows {
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

func (r *memPolicyRepo) GetByProvider(_ context.Context, _ uuid.UUID, provider domain.EmailProvider) (*domain.ProviderPolicy, error) {
	p, ok := r.rows[provider]
	if !ok {
		return nil, errNoPolicyRow
	}
	cp := *p
	return &cp, nil
}

func (r *memPolicyRepo) Upsert(_ context.Context, policy *domain.ProviderPolicy) (*domain.ProviderPolicy, error) {
	cp := *policy
	if existing, ok := r.rows[policy.Provider]; ok {
		cp.ID = existing.ID
	} else {
		r.nextID++
		cp.ID = r.nextID
	}
	cp.UpdatedAt = time.Now().UTC()
	r.rows[policy.Provider] = &cp
	res := cp
	return &res, nil
}

type memTokenRepo struct {
	conns map[domain.EmailProvider]*domain.OAuthConnection
}

func newMemTokenRepo() *memTokenRepo {
	return &memTokenRepo{conns: make(map[domain.EmailProvider]*domain.OAuthConnection)}
}

func (r *memTokenRepo) GetByUserAndProvider(_ context.Context, _ uuid.UUID, provider domain.EmailProvider) (*domain.OAuthConnection, error) {
	conn, ok := r.conns[provider]
	if !ok {
		return nil, errors.New("no token stored")
	}
	return conn, nil
}

func (r *memTokenRepo) Upsert(_ context.Context, conn *domain.OAuthConnection) error {
	r.conns[conn.Provider] = conn
	return nil
}

func (r *memTokenRepo) Delete(_ context.Context, _ uuid.UUID, provider domain.EmailProvider) error {
	delete(r.conns, provider)
	return nil
}

func (r *memTokenRepo) ListUserIDsWithTokens(_ context.Context) ([]uuid.UUID, error) {
	return nil, nil
}

func newPolicyService(policies *memPolicyRepo, tokens *memTokenRepo) *Service {
	return NewService(policies, tokens, nil, nil, time.Minute)
}

func TestMatrix_TokenPresenceSeedsMissingRows(t *testing.T) {
	userID := uuid.New()
	policies := newMemPolicyRepo()
	tokens := newMemTokenRepo()
	tokens.conns[domain.ProviderGmail] = &domain.OAuthConnection{
		UserID:       userID,
		Provider:     domain.ProviderGmail,
		RefreshToken: "rt",
	}

	svc := newPolicyService(policies, tokens)

	matrix, err := svc.Matrix(context.Background(), userID)
	if err != nil {
		t.Fatalf("Matrix: %v", err)
	}

	if matrix.Mode != domain.ModeGmailOnly {
		t.Errorf("mode = %q, want %q", matrix.Mode, domain.ModeGmailOnly)
	}
	if !matrix.Gmail.Linked || !matrix.Gmail.IngestEnabled {
		t.Errorf("gmail state = %+v, want linked and ingest enabled", matrix.Gmail)
	}
	if matrix.Outlook.Linked {
		t.Errorf("outlook should stay unlinked without a token")
	}

	stored, err := policies.GetByProvider(context.Background(), userID, domain.ProviderGmail)
	if err != nil {
		t.Fatalf("seeded gmail row missing: %v", err)
	}
	if !stored.Linked || !stored.IngestEnabled || stored.LastLinkedAt == nil {
		t.Errorf("seeded row = %+v, want linked with last_linked_at set", stored)
	}
	if _, err := policies.GetByProvider(context.Background(), userID, domain.ProviderOutlook); err != nil {
		t.Errorf("outlook row should be seeded as unlinked: %v", err)
	}
}

func TestMatrix_ExplicitRowWinsOverToken(t *testing.T) {
	userID := uuid.New()
	policies := newMemPolicyRepo()
	tokens := newMemTokenRepo()
	tokens.conns[domain.ProviderGmail] = &domain.OAuthConnection{
		UserID:   userID,
		Provider: domain.ProviderGmail,
	}
	policies.rows[domain.ProviderGmail] = &domain.ProviderPolicy{
		ID:            1,
		UserID:        userID,
		Provider:      domain.ProviderGmail,
		Linked:        false,
		IngestEnabled: false,
	}

	svc := newPolicyService(policies, tokens)

	matrix, err := svc.Matrix(context.Background(), userID)
	if err != nil {
		t.Fatalf("Matrix: %v", err)
	}
	if matrix.Mode != domain.ModeNone {
		t.Errorf("mode = %q, want %q when the user explicitly unlinked", matrix.Mode, domain.ModeNone)
	}
}

func TestSetIngestEnabled_SeedsRowForNewUser(t *testing.T) {
	userID := uuid.New()
	policies := newMemPolicyRepo()
	tokens := newMemTokenRepo()

	svc := newPolicyService(policies, tokens)

	matrix, err := svc.SetIngestEnabled(context.Background(), userID, domain.ProviderOutlook, true)
	if err != nil {
		t.Fatalf("SetIngestEnabled: %v", err)
	}
	if matrix.Mode != domain.ModeOutlookOnly {
		t.Errorf("mode = %q, want %q", matrix.Mode, domain.ModeOutlookOnly)
	}
}

func TestDisconnect_ClearsPolicyAndTokens(t *testing.T) {
	userID := uuid.New()
	policies := newMemPolicyRepo()
	tokens := newMemTokenRepo()
	tokens.conns[domain.ProviderGmail] = &domain.OAuthConnection{
		UserID:   userID,
		Provider: domain.ProviderGmail,
	}

	svc := newPolicyService(policies, tokens)

	matrix, err := svc.Disconnect(context.Background(), userID, domain.ProviderGmail, in.DisconnectOptions{Source: "api"})
	if err != nil {
		t.Fatalf("Disconnect: %v", err)
	}
	if matrix.Mode != domain.ModeNone {
		t.Errorf("mode = %q, want %q after disconnect", matrix.Mode, domain.ModeNone)
	}
	if _, ok := tokens.conns[domain.ProviderGmail]; ok {
		t.Errorf("gmail tokens should be deleted on disconnect")
	}

	stored, err := policies.GetByProvider(context.Background(), userID, domain.ProviderGmail)
	if err != nil {
		t.Fatalf("gmail row missing after disconnect: %v", err)
	}
	if stored.Linked || stored.IngestEnabled {
		t.Errorf("row = %+v, want unlinked after disconnect", stored)
	}
}
