package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"suggest_server/core/domain"
	"suggest_server/core/port/out"
	"suggest_server/pkg/snowflake"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// PolicyRepository implements out.PolicyRepository
type PolicyRepository struct {
	db *sqlx.DB
}

// NewPolicyRepository creates a new PolicyRepository
func NewPolicyRepository(db *sqlx.DB) out.PolicyRepository {
	return &PolicyRepository{db: db}
}

const policyColumns = `id, user_id, provider, linked, ingest_enabled,
	       last_linked_at, reconnect_required, reconnect_reason,
	       reconnect_required_at, created_at, updated_at`

// ListByUser returns the explicit policy rows for a user. Providers
// without a row are resolved from token presence by the service layer,
// so nothing is backfilled here.
func (r *PolicyRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.ProviderPolicy, error) {
	query := `
		SELECT ` + policyColumns + `
		FROM provider_policies
		WHERE user_id = $1
		ORDER BY provider`

	var rows []policyRow
	if err := r.db.SelectContext(ctx, &rows, query, userID); err != nil {
		return nil, fmt.Errorf("list policies: %w", err)
	}

	policies := make([]*domain.ProviderPolicy, len(rows))
	for i, row := range rows {
		policies[i] = row.toDomain()
	}
	return policies, nil
}

func (r *PolicyRepository) GetByProvider(ctx context.Context, userID uuid.UUID, provider domain.EmailProvider) (*domain.ProviderPolicy, error) {
	query := `
		SELECT ` + policyColumns + `
		FROM provider_policies
		WHERE user_id = $1 AND provider = $2`

	var row policyRow
	if err := r.db.GetContext(ctx, &row, query, userID, provider); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get policy: %w", err)
	}

	return row.toDomain(), nil
}

func (r *PolicyRepository) Upsert(ctx context.Context, policy *domain.ProviderPolicy) (*domain.ProviderPolicy, error) {
	if policy.ID == 0 {
		policy.ID = snowflake.ID()
	}

	query := `
		INSERT INTO provider_policies (
			id, user_id, provider, linked, ingest_enabled, last_linked_at,
			reconnect_required, reconnect_reason, reconnect_required_at,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
		ON CONFLICT (user_id, provider) DO UPDATE SET
			linked = EXCLUDED.linked,
			ingest_enabled = EXCLUDED.ingest_enabled,
			last_linked_at = EXCLUDED.last_linked_at,
			reconnect_required = EXCLUDED.reconnect_required,
			reconnect_reason = EXCLUDED.reconnect_reason,
			reconnect_required_at = EXCLUDED.reconnect_required_at,
			updated_at = NOW()
		RETURNING ` + policyColumns

	var row policyRow
	err := r.db.GetContext(ctx, &row, query,
		policy.ID, policy.UserID, policy.Provider, policy.Linked,
		policy.IngestEnabled, policy.LastLinkedAt,
		policy.ReconnectRequired, policy.ReconnectReason,
		policy.ReconnectRequiredAt,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert policy: %w", err)
	}

	return row.toDomain(), nil
}

type policyRow struct {
	ID                  int64          `db:"id"`
	UserID              uuid.UUID      `db:"user_id"`
	Provider            string         `db:"provider"`
	Linked              bool           `db:"linked"`
	IngestEnabled       bool           `db:"ingest_enabled"`
	LastLinkedAt        sql.NullTime   `db:"last_linked_at"`
	ReconnectRequired   bool           `db:"reconnect_required"`
	ReconnectReason     sql.NullString `db:"reconnect_reason"`
	ReconnectRequiredAt sql.NullTime   `db:"reconnect_required_at"`
	CreatedAt           time.Time      `db:"created_at"`
	UpdatedAt           time.Time      `db:"updated_at"`
}

func (r *policyRow) toDomain() *domain.ProviderPolicy {
	policy := &domain.ProviderPolicy{
		ID:                r.ID,
		UserID:            r.UserID,
		Provider:          domain.EmailProvider(r.Provider),
		Linked:            r.Linked,
		IngestEnabled:     r.IngestEnabled,
		ReconnectRequired: r.ReconnectRequired,
		ReconnectReason:   r.ReconnectReason.String,
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
	}

	if r.LastLinkedAt.Valid {
		policy.LastLinkedAt = &r.LastLinkedAt.Time
	}
	if r.ReconnectRequiredAt.Valid {
		policy.ReconnectRequiredAt = &r.ReconnectRequiredAt.Time
	}

	return policy
}
