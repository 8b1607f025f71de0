package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"suggest_server/core/domain"
	"suggest_server/core/port/out"
	"suggest_server/pkg/crypto"
	"suggest_server/pkg/logger"
	"suggest_server/pkg/snowflake"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// TokenRepository implements out.TokenRepository. Token values are
// encrypted at rest when an encryption key is configured.
type TokenRepository struct {
	db                *sqlx.DB
	encryptionEnabled bool
}

// NewTokenRepository creates a new TokenRepository
func NewTokenRepository(db *sqlx.DB) out.TokenRepository {
	err := crypto.Init()
	encryptionEnabled := err == nil
	if !encryptionEnabled {
		logger.Warn("Token encryption disabled: %v", err)
	} else {
		logger.Info("Token encryption enabled")
	}

	return &TokenRepository{
		db:                db,
		encryptionEnabled: encryptionEnabled,
	}
}

// encryptToken encrypts a token if encryption is enabled
func (r *TokenRepository) encryptToken(token string) string {
	if !r.encryptionEnabled || token == "" {
		return token
	}
	encrypted, err := crypto.EncryptToken(token)
	if err != nil {
		logger.Warn("Failed to encrypt token: %v", err)
		return token
	}
	return encrypted
}

// decryptToken decrypts a token if it appears to be encrypted
func (r *TokenRepository) decryptToken(token string) string {
	if token == "" {
		return token
	}
	if !crypto.IsEncrypted(token) {
		return token
	}
	decrypted, err := crypto.DecryptToken(token)
	if err != nil {
		// Token might not be encrypted (legacy), return as-is
		return token
	}
	return decrypted
}

func (r *TokenRepository) GetByUserAndProvider(ctx context.Context, userID uuid.UUID, provider domain.EmailProvider) (*domain.OAuthConnection, error) {
	query := `
		SELECT id, user_id, provider, email, access_token, refresh_token,
		       expires_at, scope, created_at, updated_at
		FROM oauth_connections
		WHERE user_id = $1 AND provider = $2`

	var row connectionRow
	if err := r.db.GetContext(ctx, &row, query, userID, provider); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get oauth connection: %w", err)
	}

	conn := row.toDomain()
	conn.AccessToken = r.decryptToken(conn.AccessToken)
	conn.RefreshToken = r.decryptToken(conn.RefreshToken)
	return conn, nil
}

func (r *TokenRepository) Upsert(ctx context.Context, conn *domain.OAuthConnection) error {
	if conn.ID == 0 {
		conn.ID = snowflake.ID()
	}

	query := `
		INSERT INTO oauth_connections (
			id, user_id, provider, email, access_token, refresh_token,
			expires_at, scope, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
		ON CONFLICT (user_id, provider) DO UPDATE SET
			email = EXCLUDED.email,
			access_token = EXCLUDED.access_token,
			refresh_token = EXCLUDED.refresh_token,
			expires_at = EXCLUDED.expires_at,
			scope = EXCLUDED.scope,
			updated_at = NOW()`

	_, err := r.db.ExecContext(ctx, query,
		conn.ID, conn.UserID, conn.Provider, conn.Email,
		r.encryptToken(conn.AccessToken), r.encryptToken(conn.RefreshToken),
		conn.ExpiresAt, conn.Scope,
	)
	if err != nil {
		return fmt.Errorf("upsert oauth connection: %w", err)
	}
	return nil
}

func (r *TokenRepository) Delete(ctx context.Context, userID uuid.UUID, provider domain.EmailProvider) error {
	_, err := r.db.ExecContext(ctx,
		"DELETE FROM oauth_connections WHERE user_id = $1 AND provider = $2",
		userID, provider)
	if err != nil {
		return fmt.Errorf("delete oauth connection: %w", err)
	}
	return nil
}

// ListUserIDsWithTokens returns users holding at least one connection,
// the population swept by the periodic refresh worker
func (r *TokenRepository) ListUserIDsWithTokens(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.SelectContext(ctx, &ids,
		"SELECT DISTINCT user_id FROM oauth_connections ORDER BY user_id")
	if err != nil {
		return nil, fmt.Errorf("list users with tokens: %w", err)
	}
	return ids, nil
}

type connectionRow struct {
	ID           int64          `db:"id"`
	UserID       uuid.UUID      `db:"user_id"`
	Provider     string         `db:"provider"`
	Email        sql.NullString `db:"email"`
	AccessToken  string         `db:"access_token"`
	RefreshToken sql.NullString `db:"refresh_token"`
	ExpiresAt    sql.NullTime   `db:"expires_at"`
	Scope        sql.NullString `db:"scope"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
}

func (r *connectionRow) toDomain() *domain.OAuthConnection {
	conn := &domain.OAuthConnection{
		ID:           r.ID,
		UserID:       r.UserID,
		Provider:     domain.EmailProvider(r.Provider),
		Email:        r.Email.String,
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken.String,
		Scope:        r.Scope.String,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
	if r.ExpiresAt.Valid {
		conn.ExpiresAt = r.ExpiresAt.Time
	}
	return conn
}
