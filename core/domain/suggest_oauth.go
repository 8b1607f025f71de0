package domain

import (
	"time"

	"github.com/google/uuid"
)

// OAuthConnection holds a provider token set for a user. Token values
// are encrypted at rest and never serialized.
type OAuthConnection struct {
	ID           int64         `json:"id"`
	UserID       uuid.UUID     `json:"user_id"`
	Provider     EmailProvider `json:"provider"`
	Email        string        `json:"email,omitempty"`
	AccessToken  string        `json:"-"`
	RefreshToken string        `json:"-"`
	ExpiresAt    time.Time     `json:"expires_at"`
	Scope        string        `json:"-"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// Expired reports whether the access token has passed its expiry
func (c *OAuthConnection) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && now.After(c.ExpiresAt)
}
