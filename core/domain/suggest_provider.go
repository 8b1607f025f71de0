package domain

import (
	"time"

	"github.com/google/uuid"
)

// EmailProvider identifies a connected mailbox source
type EmailProvider string

const (
	ProviderGmail   EmailProvider = "gmail"
	ProviderOutlook EmailProvider = "outlook"
)

// SupportedProviders lists every provider the pipeline knows about
var SupportedProviders = []EmailProvider{ProviderGmail, ProviderOutlook}

// IsSupported reports whether p names a known provider
func (p EmailProvider) IsSupported() bool {
	return p == ProviderGmail || p == ProviderOutlook
}

// ProviderMode summarizes which providers may feed ingestion
type ProviderMode string

const (
	ModeNone        ProviderMode = "none"
	ModeGmailOnly   ProviderMode = "gmail_only"
	ModeOutlookOnly ProviderMode = "outlook_only"
	ModeBoth        ProviderMode = "both"
)

// ProviderPolicy is the per-user, per-provider connection policy row
type ProviderPolicy struct {
	ID            int64         `json:"id"`
	UserID        uuid.UUID     `json:"user_id"`
	Provider      EmailProvider `json:"provider"`
	Linked        bool          `json:"linked"`
	IngestEnabled bool          `json:"ingest_enabled"`
	LastLinkedAt  *time.Time    `json:"last_linked_at,omitempty"`

	// Reconnect markers set by automatic disconnects
	ReconnectRequired   bool       `json:"reconnect_required"`
	ReconnectReason     string     `json:"reconnect_reason,omitempty"`
	ReconnectRequiredAt *time.Time `json:"reconnect_required_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ProviderState is the matrix entry exposed to clients
type ProviderState struct {
	Linked        bool `json:"linked"`
	IngestEnabled bool `json:"ingestEnabled"`
}

// PolicyMatrix is the full per-user provider picture
type PolicyMatrix struct {
	Gmail   ProviderState `json:"gmail"`
	Outlook ProviderState `json:"outlook"`
	Mode    ProviderMode  `json:"mode"`
}

// BuildMode derives the mode from the matrix. A provider counts only
// when it is both linked and ingest-enabled.
func BuildMode(gmail, outlook ProviderState) ProviderMode {
	gmailOn := gmail.Linked && gmail.IngestEnabled
	outlookOn := outlook.Linked && outlook.IngestEnabled

	switch {
	case gmailOn && outlookOn:
		return ModeBoth
	case gmailOn:
		return ModeGmailOnly
	case outlookOn:
		return ModeOutlookOnly
	default:
		return ModeNone
	}
}

// AllowedProviders expands the mode into the provider list ingestion
// may touch
func (m ProviderMode) AllowedProviders() []EmailProvider {
	switch m {
	case ModeBoth:
		return []EmailProvider{ProviderGmail, ProviderOutlook}
	case ModeGmailOnly:
		return []EmailProvider{ProviderGmail}
	case ModeOutlookOnly:
		return []EmailProvider{ProviderOutlook}
	default:
		return nil
	}
}

// Allows reports whether the mode permits ingesting from p
func (m ProviderMode) Allows(p EmailProvider) bool {
	for _, allowed := range m.AllowedProviders() {
		if allowed == p {
			return true
		}
	}
	return false
}
