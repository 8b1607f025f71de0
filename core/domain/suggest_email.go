package domain

import "time"

// EmailMessage is a normalized mailbox message ready for embedding.
// Outlook-origin IDs carry an "outlook:" prefix so both providers can
// share one embedding table.
type EmailMessage struct {
	MessageID string         `json:"message_id"`
	ThreadID  string         `json:"thread_id,omitempty"`
	Subject   string         `json:"subject"`
	Snippet   string         `json:"snippet,omitempty"`
	Body      string         `json:"body,omitempty"`
	SentAt    *time.Time     `json:"sent_at,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Provider infers the origin provider from metadata or the ID prefix
func (m *EmailMessage) Provider() EmailProvider {
	if m.Metadata != nil {
		if p, ok := m.Metadata["provider"].(string); ok {
			switch EmailProvider(p) {
			case ProviderGmail, ProviderOutlook:
				return EmailProvider(p)
			}
		}
	}
	if len(m.MessageID) > 8 && m.MessageID[:8] == "outlook:" {
		return ProviderOutlook
	}
	return ProviderGmail
}

// EmailContext is a retrieved message handed to generation
type EmailContext struct {
	MessageID string         `json:"message_id"`
	Subject   string         `json:"subject"`
	Snippet   string         `json:"snippet,omitempty"`
	Body      string         `json:"body,omitempty"`
	SentAt    *time.Time     `json:"sent_at,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Distance  float64        `json:"distance,omitempty"`
}

// EmailEmbedding is a message paired with its vector for upsert
type EmailEmbedding struct {
	Message   EmailMessage
	Embedding []float32
}

// IngestCursor is the per-user, per-provider incremental watermark
type IngestCursor struct {
	ID       int64         `json:"id"`
	UserID   string        `json:"user_id"`
	Provider EmailProvider `json:"provider"`

	// Gmail watermark: internalDate of the newest ingested message
	LastInternalMs int64 `json:"last_internal_ms,omitempty"`

	// Gmail history id as of the newest ingested message
	LastHistoryID uint64 `json:"last_history_id,omitempty"`

	// Outlook watermark: receivedDateTime of the newest ingested message
	LastReceivedAt *time.Time `json:"last_received_at,omitempty"`

	// Provider id of the message holding the watermark
	LastMessageID string `json:"last_message_id,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}
