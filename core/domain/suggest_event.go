package domain

import "time"

// Event types recorded to the audit log
const (
	EventSuggestionsGenerated = "ai.suggestions.generated"
	EventProviderDisconnected = "provider.disconnected"
	EventGenerationUsage      = "ai.generation.usage"
)

// EventLog is a best-effort audit record. Writes must never fail a
// refresh, failures are logged and dropped.
type EventLog struct {
	UserID    string         `json:"user_id" bson:"user_id"`
	EventType string         `json:"event_type" bson:"event_type"`
	Metadata  map[string]any `json:"metadata,omitempty" bson:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at" bson:"created_at"`
}
