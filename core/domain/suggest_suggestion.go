package domain

import (
	"time"

	"github.com/google/uuid"
)

// SuggestionStatus tracks the lifecycle of a stored suggestion
type SuggestionStatus string

const (
	SuggestionStatusSuggested SuggestionStatus = "suggested"
	SuggestionStatusAccepted  SuggestionStatus = "accepted"
	SuggestionStatusDismissed SuggestionStatus = "dismissed"
)

// SuggestionSource names where a suggestion was derived from
const (
	SourceGmail       = "gmail"
	SourceOutlook     = "outlook"
	SourceMulti       = "multi"
	SourceEmail       = "email"
	SourceTaskHistory = "task_history"
)

// Suggestion is a proposed task surfaced to the user
type Suggestion struct {
	ID               int64            `json:"id"`
	UserID           uuid.UUID        `json:"user_id"`
	Title            string           `json:"title"`
	Detail           string           `json:"detail,omitempty"`
	Source           string           `json:"source"`
	SourceLabel      string           `json:"source_label,omitempty"`
	SourceMessageIDs []string         `json:"source_message_ids,omitempty"`
	Confidence       *float64         `json:"confidence,omitempty"`
	Status           SuggestionStatus `json:"status"`
	Metadata         map[string]any   `json:"metadata,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// Candidate is an in-flight suggestion before merge and persistence.
// Score orders candidates across email and history origins.
type Candidate struct {
	Title            string
	Detail           string
	Source           string
	SourceLabel      string
	SourceMessageIDs []string
	Confidence       *float64
	Metadata         map[string]any
	Score            float64
}

// Reason codes explaining an empty refresh result
const (
	ReasonNoProviderConnected = "NO_PROVIDER_CONNECTED"
	ReasonInsufficientHistory = "INSUFFICIENT_HISTORY"
)

// EmptyResultReason explains an empty suggestion set. Users with a
// connected provider get no reason, the run simply found nothing. A
// fully disconnected user is told to connect a provider, unless their
// task history was also too thin to mine.
func EmptyResultReason(mode ProviderMode, historyReady bool) string {
	if mode != ModeNone {
		return ""
	}
	if historyReady {
		return ReasonNoProviderConnected
	}
	return ReasonInsufficientHistory
}

// TruncatedReason values for ingestion runs cut short
const (
	TruncatedManualCap  = "MANUAL_CAP"
	TruncatedTimeBudget = "TIME_BUDGET"
)

// IngestStats reports one provider's ingestion outcome inside a refresh
type IngestStats struct {
	Scanned         int    `json:"scanned"`
	Embedded        int    `json:"embedded"`
	TruncatedReason string `json:"truncatedReason,omitempty"`
}

// CatchUpState reports what happened to the follow-up refresh after a
// truncated manual run
type CatchUpState string

const (
	CatchUpStateScheduled      CatchUpState = "scheduled"
	CatchUpStateAlreadyRunning CatchUpState = "already_running"
	CatchUpStateSkipped        CatchUpState = "skipped"
)

// RefreshInfo carries refresh diagnostics alongside the stored set
type RefreshInfo struct {
	Mode                   ProviderMode           `json:"mode"`
	ReasonCode             string                 `json:"reasonCode,omitempty"`
	ContextsUsed           int                    `json:"contextsUsed"`
	TaskHistoryCount       int                    `json:"taskHistoryCount"`
	ProvidersIngested      []string               `json:"providersIngested"`
	Ingestion              map[string]IngestStats `json:"ingestion,omitempty"`
	ProcessedMessages      int                    `json:"processedMessages"`
	Partial                bool                   `json:"partial,omitempty"`
	LimitedBy              string                 `json:"limitedBy,omitempty"`
	CatchUpState           CatchUpState           `json:"catchUpState,omitempty"`
	CatchUpScheduled       bool                   `json:"catchUpScheduled,omitempty"`
	GenerationFallbackUsed bool                   `json:"generationFallbackUsed,omitempty"`
	GenerationErrorCode    string                 `json:"generationErrorCode,omitempty"`
	PreservedExisting      bool                   `json:"preservedExisting,omitempty"`
}

// RefreshResult is the full outcome of a suggestion refresh
type RefreshResult struct {
	Suggestions []*Suggestion `json:"suggestions"`
	Refresh     RefreshInfo   `json:"refresh"`
}
