// Package out defines outbound ports (driven ports) for the application.
package out

import (
	"context"
	"time"

	"suggest_server/core/domain"
)

// MailSource is the outbound port for provider mailbox ingestion.
// Implementations page through the inbox newest-first and stop at the
// cursor watermark, the message cap, or the deadline, whichever comes
// first.
type MailSource interface {
	// Name identifies the provider this source reads from
	Name() domain.EmailProvider

	// FetchMessages returns normalized messages newer than the cursor
	FetchMessages(ctx context.Context, conn *domain.OAuthConnection, cursor *domain.IngestCursor, opts FetchOptions) (*FetchResult, error)
}

// FetchOptions bounds a single ingestion run
type FetchOptions struct {
	MaxMessages       int
	PageSize          int
	LookbackDays      int
	ExcludeCategories []string

	// Deadline is the shared refresh budget, zero means unbounded
	Deadline time.Time
}

// FetchResult is the outcome of one ingestion fetch
type FetchResult struct {
	Messages []domain.EmailMessage

	// NewCursor is nil when no newer message was seen
	NewCursor *domain.IngestCursor

	// Scanned counts messages examined, including parse failures
	Scanned int

	// TruncatedReason is set when the run stopped early
	TruncatedReason string
}

// ProviderErrorCode represents provider failure classes
type ProviderErrorCode string

const (
	ProviderErrAuth         ProviderErrorCode = "auth_error"
	ProviderErrInvalidGrant ProviderErrorCode = "invalid_grant"
	ProviderErrTokenExpired ProviderErrorCode = "token_expired"
	ProviderErrRateLimit    ProviderErrorCode = "rate_limit"
	ProviderErrNotFound     ProviderErrorCode = "not_found"
	ProviderErrNetwork      ProviderErrorCode = "network_error"
	ProviderErrServer       ProviderErrorCode = "server_error"
)

// ProviderError represents a provider failure with enough context for
// the disconnect policy to classify it
type ProviderError struct {
	Provider  string
	Code      ProviderErrorCode
	Message   string
	Err       error
	Retryable bool
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// NewProviderError creates a new provider error
func NewProviderError(provider string, code ProviderErrorCode, message string, err error, retryable bool) *ProviderError {
	return &ProviderError{
		Provider:  provider,
		Code:      code,
		Message:   message,
		Err:       err,
		Retryable: retryable,
	}
}
