package provider

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"golang.org/x/oauth2"

	"suggest_server/core/domain"
	"suggest_server/core/port/out"
)

func TestIsInvalidGrant(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "nil error",
			err:  nil,
			want: false,
		},
		{
			name: "plain error message",
			err:  errors.New("oauth2: \"invalid_grant\" \"Token has been expired or revoked.\""),
			want: true,
		},
		{
			name: "wrapped message",
			err:  fmt.Errorf("refresh token: %w", errors.New("invalid_grant")),
			want: true,
		},
		{
			name: "provider error code",
			err:  out.NewProviderError(string(domain.ProviderGmail), out.ProviderErrInvalidGrant, "token revoked", nil, false),
			want: true,
		},
		{
			name: "retrieve error body",
			err: &oauth2.RetrieveError{
				Response: &http.Response{Status: "400 Bad Request"},
				Body:     []byte(`{"error":"invalid_grant","error_description":"Bad Request"}`),
			},
			want: true,
		},
		{
			name: "retrieve error code field",
			err: &oauth2.RetrieveError{
				ErrorCode: "invalid_grant",
			},
			want: true,
		},
		{
			name: "unrelated provider error",
			err:  out.NewProviderError(string(domain.ProviderOutlook), out.ProviderErrRateLimit, "throttled", nil, true),
			want: false,
		},
		{
			name: "unrelated plain error",
			err:  errors.New("connection reset by peer"),
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsInvalidGrant(tt.err); got != tt.want {
				t.Errorf("IsInvalidGrant() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExtractErrorSignals_WalksTheChain(t *testing.T) {
	inner := out.NewProviderError(string(domain.ProviderGmail), out.ProviderErrAuth, "Unauthorized", errors.New("401 response"), false)
	err := fmt.Errorf("fetch messages: %w", inner)

	signals := ExtractErrorSignals(err)
	if len(signals) == 0 {
		t.Fatal("expected signals from a wrapped provider error")
	}

	found := map[string]bool{}
	for _, s := range signals {
		found[s] = true
	}
	if !found["auth_error"] {
		t.Errorf("provider code missing from signals: %v", signals)
	}
	if !found["unauthorized"] {
		t.Errorf("provider message missing from signals: %v", signals)
	}
}
