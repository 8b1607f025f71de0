package vector

import (
	"strings"
	"testing"

	"suggest_server/core/domain"
)

func TestProviderClause(t *testing.T) {
	tests := []struct {
		name      string
		providers []domain.EmailProvider
		want      string
	}{
		{
			name:      "both providers",
			providers: []domain.EmailProvider{domain.ProviderGmail, domain.ProviderOutlook},
			want:      "",
		},
		{
			name:      "gmail only",
			providers: []domain.EmailProvider{domain.ProviderGmail},
			want:      ` AND message_id NOT LIKE 'outlook:%'`,
		},
		{
			name:      "outlook only",
			providers: []domain.EmailProvider{domain.ProviderOutlook},
			want:      ` AND message_id LIKE 'outlook:%'`,
		},
		{
			name:      "no providers matches nothing",
			providers: nil,
			want:      ` AND 1=0`,
		},
		{
			name:      "unknown provider matches nothing",
			providers: []domain.EmailProvider{domain.EmailProvider("imap")},
			want:      ` AND 1=0`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := providerClause(tt.providers); got != tt.want {
				t.Errorf("providerClause() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPgVector(t *testing.T) {
	got := pgVector([]float32{0.5, -1, 2})
	if !strings.HasPrefix(got, "[") || !strings.HasSuffix(got, "]") {
		t.Fatalf("literal not bracketed: %q", got)
	}
	parts := strings.Split(strings.Trim(got, "[]"), ",")
	if len(parts) != 3 {
		t.Fatalf("expected 3 components, got %d in %q", len(parts), got)
	}
	if parts[0] != "0.500000" {
		t.Errorf("first component = %q", parts[0])
	}
	if parts[1] != "-1.000000" {
		t.Errorf("second component = %q", parts[1])
	}

	if got := pgVector(nil); got != "[0]" {
		t.Errorf("empty vector literal = %q, want [0]", got)
	}
}
