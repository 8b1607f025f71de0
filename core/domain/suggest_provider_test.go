package domain

import "testing"

func TestBuildMode(t *testing.T) {
	on := ProviderState{Linked: true, IngestEnabled: true}
	linkedOnly := ProviderState{Linked: true, IngestEnabled: false}
	off := ProviderState{}

	tests := []struct {
		name    string
		gmail   ProviderState
		outlook ProviderState
		want    ProviderMode
	}{
		{"both active", on, on, ModeBoth},
		{"gmail only", on, off, ModeGmailOnly},
		{"outlook only", off, on, ModeOutlookOnly},
		{"neither", off, off, ModeNone},
		{"linked but ingest disabled", linkedOnly, off, ModeNone},
		{"gmail active outlook paused", on, linkedOnly, ModeGmailOnly},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BuildMode(tt.gmail, tt.outlook); got != tt.want {
				t.Errorf("BuildMode() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestProviderModeAllows(t *testing.T) {
	tests := []struct {
		mode       ProviderMode
		gmailOK    bool
		outlookOK  bool
		allowedLen int
	}{
		{ModeBoth, true, true, 2},
		{ModeGmailOnly, true, false, 1},
		{ModeOutlookOnly, false, true, 1},
		{ModeNone, false, false, 0},
	}

	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			if got := tt.mode.Allows(ProviderGmail); got != tt.gmailOK {
				t.Errorf("Allows(gmail) = %v, want %v", got, tt.gmailOK)
			}
			if got := tt.mode.Allows(ProviderOutlook); got != tt.outlookOK {
				t.Errorf("Allows(outlook) = %v, want %v", got, tt.outlookOK)
			}
			if got := len(tt.mode.AllowedProviders()); got != tt.allowedLen {
				t.Errorf("len(AllowedProviders()) = %d, want %d", got, tt.allowedLen)
			}
		})
	}
}

func TestEmailProviderIsSupported(t *testing.T) {
	if !ProviderGmail.IsSupported() || !ProviderOutlook.IsSupported() {
		t.Error("known providers should be supported")
	}
	if EmailProvider("imap").IsSupported() {
		t.Error("unknown provider should not be supported")
	}
}

func TestEmailMessageProvider(t *testing.T) {
	tests := []struct {
		name string
		msg  EmailMessage
		want EmailProvider
	}{
		{"metadata wins", EmailMessage{MessageID: "abc", Metadata: map[string]any{"provider": "outlook"}}, ProviderOutlook},
		{"bad metadata falls through", EmailMessage{MessageID: "abc", Metadata: map[string]any{"provider": "imap"}}, ProviderGmail},
		{"outlook id prefix", EmailMessage{MessageID: "outlook:AAMkAD1"}, ProviderOutlook},
		{"plain id is gmail", EmailMessage{MessageID: "18c2f3a9"}, ProviderGmail},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.msg.Provider(); got != tt.want {
				t.Errorf("Provider() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEmptyResultReason(t *testing.T) {
	tests := []struct {
		name         string
		mode         ProviderMode
		historyReady bool
		want         string
	}{
		{"disconnected with usable history", ModeNone, true, ReasonNoProviderConnected},
		{"disconnected with thin history", ModeNone, false, ReasonInsufficientHistory},
		{"gmail connected", ModeGmailOnly, false, ""},
		{"outlook connected", ModeOutlookOnly, true, ""},
		{"both connected", ModeBoth, false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EmptyResultReason(tt.mode, tt.historyReady); got != tt.want {
				t.Errorf("EmptyResultReason(%v, %v) = %q, want %q", tt.mode, tt.historyReady, got, tt.want)
			}
		})
	}
}
