package ingest

import (
	"context"
	"errors"
	"strings"
	"testing"

	"suggest_server/core/port/out"
)

type fakeLLM struct {
	response string
	err      error
	prompt   string
}

func (f *fakeLLM) Complete(ctx context.Context, prompt string, opts out.CompletionOptions) (string, *out.TokenUsage, error) {
	return f.response, nil, f.err
}

func (f *fakeLLM) CompleteWithSystem(ctx context.Context, system, prompt string, opts out.CompletionOptions) (string, *out.TokenUsage, error) {
	f.prompt = prompt
	return f.response, nil, f.err
}

func (f *fakeLLM) ProviderName() string { return "fake" }

func TestSummarize_WordLimit(t *testing.T) {
	llm := &fakeLLM{response: strings.Repeat("word ", 50)}
	s := NewSummarizer(llm, 10)

	got, err := s.Summarize(context.Background(), "long email body", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if words := len(strings.Fields(got)); words != 10 {
		t.Errorf("summary has %d words, want 10", words)
	}

	// A per-call cap overrides the configured default.
	got, err = s.Summarize(context.Background(), "long thread body", 25)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if words := len(strings.Fields(got)); words != 25 {
		t.Errorf("summary has %d words, want 25", words)
	}
}

func TestSummarize_InputTruncated(t *testing.T) {
	llm := &fakeLLM{response: "short summary"}
	s := NewSummarizer(llm, 100)

	long := strings.Repeat("x", summaryMaxInputChars+500)
	if _, err := s.Summarize(context.Background(), long, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(llm.prompt) > summaryMaxInputChars+200 {
		t.Errorf("prompt not truncated, length %d", len(llm.prompt))
	}
}

func TestSummarizeOrTruncate(t *testing.T) {
	t.Run("model summary wins", func(t *testing.T) {
		s := NewSummarizer(&fakeLLM{response: "the summary"}, 100)
		got := s.SummarizeOrTruncate(context.Background(), "some body text", 0)
		if got != "the summary" {
			t.Errorf("got %q, want model summary", got)
		}
	})

	t.Run("model failure falls back to prefix", func(t *testing.T) {
		s := NewSummarizer(&fakeLLM{err: errors.New("model down")}, 100)
		long := strings.Repeat("y", summaryFallbackChars+100)
		got := s.SummarizeOrTruncate(context.Background(), long, 0)
		if len(got) != summaryFallbackChars {
			t.Errorf("fallback length = %d, want %d", len(got), summaryFallbackChars)
		}
	})

	t.Run("short body survives fallback untouched", func(t *testing.T) {
		s := NewSummarizer(&fakeLLM{err: errors.New("model down")}, 100)
		got := s.SummarizeOrTruncate(context.Background(), "  keep me  ", 0)
		if got != "keep me" {
			t.Errorf("got %q, want trimmed original", got)
		}
	})

	t.Run("empty body is a no-op", func(t *testing.T) {
		s := NewSummarizer(&fakeLLM{response: "should not be called"}, 100)
		if got := s.SummarizeOrTruncate(context.Background(), "   ", 0); got != "" {
			t.Errorf("got %q, want empty", got)
		}
	})
}

func TestEnforceWordLimit(t *testing.T) {
	tests := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{"under limit", "one two three", 5, "one two three"},
		{"at limit", "one two three", 3, "one two three"},
		{"over limit", "one two three four", 2, "one two"},
		{"empty", "", 3, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := enforceWordLimit(tt.in, tt.max); got != tt.want {
				t.Errorf("enforceWordLimit(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
			}
		})
	}
}
