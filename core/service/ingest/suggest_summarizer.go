// Package ingest pulls provider mailboxes into the context store under
// a shared refresh budget.
package ingest

import (
	"context"
	"strconv"
	"strings"

	"suggest_server/core/port/out"
	"suggest_server/pkg/logger"
	"suggest_server/pkg/textutil"
)

const (
	summaryMaxInputChars = 12000
	summaryFallbackChars = 8000
	summaryTokenCeiling  = 1400
	summaryTemperature   = 0.2
)

const summarySystemPrompt = "You are an assistant that summarizes email content for downstream task extraction. " +
	"Keep concrete commitments, requests, deadlines, and follow-ups. " +
	"Exclude signatures, disclaimers, and boilerplate. Respond with the summary only."

// Summarizer condenses long message bodies before embedding
type Summarizer struct {
	llm      out.LLMClient
	maxWords int
	log      *logger.Logger
}

func NewSummarizer(llm out.LLMClient, maxWords int) *Summarizer {
	if maxWords <= 0 {
		maxWords = 300
	}
	return &Summarizer{
		llm:      llm,
		maxWords: maxWords,
		log:      logger.Default().WithField("component", "summarizer"),
	}
}

// Summarize condenses text to at most maxWords words. A zero maxWords
// uses the configured default.
func (s *Summarizer) Summarize(ctx context.Context, text string, maxWords int) (string, error) {
	if maxWords <= 0 {
		maxWords = s.maxWords
	}

	input := textutil.Truncate(text, summaryMaxInputChars)

	maxTokens := maxWords * 4
	if maxTokens > summaryTokenCeiling {
		maxTokens = summaryTokenCeiling
	}

	prompt := "Summarize the following email in at most " +
		strconv.Itoa(maxWords) + " words:\n\n" + input

	result, _, err := s.llm.CompleteWithSystem(ctx, summarySystemPrompt, prompt, out.CompletionOptions{
		MaxTokens:   maxTokens,
		Temperature: summaryTemperature,
	})
	if err != nil {
		return "", err
	}

	return enforceWordLimit(strings.TrimSpace(result), maxWords), nil
}

// SummarizeOrTruncate tries the model and falls back to a plain prefix
// when it fails. Ingestion keeps moving either way.
func (s *Summarizer) SummarizeOrTruncate(ctx context.Context, text string, maxWords int) string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return ""
	}

	summary, err := s.Summarize(ctx, trimmed, maxWords)
	if err != nil || summary == "" {
		if err != nil {
			s.log.WithError(err).Warn("summary failed, truncating body instead")
		}
		return textutil.Truncate(trimmed, summaryFallbackChars)
	}
	return summary
}

func enforceWordLimit(text string, maxWords int) string {
	words := strings.Fields(text)
	if len(words) <= maxWords {
		return text
	}
	return strings.Join(words[:maxWords], " ")
}
