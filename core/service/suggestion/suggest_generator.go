package suggestion

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"suggest_server/core/domain"
	"suggest_server/core/port/out"
	"suggest_server/pkg/apperr"
	"suggest_server/pkg/textutil"
)

const (
	MaxSuggestions = 8

	generationTemperature = 0.2
	generationMaxTokens   = 500
	titleMaxLen           = 120
	detailMaxLen          = 320
)

const generationSystemPrompt = `You are an assistant that extracts actionable task suggestions from email content.
Respond with strict JSON of the shape:
{"suggestions":[{"title":"...","detail":"...","sourceMessageIds":["..."],"confidence":0.0}]}
Rules:
- title is a short imperative phrase, required.
- detail briefly explains why the task matters, optional.
- sourceMessageIds lists the ids of the emails the task came from.
- confidence is a number between 0 and 1, or null when unsure.
- Return at most 8 suggestions. Return {"suggestions":[]} when nothing is actionable.
- Output JSON only, no prose, no code fences.`

// GeneratedSuggestion is one model-proposed task before merge
type GeneratedSuggestion struct {
	Title            string   `json:"title"`
	Detail           string   `json:"detail"`
	SourceMessageIDs []string `json:"sourceMessageIds"`
	Confidence       *float64 `json:"confidence"`
}

// Generator turns retrieved contexts into structured task suggestions
type Generator struct {
	llm      out.LLMClient
	maxItems int
}

func NewGenerator(llm out.LLMClient, maxItems int) *Generator {
	if maxItems <= 0 {
		maxItems = MaxSuggestions
	}
	return &Generator{llm: llm, maxItems: maxItems}
}

// Generate produces normalized suggestions from the given contexts.
// A response that cannot be parsed as the expected JSON shape returns
// an INVALID_JSON application error.
func (g *Generator) Generate(ctx context.Context, contexts []domain.EmailContext) ([]GeneratedSuggestion, *out.TokenUsage, error) {
	if len(contexts) == 0 {
		return nil, nil, nil
	}

	raw, usage, err := g.llm.CompleteWithSystem(ctx, generationSystemPrompt, buildUserPrompt(contexts), out.CompletionOptions{
		MaxTokens:   generationMaxTokens,
		Temperature: generationTemperature,
	})
	if err != nil {
		return nil, usage, apperr.AIError(g.llm.ProviderName(), err)
	}

	parsed, err := parseGenerationResponse(raw)
	if err != nil {
		return nil, usage, apperr.InvalidJSON(err)
	}

	return g.normalize(parsed), usage, nil
}

func buildUserPrompt(contexts []domain.EmailContext) string {
	var b strings.Builder
	b.WriteString("Extract task suggestions from these emails:\n\n")
	for i, c := range contexts {
		fmt.Fprintf(&b, "%d. id: %s\n", i+1, c.MessageID)
		if c.Subject != "" {
			fmt.Fprintf(&b, "   subject: %s\n", c.Subject)
		}
		if c.Snippet != "" {
			fmt.Fprintf(&b, "   snippet: %s\n", c.Snippet)
		}
		if c.Body != "" {
			fmt.Fprintf(&b, "   body: %s\n", c.Body)
		}
		if c.SentAt != nil {
			fmt.Fprintf(&b, "   sent_at: %s\n", c.SentAt.Format(time.RFC3339))
		}
		b.WriteString("\n")
	}
	return b.String()
}

type generationEnvelope struct {
	Suggestions []GeneratedSuggestion `json:"suggestions"`
}

func parseGenerationResponse(raw string) ([]GeneratedSuggestion, error) {
	cleaned := stripCodeFence(strings.TrimSpace(raw))
	if cleaned == "" {
		return nil, fmt.Errorf("empty model response")
	}

	var envelope generationEnvelope
	if err := json.Unmarshal([]byte(cleaned), &envelope); err != nil {
		return nil, fmt.Errorf("parse suggestions payload: %w", err)
	}
	return envelope.Suggestions, nil
}

// stripCodeFence removes a leading ```json fence some models insist on
func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func (g *Generator) normalize(items []GeneratedSuggestion) []GeneratedSuggestion {
	normalized := make([]GeneratedSuggestion, 0, len(items))
	for _, item := range items {
		title := textutil.Truncate(strings.TrimSpace(item.Title), titleMaxLen)
		if title == "" {
			continue
		}

		detail := textutil.Truncate(strings.TrimSpace(item.Detail), detailMaxLen)

		ids := make([]string, 0, len(item.SourceMessageIDs))
		for _, id := range item.SourceMessageIDs {
			if trimmed := strings.TrimSpace(id); trimmed != "" {
				ids = append(ids, trimmed)
			}
		}

		confidence := item.Confidence
		if confidence != nil {
			c := *confidence
			if c < 0 {
				c = 0
			}
			if c > 1 {
				c = 1
			}
			confidence = &c
		}

		normalized = append(normalized, GeneratedSuggestion{
			Title:            title,
			Detail:           detail,
			SourceMessageIDs: ids,
			Confidence:       confidence,
		})
		if len(normalized) >= g.maxItems {
			break
		}
	}
	return normalized
}
