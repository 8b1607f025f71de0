package suggestion

import (
	"sort"

	"suggest_server/core/domain"
)

const (
	defaultEmailConfidence = 0.55
	positionEpsilon        = 0.001

	historyBaseScore      = 0.7
	historyRecurrenceStep = 0.02
	historyScoreCeiling   = 0.25
)

// MergeSuggestions ranks email and history candidates on one scale,
// dedups by normalized title with first-wins, and caps the result.
// Email candidates score 1 + confidence so a confident extraction
// always outranks a mined pattern, history candidates climb with
// recurrence but never past the email floor.
func MergeSuggestions(email []GeneratedSuggestion, history []HistorySuggestion, max int) []domain.Candidate {
	if max <= 0 {
		max = MaxSuggestions
	}

	candidates := make([]domain.Candidate, 0, len(email)+len(history))

	for i, item := range email {
		confidence := defaultEmailConfidence
		if item.Confidence != nil {
			confidence = *item.Confidence
		}
		conf := item.Confidence
		candidates = append(candidates, domain.Candidate{
			Title:            item.Title,
			Detail:           item.Detail,
			SourceMessageIDs: item.SourceMessageIDs,
			Confidence:       conf,
			Score:            1 + confidence - float64(i)*positionEpsilon,
		})
	}

	for i, item := range history {
		bonus := float64(item.RecurrenceCount) * historyRecurrenceStep
		if bonus > historyScoreCeiling {
			bonus = historyScoreCeiling
		}
		candidates = append(candidates, domain.Candidate{
			Title:       item.Title,
			Detail:      item.Detail,
			Source:      domain.SourceTaskHistory,
			SourceLabel: historySourceLabel,
			Metadata: map[string]any{
				"source":          domain.SourceTaskHistory,
				"sourceLabel":     historySourceLabel,
				"historyType":     item.HistoryType,
				"recurrenceCount": item.RecurrenceCount,
			},
			Score: historyBaseScore + bonus - float64(i)*positionEpsilon,
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})

	seen := make(map[string]bool, len(candidates))
	merged := make([]domain.Candidate, 0, max)
	for _, c := range candidates {
		key := NormalizeTitle(c.Title)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		merged = append(merged, c)
		if len(merged) >= max {
			break
		}
	}
	return merged
}
