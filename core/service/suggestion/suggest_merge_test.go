package suggestion

import (
	"testing"

	"suggest_server/core/domain"
)

func confPtr(v float64) *float64 { return &v }

func TestMergeSuggestions_EmailOutranksHistory(t *testing.T) {
	email := []GeneratedSuggestion{
		{Title: "Reply to the vendor quote", Confidence: confPtr(0.9)},
	}
	history := []HistorySuggestion{
		{Title: "Weekly status report", HistoryType: "recurring", RecurrenceCount: 50},
	}

	merged := MergeSuggestions(email, history, 8)
	if len(merged) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(merged))
	}
	if merged[0].Title != "Reply to the vendor quote" {
		t.Errorf("email candidate should rank first, got %q", merged[0].Title)
	}
	// History score is capped below the email floor even at high recurrence.
	if merged[1].Score >= 1.0 {
		t.Errorf("history score %.3f should stay below the email floor", merged[1].Score)
	}
}

func TestMergeSuggestions_DefaultConfidence(t *testing.T) {
	email := []GeneratedSuggestion{
		{Title: "No confidence given"},
	}
	merged := MergeSuggestions(email, nil, 8)
	if len(merged) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(merged))
	}
	want := 1 + defaultEmailConfidence
	if merged[0].Score != want {
		t.Errorf("score = %.3f, want %.3f", merged[0].Score, want)
	}
	if merged[0].Confidence != nil {
		t.Errorf("unset confidence should stay nil on the candidate")
	}
}

func TestMergeSuggestions_OrderByConfidenceThenPosition(t *testing.T) {
	email := []GeneratedSuggestion{
		{Title: "first low", Confidence: confPtr(0.3)},
		{Title: "second high", Confidence: confPtr(0.8)},
		{Title: "third high", Confidence: confPtr(0.8)},
	}
	merged := MergeSuggestions(email, nil, 8)
	got := []string{merged[0].Title, merged[1].Title, merged[2].Title}
	want := []string{"second high", "third high", "first low"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("position %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestMergeSuggestions_DedupFirstWins(t *testing.T) {
	email := []GeneratedSuggestion{
		{Title: "Book the flight!", Confidence: confPtr(0.9)},
	}
	history := []HistorySuggestion{
		{Title: "book the flight", HistoryType: "recurring", RecurrenceCount: 3},
	}

	merged := MergeSuggestions(email, history, 8)
	if len(merged) != 1 {
		t.Fatalf("expected duplicate titles to collapse to 1, got %d", len(merged))
	}
	if merged[0].Title != "Book the flight!" {
		t.Errorf("higher-ranked candidate should win the dedup, got %q", merged[0].Title)
	}
}

func TestMergeSuggestions_SkipsEmptyTitles(t *testing.T) {
	email := []GeneratedSuggestion{
		{Title: "   !!!   ", Confidence: confPtr(0.9)},
		{Title: "Real task", Confidence: confPtr(0.5)},
	}
	merged := MergeSuggestions(email, nil, 8)
	if len(merged) != 1 || merged[0].Title != "Real task" {
		t.Fatalf("title normalizing to empty should be dropped, got %+v", merged)
	}
}

func TestMergeSuggestions_Cap(t *testing.T) {
	email := make([]GeneratedSuggestion, 6)
	for i := range email {
		email[i] = GeneratedSuggestion{Title: "email task " + string(rune('a'+i))}
	}
	history := []HistorySuggestion{
		{Title: "history task", HistoryType: "recurring", RecurrenceCount: 2},
	}

	merged := MergeSuggestions(email, history, 3)
	if len(merged) != 3 {
		t.Fatalf("expected cap at 3, got %d", len(merged))
	}
	for _, c := range merged {
		if c.Source == domain.SourceTaskHistory {
			t.Errorf("history candidate should not make the capped set over email candidates")
		}
	}
}

func TestMergeSuggestions_ZeroMaxUsesDefault(t *testing.T) {
	email := make([]GeneratedSuggestion, MaxSuggestions+4)
	for i := range email {
		email[i] = GeneratedSuggestion{Title: "task " + string(rune('a'+i))}
	}
	merged := MergeSuggestions(email, nil, 0)
	if len(merged) != MaxSuggestions {
		t.Fatalf("expected default cap %d, got %d", MaxSuggestions, len(merged))
	}
}

func TestMergeSuggestions_HistoryMetadata(t *testing.T) {
	history := []HistorySuggestion{
		{Title: "Weekly planning", HistoryType: "cadence", RecurrenceCount: 7},
	}
	merged := MergeSuggestions(nil, history, 8)
	if len(merged) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(merged))
	}
	c := merged[0]
	if c.Source != domain.SourceTaskHistory {
		t.Errorf("source = %q, want %q", c.Source, domain.SourceTaskHistory)
	}
	if c.SourceLabel != historySourceLabel {
		t.Errorf("label = %q, want %q", c.SourceLabel, historySourceLabel)
	}
	if c.Metadata["historyType"] != "cadence" {
		t.Errorf("metadata historyType = %v", c.Metadata["historyType"])
	}
	if c.Metadata["recurrenceCount"] != 7 {
		t.Errorf("metadata recurrenceCount = %v", c.Metadata["recurrenceCount"])
	}
}

func TestMergeSuggestions_RecurrenceBonusCapped(t *testing.T) {
	history := []HistorySuggestion{
		{Title: "very frequent", HistoryType: "recurring", RecurrenceCount: 100},
	}
	merged := MergeSuggestions(nil, history, 8)
	want := historyBaseScore + historyScoreCeiling
	if merged[0].Score != want {
		t.Errorf("score = %.3f, want capped %.3f", merged[0].Score, want)
	}
}
