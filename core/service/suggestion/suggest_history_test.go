package suggestion

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"suggest_server/core/domain"
)

// fakeTodoRepo serves canned history data to the miner.
type fakeTodoRepo struct {
	recent  []*domain.Todo
	created int
}

func (f *fakeTodoRepo) Create(ctx context.Context, todo *domain.Todo) (*domain.Todo, error) {
	return todo, nil
}

func (f *fakeTodoRepo) GetByID(ctx context.Context, userID uuid.UUID, id int64) (*domain.Todo, error) {
	return nil, nil
}

func (f *fakeTodoRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.Todo, error) {
	return nil, nil
}

func (f *fakeTodoRepo) ListRecent(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.Todo, error) {
	return f.recent, nil
}

func (f *fakeTodoRepo) CountCreated(ctx context.Context, userID uuid.UUID) (int, error) {
	return f.created, nil
}

func (f *fakeTodoRepo) CountOpen(ctx context.Context, userID uuid.UUID) (int, error) {
	open := 0
	for _, t := range f.recent {
		if t.IsOpen() {
			open++
		}
	}
	return open, nil
}

// fakeSuggestionRepo only serves the accepted count for eligibility.
type fakeSuggestionRepo struct {
	accepted     int
	acceptedRows []*domain.Suggestion
}

func (f *fakeSuggestionRepo) ReplaceForUser(ctx context.Context, userID uuid.UUID, suggestions []*domain.Suggestion) ([]*domain.Suggestion, error) {
	return suggestions, nil
}

func (f *fakeSuggestionRepo) ListByUser(ctx context.Context, userID uuid.UUID, status domain.SuggestionStatus, limit int) ([]*domain.Suggestion, error) {
	if status == domain.SuggestionStatusAccepted {
		return f.acceptedRows, nil
	}
	return nil, nil
}

func (f *fakeSuggestionRepo) GetByID(ctx context.Context, userID uuid.UUID, id int64) (*domain.Suggestion, error) {
	return nil, nil
}

func (f *fakeSuggestionRepo) UpdateStatus(ctx context.Context, userID uuid.UUID, id int64, status domain.SuggestionStatus) (*domain.Suggestion, error) {
	return nil, nil
}

func (f *fakeSuggestionRepo) CountAcceptedSince(ctx context.Context, userID uuid.UUID, since time.Time) (int, error) {
	return f.accepted, nil
}

func todoAt(title string, status domain.TodoStatus, created time.Time) *domain.Todo {
	return &domain.Todo{Title: title, Status: status, CreatedAt: created}
}

func todoDue(title string, status domain.TodoStatus, due time.Time) *domain.Todo {
	return &domain.Todo{Title: title, Status: status, CreatedAt: due.AddDate(0, 0, -2), DueDate: &due}
}

func TestHistoryMinerEligible(t *testing.T) {
	tests := []struct {
		name     string
		created  int
		accepted int
		want     bool
	}{
		{"neither threshold met", 3, 1, false},
		{"enough created tasks", 10, 0, true},
		{"enough accepted suggestions", 0, 5, true},
		{"both thresholds met", 20, 9, true},
		{"just below both", 9, 4, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			miner := NewHistoryMiner(
				&fakeTodoRepo{created: tt.created},
				&fakeSuggestionRepo{accepted: tt.accepted},
				HistoryMinerConfig{},
			)
			got, err := miner.Eligible(context.Background(), uuid.New())
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Eligible() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHistoryMinerMine_RecurringTitles(t *testing.T) {
	// Spread creation over distinct weekdays so no cadence fires,
	// and keep the set small enough that backlog stays quiet.
	base := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC) // a Monday
	tasks := []*domain.Todo{
		todoAt("Weekly report", domain.TodoStatusCompleted, base),
		todoAt("weekly report!", domain.TodoStatusCompleted, base.AddDate(0, 0, 1)),
		todoAt("WEEKLY REPORT", domain.TodoStatusCompleted, base.AddDate(0, 0, 2)),
		todoAt("Water plants", domain.TodoStatusCompleted, base.AddDate(0, 0, 3)),
		todoAt("water plants", domain.TodoStatusCompleted, base.AddDate(0, 0, 4)),
		todoAt("One off", domain.TodoStatusCompleted, base.AddDate(0, 0, 5)),
	}

	miner := NewHistoryMiner(&fakeTodoRepo{recent: tasks}, &fakeSuggestionRepo{}, HistoryMinerConfig{})
	got, err := miner.Mine(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	recurring := make([]HistorySuggestion, 0)
	for _, s := range got {
		if s.HistoryType == "recurring" {
			recurring = append(recurring, s)
		}
	}
	if len(recurring) != 2 {
		t.Fatalf("expected 2 recurring suggestions, got %d: %+v", len(recurring), got)
	}
	if recurring[0].RecurrenceCount != 3 || NormalizeTitle(recurring[0].Title) != "weekly report" {
		t.Errorf("highest-count group should rank first, got %+v", recurring[0])
	}
	if recurring[1].RecurrenceCount != 2 {
		t.Errorf("second group recurrence = %d, want 2", recurring[1].RecurrenceCount)
	}
}

func TestHistoryMinerMine_AcceptedSuggestionsCountAsRecurring(t *testing.T) {
	base := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)

	// Each title appears once as a task, the repetition only exists in
	// what the user kept accepting.
	tasks := []*domain.Todo{
		todoAt("Submit expense report", domain.TodoStatusCompleted, base),
		todoAt("One off", domain.TodoStatusCompleted, base.AddDate(0, 0, 1)),
	}
	accepted := []*domain.Suggestion{
		{Title: "Submit expense report", Status: domain.SuggestionStatusAccepted, UpdatedAt: base.AddDate(0, 0, 2)},
		{Title: "Book team lunch", Status: domain.SuggestionStatusAccepted, UpdatedAt: base.AddDate(0, 0, 3)},
		{Title: "book team lunch!", Status: domain.SuggestionStatusAccepted, UpdatedAt: base.AddDate(0, 0, 4)},
	}

	miner := NewHistoryMiner(&fakeTodoRepo{recent: tasks}, &fakeSuggestionRepo{acceptedRows: accepted}, HistoryMinerConfig{})
	got, err := miner.Mine(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	counts := make(map[string]int)
	for _, s := range got {
		if s.HistoryType == "recurring" {
			counts[NormalizeTitle(s.Title)] = s.RecurrenceCount
		}
	}
	if counts["submit expense report"] != 2 {
		t.Errorf("task plus accepted suggestion should recur twice, got %+v", counts)
	}
	if counts["book team lunch"] != 2 {
		t.Errorf("accepted-only repetition should still recur, got %+v", counts)
	}
}

func TestHistoryMinerMine_WeekdayCadence(t *testing.T) {
	monday := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	tasks := []*domain.Todo{
		todoDue("task one", domain.TodoStatusCompleted, monday),
		todoDue("task two", domain.TodoStatusCompleted, monday.AddDate(0, 0, 7)),
		todoDue("task three", domain.TodoStatusCompleted, monday.AddDate(0, 0, 14)),
		todoDue("task four", domain.TodoStatusCompleted, monday.AddDate(0, 0, 1)),
		todoAt("task five", domain.TodoStatusCompleted, monday),
	}

	miner := NewHistoryMiner(&fakeTodoRepo{recent: tasks}, &fakeSuggestionRepo{}, HistoryMinerConfig{})
	got, err := miner.Mine(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var cadence *HistorySuggestion
	for i := range got {
		if got[i].HistoryType == "cadence" {
			cadence = &got[i]
		}
	}
	if cadence == nil {
		t.Fatalf("expected a cadence suggestion, got %+v", got)
	}
	if cadence.Title != "Plan your Monday priorities" {
		t.Errorf("cadence title = %q", cadence.Title)
	}
	if cadence.RecurrenceCount != 3 {
		t.Errorf("cadence count = %d, want 3", cadence.RecurrenceCount)
	}
}

func TestHistoryMinerMine_BacklogPressure(t *testing.T) {
	base := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	tasks := make([]*domain.Todo, 0, 6)
	for i := 0; i < 5; i++ {
		tasks = append(tasks, todoAt("open task "+string(rune('a'+i)), domain.TodoStatusPending, base.AddDate(0, 0, i)))
	}
	tasks = append(tasks, todoAt("done task", domain.TodoStatusCompleted, base))

	miner := NewHistoryMiner(&fakeTodoRepo{recent: tasks}, &fakeSuggestionRepo{}, HistoryMinerConfig{})
	got, err := miner.Mine(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var backlog *HistorySuggestion
	for i := range got {
		if got[i].HistoryType == "backlog" {
			backlog = &got[i]
		}
	}
	if backlog == nil {
		t.Fatalf("expected a backlog suggestion, got %+v", got)
	}
	if backlog.Title != "Review and triage pending tasks" {
		t.Errorf("backlog title = %q", backlog.Title)
	}
	if backlog.RecurrenceCount != 5 {
		t.Errorf("backlog open count = %d, want 5", backlog.RecurrenceCount)
	}
}

func TestHistoryMinerMine_EmptyHistory(t *testing.T) {
	miner := NewHistoryMiner(&fakeTodoRepo{}, &fakeSuggestionRepo{}, HistoryMinerConfig{})
	got, err := miner.Mine(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Errorf("empty history should mine nothing, got %+v", got)
	}
}

func TestHistoryMinerMine_MaxResults(t *testing.T) {
	base := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	tasks := make([]*domain.Todo, 0, 8)
	for i := 0; i < 4; i++ {
		title := "repeat " + string(rune('a'+i))
		tasks = append(tasks, todoAt(title, domain.TodoStatusPending, base))
		tasks = append(tasks, todoAt(title, domain.TodoStatusPending, base.AddDate(0, 0, 7)))
	}

	miner := NewHistoryMiner(&fakeTodoRepo{recent: tasks}, &fakeSuggestionRepo{}, HistoryMinerConfig{MaxResults: 2})
	got, err := miner.Mine(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("expected cap at 2, got %d", len(got))
	}
}

func TestNormalizeTitle(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Reply to Bob", "reply to bob"},
		{"  Reply   to   Bob!!  ", "reply to bob"},
		{"Pay invoice #42", "pay invoice 42"},
		{"???", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeTitle(tt.in); got != tt.want {
			t.Errorf("NormalizeTitle(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
