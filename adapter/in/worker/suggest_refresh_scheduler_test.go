package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"suggest_server/core/domain"
	"suggest_server/core/port/in"
)

// fakeSuggestionService records refresh calls and their options.
type fakeSuggestionService struct {
	mu    sync.Mutex
	calls []in.RefreshOptions
}

func (f *fakeSuggestionService) Refresh(ctx context.Context, userID uuid.UUID, opts in.RefreshOptions) (*domain.RefreshResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, opts)
	return &domain.RefreshResult{Refresh: domain.RefreshInfo{Mode: domain.ModeGmailOnly}}, nil
}

func (f *fakeSuggestionService) List(ctx context.Context, userID uuid.UUID, status domain.SuggestionStatus, limit int) ([]*domain.Suggestion, error) {
	return nil, nil
}

func (f *fakeSuggestionService) Accept(ctx context.Context, userID uuid.UUID, suggestionID int64) (*domain.Todo, error) {
	return nil, nil
}

func (f *fakeSuggestionService) Dismiss(ctx context.Context, userID uuid.UUID, suggestionID int64) (*domain.Suggestion, error) {
	return nil, nil
}

func (f *fakeSuggestionService) refreshCalls() []in.RefreshOptions {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]in.RefreshOptions, len(f.calls))
	copy(out, f.calls)
	return out
}

func newTestScheduler(svc *fakeSuggestionService) *RefreshScheduler {
	return NewRefreshScheduler(svc, nil, time.Hour, 30*time.Second, time.Minute, 200)
}

func TestScheduleCatchUp(t *testing.T) {
	svc := &fakeSuggestionService{}
	s := newTestScheduler(svc)
	userID := uuid.New()

	if state := s.ScheduleCatchUp(userID); state != domain.CatchUpStateScheduled {
		t.Fatalf("state = %q, want %q", state, domain.CatchUpStateScheduled)
	}
	s.Stop()

	calls := svc.refreshCalls()
	if len(calls) != 1 {
		t.Fatalf("refresh calls = %d, want 1", len(calls))
	}
	opts := calls[0]
	if opts.Trigger != "catch_up" {
		t.Errorf("trigger = %q, want catch_up", opts.Trigger)
	}
	if opts.MaxMessages != 200 {
		t.Errorf("maxMessages = %d, want 200", opts.MaxMessages)
	}
	if opts.TimeBudget != 0 {
		t.Errorf("catch-up should run without a time budget, got %s", opts.TimeBudget)
	}
	if !opts.PreserveExistingOnEmpty {
		t.Error("catch-up must preserve the existing set on an empty run")
	}
	if s.locks.Held(userID.String()) {
		t.Error("lock should be released after the catch-up finishes")
	}
}

func TestScheduleCatchUpDeduplicates(t *testing.T) {
	svc := &fakeSuggestionService{}
	s := newTestScheduler(svc)
	userID := uuid.New()

	// Holding the lock up front simulates a refresh already in flight.
	if !s.locks.TryAcquire(userID.String()) {
		t.Fatal("setup: lock acquire failed")
	}
	if state := s.ScheduleCatchUp(userID); state != domain.CatchUpStateAlreadyRunning {
		t.Errorf("state = %q, want %q while a refresh holds the lock", state, domain.CatchUpStateAlreadyRunning)
	}
	s.locks.Release(userID.String())
	s.Stop()

	if calls := svc.refreshCalls(); len(calls) != 0 {
		t.Errorf("refresh calls = %d, want 0", len(calls))
	}
}

func TestMaybeCatchUpRespectsInterval(t *testing.T) {
	svc := &fakeSuggestionService{}
	s := newTestScheduler(svc)
	userID := uuid.New()

	s.MarkRefreshed(userID)
	if s.MaybeCatchUp(userID) {
		t.Error("a freshly refreshed user should not trigger catch-up")
	}
	s.Stop()
}

func TestMaybeCatchUpRunsForStaleUser(t *testing.T) {
	svc := &fakeSuggestionService{}
	s := newTestScheduler(svc)
	userID := uuid.New()

	if !s.MaybeCatchUp(userID) {
		t.Fatal("an unseen user should trigger catch-up")
	}
	s.Stop()

	calls := svc.refreshCalls()
	if len(calls) != 1 {
		t.Fatalf("refresh calls = %d, want 1", len(calls))
	}
	if calls[0].Trigger != "catch_up" {
		t.Errorf("trigger = %q, want catch_up", calls[0].Trigger)
	}
	if calls[0].MaxMessages != 0 {
		t.Errorf("read-triggered catch-up keeps the default cap, got %d", calls[0].MaxMessages)
	}
	if s.MaybeCatchUp(userID) {
		t.Error("a just-refreshed user should not trigger again")
	}
}
