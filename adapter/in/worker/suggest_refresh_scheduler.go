// Package worker hosts the background refresh scheduler.
package worker

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"suggest_server/core/domain"
	"suggest_server/core/port/in"
	"suggest_server/core/port/out"
	"suggest_server/pkg/keylock"
	"suggest_server/pkg/logger"
)

// RefreshScheduler periodically refreshes suggestions for every user
// holding at least one provider token, and serves catch-up refreshes
// triggered by reads after the interval has lapsed.
type RefreshScheduler struct {
	suggestions in.SuggestionService
	tokens      out.TokenRepository

	interval   time.Duration
	timeBudget time.Duration
	catchUpMax int

	locks *keylock.Registry

	mu       sync.Mutex
	lastRun  map[uuid.UUID]time.Time
	sweeping bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewRefreshScheduler creates a refresh scheduler. lockTTL bounds how
// long a catch-up lock may be held before it is considered stale.
func NewRefreshScheduler(
	suggestions in.SuggestionService,
	tokens out.TokenRepository,
	interval time.Duration,
	timeBudget time.Duration,
	lockTTL time.Duration,
	catchUpMax int,
) *RefreshScheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &RefreshScheduler{
		suggestions: suggestions,
		tokens:      tokens,
		interval:    interval,
		timeBudget:  timeBudget,
		catchUpMax:  catchUpMax,
		locks:       keylock.NewRegistry(lockTTL),
		lastRun:     make(map[uuid.UUID]time.Time),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start starts the periodic sweep loop.
func (s *RefreshScheduler) Start() {
	logger.Info("[RefreshScheduler] Starting (interval: %s)", s.interval)
	s.wg.Add(1)
	go s.run()
}

// Stop stops the scheduler and waits for the loop to exit. In-flight
// user refreshes are cancelled through the scheduler context.
func (s *RefreshScheduler) Stop() {
	logger.Info("[RefreshScheduler] Stopping...")
	s.cancel()
	s.wg.Wait()
}

func (s *RefreshScheduler) run() {
	defer s.wg.Done()

	// Let connections settle before the first sweep
	select {
	case <-s.ctx.Done():
		return
	case <-time.After(30 * time.Second):
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.sweep()
	for {
		select {
		case <-s.ctx.Done():
			logger.Info("[RefreshScheduler] Stopped")
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

// sweep refreshes every user with at least one stored token. One slow
// or failing user must not stall the rest, failures are logged and the
// sweep moves on.
func (s *RefreshScheduler) sweep() {
	s.mu.Lock()
	if s.sweeping {
		s.mu.Unlock()
		logger.Warn("[RefreshScheduler] Previous sweep still running, skipping")
		return
	}
	s.sweeping = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.sweeping = false
		s.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(s.ctx, s.interval)
	defer cancel()

	userIDs, err := s.tokens.ListUserIDsWithTokens(ctx)
	if err != nil {
		logger.Error("[RefreshScheduler] Failed to list users: %v", err)
		return
	}
	if len(userIDs) == 0 {
		return
	}

	logger.Info("[RefreshScheduler] Sweeping %d users", len(userIDs))
	s.locks.Sweep()

	refreshed := 0
	for _, userID := range userIDs {
		if ctx.Err() != nil {
			logger.Warn("[RefreshScheduler] Sweep interrupted after %d users", refreshed)
			return
		}
		if s.refreshUser(ctx, userID, "scheduled") {
			refreshed++
		}
	}
	logger.Info("[RefreshScheduler] Sweep complete (%d refreshed)", refreshed)
}

// MaybeCatchUp runs an asynchronous refresh when the user's last run is
// older than the interval. Returns true when a catch-up was started.
// Concurrent callers for the same user are deduplicated by the lock.
func (s *RefreshScheduler) MaybeCatchUp(userID uuid.UUID) bool {
	s.mu.Lock()
	last, ok := s.lastRun[userID]
	s.mu.Unlock()

	if ok && time.Since(last) < s.interval {
		return false
	}

	if !s.locks.TryAcquire(userID.String()) {
		return false
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.locks.Release(userID.String())

		ctx, cancel := context.WithTimeout(s.ctx, s.timeBudget+30*time.Second)
		defer cancel()
		s.doRefresh(ctx, userID, "catch_up")
	}()
	return true
}

// ScheduleCatchUp queues an asynchronous refresh with the larger
// catch-up message cap and no time budget, used after a truncated
// manual run left newer mail unprocessed. Reports already_running when
// a refresh for the user is already in flight.
func (s *RefreshScheduler) ScheduleCatchUp(userID uuid.UUID) domain.CatchUpState {
	if !s.locks.TryAcquire(userID.String()) {
		return domain.CatchUpStateAlreadyRunning
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.locks.Release(userID.String())

		start := time.Now()
		result, err := s.suggestions.Refresh(s.ctx, userID, in.RefreshOptions{
			MaxMessages:             s.catchUpMax,
			PreserveExistingOnEmpty: true,
			Trigger:                 "catch_up",
		})

		s.mu.Lock()
		s.lastRun[userID] = time.Now()
		s.mu.Unlock()

		log := logger.WithField("user_id", userID.String()).
			WithField("trigger", "catch_up").
			WithDuration(time.Since(start))
		if err != nil {
			log.WithError(err).Error("catch-up refresh failed")
			return
		}
		log.WithField("count", len(result.Suggestions)).Info("catch-up refresh complete")
	}()
	return domain.CatchUpStateScheduled
}

// refreshUser runs one user's refresh under the per-user lock.
func (s *RefreshScheduler) refreshUser(ctx context.Context, userID uuid.UUID, trigger string) bool {
	if !s.locks.TryAcquire(userID.String()) {
		return false
	}
	defer s.locks.Release(userID.String())

	return s.doRefresh(ctx, userID, trigger)
}

func (s *RefreshScheduler) doRefresh(ctx context.Context, userID uuid.UUID, trigger string) bool {
	start := time.Now()
	result, err := s.suggestions.Refresh(ctx, userID, in.RefreshOptions{
		TimeBudget:              s.timeBudget,
		PreserveExistingOnEmpty: true,
		Trigger:                 trigger,
	})

	s.mu.Lock()
	s.lastRun[userID] = time.Now()
	s.mu.Unlock()

	log := logger.WithField("user_id", userID.String()).
		WithField("trigger", trigger).
		WithDuration(time.Since(start))
	if err != nil {
		log.WithError(err).Error("suggestion refresh failed")
		return false
	}

	log.WithField("mode", string(result.Refresh.Mode)).
		WithField("count", len(result.Suggestions)).
		Info("suggestion refresh complete")
	return true
}

// MarkRefreshed records an externally driven refresh so catch-up does
// not immediately re-run for the same user.
func (s *RefreshScheduler) MarkRefreshed(userID uuid.UUID) {
	s.mu.Lock()
	s.lastRun[userID] = time.Now()
	s.mu.Unlock()
}
