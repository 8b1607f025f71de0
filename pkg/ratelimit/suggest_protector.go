// Package ratelimit protects expensive operations with a semaphore,
// a sliding window limiter, and request debouncing.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds protection configuration.
type Config struct {
	MaxConcurrent     int // Semaphore size
	RequestsPerSecond int
	BurstSize         int
	DebounceDuration  time.Duration // Window where a repeated key is rejected
}

// DefaultConfig returns default configuration.
func DefaultConfig() *Config {
	return &Config{
		MaxConcurrent:     100,
		RequestsPerSecond: 10,
		BurstSize:         20,
		DebounceDuration:  1 * time.Minute,
	}
}

// Protector layers a semaphore, debounce, and rate limiter in front of
// an expensive call.
type Protector struct {
	config      *Config
	semaphore   chan struct{}
	rateLimiter *SlidingWindowLimiter
	debouncer   *Debouncer
}

// NewProtector creates a protector. The Redis client may be nil, in
// which case the limiter admits everything and the debouncer falls back
// to process-local state.
func NewProtector(redisClient *redis.Client, config *Config) *Protector {
	if config == nil {
		config = DefaultConfig()
	}

	return &Protector{
		config:      config,
		semaphore:   make(chan struct{}, config.MaxConcurrent),
		rateLimiter: NewSlidingWindowLimiter(redisClient, config.RequestsPerSecond, config.BurstSize),
		debouncer:   NewDebouncer(redisClient, config.DebounceDuration),
	}
}

// Result describes the admission decision.
type Result struct {
	Allowed      bool
	Reason       string
	ShouldWait   bool
	WaitDuration time.Duration
	FromDebounce bool
}

// Acquire tries to admit one call for the key. On success the returned
// release function must be called once the call completes.
func (p *Protector) Acquire(ctx context.Context, key string) (*Result, func()) {
	select {
	case p.semaphore <- struct{}{}:
	default:
		return &Result{
			Allowed: false,
			Reason:  "too many concurrent requests",
		}, nil
	}

	releaseFunc := func() {
		<-p.semaphore
	}

	if p.debouncer.IsDuplicate(ctx, key) {
		releaseFunc()
		return &Result{
			Allowed:      false,
			Reason:       "duplicate request (debounced)",
			FromDebounce: true,
		}, nil
	}

	allowed, waitDuration := p.rateLimiter.Allow(ctx, key)
	if !allowed {
		releaseFunc()
		return &Result{
			Allowed:      false,
			Reason:       "rate limit exceeded",
			ShouldWait:   waitDuration > 0,
			WaitDuration: waitDuration,
		}, nil
	}

	p.debouncer.Mark(ctx, key)

	return &Result{Allowed: true}, releaseFunc
}

// SlidingWindowLimiter implements sliding window rate limiting over
// Redis. Without Redis every request is admitted.
type SlidingWindowLimiter struct {
	redis     *redis.Client
	rate      int
	window    time.Duration
	burstSize int
}

func NewSlidingWindowLimiter(redisClient *redis.Client, requestsPerSecond, burstSize int) *SlidingWindowLimiter {
	return &SlidingWindowLimiter{
		redis:     redisClient,
		rate:      requestsPerSecond,
		window:    time.Second,
		burstSize: burstSize,
	}
}

// Allow checks if a request is admitted. When rejected it returns how
// long the caller would have to wait.
func (l *SlidingWindowLimiter) Allow(ctx context.Context, key string) (bool, time.Duration) {
	if l.redis == nil {
		return true, 0
	}

	now := time.Now()
	windowStart := now.Add(-l.window)
	redisKey := fmt.Sprintf("ratelimit:%s", key)

	// Atomic sliding window over a sorted set
	script := redis.NewScript(`
		local key = KEYS[1]
		local now = tonumber(ARGV[1])
		local window_start = tonumber(ARGV[2])
		local max_requests = tonumber(ARGV[3])
		local window_ms = tonumber(ARGV[4])

		redis.call('ZREMRANGEBYSCORE', key, '-inf', window_start)

		local count = redis.call('ZCARD', key)

		if count < max_requests then
			redis.call('ZADD', key, now, now .. '-' .. math.random())
			redis.call('PEXPIRE', key, window_ms * 2)
			return 1
		else
			local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
			if #oldest > 0 then
				return -(oldest[2] + window_ms - now)
			end
			return 0
		end
	`)

	result, err := script.Run(ctx, l.redis, []string{redisKey},
		now.UnixMilli(),
		windowStart.UnixMilli(),
		l.rate+l.burstSize,
		l.window.Milliseconds(),
	).Int64()

	if err != nil {
		// Fail open on Redis errors
		return true, 0
	}

	if result == 1 {
		return true, 0
	}

	if result < 0 {
		return false, time.Duration(-result) * time.Millisecond
	}

	return false, l.window
}

// Debouncer rejects repeated keys within a time window. The local map
// backs up Redis so a flapping connection never disables debouncing.
type Debouncer struct {
	redis    *redis.Client
	duration time.Duration
	local    map[string]time.Time
	mu       sync.RWMutex
}

func NewDebouncer(redisClient *redis.Client, duration time.Duration) *Debouncer {
	return &Debouncer{
		redis:    redisClient,
		duration: duration,
		local:    make(map[string]time.Time),
	}
}

// IsDuplicate reports whether the key was marked within the window.
func (d *Debouncer) IsDuplicate(ctx context.Context, key string) bool {
	redisKey := fmt.Sprintf("debounce:%s", key)

	if d.redis != nil {
		exists, err := d.redis.Exists(ctx, redisKey).Result()
		if err == nil {
			return exists > 0
		}
	}

	d.mu.RLock()
	lastTime, exists := d.local[key]
	d.mu.RUnlock()

	return exists && time.Since(lastTime) < d.duration
}

// Mark records the key as seen.
func (d *Debouncer) Mark(ctx context.Context, key string) {
	redisKey := fmt.Sprintf("debounce:%s", key)

	if d.redis != nil {
		d.redis.Set(ctx, redisKey, "1", d.duration)
	}

	d.mu.Lock()
	d.local[key] = time.Now()
	now := time.Now()
	for k, v := range d.local {
		if now.Sub(v) > d.duration*2 {
			delete(d.local, k)
		}
	}
	d.mu.Unlock()
}
