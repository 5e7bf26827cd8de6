package auth

import (
	"math"
	"sync"
	"time"
)

const (
	DefaultLimiterMaxAttempts = 20
	DefaultLimiterWindow      = 15 * time.Minute
	DefaultLimiterBlock       = 15 * time.Minute
)

// AttemptLimiter throttles failed logins per client key (usually the IP).
// It covers attempts against unknown emails, which have no identity to lock.
type AttemptLimiter struct {
	mu          sync.Mutex
	attempts    map[string]*attemptState
	maxAttempts int
	window      time.Duration
	block       time.Duration
	clock       Clock
}

type attemptState struct {
	count        int
	firstAttempt time.Time
	blockedUntil time.Time
}

// NewAttemptLimiter creates a limiter; zero values use the defaults
func NewAttemptLimiter(maxAttempts int, window, block time.Duration, clock Clock) *AttemptLimiter {
	if maxAttempts <= 0 {
		maxAttempts = DefaultLimiterMaxAttempts
	}
	if window <= 0 {
		window = DefaultLimiterWindow
	}
	if block <= 0 {
		block = DefaultLimiterBlock
	}
	return &AttemptLimiter{
		attempts:    make(map[string]*attemptState),
		maxAttempts: maxAttempts,
		window:      window,
		block:       block,
		clock:       clock,
	}
}

// Check returns how long key remains blocked, zero if it may proceed
func (l *AttemptLimiter) Check(key string) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	state, ok := l.attempts[key]
	if !ok {
		return 0
	}
	now := l.clock.Now()
	if !state.blockedUntil.After(now) {
		return 0
	}
	return state.blockedUntil.Sub(now)
}

// Fail records a failed attempt and returns the remaining attempts in the window
func (l *AttemptLimiter) Fail(key string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	state, ok := l.attempts[key]
	if !ok || now.Sub(state.firstAttempt) > l.window {
		state = &attemptState{firstAttempt: now}
		l.attempts[key] = state
	}

	state.count++
	if state.count >= l.maxAttempts {
		state.blockedUntil = now.Add(l.block)
		state.count = l.maxAttempts
	}

	if len(l.attempts) > 1024 {
		l.pruneLocked(now)
	}
	return l.maxAttempts - state.count
}

// Reset forgets key, called after a successful login
func (l *AttemptLimiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.attempts, key)
}

// Prune drops entries whose window and block have both passed
func (l *AttemptLimiter) Prune() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pruneLocked(l.clock.Now())
}

func (l *AttemptLimiter) pruneLocked(now time.Time) int {
	removed := 0
	for key, state := range l.attempts {
		if now.Sub(state.firstAttempt) > l.window && !state.blockedUntil.After(now) {
			delete(l.attempts, key)
			removed++
		}
	}
	return removed
}

func retryAfterSeconds(d time.Duration) int {
	return int(math.Ceil(d.Seconds()))
}
