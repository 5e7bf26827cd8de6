package auth

import (
	"math"
	"time"
)

const (
	DefaultLockoutThreshold = 5
	DefaultLockoutDuration  = 15 * time.Minute
)

// LockoutPolicy controls progressive lockout for a single identity
type LockoutPolicy struct {
	// Threshold is the number of consecutive failures that triggers a lock.
	Threshold int
	// Duration is measured from the failure that reached the threshold.
	Duration time.Duration
}

// DefaultLockoutPolicy locks for 15 minutes after 5 consecutive failures
func DefaultLockoutPolicy() LockoutPolicy {
	return LockoutPolicy{
		Threshold: DefaultLockoutThreshold,
		Duration:  DefaultLockoutDuration,
	}
}

// Normalized replaces non-positive fields with the defaults
func (p LockoutPolicy) Normalized() LockoutPolicy {
	if p.Threshold <= 0 {
		p.Threshold = DefaultLockoutThreshold
	}
	if p.Duration <= 0 {
		p.Duration = DefaultLockoutDuration
	}
	return p
}

// Next returns the failure count and lock expiry after one more failed
// attempt. The current lock is kept when the threshold is not reached.
func (p LockoutPolicy) Next(attempts int, lockedUntil *time.Time, now time.Time) (int, *time.Time) {
	p = p.Normalized()
	attempts++
	if attempts >= p.Threshold {
		until := now.Add(p.Duration)
		return attempts, &until
	}
	return attempts, lockedUntil
}

// IsLocked reports whether the lock window is still open at now
func IsLocked(lockedUntil *time.Time, now time.Time) bool {
	return lockedUntil != nil && lockedUntil.After(now)
}

// MinutesRemaining rounds the remaining lock time up to whole minutes
func MinutesRemaining(lockedUntil *time.Time, now time.Time) int {
	if !IsLocked(lockedUntil, now) {
		return 0
	}
	return int(math.Ceil(lockedUntil.Sub(now).Minutes()))
}

// IsLocked reports whether the identity is locked at now
func (u *User) IsLocked(now time.Time) bool {
	return u != nil && IsLocked(u.LockedUntil, now)
}
