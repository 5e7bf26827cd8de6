package auth

import (
	"sync"
	"time"
)

// RevocationList is an in-process deny list for session tokens.
// Entries are keyed by token id, with per-user cutoffs that reject every
// token issued at or before the cutoff. Entries are dropped once the
// tokens they cover would have expired anyway.
type RevocationList struct {
	mu     sync.Mutex
	tokens map[string]time.Time
	users  map[string]userCutoff
	ttl    time.Duration
	clock  Clock
}

type userCutoff struct {
	before      time.Time
	retainUntil time.Time
}

// NewRevocationList creates an empty list. ttl is the longest token
// lifetime, used to expire user cutoffs.
func NewRevocationList(ttl time.Duration, clock Clock) *RevocationList {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &RevocationList{
		tokens: make(map[string]time.Time),
		users:  make(map[string]userCutoff),
		ttl:    ttl,
		clock:  clock,
	}
}

// Revoke denies a single token until its expiry
func (r *RevocationList) Revoke(tokenID string, expiresAt time.Time) {
	if tokenID == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pruneLocked(r.clock.Now())
	r.tokens[tokenID] = expiresAt
}

// RevokeUser denies every token of userID issued at or before the cutoff
func (r *RevocationList) RevokeUser(userID string, before time.Time) {
	if userID == "" {
		return
	}
	before = before.Truncate(time.Second)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.pruneLocked(r.clock.Now())
	if existing, ok := r.users[userID]; ok && existing.before.After(before) {
		return
	}
	r.users[userID] = userCutoff{before: before, retainUntil: before.Add(r.ttl)}
}

// IsRevoked reports whether the claim is covered by an entry
func (r *RevocationList) IsRevoked(claim *SessionClaim) bool {
	if r == nil || claim == nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if claim.TokenID != "" {
		if _, ok := r.tokens[claim.TokenID]; ok {
			return true
		}
	}
	if cutoff, ok := r.users[claim.ID]; ok {
		return !claim.IssuedAt.After(cutoff.before)
	}
	return false
}

// Prune drops expired entries and returns how many were removed
func (r *RevocationList) Prune() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pruneLocked(r.clock.Now())
}

// Len returns the number of live entries
func (r *RevocationList) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tokens) + len(r.users)
}

func (r *RevocationList) pruneLocked(now time.Time) int {
	removed := 0
	for id, exp := range r.tokens {
		if !exp.After(now) {
			delete(r.tokens, id)
			removed++
		}
	}
	for id, cutoff := range r.users {
		if !cutoff.retainUntil.After(now) {
			delete(r.users, id)
			removed++
		}
	}
	return removed
}
