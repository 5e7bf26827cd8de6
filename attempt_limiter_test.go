package auth_test

import (
	"testing"
	"time"

	auth "github.com/folio-cms/go-admin-auth"
	"github.com/stretchr/testify/assert"
)

func TestAttemptLimiterBlocksAfterMaxAttempts(t *testing.T) {
	clock := newFakeClock()
	limiter := auth.NewAttemptLimiter(3, time.Minute, 5*time.Minute, clock.Clock())

	assert.Equal(t, 2, limiter.Fail("203.0.113.9"))
	assert.Equal(t, 1, limiter.Fail("203.0.113.9"))
	assert.Zero(t, limiter.Check("203.0.113.9"))

	assert.Equal(t, 0, limiter.Fail("203.0.113.9"))
	assert.Equal(t, 5*time.Minute, limiter.Check("203.0.113.9"))
	assert.Zero(t, limiter.Check("198.51.100.1"), "other clients are unaffected")

	clock.Advance(4 * time.Minute)
	assert.Equal(t, time.Minute, limiter.Check("203.0.113.9"))

	clock.Advance(time.Minute)
	assert.Zero(t, limiter.Check("203.0.113.9"))
}

func TestAttemptLimiterWindowRestarts(t *testing.T) {
	clock := newFakeClock()
	limiter := auth.NewAttemptLimiter(3, time.Minute, time.Minute, clock.Clock())

	limiter.Fail("k")
	limiter.Fail("k")
	clock.Advance(61 * time.Second)

	assert.Equal(t, 2, limiter.Fail("k"), "a fresh window starts the count over")
	assert.Zero(t, limiter.Check("k"))
}

func TestAttemptLimiterResetAndPrune(t *testing.T) {
	clock := newFakeClock()
	limiter := auth.NewAttemptLimiter(2, time.Minute, time.Minute, clock.Clock())

	limiter.Fail("a")
	limiter.Fail("a")
	assert.NotZero(t, limiter.Check("a"))

	limiter.Reset("a")
	assert.Zero(t, limiter.Check("a"))

	limiter.Fail("b")
	limiter.Fail("c")
	clock.Advance(30 * time.Second)
	assert.Equal(t, 0, limiter.Prune())

	clock.Advance(31 * time.Second)
	assert.Equal(t, 2, limiter.Prune())
}

func TestAttemptLimiterDefaults(t *testing.T) {
	clock := newFakeClock()
	limiter := auth.NewAttemptLimiter(0, 0, 0, clock.Clock())

	assert.Equal(t, auth.DefaultLimiterMaxAttempts-1, limiter.Fail("k"))
}
