package auth_test

import (
	"context"
	"sync"
	"testing"
	"time"

	auth "github.com/folio-cms/go-admin-auth"
	"github.com/folio-cms/go-admin-auth/repository"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const (
	testSigningKey = "test-signing-key-0123456789"
	testIssuer     = "folio-admin-test"
	testPassword   = "Corr3ct$Horse"
)

var testHasher = auth.BcryptHasher{Cost: bcrypt.MinCost}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *fakeClock) Clock() auth.Clock {
	return c.Now
}

func seedUser(t *testing.T, store *repository.MemoryUsers, email string, role auth.Role) *auth.User {
	t.Helper()
	hash, err := testHasher.HashPassword(testPassword)
	require.NoError(t, err)

	now := time.Now().UTC()
	user := &auth.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: hash,
		Name:         "Test Admin",
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, store.Create(context.Background(), user))
	return user
}

type recordingSink struct {
	mu     sync.Mutex
	events []auth.ActivityEvent
}

func (s *recordingSink) Record(_ context.Context, event auth.ActivityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *recordingSink) Types() []auth.ActivityEventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]auth.ActivityEventType, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.EventType)
	}
	return out
}

func newTokenService(clock *fakeClock) *auth.TokenService {
	return auth.NewTokenService([]byte(testSigningKey), testIssuer,
		auth.WithTokenClock(clock.Clock()),
		auth.WithTokenLogger(auth.NopLogger()),
	)
}
