package auth_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	auth "github.com/folio-cms/go-admin-auth"
	"github.com/folio-cms/go-admin-auth/repository"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type authFixture struct {
	store *repository.MemoryUsers
	clock *fakeClock
	sink  *recordingSink
	auth  *auth.Authenticator
	user  *auth.User
}

func newAuthFixture(t *testing.T, opts ...auth.AuthenticatorOption) *authFixture {
	t.Helper()
	f := &authFixture{
		store: repository.NewMemoryUsers(),
		clock: newFakeClock(),
		sink:  &recordingSink{},
	}
	f.user = seedUser(t, f.store, "admin@example.com", auth.RoleAdmin)

	base := []auth.AuthenticatorOption{
		auth.WithHasher(testHasher),
		auth.WithClock(f.clock.Clock()),
		auth.WithActivitySink(f.sink),
		auth.WithLogger(auth.NopLogger()),
		auth.WithTokenService(newTokenService(f.clock)),
	}
	f.auth = auth.NewAuthenticator(f.store, append(base, opts...)...)
	return f
}

func (f *authFixture) stored(t *testing.T) *auth.User {
	t.Helper()
	u, err := f.store.FindByEmail(context.Background(), f.user.Email)
	require.NoError(t, err)
	return u
}

func richError(t *testing.T, err error) *goerrors.Error {
	t.Helper()
	var richErr *goerrors.Error
	require.True(t, goerrors.As(err, &richErr), "expected rich error, got %v", err)
	return richErr
}

func TestAuthenticateSuccess(t *testing.T) {
	f := newAuthFixture(t)

	claim, err := f.auth.Authenticate(context.Background(), " Admin@Example.com ", testPassword)
	require.NoError(t, err)
	assert.Equal(t, f.user.ID.String(), claim.ID)
	assert.Equal(t, "admin@example.com", claim.Email)
	assert.Equal(t, auth.RoleAdmin, claim.Role)

	stored := f.stored(t)
	assert.Zero(t, stored.FailedLoginAttempts)
	assert.Nil(t, stored.LockedUntil)
	require.NotNil(t, stored.LastLogin)
	assert.True(t, stored.LastLogin.Equal(f.clock.Now()))
	assert.Equal(t, []auth.ActivityEventType{auth.ActivityEventLoginSuccess}, f.sink.Types())
}

func TestUnknownEmailAndWrongPasswordLookTheSame(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	_, unknownErr := f.auth.Authenticate(ctx, "nobody@example.com", testPassword)
	_, wrongErr := f.auth.Authenticate(ctx, f.user.Email, "wrong-password")

	require.Error(t, unknownErr)
	require.Error(t, wrongErr)

	unknown, wrong := richError(t, unknownErr), richError(t, wrongErr)
	assert.Equal(t, unknown.Message, wrong.Message)
	assert.Equal(t, unknown.Code, wrong.Code)
	assert.Equal(t, unknown.TextCode, wrong.TextCode)
	assert.Equal(t, auth.MessageInvalidCredentials, wrong.Message)
	assert.Equal(t, 401, wrong.Code)
}

func TestLockoutCycle(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	for i := 1; i <= auth.DefaultLockoutThreshold; i++ {
		_, err := f.auth.Authenticate(ctx, f.user.Email, "wrong-password")
		assert.ErrorIs(t, err, auth.ErrInvalidCredentials, "attempt %d", i)
	}

	stored := f.stored(t)
	assert.Equal(t, auth.DefaultLockoutThreshold, stored.FailedLoginAttempts)
	require.NotNil(t, stored.LockedUntil)
	assert.True(t, stored.LockedUntil.Equal(f.clock.Now().Add(auth.DefaultLockoutDuration)))

	_, err := f.auth.Authenticate(ctx, f.user.Email, testPassword)
	require.Error(t, err)
	locked := richError(t, err)
	assert.Equal(t, auth.TextCodeAccountLocked, locked.TextCode)
	assert.Equal(t, 423, locked.Code)
	assert.Equal(t, "Account locked. Try again in 15 minutes", locked.Message)
	assert.Equal(t, 15, locked.Metadata["minutes_remaining"])
}

func TestLockoutBoundary(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	for i := 0; i < auth.DefaultLockoutThreshold; i++ {
		_, _ = f.auth.Authenticate(ctx, f.user.Email, "wrong-password")
	}

	f.clock.Advance(14*time.Minute + 59*time.Second)
	_, err := f.auth.Authenticate(ctx, f.user.Email, testPassword)
	require.Error(t, err)
	assert.Equal(t, auth.TextCodeAccountLocked, auth.TextCode(err))
	assert.Equal(t, "Account locked. Try again in 1 minutes", richError(t, err).Message)

	f.clock.Advance(2 * time.Second)
	claim, err := f.auth.Authenticate(ctx, f.user.Email, testPassword)
	require.NoError(t, err)
	assert.Equal(t, f.user.ID.String(), claim.ID)

	stored := f.stored(t)
	assert.Zero(t, stored.FailedLoginAttempts)
	assert.Nil(t, stored.LockedUntil)
}

func TestLockedAttemptDoesNotTouchCounter(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	for i := 0; i < auth.DefaultLockoutThreshold; i++ {
		_, _ = f.auth.Authenticate(ctx, f.user.Email, "wrong-password")
	}
	before := f.stored(t)

	f.clock.Advance(time.Minute)
	for i := 0; i < 3; i++ {
		_, err := f.auth.Authenticate(ctx, f.user.Email, "wrong-password")
		assert.Equal(t, auth.TextCodeAccountLocked, auth.TextCode(err))
	}

	after := f.stored(t)
	assert.Equal(t, before.FailedLoginAttempts, after.FailedLoginAttempts)
	assert.True(t, before.LockedUntil.Equal(*after.LockedUntil))
}

func TestSuccessResetsFailureCount(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	for i := 0; i < auth.DefaultLockoutThreshold-1; i++ {
		_, _ = f.auth.Authenticate(ctx, f.user.Email, "wrong-password")
	}
	assert.Equal(t, auth.DefaultLockoutThreshold-1, f.stored(t).FailedLoginAttempts)

	_, err := f.auth.Authenticate(ctx, f.user.Email, testPassword)
	require.NoError(t, err)
	assert.Zero(t, f.stored(t).FailedLoginAttempts)

	for i := 0; i < auth.DefaultLockoutThreshold-1; i++ {
		_, _ = f.auth.Authenticate(ctx, f.user.Email, "wrong-password")
	}
	_, err = f.auth.Authenticate(ctx, f.user.Email, testPassword)
	assert.NoError(t, err)
}

func TestFailureAfterExpiredLockRelocks(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	for i := 0; i < auth.DefaultLockoutThreshold; i++ {
		_, _ = f.auth.Authenticate(ctx, f.user.Email, "wrong-password")
	}
	f.clock.Advance(auth.DefaultLockoutDuration + time.Second)

	_, err := f.auth.Authenticate(ctx, f.user.Email, "wrong-password")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)

	_, err = f.auth.Authenticate(ctx, f.user.Email, testPassword)
	assert.Equal(t, auth.TextCodeAccountLocked, auth.TextCode(err))
}

func TestCustomLockoutPolicy(t *testing.T) {
	f := newAuthFixture(t, auth.WithLockoutPolicy(auth.LockoutPolicy{Threshold: 2, Duration: time.Minute}))
	ctx := context.Background()

	_, _ = f.auth.Authenticate(ctx, f.user.Email, "wrong-password")
	_, _ = f.auth.Authenticate(ctx, f.user.Email, "wrong-password")

	_, err := f.auth.Authenticate(ctx, f.user.Email, testPassword)
	assert.Equal(t, "Account locked. Try again in 1 minutes", richError(t, err).Message)
	assert.Equal(t, 2, f.auth.Policy().Threshold)
}

func TestMissingCredentials(t *testing.T) {
	f := newAuthFixture(t)

	_, err := f.auth.Authenticate(context.Background(), "", testPassword)
	assert.ErrorIs(t, err, auth.ErrMissingCredentials)

	_, err = f.auth.Authenticate(context.Background(), f.user.Email, "")
	assert.ErrorIs(t, err, auth.ErrMissingCredentials)
	assert.Zero(t, f.stored(t).FailedLoginAttempts)
}

func TestAuthenticateCancelledContext(t *testing.T) {
	f := newAuthFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.auth.Authenticate(ctx, f.user.Email, testPassword)
	require.Error(t, err)
	assert.Equal(t, goerrors.CategoryOperation, richError(t, err).Category)
	assert.Zero(t, f.stored(t).FailedLoginAttempts)
}

func TestAuthenticateEmitsFailureEvents(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	_, _ = f.auth.Authenticate(ctx, "ghost@example.com", testPassword)
	_, _ = f.auth.Authenticate(ctx, f.user.Email, "wrong-password")

	require.Len(t, f.sink.events, 2)
	assert.Equal(t, "unknown_identity", f.sink.events[0].Metadata["reason"])
	assert.Empty(t, f.sink.events[0].UserID)
	assert.Equal(t, "invalid_password", f.sink.events[1].Metadata["reason"])
	assert.Equal(t, 1, f.sink.events[1].Metadata["attempts"])
	assert.Equal(t, f.user.ID.String(), f.sink.events[1].UserID)
}

func TestLoginIssuesSessionToken(t *testing.T) {
	f := newAuthFixture(t)

	result, err := f.auth.Login(context.Background(), f.user.Email, testPassword)
	require.NoError(t, err)
	require.NotEmpty(t, result.Token)
	assert.Equal(t, f.user.ID.String(), result.Session.ID)
	assert.Equal(t, auth.RoleAdmin, result.Session.Role)
	assert.True(t, result.Session.ExpiresAt.Equal(f.clock.Now().Add(auth.DefaultTokenTTL)))
	assert.Equal(t, "admin@example.com", result.Identity.Email)
}

func TestLoginWithoutTokenService(t *testing.T) {
	store := repository.NewMemoryUsers()
	a := auth.NewAuthenticator(store, auth.WithLogger(auth.NopLogger()))

	_, err := a.Login(context.Background(), "admin@example.com", testPassword)
	assert.Error(t, err)
}

type failingStore struct {
	user      *auth.User
	findErr   error
	failErr   error
	failCalls atomic.Int32
}

func (s *failingStore) FindByEmail(context.Context, string) (*auth.User, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	return s.user.Clone(), nil
}

func (s *failingStore) RecordFailure(context.Context, uuid.UUID, auth.LockoutPolicy, time.Time) (*auth.User, error) {
	s.failCalls.Add(1)
	return nil, s.failErr
}

func (s *failingStore) RecordSuccess(context.Context, uuid.UUID, time.Time) error {
	return nil
}

func TestStoreErrorsAreInternal(t *testing.T) {
	hash, err := testHasher.HashPassword(testPassword)
	require.NoError(t, err)

	t.Run("lookup", func(t *testing.T) {
		store := &failingStore{findErr: errors.New("connection refused")}
		a := auth.NewAuthenticator(store, auth.WithHasher(testHasher), auth.WithLogger(auth.NopLogger()))

		_, err := a.Authenticate(context.Background(), "admin@example.com", testPassword)
		require.Error(t, err)
		assert.Equal(t, goerrors.CategoryInternal, richError(t, err).Category)
		assert.NotErrorIs(t, err, auth.ErrInvalidCredentials)
	})

	t.Run("record failure", func(t *testing.T) {
		store := &failingStore{
			user:    &auth.User{ID: uuid.New(), Email: "admin@example.com", PasswordHash: hash, Role: auth.RoleAdmin},
			failErr: errors.New("disk full"),
		}
		a := auth.NewAuthenticator(store, auth.WithHasher(testHasher), auth.WithLogger(auth.NopLogger()))

		_, err := a.Authenticate(context.Background(), "admin@example.com", "wrong-password")
		require.Error(t, err)
		assert.Equal(t, goerrors.CategoryInternal, richError(t, err).Category)
		assert.Equal(t, int32(1), store.failCalls.Load())
	})
}
