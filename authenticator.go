package auth

import (
	"context"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// Authenticator verifies credentials and enforces progressive lockout
type Authenticator struct {
	store        CredentialStore
	hasher       PasswordAuthenticator
	tokens       *TokenService
	policy       LockoutPolicy
	clock        Clock
	logger       Logger
	activitySink ActivitySink
}

// AuthenticatorOption configures an Authenticator
type AuthenticatorOption func(*Authenticator)

// WithLogger sets the logger
func WithLogger(logger Logger) AuthenticatorOption {
	return func(a *Authenticator) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithClock sets the clock used for lockout decisions
func WithClock(clock Clock) AuthenticatorOption {
	return func(a *Authenticator) {
		a.clock = clock
	}
}

// WithActivitySink configures an ActivitySink for emitting auth events.
func WithActivitySink(sink ActivitySink) AuthenticatorOption {
	return func(a *Authenticator) {
		a.activitySink = normalizeActivitySink(sink)
	}
}

// WithLockoutPolicy overrides the default lockout policy
func WithLockoutPolicy(policy LockoutPolicy) AuthenticatorOption {
	return func(a *Authenticator) {
		a.policy = policy.Normalized()
	}
}

// WithHasher overrides the password hasher
func WithHasher(hasher PasswordAuthenticator) AuthenticatorOption {
	return func(a *Authenticator) {
		if hasher != nil {
			a.hasher = hasher
		}
	}
}

// WithTokenService enables Login
func WithTokenService(tokens *TokenService) AuthenticatorOption {
	return func(a *Authenticator) {
		a.tokens = tokens
	}
}

// NewAuthenticator returns a new Authenticator
func NewAuthenticator(store CredentialStore, opts ...AuthenticatorOption) *Authenticator {
	a := &Authenticator{
		store:        store,
		hasher:       NewBcryptHasher(),
		policy:       DefaultLockoutPolicy(),
		logger:       defaultLogger("authenticator"),
		activitySink: noopActivitySink{},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Policy returns the lockout policy in effect
func (a *Authenticator) Policy() LockoutPolicy {
	return a.policy
}

// Authenticate checks email and password.
//
// A locked identity is rejected with AccountLockedError before the password
// is looked at and without touching the store. A wrong password and an
// unknown email both produce ErrInvalidCredentials.
func (a *Authenticator) Authenticate(ctx context.Context, email, password string) (*IdentityClaim, error) {
	user, err := a.authenticate(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return ClaimFromIdentity(NewIdentityFromUser(user)), nil
}

// LoginResult is returned by Login
type LoginResult struct {
	Token    string
	Session  *SessionClaim
	Identity *IdentityClaim
}

// Login authenticates and issues a session token
func (a *Authenticator) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	if a.tokens == nil {
		return nil, goerrors.New("authenticator has no token service", goerrors.CategoryInternal)
	}

	user, err := a.authenticate(ctx, email, password)
	if err != nil {
		return nil, err
	}

	identity := NewIdentityFromUser(user)
	token, session, err := a.tokens.Issue(identity)
	if err != nil {
		a.logger.Error("Login failed to issue token", "user_id", user.ID, "error", err)
		return nil, err
	}

	return &LoginResult{
		Token:    token,
		Session:  session,
		Identity: ClaimFromIdentity(identity),
	}, nil
}

func (a *Authenticator) authenticate(ctx context.Context, email, password string) (*User, error) {
	select {
	case <-ctx.Done():
		return nil, goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during authentication")
	default:
	}

	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, ErrMissingCredentials
	}

	user, err := a.store.FindByEmail(ctx, email)
	if err != nil {
		if IsNotFound(err) {
			a.logger.Info("Login attempt for unknown identity")
			a.emit(ctx, ActivityEventLoginFailure, "", map[string]any{
				"identifier": email,
				"reason":     "unknown_identity",
			})
			return nil, ErrInvalidCredentials
		}
		a.logger.Error("Login failed to load identity", "error", err)
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load identity")
	}

	now := a.clock.Now()

	if user.IsLocked(now) {
		minutes := MinutesRemaining(user.LockedUntil, now)
		a.logger.Warn("Login rejected, account locked", "user_id", user.ID, "minutes_remaining", minutes)
		a.emit(ctx, ActivityEventLoginLocked, user.ID.String(), map[string]any{
			"identifier":        email,
			"minutes_remaining": minutes,
		})
		return nil, AccountLockedError(minutes)
	}

	if err := a.hasher.ComparePasswordAndHash(password, user.PasswordHash); err != nil {
		updated, ferr := a.store.RecordFailure(ctx, user.ID, a.policy, now)
		if ferr != nil {
			a.logger.Error("Login failed to record failed attempt", "user_id", user.ID, "error", ferr)
			return nil, goerrors.Wrap(ferr, goerrors.CategoryInternal, "failed to record login attempt")
		}

		metadata := map[string]any{
			"identifier": email,
			"reason":     "invalid_password",
			"attempts":   updated.FailedLoginAttempts,
		}
		if updated.IsLocked(now) {
			metadata["locked_until"] = updated.LockedUntil.UTC()
			a.logger.Warn("Account locked after repeated failures", "user_id", user.ID, "attempts", updated.FailedLoginAttempts)
		}
		a.emit(ctx, ActivityEventLoginFailure, user.ID.String(), metadata)
		return nil, ErrInvalidCredentials
	}

	if err := a.store.RecordSuccess(ctx, user.ID, now); err != nil {
		a.logger.Error("Login failed to reset lockout state", "user_id", user.ID, "error", err)
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to record login")
	}

	user.FailedLoginAttempts = 0
	user.LockedUntil = nil
	user.LastLogin = &now

	a.emit(ctx, ActivityEventLoginSuccess, user.ID.String(), map[string]any{
		"identifier": email,
		"role":       string(user.Role),
	})
	return user, nil
}

func (a *Authenticator) emit(ctx context.Context, eventType ActivityEventType, userID string, metadata map[string]any) {
	actor := ActorRef{Type: "unknown"}
	if userID != "" {
		actor = ActorRef{ID: userID, Type: "user"}
	}
	emitActivity(ctx, a.activitySink, a.logger, ActivityEvent{
		EventType:  eventType,
		Actor:      actor,
		UserID:     userID,
		Metadata:   metadata,
		OccurredAt: a.clock.Now(),
	})
}

// NormalizeEmail trims and lowercases an email address
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
