package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Logger is the structured logger used across the package.
// Arguments after msg are key/value pairs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Identity holds the attributes of a verified administrative identity
type Identity interface {
	ID() string
	Email() string
	Name() string
	Role() Role
}

// Config holds auth options
type Config interface {
	GetSigningKey() string
	GetIssuer() string
	GetTokenExpiration() int
	GetCookieName() string
	GetCookieSecure() bool
	GetUIPrefix() string
	GetLoginPath() string
	GetAPIPrefix() string
	GetAllowedRoles() []string
}

// CredentialStore persists administrative identities and their lockout state.
// RecordFailure must apply the increment and the lock decision as a single
// atomic operation.
type CredentialStore interface {
	FindByEmail(ctx context.Context, email string) (*User, error)
	RecordFailure(ctx context.Context, id uuid.UUID, policy LockoutPolicy, now time.Time) (*User, error)
	RecordSuccess(ctx context.Context, id uuid.UUID, now time.Time) error
}

// IdentityProvisioner creates identities out-of-band
type IdentityProvisioner interface {
	FindByEmail(ctx context.Context, email string) (*User, error)
	Create(ctx context.Context, user *User) error
}

// PasswordAuthenticator authenticates passwords
type PasswordAuthenticator interface {
	HashPassword(password string) (string, error)
	ComparePasswordAndHash(password, hash string) error
}

// SessionResolver turns a raw token into a verified session claim
type SessionResolver interface {
	Resolve(token string) (*SessionClaim, error)
}

// Clock returns the current time. Tests inject fixed clocks.
type Clock func() time.Time

// Now returns c(), or time.Now when c is nil
func (c Clock) Now() time.Time {
	if c == nil {
		return time.Now()
	}
	return c()
}
