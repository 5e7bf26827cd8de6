package auth

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeInvalidCreds       = "INVALID_CREDENTIALS"
	TextCodeAccountLocked      = "ACCOUNT_LOCKED"
	TextCodeMissingCredentials = "MISSING_CREDENTIALS"
	TextCodeUnauthenticated    = "UNAUTHENTICATED"
	TextCodeForbiddenRole      = "FORBIDDEN_ROLE"
	TextCodeAuditWriteFailed   = "AUDIT_WRITE_FAILED"
	TextCodeInvalidAudit       = "INVALID_AUDIT_ENTRY"
	TextCodeTooManyAttempts    = "TOO_MANY_ATTEMPTS"
	TextCodeTokenExpired       = "TOKEN_EXPIRED"
	TextCodeTokenMalformed     = "TOKEN_MALFORMED"
	TextCodeTokenRevoked       = "TOKEN_REVOKED"
	TextCodeIdentityNotFound   = "IDENTITY_NOT_FOUND"
	TextCodeIdentityExists     = "IDENTITY_EXISTS"
	TextCodeEmptyPassword      = "EMPTY_PASSWORD"
	TextCodeWeakPassword       = "WEAK_PASSWORD"
)

// MessageInvalidCredentials is shown for both unknown emails and wrong passwords.
const MessageInvalidCredentials = "Invalid email or password"

// ErrInvalidCredentials is returned for a wrong password or an unknown email.
var ErrInvalidCredentials = goerrors.New(MessageInvalidCredentials, goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidCreds).
	WithCode(http.StatusUnauthorized)

// ErrMismatchedHashAndPassword is returned by the hasher when the password does not match.
var ErrMismatchedHashAndPassword = goerrors.New("the credentials provided are invalid", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidCreds).
	WithCode(http.StatusUnauthorized)

// ErrMissingCredentials is returned when email or password is empty
var ErrMissingCredentials = goerrors.New("Please enter email and password", goerrors.CategoryBadInput).
	WithTextCode(TextCodeMissingCredentials).
	WithCode(http.StatusBadRequest)

// ErrUnauthenticated is returned when a protected resource is requested without a valid session
var ErrUnauthenticated = goerrors.New("Unauthorized", goerrors.CategoryAuth).
	WithTextCode(TextCodeUnauthenticated).
	WithCode(http.StatusUnauthorized)

// ErrTokenExpired is returned when the session token is past its expiry
var ErrTokenExpired = goerrors.New("session token is expired", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(http.StatusUnauthorized)

// ErrTokenMalformed is returned when the token cannot be parsed or its signature is invalid
var ErrTokenMalformed = goerrors.New("session token is malformed", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenMalformed).
	WithCode(http.StatusUnauthorized)

// ErrTokenRevoked is returned for tokens present in the revocation list
var ErrTokenRevoked = goerrors.New("session token has been revoked", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenRevoked).
	WithCode(http.StatusUnauthorized)

// ErrIdentityNotFound is the error stores return for unknown identities
var ErrIdentityNotFound = goerrors.New("identity not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeIdentityNotFound).
	WithCode(http.StatusNotFound)

// ErrIdentityExists is returned when provisioning an email that is already taken
var ErrIdentityExists = goerrors.New("identity with this email already exists", goerrors.CategoryConflict).
	WithTextCode(TextCodeIdentityExists).
	WithCode(http.StatusConflict)

// ErrNoEmptyString is returned when hashing an empty password
var ErrNoEmptyString = goerrors.New("password must not be empty", goerrors.CategoryValidation).
	WithTextCode(TextCodeEmptyPassword).
	WithCode(http.StatusBadRequest)

// AccountLockedError reports an active lockout window.
// The remaining minutes are exposed as metadata under "minutes_remaining".
func AccountLockedError(minutes int) *goerrors.Error {
	return goerrors.New(fmt.Sprintf("Account locked. Try again in %d minutes", minutes), goerrors.CategoryAuth).
		WithTextCode(TextCodeAccountLocked).
		WithCode(http.StatusLocked).
		WithMetadata(map[string]any{"minutes_remaining": minutes})
}

// UnauthorizedRoleError reports a valid session whose role is not allowed.
func UnauthorizedRoleError(role Role) *goerrors.Error {
	return goerrors.New("Forbidden", goerrors.CategoryAuth).
		WithTextCode(TextCodeForbiddenRole).
		WithCode(http.StatusForbidden).
		WithMetadata(map[string]any{"role": string(role)})
}

// TooManyAttemptsError reports a client that is temporarily throttled.
func TooManyAttemptsError(retryAfterSeconds int) *goerrors.Error {
	return goerrors.New("Too many login attempts. Try again later", goerrors.CategoryRateLimit).
		WithTextCode(TextCodeTooManyAttempts).
		WithCode(http.StatusTooManyRequests).
		WithMetadata(map[string]any{"retry_after_seconds": retryAfterSeconds})
}

// AuditWriteFailure wraps a storage error raised while appending an audit record.
func AuditWriteFailure(err error, resource string) *goerrors.Error {
	return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to write audit record").
		WithTextCode(TextCodeAuditWriteFailed).
		WithCode(http.StatusInternalServerError).
		WithMetadata(map[string]any{"resource": resource})
}

// TextCode returns the text code of a rich error, or an empty string.
func TextCode(err error) string {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.TextCode
	}
	return ""
}

// IsAuthFailure reports whether err is an authentication or authorization failure.
func IsAuthFailure(err error) bool {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return false
	}
	return richErr.Category == goerrors.CategoryAuth
}

// IsNotFound reports whether err describes a missing record.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, sql.ErrNoRows) {
		return true
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.Category == goerrors.CategoryNotFound
	}
	return false
}

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	if TextCode(err) == TextCodeTokenExpired {
		return true
	}
	return strings.Contains(err.Error(), "token is expired")
}

// IsMalformedError will check for error message
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}
	if TextCode(err) == TextCodeTokenMalformed {
		return true
	}
	return strings.Contains(err.Error(), "token is malformed") ||
		strings.Contains(err.Error(), "missing or malformed JWT")
}
