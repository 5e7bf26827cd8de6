package auth

import (
	"context"

	"github.com/gofiber/fiber/v2"
)

// LocalsSessionKey is the fiber locals key holding the resolved *SessionClaim
const LocalsSessionKey = "admin_session"

var sessionCtxKey = &contextKey{"session"}
var originCtxKey = &contextKey{"origin"}

type contextKey struct {
	name string
}

// WithSessionContext sets the SessionClaim in the given context
func WithSessionContext(ctx context.Context, session *SessionClaim) context.Context {
	return context.WithValue(ctx, sessionCtxKey, session)
}

// SessionFromContext finds the session claim from the context.
func SessionFromContext(ctx context.Context) (*SessionClaim, bool) {
	if ctx == nil {
		return nil, false
	}
	raw, ok := ctx.Value(sessionCtxKey).(*SessionClaim)
	return raw, ok && raw != nil
}

// CurrentSession returns the session the gate resolved for this request
func CurrentSession(c *fiber.Ctx) (*SessionClaim, bool) {
	if raw, ok := c.Locals(LocalsSessionKey).(*SessionClaim); ok && raw != nil {
		return raw, true
	}
	return SessionFromContext(c.UserContext())
}

// WithOriginContext sets the request origin used by audit records
func WithOriginContext(ctx context.Context, origin RequestOrigin) context.Context {
	return context.WithValue(ctx, originCtxKey, origin)
}

// OriginFromContext returns the request origin, or "unknown" values
func OriginFromContext(ctx context.Context) RequestOrigin {
	if ctx != nil {
		if o, ok := ctx.Value(originCtxKey).(RequestOrigin); ok {
			return o
		}
	}
	return RequestOrigin{IPAddress: UnknownOrigin, UserAgent: UnknownOrigin}
}
