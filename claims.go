package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// JWTClaims is the signed payload of a session token
type JWTClaims struct {
	jwt.RegisteredClaims
	UID      string `json:"uid,omitempty"`
	UserRole Role   `json:"role,omitempty"`
}

// UserID returns the user ID
func (c *JWTClaims) UserID() string {
	if c.UID != "" {
		return c.UID
	}
	return c.Subject
}

// Expires returns the expiration time
func (c *JWTClaims) Expires() time.Time {
	if c.ExpiresAt != nil {
		return c.ExpiresAt.Time
	}
	return time.Time{}
}

// Issued returns the issued at time
func (c *JWTClaims) Issued() time.Time {
	if c.IssuedAt != nil {
		return c.IssuedAt.Time
	}
	return time.Time{}
}

// SessionClaim is the verified content of a session token.
// It is re-derived from the token on every request.
type SessionClaim struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	TokenID   string    `json:"-"`
	IssuedAt  time.Time `json:"-"`
	ExpiresAt time.Time `json:"-"`
}

// UserUUID parses the claim id
func (s *SessionClaim) UserUUID() (uuid.UUID, error) {
	if s == nil {
		return uuid.Nil, ErrUnauthenticated
	}
	return uuid.Parse(s.ID)
}

func sessionFromJWT(c *JWTClaims) *SessionClaim {
	return &SessionClaim{
		ID:        c.UserID(),
		Role:      c.UserRole,
		TokenID:   c.ID,
		IssuedAt:  c.Issued(),
		ExpiresAt: c.Expires(),
	}
}
