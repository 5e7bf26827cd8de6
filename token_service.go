package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// DefaultTokenTTL is the absolute lifetime of a session token
const DefaultTokenTTL = 7 * 24 * time.Hour

// TokenService signs session claims into HS256 tokens and verifies them
type TokenService struct {
	signingKey  []byte
	issuer      string
	ttl         time.Duration
	clock       Clock
	revocations *RevocationList
	logger      Logger
}

// TokenOption configures a TokenService
type TokenOption func(*TokenService)

// WithTokenTTL overrides the token lifetime
func WithTokenTTL(ttl time.Duration) TokenOption {
	return func(ts *TokenService) {
		if ttl > 0 {
			ts.ttl = ttl
		}
	}
}

// WithTokenClock sets the clock used for issuance and verification
func WithTokenClock(clock Clock) TokenOption {
	return func(ts *TokenService) {
		ts.clock = clock
	}
}

// WithRevocationList shares a deny list with the service
func WithRevocationList(list *RevocationList) TokenOption {
	return func(ts *TokenService) {
		if list != nil {
			ts.revocations = list
		}
	}
}

// WithTokenLogger sets the logger
func WithTokenLogger(logger Logger) TokenOption {
	return func(ts *TokenService) {
		if logger != nil {
			ts.logger = logger
		}
	}
}

// NewTokenService creates a new TokenService instance
func NewTokenService(signingKey []byte, issuer string, opts ...TokenOption) *TokenService {
	ts := &TokenService{
		signingKey: signingKey,
		issuer:     issuer,
		ttl:        DefaultTokenTTL,
		logger:     defaultLogger("token_service"),
	}
	for _, opt := range opts {
		opt(ts)
	}
	if ts.revocations == nil {
		ts.revocations = NewRevocationList(ts.ttl, ts.clock)
	}
	return ts
}

// NewTokenServiceFromConfig builds a service from Config getters
func NewTokenServiceFromConfig(cfg Config, opts ...TokenOption) *TokenService {
	base := []TokenOption{}
	if hours := cfg.GetTokenExpiration(); hours > 0 {
		base = append(base, WithTokenTTL(time.Duration(hours)*time.Hour))
	}
	return NewTokenService([]byte(cfg.GetSigningKey()), cfg.GetIssuer(), append(base, opts...)...)
}

// TTL returns the configured token lifetime
func (ts *TokenService) TTL() time.Duration {
	return ts.ttl
}

// Revocations exposes the deny list
func (ts *TokenService) Revocations() *RevocationList {
	return ts.revocations
}

// Issue signs the identity id and role into a token
func (ts *TokenService) Issue(identity Identity) (string, *SessionClaim, error) {
	if identity == nil || identity.ID() == "" {
		return "", nil, errors.New("identity is required", errors.CategoryBadInput)
	}

	now := ts.clock.Now()
	claims := &JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    ts.issuer,
			Subject:   identity.ID(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ts.ttl)),
		},
		UID:      identity.ID(),
		UserRole: identity.Role(),
	}

	signed, err := ts.SignClaims(claims)
	if err != nil {
		return "", nil, err
	}
	return signed, sessionFromJWT(claims), nil
}

// SignClaims signs arbitrary JWT claims using the configured signing key.
func (ts *TokenService) SignClaims(claims *JWTClaims) (string, error) {
	if claims == nil {
		return "", errors.New("claims must not be nil", errors.CategoryInternal)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signedString, err := token.SignedString(ts.signingKey)
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to sign JWT")
	}

	return signedString, nil
}

// Resolve verifies signature, expiry and issuer and returns the claim.
// Revoked tokens are rejected with ErrTokenRevoked.
func (ts *TokenService) Resolve(tokenString string) (*SessionClaim, error) {
	claims, err := ts.parse(tokenString)
	if err != nil {
		return nil, err
	}

	session := sessionFromJWT(claims)
	if session.ID == "" {
		return nil, ErrTokenMalformed
	}
	if ts.revocations.IsRevoked(session) {
		return nil, ErrTokenRevoked
	}
	return session, nil
}

// Revoke denies the given token for the rest of its lifetime.
// Tokens that are already expired are ignored.
func (ts *TokenService) Revoke(tokenString string) error {
	claims, err := ts.parse(tokenString)
	if err != nil {
		if IsTokenExpiredError(err) {
			return nil
		}
		return err
	}
	ts.revocations.Revoke(claims.ID, claims.Expires())
	ts.logger.Debug("session token revoked", "jti", claims.ID, "uid", claims.UserID())
	return nil
}

// RevokeUser denies every token issued to userID up to now
func (ts *TokenService) RevokeUser(userID string) {
	ts.revocations.RevokeUser(userID, ts.clock.Now())
}

func (ts *TokenService) parse(tokenString string) (*JWTClaims, error) {
	if tokenString == "" {
		return nil, ErrUnauthenticated
	}

	parserOptions := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(ts.clock.Now),
		jwt.WithExpirationRequired(),
	}
	if ts.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(ts.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			ts.logger.Error("TokenService validate encountered unexpected signing method", "alg", t.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return ts.signingKey, nil
	}, parserOptions...)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, errors.Wrap(err, ErrTokenMalformed.Category, ErrTokenMalformed.Message).WithTextCode(ErrTokenMalformed.TextCode)
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid {
		ts.logger.Error("TokenService validate could not decode or validate claims")
		return nil, ErrTokenMalformed
	}
	return claims, nil
}

var _ SessionResolver = (*TokenService)(nil)
