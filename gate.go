package auth

import (
	"net/url"
	"strings"

	"github.com/folio-cms/go-admin-auth/middleware/jwtware"
	"github.com/gofiber/fiber/v2"
)

// GateConfig configures the authorization gate
type GateConfig struct {
	Resolver SessionResolver
	// TokenLookup lists the token sources, see jwtware.GetExtractors
	TokenLookup string
	// UIPrefix is the dashboard prefix; unauthenticated requests are redirected
	UIPrefix string
	// LoginPath is excluded from UIPrefix protection
	LoginPath string
	// APIPrefix is the admin API prefix; unauthenticated requests get JSON errors
	APIPrefix    string
	AllowedRoles RoleSet
	Logger       Logger
}

// GateConfigFromConfig builds a gate configuration from Config getters
func GateConfigFromConfig(cfg Config, resolver SessionResolver) GateConfig {
	return GateConfig{
		Resolver:     resolver,
		TokenLookup:  "cookie:" + cfg.GetCookieName() + ",header:" + fiber.HeaderAuthorization,
		UIPrefix:     cfg.GetUIPrefix(),
		LoginPath:    cfg.GetLoginPath(),
		APIPrefix:    cfg.GetAPIPrefix(),
		AllowedRoles: RoleSetFromStrings(cfg.GetAllowedRoles()),
	}
}

func (g GateConfig) withDefaults() GateConfig {
	if g.TokenLookup == "" {
		g.TokenLookup = jwtware.DefaultTokenLookup
	}
	if g.UIPrefix == "" {
		g.UIPrefix = DefaultUIPrefix
	}
	if g.LoginPath == "" {
		g.LoginPath = DefaultLoginPath
	}
	if g.APIPrefix == "" {
		g.APIPrefix = DefaultAPIPrefix
	}
	if len(g.AllowedRoles) == 0 {
		g.AllowedRoles = DefaultAllowedRoles()
	}
	if g.Logger == nil {
		g.Logger = defaultLogger("gate")
	}
	return g
}

type surface int

const (
	surfacePublic surface = iota
	surfaceUI
	surfaceAPI
)

func (g GateConfig) classify(path string) surface {
	switch {
	case HasPathPrefix(path, g.APIPrefix):
		return surfaceAPI
	case HasPathPrefix(path, g.LoginPath):
		return surfacePublic
	case HasPathPrefix(path, g.UIPrefix):
		return surfaceUI
	default:
		return surfacePublic
	}
}

// HasPathPrefix reports whether path equals prefix or continues it with a
// new segment, so "/admin" matches "/admin/x" but not "/administrator".
// Case is folded because fiber routes case-insensitively unless the app
// sets CaseSensitive.
func HasPathPrefix(path, prefix string) bool {
	prefix = strings.TrimSuffix(prefix, "/")
	if prefix == "" {
		return true
	}
	if len(path) < len(prefix) || !strings.EqualFold(path[:len(prefix)], prefix) {
		return false
	}
	return len(path) == len(prefix) || path[len(prefix)] == '/'
}

// Gate resolves the session of every request and enforces authentication
// and the role allow-list on the protected prefixes before any handler
// runs. A token that fails verification leaves the request anonymous.
//
// The resolved claim is available through CurrentSession and
// SessionFromContext. The request origin is attached to the user context.
func Gate(cfg GateConfig) fiber.Handler {
	cfg = cfg.withDefaults()
	extractors := jwtware.GetExtractors(cfg.TokenLookup)

	return func(c *fiber.Ctx) error {
		ctx := WithOriginContext(c.UserContext(), OriginFromRequest(c))

		session := cfg.resolve(c, extractors)
		if session != nil {
			c.Locals(LocalsSessionKey, session)
			ctx = WithSessionContext(ctx, session)
		}
		c.SetUserContext(ctx)

		path := c.Path()
		kind := cfg.classify(path)
		if kind == surfacePublic {
			return c.Next()
		}

		if session == nil {
			cfg.Logger.Debug("Gate rejected anonymous request", "path", path)
			if kind == surfaceUI {
				return c.Redirect(loginRedirect(cfg.LoginPath, path), fiber.StatusFound)
			}
			return WriteError(c, cfg.Logger, ErrUnauthenticated)
		}

		if err := CheckRole(session, cfg.AllowedRoles); err != nil {
			cfg.Logger.Info("Gate rejected role", "path", path, "role", session.Role, "user_id", session.ID)
			if kind == surfaceUI {
				return c.Redirect(cfg.LoginPath, fiber.StatusFound)
			}
			return WriteError(c, cfg.Logger, err)
		}

		return c.Next()
	}
}

func (g GateConfig) resolve(c *fiber.Ctx, extractors []jwtware.JWTExtractor) *SessionClaim {
	if g.Resolver == nil {
		return nil
	}
	raw, err := jwtware.ExtractRawToken(c, extractors)
	if err != nil || raw == "" {
		return nil
	}
	session, err := g.Resolver.Resolve(raw)
	if err != nil {
		g.Logger.Debug("Gate could not resolve session", "path", c.Path(), "text_code", TextCode(err))
		return nil
	}
	return session
}

func loginRedirect(loginPath, callback string) string {
	q := url.Values{}
	q.Set("callbackUrl", callback)
	return loginPath + "?" + q.Encode()
}

// CheckRole returns UnauthorizedRoleError when the session role is not allowed
func CheckRole(session *SessionClaim, allowed RoleSet) error {
	if session == nil {
		return ErrUnauthenticated
	}
	if !allowed.Allows(session.Role) {
		return UnauthorizedRoleError(session.Role)
	}
	return nil
}

// RequireRole is a route guard narrowing the allowed roles for a route
// that already sits behind the gate. It always answers with JSON errors.
func RequireRole(roles ...Role) fiber.Handler {
	allowed := NewRoleSet(roles...)
	logger := defaultLogger("gate")

	return func(c *fiber.Ctx) error {
		session, ok := CurrentSession(c)
		if !ok {
			return WriteError(c, logger, ErrUnauthenticated)
		}
		if err := CheckRole(session, allowed); err != nil {
			return WriteError(c, logger, err)
		}
		return c.Next()
	}
}
