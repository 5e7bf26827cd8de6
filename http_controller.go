package auth

import (
	"strings"

	"github.com/folio-cms/go-admin-auth/middleware/jwtware"
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/google/uuid"
)

// AuthControllerRoutes are the paths served by LoginController
type AuthControllerRoutes struct {
	Login   string
	Logout  string
	Session string
}

// DefaultAuthRoutes mounts the controller under /api/auth
func DefaultAuthRoutes() AuthControllerRoutes {
	return AuthControllerRoutes{
		Login:   "/api/auth/login",
		Logout:  "/api/auth/logout",
		Session: "/api/auth/session",
	}
}

// LoginController serves the credential exchange endpoints
type LoginController struct {
	Debug   bool
	Routes  AuthControllerRoutes
	auth    *Authenticator
	tokens  *TokenService
	limiter *AttemptLimiter
	sink    ActivitySink
	cfg     Config
	logger  Logger
}

// LoginControllerOption configures a LoginController
type LoginControllerOption func(*LoginController)

// WithControllerLogger sets the logger
func WithControllerLogger(logger Logger) LoginControllerOption {
	return func(lc *LoginController) {
		if logger != nil {
			lc.logger = logger
		}
	}
}

// WithAttemptLimiter throttles failed logins per client IP
func WithAttemptLimiter(limiter *AttemptLimiter) LoginControllerOption {
	return func(lc *LoginController) {
		lc.limiter = limiter
	}
}

// WithControllerRoutes overrides the mounted paths
func WithControllerRoutes(routes AuthControllerRoutes) LoginControllerOption {
	return func(lc *LoginController) {
		lc.Routes = routes
	}
}

// WithControllerActivitySink receives logout events
func WithControllerActivitySink(sink ActivitySink) LoginControllerOption {
	return func(lc *LoginController) {
		lc.sink = normalizeActivitySink(sink)
	}
}

// NewLoginController creates the controller
func NewLoginController(auth *Authenticator, tokens *TokenService, cfg Config, opts ...LoginControllerOption) *LoginController {
	lc := &LoginController{
		Routes: DefaultAuthRoutes(),
		auth:   auth,
		tokens: tokens,
		sink:   noopActivitySink{},
		cfg:    cfg,
		logger: defaultLogger("login_controller"),
	}
	for _, opt := range opts {
		opt(lc)
	}
	return lc
}

// Register mounts the routes on r
func (lc *LoginController) Register(r fiber.Router) {
	r.Post(lc.Routes.Login, lc.LoginPost).Name("auth.login.post")
	r.Post(lc.Routes.Logout, lc.LogoutPost).Name("auth.logout.post")
	r.Get(lc.Routes.Session, lc.SessionGet).Name("auth.session.get")
}

// LoginRequest payload
type LoginRequest struct {
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password"`
}

// Validate will run validation rules
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Email,
			validation.Required,
			validation.Length(1, 254),
		),
		validation.Field(
			&r.Password,
			validation.Required,
		),
	)
}

// LoginResponse is the body of a successful login
type LoginResponse struct {
	Success bool           `json:"success"`
	User    *IdentityClaim `json:"user"`
}

// LoginPost exchanges credentials for a session cookie
func (lc *LoginController) LoginPost(c *fiber.Ctx) error {
	payload := new(LoginRequest)
	if err := c.BodyParser(payload); err != nil {
		return WriteError(c, lc.logger, goerrors.Wrap(err, goerrors.CategoryBadInput, "Invalid request body").
			WithCode(fiber.StatusBadRequest))
	}

	payload.Email = strings.TrimSpace(payload.Email)
	if err := payload.Validate(); err != nil {
		return WriteError(c, lc.logger, ErrMissingCredentials)
	}

	if lc.Debug {
		lc.logger.Debug("Login attempt", "email", payload.Email, "origin", print.MaybePrettyJSON(OriginFromRequest(c)))
	}

	key := lc.limiterKey(c)
	if lc.limiter != nil {
		if wait := lc.limiter.Check(key); wait > 0 {
			lc.logger.Warn("Login throttled", "client", key)
			return WriteError(c, lc.logger, TooManyAttemptsError(retryAfterSeconds(wait)))
		}
	}

	result, err := lc.auth.Login(c.UserContext(), payload.Email, payload.Password)
	if err != nil {
		if lc.limiter != nil && countsAsFailure(err) {
			lc.limiter.Fail(key)
		}
		return WriteError(c, lc.logger, err)
	}

	if lc.limiter != nil {
		lc.limiter.Reset(key)
	}

	setSessionCookie(c, lc.cfg.GetCookieName(), result.Token, result.Session.ExpiresAt, lc.cfg.GetCookieSecure())
	return c.JSON(LoginResponse{Success: true, User: result.Identity})
}

// LogoutPost revokes the presented token and clears the cookie
func (lc *LoginController) LogoutPost(c *fiber.Ctx) error {
	token, _ := jwtware.ExtractRawToken(c, lc.extractors())
	if token != "" {
		if session, err := lc.tokens.Resolve(token); err == nil {
			emitActivity(c.UserContext(), lc.sink, lc.logger, ActivityEvent{
				EventType: ActivityEventLogout,
				Actor:     ActorRef{ID: session.ID, Type: "user"},
				UserID:    session.ID,
			})
		}
		if err := lc.tokens.Revoke(token); err != nil {
			lc.logger.Debug("Logout with unusable token", "text_code", TextCode(err))
		}
	}

	clearSessionCookie(c, lc.cfg.GetCookieName(), lc.cfg.GetCookieSecure())
	return c.JSON(fiber.Map{"success": true})
}

// SessionGet returns the current claim or {"session": null}
func (lc *LoginController) SessionGet(c *fiber.Ctx) error {
	session, ok := CurrentSession(c)
	if !ok {
		if token, err := jwtware.ExtractRawToken(c, lc.extractors()); err == nil {
			if resolved, err := lc.tokens.Resolve(token); err == nil {
				session, ok = resolved, true
			}
		}
	}
	if !ok {
		return c.JSON(fiber.Map{"session": nil})
	}
	return c.JSON(fiber.Map{"session": session})
}

func (lc *LoginController) extractors() []jwtware.JWTExtractor {
	return jwtware.GetExtractors("cookie:" + lc.cfg.GetCookieName() + ",header:" + fiber.HeaderAuthorization)
}

// limiterKey is the peer address, or the forwarded client when the app
// trusts the peer as a proxy. Raw forwarding headers are never used here.
func (lc *LoginController) limiterKey(c *fiber.Ctx) string {
	if ip := c.IP(); ip != "" {
		return ip
	}
	return UnknownOrigin
}

func countsAsFailure(err error) bool {
	switch TextCode(err) {
	case TextCodeInvalidCreds, TextCodeAccountLocked:
		return true
	default:
		return false
	}
}

// ActivityFeedHandler serves {"activity": [...]} with the latest audit records
func ActivityFeedHandler(audit *AuditLogger, logger Logger) fiber.Handler {
	if logger == nil {
		logger = defaultLogger("activity_feed")
	}
	return func(c *fiber.Ctx) error {
		items, err := audit.Feed(c.UserContext())
		if err != nil {
			return WriteError(c, logger, err)
		}
		return c.JSON(fiber.Map{"activity": items})
	}
}

// AuditTrailHandler serves {"trail": [...]} for /:resource/:id? routes
func AuditTrailHandler(audit *AuditLogger, logger Logger) fiber.Handler {
	if logger == nil {
		logger = defaultLogger("audit_trail")
	}
	return func(c *fiber.Ctx) error {
		records, err := audit.Trail(c.UserContext(), c.Params("resource"), c.Params("id"))
		if err != nil {
			return WriteError(c, logger, err)
		}
		if records == nil {
			records = []*AuditRecord{}
		}
		return c.JSON(fiber.Map{"trail": records})
	}
}

// RevokeSessionsHandler denies every outstanding token of the :userId
// route parameter. Mount it behind RequireRole(RoleAdmin).
func RevokeSessionsHandler(tokens *TokenService, logger Logger) fiber.Handler {
	if logger == nil {
		logger = defaultLogger("sessions")
	}
	return func(c *fiber.Ctx) error {
		userID, err := uuid.Parse(c.Params("userId"))
		if err != nil {
			return WriteError(c, logger, goerrors.Wrap(err, goerrors.CategoryBadInput, "Invalid user id").
				WithCode(fiber.StatusBadRequest))
		}

		tokens.RevokeUser(userID.String())

		actor := UnknownOrigin
		if session, ok := CurrentSession(c); ok {
			actor = session.ID
		}
		logger.Info("sessions revoked", "user_id", userID, "actor", actor)
		return c.JSON(fiber.Map{"success": true, "user_id": userID})
	}
}
