package auth_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	auth "github.com/folio-cms/go-admin-auth"
	"github.com/folio-cms/go-admin-auth/repository"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type serverFixture struct {
	app     *fiber.App
	clock   *fakeClock
	store   *repository.MemoryUsers
	audit   *repository.MemoryAuditLogs
	limiter *auth.AttemptLimiter
	user    *auth.User
}

func newServerFixture(t *testing.T) *serverFixture {
	t.Helper()
	f := &serverFixture{
		clock: newFakeClock(),
		store: repository.NewMemoryUsers(),
		audit: repository.NewMemoryAuditLogs(),
	}
	f.user = seedUser(t, f.store, "admin@example.com", auth.RoleAdmin)
	f.limiter = auth.NewAttemptLimiter(3, time.Minute, time.Minute, f.clock.Clock())

	opts := auth.DefaultOptions()
	opts.SigningKey = testSigningKey
	opts.Issuer = testIssuer

	tokens := auth.NewTokenServiceFromConfig(opts,
		auth.WithTokenClock(f.clock.Clock()),
		auth.WithTokenLogger(auth.NopLogger()),
	)
	authenticator := auth.NewAuthenticator(f.store,
		auth.WithHasher(testHasher),
		auth.WithClock(f.clock.Clock()),
		auth.WithTokenService(tokens),
		auth.WithLogger(auth.NopLogger()),
	)
	auditLogger := auth.NewAuditLogger(f.audit,
		auth.WithAuditClock(f.clock.Clock()),
		auth.WithAuditLogger(auth.NopLogger()),
	)

	gateCfg := auth.GateConfigFromConfig(opts, tokens)
	gateCfg.Logger = auth.NopLogger()

	app := fiber.New(opts.FiberConfig(fiber.Config{}))
	app.Use(auth.Gate(gateCfg))
	auth.NewLoginController(authenticator, tokens, opts,
		auth.WithControllerLogger(auth.NopLogger()),
		auth.WithAttemptLimiter(f.limiter),
	).Register(app)
	app.Get("/api/admin/activity", auth.ActivityFeedHandler(auditLogger, auth.NopLogger()))
	app.Get("/api/admin/activity/:resource/:id?", auth.AuditTrailHandler(auditLogger, auth.NopLogger()))
	app.Post("/api/admin/sessions/:userId/revoke",
		auth.RequireRole(auth.RoleAdmin),
		auth.RevokeSessionsHandler(tokens, auth.NopLogger()),
	)

	f.app = app
	return f
}

func (f *serverFixture) login(t *testing.T, email, password string) (*http.Response, map[string]any) {
	t.Helper()
	return f.loginFrom(t, email, password, "192.0.2.10")
}

func (f *serverFixture) loginFrom(t *testing.T, email, password, forwardedFor string) (*http.Response, map[string]any) {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"email": email, "password": password})
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(string(body)))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	req.Header.Set(fiber.HeaderXForwardedFor, forwardedFor)
	return f.do(t, req)
}

func (f *serverFixture) do(t *testing.T, req *http.Request) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	_ = resp.Body.Close()

	out := map[string]any{}
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp, out
}

func sessionCookie(resp *http.Response) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == auth.DefaultCookieName {
			return c
		}
	}
	return nil
}

func TestLoginPostSuccess(t *testing.T) {
	f := newServerFixture(t)

	resp, body := f.login(t, "admin@example.com", testPassword)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["success"])

	user := body["user"].(map[string]any)
	assert.Equal(t, f.user.ID.String(), user["id"])
	assert.Equal(t, "admin@example.com", user["email"])
	assert.Equal(t, "admin", user["role"])
	assert.NotContains(t, user, "password_hash")

	cookie := sessionCookie(resp)
	require.NotNil(t, cookie)
	assert.NotEmpty(t, cookie.Value)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)
	assert.Equal(t, "/", cookie.Path)
	assert.WithinDuration(t, f.clock.Now().Add(7*24*time.Hour), cookie.Expires, time.Second)
}

func TestLoginPostInvalidCredentialsBody(t *testing.T) {
	f := newServerFixture(t)

	wrongResp, wrongBody := f.login(t, "admin@example.com", "wrong-password")
	unknownResp, unknownBody := f.login(t, "ghost@example.com", testPassword)

	assert.Equal(t, http.StatusUnauthorized, wrongResp.StatusCode)
	assert.Equal(t, http.StatusUnauthorized, unknownResp.StatusCode)
	assert.Equal(t, map[string]any{"success": false, "error": "Invalid email or password"}, wrongBody)
	assert.Equal(t, wrongBody, unknownBody)
	assert.Nil(t, sessionCookie(wrongResp))
}

func TestLoginPostLocked(t *testing.T) {
	f := newServerFixture(t)

	for i := 0; i < auth.DefaultLockoutThreshold; i++ {
		_, err := f.store.RecordFailure(context.Background(), f.user.ID, auth.DefaultLockoutPolicy(), f.clock.Now())
		require.NoError(t, err)
	}

	resp, body := f.login(t, "admin@example.com", testPassword)
	assert.Equal(t, http.StatusLocked, resp.StatusCode)
	assert.Equal(t, "Account locked. Try again in 15 minutes", body["error"])
}

func TestLoginPostMalformedBody(t *testing.T) {
	f := newServerFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader("{not json"))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp, body := f.do(t, req)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, false, body["success"])

	resp, body = f.login(t, "", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Please enter email and password", body["error"])
}

func TestLoginPostThrottlesClient(t *testing.T) {
	f := newServerFixture(t)

	for i := 0; i < 3; i++ {
		resp, _ := f.login(t, "ghost@example.com", "whatever")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	}

	resp, body := f.login(t, "admin@example.com", testPassword)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "60", resp.Header.Get(fiber.HeaderRetryAfter))
	assert.Equal(t, false, body["success"])

	f.clock.Advance(time.Minute + time.Second)
	resp, _ = f.login(t, "admin@example.com", testPassword)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestLoginPostThrottleIgnoresForwardedFor(t *testing.T) {
	f := newServerFixture(t)

	for i := 0; i < 3; i++ {
		resp, _ := f.loginFrom(t, "ghost@example.com", "whatever", fmt.Sprintf("198.51.100.%d", i+1))
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	}

	resp, _ := f.loginFrom(t, "admin@example.com", testPassword, "203.0.113.99")
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestLogoutRevokesSession(t *testing.T) {
	f := newServerFixture(t)

	resp, _ := f.login(t, "admin@example.com", testPassword)
	cookie := sessionCookie(resp)
	require.NotNil(t, cookie)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/session", nil)
	req.AddCookie(cookie)
	_, body := f.do(t, req)
	session := body["session"].(map[string]any)
	assert.Equal(t, f.user.ID.String(), session["id"])
	assert.Equal(t, "admin", session["role"])

	req = httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
	req.AddCookie(cookie)
	resp, body = f.do(t, req)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["success"])
	cleared := sessionCookie(resp)
	require.NotNil(t, cleared)
	assert.Empty(t, cleared.Value)

	req = httptest.NewRequest(http.MethodGet, "/api/auth/session", nil)
	req.AddCookie(cookie)
	_, body = f.do(t, req)
	assert.Nil(t, body["session"])

	req = httptest.NewRequest(http.MethodGet, "/api/admin/activity", nil)
	req.AddCookie(cookie)
	resp, _ = f.do(t, req)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestActivityFeedEndpoint(t *testing.T) {
	f := newServerFixture(t)
	ctx := context.Background()

	require.NoError(t, f.audit.Append(ctx, &auth.AuditRecord{
		ID:        uuid.New(),
		UserID:    f.user.ID,
		Action:    auth.AuditUpdate,
		Resource:  "hero",
		CreatedAt: f.clock.Now().Add(-2 * time.Hour),
	}))

	resp, _ := f.login(t, "admin@example.com", testPassword)
	req := httptest.NewRequest(http.MethodGet, "/api/admin/activity", nil)
	req.AddCookie(sessionCookie(resp))

	resp, body := f.do(t, req)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	items := body["activity"].([]any)
	require.Len(t, items, 1)
	assert.Equal(t, map[string]any{
		"action":   "Hero section updated",
		"time":     "2 hours ago",
		"resource": "hero",
	}, items[0])
}

func (f *serverFixture) authed(t *testing.T, method, path string, cookie *http.Cookie) (*http.Response, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	req.AddCookie(cookie)
	return f.do(t, req)
}

func TestRevokeSessionsEndpoint(t *testing.T) {
	f := newServerFixture(t)
	editor := seedUser(t, f.store, "editor@example.com", auth.RoleEditor)

	resp, _ := f.login(t, "admin@example.com", testPassword)
	adminCookie := sessionCookie(resp)
	require.NotNil(t, adminCookie)
	resp, _ = f.login(t, "editor@example.com", testPassword)
	editorCookie := sessionCookie(resp)
	require.NotNil(t, editorCookie)

	revokePath := "/api/admin/sessions/" + editor.ID.String() + "/revoke"

	resp, _ = f.authed(t, http.MethodPost, "/api/admin/sessions/"+f.user.ID.String()+"/revoke", editorCookie)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = f.authed(t, http.MethodPost, "/api/admin/sessions/not-a-uuid/revoke", adminCookie)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body := f.authed(t, http.MethodPost, revokePath, adminCookie)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, editor.ID.String(), body["user_id"])

	resp, _ = f.authed(t, http.MethodGet, "/api/admin/activity", editorCookie)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = f.authed(t, http.MethodGet, "/api/admin/activity", adminCookie)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	f.clock.Advance(2 * time.Second)
	resp, _ = f.login(t, "editor@example.com", testPassword)
	fresh := sessionCookie(resp)
	require.NotNil(t, fresh)
	resp, _ = f.authed(t, http.MethodGet, "/api/admin/activity", fresh)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAuditTrailEndpoint(t *testing.T) {
	f := newServerFixture(t)
	ctx := context.Background()

	appendRecord := func(resource, id string, age time.Duration) {
		require.NoError(t, f.audit.Append(ctx, &auth.AuditRecord{
			ID:         uuid.New(),
			UserID:     f.user.ID,
			Action:     auth.AuditUpdate,
			Resource:   resource,
			ResourceID: id,
			CreatedAt:  f.clock.Now().Add(-age),
		}))
	}
	appendRecord("project", "p-1", 3*time.Hour)
	appendRecord("project", "p-2", 2*time.Hour)
	appendRecord("project", "p-1", time.Hour)
	appendRecord("skill", "s-1", time.Minute)

	resp, _ := f.login(t, "admin@example.com", testPassword)
	cookie := sessionCookie(resp)

	resp, body := f.authed(t, http.MethodGet, "/api/admin/activity/project/p-1", cookie)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	trail := body["trail"].([]any)
	require.Len(t, trail, 2)
	first := trail[0].(map[string]any)
	second := trail[1].(map[string]any)
	assert.Equal(t, "p-1", first["resource_id"])
	assert.Equal(t, "update", first["action"])
	assert.True(t, first["created_at"].(string) > second["created_at"].(string))

	_, body = f.authed(t, http.MethodGet, "/api/admin/activity/project", cookie)
	assert.Len(t, body["trail"].([]any), 3)

	_, body = f.authed(t, http.MethodGet, "/api/admin/activity/footer/nothing", cookie)
	assert.Empty(t, body["trail"].([]any))

	req := httptest.NewRequest(http.MethodGet, "/api/admin/activity/project/p-1", nil)
	resp, _ = f.do(t, req)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
