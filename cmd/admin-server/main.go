package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	auth "github.com/folio-cms/go-admin-auth"
	"github.com/folio-cms/go-admin-auth/activitymap"
	"github.com/folio-cms/go-admin-auth/content"
	"github.com/folio-cms/go-admin-auth/migrations"
	"github.com/folio-cms/go-admin-auth/repository"
	"github.com/gofiber/fiber/v2"
)

type App struct {
	config  *auth.Options
	logger  auth.Logger
	repo    *repository.Manager
	tokens  *auth.TokenService
	auth    *auth.Authenticator
	audit   *auth.AuditLogger
	limiter *auth.AttemptLimiter
	srv     *fiber.App
}

func (a *App) GetLogger(name string) auth.Logger {
	return auth.Named(a.logger, name)
}

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	cfg, err := auth.LoadConfig(*configPath)
	if err != nil {
		auth.NewLogger(os.Stderr, "error").Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	app := &App{
		config: cfg,
		logger: auth.NewLogger(os.Stdout, cfg.LogLevel),
	}

	ctx := context.Background()

	if err := WithPersistence(ctx, app); err != nil {
		app.logger.Error("persistence setup failed", "error", err)
		os.Exit(1)
	}
	defer app.repo.Close()

	WithAuth(app)
	WithHTTPServer(app)

	go func() {
		app.logger.Info("admin server listening", "addr", cfg.HTTPAddr)
		if err := app.srv.Listen(cfg.HTTPAddr); err != nil {
			app.logger.Error("server stopped", "error", err)
		}
	}()

	go pruneLoop(ctx, app)

	sig := WaitExitSignal()
	app.logger.Info("shutting down", "signal", sig.String())
	if err := app.srv.ShutdownWithTimeout(10 * time.Second); err != nil {
		app.logger.Error("shutdown failed", "error", err)
	}
}

func WithPersistence(ctx context.Context, app *App) error {
	mgr, err := repository.Open(app.config.DBDriver, app.config.DBDSN)
	if err != nil {
		return err
	}
	if err := mgr.Ping(ctx); err != nil {
		_ = mgr.Close()
		return err
	}
	if err := mgr.Migrate(ctx, migrations.WithLogger(app.GetLogger("migrations"))); err != nil {
		_ = mgr.Close()
		return err
	}
	app.repo = mgr
	return nil
}

func WithAuth(app *App) {
	sink := activitymap.NewSink(
		activitymap.LogForwarder(app.GetLogger("activity")),
		activitymap.WithMaskedIdentifier(),
	)

	app.tokens = auth.NewTokenServiceFromConfig(app.config,
		auth.WithTokenLogger(app.GetLogger("tokens")),
	)

	app.auth = auth.NewAuthenticator(app.repo.Users(),
		auth.WithLogger(app.GetLogger("authenticator")),
		auth.WithLockoutPolicy(app.config.LockoutPolicy()),
		auth.WithTokenService(app.tokens),
		auth.WithActivitySink(sink),
	)

	app.audit = auth.NewAuditLogger(app.repo.AuditLogs(),
		auth.WithTxRunner(app.repo),
		auth.WithAuditLogger(app.GetLogger("audit")),
	)

	app.limiter = auth.NewAttemptLimiter(
		auth.DefaultLimiterMaxAttempts,
		auth.DefaultLimiterWindow,
		auth.DefaultLimiterBlock,
		nil,
	)
}

func WithHTTPServer(app *App) {
	srv := fiber.New(app.config.FiberConfig(fiber.Config{
		AppName:               "folio-admin",
		DisableStartupMessage: true,
		ReadTimeout:           15 * time.Second,
		WriteTimeout:          15 * time.Second,
	}))

	gateCfg := auth.GateConfigFromConfig(app.config, app.tokens)
	gateCfg.Logger = app.GetLogger("gate")
	srv.Use(auth.Gate(gateCfg))

	auth.NewLoginController(app.auth, app.tokens, app.config,
		auth.WithControllerLogger(app.GetLogger("auth:ctrl")),
		auth.WithAttemptLimiter(app.limiter),
	).Register(srv)

	api := srv.Group(app.config.APIPrefix)
	api.Get("/activity", auth.ActivityFeedHandler(app.audit, app.GetLogger("activity_feed"))).Name("admin.activity")
	api.Get("/activity/:resource/:id?", auth.AuditTrailHandler(app.audit, app.GetLogger("audit_trail"))).Name("admin.activity.trail")
	api.Post("/sessions/:userId/revoke",
		auth.RequireRole(auth.RoleAdmin),
		auth.RevokeSessionsHandler(app.tokens, app.GetLogger("sessions")),
	).Name("admin.sessions.revoke")

	content.NewController(
		content.NewStore(app.repo.DB()),
		app.audit,
		content.WithLogger(app.GetLogger("content")),
	).Register(api)

	srv.Get(app.config.LoginPath, func(c *fiber.Ctx) error {
		return c.Type("html").SendString(loginPage)
	}).Name("admin.login")

	srv.Get(app.config.UIPrefix, func(c *fiber.Ctx) error {
		session, _ := auth.CurrentSession(c)
		return c.JSON(fiber.Map{"dashboard": true, "session": session})
	}).Name("admin.dashboard")

	app.srv = srv
}

func pruneLoop(ctx context.Context, app *App) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tokens := app.tokens.Revocations().Prune()
			attempts := app.limiter.Prune()
			app.logger.Debug("pruned in-memory state", "revocations", tokens, "attempts", attempts)
		}
	}
}

func WaitExitSignal() os.Signal {
	ch := make(chan os.Signal, 3)
	signal.Notify(ch,
		syscall.SIGINT,
		syscall.SIGQUIT,
		syscall.SIGTERM,
	)
	return <-ch
}

const loginPage = `<!doctype html>
<html>
<head><title>Admin login</title></head>
<body>
<form id="login">
  <input name="email" type="email" placeholder="Email" required>
  <input name="password" type="password" placeholder="Password" required>
  <button type="submit">Sign in</button>
  <p id="error"></p>
</form>
<script>
document.getElementById("login").addEventListener("submit", async (e) => {
  e.preventDefault();
  const form = new FormData(e.target);
  const res = await fetch("/api/auth/login", {
    method: "POST",
    headers: {"Content-Type": "application/json"},
    body: JSON.stringify({email: form.get("email"), password: form.get("password")}),
  });
  const body = await res.json();
  if (body.success) {
    const next = new URLSearchParams(location.search).get("callbackUrl");
    location.href = next && next.startsWith("/") ? next : "/admin";
    return;
  }
  document.getElementById("error").textContent = body.error;
});
</script>
</body>
</html>
`
