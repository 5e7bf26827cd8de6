package auth

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultIssuer     = "folio-admin"
	DefaultCookieName = "admin_session"
	DefaultUIPrefix   = "/admin"
	DefaultLoginPath  = "/admin/login"
	DefaultAPIPrefix  = "/api/admin"
	DefaultHTTPAddr   = ":8080"
	DefaultDBDriver   = "sqlite"
	DefaultDBDSN      = "file:admin.db?cache=shared"

	// DefaultTokenExpiration is expressed in hours
	DefaultTokenExpiration = 7 * 24
)

// Environment variables read by LoadConfig
const (
	EnvSigningKey   = "ADMIN_AUTH_SECRET"
	EnvIssuer       = "ADMIN_AUTH_ISSUER"
	EnvDBDriver     = "ADMIN_DB_DRIVER"
	EnvDBDSN        = "ADMIN_DB_DSN"
	EnvHTTPAddr     = "ADMIN_HTTP_ADDR"
	EnvCookieSecure = "ADMIN_COOKIE_SECURE"
	EnvLogLevel     = "ADMIN_LOG_LEVEL"
	// EnvTrustedProxies is a comma separated list of proxy IPs or CIDRs
	EnvTrustedProxies = "ADMIN_TRUSTED_PROXIES"
)

// Options holds the runtime configuration and implements Config
type Options struct {
	SigningKey      string   `yaml:"signing_key"`
	Issuer          string   `yaml:"issuer"`
	TokenExpiration int      `yaml:"token_expiration"`
	CookieName      string   `yaml:"cookie_name"`
	CookieSecure    bool     `yaml:"cookie_secure"`
	UIPrefix        string   `yaml:"ui_prefix"`
	LoginPath       string   `yaml:"login_path"`
	APIPrefix       string   `yaml:"api_prefix"`
	AllowedRoles    []string `yaml:"allowed_roles"`

	LockoutThreshold int `yaml:"lockout_threshold"`
	LockoutMinutes   int `yaml:"lockout_minutes"`

	HTTPAddr string `yaml:"http_addr"`
	DBDriver string `yaml:"db_driver"`
	DBDSN    string `yaml:"db_dsn"`
	LogLevel string `yaml:"log_level"`

	// TrustedProxies may set the client IP through X-Forwarded-For.
	// Empty means the peer address is always the client IP.
	TrustedProxies []string `yaml:"trusted_proxies"`
}

// DefaultOptions returns the built-in defaults. SigningKey is left empty.
func DefaultOptions() Options {
	return Options{
		Issuer:           DefaultIssuer,
		TokenExpiration:  DefaultTokenExpiration,
		CookieName:       DefaultCookieName,
		CookieSecure:     true,
		UIPrefix:         DefaultUIPrefix,
		LoginPath:        DefaultLoginPath,
		APIPrefix:        DefaultAPIPrefix,
		AllowedRoles:     []string{string(RoleAdmin), string(RoleEditor)},
		LockoutThreshold: DefaultLockoutThreshold,
		LockoutMinutes:   int(DefaultLockoutDuration.Minutes()),
		HTTPAddr:         DefaultHTTPAddr,
		DBDriver:         DefaultDBDriver,
		DBDSN:            DefaultDBDSN,
		LogLevel:         "info",
	}
}

// LoadConfig reads defaults, then the optional YAML file at path, then
// .env.local and the process environment, and validates the result.
func LoadConfig(path string) (*Options, error) {
	opts := DefaultOptions()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to read config file").
				WithMetadata(map[string]any{"path": path})
		}
		if err := yaml.Unmarshal(raw, &opts); err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "failed to parse config file").
				WithMetadata(map[string]any{"path": path})
		}
	}

	loadEnvFile()
	opts.applyEnv(os.LookupEnv)

	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &opts, nil
}

func loadEnvFile() {
	if err := godotenv.Load(".env.local"); err == nil {
		return
	}

	cwd, err := os.Getwd()
	if err != nil {
		return
	}

	parent := filepath.Dir(cwd)
	if parent == "" || parent == cwd {
		return
	}

	_ = godotenv.Load(filepath.Join(parent, ".env.local"))
}

func (o *Options) applyEnv(lookup func(string) (string, bool)) {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}

	str(EnvSigningKey, &o.SigningKey)
	str(EnvIssuer, &o.Issuer)
	str(EnvDBDriver, &o.DBDriver)
	str(EnvDBDSN, &o.DBDSN)
	str(EnvHTTPAddr, &o.HTTPAddr)
	str(EnvLogLevel, &o.LogLevel)

	if v, ok := lookup(EnvTrustedProxies); ok && strings.TrimSpace(v) != "" {
		o.TrustedProxies = o.TrustedProxies[:0]
		for _, p := range strings.Split(v, ",") {
			if p = strings.TrimSpace(p); p != "" {
				o.TrustedProxies = append(o.TrustedProxies, p)
			}
		}
	}

	if v, ok := lookup(EnvCookieSecure); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			o.CookieSecure = b
		}
	}
}

// Validate will run validation rules
func (o Options) Validate() error {
	err := validation.ValidateStruct(&o,
		validation.Field(&o.SigningKey,
			validation.Required.Error(EnvSigningKey+" is required"),
			validation.Length(16, 0).Error("signing key must be at least 16 characters"),
		),
		validation.Field(&o.TokenExpiration, validation.Min(1)),
		validation.Field(&o.CookieName, validation.Required),
		validation.Field(&o.UIPrefix, validation.Required),
		validation.Field(&o.LoginPath, validation.Required),
		validation.Field(&o.APIPrefix, validation.Required),
		validation.Field(&o.AllowedRoles, validation.Required),
		validation.Field(&o.LockoutThreshold, validation.Min(1)),
		validation.Field(&o.LockoutMinutes, validation.Min(1)),
		validation.Field(&o.DBDriver, validation.Required, validation.In("sqlite", "postgres")),
		validation.Field(&o.DBDSN, validation.Required),
	)
	if err != nil {
		return goerrors.New("invalid configuration: "+err.Error(), goerrors.CategoryValidation)
	}
	return nil
}

// FiberConfig hardens base for the admin surface. Routing is made case and
// slash strict so the gate sees the same path the router matches, and
// forwarded client IPs are honored only from TrustedProxies.
func (o Options) FiberConfig(base fiber.Config) fiber.Config {
	base.CaseSensitive = true
	base.StrictRouting = true
	base.ProxyHeader = ""
	base.EnableTrustedProxyCheck = false
	base.TrustedProxies = nil
	if len(o.TrustedProxies) > 0 {
		base.ProxyHeader = fiber.HeaderXForwardedFor
		base.EnableTrustedProxyCheck = true
		base.EnableIPValidation = true
		base.TrustedProxies = append([]string(nil), o.TrustedProxies...)
	}
	return base
}

// LockoutPolicy returns the configured lockout policy
func (o Options) LockoutPolicy() LockoutPolicy {
	return LockoutPolicy{
		Threshold: o.LockoutThreshold,
		Duration:  time.Duration(o.LockoutMinutes) * time.Minute,
	}.Normalized()
}

func (o Options) GetSigningKey() string     { return o.SigningKey }
func (o Options) GetIssuer() string         { return o.Issuer }
func (o Options) GetTokenExpiration() int   { return o.TokenExpiration }
func (o Options) GetCookieName() string     { return o.CookieName }
func (o Options) GetCookieSecure() bool     { return o.CookieSecure }
func (o Options) GetUIPrefix() string       { return o.UIPrefix }
func (o Options) GetLoginPath() string      { return o.LoginPath }
func (o Options) GetAPIPrefix() string      { return o.APIPrefix }
func (o Options) GetAllowedRoles() []string { return o.AllowedRoles }

var _ Config = Options{}
