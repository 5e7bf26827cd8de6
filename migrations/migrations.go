// Package migrations embeds the goose schema for the admin tables and
// applies it for the sqlite and postgres dialects.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"strings"
	"sync"

	"github.com/pressly/goose/v3"
)

//go:embed sqlite/*.sql postgres/*.sql
var Migrations embed.FS

const (
	DialectSQLite   = "sqlite"
	DialectPostgres = "postgres"
)

// goose keeps its base FS and dialect in package globals
var gooseMu sync.Mutex

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// Logger receives goose progress output
type Logger interface {
	Info(msg string, args ...any)
	Error(msg string, args ...any)
}

// Option configures Up
type Option func(*upConfig)

type upConfig struct {
	logger Logger
}

// WithLogger routes goose output to logger. Without it goose is silent.
func WithLogger(logger Logger) Option {
	return func(c *upConfig) {
		c.logger = logger
	}
}

// gooseLogger adapts Logger to goose.Logger. Fatalf only logs, it never
// exits the process.
type gooseLogger struct {
	logger Logger
}

func (g gooseLogger) Printf(format string, v ...any) {
	g.logger.Info(strings.TrimSpace(fmt.Sprintf(format, v...)), "component", "goose")
}

func (g gooseLogger) Fatalf(format string, v ...any) {
	g.logger.Error(strings.TrimSpace(fmt.Sprintf(format, v...)), "component", "goose")
}

// Up applies every pending migration for the given dialect
func Up(ctx context.Context, db *sql.DB, dialect string, opts ...Option) error {
	cfg := &upConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	dir, gooseDialect, err := resolve(dialect)
	if err != nil {
		return err
	}

	sub, err := fs.Sub(Migrations, dir)
	if err != nil {
		return err
	}

	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(sub)
	defer goose.SetBaseFS(nil)

	if cfg.logger != nil {
		goose.SetLogger(gooseLogger{logger: cfg.logger})
	} else {
		goose.SetLogger(goose.NopLogger())
	}
	defer goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect(gooseDialect); err != nil {
		return err
	}
	return gooseUpContext(ctx, db, ".", goose.WithAllowMissing())
}

// Files lists the embedded migrations for a dialect, in order
func Files(dialect string) ([]string, error) {
	dir, _, err := resolve(dialect)
	if err != nil {
		return nil, err
	}
	return fs.Glob(Migrations, dir+"/*.sql")
}

func resolve(dialect string) (dir string, gooseDialect string, err error) {
	switch dialect {
	case DialectSQLite, "sqlite3":
		return "sqlite", "sqlite3", nil
	case DialectPostgres, "pg", "pgx":
		return "postgres", "postgres", nil
	default:
		return "", "", fmt.Errorf("migrations: unsupported dialect %q", dialect)
	}
}
