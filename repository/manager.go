package repository

import (
	"context"
	"database/sql"
	"fmt"

	auth "github.com/folio-cms/go-admin-auth"
	"github.com/folio-cms/go-admin-auth/migrations"
	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Manager owns the database handle and exposes the repositories
type Manager struct {
	db        *bun.DB
	dialect   string
	users     *Users
	auditLogs *AuditLogs
}

var _ auth.TxRunner = (*Manager)(nil)

// Open connects to sqlite (through sqliteshim) or postgres (through the
// pgx stdlib driver)
func Open(driver, dsn string) (*Manager, error) {
	switch driver {
	case DriverSQLite, "sqlite3":
		sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
		if err != nil {
			return nil, err
		}
		// sqlite serialises writers
		sqldb.SetMaxOpenConns(1)
		return NewManager(bun.NewDB(sqldb, sqlitedialect.New()), migrations.DialectSQLite), nil
	case DriverPostgres, "pgx":
		sqldb, err := sql.Open("pgx", dsn)
		if err != nil {
			return nil, err
		}
		return NewManager(bun.NewDB(sqldb, pgdialect.New()), migrations.DialectPostgres), nil
	default:
		return nil, fmt.Errorf("repository: unsupported driver %q", driver)
	}
}

// OpenMemory opens a private in-memory sqlite database
func OpenMemory() (*Manager, error) {
	return Open(DriverSQLite, "file:"+uuid.NewString()+"?mode=memory&cache=shared")
}

// NewManager wraps an existing bun.DB
func NewManager(db *bun.DB, dialect string) *Manager {
	return &Manager{
		db:        db,
		dialect:   dialect,
		users:     NewUsers(db),
		auditLogs: NewAuditLogs(db),
	}
}

func (m *Manager) Users() *Users { return m.users }

func (m *Manager) AuditLogs() *AuditLogs { return m.auditLogs }

func (m *Manager) DB() *bun.DB { return m.db }

// Migrate applies the embedded schema
func (m *Manager) Migrate(ctx context.Context, opts ...migrations.Option) error {
	return migrations.Up(ctx, m.db.DB, m.dialect, opts...)
}

func (m *Manager) RunInTx(ctx context.Context, opts *sql.TxOptions, fn func(ctx context.Context, tx bun.Tx) error) error {
	return m.db.RunInTx(ctx, opts, fn)
}

func (m *Manager) Ping(ctx context.Context) error {
	return m.db.PingContext(ctx)
}

func (m *Manager) Close() error {
	return m.db.Close()
}
