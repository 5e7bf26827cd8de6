package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	auth "github.com/folio-cms/go-admin-auth"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/bun"
)

// pgUniqueViolation is the postgres SQLSTATE for unique_violation
const pgUniqueViolation = "23505"

// Users stores administrative identities in admin_users
type Users struct {
	db bun.IDB
}

var (
	_ auth.CredentialStore     = (*Users)(nil)
	_ auth.IdentityProvisioner = (*Users)(nil)
)

// NewUsers returns a users repository. db may be a *bun.DB or a bun.Tx.
func NewUsers(db bun.IDB) *Users {
	return &Users{db: db}
}

// WithTx returns a copy bound to tx
func (r *Users) WithTx(tx bun.IDB) *Users {
	return &Users{db: tx}
}

func (r *Users) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	user := new(auth.User)
	err := r.db.NewSelect().
		Model(user).
		Where("email = ?", auth.NormalizeEmail(email)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return user, nil
}

func (r *Users) FindByID(ctx context.Context, id uuid.UUID) (*auth.User, error) {
	user := new(auth.User)
	err := r.db.NewSelect().
		Model(user).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return user, nil
}

// RecordFailure increments the failure counter and sets the lock expiry in
// a single UPDATE. Both SET expressions read the pre-update row so
// concurrent failures never lose an increment.
func (r *Users) RecordFailure(ctx context.Context, id uuid.UUID, policy auth.LockoutPolicy, now time.Time) (*auth.User, error) {
	policy = policy.Normalized()
	until := now.Add(policy.Duration).UTC()

	res, err := r.db.NewUpdate().
		Model((*auth.User)(nil)).
		Set("failed_login_attempts = failed_login_attempts + 1").
		Set("locked_until = CASE WHEN failed_login_attempts + 1 >= ? THEN ? ELSE locked_until END", policy.Threshold, until).
		Set("updated_at = ?", now.UTC()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return nil, err
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, auth.ErrIdentityNotFound
	}

	return r.FindByID(ctx, id)
}

// RecordSuccess clears the lockout state and stamps last_login
func (r *Users) RecordSuccess(ctx context.Context, id uuid.UUID, now time.Time) error {
	res, err := r.db.NewUpdate().
		Model((*auth.User)(nil)).
		Set("failed_login_attempts = 0").
		Set("locked_until = NULL").
		Set("last_login = ?", now.UTC()).
		Set("updated_at = ?", now.UTC()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return auth.ErrIdentityNotFound
	}
	return nil
}

// Create inserts a new identity. A duplicate email maps to
// auth.ErrIdentityExists.
func (r *Users) Create(ctx context.Context, user *auth.User) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	user.Email = auth.NormalizeEmail(user.Email)

	if _, err := r.db.NewInsert().Model(user).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return auth.ErrIdentityExists
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to insert identity")
	}
	return nil
}

// List returns every identity ordered by email
func (r *Users) List(ctx context.Context) ([]*auth.User, error) {
	var users []*auth.User
	if err := r.db.NewSelect().Model(&users).Order("email ASC").Scan(ctx); err != nil {
		return nil, err
	}
	return users, nil
}

func mapNotFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return auth.ErrIdentityNotFound
	}
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
