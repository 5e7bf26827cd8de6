package auth

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// User is the administrative identity model
type User struct {
	bun.BaseModel       `bun:"table:admin_users,alias:au"`
	ID                  uuid.UUID  `bun:"id,pk,type:uuid" json:"id"`
	Email               string     `bun:"email,notnull,unique" json:"email"`
	PasswordHash        string     `bun:"password_hash,notnull" json:"-"`
	Name                string     `bun:"name,notnull" json:"name"`
	Role                Role       `bun:"role,notnull" json:"role"`
	FailedLoginAttempts int        `bun:"failed_login_attempts,notnull" json:"failed_login_attempts"`
	LockedUntil         *time.Time `bun:"locked_until,nullzero" json:"locked_until,omitempty"`
	LastLogin           *time.Time `bun:"last_login,nullzero" json:"last_login,omitempty"`
	CreatedAt           time.Time  `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt           time.Time  `bun:"updated_at,notnull" json:"updated_at"`
}

// Clone returns a copy that does not share time pointers with u
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	out := *u
	out.LockedUntil = cloneTime(u.LockedUntil)
	out.LastLogin = cloneTime(u.LastLogin)
	return &out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// AuditAction is the kind of mutation an audit record describes
type AuditAction string

const (
	AuditCreate AuditAction = "create"
	AuditUpdate AuditAction = "update"
	AuditDelete AuditAction = "delete"
)

// IsValid checks the action is one of create, update or delete
func (a AuditAction) IsValid() bool {
	switch a {
	case AuditCreate, AuditUpdate, AuditDelete:
		return true
	default:
		return false
	}
}

// AuditChanges holds the before and after snapshots of a mutated resource.
// Old is nil on create and New is nil on delete.
type AuditChanges struct {
	Old map[string]any `json:"old"`
	New map[string]any `json:"new"`
}

// Value implements driver.Valuer
func (c AuditChanges) Value() (driver.Value, error) {
	b, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner
func (c *AuditChanges) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*c = AuditChanges{}
		return nil
	case []byte:
		return json.Unmarshal(v, c)
	case string:
		return json.Unmarshal([]byte(v), c)
	default:
		return fmt.Errorf("audit changes: unsupported scan type %T", src)
	}
}

// AuditRecord is an immutable entry of the audit trail
type AuditRecord struct {
	bun.BaseModel `bun:"table:audit_logs,alias:al"`
	ID            uuid.UUID    `bun:"id,pk,type:uuid" json:"id"`
	UserID        uuid.UUID    `bun:"user_id,notnull,type:uuid" json:"user_id"`
	Action        AuditAction  `bun:"action,notnull" json:"action"`
	Resource      string       `bun:"resource,notnull" json:"resource"`
	ResourceID    string       `bun:"resource_id" json:"resource_id,omitempty"`
	Changes       AuditChanges `bun:"changes" json:"changes"`
	IPAddress     string       `bun:"ip_address" json:"ip_address,omitempty"`
	UserAgent     string       `bun:"user_agent" json:"user_agent,omitempty"`
	CreatedAt     time.Time    `bun:"created_at,notnull" json:"created_at"`
}
