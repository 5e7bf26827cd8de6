package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	auth "github.com/folio-cms/go-admin-auth"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// MemoryUsers is an in-process CredentialStore used by tests and the
// development server. Every mutation holds the store lock, so the failure
// increment and the lock decision are applied together.
type MemoryUsers struct {
	mu      sync.Mutex
	byID    map[uuid.UUID]*auth.User
	byEmail map[string]uuid.UUID
}

var (
	_ auth.CredentialStore     = (*MemoryUsers)(nil)
	_ auth.IdentityProvisioner = (*MemoryUsers)(nil)
)

func NewMemoryUsers(users ...*auth.User) *MemoryUsers {
	m := &MemoryUsers{
		byID:    make(map[uuid.UUID]*auth.User),
		byEmail: make(map[string]uuid.UUID),
	}
	for _, u := range users {
		_ = m.Create(context.Background(), u)
	}
	return m
}

func (m *MemoryUsers) FindByEmail(_ context.Context, email string) (*auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.byEmail[auth.NormalizeEmail(email)]
	if !ok {
		return nil, auth.ErrIdentityNotFound
	}
	return m.byID[id].Clone(), nil
}

func (m *MemoryUsers) FindByID(_ context.Context, id uuid.UUID) (*auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.byID[id]
	if !ok {
		return nil, auth.ErrIdentityNotFound
	}
	return u.Clone(), nil
}

func (m *MemoryUsers) RecordFailure(_ context.Context, id uuid.UUID, policy auth.LockoutPolicy, now time.Time) (*auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.byID[id]
	if !ok {
		return nil, auth.ErrIdentityNotFound
	}
	u.FailedLoginAttempts, u.LockedUntil = policy.Next(u.FailedLoginAttempts, u.LockedUntil, now)
	u.UpdatedAt = now
	return u.Clone(), nil
}

func (m *MemoryUsers) RecordSuccess(_ context.Context, id uuid.UUID, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.byID[id]
	if !ok {
		return auth.ErrIdentityNotFound
	}
	u.FailedLoginAttempts = 0
	u.LockedUntil = nil
	last := now
	u.LastLogin = &last
	u.UpdatedAt = now
	return nil
}

func (m *MemoryUsers) Create(_ context.Context, user *auth.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	user.Email = auth.NormalizeEmail(user.Email)
	if _, exists := m.byEmail[user.Email]; exists {
		return auth.ErrIdentityExists
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	m.byID[user.ID] = user.Clone()
	m.byEmail[user.Email] = user.ID
	return nil
}

// List returns copies of every identity ordered by email
func (m *MemoryUsers) List(_ context.Context) ([]*auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*auth.User, 0, len(m.byID))
	for _, u := range m.byID {
		out = append(out, u.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

// MemoryAuditLogs keeps audit records in insertion order
type MemoryAuditLogs struct {
	mu      sync.RWMutex
	records []*auth.AuditRecord
	// FailWith makes every append return the error
	FailWith error
}

var _ auth.AuditStore = (*MemoryAuditLogs)(nil)

func NewMemoryAuditLogs() *MemoryAuditLogs {
	return &MemoryAuditLogs{}
}

func (m *MemoryAuditLogs) Append(_ context.Context, record *auth.AuditRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailWith != nil {
		return m.FailWith
	}
	cp := *record
	m.records = append(m.records, &cp)
	return nil
}

func (m *MemoryAuditLogs) AppendTx(ctx context.Context, _ bun.IDB, record *auth.AuditRecord) error {
	return m.Append(ctx, record)
}

func (m *MemoryAuditLogs) Recent(_ context.Context, limit int) ([]*auth.AuditRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*auth.AuditRecord, len(m.records))
	copy(out, m.records)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// All returns every record in insertion order
func (m *MemoryAuditLogs) All() []*auth.AuditRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*auth.AuditRecord, len(m.records))
	copy(out, m.records)
	return out
}

func (m *MemoryAuditLogs) ForResource(_ context.Context, resource, resourceID string) ([]*auth.AuditRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*auth.AuditRecord
	for _, r := range m.records {
		if r.Resource != resource {
			continue
		}
		if resourceID != "" && r.ResourceID != resourceID {
			continue
		}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}
