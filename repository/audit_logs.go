package repository

import (
	"context"

	auth "github.com/folio-cms/go-admin-auth"
	"github.com/uptrace/bun"
)

// AuditLogs stores the append only audit trail. There is no update or
// delete path.
type AuditLogs struct {
	db bun.IDB
}

var _ auth.AuditStore = (*AuditLogs)(nil)

func NewAuditLogs(db bun.IDB) *AuditLogs {
	return &AuditLogs{db: db}
}

func (r *AuditLogs) Append(ctx context.Context, record *auth.AuditRecord) error {
	return r.AppendTx(ctx, r.db, record)
}

func (r *AuditLogs) AppendTx(ctx context.Context, tx bun.IDB, record *auth.AuditRecord) error {
	if tx == nil {
		tx = r.db
	}
	_, err := tx.NewInsert().Model(record).Exec(ctx)
	return err
}

// Recent returns up to limit records, newest first
func (r *AuditLogs) Recent(ctx context.Context, limit int) ([]*auth.AuditRecord, error) {
	if limit <= 0 {
		limit = auth.DefaultFeedLimit
	}
	var records []*auth.AuditRecord
	err := r.db.NewSelect().
		Model(&records).
		Order("created_at DESC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return records, nil
}

// ForResource returns the trail of a single resource, newest first
func (r *AuditLogs) ForResource(ctx context.Context, resource, resourceID string) ([]*auth.AuditRecord, error) {
	var records []*auth.AuditRecord
	q := r.db.NewSelect().
		Model(&records).
		Where("resource = ?", resource).
		Order("created_at DESC")
	if resourceID != "" {
		q = q.Where("resource_id = ?", resourceID)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return records, nil
}
