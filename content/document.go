// Package content stores the structured documents edited from the admin
// dashboard. Every mutation is written together with its audit record.
package content

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"regexp"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ErrDocumentNotFound is returned when no document matches
var ErrDocumentNotFound = goerrors.New("document not found", goerrors.CategoryNotFound).
	WithTextCode("DOCUMENT_NOT_FOUND").
	WithCode(http.StatusNotFound)

var resourcePattern = regexp.MustCompile(`^[a-z][a-z0-9_-]{0,63}$`)

// Document is one editable content item, e.g. a project or the hero section
type Document struct {
	bun.BaseModel `bun:"table:content_documents,alias:cd"`
	ID            uuid.UUID      `bun:"id,pk,type:uuid" json:"id"`
	Resource      string         `bun:"resource,notnull" json:"resource"`
	Data          map[string]any `bun:"data,notnull" json:"data"`
	CreatedAt     time.Time      `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt     time.Time      `bun:"updated_at,notnull" json:"updated_at"`
}

// Validate checks the resource name
func (d Document) Validate() error {
	return validation.ValidateStruct(&d,
		validation.Field(&d.Resource,
			validation.Required.Error("resource is required"),
			validation.Match(resourcePattern).Error("resource must be lowercase letters, digits, - or _"),
		),
	)
}

// Clone copies the document, including its top level data map
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	out := *d
	out.Data = make(map[string]any, len(d.Data))
	for k, v := range d.Data {
		out.Data[k] = v
	}
	return &out
}

const (
	listDocumentsSQL  = `SELECT * FROM "content_documents" WHERE "resource" = ? ORDER BY "created_at" ASC`
	getDocumentSQL    = `SELECT * FROM "content_documents" WHERE "id" = ? AND "resource" = ? LIMIT 1`
	deleteDocumentSQL = `DELETE FROM "content_documents" WHERE "id" = ? RETURNING *`
)

// Store reads and writes documents. Write methods take the transaction
// the audit record is appended in.
type Store struct {
	repo repository.Repository[*Document]
	db   *bun.DB
}

func NewStore(db *bun.DB) *Store {
	repo := repository.NewRepository[*Document](db, repository.ModelHandlers[*Document]{
		NewRecord: func() *Document { return &Document{} },
		GetID: func(d *Document) uuid.UUID {
			if d == nil {
				return uuid.Nil
			}
			return d.ID
		},
		SetID: func(d *Document, id uuid.UUID) {
			if d != nil {
				d.ID = id
			}
		},
	})
	return &Store{repo: repo, db: db}
}

func byResource(resource string) repository.SelectCriteria {
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("?TableAlias.resource = ?", resource)
	}
}

// List returns the documents of a resource, oldest first
func (s *Store) List(ctx context.Context, resource string) ([]*Document, error) {
	docs, err := s.repo.RawTx(ctx, s.db, listDocumentsSQL, resource)
	if err != nil {
		return nil, err
	}
	if docs == nil {
		docs = []*Document{}
	}
	return docs, nil
}

func (s *Store) Get(ctx context.Context, resource string, id uuid.UUID) (*Document, error) {
	doc, err := s.repo.GetByID(ctx, id.String(), byResource(resource))
	if err != nil {
		if repository.IsRecordNotFound(err) || errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDocumentNotFound
		}
		return nil, err
	}
	return doc, nil
}

// GetTx reads the document inside tx so the update or delete that
// follows works on the same row version.
func (s *Store) GetTx(ctx context.Context, tx bun.IDB, resource string, id uuid.UUID) (*Document, error) {
	docs, err := s.repo.RawTx(ctx, tx, getDocumentSQL, id.String(), resource)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, ErrDocumentNotFound
	}
	return docs[0], nil
}

func (s *Store) InsertTx(ctx context.Context, tx bun.IDB, doc *Document) error {
	_, err := s.repo.CreateTx(ctx, tx, doc)
	return err
}

func (s *Store) UpdateTx(ctx context.Context, tx bun.IDB, doc *Document) error {
	_, err := s.repo.UpdateTx(ctx, tx, doc, repository.UpdateByID(doc.ID.String()))
	return err
}

func (s *Store) DeleteTx(ctx context.Context, tx bun.IDB, doc *Document) error {
	deleted, err := s.repo.RawTx(ctx, tx, deleteDocumentSQL, doc.ID.String())
	if err != nil {
		return err
	}
	if len(deleted) == 0 {
		return ErrDocumentNotFound
	}
	return nil
}
