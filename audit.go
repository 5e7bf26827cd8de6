package auth

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// UnknownOrigin is recorded when the request carries no origin information
const UnknownOrigin = "unknown"

// DefaultFeedLimit is the number of records returned by the activity feed
const DefaultFeedLimit = 10

// AuditStore persists audit records. Records are append only.
type AuditStore interface {
	Append(ctx context.Context, record *AuditRecord) error
	AppendTx(ctx context.Context, tx bun.IDB, record *AuditRecord) error
	Recent(ctx context.Context, limit int) ([]*AuditRecord, error)
	// ForResource lists one resource's trail, newest first. An empty
	// resourceID matches every record of the resource.
	ForResource(ctx context.Context, resource, resourceID string) ([]*AuditRecord, error)
}

// TxRunner runs fn inside a database transaction. *bun.DB implements it.
type TxRunner interface {
	RunInTx(ctx context.Context, opts *sql.TxOptions, fn func(ctx context.Context, tx bun.Tx) error) error
}

// RequestOrigin identifies the client that performed a mutation
type RequestOrigin struct {
	IPAddress string `json:"ip_address"`
	UserAgent string `json:"user_agent"`
}

// OriginFromHeaders picks the first X-Forwarded-For hop, then X-Real-IP.
func OriginFromHeaders(forwardedFor, realIP, userAgent string) RequestOrigin {
	origin := RequestOrigin{IPAddress: UnknownOrigin, UserAgent: UnknownOrigin}

	if first, _, _ := strings.Cut(forwardedFor, ","); strings.TrimSpace(first) != "" {
		origin.IPAddress = strings.TrimSpace(first)
	} else if ip := strings.TrimSpace(realIP); ip != "" {
		origin.IPAddress = ip
	}

	if ua := strings.TrimSpace(userAgent); ua != "" {
		origin.UserAgent = ua
	}
	return origin
}

// OriginFromRequest extracts the origin of a fiber request
func OriginFromRequest(c *fiber.Ctx) RequestOrigin {
	return OriginFromHeaders(
		c.Get(fiber.HeaderXForwardedFor),
		c.Get("X-Real-IP"),
		c.Get(fiber.HeaderUserAgent),
	)
}

// Entry describes one administrative mutation.
// Old is nil on create, New is nil on delete, both are set on update.
type Entry struct {
	ActorID    uuid.UUID
	Action     AuditAction
	Resource   string
	ResourceID string
	Old        any
	New        any
	Origin     RequestOrigin
}

// Validate checks the action and that the snapshots match it
func (e Entry) Validate() error {
	err := validation.ValidateStruct(&e,
		validation.Field(&e.Action,
			validation.Required.Error("action is required"),
			validation.In(AuditCreate, AuditUpdate, AuditDelete).Error("action must be create, update or delete"),
		),
		validation.Field(&e.Resource, validation.Required.Error("resource is required")),
	)
	if err != nil {
		return invalidAuditEntry(err.Error())
	}
	if e.ActorID == uuid.Nil {
		return invalidAuditEntry("actor is required")
	}

	hasOld, hasNew := !isNilSnapshot(e.Old), !isNilSnapshot(e.New)
	switch e.Action {
	case AuditCreate:
		if hasOld || !hasNew {
			return invalidAuditEntry("create requires a new snapshot and no old snapshot")
		}
	case AuditUpdate:
		if !hasOld || !hasNew {
			return invalidAuditEntry("update requires old and new snapshots")
		}
	case AuditDelete:
		if !hasOld || hasNew {
			return invalidAuditEntry("delete requires an old snapshot and no new snapshot")
		}
	}
	return nil
}

func invalidAuditEntry(msg string) error {
	return goerrors.New(msg, goerrors.CategoryValidation).
		WithTextCode(TextCodeInvalidAudit).
		WithCode(http.StatusBadRequest)
}

// Snapshot converts v into a JSON object map. Nil values, including typed
// nil pointers, return nil.
func Snapshot(v any) (map[string]any, error) {
	if v == nil {
		return nil, nil
	}
	if m, ok := v.(map[string]any); ok {
		return m, nil
	}

	b, err := json.Marshal(v)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to encode audit snapshot")
	}
	var out map[string]any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "audit snapshot must encode to an object")
	}
	return out, nil
}

func isNilSnapshot(v any) bool {
	if v == nil {
		return true
	}
	m, err := Snapshot(v)
	return err == nil && m == nil
}

// ActivityItem is one line of the dashboard activity feed
type ActivityItem struct {
	Action   string `json:"action"`
	Time     string `json:"time"`
	Resource string `json:"resource"`
}

var resourceDisplayNames = map[string]string{
	"hero":       "Hero section",
	"about":      "About section",
	"project":    "Project",
	"skill":      "Skill",
	"contact":    "Contact info",
	"footer":     "Footer",
	"settings":   "Settings",
	"submission": "Message",
}

var actionVerbs = map[AuditAction]string{
	AuditCreate: "created",
	AuditUpdate: "updated",
	AuditDelete: "deleted",
}

// ResourceDisplayName maps a resource to its dashboard label.
// Unknown resources pass through unchanged.
func ResourceDisplayName(resource string) string {
	if name, ok := resourceDisplayNames[strings.ToLower(resource)]; ok {
		return name
	}
	return resource
}

// FormatAction renders "<resource name> <verb>", e.g. "Hero section updated"
func FormatAction(action AuditAction, resource string) string {
	verb, ok := actionVerbs[action]
	if !ok {
		verb = string(action)
	}
	return ResourceDisplayName(resource) + " " + verb
}

// AuditLogger appends audit records and serves the activity feed
type AuditLogger struct {
	store     AuditStore
	db        TxRunner
	clock     Clock
	logger    Logger
	feedLimit int
}

// AuditOption configures an AuditLogger
type AuditOption func(*AuditLogger)

// WithAuditClock sets the clock used for created_at
func WithAuditClock(clock Clock) AuditOption {
	return func(l *AuditLogger) {
		l.clock = clock
	}
}

// WithAuditLogger sets the logger
func WithAuditLogger(logger Logger) AuditOption {
	return func(l *AuditLogger) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithTxRunner enables RunAudited
func WithTxRunner(db TxRunner) AuditOption {
	return func(l *AuditLogger) {
		l.db = db
	}
}

// WithFeedLimit overrides the activity feed size
func WithFeedLimit(limit int) AuditOption {
	return func(l *AuditLogger) {
		if limit > 0 {
			l.feedLimit = limit
		}
	}
}

// NewAuditLogger creates a logger on top of the given store
func NewAuditLogger(store AuditStore, opts ...AuditOption) *AuditLogger {
	l := &AuditLogger{
		store:     store,
		logger:    defaultLogger("audit"),
		feedLimit: DefaultFeedLimit,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Record appends an audit record for a mutation that already committed
func (l *AuditLogger) Record(ctx context.Context, entry Entry) (*AuditRecord, error) {
	record, err := l.build(entry)
	if err != nil {
		return nil, err
	}

	if err := l.store.Append(ctx, record); err != nil {
		l.logger.Error("audit append failed", "resource", record.Resource, "action", record.Action, "error", err)
		return nil, AuditWriteFailure(err, record.Resource)
	}

	l.logger.Debug("audit record appended", "id", record.ID, "resource", record.Resource, "action", record.Action)
	return record, nil
}

// RecordTx appends a record using the caller's transaction
func (l *AuditLogger) RecordTx(ctx context.Context, tx bun.IDB, entry Entry) (*AuditRecord, error) {
	record, err := l.build(entry)
	if err != nil {
		return nil, err
	}

	if err := l.store.AppendTx(ctx, tx, record); err != nil {
		l.logger.Error("audit append failed", "resource", record.Resource, "action", record.Action, "error", err)
		return nil, AuditWriteFailure(err, record.Resource)
	}
	return record, nil
}

// RunAudited runs the mutation and the audit append in one transaction.
// If fn fails nothing is recorded, if the append fails the mutation is
// rolled back.
func (l *AuditLogger) RunAudited(ctx context.Context, fn func(ctx context.Context, tx bun.Tx) (Entry, error)) (*AuditRecord, error) {
	if l.db == nil {
		return nil, goerrors.New("audited transactions require a database", goerrors.CategoryInternal).
			WithCode(http.StatusInternalServerError)
	}

	var record *AuditRecord
	err := l.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		entry, err := fn(ctx, tx)
		if err != nil {
			return err
		}
		record, err = l.RecordTx(ctx, tx, entry)
		return err
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// Feed returns the latest records, newest first, formatted for display
func (l *AuditLogger) Feed(ctx context.Context) ([]ActivityItem, error) {
	records, err := l.store.Recent(ctx, l.feedLimit)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to fetch activity")
	}

	now := l.clock.Now()
	items := make([]ActivityItem, 0, len(records))
	for _, r := range records {
		items = append(items, ActivityItem{
			Action:   FormatAction(r.Action, r.Resource),
			Time:     TimeAgo(r.CreatedAt, now),
			Resource: r.Resource,
		})
	}
	return items, nil
}

// Trail returns the full history of one resource, newest first
func (l *AuditLogger) Trail(ctx context.Context, resource, resourceID string) ([]*AuditRecord, error) {
	resource = strings.TrimSpace(resource)
	if resource == "" {
		return nil, goerrors.New("resource is required", goerrors.CategoryBadInput).
			WithCode(http.StatusBadRequest)
	}
	records, err := l.store.ForResource(ctx, resource, strings.TrimSpace(resourceID))
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to fetch audit trail").
			WithMetadata(map[string]any{"resource": resource, "resource_id": resourceID})
	}
	return records, nil
}

func (l *AuditLogger) build(entry Entry) (*AuditRecord, error) {
	if err := entry.Validate(); err != nil {
		return nil, err
	}

	oldSnap, err := Snapshot(entry.Old)
	if err != nil {
		return nil, err
	}
	newSnap, err := Snapshot(entry.New)
	if err != nil {
		return nil, err
	}

	origin := entry.Origin
	if origin.IPAddress == "" {
		origin.IPAddress = UnknownOrigin
	}
	if origin.UserAgent == "" {
		origin.UserAgent = UnknownOrigin
	}

	return &AuditRecord{
		ID:         uuid.New(),
		UserID:     entry.ActorID,
		Action:     entry.Action,
		Resource:   entry.Resource,
		ResourceID: entry.ResourceID,
		Changes:    AuditChanges{Old: oldSnap, New: newSnap},
		IPAddress:  origin.IPAddress,
		UserAgent:  origin.UserAgent,
		CreatedAt:  l.clock.Now().UTC(),
	}, nil
}
