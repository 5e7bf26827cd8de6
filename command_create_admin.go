package auth

import (
	"context"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
)

type CreateAdminMessage struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
	// UseHashid derives a stable id from the email
	UseHashid bool
}

func (e CreateAdminMessage) Type() string { return "admin.create" }

// Validate will run validation rules
func (e CreateAdminMessage) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.Name, validation.Required.Error("name is required")),
		validation.Field(&e.Email,
			validation.Required.Error("email is required"),
			is.Email.Error("email must be a valid email address"),
		),
		validation.Field(&e.Password, validation.Required.Error("password is required")),
		validation.Field(&e.Role, validation.In(string(RoleAdmin), string(RoleEditor)).Error("role must be admin or editor")),
	)
}

// CreateAdminHandler provisions administrative identities out-of-band
type CreateAdminHandler struct {
	store  IdentityProvisioner
	hasher PasswordAuthenticator
	clock  Clock
	logger Logger
	sink   ActivitySink
	// Created holds the last identity created by Execute
	Created *User
}

// NewCreateAdminHandler creates the handler
func NewCreateAdminHandler(store IdentityProvisioner, hasher PasswordAuthenticator, logger Logger) *CreateAdminHandler {
	if hasher == nil {
		hasher = NewBcryptHasher()
	}
	if logger == nil {
		logger = defaultLogger("create_admin")
	}
	return &CreateAdminHandler{store: store, hasher: hasher, logger: logger, sink: noopActivitySink{}}
}

// WithActivitySink emits auth.admin.created events
func (h *CreateAdminHandler) WithActivitySink(sink ActivitySink) *CreateAdminHandler {
	h.sink = normalizeActivitySink(sink)
	return h
}

// WithClock sets the clock used for timestamps
func (h *CreateAdminHandler) WithClock(clock Clock) *CreateAdminHandler {
	h.clock = clock
	return h
}

func (h *CreateAdminHandler) Execute(ctx context.Context, event CreateAdminMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during admin provisioning",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *CreateAdminHandler) execute(ctx context.Context, event CreateAdminMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	event.Name = strings.TrimSpace(event.Name)
	event.Email = NormalizeEmail(event.Email)
	if event.Role == "" {
		event.Role = string(RoleAdmin)
	}

	if err := event.Validate(); err != nil {
		return goerrors.New(err.Error(), goerrors.CategoryValidation).
			WithTextCode("INVALID_ADMIN")
	}

	if err := ValidatePasswordStrength(event.Password); err != nil {
		return err
	}

	existing, err := h.store.FindByEmail(ctx, event.Email)
	if err != nil && !IsNotFound(err) {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check existing identity")
	}
	if existing != nil {
		return ErrIdentityExists
	}

	hash, err := h.hasher.HashPassword(event.Password)
	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return goerrors.Wrap(richErr, goerrors.CategoryValidation, "invalid password provided")
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
	}

	now := h.clock.Now().UTC()
	user := &User{
		ID:           uuid.New(),
		Email:        event.Email,
		PasswordHash: hash,
		Name:         event.Name,
		Role:         Role(event.Role),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if event.UseHashid {
		if id, err := hashid.NewUUID(event.Email); err == nil {
			user.ID = id
		}
	}

	if err := h.store.Create(ctx, user); err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryConflict, "could not create admin")
	}

	h.Created = user
	h.logger.Info("Admin identity created", "user_id", user.ID, "email", user.Email, "role", user.Role)
	emitActivity(ctx, h.sink, h.logger, ActivityEvent{
		EventType:  ActivityEventAdminCreated,
		Actor:      ActorRef{Type: "system"},
		UserID:     user.ID.String(),
		Metadata:   map[string]any{"role": string(user.Role)},
		OccurredAt: now,
	})
	return nil
}
