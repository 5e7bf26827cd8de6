package content

import (
	"context"
	"net/http"

	auth "github.com/folio-cms/go-admin-auth"
	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Controller exposes audited CRUD for documents. It expects the auth gate
// to run first so every mutation has a session.
type Controller struct {
	store  *Store
	audit  *auth.AuditLogger
	clock  auth.Clock
	logger auth.Logger
}

// ControllerOption configures a Controller
type ControllerOption func(*Controller)

func WithLogger(logger auth.Logger) ControllerOption {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func WithClock(clock auth.Clock) ControllerOption {
	return func(c *Controller) {
		c.clock = clock
	}
}

// NewController creates the controller. audit must be configured with a
// TxRunner sharing the store database.
func NewController(store *Store, audit *auth.AuditLogger, opts ...ControllerOption) *Controller {
	c := &Controller{
		store:  store,
		audit:  audit,
		logger: auth.Named(nil, "content"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Register mounts the routes under /content on r
func (ctrl *Controller) Register(r fiber.Router) {
	g := r.Group("/content")
	g.Get("/:resource", ctrl.List).Name("content.list")
	g.Get("/:resource/:id", ctrl.Get).Name("content.get")
	g.Post("/:resource", ctrl.Create).Name("content.create")
	g.Put("/:resource/:id", ctrl.Update).Name("content.update")
	g.Delete("/:resource/:id", ctrl.Delete).Name("content.delete")
}

func (ctrl *Controller) List(c *fiber.Ctx) error {
	resource, err := resourceParam(c)
	if err != nil {
		return auth.WriteError(c, ctrl.logger, err)
	}

	docs, err := ctrl.store.List(c.UserContext(), resource)
	if err != nil {
		return auth.WriteError(c, ctrl.logger, err)
	}
	return c.JSON(fiber.Map{"documents": docs})
}

func (ctrl *Controller) Get(c *fiber.Ctx) error {
	resource, id, err := documentParams(c)
	if err != nil {
		return auth.WriteError(c, ctrl.logger, err)
	}

	doc, err := ctrl.store.Get(c.UserContext(), resource, id)
	if err != nil {
		return auth.WriteError(c, ctrl.logger, err)
	}
	return c.JSON(fiber.Map{"document": doc})
}

func (ctrl *Controller) Create(c *fiber.Ctx) error {
	resource, err := resourceParam(c)
	if err != nil {
		return auth.WriteError(c, ctrl.logger, err)
	}
	data, err := bodyData(c)
	if err != nil {
		return auth.WriteError(c, ctrl.logger, err)
	}

	var created *Document
	err = ctrl.mutate(c, func(ctx context.Context, tx bun.Tx, actor auth.Entry) (auth.Entry, error) {
		now := ctrl.clock.Now().UTC()
		created = &Document{
			ID:        uuid.New(),
			Resource:  resource,
			Data:      data,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := ctrl.store.InsertTx(ctx, tx, created); err != nil {
			return actor, err
		}
		actor.Action = auth.AuditCreate
		actor.Resource = resource
		actor.ResourceID = created.ID.String()
		actor.New = created
		return actor, nil
	})
	if err != nil {
		return auth.WriteError(c, ctrl.logger, err)
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"success": true, "document": created})
}

func (ctrl *Controller) Update(c *fiber.Ctx) error {
	resource, id, err := documentParams(c)
	if err != nil {
		return auth.WriteError(c, ctrl.logger, err)
	}
	data, err := bodyData(c)
	if err != nil {
		return auth.WriteError(c, ctrl.logger, err)
	}

	var updated *Document
	err = ctrl.mutate(c, func(ctx context.Context, tx bun.Tx, actor auth.Entry) (auth.Entry, error) {
		current, err := ctrl.store.GetTx(ctx, tx, resource, id)
		if err != nil {
			return actor, err
		}
		old := current.Clone()

		current.Data = data
		current.UpdatedAt = ctrl.clock.Now().UTC()
		if err := ctrl.store.UpdateTx(ctx, tx, current); err != nil {
			return actor, err
		}
		updated = current

		actor.Action = auth.AuditUpdate
		actor.Resource = resource
		actor.ResourceID = id.String()
		actor.Old = old
		actor.New = current
		return actor, nil
	})
	if err != nil {
		return auth.WriteError(c, ctrl.logger, err)
	}
	return c.JSON(fiber.Map{"success": true, "document": updated})
}

func (ctrl *Controller) Delete(c *fiber.Ctx) error {
	resource, id, err := documentParams(c)
	if err != nil {
		return auth.WriteError(c, ctrl.logger, err)
	}

	err = ctrl.mutate(c, func(ctx context.Context, tx bun.Tx, actor auth.Entry) (auth.Entry, error) {
		current, err := ctrl.store.GetTx(ctx, tx, resource, id)
		if err != nil {
			return actor, err
		}
		if err := ctrl.store.DeleteTx(ctx, tx, current); err != nil {
			return actor, err
		}
		actor.Action = auth.AuditDelete
		actor.Resource = resource
		actor.ResourceID = id.String()
		actor.Old = current
		return actor, nil
	})
	if err != nil {
		return auth.WriteError(c, ctrl.logger, err)
	}
	return c.JSON(fiber.Map{"success": true})
}

// mutate runs fn and its audit append in one transaction. fn receives an
// entry prefilled with the actor and the request origin.
func (ctrl *Controller) mutate(c *fiber.Ctx, fn func(ctx context.Context, tx bun.Tx, entry auth.Entry) (auth.Entry, error)) error {
	session, ok := auth.CurrentSession(c)
	if !ok {
		return auth.ErrUnauthenticated
	}
	actorID, err := session.UserUUID()
	if err != nil {
		return auth.ErrUnauthenticated
	}

	ctx := c.UserContext()
	base := auth.Entry{
		ActorID: actorID,
		Origin:  auth.OriginFromContext(ctx),
	}

	record, err := ctrl.audit.RunAudited(ctx, func(ctx context.Context, tx bun.Tx) (auth.Entry, error) {
		return fn(ctx, tx, base)
	})
	if err != nil {
		return err
	}
	ctrl.logger.Info("content mutated",
		"resource", record.Resource,
		"resource_id", record.ResourceID,
		"action", record.Action,
		"user_id", record.UserID,
	)
	return nil
}

func resourceParam(c *fiber.Ctx) (string, error) {
	resource := c.Params("resource")
	if err := (Document{Resource: resource}).Validate(); err != nil {
		return "", goerrors.New(err.Error(), goerrors.CategoryBadInput).
			WithTextCode("INVALID_RESOURCE").
			WithCode(http.StatusBadRequest)
	}
	return resource, nil
}

func documentParams(c *fiber.Ctx) (string, uuid.UUID, error) {
	resource, err := resourceParam(c)
	if err != nil {
		return "", uuid.Nil, err
	}
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return "", uuid.Nil, goerrors.New("invalid document id", goerrors.CategoryBadInput).
			WithTextCode("INVALID_DOCUMENT_ID").
			WithCode(http.StatusBadRequest)
	}
	return resource, id, nil
}

func bodyData(c *fiber.Ctx) (map[string]any, error) {
	data := map[string]any{}
	if err := c.BodyParser(&data); err != nil {
		return nil, goerrors.New("request body must be a JSON object", goerrors.CategoryBadInput).
			WithTextCode("INVALID_BODY").
			WithCode(http.StatusBadRequest)
	}
	return data, nil
}
