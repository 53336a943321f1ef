package component

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"iter"
	"log/slog"

	"github.com/erazemk/komponente/internal/db"
	"github.com/erazemk/komponente/internal/model"
	"github.com/erazemk/komponente/internal/store"
)

// DefaultMaxConflictRetries bounds how often a mutation is retried after
// losing a race for the component row.
const DefaultMaxConflictRetries = 3

// ImageResolver stores and removes component images.
type ImageResolver interface {
	Attach(ctx context.Context, upload io.Reader) (string, error)
	Detach(ctx context.Context, key string) error
}

// ImageChange describes what Update does with the component image. Upload
// replaces the current image; Remove clears it when there is no upload.
// The zero value keeps the image.
type ImageChange struct {
	Upload io.Reader
	Remove bool
}

// Stock summarises how many units of a component are free.
type Stock struct {
	Qty       int `json:"qty"`
	Allocated int `json:"allocated"`
	Remaining int `json:"remaining"`
}

// Service applies component operations while keeping every component's
// quantity at or above the number of units checked out. The allocated count
// is read and the component written in one transaction holding the
// component row lock.
type Service struct {
	DB      *sql.DB
	Dialect db.Dialect
	Authz   Authorizer
	Tenants TenantResolver
	Images  ImageResolver
	Counter *Counter
	Logger  *slog.Logger

	MaxConflictRetries int
}

// NewService returns a Service with role-based authorization and company
// scoping disabled.
func NewService(database *sql.DB, dialect db.Dialect, images ImageResolver) *Service {
	s := &Service{
		DB:                 database,
		Dialect:            dialect,
		Images:             images,
		Counter:            NewCounter(database),
		Logger:             slog.Default(),
		MaxConflictRetries: DefaultMaxConflictRetries,
	}
	s.SetCompanyScope(CompanyScope{})
	return s
}

// SetCompanyScope installs scope as the tenant resolver and a RolePolicy
// using it as the authorizer.
func (s *Service) SetCompanyScope(scope CompanyScope) {
	s.Tenants = scope
	s.Authz = RolePolicy{Scope: scope}
}

// Create validates fields and stores a new component owned by the actor's
// tenant. upload may be nil.
func (s *Service) Create(ctx context.Context, actor model.Actor, fields model.ComponentFields, upload io.Reader) (*model.Component, error) {
	if !s.Authz.CanCreate(actor) {
		return nil, fmt.Errorf("creating component: %w", ErrForbidden)
	}
	if err := validateFields(&fields); err != nil {
		return nil, err
	}
	company, err := s.Tenants.ResolveTenant(actor, fields.CompanyID)
	if err != nil {
		return nil, err
	}

	key, err := s.attach(ctx, upload)
	if err != nil {
		return nil, err
	}

	c := &model.Component{CreatedBy: actorRef(actor)}
	fields.Apply(c)
	c.CompanyID = company
	if key != "" {
		c.Image = &key
	}

	id, err := store.InsertComponent(ctx, s.DB, c)
	if err != nil {
		s.detach(ctx, key, 0)
		return nil, classify("creating component", err)
	}

	s.logger().Info("component created", "component", id, "qty", c.Qty, "user", actor.Username)
	return s.reload(ctx, id)
}

// Update replaces every editable field of a component. The new quantity
// must not be below the number of units checked out; a rejection carries
// the minimum allowed quantity.
func (s *Service) Update(ctx context.Context, actor model.Actor, id int64, fields model.ComponentFields, image ImageChange) (*model.Component, error) {
	var company *int64
	prepare := func() error {
		if err := validateFields(&fields); err != nil {
			return err
		}
		var err error
		company, err = s.Tenants.ResolveTenant(actor, fields.CompanyID)
		return err
	}

	return s.modify(ctx, actor, id, "updating component", prepare, image, func(tx *sql.Tx, c *model.Component) error {
		allocated, err := store.AllocatedCount(ctx, tx, id)
		if err != nil {
			return err
		}
		if fields.Qty < allocated {
			return &ValidationError{
				Field:   "qty",
				Message: fmt.Sprintf("quantity %d is below the %d units checked out", fields.Qty, allocated),
				MinQty:  &allocated,
			}
		}

		fields.Apply(c)
		c.CompanyID = company
		return nil
	})
}

// SetImage replaces or removes a component's image, leaving every other
// field as it is.
func (s *Service) SetImage(ctx context.Context, actor model.Actor, id int64, image ImageChange) (*model.Component, error) {
	return s.modify(ctx, actor, id, "updating component image", nil, image, func(*sql.Tx, *model.Component) error {
		return nil
	})
}

// modify runs change against the locked component and writes the result
// with a version check. prepare, when set, runs once the component is known
// to be visible and updatable by the actor. The image is attached before the
// transaction; the image it replaces is detached only after commit.
func (s *Service) modify(ctx context.Context, actor model.Actor, id int64, op string, prepare func() error, image ImageChange, change func(tx *sql.Tx, c *model.Component) error) (*model.Component, error) {
	current, err := s.visible(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if !s.Authz.CanUpdate(actor, current) {
		return nil, fmt.Errorf("%s %d: %w", op, id, ErrForbidden)
	}
	if prepare != nil {
		if err := prepare(); err != nil {
			return nil, err
		}
	}

	key, err := s.attach(ctx, image.Upload)
	if err != nil {
		return nil, err
	}

	var oldImage *string
	err = s.inTx(ctx, op, func(tx *sql.Tx) error {
		c, err := s.lock(ctx, tx, actor, id)
		if err != nil {
			return err
		}
		if !s.Authz.CanUpdate(actor, c) {
			return fmt.Errorf("%s %d: %w", op, id, ErrForbidden)
		}

		oldImage = c.Image
		if err := change(tx, c); err != nil {
			return err
		}
		switch {
		case key != "":
			c.Image = &key
		case image.Remove:
			c.Image = nil
		}
		return store.UpdateComponent(ctx, tx, c)
	})
	if err != nil {
		s.detach(ctx, key, id)
		return nil, classify(op, err)
	}

	if (key != "" || image.Remove) && oldImage != nil {
		s.detach(ctx, *oldImage, id)
	}

	s.logger().Info("component updated", "component", id, "user", actor.Username)
	return s.reload(ctx, id)
}

// Delete soft-deletes a component. Components with units checked out cannot
// be deleted. The image is removed afterwards on a best-effort basis.
func (s *Service) Delete(ctx context.Context, actor model.Actor, id int64) error {
	current, err := s.visible(ctx, actor, id)
	if err != nil {
		return err
	}
	if !s.Authz.CanDelete(actor, current) {
		return fmt.Errorf("deleting component %d: %w", id, ErrForbidden)
	}

	var image *string
	err = s.inTx(ctx, "deleting component", func(tx *sql.Tx) error {
		c, err := s.lock(ctx, tx, actor, id)
		if err != nil {
			return err
		}

		allocated, err := store.AllocatedCount(ctx, tx, id)
		if err != nil {
			return err
		}
		if allocated > 0 {
			return invalid("qty", "%d units are still checked out", allocated)
		}

		image = c.Image
		return store.DeleteComponent(ctx, tx, id, c.Version)
	})
	if err != nil {
		return classify("deleting component", err)
	}

	if image != nil {
		s.detach(ctx, *image, id)
	}

	s.logger().Info("component deleted", "component", id, "user", actor.Username)
	return nil
}

// Clone returns an unsaved copy of a component for the caller to edit and
// pass to Create. The copy has no id, serial or image, and no allocations.
func (s *Service) Clone(ctx context.Context, actor model.Actor, id int64) (*model.Component, error) {
	source, err := s.visible(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if !s.Authz.CanCreate(actor) {
		return nil, fmt.Errorf("cloning component %d: %w", id, ErrForbidden)
	}

	draft := &model.Component{}
	source.Fields().Apply(draft)
	draft.Serial = ""
	return draft, nil
}

// Get returns a component visible to the actor.
func (s *Service) Get(ctx context.Context, actor model.Actor, id int64) (*model.Component, error) {
	return s.visible(ctx, actor, id)
}

// List lazily enumerates the components visible to the actor that match
// filter. Tenant scoping overrides any company in filter for actors limited
// to their own company.
func (s *Service) List(ctx context.Context, actor model.Actor, filter model.ComponentFilter) iter.Seq2[model.Component, error] {
	if company, restricted := s.Tenants.VisibleTenant(actor); restricted {
		filter.ScopeCompany = true
		filter.CompanyID = company
	}

	return func(yield func(model.Component, error) bool) {
		for c, err := range store.ListComponents(ctx, s.DB, filter) {
			if err != nil {
				yield(model.Component{}, unavailable("listing components", err))
				return
			}
			if !s.Authz.CanView(actor, &c) {
				continue
			}
			if !yield(c, nil) {
				return
			}
		}
	}
}

// Stock returns a component visible to the actor together with its
// quantity, allocated and remaining units.
func (s *Service) Stock(ctx context.Context, actor model.Actor, id int64) (*model.Component, Stock, error) {
	c, err := s.visible(ctx, actor, id)
	if err != nil {
		return nil, Stock{}, err
	}

	allocated, err := s.Counter.AllocatedCount(ctx, id)
	if err != nil {
		return nil, Stock{}, err
	}
	return c, Stock{Qty: c.Qty, Allocated: allocated, Remaining: max(c.Qty-allocated, 0)}, nil
}

// inTx runs fn in a transaction, retrying when another writer won the race
// for the component row. Returns ErrConflict once the retries run out.
func (s *Service) inTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	retries := max(s.MaxConflictRetries, 0)

	for attempt := 0; ; attempt++ {
		err := store.WithTx(ctx, s.DB, fn)
		if err == nil || !retryable(err) {
			return err
		}
		if attempt >= retries {
			s.logger().Warn("giving up after conflicts", "op", op, "attempts", attempt+1, "error", err)
			return fmt.Errorf("%s: %w", op, ErrConflict)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.logger().Debug("retrying after conflict", "op", op, "attempt", attempt+1, "error", err)
	}
}

// visible loads a component and hides it unless the actor may view it.
func (s *Service) visible(ctx context.Context, actor model.Actor, id int64) (*model.Component, error) {
	c, err := store.GetComponent(ctx, s.DB, id)
	if err != nil {
		return nil, unavailable("getting component", err)
	}
	if c == nil || !s.Authz.CanView(actor, c) {
		return nil, fmt.Errorf("component %d: %w", id, ErrNotFound)
	}
	return c, nil
}

// lock is visible inside a transaction, holding the component row lock.
func (s *Service) lock(ctx context.Context, tx *sql.Tx, actor model.Actor, id int64) (*model.Component, error) {
	c, err := store.LockComponent(ctx, tx, s.Dialect, id)
	if err != nil {
		return nil, err
	}
	if c == nil || !s.Authz.CanView(actor, c) {
		return nil, fmt.Errorf("component %d: %w", id, ErrNotFound)
	}
	return c, nil
}

func (s *Service) reload(ctx context.Context, id int64) (*model.Component, error) {
	c, err := store.GetComponent(ctx, s.DB, id)
	if err != nil {
		return nil, unavailable("getting component", err)
	}
	if c == nil {
		return nil, fmt.Errorf("component %d: %w", id, ErrNotFound)
	}
	return c, nil
}

// attach stores an uploaded image. A nil upload attaches nothing.
func (s *Service) attach(ctx context.Context, upload io.Reader) (string, error) {
	if upload == nil {
		return "", nil
	}
	if s.Images == nil {
		return "", invalid("image", "image uploads are not supported")
	}

	key, err := s.Images.Attach(ctx, upload)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", &ValidationError{Field: "image", Message: err.Error()}
	}
	return key, nil
}

// detach removes an image blob. Failures are logged and discarded: the
// component change they belong to has already been decided.
func (s *Service) detach(ctx context.Context, key string, componentID int64) {
	if key == "" || s.Images == nil {
		return
	}

	if err := s.Images.Detach(context.WithoutCancel(ctx), key); err != nil {
		s.logger().Warn("failed to remove component image", "component", componentID, "image", key, "error", err)
	}
}

func (s *Service) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

// actorRef returns the actor's user id for created_by columns, or nil for
// actors that are not backed by a user row.
func actorRef(actor model.Actor) *int64 {
	if actor.UserID == 0 {
		return nil
	}
	id := actor.UserID
	return &id
}
