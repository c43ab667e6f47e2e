package partner

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"custos/pkg/domain"
	dErrors "custos/pkg/domain-errors"
	"custos/pkg/platform/sentinel"
)

// Directory is the read-mostly lookup surface over the partner registry.
// Registration is the single administrative write; everything else in custos
// treats partners as immutable.
type Directory struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

type DirectoryOption func(*Directory)

func WithLogger(logger *slog.Logger) DirectoryOption {
	return func(d *Directory) {
		d.logger = logger
	}
}

// WithClock overrides the time source for tests.
func WithClock(now func() time.Time) DirectoryOption {
	return func(d *Directory) {
		d.now = now
	}
}

func NewDirectory(store Store, opts ...DirectoryOption) *Directory {
	d := &Directory{store: store, now: time.Now}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Register creates a partner with a system-assigned id. Public keys are
// unique across the registry.
func (d *Directory) Register(ctx context.Context, key domain.ActorKey, name string, role domain.Role, contact string) (*Partner, error) {
	parsedKey, err := domain.ParseActorKey(key.String())
	if err != nil {
		return nil, err
	}

	p, err := New(domain.NewPartnerID(), parsedKey, name, role, contact, d.now())
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, dErrors.New(dErrors.CodeValidation, err.Error())
		}
		return nil, err
	}

	if err := d.store.CreateIfKeyAvailable(ctx, p); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "partner public key is already registered")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to register partner")
	}

	if d.logger != nil {
		d.logger.InfoContext(ctx, "partner registered",
			"partner_id", p.ID.String(),
			"role", p.Role.String(),
		)
	}
	return p, nil
}

// Resolve returns the partner for an id.
func (d *Directory) Resolve(ctx context.Context, id domain.PartnerID) (*Partner, error) {
	p, err := d.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "partner not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load partner")
	}
	return p, nil
}

// ResolveKey returns the partner holding a public key.
func (d *Directory) ResolveKey(ctx context.Context, key domain.ActorKey) (*Partner, error) {
	p, err := d.store.FindByKey(ctx, key)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "no partner registered for actor key")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load partner")
	}
	return p, nil
}

// ResolveAll resolves a full id set, failing when any id is unknown.
func (d *Directory) ResolveAll(ctx context.Context, ids []domain.PartnerID) ([]*Partner, error) {
	ps, err := d.store.FindByIDs(ctx, ids)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "one or more partner ids are unknown")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load partners")
	}
	return ps, nil
}

// List returns all registered partners ordered by name.
func (d *Directory) List(ctx context.Context) ([]*Partner, error) {
	ps, err := d.store.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list partners")
	}
	return ps, nil
}

// ListByRole filters the registry by role. The registry is small and
// read-mostly, so filtering over List keeps the store surface minimal.
func (d *Directory) ListByRole(ctx context.Context, role domain.Role) ([]*Partner, error) {
	if !role.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "unknown partner role: "+role.String())
	}
	ps, err := d.List(ctx)
	if err != nil {
		return nil, err
	}
	out := ps[:0]
	for _, p := range ps {
		if p.Role == role {
			out = append(out, p)
		}
	}
	return out, nil
}
