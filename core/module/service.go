package module

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/yles/portal/core"
	"github.com/yles/portal/core/policy"
)

var (
	// errors
	ErrNotFound = errors.New("module not found")
)

type (
	Repository interface {
		CreateModule(ctx context.Context, mod Module) (Module, error)
		// GetModule returns ErrNotFound if no module has this id.
		GetModule(ctx context.Context, id string) (Module, error)
		// QueryModules returns all modules ordered by day, start time and name.
		QueryModules(ctx context.Context) ([]Module, error)
		UpdateModule(ctx context.Context, mod Module) (Module, error)
		// DeleteModule also drops the progress recorded against the module.
		DeleteModule(ctx context.Context, id string) error
	}

	Service struct {
		repo    Repository
		nowFunc func() time.Time
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo, nowFunc: time.Now}
}

// Query lists the schedule. Every known role may read it.
func (svc *Service) Query(ctx context.Context, actor policy.Actor) ([]Module, error) {
	if !policy.IsKnown(actor.Role) {
		return nil, errors.Wrap(core.ErrForbidden, "listing modules")
	}
	mods, err := svc.repo.QueryModules(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "querying modules")
	}
	return mods, nil
}

func (svc *Service) Get(ctx context.Context, actor policy.Actor, id string) (Module, error) {
	if !policy.IsKnown(actor.Role) {
		return Module{}, errors.Wrap(core.ErrForbidden, "viewing module")
	}
	return svc.repo.GetModule(ctx, id)
}

// Create expects nm to have been validated.
func (svc *Service) Create(ctx context.Context, actor policy.Actor, nm NewModule) (Module, error) {
	if err := policy.Check(actor, policy.ManageModules, ""); err != nil {
		return Module{}, err
	}
	mod := Module{
		ID:          uuid.New().String(),
		Name:        nm.Name,
		Day:         nm.Day,
		StartTime:   nm.StartTime,
		Venue:       nm.Venue,
		VenueMapURL: nm.VenueMapURL,
		Description: nm.Description,
		CreatedAt:   svc.nowFunc().UTC(),
	}
	return svc.repo.CreateModule(ctx, mod)
}

// Update replaces every editable field of a module. nm is expected to have been validated.
func (svc *Service) Update(ctx context.Context, actor policy.Actor, id string, nm NewModule) (Module, error) {
	if err := policy.Check(actor, policy.ManageModules, ""); err != nil {
		return Module{}, err
	}
	mod, err := svc.repo.GetModule(ctx, id)
	if err != nil {
		return Module{}, errors.Wrap(err, "finding module")
	}
	mod.Name = nm.Name
	mod.Day = nm.Day
	mod.StartTime = nm.StartTime
	mod.Venue = nm.Venue
	mod.VenueMapURL = nm.VenueMapURL
	mod.Description = nm.Description
	return svc.repo.UpdateModule(ctx, mod)
}

func (svc *Service) Delete(ctx context.Context, actor policy.Actor, id string) error {
	if err := policy.Check(actor, policy.ManageModules, ""); err != nil {
		return err
	}
	return svc.repo.DeleteModule(ctx, id)
}
