package team

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/yles/portal/core"
	"github.com/yles/portal/core/policy"
)

var (
	// errors
	ErrNotFound = errors.New("team not found")
	ErrExists   = errors.New("a team with this id already exists")
)

type (
	Repository interface {
		CreateTeam(ctx context.Context, team Team) (Team, error)
		// GetTeam returns ErrNotFound if no team has this id.
		GetTeam(ctx context.Context, id string) (Team, error)
		// QueryTeams returns all teams ordered by name.
		QueryTeams(ctx context.Context) ([]Team, error)
	}

	Service struct {
		repo    Repository
		nowFunc func() time.Time
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo, nowFunc: time.Now}
}

// Create registers a team. Its balance starts at the initial deposit.
func (svc *Service) Create(ctx context.Context, nt NewTeam) (Team, error) {
	if _, err := svc.repo.GetTeam(ctx, nt.ID); err == nil {
		return Team{}, core.NewValidationError(ErrExists, core.FieldError{Field: "id", Error: ErrExists.Error()})
	} else if !errors.Is(err, ErrNotFound) {
		return Team{}, errors.Wrap(err, "finding team")
	}

	t := Team{
		ID:                     nt.ID,
		Name:                   nt.Name,
		SecurityDepositInitial: nt.SecurityDepositInitial,
		CurrentBalance:         nt.SecurityDepositInitial,
		Role:                   policy.RoleDelegate,
		CreatedAt:              svc.nowFunc().UTC(),
	}
	return svc.repo.CreateTeam(ctx, t)
}

// Get returns the team as the actor may see it.
// Staff see every team; a delegate only sees their own.
func (svc *Service) Get(ctx context.Context, actor policy.Actor, id string) (View, error) {
	if !policy.IsStaff(actor.Role) && !actor.Owns(id) {
		return View{}, errors.Wrap(core.ErrForbidden, "viewing team")
	}
	t, err := svc.repo.GetTeam(ctx, id)
	if err != nil {
		return View{}, errors.Wrap(err, "finding team")
	}
	return t.ViewFor(actor), nil
}

// Query lists all teams for staff.
func (svc *Service) Query(ctx context.Context, actor policy.Actor) ([]View, error) {
	if !policy.IsStaff(actor.Role) {
		return nil, errors.Wrap(core.ErrForbidden, "listing teams")
	}
	teams, err := svc.repo.QueryTeams(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "querying teams")
	}
	views := make([]View, 0, len(teams))
	for _, t := range teams {
		views = append(views, t.ViewFor(actor))
	}
	return views, nil
}
