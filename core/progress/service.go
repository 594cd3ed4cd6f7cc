package progress

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/yles/portal/core"
	"github.com/yles/portal/core/module"
	"github.com/yles/portal/core/policy"
	"github.com/yles/portal/core/team"
)

type (
	Repository interface {
		// UpsertProgress creates or overwrites the record keyed by (team, module).
		UpsertProgress(ctx context.Context, p Progress) (Progress, error)
		// GetProgress returns ErrNoProgress if nothing is recorded for key.
		GetProgress(ctx context.Context, key Key) (Progress, error)
		// TeamProgress returns the recorded statuses of a team keyed by module id.
		// Modules missing from the map are upcoming.
		TeamProgress(ctx context.Context, teamID string) (map[string]Progress, error)
	}

	TeamFinder interface {
		GetTeam(ctx context.Context, id string) (team.Team, error)
	}

	ModuleFinder interface {
		GetModule(ctx context.Context, id string) (module.Module, error)
		QueryModules(ctx context.Context) ([]module.Module, error)
	}

	Service struct {
		repo    Repository
		teams   TeamFinder
		modules ModuleFinder
		nowFunc func() time.Time
	}
)

func NewService(repo Repository, teams TeamFinder, modules ModuleFinder) *Service {
	return &Service{repo: repo, teams: teams, modules: modules, nowFunc: time.Now}
}

// SetStatus records a team's status on a module.
// Setting the status a record already has is a successful no-op returning the stored record.
func (svc *Service) SetStatus(ctx context.Context, actor policy.Actor, teamID, moduleID, status string) (Progress, error) {
	if err := policy.Check(actor, policy.ManageModules, teamID); err != nil {
		return Progress{}, err
	}
	st, err := ParseStatus(status)
	if err != nil {
		return Progress{}, err
	}
	if _, err := svc.teams.GetTeam(ctx, teamID); err != nil {
		return Progress{}, errors.Wrap(err, "finding team")
	}
	if _, err := svc.modules.GetModule(ctx, moduleID); err != nil {
		return Progress{}, errors.Wrap(err, "finding module")
	}

	curr, err := svc.repo.GetProgress(ctx, Key{TeamID: teamID, ModuleID: moduleID})
	switch {
	case err == nil:
		if curr.Status == st {
			return curr, nil
		}
	case !errors.Is(err, ErrNoProgress):
		return Progress{}, errors.Wrap(err, "finding progress")
	}

	p, err := svc.repo.UpsertProgress(ctx, Progress{
		TeamID:    teamID,
		ModuleID:  moduleID,
		Status:    st,
		UpdatedAt: svc.nowFunc().UTC(),
	})
	if err != nil {
		return Progress{}, errors.Wrap(err, "upserting progress")
	}
	return p, nil
}

// Board lists every module with the team's status on it.
// Module managers see every team; a delegate sees their own.
func (svc *Service) Board(ctx context.Context, actor policy.Actor, teamID string) ([]Entry, error) {
	if !actor.Allowed(policy.ManageModules, teamID) && !actor.Owns(teamID) {
		return nil, errors.Wrap(core.ErrForbidden, "viewing progress")
	}
	if _, err := svc.teams.GetTeam(ctx, teamID); err != nil {
		return nil, errors.Wrap(err, "finding team")
	}

	mods, err := svc.modules.QueryModules(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "querying modules")
	}
	recorded, err := svc.repo.TeamProgress(ctx, teamID)
	if err != nil {
		return nil, errors.Wrap(err, "querying progress")
	}

	board := make([]Entry, 0, len(mods))
	for _, mod := range mods {
		st := StatusUpcoming
		if p, ok := recorded[mod.ID]; ok {
			st = p.Status
		}
		board = append(board, Entry{Module: mod, Status: st})
	}
	return board, nil
}
