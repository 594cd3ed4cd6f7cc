package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/yles/portal/core"
	"github.com/yles/portal/core/policy"
	"github.com/yles/portal/core/team"
)

// ledger operations, as reported to the Recorder
const (
	OpAddFine    = "add_fine"
	OpDeleteFine = "delete_fine"
	OpWipeFines  = "wipe_fines"
	OpRecalc     = "recalc"
)

// mutation outcomes, as reported to the Recorder
const (
	OutcomeOK         = "ok"
	OutcomeRejected   = "rejected"
	OutcomeError      = "error"
	OutcomeSyncFailed = "sync_failed"
)

type (
	Repository interface {
		CreateFine(ctx context.Context, fine Fine) (Fine, error)
		// GetFine returns ErrFineNotFound if no fine has this id.
		GetFine(ctx context.Context, id string) (Fine, error)
		// QueryFines returns the team's fines, newest first.
		QueryFines(ctx context.Context, teamID string) ([]Fine, error)
		// DeleteFine returns ErrFineNotFound if no fine has this id.
		DeleteFine(ctx context.Context, id string) error
		DeleteTeamFines(ctx context.Context, teamID string) (int, error)
		// RecalcBalance sets the team's balance to its initial deposit minus the sum of all its fines,
		// atomically with respect to concurrent fine writes for that team, and returns it.
		RecalcBalance(ctx context.Context, teamID string) (int64, error)
	}

	// TeamFinder is the part of team.Repository the ledger needs.
	TeamFinder interface {
		GetTeam(ctx context.Context, id string) (team.Team, error)
	}

	// Recorder receives one call per attempted ledger mutation.
	Recorder interface {
		RecordLedgerMutation(op, outcome string)
	}

	Service struct {
		repo     Repository
		teams    TeamFinder
		logger   core.Logger
		recorder Recorder
		nowFunc  func() time.Time
	}
)

func NewService(repo Repository, teams TeamFinder, logger core.Logger, recorder Recorder) *Service {
	return &Service{
		repo:     repo,
		teams:    teams,
		logger:   logger,
		recorder: recorder,
		nowFunc:  time.Now,
	}
}

// AddFine issues a fine against a team then recomputes the team's balance.
// If the recompute fails the fine stays recorded: the returned Mutation carries it along with a *BalanceSyncError.
func (svc *Service) AddFine(ctx context.Context, actor policy.Actor, teamID string, nf NewFine) (Mutation, error) {
	if err := policy.Check(actor, policy.AddFine, teamID); err != nil {
		svc.record(OpAddFine, OutcomeRejected)
		return Mutation{}, err
	}
	if err := nf.Validate(); err != nil {
		svc.record(OpAddFine, OutcomeRejected)
		return Mutation{}, err
	}
	if _, err := svc.teams.GetTeam(ctx, teamID); err != nil {
		svc.record(OpAddFine, outcomeOf(err))
		return Mutation{}, errors.Wrap(err, "finding team")
	}

	fine, err := svc.repo.CreateFine(ctx, Fine{
		ID:        uuid.New().String(),
		TeamID:    teamID,
		Amount:    nf.Amount,
		Reason:    nf.Reason,
		IssuerID:  actor.ID,
		CreatedAt: svc.nowFunc().UTC(),
	})
	if err != nil {
		svc.record(OpAddFine, OutcomeError)
		return Mutation{}, errors.Wrap(err, "inserting fine")
	}

	mut := Mutation{TeamID: teamID, Fine: &fine}
	mut.Balance, err = svc.recalc(ctx, actor, OpAddFine, teamID)
	return mut, err
}

// DeleteFine removes a fine then recomputes its team's balance.
func (svc *Service) DeleteFine(ctx context.Context, actor policy.Actor, fineID string) (Mutation, error) {
	// capability first so that unauthorized callers cannot probe for fine ids
	if !policy.CapabilitiesFor(actor.Role).Has(policy.DeleteFine) {
		svc.record(OpDeleteFine, OutcomeRejected)
		return Mutation{}, policy.Check(actor, policy.DeleteFine, "")
	}
	fine, err := svc.repo.GetFine(ctx, fineID)
	if err != nil {
		svc.record(OpDeleteFine, outcomeOf(err))
		return Mutation{}, errors.Wrap(err, "finding fine")
	}
	if err := policy.Check(actor, policy.DeleteFine, fine.TeamID); err != nil {
		svc.record(OpDeleteFine, OutcomeRejected)
		return Mutation{}, err
	}

	if err := svc.repo.DeleteFine(ctx, fine.ID); err != nil {
		svc.record(OpDeleteFine, outcomeOf(err))
		return Mutation{}, errors.Wrap(err, "deleting fine")
	}

	mut := Mutation{TeamID: fine.TeamID, Removed: 1}
	mut.Balance, err = svc.recalc(ctx, actor, OpDeleteFine, fine.TeamID)
	return mut, err
}

// WipeFines deletes every fine of a team; the balance goes back to the initial deposit.
// The action is irreversible: callers are expected to have confirmed it.
func (svc *Service) WipeFines(ctx context.Context, actor policy.Actor, teamID string) (Mutation, error) {
	if err := policy.Check(actor, policy.DeleteFine, teamID); err != nil {
		svc.record(OpWipeFines, OutcomeRejected)
		return Mutation{}, err
	}
	if _, err := svc.teams.GetTeam(ctx, teamID); err != nil {
		svc.record(OpWipeFines, outcomeOf(err))
		return Mutation{}, errors.Wrap(err, "finding team")
	}

	n, err := svc.repo.DeleteTeamFines(ctx, teamID)
	if err != nil {
		svc.record(OpWipeFines, OutcomeError)
		return Mutation{}, errors.Wrap(err, "deleting team fines")
	}

	mut := Mutation{TeamID: teamID, Removed: n}
	mut.Balance, err = svc.recalc(ctx, actor, OpWipeFines, teamID)
	return mut, err
}

// ListFines returns a team's fines, newest first.
func (svc *Service) ListFines(ctx context.Context, actor policy.Actor, teamID string) ([]Fine, error) {
	if err := policy.Check(actor, policy.ViewFines, teamID); err != nil {
		return nil, err
	}
	if _, err := svc.teams.GetTeam(ctx, teamID); err != nil {
		return nil, errors.Wrap(err, "finding team")
	}
	fines, err := svc.repo.QueryFines(ctx, teamID)
	if err != nil {
		return nil, errors.Wrap(err, "querying fines")
	}
	return fines, nil
}

// Recalc recomputes a team's balance without touching its fines.
// It is the retry path after a *BalanceSyncError.
func (svc *Service) Recalc(ctx context.Context, actor policy.Actor, teamID string) (Mutation, error) {
	if err := policy.CheckAny(actor, teamID, policy.AddFine, policy.DeleteFine); err != nil {
		svc.record(OpRecalc, OutcomeRejected)
		return Mutation{}, err
	}
	if _, err := svc.teams.GetTeam(ctx, teamID); err != nil {
		svc.record(OpRecalc, outcomeOf(err))
		return Mutation{}, errors.Wrap(err, "finding team")
	}

	mut := Mutation{TeamID: teamID}
	var err error
	mut.Balance, err = svc.recalc(ctx, actor, OpRecalc, teamID)
	return mut, err
}

// recalc runs after the triggering write has returned, never before.
func (svc *Service) recalc(ctx context.Context, actor policy.Actor, op, teamID string) (int64, error) {
	balance, err := svc.repo.RecalcBalance(ctx, teamID)
	if err != nil {
		svc.record(op, OutcomeSyncFailed)
		syncErr := &BalanceSyncError{Op: op, TeamID: teamID, Err: err}
		svc.logger.Error("ledger: balance recompute failed", syncErr, map[string]interface{}{
			"op":      op,
			"team_id": teamID,
		}, actor)
		return 0, syncErr
	}
	svc.record(op, OutcomeOK)
	return balance, nil
}

func (svc *Service) record(op, outcome string) {
	if svc.recorder != nil {
		svc.recorder.RecordLedgerMutation(op, outcome)
	}
}

func outcomeOf(err error) string {
	if errors.Is(err, team.ErrNotFound) || errors.Is(err, ErrFineNotFound) {
		return OutcomeRejected
	}
	return OutcomeError
}
