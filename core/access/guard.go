// Package access is the single entry point callers use to authorize and run team actions.
// It holds no state of its own: it evaluates the policy table and delegates to the progress and ledger services.
package access

import (
	"context"

	"github.com/pkg/errors"

	"github.com/yles/portal/core"
	"github.com/yles/portal/core/ledger"
	"github.com/yles/portal/core/policy"
	"github.com/yles/portal/core/progress"
)

// Section is a part of the team view a client may render.
type Section string

const (
	SectionBalance        Section = "balance"
	SectionModules        Section = "modules"
	SectionFines          Section = "fines"
	SectionFineControls   Section = "fine_controls"
	SectionDeleteControls Section = "delete_controls"
	// SectionBoard is the team's module progress board, also shown to the owning delegate.
	SectionBoard Section = "board"
)

var sectionCapabilities = []struct {
	section Section
	cap     policy.Capability
}{
	{SectionBalance, policy.ViewBalance},
	{SectionModules, policy.ManageModules},
	{SectionFines, policy.ViewFines},
	{SectionFineControls, policy.AddFine},
	{SectionDeleteControls, policy.DeleteFine},
}

// Action names a team action dispatched by Do.
type Action string

const (
	ActionSetStatus  Action = "set_status"
	ActionAddFine    Action = "add_fine"
	ActionDeleteFine Action = "delete_fine"
	ActionWipeFines  Action = "wipe_fines"
	ActionListFines  Action = "list_fines"
	ActionRecalc     Action = "recalc"
)

var (
	// errors
	ErrUnknownAction = errors.New("unknown action")
)

// actionCapabilities lists, per action, the capabilities of which at least one is needed.
var actionCapabilities = map[Action][]policy.Capability{
	ActionSetStatus:  {policy.ManageModules},
	ActionAddFine:    {policy.AddFine},
	ActionDeleteFine: {policy.DeleteFine},
	ActionWipeFines:  {policy.DeleteFine},
	ActionListFines:  {policy.ViewFines},
	ActionRecalc:     {policy.AddFine, policy.DeleteFine},
}

type (
	Ledger interface {
		AddFine(ctx context.Context, actor policy.Actor, teamID string, nf ledger.NewFine) (ledger.Mutation, error)
		DeleteFine(ctx context.Context, actor policy.Actor, fineID string) (ledger.Mutation, error)
		WipeFines(ctx context.Context, actor policy.Actor, teamID string) (ledger.Mutation, error)
		ListFines(ctx context.Context, actor policy.Actor, teamID string) ([]ledger.Fine, error)
		Recalc(ctx context.Context, actor policy.Actor, teamID string) (ledger.Mutation, error)
	}

	Progress interface {
		SetStatus(ctx context.Context, actor policy.Actor, teamID, moduleID, status string) (progress.Progress, error)
	}

	// Request is an action an actor wants to run against a team.
	Request struct {
		Action   Action
		TeamID   string
		ModuleID string // ActionSetStatus
		Status   string // ActionSetStatus
		FineID   string // ActionDeleteFine; TeamID is then ignored
		Fine     ledger.NewFine
	}

	// Result carries the authoritative state after the action ran.
	Result struct {
		Progress *progress.Progress `json:"progress,omitempty"`
		Mutation *ledger.Mutation   `json:"mutation,omitempty"`
		Fines    []ledger.Fine      `json:"fines,omitempty"`
	}

	Guard struct {
		ledger   Ledger
		progress Progress
	}
)

func NewGuard(ledger Ledger, progress Progress) *Guard {
	return &Guard{ledger: ledger, progress: progress}
}

// Authorize returns core.ErrForbidden unless actor holds c for teamID.
func (g *Guard) Authorize(actor policy.Actor, c policy.Capability, teamID string) error {
	return policy.Check(actor, c, teamID)
}

// VisibleSections lists the sections of teamID's view the actor may see.
// An empty teamID stands for the actor's own scope.
func (g *Guard) VisibleSections(actor policy.Actor, teamID string) []Section {
	if teamID == "" {
		teamID = actor.ID
	}
	sections := make([]Section, 0, len(sectionCapabilities)+1)
	for _, sc := range sectionCapabilities {
		if actor.Allowed(sc.cap, teamID) {
			sections = append(sections, sc.section)
		}
	}
	if actor.Allowed(policy.ManageModules, teamID) || actor.Owns(teamID) {
		sections = append(sections, SectionBoard)
	}
	return sections
}

// Do authorizes req then runs it.
// Authorization and validation failures happen before anything is written.
func (g *Guard) Do(ctx context.Context, actor policy.Actor, req Request) (Result, error) {
	caps, ok := actionCapabilities[req.Action]
	if !ok {
		return Result{}, core.NewValidationError(ErrUnknownAction, core.FieldError{Field: "action", Error: ErrUnknownAction.Error()})
	}
	teamID := req.TeamID
	if req.Action == ActionDeleteFine {
		// the fine's team is only known once it is loaded; the ledger checks it then
		teamID = ""
		if !hasAny(policy.CapabilitiesFor(actor.Role), caps) {
			return Result{}, policy.CheckAny(actor, teamID, caps...)
		}
	} else if err := policy.CheckAny(actor, teamID, caps...); err != nil {
		return Result{}, err
	}

	switch req.Action {
	case ActionSetStatus:
		p, err := g.progress.SetStatus(ctx, actor, req.TeamID, req.ModuleID, req.Status)
		if err != nil {
			return Result{}, err
		}
		return Result{Progress: &p}, nil
	case ActionListFines:
		fines, err := g.ledger.ListFines(ctx, actor, req.TeamID)
		if err != nil {
			return Result{}, err
		}
		return Result{Fines: fines}, nil
	}

	var (
		mut ledger.Mutation
		err error
	)
	switch req.Action {
	case ActionAddFine:
		mut, err = g.ledger.AddFine(ctx, actor, req.TeamID, req.Fine)
	case ActionDeleteFine:
		mut, err = g.ledger.DeleteFine(ctx, actor, req.FineID)
	case ActionWipeFines:
		mut, err = g.ledger.WipeFines(ctx, actor, req.TeamID)
	case ActionRecalc:
		mut, err = g.ledger.Recalc(ctx, actor, req.TeamID)
	}
	if err != nil && mut.TeamID == "" {
		return Result{}, err
	}
	// a *ledger.BalanceSyncError still carries the applied mutation
	return Result{Mutation: &mut}, err
}

func hasAny(set policy.CapabilitySet, caps []policy.Capability) bool {
	for _, c := range caps {
		if set.Has(c) {
			return true
		}
	}
	return false
}
