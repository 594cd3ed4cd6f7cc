package team

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/yles/portal/core"
	"github.com/yles/portal/core/policy"
)

// Team is a delegate team. Its ID is the id of the delegate account in the auth service.
type Team struct {
	ID                     string      `json:"id"`
	Name                   string      `json:"team_name"`
	SecurityDepositInitial int64       `json:"security_deposit_initial"` // immutable once set
	CurrentBalance         int64       `json:"current_balance"`          // derived from the fines; never hand-edited
	Role                   policy.Role `json:"role"`
	CreatedAt              time.Time   `json:"created_at"` // UTC
}

// View is a Team as seen by an actor. Balance fields are nil when the actor may not view them.
type View struct {
	ID                     string `json:"id"`
	Name                   string `json:"team_name"`
	SecurityDepositInitial *int64 `json:"security_deposit_initial,omitempty"`
	CurrentBalance         *int64 `json:"current_balance,omitempty"`
}

// ViewFor redacts t for actor.
func (t Team) ViewFor(actor policy.Actor) View {
	v := View{ID: t.ID, Name: t.Name}
	if actor.Allowed(policy.ViewBalance, t.ID) {
		v.SecurityDepositInitial = core.Int64Ptr(t.SecurityDepositInitial)
		v.CurrentBalance = core.Int64Ptr(t.CurrentBalance)
	}
	return v
}

// NewTeam contains information needed to register a Team against an existing delegate account.
type NewTeam struct {
	ID                     string `json:"id" validate:"required,uuid"`
	Name                   string `json:"team_name" validate:"notblank"`
	SecurityDepositInitial int64  `json:"security_deposit_initial" validate:"gte=0"`
}

func (nt *NewTeam) Validate(validate *validator.Validate) error {
	nt.ID = core.CleanString(nt.ID, true /* lower */)
	nt.Name = core.CleanString(nt.Name)
	return validate.Struct(nt)
}
