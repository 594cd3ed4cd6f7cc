package ledger

import (
	"time"

	"github.com/yles/portal/core"
)

// Fine is a monetary deduction against a team. Fines are never edited; a wrong fine is deleted and re-added.
type Fine struct {
	ID        string    `json:"id"`
	TeamID    string    `json:"team_id"`
	Amount    int64     `json:"amount"` // minor currency units, > 0
	Reason    string    `json:"reason"`
	IssuerID  string    `json:"admin_issuer_id"`
	CreatedAt time.Time `json:"created_at"` // UTC
}

// NewFine contains information needed to issue a Fine.
type NewFine struct {
	Amount int64  `json:"amount"` // 1..MaxAmount
	Reason string `json:"reason"`
}

// Validate cleans nf and checks it before anything is written.
func (nf *NewFine) Validate() error {
	nf.Reason = core.CleanString(nf.Reason)

	if nf.Amount <= 0 || nf.Amount > MaxAmount {
		return core.NewValidationError(ErrInvalidAmount, core.FieldError{Field: "amount", Error: ErrInvalidAmount.Error()})
	}
	if nf.Reason == "" {
		return core.NewValidationError(ErrInvalidReason, core.FieldError{Field: "reason", Error: ErrInvalidReason.Error()})
	}
	return nil
}

// Mutation is the outcome of a ledger write: the authoritative balance after the write.
type Mutation struct {
	TeamID  string `json:"team_id"`
	Fine    *Fine  `json:"fine,omitempty"`    // set by AddFine
	Removed int    `json:"removed,omitempty"` // number of fines deleted
	Balance int64  `json:"current_balance"`
}
