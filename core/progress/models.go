package progress

import (
	"time"

	"github.com/pkg/errors"

	"github.com/yles/portal/core"
	"github.com/yles/portal/core/module"
)

// Status of a team on a module. Every status can be reached from every other one.
type Status string

const (
	StatusUpcoming   Status = "upcoming" // default when nothing is recorded
	StatusCompleted  Status = "completed"
	StatusEliminated Status = "eliminated"
)

var Statuses = []Status{StatusUpcoming, StatusCompleted, StatusEliminated}

var (
	// errors
	ErrInvalidStatus = errors.New("status must be one of upcoming, completed, eliminated")
	ErrNoProgress    = errors.New("no progress recorded")
)

// ParseStatus returns ErrInvalidStatus (as a core.ValidationError) for values outside the closed set.
func ParseStatus(s string) (Status, error) {
	st := Status(core.CleanString(s, true /* lower */))
	for _, known := range Statuses {
		if st == known {
			return st, nil
		}
	}
	return "", core.NewValidationError(ErrInvalidStatus, core.FieldError{Field: "status", Error: ErrInvalidStatus.Error()})
}

// Key identifies a Progress record.
type Key struct {
	TeamID   string
	ModuleID string
}

// Progress is a team's status on one module.
type Progress struct {
	TeamID    string    `json:"team_id"`
	ModuleID  string    `json:"module_id"`
	Status    Status    `json:"status"`
	UpdatedAt time.Time `json:"updated_at"` // UTC; zero when nothing is recorded
}

func (p Progress) Key() Key { return Key{TeamID: p.TeamID, ModuleID: p.ModuleID} }

// StatusUpdate is the body of a status change request.
type StatusUpdate struct {
	Status string `json:"status" validate:"required"`
}

// Entry is a module alongside the team's status on it.
type Entry struct {
	module.Module
	Status Status `json:"status"`
}
