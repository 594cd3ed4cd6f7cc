package sqlxrepos

import (
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/yles/portal/core/ledger"
	"github.com/yles/portal/core/module"
	"github.com/yles/portal/core/policy"
	"github.com/yles/portal/core/progress"
	"github.com/yles/portal/core/team"
)

type (
	teamRow struct {
		ID                     string    `db:"id"`
		Name                   string    `db:"team_name"`
		SecurityDepositInitial int64     `db:"security_deposit_initial"`
		CurrentBalance         int64     `db:"current_balance"`
		Role                   string    `db:"role"`
		CreatedAt              time.Time `db:"created_at"`
	}

	fineRow struct {
		ID        string    `db:"id"`
		TeamID    string    `db:"team_id"`
		Amount    int64     `db:"amount"`
		Reason    string    `db:"reason"`
		IssuerID  string    `db:"admin_issuer_id"`
		CreatedAt time.Time `db:"created_at"`
	}

	moduleRow struct {
		ID          string      `db:"id"`
		Name        string      `db:"name"`
		Day         int         `db:"day"`
		StartTime   null.Time   `db:"start_time"`
		Venue       null.String `db:"venue"`
		VenueMapURL null.String `db:"venue_map_url"`
		Description null.String `db:"description"`
		CreatedAt   time.Time   `db:"created_at"`
	}

	progressRow struct {
		TeamID    string    `db:"team_id"`
		ModuleID  string    `db:"module_id"`
		Status    string    `db:"status"`
		UpdatedAt time.Time `db:"updated_at"`
	}
)

func (row teamRow) toTeam() team.Team {
	return team.Team{
		ID:                     row.ID,
		Name:                   row.Name,
		SecurityDepositInitial: row.SecurityDepositInitial,
		CurrentBalance:         row.CurrentBalance,
		Role:                   policy.Role(row.Role),
		CreatedAt:              row.CreatedAt.UTC(),
	}
}

func (row fineRow) toFine() ledger.Fine {
	return ledger.Fine{
		ID:        row.ID,
		TeamID:    row.TeamID,
		Amount:    row.Amount,
		Reason:    row.Reason,
		IssuerID:  row.IssuerID,
		CreatedAt: row.CreatedAt.UTC(),
	}
}

func newModuleRow(mod module.Module) moduleRow {
	return moduleRow{
		ID:          mod.ID,
		Name:        mod.Name,
		Day:         mod.Day,
		StartTime:   null.TimeFromPtr(mod.StartTime),
		Venue:       optString(mod.Venue),
		VenueMapURL: optString(mod.VenueMapURL),
		Description: optString(mod.Description),
		CreatedAt:   mod.CreatedAt,
	}
}

func (row moduleRow) toModule() module.Module {
	mod := module.Module{
		ID:          row.ID,
		Name:        row.Name,
		Day:         row.Day,
		Venue:       row.Venue.String,
		VenueMapURL: row.VenueMapURL.String,
		Description: row.Description.String,
		CreatedAt:   row.CreatedAt.UTC(),
	}
	if row.StartTime.Valid {
		st := row.StartTime.Time.UTC()
		mod.StartTime = &st
	}
	return mod
}

func (row progressRow) toProgress() progress.Progress {
	return progress.Progress{
		TeamID:    row.TeamID,
		ModuleID:  row.ModuleID,
		Status:    progress.Status(row.Status),
		UpdatedAt: row.UpdatedAt.UTC(),
	}
}

// optString stores empty strings as NULL.
func optString(s string) null.String {
	return null.NewString(s, s != "")
}
