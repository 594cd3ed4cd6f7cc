package sqlxrepos

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/yles/portal/core"
	"github.com/yles/portal/core/module"
	"github.com/yles/portal/core/progress"
	"github.com/yles/portal/core/team"
)

const (
	progressColumns = `team_id, module_id, status, updated_at`

	// default names given by the REFERENCES clauses of team_progress
	progressTeamFK = "team_progress_team_id_fkey"
)

// missingRefErr names the row a team_progress foreign key could not find.
func missingRefErr(err error) error {
	if pqConstraint(err) == progressTeamFK {
		return team.ErrNotFound
	}
	return module.ErrNotFound
}

type progressRepository struct {
	db core.DBExecutor
}

var _ progress.Repository = (*progressRepository)(nil) // interface compliance check

func NewProgressRepository(db *sqlx.DB) progress.Repository {
	return &progressRepository{db: db}
}

func (repo *progressRepository) UpsertProgress(ctx context.Context, p progress.Progress) (progress.Progress, error) {
	const q = `
	INSERT INTO team_progress (` + progressColumns + `)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (team_id, module_id) DO UPDATE
	SET status = EXCLUDED.status, updated_at = EXCLUDED.updated_at
	RETURNING ` + progressColumns

	var row progressRow
	if err := repo.db.GetContext(ctx, &row, q, p.TeamID, p.ModuleID, p.Status, p.UpdatedAt); err != nil {
		if pqCode(err) == pqForeignKeyViolation {
			return progress.Progress{}, missingRefErr(err)
		}
		return progress.Progress{}, storageErr(err, "upserting progress")
	}
	return row.toProgress(), nil
}

func (repo *progressRepository) GetProgress(ctx context.Context, key progress.Key) (progress.Progress, error) {
	const q = `SELECT ` + progressColumns + ` FROM team_progress WHERE team_id = $1 AND module_id = $2`

	var row progressRow
	if err := repo.db.GetContext(ctx, &row, q, key.TeamID, key.ModuleID); err != nil {
		if errors.Is(err, sql.ErrNoRows) || pqCode(err) == pqInvalidText {
			return progress.Progress{}, progress.ErrNoProgress
		}
		return progress.Progress{}, storageErr(err, "selecting progress")
	}
	return row.toProgress(), nil
}

func (repo *progressRepository) TeamProgress(ctx context.Context, teamID string) (map[string]progress.Progress, error) {
	const q = `SELECT ` + progressColumns + ` FROM team_progress WHERE team_id = $1`

	var rows []progressRow
	if err := repo.db.SelectContext(ctx, &rows, q, teamID); err != nil {
		if pqCode(err) == pqInvalidText {
			return map[string]progress.Progress{}, nil
		}
		return nil, storageErr(err, "selecting progress")
	}
	recorded := make(map[string]progress.Progress, len(rows))
	for _, row := range rows {
		recorded[row.ModuleID] = row.toProgress()
	}
	return recorded, nil
}
