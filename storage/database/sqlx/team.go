package sqlxrepos

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/yles/portal/core"
	"github.com/yles/portal/core/team"
)

const teamColumns = `id, team_name, security_deposit_initial, current_balance, role, created_at`

type teamRepository struct {
	db core.DBExecutor
}

var _ team.Repository = (*teamRepository)(nil) // interface compliance check

func NewTeamRepository(db *sqlx.DB) team.Repository {
	return &teamRepository{db: db}
}

func (repo *teamRepository) CreateTeam(ctx context.Context, t team.Team) (team.Team, error) {
	const q = `
	INSERT INTO teams (` + teamColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := repo.db.ExecContext(ctx, q, t.ID, t.Name, t.SecurityDepositInitial, t.CurrentBalance, t.Role, t.CreatedAt)
	if err != nil {
		if pqCode(err) == pqUniqueViolation {
			return team.Team{}, team.ErrExists
		}
		return team.Team{}, storageErr(err, "inserting team")
	}
	return t, nil
}

func (repo *teamRepository) GetTeam(ctx context.Context, id string) (team.Team, error) {
	const q = `SELECT ` + teamColumns + ` FROM teams WHERE id = $1`

	var row teamRow
	if err := repo.db.GetContext(ctx, &row, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) || pqCode(err) == pqInvalidText {
			return team.Team{}, team.ErrNotFound
		}
		return team.Team{}, storageErr(err, "selecting team")
	}
	return row.toTeam(), nil
}

func (repo *teamRepository) QueryTeams(ctx context.Context) ([]team.Team, error) {
	q := `SELECT ` + teamColumns + ` FROM teams ORDER BY ` + core.DBOrdering{Field: "team_name", Ascending: true}.String()

	var rows []teamRow
	if err := repo.db.SelectContext(ctx, &rows, q); err != nil {
		return nil, storageErr(err, "selecting teams")
	}
	teams := make([]team.Team, 0, len(rows))
	for _, row := range rows {
		teams = append(teams, row.toTeam())
	}
	return teams, nil
}
