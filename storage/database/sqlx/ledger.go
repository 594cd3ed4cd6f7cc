package sqlxrepos

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/yles/portal/core"
	"github.com/yles/portal/core/ledger"
	"github.com/yles/portal/core/team"
)

const fineColumns = `id, team_id, amount, reason, admin_issuer_id, created_at`

type ledgerRepository struct {
	db core.DBExecutor
}

var _ ledger.Repository = (*ledgerRepository)(nil) // interface compliance check

func NewLedgerRepository(db *sqlx.DB) ledger.Repository {
	return &ledgerRepository{db: db}
}

func (repo *ledgerRepository) CreateFine(ctx context.Context, fine ledger.Fine) (ledger.Fine, error) {
	const q = `
	INSERT INTO fines (` + fineColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := repo.db.ExecContext(ctx, q, fine.ID, fine.TeamID, fine.Amount, fine.Reason, fine.IssuerID, fine.CreatedAt)
	if err != nil {
		if pqCode(err) == pqForeignKeyViolation {
			return ledger.Fine{}, team.ErrNotFound
		}
		return ledger.Fine{}, storageErr(err, "inserting fine")
	}
	return fine, nil
}

func (repo *ledgerRepository) GetFine(ctx context.Context, id string) (ledger.Fine, error) {
	const q = `SELECT ` + fineColumns + ` FROM fines WHERE id = $1`

	var row fineRow
	if err := repo.db.GetContext(ctx, &row, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) || pqCode(err) == pqInvalidText {
			return ledger.Fine{}, ledger.ErrFineNotFound
		}
		return ledger.Fine{}, storageErr(err, "selecting fine")
	}
	return row.toFine(), nil
}

func (repo *ledgerRepository) QueryFines(ctx context.Context, teamID string) ([]ledger.Fine, error) {
	q := `SELECT ` + fineColumns + ` FROM fines WHERE team_id = $1 ORDER BY ` +
		core.DBOrdering{Field: "created_at"}.String() + `, ` + core.DBOrdering{Field: "id"}.String()

	var rows []fineRow
	if err := repo.db.SelectContext(ctx, &rows, q, teamID); err != nil {
		if pqCode(err) == pqInvalidText {
			return []ledger.Fine{}, nil
		}
		return nil, storageErr(err, "selecting fines")
	}
	fines := make([]ledger.Fine, 0, len(rows))
	for _, row := range rows {
		fines = append(fines, row.toFine())
	}
	return fines, nil
}

func (repo *ledgerRepository) DeleteFine(ctx context.Context, id string) error {
	res, err := repo.db.ExecContext(ctx, `DELETE FROM fines WHERE id = $1`, id)
	if err != nil {
		if pqCode(err) == pqInvalidText {
			return ledger.ErrFineNotFound
		}
		return storageErr(err, "deleting fine")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ledger.ErrFineNotFound
	}
	return nil
}

func (repo *ledgerRepository) DeleteTeamFines(ctx context.Context, teamID string) (int, error) {
	res, err := repo.db.ExecContext(ctx, `DELETE FROM fines WHERE team_id = $1`, teamID)
	if err != nil {
		return 0, storageErr(err, "deleting team fines")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, storageErr(err, "counting deleted fines")
	}
	return int(n), nil
}

// RecalcBalance delegates to the recalculate_balance function, which locks the team row
// before summing its fines.
func (repo *ledgerRepository) RecalcBalance(ctx context.Context, teamID string) (int64, error) {
	var balance int64
	if err := repo.db.GetContext(ctx, &balance, `SELECT recalculate_balance($1)`, teamID); err != nil {
		if c := pqCode(err); c == pqNoDataFound || c == pqInvalidText {
			return 0, team.ErrNotFound
		} else if c == pqNumericOutOfRange {
			return 0, ledger.ErrBalanceOutOfRange
		}
		return 0, storageErr(err, "recalculating balance")
	}
	return balance, nil
}
