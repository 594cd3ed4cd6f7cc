package inmemdb

import (
	"context"
	"math"
	"sort"

	"github.com/yles/portal/core/ledger"
	"github.com/yles/portal/core/team"
)

type ledgerRepository struct {
	db *DB
}

var _ ledger.Repository = (*ledgerRepository)(nil) // interface compliance check

func NewLedgerRepository(db *DB) ledger.Repository {
	return &ledgerRepository{db: db}
}

func (repo *ledgerRepository) CreateFine(_ context.Context, fine ledger.Fine) (ledger.Fine, error) {
	if err := repo.db.check(); err != nil {
		return ledger.Fine{}, err
	}
	tbl := repo.db.ledger
	tbl.Lock()
	defer tbl.Unlock()

	if _, ok := tbl.teams[fine.TeamID]; !ok {
		return ledger.Fine{}, team.ErrNotFound
	}
	tbl.seq++
	tbl.fines[fine.ID] = &fineRow{Fine: fine, seq: tbl.seq}
	return fine, nil
}

func (repo *ledgerRepository) GetFine(_ context.Context, id string) (ledger.Fine, error) {
	if err := repo.db.check(); err != nil {
		return ledger.Fine{}, err
	}
	tbl := repo.db.ledger
	tbl.RLock()
	defer tbl.RUnlock()

	if row, ok := tbl.fines[id]; ok {
		return row.Fine, nil
	}
	return ledger.Fine{}, ledger.ErrFineNotFound
}

func (repo *ledgerRepository) QueryFines(_ context.Context, teamID string) ([]ledger.Fine, error) {
	if err := repo.db.check(); err != nil {
		return nil, err
	}
	tbl := repo.db.ledger
	tbl.RLock()
	defer tbl.RUnlock()

	rows := make([]*fineRow, 0)
	for _, row := range tbl.fines {
		if row.TeamID == teamID {
			rows = append(rows, row)
		}
	}
	// newest first
	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].CreatedAt.Equal(rows[j].CreatedAt) {
			return rows[i].CreatedAt.After(rows[j].CreatedAt)
		}
		return rows[i].seq > rows[j].seq
	})

	fines := make([]ledger.Fine, 0, len(rows))
	for _, row := range rows {
		fines = append(fines, row.Fine)
	}
	return fines, nil
}

func (repo *ledgerRepository) DeleteFine(_ context.Context, id string) error {
	if err := repo.db.check(); err != nil {
		return err
	}
	tbl := repo.db.ledger
	tbl.Lock()
	defer tbl.Unlock()

	if _, ok := tbl.fines[id]; !ok {
		return ledger.ErrFineNotFound
	}
	delete(tbl.fines, id)
	return nil
}

func (repo *ledgerRepository) DeleteTeamFines(_ context.Context, teamID string) (int, error) {
	if err := repo.db.check(); err != nil {
		return 0, err
	}
	tbl := repo.db.ledger
	tbl.Lock()
	defer tbl.Unlock()

	n := 0
	for id, row := range tbl.fines {
		if row.TeamID == teamID {
			delete(tbl.fines, id)
			n++
		}
	}
	return n, nil
}

// RecalcBalance sums the team's fines under the write lock, so the result reflects every
// write that completed before it and none that started after.
func (repo *ledgerRepository) RecalcBalance(_ context.Context, teamID string) (int64, error) {
	if err := repo.db.check(); err != nil {
		return 0, err
	}
	tbl := repo.db.ledger
	tbl.Lock()
	defer tbl.Unlock()

	t, ok := tbl.teams[teamID]
	if !ok {
		return 0, team.ErrNotFound
	}
	var total int64
	for _, row := range tbl.fines {
		if row.TeamID != teamID {
			continue
		}
		if row.Amount > math.MaxInt64-total {
			return 0, ledger.ErrBalanceOutOfRange
		}
		total += row.Amount
	}
	t.CurrentBalance = t.SecurityDepositInitial - total
	return t.CurrentBalance, nil
}
