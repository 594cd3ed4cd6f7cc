package inmemdb

import (
	"context"

	"github.com/yles/portal/core/module"
	"github.com/yles/portal/core/progress"
)

type progressRepository struct {
	db *DB
}

var _ progress.Repository = (*progressRepository)(nil) // interface compliance check

func NewProgressRepository(db *DB) progress.Repository {
	return &progressRepository{db: db}
}

func (repo *progressRepository) UpsertProgress(_ context.Context, p progress.Progress) (progress.Progress, error) {
	if err := repo.db.check(); err != nil {
		return progress.Progress{}, err
	}
	tbl := repo.db.modules
	tbl.Lock()
	defer tbl.Unlock()

	if _, ok := tbl.modules[p.ModuleID]; !ok {
		return progress.Progress{}, module.ErrNotFound
	}
	tbl.progress[p.Key()] = p
	return p, nil
}

func (repo *progressRepository) GetProgress(_ context.Context, key progress.Key) (progress.Progress, error) {
	if err := repo.db.check(); err != nil {
		return progress.Progress{}, err
	}
	tbl := repo.db.modules
	tbl.RLock()
	defer tbl.RUnlock()

	if p, ok := tbl.progress[key]; ok {
		return p, nil
	}
	return progress.Progress{}, progress.ErrNoProgress
}

func (repo *progressRepository) TeamProgress(_ context.Context, teamID string) (map[string]progress.Progress, error) {
	if err := repo.db.check(); err != nil {
		return nil, err
	}
	tbl := repo.db.modules
	tbl.RLock()
	defer tbl.RUnlock()

	recorded := make(map[string]progress.Progress)
	for key, p := range tbl.progress {
		if key.TeamID == teamID {
			recorded[key.ModuleID] = p
		}
	}
	return recorded, nil
}
