package inmemdb

import (
	"context"
	"sort"

	"github.com/yles/portal/core/module"
)

type moduleRepository struct {
	db *DB
}

var _ module.Repository = (*moduleRepository)(nil) // interface compliance check

func NewModuleRepository(db *DB) module.Repository {
	return &moduleRepository{db: db}
}

func (repo *moduleRepository) CreateModule(_ context.Context, mod module.Module) (module.Module, error) {
	if err := repo.db.check(); err != nil {
		return module.Module{}, err
	}
	tbl := repo.db.modules
	tbl.Lock()
	defer tbl.Unlock()

	tbl.modules[mod.ID] = &mod
	return mod, nil
}

func (repo *moduleRepository) GetModule(_ context.Context, id string) (module.Module, error) {
	if err := repo.db.check(); err != nil {
		return module.Module{}, err
	}
	tbl := repo.db.modules
	tbl.RLock()
	defer tbl.RUnlock()

	if mod, ok := tbl.modules[id]; ok {
		return *mod, nil
	}
	return module.Module{}, module.ErrNotFound
}

func (repo *moduleRepository) QueryModules(_ context.Context) ([]module.Module, error) {
	if err := repo.db.check(); err != nil {
		return nil, err
	}
	tbl := repo.db.modules
	tbl.RLock()
	defer tbl.RUnlock()

	mods := make([]module.Module, 0, len(tbl.modules))
	for _, mod := range tbl.modules {
		mods = append(mods, *mod)
	}
	sort.Slice(mods, func(i, j int) bool { return module.Less(mods[i], mods[j]) })
	return mods, nil
}

func (repo *moduleRepository) UpdateModule(_ context.Context, mod module.Module) (module.Module, error) {
	if err := repo.db.check(); err != nil {
		return module.Module{}, err
	}
	tbl := repo.db.modules
	tbl.Lock()
	defer tbl.Unlock()

	if _, ok := tbl.modules[mod.ID]; !ok {
		return module.Module{}, module.ErrNotFound
	}
	tbl.modules[mod.ID] = &mod
	return mod, nil
}

func (repo *moduleRepository) DeleteModule(_ context.Context, id string) error {
	if err := repo.db.check(); err != nil {
		return err
	}
	tbl := repo.db.modules
	tbl.Lock()
	defer tbl.Unlock()

	if _, ok := tbl.modules[id]; !ok {
		return module.ErrNotFound
	}
	delete(tbl.modules, id)
	for key := range tbl.progress {
		if key.ModuleID == id {
			delete(tbl.progress, key)
		}
	}
	return nil
}
