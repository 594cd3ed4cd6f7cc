package sqlxrepos

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/yles/portal/core"
	"github.com/yles/portal/core/module"
)

const moduleColumns = `id, name, day, start_time, venue, venue_map_url, description, created_at`

type moduleRepository struct {
	db core.DBExecutor
}

var _ module.Repository = (*moduleRepository)(nil) // interface compliance check

func NewModuleRepository(db *sqlx.DB) module.Repository {
	return &moduleRepository{db: db}
}

func (repo *moduleRepository) CreateModule(ctx context.Context, mod module.Module) (module.Module, error) {
	const q = `
	INSERT INTO modules (` + moduleColumns + `)
	VALUES (:id, :name, :day, :start_time, :venue, :venue_map_url, :description, :created_at)`

	if _, err := repo.db.NamedExecContext(ctx, q, newModuleRow(mod)); err != nil {
		return module.Module{}, storageErr(err, "inserting module")
	}
	return mod, nil
}

func (repo *moduleRepository) GetModule(ctx context.Context, id string) (module.Module, error) {
	const q = `SELECT ` + moduleColumns + ` FROM modules WHERE id = $1`

	var row moduleRow
	if err := repo.db.GetContext(ctx, &row, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) || pqCode(err) == pqInvalidText {
			return module.Module{}, module.ErrNotFound
		}
		return module.Module{}, storageErr(err, "selecting module")
	}
	return row.toModule(), nil
}

func (repo *moduleRepository) QueryModules(ctx context.Context) ([]module.Module, error) {
	q := `SELECT ` + moduleColumns + ` FROM modules ORDER BY ` +
		core.DBOrdering{Field: "day", Ascending: true}.String() + `, ` +
		core.DBOrdering{Field: "start_time", Ascending: true}.String() + ` NULLS LAST, ` +
		core.DBOrdering{Field: "name", Ascending: true}.String()

	var rows []moduleRow
	if err := repo.db.SelectContext(ctx, &rows, q); err != nil {
		return nil, storageErr(err, "selecting modules")
	}
	mods := make([]module.Module, 0, len(rows))
	for _, row := range rows {
		mods = append(mods, row.toModule())
	}
	return mods, nil
}

func (repo *moduleRepository) UpdateModule(ctx context.Context, mod module.Module) (module.Module, error) {
	const q = `
	UPDATE modules
	SET name = :name, day = :day, start_time = :start_time, venue = :venue,
		venue_map_url = :venue_map_url, description = :description
	WHERE id = :id`

	res, err := repo.db.NamedExecContext(ctx, q, newModuleRow(mod))
	if err != nil {
		return module.Module{}, storageErr(err, "updating module")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return module.Module{}, module.ErrNotFound
	}
	return mod, nil
}

// DeleteModule relies on ON DELETE CASCADE to drop the module's progress rows.
func (repo *moduleRepository) DeleteModule(ctx context.Context, id string) error {
	res, err := repo.db.ExecContext(ctx, `DELETE FROM modules WHERE id = $1`, id)
	if err != nil {
		if pqCode(err) == pqInvalidText {
			return module.ErrNotFound
		}
		return storageErr(err, "deleting module")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return module.ErrNotFound
	}
	return nil
}
