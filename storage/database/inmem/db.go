package inmemdb

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/yles/portal/core"
	"github.com/yles/portal/core/ledger"
	"github.com/yles/portal/core/module"
	"github.com/yles/portal/core/progress"
	"github.com/yles/portal/core/team"
)

type (
	// DB is an in-memory record store. Teams and fines share one lock so that a fine write
	// and the balance recompute following it never interleave with another write for the same team.
	DB struct {
		ledger  *ledgerTables
		modules *moduleTables
		down    atomic.Bool
	}

	ledgerTables struct {
		sync.RWMutex
		teams map[string]*team.Team
		fines map[string]*fineRow
		seq   uint64
	}

	fineRow struct {
		ledger.Fine
		seq uint64 // insertion order, breaks CreatedAt ties
	}

	moduleTables struct {
		sync.RWMutex
		modules  map[string]*module.Module
		progress map[progress.Key]progress.Progress
	}
)

func Open() *DB {
	return &DB{
		ledger: &ledgerTables{
			teams: make(map[string]*team.Team),
			fines: make(map[string]*fineRow),
		},
		modules: &moduleTables{
			modules:  make(map[string]*module.Module),
			progress: make(map[progress.Key]progress.Progress),
		},
	}
}

// SetUnavailable makes every subsequent call fail with core.ErrStorageUnavailable until it is reset.
func (db *DB) SetUnavailable(down bool) {
	db.down.Store(down)
}

func (db *DB) check() error {
	if db.down.Load() {
		return core.ErrStorageUnavailable
	}
	return nil
}

// Ping fails while the store is marked unavailable.
func (db *DB) Ping(_ context.Context) error {
	return db.check()
}

// Reset empties every table.
func (db *DB) Reset() {
	db.ledger.Lock()
	db.ledger.teams = make(map[string]*team.Team)
	db.ledger.fines = make(map[string]*fineRow)
	db.ledger.seq = 0
	db.ledger.Unlock()

	db.modules.Lock()
	db.modules.modules = make(map[string]*module.Module)
	db.modules.progress = make(map[progress.Key]progress.Progress)
	db.modules.Unlock()
}
