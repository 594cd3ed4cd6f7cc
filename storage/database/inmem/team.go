package inmemdb

import (
	"context"
	"sort"

	"github.com/yles/portal/core/team"
)

type teamRepository struct {
	db *DB
}

var _ team.Repository = (*teamRepository)(nil) // interface compliance check

func NewTeamRepository(db *DB) team.Repository {
	return &teamRepository{db: db}
}

func (repo *teamRepository) CreateTeam(_ context.Context, t team.Team) (team.Team, error) {
	if err := repo.db.check(); err != nil {
		return team.Team{}, err
	}
	tbl := repo.db.ledger
	tbl.Lock()
	defer tbl.Unlock()

	if _, ok := tbl.teams[t.ID]; ok {
		return team.Team{}, team.ErrExists
	}
	tbl.teams[t.ID] = &t
	return t, nil
}

func (repo *teamRepository) GetTeam(_ context.Context, id string) (team.Team, error) {
	if err := repo.db.check(); err != nil {
		return team.Team{}, err
	}
	tbl := repo.db.ledger
	tbl.RLock()
	defer tbl.RUnlock()

	if t, ok := tbl.teams[id]; ok {
		return *t, nil
	}
	return team.Team{}, team.ErrNotFound
}

func (repo *teamRepository) QueryTeams(_ context.Context) ([]team.Team, error) {
	if err := repo.db.check(); err != nil {
		return nil, err
	}
	tbl := repo.db.ledger
	tbl.RLock()
	defer tbl.RUnlock()

	teams := make([]team.Team, 0, len(tbl.teams))
	for _, t := range tbl.teams {
		teams = append(teams, *t)
	}
	sort.Slice(teams, func(i, j int) bool { return teams[i].Name < teams[j].Name })
	return teams, nil
}
