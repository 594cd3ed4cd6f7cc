package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yles/portal/core/ledger"
	"github.com/yles/portal/core/module"
	"github.com/yles/portal/core/policy"
	"github.com/yles/portal/core/team"
)

// Actor returns an actor of role with a fresh id.
func Actor(role policy.Role) policy.Actor {
	return policy.Actor{ID: uuid.New().String(), Role: role}
}

// Delegate returns the delegate actor of t.
func Delegate(t team.Team) policy.Actor {
	return policy.Actor{ID: t.ID, Role: policy.RoleDelegate}
}

func CreateTeam(t *testing.T, repo team.Repository, name string, deposit int64) team.Team {
	tm, err := repo.CreateTeam(context.Background(), team.Team{
		ID:                     uuid.New().String(),
		Name:                   name,
		SecurityDepositInitial: deposit,
		CurrentBalance:         deposit,
		Role:                   policy.RoleDelegate,
		CreatedAt:              time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("createTeam() failed: %v", err)
	}
	return tm
}

func CreateModule(t *testing.T, repo module.Repository, name string, day int, startTime ...time.Time) module.Module {
	mod := module.Module{
		ID:        uuid.New().String(),
		Name:      name,
		Day:       day,
		CreatedAt: time.Now().UTC(),
	}
	if len(startTime) > 0 {
		st := startTime[0].UTC()
		mod.StartTime = &st
	}
	mod, err := repo.CreateModule(context.Background(), mod)
	if err != nil {
		t.Fatalf("createModule() failed: %v", err)
	}
	return mod
}

// CreateFine writes a fine straight to the store; the team balance is left as is.
func CreateFine(t *testing.T, repo ledger.Repository, teamID string, amount int64, reason string, createdAt ...time.Time) ledger.Fine {
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	fine, err := repo.CreateFine(context.Background(), ledger.Fine{
		ID:        uuid.New().String(),
		TeamID:    teamID,
		Amount:    amount,
		Reason:    reason,
		IssuerID:  uuid.New().String(),
		CreatedAt: tstamp,
	})
	if err != nil {
		t.Fatalf("createFine() failed: %v", err)
	}
	return fine
}
