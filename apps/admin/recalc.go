package main

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/yles/portal/core/policy"
)

// cliActor is who the ledger sees when balances are recomputed from here.
var cliActor = policy.Actor{ID: "admin-cli", Role: policy.RoleAdmin}

// recalc recomputes the balance of teamID, or of every team when teamID is empty.
func (cli *commandLine) recalc(teamID string) error {
	ctx := context.Background()
	ids := []string{teamID}
	if teamID == "" {
		teams, err := cli.teams.QueryTeams(ctx)
		if err != nil {
			return errors.Wrap(err, "querying teams")
		}
		ids = ids[:0]
		for _, t := range teams {
			ids = append(ids, t.ID)
		}
	}

	for _, id := range ids {
		mut, err := cli.ledgerSvc.Recalc(ctx, cliActor, id)
		if err != nil {
			return err
		}
		fmt.Printf("%s: %d\n", mut.TeamID, mut.Balance)
	}
	return nil
}
