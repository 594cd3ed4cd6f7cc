package main

import (
	"context"
	"fmt"

	"github.com/yles/portal/core/team"
)

// addTeam registers the team of an existing delegate account.
func (cli *commandLine) addTeam(id, name string, deposit int64) error {
	nt := team.NewTeam{ID: id, Name: name, SecurityDepositInitial: deposit}
	if err := nt.Validate(cli.validate); err != nil {
		return err
	}
	t, err := cli.teamSvc.Create(context.Background(), nt)
	if err != nil {
		return err
	}
	fmt.Printf("team %q registered (%s) with a deposit of %d\n", t.Name, t.ID, t.SecurityDepositInitial)
	return nil
}
