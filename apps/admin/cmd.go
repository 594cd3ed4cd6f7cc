package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/yles/portal/core"
	"github.com/yles/portal/core/ledger"
	"github.com/yles/portal/core/team"
)

var errHelp = errors.New("help provided")

type commandLine struct {
	conf      *core.Config
	db        *sql.DB // nil with the in-memory store
	validate  *validator.Validate
	teams     team.Repository
	teamSvc   *team.Service
	ledgerSvc *ledger.Service
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migrate COMMAND [ARGS] - run a goose command against the embedded migrations")
	fmt.Println("  addteam -id UUID -name NAME [-deposit AMOUNT] - register a team for an existing delegate account")
	fmt.Println("  recalc -team UUID | -all - recompute team balances from their fines")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addTeamCmd := flag.NewFlagSet("addteam", flag.ExitOnError)
	addTeamID := addTeamCmd.String("id", "", "The delegate account id.")
	addTeamName := addTeamCmd.String("name", "", "The team name.")
	addTeamDeposit := addTeamCmd.Int64("deposit", -1, "The initial security deposit in minor units. Defaults to the configured deposit.")

	recalcCmd := flag.NewFlagSet("recalc", flag.ExitOnError)
	recalcTeam := recalcCmd.String("team", "", "The team id.")
	recalcAll := recalcCmd.Bool("all", false, "Recompute every team.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	case "addteam":
		if err := addTeamCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addTeamID == "" || *addTeamName == "" {
			addTeamCmd.Usage()
			return errHelp
		}
		deposit := *addTeamDeposit
		if deposit < 0 {
			deposit = cli.conf.Ledger.DefaultDeposit
		}
		return cli.addTeam(*addTeamID, *addTeamName, deposit)
	case "recalc":
		if err := recalcCmd.Parse(args[2:]); err != nil {
			return err
		}
		if (*recalcTeam == "") == !*recalcAll {
			recalcCmd.Usage()
			return errHelp
		}
		return cli.recalc(*recalcTeam)
	default:
		cli.printUsage()
		return errHelp
	}
}
