package main

import (
	"database/sql"
	"log"
	"os"

	"github.com/go-playground/validator/v10"

	"github.com/yles/portal/core"
	"github.com/yles/portal/core/ledger"
	"github.com/yles/portal/core/team"
	logsvc "github.com/yles/portal/services/logger"
	"github.com/yles/portal/storage/database"
	inmemdb "github.com/yles/portal/storage/database/inmem"
	sqlxrepos "github.com/yles/portal/storage/database/sqlx"
)

var logger *log.Logger

func main() {
	defer os.Exit(0)

	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	conf, err := core.NewConfig()
	errAndDie(err)

	appLogger := logsvc.NewRollbarLogger(logger, conf)
	defer appLogger.Close()

	validate := validator.New()
	core.InitValidators(validate, core.NewTranslator())

	// set up DB
	var (
		db    *sql.DB
		teams team.Repository
		fines ledger.Repository
	)
	if conf.Database.InMemory() {
		mem := inmemdb.Open()
		teams = inmemdb.NewTeamRepository(mem)
		fines = inmemdb.NewLedgerRepository(mem)
	} else {
		errAndDie(database.CreateIfNotExist(conf))
		xdb, err := database.Open(conf)
		errAndDie(err)
		defer xdb.Close()
		db = xdb.DB
		teams = sqlxrepos.NewTeamRepository(xdb)
		fines = sqlxrepos.NewLedgerRepository(xdb)
	}

	// start CLI
	cli := commandLine{
		conf:      conf,
		db:        db,
		validate:  validate,
		teams:     teams,
		teamSvc:   team.NewService(teams),
		ledgerSvc: ledger.NewService(fines, teams, appLogger, nil),
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}
