package main

import (
	"github.com/pkg/errors"

	"github.com/yles/portal/storage/database"
)

var errNoDatabase = errors.New("migrations need a postgres database")

func (cli *commandLine) migrate(args []string) error {
	if cli.db == nil {
		return errNoDatabase
	}
	return database.RunMigrations(cli.db, args[0], args[1:]...)
}
