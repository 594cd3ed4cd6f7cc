package dig_container

import (
	"context"
	"fmt"
	"log"
	"os"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/yles/portal/apps/api/echo"
	"github.com/yles/portal/core"
	"github.com/yles/portal/core/access"
	"github.com/yles/portal/core/ledger"
	"github.com/yles/portal/core/module"
	"github.com/yles/portal/core/progress"
	"github.com/yles/portal/core/team"
	logsvc "github.com/yles/portal/services/logger"
	metricsvc "github.com/yles/portal/services/metrics"
	"github.com/yles/portal/storage/database"
	inmemdb "github.com/yles/portal/storage/database/inmem"
	sqlxrepos "github.com/yles/portal/storage/database/sqlx"
)

type (
	DBLoggerParam struct {
		dig.In
		Logger core.Logger `name:"dbLogger"`
	}

	// Stores are the repositories of whichever engine the config selects.
	Stores struct {
		dig.Out
		Teams    team.Repository
		Fines    ledger.Repository
		Modules  module.Repository
		Progress progress.Repository
		Closer   StoreCloser
		Check    StoreChecker
	}

	// StoreCloser releases the store connections.
	StoreCloser func() error

	// StoreChecker reports whether the store can be reached.
	StoreChecker func(ctx context.Context) error

	serverParams struct {
		dig.In
		Conf        *core.Config
		Logger      core.Logger
		Validate    *validator.Validate
		Translator  ut.Translator
		Metrics     *metricsvc.Manager
		TeamSvc     *team.Service
		ModuleSvc   *module.Service
		ProgressSvc *progress.Service
		Guard       *access.Guard
		StoreCheck  StoreChecker
	}
)

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags)
	return logsvc.NewRollbarLogger(stdLogger, conf)
}

func newDBLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	return logsvc.NewRollbarLogger(stdLogger, conf)
}

func newStores(conf *core.Config, loggerParam DBLoggerParam) Stores {
	if conf.Database.InMemory() {
		loggerParam.Logger.Warn("using the in-memory store: records are lost on exit")
		db := inmemdb.Open()
		return Stores{
			Teams:    inmemdb.NewTeamRepository(db),
			Fines:    inmemdb.NewLedgerRepository(db),
			Modules:  inmemdb.NewModuleRepository(db),
			Progress: inmemdb.NewProgressRepository(db),
			Closer:   func() error { return nil },
			Check:    db.Ping,
		}
	}

	if err := database.CreateIfNotExist(conf); err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	db, err := database.Open(conf)
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("opening database: %v", err), err)
	}
	if err = database.Migrate(db.DB); err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("migrating database: %v", err), err)
	}
	return Stores{
		Teams:    sqlxrepos.NewTeamRepository(db),
		Fines:    sqlxrepos.NewLedgerRepository(db),
		Modules:  sqlxrepos.NewModuleRepository(db),
		Progress: sqlxrepos.NewProgressRepository(db),
		Closer:   db.Close,
		Check: func(ctx context.Context) error {
			return database.StatusCheck(ctx, db)
		},
	}
}

func newMetrics() *metricsvc.Manager {
	return metricsvc.NewManager(metricsvc.WithNamespace("portal"))
}

func newLedgerService(repo ledger.Repository, teams team.Repository, logger core.Logger, metrics *metricsvc.Manager) *ledger.Service {
	return ledger.NewService(repo, teams, logger, metrics)
}

func newProgressService(repo progress.Repository, teams team.Repository, modules module.Repository) *progress.Service {
	return progress.NewService(repo, teams, modules)
}

func newGuard(ledgerSvc *ledger.Service, progressSvc *progress.Service) *access.Guard {
	return access.NewGuard(ledgerSvc, progressSvc)
}

func newValidator(translator ut.Translator) *validator.Validate {
	validate := validator.New()
	core.InitValidators(validate, translator)
	return validate
}

func newServer(p serverParams) *echoapi.Server {
	return echoapi.NewServer(p.Conf, &echoapi.Deps{
		Logger:      p.Logger,
		Validate:    p.Validate,
		Translator:  p.Translator,
		Metrics:     p.Metrics,
		TeamSvc:     p.TeamSvc,
		ModuleSvc:   p.ModuleSvc,
		ProgressSvc: p.ProgressSvc,
		Guard:       p.Guard,
		StatusCheck: p.StoreCheck,
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newStores))
	must(c.Provide(core.NewTranslator))
	must(c.Provide(newValidator))
	must(c.Provide(newMetrics))
	must(c.Provide(team.NewService))
	must(c.Provide(module.NewService))
	must(c.Provide(newLedgerService))
	must(c.Provide(newProgressService))
	must(c.Provide(newGuard))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
