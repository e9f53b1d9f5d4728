// Package di wires the application services with a dig container.
package di

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	"github.com/trezcool/masomofees/core"
	"github.com/trezcool/masomofees/core/fee"
	"github.com/trezcool/masomofees/core/user"
	"github.com/trezcool/masomofees/fs"
	"github.com/trezcool/masomofees/services/email"
	"github.com/trezcool/masomofees/services/logger"
	"github.com/trezcool/masomofees/storage/cache"
	"github.com/trezcool/masomofees/storage/database"
	"github.com/trezcool/masomofees/storage/database/inmem"
	"github.com/trezcool/masomofees/storage/database/sqlx"
)

// Sequence backends
const (
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendMemory   = "memory"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

// SyncDeps holds the challan sequencer & the bulk generation locker.
type SyncDeps struct {
	dig.Out
	Sequencer fee.Sequencer
	Locker    fee.Locker
	Closer    io.Closer `name:"syncCloser"`
}

func newLoggerFunc(prefix string) func(conf *core.Config) core.Logger {
	return func(conf *core.Config) core.Logger {
		stdLogger := log.New(os.Stdout, prefix+" : ", log.LstdFlags)
		logger := logsvc.NewRollbarLogger(stdLogger, conf)
		logger.Enable(!conf.Debug)
		return logger
	}
}

func newDBLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newDBFunc(migrate bool) func(conf *core.Config, loggerParam DBLoggerParam) (*sqlx.DB, core.DB) {
	return func(conf *core.Config, loggerParam DBLoggerParam) (*sqlx.DB, core.DB) {
		setUp := func() (*sqlx.DB, error) {
			if !migrate {
				return database.Open(conf)
			}
			if err := database.CreateIfNotExist(conf); err != nil {
				return nil, err
			}
			db, err := database.Open(conf)
			if err != nil {
				return nil, err
			}
			if err = database.Migrate(db); err != nil {
				return nil, err
			}
			return db, nil
		}

		db, err := setUp()
		if err != nil {
			loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
		}
		return db, db
	}
}

func newRepositories(db core.DB) fee.Repositories {
	return sqlxrepos.NewRepositories(db)
}

func newUserRepository(db core.DB) user.Repository {
	return sqlxrepos.NewUserRepository(db)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// newSyncDeps picks the challan sequence backend. The locker is redis-backed
// whenever a redis URL is configured, process-local otherwise.
func newSyncDeps(conf *core.Config, db core.DB, logger core.Logger) (SyncDeps, error) {
	var (
		rds *cache.Redis
		err error
	)
	if conf.Redis.URL != "" {
		if rds, err = cache.NewRedis(context.Background(), conf.Redis.URL); err != nil {
			return SyncDeps{}, err
		}
	}

	deps := SyncDeps{Locker: inmemdb.NewLocker(), Closer: nopCloser{}}
	if rds != nil {
		deps.Locker = rds
		deps.Closer = rds
	}

	switch conf.Fees.SequenceBackend {
	case BackendRedis:
		if rds == nil {
			return SyncDeps{}, errors.New("redis sequence backend requires a redis URL")
		}
		deps.Sequencer = rds
	case BackendMemory:
		logger.Warn("challan numbers are sequenced in memory; they restart with the process")
		deps.Sequencer = inmemdb.NewSequencer()
	case BackendPostgres, "":
		deps.Sequencer = sqlxrepos.NewSequencer(db)
	default:
		return SyncDeps{}, errors.Errorf("unknown sequence backend %q", conf.Fees.SequenceBackend)
	}
	return deps, nil
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	core.ParseEmailTemplates(conf, appfs.FS, "templates/email", logger)
	return emailsvc.NewService(conf, logger)
}

func newValidator() (*validator.Validate, ut.Translator) {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	fee.InitValidators(validate, translator)
	return validate, translator
}

// New returns a dig.Container providing every service; logs are prefixed with appName.
// migrate creates & migrates the database before it is first used.
func New(appName string, migrate bool) *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLoggerFunc(appName)))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newDBFunc(migrate)))
	must(c.Provide(database.NewTransactor))
	must(c.Provide(newRepositories))
	must(c.Provide(newUserRepository))
	must(c.Provide(newSyncDeps))
	must(c.Provide(newEmailService))
	must(c.Provide(newValidator))
	must(c.Provide(user.NewService))
	must(c.Provide(fee.OptionsFromConfig))
	must(c.Provide(fee.NewService))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
