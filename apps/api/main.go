package main

import (
	"context"
	"expvar"
	"fmt"
	"io"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/dig"

	"github.com/trezcool/masomofees/apps/api/echo"
	"github.com/trezcool/masomofees/apps/di"
	"github.com/trezcool/masomofees/core"
	"github.com/trezcool/masomofees/core/fee"
	"github.com/trezcool/masomofees/core/user"
)

type deps struct {
	dig.In

	Conf          *core.Config
	Logger        core.Logger
	DBLoggerParam di.DBLoggerParam
	DB            *sqlx.DB
	SyncCloser    io.Closer `name:"syncCloser"`
	Validate      *validator.Validate
	Translator    ut.Translator
	UserSvc       user.Service
	FeeSvc        fee.Service
}

func main() {
	c := di.New("API", true)
	must(c.Invoke(run))
}

func run(d deps) {
	conf, apiLogger := d.Conf, d.Logger

	// =========================================================================
	// Initialize App

	apiLogger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))

	dbLogger := d.DBLoggerParam.Logger
	defer func() {
		if err := d.DB.Close(); err != nil {
			dbLogger.Error("Failed to close", err)
		}
	}()
	defer func() {
		if err := d.SyncCloser.Close(); err != nil {
			apiLogger.Error("Failed to close redis client", err)
		}
	}()
	defer apiLogger.Info("Application stopped")

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			apiLogger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	server := echoapi.NewServer(&echoapi.Options{
		Conf:           conf,
		Address:        conf.Server.Host,
		SignalShutdown: func() {
			select {
			case shutdown <- syscall.SIGTERM:
			default: // already shutting down
			}
		},
		Logger:         apiLogger,
		Validate:       d.Validate,
		Translator:     d.Translator,
		UserSvc:        d.UserSvc,
		FeeSvc:         d.FeeSvc,
	})

	serverErrors := make(chan error, 1)
	go func() {
		apiLogger.Info("API listening on " + conf.Server.Host)
		serverErrors <- server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
			apiLogger.Error(fmt.Sprintf("server error: %v", err), err)
		}

	case sig := <-shutdown:
		apiLogger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Stop(ctx); err != nil {
			apiLogger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)
		}
	}
}

func must(err error) {
	if err != nil {
		log.Fatal(err)
	}
}
