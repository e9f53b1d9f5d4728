package main

import (
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmoiron/sqlx"
	"go.uber.org/dig"

	"github.com/trezcool/masomofees/apps/di"
	"github.com/trezcool/masomofees/core"
	"github.com/trezcool/masomofees/core/fee"
)

type deps struct {
	dig.In

	Conf       *core.Config
	Logger     core.Logger
	DB         *sqlx.DB
	SyncCloser io.Closer `name:"syncCloser"`
	FeeSvc     fee.Service
}

func main() {
	c := di.New("WORKER", true)
	if err := c.Invoke(run); err != nil {
		log.Fatal(err)
	}
}

func run(d deps) error {
	defer func() { _ = d.DB.Close() }()
	defer func() { _ = d.SyncCloser.Close() }()

	s := newScheduler(d.Conf.Fees, d.FeeSvc, d.Logger)
	if err := s.Start(); err != nil {
		return err
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	sig := <-shutdown
	d.Logger.Info("shutdown started: " + sig.String())
	s.Stop()
	return nil
}
