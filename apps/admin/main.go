package main

import (
	"io"
	"log"
	"os"

	"github.com/jmoiron/sqlx"
	"go.uber.org/dig"

	"github.com/trezcool/masomofees/apps/di"
	"github.com/trezcool/masomofees/core/fee"
	"github.com/trezcool/masomofees/core/user"
)

var logger *log.Logger

type deps struct {
	dig.In

	DB         *sqlx.DB
	SyncCloser io.Closer `name:"syncCloser"`
	UserSvc    user.Service
	FeeSvc     fee.Service
}

func main() {
	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	var code int
	c := di.New("ADMIN", false)
	errAndDie(c.Invoke(func(d deps) {
		defer func() { _ = d.DB.Close() }()
		defer func() { _ = d.SyncCloser.Close() }()

		cli := commandLine{
			db:     d.DB.DB,
			usrSvc: d.UserSvc,
			feeSvc: d.FeeSvc,
		}
		if err := cli.run(os.Args); err != nil {
			if err != errHelp {
				logger.Printf("\nerror: %s\n", err)
			}
			code = 1
		}
	}))
	os.Exit(code)
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}
