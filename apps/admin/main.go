package main

import (
	"io"
	"log"
	"os"

	"github.com/jmoiron/sqlx"

	"github.com/globalitacademy/yscip/core"
	"github.com/globalitacademy/yscip/core/account"
	emailsvc "github.com/globalitacademy/yscip/services/email"
	"github.com/globalitacademy/yscip/storage/database"
	"github.com/globalitacademy/yscip/storage/database/postgres"
)

var logger *log.Logger

func main() {
	defer os.Exit(0)

	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	// set up DB
	db, err := database.Open(core.Conf)
	errAndDie(err)
	defer func() { _ = db.Close() }()
	errAndDie(db.Ping())
	sqlxDB := sqlx.NewDb(db, core.Conf.Database.Engine)

	acctRepo := postgres.NewAccountRepository(sqlxDB)

	// start CLI
	cli := commandLine{
		db:       db,
		acctRepo: acctRepo,
		acctSvc: account.NewService(
			acctRepo,
			emailsvc.NewConsoleService(),
			core.NewStdLogger(log.New(io.Discard, "", 0)),
		),
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
