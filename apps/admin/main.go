package main

import (
	"log"
	"os"

	"github.com/trezcool/sajili/core"
	"github.com/trezcool/sajili/core/ledger"
	"github.com/trezcool/sajili/core/user"
	emailsvc "github.com/trezcool/sajili/services/email"
	logsvc "github.com/trezcool/sajili/services/logger"
	"github.com/trezcool/sajili/storage/database"
	sqlxrepos "github.com/trezcool/sajili/storage/database/sqlx"
)

var logger *log.Logger

func main() {
	defer os.Exit(0)

	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	conf := core.NewConfig()

	// set up DB
	db, err := database.Open(conf)
	errAndDie(err)
	defer db.Close()
	errAndDie(db.Ping())

	appLogger := logsvc.NewRollbarLogger(logger, conf)
	appLogger.Enable(false) // CLI output stays local

	usrRepo := sqlxrepos.NewUserRepository(db)
	ledgerSvc := ledger.NewService(
		sqlxrepos.NewLedgerRepository(db), user.NewService(usrRepo), appLogger,
		emailsvc.NewConsoleService(conf), conf.OpsEmail, conf.Ledger.SyncConfirm,
	)

	// start CLI
	cli := commandLine{
		db:        db,
		conf:      conf,
		usrRepo:   usrRepo,
		ledgerSvc: ledgerSvc,
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
