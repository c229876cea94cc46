package main

import (
	"log"
	"os"

	"github.com/caremint/backend/core"
	"github.com/caremint/backend/core/compliance"
	logsvc "github.com/caremint/backend/services/logger"
	"github.com/caremint/backend/storage/database"
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

	rollbarLogger := logsvc.NewRollbarLogger(logger, conf)
	rollbarLogger.Enable(!conf.Debug)

	usrRepo := database.NewUserRepository(db)
	tgtRepo := database.NewTargetRepository(db)
	evaluator := compliance.NewEvaluator(
		db, usrRepo, tgtRepo,
		compliance.NewAggregator(database.NewDealRepository(db), database.NewActivityRepository(db)),
		rollbarLogger, conf,
	)

	// start CLI
	cli := commandLine{
		conf:      conf,
		db:        db,
		usrRepo:   usrRepo,
		evaluator: evaluator,
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
