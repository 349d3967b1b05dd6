package main

import (
	"log"
	"os"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-attendance/core"
	"github.com/trezcool/masomo-attendance/storage/database"
	sqlxrepos "github.com/trezcool/masomo-attendance/storage/database/sqlx"
)

var logger *log.Logger

func main() {
	defer os.Exit(0)

	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	conf := core.NewConfig()

	// set up DB
	db, err := database.Open(conf.Database)
	errAndDie(err)
	defer db.Close()

	// start CLI
	cli := commandLine{
		db:      db,
		journal: sqlxrepos.NewJournalRepository(db),
		out:     os.Stdout,
	}
	if err := cli.run(os.Args); err != nil {
		if !errors.Is(err, errHelp) {
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
