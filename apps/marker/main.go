package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"golang.org/x/term"

	"github.com/trezcool/masomo-attendance/core"
	"github.com/trezcool/masomo-attendance/core/attendance"
	"github.com/trezcool/masomo-attendance/services/backend"
	logsvc "github.com/trezcool/masomo-attendance/services/logger"
	"github.com/trezcool/masomo-attendance/storage/database"
	inmemdb "github.com/trezcool/masomo-attendance/storage/database/inmem"
	sqlxrepos "github.com/trezcool/masomo-attendance/storage/database/sqlx"
)

func main() {
	if err := run(os.Args); err != nil {
		if !errors.Is(err, errHelp) {
			_, _ = fmt.Fprintf(os.Stderr, "error: %s\n", describe(err))
		}
		os.Exit(1)
	}
}

// run owns every resource, so they are released before main exits.
func run(args []string) error {
	conf := core.NewConfig()

	// keep stdout for the session itself
	logger := logsvc.NewRollbarLogger(log.New(os.Stderr, "MARKER : ", log.LstdFlags), conf)
	logger.Enable(!conf.Debug)

	var journal attendance.Journal = inmemdb.NewJournalRepository()
	if conf.Database.Enabled {
		db, err := database.Open(conf.Database)
		if err != nil {
			return errors.Wrap(err, "setting up database")
		}
		defer db.Close()
		if err = database.Migrate(db); err != nil {
			return errors.Wrap(err, "migrating database")
		}
		journal = sqlxrepos.NewJournalRepository(db)
	}

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	attendance.InitValidators(validate, translator)

	client := backend.NewClient(conf.Backend)
	session := attendance.NewSession(attendance.SessionDeps{
		Roster:  attendance.NewRosterLoader(logger, backend.RosterSources(client, conf.Backend.Paths)...),
		Records: attendance.NewRecordLoader(backend.NewRecordsSource(client, conf.Backend.Paths, logger)),
		Saves: attendance.NewSaveCoordinator(attendance.SaveCoordinatorDeps{
			Saver:      backend.NewSaver(client, conf.Backend.Paths),
			Journal:    journal,
			Validate:   validate,
			Translator: translator,
			Logger:     logger,
			Actor:      os.Getenv("USER"),
		}),
		Logger: logger,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cli := newCommandLine(session, os.Stdin, os.Stdout, term.IsTerminal(int(os.Stdin.Fd())))
	return cli.run(ctx, args)
}
