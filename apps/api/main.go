package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof" // debug endpoints
	"os"

	"github.com/go-playground/validator/v10"

	echoapi "github.com/trezcool/masomo-attendance/apps/api/echo"
	"github.com/trezcool/masomo-attendance/core"
	"github.com/trezcool/masomo-attendance/core/attendance"
	"github.com/trezcool/masomo-attendance/services/backend"
	logsvc "github.com/trezcool/masomo-attendance/services/logger"
	"github.com/trezcool/masomo-attendance/storage/database"
	inmemdb "github.com/trezcool/masomo-attendance/storage/database/inmem"
	sqlxrepos "github.com/trezcool/masomo-attendance/storage/database/sqlx"
)

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	// set up loggers
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	dbLogger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	dbLogger.Enable(!conf.Debug)

	// set up the save journal
	var journal attendance.Journal
	if conf.Database.Enabled {
		db, err := database.Open(conf.Database)
		if err != nil {
			logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
		}
		defer func() {
			if err = db.Close(); err != nil {
				dbLogger.Fatal("Failed to close", err)
			}
		}()
		if err = database.Migrate(db); err != nil {
			logger.Fatal(fmt.Sprintf("migrating database: %v", err), err)
		}
		journal = sqlxrepos.NewJournalRepository(db)
	} else {
		dbLogger.Warn("database disabled: save journal kept in memory")
		journal = inmemdb.NewJournalRepository()
	}

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	attendance.InitValidators(validate, translator)

	client := backend.NewClient(conf.Backend)
	rosters := attendance.NewRosterLoader(logger, backend.RosterSources(client, conf.Backend.Paths)...)
	records := attendance.NewRecordLoader(backend.NewRecordsSource(client, conf.Backend.Paths, logger))
	saves := attendance.NewSaveCoordinator(attendance.SaveCoordinatorDeps{
		Saver:      backend.NewSaver(client, conf.Backend.Paths),
		Journal:    journal,
		Validate:   validate,
		Translator: translator,
		Logger:     logger,
		Actor:      conf.AppName,
	})
	newSession := func() *attendance.Session {
		return attendance.NewSession(attendance.SessionDeps{
			Roster:  rosters,
			Records: records,
			Saves:   saves,
			Logger:  logger,
		})
	}

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(
		echoapi.ServerDeps{
			Conf:       conf,
			Logger:     logger,
			Sessions:   newSession,
			Validate:   validate,
			Translator: translator,
		},
	)

	go func() {
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err := <-server.Errors():
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shutdown and shed load
		if err := server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}
