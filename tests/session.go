package testutil

import (
	"testing"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/masomo-attendance/core"
	"github.com/trezcool/masomo-attendance/core/attendance"
	"github.com/trezcool/masomo-attendance/services/backend"
	logsvc "github.com/trezcool/masomo-attendance/services/logger"
)

func NewValidator() (*validator.Validate, ut.Translator) {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	attendance.InitValidators(validate, translator)
	return validate, translator
}

// NewSessionFactory builds sessions talking to fb and journaling into journal.
func NewSessionFactory(t *testing.T, fb *FakeBackend, journal attendance.Journal) func() *attendance.Session {
	t.Helper()

	logger := logsvc.NewDiscardLogger()
	validate, translator := NewValidator()
	conf := fb.Config()
	client := backend.NewClient(conf)

	rosters := attendance.NewRosterLoader(logger, backend.RosterSources(client, conf.Paths)...)
	records := attendance.NewRecordLoader(backend.NewRecordsSource(client, conf.Paths, logger))
	saves := attendance.NewSaveCoordinator(attendance.SaveCoordinatorDeps{
		Saver:      backend.NewSaver(client, conf.Paths),
		Journal:    journal,
		Validate:   validate,
		Translator: translator,
		Logger:     logger,
		Actor:      "tester",
	})
	return func() *attendance.Session {
		return attendance.NewSession(attendance.SessionDeps{
			Roster:  rosters,
			Records: records,
			Saves:   saves,
			Logger:  logger,
		})
	}
}
