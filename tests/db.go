package testutil

import (
	"testing"

	"github.com/jmoiron/sqlx"

	"github.com/trezcool/masomo-attendance/core"
	"github.com/trezcool/masomo-attendance/storage/database"
)

// PrepareDB opens and migrates the test database, eg. with `ENV=test TEST_DATABASE_ENABLED=true`.
// The test is skipped when no database is configured.
func PrepareDB(t *testing.T) *sqlx.DB {
	t.Helper()

	conf := core.NewConfig()
	if !conf.Database.Enabled {
		t.Skip("database disabled")
	}
	db, err := database.Open(conf.Database)
	if err != nil {
		t.Fatalf("database.Open() failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err = database.Migrate(db); err != nil {
		t.Fatalf("database.Migrate() failed: %v", err)
	}
	ResetDB(t, db)
	return db
}

func ResetDB(t *testing.T, db *sqlx.DB) {
	t.Helper()
	if _, err := db.Exec("TRUNCATE TABLE save_journal"); err != nil {
		t.Fatalf("ResetDB() failed: %v", err)
	}
}
