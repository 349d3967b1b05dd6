package database

import (
	"embed"
	"net/url"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/pressly/goose/v3"

	"github.com/trezcool/masomo-attendance/core"
)

//go:embed migrations/*.sql
var migrations embed.FS

func dsn(conf core.DatabaseConfig) string {
	sslMode := "require"
	if conf.DisableTLS {
		sslMode = "disable"
	}
	q := make(url.Values)
	q.Set("sslmode", sslMode)
	q.Set("timezone", "utc")

	u := url.URL{
		Scheme:   conf.Engine,
		User:     url.UserPassword(conf.User, conf.Password),
		Host:     conf.Address(),
		Path:     conf.Name,
		RawQuery: q.Encode(),
	}
	return u.String()
}

// Open connects to the journal database and waits for it to be ready.
func Open(conf core.DatabaseConfig) (*sqlx.DB, error) {
	db, err := sqlx.Open(conf.Engine, dsn(conf))
	if err != nil {
		return nil, errors.Wrap(err, "opening database")
	}
	if err = ping(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// ping waits for the database to be ready. Waits 100ms longer between each attempt.
func ping(db *sqlx.DB) error {
	var err error
	maxAttempts := 30
	for attempts := 1; attempts <= maxAttempts; attempts++ {
		err = db.Ping()
		if err == nil {
			break
		}
		time.Sleep(time.Duration(attempts) * 100 * time.Millisecond)
	}

	if err != nil {
		return errors.Wrap(err, "DB ping timeout")
	}
	return nil
}

// Migrate applies every pending migration.
func Migrate(db *sqlx.DB) error {
	if err := RunMigrations(db, "up"); err != nil {
		return errors.Wrap(err, "migrating database")
	}
	return nil
}

// RunMigrations executes a goose command (up, down, status, version, ...) against the embedded migrations.
func RunMigrations(db *sqlx.DB, command string, args ...string) error {
	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return errors.Wrap(err, "setting migration dialect")
	}
	return goose.Run(command, db.DB, "migrations", args...)
}
