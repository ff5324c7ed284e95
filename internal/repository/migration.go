package repository

import (
	"database/sql"
	"embed"
	"fmt"
	"os"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/dcstacview/tacview-ingest/pkg/log"
)

const supportedVersion uint = 1

//go:embed migrations/*
var migrationFiles embed.FS

func checkDBVersion(db *sql.DB) {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		log.Fatal(err)
	}
	d, err := iofs.New(migrationFiles, "migrations/postgres")
	if err != nil {
		log.Fatal(err)
	}

	m, err := migrate.NewWithInstance("iofs", d, "postgres", driver)
	if err != nil {
		log.Fatal(err)
	}

	v, _, err := m.Version()
	if err != nil {
		if err == migrate.ErrNilVersion {
			log.Warn("database has no migration applied yet; run with --migrate-db first")
			os.Exit(0)
		}
		log.Fatal(err)
	}

	if v < supportedVersion {
		log.Warnf("database schema version %d is behind the %d this build requires; run --migrate-db", v, supportedVersion)
		os.Exit(0)
	}
	if v > supportedVersion {
		log.Warnf("database schema version %d is newer than the %d this build expects", v, supportedVersion)
		os.Exit(0)
	}
}

// MigrateDB applies all pending schema migrations to url.
func MigrateDB(url string) {
	d, err := iofs.New(migrationFiles, "migrations/postgres")
	if err != nil {
		log.Fatal(err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", d, fmt.Sprintf("postgres://%s", trimScheme(url)))
	if err != nil {
		log.Fatal(err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		log.Fatal(err)
	}

	srcErr, dbErr := m.Close()
	if srcErr != nil {
		log.Error(srcErr)
	}
	if dbErr != nil {
		log.Error(dbErr)
	}
}

// trimScheme strips a leading "postgres://" or "postgresql://" from url so
// MigrateDB can normalize on the scheme golang-migrate's postgres driver
// expects regardless of which scheme the caller configured.
func trimScheme(url string) string {
	for _, scheme := range []string{"postgres://", "postgresql://"} {
		if len(url) >= len(scheme) && url[:len(scheme)] == scheme {
			return url[len(scheme):]
		}
	}
	return url
}
