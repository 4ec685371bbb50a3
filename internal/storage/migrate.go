package storage

import (
	"embed"
	"fmt"
	"net/url"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/pkg/errors"
)

//go:embed migrations
var migrations embed.FS

// Migrate applies every pending migration of the driver's dialect to the database at dsn.
func Migrate(driver, dsn string) error {
	m, err := newMigrate(driver, dsn)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply %s migrations: %w", driver, err)
	}
	return nil
}

// MigrateDown rolls back every migration.
func MigrateDown(driver, dsn string) error {
	m, err := newMigrate(driver, dsn)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("revert %s migrations: %w", driver, err)
	}
	return nil
}

func newMigrate(driver, dsn string) (*migrate.Migrate, error) {
	if driver != DriverPostgres && driver != DriverSQLite {
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
	src, err := iofs.New(migrations, "migrations/"+driver)
	if err != nil {
		return nil, fmt.Errorf("load %s migrations: %w", driver, err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, databaseURL(driver, dsn))
	if err != nil {
		return nil, fmt.Errorf("initialize migrations: %w", err)
	}
	return m, nil
}

// databaseURL turns a driver DSN into the URL form golang-migrate expects.
func databaseURL(driver, dsn string) string {
	switch {
	case driver == DriverSQLite && !strings.HasPrefix(dsn, "sqlite://"):
		return "sqlite://" + dsn
	case driver == DriverPostgres && !strings.Contains(dsn, "://"):
		return keyValueToURL(dsn)
	default:
		return dsn
	}
}

// keyValueToURL converts a lib/pq "host=... user=..." DSN to a postgres:// URL.
func keyValueToURL(dsn string) string {
	params := map[string]string{}
	for _, field := range strings.Fields(dsn) {
		if k, v, ok := strings.Cut(field, "="); ok {
			params[k] = v
		}
	}
	u := url.URL{Scheme: "postgres", Path: "/" + params["dbname"]}
	if params["user"] != "" {
		u.User = url.UserPassword(params["user"], params["password"])
	}
	u.Host = params["host"]
	if params["port"] != "" {
		u.Host += ":" + params["port"]
	}
	q := url.Values{}
	for k, v := range params {
		switch k {
		case "dbname", "user", "password", "host", "port":
		default:
			q.Set(k, v)
		}
	}
	u.RawQuery = q.Encode()
	return u.String()
}
