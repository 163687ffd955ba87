package database

import (
	"embed"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/pkg/errors"
)

//go:embed migrations/*.sql
var embedded embed.FS

// RunMigrations applies all up migrations to the database at dbPath. An empty
// migrationsPath uses the migrations compiled into the binary.
func RunMigrations(dbPath, migrationsPath string) error {
	// migrate closes the database it is handed, so it gets its own handle.
	db, err := Open(dbPath)
	if err != nil {
		return err
	}
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		_ = db.Close()
		return errors.Wrap(err, "migration driver")
	}

	var m *migrate.Migrate
	if migrationsPath == "" {
		src, err := iofs.New(embedded, "migrations")
		if err != nil {
			_ = db.Close()
			return errors.Wrap(err, "embedded migrations")
		}
		m, err = migrate.NewWithInstance("iofs", src, "sqlite3", driver)
		if err != nil {
			_ = db.Close()
			return errors.Wrap(err, "init migrations")
		}
	} else {
		m, err = migrate.NewWithDatabaseInstance(fmt.Sprintf("file://%s", migrationsPath), "sqlite3", driver)
		if err != nil {
			_ = db.Close()
			return errors.Wrapf(err, "init migrations from %s", migrationsPath)
		}
	}
	defer m.Close()

	err = m.Up()
	if err == migrate.ErrNoChange {
		return nil
	}
	return errors.Wrap(err, "apply migrations")
}
