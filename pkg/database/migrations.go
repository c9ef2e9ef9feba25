package database

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"go.uber.org/zap"
)

// RunMigrations brings the semantic-store schema up to date from the SQL
// files in migrationsPath. Safe to run on every startup: an up-to-date
// database is a no-op.
func RunMigrations(db *sql.DB, migrationsPath string, logger *zap.Logger) error {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("creating migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+migrationsPath, "postgres", driver)
	if err != nil {
		return fmt.Errorf("reading migrations from %s: %w", migrationsPath, err)
	}
	defer func() {
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			logger.Warn("Closing migration handles",
				zap.NamedError("source", srcErr),
				zap.NamedError("database", dbErr))
		}
	}()

	switch err := m.Up(); {
	case err == nil:
		version, dirty, _ := m.Version()
		logger.Info("Store schema migrated",
			zap.Uint("version", version),
			zap.Bool("dirty", dirty))
		return nil
	case errors.Is(err, migrate.ErrNoChange):
		logger.Debug("Store schema already current")
		return nil
	default:
		return fmt.Errorf("applying migrations: %w", err)
	}
}
