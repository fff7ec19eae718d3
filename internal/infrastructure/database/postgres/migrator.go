package postgres

import (
	"embed"
	stderrors "errors"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/turtacn/DexAtlas/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/DexAtlas/pkg/errors"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

func newMigrate(dbURL string) (*migrate.Migrate, error) {
	src, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to open embedded migrations")
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, dbURL)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to create migrate instance")
	}
	return m, nil
}

// RunMigrations applies all pending embedded migrations.  No pending
// migrations is not an error.
func RunMigrations(dbURL string, log logging.Logger) (uint, error) {
	m, err := newMigrate(dbURL)
	if err != nil {
		return 0, err
	}
	defer m.Close()

	if err := m.Up(); err != nil && !stderrors.Is(err, migrate.ErrNoChange) {
		return 0, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to run migrations")
	}
	version, dirty, err := m.Version()
	if err != nil && !stderrors.Is(err, migrate.ErrNilVersion) {
		return 0, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to get migration version")
	}
	log.Info("Database migrations completed",
		logging.Int64("version", int64(version)),
		logging.Bool("dirty", dirty),
	)
	return version, nil
}

// RollbackMigration rolls back steps migrations.
func RollbackMigration(dbURL string, steps int) error {
	if steps <= 0 {
		return errors.Newf(errors.ErrCodeValidation, "steps must be greater than 0, got %d", steps)
	}
	m, err := newMigrate(dbURL)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Steps(-steps); err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to roll back migrations")
	}
	return nil
}

//Personal.AI order the ending
