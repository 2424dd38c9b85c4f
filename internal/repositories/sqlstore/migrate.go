package sqlstore

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratemysql "github.com/golang-migrate/migrate/v4/database/mysql"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

//go:embed migrations/postgres/*.sql migrations/mysql/*.sql
var migrationsFS embed.FS

// MigrationStatus reports the schema version after Migrate.
type MigrationStatus struct {
	Version uint
	Dirty   bool
}

// Migrate applies pending schema migrations for the dialect using embedded SQL files.
func Migrate(db *sqlx.DB, dialect Dialect, logger *zap.Logger) (MigrationStatus, error) {
	m, err := newMigrator(db, dialect)
	if err != nil {
		return MigrationStatus{}, err
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return MigrationStatus{}, fmt.Errorf("sqlstore: run migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return MigrationStatus{}, fmt.Errorf("sqlstore: read version: %w", err)
	}
	if logger != nil {
		logger.Info("sqlstore: migrations applied",
			zap.String("dialect", string(dialect)),
			zap.Uint("version", version),
			zap.Bool("dirty", dirty),
		)
	}
	return MigrationStatus{Version: version, Dirty: dirty}, nil
}

func newMigrator(db *sqlx.DB, dialect Dialect) (*migrate.Migrate, error) {
	if db == nil {
		return nil, errors.New("sqlstore: db is required")
	}
	source, err := iofs.New(migrationsFS, "migrations/"+string(dialect))
	if err != nil {
		return nil, fmt.Errorf("sqlstore: migration source: %w", err)
	}

	var driver database.Driver
	switch dialect {
	case Postgres:
		driver, err = migratepg.WithInstance(db.DB, &migratepg.Config{})
	case MySQL:
		driver, err = migratemysql.WithInstance(db.DB, &migratemysql.Config{})
	default:
		return nil, fmt.Errorf("sqlstore: unsupported dialect %q", dialect)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlstore: migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, string(dialect), driver)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: migrate instance: %w", err)
	}
	return m, nil
}
