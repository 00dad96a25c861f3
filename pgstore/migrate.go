package pgstore

import (
	"embed"
	stderrors "errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/kbukum/bizbackend/logger"
)

// Migrations create the profiles table and the ensure_user_profile function.
//
//go:embed migrations/*.sql
var migrationsFS embed.FS

const migrationsDir = "migrations"

// Migrate applies pending migrations. It is a no-op when the schema is current.
func Migrate(db *DB) error {
	if db.Dialect() != backendName {
		return fmt.Errorf("migrations need postgres, got %s", db.Dialect())
	}
	sqlDB, err := db.gorm.DB()
	if err != nil {
		return fmt.Errorf("get sql.DB: %w", err)
	}
	driver, err := migratepg.WithInstance(sqlDB, &migratepg.Config{})
	if err != nil {
		return fmt.Errorf("create migrate driver: %w", err)
	}
	src, err := migrationSource()
	if err != nil {
		return err
	}
	// The migrator is not closed: closing it would close the shared pool.
	m, err := migrate.NewWithInstance("iofs", src, backendName, driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	if err := m.Up(); err != nil && !stderrors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}
	version, dirty, err := m.Version()
	if err != nil && !stderrors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("migration version: %w", err)
	}
	db.log.Info("Database schema migrated", logger.Fields("version", version, "dirty", dirty))
	return nil
}

func migrationSource() (source.Driver, error) {
	src, err := iofs.New(migrationsFS, migrationsDir)
	if err != nil {
		return nil, fmt.Errorf("load migrations: %w", err)
	}
	return src, nil
}

// MigrationVersions lists the embedded migration versions in order.
func MigrationVersions() ([]uint, error) {
	src, err := migrationSource()
	if err != nil {
		return nil, err
	}
	defer src.Close()

	v, err := src.First()
	if err != nil {
		return nil, err
	}
	versions := []uint{v}
	for {
		next, err := src.Next(v)
		if err != nil {
			if stderrors.Is(err, fs.ErrNotExist) {
				return versions, nil
			}
			return nil, err
		}
		versions = append(versions, next)
		v = next
	}
}
