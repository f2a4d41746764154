package results

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"path"

	"github.com/golang-migrate/migrate/v4"
	migratedb "github.com/golang-migrate/migrate/v4/database"

	"github.com/JaimeStill/inspector/pkg/database"
	"github.com/JaimeStill/inspector/pkg/repository"
)

// Migrations holds the results schema, one directory per database driver.
//
//go:embed migrations
var Migrations embed.FS

// MigrationsDir returns the directory in Migrations for a driver.
func MigrationsDir(driver string) string {
	return path.Join("migrations", driver)
}

// migrator is called with schemaMu held.
func (r *repo) migrator() (*migrate.Migrate, error) {
	if r.m != nil {
		return r.m, nil
	}

	m, err := database.NewMigrator(r.db, r.driver, Migrations, MigrationsDir(r.driver))
	if err != nil {
		return nil, err
	}
	r.m = m
	return m, nil
}

func (r *repo) EnsureSchema(ctx context.Context) error {
	r.schemaMu.Lock()
	defer r.schemaMu.Unlock()

	err := r.applySchema(ctx)
	if err != nil && versionTableLost(err) {
		// The migrate driver creates its version table only when built.
		r.logger.Warn("migration version table missing, rebuilding migrator", "error", err)
		r.m = nil
		err = r.applySchema(ctx)
	}
	if err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// applySchema is called with schemaMu held.
func (r *repo) applySchema(ctx context.Context) error {
	m, err := r.migrator()
	if err != nil {
		return err
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}

	present, err := r.tablePresent(ctx)
	if err != nil {
		return err
	}
	if present {
		return nil
	}

	// Recorded version is ahead of the actual tables; replay from scratch.
	r.logger.Warn("results table missing from migrated schema, replaying migrations")
	if err := m.Force(-1); err != nil {
		return fmt.Errorf("reset version: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

// versionTableLost reports whether a migrate failure came from a missing
// table. Driver errors are carried in database.Error, which does not unwrap.
func versionTableLost(err error) bool {
	var dbErr *migratedb.Error
	if errors.As(err, &dbErr) {
		return repository.IsUndefinedTable(dbErr.OrigErr)
	}
	return repository.IsUndefinedTable(err)
}

func (r *repo) tablePresent(ctx context.Context) (bool, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT id FROM results LIMIT 1")
	if err != nil {
		if repository.IsUndefinedTable(err) {
			return false, nil
		}
		return false, err
	}
	return true, rows.Close()
}
