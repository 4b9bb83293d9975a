// Package sqldb holds the relational storage layer: the SQLite schema the
// database backends share, the location and metadata tables, and the three
// adapter implementations (hybrid, document, normalized) built on them.
//
// A database is initialized once for a single backend mode; the config row
// records the choice and opening with a different mode is refused. The
// modernc.org/sqlite driver keeps the store pure Go.
package sqldb

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"

	"github.com/couchcryptid/weather-history-store/internal/config"
	"github.com/couchcryptid/weather-history-store/internal/domain"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Open connects to the SQLite database at path. The connection pool is
// capped at one connection: SQLite allows a single writer, and the engine's
// single-writer discipline (see the loader) leans on that.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %v: %w", path, err, domain.ErrStorage)
	}
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %v: %w", pragma, err, domain.ErrStorage)
		}
	}
	return db, nil
}

func migrator(path string) (*migrate.Migrate, error) {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("open embedded migrations: %v: %w", err, domain.ErrStorage)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, "sqlite://"+path)
	if err != nil {
		return nil, fmt.Errorf("prepare migrations for %s: %v: %w", path, err, domain.ErrStorage)
	}
	return m, nil
}

// InitSchema migrates the database up and records the backend mode it is
// being initialized for. Re-initializing with the same mode is a no-op;
// switching modes on an existing database is refused.
func InitSchema(path string, backend config.Backend, compress bool) error {
	if !backend.UsesDatabase() {
		return fmt.Errorf("backend %q does not use a database: %w", backend, domain.ErrValidation)
	}
	if compress && backend != config.BackendDocument {
		return fmt.Errorf("compression applies to the document backend only: %w", domain.ErrValidation)
	}

	m, err := migrator(path)
	if err != nil {
		return err
	}
	defer m.Close()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate %s: %v: %w", path, err, domain.ErrStorage)
	}

	db, err := Open(path)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := context.Background()
	if current, currentCompress, err := ReadMode(ctx, db); err == nil {
		if current != backend || currentCompress != compress {
			return fmt.Errorf("database already initialized for %s (compress=%v): %w", current, currentCompress, domain.ErrConflict)
		}
		return nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		return err
	}

	_, err = db.ExecContext(ctx,
		`INSERT INTO config (id, hybrid, document, normalized, compress) VALUES (1, ?, ?, ?, ?)`,
		backend == config.BackendHybrid, backend == config.BackendDocument,
		backend == config.BackendNormalized, compress)
	if err != nil {
		return fmt.Errorf("record database mode: %v: %w", err, domain.ErrStorage)
	}
	return nil
}

// DropSchema removes every table, leaving the file ready for a fresh init.
func DropSchema(path string) error {
	m, err := migrator(path)
	if err != nil {
		return err
	}
	defer m.Close()
	if err := m.Drop(); err != nil {
		return fmt.Errorf("drop schema %s: %v: %w", path, err, domain.ErrStorage)
	}
	return nil
}

// ReadMode returns the backend mode a database was initialized for. A
// database without a config row (or without the table at all) reports
// domain.ErrNotFound.
func ReadMode(ctx context.Context, db *sql.DB) (config.Backend, bool, error) {
	row := db.QueryRowContext(ctx, `SELECT hybrid, document, normalized, compress FROM config WHERE id = 1`)
	var hybrid, document, normalized, compress bool
	err := row.Scan(&hybrid, &document, &normalized, &compress)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return "", false, fmt.Errorf("database is not initialized: %w", domain.ErrNotFound)
	case err != nil && strings.Contains(err.Error(), "no such table"):
		return "", false, fmt.Errorf("database is not initialized: %w", domain.ErrNotFound)
	case err != nil:
		return "", false, fmt.Errorf("read database mode: %v: %w", err, domain.ErrStorage)
	}
	switch {
	case hybrid:
		return config.BackendHybrid, false, nil
	case document:
		return config.BackendDocument, compress, nil
	case normalized:
		return config.BackendNormalized, false, nil
	default:
		return "", false, fmt.Errorf("config row names no backend: %w", domain.ErrCorruptDocument)
	}
}

// isUniqueViolation spots SQLite unique-constraint failures so they can be
// reported as conflicts instead of storage errors.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
