package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/couchcryptid/weather-history-store/internal/domain"
)

// querier is the subset of database/sql shared by *sql.DB and *sql.Tx, so
// the table helpers work inside and outside transactions.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

var (
	_ querier = (*sql.DB)(nil)
	_ querier = (*sql.Tx)(nil)
)

// listLocations returns every location ordered by name.
func listLocations(ctx context.Context, q querier) ([]domain.Location, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT name, alias, longitude, latitude, tz FROM locations ORDER BY name COLLATE NOCASE`)
	if err != nil {
		return nil, fmt.Errorf("list locations: %v: %w", err, domain.ErrStorage)
	}
	defer rows.Close()

	var locations []domain.Location
	for rows.Next() {
		var l domain.Location
		if err := rows.Scan(&l.Name, &l.Alias, &l.Longitude, &l.Latitude, &l.TZ); err != nil {
			return nil, fmt.Errorf("scan location: %v: %w", err, domain.ErrStorage)
		}
		locations = append(locations, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list locations: %v: %w", err, domain.ErrStorage)
	}
	return locations, nil
}

// locationID resolves an alias to its primary id.
func locationID(ctx context.Context, q querier, alias string) (int64, error) {
	var id int64
	err := q.QueryRowContext(ctx, `SELECT id FROM locations WHERE alias = ?`, alias).Scan(&id)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return 0, fmt.Errorf("location %q: %w", alias, domain.ErrNotFound)
	case err != nil:
		return 0, fmt.Errorf("location %q: %v: %w", alias, err, domain.ErrStorage)
	}
	return id, nil
}

// insertLocation adds a location, mapping the unique indexes on name and
// alias onto the conflict error.
func insertLocation(ctx context.Context, q querier, l domain.Location) error {
	if err := l.Validate(); err != nil {
		return err
	}
	_, err := q.ExecContext(ctx,
		`INSERT INTO locations (name, alias, longitude, latitude, tz) VALUES (?, ?, ?, ?, ?)`,
		l.Name, l.Alias, l.Longitude, l.Latitude, l.TZ)
	switch {
	case isUniqueViolation(err):
		return fmt.Errorf("location %q (%s) already exists: %w", l.Name, l.Alias, domain.ErrConflict)
	case err != nil:
		return fmt.Errorf("add location %q: %v: %w", l.Alias, err, domain.ErrStorage)
	}
	return nil
}

// updateLocation reassigns the mutable fields of an existing location.
func updateLocation(ctx context.Context, q querier, alias string, update domain.LocationUpdate) error {
	var l domain.Location
	err := q.QueryRowContext(ctx,
		`SELECT name, alias, longitude, latitude, tz FROM locations WHERE alias = ?`, alias).
		Scan(&l.Name, &l.Alias, &l.Longitude, &l.Latitude, &l.TZ)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("location %q: %w", alias, domain.ErrNotFound)
	case err != nil:
		return fmt.Errorf("location %q: %v: %w", alias, err, domain.ErrStorage)
	}
	update.Apply(&l)
	_, err = q.ExecContext(ctx,
		`UPDATE locations SET longitude = ?, latitude = ?, tz = ? WHERE alias = ?`,
		l.Longitude, l.Latitude, l.TZ, alias)
	if err != nil {
		return fmt.Errorf("update location %q: %v: %w", alias, err, domain.ErrStorage)
	}
	return nil
}

// deleteLocation removes a location and, through the foreign keys, all of
// its metadata and payload rows. It refuses while history remains unless
// cascade is set.
func deleteLocation(ctx context.Context, q querier, alias string, cascade bool) error {
	lid, err := locationID(ctx, q, alias)
	if err != nil {
		return err
	}
	if !cascade {
		var count int
		err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM metadata WHERE location_id = ?`, lid).Scan(&count)
		if err != nil {
			return fmt.Errorf("count history for %q: %v: %w", alias, err, domain.ErrStorage)
		}
		if count > 0 {
			return fmt.Errorf("location %q still has %d history dates: %w", alias, count, domain.ErrConflict)
		}
	}
	if _, err := q.ExecContext(ctx, `DELETE FROM locations WHERE id = ?`, lid); err != nil {
		return fmt.Errorf("remove location %q: %v: %w", alias, err, domain.ErrStorage)
	}
	return nil
}
