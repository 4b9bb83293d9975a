package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/couchcryptid/weather-history-store/internal/domain"
)

// getMetadata returns the row id and facts for one (location, date), or
// domain.ErrNotFound.
func getMetadata(ctx context.Context, q querier, lid int64, date domain.Date) (int64, domain.Metadata, error) {
	var (
		id      int64
		dateStr string
		md      domain.Metadata
	)
	err := q.QueryRowContext(ctx,
		`SELECT id, date, size, store_size, mtime FROM metadata WHERE location_id = ? AND date = ?`,
		lid, date.String()).Scan(&id, &dateStr, &md.Size, &md.StoreSize, &md.MTime)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return 0, domain.Metadata{}, fmt.Errorf("no metadata for %s: %w", date, domain.ErrNotFound)
	case err != nil:
		return 0, domain.Metadata{}, fmt.Errorf("metadata for %s: %v: %w", date, err, domain.ErrStorage)
	}
	md.Date, err = domain.ParseDate(dateStr)
	if err != nil {
		return 0, domain.Metadata{}, fmt.Errorf("metadata date %q: %w", dateStr, domain.ErrCorruptDocument)
	}
	return id, md, nil
}

// upsertMetadata inserts or refreshes the bookkeeping row for one
// (location, date) and returns its id. Idempotent: identical facts leave
// the row byte-for-byte unchanged.
func upsertMetadata(ctx context.Context, q querier, lid int64, md domain.Metadata) (int64, error) {
	var id int64
	err := q.QueryRowContext(ctx, `
		INSERT INTO metadata (location_id, date, size, store_size, mtime)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (location_id, date)
		DO UPDATE SET size = excluded.size, store_size = excluded.store_size, mtime = excluded.mtime
		RETURNING id`,
		lid, md.Date.String(), md.Size, md.StoreSize, md.MTime).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert metadata for %s: %v: %w", md.Date, err, domain.ErrStorage)
	}
	return id, nil
}

// listDates returns the dates metadata exists for, ascending. The ISO date
// text collates correctly, so the index on (location_id, date) serves the
// order for free.
func listDates(ctx context.Context, q querier, lid int64) ([]domain.Date, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT date FROM metadata WHERE location_id = ? ORDER BY date`, lid)
	if err != nil {
		return nil, fmt.Errorf("list history dates: %v: %w", err, domain.ErrStorage)
	}
	defer rows.Close()

	var dates []domain.Date
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("scan history date: %v: %w", err, domain.ErrStorage)
		}
		date, err := domain.ParseDate(s)
		if err != nil {
			return nil, fmt.Errorf("history date %q: %w", s, domain.ErrCorruptDocument)
		}
		dates = append(dates, date)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list history dates: %v: %w", err, domain.ErrStorage)
	}
	return dates, nil
}

// metadataSummary aggregates the location's bookkeeping rows.
func metadataSummary(ctx context.Context, q querier, alias string, lid int64) (domain.Summary, error) {
	summary := domain.Summary{Alias: alias}
	err := q.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(size), 0), COALESCE(SUM(store_size), 0)
		FROM metadata WHERE location_id = ?`, lid).
		Scan(&summary.Count, &summary.Size, &summary.StoreSize)
	if err != nil {
		return domain.Summary{}, fmt.Errorf("summarize %q: %v: %w", alias, err, domain.ErrStorage)
	}
	return summary, nil
}
