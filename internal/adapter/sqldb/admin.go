package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/couchcryptid/weather-history-store/internal/config"
	"github.com/couchcryptid/weather-history-store/internal/domain"
)

// LocationDetails is one location's slice of the database statistics.
type LocationDetails struct {
	Name      string
	Alias     string
	Histories int
	Size      int64
	StoreSize int64
}

// Details describes an initialized database: its mode and the per-location
// and aggregate storage statistics admin tooling reports.
type Details struct {
	Backend  config.Backend
	Compress bool
	FileSize int64
	Locations []LocationDetails

	TotalHistories int
	TotalSize      int64
	TotalStoreSize int64
}

// DBDetails collects the statistics for the database at path.
func DBDetails(ctx context.Context, db *sql.DB, path string) (*Details, error) {
	backend, compress, err := ReadMode(ctx, db)
	if err != nil {
		return nil, err
	}
	details := &Details{Backend: backend, Compress: compress}
	if info, err := os.Stat(path); err == nil {
		details.FileSize = info.Size()
	}

	rows, err := db.QueryContext(ctx, `
		SELECT l.name, l.alias,
		       COUNT(m.id), COALESCE(SUM(m.size), 0), COALESCE(SUM(m.store_size), 0)
		FROM locations l LEFT JOIN metadata m ON m.location_id = l.id
		GROUP BY l.id
		ORDER BY l.name COLLATE NOCASE`)
	if err != nil {
		return nil, fmt.Errorf("collect database details: %v: %w", err, domain.ErrStorage)
	}
	defer rows.Close()

	for rows.Next() {
		var d LocationDetails
		if err := rows.Scan(&d.Name, &d.Alias, &d.Histories, &d.Size, &d.StoreSize); err != nil {
			return nil, fmt.Errorf("scan database details: %v: %w", err, domain.ErrStorage)
		}
		details.Locations = append(details.Locations, d)
		details.TotalHistories += d.Histories
		details.TotalSize += d.Size
		details.TotalStoreSize += d.StoreSize
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("collect database details: %v: %w", err, domain.ErrStorage)
	}
	return details, nil
}
