package sqldb

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/couchcryptid/weather-history-store/internal/domain"
)

// baseStore carries the behavior every database backend shares: the
// locations table is the registry, the metadata table is the tracker. The
// concrete backends embed it and add their payload handling.
type baseStore struct {
	db     *sql.DB
	logger *slog.Logger
}

func (s *baseStore) Locations(ctx context.Context) ([]domain.Location, error) {
	return listLocations(ctx, s.db)
}

func (s *baseStore) AddLocation(ctx context.Context, location domain.Location) error {
	s.logger.Info("adding location", "alias", location.Alias, "name", location.Name)
	return insertLocation(ctx, s.db, location)
}

func (s *baseStore) UpdateLocation(ctx context.Context, alias string, update domain.LocationUpdate) error {
	return updateLocation(ctx, s.db, alias, update)
}

func (s *baseStore) RemoveLocation(ctx context.Context, alias string, cascade bool) error {
	s.logger.Info("removing location", "alias", alias, "cascade", cascade)
	return deleteLocation(ctx, s.db, alias, cascade)
}

func (s *baseStore) Dates(ctx context.Context, alias string) ([]domain.Date, error) {
	lid, err := locationID(ctx, s.db, alias)
	if err != nil {
		return nil, err
	}
	return listDates(ctx, s.db, lid)
}

func (s *baseStore) Summary(ctx context.Context, alias string) (domain.Summary, error) {
	lid, err := locationID(ctx, s.db, alias)
	if err != nil {
		return domain.Summary{}, err
	}
	summary, err := metadataSummary(ctx, s.db, alias, lid)
	if err != nil {
		return domain.Summary{}, err
	}
	summary.OverallSize = summary.StoreSize
	return summary, nil
}

func (s *baseStore) Close() error {
	return s.db.Close()
}

// SyncLocations inserts any of the given locations the database does not
// know yet. The bulk loader uses it to mirror the filesystem registry before
// mining.
func SyncLocations(ctx context.Context, db *sql.DB, locations []domain.Location) (int, error) {
	known, err := listLocations(ctx, db)
	if err != nil {
		return 0, err
	}
	aliases := make(map[string]bool, len(known))
	for _, l := range known {
		aliases[l.Alias] = true
	}
	added := 0
	for _, l := range locations {
		if aliases[l.Alias] {
			continue
		}
		if err := insertLocation(ctx, db, l); err != nil {
			return added, err
		}
		added++
	}
	return added, nil
}
