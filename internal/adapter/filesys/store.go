// Package filesys is the archive-backed storage backend: a locations.json
// registry document plus one zip container per location. It is the
// authoritative, durable store the database backends ultimately reconcile
// against for payload.
package filesys

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/couchcryptid/weather-history-store/internal/archive"
	"github.com/couchcryptid/weather-history-store/internal/domain"
)

// Store implements the data adapter contract directly atop the archive
// codec. One instance serves one data directory; treat it as owned by a
// single goroutine.
type Store struct {
	dir    string
	logger *slog.Logger
}

// NewStore opens (creating if needed) the data directory.
func NewStore(dir string, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory %s: %v: %w", dir, err, domain.ErrStorage)
	}
	return &Store{dir: dir, logger: logger}, nil
}

// Dir returns the data directory the store manages.
func (s *Store) Dir() string { return s.dir }

func (s *Store) Locations(_ context.Context) ([]domain.Location, error) {
	locations, err := loadLocations(s.dir)
	if err != nil {
		return nil, err
	}
	sort.Slice(locations, func(i, j int) bool {
		return strings.ToLower(locations[i].Name) < strings.ToLower(locations[j].Name)
	})
	return locations, nil
}

func (s *Store) AddLocation(_ context.Context, location domain.Location) error {
	if err := location.Validate(); err != nil {
		return err
	}
	locations, err := loadLocations(s.dir)
	if err != nil {
		return err
	}
	if err := checkUnique(locations, location); err != nil {
		return err
	}
	s.logger.Info("adding location", "alias", location.Alias, "name", location.Name)
	return saveLocations(s.dir, append(locations, location))
}

func (s *Store) UpdateLocation(_ context.Context, alias string, update domain.LocationUpdate) error {
	locations, err := loadLocations(s.dir)
	if err != nil {
		return err
	}
	i := findLocation(locations, alias)
	if i < 0 {
		return fmt.Errorf("location %q: %w", alias, domain.ErrNotFound)
	}
	update.Apply(&locations[i])
	return saveLocations(s.dir, locations)
}

func (s *Store) RemoveLocation(_ context.Context, alias string, cascade bool) error {
	locations, err := loadLocations(s.dir)
	if err != nil {
		return err
	}
	i := findLocation(locations, alias)
	if i < 0 {
		return fmt.Errorf("location %q: %w", alias, domain.ErrNotFound)
	}

	a := archive.New(s.dir, alias)
	if a.Exists() {
		dates, err := a.List()
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		if len(dates) > 0 && !cascade {
			return fmt.Errorf("location %q still has %d history dates: %w", alias, len(dates), domain.ErrConflict)
		}
		if err := a.Remove(); err != nil {
			return err
		}
	}

	s.logger.Info("removing location", "alias", alias, "cascade", cascade)
	return saveLocations(s.dir, append(locations[:i], locations[i+1:]...))
}

func (s *Store) Dates(_ context.Context, alias string) ([]domain.Date, error) {
	if err := s.requireLocation(alias); err != nil {
		return nil, err
	}
	a := archive.New(s.dir, alias)
	if !a.Exists() {
		return nil, nil
	}
	return a.List()
}

func (s *Store) ReadHistories(_ context.Context, alias string, r domain.DateRange) ([]domain.History, error) {
	if err := s.requireLocation(alias); err != nil {
		return nil, err
	}
	return s.ReadArchiveHistories(alias, r)
}

func (s *Store) WriteHistory(_ context.Context, history domain.History) error {
	if err := s.requireLocation(history.Alias); err != nil {
		return err
	}
	_, err := s.WriteArchiveHistory(history)
	return err
}

func (s *Store) Summary(_ context.Context, alias string) (domain.Summary, error) {
	if err := s.requireLocation(alias); err != nil {
		return domain.Summary{}, err
	}
	a := archive.New(s.dir, alias)
	if !a.Exists() {
		return domain.Summary{Alias: alias}, nil
	}
	return a.Summary()
}

func (s *Store) Close() error { return nil }

// requireLocation fails with domain.ErrNotFound unless alias is registered.
func (s *Store) requireLocation(alias string) error {
	locations, err := loadLocations(s.dir)
	if err != nil {
		return err
	}
	if findLocation(locations, alias) < 0 {
		return fmt.Errorf("location %q: %w", alias, domain.ErrNotFound)
	}
	return nil
}

// The archive-level operations below skip the registry check. The hybrid
// backend delegates payload here while keeping locations in its own tables,
// and the loader mines through them.

// ReadArchiveHistories decodes every archived history intersecting r,
// ascending by date. A missing container reads as no history.
func (s *Store) ReadArchiveHistories(alias string, r domain.DateRange) ([]domain.History, error) {
	a := archive.New(s.dir, alias)
	if !a.Exists() {
		return nil, nil
	}
	dates, err := a.List()
	if err != nil {
		return nil, err
	}
	var histories []domain.History
	for _, date := range dates {
		if !r.Covers(date) {
			continue
		}
		data, err := a.Read(date)
		if err != nil {
			return nil, err
		}
		history, err := domain.DecodeHistory(alias, data)
		if err != nil {
			return nil, err
		}
		histories = append(histories, history)
	}
	return histories, nil
}

// WriteArchiveHistory serializes one history into the location's container,
// replacing any entry for that date, and returns the entry metadata as
// persisted.
func (s *Store) WriteArchiveHistory(history domain.History) (domain.Metadata, error) {
	data, err := history.Encode()
	if err != nil {
		return domain.Metadata{}, err
	}
	return archive.New(s.dir, history.Alias).Write(history.Date, data, domain.Now())
}

// ArchiveSummary reports the container statistics without a registry check.
func (s *Store) ArchiveSummary(alias string) (domain.Summary, error) {
	a := archive.New(s.dir, alias)
	if !a.Exists() {
		return domain.Summary{Alias: alias}, nil
	}
	return a.Summary()
}

// RemoveArchive deletes the location's container, if present.
func (s *Store) RemoveArchive(alias string) error {
	return archive.New(s.dir, alias).Remove()
}

// EachHistory streams every archived history for alias in container order,
// with its entry metadata, to fn. Iteration stops on the first error from fn.
// This is the loader's mining path.
func (s *Store) EachHistory(alias string, fn func(domain.History, domain.Metadata) error) error {
	a := archive.New(s.dir, alias)
	if !a.Exists() {
		return nil
	}
	dates, err := a.List()
	if err != nil {
		return err
	}
	for _, date := range dates {
		data, err := a.Read(date)
		if err != nil {
			return err
		}
		history, err := domain.DecodeHistory(alias, data)
		if err != nil {
			return err
		}
		md, err := a.EntryInfo(date)
		if err != nil {
			return err
		}
		if err := fn(history, md); err != nil {
			return err
		}
	}
	return nil
}
