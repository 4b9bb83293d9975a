// Package adapter defines the capability contract every storage backend
// implements, and the factory that selects one from configuration.
//
// Four backends exist: filesys keeps everything in per-location archives
// plus a locations.json registry; hybrid keeps locations and metadata in
// SQLite while payload stays archived; document keeps payload as an
// (optionally compressed) JSON column; normalized decomposes payload into
// typed columns. Given equivalent underlying data, all four return identical
// results from the read operations — that portability guarantee is the
// reason this interface exists.
package adapter

import (
	"context"

	"github.com/couchcryptid/weather-history-store/internal/domain"
)

// DataAdapter is the single read/write contract callers hold. Instances are
// not safe for concurrent use unless the implementation says otherwise;
// treat each as owned by one goroutine.
//
// Failure taxonomy: domain.ErrNotFound for unknown locations or dates,
// domain.ErrConflict for uniqueness violations, domain.ErrValidation for
// malformed input, domain.ErrCorruptArchive / domain.ErrCorruptDocument for
// unreadable stored data, domain.ErrStorage for I/O failures. ReadHistories
// over a range with no data returns an empty slice, not an error.
type DataAdapter interface {
	// Locations lists every known location, ordered by name.
	Locations(ctx context.Context) ([]domain.Location, error)

	// AddLocation registers a new location. Fails with domain.ErrConflict
	// when the name or alias already exists.
	AddLocation(ctx context.Context, location domain.Location) error

	// UpdateLocation reassigns a location's coordinates or timezone.
	// Identity fields are immutable.
	UpdateLocation(ctx context.Context, alias string, update domain.LocationUpdate) error

	// RemoveLocation deletes a location. With history still present it
	// fails with domain.ErrConflict unless cascade is set, in which case
	// dependent history is removed too.
	RemoveLocation(ctx context.Context, alias string, cascade bool) error

	// Dates lists the dates history exists for, ascending.
	Dates(ctx context.Context, alias string) ([]domain.Date, error)

	// ReadHistories returns the histories intersecting the range, ascending
	// by date.
	ReadHistories(ctx context.Context, alias string, r domain.DateRange) ([]domain.History, error)

	// WriteHistory stores one day's history, replacing any existing record
	// for that date.
	WriteHistory(ctx context.Context, history domain.History) error

	// Summary reports the location's storage statistics.
	Summary(ctx context.Context, alias string) (domain.Summary, error)

	// Close releases the backend's resources.
	Close() error
}
