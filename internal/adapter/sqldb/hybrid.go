package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/weather-history-store/internal/adapter/filesys"
	"github.com/couchcryptid/weather-history-store/internal/domain"
)

// HybridStore keeps locations and metadata in SQL, where "what exists" is
// cheap to query, while payload stays in the filesystem backend's archives.
// The filesystem store is owned composition, not a base class: history calls
// bounce off the metadata tables and delegate payload to it.
type HybridStore struct {
	baseStore
	fs *filesys.Store
}

// NewHybridStore wraps an open database initialized in hybrid mode together
// with the archive store holding the payload.
func NewHybridStore(db *sql.DB, fs *filesys.Store, logger *slog.Logger) *HybridStore {
	return &HybridStore{baseStore: baseStore{db: db, logger: logger}, fs: fs}
}

func (s *HybridStore) ReadHistories(ctx context.Context, alias string, r domain.DateRange) ([]domain.History, error) {
	// The registry of record is the database; the archive is only payload.
	if _, err := locationID(ctx, s.db, alias); err != nil {
		return nil, err
	}
	return s.fs.ReadArchiveHistories(alias, r)
}

func (s *HybridStore) WriteHistory(ctx context.Context, history domain.History) error {
	lid, err := locationID(ctx, s.db, history.Alias)
	if err != nil {
		return err
	}
	// Payload first: the archive write is atomic, and metadata derived from
	// the committed entry can never describe data that failed to land.
	md, err := s.fs.WriteArchiveHistory(history)
	if err != nil {
		return err
	}
	if _, err := upsertMetadata(ctx, s.db, lid, md); err != nil {
		return err
	}
	return nil
}

func (s *HybridStore) Summary(ctx context.Context, alias string) (domain.Summary, error) {
	lid, err := locationID(ctx, s.db, alias)
	if err != nil {
		return domain.Summary{}, err
	}
	summary, err := metadataSummary(ctx, s.db, alias, lid)
	if err != nil {
		return domain.Summary{}, err
	}
	// The archive file itself is the real footprint.
	archiveSummary, err := s.fs.ArchiveSummary(alias)
	if err != nil {
		return domain.Summary{}, err
	}
	summary.OverallSize = archiveSummary.OverallSize
	return summary, nil
}

func (s *HybridStore) RemoveLocation(ctx context.Context, alias string, cascade bool) error {
	if err := s.baseStore.RemoveLocation(ctx, alias, cascade); err != nil {
		return err
	}
	return s.fs.RemoveArchive(alias)
}

// Reconcile refreshes the metadata rows for a location from its archive,
// the authoritative payload source. Used after archives change outside the
// adapter (an offline re-fetch, a restored backup).
func (s *HybridStore) Reconcile(ctx context.Context, alias string) (int, error) {
	lid, err := locationID(ctx, s.db, alias)
	if err != nil {
		return 0, err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin reconcile for %q: %v: %w", alias, err, domain.ErrStorage)
	}
	defer tx.Rollback()

	refreshed := 0
	err = s.fs.EachHistory(alias, func(_ domain.History, md domain.Metadata) error {
		if _, err := upsertMetadata(ctx, tx, lid, md); err != nil {
			return err
		}
		refreshed++
		return nil
	})
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit reconcile for %q: %v: %w", alias, err, domain.ErrStorage)
	}
	return refreshed, nil
}
