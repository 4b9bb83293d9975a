package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/klauspost/compress/snappy"

	"github.com/couchcryptid/weather-history-store/internal/config"
	"github.com/couchcryptid/weather-history-store/internal/domain"
)

// LoadSink is the bulk loader's write side: batched transactions into a
// document- or normalized-mode database. It is owned by the loader's single
// writer goroutine for the job's duration; nothing here is safe for
// concurrent use.
type LoadSink struct {
	db       *sql.DB
	backend  config.Backend
	compress bool
	tx       *sql.Tx
	lids     map[string]int64
}

// NewLoadSink builds a sink for the database's recorded mode. Hybrid
// databases are refused: their payload already lives in the archives the
// loader would be mining from.
func NewLoadSink(ctx context.Context, db *sql.DB) (*LoadSink, error) {
	backend, compress, err := ReadMode(ctx, db)
	if err != nil {
		return nil, err
	}
	if backend != config.BackendDocument && backend != config.BackendNormalized {
		return nil, fmt.Errorf("bulk load targets document or normalized databases, not %s: %w", backend, domain.ErrValidation)
	}
	return &LoadSink{db: db, backend: backend, compress: compress, lids: map[string]int64{}}, nil
}

// Begin opens the next transaction batch.
func (s *LoadSink) Begin(ctx context.Context) error {
	if s.tx != nil {
		return fmt.Errorf("batch already open: %w", domain.ErrStorage)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin load batch: %v: %w", err, domain.ErrStorage)
	}
	s.tx = tx
	return nil
}

// Write stores one mined history inside the open batch. It reports false,
// without writing, when the target's metadata already matches the source's
// size and mtime — the skip that makes re-loads cheap.
func (s *LoadSink) Write(ctx context.Context, history domain.History, source domain.Metadata) (bool, error) {
	if s.tx == nil {
		return false, fmt.Errorf("no open batch: %w", domain.ErrStorage)
	}
	lid, err := s.locationID(ctx, history.Alias)
	if err != nil {
		return false, err
	}

	if _, existing, err := getMetadata(ctx, s.tx, lid, history.Date); err == nil {
		if existing.Unchanged(source.Size, source.MTime) {
			return false, nil
		}
	} else if !errors.Is(err, domain.ErrNotFound) {
		return false, err
	}

	data, err := history.Encode()
	if err != nil {
		return false, err
	}

	md := domain.Metadata{Date: history.Date, Size: source.Size, MTime: source.MTime}
	var zipped []byte
	switch {
	case s.backend == config.BackendDocument && s.compress:
		zipped = snappy.Encode(nil, data)
		md.StoreSize = int64(len(zipped))
	case s.backend == config.BackendDocument:
		md.StoreSize = int64(len(data))
	default:
		md.StoreSize = source.Size
	}

	mid, err := upsertMetadata(ctx, s.tx, lid, md)
	if err != nil {
		return false, err
	}
	if s.backend == config.BackendDocument {
		err = replaceDocument(ctx, s.tx, mid, data, zipped)
	} else {
		err = replaceHistoryRow(ctx, s.tx, mid, history)
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Commit closes the open batch. Committing with no batch open is a no-op so
// the loader can flush unconditionally on shutdown.
func (s *LoadSink) Commit(_ context.Context) error {
	if s.tx == nil {
		return nil
	}
	err := s.tx.Commit()
	s.tx = nil
	if err != nil {
		return fmt.Errorf("commit load batch: %v: %w", err, domain.ErrStorage)
	}
	return nil
}

// Close rolls back any open batch. Safe after Commit.
func (s *LoadSink) Close() error {
	if s.tx == nil {
		return nil
	}
	err := s.tx.Rollback()
	s.tx = nil
	if err != nil {
		return fmt.Errorf("abort load batch: %v: %w", err, domain.ErrStorage)
	}
	return nil
}

func (s *LoadSink) locationID(ctx context.Context, alias string) (int64, error) {
	if lid, ok := s.lids[alias]; ok {
		return lid, nil
	}
	lid, err := locationID(ctx, s.tx, alias)
	if err != nil {
		return 0, err
	}
	s.lids[alias] = lid
	return lid, nil
}
