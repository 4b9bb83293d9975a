package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/klauspost/compress/snappy"

	"github.com/couchcryptid/weather-history-store/internal/domain"
)

// DocumentStore keeps history payload as one JSON document per day in the
// documents table, plain text or snappy-compressed per the database's
// compress flag. Compression is invisible to callers.
type DocumentStore struct {
	baseStore
	compress bool
}

// NewDocumentStore wraps an open database initialized in document mode.
func NewDocumentStore(db *sql.DB, compress bool, logger *slog.Logger) *DocumentStore {
	return &DocumentStore{baseStore: baseStore{db: db, logger: logger}, compress: compress}
}

func (s *DocumentStore) ReadHistories(ctx context.Context, alias string, r domain.DateRange) ([]domain.History, error) {
	lid, err := locationID(ctx, s.db, alias)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT d.plain, d.zipped
		FROM metadata m JOIN documents d ON d.metadata_id = m.id
		WHERE m.location_id = ? AND m.date >= ? AND m.date <= ?
		ORDER BY m.date`,
		lid, r.From.String(), r.Thru.String())
	if err != nil {
		return nil, fmt.Errorf("read documents for %q: %v: %w", alias, err, domain.ErrStorage)
	}
	defer rows.Close()

	var histories []domain.History
	for rows.Next() {
		var (
			plain  sql.NullString
			zipped []byte
		)
		if err := rows.Scan(&plain, &zipped); err != nil {
			return nil, fmt.Errorf("scan document for %q: %v: %w", alias, err, domain.ErrStorage)
		}
		data, err := decodePayload(alias, plain, zipped)
		if err != nil {
			return nil, err
		}
		history, err := domain.DecodeHistory(alias, data)
		if err != nil {
			return nil, err
		}
		histories = append(histories, history)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read documents for %q: %v: %w", alias, err, domain.ErrStorage)
	}
	return histories, nil
}

func (s *DocumentStore) WriteHistory(ctx context.Context, history domain.History) error {
	lid, err := locationID(ctx, s.db, history.Alias)
	if err != nil {
		return err
	}
	data, err := history.Encode()
	if err != nil {
		return err
	}

	md := domain.Metadata{Date: history.Date, Size: int64(len(data)), MTime: domain.Now()}
	var zipped []byte
	if s.compress {
		zipped = snappy.Encode(nil, data)
		md.StoreSize = int64(len(zipped))
	} else {
		md.StoreSize = md.Size
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin write for %q: %v: %w", history.Alias, err, domain.ErrStorage)
	}
	defer tx.Rollback()

	mid, err := upsertMetadata(ctx, tx, lid, md)
	if err != nil {
		return err
	}
	if err := replaceDocument(ctx, tx, mid, data, zipped); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit write for %q: %v: %w", history.Alias, err, domain.ErrStorage)
	}
	return nil
}

// replaceDocument swaps the payload row under a metadata id. Exactly one of
// plain/zipped ends up set.
func replaceDocument(ctx context.Context, q querier, mid int64, plain, zipped []byte) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM documents WHERE metadata_id = ?`, mid); err != nil {
		return fmt.Errorf("replace document: %v: %w", err, domain.ErrStorage)
	}
	var err error
	if zipped != nil {
		_, err = q.ExecContext(ctx,
			`INSERT INTO documents (metadata_id, zipped, uncompressed_size) VALUES (?, ?, ?)`,
			mid, zipped, len(plain))
	} else {
		_, err = q.ExecContext(ctx,
			`INSERT INTO documents (metadata_id, plain, uncompressed_size) VALUES (?, ?, ?)`,
			mid, string(plain), len(plain))
	}
	if err != nil {
		return fmt.Errorf("insert document: %v: %w", err, domain.ErrStorage)
	}
	return nil
}

// decodePayload recovers the JSON document from whichever column is set.
func decodePayload(alias string, plain sql.NullString, zipped []byte) ([]byte, error) {
	if len(zipped) > 0 {
		data, err := snappy.Decode(nil, zipped)
		if err != nil {
			return nil, fmt.Errorf("uncompress document for %q: %v: %w", alias, err, domain.ErrCorruptDocument)
		}
		return data, nil
	}
	if !plain.Valid {
		return nil, fmt.Errorf("document row for %q has no payload: %w", alias, domain.ErrCorruptDocument)
	}
	return []byte(plain.String), nil
}
