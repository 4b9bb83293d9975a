package adapter

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/weather-history-store/internal/adapter/filesys"
	"github.com/couchcryptid/weather-history-store/internal/adapter/sqldb"
	"github.com/couchcryptid/weather-history-store/internal/config"
	"github.com/couchcryptid/weather-history-store/internal/domain"
)

// Every backend satisfies the contract.
var (
	_ DataAdapter = (*filesys.Store)(nil)
	_ DataAdapter = (*sqldb.HybridStore)(nil)
	_ DataAdapter = (*sqldb.DocumentStore)(nil)
	_ DataAdapter = (*sqldb.NormalizedStore)(nil)
)

// Open builds the data adapter the configuration names. Database backends
// require a database already initialized (see sqldb.InitSchema) for that
// same mode; asking for a mode the database was not initialized for is an
// error rather than a silent fallback.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (DataAdapter, error) {
	fs, err := filesys.NewStore(cfg.DataDir, logger)
	if err != nil {
		return nil, err
	}
	if cfg.Backend == config.BackendFilesys {
		return fs, nil
	}

	db, err := sqldb.Open(cfg.DatabaseFile)
	if err != nil {
		return nil, err
	}
	mode, compress, err := sqldb.ReadMode(ctx, db)
	if err != nil {
		db.Close()
		return nil, err
	}
	if mode != cfg.Backend {
		db.Close()
		return nil, fmt.Errorf("database %s is initialized for %s, not %s: %w",
			cfg.DatabaseFile, mode, cfg.Backend, domain.ErrValidation)
	}

	switch cfg.Backend {
	case config.BackendHybrid:
		return sqldb.NewHybridStore(db, fs, logger), nil
	case config.BackendDocument:
		return sqldb.NewDocumentStore(db, compress, logger), nil
	case config.BackendNormalized:
		return sqldb.NewNormalizedStore(db, logger), nil
	default:
		db.Close()
		return nil, fmt.Errorf("unknown backend %q: %w", cfg.Backend, domain.ErrValidation)
	}
}
