// Command weatherstore administers a weather history store: it initializes
// and drops database schemas, runs bulk loads from the filesystem archives,
// and reports storage statistics.
//
// Usage:
//
//	weatherstore init         initialize the configured database schema
//	weatherstore drop         drop the database schema
//	weatherstore load         bulk-load archives into the configured database
//	weatherstore stats        print per-location storage statistics
//
// Configuration comes from the environment (see internal/config); a .env
// file in the working directory is picked up when present.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/couchcryptid/weather-history-store/internal/adapter"
	"github.com/couchcryptid/weather-history-store/internal/adapter/filesys"
	"github.com/couchcryptid/weather-history-store/internal/adapter/sqldb"
	"github.com/couchcryptid/weather-history-store/internal/config"
	"github.com/couchcryptid/weather-history-store/internal/domain"
	"github.com/couchcryptid/weather-history-store/internal/loader"
	"github.com/couchcryptid/weather-history-store/internal/observability"
)

func main() {
	if err := run(); err != nil {
		slog.Error("weatherstore failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// Missing .env is fine; the environment may carry everything already.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := observability.NewLogger(cfg)

	if len(os.Args) < 2 {
		return fmt.Errorf("usage: weatherstore <init|drop|load|stats>")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch cmd := os.Args[1]; cmd {
	case "init":
		return runInit(cfg, logger)
	case "drop":
		return runDrop(cfg, logger)
	case "load":
		return runLoad(ctx, cfg, logger)
	case "stats":
		return runStats(ctx, cfg, logger)
	default:
		return fmt.Errorf("unknown command %q: want init, drop, load, or stats", cmd)
	}
}

func runInit(cfg *config.Config, logger *slog.Logger) error {
	if !cfg.Backend.UsesDatabase() {
		return fmt.Errorf("backend %q keeps no database: %w", cfg.Backend, domain.ErrValidation)
	}
	if err := sqldb.InitSchema(cfg.DatabaseFile, cfg.Backend, cfg.Compress); err != nil {
		return err
	}
	logger.Info("database initialized",
		"file", cfg.DatabaseFile, "backend", cfg.Backend, "compress", cfg.Compress)
	return nil
}

func runDrop(cfg *config.Config, logger *slog.Logger) error {
	if err := sqldb.DropSchema(cfg.DatabaseFile); err != nil {
		return err
	}
	logger.Info("database schema dropped", "file", cfg.DatabaseFile)
	return nil
}

func runLoad(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	fs, err := filesys.NewStore(cfg.DataDir, logger)
	if err != nil {
		return err
	}
	db, err := sqldb.Open(cfg.DatabaseFile)
	if err != nil {
		return err
	}
	defer db.Close()

	// Registry entries the database has not seen yet come over first.
	locations, err := fs.Locations(ctx)
	if err != nil {
		return err
	}
	added, err := sqldb.SyncLocations(ctx, db, locations)
	if err != nil {
		return err
	}
	if added > 0 {
		logger.Info("registered new locations", "count", added)
	}

	sink, err := sqldb.NewLoadSink(ctx, db)
	if err != nil {
		return err
	}
	defer sink.Close()

	metrics := observability.NewMetrics()
	l := loader.New(fs, sink, logger, metrics, loader.OptionsFromConfig(cfg))
	report, runErr := l.Run(ctx)
	if report != nil {
		printReport(report)
	}
	return runErr
}

func printReport(r *loader.Report) {
	fmt.Printf("job %s: written=%d skipped=%d done=%d failed=%d pending=%d in %s\n",
		r.JobID, r.Written, r.Skipped, r.Done, r.Failed, r.Pending, r.Elapsed)
	for _, lr := range r.Locations {
		line := fmt.Sprintf("  %-20s %-8s written=%d skipped=%d elapsed=%s",
			lr.Location.Alias, lr.State, lr.Written, lr.Skipped, lr.Elapsed)
		if lr.Err != nil {
			line += fmt.Sprintf(" error=%v", lr.Err)
		}
		fmt.Println(line)
	}
}

func runStats(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	if cfg.Backend.UsesDatabase() {
		db, err := sqldb.Open(cfg.DatabaseFile)
		if err != nil {
			return err
		}
		defer db.Close()

		details, err := sqldb.DBDetails(ctx, db, cfg.DatabaseFile)
		if err != nil {
			return err
		}
		fmt.Printf("%s: backend=%s compress=%v size=%d bytes\n",
			cfg.DatabaseFile, details.Backend, details.Compress, details.FileSize)
		for _, l := range details.Locations {
			fmt.Printf("  %-20s histories=%-6d size=%-10d stored=%d\n",
				l.Alias, l.Histories, l.Size, l.StoreSize)
		}
		fmt.Printf("  total: histories=%d size=%d stored=%d\n",
			details.TotalHistories, details.TotalSize, details.TotalStoreSize)
	}

	store, err := adapter.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	locations, err := store.Locations(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("coverage (%s):\n", cfg.Backend)
	for _, loc := range locations {
		dates, err := store.Dates(ctx, loc.Alias)
		if err != nil {
			return err
		}
		fmt.Printf("  %-20s", loc.Alias)
		for _, r := range domain.GroupDates(dates) {
			fmt.Printf(" %s", r)
		}
		fmt.Println()
	}
	return nil
}
