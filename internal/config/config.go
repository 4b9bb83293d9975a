package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Backend names the storage strategy a data adapter is opened with.
type Backend string

const (
	BackendFilesys    Backend = "filesys"
	BackendHybrid     Backend = "hybrid"
	BackendDocument   Backend = "document"
	BackendNormalized Backend = "normalized"
)

// UsesDatabase reports whether the backend needs the relational store.
func (b Backend) UsesDatabase() bool { return b != BackendFilesys }

// Config holds all engine settings, populated from environment variables.
type Config struct {
	DataDir      string
	DatabaseFile string
	Backend      Backend

	// Compress applies to document-mode schema initialization only; a
	// database records its own flag afterward.
	Compress bool

	LoaderWorkers      int
	LoaderQueueDepth   int
	BatchSize          int
	BatchFlushInterval time.Duration

	LogLevel  string
	LogFormat string
}

// Load reads configuration from environment variables, applying defaults
// where unset.
func Load() (*Config, error) {
	dataDir := envOrDefault("WEATHER_DATA_DIR", "weather_data")

	cfg := &Config{
		DataDir:      dataDir,
		DatabaseFile: envOrDefault("WEATHER_DB_FILE", filepath.Join(dataDir, "weather_data.db")),
		Backend:      Backend(envOrDefault("WEATHER_BACKEND", string(BackendFilesys))),
		LogLevel:     envOrDefault("LOG_LEVEL", "info"),
		LogFormat:    envOrDefault("LOG_FORMAT", "text"),
	}

	var err error
	if cfg.Compress, err = boolEnv("WEATHER_COMPRESS", false); err != nil {
		return nil, err
	}
	if cfg.LoaderWorkers, err = intEnv("LOADER_WORKERS", 8); err != nil {
		return nil, err
	}
	if cfg.LoaderQueueDepth, err = intEnv("LOADER_QUEUE_DEPTH", 64); err != nil {
		return nil, err
	}
	if cfg.BatchSize, err = intEnv("BATCH_SIZE", 100); err != nil {
		return nil, err
	}
	if cfg.BatchFlushInterval, err = durationEnv("BATCH_FLUSH_INTERVAL", 2*time.Second); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Backend {
	case BackendFilesys, BackendHybrid, BackendDocument, BackendNormalized:
	default:
		return fmt.Errorf("WEATHER_BACKEND %q is not one of filesys, hybrid, document, normalized", c.Backend)
	}
	if c.DataDir == "" {
		return errors.New("WEATHER_DATA_DIR is required")
	}
	if c.Backend.UsesDatabase() && c.DatabaseFile == "" {
		return errors.New("WEATHER_DB_FILE is required for database backends")
	}
	if c.LoaderWorkers < 1 {
		return errors.New("LOADER_WORKERS must be at least 1")
	}
	if c.LoaderQueueDepth < 1 {
		return errors.New("LOADER_QUEUE_DEPTH must be at least 1")
	}
	if c.BatchSize < 1 {
		return errors.New("BATCH_SIZE must be at least 1")
	}
	if c.BatchFlushInterval <= 0 {
		return errors.New("BATCH_FLUSH_INTERVAL must be positive")
	}
	return nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func boolEnv(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %q", key, v)
	}
	return b, nil
}

func intEnv(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", key, v)
	}
	return n, nil
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", key, v)
	}
	return d, nil
}
