package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "weather_data", cfg.DataDir)
	assert.Equal(t, filepath.Join("weather_data", "weather_data.db"), cfg.DatabaseFile)
	assert.Equal(t, BackendFilesys, cfg.Backend)
	assert.False(t, cfg.Compress)
	assert.Equal(t, 8, cfg.LoaderWorkers)
	assert.Equal(t, 64, cfg.LoaderQueueDepth)
	assert.Equal(t, 100, cfg.BatchSize)
	assert.Equal(t, 2*time.Second, cfg.BatchFlushInterval)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("WEATHER_DATA_DIR", "/var/lib/weather")
	t.Setenv("WEATHER_BACKEND", "document")
	t.Setenv("WEATHER_COMPRESS", "true")
	t.Setenv("LOADER_WORKERS", "4")
	t.Setenv("BATCH_FLUSH_INTERVAL", "500ms")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/weather", cfg.DataDir)
	assert.Equal(t, filepath.Join("/var/lib/weather", "weather_data.db"), cfg.DatabaseFile,
		"database file should default into the data directory")
	assert.Equal(t, BackendDocument, cfg.Backend)
	assert.True(t, cfg.Compress)
	assert.Equal(t, 4, cfg.LoaderWorkers)
	assert.Equal(t, 500*time.Millisecond, cfg.BatchFlushInterval)
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"unknown backend", "WEATHER_BACKEND", "mongodb"},
		{"non-numeric workers", "LOADER_WORKERS", "eight"},
		{"zero workers", "LOADER_WORKERS", "0"},
		{"zero batch size", "BATCH_SIZE", "0"},
		{"negative queue depth", "LOADER_QUEUE_DEPTH", "-1"},
		{"bad flush interval", "BATCH_FLUSH_INTERVAL", "soon"},
		{"bad compress flag", "WEATHER_COMPRESS", "yep"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestBackendUsesDatabase(t *testing.T) {
	assert.False(t, BackendFilesys.UsesDatabase())
	assert.True(t, BackendHybrid.UsesDatabase())
	assert.True(t, BackendDocument.UsesDatabase())
	assert.True(t, BackendNormalized.UsesDatabase())
}
