package adapter_test

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/weather-history-store/internal/adapter"
	"github.com/couchcryptid/weather-history-store/internal/adapter/sqldb"
	"github.com/couchcryptid/weather-history-store/internal/config"
	"github.com/couchcryptid/weather-history-store/internal/domain"
)

// openBackend prepares a fresh store of the given mode under a temp dir.
func openBackend(t *testing.T, backend config.Backend, compress bool) adapter.DataAdapter {
	t.Helper()
	cfg := &config.Config{
		DataDir:      t.TempDir(),
		DatabaseFile: filepath.Join(t.TempDir(), "weather.db"),
		Backend:      backend,
		Compress:     compress,
	}
	if backend.UsesDatabase() {
		require.NoError(t, sqldb.InitSchema(cfg.DatabaseFile, backend, compress))
	}
	store, err := adapter.Open(context.Background(), cfg, slog.Default())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func boise() domain.Location {
	return domain.Location{
		Name:      "Boise",
		Alias:     "boise_id",
		Longitude: "-116.2146",
		Latitude:  "43.6166",
		TZ:        "America/Boise",
	}
}

func sampleHistory(alias string, date domain.Date, high float64) domain.History {
	return domain.History{
		Alias:           alias,
		Date:            date,
		TemperatureHigh: domain.Float64(high),
		TemperatureLow:  domain.Float64(high - 15),
		Humidity:        domain.Float64(0.4),
		WindDirection:   domain.Int64(270),
		Description:     domain.String("clear"),
	}
}

// Every backend must present the same data through the contract: same
// locations, same dates, same histories, and identical Count and raw Size
// in the summary. StoreSize and OverallSize are allowed to differ since
// each backend stores payload its own way.
func TestDataAdapter_Conformance(t *testing.T) {
	backends := []struct {
		name     string
		backend  config.Backend
		compress bool
	}{
		{"filesys", config.BackendFilesys, false},
		{"hybrid", config.BackendHybrid, false},
		{"document", config.BackendDocument, false},
		{"document_compressed", config.BackendDocument, true},
		{"normalized", config.BackendNormalized, false},
	}

	dates := []domain.Date{
		domain.NewDate(2020, time.January, 1),
		domain.NewDate(2020, time.January, 2),
		domain.NewDate(2020, time.January, 3),
	}

	summaries := map[string]domain.Summary{}
	for _, tc := range backends {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			store := openBackend(t, tc.backend, tc.compress)

			require.NoError(t, store.AddLocation(ctx, boise()))
			assert.ErrorIs(t, store.AddLocation(ctx, boise()), domain.ErrConflict)

			// Out of order on purpose; reads come back sorted.
			for _, i := range []int{1, 0, 2} {
				h := sampleHistory("boise_id", dates[i], 30+float64(i))
				require.NoError(t, store.WriteHistory(ctx, h))
			}

			got, err := store.Dates(ctx, "boise_id")
			require.NoError(t, err)
			assert.Equal(t, dates, got)

			r, err := domain.NewDateRange(dates[0], dates[2])
			require.NoError(t, err)
			histories, err := store.ReadHistories(ctx, "boise_id", r)
			require.NoError(t, err)
			require.Len(t, histories, 3)
			for i, h := range histories {
				assert.Equal(t, dates[i], h.Date)
				assert.Equal(t, "boise_id", h.Alias)
				require.NotNil(t, h.TemperatureHigh)
				assert.InEpsilon(t, 30+float64(i), *h.TemperatureHigh, 0.0001)
				require.NotNil(t, h.Description)
				assert.Equal(t, "clear", *h.Description)
			}

			partial, err := store.ReadHistories(ctx, "boise_id", domain.SingleDay(dates[1]))
			require.NoError(t, err)
			require.Len(t, partial, 1)
			assert.Equal(t, dates[1], partial[0].Date)

			sum, err := store.Summary(ctx, "boise_id")
			require.NoError(t, err)
			assert.Equal(t, 3, sum.Count)
			assert.Positive(t, sum.Size)
			summaries[tc.name] = sum

			_, err = store.ReadHistories(ctx, "nowhere", r)
			assert.ErrorIs(t, err, domain.ErrNotFound)
		})
	}

	// Raw logical size is backend-independent; the stored representation
	// is not.
	base, ok := summaries["filesys"]
	require.True(t, ok)
	for name, sum := range summaries {
		assert.Equal(t, base.Count, sum.Count, "count for %s", name)
		assert.Equal(t, base.Size, sum.Size, "raw size for %s", name)
	}
}

func TestDataAdapter_UpdateLocation(t *testing.T) {
	for _, backend := range []config.Backend{config.BackendFilesys, config.BackendNormalized} {
		t.Run(string(backend), func(t *testing.T) {
			ctx := context.Background()
			store := openBackend(t, backend, false)
			require.NoError(t, store.AddLocation(ctx, boise()))

			tz := "America/Denver"
			require.NoError(t, store.UpdateLocation(ctx, "boise_id", domain.LocationUpdate{TZ: &tz}))

			locations, err := store.Locations(ctx)
			require.NoError(t, err)
			require.Len(t, locations, 1)
			assert.Equal(t, "America/Denver", locations[0].TZ)
			assert.Equal(t, "Boise", locations[0].Name)

			assert.ErrorIs(t, store.UpdateLocation(ctx, "nowhere", domain.LocationUpdate{TZ: &tz}), domain.ErrNotFound)
		})
	}
}

func TestDataAdapter_RemoveLocationCascade(t *testing.T) {
	for _, tc := range []struct {
		name    string
		backend config.Backend
	}{
		{"filesys", config.BackendFilesys},
		{"hybrid", config.BackendHybrid},
		{"document", config.BackendDocument},
		{"normalized", config.BackendNormalized},
	} {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			store := openBackend(t, tc.backend, false)
			require.NoError(t, store.AddLocation(ctx, boise()))
			require.NoError(t, store.WriteHistory(ctx,
				sampleHistory("boise_id", domain.NewDate(2020, time.January, 1), 33)))

			// With history present, removal needs cascade.
			assert.ErrorIs(t, store.RemoveLocation(ctx, "boise_id", false), domain.ErrConflict)
			require.NoError(t, store.RemoveLocation(ctx, "boise_id", true))

			locations, err := store.Locations(ctx)
			require.NoError(t, err)
			assert.Empty(t, locations)

			_, err = store.Dates(ctx, "boise_id")
			assert.ErrorIs(t, err, domain.ErrNotFound)
		})
	}
}

func TestOpen_RefusesModeMismatch(t *testing.T) {
	dbFile := filepath.Join(t.TempDir(), "weather.db")
	require.NoError(t, sqldb.InitSchema(dbFile, config.BackendDocument, false))

	cfg := &config.Config{
		DataDir:      t.TempDir(),
		DatabaseFile: dbFile,
		Backend:      config.BackendNormalized,
	}
	_, err := adapter.Open(context.Background(), cfg, slog.Default())
	assert.ErrorIs(t, err, domain.ErrValidation)
}
