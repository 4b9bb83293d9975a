package loader_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/weather-history-store/internal/domain"
	"github.com/couchcryptid/weather-history-store/internal/loader"
	"github.com/couchcryptid/weather-history-store/internal/observability"
)

// --- mocks ---

type entry struct {
	history domain.History
	md      domain.Metadata
}

type mockSource struct {
	locations []domain.Location
	entries   map[string][]entry
	failing   map[string]error

	// block, when set, makes EachHistory park until the channel closes.
	block chan struct{}
}

func (m *mockSource) Locations(_ context.Context) ([]domain.Location, error) {
	return m.locations, nil
}

func (m *mockSource) EachHistory(alias string, fn func(domain.History, domain.Metadata) error) error {
	if m.block != nil {
		<-m.block
	}
	if err := m.failing[alias]; err != nil {
		return err
	}
	for _, e := range m.entries[alias] {
		if err := fn(e.history, e.md); err != nil {
			return err
		}
	}
	return nil
}

type mockSink struct {
	mu       sync.Mutex
	begun    int
	commits  int
	written  []string
	skip     map[string]bool
	writeErr error
}

func (m *mockSink) Begin(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.begun++
	return nil
}

func (m *mockSink) Write(_ context.Context, h domain.History, _ domain.Metadata) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return false, m.writeErr
	}
	key := h.Alias + "/" + h.Date.String()
	if m.skip[key] {
		return false, nil
	}
	m.written = append(m.written, key)
	return true, nil
}

func (m *mockSink) Commit(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commits++
	return nil
}

func newTestMetrics() *observability.Metrics {
	// Fresh registry avoids "already registered" panics across tests.
	return observability.NewMetricsForTesting()
}

// --- helpers ---

func location(alias string) domain.Location {
	return domain.Location{
		Name:      alias,
		Alias:     alias,
		Longitude: "-116.2",
		Latitude:  "43.6",
		TZ:        "America/Boise",
	}
}

func entriesFor(alias string, days int) []entry {
	out := make([]entry, 0, days)
	for d := 1; d <= days; d++ {
		date := domain.NewDate(2020, time.January, d)
		out = append(out, entry{
			history: domain.History{
				Alias:           alias,
				Date:            date,
				TemperatureHigh: domain.Float64(30 + float64(d)),
			},
			md: domain.Metadata{Date: date, Size: 120, MTime: 1700000000 + int64(d)},
		})
	}
	return out
}

func stateOf(t *testing.T, r *loader.Report, alias string) loader.LocationResult {
	t.Helper()
	for _, lr := range r.Locations {
		if lr.Location.Alias == alias {
			return lr
		}
	}
	t.Fatalf("location %s missing from report", alias)
	return loader.LocationResult{}
}

// --- tests ---

func TestLoader_Run_HappyPath(t *testing.T) {
	src := &mockSource{
		locations: []domain.Location{location("boise_id"), location("moab_ut")},
		entries: map[string][]entry{
			"boise_id": entriesFor("boise_id", 3),
			"moab_ut":  entriesFor("moab_ut", 2),
		},
	}
	sink := &mockSink{}

	l := loader.New(src, sink, slog.Default(), newTestMetrics(), loader.Options{Workers: 2})
	report, err := l.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 5, report.Written)
	assert.Zero(t, report.Skipped)
	assert.Equal(t, 2, report.Done)
	assert.Zero(t, report.Failed)
	assert.Zero(t, report.Pending)
	assert.NotEmpty(t, report.JobID)
	assert.Len(t, sink.written, 5)
	assert.GreaterOrEqual(t, sink.commits, 1)

	boise := stateOf(t, report, "boise_id")
	assert.Equal(t, loader.StateDone, boise.State)
	assert.Equal(t, 3, boise.Written)
}

func TestLoader_Run_PreservesArchiveOrderPerLocation(t *testing.T) {
	src := &mockSource{
		locations: []domain.Location{location("boise_id")},
		entries:   map[string][]entry{"boise_id": entriesFor("boise_id", 4)},
	}
	sink := &mockSink{}

	l := loader.New(src, sink, slog.Default(), newTestMetrics(), loader.Options{Workers: 4})
	_, err := l.Run(context.Background())
	require.NoError(t, err)

	want := []string{
		"boise_id/2020-01-01", "boise_id/2020-01-02",
		"boise_id/2020-01-03", "boise_id/2020-01-04",
	}
	if diff := cmp.Diff(want, sink.written); diff != "" {
		t.Fatalf("write order mismatch (-want +got):\n%s", diff)
	}
}

func TestLoader_Run_SkipsUnchanged(t *testing.T) {
	src := &mockSource{
		locations: []domain.Location{location("boise_id")},
		entries:   map[string][]entry{"boise_id": entriesFor("boise_id", 3)},
	}
	sink := &mockSink{skip: map[string]bool{
		"boise_id/2020-01-01": true,
		"boise_id/2020-01-02": true,
		"boise_id/2020-01-03": true,
	}}

	l := loader.New(src, sink, slog.Default(), newTestMetrics(), loader.Options{})
	report, err := l.Run(context.Background())
	require.NoError(t, err)

	assert.Zero(t, report.Written)
	assert.Equal(t, 3, report.Skipped)
	assert.Equal(t, 1, report.Done)
}

func TestLoader_Run_CorruptLocationDoesNotStopOthers(t *testing.T) {
	src := &mockSource{
		locations: []domain.Location{location("boise_id"), location("moab_ut")},
		entries:   map[string][]entry{"moab_ut": entriesFor("moab_ut", 2)},
		failing:   map[string]error{"boise_id": domain.ErrCorruptArchive},
	}
	sink := &mockSink{}

	l := loader.New(src, sink, slog.Default(), newTestMetrics(), loader.Options{Workers: 2})
	report, err := l.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Done)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 2, report.Written)

	boise := stateOf(t, report, "boise_id")
	assert.Equal(t, loader.StateFailed, boise.State)
	assert.ErrorIs(t, boise.Err, domain.ErrCorruptArchive)
	assert.Equal(t, loader.StateDone, stateOf(t, report, "moab_ut").State)
}

func TestLoader_Run_BatchesWrites(t *testing.T) {
	src := &mockSource{
		locations: []domain.Location{location("boise_id")},
		entries:   map[string][]entry{"boise_id": entriesFor("boise_id", 5)},
	}
	sink := &mockSink{}

	l := loader.New(src, sink, slog.Default(), newTestMetrics(), loader.Options{BatchSize: 2})
	_, err := l.Run(context.Background())
	require.NoError(t, err)

	// 5 writes at batch size 2: two full batches plus the final partial one.
	assert.Equal(t, 3, sink.begun)
	assert.Equal(t, 3, sink.commits)
}

func TestLoader_Run_SinkErrorIsFatal(t *testing.T) {
	src := &mockSource{
		locations: []domain.Location{location("boise_id"), location("moab_ut")},
		entries: map[string][]entry{
			"boise_id": entriesFor("boise_id", 3),
			"moab_ut":  entriesFor("moab_ut", 3),
		},
	}
	sink := &mockSink{writeErr: errors.New("disk full")}

	l := loader.New(src, sink, slog.Default(), newTestMetrics(), loader.Options{Workers: 2})
	report, err := l.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	require.NotNil(t, report)
	assert.Zero(t, report.Written)
}

func TestLoader_Run_CancelledBeforeStart(t *testing.T) {
	src := &mockSource{
		locations: []domain.Location{location("boise_id"), location("moab_ut")},
		entries: map[string][]entry{
			"boise_id": entriesFor("boise_id", 2),
			"moab_ut":  entriesFor("moab_ut", 2),
		},
	}
	sink := &mockSink{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	l := loader.New(src, sink, slog.Default(), newTestMetrics(), loader.Options{Workers: 2})
	report, err := l.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, report.Pending)
	assert.Zero(t, report.Done)
	assert.Empty(t, sink.written)
}

func TestLoader_Run_CancelMidJobLeavesLocationsPending(t *testing.T) {
	src := &mockSource{
		locations: []domain.Location{location("boise_id")},
		entries:   map[string][]entry{"boise_id": entriesFor("boise_id", 2)},
		block:     make(chan struct{}),
	}
	sink := &mockSink{}

	ctx, cancel := context.WithCancel(context.Background())
	l := loader.New(src, sink, slog.Default(), newTestMetrics(), loader.Options{Workers: 1})

	done := make(chan struct{})
	var (
		report *loader.Report
		runErr error
	)
	go func() {
		report, runErr = l.Run(ctx)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()
	close(src.block)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("loader did not stop after cancellation")
	}

	require.NoError(t, runErr)
	assert.Equal(t, 1, report.Pending)
	assert.Zero(t, report.Done)
}

func TestLoader_Run_BoundedQueue(t *testing.T) {
	// A queue of one forces miners to block on hand-off; nothing may be
	// lost or reordered under that pressure.
	src := &mockSource{
		locations: []domain.Location{location("boise_id"), location("moab_ut"), location("bend_or")},
		entries: map[string][]entry{
			"boise_id": entriesFor("boise_id", 20),
			"moab_ut":  entriesFor("moab_ut", 20),
			"bend_or":  entriesFor("bend_or", 20),
		},
	}
	sink := &mockSink{}

	l := loader.New(src, sink, slog.Default(), newTestMetrics(),
		loader.Options{Workers: 3, QueueDepth: 1, BatchSize: 7})
	report, err := l.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 60, report.Written)
	assert.Equal(t, 3, report.Done)
	assert.Len(t, sink.written, 60)
}

func TestLoader_Run_NoLocations(t *testing.T) {
	src := &mockSource{}
	sink := &mockSink{}

	l := loader.New(src, sink, slog.Default(), newTestMetrics(), loader.Options{})
	report, err := l.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, report.Locations)
	assert.Zero(t, sink.begun)
}
