// Package loader is the concurrent bulk-load pipeline: it mines history out
// of filesystem archives and populates a document- or normalized-mode
// database.
//
// A fixed pool of miner goroutines each claims one location at a time, opens
// its archive, and streams parsed histories onto a bounded hand-off channel.
// A single writer goroutine consumes the channel and folds the histories
// into batched transactions, committing on a size or time threshold. The
// bounded channel is the backpressure: when the writer falls behind, miners
// block on push instead of buffering parsed records without limit.
//
// Each location is claimed by exactly one miner for its whole lifetime and
// its entries arrive at the writer in archive order, so no two writes ever
// race on the same (location, date) key. One corrupt archive fails only its
// own location; the job carries on and the final report says what happened.
package loader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/weather-history-store/internal/config"
	"github.com/couchcryptid/weather-history-store/internal/domain"
	"github.com/couchcryptid/weather-history-store/internal/observability"
)

// Source is the mining side: the filesystem backend.
type Source interface {
	Locations(ctx context.Context) ([]domain.Location, error)
	EachHistory(alias string, fn func(domain.History, domain.Metadata) error) error
}

// Sink is the writing side: a batched-transaction target database. The
// loader's single writer goroutine owns the sink exclusively for the job.
type Sink interface {
	Begin(ctx context.Context) error
	Write(ctx context.Context, history domain.History, source domain.Metadata) (written bool, err error)
	Commit(ctx context.Context) error
}

// Options tunes the pipeline.
type Options struct {
	Workers       int
	QueueDepth    int
	BatchSize     int
	FlushInterval time.Duration

	// Clock is swappable for tests; nil means real time.
	Clock clockwork.Clock
}

// OptionsFromConfig lifts the loader settings out of the engine config.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Workers:       cfg.LoaderWorkers,
		QueueDepth:    cfg.LoaderQueueDepth,
		BatchSize:     cfg.BatchSize,
		FlushInterval: cfg.BatchFlushInterval,
	}
}

// Loader runs one bulk-load job.
type Loader struct {
	source  Source
	sink    Sink
	logger  *slog.Logger
	metrics *observability.Metrics
	clock   clockwork.Clock
	opts    Options
}

// New builds a loader. Options left zero fall back to the defaults the
// engine config would supply.
func New(source Source, sink Sink, logger *slog.Logger, metrics *observability.Metrics, opts Options) *Loader {
	if opts.Workers < 1 {
		opts.Workers = 8
	}
	if opts.QueueDepth < 1 {
		opts.QueueDepth = 64
	}
	if opts.BatchSize < 1 {
		opts.BatchSize = 100
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = 2 * time.Second
	}
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Loader{source: source, sink: sink, logger: logger, metrics: metrics, clock: clock, opts: opts}
}

// item is one hand-off from a miner to the writer. eof marks a location
// fully mined; failed carries a location's mining error instead of data.
type item struct {
	loc     int
	history domain.History
	md      domain.Metadata
	eof     bool
	elapsed time.Duration
	failed  error
}

// Run executes the job until every location is drained or ctx is cancelled.
// Cancellation is cooperative: the open batch commits, miners stop claiming,
// and the report marks unvisited locations Pending. The returned report is
// valid (with partial results) even when err is non-nil.
func (l *Loader) Run(ctx context.Context) (*Report, error) {
	started := l.clock.Now()
	locations, err := l.source.Locations(ctx)
	if err != nil {
		return nil, err
	}

	report := newReport(locations)
	l.logger.Info("bulk load starting", "job", report.JobID,
		"locations", len(locations), "workers", l.opts.Workers)
	l.metrics.LoaderRunning.Set(1)
	defer l.metrics.LoaderRunning.Set(0)

	if len(locations) == 0 {
		report.Elapsed = l.clock.Since(started)
		return report, nil
	}

	// writeCtx lets a fatal sink failure stop the miners without waiting
	// for the caller's context.
	writeCtx, stopMining := context.WithCancel(ctx)
	defer stopMining()

	claims := make(chan int, len(locations))
	for i := range locations {
		claims <- i
	}
	close(claims)

	items := make(chan item, l.opts.QueueDepth)
	var miners sync.WaitGroup
	for w := 0; w < l.opts.Workers; w++ {
		miners.Add(1)
		go func() {
			defer miners.Done()
			l.mine(writeCtx, locations, claims, items, report)
		}()
	}
	go func() {
		miners.Wait()
		close(items)
	}()

	writeErr := l.write(ctx, stopMining, items, report)

	report.Elapsed = l.clock.Since(started)
	report.tally()
	l.logger.Info("bulk load finished", "job", report.JobID,
		"written", report.Written, "skipped", report.Skipped,
		"done", report.Done, "failed", report.Failed, "pending", report.Pending,
		"elapsed", report.Elapsed)
	return report, writeErr
}

// mine claims locations until none remain or the context ends, streaming
// each claimed location's entries in archive order.
func (l *Loader) mine(ctx context.Context, locations []domain.Location, claims <-chan int, items chan<- item, report *Report) {
	for loc := range claims {
		if ctx.Err() != nil {
			return
		}
		alias := locations[loc].Alias
		report.setState(loc, StateMining)
		start := l.clock.Now()

		err := l.source.EachHistory(alias, func(h domain.History, md domain.Metadata) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if !l.push(ctx, items, item{loc: loc, history: h, md: md}) {
				return ctx.Err()
			}
			l.metrics.HistoriesMined.Inc()
			return nil
		})

		switch {
		case err == nil:
			report.setState(loc, StateDraining)
			l.push(ctx, items, item{loc: loc, eof: true, elapsed: l.clock.Since(start)})
		case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
			// Interrupted mid-location: progress so far commits, the
			// location reports Pending for the next run.
			report.setState(loc, StatePending)
			return
		default:
			l.logger.Warn("mining failed", "location", alias, "error", err)
			l.push(ctx, items, item{loc: loc, failed: err, elapsed: l.clock.Since(start)})
		}
	}
}

// push blocks until the writer takes the item (backpressure) or the context
// ends.
func (l *Loader) push(ctx context.Context, items chan<- item, it item) bool {
	select {
	case items <- it:
		return true
	case <-ctx.Done():
		return false
	}
}

// write is the single consumer: it folds items into batched transactions.
// A nil return means a clean drain; a non-nil return is a fatal sink error
// that already stopped the miners.
func (l *Loader) write(ctx context.Context, stopMining context.CancelFunc, items <-chan item, report *Report) error {
	var (
		batch int
		flush = l.clock.After(l.opts.FlushInterval)
		done  = ctx.Done()
	)

	commit := func() error {
		if batch == 0 {
			return nil
		}
		start := l.clock.Now()
		if err := l.sink.Commit(ctx); err != nil {
			return err
		}
		l.metrics.BatchCommitDuration.Observe(l.clock.Since(start).Seconds())
		l.metrics.BatchSize.Observe(float64(batch))
		batch = 0
		return nil
	}

	for {
		l.metrics.QueueDepth.Set(float64(len(items)))
		select {
		case it, ok := <-items:
			if !ok {
				// Miners are done; the open batch is the last one.
				return commit()
			}
			if err := l.consume(ctx, it, &batch, report); err != nil {
				stopMining()
				l.drain(items)
				l.sinkAbort()
				return err
			}
			if batch >= l.opts.BatchSize {
				if err := commit(); err != nil {
					stopMining()
					l.drain(items)
					return err
				}
				flush = l.clock.After(l.opts.FlushInterval)
			}

		case <-flush:
			// Never hold a transaction open indefinitely.
			if err := commit(); err != nil {
				stopMining()
				l.drain(items)
				return err
			}
			flush = l.clock.After(l.opts.FlushInterval)

		case <-done:
			done = nil
			// Cooperative cancellation: commit what we have, let the
			// miners wind down, keep draining until the channel closes.
			l.logger.Info("bulk load cancelled, committing current batch")
			if err := commit(); err != nil {
				l.drain(items)
				return err
			}
		}
	}
}

// consume applies one item: bookkeeping for eof/failed markers, otherwise a
// sink write inside the open batch.
func (l *Loader) consume(ctx context.Context, it item, batch *int, report *Report) error {
	if it.failed != nil {
		report.fail(it.loc, it.failed, it.elapsed)
		l.metrics.LocationsLoaded.WithLabelValues("failed").Inc()
		return nil
	}

	if ctx.Err() != nil {
		// Cancelled with items still in flight: drop them. Their
		// locations report Pending, including ones whose eof marker is
		// only now arriving, since earlier entries may have been dropped.
		report.setState(it.loc, StatePending)
		return nil
	}

	if it.eof {
		report.finish(it.loc, it.elapsed)
		l.metrics.LocationsLoaded.WithLabelValues("done").Inc()
		return nil
	}

	if *batch == 0 {
		if err := l.sink.Begin(ctx); err != nil {
			return err
		}
	}
	written, err := l.sink.Write(ctx, it.history, it.md)
	if err != nil {
		return fmt.Errorf("write %s %s: %w", it.history.Alias, it.history.Date, err)
	}
	*batch++
	if written {
		report.wrote(it.loc)
		l.metrics.HistoriesWritten.Inc()
	} else {
		report.skipped(it.loc)
		l.metrics.HistoriesSkipped.Inc()
	}
	return nil
}

// drain empties the channel so blocked miners can exit after a fatal error.
func (l *Loader) drain(items <-chan item) {
	for range items {
	}
}

// sinkAbort rolls back an open batch when the sink supports it.
func (l *Loader) sinkAbort() {
	if closer, ok := l.sink.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			l.logger.Warn("abort batch failed", "error", err)
		}
	}
}
