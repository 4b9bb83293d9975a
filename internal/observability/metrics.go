package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the bulk
// load pipeline.
type Metrics struct {
	HistoriesMined   prometheus.Counter
	HistoriesWritten prometheus.Counter
	HistoriesSkipped prometheus.Counter
	LocationsLoaded  *prometheus.CounterVec // labels: outcome={done,failed}
	LoaderRunning    prometheus.Gauge
	QueueDepth       prometheus.Gauge

	// Writer transaction metrics.
	BatchSize           prometheus.Histogram
	BatchCommitDuration prometheus.Histogram
}

// NewMetrics creates and registers all loader metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.HistoriesMined,
		m.HistoriesWritten,
		m.HistoriesSkipped,
		m.LocationsLoaded,
		m.LoaderRunning,
		m.QueueDepth,
		m.BatchSize,
		m.BatchCommitDuration,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		HistoriesMined: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "weather_store",
			Name:      "histories_mined_total",
			Help:      "Total history entries parsed out of source archives.",
		}),
		HistoriesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "weather_store",
			Name:      "histories_written_total",
			Help:      "Total history entries written to the target database.",
		}),
		HistoriesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "weather_store",
			Name:      "histories_skipped_total",
			Help:      "Total history entries skipped because stored metadata was unchanged.",
		}),
		LocationsLoaded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "weather_store",
			Name:      "locations_loaded_total",
			Help:      "Locations finished by the loader, by outcome.",
		}, []string{"outcome"}),
		LoaderRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "weather_store",
			Name:      "loader_running",
			Help:      "1 while a bulk load job is active, 0 otherwise.",
		}),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "weather_store",
			Name:      "loader_queue_depth",
			Help:      "History entries currently buffered between miners and the writer.",
		}),
		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "weather_store",
			Name:      "loader_batch_size",
			Help:      "History entries per committed writer transaction.",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500},
		}),
		BatchCommitDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "weather_store",
			Name:      "loader_batch_commit_duration_seconds",
			Help:      "Duration of a writer transaction commit.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5},
		}),
	}
}
