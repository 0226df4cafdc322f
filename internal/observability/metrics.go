package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for SafeSea.
type Metrics struct {
	Checkins    *prometheus.CounterVec // labels: role={sailor,diver}
	Transitions *prometheus.CounterVec // labels: event, outcome={ok,rejected}

	// Location lookup metrics.
	LocateRequests *prometheus.CounterVec   // labels: provider, outcome={success,error}
	LocateCache    *prometheus.CounterVec   // labels: result={hit,miss}
	LocateDuration *prometheus.HistogramVec // labels: provider

	// Coral data metrics.
	CoralLoads   *prometheus.CounterVec // labels: outcome={loaded,cached,error}
	CoralRecords prometheus.Gauge

	MarkerRefreshes prometheus.Counter

	// Check-in dispatch metrics.
	DispatchQueued  prometheus.Counter
	DispatchDropped prometheus.Counter
	DispatchSent    *prometheus.CounterVec // labels: sink
	SinkErrors      *prometheus.CounterVec // labels: sink
	DispatchRunning prometheus.Gauge
}

func newMetrics() *Metrics {
	return &Metrics{
		Checkins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "safesea",
			Name:      "checkins_total",
			Help:      "Completed check-ins by role.",
		}, []string{"role"}),
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "safesea",
			Name:      "page_transitions_total",
			Help:      "Page events by event name and outcome.",
		}, []string{"event", "outcome"}),
		LocateRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "safesea",
			Name:      "locate_requests_total",
			Help:      "Location lookups by provider and outcome.",
		}, []string{"provider", "outcome"}),
		LocateCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "safesea",
			Name:      "locate_cache_total",
			Help:      "Location cache lookups by result.",
		}, []string{"result"}),
		LocateDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "safesea",
			Name:      "locate_duration_seconds",
			Help:      "Location provider request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"provider"}),
		CoralLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "safesea",
			Name:      "coral_loads_total",
			Help:      "Coral archive loads by outcome.",
		}, []string{"outcome"}),
		CoralRecords: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "safesea",
			Name:      "coral_records",
			Help:      "Coral rows retained by the most recent successful load.",
		}),
		MarkerRefreshes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "safesea",
			Name:      "marker_refreshes_total",
			Help:      "Random sailor marker regenerations.",
		}),
		DispatchQueued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "safesea",
			Name:      "dispatch_queued_total",
			Help:      "Check-ins accepted into the dispatch queue.",
		}),
		DispatchDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "safesea",
			Name:      "dispatch_dropped_total",
			Help:      "Check-ins dropped because the queue was full or a sink gave up.",
		}),
		DispatchSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "safesea",
			Name:      "dispatch_sent_total",
			Help:      "Check-ins delivered by sink.",
		}, []string{"sink"}),
		SinkErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "safesea",
			Name:      "sink_errors_total",
			Help:      "Failed sink writes by sink.",
		}, []string{"sink"}),
		DispatchRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "safesea",
			Name:      "dispatch_running",
			Help:      "1 when the dispatcher is active, 0 when shut down.",
		}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.Checkins,
		m.Transitions,
		m.LocateRequests,
		m.LocateCache,
		m.LocateDuration,
		m.CoralLoads,
		m.CoralRecords,
		m.MarkerRefreshes,
		m.DispatchQueued,
		m.DispatchDropped,
		m.DispatchSent,
		m.SinkErrors,
		m.DispatchRunning,
	}
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}
