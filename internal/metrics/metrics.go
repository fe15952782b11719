package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Fetch outcomes recorded by ObserveRegionFetch.
const (
	FetchOK    = "ok"
	FetchEmpty = "empty"
	FetchError = "error"
)

// Metrics exposes application metrics that are safe to scrape via Prometheus.
type Metrics struct {
	registry            *prometheus.Registry
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	regionFetches       *prometheus.CounterVec
	regionFetchDuration prometheus.Histogram
	transitions         *prometheus.CounterVec
	activeSessions      prometheus.Gauge
	warmRunsTotal       prometheus.Counter
	warmRunDuration     prometheus.Histogram
}

// New creates a fresh Metrics registry with HTTP, fetch, driver and archive metrics registered.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	httpRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mapcore",
		Name:      "http_requests_total",
		Help:      "Count of HTTP requests processed by mapcore",
	}, []string{"method", "path", "status"})

	httpRequestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "mapcore",
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests served by mapcore",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	regionFetches := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mapcore",
		Name:      "region_fetches_total",
		Help:      "Region detail fetches by outcome",
	}, []string{"result"})

	regionFetchDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "mapcore",
		Name:      "region_fetch_duration_seconds",
		Help:      "Duration of region detail fetches from issue to settlement",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	})

	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mapcore",
		Name:      "map_transitions_total",
		Help:      "Map reconciliation passes by the policy branch taken",
	}, []string{"kind"})

	activeSessions := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "mapcore",
		Name:      "active_sessions",
		Help:      "Number of live map sessions",
	})

	warmRunsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "mapcore",
		Name:      "archive_warm_runs_total",
		Help:      "Total number of region archive warm runs processed",
	})

	warmRunDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "mapcore",
		Name:      "archive_warm_run_duration_seconds",
		Help:      "Duration of region archive warm runs from start to finish",
		Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600, 1200},
	})

	registry.MustRegister(
		httpRequests,
		httpRequestDuration,
		regionFetches,
		regionFetchDuration,
		transitions,
		activeSessions,
		warmRunsTotal,
		warmRunDuration,
	)

	return &Metrics{
		registry:            registry,
		httpRequests:        httpRequests,
		httpRequestDuration: httpRequestDuration,
		regionFetches:       regionFetches,
		regionFetchDuration: regionFetchDuration,
		transitions:         transitions,
		activeSessions:      activeSessions,
		warmRunsTotal:       warmRunsTotal,
		warmRunDuration:     warmRunDuration,
	}
}

// ObserveHTTPRequest records a single HTTP request/response cycle.
func (m *Metrics) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labels := prometheus.Labels{
		"method": method,
		"path":   path,
		"status": strconv.Itoa(status),
	}
	m.httpRequests.With(labels).Inc()
	m.httpRequestDuration.With(labels).Observe(duration.Seconds())
}

// ObserveRegionFetch records one settled region detail fetch.
func (m *Metrics) ObserveRegionFetch(result string, duration time.Duration) {
	if m == nil {
		return
	}
	m.regionFetches.WithLabelValues(result).Inc()
	m.regionFetchDuration.Observe(duration.Seconds())
}

// IncTransition counts one reconciliation pass.
func (m *Metrics) IncTransition(kind string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(kind).Inc()
}

func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.activeSessions.Inc()
}

func (m *Metrics) SessionClosed() {
	if m == nil {
		return
	}
	m.activeSessions.Dec()
}

// IncWarmRun increments the archive warm run counter.
func (m *Metrics) IncWarmRun() {
	if m == nil {
		return
	}
	m.warmRunsTotal.Inc()
}

// ObserveWarmRunDuration observes an archive warm run duration.
func (m *Metrics) ObserveWarmRunDuration(duration time.Duration) {
	if m == nil {
		return
	}
	m.warmRunDuration.Observe(duration.Seconds())
}

// Handler exposes the Prometheus registry over HTTP.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("metrics unavailable"))
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
