package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry *prometheus.Registry

	// HTTP request rate. Watch for: sudden drops (service down) or spikes (traffic surge).
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTP request latency per request. Watch for: p95/p99 increases; PNG renders dominate.
	HTTPRequestDuration *prometheus.HistogramVec

	// Concurrent requests in flight. Watch for: saturation during large uploads.
	HTTPRequestsInFlight prometheus.Gauge

	// Dataset uploads by outcome (accepted, unparseable, too_large).
	DatasetUploadsTotal *prometheus.CounterVec

	// Uploaded file sizes. Watch for: approaching the configured byte limit.
	DatasetUploadBytes prometheus.Histogram

	// Cleaning pass latency. Cache hits skip this entirely.
	CleanDurationSeconds prometheus.Histogram

	// Repairs by kind (state_resolved, state_unknown, day_corrected, year_filled).
	// Watch for: sudden jumps = upstream data quality regressions.
	CleanRepairsTotal *prometheus.CounterVec

	// Cleaned-table cache hits vs recomputes.
	CleanCacheHitsTotal prometheus.Counter

	// Cache backend failures by operation. Nonfatal; cleaning recomputes.
	CacheErrorsTotal *prometheus.CounterVec

	// Chart requests by kind and format (json, png).
	ChartRequestsTotal *prometheus.CounterVec

	// City reference fetches by status (success, error). Watch for: error streaks
	// mean states fall back to Unknown.
	ReferenceFetchesTotal *prometheus.CounterVec

	// Retry attempts against the reference source.
	ReferenceFetchRetriesTotal prometheus.Counter

	// Size of the currently loaded city reference table.
	ReferenceCities prometheus.Gauge

	// Rate limit denials. Watch for: overload, capacity exceeded.
	RateLimitDeniedTotal prometheus.Counter
)

func init() {
	registry = prometheus.NewRegistry()

	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "httpRequestsTotal",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "statusCode"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "httpRequestDurationSeconds",
			Help:    "HTTP request latency in seconds (per request)",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	HTTPRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "httpRequestsInFlight",
			Help: "Number of HTTP requests currently being served",
		},
	)
	DatasetUploadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datasetUploadsTotal",
			Help: "Total dataset uploads by outcome",
		},
		[]string{"outcome"},
	)
	DatasetUploadBytes = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "datasetUploadBytes",
			Help:    "Uploaded dataset sizes in bytes",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 10),
		},
	)
	CleanDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cleanDurationSeconds",
			Help:    "Cleaning pipeline latency in seconds (cache misses only)",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
	)
	CleanRepairsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cleanRepairsTotal",
			Help: "Row repairs applied by the cleaning pipeline, by kind",
		},
		[]string{"kind"},
	)
	CleanCacheHitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cleanCacheHitsTotal",
			Help: "Cleaned-table cache hits (misses recompute the pipeline)",
		},
	)
	CacheErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cacheErrorsTotal",
			Help: "Cache backend errors by operation",
		},
		[]string{"operation"},
	)
	ChartRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chartRequestsTotal",
			Help: "Chart requests by kind and output format",
		},
		[]string{"kind", "format"},
	)
	ReferenceFetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "referenceFetchesTotal",
			Help: "City reference table fetches by status",
		},
		[]string{"status"},
	)
	ReferenceFetchRetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "referenceFetchRetriesTotal",
			Help: "Retry attempts while fetching the city reference table",
		},
	)
	ReferenceCities = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "referenceCities",
			Help: "Number of cities in the loaded reference table",
		},
	)
	RateLimitDeniedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rateLimitDeniedTotal",
			Help: "Total number of requests denied by rate limiter (429)",
		},
	)

	registry.MustRegister(
		HTTPRequestsTotal, HTTPRequestDuration, HTTPRequestsInFlight,
		DatasetUploadsTotal, DatasetUploadBytes,
		CleanDurationSeconds, CleanRepairsTotal, CleanCacheHitsTotal, CacheErrorsTotal,
		ChartRequestsTotal,
		ReferenceFetchesTotal, ReferenceFetchRetriesTotal, ReferenceCities,
		RateLimitDeniedTotal,
	)
}

// RecordCleanRepairs increments the repair counters from a cleaning report.
func RecordCleanRepairs(statesResolved, statesUnknown, daysCorrected, yearsFilled int) {
	CleanRepairsTotal.WithLabelValues("state_resolved").Add(float64(statesResolved))
	CleanRepairsTotal.WithLabelValues("state_unknown").Add(float64(statesUnknown))
	CleanRepairsTotal.WithLabelValues("day_corrected").Add(float64(daysCorrected))
	CleanRepairsTotal.WithLabelValues("year_filled").Add(float64(yearsFilled))
}

// MetricsHandler returns an http.Handler that serves application and runtime metrics.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
