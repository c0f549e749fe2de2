package observability

import (
	"net/http"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry *prometheus.Registry

	// HTTP request rate. Watch for: sudden drops (service down) or spikes (dashboard reloads).
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTP request latency per request. Watch for: p95/p99 latency increases.
	HTTPRequestDuration *prometheus.HistogramVec

	// Concurrent requests in flight. Watch for: saturation.
	HTTPRequestsInFlight prometheus.Gauge

	// Analytics operations requested, including those answered from cache.
	AnalyticsQueriesTotal *prometheus.CounterVec

	// Per-origin query count (allow-list; others go to "other").
	AnalyticsQueriesByOriginTotal *prometheus.CounterVec

	// Store query latency. Watch for: full scans on unindexed routes.
	StoreQueryDuration *prometheus.HistogramVec

	// Cache hits per operation. Hit rate = hits / analyticsQueriesTotal.
	CacheHitsTotal *prometheus.CounterVec

	// Cache warming runs. Watch for: warming errors after deploys.
	CacheWarmingTotal prometheus.Counter

	// Cache warming runs with at least one failed route.
	CacheWarmingErrorsTotal prometheus.Counter

	// Cache warming wall time.
	CacheWarmingDurationSeconds prometheus.Histogram

	// Rows left out of an aggregate. Watch for: unmatched tail numbers, unknown zones.
	RowsExcludedTotal *prometheus.CounterVec

	// Distinct timezone names that failed to resolve.
	UnknownTimezonesTotal prometheus.Counter

	// Plane speed recompute runs by outcome.
	PlaneSpeedRecomputeTotal *prometheus.CounterVec

	// Plane speed recompute wall time.
	PlaneSpeedRecomputeDuration prometheus.Histogram

	// Requests that shared another caller's in-flight computation.
	CoalescedRequestsTotal *prometheus.CounterVec

	// Rate limit denials. Watch for: overload, capacity exceeded.
	RateLimitDeniedTotal prometheus.Counter

	// trackedOrigins is built from config; used to resolve origin for metrics.
	trackedOriginsMu sync.RWMutex
	trackedOrigins   map[string]struct{}
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
	AnalyticsQueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analyticsQueriesTotal",
			Help: "Total number of analytics operations requested",
		},
		[]string{"operation"},
	)
	AnalyticsQueriesByOriginTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analyticsQueriesByOriginTotal",
			Help: "Analytics operations by origin airport (allow-list; others use origin=other)",
		},
		[]string{"origin"},
	)
	StoreQueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storeQueryDurationSeconds",
			Help:    "Data store query latency in seconds",
			Buckets: []float64{.001, .005, .01, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"query"},
	)
	CacheHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cacheHitsTotal",
			Help: "Total number of response cache hits",
		},
		[]string{"operation"},
	)
	CacheWarmingTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cacheWarmingTotal",
			Help: "Total number of cache warming runs",
		},
	)
	CacheWarmingErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cacheWarmingErrorsTotal",
			Help: "Cache warming runs where at least one route failed",
		},
	)
	CacheWarmingDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cacheWarmingDurationSeconds",
			Help:    "Cache warming duration in seconds",
			Buckets: []float64{.1, .5, 1, 2.5, 5, 10, 30},
		},
	)
	RowsExcludedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rowsExcludedTotal",
			Help: "Rows excluded from an aggregate because a join or decode failed",
		},
		[]string{"operation", "reason"},
	)
	UnknownTimezonesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "unknownTimezonesTotal",
			Help: "Distinct timezone names that could not be resolved",
		},
	)
	PlaneSpeedRecomputeTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "planeSpeedRecomputeTotal",
			Help: "Plane speed recompute runs by status",
		},
		[]string{"status"},
	)
	PlaneSpeedRecomputeDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "planeSpeedRecomputeDurationSeconds",
			Help:    "Plane speed recompute duration in seconds",
			Buckets: []float64{.1, .5, 1, 2.5, 5, 10, 30, 60},
		},
	)
	CoalescedRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coalescedRequestsTotal",
			Help: "Requests served from another caller's in-flight computation",
		},
		[]string{"operation"},
	)
	RateLimitDeniedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rateLimitDeniedTotal",
			Help: "Total number of requests denied by rate limiter (429)",
		},
	)

	registry.MustRegister(
		HTTPRequestsTotal, HTTPRequestDuration, HTTPRequestsInFlight,
		AnalyticsQueriesTotal, AnalyticsQueriesByOriginTotal,
		StoreQueryDuration,
		CacheHitsTotal, CacheWarmingTotal, CacheWarmingErrorsTotal, CacheWarmingDurationSeconds,
		RowsExcludedTotal, UnknownTimezonesTotal,
		PlaneSpeedRecomputeTotal, PlaneSpeedRecomputeDuration,
		CoalescedRequestsTotal,
		RateLimitDeniedTotal,
	)
}

// SetTrackedOrigins sets the allow-list for origin metrics. Non-tracked origins increment "other".
func SetTrackedOrigins(origins []string) {
	trackedOriginsMu.Lock()
	defer trackedOriginsMu.Unlock()
	trackedOrigins = make(map[string]struct{}, len(origins))
	for _, o := range origins {
		trackedOrigins[normalizeOriginForMetrics(o)] = struct{}{}
	}
}

// RecordAnalyticsQuery records an analytics operation for the given origin.
func RecordAnalyticsQuery(operation, origin string) {
	AnalyticsQueriesTotal.WithLabelValues(operation).Inc()
	o := normalizeOriginForMetrics(origin)
	trackedOriginsMu.RLock()
	_, ok := trackedOrigins[o] // nil map read is safe in Go
	trackedOriginsMu.RUnlock()
	if ok {
		AnalyticsQueriesByOriginTotal.WithLabelValues(o).Inc()
	} else {
		AnalyticsQueriesByOriginTotal.WithLabelValues("other").Inc()
	}
}

// RecordExcludedRows adds n to rowsExcludedTotal; n <= 0 is ignored.
func RecordExcludedRows(operation, reason string, n int) {
	if n <= 0 {
		return
	}
	RowsExcludedTotal.WithLabelValues(operation, reason).Add(float64(n))
}

func normalizeOriginForMetrics(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// MetricsHandler returns an http.Handler that serves application and runtime metrics.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
