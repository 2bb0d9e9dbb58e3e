// Package metrics provides Prometheus metrics for the arena contest service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// defaultRefreshInterval paces the gauges that are sampled rather than
// updated in place (entrant totals, arena occupancy).
const defaultRefreshInterval = 5 * time.Second

// LatencyBuckets are the default histogram bounds in milliseconds; every
// latency is observed through Since.
var LatencyBuckets = []float64{0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000} //nolint:gochecknoglobals // read-only bucket layout

// Manager owns every Prometheus collector exported by the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Registry
	entrantsAdded   prometheus.Counter
	entrantsDeleted prometheus.Counter
	totalEntrants   prometheus.Gauge

	// Arena
	contestsResolved *prometheus.CounterVec
	resolveLatency   prometheus.Histogram
	arenaOccupancy   prometheus.Gauge
	arenaRejections  *prometheus.CounterVec
	idempotentReplay prometheus.Counter

	// Leaderboard
	leaderboardQueries *prometheus.CounterVec
	leaderboardLatency prometheus.Histogram

	// Storage and cache
	storageLatency *prometheus.HistogramVec
	cacheHits      prometheus.Counter
	cacheMisses    prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	rateLimited         prometheus.Counter

	// Errors
	errorRateByComponent *prometheus.CounterVec
	errorRateByType      *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec
	errorLatency         *prometheus.HistogramVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry without default Go collectors

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewMetricsManager(WithPrometheusRegistry(customRegistry))
}

// NewMetricsManager creates a metrics manager and registers its collectors.
func NewMetricsManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "arena",
		subsystem:        "contest",
		histogramBuckets: append([]float64(nil), LatencyBuckets...),
		enabled:          true,
		refreshInterval:  defaultRefreshInterval,
		customLabels:     make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()
	return m
}

func (m *Manager) name(n string) string {
	if m.metricPrefix == "" {
		return n
	}
	return m.metricPrefix + "_" + n
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)
	labels := prometheus.Labels(m.customLabels)

	counter := func(name, help string) prometheus.Counter {
		return auto.NewCounter(prometheus.CounterOpts{
			Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, ConstLabels: labels,
		})
	}
	counterVec := func(name, help string, lbls ...string) *prometheus.CounterVec {
		return auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, ConstLabels: labels,
		}, lbls)
	}
	gauge := func(name, help string) prometheus.Gauge {
		return auto.NewGauge(prometheus.GaugeOpts{
			Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, ConstLabels: labels,
		})
	}
	histogram := func(name, help string, buckets []float64) prometheus.Histogram {
		return auto.NewHistogram(prometheus.HistogramOpts{
			Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, ConstLabels: labels, Buckets: buckets,
		})
	}
	histogramVec := func(name, help string, lbls ...string) *prometheus.HistogramVec {
		return auto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, ConstLabels: labels, Buckets: m.histogramBuckets,
		}, lbls)
	}

	m.entrantsAdded = counter("entrants_added_total", "Total number of entrants registered")
	m.entrantsDeleted = counter("entrants_deleted_total", "Total number of entrants soft-deleted")
	m.totalEntrants = gauge("total_entrants", "Number of non-deleted entrants in the registry")

	m.contestsResolved = counterVec("contests_resolved_total", "Contests resolved, labelled by the winner's weight class", "winner_class")
	m.resolveLatency = histogram("resolve_latency_milliseconds", "Latency of contest resolution including the stats write", m.histogramBuckets)
	m.arenaOccupancy = gauge("arena_occupancy", "Number of entrants currently in the arena")
	m.arenaRejections = counterVec("arena_rejections_total", "Arena operations rejected, by reason", "reason")
	m.idempotentReplay = counter("idempotent_replays_total", "Fight requests answered from the idempotency store")

	m.leaderboardQueries = counterVec("leaderboard_queries_total", "Leaderboard queries by metric", "metric")
	m.leaderboardLatency = histogram("leaderboard_latency_milliseconds", "Latency of leaderboard ranking", m.histogramBuckets)

	m.storageLatency = histogramVec("storage_latency_milliseconds", "Storage operation latency", "operation")
	m.cacheHits = counter("cache_hits_total", "Entrant cache hits")
	m.cacheMisses = counter("cache_misses_total", "Entrant cache misses")

	m.httpRequests = counterVec("http_requests_total", "Total number of HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = histogramVec("http_request_duration_milliseconds", "HTTP request duration in milliseconds", "endpoint", "method", "status_code")
	m.rateLimited = counter("http_rate_limited_total", "Requests rejected by the rate limiter")

	m.errorRateByComponent = counterVec("errors_by_component_total", "Errors by component and type", "component", "error_type")
	m.errorRateByType = counterVec("errors_by_type_total", "Errors by type and severity", "error_type", "severity")
	m.errorRateByEndpoint = counterVec("errors_by_endpoint_total", "Errors by endpoint", "endpoint", "method", "error_type")
	m.errorLatency = histogramVec("error_latency_milliseconds", "Latency of operations that failed", "component", "error_type")

	m.systemMemoryUsage = gauge("system_memory_usage_bytes", "System memory usage in bytes")
	m.systemGoroutineCount = gauge("system_goroutine_count", "Number of goroutines")
	m.systemGCPauseTime = histogram("system_gc_pause_time_milliseconds", "GC pause time in milliseconds",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000})
}

// Registry.

// RecordEntrantAdded increments the entrants added counter.
func RecordEntrantAdded() {
	if globalManager.enabled {
		globalManager.entrantsAdded.Inc()
	}
}

// RecordEntrantDeleted increments the entrants deleted counter.
func RecordEntrantDeleted() {
	if globalManager.enabled {
		globalManager.entrantsDeleted.Inc()
	}
}

// UpdateTotalEntrants sets the number of live entrants.
func UpdateTotalEntrants(count int) {
	globalManager.totalEntrants.Set(float64(count))
}

// Arena.

// RecordContestResolved counts a resolved contest and its latency.
func RecordContestResolved(winnerClass string, latencyMs float64) {
	if !globalManager.enabled {
		return
	}
	globalManager.contestsResolved.WithLabelValues(winnerClass).Inc()
	globalManager.resolveLatency.Observe(latencyMs)
}

// UpdateArenaOccupancy sets the current arena occupancy.
func UpdateArenaOccupancy(count int) {
	globalManager.arenaOccupancy.Set(float64(count))
}

// RecordArenaRejection counts an arena operation that was refused.
func RecordArenaRejection(reason string) {
	if globalManager.enabled {
		globalManager.arenaRejections.WithLabelValues(reason).Inc()
	}
}

// RecordIdempotentReplay counts a fight answered from the idempotency store.
func RecordIdempotentReplay() {
	if globalManager.enabled {
		globalManager.idempotentReplay.Inc()
	}
}

// Leaderboard.

// RecordLeaderboardQuery counts a leaderboard query and its latency.
func RecordLeaderboardQuery(metric string, latencyMs float64) {
	if !globalManager.enabled {
		return
	}
	globalManager.leaderboardQueries.WithLabelValues(metric).Inc()
	globalManager.leaderboardLatency.Observe(latencyMs)
}

// Storage and cache.

// RecordStorageLatency records the latency of a storage operation.
func RecordStorageLatency(operation string, latencyMs float64) {
	if globalManager.enabled {
		globalManager.storageLatency.WithLabelValues(operation).Observe(latencyMs)
	}
}

// RecordCacheHit increments the cache hit counter.
func RecordCacheHit() {
	if globalManager.enabled {
		globalManager.cacheHits.Inc()
	}
}

// RecordCacheMiss increments the cache miss counter.
func RecordCacheMiss() {
	if globalManager.enabled {
		globalManager.cacheMisses.Inc()
	}
}

// HTTP.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordRateLimited increments the rate limited counter.
func RecordRateLimited() {
	globalManager.rateLimited.Inc()
}

// Errors.

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByType records an error with type and severity labels.
func RecordErrorByType(errorType, severity string) {
	globalManager.errorRateByType.WithLabelValues(errorType, severity).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// RecordErrorLatency records the latency of an operation that resulted in an error.
func RecordErrorLatency(component, errorType string, latencyMs float64) {
	globalManager.errorLatency.WithLabelValues(component, errorType).Observe(latencyMs)
}

// System.

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

// RefreshInterval reports how often sampled gauges should be refreshed.
func (m *Manager) RefreshInterval() time.Duration {
	return m.refreshInterval
}

// RefreshInterval reports the global manager's gauge refresh interval.
func RefreshInterval() time.Duration {
	return globalManager.refreshInterval
}

// Since returns the milliseconds elapsed since start as a float.
func Since(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000
}
