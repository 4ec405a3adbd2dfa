package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Evaluation outcomes used as the "outcome" label
const (
	OutcomeValid         = "valid"
	OutcomeInvalid       = "invalid"
	OutcomeInvalidSchema = "invalid_schema"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPRequestSize     *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// Compilation metrics
	CompilationTotal       *prometheus.CounterVec
	CompilationDuration    *prometheus.HistogramVec
	CompilationErrorsTotal *prometheus.CounterVec

	// Evaluation metrics
	EvaluationsTotal     *prometheus.CounterVec
	EvaluationDuration   *prometheus.HistogramVec
	ValidationErrorCount prometheus.Histogram

	// Cache metrics
	CacheHitsTotal      prometheus.Counter
	CacheMissesTotal    prometheus.Counter
	CacheEvictionsTotal prometheus.Counter
	CacheEntries        prometheus.Gauge

	// Registry metrics
	RegistrySchemas         prometheus.Gauge
	RegistryRefreshTotal    *prometheus.CounterVec
	RegistryRefreshDuration prometheus.Histogram

	// Storage metrics
	StorageOperationsTotal   *prometheus.CounterVec
	StorageOperationDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		// HTTP metrics
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jsonguard_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "jsonguard_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		HTTPRequestSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "jsonguard_http_request_size_bytes",
				Help:    "HTTP request size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 6),
			},
			[]string{"method", "route"},
		),
		HTTPResponseSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "jsonguard_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 6),
			},
			[]string{"method", "route"},
		),

		// Compilation metrics
		CompilationTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jsonguard_compilations_total",
				Help: "Total number of schema compilations",
			},
			[]string{"dialect"},
		),
		CompilationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "jsonguard_compilation_duration_seconds",
				Help:    "Schema compilation duration in seconds",
				Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
			},
			[]string{"dialect"},
		),
		CompilationErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jsonguard_compilation_errors_total",
				Help: "Total number of schemas rejected at compile time",
			},
			[]string{"keyword"},
		),

		// Evaluation metrics
		EvaluationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jsonguard_evaluations_total",
				Help: "Total number of instance evaluations",
			},
			[]string{"mode", "outcome"},
		),
		EvaluationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "jsonguard_evaluation_duration_seconds",
				Help:    "Instance evaluation duration in seconds",
				Buckets: []float64{.00001, .00005, .0001, .0005, .001, .005, .01, .05, .1},
			},
			[]string{"mode"},
		),
		ValidationErrorCount: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "jsonguard_validation_errors_per_evaluation",
				Help:    "Number of violations reported by a failed diagnostic evaluation",
				Buckets: []float64{1, 2, 5, 10, 25, 50, 100},
			},
		),

		// Cache metrics
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "jsonguard_cache_hits_total",
				Help: "Total number of compiled-validator cache hits",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "jsonguard_cache_misses_total",
				Help: "Total number of compiled-validator cache misses",
			},
		),
		CacheEvictionsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "jsonguard_cache_evictions_total",
				Help: "Total number of compiled-validator cache evictions",
			},
		),
		CacheEntries: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "jsonguard_cache_entries",
				Help: "Number of compiled validators currently cached",
			},
		),

		// Registry metrics
		RegistrySchemas: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "jsonguard_registry_schemas",
				Help: "Number of named schemas currently registered",
			},
		),
		RegistryRefreshTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jsonguard_registry_refresh_total",
				Help: "Total number of registry refreshes",
			},
			[]string{"status"},
		),
		RegistryRefreshDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "jsonguard_registry_refresh_duration_seconds",
				Help:    "Registry refresh duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),

		// Storage metrics
		StorageOperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jsonguard_storage_operations_total",
				Help: "Total number of schema source operations",
			},
			[]string{"source", "operation", "status"},
		),
		StorageOperationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "jsonguard_storage_operation_duration_seconds",
				Help:    "Schema source operation duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"source", "operation"},
		),
	}

	// Register all metrics
	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestSize,
		m.HTTPResponseSize,
		m.CompilationTotal,
		m.CompilationDuration,
		m.CompilationErrorsTotal,
		m.EvaluationsTotal,
		m.EvaluationDuration,
		m.ValidationErrorCount,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.CacheEvictionsTotal,
		m.CacheEntries,
		m.RegistrySchemas,
		m.RegistryRefreshTotal,
		m.RegistryRefreshDuration,
		m.StorageOperationsTotal,
		m.StorageOperationDuration,
	)

	return m
}

// RecordStorageOperation records the outcome and duration of a source call
func (m *Metrics) RecordStorageOperation(source, operation string, start time.Time, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.StorageOperationsTotal.WithLabelValues(source, operation, status).Inc()
	m.StorageOperationDuration.WithLabelValues(source, operation).Observe(time.Since(start).Seconds())
}

// responseWriter wraps http.ResponseWriter to capture status code and size
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += n
	return n, err
}

// RouteFunc names the route a request matched, keeping label cardinality
// bounded for paths with variables.
type RouteFunc func(*http.Request) string

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics.
// A nil route func labels requests by URL path.
func HTTPMetricsMiddleware(metrics *Metrics, route RouteFunc) func(http.Handler) http.Handler {
	if route == nil {
		route = func(r *http.Request) string { return r.URL.Path }
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Wrap response writer to capture status and size
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			// Serve the request
			next.ServeHTTP(rw, r)

			// Record metrics under the matched route, known only after routing
			name := route(r)
			if r.ContentLength > 0 {
				metrics.HTTPRequestSize.WithLabelValues(r.Method, name).Observe(float64(r.ContentLength))
			}
			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, name, strconv.Itoa(rw.statusCode)).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, name).Observe(time.Since(start).Seconds())
			metrics.HTTPResponseSize.WithLabelValues(r.Method, name).Observe(float64(rw.bytesWritten))
		})
	}
}

// MetricsHandler serves the registry in the Prometheus exposition format
func MetricsHandler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
