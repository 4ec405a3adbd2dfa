package observability

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewMetricsRegistersEverything(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.CompilationTotal.WithLabelValues("2020-12").Inc()
	m.EvaluationsTotal.WithLabelValues("fast", OutcomeValid).Inc()
	m.CacheHitsTotal.Inc()
	m.RegistryRefreshTotal.WithLabelValues("success").Inc()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	for _, want := range []string{
		"jsonguard_compilations_total",
		"jsonguard_evaluations_total",
		"jsonguard_cache_hits_total",
		"jsonguard_registry_refresh_total",
	} {
		if !names[want] {
			t.Errorf("Expected metric %s to be registered", want)
		}
	}

	defer func() {
		if recover() == nil {
			t.Error("Expected registering twice to panic")
		}
	}()
	NewMetrics(reg)
}

func TestRecordStorageOperation(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordStorageOperation("redis", "list", time.Now(), nil)
	m.RecordStorageOperation("redis", "list", time.Now(), errors.New("down"))
	m.RecordStorageOperation("redis", "list", time.Now(), errors.New("down"))

	if got := testutil.ToFloat64(m.StorageOperationsTotal.WithLabelValues("redis", "list", "success")); got != 1 {
		t.Errorf("Expected 1 success, got %v", got)
	}
	if got := testutil.ToFloat64(m.StorageOperationsTotal.WithLabelValues("redis", "list", "error")); got != 2 {
		t.Errorf("Expected 2 errors, got %v", got)
	}

	var nilMetrics *Metrics
	nilMetrics.RecordStorageOperation("fs", "list", time.Now(), nil)
}

func TestHTTPMetricsMiddleware(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	handler := HTTPMetricsMiddleware(m, func(*http.Request) string { return "/v1/schemas/{name}/validate" })(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = io.WriteString(w, `{"valid":false}`)
		}),
	)

	req := httptest.NewRequest(http.MethodPost, "/v1/schemas/order/validate", strings.NewReader(`{"instance":1}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("Expected status 422, got %d", rec.Code)
	}
	got := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("POST", "/v1/schemas/{name}/validate", "422"))
	if got != 1 {
		t.Errorf("Expected one request recorded under the route template, got %v", got)
	}
}

func TestMetricsHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	m.CacheMissesTotal.Inc()

	rec := httptest.NewRecorder()
	MetricsHandler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "jsonguard_cache_misses_total 1") {
		t.Errorf("Expected cache miss counter in output, got:\n%s", rec.Body.String())
	}
}
