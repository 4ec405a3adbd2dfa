package observability

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// Health states reported for the service and each dependency
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// CheckFunc probes a single dependency. Returning ErrDegraded (or an error
// wrapping it) marks the dependency degraded rather than unhealthy.
type CheckFunc func(ctx context.Context) error

// ErrDegraded reports a dependency that works but is impaired
var ErrDegraded = errors.New("degraded")

// HealthStatus represents the overall health status
type HealthStatus struct {
	Status       string                      `json:"status"`
	Timestamp    time.Time                   `json:"timestamp"`
	Version      string                      `json:"version,omitempty"`
	Dependencies map[string]DependencyStatus `json:"dependencies,omitempty"`
}

// DependencyStatus represents the health of a single dependency
type DependencyStatus struct {
	Status    string    `json:"status"`
	Message   string    `json:"message,omitempty"`
	LatencyMs int64     `json:"latency_ms"`
	Timestamp time.Time `json:"timestamp"`
}

type namedCheck struct {
	name     string
	check    CheckFunc
	optional bool
}

// HealthChecker aggregates named dependency checks
type HealthChecker struct {
	version string
	timeout time.Duration

	mu     sync.RWMutex
	checks []namedCheck
}

// NewHealthChecker creates a checker with no dependencies
func NewHealthChecker(version string) *HealthChecker {
	return &HealthChecker{version: version, timeout: 5 * time.Second}
}

// AddCheck registers a required dependency. Its failure makes the service
// unhealthy.
func (h *HealthChecker) AddCheck(name string, check CheckFunc) {
	h.add(namedCheck{name: name, check: check})
}

// AddOptionalCheck registers a dependency whose failure only degrades the
// service.
func (h *HealthChecker) AddOptionalCheck(name string, check CheckFunc) {
	h.add(namedCheck{name: name, check: check, optional: true})
}

func (h *HealthChecker) add(c namedCheck) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks = append(h.checks, c)
}

// Check runs every registered check
func (h *HealthChecker) Check(ctx context.Context) HealthStatus {
	h.mu.RLock()
	checks := append([]namedCheck(nil), h.checks...)
	h.mu.RUnlock()
	sort.Slice(checks, func(i, j int) bool { return checks[i].name < checks[j].name })

	status := HealthStatus{
		Status:       StatusHealthy,
		Timestamp:    time.Now(),
		Version:      h.version,
		Dependencies: make(map[string]DependencyStatus, len(checks)),
	}

	for _, c := range checks {
		dep := runCheck(ctx, c.check)
		status.Dependencies[c.name] = dep
		switch {
		case dep.Status == StatusUnhealthy && !c.optional:
			status.Status = StatusUnhealthy
		case dep.Status != StatusHealthy && status.Status == StatusHealthy:
			status.Status = StatusDegraded
		}
	}
	return status
}

func runCheck(ctx context.Context, check CheckFunc) DependencyStatus {
	start := time.Now()
	err := check(ctx)
	dep := DependencyStatus{
		Status:    StatusHealthy,
		LatencyMs: time.Since(start).Milliseconds(),
		Timestamp: start,
	}
	switch {
	case err == nil:
	case errors.Is(err, ErrDegraded):
		dep.Status = StatusDegraded
		dep.Message = err.Error()
	default:
		dep.Status = StatusUnhealthy
		dep.Message = err.Error()
	}
	return dep
}

// Liveness answers 200 while the process is serving
func (h *HealthChecker) Liveness(w http.ResponseWriter, r *http.Request) {
	writeHealth(w, http.StatusOK, HealthStatus{
		Status:    StatusHealthy,
		Timestamp: time.Now(),
		Version:   h.version,
	})
}

// Readiness answers 503 when a required dependency is unhealthy
func (h *HealthChecker) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	status := h.Check(ctx)

	// Return 503 if unhealthy, 200 if healthy or degraded
	code := http.StatusOK
	if status.Status == StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	writeHealth(w, code, status)
}

func writeHealth(w http.ResponseWriter, code int, status HealthStatus) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(status)
}

// SQLCheck pings the database and runs a trivial query. An exhausted pool
// reports degraded.
func SQLCheck(db *sql.DB) CheckFunc {
	return func(ctx context.Context) error {
		// Ping database with context
		if err := db.PingContext(ctx); err != nil {
			return err
		}
		// Check if we can run a simple query
		var one int
		if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
			return fmt.Errorf("query failed: %w", err)
		}
		// Check connection pool stats
		stats := db.Stats()
		if stats.MaxOpenConnections > 0 && stats.InUse >= stats.MaxOpenConnections {
			return fmt.Errorf("%w: connection pool exhausted", ErrDegraded)
		}
		return nil
	}
}

// RedisCheck pings a Redis server
func RedisCheck(client redis.UniversalClient) CheckFunc {
	return func(ctx context.Context) error {
		// Ping Redis
		return client.Ping(ctx).Err()
	}
}
