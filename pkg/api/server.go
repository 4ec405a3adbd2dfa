package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/platinummonkey/jsonguard/pkg/engine"
	"github.com/platinummonkey/jsonguard/pkg/httputil"
	"github.com/platinummonkey/jsonguard/pkg/observability"
	"github.com/platinummonkey/jsonguard/pkg/registry"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// DefaultMaxBodyBytes bounds request bodies unless configured otherwise
const DefaultMaxBodyBytes int64 = 4 << 20

// Options configures a Server. Engine is required; the rest is optional.
type Options struct {
	Engine *engine.Engine
	// Registry enables the /v1/schemas routes
	Registry *registry.Registry
	Health   *observability.HealthChecker
	Metrics  *observability.Metrics
	// Gatherer enables /metrics
	Gatherer     prometheus.Gatherer
	Logger       *observability.Logger
	MaxBodyBytes int64
	CORSOrigins  []string
	// RateLimiter limits /v1 requests per client when set
	RateLimiter *httputil.RateLimiter
}

// Server serves the jsonguard HTTP API
type Server struct {
	engine   *engine.Engine
	registry *registry.Registry
	health   *observability.HealthChecker
	router   *mux.Router
	handler  http.Handler
}

// NewServer creates a server and sets up its routes
func NewServer(opts Options) *Server {
	s := &Server{
		engine:   opts.Engine,
		registry: opts.Registry,
		health:   opts.Health,
		router:   mux.NewRouter(),
	}
	if s.health == nil {
		s.health = observability.NewHealthChecker("")
	}
	maxBody := opts.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = DefaultMaxBodyBytes
	}

	s.setupRoutes(opts.Gatherer, opts.RateLimiter)

	s.router.Use(mux.MiddlewareFunc(httputil.RequestIDMiddleware(opts.Logger)))
	s.router.Use(mux.MiddlewareFunc(httputil.RecoveryMiddleware))
	s.router.Use(mux.MiddlewareFunc(httputil.LoggingMiddleware))
	if opts.Metrics != nil {
		s.router.Use(observability.HTTPMetricsMiddleware(opts.Metrics, routeTemplate))
	}
	s.router.Use(mux.MiddlewareFunc(httputil.CORSMiddleware(opts.CORSOrigins)))
	s.router.Use(mux.MiddlewareFunc(httputil.ContentTypeMiddleware))
	s.router.Use(mux.MiddlewareFunc(httputil.MaxBytesMiddleware(maxBody)))

	s.handler = otelhttp.NewHandler(s.router, "jsonguard",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}))
	return s
}

// setupRoutes configures all the API routes
func (s *Server) setupRoutes(gatherer prometheus.Gatherer, limiter *httputil.RateLimiter) {
	s.router.HandleFunc("/healthz", s.health.Liveness).Methods(http.MethodGet)
	s.router.HandleFunc("/readyz", s.health.Readiness).Methods(http.MethodGet)
	if gatherer != nil {
		s.router.Handle("/metrics", observability.MetricsHandler(gatherer)).Methods(http.MethodGet)
	}

	v1 := s.router.PathPrefix("/v1").Subrouter()
	if limiter != nil {
		v1.Use(limiter.Middleware)
	}
	v1.HandleFunc("/matches", s.matches).Methods(http.MethodPost, http.MethodOptions)
	v1.HandleFunc("/validate", s.validate).Methods(http.MethodPost, http.MethodOptions)
	v1.HandleFunc("/schemas/check", s.checkSchema).Methods(http.MethodPost, http.MethodOptions)

	if s.registry != nil {
		v1.HandleFunc("/schemas", s.listSchemas).Methods(http.MethodGet, http.MethodOptions)
		v1.HandleFunc("/schemas/{name}", s.getSchema).Methods(http.MethodGet, http.MethodOptions)
		v1.HandleFunc("/schemas/{name}/validate", s.validateNamed).Methods(http.MethodPost, http.MethodOptions)
	}
}

// Router exposes the router so callers can mount extra routes
func (s *Server) Router() *mux.Router {
	return s.router
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// routeTemplate labels metrics by route template rather than raw path so that
// schema names do not inflate label cardinality
func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}
