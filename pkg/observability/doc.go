// Package observability provides structured logging, Prometheus metrics,
// OpenTelemetry tracing, health checks and graceful shutdown for the jsonguard
// binaries.
//
// # Structured Logging
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stderr)
//	logger.WithField("schema", name).Info("schema registered")
//
// Request-scoped logging picks up the request ID, schema name and trace:
//
//	observability.FromContext(ctx).Warn("validation failed")
//
// # Prometheus Metrics
//
//	reg := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(reg)
//	metrics.EvaluationsTotal.WithLabelValues("fast", observability.OutcomeValid).Inc()
//
// # Health Checks
//
//	checker := observability.NewHealthChecker(version)
//	checker.AddCheck("postgres", observability.SQLCheck(db))
//	checker.AddOptionalCheck("redis", observability.RedisCheck(client))
//
// # OpenTelemetry
//
//	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
//		Enabled:     true,
//		Endpoint:    "otel-collector:4317",
//		ServiceName: "jsonguard",
//	}, logger)
//	defer providers.Shutdown(ctx)
package observability
