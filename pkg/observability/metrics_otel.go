package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// OTelMetrics mirrors the engine metrics as OpenTelemetry instruments, for
// deployments that export through an OTLP collector instead of scraping.
type OTelMetrics struct {
	compilations       metric.Int64Counter
	compileDuration    metric.Float64Histogram
	evaluations        metric.Int64Counter
	evaluationDuration metric.Float64Histogram
	cacheLookups       metric.Int64Counter
}

// NewOTelMetrics creates the instruments from the global meter provider
func NewOTelMetrics() (*OTelMetrics, error) {
	return NewOTelMetricsFrom(otel.GetMeterProvider())
}

// NewOTelMetricsFrom creates the instruments from the given provider
func NewOTelMetricsFrom(provider metric.MeterProvider) (*OTelMetrics, error) {
	meter := provider.Meter(InstrumentationName)

	m := &OTelMetrics{}
	var err error

	// Compilation metrics
	m.compilations, err = meter.Int64Counter(
		"jsonguard.compilations",
		metric.WithDescription("Total number of schema compilations"),
		metric.WithUnit("{compilation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create compilations counter: %w", err)
	}

	m.compileDuration, err = meter.Float64Histogram(
		"jsonguard.compile.duration",
		metric.WithDescription("Schema compilation duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create compile duration histogram: %w", err)
	}

	// Evaluation metrics
	m.evaluations, err = meter.Int64Counter(
		"jsonguard.evaluations",
		metric.WithDescription("Total number of instance evaluations"),
		metric.WithUnit("{evaluation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create evaluations counter: %w", err)
	}

	m.evaluationDuration, err = meter.Float64Histogram(
		"jsonguard.evaluate.duration",
		metric.WithDescription("Instance evaluation duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create evaluation duration histogram: %w", err)
	}

	// Cache metrics
	m.cacheLookups, err = meter.Int64Counter(
		"jsonguard.cache.lookups",
		metric.WithDescription("Compiled-validator cache lookups"),
		metric.WithUnit("{lookup}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache lookups counter: %w", err)
	}

	return m, nil
}

// RecordCompilation records a compilation and whether the schema was accepted
func (m *OTelMetrics) RecordCompilation(ctx context.Context, dialect string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("jsonschema.dialect", dialect),
		attribute.Bool("error", err != nil),
	)
	m.compilations.Add(ctx, 1, attrs)
	m.compileDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordEvaluation records an evaluation with its mode and outcome
func (m *OTelMetrics) RecordEvaluation(ctx context.Context, mode, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("jsonschema.mode", mode),
		attribute.String("jsonschema.outcome", outcome),
	)
	m.evaluations.Add(ctx, 1, attrs)
	m.evaluationDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordCacheLookup records a cache hit or miss
func (m *OTelMetrics) RecordCacheLookup(ctx context.Context, hit bool) {
	if m == nil {
		return
	}
	m.cacheLookups.Add(ctx, 1, metric.WithAttributes(attribute.Bool("hit", hit)))
}
