// Package engine exposes the host operations of jsonguard on top of the core
// jsonschema package: compiled validators are cached by schema content,
// failures are reported as notices, and every call is measured and traced.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/platinummonkey/jsonguard/pkg/cache"
	"github.com/platinummonkey/jsonguard/pkg/jsonschema"
	"github.com/platinummonkey/jsonguard/pkg/jsonvalue"
	"github.com/platinummonkey/jsonguard/pkg/observability"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
)

// Evaluation modes used in metrics and spans
const (
	ModeFast       = "fast"
	ModeDiagnostic = "diagnostic"
)

// NoticeFunc receives the human readable notices emitted when an instance
// fails or a schema is rejected.
type NoticeFunc func(ctx context.Context, message string)

// Config configures an Engine. Zero values select defaults.
type Config struct {
	Compiler    *jsonschema.CompilerConfig
	Cache       *cache.Config
	Logger      *observability.Logger
	Metrics     *observability.Metrics
	OTelMetrics *observability.OTelMetrics
	// Notice overrides the default notice sink, which logs a warning
	Notice NoticeFunc
	// DisableNotices suppresses notices entirely
	DisableNotices bool
}

// Engine is safe for concurrent use
type Engine struct {
	compiler *jsonschema.Compiler
	cache    *cache.ValidatorCache
	logger   *observability.Logger
	metrics  *observability.Metrics
	otel     *observability.OTelMetrics
	tracer   trace.Tracer
	notice   NoticeFunc
	group    singleflight.Group
}

// New creates an engine
func New(cfg Config) *Engine {
	e := &Engine{
		compiler: jsonschema.NewCompiler(cfg.Compiler),
		logger:   cfg.Logger,
		metrics:  cfg.Metrics,
		otel:     cfg.OTelMetrics,
		tracer:   observability.Tracer(),
	}
	if e.logger == nil {
		e.logger = observability.NopLogger()
	}

	cacheCfg := cache.DefaultConfig()
	if cfg.Cache != nil {
		c := *cfg.Cache
		cacheCfg = &c
	}
	userEvict := cacheCfg.OnEvict
	cacheCfg.OnEvict = func(k cache.Key) {
		if e.metrics != nil {
			e.metrics.CacheEvictionsTotal.Inc()
		}
		if userEvict != nil {
			userEvict(k)
		}
	}
	e.cache = cache.New(cacheCfg)

	switch {
	case cfg.DisableNotices:
		e.notice = func(context.Context, string) {}
	case cfg.Notice != nil:
		e.notice = cfg.Notice
	default:
		e.notice = func(ctx context.Context, msg string) {
			e.log(ctx).Warn(msg)
		}
	}
	return e
}

// Compiler returns the underlying compiler
func (e *Engine) Compiler() *jsonschema.Compiler {
	return e.compiler
}

// CacheStats returns statistics of the validator cache
func (e *Engine) CacheStats() cache.Stats {
	return e.cache.Stats()
}

// AddResource registers an external schema document for reference
// resolution. Cached validators are dropped since a reference they resolved
// may now point elsewhere.
func (e *Engine) AddResource(uri string, doc jsonvalue.Value) error {
	if err := e.compiler.AddResource(uri, doc); err != nil {
		return err
	}
	e.cache.Purge()
	e.updateCacheGauge()
	return nil
}

// Invalidate drops the cached validator for schema
func (e *Engine) Invalidate(schema jsonvalue.Value) {
	e.cache.Delete(cache.KeyFor(schema))
	e.updateCacheGauge()
}

// Compile returns the validator for schema, compiling it on a cache miss.
// Concurrent compilations of the same content are collapsed into one.
func (e *Engine) Compile(ctx context.Context, schema jsonvalue.Value) (*jsonschema.Validator, error) {
	key := cache.KeyFor(schema)
	ctx, span := e.tracer.Start(ctx, "jsonguard.compile",
		trace.WithAttributes(attribute.String("jsonguard.schema_key", key.Short())))
	defer span.End()

	if v, err := e.cache.Get(key); err == nil {
		e.recordCacheLookup(ctx, true)
		span.SetAttributes(attribute.Bool("jsonguard.cache_hit", true))
		return v, nil
	}
	e.recordCacheLookup(ctx, false)
	span.SetAttributes(attribute.Bool("jsonguard.cache_hit", false))

	res, err, _ := e.group.Do(string(key), func() (interface{}, error) {
		return e.compile(ctx, key, schema)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid schema")
		return nil, err
	}
	v := res.(*jsonschema.Validator)
	span.SetAttributes(attribute.String("jsonschema.dialect", v.Dialect().Dialect.String()))
	return v, nil
}

func (e *Engine) compile(ctx context.Context, key cache.Key, schema jsonvalue.Value) (*jsonschema.Validator, error) {
	start := time.Now()
	v, err := e.compiler.Compile(schema)
	elapsed := time.Since(start)

	dialect := "unknown"
	if v != nil {
		dialect = v.Dialect().Dialect.String()
	}
	if e.metrics != nil {
		e.metrics.CompilationTotal.WithLabelValues(dialect).Inc()
		e.metrics.CompilationDuration.WithLabelValues(dialect).Observe(elapsed.Seconds())
	}
	e.otel.RecordCompilation(ctx, dialect, elapsed, err)

	if err != nil {
		if e.metrics != nil {
			keyword := ""
			if ce, ok := jsonschema.AsCompileError(err); ok {
				keyword = ce.Keyword
			}
			e.metrics.CompilationErrorsTotal.WithLabelValues(keyword).Inc()
		}
		return nil, err
	}

	if err := e.cache.Set(key, v); err != nil {
		return nil, fmt.Errorf("caching validator: %w", err)
	}
	e.updateCacheGauge()
	e.log(ctx).WithFields(map[string]interface{}{
		"schema_key": key.Short(),
		"dialect":    dialect,
		"duration":   elapsed.String(),
	}).Debug("schema compiled")
	return v, nil
}

// Matches reports whether instance is valid against schema. A schema that
// does not compile matches nothing. On failure one notice is emitted per
// violation.
func (e *Engine) Matches(ctx context.Context, schema, instance jsonvalue.Value) bool {
	v, err := e.Compile(ctx, schema)
	if err != nil {
		e.schemaNotice(ctx, err)
		return false
	}
	return e.MatchesWith(ctx, v, instance)
}

// MatchesWith evaluates instance against an already compiled validator in
// fast mode, emitting one notice per violation on failure.
func (e *Engine) MatchesWith(ctx context.Context, v *jsonschema.Validator, instance jsonvalue.Value) bool {
	if e.evaluate(ctx, v, instance, ModeFast, func() bool { return v.IsValid(instance) }) {
		return true
	}
	for _, verr := range v.Validate(instance) {
		e.notice(ctx, fmt.Sprintf("Invalid instance %s at %s", verr.Instance.String(), verr.InstancePath.String()))
	}
	return false
}

// Validate returns every violation of schema by instance. The error is
// non-nil only when the schema does not compile.
func (e *Engine) Validate(ctx context.Context, schema, instance jsonvalue.Value) ([]*jsonschema.ValidationError, error) {
	v, err := e.Compile(ctx, schema)
	if err != nil {
		return nil, err
	}
	return e.ValidateWith(ctx, v, instance), nil
}

// ValidateWith evaluates instance against an already compiled validator in
// diagnostic mode.
func (e *Engine) ValidateWith(ctx context.Context, v *jsonschema.Validator, instance jsonvalue.Value) []*jsonschema.ValidationError {
	var errs []*jsonschema.ValidationError
	e.evaluate(ctx, v, instance, ModeDiagnostic, func() bool {
		errs = v.Validate(instance)
		return errs == nil
	})
	if errs != nil && e.metrics != nil {
		e.metrics.ValidationErrorCount.Observe(float64(len(errs)))
	}
	return errs
}

// ValidationErrors returns the messages describing why instance fails
// schema. A schema that does not compile yields its compile error as the
// only message.
func (e *Engine) ValidationErrors(ctx context.Context, schema, instance jsonvalue.Value) []string {
	errs, err := e.Validate(ctx, schema, instance)
	if err != nil {
		return []string{err.Error()}
	}
	return jsonschema.FormatAll(errs)
}

// CheckSchema meta-validates schema and reports its dialect
func (e *Engine) CheckSchema(ctx context.Context, schema jsonvalue.Value) (jsonschema.DialectInfo, error) {
	_, span := e.tracer.Start(ctx, "jsonguard.check_schema")
	defer span.End()

	info, err := e.compiler.ValidateSchema(schema)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid schema")
		if e.metrics != nil {
			e.metrics.EvaluationsTotal.WithLabelValues("meta", observability.OutcomeInvalidSchema).Inc()
		}
	}
	return info, err
}

// IsValidSchema reports whether schema is a well-formed schema of its
// dialect. A rejected schema with a located violation emits a notice.
func (e *Engine) IsValidSchema(ctx context.Context, schema jsonvalue.Value) bool {
	if _, err := e.CheckSchema(ctx, schema); err != nil {
		e.schemaNotice(ctx, err)
		return false
	}
	return true
}

// evaluate runs fn inside an evaluation span and records its outcome
func (e *Engine) evaluate(ctx context.Context, v *jsonschema.Validator, instance jsonvalue.Value, mode string, fn func() bool) bool {
	ctx, span := e.tracer.Start(ctx, "jsonguard.evaluate", trace.WithAttributes(
		attribute.String("jsonguard.mode", mode),
		attribute.String("jsonschema.dialect", v.Dialect().Dialect.String()),
		attribute.String("jsonvalue.kind", instance.Kind().String()),
	))
	defer span.End()

	start := time.Now()
	ok := fn()
	elapsed := time.Since(start)

	outcome := observability.OutcomeValid
	if !ok {
		outcome = observability.OutcomeInvalid
	}
	span.SetAttributes(attribute.Bool("jsonguard.valid", ok))
	if e.metrics != nil {
		e.metrics.EvaluationsTotal.WithLabelValues(mode, outcome).Inc()
		e.metrics.EvaluationDuration.WithLabelValues(mode).Observe(elapsed.Seconds())
	}
	e.otel.RecordEvaluation(ctx, mode, outcome, elapsed)
	return ok
}

func (e *Engine) schemaNotice(ctx context.Context, err error) {
	if ce, ok := jsonschema.AsCompileError(err); ok && len(ce.Path) > 0 {
		e.notice(ctx, fmt.Sprintf("Invalid JSON schema at path: %s", ce.Path.String()))
	}
}

func (e *Engine) recordCacheLookup(ctx context.Context, hit bool) {
	if e.metrics != nil {
		if hit {
			e.metrics.CacheHitsTotal.Inc()
		} else {
			e.metrics.CacheMissesTotal.Inc()
		}
	}
	e.otel.RecordCacheLookup(ctx, hit)
}

func (e *Engine) updateCacheGauge() {
	if e.metrics != nil {
		e.metrics.CacheEntries.Set(float64(e.cache.Len()))
	}
}

// log returns the request logger when ctx carries one, the engine logger
// otherwise, enriched with request and trace fields.
func (e *Engine) log(ctx context.Context) *observability.Logger {
	if _, ok := ctx.Value(observability.LoggerKey).(*observability.Logger); !ok {
		ctx = observability.WithLogger(ctx, e.logger)
	}
	return observability.FromContext(ctx)
}
