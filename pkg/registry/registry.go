// Package registry keeps a snapshot of named, compiled schemas loaded from a
// storage source and keeps it current as the source changes.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/platinummonkey/jsonguard/pkg/cache"
	"github.com/platinummonkey/jsonguard/pkg/engine"
	"github.com/platinummonkey/jsonguard/pkg/jsonschema"
	"github.com/platinummonkey/jsonguard/pkg/jsonvalue"
	"github.com/platinummonkey/jsonguard/pkg/observability"
	"github.com/platinummonkey/jsonguard/pkg/storage"
	"github.com/sirupsen/logrus"
)

// ErrNotLoaded is reported by the readiness check until the first
// successful refresh
var ErrNotLoaded = errors.New("schema registry not loaded")

// Entry is a registered schema
type Entry struct {
	Name      string
	Schema    jsonvalue.Value
	Validator *jsonschema.Validator
	Key       cache.Key
	Location  string
	LoadedAt  time.Time
}

// Dialect returns the dialect the schema was compiled under
func (e *Entry) Dialect() jsonschema.DialectInfo {
	return e.Validator.Dialect()
}

// RefreshReport describes what a refresh changed
type RefreshReport struct {
	Added     []string
	Updated   []string
	Removed   []string
	Unchanged []string
	// Failed maps names whose document could not be loaded to the reason.
	// A failed name keeps its previous entry, if any.
	Failed map[string]error
}

// Changed reports whether the snapshot differs from the previous one
func (r *RefreshReport) Changed() bool {
	return len(r.Added)+len(r.Updated)+len(r.Removed) > 0
}

// Options configures a Registry
type Options struct {
	Logger  *logrus.Logger
	Metrics *observability.Metrics
	// Debounce delays a refresh after a filesystem event so that bursts of
	// writes cause one refresh (default 250ms)
	Debounce time.Duration
}

// Registry is safe for concurrent use
type Registry struct {
	source   storage.Source
	engine   *engine.Engine
	log      *logrus.Logger
	metrics  *observability.Metrics
	debounce time.Duration

	refreshMu sync.Mutex
	mu        sync.RWMutex
	entries   map[string]*Entry
	loaded    atomic.Bool
}

// New creates an empty registry. Call Refresh to load it.
func New(source storage.Source, eng *engine.Engine, opts Options) *Registry {
	log := opts.Logger
	if log == nil {
		log = logrus.New()
	}
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = 250 * time.Millisecond
	}
	return &Registry{
		source:   source,
		engine:   eng,
		log:      log,
		metrics:  opts.Metrics,
		debounce: debounce,
		entries:  make(map[string]*Entry),
	}
}

// Get returns the entry registered under name
func (r *Registry) Get(name string) (*Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	return e, ok
}

// Names returns the registered names in order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Entries returns the registered entries ordered by name
func (r *Registry) Entries() []*Entry {
	names := r.Names()
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Entry, 0, len(names))
	for _, name := range names {
		if e, ok := r.entries[name]; ok {
			out = append(out, e)
		}
	}
	return out
}

// Loaded reports whether a refresh has succeeded
func (r *Registry) Loaded() bool {
	return r.loaded.Load()
}

// ReadyCheck reports ErrNotLoaded until the first successful refresh
func (r *Registry) ReadyCheck() observability.CheckFunc {
	return func(context.Context) error {
		if !r.Loaded() {
			return ErrNotLoaded
		}
		return nil
	}
}

// Validate evaluates instance against the schema registered under name
func (r *Registry) Validate(ctx context.Context, name string, instance jsonvalue.Value) ([]*jsonschema.ValidationError, error) {
	e, ok := r.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", storage.ErrSchemaNotFound, name)
	}
	ctx = observability.WithSchema(ctx, name)
	return r.engine.ValidateWith(ctx, e.Validator, instance), nil
}

// Matches reports whether instance is valid against the schema registered
// under name
func (r *Registry) Matches(ctx context.Context, name string, instance jsonvalue.Value) (bool, error) {
	e, ok := r.Get(name)
	if !ok {
		return false, fmt.Errorf("%w: %q", storage.ErrSchemaNotFound, name)
	}
	ctx = observability.WithSchema(ctx, name)
	return r.engine.MatchesWith(ctx, e.Validator, instance), nil
}

// Refresh reloads every document from the source. Documents that fail to
// decode or compile are reported and keep their previous entry. When the
// source cannot be listed the whole snapshot is kept and the error returned.
func (r *Registry) Refresh(ctx context.Context) (*RefreshReport, error) {
	r.refreshMu.Lock()
	defer r.refreshMu.Unlock()

	start := time.Now()
	report, err := r.refresh(ctx)
	status := "success"
	switch {
	case err != nil:
		status = "error"
	case len(report.Failed) > 0:
		status = "partial"
	}
	if r.metrics != nil {
		r.metrics.RegistryRefreshTotal.WithLabelValues(status).Inc()
		r.metrics.RegistryRefreshDuration.Observe(time.Since(start).Seconds())
	}
	if err != nil {
		r.log.WithError(err).WithField("source", r.source.Kind()).Error("schema registry refresh failed")
		return nil, err
	}

	fields := logrus.Fields{
		"source":   r.source.Kind(),
		"schemas":  len(r.Names()),
		"added":    len(report.Added),
		"updated":  len(report.Updated),
		"removed":  len(report.Removed),
		"failed":   len(report.Failed),
		"duration": time.Since(start).String(),
	}
	for name, ferr := range report.Failed {
		r.log.WithError(ferr).WithField("schema", name).Warn("schema rejected, keeping previous version")
	}
	if report.Changed() || len(report.Failed) > 0 {
		r.log.WithFields(fields).Info("schema registry refreshed")
	} else {
		r.log.WithFields(fields).Debug("schema registry unchanged")
	}
	return report, nil
}

func (r *Registry) refresh(ctx context.Context) (*RefreshReport, error) {
	docs, err := r.source.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing schemas: %w", err)
	}

	report := &RefreshReport{Failed: make(map[string]error)}

	byName := make(map[string][]storage.Document, len(docs))
	for _, d := range docs {
		byName[d.Name] = append(byName[d.Name], d)
	}

	r.mu.RLock()
	previous := make(map[string]*Entry, len(r.entries))
	for name, e := range r.entries {
		previous[name] = e
	}
	r.mu.RUnlock()

	next := make(map[string]*Entry, len(byName))
	var stale []jsonvalue.Value

	for name, group := range byName {
		old := previous[name]
		entry, err := r.load(ctx, name, group)
		if err != nil {
			report.Failed[name] = err
			if old != nil {
				next[name] = old
			}
			continue
		}
		switch {
		case old == nil:
			report.Added = append(report.Added, name)
		case old.Key == entry.Key:
			report.Unchanged = append(report.Unchanged, name)
			entry = old
		default:
			report.Updated = append(report.Updated, name)
			stale = append(stale, old.Schema)
		}
		next[name] = entry
	}
	for name, old := range previous {
		if _, ok := byName[name]; !ok {
			report.Removed = append(report.Removed, name)
			stale = append(stale, old.Schema)
		}
	}

	r.mu.Lock()
	r.entries = next
	r.mu.Unlock()
	r.loaded.Store(true)

	for _, schema := range stale {
		r.engine.Invalidate(schema)
	}
	if r.metrics != nil {
		r.metrics.RegistrySchemas.Set(float64(len(next)))
	}

	sort.Strings(report.Added)
	sort.Strings(report.Updated)
	sort.Strings(report.Removed)
	sort.Strings(report.Unchanged)
	return report, nil
}

func (r *Registry) load(ctx context.Context, name string, group []storage.Document) (*Entry, error) {
	if len(group) > 1 {
		locs := make([]string, len(group))
		for i, d := range group {
			locs[i] = d.Location
		}
		return nil, fmt.Errorf("schema %q is defined more than once: %s", name, strings.Join(locs, ", "))
	}
	doc := group[0]
	schema, err := storage.Decode(doc)
	if err != nil {
		return nil, err
	}
	v, err := r.engine.Compile(ctx, schema)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", doc.Location, err)
	}
	return &Entry{
		Name:      name,
		Schema:    schema,
		Validator: v,
		Key:       cache.KeyFor(schema),
		Location:  doc.Location,
		LoadedAt:  time.Now(),
	}, nil
}

// safeRefresh runs a refresh from a background trigger, turning a panic into
// a logged error.
func (r *Registry) safeRefresh(ctx context.Context, trigger string) {
	defer func() {
		if err := observability.PanicError(recover()); err != nil {
			r.log.WithError(err).WithField("trigger", trigger).Error("schema registry refresh panicked")
		}
	}()
	_, _ = r.Refresh(ctx)
}
