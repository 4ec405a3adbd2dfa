package registry

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/platinummonkey/jsonguard/pkg/storage"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"
)

// ErrNotWatchable is returned by Watch for sources that are not a directory
var ErrNotWatchable = errors.New("schema source cannot be watched")

// RunOptions selects how the registry is kept current
type RunOptions struct {
	// Watch refreshes on filesystem events (filesystem sources only)
	Watch bool
	// Schedule is a cron spec for periodic refreshes, e.g. "@every 1m"
	Schedule string
}

// Run performs an initial refresh and keeps the registry current until ctx
// is done. A failed initial refresh is returned unless a schedule or watch
// can recover from it later.
func (r *Registry) Run(ctx context.Context, opts RunOptions) error {
	if _, err := r.Refresh(ctx); err != nil && !opts.Watch && opts.Schedule == "" {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	if opts.Watch {
		g.Go(func() error { return r.Watch(ctx) })
	}
	if opts.Schedule != "" {
		c, err := r.Schedule(ctx, opts.Schedule)
		if err != nil {
			return err
		}
		g.Go(func() error {
			<-ctx.Done()
			<-c.Stop().Done()
			return nil
		})
	}
	return g.Wait()
}

// Schedule starts a cron that refreshes the registry on spec. The returned
// cron is running; stop it with Stop.
func (r *Registry) Schedule(ctx context.Context, spec string) (*cron.Cron, error) {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(spec, func() { r.safeRefresh(ctx, "schedule") }); err != nil {
		return nil, fmt.Errorf("invalid refresh schedule %q: %w", spec, err)
	}
	c.Start()
	r.log.WithField("schedule", spec).Info("scheduled schema registry refresh")
	return c, nil
}

// Watch refreshes the registry whenever a schema file in the source
// directory changes, until ctx is done. Bursts of events within the debounce
// window cause a single refresh.
func (r *Registry) Watch(ctx context.Context) error {
	fsSource, ok := storage.Unwrap(r.source).(*storage.FileSystemSource)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotWatchable, r.source.Kind())
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(fsSource.Dir()); err != nil {
		return fmt.Errorf("failed to watch %s: %w", fsSource.Dir(), err)
	}
	r.log.WithField("dir", fsSource.Dir()).Info("watching schema directory")

	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !relevant(event) {
				continue
			}
			r.log.WithField("file", event.Name).WithField("op", event.Op.String()).Debug("schema file changed")
			if pending == nil {
				pending = time.After(r.debounce)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			r.log.WithError(err).Warn("schema watcher error")
		case <-pending:
			pending = nil
			r.safeRefresh(ctx, "watch")
		}
	}
}

func relevant(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	if strings.HasPrefix(filepath.Base(event.Name), ".") {
		return false
	}
	_, ok := storage.FormatForPath(event.Name)
	return ok
}
