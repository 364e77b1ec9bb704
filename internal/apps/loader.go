package apps

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/glasspane/webdesk/internal/config"
	"github.com/glasspane/webdesk/internal/logging"
	"github.com/glasspane/webdesk/internal/monitoring"
)

// ErrModuleNotFound reports an app id outside the closed module table.
var ErrModuleNotFound = errors.New("app module not found")

// Resolver resolves an app id to its module constructor. Resolution may be
// slow (it stands in for a deferred import); the loader makes sure it runs
// at most once concurrently per id.
type Resolver func(ctx context.Context) (Constructor, error)

// ModuleTable is the closed, statically known mapping of loadable app ids.
type ModuleTable map[string]Resolver

type flight struct {
	done chan struct{}
	ctor Constructor
	err  error
}

// Loader resolves app modules on demand with caching and in-flight
// de-duplication: at most one module resolution per app id is ever in
// flight, regardless of how many callers ask concurrently.
type Loader struct {
	mu       sync.Mutex
	table    ModuleTable
	cache    map[string]Constructor
	inflight map[string]*flight

	cfg     config.LoaderConfig
	log     *logging.Logger
	metrics *monitoring.Metrics
}

// NewLoader creates a loader over a closed module table.
func NewLoader(table ModuleTable, cfg config.LoaderConfig, log *logging.Logger) *Loader {
	return &Loader{
		table:    table,
		cache:    make(map[string]Constructor),
		inflight: make(map[string]*flight),
		cfg:      cfg,
		log:      log.Named("loader"),
	}
}

// WithMetrics attaches a metrics collector.
func (l *Loader) WithMetrics(metrics *monitoring.Metrics) *Loader {
	l.metrics = metrics
	return l
}

// LoadApp resolves the module for appID (reusing the cache or an in-flight
// resolution) and constructs a new instance from it. Unknown ids fail with
// ErrModuleNotFound; resolver failures are wrapped naming the app id.
func (l *Loader) LoadApp(ctx context.Context, appID string) (App, error) {
	ctor, err := l.loadModule(ctx, appID)
	if err != nil {
		return nil, err
	}
	instance := ctor()
	if instance == nil {
		return nil, fmt.Errorf("load app %q: constructor returned no instance", appID)
	}
	return instance, nil
}

func (l *Loader) loadModule(ctx context.Context, appID string) (Constructor, error) {
	l.mu.Lock()

	if ctor, ok := l.cache[appID]; ok {
		l.mu.Unlock()
		return ctor, nil
	}

	if fl, ok := l.inflight[appID]; ok {
		// Another caller is already resolving this module; await it.
		l.mu.Unlock()
		select {
		case <-fl.done:
			return fl.ctor, fl.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	resolver, ok := l.table[appID]
	if !ok {
		l.mu.Unlock()
		return nil, fmt.Errorf("load app %q: %w", appID, ErrModuleNotFound)
	}

	fl := &flight{done: make(chan struct{})}
	l.inflight[appID] = fl
	l.mu.Unlock()

	start := time.Now()
	ctor, err := resolver(ctx)
	if err != nil {
		err = fmt.Errorf("load app %q: %w", appID, err)
	} else if ctor == nil {
		err = fmt.Errorf("load app %q: resolver returned no constructor", appID)
	}
	fl.ctor, fl.err = ctor, err

	l.mu.Lock()
	delete(l.inflight, appID)
	if err == nil {
		l.cache[appID] = ctor
		l.evictIfOversizedLocked()
	}
	l.mu.Unlock()
	close(fl.done)

	if l.metrics != nil {
		l.metrics.ModuleLoadDuration.Observe(time.Since(start).Seconds())
		if err != nil {
			l.metrics.ModuleLoadErrors.Inc()
		}
	}
	return ctor, err
}

// PreloadApps resolves the given modules in parallel, best effort: per-id
// failures are logged and do not abort sibling preloads.
func (l *Loader) PreloadApps(ctx context.Context, appIDs []string) {
	var wg sync.WaitGroup
	for _, appID := range appIDs {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			if _, err := l.loadModule(ctx, id); err != nil {
				l.log.Warn("preload failed", zap.String("app", id), zap.Error(err))
			}
		}(appID)
	}
	wg.Wait()
}

// IsAppAvailable reports whether appID belongs to the closed set of
// loadable ids. This is the loader's inventory, distinct from the
// registry's registration set.
func (l *Loader) IsAppAvailable(appID string) bool {
	_, ok := l.table[appID]
	return ok
}

// AvailableApps lists the loadable ids, sorted.
func (l *Loader) AvailableApps() []string {
	out := make([]string, 0, len(l.table))
	for id := range l.table {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// ClearCache drops all cached modules. In-flight resolutions are left to
// finish; their results re-enter the cache on completion.
func (l *Loader) ClearCache() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cache = make(map[string]Constructor)
}

// CachedModules reports how many modules are cached.
func (l *Loader) CachedModules() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.cache)
}

// evictIfOversizedLocked trades memory for re-fetch cost once the cache
// grows past the configured bound.
func (l *Loader) evictIfOversizedLocked() {
	if l.cfg.MaxCachedModules <= 0 || len(l.cache) <= l.cfg.MaxCachedModules {
		return
	}
	l.log.Info("module cache over bound, clearing",
		zap.Int("cached", len(l.cache)),
		zap.Int("bound", l.cfg.MaxCachedModules),
	)
	l.cache = make(map[string]Constructor)
}
