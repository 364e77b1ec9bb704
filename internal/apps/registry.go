package apps

import (
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/glasspane/webdesk/internal/events"
	"github.com/glasspane/webdesk/internal/logging"
	"github.com/glasspane/webdesk/internal/monitoring"
	"github.com/glasspane/webdesk/internal/shared/types"
)

// RegisterOptions configure a registration.
type RegisterOptions struct {
	// Singleton caps the app at one live instance; relaunching reuses it.
	Singleton bool
}

type registration struct {
	meta      types.AppMeta
	ctor      Constructor
	singleton bool
	instance  App // cached live instance, singleton only
}

// Registry maps application ids to constructors and lifecycle policy, and
// tracks running instances. It owns the registration map exclusively.
type Registry struct {
	mu         sync.RWMutex
	regs       map[string]*registration
	categories map[string]map[string]struct{} // category -> app ids

	log     *logging.Logger
	bus     *events.Bus
	metrics *monitoring.Metrics
}

// NewRegistry creates an empty app registry.
func NewRegistry(log *logging.Logger, bus *events.Bus) *Registry {
	return &Registry{
		regs:       make(map[string]*registration),
		categories: make(map[string]map[string]struct{}),
		log:        log.Named("registry"),
		bus:        bus,
	}
}

// WithMetrics attaches a metrics collector.
func (r *Registry) WithMetrics(metrics *monitoring.Metrics) *Registry {
	r.metrics = metrics
	return r
}

// Register stores a registration for appID. A transient probe instance is
// constructed to read its static metadata and disposed immediately if it
// came up mounted. Registering an already-registered id replaces the prior
// registration; last write wins.
func (r *Registry) Register(appID string, ctor Constructor, opts RegisterOptions) bool {
	if appID == "" || ctor == nil {
		r.log.Warn("rejecting registration", zap.String("app", appID))
		return false
	}

	probe := ctor()
	if probe == nil {
		r.log.Warn("constructor returned no instance, registration skipped",
			zap.String("app", appID))
		return false
	}
	meta := probe.Meta()
	meta.ID = appID
	if probe.Mounted() {
		if err := probe.Close(); err != nil {
			r.log.Warn("failed to dispose probe instance",
				zap.String("app", appID), zap.Error(err))
		}
	}

	r.mu.Lock()
	if prev, exists := r.regs[appID]; exists {
		// Last write wins; kept for hot-reload of app definitions.
		r.log.Warn("replacing existing registration", zap.String("app", appID))
		r.removeFromCategoryLocked(appID, prev.meta.Category)
	}
	r.regs[appID] = &registration{meta: meta, ctor: ctor, singleton: opts.Singleton}
	r.addToCategoryLocked(appID, meta.Category)
	r.mu.Unlock()

	r.bus.Emit(events.AppRegistered, types.AppEvent{AppID: appID}, "registry")
	return true
}

// Unregister closes any running singleton instance for appID, removes it
// from the category index, and deletes the registration.
func (r *Registry) Unregister(appID string) {
	r.mu.Lock()
	reg, ok := r.regs[appID]
	if !ok {
		r.mu.Unlock()
		r.log.Debug("unregister of unknown app", zap.String("app", appID))
		return
	}
	instance := reg.instance
	reg.instance = nil
	r.removeFromCategoryLocked(appID, reg.meta.Category)
	delete(r.regs, appID)
	r.mu.Unlock()

	if instance != nil && instance.Mounted() {
		if err := instance.Close(); err != nil {
			r.log.Warn("failed to close running instance",
				zap.String("app", appID), zap.Error(err))
		}
	}
	r.bus.Emit(events.AppUnregistered, types.AppEvent{AppID: appID}, "registry")
}

// CreateInstance returns an instance for appID: the cached one for
// singleton apps when it is still mounted, a fresh one otherwise. Returns
// nil for unregistered ids (logged, not an error).
func (r *Registry) CreateInstance(appID string) App {
	r.mu.Lock()
	reg, ok := r.regs[appID]
	if !ok {
		r.mu.Unlock()
		r.log.Warn("create instance for unregistered app", zap.String("app", appID))
		return nil
	}

	if reg.singleton && reg.instance != nil && reg.instance.Mounted() {
		instance := reg.instance
		r.mu.Unlock()
		return instance
	}

	ctor := reg.ctor
	r.mu.Unlock()

	instance := ctor()
	if instance == nil {
		r.log.Error("constructor failed", zap.String("app", appID))
		return nil
	}

	if reg.singleton {
		r.mu.Lock()
		// Registration may have been replaced while constructing.
		if cur, ok := r.regs[appID]; ok && cur.singleton {
			cur.instance = instance
		}
		r.mu.Unlock()
	}
	return instance
}

// LaunchApp creates (or reuses) an instance and launches it, returning the
// resulting window id. Failures are logged and reported as a false second
// return, never propagated as a panic or error to the caller.
func (r *Registry) LaunchApp(appID, teamID string) (types.WindowID, bool) {
	instance := r.CreateInstance(appID)
	if instance == nil {
		if r.metrics != nil {
			r.metrics.LaunchFailures.WithLabelValues(appID).Inc()
		}
		return 0, false
	}

	windowID, err := instance.Launch(teamID)
	if err != nil {
		r.log.Error("launch failed", zap.String("app", appID), zap.Error(err))
		if r.metrics != nil {
			r.metrics.LaunchFailures.WithLabelValues(appID).Inc()
		}
		return 0, false
	}

	if r.metrics != nil {
		r.metrics.AppLaunches.WithLabelValues(appID).Inc()
	}
	r.bus.Emit(events.AppLaunched, types.AppEvent{AppID: appID, WindowID: &windowID}, "registry")
	return windowID, true
}

// CloseApp closes the running singleton instance for appID, if any.
func (r *Registry) CloseApp(appID string) {
	r.mu.Lock()
	reg, ok := r.regs[appID]
	var instance App
	if ok {
		instance = reg.instance
		reg.instance = nil
	}
	r.mu.Unlock()

	if instance != nil && instance.Mounted() {
		if err := instance.Close(); err != nil {
			r.log.Warn("failed to close instance", zap.String("app", appID), zap.Error(err))
		}
	}
}

// Install marks appID installed.
func (r *Registry) Install(appID string) bool {
	r.mu.Lock()
	reg, ok := r.regs[appID]
	if !ok || reg.meta.Installed {
		r.mu.Unlock()
		return false
	}
	reg.meta.Installed = true
	r.mu.Unlock()

	r.bus.Emit(events.AppInstalled, types.AppEvent{AppID: appID}, "registry")
	return true
}

// Uninstall clears the installed flag, closing the running instance first.
// System apps cannot be uninstalled.
func (r *Registry) Uninstall(appID string) bool {
	r.mu.Lock()
	reg, ok := r.regs[appID]
	if !ok || !reg.meta.Installed {
		r.mu.Unlock()
		return false
	}
	if reg.meta.System {
		r.mu.Unlock()
		r.log.Warn("refusing to uninstall system app", zap.String("app", appID))
		return false
	}
	reg.meta.Installed = false
	r.mu.Unlock()

	r.CloseApp(appID)
	r.bus.Emit(events.AppUninstalled, types.AppEvent{AppID: appID}, "registry")
	return true
}

// Get returns the metadata for appID.
func (r *Registry) Get(appID string) (types.AppMeta, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.regs[appID]
	if !ok {
		return types.AppMeta{}, false
	}
	return reg.meta, true
}

// List returns all registered app metadata, sorted by id.
func (r *Registry) List() []types.AppMeta {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]types.AppMeta, 0, len(r.regs))
	for _, reg := range r.regs {
		out = append(out, reg.meta)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ByCategory returns metadata for all apps in a category.
func (r *Registry) ByCategory(category string) []types.AppMeta {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids, ok := r.categories[category]
	if !ok {
		return nil
	}
	out := make([]types.AppMeta, 0, len(ids))
	for id := range ids {
		if reg, ok := r.regs[id]; ok {
			out = append(out, reg.meta)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Categories returns all category names with at least one app.
func (r *Registry) Categories() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.categories))
	for c := range r.categories {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Search returns apps whose id or name contains the query,
// case-insensitively.
func (r *Registry) Search(query string) []types.AppMeta {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []types.AppMeta
	for _, reg := range r.regs {
		if strings.Contains(strings.ToLower(reg.meta.ID), q) ||
			strings.Contains(strings.ToLower(reg.meta.Name), q) {
			out = append(out, reg.meta)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// IsInstalled reports whether appID is registered and installed.
func (r *Registry) IsInstalled(appID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.regs[appID]
	return ok && reg.meta.Installed
}

// Stats summarizes the registry.
func (r *Registry) Stats() types.RegistryStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := types.RegistryStats{
		TotalApps:  len(r.regs),
		Categories: make(map[string]int, len(r.categories)),
	}
	for _, reg := range r.regs {
		if reg.meta.Installed {
			stats.Installed++
		}
		if reg.instance != nil && reg.instance.Mounted() {
			stats.Running++
		}
	}
	for c, ids := range r.categories {
		stats.Categories[c] = len(ids)
	}
	return stats
}

// addToCategoryLocked and removeFromCategoryLocked keep the category index
// consistent with the registration map: every app id lives in exactly one
// bucket matching its current metadata category.
func (r *Registry) addToCategoryLocked(appID, category string) {
	if category == "" {
		category = "other"
	}
	bucket, ok := r.categories[category]
	if !ok {
		bucket = make(map[string]struct{})
		r.categories[category] = bucket
	}
	bucket[appID] = struct{}{}
}

func (r *Registry) removeFromCategoryLocked(appID, category string) {
	if category == "" {
		category = "other"
	}
	if bucket, ok := r.categories[category]; ok {
		delete(bucket, appID)
		if len(bucket) == 0 {
			delete(r.categories, category)
		}
	}
}
