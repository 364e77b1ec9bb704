package windows

import (
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/glasspane/webdesk/internal/config"
	"github.com/glasspane/webdesk/internal/events"
	"github.com/glasspane/webdesk/internal/logging"
	"github.com/glasspane/webdesk/internal/monitoring"
	"github.com/glasspane/webdesk/internal/render"
	"github.com/glasspane/webdesk/internal/shared/types"
)

// Options configure a new window.
type Options struct {
	Width  int
	Height int
	// X/Y pin the initial position; nil means cascade.
	X *int
	Y *int
	// Centered places the window in the middle of the viewport.
	Centered bool
	// SingleInstance makes creation idempotent: an existing non-minimized
	// window for the same app is activated instead of opening a second one.
	SingleInstance bool
	// Icon shown on the bound taskbar icon.
	Icon string
	// Pinned keeps the taskbar icon after the window closes.
	Pinned bool
	TeamID string
}

type record struct {
	id     types.WindowID
	appID  string
	title  string
	teamID string
	icon   string

	geo        types.Geometry
	restoreGeo *types.Geometry // pre-maximize snapshot

	minimized bool
	maximized bool
	closing   bool
	pinned    bool
	z         uint64

	appState json.RawMessage // opaque to the kernel
}

type dragState struct {
	id       types.WindowID
	pointerX int
	pointerY int
	origin   types.Geometry
}

// Manager owns the collection of open windows.
type Manager struct {
	mu       sync.Mutex
	windows  map[types.WindowID]*record
	nextID   types.WindowID
	zTop     uint64
	activeID types.WindowID // 0 = none
	viewport types.Viewport
	cascade  int
	drag     *dragState

	cfg      config.ShellConfig
	log      *logging.Logger
	bus      *events.Bus
	renderer render.Renderer
	taskbar  *Taskbar
	metrics  *monitoring.Metrics
}

// NewManager creates a window manager and subscribes it to the pop-out
// detach event so detached windows get closed in the main shell.
func NewManager(log *logging.Logger, bus *events.Bus, renderer render.Renderer, cfg config.ShellConfig) *Manager {
	m := &Manager{
		windows:  make(map[types.WindowID]*record),
		viewport: types.Viewport{Width: 1280, Height: 800},
		cfg:      cfg,
		log:      log.Named("windows"),
		bus:      bus,
		renderer: renderer,
		taskbar:  NewTaskbar(),
	}

	bus.Subscribe(events.WindowPopout, func(p events.Payload) {
		if ev, ok := p.Data.(types.PopoutEvent); ok {
			m.CloseWindow(ev.WindowID)
		}
	})

	return m
}

// WithMetrics attaches a metrics collector.
func (m *Manager) WithMetrics(metrics *monitoring.Metrics) *Manager {
	m.metrics = metrics
	return m
}

// Taskbar returns the taskbar bound to this manager.
func (m *Manager) Taskbar() *Taskbar {
	return m.taskbar
}

// CreateWindow opens a window for appID and activates it. For single
// instance apps an existing non-minimized window is activated instead,
// making launch idempotent. Returns the window id.
func (m *Manager) CreateWindow(appID, title string, opts Options) types.WindowID {
	m.mu.Lock()

	if opts.SingleInstance {
		if w := m.findOpenLocked(appID); w != nil {
			id := w.id
			m.mu.Unlock()
			m.ActivateWindow(id)
			return id
		}
	}

	m.nextID++
	id := m.nextID

	w := &record{
		id:     id,
		appID:  appID,
		title:  title,
		teamID: opts.TeamID,
		icon:   opts.Icon,
		pinned: opts.Pinned,
		geo:    m.initialGeometryLocked(opts),
	}
	m.windows[id] = w

	geo := m.effectiveGeometryLocked(w)
	m.mu.Unlock()

	m.renderer.CreateSurface(id, appID, title, geo)
	m.taskbar.Bind(id, appID, opts.Icon, opts.Pinned)

	if m.metrics != nil {
		m.metrics.WindowsOpen.Inc()
		m.metrics.WindowEvents.WithLabelValues("created").Inc()
	}
	m.bus.Emit(events.WindowCreated, types.WindowEvent{
		WindowID: id, AppID: appID, Title: title, Geometry: geo,
	}, "windows")

	m.ActivateWindow(id)
	return id
}

// CloseWindow marks the window closing, plays the exit animation, and only
// on its completion removes the surface, the (non-pinned) taskbar icon, and
// the record. The transition carries a fallback timeout so a missing
// animation-end signal cannot strand the window.
func (m *Manager) CloseWindow(id types.WindowID) {
	m.mu.Lock()
	w, ok := m.windows[id]
	if !ok || w.closing {
		m.mu.Unlock()
		m.logStale("close", id, ok)
		return
	}
	w.closing = true
	m.mu.Unlock()

	tr := m.renderer.Animate(id, render.EffectClose)
	if tr.Finished() {
		m.finalizeClose(id)
		return
	}
	go func() {
		m.awaitTransition(tr)
		m.finalizeClose(id)
	}()
}

// awaitTransition waits for a transition, bounded by the configured
// transition timeout. Renderers are expected to carry their own fallback;
// this backstop keeps a renderer that lost its completion signal from
// stranding the window anyway.
func (m *Manager) awaitTransition(tr *render.Transition) {
	if m.cfg.TransitionTimeout <= 0 {
		<-tr.Done()
		return
	}
	select {
	case <-tr.Done():
	case <-time.After(m.cfg.TransitionTimeout):
	}
}

func (m *Manager) finalizeClose(id types.WindowID) {
	m.mu.Lock()
	w, ok := m.windows[id]
	if !ok {
		m.mu.Unlock()
		return
	}
	if m.activeID == id {
		m.activeID = 0
	}
	if m.drag != nil && m.drag.id == id {
		m.drag = nil
	}
	delete(m.windows, id)
	appID, title, geo := w.appID, w.title, w.geo
	m.mu.Unlock()

	m.renderer.DestroySurface(id)
	m.taskbar.Unbind(id)

	if m.metrics != nil {
		m.metrics.WindowsOpen.Dec()
		m.metrics.WindowEvents.WithLabelValues("closed").Inc()
	}
	m.bus.Emit(events.WindowClosed, types.WindowEvent{
		WindowID: id, AppID: appID, Title: title, Geometry: geo,
	}, "windows")
}

// MinimizeWindow hides the window toward its taskbar icon.
func (m *Manager) MinimizeWindow(id types.WindowID) {
	m.mu.Lock()
	w, ok := m.windows[id]
	if !ok || w.closing || w.minimized {
		m.mu.Unlock()
		m.logStale("minimize", id, ok)
		return
	}
	w.minimized = true
	wasActive := m.activeID == id
	if wasActive {
		m.activeID = 0
	}
	ev := m.eventLocked(w)
	m.mu.Unlock()

	// The taskbar mirrors the active window; minimizing a background
	// window must not clear another window's indicator.
	if wasActive {
		m.taskbar.SetActive(0)
	}
	tr := m.renderer.Animate(id, render.EffectMinimize)
	if tr.Finished() {
		m.renderer.SetVisible(id, false)
	} else {
		go func() {
			m.awaitTransition(tr)
			m.renderer.SetVisible(id, false)
		}()
	}

	if m.metrics != nil {
		m.metrics.WindowEvents.WithLabelValues("minimized").Inc()
	}
	m.bus.Emit(events.WindowMinimized, ev, "windows")
}

// RestoreWindow brings a minimized window back and re-activates it.
func (m *Manager) RestoreWindow(id types.WindowID) {
	m.mu.Lock()
	w, ok := m.windows[id]
	if !ok || w.closing || !w.minimized {
		m.mu.Unlock()
		m.logStale("restore", id, ok)
		return
	}
	w.minimized = false
	ev := m.eventLocked(w)
	m.mu.Unlock()

	m.renderer.SetVisible(id, true)
	m.renderer.Animate(id, render.EffectRestore)

	if m.metrics != nil {
		m.metrics.WindowEvents.WithLabelValues("restored").Inc()
	}
	m.bus.Emit(events.WindowRestored, ev, "windows")

	m.ActivateWindow(id)
}

// MaximizeWindow snapshots the current geometry and grows the window to the
// full viewport. Activates first; a window cannot be maximized and
// minimized at the same time. No-op on narrow viewports, where windows are
// already full-bleed.
func (m *Manager) MaximizeWindow(id types.WindowID) {
	m.mu.Lock()
	if m.mobileLocked() {
		m.mu.Unlock()
		return
	}
	w, ok := m.windows[id]
	if !ok || w.closing || w.maximized {
		m.mu.Unlock()
		m.logStale("maximize", id, ok)
		return
	}
	m.mu.Unlock()

	m.ActivateWindow(id)

	m.mu.Lock()
	w, ok = m.windows[id]
	if !ok {
		m.mu.Unlock()
		return
	}
	snapshot := w.geo
	w.restoreGeo = &snapshot
	w.maximized = true
	geo := m.effectiveGeometryLocked(w)
	ev := m.eventLocked(w)
	m.mu.Unlock()

	m.renderer.ApplyGeometry(id, geo)

	if m.metrics != nil {
		m.metrics.WindowEvents.WithLabelValues("maximized").Inc()
	}
	m.bus.Emit(events.WindowMaximized, ev, "windows")
}

// RestoreMaximizedWindow returns the window to its pre-maximize geometry,
// byte for byte.
func (m *Manager) RestoreMaximizedWindow(id types.WindowID) {
	m.mu.Lock()
	w, ok := m.windows[id]
	if !ok || w.closing || !w.maximized {
		m.mu.Unlock()
		m.logStale("restore-maximized", id, ok)
		return
	}
	w.maximized = false
	if w.restoreGeo != nil {
		w.geo = *w.restoreGeo
		w.restoreGeo = nil
	}
	geo := m.effectiveGeometryLocked(w)
	ev := m.eventLocked(w)
	m.mu.Unlock()

	m.renderer.ApplyGeometry(id, geo)

	if m.metrics != nil {
		m.metrics.WindowEvents.WithLabelValues("restored").Inc()
	}
	m.bus.Emit(events.WindowRestored, ev, "windows")
}

// ActivateWindow raises the window above every other and marks it active.
// Z-order values come from a strictly increasing counter, so ties cannot
// occur. No-op when the window is already active and not minimized.
func (m *Manager) ActivateWindow(id types.WindowID) {
	m.mu.Lock()
	w, ok := m.windows[id]
	if !ok || w.closing {
		m.mu.Unlock()
		m.logStale("activate", id, ok)
		return
	}
	if m.activeID == id && !w.minimized {
		m.mu.Unlock()
		return
	}

	prev := m.activeID
	m.zTop++
	w.z = m.zTop
	w.minimized = false
	m.activeID = id
	z := w.z
	ev := m.eventLocked(w)
	m.mu.Unlock()

	if prev != 0 && prev != id {
		m.renderer.SetActive(prev, false)
	}
	m.renderer.SetVisible(id, true)
	m.renderer.SetStacking(id, z)
	m.renderer.SetActive(id, true)
	m.taskbar.SetActive(id)

	if m.metrics != nil {
		m.metrics.WindowEvents.WithLabelValues("activated").Inc()
	}
	m.bus.Emit(events.WindowActivated, ev, "windows")
}

// UpdateWindowPosition mutates the window geometry. No-op while maximized:
// position and size are owned by the maximize state, not user input.
func (m *Manager) UpdateWindowPosition(id types.WindowID, geo types.Geometry) {
	m.mu.Lock()
	w, ok := m.windows[id]
	if !ok || w.closing || w.maximized {
		m.mu.Unlock()
		m.logStale("move", id, ok)
		return
	}
	moved := w.geo.X != geo.X || w.geo.Y != geo.Y
	resized := w.geo.Width != geo.Width || w.geo.Height != geo.Height
	w.geo = geo
	applied := m.effectiveGeometryLocked(w)
	ev := m.eventLocked(w)
	m.mu.Unlock()

	m.renderer.ApplyGeometry(id, applied)

	if moved {
		if m.metrics != nil {
			m.metrics.WindowEvents.WithLabelValues("moved").Inc()
		}
		m.bus.Emit(events.WindowMoved, ev, "windows")
	}
	if resized {
		if m.metrics != nil {
			m.metrics.WindowEvents.WithLabelValues("resized").Inc()
		}
		m.bus.Emit(events.WindowResized, ev, "windows")
	}
}

// SetAppState stashes an opaque serialized state blob on the window record.
func (m *Manager) SetAppState(id types.WindowID, state json.RawMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if w, ok := m.windows[id]; ok {
		w.appState = state
	}
}

// AppState returns the stashed state blob for a window.
func (m *Manager) AppState(id types.WindowID) (json.RawMessage, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.windows[id]
	if !ok || w.appState == nil {
		return nil, false
	}
	return w.appState, true
}

// Get returns a snapshot of one window.
func (m *Manager) Get(id types.WindowID) (types.WindowSnapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.windows[id]
	if !ok {
		return types.WindowSnapshot{}, false
	}
	return m.snapshotLocked(w), true
}

// Exists reports whether id refers to an open window.
func (m *Manager) Exists(id types.WindowID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.windows[id]
	return ok && !w.closing
}

// List returns snapshots of all open windows.
func (m *Manager) List() []types.WindowSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]types.WindowSnapshot, 0, len(m.windows))
	for _, w := range m.windows {
		out = append(out, m.snapshotLocked(w))
	}
	return out
}

// Active returns the id of the active window, if any.
func (m *Manager) Active() (types.WindowID, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeID, m.activeID != 0
}

// Stats summarizes the open window set.
func (m *Manager) Stats() types.ShellStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := types.ShellStats{OpenWindows: len(m.windows)}
	for _, w := range m.windows {
		if w.minimized {
			stats.Minimized++
		}
		if w.maximized {
			stats.Maximized++
		}
	}
	if m.activeID != 0 {
		active := m.activeID
		stats.ActiveWindowID = &active
	}
	return stats
}

func (m *Manager) findOpenLocked(appID string) *record {
	for _, w := range m.windows {
		if w.appID == appID && !w.minimized && !w.closing {
			return w
		}
	}
	return nil
}

func (m *Manager) snapshotLocked(w *record) types.WindowSnapshot {
	return types.WindowSnapshot{
		ID:        w.id,
		AppID:     w.appID,
		Title:     w.title,
		TeamID:    w.teamID,
		Geometry:  m.effectiveGeometryLocked(w),
		Minimized: w.minimized,
		Maximized: w.maximized,
		Z:         w.z,
		Active:    m.activeID == w.id,
		Pinned:    w.pinned,
	}
}

func (m *Manager) eventLocked(w *record) types.WindowEvent {
	return types.WindowEvent{
		WindowID: w.id,
		AppID:    w.appID,
		Title:    w.title,
		Geometry: m.effectiveGeometryLocked(w),
	}
}

func (m *Manager) logStale(op string, id types.WindowID, found bool) {
	if !found {
		m.log.Debug("operation on unknown window id",
			zap.String("op", op),
			zap.Uint64("window_id", uint64(id)),
		)
	}
}
