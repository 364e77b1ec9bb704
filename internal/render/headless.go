package render

import (
	"sync"

	"github.com/glasspane/webdesk/internal/shared/types"
)

// Headless is a renderer with no display attached. It records surface state
// for inspection and completes every animation immediately, which keeps the
// window manager fully synchronous. Used by tests and by the host server,
// where the real drawing happens in the page on the other side of the
// WebSocket.
type Headless struct {
	mu       sync.Mutex
	surfaces map[types.WindowID]*HeadlessSurface
}

// HeadlessSurface is the recorded state of one window surface.
type HeadlessSurface struct {
	AppID    string
	Title    string
	Geometry types.Geometry
	Visible  bool
	Active   bool
	Z        uint64
}

// NewHeadless creates a headless renderer.
func NewHeadless() *Headless {
	return &Headless{surfaces: make(map[types.WindowID]*HeadlessSurface)}
}

func (h *Headless) CreateSurface(id types.WindowID, appID, title string, geo types.Geometry) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.surfaces[id] = &HeadlessSurface{AppID: appID, Title: title, Geometry: geo, Visible: true}
}

func (h *Headless) ApplyGeometry(id types.WindowID, geo types.Geometry) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if s, ok := h.surfaces[id]; ok {
		s.Geometry = geo
	}
}

func (h *Headless) SetVisible(id types.WindowID, visible bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if s, ok := h.surfaces[id]; ok {
		s.Visible = visible
	}
}

func (h *Headless) SetActive(id types.WindowID, active bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if s, ok := h.surfaces[id]; ok {
		s.Active = active
	}
}

func (h *Headless) SetStacking(id types.WindowID, z uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if s, ok := h.surfaces[id]; ok {
		s.Z = z
	}
}

func (h *Headless) Animate(id types.WindowID, effect Effect) *Transition {
	return CompletedTransition()
}

func (h *Headless) DestroySurface(id types.WindowID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.surfaces, id)
}

// Surface returns the recorded state for id, if present.
func (h *Headless) Surface(id types.WindowID) (HeadlessSurface, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.surfaces[id]
	if !ok {
		return HeadlessSurface{}, false
	}
	return *s, true
}

// SurfaceCount reports how many surfaces exist.
func (h *Headless) SurfaceCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.surfaces)
}
