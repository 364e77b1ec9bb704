package windows

import (
	"github.com/glasspane/webdesk/internal/events"
	"github.com/glasspane/webdesk/internal/shared/types"
)

// SetViewport records the desktop size and re-applies the responsive
// policy: crossing the mobile breakpoint forces every open window to (or
// back from) full-bleed geometry.
func (m *Manager) SetViewport(v types.Viewport) {
	m.mu.Lock()
	wasMobile := m.mobileLocked()
	m.viewport = v
	isMobile := m.mobileLocked()

	type applied struct {
		id  types.WindowID
		geo types.Geometry
	}
	var changes []applied
	if wasMobile != isMobile || isMobile {
		for _, w := range m.windows {
			changes = append(changes, applied{w.id, m.effectiveGeometryLocked(w)})
		}
	}
	m.mu.Unlock()

	for _, c := range changes {
		m.renderer.ApplyGeometry(c.id, c.geo)
	}
	m.bus.Emit(events.ShellResized, v, "windows")
}

// Viewport returns the current desktop size.
func (m *Manager) Viewport() types.Viewport {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.viewport
}

// Mobile reports whether the viewport is below the mobile breakpoint.
func (m *Manager) Mobile() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mobileLocked()
}

func (m *Manager) mobileLocked() bool {
	return m.viewport.Width < m.cfg.MobileBreakpoint
}

// initialGeometryLocked computes where a new window goes: full-bleed on
// narrow viewports, explicit or centered when requested, cascading
// otherwise.
func (m *Manager) initialGeometryLocked(opts Options) types.Geometry {
	width := opts.Width
	if width <= 0 {
		width = m.cfg.DefaultWidth
	}
	height := opts.Height
	if height <= 0 {
		height = m.cfg.DefaultHeight
	}

	if opts.X != nil && opts.Y != nil {
		return types.Geometry{X: *opts.X, Y: *opts.Y, Width: width, Height: height}
	}

	if opts.Centered {
		x := (m.viewport.Width - width) / 2
		y := (m.viewport.Height - height) / 2
		if x < 0 {
			x = 0
		}
		if y < 0 {
			y = 0
		}
		return types.Geometry{X: x, Y: y, Width: width, Height: height}
	}

	// Cascade, wrapping before windows walk off the desktop.
	step := m.cfg.CascadeStep
	offset := step * (m.cascade % 10)
	m.cascade++
	return types.Geometry{X: step + offset, Y: step + offset, Width: width, Height: height}
}

// effectiveGeometryLocked is the geometry actually shown: full viewport
// when maximized or on narrow viewports, the record's own geometry
// otherwise. The record geometry is preserved so crossing back over the
// breakpoint restores desktop placement.
func (m *Manager) effectiveGeometryLocked(w *record) types.Geometry {
	if w.maximized || m.mobileLocked() {
		return types.Geometry{X: 0, Y: 0, Width: m.viewport.Width, Height: m.viewport.Height}
	}
	return w.geo
}
