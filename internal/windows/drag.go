package windows

import (
	"github.com/glasspane/webdesk/internal/shared/types"
)

// StartDrag begins dragging a window from a pointer-down on its header.
// Dragging activates the window first. Disabled on narrow viewports and
// while maximized.
func (m *Manager) StartDrag(id types.WindowID, pointerX, pointerY int) {
	m.mu.Lock()
	w, ok := m.windows[id]
	if !ok || w.closing || w.maximized || m.mobileLocked() {
		m.mu.Unlock()
		m.logStale("drag", id, ok)
		return
	}
	m.drag = &dragState{
		id:       id,
		pointerX: pointerX,
		pointerY: pointerY,
		origin:   w.geo,
	}
	m.mu.Unlock()

	m.ActivateWindow(id)
}

// DragTo moves the dragged window by the pointer delta from the drag
// origin. Vertical position is clamped to non-negative so the header cannot
// leave the desktop. No-op when no drag is in progress.
func (m *Manager) DragTo(pointerX, pointerY int) {
	m.mu.Lock()
	if m.drag == nil {
		m.mu.Unlock()
		return
	}
	d := m.drag
	geo := d.origin
	geo.X = d.origin.X + (pointerX - d.pointerX)
	geo.Y = d.origin.Y + (pointerY - d.pointerY)
	if geo.Y < 0 {
		geo.Y = 0
	}
	id := d.id
	m.mu.Unlock()

	m.UpdateWindowPosition(id, geo)
}

// EndDrag finishes the drag on pointer-up.
func (m *Manager) EndDrag() {
	m.mu.Lock()
	m.drag = nil
	m.mu.Unlock()
}

// Dragging reports whether a drag is in progress and for which window.
func (m *Manager) Dragging() (types.WindowID, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.drag == nil {
		return 0, false
	}
	return m.drag.id, true
}
