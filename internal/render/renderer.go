// Package render abstracts the display layer behind the window manager.
//
// The kernel owns window state as numeric geometry; a Renderer reflects that
// state onto whatever actually draws the windows (the hosting page, in
// production). Destructive operations are gated on a Transition so visual
// animations can complete before state is torn down.
package render

import (
	"sync"
	"time"

	"github.com/glasspane/webdesk/internal/shared/types"
)

// Effect names a window animation driven by the display layer.
type Effect string

const (
	EffectOpen     Effect = "open"
	EffectClose    Effect = "close"
	EffectMinimize Effect = "minimize"
	EffectRestore  Effect = "restore"
)

// Renderer reflects window state to the display layer. Implementations must
// tolerate ids they have never seen: the manager is defensive about stale
// ids and the renderer has to be as well.
type Renderer interface {
	// CreateSurface materializes the visual element for a new window.
	CreateSurface(id types.WindowID, appID, title string, geo types.Geometry)
	// ApplyGeometry reflects a position/size change.
	ApplyGeometry(id types.WindowID, geo types.Geometry)
	// SetVisible shows or hides the surface (minimize/restore).
	SetVisible(id types.WindowID, visible bool)
	// SetActive toggles the focused visual treatment.
	SetActive(id types.WindowID, active bool)
	// SetStacking reflects a z-order change.
	SetStacking(id types.WindowID, z uint64)
	// Animate starts the named effect and returns a Transition that the
	// display layer completes when the animation ends. The returned
	// Transition must already carry a fallback timeout.
	Animate(id types.WindowID, effect Effect) *Transition
	// DestroySurface removes the visual element.
	DestroySurface(id types.WindowID)
}

// Transition is a one-shot completion signal for a visual effect, with a
// mandatory timeout fallback so a missing animation-end signal cannot
// strand a window in a transitional state.
type Transition struct {
	done  chan struct{}
	once  sync.Once
	timer *time.Timer
}

// NewTransition creates a transition that self-completes after timeout if
// Complete is never called.
func NewTransition(timeout time.Duration) *Transition {
	t := &Transition{done: make(chan struct{})}
	t.timer = time.AfterFunc(timeout, t.Complete)
	return t
}

// CompletedTransition returns a transition that is already done. Used by
// renderers that animate nothing.
func CompletedTransition() *Transition {
	t := &Transition{done: make(chan struct{})}
	t.Complete()
	return t
}

// Complete marks the transition finished. Safe to call multiple times.
func (t *Transition) Complete() {
	t.once.Do(func() {
		if t.timer != nil {
			t.timer.Stop()
		}
		close(t.done)
	})
}

// Done returns a channel closed when the transition has finished.
func (t *Transition) Done() <-chan struct{} {
	return t.done
}

// Finished reports whether the transition already completed.
func (t *Transition) Finished() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}
