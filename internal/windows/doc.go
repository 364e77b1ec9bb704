// Package windows implements the window manager: the open-window
// collection, the minimize/maximize/restore state machine, z-ordering,
// taskbar icon binding, dragging, and geometry.
//
// The manager owns the window map exclusively; other components observe it
// through lifecycle events on the bus or through snapshot queries.
// Operations on unknown window ids are logged no-ops, never errors: a
// caller holding a stale id after a close must not be able to disturb
// live windows.
package windows
