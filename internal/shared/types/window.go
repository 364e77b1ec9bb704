package types

// WindowID identifies an open window. IDs are allocated from a counter
// scoped to the window manager's lifetime and are never reused within it.
// Zero is never a valid id.
type WindowID uint64

// Geometry is the numeric position and size of a window, in CSS pixels
// relative to the desktop viewport. The rendering adapter is responsible
// for reflecting it to the display layer.
type Geometry struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Viewport is the size of the desktop area hosting the windows.
type Viewport struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// WindowSnapshot is a copy of a window's state, safe to hand to callers.
type WindowSnapshot struct {
	ID        WindowID `json:"id"`
	AppID     string   `json:"app_id"`
	Title     string   `json:"title"`
	TeamID    string   `json:"team_id,omitempty"`
	Geometry  Geometry `json:"geometry"`
	Minimized bool     `json:"minimized"`
	Maximized bool     `json:"maximized"`
	Z         uint64   `json:"z"`
	Active    bool     `json:"active"`
	Pinned    bool     `json:"pinned"`
}

// TaskbarIcon is the persistent handle representing a window (or a pinned,
// not-yet-running app) on the taskbar.
type TaskbarIcon struct {
	WindowID WindowID `json:"window_id,omitempty"`
	AppID    string   `json:"app_id"`
	Icon     string   `json:"icon"`
	Pinned   bool     `json:"pinned"`
	Active   bool     `json:"active"`
}
