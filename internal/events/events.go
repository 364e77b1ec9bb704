// Package events implements the in-process publish/subscribe hub the shell
// components communicate through. Dispatch is synchronous: Emit invokes
// every listener for the event type, in registration order, before
// returning. A panicking listener is isolated and logged; it cannot prevent
// delivery to the remaining listeners.
package events

import (
	"sort"
	"time"
)

// Type names an event in the closed shell vocabulary. Adding a name here is
// a contract change: the table in Known must be updated alongside.
type Type string

const (
	// Window lifecycle
	WindowCreated   Type = "window.created"
	WindowClosed    Type = "window.closed"
	WindowMinimized Type = "window.minimized"
	WindowMaximized Type = "window.maximized"
	WindowRestored  Type = "window.restored"
	WindowMoved     Type = "window.moved"
	WindowResized   Type = "window.resized"
	WindowActivated Type = "window.activated"
	WindowPopout    Type = "window.popout"

	// App lifecycle
	AppRegistered   Type = "app.registered"
	AppUnregistered Type = "app.unregistered"
	AppInstalled    Type = "app.installed"
	AppUninstalled  Type = "app.uninstalled"
	AppLaunched     Type = "app.launched"
	// AppLaunchRequested asks the integrator to launch an app on behalf of
	// a component that must not call the registry directly (pop-out restore).
	AppLaunchRequested Type = "app.launch_requested"

	// Shell lifecycle
	ShellLogout  Type = "shell.logout"
	ShellResized Type = "shell.resized"

	// Session lifecycle
	SessionSaved    Type = "session.saved"
	SessionRestored Type = "session.restored"
)

var known = map[Type]struct{}{
	WindowCreated: {}, WindowClosed: {}, WindowMinimized: {}, WindowMaximized: {},
	WindowRestored: {}, WindowMoved: {}, WindowResized: {}, WindowActivated: {},
	WindowPopout: {},
	AppRegistered: {}, AppUnregistered: {}, AppInstalled: {}, AppUninstalled: {},
	AppLaunched: {}, AppLaunchRequested: {},
	ShellLogout: {}, ShellResized: {},
	SessionSaved: {}, SessionRestored: {},
}

// Known reports whether t belongs to the shell event vocabulary.
func (t Type) Known() bool {
	_, ok := known[t]
	return ok
}

// Types returns the full event vocabulary, sorted by name.
func Types() []Type {
	out := make([]Type, 0, len(known))
	for t := range known {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (t Type) String() string { return string(t) }

// Payload is a dispatched event. Once emitted it is immutable; the history
// ring holds the only surviving copy after delivery.
type Payload struct {
	Type      Type      `json:"type"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source,omitempty"`
}
