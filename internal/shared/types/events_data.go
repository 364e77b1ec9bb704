package types

// WindowEvent is the payload carried by window lifecycle events.
type WindowEvent struct {
	WindowID WindowID `json:"window_id"`
	AppID    string   `json:"app_id"`
	Title    string   `json:"title"`
	Geometry Geometry `json:"geometry"`
}

// PopoutEvent is the payload carried by a window detach. The icon and title
// are captured before the managed window is torn down.
type PopoutEvent struct {
	WindowID WindowID `json:"window_id"`
	AppID    string   `json:"app_id"`
	Title    string   `json:"title"`
	Icon     string   `json:"icon"`
	HandleID string   `json:"handle_id"`
}

// LaunchRequest asks the integrator to launch an app in the main shell.
type LaunchRequest struct {
	AppID  string `json:"app_id"`
	TeamID string `json:"team_id,omitempty"`
	Title  string `json:"title,omitempty"`
	Icon   string `json:"icon,omitempty"`
}

// AppEvent is the payload carried by app lifecycle events.
type AppEvent struct {
	AppID    string    `json:"app_id"`
	WindowID *WindowID `json:"window_id,omitempty"`
}

// SessionEvent is the payload carried by session lifecycle events.
type SessionEvent struct {
	SessionID string `json:"session_id"`
	Name      string `json:"name"`
	Windows   int    `json:"windows"`
}
