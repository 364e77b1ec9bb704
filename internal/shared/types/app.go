package types

// AppMeta is the static descriptive metadata every loadable application
// exposes. The kernel never inspects application internals beyond this and
// the application contract.
type AppMeta struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Icon      string `json:"icon"`
	Category  string `json:"category"`
	Singleton bool   `json:"singleton"`
	System    bool   `json:"system"`
	Installed bool   `json:"installed"`
	Pinned    bool   `json:"pinned"`
}

// RegistryStats summarizes the app registry for the host surface.
type RegistryStats struct {
	TotalApps  int            `json:"total_apps"`
	Installed  int            `json:"installed"`
	Running    int            `json:"running"`
	Categories map[string]int `json:"categories"`
}

// ShellStats summarizes the window manager for the host surface.
type ShellStats struct {
	OpenWindows    int       `json:"open_windows"`
	Minimized      int       `json:"minimized"`
	Maximized      int       `json:"maximized"`
	ActiveWindowID *WindowID `json:"active_window_id,omitempty"`
}
