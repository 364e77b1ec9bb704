package windows

import (
	"sync"

	"github.com/glasspane/webdesk/internal/shared/types"
)

// Taskbar tracks the icons bound to open windows plus pinned app icons that
// survive window closure. At most one icon is marked active at a time,
// mirroring the active window.
type Taskbar struct {
	mu    sync.Mutex
	icons []*types.TaskbarIcon
}

// NewTaskbar creates an empty taskbar.
func NewTaskbar() *Taskbar {
	return &Taskbar{}
}

// Pin adds a persistent icon for an app that may not be running yet.
// Pinning an app that already has an icon marks that icon pinned instead.
func (t *Taskbar) Pin(appID, icon string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, ic := range t.icons {
		if ic.AppID == appID {
			ic.Pinned = true
			return
		}
	}
	t.icons = append(t.icons, &types.TaskbarIcon{AppID: appID, Icon: icon, Pinned: true})
}

// Bind attaches a window to its taskbar icon, reusing a pinned icon for the
// same app when one exists.
func (t *Taskbar) Bind(windowID types.WindowID, appID, icon string, pinned bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, ic := range t.icons {
		if ic.AppID == appID && ic.WindowID == 0 {
			ic.WindowID = windowID
			ic.Pinned = ic.Pinned || pinned
			if icon != "" {
				ic.Icon = icon
			}
			return
		}
	}
	t.icons = append(t.icons, &types.TaskbarIcon{
		WindowID: windowID,
		AppID:    appID,
		Icon:     icon,
		Pinned:   pinned,
	})
}

// Unbind removes the icon for a closed window. Pinned icons stay on the
// taskbar with the window reference cleared.
func (t *Taskbar) Unbind(windowID types.WindowID) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i, ic := range t.icons {
		if ic.WindowID != windowID {
			continue
		}
		if ic.Pinned {
			ic.WindowID = 0
			ic.Active = false
			return
		}
		t.icons = append(t.icons[:i:i], t.icons[i+1:]...)
		return
	}
}

// SetActive marks the icon bound to windowID active and every other icon
// inactive. Zero clears the indicator entirely.
func (t *Taskbar) SetActive(windowID types.WindowID) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, ic := range t.icons {
		ic.Active = ic.WindowID != 0 && ic.WindowID == windowID
	}
}

// IconFor returns the icon bound to windowID.
func (t *Taskbar) IconFor(windowID types.WindowID) (types.TaskbarIcon, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, ic := range t.icons {
		if ic.WindowID == windowID {
			return *ic, true
		}
	}
	return types.TaskbarIcon{}, false
}

// Icons returns a snapshot of all icons in display order.
func (t *Taskbar) Icons() []types.TaskbarIcon {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]types.TaskbarIcon, len(t.icons))
	for i, ic := range t.icons {
		out[i] = *ic
	}
	return out
}
