// Package builtin provides the stock applications shipped with the shell:
// thin implementations of the application contract that open windows
// through the window manager. Their business logic lives in the hosting
// page; the kernel only manages their lifecycle.
package builtin

import (
	"context"
	"sync"

	"github.com/glasspane/webdesk/internal/apps"
	"github.com/glasspane/webdesk/internal/shared/types"
	"github.com/glasspane/webdesk/internal/windows"
)

// definition describes one stock app and its default window.
type definition struct {
	meta types.AppMeta
	opts windows.Options
}

// shellApp is the common contract implementation for stock apps.
type shellApp struct {
	def definition
	wm  *windows.Manager

	mu       sync.Mutex
	windowID types.WindowID
}

func (a *shellApp) Meta() types.AppMeta { return a.def.meta }

func (a *shellApp) Launch(teamID string) (types.WindowID, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.windowID != 0 && a.wm.Exists(a.windowID) {
		a.wm.ActivateWindow(a.windowID)
		return a.windowID, nil
	}

	opts := a.def.opts
	opts.TeamID = teamID
	opts.Icon = a.def.meta.Icon
	opts.Pinned = a.def.meta.Pinned
	opts.SingleInstance = a.def.meta.Singleton

	a.windowID = a.wm.CreateWindow(a.def.meta.ID, a.def.meta.Name, opts)
	return a.windowID, nil
}

func (a *shellApp) Mounted() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.windowID != 0 && a.wm.Exists(a.windowID)
}

func (a *shellApp) Close() error {
	a.mu.Lock()
	id := a.windowID
	a.windowID = 0
	a.mu.Unlock()

	if id != 0 {
		a.wm.CloseWindow(id)
	}
	return nil
}

func definitions() []definition {
	return []definition{
		{
			meta: types.AppMeta{ID: "calculator", Name: "Calculator", Icon: "calculator.svg",
				Category: "utilities", Singleton: true, Installed: true},
			opts: windows.Options{Width: 320, Height: 480},
		},
		{
			meta: types.AppMeta{ID: "files", Name: "Files", Icon: "files.svg",
				Category: "system", System: true, Installed: true, Pinned: true},
			opts: windows.Options{Width: 860, Height: 560},
		},
		{
			meta: types.AppMeta{ID: "settings", Name: "Settings", Icon: "settings.svg",
				Category: "system", Singleton: true, System: true, Installed: true},
			opts: windows.Options{Width: 700, Height: 520, Centered: true},
		},
		{
			meta: types.AppMeta{ID: "contacts", Name: "Contacts", Icon: "contacts.svg",
				Category: "productivity", Installed: true},
			opts: windows.Options{Width: 760, Height: 540},
		},
		{
			meta: types.AppMeta{ID: "orders", Name: "Orders", Icon: "orders.svg",
				Category: "productivity", Installed: true},
			opts: windows.Options{Width: 900, Height: 600},
		},
		{
			meta: types.AppMeta{ID: "wallet", Name: "Wallet", Icon: "wallet.svg",
				Category: "finance", Singleton: true, Installed: true},
			opts: windows.Options{Width: 480, Height: 640},
		},
		{
			meta: types.AppMeta{ID: "mail", Name: "Mail", Icon: "mail.svg",
				Category: "productivity", Installed: true, Pinned: true},
			opts: windows.Options{Width: 960, Height: 640},
		},
	}
}

// Table builds the loader's module table for the stock apps. Each resolver
// is immediate, since stock modules ship with the kernel, but still goes
// through the loader so callers get uniform caching and de-duplication.
func Table(wm *windows.Manager) apps.ModuleTable {
	table := make(apps.ModuleTable)
	for _, def := range definitions() {
		def := def
		table[def.meta.ID] = func(ctx context.Context) (apps.Constructor, error) {
			return func() apps.App {
				return &shellApp{def: def, wm: wm}
			}, nil
		}
	}
	return table
}

// CriticalApps lists the subset preloaded at shell start.
func CriticalApps() []string {
	return []string{"files", "settings", "mail"}
}
