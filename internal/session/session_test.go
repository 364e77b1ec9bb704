package session

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glasspane/webdesk/internal/config"
	"github.com/glasspane/webdesk/internal/events"
	"github.com/glasspane/webdesk/internal/logging"
	"github.com/glasspane/webdesk/internal/render"
	"github.com/glasspane/webdesk/internal/shared/types"
	"github.com/glasspane/webdesk/internal/windows"
)

// busLauncher opens a plain window for every launch, like the registry
// would after resolving the app.
type busLauncher struct {
	wm     *windows.Manager
	failed map[string]bool
}

func (l *busLauncher) LaunchApp(appID, teamID string) (types.WindowID, bool) {
	if l.failed[appID] {
		return 0, false
	}
	id := l.wm.CreateWindow(appID, appID, windows.Options{TeamID: teamID})
	return id, true
}

func newFixture(t *testing.T) (*Manager, *windows.Manager, *busLauncher) {
	t.Helper()
	log := logging.NewNop()
	bus := events.NewBus(log)
	wm := windows.NewManager(log, bus, render.NewHeadless(), config.Default().Shell)

	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	launcher := &busLauncher{wm: wm, failed: map[string]bool{}}
	return NewManager(store, wm, launcher, bus, log), wm, launcher
}

func TestSaveAndRestoreRoundTrip(t *testing.T) {
	mgr, wm, _ := newFixture(t)

	x, y := 40, 60
	a := wm.CreateWindow("mail", "Mail", windows.Options{X: &x, Y: &y, Width: 500, Height: 400})
	b := wm.CreateWindow("files", "Files", windows.Options{})
	wm.MinimizeWindow(b)

	sessionID, err := mgr.Save("work", "")
	require.NoError(t, err)
	require.NotEmpty(t, sessionID)

	snap, err := mgr.Get(sessionID)
	require.NoError(t, err)
	assert.Len(t, snap.Windows, 2)

	// Fresh desktop.
	wm.CloseWindow(a)
	wm.CloseWindow(b)
	require.Empty(t, wm.List())

	restored, err := mgr.Restore(sessionID)
	require.NoError(t, err)
	assert.Equal(t, 2, restored)

	byApp := map[string]types.WindowSnapshot{}
	for _, w := range wm.List() {
		byApp[w.AppID] = w
	}
	require.Contains(t, byApp, "mail")
	require.Contains(t, byApp, "files")
	assert.Equal(t, types.Geometry{X: 40, Y: 60, Width: 500, Height: 400}, byApp["mail"].Geometry)
	assert.True(t, byApp["files"].Minimized)
}

func TestRestoreSkipsFailedLaunches(t *testing.T) {
	mgr, wm, launcher := newFixture(t)

	wm.CreateWindow("mail", "Mail", windows.Options{})
	wm.CreateWindow("ghost", "Ghost", windows.Options{})
	sessionID, err := mgr.Save("mixed", "")
	require.NoError(t, err)

	for _, w := range wm.List() {
		wm.CloseWindow(w.ID)
	}
	launcher.failed["ghost"] = true

	restored, err := mgr.Restore(sessionID)
	require.NoError(t, err)
	assert.Equal(t, 1, restored)
	require.Len(t, wm.List(), 1)
	assert.Equal(t, "mail", wm.List()[0].AppID)
}

func TestRestoreEmitsSessionEvent(t *testing.T) {
	log := logging.NewNop()
	bus := events.NewBus(log)
	wm := windows.NewManager(log, bus, render.NewHeadless(), config.Default().Shell)
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	mgr := NewManager(store, wm, &busLauncher{wm: wm, failed: map[string]bool{}}, bus, log)

	var got []types.SessionEvent
	bus.Subscribe(events.SessionRestored, func(p events.Payload) {
		if ev, ok := p.Data.(types.SessionEvent); ok {
			got = append(got, ev)
		}
	})

	wm.CreateWindow("mail", "Mail", windows.Options{})
	sessionID, err := mgr.Save("one", "")
	require.NoError(t, err)

	_, err = mgr.Restore(sessionID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, sessionID, got[0].SessionID)
	assert.Equal(t, 1, got[0].Windows)
}

func TestListNewestFirstAndDelete(t *testing.T) {
	mgr, wm, _ := newFixture(t)
	wm.CreateWindow("mail", "Mail", windows.Options{})

	first, err := mgr.Save("first", "")
	require.NoError(t, err)
	second, err := mgr.Save("second", "")
	require.NoError(t, err)

	metas, err := mgr.List()
	require.NoError(t, err)
	require.Len(t, metas, 2)

	require.NoError(t, mgr.Delete(first))
	metas, err = mgr.List()
	require.NoError(t, err)
	require.Len(t, metas, 1)
	assert.Equal(t, second, metas[0].ID)

	_, err = mgr.Get(first)
	assert.Error(t, err)
}

func TestListSkipsCorruptFiles(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	require.NoError(t, err)

	require.NoError(t, store.Save(&Snapshot{ID: "good", Name: "good"}))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "junk"+fileExt), []byte("not gzip"), 0o644))

	metas, err := store.List()
	require.NoError(t, err)
	require.Len(t, metas, 1)
	assert.Equal(t, "good", metas[0].ID)
}
