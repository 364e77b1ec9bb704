package apps

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glasspane/webdesk/internal/events"
	"github.com/glasspane/webdesk/internal/logging"
	"github.com/glasspane/webdesk/internal/shared/types"
)

// fakeApp implements the application contract for registry tests.
type fakeApp struct {
	meta      types.AppMeta
	mounted   bool
	launchErr error
	windowID  types.WindowID
	closed    int
}

func (f *fakeApp) Meta() types.AppMeta { return f.meta }

func (f *fakeApp) Launch(teamID string) (types.WindowID, error) {
	if f.launchErr != nil {
		return 0, f.launchErr
	}
	f.mounted = true
	return f.windowID, nil
}

func (f *fakeApp) Mounted() bool { return f.mounted }

func (f *fakeApp) Close() error {
	f.mounted = false
	f.closed++
	return nil
}

func newTestRegistry() (*Registry, *events.Bus) {
	log := logging.NewNop()
	bus := events.NewBus(log)
	return NewRegistry(log, bus), bus
}

func metaFor(id, category string) types.AppMeta {
	return types.AppMeta{ID: id, Name: id, Category: category, Installed: true}
}

func TestRegisterAndGet(t *testing.T) {
	r, _ := newTestRegistry()

	ok := r.Register("notes", func() App {
		return &fakeApp{meta: metaFor("notes", "productivity"), windowID: 1}
	}, RegisterOptions{})
	require.True(t, ok)

	meta, found := r.Get("notes")
	require.True(t, found)
	assert.Equal(t, "productivity", meta.Category)
	assert.Equal(t, []string{"productivity"}, r.Categories())
}

func TestRegisterReplacementWins(t *testing.T) {
	r, _ := newTestRegistry()

	r.Register("notes", func() App {
		return &fakeApp{meta: metaFor("notes", "productivity"), windowID: 1}
	}, RegisterOptions{})
	r.Register("notes", func() App {
		return &fakeApp{meta: metaFor("notes", "utilities"), windowID: 2}
	}, RegisterOptions{})

	meta, found := r.Get("notes")
	require.True(t, found)
	assert.Equal(t, "utilities", meta.Category)

	// The category index followed the replacement.
	assert.Empty(t, r.ByCategory("productivity"))
	assert.Len(t, r.ByCategory("utilities"), 1)
}

func TestRegisterDisposesMountedProbe(t *testing.T) {
	r, _ := newTestRegistry()

	probe := &fakeApp{meta: metaFor("probe", "utilities"), mounted: true}
	r.Register("probe", func() App { return probe }, RegisterOptions{})

	assert.Equal(t, 1, probe.closed)
}

func TestSingletonInstanceReuse(t *testing.T) {
	r, _ := newTestRegistry()

	constructed := 0
	r.Register("wallet", func() App {
		constructed++
		return &fakeApp{meta: metaFor("wallet", "finance"), windowID: types.WindowID(constructed)}
	}, RegisterOptions{Singleton: true})
	constructed = 0 // ignore the registration probe

	w1, ok := r.LaunchApp("wallet", "")
	require.True(t, ok)
	w2, ok := r.LaunchApp("wallet", "")
	require.True(t, ok)

	assert.Equal(t, w1, w2)
	assert.Equal(t, 1, constructed, "singleton must construct once while mounted")
}

func TestSingletonReconstructedAfterClose(t *testing.T) {
	r, _ := newTestRegistry()

	constructed := 0
	r.Register("wallet", func() App {
		constructed++
		return &fakeApp{meta: metaFor("wallet", "finance"), windowID: types.WindowID(constructed)}
	}, RegisterOptions{Singleton: true})
	constructed = 0

	r.LaunchApp("wallet", "")
	r.CloseApp("wallet")
	r.LaunchApp("wallet", "")

	assert.Equal(t, 2, constructed)
}

func TestMultiInstanceConstructsEachTime(t *testing.T) {
	r, _ := newTestRegistry()

	constructed := 0
	r.Register("notes", func() App {
		constructed++
		return &fakeApp{meta: metaFor("notes", "productivity"), windowID: types.WindowID(constructed)}
	}, RegisterOptions{})
	constructed = 0

	r.LaunchApp("notes", "")
	r.LaunchApp("notes", "")
	assert.Equal(t, 2, constructed)
}

func TestLaunchUnregisteredReturnsFalse(t *testing.T) {
	r, _ := newTestRegistry()

	id, ok := r.LaunchApp("ghost", "")
	assert.False(t, ok)
	assert.Zero(t, id)
}

func TestLaunchFailureIsSwallowed(t *testing.T) {
	r, _ := newTestRegistry()

	r.Register("broken", func() App {
		return &fakeApp{meta: metaFor("broken", "utilities"), launchErr: errors.New("boom")}
	}, RegisterOptions{})

	assert.NotPanics(t, func() {
		_, ok := r.LaunchApp("broken", "")
		assert.False(t, ok)
	})
}

func TestUnregisterClosesRunningInstance(t *testing.T) {
	r, _ := newTestRegistry()

	instance := &fakeApp{meta: metaFor("wallet", "finance"), windowID: 7}
	r.Register("wallet", func() App { return instance }, RegisterOptions{Singleton: true})
	r.LaunchApp("wallet", "")
	require.True(t, instance.Mounted())

	r.Unregister("wallet")

	assert.False(t, instance.Mounted())
	_, found := r.Get("wallet")
	assert.False(t, found)
	assert.Empty(t, r.Categories())
}

func TestUninstallRefusesSystemApps(t *testing.T) {
	r, _ := newTestRegistry()

	meta := metaFor("core", "system")
	meta.System = true
	r.Register("core", func() App { return &fakeApp{meta: meta} }, RegisterOptions{})

	assert.False(t, r.Uninstall("core"))
	assert.True(t, r.IsInstalled("core"))
}

func TestUninstallClosesInstanceFirst(t *testing.T) {
	r, bus := newTestRegistry()

	var uninstalled bool
	bus.Subscribe(events.AppUninstalled, func(events.Payload) { uninstalled = true })

	instance := &fakeApp{meta: metaFor("notes", "productivity"), windowID: 3}
	r.Register("notes", func() App { return instance }, RegisterOptions{Singleton: true})
	r.LaunchApp("notes", "")

	require.True(t, r.Uninstall("notes"))
	assert.False(t, instance.Mounted())
	assert.False(t, r.IsInstalled("notes"))
	assert.True(t, uninstalled)

	// Reinstall toggles the flag back.
	require.True(t, r.Install("notes"))
	assert.True(t, r.IsInstalled("notes"))
}

func TestSearch(t *testing.T) {
	r, _ := newTestRegistry()

	r.Register("calculator", func() App {
		return &fakeApp{meta: types.AppMeta{ID: "calculator", Name: "Calculator", Category: "utilities"}}
	}, RegisterOptions{})
	r.Register("calendar", func() App {
		return &fakeApp{meta: types.AppMeta{ID: "calendar", Name: "Calendar", Category: "productivity"}}
	}, RegisterOptions{})

	hits := r.Search("cal")
	assert.Len(t, hits, 2)

	hits = r.Search("CALC")
	require.Len(t, hits, 1)
	assert.Equal(t, "calculator", hits[0].ID)

	assert.Empty(t, r.Search(""))
}

func TestStats(t *testing.T) {
	r, _ := newTestRegistry()

	r.Register("a", func() App { return &fakeApp{meta: metaFor("a", "x"), windowID: 1} },
		RegisterOptions{Singleton: true})
	r.Register("b", func() App { return &fakeApp{meta: metaFor("b", "x"), windowID: 2} },
		RegisterOptions{})
	r.LaunchApp("a", "")

	stats := r.Stats()
	assert.Equal(t, 2, stats.TotalApps)
	assert.Equal(t, 2, stats.Installed)
	assert.Equal(t, 1, stats.Running)
	assert.Equal(t, 2, stats.Categories["x"])
}
