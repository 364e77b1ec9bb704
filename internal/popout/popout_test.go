package popout

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glasspane/webdesk/internal/config"
	"github.com/glasspane/webdesk/internal/events"
	"github.com/glasspane/webdesk/internal/logging"
	"github.com/glasspane/webdesk/internal/render"
	"github.com/glasspane/webdesk/internal/shared/types"
	"github.com/glasspane/webdesk/internal/windows"
)

type fakeHandle struct {
	closed atomic.Bool
}

func (h *fakeHandle) Closed() bool { return h.closed.Load() }

type fakeOpener struct {
	handle *fakeHandle
	err    error
	opened []OpenSpec
}

func (o *fakeOpener) Open(spec OpenSpec) (Handle, error) {
	if o.err != nil {
		return nil, o.err
	}
	o.opened = append(o.opened, spec)
	return o.handle, nil
}

func newFixture(t *testing.T, opener *fakeOpener) (*Synchronizer, *windows.Manager, *events.Bus) {
	t.Helper()
	log := logging.NewNop()
	bus := events.NewBus(log)
	wm := windows.NewManager(log, bus, render.NewHeadless(), config.Default().Shell)

	cfg := config.PopoutConfig{PollInterval: 10 * time.Millisecond, RestoreOnClose: true}
	s := NewSynchronizer(log, bus, opener, wm, cfg)
	t.Cleanup(s.Close)
	return s, wm, bus
}

func TestPopoutClosesManagedWindow(t *testing.T) {
	opener := &fakeOpener{handle: &fakeHandle{}}
	s, wm, _ := newFixture(t, opener)

	id := wm.CreateWindow("mail", "Mail", windows.Options{Icon: "mail.svg"})

	require.True(t, s.PopoutWindow(id))

	// The detach event made the window manager close the original.
	assert.Empty(t, wm.List())
	assert.Equal(t, 1, s.ActivePopouts())

	require.Len(t, opener.opened, 1)
	assert.Equal(t, "mail", opener.opened[0].AppID)
	assert.Equal(t, "mail.svg", opener.opened[0].Icon)
}

func TestPopoutRestoreOnClose(t *testing.T) {
	handle := &fakeHandle{}
	opener := &fakeOpener{handle: handle}
	s, wm, bus := newFixture(t, opener)

	launchReq := make(chan types.LaunchRequest, 1)
	bus.Subscribe(events.AppLaunchRequested, func(p events.Payload) {
		if req, ok := p.Data.(types.LaunchRequest); ok {
			launchReq <- req
		}
	})

	id := wm.CreateWindow("mail", "Mail", windows.Options{Icon: "mail.svg"})
	require.True(t, s.PopoutWindow(id))

	handle.closed.Store(true)

	select {
	case req := <-launchReq:
		assert.Equal(t, "mail", req.AppID)
		assert.Equal(t, "mail.svg", req.Icon, "captured icon metadata must survive the detach")
	case <-time.After(time.Second):
		t.Fatal("no launch request after detached window closed")
	}
	assert.Eventually(t, func() bool { return s.ActivePopouts() == 0 },
		time.Second, 10*time.Millisecond)
}

func TestMarkClosedConfirmsWithoutPolling(t *testing.T) {
	opener := &fakeOpener{handle: &fakeHandle{}}
	s, wm, bus := newFixture(t, opener)

	var handleID string
	bus.Subscribe(events.WindowPopout, func(p events.Payload) {
		if ev, ok := p.Data.(types.PopoutEvent); ok {
			handleID = ev.HandleID
		}
	})
	launched := make(chan struct{}, 1)
	bus.Subscribe(events.AppLaunchRequested, func(events.Payload) { launched <- struct{}{} })

	id := wm.CreateWindow("mail", "Mail", windows.Options{})
	require.True(t, s.PopoutWindow(id))
	require.NotEmpty(t, handleID)

	// Explicit signal, no reliance on the handle ever reporting closed.
	require.True(t, s.MarkClosed(handleID))
	assert.Zero(t, s.ActivePopouts())
	select {
	case <-launched:
	case <-time.After(time.Second):
		t.Fatal("restore should follow an explicit closure signal")
	}

	assert.False(t, s.MarkClosed(handleID), "second signal finds nothing")
	assert.False(t, s.MarkClosed("pop_bogus"))
}

func TestPopoutBlockedLeavesWindowOpen(t *testing.T) {
	opener := &fakeOpener{err: errors.New("popup blocked")}
	s, wm, _ := newFixture(t, opener)

	id := wm.CreateWindow("mail", "Mail", windows.Options{})

	assert.False(t, s.PopoutWindow(id))
	assert.Len(t, wm.List(), 1, "original window must stay open")
	assert.Zero(t, s.ActivePopouts())
}

func TestPopoutUnknownWindowIsNoop(t *testing.T) {
	opener := &fakeOpener{handle: &fakeHandle{}}
	s, _, _ := newFixture(t, opener)

	assert.False(t, s.PopoutWindow(types.WindowID(42)))
	assert.Empty(t, opener.opened)
}

func TestLogoutSuppressesRestore(t *testing.T) {
	handle := &fakeHandle{}
	opener := &fakeOpener{handle: handle}
	s, wm, bus := newFixture(t, opener)

	launched := make(chan struct{}, 1)
	bus.Subscribe(events.AppLaunchRequested, func(events.Payload) { launched <- struct{}{} })

	id := wm.CreateWindow("mail", "Mail", windows.Options{})
	require.True(t, s.PopoutWindow(id))

	bus.Emit(events.ShellLogout, nil, "test")
	handle.closed.Store(true)

	assert.Eventually(t, func() bool { return s.ActivePopouts() == 0 },
		time.Second, 10*time.Millisecond)

	select {
	case <-launched:
		t.Fatal("restore must be suppressed during logout")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestRestoreDisabledByPolicy(t *testing.T) {
	handle := &fakeHandle{}
	opener := &fakeOpener{handle: handle}

	log := logging.NewNop()
	bus := events.NewBus(log)
	wm := windows.NewManager(log, bus, render.NewHeadless(), config.Default().Shell)
	cfg := config.PopoutConfig{PollInterval: 10 * time.Millisecond, RestoreOnClose: false}
	s := NewSynchronizer(log, bus, opener, wm, cfg)
	defer s.Close()

	launched := make(chan struct{}, 1)
	bus.Subscribe(events.AppLaunchRequested, func(events.Payload) { launched <- struct{}{} })

	id := wm.CreateWindow("mail", "Mail", windows.Options{})
	require.True(t, s.PopoutWindow(id))
	handle.closed.Store(true)

	assert.Eventually(t, func() bool { return s.ActivePopouts() == 0 },
		time.Second, 10*time.Millisecond)

	select {
	case <-launched:
		t.Fatal("restore policy disabled, nothing should launch")
	case <-time.After(50 * time.Millisecond):
	}
}
