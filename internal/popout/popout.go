// Package popout detaches shell windows into independent top-level browser
// windows and tracks their liveness.
//
// Two top-level windows share no reliable closure signal, so the
// synchronizer polls each detached handle's closed state on a bounded
// interval and cancels the poll once closure is confirmed. Restoring the
// app into the main shell afterwards is best effort and suppressed during
// logout, when a storm of closures must not trigger a storm of launches.
package popout

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/glasspane/webdesk/internal/config"
	"github.com/glasspane/webdesk/internal/events"
	"github.com/glasspane/webdesk/internal/logging"
	"github.com/glasspane/webdesk/internal/monitoring"
	"github.com/glasspane/webdesk/internal/shared/id"
	"github.com/glasspane/webdesk/internal/shared/types"
	"github.com/glasspane/webdesk/internal/windows"
)

// Handle is a detached top-level window.
type Handle interface {
	// Closed reports whether the window has been closed by the user.
	Closed() bool
}

// OpenSpec describes the window to open: the detached window is sized and
// positioned to match the managed window it replaces.
type OpenSpec struct {
	AppID    string
	Title    string
	Icon     string
	Geometry types.Geometry
}

// Opener opens detached top-level windows. An error means the environment
// refused (popup blocked); the synchronizer aborts without mutating state.
type Opener interface {
	Open(spec OpenSpec) (Handle, error)
}

// WindowSource is the slice of the window manager the synchronizer reads.
type WindowSource interface {
	Get(windowID types.WindowID) (types.WindowSnapshot, bool)
	Taskbar() *windows.Taskbar
}

type tracked struct {
	handle Handle
	meta   types.PopoutEvent
	stop   chan struct{}
}

// Synchronizer detaches windows and watches the detached handles.
type Synchronizer struct {
	mu      sync.Mutex
	tracked map[id.PopoutID]*tracked

	opener  Opener
	source  WindowSource
	bus     *events.Bus
	cfg     config.PopoutConfig
	log     *logging.Logger
	metrics *monitoring.Metrics

	loggingOut atomic.Bool
}

// NewSynchronizer creates a pop-out synchronizer. It subscribes to the
// shell logout event so restore-on-close is suppressed while signing out.
func NewSynchronizer(log *logging.Logger, bus *events.Bus, opener Opener, source WindowSource, cfg config.PopoutConfig) *Synchronizer {
	s := &Synchronizer{
		tracked: make(map[id.PopoutID]*tracked),
		opener:  opener,
		source:  source,
		bus:     bus,
		cfg:     cfg,
		log:     log.Named("popout"),
	}

	bus.Subscribe(events.ShellLogout, func(events.Payload) {
		s.loggingOut.Store(true)
	})

	return s
}

// WithMetrics attaches a metrics collector.
func (s *Synchronizer) WithMetrics(metrics *monitoring.Metrics) *Synchronizer {
	s.metrics = metrics
	return s
}

// PopoutWindow detaches the given window: opens a matching top-level
// window, captures the app metadata before the original is torn down, and
// emits the detach event the window manager consumes to close the managed
// window. Returns false if the environment refused to open the window, in
// which case no state was mutated and the original window stays open.
func (s *Synchronizer) PopoutWindow(windowID types.WindowID) bool {
	snap, ok := s.source.Get(windowID)
	if !ok {
		s.log.Debug("popout of unknown window", zap.Uint64("window_id", uint64(windowID)))
		return false
	}

	icon, _ := s.source.Taskbar().IconFor(windowID)

	handle, err := s.opener.Open(OpenSpec{
		AppID:    snap.AppID,
		Title:    snap.Title,
		Icon:     icon.Icon,
		Geometry: snap.Geometry,
	})
	if err != nil || handle == nil {
		// Popup blocked: abort silently, the managed window is untouched.
		s.log.Debug("environment refused popout", zap.String("app", snap.AppID), zap.Error(err))
		return false
	}

	// Capture metadata now; the original element is about to be torn down.
	popID := id.NewPopoutID()
	meta := types.PopoutEvent{
		WindowID: windowID,
		AppID:    snap.AppID,
		Title:    snap.Title,
		Icon:     icon.Icon,
		HandleID: popID.String(),
	}

	tr := &tracked{handle: handle, meta: meta, stop: make(chan struct{})}
	s.mu.Lock()
	s.tracked[popID] = tr
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.PopoutsActive.Inc()
	}
	s.bus.Emit(events.WindowPopout, meta, "popout")

	go s.poll(popID, tr)
	return true
}

// poll watches one detached handle until it reports itself closed or the
// synchronizer shuts down.
func (s *Synchronizer) poll(popID id.PopoutID, tr *tracked) {
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-tr.stop:
			return
		case <-ticker.C:
			if tr.handle.Closed() {
				s.confirmClosed(popID, tr)
				return
			}
		}
	}
}

func (s *Synchronizer) confirmClosed(popID id.PopoutID, tr *tracked) {
	s.mu.Lock()
	_, stillTracked := s.tracked[popID]
	delete(s.tracked, popID)
	s.mu.Unlock()
	if !stillTracked {
		return
	}

	if s.metrics != nil {
		s.metrics.PopoutsActive.Dec()
	}
	s.log.Debug("detached window closed", zap.String("app", tr.meta.AppID))

	if s.cfg.RestoreOnClose && !s.loggingOut.Load() {
		s.bus.Emit(events.AppLaunchRequested, types.LaunchRequest{
			AppID: tr.meta.AppID,
			Title: tr.meta.Title,
			Icon:  tr.meta.Icon,
		}, "popout")
	}
}

// MarkClosed accepts an explicit closure signal for a detached window,
// confirming it immediately instead of waiting for the next poll tick.
// Returns false for unknown handle ids.
func (s *Synchronizer) MarkClosed(handleID string) bool {
	s.mu.Lock()
	var (
		found *tracked
		key   id.PopoutID
	)
	for popID, tr := range s.tracked {
		if tr.meta.HandleID == handleID {
			found, key = tr, popID
			break
		}
	}
	s.mu.Unlock()
	if found == nil {
		return false
	}

	close(found.stop)
	s.confirmClosed(key, found)
	return true
}

// ActivePopouts reports how many detached windows are being tracked.
func (s *Synchronizer) ActivePopouts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tracked)
}

// SetLoggingOut toggles restore suppression explicitly, in addition to the
// logout event subscription.
func (s *Synchronizer) SetLoggingOut(v bool) {
	s.loggingOut.Store(v)
}

// Close stops all poll loops without restoring anything.
func (s *Synchronizer) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for popID, tr := range s.tracked {
		close(tr.stop)
		delete(s.tracked, popID)
	}
}
