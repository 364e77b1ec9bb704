package session

import (
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/glasspane/webdesk/internal/events"
	"github.com/glasspane/webdesk/internal/logging"
	"github.com/glasspane/webdesk/internal/monitoring"
	"github.com/glasspane/webdesk/internal/shared/id"
	"github.com/glasspane/webdesk/internal/shared/types"
	"github.com/glasspane/webdesk/internal/windows"
)

// Launcher is the slice of the app surface the restore path needs.
type Launcher interface {
	LaunchApp(appID, teamID string) (types.WindowID, bool)
}

// Manager snapshots and restores the open desktop.
type Manager struct {
	store    Store
	wm       *windows.Manager
	launcher Launcher
	bus      *events.Bus
	log      *logging.Logger
	metrics  *monitoring.Metrics
}

// NewManager wires a session manager over the given store.
func NewManager(store Store, wm *windows.Manager, launcher Launcher, bus *events.Bus, log *logging.Logger) *Manager {
	return &Manager{
		store:    store,
		wm:       wm,
		launcher: launcher,
		bus:      bus,
		log:      log.Named("session"),
	}
}

// WithMetrics attaches a metrics collector.
func (m *Manager) WithMetrics(metrics *monitoring.Metrics) *Manager {
	m.metrics = metrics
	return m
}

// Save captures every open window and persists the snapshot. Returns the
// new session id.
func (m *Manager) Save(name, description string) (string, error) {
	wins := m.wm.List()
	sort.Slice(wins, func(i, j int) bool { return wins[i].Z < wins[j].Z })

	snap := &Snapshot{
		ID:          id.NewSessionID().String(),
		Name:        name,
		Description: description,
		CreatedAt:   time.Now().UTC(),
		Viewport:    m.wm.Viewport(),
		Windows:     wins,
	}

	if err := m.store.Save(snap); err != nil {
		return "", fmt.Errorf("failed to save session: %w", err)
	}

	if m.metrics != nil {
		m.metrics.SessionsSaved.Inc()
	}
	m.log.Info("session saved",
		zap.String("session_id", snap.ID),
		zap.Int("windows", len(snap.Windows)),
	)
	m.bus.Emit(events.SessionSaved, types.SessionEvent{
		SessionID: snap.ID, Name: snap.Name, Windows: len(snap.Windows),
	}, "session")
	return snap.ID, nil
}

// Restore relaunches every app from the stored snapshot, bottom of the
// stack first so activation order reproduces the saved z-order, and
// reapplies each window's geometry and minimize/maximize state. Apps that
// fail to launch are skipped; the restore continues. Returns the number of
// windows restored.
func (m *Manager) Restore(sessionID string) (int, error) {
	snap, err := m.store.Load(sessionID)
	if err != nil {
		return 0, err
	}

	restored := 0
	for _, saved := range snap.Windows {
		windowID, ok := m.launcher.LaunchApp(saved.AppID, saved.TeamID)
		if !ok {
			m.log.Warn("skipping window whose app failed to launch",
				zap.String("session_id", sessionID),
				zap.String("app", saved.AppID),
			)
			continue
		}
		m.wm.UpdateWindowPosition(windowID, saved.Geometry)
		if saved.Maximized {
			m.wm.MaximizeWindow(windowID)
		}
		if saved.Minimized {
			m.wm.MinimizeWindow(windowID)
		}
		restored++
	}

	if m.metrics != nil {
		m.metrics.SessionsRestored.Inc()
	}
	m.log.Info("session restored",
		zap.String("session_id", sessionID),
		zap.Int("restored", restored),
		zap.Int("saved", len(snap.Windows)),
	)
	m.bus.Emit(events.SessionRestored, types.SessionEvent{
		SessionID: sessionID, Name: snap.Name, Windows: restored,
	}, "session")
	return restored, nil
}

// List returns metadata for all stored sessions, newest first.
func (m *Manager) List() ([]Meta, error) {
	return m.store.List()
}

// Get returns one stored snapshot.
func (m *Manager) Get(sessionID string) (*Snapshot, error) {
	return m.store.Load(sessionID)
}

// Delete removes a stored session.
func (m *Manager) Delete(sessionID string) error {
	return m.store.Delete(sessionID)
}
