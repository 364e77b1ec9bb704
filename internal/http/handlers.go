// Package http implements the REST surface of the shell kernel.
package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/glasspane/webdesk/internal/apps"
	"github.com/glasspane/webdesk/internal/events"
	"github.com/glasspane/webdesk/internal/monitoring"
	"github.com/glasspane/webdesk/internal/popout"
	"github.com/glasspane/webdesk/internal/session"
	"github.com/glasspane/webdesk/internal/shared/types"
	"github.com/glasspane/webdesk/internal/windows"
)

// Handlers contains all HTTP handlers.
type Handlers struct {
	registry *apps.Registry
	loader   *apps.Loader
	wm       *windows.Manager
	sessions *session.Manager
	popouts  *popout.Synchronizer
	bus      *events.Bus
	metrics  *monitoring.Metrics
}

// NewHandlers creates a handler set over the wired kernel components.
func NewHandlers(
	registry *apps.Registry,
	loader *apps.Loader,
	wm *windows.Manager,
	sessions *session.Manager,
	popouts *popout.Synchronizer,
	bus *events.Bus,
	metrics *monitoring.Metrics,
) *Handlers {
	return &Handlers{
		registry: registry,
		loader:   loader,
		wm:       wm,
		sessions: sessions,
		popouts:  popouts,
		bus:      bus,
		metrics:  metrics,
	}
}

// Root handles the liveness check.
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "webdesk shell",
	})
}

// Health reports component-level health.
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "healthy",
		"uptime":   h.metrics.Uptime().String(),
		"registry": h.registry.Stats(),
		"shell":    h.wm.Stats(),
		"popouts":  h.popouts.ActivePopouts(),
	})
}

// windowID parses the :id path parameter.
func windowID(c *gin.Context) (types.WindowID, bool) {
	raw, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || raw == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid window id"})
		return 0, false
	}
	return types.WindowID(raw), true
}

// ListApps lists registered apps, optionally filtered by category or a
// search query.
func (h *Handlers) ListApps(c *gin.Context) {
	var list []types.AppMeta
	switch {
	case c.Query("q") != "":
		list = h.registry.Search(c.Query("q"))
	case c.Query("category") != "":
		list = h.registry.ByCategory(c.Query("category"))
	default:
		list = h.registry.List()
	}

	c.JSON(http.StatusOK, gin.H{
		"apps":  list,
		"stats": h.registry.Stats(),
	})
}

// GetApp returns one app's metadata.
func (h *Handlers) GetApp(c *gin.Context) {
	meta, ok := h.registry.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "app not found"})
		return
	}
	c.JSON(http.StatusOK, meta)
}

// ListAvailable returns the loader's module inventory: the closed set of
// app ids the shell knows how to load, regardless of registration state.
func (h *Handlers) ListAvailable(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"available": h.loader.AvailableApps(),
		"cached":    h.loader.CachedModules(),
	})
}

// ListCategories returns all non-empty app categories.
func (h *Handlers) ListCategories(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"categories": h.registry.Categories()})
}

type launchRequest struct {
	TeamID string `json:"team_id"`
}

// LaunchApp launches a registered app and returns its window id.
func (h *Handlers) LaunchApp(c *gin.Context) {
	appID := c.Param("id")

	var req launchRequest
	_ = c.ShouldBindJSON(&req) // body is optional

	id, ok := h.registry.LaunchApp(appID, req.TeamID)
	if !ok {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"success": false,
			"app_id":  appID,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"app_id":    appID,
		"window_id": id,
	})
}

// CloseApp closes the running instance of an app.
func (h *Handlers) CloseApp(c *gin.Context) {
	appID := c.Param("id")
	h.registry.CloseApp(appID)
	c.JSON(http.StatusOK, gin.H{"success": true, "app_id": appID})
}

// InstallApp marks an app installed.
func (h *Handlers) InstallApp(c *gin.Context) {
	appID := c.Param("id")
	ok := h.registry.Install(appID)
	c.JSON(http.StatusOK, gin.H{"success": ok, "app_id": appID})
}

// UninstallApp clears the installed flag. System apps refuse.
func (h *Handlers) UninstallApp(c *gin.Context) {
	appID := c.Param("id")
	ok := h.registry.Uninstall(appID)
	c.JSON(http.StatusOK, gin.H{"success": ok, "app_id": appID})
}

// ListWindows lists all open windows plus the taskbar state.
func (h *Handlers) ListWindows(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"windows": h.wm.List(),
		"taskbar": h.wm.Taskbar().Icons(),
		"stats":   h.wm.Stats(),
	})
}

// GetWindow returns one window snapshot.
func (h *Handlers) GetWindow(c *gin.Context) {
	id, ok := windowID(c)
	if !ok {
		return
	}
	snap, found := h.wm.Get(id)
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "window not found"})
		return
	}
	c.JSON(http.StatusOK, snap)
}

// CloseWindow closes a window.
func (h *Handlers) CloseWindow(c *gin.Context) {
	id, ok := windowID(c)
	if !ok {
		return
	}
	h.wm.CloseWindow(id)
	c.JSON(http.StatusOK, gin.H{"success": true, "window_id": id})
}

// FocusWindow raises and activates a window.
func (h *Handlers) FocusWindow(c *gin.Context) {
	id, ok := windowID(c)
	if !ok {
		return
	}
	h.wm.ActivateWindow(id)
	c.JSON(http.StatusOK, gin.H{"success": true, "window_id": id})
}

// MinimizeWindow hides a window to the taskbar.
func (h *Handlers) MinimizeWindow(c *gin.Context) {
	id, ok := windowID(c)
	if !ok {
		return
	}
	h.wm.MinimizeWindow(id)
	c.JSON(http.StatusOK, gin.H{"success": true, "window_id": id})
}

// RestoreWindow brings a minimized window back.
func (h *Handlers) RestoreWindow(c *gin.Context) {
	id, ok := windowID(c)
	if !ok {
		return
	}
	h.wm.RestoreWindow(id)
	c.JSON(http.StatusOK, gin.H{"success": true, "window_id": id})
}

// MaximizeWindow grows a window to the full viewport.
func (h *Handlers) MaximizeWindow(c *gin.Context) {
	id, ok := windowID(c)
	if !ok {
		return
	}
	h.wm.MaximizeWindow(id)
	c.JSON(http.StatusOK, gin.H{"success": true, "window_id": id})
}

// UnmaximizeWindow restores the pre-maximize geometry.
func (h *Handlers) UnmaximizeWindow(c *gin.Context) {
	id, ok := windowID(c)
	if !ok {
		return
	}
	h.wm.RestoreMaximizedWindow(id)
	c.JSON(http.StatusOK, gin.H{"success": true, "window_id": id})
}

// MoveWindow applies a new geometry to a window.
func (h *Handlers) MoveWindow(c *gin.Context) {
	id, ok := windowID(c)
	if !ok {
		return
	}
	var geo types.Geometry
	if err := c.ShouldBindJSON(&geo); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.wm.UpdateWindowPosition(id, geo)
	c.JSON(http.StatusOK, gin.H{"success": true, "window_id": id})
}

// PopoutWindow detaches a window into an independent top-level window.
func (h *Handlers) PopoutWindow(c *gin.Context) {
	id, ok := windowID(c)
	if !ok {
		return
	}
	detached := h.popouts.PopoutWindow(id)
	status := http.StatusOK
	if !detached {
		// The environment refused; the managed window is untouched.
		status = http.StatusConflict
	}
	c.JSON(status, gin.H{"success": detached, "window_id": id})
}

// PopoutClosed is the page's explicit signal that a detached window was
// closed, keyed by the handle id carried on the detach event.
func (h *Handlers) PopoutClosed(c *gin.Context) {
	handleID := c.Param("handle")
	if !h.popouts.MarkClosed(handleID) {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown popout handle"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// SetViewport records a new desktop size and re-applies layout policy.
func (h *Handlers) SetViewport(c *gin.Context) {
	var v types.Viewport
	if err := c.ShouldBindJSON(&v); err != nil || v.Width <= 0 || v.Height <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid viewport"})
		return
	}
	h.wm.SetViewport(v)
	c.JSON(http.StatusOK, gin.H{"success": true, "mobile": h.wm.Mobile()})
}

type saveSessionRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

// SaveSession captures the open desktop.
func (h *Handlers) SaveSession(c *gin.Context) {
	var req saveSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	id, err := h.sessions.Save(req.Name, req.Description)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "session_id": id})
}

// ListSessions lists stored sessions, newest first.
func (h *Handlers) ListSessions(c *gin.Context) {
	metas, err := h.sessions.List()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": metas})
}

// GetSession returns one stored session snapshot.
func (h *Handlers) GetSession(c *gin.Context) {
	snap, err := h.sessions.Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	c.JSON(http.StatusOK, snap)
}

// RestoreSession relaunches every app from a stored session.
func (h *Handlers) RestoreSession(c *gin.Context) {
	restored, err := h.sessions.Restore(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "restored": restored})
}

// DeleteSession removes a stored session.
func (h *Handlers) DeleteSession(c *gin.Context) {
	if err := h.sessions.Delete(c.Param("id")); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// EventHistory returns recent bus events, optionally filtered by type.
func (h *Handlers) EventHistory(c *gin.Context) {
	filter := events.Type(c.Query("type"))
	if filter != "" && !filter.Known() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown event type"})
		return
	}
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = n
	}
	c.JSON(http.StatusOK, gin.H{"events": h.bus.History(filter, limit)})
}

// Logout signals shell sign-out. Components react via the bus: pop-out
// restore is suppressed before detached windows start closing.
func (h *Handlers) Logout(c *gin.Context) {
	h.bus.Emit(events.ShellLogout, nil, "http")
	c.JSON(http.StatusOK, gin.H{"success": true})
}
