// Package ws streams shell events to the hosting page over WebSocket and
// accepts window operations back from it.
package ws

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/glasspane/webdesk/internal/events"
	"github.com/glasspane/webdesk/internal/logging"
	"github.com/glasspane/webdesk/internal/monitoring"
	"github.com/glasspane/webdesk/internal/popout"
	"github.com/glasspane/webdesk/internal/shared/types"
	"github.com/glasspane/webdesk/internal/windows"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Origin policy is enforced by the CORS layer on the REST surface;
		// the stream accepts any origin the deployment let through.
		return true
	},
}

// outboundBuffer bounds the per-connection frame queue. A page that stops
// reading gets events dropped, not the shell blocked.
const outboundBuffer = 64

// Handler manages WebSocket connections. It holds a single bus
// subscription per event type and fans payloads out to every open
// connection, so connections joining and leaving never touch the bus.
type Handler struct {
	bus     *events.Bus
	wm      *windows.Manager
	popouts *popout.Synchronizer
	log     *logging.Logger
	metrics *monitoring.Metrics

	mu     sync.Mutex
	conns  map[string]chan any
	unsubs []events.UnsubscribeFunc
}

// NewHandler creates a WebSocket handler subscribed to the full shell
// event vocabulary.
func NewHandler(bus *events.Bus, wm *windows.Manager, popouts *popout.Synchronizer, log *logging.Logger) *Handler {
	h := &Handler{
		bus:     bus,
		wm:      wm,
		popouts: popouts,
		log:     log.Named("ws"),
		conns:   make(map[string]chan any),
	}
	for _, t := range events.Types() {
		h.unsubs = append(h.unsubs, bus.Subscribe(t, h.broadcast))
	}
	return h
}

// WithMetrics attaches a metrics collector.
func (h *Handler) WithMetrics(metrics *monitoring.Metrics) *Handler {
	h.metrics = metrics
	return h
}

// broadcast forwards one payload to every open connection without
// blocking the emitter.
func (h *Handler) broadcast(p events.Payload) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for connID, ch := range h.conns {
		h.enqueue(connID, ch, p)
	}
}

// enqueue is a non-blocking send; the frame is dropped when the queue is
// full. Must not block: broadcast runs on the emitter's goroutine.
func (h *Handler) enqueue(connID string, ch chan any, frame any) {
	select {
	case ch <- frame:
	default:
		h.log.Debug("dropping frame, slow consumer", zap.String("conn_id", connID))
	}
}

func (h *Handler) register(connID string) chan any {
	ch := make(chan any, outboundBuffer)
	h.mu.Lock()
	h.conns[connID] = ch
	h.mu.Unlock()
	return ch
}

func (h *Handler) unregister(connID string) {
	h.mu.Lock()
	delete(h.conns, connID)
	h.mu.Unlock()
}

// Close detaches the handler from the bus.
func (h *Handler) Close() {
	for _, unsub := range h.unsubs {
		unsub()
	}
}

type clientMessage struct {
	Type     string          `json:"type"`
	AppID    string          `json:"app_id,omitempty"`
	TeamID   string          `json:"team_id,omitempty"`
	WindowID types.WindowID  `json:"window_id,omitempty"`
	Geometry *types.Geometry `json:"geometry,omitempty"`
	Viewport *types.Viewport `json:"viewport,omitempty"`
}

// HandleConnection upgrades the request and runs the connection until the
// page disconnects. Every shell event emitted while the connection is open
// is forwarded as JSON; window operations sent by the page are applied to
// the window manager. All frames leave through a single writer goroutine.
func (h *Handler) HandleConnection(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	connID := uuid.NewString()
	log := h.log.With(zap.String("conn_id", connID))

	if h.metrics != nil {
		h.metrics.WSConnections.Inc()
		defer h.metrics.WSConnections.Dec()
	}

	outbound := h.register(connID)
	defer h.unregister(connID)

	writerDone := make(chan struct{})
	stopWriter := make(chan struct{})
	go func() {
		defer close(writerDone)
		for {
			select {
			case frame := <-outbound:
				if err := conn.WriteJSON(frame); err != nil {
					return
				}
			case <-stopWriter:
				return
			}
		}
	}()
	defer func() {
		close(stopWriter)
		<-writerDone
	}()

	h.enqueue(connID, outbound, gin.H{
		"type":      "system",
		"message":   "connected",
		"conn_id":   connID,
		"timestamp": time.Now().Unix(),
	})
	log.Info("stream connected")

	for {
		var msg clientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			log.Debug("stream closed", zap.Error(err))
			return
		}
		h.apply(connID, outbound, msg)
	}
}

// apply executes one client operation. Unknown types are answered with an
// error frame instead of dropping the connection.
func (h *Handler) apply(connID string, outbound chan any, msg clientMessage) {
	switch msg.Type {
	case "ping":
		h.enqueue(connID, outbound, gin.H{"type": "pong", "timestamp": time.Now().Unix()})
	case "launch":
		// Launches go over the bus; the integrator owns the registry call.
		h.bus.Emit(events.AppLaunchRequested, types.LaunchRequest{
			AppID: msg.AppID, TeamID: msg.TeamID,
		}, "ws")
	case "popout":
		h.popouts.PopoutWindow(msg.WindowID)
	case "focus":
		h.wm.ActivateWindow(msg.WindowID)
	case "close":
		h.wm.CloseWindow(msg.WindowID)
	case "minimize":
		h.wm.MinimizeWindow(msg.WindowID)
	case "restore":
		h.wm.RestoreWindow(msg.WindowID)
	case "maximize":
		h.wm.MaximizeWindow(msg.WindowID)
	case "unmaximize":
		h.wm.RestoreMaximizedWindow(msg.WindowID)
	case "move":
		if msg.Geometry != nil {
			h.wm.UpdateWindowPosition(msg.WindowID, *msg.Geometry)
		}
	case "viewport":
		if msg.Viewport != nil {
			h.wm.SetViewport(*msg.Viewport)
		}
	default:
		h.enqueue(connID, outbound, gin.H{"type": "error", "message": "unknown message type"})
	}
}
