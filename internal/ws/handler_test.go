package ws

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glasspane/webdesk/internal/config"
	"github.com/glasspane/webdesk/internal/events"
	"github.com/glasspane/webdesk/internal/logging"
	"github.com/glasspane/webdesk/internal/popout"
	"github.com/glasspane/webdesk/internal/render"
	"github.com/glasspane/webdesk/internal/shared/types"
	"github.com/glasspane/webdesk/internal/windows"
)

type frame struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
}

func newStreamFixture(t *testing.T) (*websocket.Conn, *windows.Manager, *events.Bus) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := logging.NewNop()
	bus := events.NewBus(log)
	wm := windows.NewManager(log, bus, render.NewHeadless(), config.Default().Shell)
	popouts := popout.NewSynchronizer(log, bus, popout.NewPageOpener(), wm,
		config.Default().Popout)
	t.Cleanup(popouts.Close)

	h := NewHandler(bus, wm, popouts, log)
	t.Cleanup(h.Close)

	router := gin.New()
	router.GET("/stream", h.HandleConnection)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	// Welcome frame arrives first.
	var welcome frame
	require.NoError(t, conn.ReadJSON(&welcome))
	require.Equal(t, "system", welcome.Type)

	return conn, wm, bus
}

// readUntil reads frames until one of the wanted type arrives.
func readUntil(t *testing.T, conn *websocket.Conn, wanted string) frame {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		var f frame
		require.NoError(t, conn.ReadJSON(&f), "waiting for %s", wanted)
		if f.Type == wanted {
			return f
		}
	}
}

func TestStreamForwardsWindowEvents(t *testing.T) {
	conn, wm, _ := newStreamFixture(t)

	wm.CreateWindow("mail", "Mail", windows.Options{})

	created := readUntil(t, conn, "window.created")
	assert.Equal(t, "mail", created.Data["app_id"])
	readUntil(t, conn, "window.activated")
}

func TestStreamAppliesClientOps(t *testing.T) {
	conn, wm, _ := newStreamFixture(t)

	id := wm.CreateWindow("mail", "Mail", windows.Options{})
	readUntil(t, conn, "window.activated")

	require.NoError(t, conn.WriteJSON(map[string]any{
		"type": "minimize", "window_id": id,
	}))
	readUntil(t, conn, "window.minimized")

	snap, ok := wm.Get(id)
	require.True(t, ok)
	assert.True(t, snap.Minimized)
}

func TestStreamLaunchGoesOverBus(t *testing.T) {
	conn, _, bus := newStreamFixture(t)

	req := make(chan types.LaunchRequest, 1)
	bus.Subscribe(events.AppLaunchRequested, func(p events.Payload) {
		if r, ok := p.Data.(types.LaunchRequest); ok {
			req <- r
		}
	})

	require.NoError(t, conn.WriteJSON(map[string]any{
		"type": "launch", "app_id": "calculator",
	}))

	select {
	case r := <-req:
		assert.Equal(t, "calculator", r.AppID)
	case <-time.After(2 * time.Second):
		t.Fatal("launch request never reached the bus")
	}
}

func TestStreamUnknownOpAnswersError(t *testing.T) {
	conn, _, _ := newStreamFixture(t)

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "teleport"}))
	f := readUntil(t, conn, "error")
	assert.Equal(t, "error", f.Type)
}

func TestStreamPing(t *testing.T) {
	conn, _, _ := newStreamFixture(t)

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "ping"}))
	readUntil(t, conn, "pong")
}
