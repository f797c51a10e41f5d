package realtime

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tavern-guild/tavern/internal/config"
	"github.com/tavern-guild/tavern/pkg/logger"
)

func newTestHub(t *testing.T, origins ...string) (*Hub, *httptest.Server) {
	t.Helper()

	hub := NewHub(&config.RealtimeConfig{SendBuffer: 8, PingInterval: 30, PongTimeout: 60}, origins, logger.Nop())
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = hub.ServeUser(w, r, r.URL.Query().Get("user"))
	}))
	t.Cleanup(func() {
		srv.Close()
		hub.Close()
	})
	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server, userID string) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?user=" + userID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var ev Event
	require.NoError(t, json.Unmarshal(data, &ev))
	return ev
}

func waitConnections(t *testing.T, hub *Hub, userID string, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return hub.Connections(userID) == n }, 2*time.Second, 10*time.Millisecond)
}

func TestPublish_DeliversToUserRoom(t *testing.T) {
	hub, srv := newTestHub(t)

	aria := dial(t, srv, "aria")
	bram := dial(t, srv, "bram")
	waitConnections(t, hub, "aria", 1)
	waitConnections(t, hub, "bram", 1)

	hub.Publish("bram", "notification:badge", map[string]int{"unread": 2})
	hub.Publish("aria", "notification:new", map[string]string{"title": "Welcome"})

	ev := readEvent(t, aria)
	assert.Equal(t, "notification:new", ev.Event)
	assert.Equal(t, map[string]interface{}{"title": "Welcome"}, ev.Data)

	ev = readEvent(t, bram)
	assert.Equal(t, "notification:badge", ev.Event)
	assert.Equal(t, map[string]interface{}{"unread": float64(2)}, ev.Data)
}

func TestPublish_AllConnectionsOfUser(t *testing.T) {
	hub, srv := newTestHub(t)

	first := dial(t, srv, "aria")
	second := dial(t, srv, "aria")
	waitConnections(t, hub, "aria", 2)

	hub.Publish("aria", "notification:read", map[string]bool{"all": true})

	assert.Equal(t, "notification:read", readEvent(t, first).Event)
	assert.Equal(t, "notification:read", readEvent(t, second).Event)
}

func TestPublish_NoConnections(t *testing.T) {
	hub, _ := newTestHub(t)

	assert.NotPanics(t, func() { hub.Publish("nobody", "notification:new", nil) })
}

func TestDisconnect_LeavesRoom(t *testing.T) {
	hub, srv := newTestHub(t)

	conn := dial(t, srv, "aria")
	waitConnections(t, hub, "aria", 1)

	require.NoError(t, conn.Close())
	waitConnections(t, hub, "aria", 0)
}

func TestOriginCheck(t *testing.T) {
	_, srv := newTestHub(t, "https://tavern.example")

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?user=aria"

	header := http.Header{"Origin": []string{"https://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	header = http.Header{"Origin": []string{"https://tavern.example"}}
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	_ = conn.Close()
}
