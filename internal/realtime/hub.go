// Package realtime pushes events to the websocket connections of a user.
package realtime

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tavern-guild/tavern/internal/config"
	prommetrics "github.com/tavern-guild/tavern/internal/metrics"
	"github.com/tavern-guild/tavern/pkg/logger"
)

const (
	maxMessageSize = 4096
	writeWait      = 10 * time.Second
)

// Event is the frame written to clients.
type Event struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

type client struct {
	userID string
	conn   *websocket.Conn
	send   chan []byte
}

// Hub keeps one room per user. A user may hold several connections.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*client]struct{}

	upgrader     websocket.Upgrader
	sendBuffer   int
	pingInterval time.Duration
	pongTimeout  time.Duration
	log          *logger.Logger
}

// NewHub creates a hub. An empty origin list or "*" accepts any origin.
func NewHub(cfg *config.RealtimeConfig, allowedOrigins []string, log *logger.Logger) *Hub {
	h := &Hub{
		rooms:        make(map[string]map[*client]struct{}),
		sendBuffer:   cfg.SendBuffer,
		pingInterval: time.Duration(cfg.PingInterval) * time.Second,
		pongTimeout:  time.Duration(cfg.PongTimeout) * time.Second,
		log:          log,
	}
	if h.sendBuffer <= 0 {
		h.sendBuffer = 32
	}
	if h.pingInterval <= 0 {
		h.pingInterval = 30 * time.Second
	}
	if h.pongTimeout <= h.pingInterval {
		h.pongTimeout = 2 * h.pingInterval
	}

	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	return h
}

func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return len(set) == 0 || origin == "" || set[origin]
	}
}

// ServeUser upgrades the request and joins the connection to the user's room.
// The caller must have authenticated the user.
func (h *Hub) ServeUser(w http.ResponseWriter, r *http.Request, userID string) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("failed to upgrade connection: %w", err)
	}

	c := &client{
		userID: userID,
		conn:   conn,
		send:   make(chan []byte, h.sendBuffer),
	}
	h.register(c)

	go h.writer(c)
	go h.reader(c)
	return nil
}

// Publish sends an event to every connection of the user. Clients whose send
// buffer is full are disconnected instead of blocking the caller.
func (h *Hub) Publish(userID, event string, payload interface{}) {
	msg, err := json.Marshal(Event{Event: event, Data: payload})
	if err != nil {
		h.log.Error().Err(err).Str("event", event).Msg("Failed to encode realtime event")
		return
	}

	var slow []*client

	h.mu.RLock()
	for c := range h.rooms[userID] {
		select {
		case c.send <- msg:
			prommetrics.RecordNotificationPushed(event)
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.log.Warn().Str("user_id", c.userID).Msg("Dropping slow websocket client")
		h.unregister(c)
	}
}

// Connections returns how many connections the user has open.
func (h *Hub) Connections(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[userID])
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for userID, room := range h.rooms {
		for c := range room {
			close(c.send)
			prommetrics.DecWebsocketConnections()
		}
		delete(h.rooms, userID)
	}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	room, ok := h.rooms[c.userID]
	if !ok {
		room = make(map[*client]struct{})
		h.rooms[c.userID] = room
	}
	room[c] = struct{}{}
	h.mu.Unlock()

	prommetrics.IncWebsocketConnections()
	h.log.Debug().Str("user_id", c.userID).Msg("Websocket client connected")
}

// unregister removes c and closes its send channel. Safe to call more than once.
func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, ok := h.rooms[c.userID]
	if !ok {
		return
	}
	if _, ok := room[c]; !ok {
		return
	}
	delete(room, c)
	if len(room) == 0 {
		delete(h.rooms, c.userID)
	}
	close(c.send)

	prommetrics.DecWebsocketConnections()
	h.log.Debug().Str("user_id", c.userID).Msg("Websocket client disconnected")
}

// reader drains client frames so pongs and close frames are processed.
func (h *Hub) reader(c *client) {
	defer h.unregister(c)

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(h.pongTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(h.pongTimeout))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writer(c *client) {
	ticker := time.NewTicker(h.pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
