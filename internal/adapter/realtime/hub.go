// Package realtime pushes account events to users over websockets.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"engagement-rewards/config"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	sendBuffer        = 16
	maxReadBytes      = 512
	defaultMaxPerUser = 5
)

var (
	// ErrClosed is returned by Serve once the hub has shut down.
	ErrClosed = errors.New("realtime hub closed")
	// ErrTooManyConnections is returned by Serve when the user already
	// holds the maximum number of connections.
	ErrTooManyConnections = errors.New("realtime connection limit reached")
)

// Message is the frame written to clients.
type Message struct {
	Event  string      `json:"event"`
	Data   interface{} `json:"data"`
	SentAt time.Time   `json:"sent_at"`
}

// Hub implements ports.Notifier. Each user may hold several connections;
// every one of them receives the user's events.
type Hub struct {
	mu       sync.RWMutex
	clients  map[uuid.UUID]map[*client]struct{}
	closed   bool
	upgrader websocket.Upgrader

	writeTimeout time.Duration
	pingInterval time.Duration
	maxPerUser   int
	present      func(interface{}) interface{}
	log          zerolog.Logger
}

// NewHub creates an empty Hub.
func NewHub(cfg config.RealtimeConfig, log zerolog.Logger) *Hub {
	writeTimeout := cfg.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 5 * time.Second
	}
	pingInterval := cfg.PingInterval
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	maxPerUser := cfg.MaxConnsPerUser
	if maxPerUser <= 0 {
		maxPerUser = defaultMaxPerUser
	}
	return &Hub{
		clients: make(map[uuid.UUID]map[*client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Clients authenticate with a bearer token, not cookies.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		writeTimeout: writeTimeout,
		pingInterval: pingInterval,
		maxPerUser:   maxPerUser,
		log:          log,
	}
}

// SetPresenter converts payloads into their wire shape before they are
// written. It must be called before the hub starts serving.
func (h *Hub) SetPresenter(fn func(interface{}) interface{}) {
	h.present = fn
}

// Emit queues event for every connection of userID. A user with no open
// connection is not an error; a connection whose buffer is full is dropped.
func (h *Hub) Emit(_ context.Context, userID uuid.UUID, event string, payload interface{}) error {
	if h.present != nil {
		payload = h.present(payload)
	}
	frame, err := json.Marshal(Message{Event: event, Data: payload, SentAt: time.Now().UTC()})
	if err != nil {
		return err
	}

	h.mu.RLock()
	var slow []*client
	for c := range h.clients[userID] {
		select {
		case c.send <- frame:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.log.Warn().Str("user_id", userID.String()).Str("event", event).Msg("realtime client too slow, disconnecting")
		h.remove(c)
	}
	return nil
}

// Serve upgrades the request and streams userID's events until the client
// goes away. It blocks for the lifetime of the connection.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, userID uuid.UUID) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	c := &client{hub: h, conn: conn, userID: userID, send: make(chan []byte, sendBuffer)}
	if err := h.add(c); err != nil {
		code, text := websocket.CloseGoingAway, "shutting down"
		if errors.Is(err, ErrTooManyConnections) {
			code, text = websocket.CloseTryAgainLater, "too many connections"
		}
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(code, text),
			time.Now().Add(h.writeTimeout))
		_ = conn.Close()
		return err
	}

	h.log.Debug().Str("user_id", userID.String()).Msg("realtime client connected")
	go c.writePump()
	c.readPump()
	return nil
}

// Connections returns the number of open connections for userID.
func (h *Hub) Connections(userID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

// Close disconnects every client and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	var all []*client
	for _, set := range h.clients {
		for c := range set {
			all = append(all, c)
		}
	}
	h.mu.Unlock()

	for _, c := range all {
		h.remove(c)
	}
}

func (h *Hub) add(c *client) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrClosed
	}
	set, ok := h.clients[c.userID]
	if !ok {
		set = make(map[*client]struct{})
		h.clients[c.userID] = set
	}
	if len(set) >= h.maxPerUser {
		return ErrTooManyConnections
	}
	set[c] = struct{}{}
	return nil
}

// remove unregisters c and closes its send channel exactly once.
func (h *Hub) remove(c *client) {
	h.mu.Lock()
	set, ok := h.clients[c.userID]
	if ok {
		if _, live := set[c]; live {
			delete(set, c)
			if len(set) == 0 {
				delete(h.clients, c.userID)
			}
			close(c.send)
		}
	}
	h.mu.Unlock()
}

type client struct {
	hub    *Hub
	conn   *websocket.Conn
	userID uuid.UUID
	send   chan []byte
}

// readPump discards client frames and keeps the read deadline moving on pongs.
func (c *client) readPump() {
	defer func() {
		c.hub.remove(c)
		_ = c.conn.Close()
		c.hub.log.Debug().Str("user_id", c.userID.String()).Msg("realtime client disconnected")
	}()

	pongWait := 2 * c.hub.pingInterval
	c.conn.SetReadLimit(maxReadBytes)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.hub.log.Warn().Err(err).Str("user_id", c.userID.String()).Msg("realtime read failed")
			}
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(c.hub.pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.hub.writeTimeout))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.hub.remove(c)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.hub.writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.hub.remove(c)
				return
			}
		}
	}
}
