package events

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"
)

// Event types sent to connected clients.
const (
	TypeChecklistsSaved    = "checklists_saved"
	TypeChecklistsRestored = "checklists_restored"
	TypeDocumentSaved      = "document_saved"
	TypeDocumentRestored   = "document_restored"
	TypeLabsChanged        = "labs_changed"
)

// Event tells a user's other sessions that their data changed and should
// be reloaded. It carries no data itself.
type Event struct {
	Type      string    `json:"type"`
	Kind      string    `json:"kind,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// sendBuffer is the number of events queued per connection before new
// ones are dropped.
const sendBuffer = 16

const writeTimeout = 5 * time.Second

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans change events out to every WebSocket connection of a user.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*client]struct{}
	closed  bool
	logger  zerolog.Logger
}

// NewHub creates an empty Hub.
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		clients: make(map[string]map[*client]struct{}),
		logger:  logger.With().Str("component", "events").Logger(),
	}
}

// Serve upgrades the request to a WebSocket registered under userID and
// blocks until the client disconnects or the hub is closed. Messages
// from the client are discarded.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, userID string) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	if !h.register(userID, c) {
		_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}
	defer h.unregister(userID, c)

	// CloseRead drains client frames and cancels ctx once the peer goes away.
	ctx := conn.CloseRead(r.Context())

	for {
		select {
		case <-ctx.Done():
			_ = conn.Close(websocket.StatusNormalClosure, "")
			return
		case msg, ok := <-c.send:
			if !ok {
				_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := conn.Write(writeCtx, websocket.MessageText, msg)
			cancel()
			if err != nil {
				h.logger.Debug().Err(err).Str("user", userID).Msg("dropping websocket client")
				return
			}
		}
	}
}

// Publish queues ev for every connection of userID. It never blocks: a
// connection whose buffer is full misses the event.
func (h *Hub) Publish(userID string, ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	data, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error().Err(err).Msg("encoding event")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients[userID] {
		select {
		case c.send <- data:
		default:
			h.logger.Warn().Str("user", userID).Str("type", ev.Type).Msg("event buffer full, dropping")
		}
	}
}

// ClientCount reports the number of open connections for userID.
func (h *Hub) ClientCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

// Close disconnects every client. Later connections are refused.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for userID, set := range h.clients {
		for c := range set {
			close(c.send)
		}
		delete(h.clients, userID)
	}
}

func (h *Hub) register(userID string, c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	set, ok := h.clients[userID]
	if !ok {
		set = make(map[*client]struct{})
		h.clients[userID] = set
	}
	set[c] = struct{}{}
	h.logger.Debug().Str("user", userID).Int("connections", len(set)).Msg("client connected")
	return true
}

func (h *Hub) unregister(userID string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.clients[userID]
	if !ok {
		return
	}
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	close(c.send)
	if len(set) == 0 {
		delete(h.clients, userID)
	}
}
