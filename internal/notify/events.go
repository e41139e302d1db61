// Package notify is the ops HTTP surface: health, Prometheus metrics, and a
// WebSocket feed of Credential Engine and Pipeline Bridge events, grounded on
// the teacher's chi-routed API server and gorilla/websocket signaling
// server.
package notify

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	writeWait      = 10 * time.Second
	pingPeriod     = 15 * time.Second
	subscriberSend = 64
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Event is one ops-facing notification: a Credential Engine event tag, an
// INFERENCE_ERROR from the Pipeline Bridge, or an RPC authentication
// rejection.
type Event struct {
	Kind      string    `json:"kind"`
	PeerID    string    `json:"peer_id,omitempty"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Hub fans Event values out to every connected WebSocket subscriber.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[*subscriber]struct{}
	logger      zerolog.Logger
}

type subscriber struct {
	conn *websocket.Conn
	send chan Event
}

func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		subscribers: make(map[*subscriber]struct{}),
		logger:      logger.With().Str("component", "notify_hub").Logger(),
	}
}

// Publish fans out ev to every connected subscriber, dropping it for any
// subscriber whose send buffer is full rather than blocking the publisher.
func (h *Hub) Publish(ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subscribers {
		select {
		case sub.send <- ev:
		default:
			h.logger.Warn().Msg("dropping event for slow subscriber")
		}
	}
}

// ServeWS upgrades the request to a WebSocket and streams events until the
// client disconnects.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	sub := &subscriber{conn: conn, send: make(chan Event, subscriberSend)}

	h.mu.Lock()
	h.subscribers[sub] = struct{}{}
	h.mu.Unlock()

	go h.writePump(sub)
	h.readPump(sub)
}

func (h *Hub) writePump(sub *subscriber) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		sub.conn.Close()
	}()

	for {
		select {
		case ev, ok := <-sub.send:
			sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				sub.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			body, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			if err := sub.conn.WriteMessage(websocket.TextMessage, body); err != nil {
				return
			}
		case <-ticker.C:
			sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := sub.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump discards inbound messages but keeps the connection draining so
// the client's close frame is observed.
func (h *Hub) readPump(sub *subscriber) {
	defer func() {
		h.mu.Lock()
		delete(h.subscribers, sub)
		h.mu.Unlock()
		close(sub.send)
	}()

	for {
		if _, _, err := sub.conn.ReadMessage(); err != nil {
			return
		}
	}
}
