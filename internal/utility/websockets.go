package utility

import (
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// RerenderMessage tells the browser to redraw the whole wizard page.
const RerenderMessage = "RERENDER"

// NewUpgrader accepts same-host browsers, requests without an Origin header
// and the listed origins.
func NewUpgrader(allowedOrigins []string) *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			if u, err := url.Parse(origin); err == nil && strings.EqualFold(u.Host, r.Host) {
				return true
			}
			return slices.Contains(allowedOrigins, origin)
		},
	}
}

// Conn is the part of *websocket.Conn the hub writes to.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Hub holds one live connection per wizard session.
type Hub struct {
	mu      sync.Mutex
	clients map[string]Conn
}

func NewHub() *Hub {
	return &Hub{clients: make(map[string]Conn)}
}

// Register a connection for sessionID, closing any older one.
func (h *Hub) Register(sessionID string, conn Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if old, ok := h.clients[sessionID]; ok && old != conn {
		_ = old.Close()
	}
	h.clients[sessionID] = conn
	log.Info().Str("session_id", sessionID).Msg("WebSocket Client Connected")
}

// Unregister drops sessionID's connection if it is still conn.
func (h *Hub) Unregister(sessionID string, conn Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if cur, ok := h.clients[sessionID]; ok && cur == conn {
		delete(h.clients, sessionID)
		log.Info().Str("session_id", sessionID).Msg("WebSocket Client Disconnected")
	}
}

func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Rerender notifies the session's browser that its page changed.
func (h *Hub) Rerender(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conn, ok := h.clients[sessionID]
	if !ok {
		return
	}
	if err := conn.WriteMessage(websocket.TextMessage, []byte(RerenderMessage)); err != nil {
		log.Error().Err(err).Str("session_id", sessionID).Msg("Failed to send WS message, removing client")
		_ = conn.Close()
		delete(h.clients, sessionID)
	}
}
