package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alextompkins/piano-vision/internal/app"
)

const (
	keysBuffer   = 64
	writeTimeout = time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// KeysMessage is broadcast to websocket clients for every processed frame.
type KeysMessage struct {
	Frame     int      `json:"frame"`
	Pressed   []string `json:"pressed"`
	Active    []string `json:"active"`
	Presses   []string `json:"presses,omitempty"`
	Releases  []string `json:"releases,omitempty"`
	Timestamp int64    `json:"timestamp"`
}

// NewKeysMessage converts a frame result into its broadcast form.
func NewKeysMessage(res app.FrameResult) KeysMessage {
	msg := KeysMessage{
		Frame:     res.Index,
		Pressed:   make([]string, 0, len(res.Pressed)),
		Active:    make([]string, 0, len(res.Active)),
		Timestamp: time.Now().UnixMilli(),
	}
	for _, k := range res.Pressed {
		msg.Pressed = append(msg.Pressed, k.String())
	}
	for _, k := range res.Active {
		msg.Active = append(msg.Active, k.String())
	}
	for _, t := range res.Transitions {
		if t.Pressed {
			msg.Presses = append(msg.Presses, t.Key.String())
		} else {
			msg.Releases = append(msg.Releases, t.Key.String())
		}
	}
	return msg
}

// KeysHandler broadcasts pressed keys to websocket clients.
type KeysHandler struct {
	logger  *slog.Logger
	clients map[*websocket.Conn]bool
	mu      sync.RWMutex
	queue   chan KeysMessage
	done    chan struct{}
	once    sync.Once
}

// NewKeysHandler creates a KeysHandler and starts its broadcast loop.
func NewKeysHandler(logger *slog.Logger) *KeysHandler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &KeysHandler{
		logger:  logger,
		clients: make(map[*websocket.Conn]bool),
		queue:   make(chan KeysMessage, keysBuffer),
		done:    make(chan struct{}),
	}
	go h.broadcast()
	return h
}

// Publish queues res for broadcast. It never blocks the pipeline: when
// clients fall behind, messages are dropped.
func (h *KeysHandler) Publish(res app.FrameResult) {
	h.mu.RLock()
	idle := len(h.clients) == 0
	h.mu.RUnlock()
	if idle {
		return
	}

	select {
	case <-h.done:
	case h.queue <- NewKeysMessage(res):
	default:
		h.logger.Debug("dropping keys message", "frame", res.Index)
	}
}

// Clients returns the number of connected clients.
func (h *KeysHandler) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *KeysHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade error", "err", err)
		return
	}
	defer conn.Close()

	h.mu.Lock()
	h.clients[conn] = true
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
	}()

	// Keep connection alive by reading messages
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

// Close stops the broadcast loop and disconnects all clients.
func (h *KeysHandler) Close() {
	h.once.Do(func() {
		close(h.done)

		h.mu.Lock()
		for conn := range h.clients {
			conn.Close()
		}
		h.mu.Unlock()
	})
}

// broadcast sends queued messages to all connected clients.
func (h *KeysHandler) broadcast() {
	for {
		select {
		case <-h.done:
			return
		case msg := <-h.queue:
			data, err := json.Marshal(msg)
			if err != nil {
				continue
			}

			h.mu.RLock()
			for conn := range h.clients {
				conn.SetWriteDeadline(time.Now().Add(writeTimeout))
				if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
					h.logger.Debug("websocket write failed", "err", err)
				}
			}
			h.mu.RUnlock()
		}
	}
}
