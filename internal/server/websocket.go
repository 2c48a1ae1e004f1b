package server

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/SmitUplenchwar2687/rrview/internal/player"
	"github.com/SmitUplenchwar2687/rrview/internal/recording"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local dev tool.
	},
}

// writeWait bounds each write so a stalled page cannot hold the hub.
const writeWait = 10 * time.Second

// Operations carried on the widget channel.
const (
	opMount   = "mount"
	opDestroy = "destroy"
	opFailed  = "failed"
	opReset   = "reset"
	opError   = "error" // client to server
)

// message is the wire format in both directions.
type message struct {
	Op       string               `json:"op"`
	Instance string               `json:"instance,omitempty"`
	AutoPlay bool                 `json:"autoPlay,omitempty"`
	Events   *recording.Recording `json:"events,omitempty"`
	Message  string               `json:"message,omitempty"`
}

// ErrorHandler receives render failures reported by browser clients.
type ErrorHandler func(instance, message string)

// Hub manages WebSocket clients and acts as the browser playback widget:
// every mounted instance is broadcast to all connected pages.
type Hub struct {
	mu       sync.Mutex
	clients  map[*websocket.Conn]bool
	last     *message // replayed to clients that connect later
	onError  ErrorHandler
	sequence atomic.Uint64

	writeTimeout time.Duration
}

// NewHub creates a new WebSocket hub.
func NewHub() *Hub {
	return &Hub{
		clients:      make(map[*websocket.Conn]bool),
		writeTimeout: writeWait,
	}
}

// OnError sets the handler for client-reported failures.
func (h *Hub) OnError(fn ErrorHandler) {
	h.mu.Lock()
	h.onError = fn
	h.mu.Unlock()
}

// Mount implements player.Widget.
func (h *Hub) Mount(opts player.Options) (player.Instance, error) {
	id := fmt.Sprintf("p%d", h.sequence.Add(1))
	msg := &message{Op: opMount, Instance: id, AutoPlay: opts.AutoPlay, Events: opts.Events}
	if err := h.broadcast(msg, true); err != nil {
		return nil, err
	}
	return &hubInstance{hub: h, id: id}, nil
}

// Failed tells every page that instance could not be rendered. Late joiners
// see the failure until Recovered is called or a new instance is mounted.
func (h *Hub) Failed(instance, reason string) {
	if err := h.broadcast(&message{Op: opFailed, Instance: instance, Message: reason}, true); err != nil {
		log.Printf("websocket: %v", err)
	}
}

// Recovered clears a failure shown to the pages.
func (h *Hub) Recovered() {
	h.mu.Lock()
	if h.last != nil && h.last.Op == opFailed {
		h.last = nil
	}
	h.mu.Unlock()
	if err := h.broadcast(&message{Op: opReset}, false); err != nil {
		log.Printf("websocket: %v", err)
	}
}

func (h *Hub) destroy(id string) {
	h.mu.Lock()
	if h.last != nil && h.last.Op == opMount && h.last.Instance == id {
		h.last = nil
	}
	h.mu.Unlock()
	if err := h.broadcast(&message{Op: opDestroy, Instance: id}, false); err != nil {
		log.Printf("websocket: %v", err)
	}
}

// HandleWebSocket upgrades the HTTP connection and registers the client.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade error: %v", err)
		return
	}

	h.mu.Lock()
	h.clients[conn] = true
	if h.last != nil {
		if data, err := json.Marshal(h.last); err == nil {
			if err := h.write(conn, data); err != nil {
				log.Printf("websocket write error: %v", err)
			}
		}
	}
	h.mu.Unlock()

	// Read loop: handle client reports and disconnects.
	go func() {
		defer func() {
			h.mu.Lock()
			delete(h.clients, conn)
			h.mu.Unlock()
			conn.Close()
		}()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				break
			}
			h.receive(data)
		}
	}()
}

func (h *Hub) receive(data []byte) {
	var msg message
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Printf("websocket: ignoring malformed client message: %v", err)
		return
	}
	if msg.Op != opError || msg.Instance == "" {
		return
	}

	h.mu.Lock()
	fn := h.onError
	h.mu.Unlock()
	if fn != nil {
		fn(msg.Instance, msg.Message)
	}
}

// broadcast sends msg to all connected clients, optionally remembering it
// for clients that join later.
func (h *Hub) broadcast(msg *message, keep bool) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("websocket marshal error: %w", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if keep {
		h.last = msg
	}
	for conn := range h.clients {
		if err := h.write(conn, data); err != nil {
			log.Printf("websocket write error: %v", err)
			conn.Close()
			// Don't delete during iteration; the read goroutine will clean up.
		}
	}
	return nil
}

// Must be called with h.mu held.
func (h *Hub) write(conn *websocket.Conn, data []byte) error {
	if err := conn.SetWriteDeadline(time.Now().Add(h.writeTimeout)); err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

type hubInstance struct {
	hub  *Hub
	id   string
	once sync.Once
}

func (i *hubInstance) ID() string { return i.id }

func (i *hubInstance) Destroy() {
	i.once.Do(func() { i.hub.destroy(i.id) })
}
