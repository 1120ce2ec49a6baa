package web

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"

	"github.com/cjeanneret/photobooth/internal/debug"
)

// Message is one event sent to a client over SSE.
type Message struct {
	Event string `json:"event"`
	Args  []any  `json:"args,omitempty"`
}

// Mirror receives a copy of every broadcast event (e.g. an MQTT publisher).
type Mirror interface {
	Publish(event string, args []any)
}

// Hub distributes events to connected SSE clients, addressed by a
// generated client id. Slow clients may miss messages (non-blocking,
// buffered).
type Hub struct {
	mu      sync.RWMutex
	clients map[string]chan string
	mirrors []Mirror
}

func NewHub() *Hub {
	return &Hub{clients: make(map[string]chan string)}
}

// Subscribe registers a new client and returns its id, its message channel
// and a cleanup function the caller must call on disconnect.
func (h *Hub) Subscribe() (string, <-chan string, func()) {
	id := uuid.NewString()
	ch := make(chan string, 64)
	h.mu.Lock()
	h.clients[id] = ch
	h.mu.Unlock()

	unsub := func() {
		h.mu.Lock()
		if _, ok := h.clients[id]; ok {
			delete(h.clients, id)
			close(ch)
		}
		h.mu.Unlock()
	}
	return id, ch, unsub
}

// Connected reports whether client id is subscribed.
func (h *Hub) Connected(id string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[id]
	return ok
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// AddMirror registers m to receive every broadcast.
func (h *Hub) AddMirror(m Mirror) {
	h.mu.Lock()
	h.mirrors = append(h.mirrors, m)
	h.mu.Unlock()
}

// Broadcast sends an event to every client and every mirror.
func (h *Hub) Broadcast(event string, args ...any) {
	payload, ok := encode(event, args)
	if !ok {
		return
	}
	debug.Event("out", "", event)

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.clients {
		select {
		case ch <- payload:
		default:
			// channel full, skip
		}
	}
	for _, m := range h.mirrors {
		m.Publish(event, args)
	}
}

// SendTo sends an event to one client. It returns false when the client is
// gone or its buffer is full.
func (h *Hub) SendTo(id, event string, args ...any) bool {
	payload, ok := encode(event, args)
	if !ok {
		return false
	}
	debug.Event("out", id, event)

	h.mu.RLock()
	defer h.mu.RUnlock()
	ch, ok := h.clients[id]
	if !ok {
		return false
	}
	select {
	case ch <- payload:
		return true
	default:
		return false
	}
}

func encode(event string, args []any) (string, bool) {
	data, err := json.Marshal(Message{Event: event, Args: args})
	if err != nil {
		debug.Error("encode event "+event, err)
		return "", false
	}
	return string(data), true
}
