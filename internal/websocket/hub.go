package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"report-portal/internal/event"
)

// Hub fans bus events out to the browser connections of the session each
// event is addressed to.
type Hub struct {
	// Registered clients, grouped by portal session.
	clients map[string]map[*Client]bool

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	// Event bus to listen for events
	bus event.Bus

	// Closed when Run returns.
	done chan struct{}

	mu    sync.RWMutex
	count int
}

func NewHub(bus event.Bus) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[string]map[*Client]bool),
		bus:        bus,
		done:       make(chan struct{}),
	}
}

func (h *Hub) Run(ctx context.Context) {
	// Subscribe to event bus
	events, unsubscribe := h.bus.Subscribe()
	defer unsubscribe()
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case client := <-h.register:
			group, ok := h.clients[client.sessionID]
			if !ok {
				group = make(map[*Client]bool)
				h.clients[client.sessionID] = group
			}
			group[client] = true
			h.setCount(1)
		case client := <-h.unregister:
			h.remove(client)
		case e, ok := <-events:
			if !ok {
				h.closeAll()
				return
			}
			h.dispatch(e)
		}
	}
}

// ConnectedClients is the number of open browser connections.
func (h *Hub) ConnectedClients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.count
}

func (h *Hub) dispatch(e event.Event) {
	group := h.clients[e.SessionID]
	if len(group) == 0 {
		return
	}

	message, err := json.Marshal(e)
	if err != nil {
		slog.Error("failed to marshal event", "error", err, "type", e.Type)
		return
	}

	for client := range group {
		select {
		case client.send <- message:
		default:
			slog.Warn("closing slow websocket client", "session_id", client.sessionID)
			h.remove(client)
		}
	}

	// A signed-out session keeps no live connections.
	if e.Type == event.TypeSessionEnded {
		for client := range group {
			h.remove(client)
		}
	}
}

func (h *Hub) remove(client *Client) {
	group, ok := h.clients[client.sessionID]
	if !ok {
		return
	}
	if _, ok := group[client]; !ok {
		return
	}

	delete(group, client)
	close(client.send)
	h.setCount(-1)
	if len(group) == 0 {
		delete(h.clients, client.sessionID)
	}
}

func (h *Hub) closeAll() {
	for _, group := range h.clients {
		for client := range group {
			h.remove(client)
		}
	}
}

func (h *Hub) setCount(delta int) {
	h.mu.Lock()
	h.count += delta
	h.mu.Unlock()
}
