// Package websocket pushes ticket events to connected browser sessions.
package websocket

import (
	"context"
	"encoding/json"
	"log/slog"

	"helixdesk/internal/event"
	"helixdesk/internal/metrics"
	"helixdesk/internal/model"
)

// Hub owns the set of live clients. All mutation happens on the Run goroutine.
type Hub struct {
	clients    map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	bus        event.Bus
	metrics    *metrics.Metrics
}

func NewHub(bus event.Bus, m *metrics.Metrics) *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		bus:        bus,
		metrics:    m,
	}
}

// Run fans bus events out to clients until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	events, unsubscribe := h.bus.Subscribe()
	defer unsubscribe()
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				h.drop(client)
			}
			return
		case client := <-h.register:
			h.clients[client] = struct{}{}
			h.metrics.WebsocketOpened()
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				h.drop(client)
			}
		case e, ok := <-events:
			if !ok {
				return
			}
			h.broadcast(e)
		}
	}
}

func (h *Hub) broadcast(e event.Event) {
	message, err := json.Marshal(e)
	if err != nil {
		slog.Error("failed to marshal event", "type", e.Type, "error", err)
		return
	}

	for client := range h.clients {
		if !CanSee(client.viewer, e) {
			continue
		}
		select {
		case client.send <- message:
		default:
			slog.Warn("dropping slow websocket client", "user_id", client.viewer.UserID)
			h.drop(client)
		}
	}
}

func (h *Hub) drop(client *Client) {
	delete(h.clients, client)
	close(client.send)
	h.metrics.WebsocketClosed()
}

// CanSee reports whether viewer may receive e. Staff see every ticket event;
// end users only see public events on tickets they raised.
func CanSee(viewer model.AuthClaims, e event.Event) bool {
	switch viewer.Role {
	case model.RoleAdmin, model.RoleAgent:
		return true
	case model.RoleEndUser:
		return !e.Internal && e.RequesterID == viewer.UserID
	default:
		return false
	}
}
