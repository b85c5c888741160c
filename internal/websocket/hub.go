package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync/atomic"
	"time"

	"go-upload-stream/internal/event"
)

type Hub struct {
	// Registered clients.
	clients map[*Client]bool

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	// Closed when Run returns.
	done chan struct{}

	stream    event.Stream
	logger    *slog.Logger
	connected atomic.Int64
	now       func() time.Time
}

func NewHub(stream event.Stream, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		clients:    make(map[*Client]bool),
		stream:     stream,
		logger:     logger.With("component", "websocket"),
		now:        time.Now,
	}
}

// Connected returns the number of registered clients.
func (h *Hub) Connected() int {
	return int(h.connected.Load())
}

// Run fans stream events out to clients until ctx is done. Once the stream
// terminates every client gets the final frame and is closed; clients that
// connect later get the final frame straight away.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	sub := h.stream.Subscribe()
	defer sub.Unsubscribe()

	events := sub.C
	var final []byte

	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				h.drop(client)
			}
			return

		case client := <-h.register:
			if final != nil {
				h.sendFinal(client, final)
				continue
			}
			h.clients[client] = true
			h.connected.Add(1)

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				h.drop(client)
			}

		case e, ok := <-events:
			if !ok {
				events = nil
				final = h.marshal(Final(sub.Err(), h.now()))
				for client := range h.clients {
					delete(h.clients, client)
					h.connected.Add(-1)
					h.sendFinal(client, final)
				}
				continue
			}

			msg, err := Encode(e, h.now())
			if err != nil {
				h.logger.Error("failed to encode event", "error", err)
				continue
			}
			h.broadcast(h.marshal(msg))
		}
	}
}

func (h *Hub) broadcast(message []byte) {
	if message == nil {
		return
	}
	for client := range h.clients {
		select {
		case client.send <- message:
		default:
			h.logger.Warn("dropping slow client", "remote", client.remote)
			h.drop(client)
		}
	}
}

func (h *Hub) drop(client *Client) {
	delete(h.clients, client)
	h.connected.Add(-1)
	close(client.send)
}

func (h *Hub) sendFinal(client *Client, final []byte) {
	select {
	case client.send <- final:
	default:
	}
	close(client.send)
}

func (h *Hub) marshal(m Message) []byte {
	message, err := json.Marshal(m)
	if err != nil {
		h.logger.Error("failed to marshal event", "type", m.Type, "error", err)
		return nil
	}
	return message
}
