package ws

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Hub tracks connected devices and routes push events to them. One client
// per user; a reconnect replaces the previous connection.
type Hub struct {
	clients map[uuid.UUID]*Client

	register   chan *Client
	unregister chan *Client
	direct     chan *directMsg
	// closed unblocks pumps that try to hand a client back after Run exited.
	closed chan struct{}

	log *zap.SugaredLogger
}

type directMsg struct {
	userID uuid.UUID
	data   []byte
}

func NewHub(log *zap.SugaredLogger) *Hub {
	return &Hub{
		clients:    make(map[uuid.UUID]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		direct:     make(chan *directMsg, 256),
		closed:     make(chan struct{}),
		log:        log,
	}
}

// Run is the hub's event loop; it exits when ctx is cancelled.
func (h *Hub) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			for _, client := range h.clients {
				h.drop(client)
			}
			close(h.closed)
			return ctx.Err()

		case client := <-h.register:
			if old, ok := h.clients[client.userID]; ok {
				h.drop(old)
			}
			h.clients[client.userID] = client
			h.log.Debugw("ws client connected", "user_id", client.userID, "total", len(h.clients))

		case client := <-h.unregister:
			if current, ok := h.clients[client.userID]; ok && current == client {
				delete(h.clients, client.userID)
				h.drop(client)
				h.log.Debugw("ws client disconnected", "user_id", client.userID, "total", len(h.clients))
			}

		case msg := <-h.direct:
			client, ok := h.clients[msg.userID]
			if !ok {
				continue
			}
			select {
			case client.send <- msg.data:
			default:
				// Client buffer full - disconnect
				delete(h.clients, client.userID)
				h.drop(client)
			}
		}
	}
}

// SendToUser queues an event for one user's device; a no-op when the user
// has no live connection.
func (h *Hub) SendToUser(userID uuid.UUID, event *Event) {
	data, err := json.Marshal(event)
	if err != nil {
		h.log.Warnw("ws marshal error", "error", err)
		return
	}
	select {
	case h.direct <- &directMsg{userID: userID, data: data}:
	default:
	}
}

func (h *Hub) drop(client *Client) {
	close(client.send)
	close(client.done)
}
