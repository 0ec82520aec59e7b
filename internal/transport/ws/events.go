package ws

import (
	"encoding/json"

	"github.com/enigmateam/lovewidget/internal/domain"
)

const (
	// Server → client
	EventTypePush = "push"
	// Client → server
	EventTypePing = "ping"
)

type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func NewPushEvent(evt domain.PushEvent) (*Event, error) {
	payload, err := json.Marshal(evt)
	if err != nil {
		return nil, err
	}
	return &Event{Type: EventTypePush, Payload: payload}, nil
}
