package ws

import (
	"context"

	"github.com/enigmateam/lovewidget/internal/domain"
)

// HubNotifier implements service.Notifier over the WebSocket Hub, giving
// foregrounded apps their pushes without a provider round trip.
type HubNotifier struct {
	hub *Hub
}

func NewHubNotifier(hub *Hub) *HubNotifier {
	return &HubNotifier{hub: hub}
}

func (n *HubNotifier) SendPush(ctx context.Context, event domain.PushEvent) error {
	evt, err := NewPushEvent(event)
	if err != nil {
		return err
	}
	n.hub.SendToUser(event.UserID, evt)
	return nil
}
