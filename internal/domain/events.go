package domain

import "github.com/google/uuid"

// Push event kinds delivered to a user's devices.
const (
	PushContentNew    = "widget.content"
	PushReactionNew   = "widget.reaction"
	PushWidgetDeleted = "widget.deleted"
	PushFriendAdded   = "friend.added"
	PushTest          = "test"
)

// PushEvent is a side effect produced by a core operation and handed to the
// dispatcher after the mutation commits. Delivery is best-effort; a failed
// push never fails the operation that produced it.
type PushEvent struct {
	UserID   uuid.UUID `json:"user_id"`
	Kind     string    `json:"kind"`
	WidgetID uuid.UUID `json:"widget_id,omitempty"`
	Message  string    `json:"message"`
}
