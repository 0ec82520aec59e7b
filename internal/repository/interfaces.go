package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/enigmateam/lovewidget/internal/domain"
)

// ErrWidgetGone reports that a mutation's target widget disappeared between
// the caller's read and the store's lock, e.g. a concurrent creator delete.
var ErrWidgetGone = errors.New("widget no longer exists")

// UserRepository is the user directory: identity, profile attributes and the
// mutual friend relation. Lookups return (nil, nil) when nothing matches.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByCode(ctx context.Context, code string) (*domain.User, error)
	Update(ctx context.Context, user *domain.User) error
	Delete(ctx context.Context, id uuid.UUID) error
	IncrementWidgetCount(ctx context.Context, id uuid.UUID) error

	AddFriend(ctx context.Context, userID, friendID uuid.UUID) error
	RemoveFriend(ctx context.Context, userID, friendID uuid.UUID) error
	AreFriends(ctx context.Context, userID, friendID uuid.UUID) (bool, error)
	ListFriends(ctx context.Context, userID uuid.UUID) ([]domain.Friend, error)
}

// WidgetRepository is the widget aggregate store. Reads return the full
// aggregate with member display attributes resolved; lookups return
// (nil, nil) when the widget does not exist or the predicate fails.
//
// Every mutating method is atomic per widget: concurrent appends and
// reaction toggles against the same widget serialize inside the store, and a
// caller that aborts mid-call never leaves partial state visible.
type WidgetRepository interface {
	Create(ctx context.Context, widget *domain.Widget) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Widget, error)
	// GetForMember applies the membership predicate: nil unless userID is a
	// current member.
	GetForMember(ctx context.Context, id, userID uuid.UUID) (*domain.Widget, error)
	// GetForMemberWithContent additionally requires the widget to contain
	// contentID.
	GetForMemberWithContent(ctx context.Context, id, userID, contentID uuid.UUID) (*domain.Widget, error)
	ListByMember(ctx context.Context, userID uuid.UUID) ([]domain.Widget, error)

	AddMember(ctx context.Context, widgetID, userID uuid.UUID, joinedAt time.Time) error
	// RemoveMember pulls one member and recomputes the solo flag from the
	// remaining count.
	RemoveMember(ctx context.Context, widgetID, userID uuid.UUID) error
	Delete(ctx context.Context, id uuid.UUID) error
	// RemoveUserFromAll pulls the user out of every widget, degrading
	// two-member widgets to solo and deleting emptied ones.
	RemoveUserFromAll(ctx context.Context, userID uuid.UUID) error

	AppendContent(ctx context.Context, widgetID uuid.UUID, item *domain.ContentItem) error
	// ToggleReaction inserts the reaction if absent or removes it if present,
	// adjusting the content item's denormalized count in the same atomic
	// operation. Returns true when the reaction was added.
	ToggleReaction(ctx context.Context, widgetID uuid.UUID, reaction *domain.ReactionItem) (bool, error)
}

// ResetCodeRepository stores password-reset secrets with a TTL.
type ResetCodeRepository interface {
	Set(ctx context.Context, email, hash string, ttl time.Duration) error
	// Get returns "" when no unexpired entry exists.
	Get(ctx context.Context, email string) (string, error)
	Delete(ctx context.Context, email string) error
}
