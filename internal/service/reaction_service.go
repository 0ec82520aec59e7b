package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/enigmateam/lovewidget/internal/domain"
	"github.com/enigmateam/lovewidget/internal/repository"
)

var (
	ErrInvalidReactionType = errors.New("unknown reaction type")
	ErrOwnContent          = errors.New("cannot react to your own content")
	ErrContentNotFound     = errors.New("content not found")
)

// ReactionService is the reaction ledger: per-user, per-content, per-type
// toggles plus the denormalized count on each content item. Repeated
// identical calls strictly alternate between adding and removing.
type ReactionService struct {
	widgetRepo repository.WidgetRepository
	userRepo   repository.UserRepository
	dispatcher Dispatcher
	now        func() time.Time
}

func NewReactionService(widgetRepo repository.WidgetRepository, userRepo repository.UserRepository, dispatcher Dispatcher) *ReactionService {
	return &ReactionService{
		widgetRepo: widgetRepo,
		userRepo:   userRepo,
		dispatcher: dispatcher,
		now:        time.Now,
	}
}

// Toggle adds the reaction if absent, removes it if present. Only the add
// branch notifies, and it notifies the widget's other member.
func (s *ReactionService) Toggle(ctx context.Context, userID, widgetID, contentID uuid.UUID, reactionType domain.ReactionType) (*domain.Widget, error) {
	if !reactionType.Valid() {
		return nil, ErrInvalidReactionType
	}

	sender, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if sender == nil {
		return nil, ErrUserNotFound
	}

	w, err := s.widgetRepo.GetForMemberWithContent(ctx, widgetID, userID, contentID)
	if err != nil {
		return nil, err
	}
	if w == nil {
		return nil, ErrWidgetNotFound
	}

	item := w.ContentByID(contentID)
	if item == nil {
		return nil, ErrContentNotFound
	}
	if item.SenderID == userID {
		return nil, ErrOwnContent
	}

	reaction := domain.ReactionItem{
		SenderID:       userID,
		ContentID:      contentID,
		Type:           reactionType,
		CreatedAt:      s.now(),
		SenderUsername: sender.Username,
	}
	added, err := s.widgetRepo.ToggleReaction(ctx, widgetID, &reaction)
	if errors.Is(err, repository.ErrWidgetGone) {
		return nil, ErrWidgetNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("toggling reaction: %w", err)
	}

	if added {
		item.ReactionCount++
		w.Reactions = append(w.Reactions, reaction)

		if other := w.OtherMember(userID); other != nil {
			s.dispatcher.Dispatch(domain.PushEvent{
				UserID:   other.ID,
				Kind:     domain.PushReactionNew,
				WidgetID: w.ID,
				Message:  fmt.Sprintf("%s reacted to a moment in %q", sender.Username, w.Name),
			})
		}
		return w, nil
	}

	item.ReactionCount--
	w.Reactions = removeReaction(w.Reactions, reaction)
	return w, nil
}

// ShowReactions lists the ledger entries on one content item, sender names
// resolved.
func (s *ReactionService) ShowReactions(ctx context.Context, userID, widgetID, contentID uuid.UUID) ([]domain.ReactionItem, error) {
	w, err := s.widgetRepo.GetForMemberWithContent(ctx, widgetID, userID, contentID)
	if err != nil {
		return nil, err
	}
	if w == nil {
		return nil, ErrWidgetNotFound
	}
	reactions := w.ReactionsFor(contentID)
	if reactions == nil {
		reactions = []domain.ReactionItem{}
	}
	return reactions, nil
}

func removeReaction(reactions []domain.ReactionItem, target domain.ReactionItem) []domain.ReactionItem {
	out := reactions[:0]
	for _, r := range reactions {
		if r.SenderID == target.SenderID && r.ContentID == target.ContentID && r.Type == target.Type {
			continue
		}
		out = append(out, r)
	}
	return out
}
