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
	ErrWidgetNotFound  = errors.New("widget not found")
	ErrPartnerNotFound = errors.New("partner not found")
	ErrAlreadyMember   = errors.New("user is already a member")
	ErrWidgetFull      = errors.New("widget already has two members")
)

// WidgetService owns widget membership: creation, pairing and the
// delete-or-degrade lifecycle. Members and the solo flag mutate nowhere else.
type WidgetService struct {
	widgetRepo repository.WidgetRepository
	userRepo   repository.UserRepository
	dispatcher Dispatcher
	now        func() time.Time
}

func NewWidgetService(widgetRepo repository.WidgetRepository, userRepo repository.UserRepository, dispatcher Dispatcher) *WidgetService {
	return &WidgetService{
		widgetRepo: widgetRepo,
		userRepo:   userRepo,
		dispatcher: dispatcher,
		now:        time.Now,
	}
}

type CreateWidgetInput struct {
	Name     string `json:"name"`
	FriendID string `json:"friend_id,omitempty"`
}

// Create makes a solo widget, or a paired one when input.FriendID is set.
// Paired creation resolves the partner first and bumps the creator's widget
// counter.
func (s *WidgetService) Create(ctx context.Context, creatorID uuid.UUID, input CreateWidgetInput) (*domain.Widget, error) {
	creator, err := s.userRepo.GetByID(ctx, creatorID)
	if err != nil {
		return nil, err
	}
	if creator == nil {
		return nil, ErrUserNotFound
	}

	now := s.now()
	w := &domain.Widget{
		ID:        uuid.New(),
		Name:      input.Name,
		CreatorID: creatorID,
		CreatedAt: now,
	}

	if input.FriendID == "" {
		w.IsAlone = true
		w.Members = []domain.Member{memberOf(creator, now)}
		if err := s.widgetRepo.Create(ctx, w); err != nil {
			return nil, fmt.Errorf("creating widget: %w", err)
		}
		return w, nil
	}

	friendID, err := uuid.Parse(input.FriendID)
	if err != nil {
		return nil, ErrPartnerNotFound
	}
	friend, err := s.userRepo.GetByID(ctx, friendID)
	if err != nil {
		return nil, err
	}
	if friend == nil {
		return nil, ErrPartnerNotFound
	}

	w.IsAlone = false
	w.Members = []domain.Member{memberOf(creator, now), memberOf(friend, now)}
	if err := s.widgetRepo.Create(ctx, w); err != nil {
		return nil, fmt.Errorf("creating widget: %w", err)
	}
	if err := s.userRepo.IncrementWidgetCount(ctx, creatorID); err != nil {
		return nil, err
	}
	return w, nil
}

// AddMember pairs a second user onto the widget. Only the creator can do
// this; a widget never grows past two members.
func (s *WidgetService) AddMember(ctx context.Context, creatorID, widgetID, userID uuid.UUID) (*domain.Widget, error) {
	w, err := s.widgetRepo.GetByID(ctx, widgetID)
	if err != nil {
		return nil, err
	}
	if w == nil || w.CreatorID != creatorID {
		return nil, ErrWidgetNotFound
	}
	if w.IsMember(userID) {
		return nil, ErrAlreadyMember
	}
	if len(w.Members) >= 2 {
		return nil, ErrWidgetFull
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	now := s.now()
	if err := s.widgetRepo.AddMember(ctx, widgetID, userID, now); err != nil {
		if errors.Is(err, repository.ErrWidgetGone) {
			return nil, ErrWidgetNotFound
		}
		return nil, fmt.Errorf("adding member: %w", err)
	}

	w.Members = append(w.Members, memberOf(user, now))
	w.IsAlone = false
	return w, nil
}

// Delete removes the widget when the requester created it, and degrades it to
// solo otherwise. The other member is notified in both branches.
func (s *WidgetService) Delete(ctx context.Context, requesterID, widgetID uuid.UUID) (*domain.Widget, error) {
	requester, err := s.userRepo.GetByID(ctx, requesterID)
	if err != nil {
		return nil, err
	}
	if requester == nil {
		return nil, ErrUserNotFound
	}

	w, err := s.widgetRepo.GetForMember(ctx, widgetID, requesterID)
	if err != nil {
		return nil, err
	}
	if w == nil {
		return nil, ErrWidgetNotFound
	}

	other := w.OtherMember(requesterID)

	if w.CreatorID == requesterID {
		if err := s.widgetRepo.Delete(ctx, widgetID); err != nil {
			return nil, fmt.Errorf("deleting widget: %w", err)
		}
		if other != nil {
			s.dispatcher.Dispatch(domain.PushEvent{
				UserID:   other.ID,
				Kind:     domain.PushWidgetDeleted,
				WidgetID: w.ID,
				Message:  fmt.Sprintf("%s deleted the widget %q", requester.Username, w.Name),
			})
		}
		return w, nil
	}

	if err := s.widgetRepo.RemoveMember(ctx, widgetID, requesterID); err != nil {
		if errors.Is(err, repository.ErrWidgetGone) {
			return nil, ErrWidgetNotFound
		}
		return nil, fmt.Errorf("leaving widget: %w", err)
	}
	if other != nil {
		s.dispatcher.Dispatch(domain.PushEvent{
			UserID:   other.ID,
			Kind:     domain.PushWidgetDeleted,
			WidgetID: w.ID,
			Message:  fmt.Sprintf("%s left the widget %q", requester.Username, w.Name),
		})
	}

	return s.widgetRepo.GetByID(ctx, widgetID)
}

func memberOf(u *domain.User, joinedAt time.Time) domain.Member {
	return domain.Member{
		ID:           u.ID,
		Username:     u.Username,
		ProfileImage: u.ProfileImage,
		JoinedAt:     joinedAt,
	}
}
