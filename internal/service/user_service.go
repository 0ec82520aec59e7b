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
	ErrUserNotFound   = errors.New("user not found")
	ErrFriendNotFound = errors.New("friend not found")
	ErrOwnCode        = errors.New("cannot add yourself as a friend")
	ErrAlreadyFriends = errors.New("already on your friend list")
)

// UserService covers profile edits and the friend-code relation.
type UserService struct {
	userRepo   repository.UserRepository
	dispatcher Dispatcher
	now        func() time.Time
}

func NewUserService(userRepo repository.UserRepository, dispatcher Dispatcher) *UserService {
	return &UserService{
		userRepo:   userRepo,
		dispatcher: dispatcher,
		now:        time.Now,
	}
}

func (s *UserService) GetMe(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

func (s *UserService) EditUsername(ctx context.Context, userID uuid.UUID, username string) (*domain.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	user.Username = username
	user.UpdatedAt = s.now()
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *UserService) UpdateProfileImage(ctx context.Context, userID uuid.UUID, filename string) (*domain.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	user.ProfileImage = filename
	user.UpdatedAt = s.now()
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// AddFriend links two users by the target's friend code. The relation is
// mutual and the target gets a push.
func (s *UserService) AddFriend(ctx context.Context, userID uuid.UUID, code string) (*domain.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	if user.Code == code {
		return nil, ErrOwnCode
	}

	friend, err := s.userRepo.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if friend == nil {
		return nil, ErrFriendNotFound
	}

	already, err := s.userRepo.AreFriends(ctx, userID, friend.ID)
	if err != nil {
		return nil, err
	}
	if already {
		return nil, ErrAlreadyFriends
	}

	if err := s.userRepo.AddFriend(ctx, userID, friend.ID); err != nil {
		return nil, fmt.Errorf("adding friend: %w", err)
	}

	s.dispatcher.Dispatch(domain.PushEvent{
		UserID:  friend.ID,
		Kind:    domain.PushFriendAdded,
		Message: fmt.Sprintf("you were added to %s's friend list", user.Username),
	})
	return user, nil
}

func (s *UserService) ShowFriends(ctx context.Context, userID uuid.UUID) ([]domain.Friend, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	friends, err := s.userRepo.ListFriends(ctx, userID)
	if err != nil {
		return nil, err
	}
	if friends == nil {
		friends = []domain.Friend{}
	}
	return friends, nil
}

func (s *UserService) DeleteFriend(ctx context.Context, userID, friendID uuid.UUID) error {
	linked, err := s.userRepo.AreFriends(ctx, userID, friendID)
	if err != nil {
		return err
	}
	if !linked {
		return ErrFriendNotFound
	}
	return s.userRepo.RemoveFriend(ctx, userID, friendID)
}

func (s *UserService) SearchByCode(ctx context.Context, code string) (*domain.User, error) {
	user, err := s.userRepo.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// SendTestNotif pushes a test notification to the user's own devices.
func (s *UserService) SendTestNotif(ctx context.Context, userID uuid.UUID) error {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrUserNotFound
	}

	s.dispatcher.Dispatch(domain.PushEvent{
		UserID:  userID,
		Kind:    domain.PushTest,
		Message: "test notification",
	})
	return nil
}
