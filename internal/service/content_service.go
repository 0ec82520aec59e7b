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

var ErrInvalidContentType = errors.New("unknown content type")

// missYouFile is the canned payload for the system "miss you" ping.
const missYouFile = "reminderLarge.png"

// ContentService appends items to a widget's timeline. The timeline grows
// append-only; items disappear only when the whole widget does.
type ContentService struct {
	widgetRepo repository.WidgetRepository
	userRepo   repository.UserRepository
	dispatcher Dispatcher
	baseURL    string
	now        func() time.Time
}

func NewContentService(widgetRepo repository.WidgetRepository, userRepo repository.UserRepository, dispatcher Dispatcher, baseURL string) *ContentService {
	return &ContentService{
		widgetRepo: widgetRepo,
		userRepo:   userRepo,
		dispatcher: dispatcher,
		baseURL:    baseURL,
		now:        time.Now,
	}
}

// AddContent appends a caller-supplied item (photo or marker) referencing an
// uploaded file.
func (s *ContentService) AddContent(ctx context.Context, userID, widgetID uuid.UUID, contentType domain.ContentType, filename string) (*domain.Widget, error) {
	// The miss kind is reserved for MissYou; callers never supply it.
	if !contentType.Valid() || contentType == domain.ContentMiss {
		return nil, ErrInvalidContentType
	}
	return s.append(ctx, userID, widgetID, contentType, s.baseURL+"/upload/"+filename,
		"%s sent you a new moment")
}

// MissYou appends the system ping; type and payload are fixed server-side.
func (s *ContentService) MissYou(ctx context.Context, userID, widgetID uuid.UUID) (*domain.Widget, error) {
	return s.append(ctx, userID, widgetID, domain.ContentMiss, s.baseURL+"/upload/"+missYouFile,
		"%s misses you")
}

func (s *ContentService) append(ctx context.Context, userID, widgetID uuid.UUID, contentType domain.ContentType, data, messageFmt string) (*domain.Widget, error) {
	sender, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if sender == nil {
		return nil, ErrUserNotFound
	}

	w, err := s.widgetRepo.GetForMember(ctx, widgetID, userID)
	if err != nil {
		return nil, err
	}
	if w == nil {
		return nil, ErrWidgetNotFound
	}

	item := domain.ContentItem{
		ID:            uuid.New(),
		SenderID:      userID,
		Type:          contentType,
		Data:          data,
		ReactionCount: 0,
		CreatedAt:     s.now(),
	}
	if err := s.widgetRepo.AppendContent(ctx, widgetID, &item); err != nil {
		if errors.Is(err, repository.ErrWidgetGone) {
			return nil, ErrWidgetNotFound
		}
		return nil, fmt.Errorf("appending content: %w", err)
	}
	w.Contents = append(w.Contents, item)

	if other := w.OtherMember(userID); other != nil {
		s.dispatcher.Dispatch(domain.PushEvent{
			UserID:   other.ID,
			Kind:     domain.PushContentNew,
			WidgetID: w.ID,
			Message:  fmt.Sprintf(messageFmt, sender.Username),
		})
	}
	return w, nil
}
