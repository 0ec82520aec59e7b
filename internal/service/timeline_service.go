package service

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/enigmateam/lovewidget/internal/domain"
	"github.com/enigmateam/lovewidget/internal/repository"
)

// dayLabelFormat renders a day group header, e.g. "Jan 2, 2024".
const dayLabelFormat = "Jan 2, 2006"

// WidgetSummary is one home-feed entry: the partner's name (empty for a solo
// widget) and the latest content item someone else sent. Contents is the item
// or an empty object when the partner has sent nothing yet.
type WidgetSummary struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	Member   string    `json:"member"`
	Contents any       `json:"contents"`
}

// DayGroup is one calendar day of history, most recent items first.
type DayGroup struct {
	ShowTime string               `json:"showTime"`
	Data     []domain.ContentItem `json:"data"`
}

// TimelineService derives read views from loaded widget aggregates. It never
// mutates anything.
type TimelineService struct {
	widgetRepo repository.WidgetRepository
}

func NewTimelineService(widgetRepo repository.WidgetRepository) *TimelineService {
	return &TimelineService{widgetRepo: widgetRepo}
}

// Home returns one summary per widget the user belongs to.
func (s *TimelineService) Home(ctx context.Context, userID uuid.UUID) ([]WidgetSummary, error) {
	widgets, err := s.widgetRepo.ListByMember(ctx, userID)
	if err != nil {
		return nil, err
	}

	summaries := make([]WidgetSummary, 0, len(widgets))
	for i := range widgets {
		summaries = append(summaries, summarize(&widgets[i], userID))
	}
	return summaries, nil
}

// Single returns the summary of one widget: the latest content item authored
// by the other member, selected exactly as in Home.
func (s *TimelineService) Single(ctx context.Context, userID, widgetID uuid.UUID) (*WidgetSummary, error) {
	w, err := s.widgetRepo.GetForMember(ctx, widgetID, userID)
	if err != nil {
		return nil, err
	}
	if w == nil {
		return nil, ErrWidgetNotFound
	}
	summary := summarize(w, userID)
	return &summary, nil
}

// AppHistory returns the full timeline (the requester's items included),
// sorted newest first and grouped by the stored timestamp's calendar day.
// Groups appear in the order the descending scan produces them, so the most
// recent day comes first.
func (s *TimelineService) AppHistory(ctx context.Context, userID, widgetID uuid.UUID) ([]DayGroup, error) {
	w, err := s.widgetRepo.GetForMember(ctx, widgetID, userID)
	if err != nil {
		return nil, err
	}
	if w == nil {
		return nil, ErrWidgetNotFound
	}

	contents := make([]domain.ContentItem, len(w.Contents))
	copy(contents, w.Contents)
	sort.SliceStable(contents, func(i, j int) bool {
		return contents[i].CreatedAt.After(contents[j].CreatedAt)
	})

	groups := []DayGroup{}
	index := map[string]int{}
	for _, item := range contents {
		day := item.CreatedAt.UTC()
		key := day.Format("2006-01-02")
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, DayGroup{ShowTime: day.Format(dayLabelFormat)})
		}
		groups[i].Data = append(groups[i].Data, item)
	}
	return groups, nil
}

// WidgetHistory returns the other member's items in insertion order. Unlike
// AppHistory this view is deliberately unsorted; the widget client renders
// the timeline as appended.
func (s *TimelineService) WidgetHistory(ctx context.Context, userID, widgetID uuid.UUID) ([]domain.ContentItem, error) {
	w, err := s.widgetRepo.GetForMember(ctx, widgetID, userID)
	if err != nil {
		return nil, err
	}
	if w == nil {
		return nil, ErrWidgetNotFound
	}

	contents := []domain.ContentItem{}
	for _, item := range w.Contents {
		if item.SenderID != userID {
			contents = append(contents, item)
		}
	}
	return contents, nil
}

func summarize(w *domain.Widget, userID uuid.UUID) WidgetSummary {
	summary := WidgetSummary{
		ID:       w.ID,
		Name:     w.Name,
		Contents: struct{}{},
	}
	if other := w.OtherMember(userID); other != nil {
		summary.Member = other.Username
	}

	var latest *domain.ContentItem
	for i := range w.Contents {
		item := &w.Contents[i]
		if item.SenderID == userID {
			continue
		}
		if latest == nil || item.CreatedAt.After(latest.CreatedAt) {
			latest = item
		}
	}
	if latest != nil {
		summary.Contents = *latest
	}
	return summary
}
