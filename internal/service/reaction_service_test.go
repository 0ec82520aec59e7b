package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/enigmateam/lovewidget/internal/domain"
)

type reactionFixture struct {
	svc        *ReactionService
	widgetRepo *memWidgetRepo
	dispatcher *recorderDispatcher
	alice      *domain.User
	bob        *domain.User
	widgetID   uuid.UUID
	contentID  uuid.UUID
}

// newReactionFixture builds a paired widget with one content item sent by bob.
func newReactionFixture(t *testing.T) *reactionFixture {
	t.Helper()

	alice := newTestUser("alice")
	bob := newTestUser("bob")
	userRepo := newMemUserRepo(alice, bob)
	widgetRepo := newMemWidgetRepo(userRepo)
	dispatcher := &recorderDispatcher{}

	contentID := uuid.New()
	w := &domain.Widget{
		ID:        uuid.New(),
		Name:      "us",
		CreatorID: alice.ID,
		Members: []domain.Member{
			{ID: alice.ID, JoinedAt: testTime},
			{ID: bob.ID, JoinedAt: testTime},
		},
		Contents: []domain.ContentItem{
			{ID: contentID, SenderID: bob.ID, Type: domain.ContentPhoto, Data: "photo.png", CreatedAt: testTime},
		},
		CreatedAt: testTime,
	}
	if err := widgetRepo.Create(context.Background(), w); err != nil {
		t.Fatalf("seeding widget: %v", err)
	}

	svc := NewReactionService(widgetRepo, userRepo, dispatcher)
	svc.now = func() time.Time { return testTime }

	return &reactionFixture{
		svc:        svc,
		widgetRepo: widgetRepo,
		dispatcher: dispatcher,
		alice:      alice,
		bob:        bob,
		widgetID:   w.ID,
		contentID:  contentID,
	}
}

func TestToggleAddsReaction(t *testing.T) {
	f := newReactionFixture(t)

	w, err := f.svc.Toggle(context.Background(), f.alice.ID, f.widgetID, f.contentID, domain.ReactionLove)
	if err != nil {
		t.Fatalf("Toggle: %v", err)
	}

	item := w.ContentByID(f.contentID)
	if item.ReactionCount != 1 {
		t.Errorf("count = %d, want 1", item.ReactionCount)
	}
	if len(w.Reactions) != 1 || w.Reactions[0].Type != domain.ReactionLove {
		t.Errorf("unexpected ledger: %+v", w.Reactions)
	}

	events := f.dispatcher.all()
	if len(events) != 1 {
		t.Fatalf("events = %d, want 1", len(events))
	}
	if events[0].UserID != f.bob.ID || events[0].Kind != domain.PushReactionNew {
		t.Errorf("unexpected event: %+v", events[0])
	}
}

func TestToggleTwiceRemovesReaction(t *testing.T) {
	f := newReactionFixture(t)

	if _, err := f.svc.Toggle(context.Background(), f.alice.ID, f.widgetID, f.contentID, domain.ReactionLove); err != nil {
		t.Fatalf("first toggle: %v", err)
	}
	w, err := f.svc.Toggle(context.Background(), f.alice.ID, f.widgetID, f.contentID, domain.ReactionLove)
	if err != nil {
		t.Fatalf("second toggle: %v", err)
	}

	item := w.ContentByID(f.contentID)
	if item.ReactionCount != 0 {
		t.Errorf("count = %d, want 0", item.ReactionCount)
	}
	if len(w.Reactions) != 0 {
		t.Errorf("ledger should be empty, got %+v", w.Reactions)
	}

	// Only the add notifies.
	if events := f.dispatcher.all(); len(events) != 1 {
		t.Errorf("events = %d, want 1", len(events))
	}
}

func TestToggleDistinctTypesCoexist(t *testing.T) {
	f := newReactionFixture(t)

	if _, err := f.svc.Toggle(context.Background(), f.alice.ID, f.widgetID, f.contentID, domain.ReactionLove); err != nil {
		t.Fatalf("love: %v", err)
	}
	w, err := f.svc.Toggle(context.Background(), f.alice.ID, f.widgetID, f.contentID, domain.ReactionHaha)
	if err != nil {
		t.Fatalf("haha: %v", err)
	}

	if item := w.ContentByID(f.contentID); item.ReactionCount != 2 {
		t.Errorf("count = %d, want 2", item.ReactionCount)
	}
	if len(w.Reactions) != 2 {
		t.Errorf("ledger = %d entries, want 2", len(w.Reactions))
	}
}

func TestToggleOwnContent(t *testing.T) {
	f := newReactionFixture(t)

	_, err := f.svc.Toggle(context.Background(), f.bob.ID, f.widgetID, f.contentID, domain.ReactionLike)
	if !errors.Is(err, ErrOwnContent) {
		t.Fatalf("err = %v, want ErrOwnContent", err)
	}
}

func TestToggleInvalidType(t *testing.T) {
	f := newReactionFixture(t)

	_, err := f.svc.Toggle(context.Background(), f.alice.ID, f.widgetID, f.contentID, domain.ReactionType("wow"))
	if !errors.Is(err, ErrInvalidReactionType) {
		t.Fatalf("err = %v, want ErrInvalidReactionType", err)
	}
}

func TestToggleContentMissing(t *testing.T) {
	f := newReactionFixture(t)

	_, err := f.svc.Toggle(context.Background(), f.alice.ID, f.widgetID, uuid.New(), domain.ReactionLike)
	if !errors.Is(err, ErrWidgetNotFound) {
		t.Fatalf("err = %v, want ErrWidgetNotFound", err)
	}
}

func TestToggleAfterConcurrentDelete(t *testing.T) {
	f := newReactionFixture(t)

	svc := NewReactionService(&staleWidgetRepo{f.widgetRepo}, newMemUserRepo(f.alice, f.bob), &recorderDispatcher{})
	svc.now = func() time.Time { return testTime }

	_, err := svc.Toggle(context.Background(), f.alice.ID, f.widgetID, f.contentID, domain.ReactionLike)
	if !errors.Is(err, ErrWidgetNotFound) {
		t.Fatalf("err = %v, want ErrWidgetNotFound", err)
	}
}

func TestShowReactions(t *testing.T) {
	f := newReactionFixture(t)

	if _, err := f.svc.Toggle(context.Background(), f.alice.ID, f.widgetID, f.contentID, domain.ReactionSad); err != nil {
		t.Fatalf("Toggle: %v", err)
	}

	reactions, err := f.svc.ShowReactions(context.Background(), f.bob.ID, f.widgetID, f.contentID)
	if err != nil {
		t.Fatalf("ShowReactions: %v", err)
	}
	if len(reactions) != 1 || reactions[0].SenderID != f.alice.ID || reactions[0].Type != domain.ReactionSad {
		t.Errorf("unexpected reactions: %+v", reactions)
	}
}

func TestShowReactionsEmpty(t *testing.T) {
	f := newReactionFixture(t)

	reactions, err := f.svc.ShowReactions(context.Background(), f.alice.ID, f.widgetID, f.contentID)
	if err != nil {
		t.Fatalf("ShowReactions: %v", err)
	}
	if reactions == nil {
		t.Fatal("reactions must be an empty slice, not nil")
	}
	if len(reactions) != 0 {
		t.Errorf("reactions = %d, want 0", len(reactions))
	}
}
