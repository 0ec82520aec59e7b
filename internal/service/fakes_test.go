package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/enigmateam/lovewidget/internal/domain"
	"github.com/enigmateam/lovewidget/internal/repository"
)

// In-memory repository fakes shared by the service tests. They honor the
// (nil, nil) not-found convention of the real stores.

type memUserRepo struct {
	mu    sync.Mutex
	users map[uuid.UUID]*domain.User
	// friends holds both directions of every link.
	friends map[uuid.UUID]map[uuid.UUID]bool
}

func newMemUserRepo(users ...*domain.User) *memUserRepo {
	r := &memUserRepo{
		users:   make(map[uuid.UUID]*domain.User),
		friends: make(map[uuid.UUID]map[uuid.UUID]bool),
	}
	for _, u := range users {
		cp := *u
		r.users[u.ID] = &cp
	}
	return r
}

func (r *memUserRepo) Create(ctx context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *user
	r.users[user.ID] = &cp
	return nil
}

func (r *memUserRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (r *memUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email != nil && *u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memUserRepo) GetByCode(ctx context.Context, code string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Code == code {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memUserRepo) Update(ctx context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *user
	r.users[user.ID] = &cp
	return nil
}

func (r *memUserRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.users, id)
	return nil
}

func (r *memUserRepo) IncrementWidgetCount(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok {
		u.WidgetCount++
	}
	return nil
}

func (r *memUserRepo) AddFriend(ctx context.Context, userID, friendID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.link(userID, friendID)
	r.link(friendID, userID)
	return nil
}

func (r *memUserRepo) link(a, b uuid.UUID) {
	if r.friends[a] == nil {
		r.friends[a] = make(map[uuid.UUID]bool)
	}
	r.friends[a][b] = true
}

func (r *memUserRepo) RemoveFriend(ctx context.Context, userID, friendID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.friends[userID], friendID)
	delete(r.friends[friendID], userID)
	return nil
}

func (r *memUserRepo) AreFriends(ctx context.Context, userID, friendID uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.friends[userID][friendID], nil
}

func (r *memUserRepo) ListFriends(ctx context.Context, userID uuid.UUID) ([]domain.Friend, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Friend
	for id := range r.friends[userID] {
		if u, ok := r.users[id]; ok {
			out = append(out, domain.Friend{ID: u.ID, Username: u.Username, ProfileImage: u.ProfileImage})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

type memWidgetRepo struct {
	mu      sync.Mutex
	widgets map[uuid.UUID]*domain.Widget
	users   *memUserRepo
}

func newMemWidgetRepo(users *memUserRepo) *memWidgetRepo {
	return &memWidgetRepo{
		widgets: make(map[uuid.UUID]*domain.Widget),
		users:   users,
	}
}

func (r *memWidgetRepo) Create(ctx context.Context, widget *domain.Widget) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.widgets[widget.ID] = cloneWidget(widget)
	return nil
}

func (r *memWidgetRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Widget, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.widgets[id]
	if !ok {
		return nil, nil
	}
	return r.resolve(w), nil
}

func (r *memWidgetRepo) GetForMember(ctx context.Context, id, userID uuid.UUID) (*domain.Widget, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.widgets[id]
	if !ok || !w.IsMember(userID) {
		return nil, nil
	}
	return r.resolve(w), nil
}

func (r *memWidgetRepo) GetForMemberWithContent(ctx context.Context, id, userID, contentID uuid.UUID) (*domain.Widget, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.widgets[id]
	if !ok || !w.IsMember(userID) || w.ContentByID(contentID) == nil {
		return nil, nil
	}
	return r.resolve(w), nil
}

func (r *memWidgetRepo) ListByMember(ctx context.Context, userID uuid.UUID) ([]domain.Widget, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Widget
	for _, w := range r.widgets {
		if w.IsMember(userID) {
			out = append(out, *r.resolve(w))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *memWidgetRepo) AddMember(ctx context.Context, widgetID, userID uuid.UUID, joinedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.widgets[widgetID]
	if !ok {
		return repository.ErrWidgetGone
	}
	w.Members = append(w.Members, domain.Member{ID: userID, JoinedAt: joinedAt})
	w.IsAlone = len(w.Members) == 1
	return nil
}

func (r *memWidgetRepo) RemoveMember(ctx context.Context, widgetID, userID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.widgets[widgetID]
	if !ok {
		return repository.ErrWidgetGone
	}
	members := w.Members[:0]
	for _, m := range w.Members {
		if m.ID != userID {
			members = append(members, m)
		}
	}
	w.Members = members
	w.IsAlone = len(w.Members) == 1
	return nil
}

func (r *memWidgetRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.widgets, id)
	return nil
}

func (r *memWidgetRepo) RemoveUserFromAll(ctx context.Context, userID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, w := range r.widgets {
		if !w.IsMember(userID) {
			continue
		}
		members := w.Members[:0]
		for _, m := range w.Members {
			if m.ID != userID {
				members = append(members, m)
			}
		}
		w.Members = members
		switch len(w.Members) {
		case 0:
			delete(r.widgets, id)
		case 1:
			w.IsAlone = true
		}
	}
	return nil
}

func (r *memWidgetRepo) AppendContent(ctx context.Context, widgetID uuid.UUID, item *domain.ContentItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.widgets[widgetID]
	if !ok {
		return repository.ErrWidgetGone
	}
	w.Contents = append(w.Contents, *item)
	return nil
}

func (r *memWidgetRepo) ToggleReaction(ctx context.Context, widgetID uuid.UUID, reaction *domain.ReactionItem) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.widgets[widgetID]
	if !ok {
		return false, repository.ErrWidgetGone
	}
	item := w.ContentByID(reaction.ContentID)

	for i, existing := range w.Reactions {
		if existing.SenderID == reaction.SenderID && existing.ContentID == reaction.ContentID && existing.Type == reaction.Type {
			w.Reactions = append(w.Reactions[:i], w.Reactions[i+1:]...)
			if item.ReactionCount > 0 {
				item.ReactionCount--
			}
			return false, nil
		}
	}

	w.Reactions = append(w.Reactions, *reaction)
	item.ReactionCount++
	return true, nil
}

// resolve fills member display attributes the way the real store's join does.
func (r *memWidgetRepo) resolve(w *domain.Widget) *domain.Widget {
	cp := cloneWidget(w)
	if r.users == nil {
		return cp
	}
	r.users.mu.Lock()
	defer r.users.mu.Unlock()
	for i := range cp.Members {
		if u, ok := r.users.users[cp.Members[i].ID]; ok {
			cp.Members[i].Username = u.Username
			cp.Members[i].ProfileImage = u.ProfileImage
		}
	}
	return cp
}

func cloneWidget(w *domain.Widget) *domain.Widget {
	cp := *w
	cp.Members = append([]domain.Member(nil), w.Members...)
	cp.Contents = append([]domain.ContentItem(nil), w.Contents...)
	cp.Reactions = append([]domain.ReactionItem(nil), w.Reactions...)
	return &cp
}

// staleWidgetRepo serves reads normally but fails every mutation the way the
// store does when the widget row vanished between the read and the lock.
type staleWidgetRepo struct {
	*memWidgetRepo
}

func (r *staleWidgetRepo) AddMember(ctx context.Context, widgetID, userID uuid.UUID, joinedAt time.Time) error {
	return repository.ErrWidgetGone
}

func (r *staleWidgetRepo) AppendContent(ctx context.Context, widgetID uuid.UUID, item *domain.ContentItem) error {
	return repository.ErrWidgetGone
}

func (r *staleWidgetRepo) ToggleReaction(ctx context.Context, widgetID uuid.UUID, reaction *domain.ReactionItem) (bool, error) {
	return false, repository.ErrWidgetGone
}

// memResetRepo ignores TTLs; tests expire entries by deleting them.
type memResetRepo struct {
	mu    sync.Mutex
	codes map[string]string
}

func newMemResetRepo() *memResetRepo {
	return &memResetRepo{codes: make(map[string]string)}
}

func (r *memResetRepo) Set(ctx context.Context, email, hash string, ttl time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.codes[email] = hash
	return nil
}

func (r *memResetRepo) Get(ctx context.Context, email string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.codes[email], nil
}

func (r *memResetRepo) Delete(ctx context.Context, email string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.codes, email)
	return nil
}

// recorderDispatcher captures dispatched events synchronously so tests can
// assert on them without sleeping.
type recorderDispatcher struct {
	mu     sync.Mutex
	events []domain.PushEvent
}

func (d *recorderDispatcher) Dispatch(events ...domain.PushEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, events...)
}

func (d *recorderDispatcher) all() []domain.PushEvent {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]domain.PushEvent(nil), d.events...)
}

type recorderMailer struct {
	mu   sync.Mutex
	to   []string
	body []string
	err  error
}

func (m *recorderMailer) SendMail(ctx context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.to = append(m.to, to)
	m.body = append(m.body, body)
	return nil
}

type noopBot struct{}

func (noopBot) Announce(ctx context.Context, message string) error { return nil }

func strPtr(s string) *string { return &s }
