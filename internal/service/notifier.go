package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/enigmateam/lovewidget/internal/domain"
)

// Notifier delivers one push event to a user's devices.
type Notifier interface {
	SendPush(ctx context.Context, event domain.PushEvent) error
}

// OpsBot posts operational notes (signups, logins, deletions) to the team
// chat channel.
type OpsBot interface {
	Announce(ctx context.Context, message string) error
}

// Mailer sends transactional mail.
type Mailer interface {
	SendMail(ctx context.Context, to, subject, body string) error
}

// Dispatcher receives the side-effect list a core operation produced after
// its mutation committed.
type Dispatcher interface {
	Dispatch(events ...domain.PushEvent)
}

// PushDispatcher fans events out to every configured notifier on a background
// goroutine with a bounded deadline. Delivery failures are logged and
// swallowed; they never reach the operation that produced the event.
type PushDispatcher struct {
	notifiers []Notifier
	timeout   time.Duration
	log       *zap.SugaredLogger
}

func NewPushDispatcher(log *zap.SugaredLogger, timeout time.Duration, notifiers ...Notifier) *PushDispatcher {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &PushDispatcher{notifiers: notifiers, timeout: timeout, log: log}
}

func (d *PushDispatcher) Dispatch(events ...domain.PushEvent) {
	if len(events) == 0 {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		for _, evt := range events {
			for _, n := range d.notifiers {
				if err := n.SendPush(ctx, evt); err != nil {
					d.log.Warnw("push delivery failed",
						"kind", evt.Kind, "user_id", evt.UserID, "error", err)
				}
			}
		}
	}()
}
