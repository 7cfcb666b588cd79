package dispatch

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/i474232898/weather-bot/internal/conversation"
	"github.com/i474232898/weather-bot/internal/debounce"
)

// Handler processes one conversation event.
type Handler interface {
	Handle(ctx context.Context, ev conversation.Event)
}

// Inbox is the entry point for decoded events: debounce, then per-user
// dispatch to the handler.
type Inbox struct {
	guard   *debounce.Guard
	pool    *Pool
	handler Handler
	log     *logrus.Entry
}

func NewInbox(guard *debounce.Guard, pool *Pool, handler Handler) *Inbox {
	return &Inbox{
		guard:   guard,
		pool:    pool,
		handler: handler,
		log:     logrus.WithField("component", "inbox"),
	}
}

// Deliver reports whether ev was accepted for processing. Debounced events
// are dropped before they reach the queue; the caller still owns any
// callback acknowledgement for a dropped event.
func (in *Inbox) Deliver(ev conversation.Event) bool {
	if !in.guard.Admit(ev.UserID, ev.At) {
		in.log.WithField("user_id", ev.UserID).Debugf("[INBOX] debounced %s", ev.Kind)
		return false
	}

	return in.pool.TryDispatch(Job{
		UserID: ev.UserID,
		Handler: func(ctx context.Context) error {
			in.handler.Handle(ctx, ev)
			return nil
		},
	})
}
