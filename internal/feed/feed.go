package feed

import (
	"context"

	"github.com/emahelps/sms-hub/internal/model"
	"go.uber.org/zap"
)

// ConversationLister is the read surface the feed needs from the
// conversation store: the ordered query and the unordered fallback.
type ConversationLister interface {
	ListByRecency(ctx context.Context) ([]model.Conversation, error)
	List(ctx context.Context) ([]model.Conversation, error)
}

type MessageLister interface {
	ListByConversation(ctx context.Context, phone string, limit int) ([]model.Message, error)
}

// Feed is the read-side projection behind the admin messaging UI. Each
// subscription emits a full snapshot immediately and again after every
// change event, until the stop function runs or ctx is cancelled.
// Availability beats strict ordering here: if the ordered conversation
// query fails, the feed degrades to an unordered scan instead of
// surfacing an error.
type Feed struct {
	convs  ConversationLister
	msgs   MessageLister
	events Events
	log    *zap.Logger
}

func New(convs ConversationLister, msgs MessageLister, events Events, log *zap.Logger) *Feed {
	return &Feed{convs: convs, msgs: msgs, events: events, log: log}
}

// Conversations streams conversation-list snapshots ordered by
// recency (degraded: unordered).
func (f *Feed) Conversations(ctx context.Context) (<-chan []model.Conversation, func()) {
	evCh, stopEv := f.events.Subscribe(ctx)
	out := make(chan []model.Conversation, 1)

	go func() {
		defer close(out)

		f.emitConversations(ctx, out)
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-evCh:
				if !ok {
					return
				}
				f.emitConversations(ctx, out)
			}
		}
	}()

	return out, stopEv
}

// Messages streams chronological message snapshots for one
// conversation. Events for other phones are ignored.
func (f *Feed) Messages(ctx context.Context, phone string) (<-chan []model.Message, func()) {
	evCh, stopEv := f.events.Subscribe(ctx)
	out := make(chan []model.Message, 1)

	go func() {
		defer close(out)

		f.emitMessages(ctx, out, phone)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-evCh:
				if !ok {
					return
				}
				if ev.Phone != "" && ev.Phone != phone {
					continue
				}
				f.emitMessages(ctx, out, phone)
			}
		}
	}()

	return out, stopEv
}

func (f *Feed) emitConversations(ctx context.Context, out chan []model.Conversation) {
	snap, err := f.convs.ListByRecency(ctx)
	if err != nil {
		f.log.Warn("feed: ordered conversation query failed, serving unordered scan", zap.Error(err))
		snap, err = f.convs.List(ctx)
		if err != nil {
			f.log.Error("feed: conversation fallback scan failed", zap.Error(err))
			return
		}
	}
	deliver(ctx, out, snap)
}

func (f *Feed) emitMessages(ctx context.Context, out chan []model.Message, phone string) {
	snap, err := f.msgs.ListByConversation(ctx, phone, 0)
	if err != nil {
		f.log.Error("feed: message query failed", zap.String("phone", phone), zap.Error(err))
		return
	}
	deliver(ctx, out, snap)
}

// deliver coalesces snapshots: a consumer that has not drained the
// previous snapshot gets only the newest one. Single producer per
// channel, so the drain is race-free.
func deliver[T any](ctx context.Context, out chan []T, snap []T) {
	select {
	case out <- snap:
		return
	default:
	}
	select {
	case <-out:
	default:
	}
	select {
	case out <- snap:
	case <-ctx.Done():
	}
}
