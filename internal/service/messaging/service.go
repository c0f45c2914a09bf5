package messaging

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/emahelps/sms-hub/internal/feed"
	"github.com/emahelps/sms-hub/internal/metrics"
	"github.com/emahelps/sms-hub/internal/model"
	"github.com/emahelps/sms-hub/internal/phone"
	"github.com/emahelps/sms-hub/internal/provider"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

var (
	// ErrDuplicate marks a webhook retry of an already-logged provider
	// message. Callers treat it as success (nothing to redo).
	ErrDuplicate = errors.New("messaging: duplicate provider message")
	ErrSendFailed = errors.New("messaging: provider send failed")
)

// ConversationStore is the write surface of the conversation
// aggregate. RecordInbound must be atomic (increment + preview in one
// step); Upsert is a field-level merge.
type ConversationStore interface {
	Upsert(ctx context.Context, tx *sqlx.Tx, phone string, patch model.ConversationPatch) error
	RecordInbound(ctx context.Context, phone string, preview model.MessagePreview) error
	MarkRead(ctx context.Context, phone string) error
}

// MessageLog is the append-only history.
type MessageLog interface {
	Append(ctx context.Context, tx *sqlx.Tx, m model.Message) (model.Message, bool, error)
}

// Archive receives a best-effort reporting copy of every message.
type Archive interface {
	Insert(ctx context.Context, m model.Message) error
}

// Inbound is one provider webhook delivery.
type Inbound struct {
	From        string
	To          string // nominal recipient, audit only
	Body        string
	ProviderSID string
}

// Service owns the two message write paths: provider webhooks in,
// admin/system sends out. Both build their conversation key through
// the phone canonicalizer and nothing else.
type Service struct {
	convs    ConversationStore
	msgs     MessageLog
	archive  Archive // nil disables archiving
	provider provider.Provider
	events   feed.Publisher
	log      *zap.Logger
}

func New(
	convs ConversationStore,
	msgs MessageLog,
	archive Archive,
	prov provider.Provider,
	events feed.Publisher,
	log *zap.Logger,
) *Service {
	return &Service{
		convs:    convs,
		msgs:     msgs,
		archive:  archive,
		provider: prov,
		events:   events,
		log:      log,
	}
}

// Inbound logs a received SMS and bumps the conversation's unread
// counter. The sender must canonicalize strictly — a malformed sender
// must never become a conversation key. Retried webhook deliveries
// (same provider sid) return ErrDuplicate without touching the
// counter.
func (s *Service) Inbound(ctx context.Context, in Inbound) (model.Message, error) {
	key, err := phone.CanonicalizeStrict(in.From)
	if err != nil {
		return model.Message{}, fmt.Errorf("inbound sender: %w", err)
	}

	sid := in.ProviderSID
	msg := model.Message{
		Phone:     key,
		Body:      in.Body,
		Direction: model.DirectionInbound,
	}
	if sid != "" {
		msg.ProviderSID = &sid
	}

	msg, inserted, err := s.msgs.Append(ctx, nil, msg)
	if err != nil {
		metrics.MessagesTotal.WithLabelValues("inbound", "error").Inc()
		return model.Message{}, fmt.Errorf("append inbound: %w", err)
	}
	if !inserted {
		s.log.Info("inbound webhook retry ignored",
			zap.String("phone", key), zap.String("provider_sid", sid))
		metrics.MessagesTotal.WithLabelValues("inbound", "duplicate").Inc()
		return msg, ErrDuplicate
	}

	if err := s.convs.RecordInbound(ctx, key, model.MessagePreview{
		Body:      msg.Body,
		Direction: model.DirectionInbound,
		SentAt:    msg.SentAt,
	}); err != nil {
		metrics.MessagesTotal.WithLabelValues("inbound", "error").Inc()
		return model.Message{}, fmt.Errorf("record inbound: %w", err)
	}

	metrics.MessagesTotal.WithLabelValues("inbound", "ok").Inc()
	s.fanout(msg)

	return msg, nil
}

// Send delivers an admin/system message through the provider, then
// records it. Nothing is written when the provider refuses: there is
// no local trace of a message that was never delivered. The sender's
// own message does not bump the unread counter.
func (s *Service) Send(ctx context.Context, toRaw, body, sentBy string) (model.Message, error) {
	key, err := phone.CanonicalizeStrict(toRaw)
	if err != nil {
		return model.Message{}, fmt.Errorf("send target: %w", err)
	}

	sid, err := s.provider.Send(ctx, key, body)
	if err != nil {
		metrics.MessagesTotal.WithLabelValues("outbound", "provider_error").Inc()
		return model.Message{}, fmt.Errorf("%w: %w", ErrSendFailed, err)
	}

	msg := model.Message{
		Phone:     key,
		Body:      body,
		Direction: model.DirectionOutbound,
	}
	if sentBy != "" {
		msg.SentBy = &sentBy
	}
	if sid != "" {
		msg.ProviderSID = &sid
	}

	// The provider accepted the message; from here the local write
	// must complete even if the caller went away.
	msg, _, err = s.msgs.Append(context.WithoutCancel(ctx), nil, msg)
	if err != nil {
		metrics.MessagesTotal.WithLabelValues("outbound", "error").Inc()
		return model.Message{}, fmt.Errorf("append outbound: %w", err)
	}

	dir := model.DirectionOutbound
	status := model.ConversationActive
	if err := s.convs.Upsert(context.WithoutCancel(ctx), nil, key, model.ConversationPatch{
		LastMessage:          &msg.Body,
		LastMessageDirection: &dir,
		LastMessageAt:        &msg.SentAt,
		Status:               &status,
	}); err != nil {
		metrics.MessagesTotal.WithLabelValues("outbound", "error").Inc()
		return model.Message{}, fmt.Errorf("update conversation: %w", err)
	}

	metrics.MessagesTotal.WithLabelValues("outbound", "ok").Inc()
	s.fanout(msg)

	return msg, nil
}

// MarkRead zeroes the unread counter for one conversation.
func (s *Service) MarkRead(ctx context.Context, phoneRaw string) error {
	key, err := phone.CanonicalizeStrict(phoneRaw)
	if err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	if err := s.convs.MarkRead(ctx, key); err != nil {
		return err
	}
	s.publish(feed.Event{Kind: feed.EventConversation, Phone: key})
	return nil
}

// fanout pushes the reporting copy and the change event. Both are
// best-effort: the MySQL write already committed.
func (s *Service) fanout(msg model.Message) {
	if s.archive != nil {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := s.archive.Insert(ctx, msg); err != nil {
				s.log.Warn("message archive write failed",
					zap.String("id", msg.ID), zap.Error(err))
			}
		}()
	}
	s.publish(feed.Event{Kind: feed.EventMessage, Phone: msg.Phone})
}

func (s *Service) publish(ev feed.Event) {
	if s.events == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.events.Publish(ctx, ev); err != nil {
		s.log.Warn("change event publish failed", zap.Error(err))
	}
}
