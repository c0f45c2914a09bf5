package feed

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Event announces that a conversation aggregate (and possibly its
// message log) changed. Subscribers re-read; the event itself carries
// no state.
type Event struct {
	Kind  string `json:"kind"` // "conversation" | "message"
	Phone string `json:"phone,omitempty"`
}

const (
	EventConversation = "conversation"
	EventMessage      = "message"
)

// Publisher is the write side of the change feed. Writers publish
// best-effort: a lost event means a delayed snapshot, not lost data.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Events is the full change-feed transport.
type Events interface {
	Publisher
	// Subscribe returns a channel of decoded events and a stop
	// function. The channel closes after stop or ctx cancellation.
	Subscribe(ctx context.Context) (<-chan Event, func())
}

// RedisEvents carries change events over a single redis pub/sub
// channel shared by all server processes.
type RedisEvents struct {
	client  *redis.Client
	channel string
	log     *zap.Logger
}

var _ Events = (*RedisEvents)(nil)

func NewRedisEvents(client *redis.Client, channel string, log *zap.Logger) *RedisEvents {
	if channel == "" {
		channel = "smshub.conversations"
	}
	return &RedisEvents{client: client, channel: channel, log: log}
}

func (e *RedisEvents) Publish(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return e.client.Publish(ctx, e.channel, payload).Err()
}

func (e *RedisEvents) Subscribe(ctx context.Context) (<-chan Event, func()) {
	ps := e.client.Subscribe(ctx, e.channel)
	out := make(chan Event, 16)

	go func() {
		defer close(out)
		for msg := range ps.Channel() {
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				e.log.Warn("feed: bad event payload", zap.Error(err))
				continue
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	stop := func() { _ = ps.Close() }
	return out, stop
}
