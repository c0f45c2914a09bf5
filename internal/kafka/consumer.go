package kafka

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/emahelps/sms-hub/internal/config"
)

// Consumer is a thin wrapper around segmentio/kafka-go Reader.
type Consumer struct {
	r *kafka.Reader
}

// NewConsumer builds a consumer for one topic using the shared kafka
// section of the config.
func NewConsumer(cfg config.KafkaConfig, topic string) *Consumer {
	min := cfg.MinBytes
	if min <= 0 {
		min = 1 << 10
	}
	max := cfg.MaxBytes
	if max <= 0 {
		max = 10 << 20
	}
	ci := time.Duration(cfg.CommitInterval) * time.Millisecond
	if ci <= 0 {
		ci = time.Second
	}

	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		GroupID:        cfg.GroupID,
		Topic:          topic,
		MinBytes:       min,
		MaxBytes:       max,
		CommitInterval: ci,
		MaxWait:        50 * time.Millisecond,
	})

	return &Consumer{r: r}
}

type Message = kafka.Message

func (c *Consumer) Fetch(ctx context.Context) (Message, error) {
	return c.r.FetchMessage(ctx)
}

func (c *Consumer) Commit(ctx context.Context, m Message) error {
	return c.r.CommitMessages(ctx, m)
}

func (c *Consumer) Close() error { return c.r.Close() }
