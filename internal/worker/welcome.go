package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/emahelps/sms-hub/internal/kafka"
	"github.com/emahelps/sms-hub/internal/metrics"
	"github.com/emahelps/sms-hub/internal/model"
	"go.uber.org/zap"
)

// Consumer is the slice of the kafka wrapper the worker needs.
type Consumer interface {
	Fetch(ctx context.Context) (kafka.Message, error)
	Commit(ctx context.Context, m kafka.Message) error
}

// Sender delivers one outbound SMS (the messaging service).
type Sender interface {
	Send(ctx context.Context, to, body, sentBy string) (model.Message, error)
}

// Welcome consumes registration events from the outbox topic and sends
// the signup greeting. Registration must never wait on the SMS
// provider, so the greeting rides through Kafka instead of the
// registration transaction. At-least-once delivery: a crashed worker
// re-reads the event, and the provider treats the occasional repeat
// greeting as harmless.
type Welcome struct {
	Consumer Consumer
	Sender   Sender
	OrgName  string
	Log      *zap.Logger
}

func NewWelcome(consumer Consumer, sender Sender, orgName string, log *zap.Logger) *Welcome {
	if orgName == "" {
		orgName = "EMA"
	}
	return &Welcome{Consumer: consumer, Sender: sender, OrgName: orgName, Log: log}
}

// Run blocks until ctx is cancelled.
func (w *Welcome) Run(ctx context.Context) error {
	for {
		m, err := w.Consumer.Fetch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			w.Log.Warn("welcome: kafka fetch failed", zap.Error(err))
			time.Sleep(200 * time.Millisecond)
			continue
		}
		w.processOne(ctx, m)
	}
}

func (w *Welcome) processOne(ctx context.Context, m kafka.Message) {
	var ev model.WelcomeEvent
	if err := json.Unmarshal(m.Value, &ev); err != nil || ev.Phone == "" {
		// poison event: commit and move on
		metrics.WelcomeSMSTotal.WithLabelValues("bad_event").Inc()
		w.Log.Warn("welcome: unusable event", zap.ByteString("payload", m.Value), zap.Error(err))
		_ = w.Consumer.Commit(ctx, m)
		return
	}

	body := w.greeting(ev)
	if _, err := w.Sender.Send(ctx, ev.Phone, body, "System"); err != nil {
		metrics.WelcomeSMSTotal.WithLabelValues("error").Inc()
		w.Log.Warn("welcome: send failed",
			zap.String("phone", ev.Phone), zap.String("kind", string(ev.Kind)), zap.Error(err))
	} else {
		metrics.WelcomeSMSTotal.WithLabelValues("ok").Inc()
		w.Log.Info("welcome: sent",
			zap.String("phone", ev.Phone), zap.String("kind", string(ev.Kind)))
	}

	// Commit regardless: a permanently failing number must not wedge
	// the topic.
	if err := w.Consumer.Commit(ctx, m); err != nil {
		w.Log.Warn("welcome: commit failed", zap.Error(err))
	}
}

func (w *Welcome) greeting(ev model.WelcomeEvent) string {
	if ev.Kind == model.ContactTypeVolunteer {
		return fmt.Sprintf(
			"Hi %s, thank you for signing up as a volunteer with %s! We will reach out soon to get you started. Reply to this number any time.",
			ev.Name, w.OrgName)
	}
	return fmt.Sprintf(
		"Hi %s, thank you for registering with %s! A volunteer will be matched with your family soon. Reply to this number any time.",
		ev.Name, w.OrgName)
}
