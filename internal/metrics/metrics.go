package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	MessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smshub_messages_total",
			Help: "Message write outcomes by direction",
		},
		[]string{"direction", "result"}, // inbound|outbound , ok|duplicate|error|provider_error
	)

	WebhookDroppedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smshub_webhook_dropped_total",
			Help: "Webhook payloads acknowledged but not processed",
		},
		[]string{"reason"}, // invalid_sender|internal_error
	)

	WelcomeSMSTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smshub_welcome_sms_total",
			Help: "Welcome worker send outcomes",
		},
		[]string{"result"}, // ok|error|bad_event
	)
)

func MustRegister(r prometheus.Registerer) {
	r.MustRegister(
		MessagesTotal,
		WebhookDroppedTotal,
		WelcomeSMSTotal,
	)
}
