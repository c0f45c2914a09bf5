package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/emahelps/sms-hub/internal/metrics"
	"github.com/emahelps/sms-hub/internal/phone"
	"github.com/emahelps/sms-hub/internal/service/messaging"
	echo "github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
)

const emptyTwiML = `<?xml version="1.0" encoding="UTF-8"?><Response></Response>`

// inboundSMSHandler receives provider webhook deliveries
// (form-encoded: From, To, Body, MessageSid) and acknowledges every
// one of them with an empty TwiML document. A non-2xx here makes the
// provider retry forever and can trip its error hooks, so processing
// failures are logged and counted, never surfaced.
func inboundSMSHandler(msgSvc *messaging.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		from := strings.TrimSpace(c.FormValue("From"))
		to := strings.TrimSpace(c.FormValue("To"))
		body := c.FormValue("Body")
		sid := strings.TrimSpace(c.FormValue("MessageSid"))

		_, err := msgSvc.Inbound(c.Request().Context(), messaging.Inbound{
			From:        from,
			To:          to,
			Body:        body,
			ProviderSID: sid,
		})
		switch {
		case err == nil:
		case errors.Is(err, messaging.ErrDuplicate):
			// retry of a delivery we already logged; ack again
		case errors.Is(err, phone.ErrInvalid), errors.Is(err, phone.ErrImprecise):
			metrics.WebhookDroppedTotal.WithLabelValues("invalid_sender").Inc()
			log.Warnf("webhook: dropped message from unusable sender %q (sid=%s)", from, sid)
		default:
			metrics.WebhookDroppedTotal.WithLabelValues("internal_error").Inc()
			log.Errorf("webhook: processing failed (sid=%s): %v", sid, err)
		}

		return c.Blob(http.StatusOK, "text/xml", []byte(emptyTwiML))
	}
}
