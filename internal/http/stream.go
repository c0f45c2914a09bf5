package http

import (
	"encoding/json"
	"net/http"

	"github.com/emahelps/sms-hub/internal/feed"
	"github.com/emahelps/sms-hub/internal/phone"
	echo "github.com/labstack/echo/v4"
)

// streamConversationsHandler pushes the live inbox over SSE: one full
// snapshot per event, newest state wins. The client renders whatever
// arrives; there is no delta protocol.
func streamConversationsHandler(f *feed.Feed) echo.HandlerFunc {
	return func(c echo.Context) error {
		ch, stop := f.Conversations(c.Request().Context())
		defer stop()
		return streamSSE(c, func() (any, bool) {
			snap, ok := <-ch
			return snap, ok
		})
	}
}

func streamConversationMessagesHandler(f *feed.Feed) echo.HandlerFunc {
	return func(c echo.Context) error {
		key, err := phone.Canonicalize(c.Param("phone"))
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid phone"})
		}

		ch, stop := f.Messages(c.Request().Context(), key)
		defer stop()
		return streamSSE(c, func() (any, bool) {
			snap, ok := <-ch
			return snap, ok
		})
	}
}

// streamSSE drains snapshot values until the source channel closes,
// which the feed ties to request-context cancellation.
func streamSSE(c echo.Context, next func() (any, bool)) error {
	h := c.Response().Header()
	h.Set(echo.HeaderContentType, "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	c.Response().WriteHeader(http.StatusOK)
	c.Response().Flush()

	for {
		snap, ok := next()
		if !ok {
			return nil
		}

		payload, err := json.Marshal(snap)
		if err != nil {
			continue
		}
		if _, err := c.Response().Write([]byte("data: ")); err != nil {
			return nil
		}
		if _, err := c.Response().Write(payload); err != nil {
			return nil
		}
		if _, err := c.Response().Write([]byte("\n\n")); err != nil {
			return nil
		}
		c.Response().Flush()
	}
}
