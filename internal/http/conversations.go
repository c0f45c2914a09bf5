package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/emahelps/sms-hub/internal/phone"
	"github.com/emahelps/sms-hub/internal/repository"
	"github.com/emahelps/sms-hub/internal/service/messaging"
	echo "github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
)

// listConversationsHandler serves the inbox. It prefers recency order
// and degrades to an unordered scan when the ordered query fails, so
// the inbox stays reachable during index trouble.
func listConversationsHandler(convs repository.ConversationsRepository) echo.HandlerFunc {
	return func(c echo.Context) error {
		rows, err := convs.ListByRecency(c.Request().Context())
		degraded := false
		if err != nil {
			log.Warnf("ordered conversation query failed, serving unordered: %v", err)
			rows, err = convs.List(c.Request().Context())
			if err != nil {
				log.Errorf("conversation scan failed: %v", err)
				return c.JSON(http.StatusInternalServerError, map[string]string{"error": "query failed"})
			}
			degraded = true
		}
		return c.JSON(http.StatusOK, map[string]any{
			"count":    len(rows),
			"degraded": degraded,
			"results":  rows,
		})
	}
}

func getConversationHandler(convs repository.ConversationsRepository) echo.HandlerFunc {
	return func(c echo.Context) error {
		key, err := phone.Canonicalize(c.Param("phone"))
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid phone"})
		}
		conv, err := convs.Get(c.Request().Context(), key)
		if err != nil {
			log.Errorf("conversation get failed: %v", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "query failed"})
		}
		if conv == nil {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "not found"})
		}
		return c.JSON(http.StatusOK, conv)
	}
}

func listConversationMessagesHandler(msgs repository.MessagesRepository) echo.HandlerFunc {
	return func(c echo.Context) error {
		key, err := phone.Canonicalize(c.Param("phone"))
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid phone"})
		}

		limit := 0
		if v := c.QueryParam("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				limit = n
			}
		}

		rows, err := msgs.ListByConversation(c.Request().Context(), key, limit)
		if err != nil {
			log.Errorf("message list failed: %v", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "query failed"})
		}
		return c.JSON(http.StatusOK, map[string]any{
			"count":   len(rows),
			"results": rows,
		})
	}
}

func markReadHandler(msgSvc *messaging.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		err := msgSvc.MarkRead(c.Request().Context(), c.Param("phone"))
		if err != nil {
			if errors.Is(err, phone.ErrInvalid) || errors.Is(err, phone.ErrImprecise) {
				return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid phone"})
			}
			log.Errorf("mark read failed: %v", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "db error"})
		}
		return c.JSON(http.StatusOK, map[string]any{"read": true})
	}
}
