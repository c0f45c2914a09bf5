package http

import (
	"errors"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/emahelps/sms-hub/internal/phone"
	"github.com/emahelps/sms-hub/internal/service/messaging"
	echo "github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
)

type sendReq struct {
	Phone  string `json:"phone"`
	Body   string `json:"body"`
	SentBy string `json:"sent_by"`
}

func sendSMSHandler(msgSvc *messaging.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req sendReq
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "bad request"})
		}

		req.Phone = strings.TrimSpace(req.Phone)
		req.Body = strings.TrimSpace(req.Body)
		req.SentBy = strings.TrimSpace(req.SentBy)

		if req.Phone == "" || req.Body == "" {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "bad request"})
		}
		if utf8.RuneCountInString(req.Body) > 1600 {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "body too long"})
		}

		msg, err := msgSvc.Send(c.Request().Context(), req.Phone, req.Body, req.SentBy)
		if err != nil {
			if errors.Is(err, phone.ErrInvalid) || errors.Is(err, phone.ErrImprecise) {
				return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid phone"})
			}
			if errors.Is(err, messaging.ErrSendFailed) {
				log.Errorf("send failed: %v", err)
				return c.JSON(http.StatusBadGateway, map[string]string{"error": "provider unavailable"})
			}
			log.Errorf("send persist failed: %v", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "db error"})
		}

		return c.JSON(http.StatusCreated, msg)
	}
}
