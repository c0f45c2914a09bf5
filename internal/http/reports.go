package http

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/emahelps/sms-hub/internal/model"
	"github.com/emahelps/sms-hub/internal/phone"
	"github.com/emahelps/sms-hub/internal/repository"
	echo "github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
)

// listArchivedMessagesHandler reads the ClickHouse reporting copy.
func listArchivedMessagesHandler(archive repository.ArchiveRepository) echo.HandlerFunc {
	return func(c echo.Context) error {
		limit := 50
		offset := 0
		if v := c.QueryParam("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 1000 {
				limit = n
			}
		}
		if v := c.QueryParam("offset"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n >= 0 {
				offset = n
			}
		}

		var dir model.Direction
		switch strings.TrimSpace(c.QueryParam("direction")) {
		case "inbound":
			dir = model.DirectionInbound
		case "outbound":
			dir = model.DirectionOutbound
		}

		key := ""
		if raw := strings.TrimSpace(c.QueryParam("phone")); raw != "" {
			k, err := phone.Canonicalize(raw)
			if err != nil {
				return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid phone"})
			}
			key = k
		}

		msgs, err := archive.List(c.Request().Context(), key, dir, limit, offset)
		if err != nil {
			log.Errorf("clickhouse list failed: %v", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "query failed"})
		}

		return c.JSON(http.StatusOK, map[string]any{
			"limit":   limit,
			"offset":  offset,
			"count":   len(msgs),
			"results": msgs,
		})
	}
}
