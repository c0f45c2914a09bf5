package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/emahelps/sms-hub/internal/service/linkage"
	echo "github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
)

type matchReq struct {
	VolunteerID    string `json:"volunteer_id"`
	RegistrationID string `json:"registration_id"`
}

func (r *matchReq) validate() bool {
	r.VolunteerID = strings.TrimSpace(r.VolunteerID)
	r.RegistrationID = strings.TrimSpace(r.RegistrationID)
	return r.VolunteerID != "" && r.RegistrationID != ""
}

func createMatchHandler(linkSvc *linkage.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req matchReq
		if err := c.Bind(&req); err != nil || !req.validate() {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "bad request"})
		}

		err := linkSvc.Match(c.Request().Context(), req.VolunteerID, req.RegistrationID)
		if err != nil {
			if errors.Is(err, linkage.ErrNotFound) {
				return c.JSON(http.StatusNotFound, map[string]string{"error": "volunteer or registration not found"})
			}
			log.Errorf("match failed: %v", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "db error"})
		}
		return c.JSON(http.StatusCreated, map[string]any{
			"matched":         true,
			"volunteer_id":    req.VolunteerID,
			"registration_id": req.RegistrationID,
		})
	}
}

func deleteMatchHandler(linkSvc *linkage.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req matchReq
		if err := c.Bind(&req); err != nil || !req.validate() {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "bad request"})
		}

		err := linkSvc.Unmatch(c.Request().Context(), req.VolunteerID, req.RegistrationID)
		if err != nil {
			if errors.Is(err, linkage.ErrNotFound) {
				return c.JSON(http.StatusNotFound, map[string]string{"error": "volunteer or registration not found"})
			}
			log.Errorf("unmatch failed: %v", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "db error"})
		}
		return c.JSON(http.StatusOK, map[string]any{
			"matched":         false,
			"volunteer_id":    req.VolunteerID,
			"registration_id": req.RegistrationID,
		})
	}
}
