package http

import (
	"net/http"
	"strings"

	"github.com/emahelps/sms-hub/internal/model"
	"github.com/emahelps/sms-hub/internal/repository"
	"github.com/emahelps/sms-hub/internal/service/linkage"
	echo "github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
)

type registrationReq struct {
	MotherName string `json:"mother_name"`
	Phone      string `json:"phone"`
	Email      string `json:"email"`
	City       string `json:"city"`
	Needs      string `json:"needs"`
}

func createRegistrationHandler(linkSvc *linkage.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req registrationReq
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "bad request"})
		}
		req.MotherName = strings.TrimSpace(req.MotherName)
		if req.MotherName == "" {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "mother_name required"})
		}

		reg, err := linkSvc.RegisterFamily(c.Request().Context(), model.Registration{
			MotherName: req.MotherName,
			Phone:      strings.TrimSpace(req.Phone),
			Email:      strings.TrimSpace(req.Email),
			City:       strings.TrimSpace(req.City),
			Needs:      strings.TrimSpace(req.Needs),
		})
		if err != nil {
			log.Errorf("register family failed: %v", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "db error"})
		}
		return c.JSON(http.StatusCreated, reg)
	}
}

func getRegistrationHandler(regs repository.RegistrationsRepository) echo.HandlerFunc {
	return func(c echo.Context) error {
		reg, err := regs.Get(c.Request().Context(), c.Param("id"))
		if err != nil {
			log.Errorf("registration get failed: %v", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "query failed"})
		}
		if reg == nil {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "not found"})
		}
		return c.JSON(http.StatusOK, reg)
	}
}

type volunteerReq struct {
	Name   string `json:"name"`
	Phone  string `json:"phone"`
	Email  string `json:"email"`
	City   string `json:"city"`
	Skills string `json:"skills"`
}

func createVolunteerHandler(linkSvc *linkage.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req volunteerReq
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "bad request"})
		}
		req.Name = strings.TrimSpace(req.Name)
		if req.Name == "" {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "name required"})
		}

		vol, err := linkSvc.RegisterVolunteer(c.Request().Context(), model.Volunteer{
			Name:   req.Name,
			Phone:  strings.TrimSpace(req.Phone),
			Email:  strings.TrimSpace(req.Email),
			City:   strings.TrimSpace(req.City),
			Skills: strings.TrimSpace(req.Skills),
		})
		if err != nil {
			log.Errorf("register volunteer failed: %v", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "db error"})
		}
		return c.JSON(http.StatusCreated, vol)
	}
}

func getVolunteerHandler(vols repository.VolunteersRepository) echo.HandlerFunc {
	return func(c echo.Context) error {
		vol, err := vols.Get(c.Request().Context(), c.Param("id"))
		if err != nil {
			log.Errorf("volunteer get failed: %v", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "query failed"})
		}
		if vol == nil {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "not found"})
		}
		return c.JSON(http.StatusOK, vol)
	}
}

type contactReq struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Email   string `json:"email"`
	Message string `json:"message"`
}

func createContactHandler(linkSvc *linkage.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req contactReq
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "bad request"})
		}
		req.Name = strings.TrimSpace(req.Name)
		if req.Name == "" {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "name required"})
		}

		ct, err := linkSvc.RegisterContact(c.Request().Context(), model.Contact{
			Name:    req.Name,
			Phone:   strings.TrimSpace(req.Phone),
			Email:   strings.TrimSpace(req.Email),
			Message: req.Message,
		})
		if err != nil {
			log.Errorf("register contact failed: %v", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "db error"})
		}
		return c.JSON(http.StatusCreated, ct)
	}
}
