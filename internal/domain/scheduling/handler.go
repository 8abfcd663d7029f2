package scheduling

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinic/clinic/internal/platform/auth"
	"github.com/clinic/clinic/pkg/apperr"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/doctors/:id/schedule", h.ListOverrides)
	api.GET("/facilities/:id/schedule", h.ListDefaults)

	write := api.Group("", auth.RequireRole(auth.RoleStaff))
	write.PUT("/doctors/:id/schedule", h.SetOverrides)
	write.DELETE("/doctors/:id/schedule/:weekday/:shift", h.DeleteOverride)
	write.PUT("/facilities/:id/schedule", h.SetDefaults)
}

func (h *Handler) ListOverrides(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.BadRequest("invalid id")
	}
	items, err := h.svc.ListOverrides(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTP(err)
	}
	if items == nil {
		items = []*WeeklyScheduleOverride{}
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) SetOverrides(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.BadRequest("invalid id")
	}
	var entries []OverrideInput
	if err := c.Bind(&entries); err != nil {
		return apperr.BadRequest(err.Error())
	}
	saved, err := h.svc.SetOverrides(c.Request().Context(), id, entries)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, saved)
}

func (h *Handler) DeleteOverride(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.BadRequest("invalid id")
	}
	wd, err := strconv.Atoi(c.Param("weekday"))
	if err != nil {
		return apperr.BadRequest("invalid weekday")
	}
	if err := h.svc.DeleteOverride(c.Request().Context(), id, Weekday(wd), Shift(c.Param("shift"))); err != nil {
		return apperr.HTTP(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListDefaults(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.BadRequest("invalid id")
	}
	items, err := h.svc.ListDefaults(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTP(err)
	}
	if items == nil {
		items = []*FacilityDefaultSchedule{}
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) SetDefaults(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.BadRequest("invalid id")
	}
	var entries []DefaultInput
	if err := c.Bind(&entries); err != nil {
		return apperr.BadRequest(err.Error())
	}
	saved, err := h.svc.SetDefaults(c.Request().Context(), id, entries)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, saved)
}
