package reminder

import (
	"net/http"
	"time"

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
	staff := api.Group("/reminders", auth.RequireRole(auth.RoleStaff))
	staff.GET("/due", h.ListDue)
	staff.POST("/run", h.Run)
}

// asOf reads the optional RFC 3339 as_of query parameter, defaulting to now.
func (h *Handler) asOf(c echo.Context) (time.Time, error) {
	v := c.QueryParam("as_of")
	if v == "" {
		return h.svc.clock.Now(), nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, apperr.BadRequest("as_of must be an RFC 3339 timestamp")
	}
	return t, nil
}

func (h *Handler) ListDue(c echo.Context) error {
	asOf, err := h.asOf(c)
	if err != nil {
		return err
	}
	due, err := h.svc.DueReminders(c.Request().Context(), asOf)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, due)
}

func (h *Handler) Run(c echo.Context) error {
	asOf, err := h.asOf(c)
	if err != nil {
		return err
	}
	res, err := h.svc.Run(c.Request().Context(), asOf)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, res)
}
