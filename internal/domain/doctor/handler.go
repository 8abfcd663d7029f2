package doctor

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinic/clinic/internal/platform/auth"
	"github.com/clinic/clinic/pkg/apperr"
	"github.com/clinic/clinic/pkg/clock"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/doctors/:id", h.GetDoctor)

	staff := api.Group("", auth.RequireRole(auth.RoleDoctor, auth.RoleStaff))
	staff.GET("/doctors/:id/leave", h.ListLeave)
	staff.GET("/doctors/:id/leave/balance", h.GetBalance)
	staff.POST("/doctors/:id/leave", h.RequestLeave)
	staff.DELETE("/doctors/:id/leave/:leaveId", h.CancelLeave)
}

type leaveRequest struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Reason    string `json:"reason"`
}

// doctorParam parses :id and, for callers acting as a doctor, requires it to
// be their own record.
func doctorParam(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, apperr.BadRequest("invalid id")
	}
	p, _ := auth.PrincipalFromContext(c.Request().Context())
	if p.HasRole(auth.RoleAdmin) || p.HasRole(auth.RoleStaff) {
		return id, nil
	}
	if p.DoctorID != id.String() {
		return uuid.Nil, echo.NewHTTPError(http.StatusForbidden, "doctors may only manage their own leave")
	}
	return id, nil
}

func (h *Handler) GetDoctor(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.BadRequest("invalid id")
	}
	d, err := h.svc.GetDoctor(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) ListLeave(c echo.Context) error {
	id, err := doctorParam(c)
	if err != nil {
		return err
	}
	items, err := h.svc.ListLeave(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTP(err)
	}
	if items == nil {
		items = []*LeaveRecord{}
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) GetBalance(c echo.Context) error {
	id, err := doctorParam(c)
	if err != nil {
		return err
	}
	bal, err := h.svc.RemainingLeave(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, bal)
}

func (h *Handler) RequestLeave(c echo.Context) error {
	id, err := doctorParam(c)
	if err != nil {
		return err
	}
	var req leaveRequest
	if err := c.Bind(&req); err != nil {
		return apperr.BadRequest(err.Error())
	}
	start, err := clock.ParseDay(req.StartDate)
	if err != nil {
		return apperr.BadRequest("start_date must be YYYY-MM-DD")
	}
	end, err := clock.ParseDay(req.EndDate)
	if err != nil {
		return apperr.BadRequest("end_date must be YYYY-MM-DD")
	}
	rec, err := h.svc.RequestLeave(c.Request().Context(), id, start, end, req.Reason)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusCreated, rec)
}

func (h *Handler) CancelLeave(c echo.Context) error {
	id, err := doctorParam(c)
	if err != nil {
		return err
	}
	leaveID, err := uuid.Parse(c.Param("leaveId"))
	if err != nil {
		return apperr.BadRequest("invalid leave id")
	}
	rec, err := h.svc.CancelLeave(c.Request().Context(), id, leaveID)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, rec)
}
