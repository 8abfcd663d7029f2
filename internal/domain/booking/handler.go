package booking

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinic/clinic/internal/domain/scheduling"
	"github.com/clinic/clinic/internal/platform/auth"
	"github.com/clinic/clinic/pkg/apperr"
	"github.com/clinic/clinic/pkg/clock"
	"github.com/clinic/clinic/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/doctors/:id/slots", h.GetAvailableSlots)

	api.POST("/bookings", h.CreateBooking, auth.RequireRole(auth.RolePatient, auth.RoleStaff))
	api.GET("/bookings", h.SearchBookings)
	api.GET("/bookings/:id", h.GetBooking)
	api.GET("/bookings/code/:code", h.GetBookingByCode)

	api.POST("/bookings/:id/confirm", h.ConfirmBooking, auth.RequireRole(auth.RoleDoctor, auth.RoleStaff))
	api.POST("/bookings/:id/reject", h.RejectBooking, auth.RequireRole(auth.RoleDoctor, auth.RoleStaff))
	api.POST("/bookings/:id/cancel", h.CancelBooking)
	api.POST("/bookings/:id/check-in", h.CheckIn, auth.RequireRole(auth.RolePatient, auth.RoleStaff))
	api.POST("/bookings/:id/start", h.StartVisit, auth.RequireRole(auth.RoleDoctor))
	api.POST("/bookings/:id/complete", h.CompleteVisit, auth.RequireRole(auth.RoleDoctor))
	api.POST("/bookings/:id/rate", h.RateBooking, auth.RequireRole(auth.RolePatient))
	api.POST("/bookings/:id/payment", h.RecordPayment, auth.RequireRole(auth.RoleStaff))
}

func principal(c echo.Context) auth.Principal {
	p, _ := auth.PrincipalFromContext(c.Request().Context())
	return p
}

func privileged(p auth.Principal) bool {
	return p.HasRole(auth.RoleAdmin) || p.HasRole(auth.RoleStaff)
}

// canAccess reports whether the caller is a party to b or clinic staff.
func canAccess(p auth.Principal, b *Booking) bool {
	switch {
	case privileged(p):
		return true
	case p.HasRole(auth.RolePatient) && p.PatientID == b.PatientID.String():
		return true
	case p.HasRole(auth.RoleDoctor) && p.DoctorID == b.DoctorID.String():
		return true
	}
	return false
}

func forbidden() error {
	return echo.NewHTTPError(http.StatusForbidden, apperr.Body{Code: "FORBIDDEN", Message: "booking belongs to another patient or doctor"})
}

// loadOwned parses :id and loads the booking, checking that the caller may
// act on it.
func (h *Handler) loadOwned(c echo.Context) (*Booking, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return nil, apperr.BadRequest("invalid id")
	}
	b, err := h.svc.GetBooking(c.Request().Context(), id)
	if err != nil {
		return nil, apperr.HTTP(err)
	}
	if !canAccess(principal(c), b) {
		return nil, forbidden()
	}
	return b, nil
}

func (h *Handler) GetAvailableSlots(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.BadRequest("invalid id")
	}
	date, err := clock.ParseDay(c.QueryParam("date"))
	if err != nil {
		return apperr.BadRequest("date must be YYYY-MM-DD")
	}
	slots, err := h.svc.GetAvailableSlots(c.Request().Context(), id, date)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, slots)
}

type createRequest struct {
	PatientID     string               `json:"patient_id"`
	DoctorID      string               `json:"doctor_id"`
	FacilityID    string               `json:"facility_id"`
	Date          string               `json:"date"`
	Shift         scheduling.Shift     `json:"shift"`
	Time          scheduling.TimeOfDay `json:"time"`
	Reason        string               `json:"reason"`
	PaymentMethod PaymentMethod        `json:"payment_method"`
}

func (h *Handler) CreateBooking(c echo.Context) error {
	var req createRequest
	if err := c.Bind(&req); err != nil {
		return apperr.BadRequest(err.Error())
	}

	p := principal(c)
	if !privileged(p) {
		if req.PatientID == "" {
			req.PatientID = p.PatientID
		}
		if req.PatientID != p.PatientID {
			return forbidden()
		}
	}

	in := CreateInput{Shift: req.Shift, Time: req.Time, Reason: req.Reason, PaymentMethod: req.PaymentMethod}
	var err error
	if in.PatientID, err = uuid.Parse(req.PatientID); err != nil {
		return apperr.BadRequest("invalid patient_id")
	}
	if in.DoctorID, err = uuid.Parse(req.DoctorID); err != nil {
		return apperr.BadRequest("invalid doctor_id")
	}
	if in.FacilityID, err = uuid.Parse(req.FacilityID); err != nil {
		return apperr.BadRequest("invalid facility_id")
	}
	if in.Date, err = clock.ParseDay(req.Date); err != nil {
		return apperr.BadRequest("date must be YYYY-MM-DD")
	}

	b, err := h.svc.CreateBooking(c.Request().Context(), in)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusCreated, b)
}

func parseOptionalUUID(c echo.Context, name string) (*uuid.UUID, error) {
	v := c.QueryParam(name)
	if v == "" {
		return nil, nil
	}
	id, err := uuid.Parse(v)
	if err != nil {
		return nil, apperr.BadRequest("invalid " + name)
	}
	return &id, nil
}

func parseOptionalDay(c echo.Context, name string) (*time.Time, error) {
	v := c.QueryParam(name)
	if v == "" {
		return nil, nil
	}
	d, err := clock.ParseDay(v)
	if err != nil {
		return nil, apperr.BadRequest(name + " must be YYYY-MM-DD")
	}
	return &d, nil
}

func (h *Handler) SearchBookings(c echo.Context) error {
	var f Filter
	var err error
	if f.PatientID, err = parseOptionalUUID(c, "patient_id"); err != nil {
		return err
	}
	if f.DoctorID, err = parseOptionalUUID(c, "doctor_id"); err != nil {
		return err
	}
	if f.From, err = parseOptionalDay(c, "from"); err != nil {
		return err
	}
	if f.To, err = parseOptionalDay(c, "to"); err != nil {
		return err
	}
	f.Status = Status(c.QueryParam("status"))

	// Patients and doctors only ever see their own bookings.
	p := principal(c)
	if !privileged(p) {
		switch {
		case p.HasRole(auth.RolePatient):
			id, err := uuid.Parse(p.PatientID)
			if err != nil {
				return forbidden()
			}
			f.PatientID = &id
		case p.HasRole(auth.RoleDoctor):
			id, err := uuid.Parse(p.DoctorID)
			if err != nil {
				return forbidden()
			}
			f.DoctorID = &id
		default:
			return forbidden()
		}
	}

	pg := pagination.FromContext(c)
	items, total, err := h.svc.SearchBookings(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return apperr.HTTP(err)
	}
	if items == nil {
		items = []*Booking{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) GetBooking(c echo.Context) error {
	b, err := h.loadOwned(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, b)
}

func (h *Handler) GetBookingByCode(c echo.Context) error {
	b, err := h.svc.GetBookingByCode(c.Request().Context(), c.Param("code"))
	if err != nil {
		return apperr.HTTP(err)
	}
	if !canAccess(principal(c), b) {
		return forbidden()
	}
	return c.JSON(http.StatusOK, b)
}

// transition loads the caller's booking and runs op on it.
func (h *Handler) transition(c echo.Context, op func(b *Booking) (*Booking, error)) error {
	b, err := h.loadOwned(c)
	if err != nil {
		return err
	}
	updated, err := op(b)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, updated)
}

func (h *Handler) ConfirmBooking(c echo.Context) error {
	return h.transition(c, func(b *Booking) (*Booking, error) {
		return h.svc.ConfirmBooking(c.Request().Context(), b.ID)
	})
}

type reasonRequest struct {
	Reason string `json:"reason"`
	Actor  Actor  `json:"actor"`
}

func (h *Handler) RejectBooking(c echo.Context) error {
	var req reasonRequest
	if err := c.Bind(&req); err != nil {
		return apperr.BadRequest(err.Error())
	}
	return h.transition(c, func(b *Booking) (*Booking, error) {
		return h.svc.RejectBooking(c.Request().Context(), b.ID, req.Reason)
	})
}

// CancelBooking infers the actor from the caller's role. Staff cancel on
// behalf of a party and must name it.
func (h *Handler) CancelBooking(c echo.Context) error {
	var req reasonRequest
	if err := c.Bind(&req); err != nil {
		return apperr.BadRequest(err.Error())
	}
	p := principal(c)
	switch {
	case privileged(p):
	case p.HasRole(auth.RoleDoctor):
		req.Actor = ActorDoctor
	case p.HasRole(auth.RolePatient):
		req.Actor = ActorPatient
	}
	return h.transition(c, func(b *Booking) (*Booking, error) {
		return h.svc.CancelBooking(c.Request().Context(), b.ID, req.Actor, req.Reason)
	})
}

func (h *Handler) CheckIn(c echo.Context) error {
	return h.transition(c, func(b *Booking) (*Booking, error) {
		return h.svc.CheckIn(c.Request().Context(), b.ID)
	})
}

func (h *Handler) StartVisit(c echo.Context) error {
	return h.transition(c, func(b *Booking) (*Booking, error) {
		return h.svc.StartVisit(c.Request().Context(), b.ID)
	})
}

type completeRequest struct {
	Diagnosis    string `json:"diagnosis"`
	Prescription string `json:"prescription"`
	Notes        string `json:"notes"`
	FollowUpDate string `json:"follow_up_date"`
}

func (h *Handler) CompleteVisit(c echo.Context) error {
	var req completeRequest
	if err := c.Bind(&req); err != nil {
		return apperr.BadRequest(err.Error())
	}
	out := VisitOutcome{Diagnosis: req.Diagnosis, Prescription: req.Prescription, Notes: req.Notes}
	if req.FollowUpDate != "" {
		d, err := clock.ParseDay(req.FollowUpDate)
		if err != nil {
			return apperr.BadRequest("follow_up_date must be YYYY-MM-DD")
		}
		out.FollowUpDate = &d
	}
	return h.transition(c, func(b *Booking) (*Booking, error) {
		return h.svc.CompleteVisit(c.Request().Context(), b.ID, out)
	})
}

type rateRequest struct {
	Stars   int    `json:"stars"`
	Comment string `json:"comment"`
}

func (h *Handler) RateBooking(c echo.Context) error {
	var req rateRequest
	if err := c.Bind(&req); err != nil {
		return apperr.BadRequest(err.Error())
	}
	return h.transition(c, func(b *Booking) (*Booking, error) {
		return h.svc.RateBooking(c.Request().Context(), b.ID, req.Stars, req.Comment)
	})
}

type paymentRequest struct {
	Status        PaymentStatus `json:"status"`
	TransactionID string        `json:"transaction_id"`
}

func (h *Handler) RecordPayment(c echo.Context) error {
	var req paymentRequest
	if err := c.Bind(&req); err != nil {
		return apperr.BadRequest(err.Error())
	}
	return h.transition(c, func(b *Booking) (*Booking, error) {
		return h.svc.RecordPayment(c.Request().Context(), b.ID, req.Status, req.TransactionID)
	})
}
