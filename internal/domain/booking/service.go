package booking

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"github.com/clinic/clinic/internal/domain/doctor"
	"github.com/clinic/clinic/internal/domain/patient"
	"github.com/clinic/clinic/internal/domain/scheduling"
	"github.com/clinic/clinic/internal/platform/cache"
	"github.com/clinic/clinic/internal/platform/db"
	"github.com/clinic/clinic/internal/platform/events"
	"github.com/clinic/clinic/internal/platform/telemetry"
	"github.com/clinic/clinic/pkg/apperr"
	"github.com/clinic/clinic/pkg/clock"
)

// maxCodeAttempts bounds confirmation code regeneration on collision.
const maxCodeAttempts = 5

type DoctorLookup interface {
	GetDoctor(ctx context.Context, id uuid.UUID) (*doctor.Doctor, error)
}

type PatientLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*patient.Patient, error)
}

// Option configures optional collaborators of a Service.
type Option func(*Service)

// WithAvailabilityCache caches GetAvailableSlots results.
func WithAvailabilityCache(a *cache.Availability) Option {
	return func(s *Service) { s.slots = a }
}

// WithPublisher publishes an event after each committed transition.
func WithPublisher(p events.Publisher) Option {
	return func(s *Service) { s.events = p }
}

func WithMetrics(m *telemetry.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

type Service struct {
	bookings Repository
	doctors  DoctorLookup
	patients PatientLookup
	catalog  Catalog
	guard    *ConflictGuard
	tx       db.Transactor
	clock    clock.Clock
	loc      *time.Location
	logger   zerolog.Logger

	slots   *cache.Availability
	events  events.Publisher
	metrics *telemetry.Metrics
	newCode func() (string, error)
}

func NewService(bookings Repository, doctors DoctorLookup, patients PatientLookup, catalog Catalog,
	tx db.Transactor, clk clock.Clock, loc *time.Location, logger zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		bookings: bookings,
		doctors:  doctors,
		patients: patients,
		catalog:  catalog,
		guard:    NewConflictGuard(catalog, bookings),
		tx:       tx,
		clock:    clk,
		loc:      loc,
		logger:   logger.With().Str("component", "booking").Logger(),
		slots:    cache.NewAvailability(nil, 0),
		events:   events.Noop{},
		newCode:  NewCode,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Service) today() time.Time {
	return clock.Today(s.clock, s.loc)
}

// =========== Availability ===========

// GetAvailableSlots lists the slots a patient can still book: the catalog's
// slots for the day minus those held by occupying bookings and, for today,
// those whose start has passed. A past date, a leave day or a full day gives
// an empty list.
func (s *Service) GetAvailableSlots(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]scheduling.Slot, error) {
	date = clock.NormalizeDay(date)
	ctx, span := telemetry.StartSpan(ctx, "booking.available_slots",
		attribute.String("doctor.id", doctorID.String()),
		attribute.String("date", date.Format("2006-01-02")))
	slots, err := s.availableSlots(ctx, doctorID, date)
	telemetry.EndSpan(span, err)
	return slots, err
}

func (s *Service) availableSlots(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]scheduling.Slot, error) {
	d, err := s.doctors.GetDoctor(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	today := s.today()
	if date.Before(today) {
		return []scheduling.Slot{}, nil
	}

	var free []scheduling.Slot
	var hit bool
	stamp, stampErr := s.slots.Stamp(ctx, doctorID, d.FacilityID)
	if stampErr != nil {
		s.logger.Warn().Err(stampErr).Str("doctor_id", doctorID.String()).Msg("slot cache read failed")
	} else {
		hit, err = s.slots.Get(ctx, doctorID, date, stamp, &free)
		if err != nil {
			s.logger.Warn().Err(err).Str("doctor_id", doctorID.String()).Msg("slot cache read failed")
		}
	}
	s.metrics.CacheLookup(ctx, hit)

	if !hit {
		free, err = s.computeFreeSlots(ctx, doctorID, date)
		if err != nil {
			return nil, err
		}
		if stampErr == nil {
			if err := s.slots.Set(ctx, doctorID, date, stamp, free); err != nil {
				s.logger.Warn().Err(err).Str("doctor_id", doctorID.String()).Msg("slot cache write failed")
			}
		}
	}

	if date.Equal(today) {
		now := s.clock.Now().In(s.loc)
		started := scheduling.NewTimeOfDay(now.Hour(), now.Minute())
		var upcoming []scheduling.Slot
		for _, sl := range free {
			if sl.Time > started {
				upcoming = append(upcoming, sl)
			}
		}
		free = upcoming
	}
	if free == nil {
		free = []scheduling.Slot{}
	}
	return free, nil
}

func (s *Service) computeFreeSlots(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]scheduling.Slot, error) {
	day, err := s.catalog.Resolve(ctx, doctorID, date)
	if err != nil {
		return nil, err
	}
	if len(day.Slots) == 0 {
		return []scheduling.Slot{}, nil
	}
	occupied, err := s.bookings.ListOccupiedSlots(ctx, doctorID, date)
	if err != nil {
		return nil, err
	}
	if len(occupied) >= day.Doctor.DailyCapacity() {
		return []scheduling.Slot{}, nil
	}
	held := make(map[scheduling.Slot]bool, len(occupied))
	for _, o := range occupied {
		held[o] = true
	}
	free := make([]scheduling.Slot, 0, len(day.Slots))
	for _, sl := range day.Slots {
		if !held[sl] {
			free = append(free, sl)
		}
	}
	return free, nil
}

// =========== Creation ===========

// CreateInput is a patient's booking request.
type CreateInput struct {
	PatientID     uuid.UUID            `json:"patient_id"`
	DoctorID      uuid.UUID            `json:"doctor_id"`
	FacilityID    uuid.UUID            `json:"facility_id"`
	Date          time.Time            `json:"date"`
	Shift         scheduling.Shift     `json:"shift"`
	Time          scheduling.TimeOfDay `json:"time"`
	Reason        string               `json:"reason"`
	PaymentMethod PaymentMethod        `json:"payment_method"`
}

// CreateBooking reserves the slot and stores a new booking awaiting the
// doctor's confirmation. The reservation and the insert commit together.
func (s *Service) CreateBooking(ctx context.Context, in CreateInput) (*Booking, error) {
	ctx, span := telemetry.StartSpan(ctx, "booking.create",
		attribute.String("doctor.id", in.DoctorID.String()),
		attribute.String("date", in.Date.Format("2006-01-02")))
	b, err := s.create(ctx, in)
	telemetry.EndSpan(span, err)
	if err != nil {
		s.refused(ctx, "create", uuid.Nil, err)
		return nil, err
	}
	s.committed(ctx, b, EventCreated, false)
	return b, nil
}

func (s *Service) create(ctx context.Context, in CreateInput) (*Booking, error) {
	in.Date = clock.NormalizeDay(in.Date)
	if !in.Shift.Valid() {
		return nil, ErrInvalidShift.WithDetail("got %q", in.Shift)
	}
	if !in.PaymentMethod.Valid() {
		return nil, ErrInvalidPaymentMethod.WithDetail("got %q", in.PaymentMethod)
	}
	if err := validateNotPast(in.Date, s.today()); err != nil {
		return nil, err
	}
	if _, err := s.patients.GetByID(ctx, in.PatientID); err != nil {
		return nil, err
	}
	d, err := s.doctors.GetDoctor(ctx, in.DoctorID)
	if err != nil {
		return nil, err
	}
	if !d.Active {
		return nil, doctor.ErrDoctorInactive
	}
	if d.FacilityID != in.FacilityID {
		return nil, ErrFacilityMismatch
	}

	var b *Booking
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		if _, err := s.guard.Reserve(ctx, in.DoctorID, in.Date, in.Shift, in.Time); err != nil {
			return err
		}
		b = &Booking{
			PatientID:     in.PatientID,
			DoctorID:      in.DoctorID,
			FacilityID:    in.FacilityID,
			Date:          in.Date,
			Shift:         in.Shift,
			Time:          in.Time,
			Reason:        strings.TrimSpace(in.Reason),
			Status:        StatusPendingConfirmation,
			Price:         d.VisitPrice,
			PaymentMethod: in.PaymentMethod,
			PaymentStatus: PaymentUnpaid,
		}
		if err := Validate(b); err != nil {
			return err
		}
		return s.insertWithCode(ctx, b)
	})
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (s *Service) insertWithCode(ctx context.Context, b *Booking) error {
	for i := 0; i < maxCodeAttempts; i++ {
		code, err := s.newCode()
		if err != nil {
			return apperr.Internal("generate confirmation code", err)
		}
		b.Code = code
		err = s.bookings.Create(ctx, b)
		if errors.Is(err, errCodeTaken) {
			s.logger.Debug().Str("code", code).Msg("confirmation code collision, regenerating")
			continue
		}
		return err
	}
	return ErrDuplicateCode
}

// =========== Transitions ===========

func (s *Service) ConfirmBooking(ctx context.Context, id uuid.UUID) (*Booking, error) {
	return s.apply(ctx, "confirm", id, EventConfirmed, func(b *Booking, now time.Time) error {
		return Confirm(b, now, s.loc)
	})
}

func (s *Service) RejectBooking(ctx context.Context, id uuid.UUID, reason string) (*Booking, error) {
	return s.apply(ctx, "reject", id, EventRejected, func(b *Booking, now time.Time) error {
		return Reject(b, reason, now, s.loc)
	})
}

func (s *Service) CancelBooking(ctx context.Context, id uuid.UUID, actor Actor, reason string) (*Booking, error) {
	return s.apply(ctx, "cancel", id, EventCancelled, func(b *Booking, now time.Time) error {
		return Cancel(b, actor, reason, now, s.loc)
	})
}

func (s *Service) CheckIn(ctx context.Context, id uuid.UUID) (*Booking, error) {
	return s.apply(ctx, "check_in", id, EventCheckedIn, func(b *Booking, now time.Time) error {
		return CheckIn(b, now, s.loc)
	})
}

func (s *Service) StartVisit(ctx context.Context, id uuid.UUID) (*Booking, error) {
	return s.apply(ctx, "start_visit", id, EventVisitStarted, func(b *Booking, now time.Time) error {
		return StartVisit(b, now, s.loc)
	})
}

func (s *Service) CompleteVisit(ctx context.Context, id uuid.UUID, out VisitOutcome) (*Booking, error) {
	return s.apply(ctx, "complete_visit", id, EventVisitCompleted, func(b *Booking, now time.Time) error {
		return CompleteVisit(b, out, now, s.loc)
	})
}

func (s *Service) RateBooking(ctx context.Context, id uuid.UUID, stars int, comment string) (*Booking, error) {
	return s.apply(ctx, "rate", id, EventRated, func(b *Booking, now time.Time) error {
		return Rate(b, stars, comment, now)
	})
}

// RecordPayment applies a payment gateway callback.
func (s *Service) RecordPayment(ctx context.Context, id uuid.UUID, result PaymentStatus, transactionID string) (*Booking, error) {
	event := EventPaymentPaid
	if result == PaymentFailed {
		event = EventPaymentFailed
	}
	return s.apply(ctx, "payment", id, event, func(b *Booking, now time.Time) error {
		return RecordPayment(b, result, transactionID, now, s.loc)
	})
}

// apply loads the booking, runs one lifecycle step, re-checks the invariants
// and writes the result in a single transaction.
func (s *Service) apply(ctx context.Context, op string, id uuid.UUID, event Event, step func(b *Booking, now time.Time) error) (*Booking, error) {
	ctx, span := telemetry.StartSpan(ctx, "booking."+op, attribute.String("booking.id", id.String()))

	var b *Booking
	var released bool
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		b, err = s.bookings.GetByID(ctx, id)
		if err != nil {
			return err
		}
		held := b.Status.IsOccupying()
		if err := step(b, s.clock.Now()); err != nil {
			return err
		}
		if err := Validate(b); err != nil {
			return err
		}
		released = held && !b.Status.IsOccupying()
		return s.bookings.Update(ctx, b)
	})
	telemetry.EndSpan(span, err)
	if err != nil {
		s.refused(ctx, op, id, err)
		return nil, err
	}
	s.committed(ctx, b, event, released)
	return b, nil
}

// committed runs the post-commit side effects of a transition. Failures here
// are logged and never undo the transition.
func (s *Service) committed(ctx context.Context, b *Booking, event Event, slotChanged bool) {
	s.decorate(b)
	s.metrics.Transition(ctx, string(event))

	if event == EventCreated || slotChanged {
		if err := s.slots.Invalidate(ctx, b.DoctorID, b.Date); err != nil {
			s.logger.Warn().Err(err).Str("booking_id", b.ID.String()).Msg("slot cache invalidation failed")
		}
	}

	evt := events.New("booking."+string(event), s.clock.Now(), eventData{
		BookingID:     b.ID,
		Code:          b.Code,
		PatientID:     b.PatientID,
		DoctorID:      b.DoctorID,
		Date:          b.Date.Format("2006-01-02"),
		Shift:         b.Shift,
		Time:          b.Time,
		Status:        b.Status,
		PaymentStatus: b.PaymentStatus,
	})
	if err := s.events.Publish(ctx, evt); err != nil {
		s.logger.Warn().Err(err).Str("event", evt.Type).Str("booking_id", b.ID.String()).Msg("event publish failed")
	}

	s.logger.Info().
		Str("booking_id", b.ID.String()).
		Str("doctor_id", b.DoctorID.String()).
		Str("event", string(event)).
		Str("status", string(b.Status)).
		Str("payment_status", string(b.PaymentStatus)).
		Msg("booking transition")
}

func (s *Service) refused(ctx context.Context, op string, id uuid.UUID, err error) {
	var ae *apperr.Error
	if !errors.As(err, &ae) || ae.Kind == apperr.KindInternal {
		return
	}
	s.metrics.Rejection(ctx, op, ae.Code)
	ev := s.logger.Debug().Str("op", op).Str("code", ae.Code)
	if id != uuid.Nil {
		ev = ev.Str("booking_id", id.String())
	}
	ev.Msg("booking operation refused")
}

type eventData struct {
	BookingID     uuid.UUID            `json:"booking_id"`
	Code          string               `json:"code"`
	PatientID     uuid.UUID            `json:"patient_id"`
	DoctorID      uuid.UUID            `json:"doctor_id"`
	Date          string               `json:"date"`
	Shift         scheduling.Shift     `json:"shift"`
	Time          scheduling.TimeOfDay `json:"time"`
	Status        Status               `json:"status"`
	PaymentStatus PaymentStatus        `json:"payment_status"`
}

// =========== Reads ===========

func (s *Service) decorate(b *Booking) {
	b.Expired = b.IsExpired(s.today())
}

func (s *Service) GetBooking(ctx context.Context, id uuid.UUID) (*Booking, error) {
	b, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.decorate(b)
	return b, nil
}

func (s *Service) GetBookingByCode(ctx context.Context, code string) (*Booking, error) {
	b, err := s.bookings.GetByCode(ctx, strings.ToUpper(strings.TrimSpace(code)))
	if err != nil {
		return nil, err
	}
	s.decorate(b)
	return b, nil
}

func (s *Service) SearchBookings(ctx context.Context, f Filter, limit, offset int) ([]*Booking, int, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, 0, apperr.Validation("INVALID_STATUS", "unknown booking status").WithDetail("got %q", f.Status)
	}
	f.today = s.today()
	items, total, err := s.bookings.Search(ctx, f, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	for _, b := range items {
		s.decorate(b)
	}
	return items, total, nil
}
