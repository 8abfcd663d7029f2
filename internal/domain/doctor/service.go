package doctor

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinic/clinic/internal/platform/db"
	"github.com/clinic/clinic/pkg/apperr"
	"github.com/clinic/clinic/pkg/clock"
)

// SlotInvalidator drops cached availability of a doctor for the given days.
type SlotInvalidator interface {
	Invalidate(ctx context.Context, doctorID uuid.UUID, dates ...time.Time) error
}

type Option func(*Service)

// WithSlotInvalidator refreshes cached availability whenever leave changes.
func WithSlotInvalidator(inv SlotInvalidator) Option {
	return func(s *Service) { s.slots = inv }
}

type Service struct {
	doctors Repository
	leave   LeaveRepository
	tx      db.Transactor
	clock   clock.Clock
	loc     *time.Location
	logger  zerolog.Logger
	slots   SlotInvalidator
}

func NewService(doctors Repository, leave LeaveRepository, tx db.Transactor, clk clock.Clock, loc *time.Location, logger zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		doctors: doctors,
		leave:   leave,
		tx:      tx,
		clock:   clk,
		loc:     loc,
		logger:  logger.With().Str("component", "doctor").Logger(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// leaveChanged drops cached availability for every day the record covers.
func (s *Service) leaveChanged(ctx context.Context, rec *LeaveRecord) {
	if s.slots == nil {
		return
	}
	var days []time.Time
	for d := rec.StartDate; !d.After(rec.EndDate); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	if err := s.slots.Invalidate(ctx, rec.DoctorID, days...); err != nil {
		s.logger.Warn().Err(err).Str("doctor_id", rec.DoctorID.String()).Msg("slot cache invalidation failed")
	}
}

func (s *Service) GetDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	return s.doctors.GetByID(ctx, id)
}

// lockLedger loads the doctor row for update and applies the yearly reset.
// Must be called inside a transaction.
func (s *Service) lockLedger(ctx context.Context, doctorID uuid.UUID) (*Doctor, error) {
	d, err := s.doctors.GetForUpdate(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	if Rollover(d, s.clock.Now().In(s.loc).Year()) {
		if err := s.doctors.UpdateLedger(ctx, d); err != nil {
			return nil, err
		}
		s.logger.Info().Str("doctor_id", d.ID.String()).Int("year", d.LeaveYear).Msg("leave ledger rolled over")
	}
	return d, nil
}

// RemainingLeave returns the doctor's balance, persisting a yearly reset if
// one is due.
func (s *Service) RemainingLeave(ctx context.Context, doctorID uuid.UUID) (Balance, error) {
	var bal Balance
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		d, err := s.lockLedger(ctx, doctorID)
		if err != nil {
			return err
		}
		bal = balanceOf(d)
		return nil
	})
	return bal, err
}

// RequestLeave records approved leave for [start, end] and charges the
// inclusive day count against the doctor's allowance.
func (s *Service) RequestLeave(ctx context.Context, doctorID uuid.UUID, start, end time.Time, reason string) (*LeaveRecord, error) {
	start, end = clock.NormalizeDay(start), clock.NormalizeDay(end)
	if end.Before(start) {
		return nil, ErrInvalidLeaveRange
	}
	if start.Before(clock.Today(s.clock, s.loc)) {
		return nil, ErrInvalidDate.WithDetail("leave start %s", start.Format("2006-01-02"))
	}

	rec := &LeaveRecord{
		DoctorID:  doctorID,
		StartDate: start,
		EndDate:   end,
		Reason:    strings.TrimSpace(reason),
		Days:      clock.DaysInclusive(start, end),
	}

	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		d, err := s.lockLedger(ctx, doctorID)
		if err != nil {
			return err
		}

		overlapping, err := s.leave.ListOverlapping(ctx, doctorID, start, end)
		if err != nil {
			return err
		}
		if len(overlapping) > 0 {
			o := overlapping[0]
			return ErrLeaveOverlap.WithDetail("%s to %s", o.StartDate.Format("2006-01-02"), o.EndDate.Format("2006-01-02"))
		}

		if err := ConsumeLeave(d, rec.Days); err != nil {
			return err
		}
		if err := s.doctors.UpdateLedger(ctx, d); err != nil {
			return err
		}
		return s.leave.Create(ctx, rec)
	})
	if err != nil {
		if apperr.KindOf(err) != apperr.KindInternal {
			s.logger.Debug().Err(err).Str("doctor_id", doctorID.String()).Msg("leave request refused")
		}
		return nil, err
	}
	s.leaveChanged(ctx, rec)

	s.logger.Info().
		Str("doctor_id", doctorID.String()).
		Str("leave_id", rec.ID.String()).
		Int("days", rec.Days).
		Msg("leave recorded")
	return rec, nil
}

// CancelLeave soft-deletes a leave record that has not started yet and
// refunds its days. Days charged to an earlier ledger year are not refunded
// into the current one.
func (s *Service) CancelLeave(ctx context.Context, doctorID, leaveID uuid.UUID) (*LeaveRecord, error) {
	var rec *LeaveRecord
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		d, err := s.lockLedger(ctx, doctorID)
		if err != nil {
			return err
		}

		rec, err = s.leave.GetByID(ctx, leaveID)
		if err != nil {
			return err
		}
		if rec.DoctorID != doctorID || rec.Deleted {
			return ErrLeaveNotFound
		}
		if !rec.StartDate.After(clock.Today(s.clock, s.loc)) {
			return ErrLeaveStarted
		}

		now := s.clock.Now()
		if err := s.leave.SoftDelete(ctx, rec.ID, now); err != nil {
			return err
		}
		rec.Deleted = true
		rec.DeletedAt = &now

		if rec.CreatedAt.In(s.loc).Year() == d.LeaveYear {
			RefundLeave(d, rec.Days)
			return s.doctors.UpdateLedger(ctx, d)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.leaveChanged(ctx, rec)

	s.logger.Info().
		Str("doctor_id", doctorID.String()).
		Str("leave_id", leaveID.String()).
		Int("days", rec.Days).
		Msg("leave cancelled")
	return rec, nil
}

func (s *Service) ListLeave(ctx context.Context, doctorID uuid.UUID) ([]*LeaveRecord, error) {
	if _, err := s.doctors.GetByID(ctx, doctorID); err != nil {
		return nil, err
	}
	return s.leave.ListByDoctor(ctx, doctorID)
}

// OnLeave reports whether any approved leave covers day.
func (s *Service) OnLeave(ctx context.Context, doctorID uuid.UUID, day time.Time) (bool, error) {
	day = clock.NormalizeDay(day)
	recs, err := s.leave.ListOverlapping(ctx, doctorID, day, day)
	if err != nil {
		return false, err
	}
	return len(recs) > 0, nil
}
