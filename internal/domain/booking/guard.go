package booking

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/clinic/clinic/internal/domain/scheduling"
)

// Catalog resolves the slots a doctor offers on a date.
type Catalog interface {
	Resolve(ctx context.Context, doctorID uuid.UUID, date time.Time) (*scheduling.Day, error)
}

// ConflictGuard admits a new booking for a slot. Reserve must run inside the
// same transaction as the insert that follows it.
type ConflictGuard struct {
	catalog  Catalog
	bookings Repository
}

func NewConflictGuard(catalog Catalog, bookings Repository) *ConflictGuard {
	return &ConflictGuard{catalog: catalog, bookings: bookings}
}

// Reserve checks, in order, that the doctor offers (shift, t) on date, that
// no occupying booking holds it, and that the day is under capacity. The
// doctor/date pair is locked until the transaction ends so concurrent
// reservations are decided one at a time.
func (g *ConflictGuard) Reserve(ctx context.Context, doctorID uuid.UUID, date time.Time, shift scheduling.Shift, t scheduling.TimeOfDay) (*scheduling.Day, error) {
	day, err := g.catalog.Resolve(ctx, doctorID, date)
	if err != nil {
		return nil, err
	}
	if !day.Offers(shift, t) {
		if w, ok := day.Window(shift); ok && !w.Contains(t) {
			return nil, ErrTimeOutsideShift.WithDetail("%s %s is outside %s-%s", shift, t, w.Start, w.End)
		}
		return nil, ErrSlotNotOffered.WithDetail("%s %s %s", date.Format("2006-01-02"), shift, t)
	}

	if err := g.bookings.LockDoctorDay(ctx, doctorID, date); err != nil {
		return nil, err
	}

	taken, err := g.bookings.SlotOccupied(ctx, doctorID, date, shift, t)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrSlotTaken.WithDetail("%s %s %s", date.Format("2006-01-02"), shift, t)
	}

	n, err := g.bookings.CountOccupying(ctx, doctorID, date)
	if err != nil {
		return nil, err
	}
	if n >= day.Doctor.DailyCapacity() {
		return nil, ErrCapacityExceeded.WithDetail("%d of %d booked", n, day.Doctor.DailyCapacity())
	}
	return day, nil
}
