package booking

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/clinic/clinic/internal/domain/scheduling"
)

// errCodeTaken is returned by Create when the confirmation code collides.
var errCodeTaken = errors.New("confirmation code already in use")

type Repository interface {
	// Create inserts b and fills ID, VersionID and timestamps. It returns
	// ErrSlotTaken when an occupying booking already holds the slot and
	// errCodeTaken on a confirmation code collision.
	Create(ctx context.Context, b *Booking) error
	GetByID(ctx context.Context, id uuid.UUID) (*Booking, error)
	GetByCode(ctx context.Context, code string) (*Booking, error)
	// Update writes b when its VersionID still matches, otherwise returns
	// ErrConcurrentUpdate.
	Update(ctx context.Context, b *Booking) error
	Search(ctx context.Context, f Filter, limit, offset int) ([]*Booking, int, error)

	// LockDoctorDay serializes reservations for one doctor and date until the
	// surrounding transaction ends.
	LockDoctorDay(ctx context.Context, doctorID uuid.UUID, date time.Time) error
	SlotOccupied(ctx context.Context, doctorID uuid.UUID, date time.Time, shift scheduling.Shift, t scheduling.TimeOfDay) (bool, error)
	CountOccupying(ctx context.Context, doctorID uuid.UUID, date time.Time) (int, error)
	ListOccupiedSlots(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]scheduling.Slot, error)

	// ListReminderCandidates returns confirmed bookings without a reminder
	// whose date is between from and to inclusive.
	ListReminderCandidates(ctx context.Context, from, to time.Time) ([]*Booking, error)
	// MarkReminderSent sets the reminder flag on a confirmed booking unless it
	// is already set. It reports whether this call set it.
	MarkReminderSent(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
}
