package booking

import (
	"strings"
	"time"

	"github.com/clinic/clinic/pkg/apperr"
	"github.com/clinic/clinic/pkg/clock"
)

// The functions below apply one lifecycle event to a booking in memory. Each
// either mutates b and returns nil, or returns a typed error and leaves b
// untouched. Persisting the result is the caller's job.

// transition moves b to `to` when the table allows it, otherwise returns
// refusal.
func transition(b *Booking, event Event, to Status, refusal *apperr.Error) error {
	if !CanTransition(b.Status, event, to) {
		return refusal.WithDetail("status is %s", b.Status)
	}
	b.Status = to
	return nil
}

// Confirm records the doctor's acceptance. Bookings paid online must be paid
// first.
func Confirm(b *Booking, now time.Time, loc *time.Location) error {
	if b.IsExpired(clock.Day(now, loc)) {
		return ErrBookingExpired
	}
	if b.Status != StatusPendingConfirmation {
		return ErrNotPending.WithDetail("status is %s", b.Status)
	}
	if b.PaymentMethod.IsOnline() && b.PaymentStatus != PaymentPaid {
		return ErrPaymentRequired.WithDetail("payment is %s", b.PaymentStatus)
	}
	if err := transition(b, EventConfirmed, StatusConfirmed, ErrNotPending); err != nil {
		return err
	}
	b.ConfirmedAt = &now
	return nil
}

// Reject records the doctor's refusal. A paid booking is refunded.
func Reject(b *Booking, reason string, now time.Time, loc *time.Location) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return ErrRejectionReasonRequired
	}
	if b.IsExpired(clock.Day(now, loc)) {
		return ErrBookingExpired
	}
	if err := transition(b, EventRejected, StatusRejectedByDoctor, ErrNotPending); err != nil {
		return err
	}
	b.RejectionReason = &reason
	refundIfPaid(b, now, "rejected by doctor: "+reason)
	return nil
}

// Cancel ends a pending or confirmed booking on behalf of actor. The slot is
// released and a paid booking is refunded.
func Cancel(b *Booking, actor Actor, reason string, now time.Time, loc *time.Location) error {
	var to Status
	switch actor {
	case ActorPatient:
		to = StatusCancelledByPatient
	case ActorDoctor:
		to = StatusCancelledByDoctor
	default:
		return ErrInvalidActor.WithDetail("got %q", actor)
	}
	if b.IsExpired(clock.Day(now, loc)) {
		return ErrBookingExpired
	}
	if !b.Status.IsCancellable() {
		return ErrNotCancellable.WithDetail("status is %s", b.Status)
	}
	if err := transition(b, EventCancelled, to, ErrNotCancellable); err != nil {
		return err
	}
	b.CancelledAt = &now
	b.CancelledBy = &actor
	if reason = strings.TrimSpace(reason); reason != "" {
		b.CancelReason = &reason
	}
	refundReason := "cancelled by " + string(actor)
	if reason != "" {
		refundReason += ": " + reason
	}
	refundIfPaid(b, now, refundReason)
	return nil
}

// CheckIn admits the patient on the visit day, at or after the scheduled time.
func CheckIn(b *Booking, now time.Time, loc *time.Location) error {
	today := clock.Day(now, loc)
	if b.IsExpired(today) {
		return ErrBookingExpired
	}
	if b.Status != StatusConfirmed {
		return ErrInvalidTransition.WithDetail("cannot check in from %s", b.Status)
	}
	if !b.Date.Equal(today) || now.Before(b.ScheduledAt(loc)) {
		return ErrCheckInTooEarly.WithDetail("scheduled %s", b.ScheduledAt(loc).Format(time.RFC3339))
	}
	if err := transition(b, EventCheckedIn, StatusCheckedIn, ErrInvalidTransition); err != nil {
		return err
	}
	b.CheckedInAt = &now
	return nil
}

// StartVisit opens the consultation of a checked-in patient.
func StartVisit(b *Booking, now time.Time, loc *time.Location) error {
	if b.IsExpired(clock.Day(now, loc)) {
		return ErrBookingExpired
	}
	if err := transition(b, EventVisitStarted, StatusInProgress, ErrInvalidTransition); err != nil {
		return err
	}
	b.VisitStartedAt = &now
	return nil
}

// VisitOutcome is what the doctor records when a visit ends.
type VisitOutcome struct {
	Diagnosis    string     `json:"diagnosis"`
	Prescription string     `json:"prescription"`
	Notes        string     `json:"notes"`
	FollowUpDate *time.Time `json:"follow_up_date,omitempty"`
}

// CompleteVisit closes an in-progress visit and opens it for rating.
func CompleteVisit(b *Booking, out VisitOutcome, now time.Time, loc *time.Location) error {
	if b.IsExpired(clock.Day(now, loc)) {
		return ErrBookingExpired
	}
	if out.FollowUpDate != nil {
		fu := clock.NormalizeDay(*out.FollowUpDate)
		if err := validateFollowUp(b.Date, fu); err != nil {
			return err
		}
		out.FollowUpDate = &fu
	}
	if err := transition(b, EventVisitCompleted, StatusCompleted, ErrInvalidTransition); err != nil {
		return err
	}
	b.VisitCompletedAt = &now
	b.Diagnosis = optional(out.Diagnosis)
	b.Prescription = optional(out.Prescription)
	b.Notes = optional(out.Notes)
	b.FollowUpDate = out.FollowUpDate
	return nil
}

// Rate stores the patient's rating. A visit is rated at most once and the
// rating cannot be changed afterwards.
func Rate(b *Booking, stars int, comment string, now time.Time) error {
	if err := validateRating(stars); err != nil {
		return err
	}
	if b.Status != StatusCompleted {
		return ErrNotRatable.WithDetail("status is %s", b.Status)
	}
	if b.Rating != nil {
		return ErrNotRatable.WithDetail("already rated")
	}
	b.Rating = &stars
	b.RatingComment = optional(comment)
	b.RatedAt = &now
	return nil
}

// RecordPayment applies a payment gateway result. Only paid and failed are
// accepted; a failed attempt may be followed by a successful one.
func RecordPayment(b *Booking, result PaymentStatus, transactionID string, now time.Time, loc *time.Location) error {
	if result != PaymentPaid && result != PaymentFailed {
		return ErrInvalidPaymentStatus.WithDetail("got %q", result)
	}
	if b.IsExpired(clock.Day(now, loc)) {
		return ErrBookingExpired
	}
	if b.Status.IsTerminal() {
		return ErrPaymentClosed.WithDetail("status is %s", b.Status)
	}
	if b.PaymentStatus == PaymentPaid || b.PaymentStatus == PaymentRefunded {
		return ErrPaymentClosed.WithDetail("payment is %s", b.PaymentStatus)
	}
	b.PaymentStatus = result
	b.TransactionID = optional(transactionID)
	if result == PaymentPaid {
		b.PaidAt = &now
	}
	return nil
}

func refundIfPaid(b *Booking, now time.Time, reason string) {
	if b.PaymentStatus != PaymentPaid {
		return
	}
	amount := b.Price
	b.PaymentStatus = PaymentRefunded
	b.RefundedAt = &now
	b.RefundAmount = &amount
	b.RefundReason = &reason
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
