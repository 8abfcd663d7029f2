package booking

import (
	"time"

	"github.com/google/uuid"

	"github.com/clinic/clinic/internal/domain/scheduling"
)

// Status is the lifecycle state of a booking. Expired is never stored; see
// Booking.IsExpired.
type Status string

const (
	StatusPendingConfirmation Status = "pending_doctor_confirmation"
	StatusConfirmed           Status = "confirmed"
	StatusCheckedIn           Status = "checked_in"
	StatusInProgress          Status = "in_progress"
	StatusCompleted           Status = "completed"
	StatusRejectedByDoctor    Status = "rejected_by_doctor"
	StatusCancelledByPatient  Status = "cancelled_by_patient"
	StatusCancelledByDoctor   Status = "cancelled_by_doctor"
	StatusExpired             Status = "expired"
)

type statusTraits struct {
	occupying   bool
	cancellable bool
	active      bool
	terminal    bool
}

// traits is the single table of status predicates.
var traits = map[Status]statusTraits{
	StatusPendingConfirmation: {occupying: true, cancellable: true, active: true},
	StatusConfirmed:           {occupying: true, cancellable: true, active: true},
	StatusCheckedIn:           {occupying: true, active: true},
	StatusInProgress:          {occupying: true, active: true},
	StatusCompleted:           {terminal: true},
	StatusRejectedByDoctor:    {terminal: true},
	StatusCancelledByPatient:  {terminal: true},
	StatusCancelledByDoctor:   {terminal: true},
	StatusExpired:             {terminal: true},
}

func (s Status) Valid() bool {
	_, ok := traits[s]
	return ok
}

// IsOccupying reports whether a booking in s still holds its slot.
func (s Status) IsOccupying() bool { return traits[s].occupying }

func (s Status) IsCancellable() bool { return traits[s].cancellable }
func (s Status) IsActive() bool      { return traits[s].active }
func (s Status) IsTerminal() bool    { return traits[s].terminal }

// OccupyingStatuses lists every status that holds a slot, for queries.
func OccupyingStatuses() []Status {
	return []Status{StatusPendingConfirmation, StatusConfirmed, StatusCheckedIn, StatusInProgress}
}

// Event names a lifecycle transition.
type Event string

const (
	EventCreated        Event = "created"
	EventConfirmed      Event = "confirmed"
	EventRejected       Event = "rejected"
	EventCancelled      Event = "cancelled"
	EventCheckedIn      Event = "checked_in"
	EventVisitStarted   Event = "visit_started"
	EventVisitCompleted Event = "visit_completed"
	EventRated          Event = "rated"
	EventPaymentPaid    Event = "payment_paid"
	EventPaymentFailed  Event = "payment_failed"
)

// transitions is the legal state machine. Cancellation targets depend on the
// actor and are listed under both cancel statuses.
var transitions = map[Status]map[Event][]Status{
	StatusPendingConfirmation: {
		EventConfirmed: {StatusConfirmed},
		EventRejected:  {StatusRejectedByDoctor},
		EventCancelled: {StatusCancelledByPatient, StatusCancelledByDoctor},
	},
	StatusConfirmed: {
		EventCheckedIn: {StatusCheckedIn},
		EventCancelled: {StatusCancelledByPatient, StatusCancelledByDoctor},
	},
	StatusCheckedIn: {
		EventVisitStarted: {StatusInProgress},
	},
	StatusInProgress: {
		EventVisitCompleted: {StatusCompleted},
	},
}

// CanTransition reports whether event may move a booking from -> to.
func CanTransition(from Status, event Event, to Status) bool {
	for _, s := range transitions[from][event] {
		if s == to {
			return true
		}
	}
	return false
}

type PaymentMethod string

const (
	PaymentCash         PaymentMethod = "cash"
	PaymentCard         PaymentMethod = "card"
	PaymentEWallet      PaymentMethod = "e_wallet"
	PaymentBankTransfer PaymentMethod = "bank_transfer"
)

var onlineMethods = map[PaymentMethod]bool{
	PaymentCash:         false,
	PaymentCard:         true,
	PaymentEWallet:      true,
	PaymentBankTransfer: true,
}

func (m PaymentMethod) Valid() bool {
	_, ok := onlineMethods[m]
	return ok
}

// IsOnline reports whether the method is settled through the payment gateway
// and must be paid before the doctor can confirm.
func (m PaymentMethod) IsOnline() bool { return onlineMethods[m] }

type PaymentStatus string

const (
	PaymentUnpaid   PaymentStatus = "unpaid"
	PaymentPaid     PaymentStatus = "paid"
	PaymentRefunded PaymentStatus = "refunded"
	PaymentFailed   PaymentStatus = "failed"
)

// Actor is who cancelled a booking.
type Actor string

const (
	ActorPatient Actor = "patient"
	ActorDoctor  Actor = "doctor"
)

type Booking struct {
	ID               uuid.UUID            `db:"id" json:"id"`
	Code             string               `db:"code" json:"code"`
	PatientID        uuid.UUID            `db:"patient_id" json:"patient_id"`
	DoctorID         uuid.UUID            `db:"doctor_id" json:"doctor_id"`
	FacilityID       uuid.UUID            `db:"facility_id" json:"facility_id"`
	Date             time.Time            `db:"date" json:"date"`
	Shift            scheduling.Shift     `db:"shift" json:"shift"`
	Time             scheduling.TimeOfDay `db:"time" json:"time"`
	Reason           string               `db:"reason" json:"reason"`
	Status           Status               `db:"status" json:"status"`
	Price            int64                `db:"price" json:"price"`
	PaymentMethod    PaymentMethod        `db:"payment_method" json:"payment_method"`
	PaymentStatus    PaymentStatus        `db:"payment_status" json:"payment_status"`
	TransactionID    *string              `db:"transaction_id" json:"transaction_id,omitempty"`
	PaidAt           *time.Time           `db:"paid_at" json:"paid_at,omitempty"`
	ConfirmedAt      *time.Time           `db:"confirmed_at" json:"confirmed_at,omitempty"`
	RejectionReason  *string              `db:"rejection_reason" json:"rejection_reason,omitempty"`
	CancelledAt      *time.Time           `db:"cancelled_at" json:"cancelled_at,omitempty"`
	CancelReason     *string              `db:"cancel_reason" json:"cancel_reason,omitempty"`
	CancelledBy      *Actor               `db:"cancelled_by" json:"cancelled_by,omitempty"`
	CheckedInAt      *time.Time           `db:"checked_in_at" json:"checked_in_at,omitempty"`
	VisitStartedAt   *time.Time           `db:"visit_started_at" json:"visit_started_at,omitempty"`
	VisitCompletedAt *time.Time           `db:"visit_completed_at" json:"visit_completed_at,omitempty"`
	Diagnosis        *string              `db:"diagnosis" json:"diagnosis,omitempty"`
	Prescription     *string              `db:"prescription" json:"prescription,omitempty"`
	Notes            *string              `db:"notes" json:"notes,omitempty"`
	FollowUpDate     *time.Time           `db:"follow_up_date" json:"follow_up_date,omitempty"`
	ReminderSent     bool                 `db:"reminder_sent" json:"reminder_sent"`
	ReminderSentAt   *time.Time           `db:"reminder_sent_at" json:"reminder_sent_at,omitempty"`
	RefundedAt       *time.Time           `db:"refunded_at" json:"refunded_at,omitempty"`
	RefundAmount     *int64               `db:"refund_amount" json:"refund_amount,omitempty"`
	RefundReason     *string              `db:"refund_reason" json:"refund_reason,omitempty"`
	Rating           *int                 `db:"rating" json:"rating,omitempty"`
	RatingComment    *string              `db:"rating_comment" json:"rating_comment,omitempty"`
	RatedAt          *time.Time           `db:"rated_at" json:"rated_at,omitempty"`
	VersionID        int                  `db:"version_id" json:"version_id"`
	CreatedAt        time.Time            `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time            `db:"updated_at" json:"updated_at"`

	// Expired is derived on read, never stored.
	Expired bool `db:"-" json:"expired"`
}

// ScheduledAt is the visit start as an instant in loc.
func (b *Booking) ScheduledAt(loc *time.Location) time.Time {
	return time.Date(b.Date.Year(), b.Date.Month(), b.Date.Day(), 0, b.Time.Minutes(), 0, 0, loc)
}

// IsExpired is true once the visit day has passed while the booking was
// still active.
func (b *Booking) IsExpired(today time.Time) bool {
	return b.Status.IsActive() && today.After(b.Date)
}

// EffectiveStatus reports Expired in place of the stored status when the
// booking has lapsed.
func (b *Booking) EffectiveStatus(today time.Time) Status {
	if b.IsExpired(today) {
		return StatusExpired
	}
	return b.Status
}

// Filter narrows a booking search. Zero values are ignored. Searching for
// StatusExpired matches active bookings dated before today.
type Filter struct {
	PatientID *uuid.UUID
	DoctorID  *uuid.UUID
	Status    Status
	From      *time.Time
	To        *time.Time

	today time.Time
}
