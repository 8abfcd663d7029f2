package booking

import (
	"github.com/clinic/clinic/internal/domain/doctor"
	"github.com/clinic/clinic/pkg/apperr"
)

// Validation
var (
	ErrInvalidDate             = doctor.ErrInvalidDate
	ErrTimeOutsideShift        = apperr.Validation("TIME_OUTSIDE_SHIFT", "time is outside the shift's working hours")
	ErrInvalidShift            = apperr.Validation("INVALID_SHIFT", "shift must be Morning, Afternoon or Evening")
	ErrInvalidPrice            = apperr.Validation("INVALID_PRICE", "price must be positive")
	ErrInvalidRating           = apperr.Validation("INVALID_RATING", "rating must be between 1 and 5")
	ErrInvalidFollowUp         = apperr.Validation("INVALID_FOLLOW_UP", "follow-up date must be after the visit date")
	ErrInvalidPaymentMethod    = apperr.Validation("INVALID_PAYMENT_METHOD", "payment method must be cash, card, e_wallet or bank_transfer")
	ErrInvalidPaymentStatus    = apperr.Validation("INVALID_PAYMENT_STATUS", "payment result must be paid or failed")
	ErrRejectionReasonRequired = apperr.Validation("REJECTION_REASON_REQUIRED", "a reason is required to reject a booking")
	ErrFacilityMismatch        = apperr.Validation("FACILITY_MISMATCH", "doctor does not practise at this facility")
	ErrInvalidActor            = apperr.Validation("INVALID_ACTOR", "cancellation actor must be patient or doctor")
)

// Conflict
var (
	ErrSlotTaken        = apperr.Conflict("SLOT_TAKEN", "slot is already booked")
	ErrCapacityExceeded = apperr.Conflict("CAPACITY_EXCEEDED", "doctor is fully booked for this date")
	ErrDuplicateCode    = apperr.Conflict("DUPLICATE_CODE", "could not allocate a unique confirmation code")
	ErrConcurrentUpdate = doctor.ErrConcurrentUpdate
)

// State
var (
	ErrSlotNotOffered    = apperr.State("SLOT_NOT_OFFERED", "doctor does not offer this slot on this date")
	ErrNotPending        = apperr.State("NOT_PENDING", "booking is not awaiting doctor confirmation")
	ErrPaymentRequired   = apperr.State("PAYMENT_REQUIRED", "online payment must be completed before confirmation")
	ErrNotCancellable    = apperr.State("NOT_CANCELLABLE", "booking can no longer be cancelled")
	ErrNotRatable        = apperr.State("NOT_RATABLE", "only a completed, unrated visit can be rated")
	ErrInvalidTransition = apperr.State("INVALID_TRANSITION", "transition not allowed from the current status")
	ErrBookingExpired    = apperr.State("BOOKING_EXPIRED", "booking date has passed")
	ErrCheckInTooEarly   = apperr.State("CHECK_IN_TOO_EARLY", "check-in opens at the scheduled time on the visit day")
	ErrPaymentClosed     = apperr.State("PAYMENT_CLOSED", "payment can no longer change for this booking")
)

// NotFound
var ErrBookingNotFound = apperr.NotFound("BOOKING_NOT_FOUND", "booking not found")
