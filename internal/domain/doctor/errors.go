package doctor

import "github.com/clinic/clinic/pkg/apperr"

var (
	ErrDoctorNotFound    = apperr.NotFound("DOCTOR_NOT_FOUND", "doctor not found")
	ErrLeaveNotFound     = apperr.NotFound("LEAVE_NOT_FOUND", "leave record not found")
	ErrInsufficientLeave = apperr.State("INSUFFICIENT_LEAVE", "not enough leave days remaining")
	ErrLeaveOverlap      = apperr.Conflict("LEAVE_OVERLAP", "leave overlaps an existing leave record")
	ErrLeaveStarted      = apperr.State("LEAVE_STARTED", "leave that has already started cannot be cancelled")
	ErrInvalidLeaveRange = apperr.Validation("INVALID_LEAVE_RANGE", "leave start must not be after its end")
	ErrInvalidDate       = apperr.Validation("INVALID_DATE", "date must not be in the past")
	ErrDoctorInactive    = apperr.State("DOCTOR_INACTIVE", "doctor is not accepting bookings")
	ErrConcurrentUpdate  = apperr.Conflict("CONCURRENT_UPDATE", "record was modified concurrently")
)
