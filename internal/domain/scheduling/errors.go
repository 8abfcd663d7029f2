package scheduling

import "github.com/clinic/clinic/pkg/apperr"

var (
	ErrInvalidWeekday = apperr.Validation("INVALID_WEEKDAY", "weekday must be between 2 (Monday) and 8 (Sunday)")
	ErrInvalidShift   = apperr.Validation("INVALID_SHIFT", "shift must be Morning, Afternoon or Evening")
	ErrInvalidWindow  = apperr.Validation("INVALID_WINDOW", "shift end must be after its start")
	ErrDuplicateShift = apperr.Validation("DUPLICATE_SHIFT", "each weekday shift may appear once")
	ErrNotFound       = apperr.NotFound("SCHEDULE_NOT_FOUND", "schedule entry not found")
)

func validateEntry(w Weekday, s Shift, start, end TimeOfDay) error {
	if !w.Valid() {
		return ErrInvalidWeekday.WithDetail("got %d", w)
	}
	if !s.Valid() {
		return ErrInvalidShift.WithDetail("got %q", s)
	}
	if start < 0 || end > NewTimeOfDay(24, 0) || end <= start {
		return ErrInvalidWindow.WithDetail("%s-%s", start, end)
	}
	return nil
}
