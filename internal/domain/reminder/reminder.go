// Package reminder selects confirmed bookings due a pre-visit reminder and
// delivers each reminder at most once.
package reminder

import (
	"time"

	"github.com/clinic/clinic/internal/domain/booking"
)

const (
	// LeadTime is how long before the visit the reminder window opens.
	LeadTime = 24 * time.Hour
	// Window is the width of the reminder band. A sweep must run at least
	// this often or bookings fall through.
	Window = time.Hour
)

// ShouldSendReminder reports whether b is due a reminder at now: it is
// confirmed, not yet reminded, and now lies in [visit-24h, visit-23h) with
// the visit start read in loc.
func ShouldSendReminder(b *booking.Booking, now time.Time, loc *time.Location) bool {
	if b.Status != booking.StatusConfirmed || b.ReminderSent {
		return false
	}
	visit := b.ScheduledAt(loc)
	opens := visit.Add(-LeadTime)
	closes := opens.Add(Window)
	return !now.Before(opens) && now.Before(closes)
}
