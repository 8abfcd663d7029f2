package doctor

import (
	"time"

	"github.com/google/uuid"
)

const (
	DefaultVisitDurationMinutes = 30
	DefaultMaxPatientsPerDay    = 20
	DefaultLeaveAllowance       = 12
)

// QualificationLevel sets the default price of a visit with a doctor holding it.
type QualificationLevel struct {
	ID         uuid.UUID `db:"id" json:"id"`
	Name       string    `db:"name" json:"name"`
	VisitPrice int64     `db:"visit_price" json:"visit_price"`
}

type Doctor struct {
	ID                   uuid.UUID  `db:"id" json:"id"`
	FacilityID           uuid.UUID  `db:"facility_id" json:"facility_id"`
	SpecialtyID          *uuid.UUID `db:"specialty_id" json:"specialty_id,omitempty"`
	QualificationLevelID uuid.UUID  `db:"qualification_level_id" json:"qualification_level_id"`
	FullName             string     `db:"full_name" json:"full_name"`
	YearsOfExperience    int        `db:"years_of_experience" json:"years_of_experience"`
	VisitDurationMinutes int        `db:"visit_duration_minutes" json:"visit_duration_minutes"`
	MaxPatientsPerDay    int        `db:"max_patients_per_day" json:"max_patients_per_day"`
	Active               bool       `db:"active" json:"active"`
	LeaveAllowance       int        `db:"leave_allowance" json:"leave_allowance"`
	LeaveUsed            int        `db:"leave_used" json:"leave_used"`
	LeaveYear            int        `db:"leave_year" json:"leave_year"`
	// VisitPrice is read from the doctor's qualification level.
	VisitPrice int64     `db:"visit_price" json:"visit_price"`
	VersionID  int       `db:"version_id" json:"version_id"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// VisitDuration returns the slot length, falling back to the default when unset.
func (d *Doctor) VisitDuration() int {
	if d.VisitDurationMinutes <= 0 {
		return DefaultVisitDurationMinutes
	}
	return d.VisitDurationMinutes
}

// DailyCapacity returns the per-day booking cap, falling back to the default.
func (d *Doctor) DailyCapacity() int {
	if d.MaxPatientsPerDay <= 0 {
		return DefaultMaxPatientsPerDay
	}
	return d.MaxPatientsPerDay
}

// LeaveRecord is an approved absence covering StartDate through EndDate inclusive.
type LeaveRecord struct {
	ID        uuid.UUID  `db:"id" json:"id"`
	DoctorID  uuid.UUID  `db:"doctor_id" json:"doctor_id"`
	StartDate time.Time  `db:"start_date" json:"start_date"`
	EndDate   time.Time  `db:"end_date" json:"end_date"`
	Reason    string     `db:"reason" json:"reason"`
	Days      int        `db:"days" json:"days"`
	Deleted   bool       `db:"deleted" json:"deleted"`
	DeletedAt *time.Time `db:"deleted_at" json:"deleted_at,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
}

// Covers reports whether day falls within the leave range.
func (l *LeaveRecord) Covers(day time.Time) bool {
	return !day.Before(l.StartDate) && !day.After(l.EndDate)
}

// Overlaps reports whether the leave range intersects [start, end].
func (l *LeaveRecord) Overlaps(start, end time.Time) bool {
	return !l.EndDate.Before(start) && !l.StartDate.After(end)
}

// Balance is the ledger view returned to callers.
type Balance struct {
	DoctorID  uuid.UUID `json:"doctor_id"`
	Year      int       `json:"year"`
	Allowance int       `json:"allowance"`
	Used      int       `json:"used"`
	Remaining int       `json:"remaining"`
}
