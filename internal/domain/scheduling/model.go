package scheduling

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// Shift is a named daily work period.
type Shift string

const (
	ShiftMorning   Shift = "Morning"
	ShiftAfternoon Shift = "Afternoon"
	ShiftEvening   Shift = "Evening"
)

var shiftOrder = map[Shift]int{
	ShiftMorning:   0,
	ShiftAfternoon: 1,
	ShiftEvening:   2,
}

func (s Shift) Valid() bool {
	_, ok := shiftOrder[s]
	return ok
}

// Weekday numbers days 2 (Monday) through 8 (Sunday).
type Weekday int

const (
	Monday Weekday = iota + 2
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

func (w Weekday) Valid() bool { return w >= Monday && w <= Sunday }

// WeekdayOf returns the Weekday of a calendar day.
func WeekdayOf(day time.Time) Weekday {
	wd := day.Weekday()
	if wd == time.Sunday {
		return Sunday
	}
	return Weekday(int(wd) + 1)
}

// TimeOfDay is minutes past midnight. It is written as "HH:MM" in JSON.
type TimeOfDay int

func NewTimeOfDay(hour, minute int) TimeOfDay { return TimeOfDay(hour*60 + minute) }

func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("time of day %q must be HH:MM", s)
	}
	return NewTimeOfDay(t.Hour(), t.Minute()), nil
}

func (t TimeOfDay) Minutes() int { return int(t) }

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *TimeOfDay) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	v, err := ParseTimeOfDay(s)
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// PGTime converts to the pgx representation of a TIME column.
func (t TimeOfDay) PGTime() pgtype.Time {
	return pgtype.Time{Microseconds: int64(t) * int64(time.Minute/time.Microsecond), Valid: true}
}

// TimeOfDayFromPG converts a scanned TIME column, dropping seconds.
func TimeOfDayFromPG(p pgtype.Time) TimeOfDay {
	return TimeOfDay(p.Microseconds / int64(time.Minute/time.Microsecond))
}

// Window is one open period of a working day.
type Window struct {
	Shift Shift     `json:"shift"`
	Start TimeOfDay `json:"start"`
	End   TimeOfDay `json:"end"`
}

// Contains reports whether t lies in [Start, End).
func (w Window) Contains(t TimeOfDay) bool {
	return t >= w.Start && t < w.End
}

// Slot is a bookable start time inside a shift.
type Slot struct {
	Shift Shift     `json:"shift"`
	Time  TimeOfDay `json:"time"`
}

// FacilityDefaultSchedule is a facility's standard hours for one weekday shift.
type FacilityDefaultSchedule struct {
	ID         uuid.UUID `db:"id" json:"id"`
	FacilityID uuid.UUID `db:"facility_id" json:"facility_id"`
	Weekday    Weekday   `db:"weekday" json:"weekday"`
	Shift      Shift     `db:"shift" json:"shift"`
	Start      TimeOfDay `db:"start_time" json:"start_time"`
	End        TimeOfDay `db:"end_time" json:"end_time"`
	Active     bool      `db:"active" json:"active"`
	VersionID  int       `db:"version_id" json:"version_id"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// WeeklyScheduleOverride replaces the facility default for one doctor on one weekday.
type WeeklyScheduleOverride struct {
	ID        uuid.UUID `db:"id" json:"id"`
	DoctorID  uuid.UUID `db:"doctor_id" json:"doctor_id"`
	Weekday   Weekday   `db:"weekday" json:"weekday"`
	Shift     Shift     `db:"shift" json:"shift"`
	Start     TimeOfDay `db:"start_time" json:"start_time"`
	End       TimeOfDay `db:"end_time" json:"end_time"`
	Deleted   bool      `db:"deleted" json:"deleted"`
	VersionID int       `db:"version_id" json:"version_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
