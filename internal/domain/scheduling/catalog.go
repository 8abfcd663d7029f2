package scheduling

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/clinic/clinic/internal/domain/doctor"
	"github.com/clinic/clinic/pkg/clock"
)

// DoctorLookup resolves the doctor whose schedule is being computed.
type DoctorLookup interface {
	GetDoctor(ctx context.Context, id uuid.UUID) (*doctor.Doctor, error)
}

// LeaveChecker reports approved leave.
type LeaveChecker interface {
	OnLeave(ctx context.Context, doctorID uuid.UUID, day time.Time) (bool, error)
}

// Catalog computes the windows and slots a doctor offers on a date from the
// facility defaults, the doctor's weekly overrides and approved leave.
type Catalog struct {
	doctors   DoctorLookup
	templates TemplateRepository
	leave     LeaveChecker
}

func NewCatalog(doctors DoctorLookup, templates TemplateRepository, leave LeaveChecker) *Catalog {
	return &Catalog{doctors: doctors, templates: templates, leave: leave}
}

// Day is the catalog's answer for one doctor and date.
type Day struct {
	Doctor  *doctor.Doctor
	Date    time.Time
	Windows []Window
	Slots   []Slot
}

// Offers reports whether (shift, t) is one of the day's slots.
func (d *Day) Offers(shift Shift, t TimeOfDay) bool {
	for _, s := range d.Slots {
		if s.Shift == shift && s.Time == t {
			return true
		}
	}
	return false
}

// Window returns the day's window for shift, if the shift is worked.
func (d *Day) Window(shift Shift) (Window, bool) {
	for _, w := range d.Windows {
		if w.Shift == shift {
			return w, true
		}
	}
	return Window{}, false
}

// Resolve computes the doctor's schedule for date. Inactive doctors and days
// covered by leave have no windows. An unknown doctor is an error.
func (c *Catalog) Resolve(ctx context.Context, doctorID uuid.UUID, date time.Time) (*Day, error) {
	date = clock.NormalizeDay(date)
	d, err := c.doctors.GetDoctor(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	day := &Day{Doctor: d, Date: date}
	if !d.Active {
		return day, nil
	}

	onLeave, err := c.leave.OnLeave(ctx, doctorID, date)
	if err != nil {
		return nil, err
	}
	if onLeave {
		return day, nil
	}

	wd := WeekdayOf(date)
	overrides, err := c.templates.ListOverridesForDay(ctx, doctorID, wd)
	if err != nil {
		return nil, err
	}
	var defaults []*FacilityDefaultSchedule
	if len(overrides) == 0 {
		defaults, err = c.templates.ListDefaultsForDay(ctx, d.FacilityID, wd)
		if err != nil {
			return nil, err
		}
	}

	day.Windows = ResolveWindows(overrides, defaults)
	day.Slots = SubdivideSlots(day.Windows, d.VisitDuration(), d.DailyCapacity())
	return day, nil
}

// ResolveWindows merges one weekday's templates. When any live override is
// present it is the whole day and defaults are ignored; otherwise active
// defaults apply. Windows are ordered by shift then start time.
func ResolveWindows(overrides []*WeeklyScheduleOverride, defaults []*FacilityDefaultSchedule) []Window {
	var out []Window
	for _, o := range overrides {
		if !o.Deleted && o.End > o.Start {
			out = append(out, Window{Shift: o.Shift, Start: o.Start, End: o.End})
		}
	}
	if len(out) == 0 {
		for _, d := range defaults {
			if d.Active && d.End > d.Start {
				out = append(out, Window{Shift: d.Shift, Start: d.Start, End: d.End})
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Shift != out[j].Shift {
			return shiftOrder[out[i].Shift] < shiftOrder[out[j].Shift]
		}
		return out[i].Start < out[j].Start
	})
	return out
}

// SubdivideSlots cuts each window into visit-length slots that fit entirely
// inside it, stopping once maxPerDay slots have been produced across all
// windows. A window shorter than one visit yields nothing.
func SubdivideSlots(windows []Window, visitMinutes, maxPerDay int) []Slot {
	if visitMinutes <= 0 || maxPerDay <= 0 {
		return nil
	}
	step := TimeOfDay(visitMinutes)
	var slots []Slot
	for _, w := range windows {
		for t := w.Start; t+step <= w.End; t += step {
			if len(slots) >= maxPerDay {
				return slots
			}
			slots = append(slots, Slot{Shift: w.Shift, Time: t})
		}
	}
	return slots
}
