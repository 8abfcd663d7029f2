package scheduling

import (
	"context"

	"github.com/google/uuid"
)

type TemplateRepository interface {
	// ListOverrides returns the doctor's live overrides for every weekday.
	ListOverrides(ctx context.Context, doctorID uuid.UUID) ([]*WeeklyScheduleOverride, error)
	ListOverridesForDay(ctx context.Context, doctorID uuid.UUID, wd Weekday) ([]*WeeklyScheduleOverride, error)
	// UpsertOverride inserts or revives the (doctor, weekday, shift) row.
	UpsertOverride(ctx context.Context, o *WeeklyScheduleOverride) error
	// DeleteOverride soft-deletes the (doctor, weekday, shift) row.
	DeleteOverride(ctx context.Context, doctorID uuid.UUID, wd Weekday, shift Shift) error

	ListDefaults(ctx context.Context, facilityID uuid.UUID) ([]*FacilityDefaultSchedule, error)
	// ListDefaultsForDay returns active defaults only.
	ListDefaultsForDay(ctx context.Context, facilityID uuid.UUID, wd Weekday) ([]*FacilityDefaultSchedule, error)
	UpsertDefault(ctx context.Context, d *FacilityDefaultSchedule) error
}
