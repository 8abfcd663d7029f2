package scheduling

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinic/clinic/internal/platform/db"
)

type templateRepoPG struct{ pool *pgxpool.Pool }

func NewTemplateRepoPG(pool *pgxpool.Pool) TemplateRepository { return &templateRepoPG{pool: pool} }

// =========== Weekly overrides ===========

const overrideCols = `id, doctor_id, weekday, shift, start_time, end_time, deleted, version_id, created_at, updated_at`

func scanOverride(row pgx.Row) (*WeeklyScheduleOverride, error) {
	var o WeeklyScheduleOverride
	var start, end pgtype.Time
	if err := row.Scan(&o.ID, &o.DoctorID, &o.Weekday, &o.Shift, &start, &end,
		&o.Deleted, &o.VersionID, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, err
	}
	o.Start, o.End = TimeOfDayFromPG(start), TimeOfDayFromPG(end)
	return &o, nil
}

func (r *templateRepoPG) listOverrides(ctx context.Context, query string, args ...interface{}) ([]*WeeklyScheduleOverride, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query schedule overrides: %w", err)
	}
	defer rows.Close()
	var items []*WeeklyScheduleOverride
	for rows.Next() {
		o, err := scanOverride(rows)
		if err != nil {
			return nil, fmt.Errorf("scan schedule override: %w", err)
		}
		items = append(items, o)
	}
	return items, rows.Err()
}

func (r *templateRepoPG) ListOverrides(ctx context.Context, doctorID uuid.UUID) ([]*WeeklyScheduleOverride, error) {
	return r.listOverrides(ctx, `SELECT `+overrideCols+` FROM weekly_schedule_overrides
		WHERE doctor_id = $1 AND NOT deleted ORDER BY weekday, start_time`, doctorID)
}

func (r *templateRepoPG) ListOverridesForDay(ctx context.Context, doctorID uuid.UUID, wd Weekday) ([]*WeeklyScheduleOverride, error) {
	return r.listOverrides(ctx, `SELECT `+overrideCols+` FROM weekly_schedule_overrides
		WHERE doctor_id = $1 AND weekday = $2 AND NOT deleted ORDER BY start_time`, doctorID, int(wd))
}

func (r *templateRepoPG) UpsertOverride(ctx context.Context, o *WeeklyScheduleOverride) error {
	row := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO weekly_schedule_overrides (id, doctor_id, weekday, shift, start_time, end_time)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (doctor_id, weekday, shift) DO UPDATE
		SET start_time = EXCLUDED.start_time, end_time = EXCLUDED.end_time, deleted = FALSE,
			version_id = weekly_schedule_overrides.version_id + 1, updated_at = NOW()
		RETURNING `+overrideCols,
		uuid.New(), o.DoctorID, int(o.Weekday), string(o.Shift), o.Start.PGTime(), o.End.PGTime())
	saved, err := scanOverride(row)
	if err != nil {
		return fmt.Errorf("upsert schedule override: %w", err)
	}
	*o = *saved
	return nil
}

func (r *templateRepoPG) DeleteOverride(ctx context.Context, doctorID uuid.UUID, wd Weekday, shift Shift) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE weekly_schedule_overrides SET deleted = TRUE, version_id = version_id + 1, updated_at = NOW()
		WHERE doctor_id = $1 AND weekday = $2 AND shift = $3 AND NOT deleted`,
		doctorID, int(wd), string(shift))
	if err != nil {
		return fmt.Errorf("delete schedule override: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// =========== Facility defaults ===========

const defaultCols = `id, facility_id, weekday, shift, start_time, end_time, active, version_id, created_at, updated_at`

func scanDefault(row pgx.Row) (*FacilityDefaultSchedule, error) {
	var d FacilityDefaultSchedule
	var start, end pgtype.Time
	if err := row.Scan(&d.ID, &d.FacilityID, &d.Weekday, &d.Shift, &start, &end,
		&d.Active, &d.VersionID, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return nil, err
	}
	d.Start, d.End = TimeOfDayFromPG(start), TimeOfDayFromPG(end)
	return &d, nil
}

func (r *templateRepoPG) listDefaults(ctx context.Context, query string, args ...interface{}) ([]*FacilityDefaultSchedule, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query facility schedule: %w", err)
	}
	defer rows.Close()
	var items []*FacilityDefaultSchedule
	for rows.Next() {
		d, err := scanDefault(rows)
		if err != nil {
			return nil, fmt.Errorf("scan facility schedule: %w", err)
		}
		items = append(items, d)
	}
	return items, rows.Err()
}

func (r *templateRepoPG) ListDefaults(ctx context.Context, facilityID uuid.UUID) ([]*FacilityDefaultSchedule, error) {
	return r.listDefaults(ctx, `SELECT `+defaultCols+` FROM facility_default_schedules
		WHERE facility_id = $1 ORDER BY weekday, start_time`, facilityID)
}

func (r *templateRepoPG) ListDefaultsForDay(ctx context.Context, facilityID uuid.UUID, wd Weekday) ([]*FacilityDefaultSchedule, error) {
	return r.listDefaults(ctx, `SELECT `+defaultCols+` FROM facility_default_schedules
		WHERE facility_id = $1 AND weekday = $2 AND active ORDER BY start_time`, facilityID, int(wd))
}

func (r *templateRepoPG) UpsertDefault(ctx context.Context, d *FacilityDefaultSchedule) error {
	row := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO facility_default_schedules (id, facility_id, weekday, shift, start_time, end_time, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (facility_id, weekday, shift) DO UPDATE
		SET start_time = EXCLUDED.start_time, end_time = EXCLUDED.end_time, active = EXCLUDED.active,
			version_id = facility_default_schedules.version_id + 1, updated_at = NOW()
		RETURNING `+defaultCols,
		uuid.New(), d.FacilityID, int(d.Weekday), string(d.Shift), d.Start.PGTime(), d.End.PGTime(), d.Active)
	saved, err := scanDefault(row)
	if err != nil {
		return fmt.Errorf("upsert facility schedule: %w", err)
	}
	*d = *saved
	return nil
}
