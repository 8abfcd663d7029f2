package doctor

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinic/clinic/internal/platform/db"
)

// =========== Doctor Repository ===========

type doctorRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &doctorRepoPG{pool: pool} }

const doctorCols = `d.id, d.facility_id, d.specialty_id, d.qualification_level_id, d.full_name,
	d.years_of_experience, d.visit_duration_minutes, d.max_patients_per_day, d.active,
	d.leave_allowance, d.leave_used, d.leave_year, q.visit_price, d.version_id,
	d.created_at, d.updated_at`

const doctorFrom = ` FROM doctors d JOIN qualification_levels q ON q.id = d.qualification_level_id`

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	err := row.Scan(&d.ID, &d.FacilityID, &d.SpecialtyID, &d.QualificationLevelID, &d.FullName,
		&d.YearsOfExperience, &d.VisitDurationMinutes, &d.MaxPatientsPerDay, &d.Active,
		&d.LeaveAllowance, &d.LeaveUsed, &d.LeaveYear, &d.VisitPrice, &d.VersionID,
		&d.CreatedAt, &d.UpdatedAt)
	if db.IsNoRows(err) {
		return nil, ErrDoctorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan doctor: %w", err)
	}
	return &d, nil
}

func (r *doctorRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	return scanDoctor(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+doctorCols+doctorFrom+` WHERE d.id = $1`, id))
}

func (r *doctorRepoPG) GetForUpdate(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	return scanDoctor(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+doctorCols+doctorFrom+` WHERE d.id = $1 FOR UPDATE OF d`, id))
}

func (r *doctorRepoPG) UpdateLedger(ctx context.Context, d *Doctor) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE doctors SET leave_used = $2, leave_year = $3, version_id = version_id + 1, updated_at = NOW()
		WHERE id = $1 AND version_id = $4`,
		d.ID, d.LeaveUsed, d.LeaveYear, d.VersionID)
	if err != nil {
		return fmt.Errorf("update leave ledger: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrConcurrentUpdate
	}
	d.VersionID++
	return nil
}

// =========== Leave Repository ===========

type leaveRepoPG struct{ pool *pgxpool.Pool }

func NewLeaveRepoPG(pool *pgxpool.Pool) LeaveRepository { return &leaveRepoPG{pool: pool} }

const leaveCols = `id, doctor_id, start_date, end_date, reason, days, deleted, deleted_at, created_at`

func scanLeave(row pgx.Row) (*LeaveRecord, error) {
	var l LeaveRecord
	err := row.Scan(&l.ID, &l.DoctorID, &l.StartDate, &l.EndDate, &l.Reason, &l.Days,
		&l.Deleted, &l.DeletedAt, &l.CreatedAt)
	return &l, err
}

func (r *leaveRepoPG) Create(ctx context.Context, l *LeaveRecord) error {
	l.ID = uuid.New()
	return db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO leave_records (id, doctor_id, start_date, end_date, reason, days)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`,
		l.ID, l.DoctorID, l.StartDate, l.EndDate, l.Reason, l.Days).Scan(&l.CreatedAt)
}

func (r *leaveRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*LeaveRecord, error) {
	l, err := scanLeave(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+leaveCols+` FROM leave_records WHERE id = $1`, id))
	if db.IsNoRows(err) {
		return nil, ErrLeaveNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get leave record: %w", err)
	}
	return l, nil
}

func (r *leaveRepoPG) SoftDelete(ctx context.Context, id uuid.UUID, at time.Time) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx,
		`UPDATE leave_records SET deleted = TRUE, deleted_at = $2 WHERE id = $1 AND NOT deleted`, id, at)
	if err != nil {
		return fmt.Errorf("delete leave record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrLeaveNotFound
	}
	return nil
}

func (r *leaveRepoPG) ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]*LeaveRecord, error) {
	return r.list(ctx, `SELECT `+leaveCols+` FROM leave_records
		WHERE doctor_id = $1 AND NOT deleted ORDER BY start_date`, doctorID)
}

func (r *leaveRepoPG) ListOverlapping(ctx context.Context, doctorID uuid.UUID, start, end time.Time) ([]*LeaveRecord, error) {
	return r.list(ctx, `SELECT `+leaveCols+` FROM leave_records
		WHERE doctor_id = $1 AND NOT deleted AND start_date <= $3 AND end_date >= $2
		ORDER BY start_date`, doctorID, start, end)
}

func (r *leaveRepoPG) list(ctx context.Context, query string, args ...interface{}) ([]*LeaveRecord, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query leave records: %w", err)
	}
	defer rows.Close()
	var items []*LeaveRecord
	for rows.Next() {
		l, err := scanLeave(rows)
		if err != nil {
			return nil, fmt.Errorf("scan leave record: %w", err)
		}
		items = append(items, l)
	}
	return items, rows.Err()
}
