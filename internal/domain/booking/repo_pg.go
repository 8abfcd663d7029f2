package booking

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinic/clinic/internal/domain/scheduling"
	"github.com/clinic/clinic/internal/platform/db"
)

// constraintOccupiedSlot is the partial unique index over occupying bookings.
const constraintOccupiedSlot = "bookings_occupying_slot_idx"

var dialect = goqu.Dialect("postgres")

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

var bookingColumns = []string{
	"id", "code", "patient_id", "doctor_id", "facility_id", "date", "shift", "time", "reason",
	"status", "price", "payment_method", "payment_status", "transaction_id", "paid_at",
	"confirmed_at", "rejection_reason", "cancelled_at", "cancel_reason", "cancelled_by",
	"checked_in_at", "visit_started_at", "visit_completed_at", "diagnosis", "prescription",
	"notes", "follow_up_date", "reminder_sent", "reminder_sent_at", "refunded_at",
	"refund_amount", "refund_reason", "rating", "rating_comment", "rated_at", "version_id",
	"created_at", "updated_at",
}

var bookingCols = strings.Join(bookingColumns, ", ")

func scanBooking(row pgx.Row) (*Booking, error) {
	var b Booking
	var t pgtype.Time
	var cancelledBy *string
	err := row.Scan(&b.ID, &b.Code, &b.PatientID, &b.DoctorID, &b.FacilityID, &b.Date, &b.Shift, &t, &b.Reason,
		&b.Status, &b.Price, &b.PaymentMethod, &b.PaymentStatus, &b.TransactionID, &b.PaidAt,
		&b.ConfirmedAt, &b.RejectionReason, &b.CancelledAt, &b.CancelReason, &cancelledBy,
		&b.CheckedInAt, &b.VisitStartedAt, &b.VisitCompletedAt, &b.Diagnosis, &b.Prescription,
		&b.Notes, &b.FollowUpDate, &b.ReminderSent, &b.ReminderSentAt, &b.RefundedAt,
		&b.RefundAmount, &b.RefundReason, &b.Rating, &b.RatingComment, &b.RatedAt, &b.VersionID,
		&b.CreatedAt, &b.UpdatedAt)
	if db.IsNoRows(err) {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan booking: %w", err)
	}
	b.Time = scheduling.TimeOfDayFromPG(t)
	if cancelledBy != nil {
		a := Actor(*cancelledBy)
		b.CancelledBy = &a
	}
	return &b, nil
}

func actorArg(a *Actor) *string {
	if a == nil {
		return nil
	}
	s := string(*a)
	return &s
}

func (r *repoPG) Create(ctx context.Context, b *Booking) error {
	b.ID = uuid.New()
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO bookings (id, code, patient_id, doctor_id, facility_id, date, shift, time, reason,
			status, price, payment_method, payment_status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		ON CONFLICT (code) DO NOTHING
		RETURNING version_id, created_at, updated_at`,
		b.ID, b.Code, b.PatientID, b.DoctorID, b.FacilityID, b.Date, string(b.Shift), b.Time.PGTime(), b.Reason,
		string(b.Status), b.Price, string(b.PaymentMethod), string(b.PaymentStatus),
	).Scan(&b.VersionID, &b.CreatedAt, &b.UpdatedAt)
	return insertError(err)
}

// insertError maps the outcome of the booking insert. A code collision
// inserts nothing and leaves the transaction usable so the caller can try
// another code.
func insertError(err error) error {
	if err == nil {
		return nil
	}
	if db.IsNoRows(err) {
		return errCodeTaken
	}
	if name, ok := db.UniqueViolation(err); ok && name == constraintOccupiedSlot {
		return ErrSlotTaken
	}
	return fmt.Errorf("insert booking: %w", err)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Booking, error) {
	return scanBooking(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+bookingCols+` FROM bookings WHERE id = $1`, id))
}

func (r *repoPG) GetByCode(ctx context.Context, code string) (*Booking, error) {
	return scanBooking(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+bookingCols+` FROM bookings WHERE code = $1`, code))
}

func (r *repoPG) Update(ctx context.Context, b *Booking) error {
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE bookings SET status=$2, payment_status=$3, transaction_id=$4, paid_at=$5,
			confirmed_at=$6, rejection_reason=$7, cancelled_at=$8, cancel_reason=$9, cancelled_by=$10,
			checked_in_at=$11, visit_started_at=$12, visit_completed_at=$13, diagnosis=$14,
			prescription=$15, notes=$16, follow_up_date=$17, reminder_sent=$18, reminder_sent_at=$19,
			refunded_at=$20, refund_amount=$21, refund_reason=$22, rating=$23, rating_comment=$24,
			rated_at=$25, version_id = version_id + 1, updated_at = NOW()
		WHERE id = $1 AND version_id = $26
		RETURNING updated_at`,
		b.ID, string(b.Status), string(b.PaymentStatus), b.TransactionID, b.PaidAt,
		b.ConfirmedAt, b.RejectionReason, b.CancelledAt, b.CancelReason, actorArg(b.CancelledBy),
		b.CheckedInAt, b.VisitStartedAt, b.VisitCompletedAt, b.Diagnosis,
		b.Prescription, b.Notes, b.FollowUpDate, b.ReminderSent, b.ReminderSentAt,
		b.RefundedAt, b.RefundAmount, b.RefundReason, b.Rating, b.RatingComment,
		b.RatedAt, b.VersionID,
	).Scan(&b.UpdatedAt)
	if db.IsNoRows(err) {
		return ErrConcurrentUpdate
	}
	if err != nil {
		return fmt.Errorf("update booking: %w", err)
	}
	b.VersionID++
	return nil
}

func uuidLit(id uuid.UUID) exp.CastExpression {
	return goqu.Cast(goqu.V(id.String()), "uuid")
}

func occupyingArgs() []interface{} {
	statuses := OccupyingStatuses()
	out := make([]interface{}, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

// searchDataset builds the WHERE clause shared by the page and count queries.
func searchDataset(f Filter) *goqu.SelectDataset {
	ds := dialect.From("bookings").Prepared(true)
	if f.PatientID != nil {
		ds = ds.Where(goqu.C("patient_id").Eq(uuidLit(*f.PatientID)))
	}
	if f.DoctorID != nil {
		ds = ds.Where(goqu.C("doctor_id").Eq(uuidLit(*f.DoctorID)))
	}
	switch {
	case f.Status == StatusExpired:
		ds = ds.Where(goqu.C("status").In(occupyingArgs()...), goqu.C("date").Lt(f.today))
	case f.Status != "":
		ds = ds.Where(goqu.C("status").Eq(string(f.Status)))
	}
	if f.From != nil {
		ds = ds.Where(goqu.C("date").Gte(*f.From))
	}
	if f.To != nil {
		ds = ds.Where(goqu.C("date").Lte(*f.To))
	}
	return ds
}

func (r *repoPG) Search(ctx context.Context, f Filter, limit, offset int) ([]*Booking, int, error) {
	ds := searchDataset(f)
	conn := db.Conn(ctx, r.pool)

	countSQL, countArgs, err := ds.Select(goqu.COUNT("*")).ToSQL()
	if err != nil {
		return nil, 0, fmt.Errorf("build booking count: %w", err)
	}
	var total int
	if err := conn.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count bookings: %w", err)
	}

	cols := make([]interface{}, len(bookingColumns))
	for i, c := range bookingColumns {
		cols[i] = c
	}
	query, args, err := ds.Select(cols...).
		Order(goqu.C("date").Desc(), goqu.C("time").Desc(), goqu.C("id").Asc()).
		Limit(uint(limit)).Offset(uint(offset)).
		ToSQL()
	if err != nil {
		return nil, 0, fmt.Errorf("build booking search: %w", err)
	}

	rows, err := conn.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("search bookings: %w", err)
	}
	defer rows.Close()
	var items []*Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, b)
	}
	return items, total, rows.Err()
}

func lockKey(doctorID uuid.UUID, date time.Time) string {
	return "booking:" + doctorID.String() + ":" + date.Format("2006-01-02")
}

func (r *repoPG) LockDoctorDay(ctx context.Context, doctorID uuid.UUID, date time.Time) error {
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, lockKey(doctorID, date))
	if err != nil {
		return fmt.Errorf("lock doctor day: %w", err)
	}
	return nil
}

const occupyingFilter = `status IN ('pending_doctor_confirmation', 'confirmed', 'checked_in', 'in_progress')`

func (r *repoPG) SlotOccupied(ctx context.Context, doctorID uuid.UUID, date time.Time, shift scheduling.Shift, t scheduling.TimeOfDay) (bool, error) {
	var exists bool
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM bookings
			WHERE doctor_id = $1 AND date = $2 AND shift = $3 AND time = $4 AND `+occupyingFilter+`)`,
		doctorID, date, string(shift), t.PGTime()).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check slot: %w", err)
	}
	return exists, nil
}

func (r *repoPG) CountOccupying(ctx context.Context, doctorID uuid.UUID, date time.Time) (int, error) {
	var n int
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT COUNT(*) FROM bookings WHERE doctor_id = $1 AND date = $2 AND `+occupyingFilter,
		doctorID, date).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count occupying bookings: %w", err)
	}
	return n, nil
}

func (r *repoPG) ListOccupiedSlots(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]scheduling.Slot, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `
		SELECT shift, time FROM bookings WHERE doctor_id = $1 AND date = $2 AND `+occupyingFilter,
		doctorID, date)
	if err != nil {
		return nil, fmt.Errorf("list occupied slots: %w", err)
	}
	defer rows.Close()
	var slots []scheduling.Slot
	for rows.Next() {
		var s scheduling.Slot
		var t pgtype.Time
		if err := rows.Scan(&s.Shift, &t); err != nil {
			return nil, fmt.Errorf("scan occupied slot: %w", err)
		}
		s.Time = scheduling.TimeOfDayFromPG(t)
		slots = append(slots, s)
	}
	return slots, rows.Err()
}

func (r *repoPG) ListReminderCandidates(ctx context.Context, from, to time.Time) ([]*Booking, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `
		SELECT `+bookingCols+` FROM bookings
		WHERE status = $1 AND NOT reminder_sent AND date BETWEEN $2 AND $3
		ORDER BY date, time`,
		string(StatusConfirmed), from, to)
	if err != nil {
		return nil, fmt.Errorf("list reminder candidates: %w", err)
	}
	defer rows.Close()
	var items []*Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, b)
	}
	return items, rows.Err()
}

func (r *repoPG) MarkReminderSent(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE bookings SET reminder_sent = TRUE, reminder_sent_at = $2,
			version_id = version_id + 1, updated_at = NOW()
		WHERE id = $1 AND status = $3 AND NOT reminder_sent`, id, at, string(StatusConfirmed))
	if err != nil {
		return false, fmt.Errorf("mark reminder sent: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
