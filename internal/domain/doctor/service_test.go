package doctor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinic/clinic/pkg/clock"
)

// -- Mock Repositories --

type mockDoctorRepo struct {
	mu      sync.Mutex
	doctors map[uuid.UUID]*Doctor
}

func newMockDoctorRepo() *mockDoctorRepo {
	return &mockDoctorRepo{doctors: make(map[uuid.UUID]*Doctor)}
}

func (m *mockDoctorRepo) add(d *Doctor) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.doctors[d.ID] = d
}

func (m *mockDoctorRepo) GetByID(_ context.Context, id uuid.UUID) (*Doctor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.doctors[id]
	if !ok {
		return nil, ErrDoctorNotFound
	}
	cp := *d
	return &cp, nil
}

func (m *mockDoctorRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	return m.GetByID(ctx, id)
}

func (m *mockDoctorRepo) UpdateLedger(_ context.Context, d *Doctor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.doctors[d.ID]
	if !ok {
		return ErrDoctorNotFound
	}
	if stored.VersionID != d.VersionID {
		return ErrConcurrentUpdate
	}
	d.VersionID++
	cp := *d
	m.doctors[d.ID] = &cp
	return nil
}

type mockLeaveRepo struct {
	mu      sync.Mutex
	records map[uuid.UUID]*LeaveRecord
	now     time.Time
}

func newMockLeaveRepo(now time.Time) *mockLeaveRepo {
	return &mockLeaveRepo{records: make(map[uuid.UUID]*LeaveRecord), now: now}
}

func (m *mockLeaveRepo) Create(_ context.Context, l *LeaveRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l.ID = uuid.New()
	l.CreatedAt = m.now
	cp := *l
	m.records[l.ID] = &cp
	return nil
}

func (m *mockLeaveRepo) GetByID(_ context.Context, id uuid.UUID) (*LeaveRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.records[id]
	if !ok {
		return nil, ErrLeaveNotFound
	}
	cp := *l
	return &cp, nil
}

func (m *mockLeaveRepo) SoftDelete(_ context.Context, id uuid.UUID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.records[id]
	if !ok || l.Deleted {
		return ErrLeaveNotFound
	}
	l.Deleted = true
	l.DeletedAt = &at
	return nil
}

func (m *mockLeaveRepo) ListByDoctor(_ context.Context, doctorID uuid.UUID) ([]*LeaveRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*LeaveRecord
	for _, l := range m.records {
		if l.DoctorID == doctorID && !l.Deleted {
			out = append(out, l)
		}
	}
	return out, nil
}

func (m *mockLeaveRepo) ListOverlapping(_ context.Context, doctorID uuid.UUID, start, end time.Time) ([]*LeaveRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*LeaveRecord
	for _, l := range m.records {
		if l.DoctorID == doctorID && !l.Deleted && l.Overlaps(start, end) {
			out = append(out, l)
		}
	}
	return out, nil
}

// serialTx runs each unit of work under one mutex, standing in for the
// row lock taken by GetForUpdate.
type serialTx struct{ mu sync.Mutex }

func (s *serialTx) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(ctx)
}

// -- Fixtures --

var testNow = time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC) // a Monday

func day(s string) time.Time {
	d, err := clock.ParseDay(s)
	if err != nil {
		panic(err)
	}
	return d
}

func newTestService(now time.Time) (*Service, *mockDoctorRepo, *mockLeaveRepo) {
	doctors := newMockDoctorRepo()
	leave := newMockLeaveRepo(now)
	svc := NewService(doctors, leave, &serialTx{}, clock.Fixed{T: now}, time.UTC, zerolog.Nop())
	return svc, doctors, leave
}

func seedDoctor(repo *mockDoctorRepo, used int) *Doctor {
	d := &Doctor{
		ID:             uuid.New(),
		FullName:       "Dr. Tran",
		Active:         true,
		LeaveAllowance: 12,
		LeaveUsed:      used,
		LeaveYear:      2025,
	}
	repo.add(d)
	return d
}

// -- Tests --

func TestRequestLeave_ConsumesInclusiveDays(t *testing.T) {
	svc, doctors, _ := newTestService(testNow)
	d := seedDoctor(doctors, 0)

	rec, err := svc.RequestLeave(context.Background(), d.ID, day("2025-03-10"), day("2025-03-12"), " conference ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Days != 3 {
		t.Errorf("expected 3 days, got %d", rec.Days)
	}
	if rec.Reason != "conference" {
		t.Errorf("expected trimmed reason, got %q", rec.Reason)
	}

	bal, err := svc.RemainingLeave(context.Background(), d.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if bal.Used != 3 || bal.Remaining != 9 {
		t.Errorf("expected used=3 remaining=9, got %+v", bal)
	}
}

func TestRequestLeave_InsufficientLeaveLeavesLedgerUnchanged(t *testing.T) {
	svc, doctors, leave := newTestService(testNow)
	d := seedDoctor(doctors, 9) // remaining 3

	_, err := svc.RequestLeave(context.Background(), d.ID, day("2025-03-10"), day("2025-03-14"), "holiday")
	if !errors.Is(err, ErrInsufficientLeave) {
		t.Fatalf("expected ErrInsufficientLeave, got %v", err)
	}

	stored, _ := doctors.GetByID(context.Background(), d.ID)
	if stored.LeaveUsed != 9 {
		t.Errorf("expected ledger unchanged at 9, got %d", stored.LeaveUsed)
	}
	if len(leave.records) != 0 {
		t.Errorf("expected no leave record, got %d", len(leave.records))
	}
}

func TestRequestLeave_Validation(t *testing.T) {
	svc, doctors, _ := newTestService(testNow)
	d := seedDoctor(doctors, 0)
	ctx := context.Background()

	if _, err := svc.RequestLeave(ctx, d.ID, day("2025-03-12"), day("2025-03-10"), ""); !errors.Is(err, ErrInvalidLeaveRange) {
		t.Errorf("expected ErrInvalidLeaveRange, got %v", err)
	}
	if _, err := svc.RequestLeave(ctx, d.ID, day("2025-03-01"), day("2025-03-04"), ""); !errors.Is(err, ErrInvalidDate) {
		t.Errorf("expected ErrInvalidDate, got %v", err)
	}
	if _, err := svc.RequestLeave(ctx, uuid.New(), day("2025-03-10"), day("2025-03-10"), ""); !errors.Is(err, ErrDoctorNotFound) {
		t.Errorf("expected ErrDoctorNotFound, got %v", err)
	}
}

func TestRequestLeave_Overlap(t *testing.T) {
	svc, doctors, _ := newTestService(testNow)
	d := seedDoctor(doctors, 0)
	ctx := context.Background()

	if _, err := svc.RequestLeave(ctx, d.ID, day("2025-03-10"), day("2025-03-12"), ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err := svc.RequestLeave(ctx, d.ID, day("2025-03-12"), day("2025-03-13"), "")
	if !errors.Is(err, ErrLeaveOverlap) {
		t.Fatalf("expected ErrLeaveOverlap, got %v", err)
	}
}

func TestRequestLeave_ConcurrentRequestsDoNotOverspend(t *testing.T) {
	svc, doctors, _ := newTestService(testNow)
	d := seedDoctor(doctors, 8) // remaining 4

	// Five disjoint two-day requests; only two fit.
	starts := []string{"2025-04-01", "2025-04-05", "2025-04-09", "2025-04-13", "2025-04-17"}
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for _, s := range starts {
		wg.Add(1)
		go func(s string) {
			defer wg.Done()
			start := day(s)
			if _, err := svc.RequestLeave(context.Background(), d.ID, start, start.AddDate(0, 0, 1), ""); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}(s)
	}
	wg.Wait()

	if succeeded != 2 {
		t.Errorf("expected 2 successful requests, got %d", succeeded)
	}
	stored, _ := doctors.GetByID(context.Background(), d.ID)
	if stored.LeaveUsed != 12 {
		t.Errorf("expected ledger at allowance, got %d", stored.LeaveUsed)
	}
}

func TestRemainingLeave_YearRollover(t *testing.T) {
	svc, doctors, _ := newTestService(testNow)
	d := seedDoctor(doctors, 10)
	d.LeaveYear = 2024
	doctors.add(d)

	bal, err := svc.RemainingLeave(context.Background(), d.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if bal.Year != 2025 || bal.Used != 0 || bal.Remaining != 12 {
		t.Errorf("expected reset balance for 2025, got %+v", bal)
	}
	stored, _ := doctors.GetByID(context.Background(), d.ID)
	if stored.LeaveYear != 2025 || stored.LeaveUsed != 0 {
		t.Errorf("expected reset to be persisted, got year=%d used=%d", stored.LeaveYear, stored.LeaveUsed)
	}
}

func TestCancelLeave_RefundsDays(t *testing.T) {
	svc, doctors, _ := newTestService(testNow)
	d := seedDoctor(doctors, 0)
	ctx := context.Background()

	rec, err := svc.RequestLeave(ctx, d.ID, day("2025-03-10"), day("2025-03-11"), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cancelled, err := svc.CancelLeave(ctx, d.ID, rec.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cancelled.Deleted || cancelled.DeletedAt == nil {
		t.Error("expected record to be soft-deleted")
	}

	bal, _ := svc.RemainingLeave(ctx, d.ID)
	if bal.Used != 0 {
		t.Errorf("expected refund to zero, got %d", bal.Used)
	}

	if _, err := svc.CancelLeave(ctx, d.ID, rec.ID); !errors.Is(err, ErrLeaveNotFound) {
		t.Errorf("expected ErrLeaveNotFound on second cancel, got %v", err)
	}

	onLeave, err := svc.OnLeave(ctx, d.ID, day("2025-03-10"))
	if err != nil || onLeave {
		t.Errorf("expected doctor available after cancellation, onLeave=%v err=%v", onLeave, err)
	}
}

func TestCancelLeave_AlreadyStarted(t *testing.T) {
	svc, doctors, _ := newTestService(testNow)
	d := seedDoctor(doctors, 0)
	ctx := context.Background()

	rec, err := svc.RequestLeave(ctx, d.ID, day("2025-03-03"), day("2025-03-05"), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.CancelLeave(ctx, d.ID, rec.ID); !errors.Is(err, ErrLeaveStarted) {
		t.Errorf("expected ErrLeaveStarted, got %v", err)
	}
}

func TestCancelLeave_OtherDoctor(t *testing.T) {
	svc, doctors, _ := newTestService(testNow)
	a := seedDoctor(doctors, 0)
	b := seedDoctor(doctors, 0)
	ctx := context.Background()

	rec, err := svc.RequestLeave(ctx, a.ID, day("2025-03-10"), day("2025-03-10"), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.CancelLeave(ctx, b.ID, rec.ID); !errors.Is(err, ErrLeaveNotFound) {
		t.Errorf("expected ErrLeaveNotFound, got %v", err)
	}
}

func TestOnLeave(t *testing.T) {
	svc, doctors, _ := newTestService(testNow)
	d := seedDoctor(doctors, 0)
	ctx := context.Background()

	if _, err := svc.RequestLeave(ctx, d.ID, day("2025-03-10"), day("2025-03-12"), ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for s, want := range map[string]bool{
		"2025-03-09": false,
		"2025-03-10": true,
		"2025-03-12": true,
		"2025-03-13": false,
	} {
		got, err := svc.OnLeave(ctx, d.ID, day(s))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != want {
			t.Errorf("OnLeave(%s) = %v, want %v", s, got, want)
		}
	}
}

type recordingInvalidator struct {
	mu    sync.Mutex
	dates map[uuid.UUID][]string
}

func (r *recordingInvalidator) Invalidate(_ context.Context, doctorID uuid.UUID, dates ...time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range dates {
		r.dates[doctorID] = append(r.dates[doctorID], d.Format("2006-01-02"))
	}
	return nil
}

func TestLeaveChanges_InvalidateEveryCoveredDay(t *testing.T) {
	doctors := newMockDoctorRepo()
	inv := &recordingInvalidator{dates: make(map[uuid.UUID][]string)}
	svc := NewService(doctors, newMockLeaveRepo(testNow), &serialTx{}, clock.Fixed{T: testNow}, time.UTC, zerolog.Nop(),
		WithSlotInvalidator(inv),
	)
	d := seedDoctor(doctors, 0)
	ctx := context.Background()

	rec, err := svc.RequestLeave(ctx, d.ID, day("2025-03-10"), day("2025-03-12"), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"2025-03-10", "2025-03-11", "2025-03-12"}
	if got := inv.dates[d.ID]; len(got) != 3 || got[0] != want[0] || got[1] != want[1] || got[2] != want[2] {
		t.Fatalf("expected %v invalidated on request, got %v", want, got)
	}

	if _, err := svc.CancelLeave(ctx, d.ID, rec.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := inv.dates[d.ID]; len(got) != 6 || got[3] != want[0] || got[5] != want[2] {
		t.Errorf("expected %v invalidated again on cancel, got %v", want, got)
	}

	if _, err := svc.RequestLeave(ctx, d.ID, day("2025-03-10"), day("2025-03-25"), ""); err == nil {
		t.Fatal("expected insufficient leave")
	}
	if got := inv.dates[d.ID]; len(got) != 6 {
		t.Errorf("expected refused request to leave the cache alone, got %v", got)
	}
}
