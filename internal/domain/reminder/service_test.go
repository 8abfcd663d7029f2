package reminder

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinic/clinic/internal/domain/booking"
	"github.com/clinic/clinic/pkg/clock"
)

// mockStore keeps bookings by id. snapshot/restore let the fake transactor
// roll back a failed unit of work.
type mockStore struct {
	mu       sync.Mutex
	bookings map[uuid.UUID]booking.Booking
	saved    map[uuid.UUID]booking.Booking
}

func newMockStore(items ...*booking.Booking) *mockStore {
	s := &mockStore{bookings: make(map[uuid.UUID]booking.Booking)}
	for _, b := range items {
		s.bookings[b.ID] = *b
	}
	return s
}

func (s *mockStore) ListReminderCandidates(_ context.Context, from, to time.Time) ([]*booking.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*booking.Booking
	for _, b := range s.bookings {
		if b.Status == booking.StatusConfirmed && !b.ReminderSent && !b.Date.Before(from) && !b.Date.After(to) {
			cp := b
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *mockStore) MarkReminderSent(_ context.Context, id uuid.UUID, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok || b.ReminderSent || b.Status != booking.StatusConfirmed {
		return false, nil
	}
	b.ReminderSent = true
	b.ReminderSentAt = &at
	s.bookings[id] = b
	return true, nil
}

func (s *mockStore) snapshot() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = make(map[uuid.UUID]booking.Booking, len(s.bookings))
	for k, v := range s.bookings {
		s.saved[k] = v
	}
}

func (s *mockStore) restore() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bookings = s.saved
}

func (s *mockStore) sent(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bookings[id].ReminderSent
}

// rollbackTx serializes units of work and undoes the store on error.
type rollbackTx struct {
	mu    sync.Mutex
	store *mockStore
}

func (t *rollbackTx) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.store.snapshot()
	if err := fn(ctx); err != nil {
		t.store.restore()
		return err
	}
	return nil
}

type recordingNotifier struct {
	mu    sync.Mutex
	sent  []uuid.UUID
	fails int
}

func (n *recordingNotifier) Remind(_ context.Context, b *booking.Booking) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fails > 0 {
		n.fails--
		return errors.New("smtp unavailable")
	}
	n.sent = append(n.sent, b.ID)
	return nil
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

// Visit on 2025-03-11 at 10:00 in the clinic zone; the window is
// [03-10 10:00, 03-10 11:00).
var (
	visitDay   = time.Date(2025, 3, 11, 0, 0, 0, 0, time.UTC)
	windowOpen = time.Date(2025, 3, 10, 10, 0, 0, 0, saigon)
)

func newTestService(store *mockStore, n Notifier) *Service {
	return NewService(store, n, &rollbackTx{store: store}, clock.Fixed{T: windowOpen.Add(10 * time.Minute)}, saigon, zerolog.Nop(), nil)
}

func TestDueReminders_ExactlyOnceInWindow(t *testing.T) {
	b := confirmedAt(visitDay, 10, 0)
	store := newMockStore(b)
	n := &recordingNotifier{}
	svc := newTestService(store, n)
	ctx := context.Background()

	for _, asOf := range []time.Time{windowOpen.Add(-time.Minute), windowOpen.Add(time.Hour)} {
		due, err := svc.DueReminders(ctx, asOf)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(due) != 0 {
			t.Errorf("as of %s: expected nothing due, got %d", asOf, len(due))
		}
	}

	asOf := windowOpen.Add(15 * time.Minute)
	due, err := svc.DueReminders(ctx, asOf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(due) != 1 || due[0].ID != b.ID {
		t.Fatalf("expected the booking to be due, got %v", due)
	}

	res, err := svc.Run(ctx, asOf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Sent != 1 || n.count() != 1 {
		t.Fatalf("expected one reminder sent, got %+v", res)
	}

	// Later sweeps in the same window find nothing.
	res, _ = svc.Run(ctx, asOf.Add(30*time.Minute))
	if res.Due != 0 || n.count() != 1 {
		t.Errorf("expected no second reminder, got %+v", res)
	}
}

func TestDueReminders_AcrossMidnight(t *testing.T) {
	b := confirmedAt(time.Date(2025, 3, 12, 0, 0, 0, 0, time.UTC), 0, 30)
	svc := newTestService(newMockStore(b), &recordingNotifier{})

	due, err := svc.DueReminders(context.Background(), time.Date(2025, 3, 11, 0, 45, 0, 0, saigon))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(due) != 1 {
		t.Errorf("expected visit just after midnight to be due, got %d", len(due))
	}
}

func TestRun_FailedDeliveryIsRetried(t *testing.T) {
	b := confirmedAt(visitDay, 10, 0)
	store := newMockStore(b)
	n := &recordingNotifier{fails: 1}
	svc := newTestService(store, n)
	ctx := context.Background()

	res, err := svc.Run(ctx, windowOpen)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Failed != 1 || res.Sent != 0 {
		t.Fatalf("expected one failure, got %+v", res)
	}
	if store.sent(b.ID) {
		t.Fatal("expected claim to be rolled back after failed delivery")
	}

	res, _ = svc.Run(ctx, windowOpen.Add(20*time.Minute))
	if res.Sent != 1 || !store.sent(b.ID) {
		t.Errorf("expected retry to send, got %+v", res)
	}
}

// cancelAfterList cancels every listed booking once the candidate query has
// returned, as a patient cancelling mid-sweep would.
type cancelAfterList struct{ *mockStore }

func (c cancelAfterList) ListReminderCandidates(ctx context.Context, from, to time.Time) ([]*booking.Booking, error) {
	out, err := c.mockStore.ListReminderCandidates(ctx, from, to)
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, b := range out {
		cur := c.bookings[b.ID]
		cur.Status = booking.StatusCancelledByPatient
		c.bookings[b.ID] = cur
	}
	return out, err
}

func TestRun_CancelledAfterSelectionIsSkipped(t *testing.T) {
	b := confirmedAt(visitDay, 10, 0)
	store := newMockStore(b)
	n := &recordingNotifier{}
	svc := NewService(cancelAfterList{store}, n, &rollbackTx{store: store}, clock.Fixed{T: windowOpen}, saigon, zerolog.Nop(), nil)

	res, err := svc.Run(context.Background(), windowOpen.Add(5*time.Minute))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Due != 1 || res.Skipped != 1 || res.Sent != 0 {
		t.Fatalf("expected the cancelled booking to be skipped, got %+v", res)
	}
	if n.count() != 0 {
		t.Errorf("expected no reminder for a cancelled booking, got %d", n.count())
	}
	if store.sent(b.ID) {
		t.Error("expected the cancelled booking to stay unclaimed")
	}
}

func TestRun_ConcurrentRunnersSendOnce(t *testing.T) {
	var items []*booking.Booking
	for _, minute := range []int{0, 30} {
		items = append(items, confirmedAt(visitDay, 10, minute))
	}
	store := newMockStore(items...)
	n := &recordingNotifier{}
	tx := &rollbackTx{store: store}

	const runners = 6
	var wg sync.WaitGroup
	for i := 0; i < runners; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			svc := NewService(store, n, tx, clock.Fixed{T: windowOpen}, saigon, zerolog.Nop(), nil)
			if _, err := svc.Run(context.Background(), windowOpen.Add(5*time.Minute)); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if n.count() != len(items) {
		t.Errorf("expected %d reminders, got %d", len(items), n.count())
	}
}

func TestLoop_StopsOnCancel(t *testing.T) {
	store := newMockStore(confirmedAt(visitDay, 10, 0))
	n := &recordingNotifier{}
	svc := newTestService(store, n)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Loop(ctx, time.Hour) }()

	deadline := time.After(2 * time.Second)
	for n.count() == 0 {
		select {
		case <-deadline:
			t.Fatal("first sweep did not run")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	if err := <-done; err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
