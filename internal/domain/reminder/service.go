package reminder

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"github.com/clinic/clinic/internal/domain/booking"
	"github.com/clinic/clinic/internal/platform/db"
	"github.com/clinic/clinic/internal/platform/telemetry"
	"github.com/clinic/clinic/pkg/clock"
)

// Store is the slice of the booking repository the reminder job needs.
type Store interface {
	ListReminderCandidates(ctx context.Context, from, to time.Time) ([]*booking.Booking, error)
	// MarkReminderSent flags the booking only if it is still confirmed and
	// not flagged yet, and reports whether this call did it.
	MarkReminderSent(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
}

// Notifier delivers one reminder.
type Notifier interface {
	Remind(ctx context.Context, b *booking.Booking) error
}

type Service struct {
	store    Store
	notifier Notifier
	tx       db.Transactor
	clock    clock.Clock
	loc      *time.Location
	logger   zerolog.Logger
	metrics  *telemetry.Metrics
}

func NewService(store Store, notifier Notifier, tx db.Transactor, clk clock.Clock, loc *time.Location,
	logger zerolog.Logger, metrics *telemetry.Metrics) *Service {
	return &Service{
		store:    store,
		notifier: notifier,
		tx:       tx,
		clock:    clk,
		loc:      loc,
		logger:   logger.With().Str("component", "reminder").Logger(),
		metrics:  metrics,
	}
}

// DueReminders lists the bookings ShouldSendReminder accepts at asOf.
func (s *Service) DueReminders(ctx context.Context, asOf time.Time) ([]*booking.Booking, error) {
	// Due visits start in (asOf+23h, asOf+24h].
	from := clock.Day(asOf.Add(LeadTime-Window), s.loc)
	to := clock.Day(asOf.Add(LeadTime), s.loc)
	candidates, err := s.store.ListReminderCandidates(ctx, from, to)
	if err != nil {
		return nil, err
	}
	due := make([]*booking.Booking, 0, len(candidates))
	for _, b := range candidates {
		if ShouldSendReminder(b, asOf, s.loc) {
			due = append(due, b)
		}
	}
	return due, nil
}

// RunResult summarises one sweep.
type RunResult struct {
	AsOf    time.Time `json:"as_of"`
	Due     int       `json:"due"`
	Sent    int       `json:"sent"`
	Skipped int       `json:"skipped"`
	Failed  int       `json:"failed"`
}

// Run sends every reminder due at asOf. Each booking is claimed and notified
// in one transaction: a failed delivery rolls the claim back so the next
// sweep retries it, and a booking another runner already claimed is skipped.
func (s *Service) Run(ctx context.Context, asOf time.Time) (RunResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "reminder.run", attribute.String("as_of", asOf.Format(time.RFC3339)))
	res, err := s.run(ctx, asOf)
	telemetry.EndSpan(span, err)
	return res, err
}

func (s *Service) run(ctx context.Context, asOf time.Time) (RunResult, error) {
	res := RunResult{AsOf: asOf}
	due, err := s.DueReminders(ctx, asOf)
	if err != nil {
		return res, fmt.Errorf("select due reminders: %w", err)
	}
	res.Due = len(due)

	for _, b := range due {
		var claimed bool
		err := s.tx.InTx(ctx, func(ctx context.Context) error {
			var err error
			claimed, err = s.store.MarkReminderSent(ctx, b.ID, s.clock.Now())
			if err != nil || !claimed {
				return err
			}
			return s.notifier.Remind(ctx, b)
		})
		switch {
		case err != nil:
			res.Failed++
			s.logger.Error().Err(err).Str("booking_id", b.ID.String()).Msg("reminder delivery failed")
		case !claimed:
			res.Skipped++
		default:
			res.Sent++
			s.metrics.ReminderSent(ctx)
		}
	}

	s.logger.Info().
		Time("as_of", asOf).
		Int("due", res.Due).
		Int("sent", res.Sent).
		Int("skipped", res.Skipped).
		Int("failed", res.Failed).
		Msg("reminder sweep finished")
	return res, nil
}

// Loop runs a sweep every interval until ctx is cancelled.
func (s *Service) Loop(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if _, err := s.Run(ctx, s.clock.Now()); err != nil {
			s.logger.Error().Err(err).Msg("reminder sweep failed")
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
