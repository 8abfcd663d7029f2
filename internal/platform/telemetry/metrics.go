package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the booking engine's instruments. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	transitions   metric.Int64Counter
	rejections    metric.Int64Counter
	cacheHits     metric.Int64Counter
	cacheMisses   metric.Int64Counter
	remindersSent metric.Int64Counter
	httpDuration  metric.Float64Histogram
}

// NewMetrics creates the instruments on the global meter provider.
func NewMetrics() (*Metrics, error) {
	return NewMetricsFrom(otel.Meter(instrumentationName))
}

func NewMetricsFrom(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	if m.transitions, err = meter.Int64Counter("clinic.booking.transitions",
		metric.WithDescription("Committed booking lifecycle transitions")); err != nil {
		return nil, err
	}
	if m.rejections, err = meter.Int64Counter("clinic.booking.rejections",
		metric.WithDescription("Booking operations refused by a guard")); err != nil {
		return nil, err
	}
	if m.cacheHits, err = meter.Int64Counter("clinic.slots.cache.hit",
		metric.WithDescription("Availability cache hits")); err != nil {
		return nil, err
	}
	if m.cacheMisses, err = meter.Int64Counter("clinic.slots.cache.miss",
		metric.WithDescription("Availability cache misses")); err != nil {
		return nil, err
	}
	if m.remindersSent, err = meter.Int64Counter("clinic.reminders.sent",
		metric.WithDescription("Pre-visit reminders delivered")); err != nil {
		return nil, err
	}
	if m.httpDuration, err = meter.Float64Histogram("http.server.request.duration",
		metric.WithDescription("HTTP request duration"),
		metric.WithUnit("s")); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Metrics) Transition(ctx context.Context, event string) {
	if m == nil {
		return
	}
	m.transitions.Add(ctx, 1, metric.WithAttributes(attribute.String("event", event)))
}

func (m *Metrics) Rejection(ctx context.Context, operation, code string) {
	if m == nil {
		return
	}
	m.rejections.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("code", code),
	))
}

func (m *Metrics) CacheLookup(ctx context.Context, hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.cacheHits.Add(ctx, 1)
		return
	}
	m.cacheMisses.Add(ctx, 1)
}

func (m *Metrics) ReminderSent(ctx context.Context) {
	if m == nil {
		return
	}
	m.remindersSent.Add(ctx, 1)
}
