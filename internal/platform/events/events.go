// Package events publishes domain events after their transaction commits.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Event is one committed domain change. Type is dotted, e.g. "booking.confirmed".
type Event struct {
	ID         uuid.UUID   `json:"id"`
	Type       string      `json:"type"`
	OccurredAt time.Time   `json:"occurred_at"`
	Data       interface{} `json:"data"`
}

func New(eventType string, at time.Time, data interface{}) Event {
	return Event{ID: uuid.New(), Type: eventType, OccurredAt: at, Data: data}
}

type Publisher interface {
	Publish(ctx context.Context, evt Event) error
}

// RedisPublisher sends events over Redis pub/sub. The channel is the prefix
// followed by the event type.
type RedisPublisher struct {
	client *redis.Client
	prefix string
}

func NewRedisPublisher(client *redis.Client, prefix string) *RedisPublisher {
	return &RedisPublisher{client: client, prefix: prefix}
}

func (p *RedisPublisher) Channel(eventType string) string {
	return p.prefix + eventType
}

func (p *RedisPublisher) Publish(ctx context.Context, evt Event) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := p.client.Publish(ctx, p.Channel(evt.Type), data).Err(); err != nil {
		return fmt.Errorf("failed to publish event %s: %w", evt.Type, err)
	}
	return nil
}

// Noop discards every event.
type Noop struct{}

func (Noop) Publish(context.Context, Event) error { return nil }
