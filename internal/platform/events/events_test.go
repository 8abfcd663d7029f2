package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_AssignsIdentity(t *testing.T) {
	at := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	a := New("booking.created", at, map[string]string{"code": "ABCD2345"})
	b := New("booking.created", at, nil)

	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, "booking.created", a.Type)
	assert.True(t, a.OccurredAt.Equal(at))
}

func TestEvent_JSONShape(t *testing.T) {
	evt := New("booking.confirmed", time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC), map[string]string{"status": "Confirmed"})
	b, err := json.Marshal(evt)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(b, &decoded))
	assert.Equal(t, "booking.confirmed", decoded["type"])
	assert.Equal(t, "2025-03-10T08:00:00Z", decoded["occurred_at"])
	assert.Equal(t, map[string]interface{}{"status": "Confirmed"}, decoded["data"])
}

func TestRedisPublisher_Channel(t *testing.T) {
	p := NewRedisPublisher(nil, "clinic:")
	assert.Equal(t, "clinic:booking.cancelled", p.Channel("booking.cancelled"))
}

func TestNoop(t *testing.T) {
	assert.NoError(t, Noop{}.Publish(context.Background(), New("booking.created", time.Now(), nil)))
}
