package cache

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapStore struct {
	mu   sync.Mutex
	data map[string][]byte
	err  error
}

func newMapStore() *mapStore { return &mapStore{data: make(map[string][]byte)} }

func (m *mapStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	b, ok := m.data[key]
	if !ok {
		return nil, ErrMiss
	}
	return b, nil
}

func (m *mapStore) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *mapStore) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *mapStore) Incr(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	n, _ := strconv.ParseInt(string(m.data[key]), 10, 64)
	n++
	m.data[key] = []byte(strconv.FormatInt(n, 10))
	return n, nil
}

type slot struct {
	Shift string `json:"shift"`
	Time  string `json:"time"`
}

func TestAvailability_RoundTripAndInvalidate(t *testing.T) {
	ctx := context.Background()
	store := newMapStore()
	a := NewAvailability(store, time.Minute)
	doc, fac := uuid.New(), uuid.New()
	day := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

	stamp, err := a.Stamp(ctx, doc, fac)
	require.NoError(t, err)

	var got []slot
	hit, err := a.Get(ctx, doc, day, stamp, &got)
	require.NoError(t, err)
	assert.False(t, hit)

	want := []slot{{"Morning", "08:00"}, {"Morning", "08:30"}}
	require.NoError(t, a.Set(ctx, doc, day, stamp, want))

	hit, err = a.Get(ctx, doc, day, stamp, &got)
	require.NoError(t, err)
	require.True(t, hit)
	assert.Equal(t, want, got)

	require.NoError(t, a.Invalidate(ctx, doc, day))
	hit, err = a.Get(ctx, doc, day, stamp, &got)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestAvailability_GenerationBumpMakesEntriesStale(t *testing.T) {
	tests := []struct {
		name string
		bump func(a *Availability, doc, fac uuid.UUID) error
	}{
		{"doctor schedule edited", func(a *Availability, doc, _ uuid.UUID) error {
			return a.InvalidateDoctor(context.Background(), doc)
		}},
		{"facility schedule edited", func(a *Availability, _, fac uuid.UUID) error {
			return a.InvalidateFacility(context.Background(), fac)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			a := NewAvailability(newMapStore(), time.Minute)
			doc, fac := uuid.New(), uuid.New()
			days := []time.Time{
				time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
				time.Date(2025, 3, 17, 0, 0, 0, 0, time.UTC),
			}

			before, err := a.Stamp(ctx, doc, fac)
			require.NoError(t, err)
			for _, d := range days {
				require.NoError(t, a.Set(ctx, doc, d, before, []slot{{"Morning", "08:00"}}))
			}

			require.NoError(t, tt.bump(a, doc, fac))

			after, err := a.Stamp(ctx, doc, fac)
			require.NoError(t, err)
			assert.NotEqual(t, before, after)
			for _, d := range days {
				var got []slot
				hit, err := a.Get(ctx, doc, d, after, &got)
				require.NoError(t, err)
				assert.False(t, hit, "entry for %s should be stale", d.Format("2006-01-02"))
			}
		})
	}
}

func TestAvailability_OtherFacilityUnaffected(t *testing.T) {
	ctx := context.Background()
	a := NewAvailability(newMapStore(), time.Minute)
	doc, fac := uuid.New(), uuid.New()
	day := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

	stamp, err := a.Stamp(ctx, doc, fac)
	require.NoError(t, err)
	require.NoError(t, a.Set(ctx, doc, day, stamp, []slot{{"Morning", "08:00"}}))
	require.NoError(t, a.InvalidateFacility(ctx, uuid.New()))

	again, err := a.Stamp(ctx, doc, fac)
	require.NoError(t, err)
	var got []slot
	hit, err := a.Get(ctx, doc, day, again, &got)
	require.NoError(t, err)
	assert.True(t, hit)
}

func TestAvailability_ZeroTTLDisablesWrites(t *testing.T) {
	store := newMapStore()
	a := NewAvailability(store, 0)
	require.NoError(t, a.Set(context.Background(), uuid.New(), time.Now(), "0.0", []slot{{"Morning", "08:00"}}))
	assert.Empty(t, store.data)
}

func TestAvailability_StoreErrorSurfaces(t *testing.T) {
	store := newMapStore()
	store.err = errors.New("connection refused")
	a := NewAvailability(store, time.Minute)

	_, err := a.Stamp(context.Background(), uuid.New(), uuid.New())
	assert.Error(t, err)

	var got []slot
	hit, err := a.Get(context.Background(), uuid.New(), time.Now(), "0.0", &got)
	assert.Error(t, err)
	assert.False(t, hit)
}

func TestAvailabilityKey(t *testing.T) {
	doc := uuid.MustParse("6f1c2b9e-3d4a-4c8b-9a77-0e5f1d2c3b4a")
	day := time.Date(2025, 3, 10, 15, 0, 0, 0, time.UTC)
	assert.Equal(t, "clinic:slots:6f1c2b9e-3d4a-4c8b-9a77-0e5f1d2c3b4a:2025-03-10", AvailabilityKey(doc, day))
}

func TestNoopStore(t *testing.T) {
	a := NewAvailability(nil, time.Minute)
	var got []slot
	require.NoError(t, a.Set(context.Background(), uuid.New(), time.Now(), "0.0", []slot{{"Morning", "08:00"}}))
	require.NoError(t, a.InvalidateDoctor(context.Background(), uuid.New()))
	hit, err := a.Get(context.Background(), uuid.New(), time.Now(), "0.0", &got)
	require.NoError(t, err)
	assert.False(t, hit)
}
