package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
)

const (
	availabilityPrefix = "clinic:slots:"
	generationPrefix   = "clinic:slots-gen:"
)

// Availability caches the computed free slots of a doctor for one date. It is
// a read-through aid for listing only; reservations always recompute from the
// database.
//
// Entries are stamped with the schedule generations of the doctor and of the
// doctor's facility. A schedule edit bumps the matching generation, which
// turns every entry stamped before it into a miss without enumerating keys.
// Booking and leave changes drop the affected dates directly.
type Availability struct {
	store Store
	ttl   time.Duration
}

func NewAvailability(store Store, ttl time.Duration) *Availability {
	if store == nil {
		store = NoopStore{}
	}
	return &Availability{store: store, ttl: ttl}
}

// Stamp names the schedule generations an entry was computed under.
type Stamp string

type entry struct {
	Stamp Stamp           `json:"stamp"`
	Slots json.RawMessage `json:"slots"`
}

func AvailabilityKey(doctorID uuid.UUID, date time.Time) string {
	return availabilityPrefix + doctorID.String() + ":" + date.Format("2006-01-02")
}

func doctorGenerationKey(doctorID uuid.UUID) string {
	return generationPrefix + "doctor:" + doctorID.String()
}

func facilityGenerationKey(facilityID uuid.UUID) string {
	return generationPrefix + "facility:" + facilityID.String()
}

// Stamp reads the current generations for a doctor working at facilityID.
// Read it before computing the value that Set will store.
func (a *Availability) Stamp(ctx context.Context, doctorID, facilityID uuid.UUID) (Stamp, error) {
	dg, err := a.generation(ctx, doctorGenerationKey(doctorID))
	if err != nil {
		return "", err
	}
	fg, err := a.generation(ctx, facilityGenerationKey(facilityID))
	if err != nil {
		return "", err
	}
	return Stamp(strconv.FormatInt(dg, 10) + "." + strconv.FormatInt(fg, 10)), nil
}

func (a *Availability) generation(ctx context.Context, key string) (int64, error) {
	b, err := a.store.Get(ctx, key)
	if errors.Is(err, ErrMiss) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("decode generation %s: %w", key, err)
	}
	return n, nil
}

// Get decodes the cached value into dst. It reports false on a miss or when
// the entry carries a stamp other than stamp.
func (a *Availability) Get(ctx context.Context, doctorID uuid.UUID, date time.Time, stamp Stamp, dst interface{}) (bool, error) {
	b, err := a.store.Get(ctx, AvailabilityKey(doctorID, date))
	if errors.Is(err, ErrMiss) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	var e entry
	if err := json.Unmarshal(b, &e); err != nil {
		return false, fmt.Errorf("decode cached slots: %w", err)
	}
	if e.Stamp != stamp {
		return false, nil
	}
	if err := json.Unmarshal(e.Slots, dst); err != nil {
		return false, fmt.Errorf("decode cached slots: %w", err)
	}
	return true, nil
}

func (a *Availability) Set(ctx context.Context, doctorID uuid.UUID, date time.Time, stamp Stamp, v interface{}) error {
	if a.ttl <= 0 {
		return nil
	}
	slots, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode slots: %w", err)
	}
	b, err := json.Marshal(entry{Stamp: stamp, Slots: slots})
	if err != nil {
		return fmt.Errorf("encode slots: %w", err)
	}
	return a.store.Set(ctx, AvailabilityKey(doctorID, date), b, a.ttl)
}

// Invalidate drops the cached value for each given date.
func (a *Availability) Invalidate(ctx context.Context, doctorID uuid.UUID, dates ...time.Time) error {
	keys := make([]string, 0, len(dates))
	for _, d := range dates {
		keys = append(keys, AvailabilityKey(doctorID, d))
	}
	return a.store.Del(ctx, keys...)
}

// InvalidateDoctor makes every cached day of the doctor stale.
func (a *Availability) InvalidateDoctor(ctx context.Context, doctorID uuid.UUID) error {
	_, err := a.store.Incr(ctx, doctorGenerationKey(doctorID))
	return err
}

// InvalidateFacility makes every cached day of every doctor at the facility
// stale.
func (a *Availability) InvalidateFacility(ctx context.Context, facilityID uuid.UUID) error {
	_, err := a.store.Incr(ctx, facilityGenerationKey(facilityID))
	return err
}
