package scheduling

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinic/clinic/internal/platform/db"
)

// AvailabilityInvalidator marks cached availability stale after a template
// edit.
type AvailabilityInvalidator interface {
	InvalidateDoctor(ctx context.Context, doctorID uuid.UUID) error
	InvalidateFacility(ctx context.Context, facilityID uuid.UUID) error
}

type Option func(*Service)

// WithAvailabilityInvalidator refreshes cached availability after every
// committed template edit.
func WithAvailabilityInvalidator(inv AvailabilityInvalidator) Option {
	return func(s *Service) { s.slots = inv }
}

// Service administers schedule templates.
type Service struct {
	templates TemplateRepository
	doctors   DoctorLookup
	tx        db.Transactor
	logger    zerolog.Logger
	slots     AvailabilityInvalidator
}

func NewService(templates TemplateRepository, doctors DoctorLookup, tx db.Transactor, logger zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		templates: templates,
		doctors:   doctors,
		tx:        tx,
		logger:    logger.With().Str("component", "scheduling").Logger(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Service) doctorChanged(ctx context.Context, doctorID uuid.UUID) {
	if s.slots == nil {
		return
	}
	if err := s.slots.InvalidateDoctor(ctx, doctorID); err != nil {
		s.logger.Warn().Err(err).Str("doctor_id", doctorID.String()).Msg("slot cache invalidation failed")
	}
}

func (s *Service) facilityChanged(ctx context.Context, facilityID uuid.UUID) {
	if s.slots == nil {
		return
	}
	if err := s.slots.InvalidateFacility(ctx, facilityID); err != nil {
		s.logger.Warn().Err(err).Str("facility_id", facilityID.String()).Msg("slot cache invalidation failed")
	}
}

// OverrideInput is one weekday shift of a doctor's custom hours.
type OverrideInput struct {
	Weekday Weekday   `json:"weekday"`
	Shift   Shift     `json:"shift"`
	Start   TimeOfDay `json:"start_time"`
	End     TimeOfDay `json:"end_time"`
}

// DefaultInput is one weekday shift of a facility's standard hours.
type DefaultInput struct {
	Weekday Weekday   `json:"weekday"`
	Shift   Shift     `json:"shift"`
	Start   TimeOfDay `json:"start_time"`
	End     TimeOfDay `json:"end_time"`
	Active  *bool     `json:"active,omitempty"`
}

type slotKey struct {
	wd    Weekday
	shift Shift
}

func (s *Service) ListOverrides(ctx context.Context, doctorID uuid.UUID) ([]*WeeklyScheduleOverride, error) {
	if _, err := s.doctors.GetDoctor(ctx, doctorID); err != nil {
		return nil, err
	}
	return s.templates.ListOverrides(ctx, doctorID)
}

// SetOverrides upserts every entry atomically. Entries not mentioned are left
// as they are.
func (s *Service) SetOverrides(ctx context.Context, doctorID uuid.UUID, entries []OverrideInput) ([]*WeeklyScheduleOverride, error) {
	seen := make(map[slotKey]bool, len(entries))
	for _, e := range entries {
		if err := validateEntry(e.Weekday, e.Shift, e.Start, e.End); err != nil {
			return nil, err
		}
		k := slotKey{e.Weekday, e.Shift}
		if seen[k] {
			return nil, ErrDuplicateShift.WithDetail("weekday %d %s", e.Weekday, e.Shift)
		}
		seen[k] = true
	}

	var saved []*WeeklyScheduleOverride
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		saved = saved[:0]
		if _, err := s.doctors.GetDoctor(ctx, doctorID); err != nil {
			return err
		}
		for _, e := range entries {
			o := &WeeklyScheduleOverride{DoctorID: doctorID, Weekday: e.Weekday, Shift: e.Shift, Start: e.Start, End: e.End}
			if err := s.templates.UpsertOverride(ctx, o); err != nil {
				return err
			}
			saved = append(saved, o)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.doctorChanged(ctx, doctorID)
	s.logger.Info().Str("doctor_id", doctorID.String()).Int("entries", len(saved)).Msg("schedule overrides saved")
	return saved, nil
}

func (s *Service) DeleteOverride(ctx context.Context, doctorID uuid.UUID, wd Weekday, shift Shift) error {
	if !wd.Valid() {
		return ErrInvalidWeekday
	}
	if !shift.Valid() {
		return ErrInvalidShift
	}
	if err := s.templates.DeleteOverride(ctx, doctorID, wd, shift); err != nil {
		return err
	}
	s.doctorChanged(ctx, doctorID)
	s.logger.Info().Str("doctor_id", doctorID.String()).Int("weekday", int(wd)).Str("shift", string(shift)).Msg("schedule override removed")
	return nil
}

func (s *Service) ListDefaults(ctx context.Context, facilityID uuid.UUID) ([]*FacilityDefaultSchedule, error) {
	return s.templates.ListDefaults(ctx, facilityID)
}

// SetDefaults upserts a facility's standard hours atomically. Entries
// without an explicit active flag are active.
func (s *Service) SetDefaults(ctx context.Context, facilityID uuid.UUID, entries []DefaultInput) ([]*FacilityDefaultSchedule, error) {
	seen := make(map[slotKey]bool, len(entries))
	for _, e := range entries {
		if err := validateEntry(e.Weekday, e.Shift, e.Start, e.End); err != nil {
			return nil, err
		}
		k := slotKey{e.Weekday, e.Shift}
		if seen[k] {
			return nil, ErrDuplicateShift.WithDetail("weekday %d %s", e.Weekday, e.Shift)
		}
		seen[k] = true
	}

	var saved []*FacilityDefaultSchedule
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		saved = saved[:0]
		for _, e := range entries {
			active := true
			if e.Active != nil {
				active = *e.Active
			}
			d := &FacilityDefaultSchedule{FacilityID: facilityID, Weekday: e.Weekday, Shift: e.Shift, Start: e.Start, End: e.End, Active: active}
			if err := s.templates.UpsertDefault(ctx, d); err != nil {
				return err
			}
			saved = append(saved, d)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.facilityChanged(ctx, facilityID)
	s.logger.Info().Str("facility_id", facilityID.String()).Int("entries", len(saved)).Msg("facility schedule saved")
	return saved, nil
}
