package doctor

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Doctor, error)
	// GetForUpdate loads the doctor and locks the row until the surrounding
	// transaction ends.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*Doctor, error)
	// UpdateLedger persists leave counters, failing with ErrConcurrentUpdate
	// when the stored version differs from d.Version.
	UpdateLedger(ctx context.Context, d *Doctor) error
}

type LeaveRepository interface {
	Create(ctx context.Context, l *LeaveRecord) error
	GetByID(ctx context.Context, id uuid.UUID) (*LeaveRecord, error)
	SoftDelete(ctx context.Context, id uuid.UUID, at time.Time) error
	ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]*LeaveRecord, error)
	// ListOverlapping returns non-deleted records intersecting [start, end].
	ListOverlapping(ctx context.Context, doctorID uuid.UUID, start, end time.Time) ([]*LeaveRecord, error)
}
