package patient

import (
	"time"

	"github.com/google/uuid"

	"github.com/clinic/clinic/pkg/apperr"
)

var ErrPatientNotFound = apperr.NotFound("PATIENT_NOT_FOUND", "patient not found")

// Patient is the directory entry the booking core needs. Registration and
// profile management live outside this service.
type Patient struct {
	ID        uuid.UUID `db:"id" json:"id"`
	FullName  string    `db:"full_name" json:"full_name"`
	Phone     *string   `db:"phone" json:"phone,omitempty"`
	Email     *string   `db:"email" json:"email,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Contact returns the best reachable address, preferring email.
func (p *Patient) Contact() string {
	if p.Email != nil && *p.Email != "" {
		return *p.Email
	}
	if p.Phone != nil {
		return *p.Phone
	}
	return ""
}
