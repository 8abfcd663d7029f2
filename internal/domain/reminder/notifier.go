package reminder

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/clinic/clinic/internal/domain/booking"
	"github.com/clinic/clinic/internal/domain/doctor"
	"github.com/clinic/clinic/internal/domain/patient"
	"github.com/clinic/clinic/internal/platform/notification"
)

type PatientLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*patient.Patient, error)
}

type DoctorLookup interface {
	GetDoctor(ctx context.Context, id uuid.UUID) (*doctor.Doctor, error)
}

// DispatchNotifier renders the appointment reminder and sends it to the
// patient by email, or by SMS when no email is on file.
type DispatchNotifier struct {
	patients   PatientLookup
	doctors    DoctorLookup
	dispatcher *notification.Dispatcher
	loc        *time.Location
}

func NewDispatchNotifier(patients PatientLookup, doctors DoctorLookup, dispatcher *notification.Dispatcher, loc *time.Location) *DispatchNotifier {
	return &DispatchNotifier{patients: patients, doctors: doctors, dispatcher: dispatcher, loc: loc}
}

func (n *DispatchNotifier) Remind(ctx context.Context, b *booking.Booking) error {
	p, err := n.patients.GetByID(ctx, b.PatientID)
	if err != nil {
		return err
	}
	d, err := n.doctors.GetDoctor(ctx, b.DoctorID)
	if err != nil {
		return err
	}

	channel := notification.ChannelEmail
	if p.Email == nil || *p.Email == "" {
		channel = notification.ChannelSMS
	}
	recipient := p.Contact()
	if recipient == "" {
		return fmt.Errorf("patient %s has no contact address", p.ID)
	}

	_, err = n.dispatcher.Send(ctx, channel, recipient, notification.TemplateAppointmentReminder, map[string]string{
		"patient_name": p.FullName,
		"doctor_name":  d.FullName,
		"date":         b.Date.Format("2006-01-02"),
		"time":         b.Time.String(),
		"code":         b.Code,
	})
	return err
}
