package notification

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
)

type recordingSender struct {
	mu    sync.Mutex
	calls []Message
	err   error
}

func (s *recordingSender) Send(_ context.Context, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, msg)
	return s.err
}

func TestRender_AppointmentReminder(t *testing.T) {
	e := NewTemplateEngine()
	subject, body, err := e.Render(TemplateAppointmentReminder, map[string]string{
		"patient_name": "Nguyen Thi B",
		"doctor_name":  "Dr. Le",
		"date":         "2025-03-10",
		"time":         "09:00",
		"code":         "K7M2QX9P",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if subject != "Appointment reminder K7M2QX9P" {
		t.Errorf("unexpected subject %q", subject)
	}
	if !strings.Contains(body, "Dr. Le on 2025-03-10 at 09:00") {
		t.Errorf("unexpected body %q", body)
	}
}

func TestRender_MissingKeyLeftInPlace(t *testing.T) {
	e := NewTemplateEngine()
	_, body, err := e.Render(TemplateAppointmentReminder, map[string]string{"patient_name": "A"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(body, "{{doctor_name}}") {
		t.Errorf("expected placeholder to remain, got %q", body)
	}
}

func TestRender_UnknownTemplate(t *testing.T) {
	if _, _, err := NewTemplateEngine().Render("nope", nil); err == nil {
		t.Fatal("expected error for unknown template")
	}
}

func TestDispatcher_RoutesByChannel(t *testing.T) {
	email, sms := &recordingSender{}, &recordingSender{}
	d := NewDispatcher(NewTemplateEngine(), map[Channel]Sender{ChannelEmail: email, ChannelSMS: sms})

	msg, err := d.Send(context.Background(), ChannelSMS, "+84900000000", TemplateAppointmentReminder, map[string]string{"code": "ABC"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.Recipient != "+84900000000" || msg.Channel != ChannelSMS {
		t.Errorf("unexpected message %+v", msg)
	}
	if len(sms.calls) != 1 || len(email.calls) != 0 {
		t.Errorf("expected one sms and no email, got %d/%d", len(sms.calls), len(email.calls))
	}
}

func TestDispatcher_Errors(t *testing.T) {
	failing := &recordingSender{err: errors.New("gateway down")}
	d := NewDispatcher(NewTemplateEngine(), map[Channel]Sender{ChannelEmail: failing})

	if _, err := d.Send(context.Background(), ChannelSMS, "x", TemplateAppointmentReminder, nil); err == nil {
		t.Error("expected error for unregistered channel")
	}
	if _, err := d.Send(context.Background(), ChannelEmail, "a@b.c", TemplateAppointmentReminder, nil); err == nil {
		t.Error("expected sender error to surface")
	}
}

func TestLogSender(t *testing.T) {
	var buf strings.Builder
	s := NewLogSender(zerolog.New(&buf))
	if err := s.Send(context.Background(), Message{Channel: ChannelEmail, Recipient: "a@b.c", TemplateID: TemplateAppointmentReminder}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(buf.String(), `"recipient":"a@b.c"`) {
		t.Errorf("expected recipient in log, got %s", buf.String())
	}
}
