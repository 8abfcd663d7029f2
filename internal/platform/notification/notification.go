// Package notification renders templated messages and hands them to a
// channel sender. Delivery providers live outside this service; the default
// senders only log.
package notification

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// Channel is the medium a message is delivered through.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

// Message is one rendered outbound notification.
type Message struct {
	Channel    Channel `json:"channel"`
	Recipient  string  `json:"recipient"`
	Subject    string  `json:"subject,omitempty"`
	Body       string  `json:"body"`
	TemplateID string  `json:"template_id"`
}

// Sender delivers a message over one channel.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Template is a message with {{key}} placeholders.
type Template struct {
	ID      string
	Subject string
	Body    string
}

// TemplateAppointmentReminder is sent the day before a confirmed visit.
const TemplateAppointmentReminder = "appointment-reminder"

type TemplateEngine struct {
	mu        sync.RWMutex
	templates map[string]Template
}

// NewTemplateEngine returns an engine with the built-in templates registered.
func NewTemplateEngine() *TemplateEngine {
	e := &TemplateEngine{templates: make(map[string]Template)}
	e.Register(Template{
		ID:      TemplateAppointmentReminder,
		Subject: "Appointment reminder {{code}}",
		Body:    "Dear {{patient_name}}, this is a reminder of your appointment with {{doctor_name}} on {{date}} at {{time}}. Your confirmation code is {{code}}.",
	})
	return e
}

// Register adds or replaces a template.
func (e *TemplateEngine) Register(t Template) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.templates[t.ID] = t
}

// Render substitutes data into the template. Placeholders without a value are
// left as-is.
func (e *TemplateEngine) Render(templateID string, data map[string]string) (subject, body string, err error) {
	e.mu.RLock()
	t, ok := e.templates[templateID]
	e.mu.RUnlock()
	if !ok {
		return "", "", fmt.Errorf("template %q not found", templateID)
	}

	subject, body = t.Subject, t.Body
	for k, v := range data {
		placeholder := "{{" + k + "}}"
		subject = strings.ReplaceAll(subject, placeholder, v)
		body = strings.ReplaceAll(body, placeholder, v)
	}
	return subject, body, nil
}

// LogSender records messages in the log instead of delivering them.
type LogSender struct {
	logger zerolog.Logger
}

func NewLogSender(logger zerolog.Logger) *LogSender {
	return &LogSender{logger: logger.With().Str("component", "notification").Logger()}
}

func (s *LogSender) Send(_ context.Context, msg Message) error {
	s.logger.Info().
		Str("channel", string(msg.Channel)).
		Str("recipient", msg.Recipient).
		Str("template", msg.TemplateID).
		Str("subject", msg.Subject).
		Msg("notification sent")
	return nil
}

// Dispatcher renders a template and routes the result to the sender
// registered for the recipient's channel.
type Dispatcher struct {
	templates *TemplateEngine
	senders   map[Channel]Sender
}

func NewDispatcher(templates *TemplateEngine, senders map[Channel]Sender) *Dispatcher {
	return &Dispatcher{templates: templates, senders: senders}
}

// Send renders templateID with data and delivers it to recipient on channel.
func (d *Dispatcher) Send(ctx context.Context, channel Channel, recipient, templateID string, data map[string]string) (*Message, error) {
	sender, ok := d.senders[channel]
	if !ok {
		return nil, fmt.Errorf("no sender for channel %q", channel)
	}
	subject, body, err := d.templates.Render(templateID, data)
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}
	msg := Message{Channel: channel, Recipient: recipient, Subject: subject, Body: body, TemplateID: templateID}
	if err := sender.Send(ctx, msg); err != nil {
		return nil, fmt.Errorf("send %s to %s: %w", channel, recipient, err)
	}
	return &msg, nil
}
