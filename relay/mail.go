package relay

import (
	"context"
	"errors"
	"fmt"
	"strings"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	mail "gopkg.in/mail.v2"

	"github.com/GoCodeAlone/storefront/order"
)

// ErrMailHostRequired is returned when the mailer has no SMTP host.
var ErrMailHostRequired = errors.New("SMTP host is required")

// Sender delivers mail messages.
type Sender interface {
	DialAndSend(m ...*mail.Message) error
}

// Mailer sends an order confirmation to the customer for every submitted
// order. Other event types are ignored.
type Mailer struct {
	id     string
	from   string
	sender Sender
}

// NewSMTPMailer creates a mailer that sends through an SMTP server.
func NewSMTPMailer(id, from, host string, port int, user, password string) (*Mailer, error) {
	if host == "" {
		return nil, ErrMailHostRequired
	}
	return NewMailer(id, from, mail.NewDialer(host, port, user, password)), nil
}

// NewMailer creates a mailer on top of sender.
func NewMailer(id, from string, sender Sender) *Mailer {
	return &Mailer{id: id, from: from, sender: sender}
}

// ObserverID returns the observer identifier.
func (m *Mailer) ObserverID() string {
	return m.id
}

// OnEvent mails the confirmation for an order.submitted event.
func (m *Mailer) OnEvent(_ context.Context, event cloudevents.Event) error {
	if event.Type() != EventTypeOrderSubmitted {
		return nil
	}

	var submitted order.Submitted
	if err := event.DataAs(&submitted); err != nil {
		return fmt.Errorf("failed to decode submitted order %s: %w", event.ID(), err)
	}
	if submitted.Order.Email == "" {
		return nil
	}

	msg := mail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", submitted.Order.Email)
	msg.SetHeader("Subject", "Order "+submitted.Result.ID+" confirmed")
	msg.SetBody("text/plain", confirmationBody(submitted))

	if err := m.sender.DialAndSend(msg); err != nil {
		return fmt.Errorf("failed to send confirmation for order %s: %w", submitted.Result.ID, err)
	}
	return nil
}

func confirmationBody(s order.Submitted) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Thank you for your order %s.\n\n", s.Result.ID)
	fmt.Fprintf(&b, "Items: %d\n", len(s.Order.Items))
	fmt.Fprintf(&b, "Total: %s\n", s.Result.Total.StringFixed(2))
	fmt.Fprintf(&b, "Payment: %s\n", s.Order.Payment)
	fmt.Fprintf(&b, "Delivery address: %s\n", s.Order.Address)
	return b.String()
}
