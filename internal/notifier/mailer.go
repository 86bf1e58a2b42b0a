package notifier

import (
	"context"
	"fmt"

	"gig-booking/pkg/utils"

	"gopkg.in/gomail.v2"
)

type dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// Mailer emails each event to the notifications inbox. Recipient lookup
// belongs to the identity service, which owns user contact details.
type Mailer struct {
	dialer dialer
	from   string
	to     string
}

func NewMailer(config utils.EmailConfig) *Mailer {
	return &Mailer{
		dialer: gomail.NewDialer(config.Host, config.Port, config.User, config.Password),
		from:   config.From,
		to:     config.NotifyTo,
	}
}

var subjects = map[EventType]string{
	BookingConfirmed: "Booking confirmed",
	PaymentDue:       "Payment due",
	BookingCompleted: "Booking completed",
	BookingCancelled: "Booking cancelled",
}

func (m *Mailer) Notify(ctx context.Context, event Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", m.to)
	msg.SetHeader("Subject", fmt.Sprintf("%s: %s", subjects[event.Type], event.Title))
	msg.SetBody("text/plain", renderBody(event))

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("send %s email for booking %s: %w", event.Type, event.BookingID, err)
	}
	return nil
}

func renderBody(event Event) string {
	body := fmt.Sprintf("Booking: %s\nEvent: %s\n", event.BookingID, event.Title)
	if event.Amount > 0 {
		body += fmt.Sprintf("Amount: %s\n", utils.FormatAmount(event.Amount, event.Currency))
	}
	if event.Detail != "" {
		body += event.Detail + "\n"
	}
	return body
}
