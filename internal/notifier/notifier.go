// Package notifier delivers engine events to the outside world. Delivery
// failures are reported to the caller but never undo engine state.
package notifier

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	BookingConfirmed EventType = "booking.confirmed"
	PaymentDue       EventType = "payment.due"
	BookingCompleted EventType = "booking.completed"
	BookingCancelled EventType = "booking.cancelled"
)

type Event struct {
	Type       EventType  `json:"type"`
	BookingID  uuid.UUID  `json:"booking_id"`
	ClientID   uuid.UUID  `json:"client_id"`
	ArtistID   *uuid.UUID `json:"artist_id,omitempty"`
	Title      string     `json:"title"`
	Amount     int64      `json:"amount"`
	Currency   string     `json:"currency"`
	Detail     string     `json:"detail,omitempty"`
	OccurredAt time.Time  `json:"occurred_at"`
}

type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

// Multi fans an event out to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, event Event) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type Noop struct{}

func (Noop) Notify(context.Context, Event) error { return nil }
