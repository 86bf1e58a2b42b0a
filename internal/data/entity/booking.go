package entity

import (
	"time"

	"github.com/google/uuid"
)

type BookingStatus string

const (
	BookingStatusPending    BookingStatus = "pending"
	BookingStatusConfirmed  BookingStatus = "confirmed"
	BookingStatusInProgress BookingStatus = "in_progress"
	BookingStatusCompleted  BookingStatus = "completed"
	BookingStatusCancelled  BookingStatus = "cancelled"
)

type PaymentStatus string

const (
	PaymentStatusNone PaymentStatus = "none"
	PaymentStatusHalf PaymentStatus = "half"
	PaymentStatusFull PaymentStatus = "full"
)

type DepositMode string

const (
	DepositModeHalf DepositMode = "half"
	DepositModeFull DepositMode = "full"
)

// bookingTransitions is the allowed status graph. Anything not listed is rejected.
var bookingTransitions = map[BookingStatus][]BookingStatus{
	BookingStatusPending:    {BookingStatusConfirmed, BookingStatusCancelled},
	BookingStatusConfirmed:  {BookingStatusInProgress, BookingStatusCancelled},
	BookingStatusInProgress: {BookingStatusCompleted, BookingStatusCancelled},
}

func CanTransition(from, to BookingStatus) bool {
	for _, next := range bookingTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func (s BookingStatus) IsTerminal() bool {
	return s == BookingStatusCompleted || s == BookingStatusCancelled
}

// HasArtist reports whether a booking in this status must carry an artist.
// Cancelled is not one of them but keeps the artist it had, see
// Booking.ArtistConsistent.
func (s BookingStatus) HasArtist() bool {
	switch s {
	case BookingStatusConfirmed, BookingStatusInProgress, BookingStatusCompleted:
		return true
	}
	return false
}

type Booking struct {
	Base
	ClientID           uuid.UUID     `db:"client_id"`
	ArtistID           *uuid.UUID    `db:"artist_id"`
	Title              string        `db:"title"`
	EventTypes         []string      `db:"event_types"`
	Location           string        `db:"location"`
	EventStart         time.Time     `db:"event_start"`
	EventEnd           time.Time     `db:"event_end"`
	BudgetMin          int64         `db:"budget_min"`
	BudgetMax          int64         `db:"budget_max"`
	Currency           string        `db:"currency"`
	DepositMode        DepositMode   `db:"deposit_mode"`
	TotalPrice         int64         `db:"total_price"`
	AmountPaid         int64         `db:"amount_paid"`
	RemainingAmount    int64         `db:"remaining_amount"`
	RefundDue          int64         `db:"refund_due"`
	PaymentStatus      PaymentStatus `db:"payment_status"`
	Status             BookingStatus `db:"status"`
	CancellationReason *string       `db:"cancellation_reason"`
	Version            int64         `db:"version"`
}

// SetAmountPaid stores the ledger-derived paid amount and recomputes the
// fields that depend on it.
func (b *Booking) SetAmountPaid(paid int64) {
	b.AmountPaid = paid
	b.recalculate()
}

// SetTotalPrice fixes the agreed price, normally when a proposal is accepted.
func (b *Booking) SetTotalPrice(total int64) {
	b.TotalPrice = total
	b.recalculate()
}

func (b *Booking) recalculate() {
	b.RemainingAmount = b.TotalPrice - b.AmountPaid
	if b.RemainingAmount < 0 {
		b.RemainingAmount = 0
	}

	switch {
	case b.AmountPaid <= 0:
		b.PaymentStatus = PaymentStatusNone
	case b.TotalPrice > 0 && b.AmountPaid >= b.TotalPrice:
		b.PaymentStatus = PaymentStatusFull
	default:
		b.PaymentStatus = PaymentStatusHalf
	}
}

// ArtistConsistent reports whether ArtistID agrees with Status. A pending
// booking has no artist and an accepted one has one. A cancelled booking
// keeps the artist it was cancelled with, who stays the counterparty of its
// refunds and late settlements.
func (b *Booking) ArtistConsistent() bool {
	switch {
	case b.Status == BookingStatusCancelled:
		return true
	case b.Status.HasArtist():
		return b.ArtistID != nil
	}
	return b.ArtistID == nil
}

// DepositAmount is what the first payment must cover for the booking's mode.
// A half deposit rounds down; the odd minor unit is collected with the
// remaining payment.
func (b *Booking) DepositAmount() int64 {
	if b.DepositMode == DepositModeFull {
		return b.TotalPrice
	}
	return b.TotalPrice / 2
}

func (b *Booking) AcceptsPayments() bool {
	return b.Status == BookingStatusConfirmed || b.Status == BookingStatusInProgress
}

// Snapshot returns the fields recorded in audit previous/new value columns.
func (b *Booking) Snapshot() map[string]any {
	snap := map[string]any{
		"status":           string(b.Status),
		"payment_status":   string(b.PaymentStatus),
		"total_price":      b.TotalPrice,
		"amount_paid":      b.AmountPaid,
		"remaining_amount": b.RemainingAmount,
		"refund_due":       b.RefundDue,
	}
	if b.ArtistID != nil {
		snap["artist_id"] = b.ArtistID.String()
	}
	if b.CancellationReason != nil {
		snap["cancellation_reason"] = *b.CancellationReason
	}
	return snap
}

func (b *Booking) Clone() *Booking {
	c := *b
	if b.ArtistID != nil {
		id := *b.ArtistID
		c.ArtistID = &id
	}
	if b.CancellationReason != nil {
		r := *b.CancellationReason
		c.CancellationReason = &r
	}
	c.EventTypes = append([]string(nil), b.EventTypes...)
	return &c
}
