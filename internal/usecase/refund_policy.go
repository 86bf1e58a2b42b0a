package usecase

import (
	"time"

	"gig-booking/pkg/utils"

	"github.com/shopspring/decimal"
)

type CancelCause string

const (
	CauseClient   CancelCause = "client"
	CauseArtist   CancelCause = "artist"
	CausePlatform CancelCause = "platform"
)

type RefundInput struct {
	AmountPaid      int64
	DaysBeforeEvent int
	Cause           CancelCause
}

// RefundPolicy decides how much of the paid amount goes back to the client
// when a booking is cancelled.
type RefundPolicy interface {
	RefundFor(in RefundInput) int64
}

// TieredRefundPolicy refunds everything when the artist or the platform
// cancels. A client cancelling gets 100% from 14 days out, 50% from 7 days
// and nothing after that.
type TieredRefundPolicy struct{}

func (TieredRefundPolicy) RefundFor(in RefundInput) int64 {
	if in.AmountPaid <= 0 {
		return 0
	}
	if in.Cause != CauseClient {
		return in.AmountPaid
	}

	switch {
	case in.DaysBeforeEvent >= 14:
		return in.AmountPaid
	case in.DaysBeforeEvent >= 7:
		return utils.PercentOf(in.AmountPaid, decimal.NewFromInt(50))
	default:
		return 0
	}
}

// daysBefore counts whole days from now until start, zero once it has passed.
func daysBefore(start, now time.Time) int {
	if !start.After(now) {
		return 0
	}
	return int(start.Sub(now) / (24 * time.Hour))
}
