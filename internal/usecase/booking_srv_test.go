package usecase

import (
	"errors"
	"strings"
	"testing"
	"time"

	"gig-booking/internal/data/entity"
	"gig-booking/internal/dto/request"
	"gig-booking/internal/notifier"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostRequest(t *testing.T) {
	h := newHarness(t)
	start := time.Now().Add(48 * time.Hour)

	valid := request.CreateRequestRequest{
		Title:       "Corporate gala",
		EventTypes:  []string{"corporate"},
		Location:    "Pune",
		EventStart:  start,
		EventEnd:    start.Add(3 * time.Hour),
		BudgetMin:   100,
		BudgetMax:   200,
		DepositMode: "half",
	}

	t.Run("creates a pending request", func(t *testing.T) {
		req := valid
		resp, err := h.svc.Booking.PostRequest(h.ctx, h.client, &req)
		require.NoError(t, err)

		assert.Equal(t, entity.BookingStatusPending, resp.Status)
		assert.Equal(t, entity.PaymentStatusNone, resp.PaymentStatus)
		assert.Nil(t, resp.ArtistID)
		assert.Equal(t, "INR", resp.Currency)

		entries := h.auditLog(t, uuid.MustParse(resp.ID))
		require.Len(t, entries, 1)
		assert.Equal(t, entity.AuditCreated, entries[0].Action)
		assert.Equal(t, h.client.UserID, *entries[0].ActorUserID)
	})

	t.Run("only clients post", func(t *testing.T) {
		req := valid
		_, err := h.svc.Booking.PostRequest(h.ctx, h.artist, &req)
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("rejects an event in the past", func(t *testing.T) {
		req := valid
		req.EventStart = time.Now().Add(-time.Hour)
		req.EventEnd = time.Now()
		_, err := h.svc.Booking.PostRequest(h.ctx, h.client, &req)

		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Contains(t, verr.Fields, "event_start")
	})

	t.Run("accepts the configured currency in any case", func(t *testing.T) {
		req := valid
		req.Currency = "inr"
		resp, err := h.svc.Booking.PostRequest(h.ctx, h.client, &req)
		require.NoError(t, err)
		assert.Equal(t, "INR", resp.Currency)
	})

	t.Run("rejects a foreign currency", func(t *testing.T) {
		req := valid
		req.Currency = "GBP"
		_, err := h.svc.Booking.PostRequest(h.ctx, h.client, &req)

		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Contains(t, verr.Fields, "currency")
	})

	t.Run("rejects an inverted budget", func(t *testing.T) {
		req := valid
		req.BudgetMax = 50
		_, err := h.svc.Booking.PostRequest(h.ctx, h.client, &req)
		assert.ErrorIs(t, err, ErrValidation)
	})
}

func TestGetBooking_Visibility(t *testing.T) {
	h := newHarness(t)

	open := h.postRequest(t, entity.DepositModeHalf, 30)
	_, err := h.svc.Booking.GetBooking(h.ctx, h.stranger, open)
	assert.NoError(t, err, "artists can read open requests")

	taken := h.confirmed(t, entity.DepositModeHalf, 500, 30)
	_, err = h.svc.Booking.GetBooking(h.ctx, h.stranger, taken)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = h.svc.Booking.GetBooking(h.ctx, h.artist, taken)
	assert.NoError(t, err)

	_, err = h.svc.Booking.GetBooking(h.ctx, h.admin, taken)
	assert.NoError(t, err)

	_, err = h.svc.Booking.GetBooking(h.ctx, h.client, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListMyBookings(t *testing.T) {
	h := newHarness(t)

	h.postRequest(t, entity.DepositModeHalf, 30)
	h.confirmed(t, entity.DepositModeHalf, 500, 30)

	mine, err := h.svc.Booking.ListMyBookings(h.ctx, h.client, &request.PaginatedRequest{Page: 1, PerPage: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(2), mine.Pagination.Total)
	assert.Len(t, mine.Data, 2)

	gigs, err := h.svc.Booking.ListMyBookings(h.ctx, h.artist, &request.PaginatedRequest{Page: 1, PerPage: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(1), gigs.Pagination.Total)

	_, err = h.svc.Booking.ListMyBookings(h.ctx, h.admin, &request.PaginatedRequest{Page: 1, PerPage: 10})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestCompleteBooking_RejectedWhenHalfPaid(t *testing.T) {
	h := newHarness(t)

	bookingID := h.confirmed(t, entity.DepositModeHalf, 500, 30)
	h.payDeposit(t, bookingID)
	h.startEvent(t, bookingID)

	_, err := h.svc.Booking.CompleteBooking(h.ctx, h.client, bookingID)
	require.ErrorIs(t, err, ErrPaymentIncomplete)

	b := h.booking(t, bookingID)
	assert.Equal(t, entity.BookingStatusInProgress, b.Status)
	assert.Equal(t, entity.PaymentStatusHalf, b.PaymentStatus)

	entries := h.auditLog(t, bookingID)
	last := entries[len(entries)-1]
	assert.Equal(t, entity.AuditUpdated, last.Action)
	require.NotNil(t, last.Detail)
	assert.True(t, strings.HasPrefix(*last.Detail, completionRejectedNote))
	assert.Equal(t, entity.BookingStatusInProgress, last.StatusAtTime)

	assert.True(t, h.notified(t, notifier.PaymentDue, bookingID))
	assert.False(t, h.notified(t, notifier.BookingCompleted, bookingID))
}

func TestCompleteBooking_FullyPaid(t *testing.T) {
	h := newHarness(t)

	bookingID := h.confirmed(t, entity.DepositModeHalf, 10_000, 30)
	h.payDeposit(t, bookingID)
	h.payRemaining(t, bookingID)

	// not yet started
	_, err := h.svc.Booking.CompleteBooking(h.ctx, h.client, bookingID)
	require.ErrorIs(t, err, ErrInvalidTransition)

	h.startEvent(t, bookingID)

	_, err = h.svc.Booking.CompleteBooking(h.ctx, h.artist, bookingID)
	require.ErrorIs(t, err, ErrForbidden)

	resp, err := h.svc.Booking.CompleteBooking(h.ctx, h.client, bookingID)
	require.NoError(t, err)
	assert.Equal(t, entity.BookingStatusCompleted, resp.Status)

	var fee *entity.Transaction
	for _, tx := range h.transactions(t, bookingID) {
		if tx.Type == entity.TransactionAdminFee {
			fee = tx
		}
	}
	require.NotNil(t, fee)
	assert.Equal(t, int64(1_000), fee.Amount)
	assert.Equal(t, h.artist.UserID, fee.SenderID)

	assert.Equal(t, 1, countActions(h.auditLog(t, bookingID), entity.AuditCompleted))
	assert.True(t, h.notified(t, notifier.BookingCompleted, bookingID))

	_, err = h.svc.Booking.CompleteBooking(h.ctx, h.client, bookingID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestCancelBooking_PendingRequestClosesProposals(t *testing.T) {
	h := newHarness(t)

	bookingID := h.postRequest(t, entity.DepositModeHalf, 30)
	x := h.propose(t, bookingID, h.artist, 500)
	y := h.propose(t, bookingID, h.rival, 450)

	resp, err := h.svc.Booking.CancelBooking(h.ctx, h.client, bookingID, &request.CancelBookingRequest{Reason: "event called off"})
	require.NoError(t, err)
	assert.Equal(t, entity.BookingStatusCancelled, resp.Status)
	assert.Equal(t, int64(0), resp.RefundDue)

	assert.Equal(t, entity.ProposalStatusRejected, h.proposal(t, x).Status)
	assert.Equal(t, entity.ProposalStatusRejected, h.proposal(t, y).Status)

	entries := h.auditLog(t, bookingID)
	assert.Equal(t, 1, countActions(entries, entity.AuditCancelled))
	assert.Equal(t, 2, countActions(entries, entity.AuditApplicationCancelled))

	_, err = h.svc.Booking.CancelBooking(h.ctx, h.client, bookingID, &request.CancelBookingRequest{Reason: "again"})
	assert.ErrorIs(t, err, ErrInvalidTransition)

	assert.True(t, h.notified(t, notifier.BookingCancelled, bookingID))
}

func TestCancelBooking_RefundFollowsCause(t *testing.T) {
	tests := []struct {
		name    string
		daysOut int
		actor   func(h *harness) entity.Actor
		cause   string
		refund  int64
	}{
		{"client well ahead", 30, func(h *harness) entity.Actor { return h.client }, "", 5_000},
		{"client a week out", 10, func(h *harness) entity.Actor { return h.client }, "", 2_500},
		{"client last minute", 3, func(h *harness) entity.Actor { return h.client }, "", 0},
		{"artist last minute", 3, func(h *harness) entity.Actor { return h.artist }, "", 5_000},
		{"admin on behalf of client", 3, func(h *harness) entity.Actor { return h.admin }, "client", 0},
		{"admin platform cause", 3, func(h *harness) entity.Actor { return h.admin }, "", 5_000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)

			bookingID := h.confirmed(t, entity.DepositModeHalf, 10_000, tt.daysOut)
			h.payDeposit(t, bookingID)

			resp, err := h.svc.Booking.CancelBooking(h.ctx, tt.actor(h), bookingID, &request.CancelBookingRequest{
				Cause:  tt.cause,
				Reason: "cannot make it",
			})
			require.NoError(t, err)
			assert.Equal(t, tt.refund, resp.RefundDue)

			h.svc.Drain()
			assert.Equal(t, tt.refund, h.gw.refundTotal())

			// the ledger only moves once the gateway confirms the refund
			assert.Equal(t, int64(5_000), h.booking(t, bookingID).AmountPaid)
		})
	}
}

func TestCancelBooking_RefundSettlesThroughCallback(t *testing.T) {
	h := newHarness(t)

	bookingID := h.confirmed(t, entity.DepositModeHalf, 10_000, 30)
	h.payDeposit(t, bookingID)

	_, err := h.svc.Booking.CancelBooking(h.ctx, h.artist, bookingID, &request.CancelBookingRequest{Reason: "double booked"})
	require.NoError(t, err)
	h.svc.Drain()

	require.Len(t, h.gw.refunds, 1)
	err = h.svc.Payment.HandleGatewayCallback(h.ctx, gatewayRefund(bookingID, h.gw.refunds[0].Amount))
	require.NoError(t, err)

	b := h.booking(t, bookingID)
	assert.Equal(t, int64(0), b.AmountPaid)
	assert.Equal(t, int64(0), b.RefundDue)
	assert.Equal(t, entity.PaymentStatusNone, b.PaymentStatus)
	assert.Equal(t, entity.BookingStatusCancelled, b.Status)

	// the artist stays on the cancelled booking as the refund counterparty
	require.NotNil(t, b.ArtistID)
	assert.Equal(t, h.artist.UserID, *b.ArtistID)
	for _, tx := range h.transactions(t, bookingID) {
		if tx.Type == entity.TransactionRefund {
			assert.Equal(t, h.artist.UserID, tx.SenderID)
		}
	}
}

func TestTransition_KeepsArtistConsistent(t *testing.T) {
	artist := uuid.New()

	t.Run("confirming needs an artist", func(t *testing.T) {
		b := &entity.Booking{Status: entity.BookingStatusPending}
		err := transition(b, entity.BookingStatusConfirmed)
		assert.ErrorIs(t, err, ErrInvalidTransition)
		assert.Equal(t, entity.BookingStatusPending, b.Status)
	})

	t.Run("confirming with an artist", func(t *testing.T) {
		b := &entity.Booking{Status: entity.BookingStatusPending, ArtistID: &artist}
		require.NoError(t, transition(b, entity.BookingStatusConfirmed))
		assert.Equal(t, entity.BookingStatusConfirmed, b.Status)
	})

	t.Run("cancelling keeps the artist", func(t *testing.T) {
		b := &entity.Booking{Status: entity.BookingStatusInProgress, ArtistID: &artist}
		require.NoError(t, transition(b, entity.BookingStatusCancelled))
		assert.Equal(t, &artist, b.ArtistID)
	})

	t.Run("cancelling an open request", func(t *testing.T) {
		b := &entity.Booking{Status: entity.BookingStatusPending}
		require.NoError(t, transition(b, entity.BookingStatusCancelled))
		assert.Nil(t, b.ArtistID)
	})
}

func TestCancelBooking_Forbidden(t *testing.T) {
	h := newHarness(t)
	bookingID := h.confirmed(t, entity.DepositModeHalf, 500, 30)

	_, err := h.svc.Booking.CancelBooking(h.ctx, h.stranger, bookingID, &request.CancelBookingRequest{Reason: "nope"})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = h.svc.Booking.CancelBooking(h.ctx, h.client, bookingID, &request.CancelBookingRequest{})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestStartDueBookings(t *testing.T) {
	h := newHarness(t)

	soon := h.confirmed(t, entity.DepositModeHalf, 500, 2)
	later := h.confirmed(t, entity.DepositModeHalf, 500, 20)
	open := h.postRequest(t, entity.DepositModeHalf, 2)

	n, err := h.svc.Booking.StartDueBookings(h.ctx, time.Now().Add(3*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.Equal(t, entity.BookingStatusInProgress, h.booking(t, soon).Status)
	assert.Equal(t, entity.BookingStatusConfirmed, h.booking(t, later).Status)
	assert.Equal(t, entity.BookingStatusPending, h.booking(t, open).Status)

	entries := h.auditLog(t, soon)
	last := entries[len(entries)-1]
	assert.Equal(t, entity.AuditStatusChanged, last.Action)
	assert.Nil(t, last.ActorUserID)
	assert.Equal(t, string(entity.RoleSystem), *last.ActorRole)
}

func TestAutoCompleteBookings(t *testing.T) {
	h := newHarness(t)

	paid := h.confirmed(t, entity.DepositModeFull, 800, 30)
	h.payDeposit(t, paid)
	h.startEvent(t, paid)
	h.moveEvent(t, paid, time.Now().Add(-30*time.Hour))

	owing := h.confirmed(t, entity.DepositModeHalf, 800, 30)
	h.payDeposit(t, owing)
	h.startEvent(t, owing)
	h.moveEvent(t, owing, time.Now().Add(-30*time.Hour))

	n, err := h.svc.Booking.AutoCompleteBookings(h.ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.Equal(t, entity.BookingStatusCompleted, h.booking(t, paid).Status)
	assert.Equal(t, entity.BookingStatusInProgress, h.booking(t, owing).Status)
	assert.True(t, h.notified(t, notifier.PaymentDue, owing))

	// a second sweep inside the grace window does not nag again
	before := len(h.auditLog(t, owing))
	n, err = h.svc.Booking.AutoCompleteBookings(h.ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Len(t, h.auditLog(t, owing), before)
}

func TestCancelBooking_AuditFailureLeavesBookingUntouched(t *testing.T) {
	h := newHarness(t)
	bookingID := h.confirmed(t, entity.DepositModeHalf, 500, 30)

	h.store.FailAuditWrites(errors.New("audit store down"))
	_, err := h.svc.Booking.CancelBooking(h.ctx, h.client, bookingID, &request.CancelBookingRequest{Reason: "x"})
	h.store.FailAuditWrites(nil)

	require.ErrorIs(t, err, ErrAuditWriteFailed)
	assert.Equal(t, entity.BookingStatusConfirmed, h.booking(t, bookingID).Status)
	h.svc.Drain()
	assert.False(t, h.notified(t, notifier.BookingCancelled, bookingID))
}
