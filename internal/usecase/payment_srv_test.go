package usecase

import (
	"errors"
	"testing"
	"time"

	"gig-booking/internal/data/entity"
	"gig-booking/internal/dto/request"
	"gig-booking/internal/gateway"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDepositThenRemainingPayment(t *testing.T) {
	h := newHarness(t)
	bookingID := h.confirmed(t, entity.DepositModeHalf, 500, 30)

	intent, err := h.svc.Payment.CreateDepositPayment(h.ctx, h.client, bookingID)
	require.NoError(t, err)
	assert.Equal(t, int64(250), intent.Amount)
	assert.Equal(t, entity.IntentStatusPending, intent.Status)

	// nothing is paid until the gateway says so
	assert.Equal(t, int64(0), h.booking(t, bookingID).AmountPaid)

	h.settle(t, intent, entity.GatewayEventDepositConfirmed)
	b := h.booking(t, bookingID)
	assert.Equal(t, int64(250), b.AmountPaid)
	assert.Equal(t, int64(250), b.RemainingAmount)
	assert.Equal(t, entity.PaymentStatusHalf, b.PaymentStatus)

	remaining, err := h.svc.Payment.CreateRemainingPayment(h.ctx, h.client, bookingID, &request.RemainingPaymentRequest{
		Amount:   250,
		ArtistID: h.artist.UserID.String(),
	})
	require.NoError(t, err)
	h.settle(t, remaining, entity.GatewayEventRemainingConfirmed)

	b = h.booking(t, bookingID)
	assert.Equal(t, int64(500), b.AmountPaid)
	assert.Equal(t, int64(0), b.RemainingAmount)
	assert.Equal(t, entity.PaymentStatusFull, b.PaymentStatus)

	txs := h.transactions(t, bookingID)
	require.Len(t, txs, 2)
	assert.Equal(t, entity.TransactionHalfDeposit, txs[0].Type)
	assert.Equal(t, entity.TransactionRemaining, txs[1].Type)
	assert.Empty(t, h.pendingIntents(t, bookingID))
}

func TestFullDepositSettlesInOne(t *testing.T) {
	h := newHarness(t)
	bookingID := h.confirmed(t, entity.DepositModeFull, 900, 30)

	h.payDeposit(t, bookingID)

	b := h.booking(t, bookingID)
	assert.Equal(t, entity.PaymentStatusFull, b.PaymentStatus)
	assert.Equal(t, entity.TransactionFullDeposit, h.transactions(t, bookingID)[0].Type)

	_, err := h.svc.Payment.CreateRemainingPayment(h.ctx, h.client, bookingID, &request.RemainingPaymentRequest{
		Amount:   1,
		ArtistID: h.artist.UserID.String(),
	})
	assert.ErrorIs(t, err, ErrBookingNotPayable)
}

func TestCreateRemainingPayment_AmountMismatch(t *testing.T) {
	h := newHarness(t)
	bookingID := h.confirmed(t, entity.DepositModeHalf, 500, 30)
	h.payDeposit(t, bookingID)

	_, err := h.svc.Payment.CreateRemainingPayment(h.ctx, h.client, bookingID, &request.RemainingPaymentRequest{
		Amount:   300,
		ArtistID: h.artist.UserID.String(),
	})

	var mismatch *AmountMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.ErrorIs(t, err, ErrAmountMismatch)
	assert.Equal(t, int64(250), mismatch.Expected)
	assert.Equal(t, int64(300), mismatch.Got)

	assert.Len(t, h.transactions(t, bookingID), 1)
	assert.Empty(t, h.pendingIntents(t, bookingID))
	assert.Equal(t, int64(250), h.booking(t, bookingID).AmountPaid)
}

func TestCreateRemainingPayment_Rules(t *testing.T) {
	h := newHarness(t)
	bookingID := h.confirmed(t, entity.DepositModeHalf, 500, 30)

	// deposit first
	_, err := h.svc.Payment.CreateRemainingPayment(h.ctx, h.client, bookingID, &request.RemainingPaymentRequest{
		Amount:   500,
		ArtistID: h.artist.UserID.String(),
	})
	assert.ErrorIs(t, err, ErrBookingNotPayable)

	h.payDeposit(t, bookingID)

	_, err = h.svc.Payment.CreateRemainingPayment(h.ctx, h.client, bookingID, &request.RemainingPaymentRequest{
		Amount:   250,
		ArtistID: h.rival.UserID.String(),
	})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = h.svc.Payment.CreateRemainingPayment(h.ctx, h.stranger, bookingID, &request.RemainingPaymentRequest{
		Amount:   250,
		ArtistID: h.artist.UserID.String(),
	})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = h.svc.Payment.CreateRemainingPayment(h.ctx, h.client, bookingID, &request.RemainingPaymentRequest{
		Amount:   250,
		ArtistID: "not-a-uuid",
	})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestCreateDepositPayment_Rules(t *testing.T) {
	h := newHarness(t)

	open := h.postRequest(t, entity.DepositModeHalf, 30)
	_, err := h.svc.Payment.CreateDepositPayment(h.ctx, h.client, open)
	assert.ErrorIs(t, err, ErrBookingNotPayable)

	bookingID := h.confirmed(t, entity.DepositModeHalf, 500, 30)
	_, err = h.svc.Payment.CreateDepositPayment(h.ctx, h.artist, bookingID)
	assert.ErrorIs(t, err, ErrForbidden)

	h.payDeposit(t, bookingID)
	_, err = h.svc.Payment.CreateDepositPayment(h.ctx, h.client, bookingID)
	assert.ErrorIs(t, err, ErrBookingNotPayable)
}

func TestInFlightSettlementBlocksPaymentAndCancel(t *testing.T) {
	h := newHarness(t)
	bookingID := h.confirmed(t, entity.DepositModeHalf, 500, 30)

	intent, err := h.svc.Payment.CreateDepositPayment(h.ctx, h.client, bookingID)
	require.NoError(t, err)

	_, err = h.svc.Payment.CreateDepositPayment(h.ctx, h.client, bookingID)
	assert.ErrorIs(t, err, ErrSettlementInFlight)

	_, err = h.svc.Booking.CancelBooking(h.ctx, h.client, bookingID, &request.CancelBookingRequest{Reason: "changed mind"})
	assert.ErrorIs(t, err, ErrSettlementInFlight)

	err = h.svc.Payment.HandleGatewayCallback(h.ctx, &gateway.CallbackEvent{
		ExternalRef: "pay_failed_1",
		Type:        entity.GatewayEventPaymentFailed,
		BookingID:   bookingID,
		IntentRef:   *intent.GatewayRef,
	})
	require.NoError(t, err)
	assert.Empty(t, h.pendingIntents(t, bookingID))

	_, err = h.svc.Booking.CancelBooking(h.ctx, h.client, bookingID, &request.CancelBookingRequest{Reason: "changed mind"})
	require.NoError(t, err)
}

func TestCreateDepositPayment_GatewayFailures(t *testing.T) {
	t.Run("timeout leaves the intent in flight", func(t *testing.T) {
		h := newHarness(t)
		bookingID := h.confirmed(t, entity.DepositModeHalf, 500, 30)

		h.gw.intentErr = gateway.ErrTimeout
		_, err := h.svc.Payment.CreateDepositPayment(h.ctx, h.client, bookingID)
		require.ErrorIs(t, err, ErrGatewayUnavailable)
		assert.Len(t, h.pendingIntents(t, bookingID), 1)

		// expiry releases it
		n, err := h.svc.Payment.ExpireStaleIntents(h.ctx, time.Now().Add(time.Hour))
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		assert.Empty(t, h.pendingIntents(t, bookingID))

		h.gw.intentErr = nil
		_, err = h.svc.Payment.CreateDepositPayment(h.ctx, h.client, bookingID)
		require.NoError(t, err)
	})

	t.Run("hard failure releases the intent", func(t *testing.T) {
		h := newHarness(t)
		bookingID := h.confirmed(t, entity.DepositModeHalf, 500, 30)

		h.gw.intentErr = errors.New("bad credentials")
		_, err := h.svc.Payment.CreateDepositPayment(h.ctx, h.client, bookingID)
		require.ErrorIs(t, err, ErrGatewayUnavailable)
		assert.Empty(t, h.pendingIntents(t, bookingID))
		assert.Equal(t, int64(0), h.booking(t, bookingID).AmountPaid)
	})
}

func TestHandleGatewayCallback_Idempotent(t *testing.T) {
	h := newHarness(t)
	bookingID := h.confirmed(t, entity.DepositModeHalf, 500, 30)

	intent, err := h.svc.Payment.CreateDepositPayment(h.ctx, h.client, bookingID)
	require.NoError(t, err)
	event := h.settle(t, intent, entity.GatewayEventDepositConfirmed)
	auditBefore := len(h.auditLog(t, bookingID))

	for i := 0; i < 3; i++ {
		err := h.svc.Payment.HandleGatewayCallback(h.ctx, event)
		assert.ErrorIs(t, err, ErrDuplicateCallback)
	}

	assert.Len(t, h.transactions(t, bookingID), 1)
	assert.Equal(t, int64(250), h.booking(t, bookingID).AmountPaid)
	assert.Len(t, h.auditLog(t, bookingID), auditBefore)
}

func TestHandleGatewayCallback_FailedApplyCanBeRetried(t *testing.T) {
	h := newHarness(t)
	bookingID := h.confirmed(t, entity.DepositModeHalf, 500, 30)

	intent, err := h.svc.Payment.CreateDepositPayment(h.ctx, h.client, bookingID)
	require.NoError(t, err)
	event := &gateway.CallbackEvent{
		ExternalRef: "pay_retry",
		Type:        entity.GatewayEventDepositConfirmed,
		BookingID:   bookingID,
		IntentRef:   *intent.GatewayRef,
		Amount:      intent.Amount,
	}

	h.store.FailAuditWrites(errors.New("audit store down"))
	err = h.svc.Payment.HandleGatewayCallback(h.ctx, event)
	h.store.FailAuditWrites(nil)

	require.ErrorIs(t, err, ErrAuditWriteFailed)
	assert.Empty(t, h.transactions(t, bookingID))
	assert.Len(t, h.pendingIntents(t, bookingID), 1)

	require.NoError(t, h.svc.Payment.HandleGatewayCallback(h.ctx, event))
	assert.Equal(t, int64(250), h.booking(t, bookingID).AmountPaid)
}

func TestHandleGatewayCallback_Rejects(t *testing.T) {
	h := newHarness(t)
	bookingID := h.confirmed(t, entity.DepositModeHalf, 500, 30)
	open := h.postRequest(t, entity.DepositModeHalf, 30)

	tests := []struct {
		name  string
		event *gateway.CallbackEvent
	}{
		{"missing reference", &gateway.CallbackEvent{Type: entity.GatewayEventDepositConfirmed, BookingID: bookingID, Amount: 10}},
		{"unknown type", &gateway.CallbackEvent{ExternalRef: "x1", Type: "chargeback", BookingID: bookingID, Amount: 10}},
		{"zero amount", &gateway.CallbackEvent{ExternalRef: "x2", Type: entity.GatewayEventDepositConfirmed, BookingID: bookingID}},
		{"unknown booking", &gateway.CallbackEvent{ExternalRef: "x3", Type: entity.GatewayEventDepositConfirmed, BookingID: uuid.New(), Amount: 10}},
		{"request without artist", &gateway.CallbackEvent{ExternalRef: "x4", Type: entity.GatewayEventDepositConfirmed, BookingID: open, Amount: 10}},
		{"overpayment", &gateway.CallbackEvent{ExternalRef: "x5", Type: entity.GatewayEventDepositConfirmed, BookingID: bookingID, Amount: 501}},
		{"wrong currency", &gateway.CallbackEvent{ExternalRef: "x6", Type: entity.GatewayEventDepositConfirmed, BookingID: bookingID, Amount: 10, Currency: "USD"}},
		{"refund beyond paid", &gateway.CallbackEvent{ExternalRef: "x7", Type: entity.GatewayEventRefundIssued, BookingID: bookingID, Amount: 10}},
		{"unknown payout", &gateway.CallbackEvent{ExternalRef: "x8", Type: entity.GatewayEventPayoutConfirmed, PayoutID: uuid.New()}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := h.svc.Payment.HandleGatewayCallback(h.ctx, tt.event)
			assert.ErrorIs(t, err, ErrInvalidCallback)
		})
	}

	assert.Empty(t, h.transactions(t, bookingID))
	assert.Equal(t, int64(0), h.booking(t, bookingID).AmountPaid)
}

func TestLateSettlementOnCancelledBooking(t *testing.T) {
	h := newHarness(t)
	bookingID := h.confirmed(t, entity.DepositModeHalf, 500, 30)

	h.gw.intentErr = gateway.ErrTimeout
	_, err := h.svc.Payment.CreateDepositPayment(h.ctx, h.client, bookingID)
	require.ErrorIs(t, err, ErrGatewayUnavailable)
	h.gw.intentErr = nil

	_, err = h.svc.Payment.ExpireStaleIntents(h.ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)

	_, err = h.svc.Booking.CancelBooking(h.ctx, h.client, bookingID, &request.CancelBookingRequest{Reason: "found another act"})
	require.NoError(t, err)

	// the payment the gateway was still holding lands after the cancel
	err = h.svc.Payment.HandleGatewayCallback(h.ctx, &gateway.CallbackEvent{
		ExternalRef: "pay_late",
		Type:        entity.GatewayEventDepositConfirmed,
		BookingID:   bookingID,
		Amount:      250,
	})
	require.NoError(t, err)

	b := h.booking(t, bookingID)
	assert.Equal(t, entity.BookingStatusCancelled, b.Status)
	assert.Equal(t, int64(250), b.AmountPaid)
	assert.Equal(t, int64(250), b.RefundDue)

	h.svc.Drain()
	require.Len(t, h.gw.refunds, 1)
	assert.Equal(t, "pay_late", h.gw.refunds[0].PaymentRef)
	assert.Equal(t, int64(250), h.gw.refunds[0].Amount)
}

func TestExpireStaleIntents_KeepsFreshOnes(t *testing.T) {
	h := newHarness(t)
	bookingID := h.confirmed(t, entity.DepositModeHalf, 500, 30)

	_, err := h.svc.Payment.CreateDepositPayment(h.ctx, h.client, bookingID)
	require.NoError(t, err)

	n, err := h.svc.Payment.ExpireStaleIntents(h.ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Len(t, h.pendingIntents(t, bookingID), 1)
}

func TestHandleGatewayCallback_ResolvesBookingFromReferences(t *testing.T) {
	h := newHarness(t)
	bookingID := h.confirmed(t, entity.DepositModeHalf, 500, 30)

	deposit, err := h.svc.Payment.CreateDepositPayment(h.ctx, h.client, bookingID)
	require.NoError(t, err)
	err = h.svc.Payment.HandleGatewayCallback(h.ctx, &gateway.CallbackEvent{
		ExternalRef: "pay_by_order",
		Type:        entity.GatewayEventDepositConfirmed,
		IntentRef:   *deposit.GatewayRef,
		Amount:      250,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(250), h.booking(t, bookingID).AmountPaid)
	assert.Empty(t, h.pendingIntents(t, bookingID))

	// the stored intent decides the kind, not the provider's label
	remaining, err := h.svc.Payment.CreateRemainingPayment(h.ctx, h.client, bookingID, &request.RemainingPaymentRequest{
		Amount:   250,
		ArtistID: h.artist.UserID.String(),
	})
	require.NoError(t, err)
	err = h.svc.Payment.HandleGatewayCallback(h.ctx, &gateway.CallbackEvent{
		ExternalRef: "pay_remaining_by_order",
		Type:        entity.GatewayEventDepositConfirmed,
		IntentRef:   *remaining.GatewayRef,
		Amount:      250,
	})
	require.NoError(t, err)

	txs := h.transactions(t, bookingID)
	require.Len(t, txs, 2)
	types := []entity.TransactionType{txs[0].Type, txs[1].Type}
	assert.ElementsMatch(t, []entity.TransactionType{entity.TransactionHalfDeposit, entity.TransactionRemaining}, types)
	assert.Equal(t, entity.PaymentStatusFull, h.booking(t, bookingID).PaymentStatus)

	// a refund names the payment it returns
	err = h.svc.Payment.HandleGatewayCallback(h.ctx, &gateway.CallbackEvent{
		ExternalRef: "rfnd_by_payment",
		Type:        entity.GatewayEventRefundIssued,
		PaymentRef:  "pay_by_order",
		Amount:      100,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(400), h.booking(t, bookingID).AmountPaid)
}

func TestHandleGatewayCallback_RejectsUnresolvableReferences(t *testing.T) {
	h := newHarness(t)
	bookingID := h.confirmed(t, entity.DepositModeHalf, 500, 30)
	other := h.confirmed(t, entity.DepositModeHalf, 800, 30)

	intent, err := h.svc.Payment.CreateDepositPayment(h.ctx, h.client, bookingID)
	require.NoError(t, err)

	err = h.svc.Payment.HandleGatewayCallback(h.ctx, &gateway.CallbackEvent{
		ExternalRef: "pay_crossed",
		Type:        entity.GatewayEventDepositConfirmed,
		BookingID:   other,
		IntentRef:   *intent.GatewayRef,
		Amount:      250,
	})
	assert.ErrorIs(t, err, ErrInvalidCallback)

	err = h.svc.Payment.HandleGatewayCallback(h.ctx, &gateway.CallbackEvent{
		ExternalRef: "rfnd_orphan",
		Type:        entity.GatewayEventRefundIssued,
		PaymentRef:  "pay_never_seen",
		Amount:      100,
	})
	assert.ErrorIs(t, err, ErrInvalidCallback)

	assert.Empty(t, h.transactions(t, bookingID))
	assert.Empty(t, h.transactions(t, other))
	assert.Len(t, h.pendingIntents(t, bookingID), 1)
}
