package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gig-booking/internal/data/entity"
	"gig-booking/internal/data/repository"
	"gig-booking/internal/dto/request"
	"gig-booking/internal/dto/response"
	"gig-booking/internal/gateway"
	"gig-booking/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// gatewayActor is recorded on audit entries caused by provider callbacks.
var gatewayActor = entity.Actor{Role: entity.RoleSystem, Name: "payment-gateway"}

type PaymentService interface {
	// Client endpoints. Both only open a payment with the gateway; the
	// ledger moves when the gateway confirms.
	CreateDepositPayment(ctx context.Context, actor entity.Actor, bookingID uuid.UUID) (*response.PaymentIntentResponse, error)
	CreateRemainingPayment(ctx context.Context, actor entity.Actor, bookingID uuid.UUID, req *request.RemainingPaymentRequest) (*response.PaymentIntentResponse, error)

	// HandleGatewayCallback applies a verified settlement event exactly once.
	HandleGatewayCallback(ctx context.Context, event *gateway.CallbackEvent) error

	ExpireStaleIntents(ctx context.Context, now time.Time) (int, error)
}

type paymentService struct {
	*engine
	log *zap.Logger
}

func NewPaymentService(e *engine, log *zap.Logger) PaymentService {
	return &paymentService{
		engine: e,
		log:    log.With(zap.String("service", "payment")),
	}
}

func (s *paymentService) CreateDepositPayment(ctx context.Context, actor entity.Actor, bookingID uuid.UUID) (*response.PaymentIntentResponse, error) {
	return s.openIntent(ctx, bookingID, entity.IntentKindDeposit, func(b *entity.Booking) (int64, error) {
		if !actor.Is(b.ClientID) {
			return 0, fmt.Errorf("deposit for booking %s: %w", b.ID, ErrForbidden)
		}
		if b.Status != entity.BookingStatusConfirmed || b.PaymentStatus != entity.PaymentStatusNone {
			return 0, fmt.Errorf("deposit for booking %s (%s, paid %s): %w", b.ID, b.Status, b.PaymentStatus, ErrBookingNotPayable)
		}
		return b.DepositAmount(), nil
	})
}

func (s *paymentService) CreateRemainingPayment(ctx context.Context, actor entity.Actor, bookingID uuid.UUID, req *request.RemainingPaymentRequest) (*response.PaymentIntentResponse, error) {
	if err := validate(req); err != nil {
		return nil, err
	}
	artistID, err := uuid.Parse(req.ArtistID)
	if err != nil {
		return nil, invalid("artist_id", "Must be a valid UUID")
	}

	return s.openIntent(ctx, bookingID, entity.IntentKindRemaining, func(b *entity.Booking) (int64, error) {
		if !actor.IsAdmin() && !actor.Is(b.ClientID) {
			return 0, fmt.Errorf("remaining payment for booking %s: %w", b.ID, ErrForbidden)
		}
		if !b.AcceptsPayments() || b.PaymentStatus != entity.PaymentStatusHalf {
			return 0, fmt.Errorf("remaining payment for booking %s (%s, paid %s): %w", b.ID, b.Status, b.PaymentStatus, ErrBookingNotPayable)
		}
		if b.ArtistID == nil || *b.ArtistID != artistID {
			return 0, invalid("artist_id", "Not the artist assigned to this booking")
		}
		if req.Amount != b.RemainingAmount {
			return 0, &AmountMismatchError{Expected: b.RemainingAmount, Got: req.Amount}
		}
		return req.Amount, nil
	})
}

// openIntent reserves a pending intent for the booking, then hands it to the
// gateway. A pending intent is an in-flight settlement: it blocks a second
// payment and cancellation until a callback or expiry resolves it.
func (s *paymentService) openIntent(ctx context.Context, bookingID uuid.UUID, kind entity.IntentKind, amountDue func(*entity.Booking) (int64, error)) (*response.PaymentIntentResponse, error) {
	var intent *entity.PaymentIntent

	err := s.repo.Atomic(ctx, func(tx *repository.Repository) error {
		booking, err := s.loadBooking(ctx, tx, bookingID, true)
		if err != nil {
			return err
		}

		amount, err := amountDue(booking)
		if err != nil {
			return err
		}

		pending, err := tx.PaymentIntent.FindPendingByBookingID(ctx, bookingID)
		if err != nil {
			return fmt.Errorf("find pending intents: %w", err)
		}
		if len(pending) > 0 {
			return fmt.Errorf("%s payment for booking %s: %w", kind, bookingID, ErrSettlementInFlight)
		}

		now := time.Now().UTC()
		intent = &entity.PaymentIntent{
			Base:      entity.NewBase(now),
			BookingID: bookingID,
			Kind:      kind,
			Amount:    amount,
			Currency:  booking.Currency,
			Status:    entity.IntentStatusPending,
		}
		if err := tx.PaymentIntent.Create(ctx, intent); err != nil {
			return fmt.Errorf("create payment intent: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrAmountMismatch) {
			s.log.Warn("Payment amount mismatch", zap.Error(err), zap.String("booking_id", bookingID.String()))
		}
		return nil, err
	}

	order, err := s.gateway.CreatePaymentIntent(ctx, gateway.PaymentRequest{
		IntentID:  intent.ID,
		BookingID: bookingID,
		Kind:      kind,
		Amount:    intent.Amount,
		Currency:  intent.Currency,
	})
	switch {
	case errors.Is(err, gateway.ErrTimeout):
		// outcome unknown, the intent stays in flight until a callback or expiry
		s.log.Warn("Gateway timed out creating payment",
			zap.String("booking_id", bookingID.String()),
			zap.String("intent_id", intent.ID.String()),
		)
		return nil, fmt.Errorf("create %s payment: %w: %v", kind, ErrGatewayUnavailable, err)

	case err != nil:
		intent.Status = entity.IntentStatusFailed
		intent.UpdatedAt = time.Now().UTC()
		if uerr := s.repo.PaymentIntent.Update(ctx, intent); uerr != nil {
			s.log.Error("Failed to mark intent failed", zap.Error(uerr), zap.String("intent_id", intent.ID.String()))
		}
		return nil, fmt.Errorf("create %s payment: %w: %v", kind, ErrGatewayUnavailable, err)
	}

	intent.GatewayRef = &order.GatewayRef
	intent.UpdatedAt = time.Now().UTC()
	if err := s.repo.PaymentIntent.Update(ctx, intent); err != nil {
		s.log.Error("Failed to store gateway reference",
			zap.Error(err),
			zap.String("intent_id", intent.ID.String()),
			zap.String("gateway_ref", order.GatewayRef),
		)
		return nil, fmt.Errorf("store gateway reference: %w", err)
	}

	s.log.Info("Payment opened",
		zap.String("booking_id", bookingID.String()),
		zap.String("intent_id", intent.ID.String()),
		zap.String("kind", string(kind)),
		zap.Int64("amount", intent.Amount),
		zap.String("gateway_ref", order.GatewayRef),
	)

	resp := response.IntentToResponse(intent)
	return &resp, nil
}

func (s *paymentService) HandleGatewayCallback(ctx context.Context, event *gateway.CallbackEvent) error {
	if err := s.resolveBooking(ctx, event); err != nil {
		s.log.Warn("Rejected gateway callback", zap.Error(err))
		return err
	}
	if err := checkCallback(event); err != nil {
		s.log.Warn("Rejected gateway callback", zap.Error(err))
		return err
	}

	var lateRefund *lateSettlement
	err := s.repo.Atomic(ctx, func(tx *repository.Repository) error {
		err := tx.GatewayEvent.Claim(ctx, &entity.GatewayEvent{ExternalRef: event.ExternalRef, EventType: event.Type})
		if err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return fmt.Errorf("callback %s: %w", event.ExternalRef, ErrDuplicateCallback)
			}
			return fmt.Errorf("claim callback %s: %w", event.ExternalRef, err)
		}

		switch event.Type {
		case entity.GatewayEventDepositConfirmed, entity.GatewayEventRemainingConfirmed:
			lateRefund, err = s.applyPayIn(ctx, tx, event)
			return err
		case entity.GatewayEventRefundIssued:
			return s.applyRefund(ctx, tx, event)
		case entity.GatewayEventPaymentFailed:
			return s.failIntent(ctx, tx, event)
		case entity.GatewayEventPayoutConfirmed, entity.GatewayEventPayoutFailed:
			return s.settlePayout(ctx, tx, event)
		case entity.GatewayEventOnboardingCompleted:
			return s.completeOnboarding(ctx, tx, event)
		}
		return fmt.Errorf("callback type %s: %w", event.Type, ErrInvalidCallback)
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateCallback) {
			s.log.Info("Duplicate gateway callback ignored",
				zap.String("external_ref", event.ExternalRef),
				zap.String("type", string(event.Type)),
			)
		} else {
			s.log.Error("Failed to apply gateway callback",
				zap.Error(err),
				zap.String("external_ref", event.ExternalRef),
				zap.String("type", string(event.Type)),
			)
		}
		return err
	}

	s.log.Info("Gateway callback applied",
		zap.String("external_ref", event.ExternalRef),
		zap.String("type", string(event.Type)),
		zap.String("booking_id", event.BookingID.String()),
		zap.Int64("amount", event.Amount),
	)

	if lateRefund != nil {
		s.events.run(ctx, func(ctx context.Context) {
			s.requestRefunds(ctx, s.log, lateRefund.booking, lateRefund.tx.Amount, []*entity.Transaction{lateRefund.tx})
		})
	}
	return nil
}

// resolveBooking ties a payment callback to the intent it settles and a
// refund to the pay-in it returns. The stored intent decides the booking and
// whether a capture is a deposit or the remainder.
func (s *paymentService) resolveBooking(ctx context.Context, event *gateway.CallbackEvent) error {
	if event == nil {
		return nil
	}

	switch event.Type {
	case entity.GatewayEventDepositConfirmed, entity.GatewayEventRemainingConfirmed, entity.GatewayEventPaymentFailed:
		if event.IntentRef == "" {
			return nil
		}
		intent, err := s.repo.PaymentIntent.FindByGatewayRef(ctx, event.IntentRef)
		if err != nil {
			return fmt.Errorf("find intent %s: %w", event.IntentRef, err)
		}
		if intent == nil {
			return nil
		}
		if event.BookingID != uuid.Nil && event.BookingID != intent.BookingID {
			return fmt.Errorf("callback for booking %s settles intent of booking %s: %w", event.BookingID, intent.BookingID, ErrInvalidCallback)
		}
		event.BookingID = intent.BookingID
		if event.Type != entity.GatewayEventPaymentFailed {
			event.Type = entity.GatewayEventDepositConfirmed
			if intent.Kind == entity.IntentKindRemaining {
				event.Type = entity.GatewayEventRemainingConfirmed
			}
		}

	case entity.GatewayEventRefundIssued:
		if event.BookingID != uuid.Nil || event.PaymentRef == "" {
			return nil
		}
		payIn, err := s.repo.Transaction.FindByExternalRef(ctx, event.PaymentRef)
		if err != nil {
			return fmt.Errorf("find payment %s: %w", event.PaymentRef, err)
		}
		if payIn == nil || !payIn.Type.IsPayIn() {
			return fmt.Errorf("refund of unknown payment %s: %w", event.PaymentRef, ErrInvalidCallback)
		}
		event.BookingID = payIn.BookingID
	}
	return nil
}

// lateSettlement is money that arrived after the booking was cancelled. It
// is recorded and sent straight back.
type lateSettlement struct {
	booking *entity.Booking
	tx      *entity.Transaction
}

func (s *paymentService) applyPayIn(ctx context.Context, tx *repository.Repository, event *gateway.CallbackEvent) (*lateSettlement, error) {
	booking, err := s.loadBooking(ctx, tx, event.BookingID, true)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCallback, err)
	}
	if err := sameCurrency(booking, event); err != nil {
		return nil, err
	}

	late := booking.Status == entity.BookingStatusCancelled
	switch {
	case booking.ArtistID == nil || booking.Status == entity.BookingStatusCompleted:
		return nil, fmt.Errorf("payment for %s booking %s: %w", booking.Status, booking.ID, ErrInvalidCallback)
	case !late && event.Amount > booking.RemainingAmount:
		return nil, fmt.Errorf("payment of %d exceeds remaining %d on booking %s: %w",
			event.Amount, booking.RemainingAmount, booking.ID, ErrInvalidCallback)
	}

	txType := entity.TransactionRemaining
	if event.Type == entity.GatewayEventDepositConfirmed {
		txType = entity.TransactionHalfDeposit
		if event.Amount >= booking.TotalPrice {
			txType = entity.TransactionFullDeposit
		}
	}

	now := time.Now().UTC()
	payIn := &entity.Transaction{
		BaseSimple:  entity.NewBaseSimple(now),
		BookingID:   booking.ID,
		SenderID:    booking.ClientID,
		ReceiverID:  *booking.ArtistID,
		Type:        txType,
		Amount:      event.Amount,
		Currency:    booking.Currency,
		ExternalRef: event.ExternalRef,
	}
	if err := tx.Transaction.Create(ctx, payIn); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, fmt.Errorf("transaction %s: %w", event.ExternalRef, ErrDuplicateCallback)
		}
		return nil, fmt.Errorf("record %s: %w", txType, err)
	}

	previous := booking.Snapshot()
	if err := s.recomputePaid(ctx, tx, booking); err != nil {
		return nil, err
	}
	detail := fmt.Sprintf("%s %s confirmed (%s)", txType, utils.FormatAmount(event.Amount, booking.Currency), event.ExternalRef)
	if late {
		booking.RefundDue += event.Amount
		detail = "late settlement on cancelled booking, refunding: " + detail
	}
	if err := s.saveBooking(ctx, tx, booking, now); err != nil {
		return nil, err
	}

	if err := s.settleIntent(ctx, tx, event.IntentRef, entity.IntentStatusSettled, now); err != nil {
		return nil, err
	}

	if err := record(ctx, tx, auditRecord{
		BookingID:     booking.ID,
		Action:        entity.AuditUpdated,
		Actor:         gatewayActor,
		ArtistID:      booking.ArtistID,
		Previous:      previous,
		New:           booking.Snapshot(),
		Detail:        detail,
		Status:        booking.Status,
		CorrelationID: uuid.New(),
		At:            now,
	}); err != nil {
		return nil, err
	}

	if late {
		return &lateSettlement{booking: booking.Clone(), tx: payIn}, nil
	}
	return nil, nil
}

func (s *paymentService) applyRefund(ctx context.Context, tx *repository.Repository, event *gateway.CallbackEvent) error {
	booking, err := s.loadBooking(ctx, tx, event.BookingID, true)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCallback, err)
	}
	if err := sameCurrency(booking, event); err != nil {
		return err
	}
	if booking.ArtistID == nil || event.Amount > booking.AmountPaid {
		return fmt.Errorf("refund of %d against paid %d on booking %s: %w", event.Amount, booking.AmountPaid, booking.ID, ErrInvalidCallback)
	}

	now := time.Now().UTC()
	refund := &entity.Transaction{
		BaseSimple:  entity.NewBaseSimple(now),
		BookingID:   booking.ID,
		SenderID:    *booking.ArtistID,
		ReceiverID:  booking.ClientID,
		Type:        entity.TransactionRefund,
		Amount:      event.Amount,
		Currency:    booking.Currency,
		ExternalRef: event.ExternalRef,
	}
	if err := tx.Transaction.Create(ctx, refund); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return fmt.Errorf("transaction %s: %w", event.ExternalRef, ErrDuplicateCallback)
		}
		return fmt.Errorf("record refund: %w", err)
	}

	previous := booking.Snapshot()
	if err := s.recomputePaid(ctx, tx, booking); err != nil {
		return err
	}
	booking.RefundDue = max(booking.RefundDue-event.Amount, 0)
	if err := s.saveBooking(ctx, tx, booking, now); err != nil {
		return err
	}

	return record(ctx, tx, auditRecord{
		BookingID:     booking.ID,
		Action:        entity.AuditUpdated,
		Actor:         gatewayActor,
		ArtistID:      booking.ArtistID,
		Previous:      previous,
		New:           booking.Snapshot(),
		Detail:        fmt.Sprintf("refund %s issued (%s)", utils.FormatAmount(event.Amount, booking.Currency), event.ExternalRef),
		Status:        booking.Status,
		CorrelationID: uuid.New(),
		At:            now,
	})
}

// recomputePaid derives the paid amount from the ledger, never from the
// previous counter.
func (s *paymentService) recomputePaid(ctx context.Context, tx *repository.Repository, booking *entity.Booking) error {
	txs, err := tx.Transaction.FindByBookingID(ctx, booking.ID)
	if err != nil {
		return fmt.Errorf("find transactions: %w", err)
	}
	booking.SetAmountPaid(entity.NetPaid(txs))
	return nil
}

func (s *paymentService) failIntent(ctx context.Context, tx *repository.Repository, event *gateway.CallbackEvent) error {
	// serialize with cancellation, which reads pending intents under this lock
	if _, err := s.loadBooking(ctx, tx, event.BookingID, true); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCallback, err)
	}
	return s.settleIntent(ctx, tx, event.IntentRef, entity.IntentStatusFailed, time.Now().UTC())
}

func (s *paymentService) settleIntent(ctx context.Context, tx *repository.Repository, gatewayRef string, status entity.IntentStatus, at time.Time) error {
	if gatewayRef == "" {
		return nil
	}

	intent, err := tx.PaymentIntent.FindByGatewayRef(ctx, gatewayRef)
	if err != nil {
		return fmt.Errorf("find intent %s: %w", gatewayRef, err)
	}
	if intent == nil {
		s.log.Warn("Callback for unknown payment intent", zap.String("gateway_ref", gatewayRef))
		return nil
	}
	// an expired intent can still settle late
	if intent.Status != entity.IntentStatusPending && intent.Status != entity.IntentStatusExpired {
		return nil
	}

	intent.Status = status
	intent.UpdatedAt = at
	if err := tx.PaymentIntent.Update(ctx, intent); err != nil {
		return fmt.Errorf("update intent %s: %w", intent.ID, err)
	}
	return nil
}

func (s *paymentService) settlePayout(ctx context.Context, tx *repository.Repository, event *gateway.CallbackEvent) error {
	payout, err := tx.Payout.FindByID(ctx, event.PayoutID)
	if err != nil {
		return fmt.Errorf("find payout %s: %w", event.PayoutID, err)
	}
	if payout == nil {
		return fmt.Errorf("payout %s: %w", event.PayoutID, ErrInvalidCallback)
	}

	// withdrawals for this artist read reservations under the same lock
	if _, err := tx.PayoutAccount.Lock(ctx, payout.ArtistID); err != nil {
		return fmt.Errorf("lock payout account: %w", err)
	}
	payout, err = tx.Payout.FindByID(ctx, event.PayoutID)
	if err != nil {
		return fmt.Errorf("find payout %s: %w", event.PayoutID, err)
	}

	next := entity.PayoutStatusPaid
	if event.Type == entity.GatewayEventPayoutFailed {
		next = entity.PayoutStatusFailed
	}
	if payout.Status == next {
		return nil
	}
	if payout.Status != entity.PayoutStatusPending {
		return fmt.Errorf("payout %s is %s, got %s: %w", payout.ID, payout.Status, next, ErrInvalidCallback)
	}

	payout.Status = next
	payout.UpdatedAt = time.Now().UTC()
	if payout.GatewayRef == nil && event.IntentRef != "" {
		ref := event.IntentRef
		payout.GatewayRef = &ref
	}
	if next == entity.PayoutStatusFailed {
		reason := event.Reason
		if reason == "" {
			reason = "rejected by payout provider"
		}
		payout.FailureReason = &reason
	}

	if err := tx.Payout.Update(ctx, payout); err != nil {
		return fmt.Errorf("update payout %s: %w", payout.ID, err)
	}
	return nil
}

func (s *paymentService) completeOnboarding(ctx context.Context, tx *repository.Repository, event *gateway.CallbackEvent) error {
	now := time.Now().UTC()
	return tx.PayoutAccount.Upsert(ctx, &entity.PayoutAccount{
		ArtistID:   event.ArtistID,
		AccountRef: event.AccountRef,
		Onboarded:  true,
		CreatedAt:  now,
		UpdatedAt:  now,
	})
}

func (s *paymentService) ExpireStaleIntents(ctx context.Context, now time.Time) (int, error) {
	expired, err := s.repo.PaymentIntent.ExpireStale(ctx, now.Add(-s.config.Engine.IntentTTL))
	if err != nil {
		return 0, fmt.Errorf("expire stale intents: %w", err)
	}

	for _, intent := range expired {
		s.log.Info("Payment intent expired",
			zap.String("intent_id", intent.ID.String()),
			zap.String("booking_id", intent.BookingID.String()),
			zap.String("kind", string(intent.Kind)),
		)
	}
	return len(expired), nil
}

func checkCallback(event *gateway.CallbackEvent) error {
	if event == nil || event.ExternalRef == "" {
		return fmt.Errorf("missing external reference: %w", ErrInvalidCallback)
	}

	switch event.Type {
	case entity.GatewayEventDepositConfirmed, entity.GatewayEventRemainingConfirmed, entity.GatewayEventRefundIssued:
		if event.BookingID == uuid.Nil || event.Amount <= 0 {
			return fmt.Errorf("%s needs booking and positive amount: %w", event.Type, ErrInvalidCallback)
		}
	case entity.GatewayEventPaymentFailed:
		if event.BookingID == uuid.Nil {
			return fmt.Errorf("%s needs booking: %w", event.Type, ErrInvalidCallback)
		}
	case entity.GatewayEventPayoutConfirmed, entity.GatewayEventPayoutFailed:
		if event.PayoutID == uuid.Nil {
			return fmt.Errorf("%s needs payout: %w", event.Type, ErrInvalidCallback)
		}
	case entity.GatewayEventOnboardingCompleted:
		if event.ArtistID == uuid.Nil || event.AccountRef == "" {
			return fmt.Errorf("%s needs artist and account: %w", event.Type, ErrInvalidCallback)
		}
	default:
		return fmt.Errorf("unknown callback type %q: %w", event.Type, ErrInvalidCallback)
	}
	return nil
}

func sameCurrency(b *entity.Booking, event *gateway.CallbackEvent) error {
	if event.Currency != "" && !strings.EqualFold(event.Currency, b.Currency) {
		return fmt.Errorf("callback currency %s on %s booking %s: %w", event.Currency, b.Currency, b.ID, ErrInvalidCallback)
	}
	return nil
}
