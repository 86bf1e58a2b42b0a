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
	"gig-booking/internal/notifier"
	"gig-booking/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	sweepBatch             = 100
	completionRejectedNote = "completion rejected: payment status "
	requestCancelledReason = "request cancelled"
)

type BookingService interface {
	// Client endpoints
	PostRequest(ctx context.Context, actor entity.Actor, req *request.CreateRequestRequest) (*response.BookingResponse, error)

	GetBooking(ctx context.Context, actor entity.Actor, bookingID uuid.UUID) (*response.BookingResponse, error)
	ListMyBookings(ctx context.Context, actor entity.Actor, req *request.PaginatedRequest) (*response.PaginatedResponse[response.BookingResponse], error)
	CancelBooking(ctx context.Context, actor entity.Actor, bookingID uuid.UUID, req *request.CancelBookingRequest) (*response.BookingResponse, error)
	CompleteBooking(ctx context.Context, actor entity.Actor, bookingID uuid.UUID) (*response.BookingResponse, error)

	// Time-driven sweeps, run by the scheduler as the system actor
	StartDueBookings(ctx context.Context, now time.Time) (int, error)
	AutoCompleteBookings(ctx context.Context, now time.Time) (int, error)
}

type bookingService struct {
	*engine
	refunds RefundPolicy
	log     *zap.Logger
}

func NewBookingService(e *engine, refunds RefundPolicy, log *zap.Logger) BookingService {
	return &bookingService{
		engine:  e,
		refunds: refunds,
		log:     log.With(zap.String("service", "booking")),
	}
}

func (s *bookingService) PostRequest(ctx context.Context, actor entity.Actor, req *request.CreateRequestRequest) (*response.BookingResponse, error) {
	if actor.Role != entity.RoleClient {
		return nil, fmt.Errorf("post request: %w", ErrForbidden)
	}
	if err := validate(req); err != nil {
		s.log.Warn("Post request validation failed", zap.Error(err))
		return nil, err
	}

	now := time.Now().UTC()
	if !req.EventStart.After(now) {
		return nil, invalid("event_start", "Must be in the future")
	}
	// wallets and payouts are kept in the configured currency only
	currency := strings.ToUpper(s.config.Gateway.Currency)
	if req.Currency != "" && !strings.EqualFold(req.Currency, currency) {
		return nil, invalid("currency", "Must be "+currency)
	}

	booking := &entity.Booking{
		Base:        entity.NewBase(now),
		ClientID:    actor.UserID,
		Title:       req.Title,
		EventTypes:  req.EventTypes,
		Location:    req.Location,
		EventStart:  req.EventStart.UTC(),
		EventEnd:    req.EventEnd.UTC(),
		BudgetMin:   req.BudgetMin,
		BudgetMax:   req.BudgetMax,
		Currency:    currency,
		DepositMode: entity.DepositMode(req.DepositMode),
		Status:      entity.BookingStatusPending,
	}
	booking.SetAmountPaid(0)

	err := s.repo.Atomic(ctx, func(tx *repository.Repository) error {
		if err := tx.Booking.Create(ctx, booking); err != nil {
			return fmt.Errorf("create booking: %w", err)
		}
		return record(ctx, tx, auditRecord{
			BookingID:     booking.ID,
			Action:        entity.AuditCreated,
			Actor:         actor,
			New:           booking.Snapshot(),
			Status:        booking.Status,
			CorrelationID: uuid.New(),
			At:            now,
		})
	})
	if err != nil {
		s.log.Error("Failed to post request",
			zap.Error(err),
			zap.String("client_id", actor.UserID.String()),
		)
		return nil, err
	}

	s.log.Info("Request posted",
		zap.String("booking_id", booking.ID.String()),
		zap.String("client_id", actor.UserID.String()),
		zap.Time("event_start", booking.EventStart),
	)

	resp := response.BookingToResponse(booking)
	return &resp, nil
}

func (s *bookingService) GetBooking(ctx context.Context, actor entity.Actor, bookingID uuid.UUID) (*response.BookingResponse, error) {
	booking, err := s.loadBooking(ctx, s.repo, bookingID, false)
	if err != nil {
		return nil, err
	}
	if !canView(actor, booking) {
		return nil, fmt.Errorf("view booking %s: %w", bookingID, ErrForbidden)
	}

	resp := response.BookingToResponse(booking)
	return &resp, nil
}

func (s *bookingService) ListMyBookings(ctx context.Context, actor entity.Actor, req *request.PaginatedRequest) (*response.PaginatedResponse[response.BookingResponse], error) {
	limit := req.Limit()
	offset := req.Offset()

	var (
		bookings []*entity.Booking
		total    int64
		err      error
	)

	switch actor.Role {
	case entity.RoleClient:
		bookings, err = s.repo.Booking.FindByClientID(ctx, actor.UserID, limit, offset)
		if err == nil {
			total, err = s.repo.Booking.CountByClientID(ctx, actor.UserID)
		}
	case entity.RoleArtist:
		bookings, err = s.repo.Booking.FindByArtistID(ctx, actor.UserID, limit, offset)
		if err == nil {
			total, err = s.repo.Booking.CountByArtistID(ctx, actor.UserID)
		}
	default:
		return nil, fmt.Errorf("list bookings as %s: %w", actor.Role, ErrForbidden)
	}

	if err != nil {
		s.log.Error("Failed to list bookings",
			zap.Error(err),
			zap.String("user_id", actor.UserID.String()),
			zap.Int("page", req.Page),
			zap.Int("per_page", req.PerPage),
		)
		return nil, fmt.Errorf("list bookings: %w", err)
	}

	data := make([]response.BookingResponse, len(bookings))
	for i, b := range bookings {
		data[i] = response.BookingToResponse(b)
	}

	return response.NewPaginatedResponse(data, req.Page, limit, total), nil
}

func (s *bookingService) CancelBooking(ctx context.Context, actor entity.Actor, bookingID uuid.UUID, req *request.CancelBookingRequest) (*response.BookingResponse, error) {
	if err := validate(req); err != nil {
		return nil, err
	}

	var (
		booking *entity.Booking
		from    entity.BookingStatus
		payIns  []*entity.Transaction
	)
	correlationID := uuid.New()

	err := s.repo.Atomic(ctx, func(tx *repository.Repository) error {
		b, err := s.loadBooking(ctx, tx, bookingID, true)
		if err != nil {
			return err
		}
		booking = b

		cause, err := cancelCause(actor, booking, req.Cause)
		if err != nil {
			return err
		}
		if booking.Status.IsTerminal() {
			return &TransitionError{From: booking.Status, To: entity.BookingStatusCancelled}
		}

		inFlight, err := tx.PaymentIntent.FindPendingByBookingID(ctx, bookingID)
		if err != nil {
			return fmt.Errorf("find pending intents: %w", err)
		}
		if len(inFlight) > 0 {
			return fmt.Errorf("cancel booking %s: %w", bookingID, ErrSettlementInFlight)
		}

		now := time.Now().UTC()
		previous := booking.Snapshot()
		from = booking.Status

		if err := transition(booking, entity.BookingStatusCancelled); err != nil {
			return err
		}
		booking.RefundDue = s.refunds.RefundFor(RefundInput{
			AmountPaid:      booking.AmountPaid,
			DaysBeforeEvent: daysBefore(booking.EventStart, now),
			Cause:           cause,
		})
		reason := req.Reason
		booking.CancellationReason = &reason

		if err := s.saveBooking(ctx, tx, booking, now); err != nil {
			return err
		}

		if err := record(ctx, tx, auditRecord{
			BookingID:     booking.ID,
			Action:        entity.AuditCancelled,
			Actor:         actor,
			ArtistID:      booking.ArtistID,
			Previous:      previous,
			New:           booking.Snapshot(),
			Detail:        fmt.Sprintf("cause %s, refund %s", cause, utils.FormatAmount(booking.RefundDue, booking.Currency)),
			Status:        booking.Status,
			CorrelationID: correlationID,
			At:            now,
		}); err != nil {
			return err
		}

		if from == entity.BookingStatusPending {
			if err := s.cancelProposals(ctx, tx, actor, booking, correlationID, now); err != nil {
				return err
			}
		}

		if booking.RefundDue > 0 {
			txs, err := tx.Transaction.FindByBookingID(ctx, bookingID)
			if err != nil {
				return fmt.Errorf("find transactions: %w", err)
			}
			for _, t := range txs {
				if t.Type.IsPayIn() {
					payIns = append(payIns, t)
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("Booking cancelled",
		zap.String("booking_id", bookingID.String()),
		zap.String("correlation_id", correlationID.String()),
		zap.String("from", string(from)),
		zap.String("to", string(booking.Status)),
		zap.Int64("refund_due", booking.RefundDue),
	)

	if booking.RefundDue > 0 {
		refunded := booking.Clone()
		s.events.run(ctx, func(ctx context.Context) {
			s.requestRefunds(ctx, s.log, refunded, refunded.RefundDue, payIns)
		})
	}
	s.events.send(ctx, bookingEvent(notifier.BookingCancelled, booking, booking.RefundDue, req.Reason))

	resp := response.BookingToResponse(booking)
	return &resp, nil
}

// cancelProposals closes every pending proposal of a cancelled request.
func (s *bookingService) cancelProposals(ctx context.Context, tx *repository.Repository, actor entity.Actor, booking *entity.Booking, correlationID uuid.UUID, at time.Time) error {
	proposals, err := tx.Proposal.FindByBookingID(ctx, booking.ID)
	if err != nil {
		return fmt.Errorf("find proposals: %w", err)
	}

	reason := requestCancelledReason
	for _, p := range proposals {
		if !p.IsPending() {
			continue
		}

		before := p.Snapshot()
		p.Decide(entity.ProposalStatusRejected, &reason, at)
		if err := tx.Proposal.Decide(ctx, p); err != nil {
			return fmt.Errorf("reject proposal %s: %w", p.ID, err)
		}

		if err := record(ctx, tx, auditRecord{
			BookingID:     booking.ID,
			Action:        entity.AuditApplicationCancelled,
			Actor:         actor,
			ApplicationID: &p.ID,
			ArtistID:      &p.ArtistID,
			Previous:      before,
			New:           p.Snapshot(),
			Detail:        reason,
			Status:        booking.Status,
			CorrelationID: correlationID,
			At:            at,
		}); err != nil {
			return err
		}
	}
	return nil
}

func (s *bookingService) CompleteBooking(ctx context.Context, actor entity.Actor, bookingID uuid.UUID) (*response.BookingResponse, error) {
	var (
		booking    *entity.Booking
		incomplete bool
		fee        int64
	)
	correlationID := uuid.New()

	err := s.repo.Atomic(ctx, func(tx *repository.Repository) error {
		b, err := s.loadBooking(ctx, tx, bookingID, true)
		if err != nil {
			return err
		}
		booking = b

		if !actor.IsSystem() && !actor.IsAdmin() && !actor.Is(booking.ClientID) {
			return fmt.Errorf("complete booking %s: %w", bookingID, ErrForbidden)
		}
		if booking.Status != entity.BookingStatusInProgress {
			return &TransitionError{From: booking.Status, To: entity.BookingStatusCompleted}
		}

		now := time.Now().UTC()

		// the attempt is recorded and committed, the booking stays put
		if booking.PaymentStatus != entity.PaymentStatusFull {
			incomplete = true
			return record(ctx, tx, auditRecord{
				BookingID:     booking.ID,
				Action:        entity.AuditUpdated,
				Actor:         actor,
				ArtistID:      booking.ArtistID,
				New:           map[string]any{"requested_status": string(entity.BookingStatusCompleted)},
				Detail:        completionRejectedNote + string(booking.PaymentStatus),
				Status:        booking.Status,
				CorrelationID: correlationID,
				At:            now,
			})
		}

		previous := booking.Snapshot()
		if err := transition(booking, entity.BookingStatusCompleted); err != nil {
			return err
		}
		if err := s.saveBooking(ctx, tx, booking, now); err != nil {
			return err
		}

		fee = utils.PercentOf(booking.AmountPaid, s.feePct)
		if fee > 0 {
			err := tx.Transaction.Create(ctx, &entity.Transaction{
				BaseSimple:  entity.NewBaseSimple(now),
				BookingID:   booking.ID,
				SenderID:    *booking.ArtistID,
				ReceiverID:  uuid.Nil,
				Type:        entity.TransactionAdminFee,
				Amount:      fee,
				Currency:    booking.Currency,
				ExternalRef: "admin-fee:" + booking.ID.String(),
			})
			if err != nil {
				return fmt.Errorf("record platform fee: %w", err)
			}
		}

		return record(ctx, tx, auditRecord{
			BookingID:     booking.ID,
			Action:        entity.AuditCompleted,
			Actor:         actor,
			ArtistID:      booking.ArtistID,
			Previous:      previous,
			New:           booking.Snapshot(),
			Detail:        "platform fee " + utils.FormatAmount(fee, booking.Currency),
			Status:        booking.Status,
			CorrelationID: correlationID,
			At:            now,
		})
	})
	if err != nil {
		return nil, err
	}

	if incomplete {
		s.log.Warn("Completion rejected, payment incomplete",
			zap.String("booking_id", bookingID.String()),
			zap.String("payment_status", string(booking.PaymentStatus)),
			zap.Int64("remaining_amount", booking.RemainingAmount),
		)
		s.events.send(ctx, bookingEvent(notifier.PaymentDue, booking, booking.RemainingAmount,
			"The remaining payment is due before this booking can be completed."))
		return nil, fmt.Errorf("complete booking %s: payment status %s: %w", bookingID, booking.PaymentStatus, ErrPaymentIncomplete)
	}

	s.log.Info("Booking completed",
		zap.String("booking_id", bookingID.String()),
		zap.String("correlation_id", correlationID.String()),
		zap.String("from", string(entity.BookingStatusInProgress)),
		zap.String("to", string(booking.Status)),
		zap.Int64("platform_fee", fee),
	)

	s.events.send(ctx, bookingEvent(notifier.BookingCompleted, booking, booking.AmountPaid-fee, ""))

	resp := response.BookingToResponse(booking)
	return &resp, nil
}

func (s *bookingService) StartDueBookings(ctx context.Context, now time.Time) (int, error) {
	due, err := s.repo.Booking.FindDueToStart(ctx, now, sweepBatch)
	if err != nil {
		return 0, fmt.Errorf("find bookings due to start: %w", err)
	}

	started := 0
	for _, candidate := range due {
		ok, err := s.start(ctx, candidate.ID, now)
		if err != nil {
			s.log.Error("Failed to start booking",
				zap.Error(err),
				zap.String("booking_id", candidate.ID.String()),
			)
			continue
		}
		if ok {
			started++
		}
	}
	return started, nil
}

func (s *bookingService) start(ctx context.Context, bookingID uuid.UUID, now time.Time) (bool, error) {
	started := false
	err := s.repo.Atomic(ctx, func(tx *repository.Repository) error {
		booking, err := s.loadBooking(ctx, tx, bookingID, true)
		if err != nil {
			return err
		}
		// changed since the sweep query ran
		if booking.Status != entity.BookingStatusConfirmed || booking.EventStart.After(now) {
			return nil
		}

		at := time.Now().UTC()
		previous := booking.Snapshot()
		if err := transition(booking, entity.BookingStatusInProgress); err != nil {
			return err
		}
		if err := s.saveBooking(ctx, tx, booking, at); err != nil {
			return err
		}

		started = true
		return record(ctx, tx, auditRecord{
			BookingID:     booking.ID,
			Action:        entity.AuditStatusChanged,
			Actor:         entity.SystemActor,
			ArtistID:      booking.ArtistID,
			Previous:      previous,
			New:           booking.Snapshot(),
			Detail:        "event start reached",
			Status:        booking.Status,
			CorrelationID: uuid.New(),
			At:            at,
		})
	})
	if err != nil {
		return false, err
	}

	if started {
		s.log.Info("Booking started",
			zap.String("booking_id", bookingID.String()),
			zap.String("from", string(entity.BookingStatusConfirmed)),
			zap.String("to", string(entity.BookingStatusInProgress)),
		)
	}
	return started, nil
}

func (s *bookingService) AutoCompleteBookings(ctx context.Context, now time.Time) (int, error) {
	grace := s.config.Engine.AutoCompleteGrace
	due, err := s.repo.Booking.FindDueToComplete(ctx, now.Add(-grace), sweepBatch)
	if err != nil {
		return 0, fmt.Errorf("find bookings due to complete: %w", err)
	}

	completed := 0
	for _, candidate := range due {
		reminded, err := s.remindedRecently(ctx, candidate.ID, now, grace)
		if err != nil {
			s.log.Error("Failed to read audit history", zap.Error(err), zap.String("booking_id", candidate.ID.String()))
			continue
		}
		if reminded {
			continue
		}

		_, err = s.CompleteBooking(ctx, entity.SystemActor, candidate.ID)
		switch {
		case err == nil:
			completed++
		case errors.Is(err, ErrPaymentIncomplete), errors.Is(err, ErrInvalidTransition):
			// reminder sent or state moved on
		default:
			s.log.Error("Failed to auto-complete booking",
				zap.Error(err),
				zap.String("booking_id", candidate.ID.String()),
			)
		}
	}
	return completed, nil
}

// remindedRecently reports whether the sweep already rejected completion of
// this booking within the grace window.
func (s *bookingService) remindedRecently(ctx context.Context, bookingID uuid.UUID, now time.Time, grace time.Duration) (bool, error) {
	entries, err := s.repo.Audit.FindByBookingID(ctx, bookingID)
	if err != nil {
		return false, err
	}
	if len(entries) == 0 {
		return false, nil
	}

	last := entries[len(entries)-1]
	if last.Action != entity.AuditUpdated || last.ActorRole == nil || *last.ActorRole != string(entity.RoleSystem) {
		return false, nil
	}
	if last.Detail == nil || !strings.HasPrefix(*last.Detail, completionRejectedNote) {
		return false, nil
	}
	return now.Sub(last.CreatedAt) < grace, nil
}

func cancelCause(actor entity.Actor, booking *entity.Booking, requested string) (CancelCause, error) {
	switch {
	case actor.IsAdmin():
		if requested != "" {
			return CancelCause(requested), nil
		}
		return CausePlatform, nil
	case actor.Is(booking.ClientID):
		return CauseClient, nil
	case isAssignedArtist(actor, booking):
		return CauseArtist, nil
	}
	return "", fmt.Errorf("cancel booking %s: %w", booking.ID, ErrForbidden)
}
