package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"gig-booking/internal/data/entity"
	"gig-booking/internal/data/repository"
	"gig-booking/internal/gateway"
	"gig-booking/internal/notifier"
	"gig-booking/pkg/cache"
	"gig-booking/pkg/utils"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Service struct {
	Booking  BookingService
	Proposal ProposalService
	Payment  PaymentService
	Wallet   WalletService
	Audit    AuditService

	events *dispatcher
}

// Deps are the collaborators outside the database.
type Deps struct {
	Gateway  gateway.Gateway
	Notifier notifier.Notifier
	Guard    cache.Guard
	Refunds  RefundPolicy
}

func NewService(repo *repository.Repository, deps Deps, config *utils.Config, log *zap.Logger) *Service {
	if deps.Notifier == nil {
		deps.Notifier = notifier.Noop{}
	}
	if deps.Guard == nil {
		deps.Guard = cache.NewLocalGuard()
	}
	if deps.Refunds == nil {
		deps.Refunds = TieredRefundPolicy{}
	}

	e := &engine{
		repo:    repo,
		gateway: deps.Gateway,
		events:  &dispatcher{notifier: deps.Notifier, log: log.With(zap.String("component", "notifications"))},
		config:  config,
		feePct:  decimal.NewFromFloat(config.Engine.PlatformFeePercent),
	}

	return &Service{
		Booking:  NewBookingService(e, deps.Refunds, log),
		Proposal: NewProposalService(e, log),
		Payment:  NewPaymentService(e, log),
		Wallet:   NewWalletService(e, deps.Guard, log),
		Audit:    NewAuditService(e, log),
		events:   e.events,
	}
}

// Drain blocks until every notification fired so far has been handed off.
func (s *Service) Drain() {
	s.events.wg.Wait()
}

// engine holds what every lifecycle service shares.
type engine struct {
	repo    *repository.Repository
	gateway gateway.Gateway
	events  *dispatcher
	config  *utils.Config
	feePct  decimal.Decimal
}

func (e *engine) loadBooking(ctx context.Context, repo *repository.Repository, id uuid.UUID, lock bool) (*entity.Booking, error) {
	var (
		booking *entity.Booking
		err     error
	)
	if lock {
		booking, err = repo.Booking.FindByIDForUpdate(ctx, id)
	} else {
		booking, err = repo.Booking.FindByID(ctx, id)
	}
	if err != nil {
		return nil, fmt.Errorf("find booking %s: %w", id, err)
	}
	if booking == nil {
		return nil, fmt.Errorf("booking %s: %w", id, ErrNotFound)
	}
	return booking, nil
}

func (e *engine) saveBooking(ctx context.Context, repo *repository.Repository, booking *entity.Booking, at time.Time) error {
	booking.UpdatedAt = at
	if err := repo.Booking.Update(ctx, booking); err != nil {
		if errors.Is(err, repository.ErrStale) {
			return fmt.Errorf("update booking %s: %w", booking.ID, ErrAlreadyDecided)
		}
		return fmt.Errorf("update booking %s: %w", booking.ID, err)
	}
	return nil
}

// requestRefunds asks the gateway to return amount, newest payment
// first. The ledger only changes when the refund-issued callback arrives.
func (e *engine) requestRefunds(ctx context.Context, log *zap.Logger, booking *entity.Booking, amount int64, payIns []*entity.Transaction) {
	remaining := amount
	for i := len(payIns) - 1; i >= 0 && remaining > 0; i-- {
		t := payIns[i]
		part := min(remaining, t.Amount)

		ref, err := e.gateway.RequestRefund(ctx, gateway.RefundRequest{
			BookingID:  booking.ID,
			PaymentRef: t.ExternalRef,
			Amount:     part,
		})
		if err != nil {
			log.Error("Refund request failed",
				zap.Error(err),
				zap.String("booking_id", booking.ID.String()),
				zap.String("payment_ref", t.ExternalRef),
				zap.Int64("amount", part),
				zap.Bool("timeout", errors.Is(err, gateway.ErrTimeout)),
			)
			continue
		}

		log.Info("Refund requested",
			zap.String("booking_id", booking.ID.String()),
			zap.String("payment_ref", t.ExternalRef),
			zap.String("refund_ref", ref),
			zap.Int64("amount", part),
		)
		remaining -= part
	}
}

// canView reports whether actor may read the booking. Artists can read
// open requests so they can apply to them.
func canView(actor entity.Actor, b *entity.Booking) bool {
	switch {
	case actor.IsAdmin() || actor.IsSystem():
		return true
	case actor.Is(b.ClientID):
		return true
	case actor.Role == entity.RoleArtist && b.ArtistID != nil:
		return actor.Is(*b.ArtistID)
	case actor.Role == entity.RoleArtist:
		return b.Status == entity.BookingStatusPending
	}
	return false
}

func isAssignedArtist(actor entity.Actor, b *entity.Booking) bool {
	return b.ArtistID != nil && actor.Is(*b.ArtistID)
}

// ==================== AUDIT ====================

type auditRecord struct {
	BookingID     uuid.UUID
	Action        entity.AuditAction
	Actor         entity.Actor
	ApplicationID *uuid.UUID
	ArtistID      *uuid.UUID
	Previous      map[string]any
	New           map[string]any
	Detail        string
	Status        entity.BookingStatus
	CorrelationID uuid.UUID
	At            time.Time
}

// record appends an audit entry through repo, which must be the repository
// of the enclosing unit of work. A failed write fails the whole unit.
func record(ctx context.Context, repo *repository.Repository, rec auditRecord) error {
	entry := &entity.AuditLogEntry{
		ID:             uuid.New(),
		BookingID:      rec.BookingID,
		Action:         rec.Action,
		ApplicationID:  rec.ApplicationID,
		ArtistID:       rec.ArtistID,
		PreviousValues: rec.Previous,
		NewValues:      rec.New,
		StatusAtTime:   rec.Status,
		CorrelationID:  rec.CorrelationID,
		CreatedAt:      rec.At,
	}

	if rec.Actor.UserID != uuid.Nil {
		id := rec.Actor.UserID
		entry.ActorUserID = &id
	}
	if rec.Actor.Role != "" {
		role := string(rec.Actor.Role)
		entry.ActorRole = &role
	}
	if rec.Actor.Name != "" {
		name := rec.Actor.Name
		entry.ActorName = &name
	}
	if rec.Detail != "" {
		detail := rec.Detail
		entry.Detail = &detail
	}

	if err := repo.Audit.Create(ctx, entry); err != nil {
		return fmt.Errorf("%w: %s on booking %s: %v", ErrAuditWriteFailed, rec.Action, rec.BookingID, err)
	}
	return nil
}

// ==================== NOTIFICATIONS ====================

type dispatcher struct {
	notifier notifier.Notifier
	log      *zap.Logger
	wg       sync.WaitGroup
}

// run executes post-commit work in the background, detached from the
// request's cancellation.
func (d *dispatcher) run(ctx context.Context, fn func(ctx context.Context)) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Minute)
		defer cancel()

		fn(ctx)
	}()
}

// send delivers event after commit. A delivery failure is logged and
// nothing else.
func (d *dispatcher) send(ctx context.Context, event notifier.Event) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	d.run(ctx, func(ctx context.Context) {
		if err := d.notifier.Notify(ctx, event); err != nil {
			d.log.Warn("Failed to deliver notification",
				zap.Error(err),
				zap.String("event", string(event.Type)),
				zap.String("booking_id", event.BookingID.String()),
			)
		}
	})
}

func bookingEvent(t notifier.EventType, b *entity.Booking, amount int64, detail string) notifier.Event {
	return notifier.Event{
		Type:      t,
		BookingID: b.ID,
		ClientID:  b.ClientID,
		ArtistID:  b.ArtistID,
		Title:     b.Title,
		Amount:    amount,
		Currency:  b.Currency,
		Detail:    detail,
	}
}
