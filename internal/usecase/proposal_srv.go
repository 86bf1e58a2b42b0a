package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gig-booking/internal/data/entity"
	"gig-booking/internal/data/repository"
	"gig-booking/internal/dto/request"
	"gig-booking/internal/dto/response"
	"gig-booking/internal/notifier"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const cascadeRejectReason = "another proposal was accepted"

type ProposalService interface {
	// Artist endpoints
	SubmitProposal(ctx context.Context, actor entity.Actor, bookingID uuid.UUID, req *request.SubmitProposalRequest) (*response.ProposalResponse, error)
	WithdrawProposal(ctx context.Context, actor entity.Actor, proposalID uuid.UUID) (*response.ProposalResponse, error)

	// Client endpoints
	AcceptProposal(ctx context.Context, actor entity.Actor, proposalID uuid.UUID) (*response.AcceptProposalResponse, error)
	RejectProposal(ctx context.Context, actor entity.Actor, proposalID uuid.UUID, req *request.DecideProposalRequest) (*response.ProposalResponse, error)

	ListProposals(ctx context.Context, actor entity.Actor, bookingID uuid.UUID) ([]response.ProposalResponse, error)
}

type proposalService struct {
	*engine
	log *zap.Logger
}

func NewProposalService(e *engine, log *zap.Logger) ProposalService {
	return &proposalService{
		engine: e,
		log:    log.With(zap.String("service", "proposal")),
	}
}

func (s *proposalService) SubmitProposal(ctx context.Context, actor entity.Actor, bookingID uuid.UUID, req *request.SubmitProposalRequest) (*response.ProposalResponse, error) {
	if actor.Role != entity.RoleArtist {
		return nil, fmt.Errorf("submit proposal: %w", ErrForbidden)
	}
	if err := validate(req); err != nil {
		s.log.Warn("Submit proposal validation failed", zap.Error(err))
		return nil, err
	}

	var proposal *entity.Proposal
	err := s.repo.Atomic(ctx, func(tx *repository.Repository) error {
		booking, err := s.loadBooking(ctx, tx, bookingID, true)
		if err != nil {
			return err
		}
		if booking.Status != entity.BookingStatusPending {
			return fmt.Errorf("request %s is %s: %w", bookingID, booking.Status, ErrRequestClosed)
		}

		existing, err := tx.Proposal.FindActiveByArtist(ctx, bookingID, actor.UserID)
		if err != nil {
			return fmt.Errorf("find active proposal: %w", err)
		}
		if existing != nil {
			return fmt.Errorf("proposal %s: %w", existing.ID, ErrDuplicateProposal)
		}

		now := time.Now().UTC()
		proposal = &entity.Proposal{
			Base:            entity.NewBase(now),
			BookingID:       bookingID,
			ArtistID:        actor.UserID,
			Price:           req.Price,
			DurationMinutes: req.DurationMinutes,
			Message:         req.Message,
			Status:          entity.ProposalStatusPending,
		}

		if err := tx.Proposal.Create(ctx, proposal); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return fmt.Errorf("create proposal: %w", ErrDuplicateProposal)
			}
			return fmt.Errorf("create proposal: %w", err)
		}

		return record(ctx, tx, auditRecord{
			BookingID:     bookingID,
			Action:        entity.AuditArtistApplied,
			Actor:         actor,
			ApplicationID: &proposal.ID,
			ArtistID:      &proposal.ArtistID,
			New:           proposal.Snapshot(),
			Status:        booking.Status,
			CorrelationID: uuid.New(),
			At:            now,
		})
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("Proposal submitted",
		zap.String("proposal_id", proposal.ID.String()),
		zap.String("booking_id", bookingID.String()),
		zap.String("artist_id", actor.UserID.String()),
		zap.Int64("price", proposal.Price),
	)

	resp := response.ProposalToResponse(proposal)
	return &resp, nil
}

func (s *proposalService) AcceptProposal(ctx context.Context, actor entity.Actor, proposalID uuid.UUID) (*response.AcceptProposalResponse, error) {
	proposal, err := s.findProposal(ctx, proposalID)
	if err != nil {
		return nil, err
	}

	correlationID := uuid.New()
	var (
		booking   *entity.Booking
		proposals []*entity.Proposal
		rejected  int
	)

	err = s.repo.Atomic(ctx, func(tx *repository.Repository) error {
		// the booking row lock serializes every decision on this request
		locked, err := s.loadBooking(ctx, tx, proposal.BookingID, true)
		if err != nil {
			return err
		}
		booking = locked
		if !actor.Is(booking.ClientID) {
			return fmt.Errorf("accept proposal %s: %w", proposalID, ErrForbidden)
		}

		current, err := tx.Proposal.FindByID(ctx, proposalID)
		if err != nil {
			return fmt.Errorf("find proposal %s: %w", proposalID, err)
		}
		if current == nil {
			return fmt.Errorf("proposal %s: %w", proposalID, ErrNotFound)
		}
		if !current.IsPending() || booking.ArtistID != nil {
			return fmt.Errorf("accept proposal %s: %w", proposalID, ErrAlreadyDecided)
		}

		now := time.Now().UTC()
		previous := booking.Snapshot()

		current.Decide(entity.ProposalStatusAccepted, nil, now)
		if err := s.decide(ctx, tx, current); err != nil {
			return err
		}

		booking.ArtistID = &current.ArtistID
		if err := transition(booking, entity.BookingStatusConfirmed); err != nil {
			return err
		}
		booking.SetTotalPrice(current.Price)
		if err := s.saveBooking(ctx, tx, booking, now); err != nil {
			return err
		}

		if err := record(ctx, tx, auditRecord{
			BookingID:     booking.ID,
			Action:        entity.AuditApplicationAccepted,
			Actor:         actor,
			ApplicationID: &current.ID,
			ArtistID:      &current.ArtistID,
			Previous:      previous,
			New:           booking.Snapshot(),
			Status:        booking.Status,
			CorrelationID: correlationID,
			At:            now,
		}); err != nil {
			return err
		}

		siblings, err := tx.Proposal.FindByBookingID(ctx, booking.ID)
		if err != nil {
			return fmt.Errorf("find sibling proposals: %w", err)
		}

		reason := cascadeRejectReason
		for _, sibling := range siblings {
			if sibling.ID == current.ID || !sibling.IsPending() {
				continue
			}

			before := sibling.Snapshot()
			sibling.Decide(entity.ProposalStatusRejected, &reason, now)
			if err := s.decide(ctx, tx, sibling); err != nil {
				return err
			}

			if err := record(ctx, tx, auditRecord{
				BookingID:     booking.ID,
				Action:        entity.AuditApplicationDeclined,
				Actor:         actor,
				ApplicationID: &sibling.ID,
				ArtistID:      &sibling.ArtistID,
				Previous:      before,
				New:           sibling.Snapshot(),
				Detail:        reason,
				Status:        booking.Status,
				CorrelationID: correlationID,
				At:            now,
			}); err != nil {
				return err
			}
			rejected++
		}

		proposals, err = tx.Proposal.FindByBookingID(ctx, booking.ID)
		if err != nil {
			return fmt.Errorf("find proposals: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrAlreadyDecided) {
			s.log.Warn("Proposal accept lost to a concurrent decision",
				zap.String("proposal_id", proposalID.String()),
				zap.String("booking_id", proposal.BookingID.String()),
			)
		}
		return nil, err
	}

	s.log.Info("Proposal accepted",
		zap.String("proposal_id", proposalID.String()),
		zap.String("booking_id", booking.ID.String()),
		zap.String("correlation_id", correlationID.String()),
		zap.String("from", string(entity.BookingStatusPending)),
		zap.String("to", string(booking.Status)),
		zap.Int("cascade_rejected", rejected),
	)

	s.events.send(ctx, bookingEvent(notifier.BookingConfirmed, booking, booking.TotalPrice, ""))

	return &response.AcceptProposalResponse{
		Booking:       response.BookingToResponse(booking),
		Proposals:     response.ProposalsToResponse(proposals),
		CorrelationID: correlationID.String(),
	}, nil
}

func (s *proposalService) RejectProposal(ctx context.Context, actor entity.Actor, proposalID uuid.UUID, req *request.DecideProposalRequest) (*response.ProposalResponse, error) {
	if err := validate(req); err != nil {
		return nil, err
	}

	var reason *string
	if req.Reason != "" {
		reason = &req.Reason
	}

	proposal, err := s.close(ctx, actor, proposalID, entity.ProposalStatusRejected, reason, func(b *entity.Booking, p *entity.Proposal) bool {
		return actor.Is(b.ClientID)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("Proposal rejected",
		zap.String("proposal_id", proposalID.String()),
		zap.String("booking_id", proposal.BookingID.String()),
	)

	resp := response.ProposalToResponse(proposal)
	return &resp, nil
}

func (s *proposalService) WithdrawProposal(ctx context.Context, actor entity.Actor, proposalID uuid.UUID) (*response.ProposalResponse, error) {
	proposal, err := s.close(ctx, actor, proposalID, entity.ProposalStatusWithdrawn, nil, func(_ *entity.Booking, p *entity.Proposal) bool {
		return actor.Role == entity.RoleArtist && actor.Is(p.ArtistID)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("Proposal withdrawn",
		zap.String("proposal_id", proposalID.String()),
		zap.String("booking_id", proposal.BookingID.String()),
	)

	resp := response.ProposalToResponse(proposal)
	return &resp, nil
}

func (s *proposalService) ListProposals(ctx context.Context, actor entity.Actor, bookingID uuid.UUID) ([]response.ProposalResponse, error) {
	booking, err := s.loadBooking(ctx, s.repo, bookingID, false)
	if err != nil {
		return nil, err
	}

	proposals, err := s.repo.Proposal.FindByBookingID(ctx, bookingID)
	if err != nil {
		s.log.Error("Failed to list proposals",
			zap.Error(err),
			zap.String("booking_id", bookingID.String()),
		)
		return nil, fmt.Errorf("list proposals: %w", err)
	}

	switch {
	case actor.IsAdmin() || actor.Is(booking.ClientID):
		return response.ProposalsToResponse(proposals), nil
	case actor.Role == entity.RoleArtist:
		// artists only see their own bids
		own := make([]*entity.Proposal, 0, 1)
		for _, p := range proposals {
			if actor.Is(p.ArtistID) {
				own = append(own, p)
			}
		}
		return response.ProposalsToResponse(own), nil
	}

	return nil, fmt.Errorf("list proposals of %s: %w", bookingID, ErrForbidden)
}

func (s *proposalService) findProposal(ctx context.Context, id uuid.UUID) (*entity.Proposal, error) {
	proposal, err := s.repo.Proposal.FindByID(ctx, id)
	if err != nil {
		s.log.Error("Failed to get proposal", zap.Error(err), zap.String("proposal_id", id.String()))
		return nil, fmt.Errorf("find proposal %s: %w", id, err)
	}
	if proposal == nil {
		return nil, fmt.Errorf("proposal %s: %w", id, ErrNotFound)
	}
	return proposal, nil
}

// decide persists a proposal decision. Losing the pending check to a
// concurrent writer means someone else decided first.
func (s *proposalService) decide(ctx context.Context, tx *repository.Repository, p *entity.Proposal) error {
	if err := tx.Proposal.Decide(ctx, p); err != nil {
		if errors.Is(err, repository.ErrStale) || errors.Is(err, repository.ErrConflict) {
			return fmt.Errorf("decide proposal %s: %w", p.ID, ErrAlreadyDecided)
		}
		return fmt.Errorf("decide proposal %s: %w", p.ID, err)
	}
	return nil
}

// close moves a single pending proposal to a final status without touching
// the booking.
func (s *proposalService) close(
	ctx context.Context,
	actor entity.Actor,
	proposalID uuid.UUID,
	status entity.ProposalStatus,
	reason *string,
	allowed func(*entity.Booking, *entity.Proposal) bool,
) (*entity.Proposal, error) {
	proposal, err := s.findProposal(ctx, proposalID)
	if err != nil {
		return nil, err
	}

	action := entity.AuditApplicationDeclined
	if status == entity.ProposalStatusWithdrawn {
		action = entity.AuditApplicationWithdrawn
	}

	var current *entity.Proposal
	err = s.repo.Atomic(ctx, func(tx *repository.Repository) error {
		booking, err := s.loadBooking(ctx, tx, proposal.BookingID, true)
		if err != nil {
			return err
		}

		current, err = tx.Proposal.FindByID(ctx, proposalID)
		if err != nil {
			return fmt.Errorf("find proposal %s: %w", proposalID, err)
		}
		if current == nil {
			return fmt.Errorf("proposal %s: %w", proposalID, ErrNotFound)
		}
		if !allowed(booking, current) {
			return fmt.Errorf("%s proposal %s: %w", status, proposalID, ErrForbidden)
		}
		if !current.IsPending() {
			return fmt.Errorf("%s proposal %s: %w", status, proposalID, ErrAlreadyDecided)
		}

		now := time.Now().UTC()
		before := current.Snapshot()
		current.Decide(status, reason, now)
		if err := s.decide(ctx, tx, current); err != nil {
			return err
		}

		detail := ""
		if reason != nil {
			detail = *reason
		}
		return record(ctx, tx, auditRecord{
			BookingID:     booking.ID,
			Action:        action,
			Actor:         actor,
			ApplicationID: &current.ID,
			ArtistID:      &current.ArtistID,
			Previous:      before,
			New:           current.Snapshot(),
			Detail:        detail,
			Status:        booking.Status,
			CorrelationID: uuid.New(),
			At:            now,
		})
	})
	if err != nil {
		return nil, err
	}

	return current, nil
}
