package usecase

import (
	"context"
	"fmt"

	"gig-booking/internal/data/entity"
	"gig-booking/internal/dto/response"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AuditService is the read side of the audit log. Writes only happen inside
// the lifecycle operations that cause them.
type AuditService interface {
	GetAuditHistory(ctx context.Context, actor entity.Actor, bookingID uuid.UUID) ([]response.AuditLogResponse, error)
}

type auditService struct {
	*engine
	log *zap.Logger
}

func NewAuditService(e *engine, log *zap.Logger) AuditService {
	return &auditService{
		engine: e,
		log:    log.With(zap.String("service", "audit")),
	}
}

func (s *auditService) GetAuditHistory(ctx context.Context, actor entity.Actor, bookingID uuid.UUID) ([]response.AuditLogResponse, error) {
	booking, err := s.loadBooking(ctx, s.repo, bookingID, false)
	if err != nil {
		return nil, err
	}

	if !actor.IsAdmin() && !actor.Is(booking.ClientID) && !isAssignedArtist(actor, booking) {
		return nil, fmt.Errorf("audit history of booking %s: %w", bookingID, ErrForbidden)
	}

	entries, err := s.repo.Audit.FindByBookingID(ctx, bookingID)
	if err != nil {
		s.log.Error("Failed to get audit history",
			zap.Error(err),
			zap.String("booking_id", bookingID.String()),
		)
		return nil, fmt.Errorf("get audit history: %w", err)
	}

	out := make([]response.AuditLogResponse, len(entries))
	for i, e := range entries {
		out[i] = response.AuditToResponse(e)
	}
	return out, nil
}
