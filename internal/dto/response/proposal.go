package response

import (
	"time"

	"gig-booking/internal/data/entity"
)

type ProposalResponse struct {
	ID              string                `json:"id"`
	BookingID       string                `json:"booking_id"`
	ArtistID        string                `json:"artist_id"`
	Price           int64                 `json:"price"`
	DurationMinutes int                   `json:"duration_minutes"`
	Message         string                `json:"message,omitempty"`
	Status          entity.ProposalStatus `json:"status"`
	DecisionReason  *string               `json:"decision_reason,omitempty"`
	DecidedAt       *time.Time            `json:"decided_at,omitempty"`
	CreatedAt       time.Time             `json:"created_at"`
}

func ProposalToResponse(p *entity.Proposal) ProposalResponse {
	return ProposalResponse{
		ID:              p.ID.String(),
		BookingID:       p.BookingID.String(),
		ArtistID:        p.ArtistID.String(),
		Price:           p.Price,
		DurationMinutes: p.DurationMinutes,
		Message:         p.Message,
		Status:          p.Status,
		DecisionReason:  p.DecisionReason,
		DecidedAt:       p.DecidedAt,
		CreatedAt:       p.CreatedAt,
	}
}

func ProposalsToResponse(proposals []*entity.Proposal) []ProposalResponse {
	out := make([]ProposalResponse, len(proposals))
	for i, p := range proposals {
		out[i] = ProposalToResponse(p)
	}
	return out
}
