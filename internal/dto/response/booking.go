package response

import (
	"time"

	"gig-booking/internal/data/entity"
)

type BookingResponse struct {
	ID                 string               `json:"id"`
	ClientID           string               `json:"client_id"`
	ArtistID           *string              `json:"artist_id"`
	Title              string               `json:"title"`
	EventTypes         []string             `json:"event_types"`
	Location           string               `json:"location"`
	EventStart         time.Time            `json:"event_start"`
	EventEnd           time.Time            `json:"event_end"`
	BudgetMin          int64                `json:"budget_min"`
	BudgetMax          int64                `json:"budget_max"`
	Currency           string               `json:"currency"`
	DepositMode        entity.DepositMode   `json:"deposit_mode"`
	TotalPrice         int64                `json:"total_price"`
	AmountPaid         int64                `json:"amount_paid"`
	RemainingAmount    int64                `json:"remaining_amount"`
	RefundDue          int64                `json:"refund_due"`
	PaymentStatus      entity.PaymentStatus `json:"payment_status"`
	Status             entity.BookingStatus `json:"status"`
	CancellationReason *string              `json:"cancellation_reason,omitempty"`
	CreatedAt          time.Time            `json:"created_at"`
	UpdatedAt          time.Time            `json:"updated_at"`
}

// AcceptProposalResponse is the state after an accept, so the caller does not
// need a second read to see the cascade.
type AcceptProposalResponse struct {
	Booking       BookingResponse    `json:"booking"`
	Proposals     []ProposalResponse `json:"proposals"`
	CorrelationID string             `json:"correlation_id"`
}

// Helper converters
func BookingToResponse(b *entity.Booking) BookingResponse {
	resp := BookingResponse{
		ID:                 b.ID.String(),
		ClientID:           b.ClientID.String(),
		Title:              b.Title,
		EventTypes:         b.EventTypes,
		Location:           b.Location,
		EventStart:         b.EventStart,
		EventEnd:           b.EventEnd,
		BudgetMin:          b.BudgetMin,
		BudgetMax:          b.BudgetMax,
		Currency:           b.Currency,
		DepositMode:        b.DepositMode,
		TotalPrice:         b.TotalPrice,
		AmountPaid:         b.AmountPaid,
		RemainingAmount:    b.RemainingAmount,
		RefundDue:          b.RefundDue,
		PaymentStatus:      b.PaymentStatus,
		Status:             b.Status,
		CancellationReason: b.CancellationReason,
		CreatedAt:          b.CreatedAt,
		UpdatedAt:          b.UpdatedAt,
	}
	if b.ArtistID != nil {
		id := b.ArtistID.String()
		resp.ArtistID = &id
	}
	return resp
}
