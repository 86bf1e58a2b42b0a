package response

import (
	"time"

	"gig-booking/internal/data/entity"
)

type PaymentIntentResponse struct {
	ID         string              `json:"id"`
	BookingID  string              `json:"booking_id"`
	Kind       entity.IntentKind   `json:"kind"`
	Amount     int64               `json:"amount"`
	Currency   string              `json:"currency"`
	Status     entity.IntentStatus `json:"status"`
	GatewayRef *string             `json:"gateway_ref,omitempty"`
	CreatedAt  time.Time           `json:"created_at"`
}

type WalletResponse struct {
	ArtistID     string `json:"artist_id"`
	Currency     string `json:"currency"`
	Gross        int64  `json:"gross"`
	Released     int64  `json:"released"`
	Fees         int64  `json:"fees"`
	Withdrawn    int64  `json:"withdrawn"`
	Pending      int64  `json:"pending"`
	Withdrawable int64  `json:"withdrawable"`

	PayoutsEnabled bool   `json:"payouts_enabled"`
	OnboardingURL  string `json:"onboarding_url,omitempty"`
}

type PayoutResponse struct {
	ID            string              `json:"id"`
	ArtistID      string              `json:"artist_id"`
	Amount        int64               `json:"amount"`
	Currency      string              `json:"currency"`
	Status        entity.PayoutStatus `json:"status"`
	RequestKey    string              `json:"request_key"`
	GatewayRef    *string             `json:"gateway_ref,omitempty"`
	FailureReason *string             `json:"failure_reason,omitempty"`
	CreatedAt     time.Time           `json:"created_at"`
}

func IntentToResponse(i *entity.PaymentIntent) PaymentIntentResponse {
	return PaymentIntentResponse{
		ID:         i.ID.String(),
		BookingID:  i.BookingID.String(),
		Kind:       i.Kind,
		Amount:     i.Amount,
		Currency:   i.Currency,
		Status:     i.Status,
		GatewayRef: i.GatewayRef,
		CreatedAt:  i.CreatedAt,
	}
}

func WalletToResponse(w *entity.Wallet) WalletResponse {
	return WalletResponse{
		ArtistID:       w.ArtistID.String(),
		Currency:       w.Currency,
		Gross:          w.Gross,
		Released:       w.Released,
		Fees:           w.Fees,
		Withdrawn:      w.Withdrawn,
		Pending:        w.Pending,
		Withdrawable:   w.Withdrawable,
		PayoutsEnabled: w.PayoutsEnabled,
		OnboardingURL:  w.OnboardingURL,
	}
}

func PayoutToResponse(p *entity.Payout) PayoutResponse {
	return PayoutResponse{
		ID:            p.ID.String(),
		ArtistID:      p.ArtistID.String(),
		Amount:        p.Amount,
		Currency:      p.Currency,
		Status:        p.Status,
		RequestKey:    p.RequestKey,
		GatewayRef:    p.GatewayRef,
		FailureReason: p.FailureReason,
		CreatedAt:     p.CreatedAt,
	}
}
