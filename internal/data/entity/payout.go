package entity

import (
	"time"

	"github.com/google/uuid"
)

type PayoutStatus string

const (
	PayoutStatusPending PayoutStatus = "pending"
	PayoutStatusPaid    PayoutStatus = "paid"
	PayoutStatusFailed  PayoutStatus = "failed"
)

// Reserves reports whether the payout still holds wallet funds.
func (s PayoutStatus) Reserves() bool {
	return s == PayoutStatusPending || s == PayoutStatusPaid
}

type Payout struct {
	Base
	ArtistID      uuid.UUID    `db:"artist_id"`
	Amount        int64        `db:"amount"`
	Currency      string       `db:"currency"`
	Status        PayoutStatus `db:"status"`
	RequestKey    string       `db:"request_key"`
	GatewayRef    *string      `db:"gateway_ref"`
	FailureReason *string      `db:"failure_reason"`
}

func (p *Payout) Clone() *Payout {
	c := *p
	if p.GatewayRef != nil {
		r := *p.GatewayRef
		c.GatewayRef = &r
	}
	if p.FailureReason != nil {
		r := *p.FailureReason
		c.FailureReason = &r
	}
	return &c
}

// PayoutAccount is the artist's onboarding state with the payout provider.
type PayoutAccount struct {
	ArtistID   uuid.UUID `db:"artist_id"`
	AccountRef string    `db:"account_ref"`
	Onboarded  bool      `db:"onboarded"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

// Ready reports whether payouts can be sent to the account. A nil account
// has never started onboarding.
func (a *PayoutAccount) Ready() bool {
	return a != nil && a.Onboarded && a.AccountRef != ""
}

// Wallet is derived from the ledger and payouts on every read.
type Wallet struct {
	ArtistID     uuid.UUID
	Currency     string
	Gross        int64
	Released     int64
	Fees         int64
	Withdrawn    int64
	Pending      int64
	Withdrawable int64

	PayoutsEnabled bool
	OnboardingURL  string
}
