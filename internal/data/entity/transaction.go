package entity

import (
	"github.com/google/uuid"
)

type TransactionType string

const (
	TransactionHalfDeposit TransactionType = "half-deposit"
	TransactionFullDeposit TransactionType = "full-deposit"
	TransactionRemaining   TransactionType = "remaining"
	TransactionRefund      TransactionType = "refund"
	TransactionAdminFee    TransactionType = "admin-fee"
)

// IsPayIn reports whether the transaction adds to a booking's paid amount.
func (t TransactionType) IsPayIn() bool {
	return t == TransactionHalfDeposit || t == TransactionFullDeposit || t == TransactionRemaining
}

// Transaction is an immutable ledger entry. ExternalRef is unique across the ledger.
type Transaction struct {
	BaseSimple
	BookingID   uuid.UUID       `db:"booking_id"`
	SenderID    uuid.UUID       `db:"sender_id"`
	ReceiverID  uuid.UUID       `db:"receiver_id"`
	Type        TransactionType `db:"type"`
	Amount      int64           `db:"amount"`
	Currency    string          `db:"currency"`
	ExternalRef string          `db:"external_ref"`
}

// NetPaid folds a booking's ledger into the amount the client has paid in.
func NetPaid(txs []*Transaction) int64 {
	var paid int64
	for _, tx := range txs {
		switch {
		case tx.Type.IsPayIn():
			paid += tx.Amount
		case tx.Type == TransactionRefund:
			paid -= tx.Amount
		}
	}
	return paid
}

type IntentKind string

const (
	IntentKindDeposit   IntentKind = "deposit"
	IntentKindRemaining IntentKind = "remaining"
)

type IntentStatus string

const (
	IntentStatusPending IntentStatus = "pending"
	IntentStatusSettled IntentStatus = "settled"
	IntentStatusFailed  IntentStatus = "failed"
	IntentStatusExpired IntentStatus = "expired"
)

// PaymentIntent tracks a payment handed to the gateway. A pending intent is
// an in-flight settlement.
type PaymentIntent struct {
	Base
	BookingID  uuid.UUID    `db:"booking_id"`
	Kind       IntentKind   `db:"kind"`
	Amount     int64        `db:"amount"`
	Currency   string       `db:"currency"`
	Status     IntentStatus `db:"status"`
	GatewayRef *string      `db:"gateway_ref"`
}

func (i *PaymentIntent) Clone() *PaymentIntent {
	c := *i
	if i.GatewayRef != nil {
		r := *i.GatewayRef
		c.GatewayRef = &r
	}
	return &c
}

type GatewayEventType string

const (
	GatewayEventDepositConfirmed    GatewayEventType = "deposit-confirmed"
	GatewayEventRemainingConfirmed  GatewayEventType = "remaining-confirmed"
	GatewayEventRefundIssued        GatewayEventType = "refund-issued"
	GatewayEventPaymentFailed       GatewayEventType = "payment-failed"
	GatewayEventPayoutConfirmed     GatewayEventType = "payout-confirmed"
	GatewayEventPayoutFailed        GatewayEventType = "payout-failed"
	GatewayEventOnboardingCompleted GatewayEventType = "onboarding-completed"
)

// GatewayEvent marks an external reference as processed.
type GatewayEvent struct {
	ExternalRef string           `db:"external_ref"`
	EventType   GatewayEventType `db:"event_type"`
}
