// Package gateway is the boundary to the external payment provider. The
// engine hands it payment intents, refunds and payouts, and receives
// settlement callbacks back through ParseWebhook.
package gateway

import (
	"context"
	"errors"
	"time"

	"gig-booking/internal/data/entity"

	"github.com/google/uuid"
)

var (
	// ErrTimeout means the provider did not answer in time. The outcome is
	// unknown and must be settled by a later callback or expiry.
	ErrTimeout          = errors.New("payment gateway timed out")
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrMalformedPayload = errors.New("malformed webhook payload")
	ErrUnsupportedEvent = errors.New("unsupported webhook event")
)

type PaymentRequest struct {
	IntentID  uuid.UUID
	BookingID uuid.UUID
	Kind      entity.IntentKind
	Amount    int64
	Currency  string
}

type PaymentOrder struct {
	GatewayRef string
}

type RefundRequest struct {
	BookingID  uuid.UUID
	PaymentRef string
	Amount     int64
}

type PayoutRequest struct {
	PayoutID   uuid.UUID
	ArtistID   uuid.UUID
	AccountRef string
	Amount     int64
	Currency   string
}

// CallbackEvent is a verified, provider-neutral settlement notification.
type CallbackEvent struct {
	ExternalRef string
	Type        entity.GatewayEventType
	BookingID   uuid.UUID
	IntentRef   string // provider order the payment belongs to, if any
	PaymentRef  string // provider payment a refund returns, if any
	PayoutID    uuid.UUID
	ArtistID    uuid.UUID
	AccountRef  string
	Amount      int64
	Currency    string
	Reason      string
}

type Gateway interface {
	CreatePaymentIntent(ctx context.Context, req PaymentRequest) (*PaymentOrder, error)
	RequestRefund(ctx context.Context, req RefundRequest) (string, error)
	CreatePayout(ctx context.Context, req PayoutRequest) (string, error)
	OnboardingURL(artistID uuid.UUID) string
}

type WebhookParser interface {
	ParseWebhook(body []byte, signature string) (*CallbackEvent, error)
}

// withTimeout runs a blocking provider call and gives up after timeout.
// The call itself keeps running in the background; its late result is
// dropped and the outcome is reconciled through callbacks.
func withTimeout[T any](ctx context.Context, timeout time.Duration, call func() (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		value T
		err   error
	}
	done := make(chan result, 1)

	go func() {
		v, err := call()
		done <- result{value: v, err: err}
	}()

	select {
	case r := <-done:
		return r.value, r.err
	case <-ctx.Done():
		var zero T
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return zero, ErrTimeout
		}
		return zero, ctx.Err()
	}
}
