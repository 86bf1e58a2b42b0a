package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"gig-booking/internal/data/entity"
	"gig-booking/pkg/utils"

	"github.com/google/uuid"
	"github.com/razorpay/razorpay-go"
	rzputils "github.com/razorpay/razorpay-go/utils"
	"go.uber.org/zap"
)

// The SDK resources the adapter uses, narrowed so tests can replace them.
type orderCreator interface {
	Create(data map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
}

type paymentRefunder interface {
	Refund(paymentID string, amount int, data map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
}

type transferCreator interface {
	Create(data map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
}

type Razorpay struct {
	orders        orderCreator
	payments      paymentRefunder
	transfers     transferCreator
	webhookSecret string
	onboardingURL string
	timeout       time.Duration
	log           *zap.Logger
}

func NewRazorpay(config utils.GatewayConfig, log *zap.Logger) *Razorpay {
	client := razorpay.NewClient(config.KeyID, config.KeySecret)

	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Razorpay{
		orders:        client.Order,
		payments:      client.Payment,
		transfers:     client.Transfer,
		webhookSecret: config.WebhookSecret,
		onboardingURL: config.OnboardingURL,
		timeout:       timeout,
		log:           log.With(zap.String("gateway", "razorpay")),
	}
}

func (g *Razorpay) CreatePaymentIntent(ctx context.Context, req PaymentRequest) (*PaymentOrder, error) {
	data := map[string]interface{}{
		"amount":   req.Amount,
		"currency": req.Currency,
		"receipt":  req.IntentID.String(),
		"notes": map[string]interface{}{
			"booking_id": req.BookingID.String(),
			"intent_id":  req.IntentID.String(),
			"kind":       string(req.Kind),
		},
	}

	body, err := withTimeout(ctx, g.timeout, func() (map[string]interface{}, error) {
		return g.orders.Create(data, nil)
	})
	if err != nil {
		g.log.Error("Failed to create order",
			zap.Error(err),
			zap.String("booking_id", req.BookingID.String()),
			zap.String("intent_id", req.IntentID.String()),
		)
		return nil, fmt.Errorf("create order for intent %s: %w", req.IntentID.String(), err)
	}

	id, _ := body["id"].(string)
	if id == "" {
		return nil, fmt.Errorf("create order for intent %s: response has no id", req.IntentID.String())
	}

	return &PaymentOrder{GatewayRef: id}, nil
}

func (g *Razorpay) RequestRefund(ctx context.Context, req RefundRequest) (string, error) {
	data := map[string]interface{}{
		"notes": map[string]interface{}{
			"booking_id": req.BookingID.String(),
		},
	}

	body, err := withTimeout(ctx, g.timeout, func() (map[string]interface{}, error) {
		return g.payments.Refund(req.PaymentRef, int(req.Amount), data, nil)
	})
	if err != nil {
		g.log.Error("Failed to request refund",
			zap.Error(err),
			zap.String("booking_id", req.BookingID.String()),
			zap.String("payment_ref", req.PaymentRef),
		)
		return "", fmt.Errorf("refund payment %s: %w", req.PaymentRef, err)
	}

	id, _ := body["id"].(string)
	return id, nil
}

func (g *Razorpay) CreatePayout(ctx context.Context, req PayoutRequest) (string, error) {
	data := map[string]interface{}{
		"account":  req.AccountRef,
		"amount":   req.Amount,
		"currency": req.Currency,
		"notes": map[string]interface{}{
			"payout_id": req.PayoutID.String(),
			"artist_id": req.ArtistID.String(),
		},
	}

	body, err := withTimeout(ctx, g.timeout, func() (map[string]interface{}, error) {
		return g.transfers.Create(data, nil)
	})
	if err != nil {
		g.log.Error("Failed to create transfer",
			zap.Error(err),
			zap.String("payout_id", req.PayoutID.String()),
			zap.String("artist_id", req.ArtistID.String()),
		)
		return "", fmt.Errorf("create transfer for payout %s: %w", req.PayoutID.String(), err)
	}

	id, _ := body["id"].(string)
	return id, nil
}

func (g *Razorpay) OnboardingURL(artistID uuid.UUID) string {
	if g.onboardingURL == "" {
		return ""
	}
	u, err := url.Parse(g.onboardingURL)
	if err != nil {
		return g.onboardingURL
	}
	q := u.Query()
	q.Set("artist_id", artistID.String())
	u.RawQuery = q.Encode()
	return u.String()
}

// ==================== WEBHOOK ====================

type webhookEntity struct {
	ID        string            `json:"id"`
	Amount    int64             `json:"amount"`
	Currency  string            `json:"currency"`
	OrderID   string            `json:"order_id"`
	PaymentID string            `json:"payment_id"`
	Status    string            `json:"status"`
	ErrorDesc string            `json:"error_description"`
	Notes     map[string]string `json:"notes"`
}

type webhookEnvelope struct {
	Event   string `json:"event"`
	Payload map[string]struct {
		Entity webhookEntity `json:"entity"`
	} `json:"payload"`
}

// ParseWebhook verifies the signature and maps a provider event onto a
// CallbackEvent.
func (g *Razorpay) ParseWebhook(body []byte, signature string) (*CallbackEvent, error) {
	if signature == "" || !rzputils.VerifyWebhookSignature(string(body), signature, g.webhookSecret) {
		return nil, ErrInvalidSignature
	}

	var env webhookEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	switch env.Event {
	case "payment.captured":
		e, ok := env.Payload["payment"]
		if !ok {
			return nil, fmt.Errorf("%w: missing payment entity", ErrMalformedPayload)
		}
		eventType := entity.GatewayEventDepositConfirmed
		if e.Entity.Notes["kind"] == string(entity.IntentKindRemaining) {
			eventType = entity.GatewayEventRemainingConfirmed
		}
		return bookingEvent(eventType, e.Entity, e.Entity.ID)

	case "payment.failed":
		e, ok := env.Payload["payment"]
		if !ok {
			return nil, fmt.Errorf("%w: missing payment entity", ErrMalformedPayload)
		}
		ev, err := bookingEvent(entity.GatewayEventPaymentFailed, e.Entity, e.Entity.ID)
		if err != nil {
			return nil, err
		}
		ev.Reason = e.Entity.ErrorDesc
		return ev, nil

	case "refund.processed":
		e, ok := env.Payload["refund"]
		if !ok {
			return nil, fmt.Errorf("%w: missing refund entity", ErrMalformedPayload)
		}
		return bookingEvent(entity.GatewayEventRefundIssued, e.Entity, e.Entity.ID)

	case "transfer.processed", "transfer.failed":
		e, ok := env.Payload["transfer"]
		if !ok {
			return nil, fmt.Errorf("%w: missing transfer entity", ErrMalformedPayload)
		}
		payoutID, err := uuid.Parse(e.Entity.Notes["payout_id"])
		if err != nil {
			return nil, fmt.Errorf("%w: payout_id: %v", ErrMalformedPayload, err)
		}
		eventType := entity.GatewayEventPayoutConfirmed
		if env.Event == "transfer.failed" {
			eventType = entity.GatewayEventPayoutFailed
		}
		return &CallbackEvent{
			ExternalRef: env.Event + ":" + e.Entity.ID,
			Type:        eventType,
			PayoutID:    payoutID,
			IntentRef:   e.Entity.ID,
			Amount:      e.Entity.Amount,
			Currency:    strings.ToUpper(e.Entity.Currency),
			Reason:      e.Entity.ErrorDesc,
		}, nil

	case "account.activated":
		e, ok := env.Payload["account"]
		if !ok {
			return nil, fmt.Errorf("%w: missing account entity", ErrMalformedPayload)
		}
		artistID, err := uuid.Parse(e.Entity.Notes["artist_id"])
		if err != nil {
			return nil, fmt.Errorf("%w: artist_id: %v", ErrMalformedPayload, err)
		}
		return &CallbackEvent{
			ExternalRef: env.Event + ":" + e.Entity.ID,
			Type:        entity.GatewayEventOnboardingCompleted,
			ArtistID:    artistID,
			AccountRef:  e.Entity.ID,
		}, nil
	}

	return nil, fmt.Errorf("%w: %s", ErrUnsupportedEvent, env.Event)
}

// bookingEvent maps a payment or refund entity. The booking comes from the
// notes when the provider echoes them; otherwise the engine resolves it from
// the order or payment the entity refers to, so one of the two must be there.
func bookingEvent(eventType entity.GatewayEventType, e webhookEntity, ref string) (*CallbackEvent, error) {
	if ref == "" {
		return nil, fmt.Errorf("%w: missing entity id", ErrMalformedPayload)
	}

	var bookingID uuid.UUID
	if raw := e.Notes["booking_id"]; raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: booking_id: %v", ErrMalformedPayload, err)
		}
		bookingID = id
	}
	if bookingID == uuid.Nil && e.OrderID == "" && e.PaymentID == "" {
		return nil, fmt.Errorf("%w: no booking, order or payment reference", ErrMalformedPayload)
	}

	return &CallbackEvent{
		ExternalRef: ref,
		Type:        eventType,
		BookingID:   bookingID,
		IntentRef:   e.OrderID,
		PaymentRef:  e.PaymentID,
		Amount:      e.Amount,
		Currency:    strings.ToUpper(e.Currency),
	}, nil
}
