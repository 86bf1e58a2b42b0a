package adaptor

import (
	"errors"
	"io"
	"net/http"

	"gig-booking/internal/dto/request"
	"gig-booking/internal/gateway"
	"gig-booking/internal/usecase"
	"gig-booking/pkg/utils"

	"go.uber.org/zap"
)

const (
	SignatureHeader = "X-Gateway-Signature"
	maxWebhookBody  = 1 << 20
)

type PaymentHandler struct {
	service usecase.PaymentService
	parser  gateway.WebhookParser
	log     *zap.Logger
}

func NewPaymentHandler(service usecase.PaymentService, parser gateway.WebhookParser, log *zap.Logger) *PaymentHandler {
	return &PaymentHandler{
		service: service,
		parser:  parser,
		log:     log.With(zap.String("handler", "payment")),
	}
}

// CreateDeposit handles POST /api/bookings/{id}/deposit (client)
func (h *PaymentHandler) CreateDeposit(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	bookingID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	intent, err := h.service.CreateDepositPayment(r.Context(), actor, bookingID)
	if err != nil {
		handleServiceError(w, h.log, err, "create deposit payment")
		return
	}

	utils.ResponseCreated(w, "success", intent)
}

// CreateRemainingPayment handles POST /api/bookings/{id}/remaining-payment (client)
func (h *PaymentHandler) CreateRemainingPayment(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	bookingID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req request.RemainingPaymentRequest
	if !decodeBody(w, r, &req, false) {
		return
	}

	intent, err := h.service.CreateRemainingPayment(r.Context(), actor, bookingID, &req)
	if err != nil {
		handleServiceError(w, h.log, err, "create remaining payment")
		return
	}

	utils.ResponseCreated(w, "success", intent)
}

// GatewayCallback handles POST /api/gateway/callbacks (signed by the gateway)
func (h *PaymentHandler) GatewayCallback(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		utils.ResponseBadRequest(w, "Invalid request body", nil)
		return
	}

	event, err := h.parser.ParseWebhook(body, r.Header.Get(SignatureHeader))
	switch {
	case errors.Is(err, gateway.ErrInvalidSignature):
		h.log.Warn("Gateway callback with bad signature", zap.String("ip", r.RemoteAddr))
		utils.ResponseUnauthorized(w, "Invalid signature")
		return
	case errors.Is(err, gateway.ErrUnsupportedEvent):
		// acknowledged so the gateway stops redelivering it
		h.log.Debug("Ignoring gateway event", zap.Error(err))
		utils.ResponseSuccess(w, "ignored", nil)
		return
	case err != nil:
		h.log.Warn("Malformed gateway callback", zap.Error(err))
		utils.ResponseBadRequest(w, "Malformed callback", nil)
		return
	}

	if err := h.service.HandleGatewayCallback(r.Context(), event); err != nil {
		if errors.Is(err, usecase.ErrDuplicateCallback) {
			utils.ResponseSuccess(w, "already processed", nil)
			return
		}
		handleServiceError(w, h.log, err, "handle gateway callback")
		return
	}

	utils.ResponseSuccess(w, "success", nil)
}
