package adaptor

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"gig-booking/internal/data/entity"
	"gig-booking/internal/dto/request"
	"gig-booking/internal/gateway"
	"gig-booking/internal/usecase"
	"gig-booking/pkg/utils"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Handler struct {
	Booking  *BookingHandler
	Proposal *ProposalHandler
	Payment  *PaymentHandler
	Wallet   *WalletHandler
	Audit    *AuditHandler
}

func NewHandler(service *usecase.Service, parser gateway.WebhookParser, log *zap.Logger) *Handler {
	return &Handler{
		Booking:  NewBookingHandler(service.Booking, log),
		Proposal: NewProposalHandler(service.Proposal, log),
		Payment:  NewPaymentHandler(service.Payment, parser, log),
		Wallet:   NewWalletHandler(service.Wallet, log),
		Audit:    NewAuditHandler(service.Audit, log),
	}
}

func actorFrom(w http.ResponseWriter, r *http.Request) (entity.Actor, bool) {
	actor, ok := utils.GetActorFromContext(r.Context())
	if !ok {
		utils.ResponseUnauthorized(w, "Authentication required")
	}
	return actor, ok
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		utils.ResponseBadRequest(w, "Invalid "+name, nil)
		return uuid.Nil, false
	}
	return id, true
}

// decodeBody reads the JSON body into dst. An empty body is fine when
// optional is set.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any, optional bool) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if optional && errors.Is(err, io.EOF) {
			return true
		}
		utils.ResponseBadRequest(w, "Invalid request body", nil)
		return false
	}
	return true
}

func pagination(r *http.Request) *request.PaginatedRequest {
	query := r.URL.Query()
	return &request.PaginatedRequest{
		Page:    utils.ParseInt(query.Get("page"), 1),
		PerPage: utils.ParseInt(query.Get("per_page"), request.DefaultPerPage),
	}
}

// handleServiceError maps engine errors onto HTTP responses.
func handleServiceError(w http.ResponseWriter, log *zap.Logger, err error, operation string) {
	var (
		validation *usecase.ValidationError
		onboarding *usecase.OnboardingRequiredError
		mismatch   *usecase.AmountMismatchError
	)

	switch {
	case errors.As(err, &validation):
		log.Warn(operation+" validation failed", zap.Error(err))
		utils.ResponseBadRequest(w, "Validation failed", validation.Fields)

	case errors.Is(err, usecase.ErrNotFound):
		log.Warn(operation+" failed - not found", zap.Error(err))
		utils.ResponseNotFound(w, err.Error())

	case errors.Is(err, usecase.ErrForbidden):
		log.Warn(operation+" failed - forbidden", zap.Error(err))
		utils.ResponseForbidden(w, "You do not have access to this resource")

	case errors.As(err, &onboarding):
		log.Info(operation+" needs payout onboarding")
		utils.ResponseConflict(w, err.Error(), map[string]string{"redirect_url": onboarding.RedirectURL})

	case errors.Is(err, usecase.ErrAlreadyDecided),
		errors.Is(err, usecase.ErrSettlementInFlight),
		errors.Is(err, usecase.ErrRequestKeyReused),
		errors.Is(err, usecase.ErrDuplicateProposal),
		errors.Is(err, usecase.ErrInvalidTransition),
		errors.Is(err, usecase.ErrRequestClosed):
		log.Warn(operation+" failed - conflict", zap.Error(err))
		utils.ResponseConflict(w, err.Error(), nil)

	case errors.As(err, &mismatch):
		log.Warn(operation+" failed - amount mismatch", zap.Error(err))
		utils.ResponseUnprocessable(w, err.Error(), map[string]int64{
			"expected": mismatch.Expected,
			"got":      mismatch.Got,
		})

	case errors.Is(err, usecase.ErrInsufficientBalance),
		errors.Is(err, usecase.ErrPaymentIncomplete),
		errors.Is(err, usecase.ErrBookingNotPayable),
		errors.Is(err, usecase.ErrInvalidCallback):
		log.Warn(operation+" failed - unprocessable", zap.Error(err))
		utils.ResponseUnprocessable(w, err.Error(), nil)

	case errors.Is(err, usecase.ErrAuditWriteFailed),
		errors.Is(err, usecase.ErrGatewayUnavailable):
		log.Error(operation+" failed - dependency unavailable", zap.Error(err))
		utils.ResponseServiceUnavailable(w, "Service temporarily unavailable, please retry")

	default:
		log.Error("Failed to "+operation, zap.Error(err))
		utils.ResponseInternalError(w, "Internal server error")
	}
}
