package adaptor

import (
	"net/http"

	"gig-booking/internal/dto/request"
	"gig-booking/internal/usecase"
	"gig-booking/pkg/utils"

	"go.uber.org/zap"
)

type WalletHandler struct {
	service usecase.WalletService
	log     *zap.Logger
}

func NewWalletHandler(service usecase.WalletService, log *zap.Logger) *WalletHandler {
	return &WalletHandler{
		service: service,
		log:     log.With(zap.String("handler", "wallet")),
	}
}

// GetWallet handles GET /api/wallet (artist)
func (h *WalletHandler) GetWallet(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	wallet, err := h.service.GetWallet(r.Context(), actor)
	if err != nil {
		handleServiceError(w, h.log, err, "get wallet")
		return
	}

	utils.ResponseSuccess(w, "success", wallet)
}

// Withdraw handles POST /api/wallet/withdrawals (artist)
func (h *WalletHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	var req request.WithdrawRequest
	if !decodeBody(w, r, &req, false) {
		return
	}

	payout, err := h.service.WithdrawFunds(r.Context(), actor, &req)
	if err != nil {
		handleServiceError(w, h.log, err, "withdraw funds")
		return
	}

	utils.ResponseCreated(w, "success", payout)
}

// ListWithdrawals handles GET /api/wallet/withdrawals (artist)
func (h *WalletHandler) ListWithdrawals(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	payouts, err := h.service.ListPayouts(r.Context(), actor, pagination(r))
	if err != nil {
		handleServiceError(w, h.log, err, "list withdrawals")
		return
	}

	utils.ResponseSuccess(w, "success", payouts)
}
