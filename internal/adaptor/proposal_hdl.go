package adaptor

import (
	"net/http"

	"gig-booking/internal/dto/request"
	"gig-booking/internal/usecase"
	"gig-booking/pkg/utils"

	"go.uber.org/zap"
)

type ProposalHandler struct {
	service usecase.ProposalService
	log     *zap.Logger
}

func NewProposalHandler(service usecase.ProposalService, log *zap.Logger) *ProposalHandler {
	return &ProposalHandler{
		service: service,
		log:     log.With(zap.String("handler", "proposal")),
	}
}

// SubmitProposal handles POST /api/requests/{id}/proposals (artist)
func (h *ProposalHandler) SubmitProposal(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	bookingID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req request.SubmitProposalRequest
	if !decodeBody(w, r, &req, false) {
		return
	}

	proposal, err := h.service.SubmitProposal(r.Context(), actor, bookingID, &req)
	if err != nil {
		handleServiceError(w, h.log, err, "submit proposal")
		return
	}

	utils.ResponseCreated(w, "success", proposal)
}

// ListProposals handles GET /api/requests/{id}/proposals
func (h *ProposalHandler) ListProposals(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	bookingID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	proposals, err := h.service.ListProposals(r.Context(), actor, bookingID)
	if err != nil {
		handleServiceError(w, h.log, err, "list proposals")
		return
	}

	utils.ResponseSuccess(w, "success", proposals)
}

// AcceptProposal handles POST /api/proposals/{id}/accept (client)
func (h *ProposalHandler) AcceptProposal(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	proposalID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	result, err := h.service.AcceptProposal(r.Context(), actor, proposalID)
	if err != nil {
		handleServiceError(w, h.log, err, "accept proposal")
		return
	}

	utils.ResponseSuccess(w, "success", result)
}

// RejectProposal handles POST /api/proposals/{id}/reject (client)
func (h *ProposalHandler) RejectProposal(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	proposalID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req request.DecideProposalRequest
	if !decodeBody(w, r, &req, true) {
		return
	}

	proposal, err := h.service.RejectProposal(r.Context(), actor, proposalID, &req)
	if err != nil {
		handleServiceError(w, h.log, err, "reject proposal")
		return
	}

	utils.ResponseSuccess(w, "success", proposal)
}

// WithdrawProposal handles POST /api/proposals/{id}/withdraw (artist)
func (h *ProposalHandler) WithdrawProposal(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	proposalID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	proposal, err := h.service.WithdrawProposal(r.Context(), actor, proposalID)
	if err != nil {
		handleServiceError(w, h.log, err, "withdraw proposal")
		return
	}

	utils.ResponseSuccess(w, "success", proposal)
}
