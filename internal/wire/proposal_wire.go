package wire

import (
	"gig-booking/internal/adaptor"
	"gig-booking/internal/data/entity"
	"gig-booking/pkg/middleware"

	"github.com/go-chi/chi/v5"
)

func wireProposal(r chi.Router, proposalHandler *adaptor.ProposalHandler, rt *routes) {
	artistOnly := middleware.RequireRole(rt.log, entity.RoleArtist)
	clientOnly := middleware.RequireRole(rt.log, entity.RoleClient)

	r.Group(func(r chi.Router) {
		r.Use(rt.auth)

		// Proposals on an open request
		r.With(artistOnly).Post("/api/requests/{id}/proposals", proposalHandler.SubmitProposal)
		r.Get("/api/requests/{id}/proposals", proposalHandler.ListProposals)

		// Decisions on a single proposal
		r.With(clientOnly).Post("/api/proposals/{id}/accept", proposalHandler.AcceptProposal)
		r.With(clientOnly).Post("/api/proposals/{id}/reject", proposalHandler.RejectProposal)
		r.With(artistOnly).Post("/api/proposals/{id}/withdraw", proposalHandler.WithdrawProposal)
	})
}
