package wire

import (
	"gig-booking/internal/adaptor"
	"gig-booking/internal/data/entity"
	"gig-booking/pkg/middleware"

	"github.com/go-chi/chi/v5"
)

func wireWallet(r chi.Router, walletHandler *adaptor.WalletHandler, rt *routes) {
	r.Route("/api/wallet", func(r chi.Router) {
		r.Use(rt.auth)
		r.Use(middleware.RequireRole(rt.log, entity.RoleArtist))

		r.Get("/", walletHandler.GetWallet)
		r.Get("/withdrawals", walletHandler.ListWithdrawals)
		r.With(middleware.RateLimit(rt.redis, "withdrawals", rt.config.RateLimit.Withdrawal, rt.log)).
			Post("/withdrawals", walletHandler.Withdraw)
	})
}
