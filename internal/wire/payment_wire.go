package wire

import (
	"gig-booking/internal/adaptor"
	"gig-booking/internal/data/entity"
	"gig-booking/pkg/middleware"

	"github.com/go-chi/chi/v5"
)

func wirePayment(r chi.Router, paymentHandler *adaptor.PaymentHandler, rt *routes) {
	// ==================== CLIENT ROUTES ====================
	r.Group(func(r chi.Router) {
		r.Use(rt.auth)
		r.Use(middleware.RequireRole(rt.log, entity.RoleClient))

		r.Post("/api/bookings/{id}/deposit", paymentHandler.CreateDeposit)
		r.Post("/api/bookings/{id}/remaining-payment", paymentHandler.CreateRemainingPayment)
	})

	// ==================== GATEWAY ROUTES ====================
	// Authenticated by the webhook signature, not a user token
	r.With(middleware.RateLimit(rt.redis, "gateway_callbacks", rt.config.RateLimit.Webhook, rt.log)).
		Post("/api/gateway/callbacks", paymentHandler.GatewayCallback)
}
