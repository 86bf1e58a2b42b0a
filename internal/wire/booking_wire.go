package wire

import (
	"gig-booking/internal/adaptor"
	"gig-booking/internal/data/entity"
	"gig-booking/pkg/middleware"

	"github.com/go-chi/chi/v5"
)

func wireBooking(
	r chi.Router,
	bookingHandler *adaptor.BookingHandler,
	auditHandler *adaptor.AuditHandler,
	rt *routes,
) {
	r.Group(func(r chi.Router) {
		r.Use(rt.auth)

		// POST /api/requests - Post a new event request (client)
		r.With(middleware.RequireRole(rt.log, entity.RoleClient)).
			Post("/api/requests", bookingHandler.PostRequest)

		// GET /api/user/bookings - Bookings the caller is a party to
		r.Get("/api/user/bookings", bookingHandler.ListMyBookings)

		r.Route("/api/bookings/{id}", func(r chi.Router) {
			r.Get("/", bookingHandler.GetBooking)
			r.Get("/audit", auditHandler.GetHistory)

			// Either party or an admin may cancel; the cause follows the caller
			r.Post("/cancel", bookingHandler.CancelBooking)

			r.With(middleware.RequireRole(rt.log, entity.RoleClient, entity.RoleAdmin)).
				Post("/complete", bookingHandler.CompleteBooking)
		})
	})
}
