package wire

import (
	"net/http"

	"gig-booking/internal/adaptor"
	"gig-booking/internal/data/repository"
	"gig-booking/internal/gateway"
	"gig-booking/internal/usecase"
	"gig-booking/pkg/middleware"
	"gig-booking/pkg/utils"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// App holds the wired service and its router
type App struct {
	Router  *chi.Mux
	Service *usecase.Service
}

// routes carries what every wireX func needs. Redis may be nil.
type routes struct {
	auth   func(http.Handler) http.Handler
	redis  *redis.Client
	config *utils.Config
	log    *zap.Logger
}

// Wiring builds the services and handlers and mounts the routes
func Wiring(
	repo *repository.Repository,
	deps usecase.Deps,
	parser gateway.WebhookParser,
	rdb *redis.Client,
	config *utils.Config,
	logger *zap.Logger,
) *App {
	service := usecase.NewService(repo, deps, config, logger)
	handler := adaptor.NewHandler(service, parser, logger)

	rt := &routes{
		auth:   middleware.Auth(config.JWT.Secret, logger),
		redis:  rdb,
		config: config,
		log:    logger,
	}

	return &App{
		Router:  setupRouter(handler, rt),
		Service: service,
	}
}

func setupRouter(handler *adaptor.Handler, rt *routes) *chi.Mux {
	r := chi.NewRouter()

	// Apply global middleware
	r.Use(chimw.RequestID)
	r.Use(middleware.Logger(rt.log))
	r.Use(middleware.Recover(rt.log))
	r.Use(middleware.CORS())

	wireBooking(r, handler.Booking, handler.Audit, rt)
	wireProposal(r, handler.Proposal, rt)
	wirePayment(r, handler.Payment, rt)
	wireWallet(r, handler.Wallet, rt)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	return r
}
