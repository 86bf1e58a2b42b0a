package main

import (
	"context"
	"log"

	"gig-booking/cmd"
	"gig-booking/internal/data/memstore"
	"gig-booking/internal/data/repository"
	"gig-booking/internal/gateway"
	"gig-booking/internal/notifier"
	"gig-booking/internal/scheduler"
	"gig-booking/internal/usecase"
	"gig-booking/internal/wire"
	"gig-booking/pkg/cache"
	"gig-booking/pkg/database"
	"gig-booking/pkg/utils"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	// Load config
	config, err := utils.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	logger, err := utils.InitLogger(config.App)
	if err != nil {
		log.Printf("Failed to init logger: %v. Using standard log.", err)
		logger, _ = zap.NewProduction()
	}
	defer logger.Sync()

	logger.Info("Starting application",
		zap.String("port", config.App.Port),
		zap.String("storage", config.App.StorageDriver),
		zap.Bool("debug", config.App.Debug),
	)

	// Storage
	var repos *repository.Repository
	switch config.App.StorageDriver {
	case "memory":
		repos = memstore.New(logger).Repository()
		logger.Warn("Using in-memory storage, state is lost on restart")
	default:
		db, err := database.InitDB(config.Database, config.App.Name)
		if err != nil {
			logger.Fatal("Failed to connect to database", zap.Error(err))
		}
		defer db.Close()

		if err := database.Migrate(db, config.Database.MigrationsDir); err != nil {
			logger.Fatal("Failed to migrate database", zap.Error(err))
		}
		logger.Info("Database connected successfully")

		repos = repository.NewRepository(db, logger)
	}

	// Redis is optional; without it guards and rate limits stay in process
	var (
		rdb   *redis.Client
		guard cache.Guard
	)
	rdb, err = cache.NewRedisClient(config.Redis)
	if err != nil {
		logger.Warn("Redis unavailable, falling back to local guards", zap.Error(err))
		rdb = nil
		guard = cache.NewLocalGuard()
	} else {
		defer rdb.Close()
		guard = cache.NewRedisGuard(rdb, config.App.Name)
	}

	// Notifications
	var notifiers notifier.Multi
	if config.RabbitMQ.URL != "" {
		publisher, err := notifier.NewPublisher(config.RabbitMQ.URL, config.RabbitMQ.Exchange)
		if err != nil {
			logger.Fatal("Failed to connect to RabbitMQ", zap.Error(err))
		}
		defer publisher.Close()
		notifiers = append(notifiers, publisher)
	}
	if config.Email.Host != "" && config.Email.NotifyTo != "" {
		notifiers = append(notifiers, notifier.NewMailer(config.Email))
	}

	razorpay := gateway.NewRazorpay(config.Gateway, logger)

	// Wire all dependencies
	app := wire.Wiring(repos, usecase.Deps{
		Gateway:  razorpay,
		Notifier: notifiers,
		Guard:    guard,
	}, razorpay, rdb, config, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sched := scheduler.New(app.Service.Booking, app.Service.Payment, config.Engine.SweepInterval, logger)
	go sched.Start(ctx)

	// Start server
	logger.Info("Starting HTTP server", zap.String("port", config.App.Port))

	cmd.APIServer(app.Router, config.App.Port, logger, func() {
		cancel()
		app.Service.Drain()
	})
}
