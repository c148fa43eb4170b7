package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lezgoverci/virion-labs-dashboard-sub000/internal/cache"
	"github.com/lezgoverci/virion-labs-dashboard-sub000/internal/config"
	"github.com/lezgoverci/virion-labs-dashboard-sub000/internal/events"
	"github.com/lezgoverci/virion-labs-dashboard-sub000/internal/handler"
	"github.com/lezgoverci/virion-labs-dashboard-sub000/internal/metrics"
	"github.com/lezgoverci/virion-labs-dashboard-sub000/internal/repository"
	"github.com/lezgoverci/virion-labs-dashboard-sub000/internal/repository/memory"
	"github.com/lezgoverci/virion-labs-dashboard-sub000/internal/service"
	"github.com/lezgoverci/virion-labs-dashboard-sub000/internal/telegram"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Connect to storage
	var store service.Store
	switch cfg.Database.Driver {
	case "memory":
		log.Println("Using in-memory storage")
		store = memory.New()
	default:
		repo, err := repository.New(cfg.Database.DSN())
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		store = repo
	}
	defer store.Close()

	// Cache
	var reportCache cache.Cache = cache.NewMemory()
	if cfg.Redis.Addr != "" {
		client, err := cache.Connect(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Printf("Warning: Redis unavailable, using process cache: %v", err)
		} else {
			defer client.Close()
			reportCache = cache.NewRedisCache(client)
		}
	}

	// Event publisher
	var publisher events.Publisher = events.NopPublisher{}
	if len(cfg.Kafka.Brokers) > 0 {
		kp, err := events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			log.Printf("Warning: Kafka publisher disabled: %v", err)
		} else {
			defer kp.Close()
			publisher = kp
		}
	}

	m := metrics.New()

	// Create services
	linkSvc := service.NewLinkService(store, store, cfg.Referral.BaseURL)
	analyticsSvc := service.NewAnalyticsService(store, store, cfg.Referral.Location)
	analyticsSvc.SetCache(reportCache, cfg.Redis.CacheTTL)
	attributionSvc := service.NewAttributionService(store, store, store, cfg.Referral.SiteURL)
	attributionSvc.SetPublisher(publisher)
	attributionSvc.SetRecorder(m)
	attributionSvc.SetReportInvalidator(analyticsSvc)
	referralSvc := service.NewReferralService(store, store)
	botSvc := service.NewBotService(store, store, store, store)
	botSvc.SetCache(reportCache, cfg.Redis.CacheTTL)
	dashboardSvc := service.NewDashboardService(store)
	dashboardSvc.Configure(cfg.Dashboard.Timeout, cfg.Dashboard.MaxRetries, cfg.Dashboard.RetryBackoff)
	dashboardSvc.SetObserver(m)
	auditSvc := service.NewAuditService(store)

	reconcileWorker := service.NewReconcileWorker(store, cfg.Referral.ReconcileInterval)
	reconcileWorker.OnReconciled(m.AddReconciled)

	// Create Telegram ops bot
	var bot *telegram.Bot
	if cfg.Telegram.BotToken != "" && cfg.Telegram.AlertChatID != 0 {
		bot, err = telegram.NewBot(cfg, botSvc)
		if err != nil {
			log.Printf("Warning: Failed to create Telegram bot: %v", err)
		} else {
			botSvc.SetNotifier(bot)
			reconcileWorker.SetNotifier(bot)
			log.Println("Telegram ops alerts enabled")
		}
	}

	// Create Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: handler.ErrorHandler,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.Server.AllowOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})))

	handler.RegisterRoutes(app, cfg, handler.Handlers{
		Health:    handler.NewHealthHandler(store),
		Referral:  handler.NewReferralHandler(attributionSvc, referralSvc),
		Link:      handler.NewLinkHandler(linkSvc, analyticsSvc),
		Dashboard: handler.NewDashboardHandler(dashboardSvc),
		Bot:       handler.NewBotHandler(botSvc),
		Admin:     handler.NewAdminHandler(auditSvc),
	})

	// Start background jobs
	if bot != nil {
		go bot.StartPolling(ctx)
	}
	go reconcileWorker.Start(ctx)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Println("Shutting down server...")
		cancel()
		_ = app.Shutdown()
	}()

	// Start server
	log.Printf("Server starting on port %s", cfg.Server.Port)
	if err := app.Listen(":" + cfg.Server.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
