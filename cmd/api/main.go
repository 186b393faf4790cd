package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/wolfman30/wellness-commerce-bot/internal/api/router"
	"github.com/wolfman30/wellness-commerce-bot/internal/availability"
	"github.com/wolfman30/wellness-commerce-bot/internal/booking"
	"github.com/wolfman30/wellness-commerce-bot/internal/catalog"
	appconfig "github.com/wolfman30/wellness-commerce-bot/internal/config"
	"github.com/wolfman30/wellness-commerce-bot/internal/conversation"
	"github.com/wolfman30/wellness-commerce-bot/internal/followup"
	"github.com/wolfman30/wellness-commerce-bot/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/wellness-commerce-bot/internal/http/middleware"
	"github.com/wolfman30/wellness-commerce-bot/internal/keylock"
	"github.com/wolfman30/wellness-commerce-bot/internal/messaging"
	"github.com/wolfman30/wellness-commerce-bot/internal/notify"
	"github.com/wolfman30/wellness-commerce-bot/internal/storefront"
	"github.com/wolfman30/wellness-commerce-bot/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	// Load configuration
	cfg := appconfig.Load()

	// Initialize logger
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting wellness-commerce-bot API server",
		"env", cfg.Env,
		"port", cfg.Port,
		"timezone", cfg.Timezone,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metricsHandler, botMetrics := setupMetrics()
	loc := cfg.Location()

	// Storage
	pool := connectPostgresPool(ctx, cfg.DatabaseURL, logger)
	if pool != nil {
		defer pool.Close()
	}
	rdb := connectRedis(ctx, cfg, logger)
	if rdb != nil {
		defer func() { _ = rdb.Close() }()
	}
	store := setupLedger(pool, rdb, logger)
	pending := setupPending(rdb, cfg.PendingBookingTTL)
	dedup := setupDedup(pool)

	// Calendar, availability and booking
	cal, err := setupCalendar(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to set up calendar", "error", err)
		os.Exit(1)
	}
	engine := availability.NewEngine(cal, loc, logger, botMetrics)
	var audit booking.Recorder
	var auditLog *booking.AuditLog
	if db := openAuditDB(pool); db != nil {
		defer func() { _ = db.Close() }()
		auditLog = booking.NewAuditLog(db)
		audit = auditLog
	}
	gateway := booking.NewGateway(cal, audit, botMetrics, logger)

	// Messaging, notifications and follow-ups
	cat := catalog.New(cfg.Links)
	sender := setupSender(cfg, botMetrics, logger)
	notifier := notify.New(notify.Config{
		Chat:        sender,
		Subscribers: cfg.Subscribers,
		Email:       setupEmail(ctx, cfg, logger),
		OwnerEmail:  cfg.OwnerEmail,
		Catalog:     cat,
		Logger:      logger,
	})

	locks := keylock.New()
	scheduler := followup.NewScheduler(logger)
	campaigns := followup.NewCampaigns(followup.CampaignsConfig{
		Scheduler: scheduler,
		Ledger:    store,
		Interest:  store,
		Locks:     locks,
		Sender:    sender,
		Catalog:   cat,
		Delays: followup.Delays{
			Reminder:     cfg.FollowupReminderDelay,
			NoConversion: cfg.FollowupNoConvertDelay,
			Day6:         cfg.FollowupDay6Delay,
			Day7:         cfg.FollowupDay7Delay,
		},
		Metrics: botMetrics,
		Logger:  logger,
	})

	// Conversation
	llm, closeLLM := setupLLM(ctx, cfg, logger)
	defer closeLLM()
	machine := conversation.NewMachine(conversation.MachineConfig{
		Slots:       engine,
		Booker:      gateway,
		Ledger:      store,
		Pending:     pending,
		Campaigns:   campaigns,
		Sender:      sender,
		Responder:   conversation.NewRuleResponder(cat, llm, logger),
		Catalog:     cat,
		Notifier:    notifier,
		Locks:       locks,
		Location:    loc,
		HorizonDays: cfg.HorizonDays,
		MaxSlots:    cfg.MaxSlots,
		Metrics:     botMetrics,
		Logger:      logger,
	})

	queue := conversation.NewMemoryQueue(0)
	publisher := conversation.NewPublisher(queue, logger)
	worker := conversation.NewWorker(machine, queue, cfg.WorkerCount, logger)
	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()
	worker.Start(workerCtx)

	// HTTP surfaces
	var validator *messaging.SignatureValidator
	if cfg.TwilioWebhookSecret != "" {
		validator = messaging.NewSignatureValidator(cfg.TwilioWebhookSecret, cfg.PublicBaseURL)
	} else {
		logger.Warn("TWILIO_WEBHOOK_SECRET not set; inbound signatures are not validated")
	}

	limiter := httpmiddleware.NewRateLimiter(5, 20)
	go limiter.RunEviction(ctx)

	var admin *handlers.AdminHandler
	if cfg.AdminJWTSecret != "" {
		adminCfg := handlers.AdminConfig{
			Followups:   campaigns,
			Slots:       engine,
			Booker:      gateway,
			Ledger:      store,
			Notifier:    notifier,
			Location:    loc,
			HorizonDays: cfg.HorizonDays,
			MaxSlots:    cfg.MaxSlots,
			Logger:      logger,
		}
		if auditLog != nil {
			adminCfg.Audit = auditLog
		}
		admin = handlers.NewAdminHandler(adminCfg)
	}

	r := router.New(&router.Config{
		Logger: logger,
		Health: handlers.NewHealthHandler(healthChecks(pool, rdb), logger),
		Storefront: storefront.NewHandler(storefront.Config{
			Slots:       engine,
			Ledger:      store,
			Campaigns:   campaigns,
			Sender:      sender,
			Catalog:     cat,
			Notifier:    notifier,
			Dedup:       dedup,
			IsTherapy:   cfg.IsTherapyProduct,
			Secret:      cfg.StorefrontWebhookSecret,
			HorizonDays: cfg.HorizonDays,
			MaxSlots:    cfg.MaxSlots,
			Metrics:     botMetrics,
			Logger:      logger,
		}),
		Inbound:        messaging.NewInboundHandler(publisher, dedup, validator, botMetrics, logger),
		Admin:          admin,
		AdminJWTSecret: cfg.AdminJWTSecret,
		MetricsHandler: metricsHandler,
		WebhookLimiter: limiter,
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		serverErr <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		if !isServerClosed(err) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}

	logger.Info("shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	cancelWorkers()
	worker.Wait()
	scheduler.Stop()

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}
