package main

import (
	"context"
	"crypto/tls"
	"database/sql"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/wellness-commerce-bot/cmd/mainconfig"
	"github.com/wolfman30/wellness-commerce-bot/internal/availability"
	"github.com/wolfman30/wellness-commerce-bot/internal/booking"
	"github.com/wolfman30/wellness-commerce-bot/internal/calendar"
	appconfig "github.com/wolfman30/wellness-commerce-bot/internal/config"
	"github.com/wolfman30/wellness-commerce-bot/internal/conversation"
	"github.com/wolfman30/wellness-commerce-bot/internal/events"
	"github.com/wolfman30/wellness-commerce-bot/internal/http/handlers"
	"github.com/wolfman30/wellness-commerce-bot/internal/ledger"
	"github.com/wolfman30/wellness-commerce-bot/internal/messaging"
	"github.com/wolfman30/wellness-commerce-bot/internal/notify"
	"github.com/wolfman30/wellness-commerce-bot/internal/observability/metrics"
	"github.com/wolfman30/wellness-commerce-bot/pkg/logging"
)

// calendarBackend is the free/busy source and event sink used by the engine and gateway.
type calendarBackend interface {
	availability.BusySource
	booking.EventInserter
}

// chatSender is the outbound WhatsApp transport.
type chatSender interface {
	Send(ctx context.Context, to, body string) (string, error)
}

func setupMetrics() (http.Handler, *metrics.BotMetrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.NewBotMetrics(reg)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}), m
}

// connectPostgresPool returns nil when url is empty or the database is unreachable.
func connectPostgresPool(ctx context.Context, url string, logger *logging.Logger) *pgxpool.Pool {
	if strings.TrimSpace(url) == "" {
		return nil
	}
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	pool, err := pgxpool.New(connectCtx, url)
	if err != nil {
		logger.Error("failed to create postgres pool", "error", err)
		return nil
	}
	if err := pool.Ping(connectCtx); err != nil {
		logger.Error("failed to reach postgres", "error", err)
		pool.Close()
		return nil
	}
	logger.Info("postgres connected")
	return pool
}

// openAuditDB exposes the pool through database/sql for the booking audit log.
func openAuditDB(pool *pgxpool.Pool) *sql.DB {
	if pool == nil {
		return nil
	}
	return stdlib.OpenDBFromPool(pool)
}

// connectRedis returns nil when no address is configured or the server is unreachable.
func connectRedis(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) *redis.Client {
	if strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	opts := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Error("failed to reach redis", "addr", cfg.RedisAddr, "error", err)
		_ = client.Close()
		return nil
	}
	logger.Info("redis connected", "addr", cfg.RedisAddr)
	return client
}

// setupLedger prefers Postgres, then Redis, then memory.
func setupLedger(pool *pgxpool.Pool, rdb *redis.Client, logger *logging.Logger) ledger.Store {
	switch {
	case pool != nil:
		logger.Info("conversion ledger backend", "backend", "postgres")
		return ledger.NewPostgresStore(pool)
	case rdb != nil:
		logger.Info("conversion ledger backend", "backend", "redis")
		return ledger.NewRedisStore(rdb)
	default:
		logger.Warn("conversion ledger backend", "backend", "memory")
		return ledger.NewMemoryStore()
	}
}

func setupPending(rdb *redis.Client, ttl time.Duration) conversation.PendingStore {
	if rdb != nil {
		return conversation.NewRedisPendingStore(rdb, ttl)
	}
	return conversation.NewMemoryPendingStore(ttl)
}

func setupDedup(pool *pgxpool.Pool) events.Deduper {
	if pool != nil {
		return events.NewProcessedStore(pool)
	}
	return events.NewMemoryProcessedStore(7 * 24 * time.Hour)
}

func setupCalendar(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (calendarBackend, error) {
	if cfg.UseMemoryCalendar {
		logger.Warn("using in-memory calendar")
		return calendar.NewMemoryCalendar(), nil
	}
	opts, err := calendar.ClientOptions(ctx, cfg.GoogleCredentialsPath, cfg.GoogleTokenPath)
	if err != nil {
		return nil, err
	}
	return calendar.NewGoogleCalendar(ctx, cfg.GoogleCalendarID, cfg.Location(), logger, opts...)
}

// setupSender falls back to the log sender when Twilio is not configured.
func setupSender(cfg *appconfig.Config, m *metrics.BotMetrics, logger *logging.Logger) chatSender {
	if cfg.TwilioAccountSID == "" || cfg.TwilioAuthToken == "" || cfg.TwilioWhatsAppFrom == "" {
		logger.Warn("twilio not configured; outbound messages are logged only")
		return messaging.NewLogSender(logger)
	}
	sender, err := messaging.NewTwilioSender(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioWhatsAppFrom, m, logger)
	if err != nil {
		logger.Error("failed to create twilio sender; outbound messages are logged only", "error", err)
		return messaging.NewLogSender(logger)
	}
	return sender
}

func setupEmail(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) notify.EmailSender {
	if cfg.OwnerEmail == "" {
		return nil
	}
	switch cfg.EmailProvider {
	case "ses":
		awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
		if err != nil {
			logger.Error("failed to load AWS config; owner email disabled", "error", err)
			return nil
		}
		return notify.NewSESSender(mainconfig.NewSESClient(awsCfg, cfg), notify.SESConfig{
			FromEmail: cfg.SendGridFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger)
	case "stub":
		return notify.NewStubEmailSender(logger)
	default:
		sg := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.SendGridFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger)
		if sg == nil {
			return nil
		}
		return sg
	}
}

// setupLLM chains OpenAI and Gemini. The returned closer releases the Gemini client.
func setupLLM(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (conversation.LLMClient, func()) {
	var primary, secondary conversation.LLMClient
	closer := func() {}

	if cfg.OpenAIAPIKey != "" {
		client, err := conversation.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIModel)
		if err != nil {
			logger.Error("failed to create openai client", "error", err)
		} else {
			primary = client
		}
	}
	if cfg.GeminiAPIKey != "" {
		client, err := conversation.NewGeminiLLMClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			logger.Error("failed to create gemini client", "error", err)
		} else {
			secondary = client
			closer = func() { _ = client.Close() }
		}
	}
	if primary == nil && secondary == nil {
		logger.Warn("no llm configured; fallback replies use the greeting")
		return nil, closer
	}
	return conversation.NewFallbackLLMClient(primary, secondary, logger), closer
}

func healthChecks(pool *pgxpool.Pool, rdb *redis.Client) map[string]handlers.Pinger {
	checks := make(map[string]handlers.Pinger)
	if pool != nil {
		checks["postgres"] = pool.Ping
	}
	if rdb != nil {
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}
	return checks
}

func isServerClosed(err error) bool {
	return err == nil || errors.Is(err, http.ErrServerClosed)
}
