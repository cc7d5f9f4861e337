// Package main is the entrypoint for the fulfillment API server.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"regexp"
	"strings"
	"syscall"

	"go.opentelemetry.io/otel"

	"github.com/coursecart/fulfillment/internal/auth"
	"github.com/coursecart/fulfillment/internal/cache"
	"github.com/coursecart/fulfillment/internal/config"
	"github.com/coursecart/fulfillment/internal/events"
	"github.com/coursecart/fulfillment/internal/handler"
	"github.com/coursecart/fulfillment/internal/mail"
	"github.com/coursecart/fulfillment/internal/metrics"
	"github.com/coursecart/fulfillment/internal/middleware"
	"github.com/coursecart/fulfillment/internal/notify"
	"github.com/coursecart/fulfillment/internal/payment"
	"github.com/coursecart/fulfillment/internal/repository"
	"github.com/coursecart/fulfillment/internal/server"
	"github.com/coursecart/fulfillment/internal/service"
	"github.com/coursecart/fulfillment/internal/webhook"
)

const tracerName = "github.com/coursecart/fulfillment"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := initLogger(cfg)

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	repo, err := repository.New(ctx, cfg.DatabaseURL, repository.PoolOptions{
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,
	})
	if err != nil {
		logger.Error("failed to connect to database",
			slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
			slog.String("database_url", redactURL(cfg.DatabaseURL)),
		)
		return err
	}
	logger.Info("connected to database")

	cacheClient, err := cache.New(ctx, cfg.RedisURL, cache.Options{OpTimeout: cfg.CacheTimeout})
	if err != nil {
		repo.Close()
		logger.Error("failed to connect to Redis",
			slog.String("error", sanitizeError(err, cfg.RedisURL)),
			slog.String("redis_url", redactURL(cfg.RedisURL)),
		)
		return err
	}
	logger.Info("connected to Redis")

	recorder, metricsHandler := initMetrics(cfg)

	mailer, err := initMailer(cfg, logger)
	if err != nil {
		repo.Close()
		_ = cacheClient.Close()
		return err
	}

	feed, err := initOrderEvents(ctx, cfg, cacheClient, logger, recorder)
	if err != nil {
		repo.Close()
		_ = cacheClient.Close()
		return err
	}

	emitter := notify.NewEmitter(mailer, repo)
	verifier := payment.NewVerifier(cfg.RazorpayKeySecret)
	gatewayClient := payment.NewRazorpayClient(cfg.RazorpayBaseURL, cfg.RazorpayKeyID, cfg.RazorpayKeySecret, payment.NewHTTPClient())

	workflow := service.NewOrderWorkflow(repo, cacheClient, emitter, verifier, service.OrderWorkflowConfig{
		Timeouts: service.Timeouts{
			Store: cfg.StoreTimeout,
			Cache: cfg.CacheTimeout,
			Mail:  cfg.MailTimeout,
		},
		Logger:  logger,
		Metrics: recorder,
		Tracer:  otel.Tracer(tracerName),
		Events:  feed.publisher(),
	})
	gatewayOrders := service.NewGatewayOrderCreator(gatewayClient, service.GatewayOrderConfig{
		Currency:  cfg.PaymentCurrency,
		MinAmount: cfg.PaymentMinAmount,
		Timeout:   cfg.GatewayTimeout,
		Logger:    logger,
		Metrics:   recorder,
	})

	srv := server.New(nil, server.Config{
		Port:            cfg.AppPort,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
		DrainDelay:      cfg.DrainDelay,
	}, logger)

	router := handler.NewRouter(handler.RouterConfig{
		Logger:        logger,
		IsDevelopment: cfg.IsDevelopment(),
		MaxBodySize:   cfg.MaxRequestBodySize,
		Auth: middleware.AuthConfig{
			Logger: logger,
			Keys:   repo,
			Cache:  cacheClient,
			Tokens: auth.NewTokenManager(cfg.AccessTokenSecret),
		},
		RateLimit: middleware.RateLimitConfig{
			Logger:        logger,
			Limiter:       cacheClient,
			Metrics:       recorder,
			RatePerMinute: cfg.OrderRatePerMinute,
			Burst:         cfg.OrderRateBurst,
		},
		Health:  handler.NewHealthHandler(repo, cacheClient).WithDrain(srv.Draining),
		Orders:  handler.NewOrderHandler(workflow, gatewayOrders, gatewayClient.KeyID(), logger),
		Account: handler.NewAccountHandler(workflow, repo, logger),
		Admin:   handler.NewAdminHandler(workflow, repo, logger),
		APIKeys: handler.NewAPIKeyHandler(repo, cacheClient, cfg.APIKeyEnv(), logger),
		Metrics: metricsHandler,
	})

	srv.SetHandler(router)
	srv.OnShutdown("postgres", func(context.Context) error {
		repo.Close()
		return nil
	})
	srv.OnShutdown("redis", func(context.Context) error {
		return cacheClient.Close()
	})
	if feed != nil {
		// Hooks run last-registered first: stop delivering, flush publishes,
		// then close Redis.
		srv.OnShutdown("order-event-publisher", feed.Publisher.Drain)
		srv.OnShutdown("order-event-worker", feed.Worker.Shutdown)
		go func() {
			if err := feed.Worker.Run(ctx); err != nil {
				logger.Error("order event worker stopped", "error", err)
			}
		}()
	}

	logger.Info("starting server",
		"port", cfg.AppPort,
		"env", cfg.AppEnv,
		"mail_enabled", cfg.MailEnabled(),
		"metrics_backend", cfg.MetricsBackend,
		"order_events", cfg.OrderEventsEnabled(),
	)
	return srv.Run(ctx)
}

// initLogger initializes the slog logger based on configuration.
func initLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.LogLevel)}

	var h slog.Handler
	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(h)
	slog.SetDefault(logger)
	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func initMetrics(cfg *config.Config) (metrics.Recorder, http.Handler) {
	if cfg.MetricsBackend == "memory" {
		rec := metrics.NewInMemory()
		return rec, http.HandlerFunc(handler.NewMetricsHandler(rec).Metrics)
	}
	rec := metrics.NewPrometheus()
	return rec, rec.Handler()
}

// initMailer returns the SMTP mailer, or a logging mailer when no relay is
// configured.
func initMailer(cfg *config.Config, logger *slog.Logger) (mail.Mailer, error) {
	if !cfg.MailEnabled() {
		logger.Warn("SMTP_HOST not set, confirmation mail will be logged instead of sent")
		return mail.NewLogMailer(logger), nil
	}
	m, err := mail.NewSMTPMailer(mail.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		Timeout:  cfg.MailTimeout,
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// orderEvents pairs the stream publisher with its webhook delivery worker.
type orderEvents struct {
	Publisher *events.Publisher
	Worker    *events.Worker
}

// publisher returns the workflow hook, nil when the feed is disabled.
func (f *orderEvents) publisher() service.EventPublisher {
	if f == nil {
		return nil
	}
	return f.Publisher
}

// initOrderEvents builds the order event feed. It returns nil when no
// webhook URL is configured.
func initOrderEvents(ctx context.Context, cfg *config.Config, c *cache.Cache, logger *slog.Logger, recorder metrics.Recorder) (*orderEvents, error) {
	if !cfg.OrderEventsEnabled() {
		return nil, nil
	}

	policy := webhook.TargetPolicy{AllowInsecure: !cfg.IsProduction()}
	if err := policy.CheckURL(ctx, cfg.OrderWebhookURL); err != nil {
		return nil, fmt.Errorf("invalid ORDER_WEBHOOK_URL: %w", err)
	}

	sender := webhook.NewSender(cfg.OrderWebhookURL, cfg.OrderWebhookSecret, webhook.NewHTTPClient(policy), recorder)
	logger.Info("order events enabled", "webhook_host", sender.Host())

	return &orderEvents{
		Publisher: events.NewPublisher(c.Client(), logger, recorder),
		Worker:    events.NewWorker(c.Client(), sender, logger, events.NewConsumerID(), recorder),
	}, nil
}

var passwordPattern = regexp.MustCompile(`(?i)password=[^\s]+`)

func redactURL(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "[redacted]"
	}

	if parsed.User != nil {
		if username := parsed.User.Username(); username != "" {
			parsed.User = url.User(username)
		} else {
			parsed.User = url.User("redacted")
		}
	}

	return parsed.String()
}

func sanitizeError(err error, secrets ...string) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		redacted := redactURL(secret)
		if redacted == "" {
			redacted = "[redacted]"
		}
		msg = strings.ReplaceAll(msg, secret, redacted)
	}

	return passwordPattern.ReplaceAllString(msg, "password=redacted")
}
