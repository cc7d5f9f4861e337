// Package config provides application configuration management.
// Configuration is loaded from environment variables following 12-factor principles.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

const minWebhookSecretLen = 16

// Config holds all application configuration.
// All fields are populated from environment variables.
type Config struct {
	// Application settings
	AppEnv  string `env:"APP_ENV" envDefault:"development"`
	AppPort int    `env:"APP_PORT" envDefault:"8080"`

	// Database (PostgreSQL)
	DatabaseURL string `env:"DATABASE_URL,required,notEmpty"`
	DBMaxConns  int32  `env:"DB_MAX_CONNS" envDefault:"10"`
	DBMinConns  int32  `env:"DB_MIN_CONNS" envDefault:"2"`

	// Cache (Redis)
	RedisURL string `env:"REDIS_URL,required,notEmpty"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Server timeouts
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"30s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`
	DrainDelay      time.Duration `env:"DRAIN_DELAY" envDefault:"0s"`

	// Request body size limit in bytes (default 1MB)
	MaxRequestBodySize int64 `env:"MAX_REQUEST_BODY_SIZE" envDefault:"1048576"`

	// Payment gateway (Razorpay)
	RazorpayKeyID     string `env:"RAZORPAY_KEY_ID,required,notEmpty"`
	RazorpayKeySecret string `env:"RAZORPAY_KEY_SECRET,required,notEmpty"`
	RazorpayBaseURL   string `env:"RAZORPAY_BASE_URL" envDefault:"https://api.razorpay.com"`
	PaymentCurrency   string `env:"PAYMENT_CURRENCY" envDefault:"INR"`
	PaymentMinAmount  int64  `env:"PAYMENT_MIN_AMOUNT" envDefault:"100"`

	// Access tokens issued by the identity service (HS256)
	AccessTokenSecret string `env:"ACCESS_TOKEN_SECRET,required,notEmpty"`

	// Outbound mail. Mail is logged instead of sent when SMTPHost is empty.
	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUsername string `env:"SMTP_USERNAME"`
	SMTPPassword string `env:"SMTP_PASSWORD"`
	SMTPFrom     string `env:"SMTP_FROM" envDefault:"no-reply@coursecart.local"`

	// Metrics exposition: "prometheus" registry or "memory" snapshot.
	MetricsBackend string `env:"METRICS_BACKEND" envDefault:"prometheus"`

	// Order route throttling per principal (token bucket). Zero disables.
	OrderRatePerMinute int `env:"ORDER_RATE_PER_MINUTE" envDefault:"30"`
	OrderRateBurst     int `env:"ORDER_RATE_BURST" envDefault:"10"`

	// Order event webhook. Events are published only when a URL is set.
	OrderWebhookURL    string `env:"ORDER_WEBHOOK_URL"`
	OrderWebhookSecret string `env:"ORDER_WEBHOOK_SECRET"`

	// Per-call timeouts for downstream I/O
	StoreTimeout   time.Duration `env:"STORE_TIMEOUT" envDefault:"3s"`
	CacheTimeout   time.Duration `env:"CACHE_TIMEOUT" envDefault:"1s"`
	MailTimeout    time.Duration `env:"MAIL_TIMEOUT" envDefault:"10s"`
	GatewayTimeout time.Duration `env:"GATEWAY_TIMEOUT" envDefault:"10s"`
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// APIKeyEnv returns the environment tag for newly minted API keys.
func (c *Config) APIKeyEnv() string {
	if c.IsProduction() {
		return "live"
	}
	return "test"
}

// MailEnabled returns true when an SMTP relay is configured.
func (c *Config) MailEnabled() bool {
	return c.SMTPHost != ""
}

// OrderEventsEnabled returns true when order events should be delivered.
func (c *Config) OrderEventsEnabled() bool {
	return c.OrderWebhookURL != ""
}

// Validate checks cross-field constraints that struct tags cannot express.
func (c *Config) Validate() error {
	if c.PaymentMinAmount <= 0 {
		return errors.New("PAYMENT_MIN_AMOUNT must be positive")
	}

	if c.IsProduction() && !c.MailEnabled() {
		return errors.New("SMTP_HOST is required in production; order confirmations cannot be logged instead of sent")
	}

	if c.MetricsBackend != "prometheus" && c.MetricsBackend != "memory" {
		return fmt.Errorf("METRICS_BACKEND must be prometheus or memory, got %q", c.MetricsBackend)
	}

	if c.DrainDelay < 0 || (c.ShutdownTimeout > 0 && c.DrainDelay >= c.ShutdownTimeout) {
		return errors.New("DRAIN_DELAY must be non-negative and shorter than SHUTDOWN_TIMEOUT")
	}

	if c.DBMaxConns < 1 || c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) must be between 0 and DB_MAX_CONNS (%d), which must be at least 1", c.DBMinConns, c.DBMaxConns)
	}

	if c.OrderRatePerMinute < 0 || c.OrderRateBurst < 0 {
		return errors.New("ORDER_RATE_PER_MINUTE and ORDER_RATE_BURST must not be negative")
	}

	if c.OrderEventsEnabled() && len(c.OrderWebhookSecret) < minWebhookSecretLen {
		return fmt.Errorf("ORDER_WEBHOOK_SECRET must be at least %d characters when ORDER_WEBHOOK_URL is set", minWebhookSecretLen)
	}

	timeouts := map[string]time.Duration{
		"STORE_TIMEOUT":   c.StoreTimeout,
		"CACHE_TIMEOUT":   c.CacheTimeout,
		"MAIL_TIMEOUT":    c.MailTimeout,
		"GATEWAY_TIMEOUT": c.GatewayTimeout,
	}
	for name, d := range timeouts {
		if d <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}

	return nil
}

// Load parses environment variables and returns a Config.
// A .env file in the working directory is applied first when present;
// variables already set in the environment win.
// Returns an error if required variables are missing.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
