// Package config loads application configuration from environment variables.
package config

import (
	"log"
	"os"
	"strings"
	"time"
)

// Store drivers accepted by STORE_DRIVER.
const (
	DriverMySQL  = "mysql"
	DriverMemory = "memory"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.
type Config struct {
	Env         string // application environment (e.g. "dev", "prod")
	Port        string // HTTP port to listen on
	StoreDriver string // "mysql" or "memory"

	DBUser string
	DBPass string // optional
	DBHost string
	DBPort string
	DBName string

	JWTSecret    string
	AccessTTLMin int // lifetime of tokens minted by the dev token endpoint

	Hold    HoldConfig
	Booking BookingConfig
	Billing BillingConfig

	AMQPURL string // empty disables event publishing and the consumer

	RazorpayKeyID     string
	RazorpayKeySecret string // both empty selects the local noop invoicing provider

	SMTP SMTPConfig
	Log  LogConfig
}

// HoldConfig controls reservation locks and the expiry sweeper.
type HoldConfig struct {
	DefaultTTL    time.Duration
	MaxTTL        time.Duration
	SweepInterval time.Duration
	SweepBatch    int
	SweeperOn     bool
}

// BookingConfig bounds booking requests.
type BookingConfig struct {
	MaxItems int
}

// BillingConfig controls the invoice reconciliation worker.
type BillingConfig struct {
	WorkerOn        bool
	PollInterval    time.Duration
	BatchSize       int
	Lease           time.Duration
	BackoffBase     time.Duration
	BackoffMax      time.Duration
	MaxAttempts     int
	OrphanAge       time.Duration
	CleanupInterval time.Duration
	ProviderTimeout time.Duration
	Currency        string
}

// SMTPConfig configures outgoing e-mail.  An empty Host selects the log
// notifier.
type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

// LogConfig mirrors logger.Options.
type LogConfig struct {
	Dir        string
	Level      string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Load reads configuration values from environment variables and returns a
// Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.  Database variables
// are only required for the mysql driver.
func Load() Config {
	cfg := Config{
		Env:          must("APP_ENV"),
		Port:         must("APP_PORT"),
		StoreDriver:  strings.ToLower(envStr("STORE_DRIVER", DriverMySQL)),
		JWTSecret:    must("JWT_SECRET"),
		AccessTTLMin: envInt("ACCESS_TOKEN_TTL_MIN", 60),
		Hold: HoldConfig{
			DefaultTTL:    envDur("HOLD_TTL", 5*time.Minute),
			MaxTTL:        envDur("HOLD_MAX_TTL", 30*time.Minute),
			SweepInterval: envDur("HOLD_SWEEP_INTERVAL", 15*time.Second),
			SweepBatch:    envInt("HOLD_SWEEP_BATCH", 200),
			SweeperOn:     envBool("HOLD_SWEEPER_ENABLED", true),
		},
		Booking: BookingConfig{
			MaxItems: envInt("BOOKING_MAX_ITEMS", 50),
		},
		Billing: BillingConfig{
			WorkerOn:        envBool("BILLING_WORKER_ENABLED", true),
			PollInterval:    envDur("BILLING_POLL_INTERVAL", 2*time.Second),
			BatchSize:       envInt("BILLING_BATCH_SIZE", 20),
			Lease:           envDur("BILLING_LEASE", 2*time.Minute),
			BackoffBase:     envDur("BILLING_BACKOFF_BASE", 30*time.Second),
			BackoffMax:      envDur("BILLING_BACKOFF_MAX", 30*time.Minute),
			MaxAttempts:     envInt("BILLING_MAX_ATTEMPTS", 5),
			OrphanAge:       envDur("BILLING_ORPHAN_AGE", 24*time.Hour),
			CleanupInterval: envDur("BILLING_CLEANUP_INTERVAL", 10*time.Minute),
			ProviderTimeout: envDur("BILLING_PROVIDER_TIMEOUT", 30*time.Second),
			Currency:        envStr("BILLING_CURRENCY", "INR"),
		},
		AMQPURL:           envStr("RABBITMQ_URL", os.Getenv("AMQP_URL")),
		RazorpayKeyID:     os.Getenv("RAZORPAY_KEY_ID"),
		RazorpayKeySecret: os.Getenv("RAZORPAY_KEY_SECRET"),
		SMTP: SMTPConfig{
			Host:     os.Getenv("SMTP_HOST"),
			Port:     envInt("SMTP_PORT", 587),
			User:     os.Getenv("SMTP_USER"),
			Password: os.Getenv("SMTP_PASSWORD"),
			From:     envStr("FROM_EMAIL", "no-reply@localhost"),
		},
		Log: LogConfig{
			Dir:        os.Getenv("LOG_DIR"),
			Level:      envStr("LOG_LEVEL", "info"),
			MaxSizeMB:  envInt("LOG_MAX_SIZE_MB", 50),
			MaxBackups: envInt("LOG_MAX_BACKUPS", 5),
			MaxAgeDays: envInt("LOG_MAX_AGE_DAYS", 14),
		},
	}
	if cfg.StoreDriver == DriverMySQL {
		cfg.DBUser = must("DB_USER")
		cfg.DBPass = os.Getenv("DB_PASS")
		cfg.DBHost = must("DB_HOST")
		cfg.DBPort = must("DB_PORT")
		cfg.DBName = must("DB_NAME")
	}
	if cfg.Hold.MaxTTL < cfg.Hold.DefaultTTL {
		cfg.Hold.MaxTTL = cfg.Hold.DefaultTTL
	}
	if cfg.Billing.ProviderTimeout <= 0 {
		cfg.Billing.ProviderTimeout = 30 * time.Second
	}
	// The lease must outlive the provider call it protects.
	if floor := cfg.Billing.ProviderTimeout + 30*time.Second; cfg.Billing.Lease < floor {
		cfg.Billing.Lease = floor
	}
	if cfg.Billing.MaxAttempts < 1 {
		cfg.Billing.MaxAttempts = 1
	}
	if cfg.Booking.MaxItems < 1 {
		cfg.Booking.MaxItems = 1
	}
	return cfg
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}
