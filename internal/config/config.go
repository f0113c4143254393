// Package config loads application configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration values. Each field corresponds to
// an environment variable.
type Config struct {
	Env      string // APP_ENV (dev, test, prod)
	Port     string // APP_PORT
	LogLevel string // LOG_LEVEL

	DBUser        string
	DBPass        string // may be empty
	DBHost        string
	DBPort        string
	DBName        string
	DBAutoMigrate bool // DB_AUTO_MIGRATE, run goose migrations at startup

	JWTSecret           string
	AccessTTLMin        int // access token lifetime in minutes
	RefreshTTLDays      int // refresh token lifetime in days
	BcryptCost          int
	LoginMaxAttempts    int    // failed logins before an account is blocked
	BootstrapAdminEmail string // registering with this email yields an ADMIN

	BookingMaxAttempts  int           // transaction attempts on deadlock
	BookingRetryBackoff time.Duration // multiplied by the attempt number
	RequestTimeout      time.Duration

	EventsBuffer  int
	EventsWorkers int
	AMQPURL       string // empty keeps event handling in process
	EventsQueue   string

	SMTP SMTPConfig

	ReconcileInterval time.Duration // 0 disables the capacity reconciler
	ReconcileRepair   bool
}

// SMTPConfig configures the itinerary and activation mailer. An empty Host
// means mail is logged instead of sent.
type SMTPConfig struct {
	Host      string
	Port      int
	User      string
	Pass      string
	From      string
	TLS       bool
	Timezone  string // zone used to print departure times
	PublicURL string // base URL for activation links
}

// Load reads the configuration. Every missing or malformed required
// variable is reported in the one returned error.
func Load() (Config, error) {
	r := &reader{}
	cfg := Config{
		Env:      envStr("APP_ENV", "dev"),
		Port:     envStr("APP_PORT", "8080"),
		LogLevel: envStr("LOG_LEVEL", "info"),

		DBUser:        r.must("DB_USER"),
		DBPass:        os.Getenv("DB_PASS"),
		DBHost:        r.must("DB_HOST"),
		DBPort:        envStr("DB_PORT", "3306"),
		DBName:        r.must("DB_NAME"),
		DBAutoMigrate: envBool("DB_AUTO_MIGRATE", true),

		JWTSecret:           r.must("JWT_SECRET"),
		AccessTTLMin:        r.int("ACCESS_TOKEN_TTL_MIN", 15),
		RefreshTTLDays:      r.int("REFRESH_TOKEN_TTL_DAYS", 7),
		BcryptCost:          r.int("BCRYPT_COST", 10),
		LoginMaxAttempts:    r.int("LOGIN_MAX_ATTEMPTS", 3),
		BootstrapAdminEmail: strings.ToLower(strings.TrimSpace(os.Getenv("BOOTSTRAP_ADMIN_EMAIL"))),

		BookingMaxAttempts:  r.int("BOOKING_MAX_ATTEMPTS", 3),
		BookingRetryBackoff: r.dur("BOOKING_RETRY_BACKOFF", 50*time.Millisecond),
		RequestTimeout:      r.dur("REQUEST_TIMEOUT", 10*time.Second),

		EventsBuffer:  r.int("EVENTS_BUFFER", 256),
		EventsWorkers: r.int("EVENTS_WORKERS", 2),
		AMQPURL:       firstEnv("RABBITMQ_URL", "AMQP_URL"),
		EventsQueue:   envStr("EVENTS_QUEUE", "booking_events"),

		SMTP: SMTPConfig{
			Host:      os.Getenv("SMTP_HOST"),
			Port:      r.int("SMTP_PORT", 587),
			User:      os.Getenv("SMTP_USER"),
			Pass:      os.Getenv("SMTP_PASS"),
			From:      envStr("SMTP_FROM", "no-reply@localhost"),
			TLS:       envBool("SMTP_TLS", true),
			Timezone:  envStr("NOTIFY_TIMEZONE", "UTC"),
			PublicURL: strings.TrimRight(envStr("APP_PUBLIC_URL", "http://localhost:8080"), "/"),
		},

		ReconcileInterval: r.dur("RECONCILE_INTERVAL", 10*time.Minute),
		ReconcileRepair:   envBool("RECONCILE_REPAIR", false),
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		r.errs = append(r.errs, fmt.Errorf("BCRYPT_COST must be between 4 and 31, got %d", cfg.BcryptCost))
	}
	if cfg.LoginMaxAttempts < 1 {
		r.errs = append(r.errs, errors.New("LOGIN_MAX_ATTEMPTS must be at least 1"))
	}
	if len(r.errs) > 0 {
		return Config{}, fmt.Errorf("config: %w", errors.Join(r.errs...))
	}
	return cfg, nil
}

// reader collects problems instead of stopping at the first one.
type reader struct{ errs []error }

func (r *reader) must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		r.errs = append(r.errs, fmt.Errorf("missing required env var: %s", key))
	}
	return v
}

func (r *reader) int(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("invalid int for %s: %q", key, v))
		return def
	}
	return n
}

func (r *reader) dur(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("invalid duration for %s: %q", key, v))
		return def
	}
	return d
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}
