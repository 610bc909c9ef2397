// Package config loads Gestly runtime configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"

	"github.com/gestly/gestly/pkg/logger"
)

// Store backends.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreSupabase = "supabase"
)

// Config is the root configuration.
type Config struct {
	Server       ServerConfig
	Database     DatabaseConfig
	Supabase     SupabaseConfig
	Redis        RedisConfig
	RateLimit    RateLimitConfig
	Stripe       StripeConfig
	Jobs         JobsConfig
	Integrations IntegrationsConfig
	Logging      LoggingConfig
	PlansFile    string `env:"GESTLY_PLANS_FILE"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Addr            string        `env:"GESTLY_HTTP_ADDR,default=:8080"`
	ReadTimeout     time.Duration `env:"GESTLY_HTTP_READ_TIMEOUT,default=15s"`
	WriteTimeout    time.Duration `env:"GESTLY_HTTP_WRITE_TIMEOUT,default=30s"`
	ShutdownTimeout time.Duration `env:"GESTLY_HTTP_SHUTDOWN_TIMEOUT,default=10s"`
	CORSOrigins     string        `env:"GESTLY_CORS_ORIGINS"`
	AuditLogPath    string        `env:"GESTLY_AUDIT_LOG"`
}

// AllowedOrigins splits the comma separated CORS origin list.
func (s ServerConfig) AllowedOrigins() []string {
	return splitList(s.CORSOrigins)
}

// DatabaseConfig selects and tunes the persistence backend.
type DatabaseConfig struct {
	Store           string        `env:"GESTLY_STORE,default=memory"`
	URL             string        `env:"GESTLY_DATABASE_URL"`
	MaxOpenConns    int           `env:"GESTLY_DB_MAX_OPEN,default=10"`
	MaxIdleConns    int           `env:"GESTLY_DB_MAX_IDLE,default=5"`
	ConnMaxLifetime time.Duration `env:"GESTLY_DB_CONN_MAX_LIFETIME,default=30m"`
	AutoMigrate     bool          `env:"GESTLY_DB_AUTO_MIGRATE,default=false"`
}

// SupabaseConfig holds the hosted project credentials.
type SupabaseConfig struct {
	URL        string `env:"SUPABASE_URL"`
	ServiceKey string `env:"SUPABASE_SERVICE_KEY"`
	JWTSecret  string `env:"SUPABASE_JWT_SECRET"`
}

// RedisConfig enables the shared rate limiter when URL is set.
type RedisConfig struct {
	URL string `env:"GESTLY_REDIS_URL"`
}

// RateLimitConfig applies to the public API. Both backends count requests
// in fixed one-minute windows.
type RateLimitConfig struct {
	RequestsPerMinute int `env:"GESTLY_RATE_LIMIT_RPM,default=120"`
}

// StripeConfig configures webhook verification.
type StripeConfig struct {
	WebhookSecret string        `env:"STRIPE_WEBHOOK_SECRET"`
	Tolerance     time.Duration `env:"STRIPE_WEBHOOK_TOLERANCE,default=5m"`
}

// JobsConfig schedules background work.
type JobsConfig struct {
	Enabled          bool          `env:"GESTLY_JOBS_ENABLED,default=true"`
	ReminderSchedule string        `env:"GESTLY_REMINDER_SCHEDULE,default=@every 5m"`
	ReminderLead     time.Duration `env:"GESTLY_REMINDER_LEAD,default=24h"`
	CampaignSchedule string        `env:"GESTLY_CAMPAIGN_SCHEDULE,default=@every 1m"`
}

// IntegrationsConfig configures outbound calls.
type IntegrationsConfig struct {
	WebhookMasterSecret string        `env:"GESTLY_WEBHOOK_MASTER_SECRET"`
	Timeout             time.Duration `env:"GESTLY_INTEGRATION_TIMEOUT,default=10s"`
	// SendRate caps messages per second through one messaging gateway.
	// Zero disables pacing.
	SendRate  float64 `env:"GESTLY_GATEWAY_SEND_RATE,default=10"`
	SendBurst int     `env:"GESTLY_GATEWAY_SEND_BURST,default=10"`
}

// LoggingConfig mirrors logger.LoggingConfig.
type LoggingConfig struct {
	Level      string `env:"GESTLY_LOG_LEVEL,default=info"`
	Format     string `env:"GESTLY_LOG_FORMAT,default=json"`
	Output     string `env:"GESTLY_LOG_OUTPUT,default=stdout"`
	FilePrefix string `env:"GESTLY_LOG_FILE_PREFIX,default=gestly"`
}

// Logger converts to the logger package configuration.
func (l LoggingConfig) Logger() logger.LoggingConfig {
	return logger.LoggingConfig{Level: l.Level, Format: l.Format, Output: l.Output, FilePrefix: l.FilePrefix}
}

// Load reads the configuration and validates it for serving.
func Load(envFiles ...string) (*Config, error) {
	cfg, err := Read(envFiles...)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Read loads .env files (when present) and decodes the environment without
// the server-only checks. Tools that only touch the store use it.
func Read(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("decode environment: %w", err)
	}
	cfg.Database.Store = strings.ToLower(strings.TrimSpace(cfg.Database.Store))
	if cfg.Database.Store == "" {
		cfg.Database.Store = StoreMemory
	}
	return &cfg, nil
}

// Validate checks cross-field requirements.
func (c *Config) Validate() error {
	switch c.Database.Store {
	case "", StoreMemory:
		c.Database.Store = StoreMemory
	case StorePostgres:
		if c.Database.URL == "" {
			return fmt.Errorf("GESTLY_DATABASE_URL is required when GESTLY_STORE=postgres")
		}
	case StoreSupabase:
		if c.Supabase.URL == "" || c.Supabase.ServiceKey == "" {
			return fmt.Errorf("SUPABASE_URL and SUPABASE_SERVICE_KEY are required when GESTLY_STORE=supabase")
		}
	default:
		return fmt.Errorf("GESTLY_STORE: unknown backend %q", c.Database.Store)
	}
	if c.Supabase.JWTSecret == "" {
		return fmt.Errorf("SUPABASE_JWT_SECRET is required")
	}
	if c.RateLimit.RequestsPerMinute <= 0 {
		return fmt.Errorf("GESTLY_RATE_LIMIT_RPM must be positive")
	}
	if c.Jobs.ReminderLead < 0 {
		return fmt.Errorf("GESTLY_REMINDER_LEAD must not be negative")
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
