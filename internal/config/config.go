package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	SLA          SLAConfig
	Workflow     WorkflowConfig
	Notification NotificationConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines bearer verification and capability caching parameters.
type AuthConfig struct {
	JWTSecret                 string
	AccessTokenTTLMinutes     int
	CapabilityCacheTTLSeconds int
}

// SLAConfig drives deadline computation and the breach monitor.
type SLAConfig struct {
	MonitorSchedule string
	BusinessHours   bool
	WorkdayStart    int
	WorkdayEnd      int
	Timezone        string
}

// WorkflowConfig toggles side effects of the area-change workflow.
type WorkflowConfig struct {
	ApplyAreaChangeOnApproval bool
}

// NotificationConfig configures outbound event webhooks. An empty URL disables delivery.
type NotificationConfig struct {
	WebhookURL            string
	WebhookSecret         string
	WebhookTimeoutSeconds int
	WebhookMaxAttempts    int
	WebhookQueueSize      int
	WebhookWorkers        int
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "incident-router"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:                 getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes:     getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			CapabilityCacheTTLSeconds: getEnvAsInt("AUTH_CAPABILITY_CACHE_TTL_SECONDS", 300),
		},
		SLA: SLAConfig{
			MonitorSchedule: getEnv("SLA_MONITOR_SCHEDULE", "@every 1m"),
			BusinessHours:   getEnvAsBool("SLA_BUSINESS_HOURS", false),
			WorkdayStart:    getEnvAsInt("SLA_WORKDAY_START", 8),
			WorkdayEnd:      getEnvAsInt("SLA_WORKDAY_END", 17),
			Timezone:        getEnv("SLA_TIMEZONE", "UTC"),
		},
		Workflow: WorkflowConfig{
			ApplyAreaChangeOnApproval: getEnvAsBool("AREA_CHANGE_APPLY_ON_APPROVAL", true),
		},
		Notification: NotificationConfig{
			WebhookURL:            getEnv("NOTIFY_WEBHOOK_URL", ""),
			WebhookSecret:         os.Getenv("NOTIFY_WEBHOOK_SECRET"),
			WebhookTimeoutSeconds: getEnvAsInt("NOTIFY_WEBHOOK_TIMEOUT_SECONDS", 10),
			WebhookMaxAttempts:    getEnvAsInt("NOTIFY_WEBHOOK_MAX_ATTEMPTS", 3),
			WebhookQueueSize:      getEnvAsInt("NOTIFY_WEBHOOK_QUEUE_SIZE", 256),
			WebhookWorkers:        getEnvAsInt("NOTIFY_WEBHOOK_WORKERS", 2),
		},
	}

	if cfg.SLA.BusinessHours && cfg.SLA.WorkdayStart >= cfg.SLA.WorkdayEnd {
		return nil, fmt.Errorf("invalid SLA workday: start %d must be before end %d", cfg.SLA.WorkdayStart, cfg.SLA.WorkdayEnd)
	}
	if _, err := time.LoadLocation(cfg.SLA.Timezone); err != nil {
		return nil, fmt.Errorf("invalid SLA_TIMEZONE: %w", err)
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// CapabilityCacheTTL returns how long a role's capability set may be served from cache.
func (a AuthConfig) CapabilityCacheTTL() time.Duration {
	if a.CapabilityCacheTTLSeconds <= 0 {
		return 0
	}
	return time.Duration(a.CapabilityCacheTTLSeconds) * time.Second
}

// WebhookTimeout returns the per-attempt HTTP timeout for webhook delivery.
func (n NotificationConfig) WebhookTimeout() time.Duration {
	if n.WebhookTimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(n.WebhookTimeoutSeconds) * time.Second
}

// Location returns the SLA calendar time zone. Load already validated it.
func (s SLAConfig) Location() *time.Location {
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
