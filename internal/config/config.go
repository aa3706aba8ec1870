package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store backends.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreDynamo   = "dynamodb"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Store        StoreConfig
	Postgres     PostgresConfig
	Dynamo       DynamoConfig
	Redis        RedisConfig
	Live         LiveConfig
	Logger       LoggerConfig
	Auth         AuthConfig
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

// StoreConfig selects the complaint store backend.
type StoreConfig struct {
	Backend string
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	MigrationsDir  string
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// DynamoConfig holds DynamoDB table settings.
type DynamoConfig struct {
	Table    string
	Region   string
	Endpoint string
}

// RedisConfig holds Redis connection values. An empty Addr disables Redis.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LiveConfig configures change fan-out for live subscribers.
type LiveConfig struct {
	Channel string
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines bearer token verification parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
}

// NotificationConfig configures outbound event webhooks. An empty URL
// disables delivery.
type NotificationConfig struct {
	WebhookURL            string
	WebhookTimeoutSeconds int
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	dsn := os.Getenv("POSTGRES_DSN")
	backend := strings.ToLower(getEnv("STORE_BACKEND", defaultBackend(dsn)))
	switch backend {
	case StoreMemory, StorePostgres, StoreDynamo:
	default:
		return nil, fmt.Errorf("invalid STORE_BACKEND %q", backend)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "complaint-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Store: StoreConfig{Backend: backend},
		Postgres: PostgresConfig{
			DSN:            dsn,
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			MigrationsDir:  getEnv("POSTGRES_MIGRATIONS_DIR", "migrations"),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Dynamo: DynamoConfig{
			Table:    getEnv("DYNAMODB_TABLE", "complaints"),
			Region:   os.Getenv("DYNAMODB_REGION"),
			Endpoint: os.Getenv("DYNAMODB_ENDPOINT"),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Live: LiveConfig{
			Channel: getEnv("LIVE_CHANNEL", "complaints:changed"),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
		},
		Notification: NotificationConfig{
			WebhookURL:            os.Getenv("NOTIFY_WEBHOOK_URL"),
			WebhookTimeoutSeconds: getEnvAsInt("NOTIFY_WEBHOOK_TIMEOUT_SECONDS", 5),
		},
	}

	if cfg.Store.Backend == StorePostgres && cfg.Postgres.DSN == "" {
		return nil, fmt.Errorf("STORE_BACKEND=postgres requires POSTGRES_DSN")
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

// WebhookTimeout returns the per-delivery timeout, defaulting to five seconds.
func (n NotificationConfig) WebhookTimeout() time.Duration {
	if n.WebhookTimeoutSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(n.WebhookTimeoutSeconds) * time.Second
}

func defaultBackend(dsn string) string {
	if dsn != "" {
		return StorePostgres
	}
	return StoreMemory
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
