package config

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	LogLevel string `env:"LOG_LEVEL, default=info"`

	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Auth     AuthConfig
	Push     PushConfig
	Dispatch DispatchConfig
	Cache    CacheConfig
	Webhook  WebhookConfig
}

type ServerConfig struct {
	Host           string   `env:"SERVER_HOST, default=0.0.0.0"`
	Port           int      `env:"SERVER_PORT, default=8080"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS, default=*"`
	RateLimitRPS   float64  `env:"RATE_LIMIT_RPS, default=100"`
	RateLimitBurst int      `env:"RATE_LIMIT_BURST, default=200"`
}

type DatabaseConfig struct {
	URL            string `env:"DATABASE_URL"`
	MaxConns       int    `env:"DB_MAX_CONNS, default=20"`
	MinConns       int    `env:"DB_MIN_CONNS, default=5"`
	MigrationsPath string `env:"MIGRATIONS_PATH, default=migrations"`

	MaxConnLifetime  time.Duration `env:"DB_MAX_CONN_LIFETIME, default=1h"`
	StatementTimeout time.Duration `env:"DB_STATEMENT_TIMEOUT, default=15s"`
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR, default=localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB, default=0"`
}

type AuthConfig struct {
	JWTSecret        string `env:"JWT_SECRET"`
	ServiceKeyHeader string `env:"SERVICE_KEY_HEADER, default=X-Service-Key"`
	// ServiceKeyHash is the hex sha256 of the key the marketplace backend
	// presents on /internal routes.
	ServiceKeyHash string `env:"SERVICE_KEY_HASH"`
}

type PushConfig struct {
	Enabled                bool   `env:"PUSH_ENABLED, default=false"`
	Region                 string `env:"PUSH_SNS_REGION, default=us-east-1"`
	PlatformApplicationARN string `env:"PUSH_SNS_PLATFORM_APPLICATION_ARN"`
}

type DispatchConfig struct {
	// PushConcurrency bounds in-flight push enqueues per dispatched event.
	PushConcurrency   int           `env:"DISPATCH_PUSH_CONCURRENCY, default=8"`
	PushTimeout       time.Duration `env:"DISPATCH_PUSH_TIMEOUT, default=5s"`
	WorkerConcurrency int           `env:"WORKER_CONCURRENCY, default=10"`
}

type CacheConfig struct {
	RoleSnapshotTTL time.Duration `env:"ROLE_SNAPSHOT_TTL, default=10m"`
}

type WebhookConfig struct {
	Timeout  time.Duration `env:"WEBHOOK_TIMEOUT, default=10s"`
	Attempts uint          `env:"WEBHOOK_ATTEMPTS, default=3"`
}

func Load(ctx context.Context) (*Config, error) {
	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return nil, fmt.Errorf("process env: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func (c *Config) Validate() error {
	var missing []string
	if c.Database.URL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if c.Auth.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	if c.Auth.ServiceKeyHash == "" {
		missing = append(missing, "SERVICE_KEY_HASH")
	}
	if c.Push.Enabled && c.Push.PlatformApplicationARN == "" {
		missing = append(missing, "PUSH_SNS_PLATFORM_APPLICATION_ARN")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required env vars: %s", strings.Join(missing, ", "))
	}
	return nil
}

func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(strings.TrimSpace(c.LogLevel)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
