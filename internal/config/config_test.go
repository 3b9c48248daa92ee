package config

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/contractorhub")

	cfg, err := Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.Addr())
	assert.Equal(t, 20, cfg.Database.MaxConns)
	assert.Equal(t, "X-Service-Key", cfg.Auth.ServiceKeyHeader)
	assert.Equal(t, 8, cfg.Dispatch.PushConcurrency)
	assert.Equal(t, 5*time.Second, cfg.Dispatch.PushTimeout)
	assert.Equal(t, 10*time.Minute, cfg.Cache.RoleSnapshotTTL)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.False(t, cfg.Push.Enabled)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("DISPATCH_PUSH_CONCURRENCY", "2")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example,https://b.example")

	cfg, err := Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 2, cfg.Dispatch.PushConcurrency)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.AllowedOrigins)
}

func TestLoad_InvalidInt(t *testing.T) {
	t.Setenv("SERVER_PORT", "not-a-port")

	_, err := Load(context.Background())
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := &Config{}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
	assert.Contains(t, err.Error(), "JWT_SECRET")
	assert.Contains(t, err.Error(), "SERVICE_KEY_HASH")

	cfg = &Config{
		Database: DatabaseConfig{URL: "postgres://x"},
		Auth:     AuthConfig{JWTSecret: "s", ServiceKeyHash: "h"},
		Push:     PushConfig{Enabled: true},
	}
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PUSH_SNS_PLATFORM_APPLICATION_ARN")

	cfg.Push.PlatformApplicationARN = "arn:aws:sns:us-east-1:1:app/GCM/market"
	assert.NoError(t, cfg.Validate())
}

func TestSlogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, (&Config{LogLevel: "DEBUG"}).SlogLevel())
	assert.Equal(t, slog.LevelWarn, (&Config{LogLevel: "warning"}).SlogLevel())
	assert.Equal(t, slog.LevelInfo, (&Config{LogLevel: ""}).SlogLevel())
}
