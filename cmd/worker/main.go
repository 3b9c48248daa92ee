package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"

	"github.com/nikhilbhutani/contractorhub/internal/config"
	"github.com/nikhilbhutani/contractorhub/internal/database"
	"github.com/nikhilbhutani/contractorhub/internal/push"
	"github.com/nikhilbhutani/contractorhub/internal/queue"
	"github.com/nikhilbhutani/contractorhub/internal/queue/workers"
	"github.com/nikhilbhutani/contractorhub/internal/webhook"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to read .env", "error", err)
	}

	ctx := context.Background()

	cfg, err := config.Load(ctx)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if cfg.Database.URL == "" {
		slog.Error("invalid config", "error", "missing required env vars: DATABASE_URL")
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	db, err := database.NewPool(ctx, cfg.Database)
	if err != nil {
		slog.Error("database unavailable", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	registry := queue.NewHandlersRegistry()

	deliverer := webhook.NewDeliverer(db, &http.Client{Timeout: cfg.Webhook.Timeout}, cfg.Webhook.Attempts)
	registry.Register(queue.TypeWebhookDeliver, asynq.HandlerFunc(workers.NewWebhookWorker(deliverer).ProcessTask))

	if cfg.Push.Enabled {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Push.Region))
		if err != nil {
			slog.Error("failed to load AWS config", "error", err)
			os.Exit(1)
		}
		gateway := push.NewGateway(awsCfg, cfg.Push.PlatformApplicationARN)
		pushWorker := workers.NewPushWorker(push.NewSubscriptions(db, gateway), gateway)
		registry.Register(queue.TypePushSend, asynq.HandlerFunc(pushWorker.ProcessTask))
	}

	srv := queue.NewServer(queue.RedisOpt(cfg.Redis), cfg.Dispatch.WorkerConcurrency)

	slog.Info("starting worker", "concurrency", cfg.Dispatch.WorkerConcurrency, "push", cfg.Push.Enabled)
	if err := srv.Run(registry.Mux()); err != nil {
		slog.Error("worker error", "error", err)
		os.Exit(1)
	}
}
