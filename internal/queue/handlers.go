package queue

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/hibiken/asynq"
)

// HandlersRegistry routes task types to worker handlers. Every handler runs
// behind LogTask.
type HandlersRegistry struct {
	mux *asynq.ServeMux
}

func NewHandlersRegistry() *HandlersRegistry {
	mux := asynq.NewServeMux()
	mux.Use(LogTask)
	return &HandlersRegistry{mux: mux}
}

func (r *HandlersRegistry) Register(taskType string, handler asynq.Handler) {
	r.mux.Handle(taskType, handler)
}

func (r *HandlersRegistry) Mux() *asynq.ServeMux {
	return r.mux
}

// LogTask logs each failed attempt with its retry position. A failure on
// the last retry is logged at error, earlier ones at warn.
func LogTask(next asynq.Handler) asynq.Handler {
	return asynq.HandlerFunc(func(ctx context.Context, t *asynq.Task) error {
		start := time.Now()
		err := next.ProcessTask(ctx, t)
		if err == nil {
			slog.Debug("task done", "type", t.Type(), "duration_ms", time.Since(start).Milliseconds())
			return nil
		}

		retried, _ := asynq.GetRetryCount(ctx)
		maxRetry, _ := asynq.GetMaxRetry(ctx)
		id, _ := asynq.GetTaskID(ctx)

		level := slog.LevelWarn
		if retried >= maxRetry {
			level = slog.LevelError
		}
		slog.Log(ctx, level, "task failed",
			"type", t.Type(),
			"task_id", id,
			"retried", retried,
			"max_retry", maxRetry,
			"error", err,
		)
		return err
	})
}

// NewServer builds the asynq server the worker binary runs. Push sends are
// weighted above webhook deliveries.
func NewServer(opt asynq.RedisClientOpt, concurrency int) *asynq.Server {
	return asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			QueuePush:     6,
			QueueWebhooks: 3,
			"default":     1,
		},
		Logger:   slogAdapter{},
		LogLevel: asynq.WarnLevel,
	})
}

// slogAdapter routes asynq's own logging through slog.
type slogAdapter struct{}

func (slogAdapter) Debug(args ...any) { slog.Debug(sprint(args)) }
func (slogAdapter) Info(args ...any)  { slog.Info(sprint(args)) }
func (slogAdapter) Warn(args ...any)  { slog.Warn(sprint(args)) }
func (slogAdapter) Error(args ...any) { slog.Error(sprint(args)) }
func (slogAdapter) Fatal(args ...any) {
	slog.Error(sprint(args))
	os.Exit(1)
}

func sprint(args []any) string { return fmt.Sprint(args...) }
