package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/nikhilbhutani/contractorhub/internal/config"
)

const (
	QueuePush     = "push"
	QueueWebhooks = "webhooks"
)

// Enqueuer is the subset of *asynq.Client used here.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
	Close() error
}

type Client struct {
	client Enqueuer
}

func NewClient(cfg config.RedisConfig) *Client {
	return NewClientWith(asynq.NewClient(RedisOpt(cfg)))
}

func NewClientWith(e Enqueuer) *Client {
	return &Client{client: e}
}

func RedisOpt(cfg config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
}

func (c *Client) Close() error {
	return c.client.Close()
}

func (c *Client) EnqueuePush(ctx context.Context, payload PushSendPayload) error {
	return c.enqueue(ctx, TypePushSend, payload,
		asynq.Queue(QueuePush), asynq.MaxRetry(3), asynq.Timeout(30*time.Second))
}

func (c *Client) EnqueueWebhookDeliver(ctx context.Context, payload WebhookDeliverPayload) error {
	return c.enqueue(ctx, TypeWebhookDeliver, payload,
		asynq.Queue(QueueWebhooks), asynq.MaxRetry(5), asynq.Timeout(time.Minute))
}

func (c *Client) enqueue(ctx context.Context, taskType string, payload any, opts ...asynq.Option) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	task := asynq.NewTask(taskType, data)
	_, err = c.client.EnqueueContext(ctx, task, opts...)
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", taskType, err)
	}
	return nil
}
