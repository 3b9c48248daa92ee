package workers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/nikhilbhutani/contractorhub/internal/metrics"
	"github.com/nikhilbhutani/contractorhub/internal/models"
	"github.com/nikhilbhutani/contractorhub/internal/push"
	"github.com/nikhilbhutani/contractorhub/internal/queue"
)

type SubscriptionStore interface {
	List(ctx context.Context, userID uuid.UUID) ([]models.PushSubscription, error)
	Forget(ctx context.Context, endpointARN string) error
}

type Publisher interface {
	Publish(ctx context.Context, endpointARN string, msg push.Message) error
}

// PushWorker fans a push:send task out to every device the user registered.
type PushWorker struct {
	subs      SubscriptionStore
	publisher Publisher
}

func NewPushWorker(subs SubscriptionStore, publisher Publisher) *PushWorker {
	return &PushWorker{subs: subs, publisher: publisher}
}

// ProcessTask fails only when no device accepted the message, so a retry does
// not re-send to endpoints that already succeeded on a partial failure.
func (w *PushWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload queue.PushSendPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w: %w", err, asynq.SkipRetry)
	}

	subs, err := w.subs.List(ctx, payload.UserID)
	if err != nil {
		return fmt.Errorf("list push subscriptions: %w", err)
	}
	if len(subs) == 0 {
		return nil
	}

	msg := push.Message{
		Action:   payload.Action,
		Title:    payload.Title,
		Body:     payload.Body,
		EntityID: payload.EntityID,
		Data:     payload.Data,
	}

	var sent int
	var errs []error
	for _, sub := range subs {
		err := w.publisher.Publish(ctx, sub.EndpointARN, msg)
		metrics.DeliveriesTotal.WithLabelValues(metrics.ChannelPush, metrics.Result(err)).Inc()
		switch {
		case err == nil:
			sent++
		case errors.Is(err, push.ErrEndpointDisabled):
			slog.Debug("dropping disabled push endpoint", "user_id", payload.UserID, "subscription_id", sub.ID)
			if err := w.subs.Forget(ctx, sub.EndpointARN); err != nil {
				slog.Warn("forget push endpoint failed", "subscription_id", sub.ID, "error", err)
			}
		default:
			errs = append(errs, err)
		}
	}

	if sent == 0 && len(errs) > 0 {
		return fmt.Errorf("push to user %s: %w", payload.UserID, errors.Join(errs...))
	}
	if len(errs) > 0 {
		slog.Debug("push partially delivered", "user_id", payload.UserID, "sent", sent, "failed", len(errs))
	}
	return nil
}
