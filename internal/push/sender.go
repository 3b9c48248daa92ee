// Package push delivers best-effort mobile push notifications. Callers on the
// request path enqueue through a Sender; the worker publishes through SNS.
package push

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nikhilbhutani/contractorhub/internal/queue"
	"golang.org/x/sync/errgroup"
)

type Message struct {
	Action   string
	Title    string
	Body     string
	EntityID uuid.UUID
	Data     map[string]string
}

type Sender interface {
	Send(ctx context.Context, userID uuid.UUID, msg Message) error
	// SendBatch attempts every recipient and reports all failures together.
	SendBatch(ctx context.Context, userIDs []uuid.UUID, msg Message) error
}

type Enqueuer interface {
	EnqueuePush(ctx context.Context, payload queue.PushSendPayload) error
}

// QueueSender hands each recipient to the outbound queue. A batch is fanned
// out with at most concurrency enqueues in flight, each bounded by timeout.
type QueueSender struct {
	queue       Enqueuer
	concurrency int
	timeout     time.Duration
}

func NewQueueSender(q Enqueuer, concurrency int, timeout time.Duration) *QueueSender {
	if concurrency < 1 {
		concurrency = 1
	}
	return &QueueSender{queue: q, concurrency: concurrency, timeout: timeout}
}

func (s *QueueSender) Send(ctx context.Context, userID uuid.UUID, msg Message) error {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	err := s.queue.EnqueuePush(ctx, queue.PushSendPayload{
		UserID:   userID,
		Action:   msg.Action,
		Title:    msg.Title,
		Body:     msg.Body,
		EntityID: msg.EntityID,
		Data:     msg.Data,
	})
	if err != nil {
		return fmt.Errorf("push to %s: %w", userID, err)
	}
	return nil
}

func (s *QueueSender) SendBatch(ctx context.Context, userIDs []uuid.UUID, msg Message) error {
	errs := make([]error, len(userIDs))

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, id := range userIDs {
		g.Go(func() error {
			errs[i] = s.Send(ctx, id, msg)
			return nil
		})
	}
	_ = g.Wait()

	return errors.Join(errs...)
}

// NopSender drops every message. It stands in when push is disabled.
type NopSender struct{}

func (NopSender) Send(context.Context, uuid.UUID, Message) error { return nil }

func (NopSender) SendBatch(context.Context, []uuid.UUID, Message) error { return nil }
