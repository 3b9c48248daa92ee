// Package dispatch turns domain events into notifications. Each event is
// resolved to a recipient set, written through the object, change and notify
// steps, then handed to the best-effort delivery channels.
//
// Errors from recipient resolution and the three record steps are returned to
// the caller. Push and webhook failures are logged and never returned.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nikhilbhutani/contractorhub/internal/metrics"
	"github.com/nikhilbhutani/contractorhub/internal/models"
	"github.com/nikhilbhutani/contractorhub/internal/notification"
	"github.com/nikhilbhutani/contractorhub/internal/push"
	"github.com/nikhilbhutani/contractorhub/internal/webhook"
)

var (
	ErrUnknownTarget = errors.New("unknown admin alert target")
	ErrUnknownStatus = errors.New("unknown order status")
)

type Notifier interface {
	GetOrCreateObject(ctx context.Context, entityID uuid.UUID, action string) (notification.ObjectRef, error)
	RecordChange(ctx context.Context, objectID, actorID uuid.UUID) error
	Notify(ctx context.Context, objectID uuid.UUID, recipientIDs []uuid.UUID) (int, error)
}

// Members resolves contractor membership through the role evaluator.
type Members interface {
	MembersWithPermission(ctx context.Context, contractorID uuid.UUID, perm models.Permission) ([]uuid.UUID, error)
	MemberIDs(ctx context.Context, contractorID uuid.UUID) ([]uuid.UUID, error)
}

// Directory answers site-wide recipient queries for admin alerts.
type Directory interface {
	AllUserIDs(ctx context.Context) ([]uuid.UUID, error)
	SiteAdminIDs(ctx context.Context) ([]uuid.UUID, error)
	ContractorOwnerIDs(ctx context.Context) ([]uuid.UUID, error)
	AllContractorMemberIDs(ctx context.Context) ([]uuid.UUID, error)
}

type Webhooks interface {
	Dispatch(ctx context.Context, contractorID *uuid.UUID, userIDs []uuid.UUID, ev webhook.Event) (int, error)
}

type Dispatcher struct {
	notifier Notifier
	members  Members
	dir      Directory
	push     push.Sender
	webhooks Webhooks
}

// New wires a dispatcher. webhooks may be nil to disable webhook delivery.
func New(n Notifier, m Members, dir Directory, sender push.Sender, webhooks Webhooks) *Dispatcher {
	if sender == nil {
		sender = push.NopSender{}
	}
	return &Dispatcher{notifier: n, members: m, dir: dir, push: sender, webhooks: webhooks}
}

// delivery is one resolved event ready to be recorded and delivered.
type delivery struct {
	event        string
	action       string
	entityID     uuid.UUID
	actorID      uuid.UUID
	recipients   []uuid.UUID
	contractorID *uuid.UUID
	title        string
	body         string
	data         map[string]string
}

// Result reports what one dispatch wrote.
type Result struct {
	ObjectID   uuid.UUID   `json:"notification_object_id,omitempty"`
	Recipients []uuid.UUID `json:"recipients"`
	Created    int         `json:"created"`
}

func (d *Dispatcher) deliver(ctx context.Context, dl delivery) (Result, error) {
	start := time.Now()
	defer func() {
		metrics.DispatchDuration.WithLabelValues(dl.event).Observe(time.Since(start).Seconds())
	}()

	recipients := without(dedupe(dl.recipients), dl.actorID)
	res := Result{Recipients: recipients}
	if len(recipients) == 0 {
		return res, nil
	}

	obj, err := d.notifier.GetOrCreateObject(ctx, dl.entityID, dl.action)
	if err != nil {
		return res, fmt.Errorf("%s: %w", dl.event, err)
	}
	res.ObjectID = obj.ID

	// System events carry no actor and leave no change row.
	if dl.actorID != uuid.Nil {
		if err := d.notifier.RecordChange(ctx, obj.ID, dl.actorID); err != nil {
			return res, fmt.Errorf("%s: %w", dl.event, err)
		}
	}

	created, err := d.notifier.Notify(ctx, obj.ID, recipients)
	if err != nil {
		return res, fmt.Errorf("%s: %w", dl.event, err)
	}
	res.Created = created
	metrics.NotificationsCreatedTotal.WithLabelValues(dl.action).Add(float64(created))
	metrics.NotificationsCoalescedTotal.WithLabelValues(dl.action).Add(float64(len(recipients) - created))

	d.sendPush(ctx, dl, recipients)
	d.sendWebhooks(ctx, dl, recipients)

	return res, nil
}

func (d *Dispatcher) sendPush(ctx context.Context, dl delivery, recipients []uuid.UUID) {
	msg := push.Message{
		Action:   dl.action,
		Title:    dl.title,
		Body:     dl.body,
		EntityID: dl.entityID,
		Data:     dl.data,
	}

	var err error
	if len(recipients) == 1 {
		err = d.push.Send(ctx, recipients[0], msg)
	} else {
		err = d.push.SendBatch(ctx, recipients, msg)
	}

	failed := countErrors(err)
	metrics.DeliveriesTotal.WithLabelValues(metrics.ChannelPushEnqueue, "ok").Add(float64(len(recipients) - failed))
	if err != nil {
		metrics.DeliveriesTotal.WithLabelValues(metrics.ChannelPushEnqueue, "error").Add(float64(failed))
		slog.Debug("push delivery failed", "event", dl.event, "entity_id", dl.entityID, "failed", failed, "error", err)
	}
}

func (d *Dispatcher) sendWebhooks(ctx context.Context, dl delivery, recipients []uuid.UUID) {
	if d.webhooks == nil {
		return
	}
	_, err := d.webhooks.Dispatch(ctx, dl.contractorID, recipients, webhook.Event{
		Action:       dl.action,
		EntityID:     dl.entityID,
		ContractorID: dl.contractorID,
		ActorID:      dl.actorID,
		Title:        dl.title,
		Body:         dl.body,
		OccurredAt:   time.Now().UTC(),
		Data:         dl.data,
	})
	if err != nil {
		slog.Debug("webhook enqueue failed", "event", dl.event, "entity_id", dl.entityID, "error", err)
	}
}

// sellerSide resolves who acts for the selling party of an order or offer:
// the assigned user when set, otherwise contractor members holding perm.
func (d *Dispatcher) sellerSide(ctx context.Context, contractorID, assignedID *uuid.UUID, perm models.Permission) ([]uuid.UUID, error) {
	if assignedID != nil && *assignedID != uuid.Nil {
		return []uuid.UUID{*assignedID}, nil
	}
	if contractorID == nil {
		return nil, nil
	}
	ids, err := d.members.MembersWithPermission(ctx, *contractorID, perm)
	if err != nil {
		return nil, fmt.Errorf("resolve contractor recipients: %w", err)
	}
	return ids, nil
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func without(ids []uuid.UUID, actorID uuid.UUID) []uuid.UUID {
	out := ids[:0]
	for _, id := range ids {
		if id != actorID {
			out = append(out, id)
		}
	}
	return out
}

func countErrors(err error) int {
	if err == nil {
		return 0
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		return len(joined.Unwrap())
	}
	return 1
}
