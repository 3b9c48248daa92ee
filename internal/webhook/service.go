package webhook

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/nikhilbhutani/contractorhub/internal/audit"
	"github.com/nikhilbhutani/contractorhub/internal/database"
	"github.com/nikhilbhutani/contractorhub/internal/models"
	"github.com/nikhilbhutani/contractorhub/internal/queue"
)

var (
	ErrNotFound      = errors.New("webhook not found")
	ErrUnknownAction = errors.New("unknown notification action")
)

type Enqueuer interface {
	EnqueueWebhookDeliver(ctx context.Context, payload queue.WebhookDeliverPayload) error
}

type Auditor interface {
	Record(ctx context.Context, e audit.Entry) error
}

// Owner is either a contractor or a single user; exactly one field is set.
type Owner struct {
	ContractorID *uuid.UUID
	UserID       *uuid.UUID
}

func ContractorOwner(id uuid.UUID) Owner { return Owner{ContractorID: &id} }

func UserOwner(id uuid.UUID) Owner { return Owner{UserID: &id} }

func (o Owner) where(first int) (string, any) {
	if o.ContractorID != nil {
		return fmt.Sprintf("contractor_id = $%d", first), *o.ContractorID
	}
	return fmt.Sprintf("user_id = $%d", first), *o.UserID
}

type Service struct {
	db    database.Querier
	queue Enqueuer
	audit Auditor
}

func NewService(db database.Querier, q Enqueuer, auditor Auditor) *Service {
	return &Service{db: db, queue: q, audit: auditor}
}

type CreateRequest struct {
	Name    string   `json:"name" validate:"required,max=100"`
	URL     string   `json:"url" validate:"required,url"`
	Actions []string `json:"actions" validate:"required,min=1,dive,required"`
}

const webhookColumns = `webhook_id, contractor_id, user_id, name, url, actions, is_active, created_at`

func scanWebhook(row pgx.Row) (models.Webhook, error) {
	var wh models.Webhook
	err := row.Scan(&wh.ID, &wh.ContractorID, &wh.UserID, &wh.Name, &wh.URL, &wh.Actions, &wh.IsActive, &wh.CreatedAt)
	return wh, err
}

// Create stores a webhook and returns it with its signing secret, which is
// not readable afterwards.
func (s *Service) Create(ctx context.Context, owner Owner, actorID uuid.UUID, req CreateRequest) (*models.Webhook, error) {
	for _, a := range req.Actions {
		if !models.IsNotificationAction(a) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownAction, a)
		}
	}

	secret, err := generateSecret()
	if err != nil {
		return nil, fmt.Errorf("generate secret: %w", err)
	}

	actionsJSON, err := json.Marshal(req.Actions)
	if err != nil {
		return nil, fmt.Errorf("marshal actions: %w", err)
	}

	wh, err := scanWebhook(s.db.QueryRow(ctx,
		`INSERT INTO webhooks (contractor_id, user_id, name, url, actions, secret, is_active)
		 VALUES ($1, $2, $3, $4, $5, $6, true)
		 RETURNING `+webhookColumns,
		owner.ContractorID, owner.UserID, req.Name, req.URL, actionsJSON, secret,
	))
	if err != nil {
		return nil, fmt.Errorf("insert webhook: %w", err)
	}
	wh.Secret = secret

	err = s.audit.Record(ctx, audit.Entry{
		Action:       models.AuditWebhookCreated,
		ActorID:      actorID,
		ContractorID: owner.ContractorID,
		SubjectType:  "webhook",
		SubjectID:    wh.ID.String(),
		Metadata:     map[string]any{"name": wh.Name, "url": wh.URL, "actions": wh.Actions},
	})
	if err != nil {
		return &wh, fmt.Errorf("audit webhook create: %w", err)
	}
	return &wh, nil
}

func (s *Service) List(ctx context.Context, owner Owner) ([]models.Webhook, error) {
	cond, arg := owner.where(1)
	rows, err := s.db.Query(ctx,
		"SELECT "+webhookColumns+" FROM webhooks WHERE "+cond+" ORDER BY created_at DESC", arg,
	)
	if err != nil {
		return nil, fmt.Errorf("list webhooks: %w", err)
	}
	hooks, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Webhook, error) {
		return scanWebhook(row)
	})
	if err != nil {
		return nil, fmt.Errorf("scan webhook: %w", err)
	}
	if hooks == nil {
		hooks = []models.Webhook{}
	}
	return hooks, nil
}

func (s *Service) Delete(ctx context.Context, owner Owner, actorID, id uuid.UUID) error {
	cond, arg := owner.where(2)
	var name string
	err := s.db.QueryRow(ctx,
		"DELETE FROM webhooks WHERE webhook_id = $1 AND "+cond+" RETURNING name", id, arg,
	).Scan(&name)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("delete webhook: %w", err)
	}

	err = s.audit.Record(ctx, audit.Entry{
		Action:       models.AuditWebhookDeleted,
		ActorID:      actorID,
		ContractorID: owner.ContractorID,
		SubjectType:  "webhook",
		SubjectID:    id.String(),
		Metadata:     map[string]any{"name": name},
	})
	if err != nil {
		return fmt.Errorf("audit webhook delete: %w", err)
	}
	return nil
}

// Event is the JSON body delivered to webhooks.
type Event struct {
	Action       string            `json:"action"`
	EntityID     uuid.UUID         `json:"entity_id"`
	ContractorID *uuid.UUID        `json:"contractor_id,omitempty"`
	ActorID      uuid.UUID         `json:"actor_id"`
	Title        string            `json:"title"`
	Body         string            `json:"body"`
	OccurredAt   time.Time         `json:"occurred_at"`
	Data         map[string]string `json:"data,omitempty"`
}

// Dispatch enqueues one delivery per active webhook subscribed to the event's
// action and owned by the contractor or by any of userIDs. It returns the
// number of deliveries enqueued and every enqueue failure.
func (s *Service) Dispatch(ctx context.Context, contractorID *uuid.UUID, userIDs []uuid.UUID, ev Event) (int, error) {
	if contractorID == nil && len(userIDs) == 0 {
		return 0, nil
	}
	if userIDs == nil {
		userIDs = []uuid.UUID{}
	}

	filter, err := json.Marshal([]string{ev.Action})
	if err != nil {
		return 0, fmt.Errorf("marshal action filter: %w", err)
	}
	rows, err := s.db.Query(ctx,
		`SELECT webhook_id FROM webhooks
		 WHERE is_active = true AND actions @> $1::jsonb
		   AND (contractor_id = $2 OR user_id = ANY($3))`,
		filter, contractorID, userIDs,
	)
	if err != nil {
		return 0, fmt.Errorf("find matching webhooks: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return 0, fmt.Errorf("scan webhook id: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		return 0, fmt.Errorf("marshal webhook event: %w", err)
	}

	var errs []error
	enqueued := 0
	for _, id := range ids {
		err := s.queue.EnqueueWebhookDeliver(ctx, queue.WebhookDeliverPayload{
			WebhookID: id,
			Action:    ev.Action,
			Payload:   payload,
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("webhook %s: %w", id, err))
			continue
		}
		enqueued++
	}
	return enqueued, errors.Join(errs...)
}

func generateSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return "whsec_" + hex.EncodeToString(b), nil
}
