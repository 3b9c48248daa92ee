package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	AuditRoleCreated       = "role.created"
	AuditRoleUpdated       = "role.updated"
	AuditRoleDeleted       = "role.deleted"
	AuditMemberRoleAdded   = "member.role_added"
	AuditMemberRoleRemoved = "member.role_removed"
	AuditMemberRemoved     = "member.removed"
	AuditMemberJoined      = "member.joined"
	AuditInviteCreated     = "invite.created"
	AuditInviteDeclined    = "invite.declined"
	AuditOwnershipTransfer = "org.ownership_transferred"
	AuditWebhookCreated    = "webhook.created"
	AuditWebhookDeleted    = "webhook.deleted"
)

// AuditLog rows are append-only.
type AuditLog struct {
	ID           uuid.UUID       `json:"audit_log_id" db:"audit_log_id"`
	Action       string          `json:"action" db:"action"`
	ActorID      *uuid.UUID      `json:"actor_id,omitempty" db:"actor_id"`
	ContractorID *uuid.UUID      `json:"contractor_id,omitempty" db:"contractor_id"`
	SubjectType  string          `json:"subject_type" db:"subject_type"`
	SubjectID    string          `json:"subject_id" db:"subject_id"`
	Metadata     json.RawMessage `json:"metadata" db:"metadata"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
}

type Webhook struct {
	ID           uuid.UUID  `json:"webhook_id" db:"webhook_id"`
	ContractorID *uuid.UUID `json:"contractor_id,omitempty" db:"contractor_id"`
	UserID       *uuid.UUID `json:"user_id,omitempty" db:"user_id"`
	Name         string     `json:"name" db:"name"`
	URL          string     `json:"url" db:"url"`
	Actions      []string   `json:"actions" db:"actions"`
	Secret       string     `json:"-" db:"secret"`
	IsActive     bool       `json:"is_active" db:"is_active"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
}

type WebhookDelivery struct {
	ID             uuid.UUID       `json:"delivery_id" db:"delivery_id"`
	WebhookID      uuid.UUID       `json:"webhook_id" db:"webhook_id"`
	Action         string          `json:"action" db:"action"`
	Payload        json.RawMessage `json:"payload" db:"payload"`
	ResponseStatus int             `json:"response_status" db:"response_status"`
	Attempts       int             `json:"attempts" db:"attempts"`
	Error          *string         `json:"error,omitempty" db:"error"`
	DeliveredAt    *time.Time      `json:"delivered_at,omitempty" db:"delivered_at"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
}
