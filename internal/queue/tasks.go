package queue

import (
	"encoding/json"

	"github.com/google/uuid"
)

const (
	TypePushSend       = "push:send"
	TypeWebhookDeliver = "webhook:deliver"
)

// PushSendPayload is one push notification for one user. The worker fans it
// out to every endpoint the user has registered.
type PushSendPayload struct {
	UserID   uuid.UUID         `json:"user_id"`
	Action   string            `json:"action"`
	Title    string            `json:"title"`
	Body     string            `json:"body"`
	EntityID uuid.UUID         `json:"entity_id"`
	Data     map[string]string `json:"data,omitempty"`
}

type WebhookDeliverPayload struct {
	WebhookID uuid.UUID       `json:"webhook_id"`
	Action    string          `json:"action"`
	Payload   json.RawMessage `json:"payload"`
}
