package models

import (
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Notification action names; each has a row in notification_action_type.
const (
	ActionOrderCreate                  = "order_create"
	ActionOrderAssigned                = "order_assigned"
	ActionOrderMessage                 = "order_message"
	ActionOrderReviewRevisionRequested = "order_review_revision_requested"
	ActionOfferCreate                  = "offer_create"
	ActionCounterOfferCreate           = "counter_offer_create"
	ActionOfferMessage                 = "offer_message"
	ActionMarketItemBid                = "market_item_bid"
	ActionMarketItemOffer              = "market_item_offer"
	ActionContractorInvite             = "contractor_invite"
	ActionAdminAlert                   = "admin_alert"
)

// OrderStatuses are the order states that produce a status notification.
var OrderStatuses = []string{"fulfilled", "in_progress", "not_started", "cancelled"}

var notificationActions = []string{
	ActionOrderCreate,
	ActionOrderAssigned,
	ActionOrderMessage,
	ActionOrderReviewRevisionRequested,
	ActionOfferCreate,
	ActionCounterOfferCreate,
	ActionOfferMessage,
	ActionMarketItemBid,
	ActionMarketItemOffer,
	ActionContractorInvite,
	ActionAdminAlert,
}

// IsNotificationAction reports whether name is a seeded action type.
func IsNotificationAction(name string) bool {
	if status, ok := strings.CutPrefix(name, "order_status_"); ok {
		return slices.Contains(OrderStatuses, status)
	}
	return slices.Contains(notificationActions, name)
}

// OrderStatusAction maps an order status to its notification action.
func OrderStatusAction(status string) string {
	return "order_status_" + status
}

type NotificationActionType struct {
	ID         int    `json:"action_type_id" db:"action_type_id"`
	ActionType string `json:"action_type" db:"action_type"`
	EntityType string `json:"entity_type" db:"entity_type"`
}

type NotificationObject struct {
	ID           uuid.UUID `json:"notification_object_id" db:"notification_object_id"`
	ActionTypeID int       `json:"action_type_id" db:"action_type_id"`
	EntityID     uuid.UUID `json:"entity_id" db:"entity_id"`
	Timestamp    time.Time `json:"timestamp" db:"timestamp"`
}

type NotificationChange struct {
	ID                   uuid.UUID `json:"notification_change_id" db:"notification_change_id"`
	NotificationObjectID uuid.UUID `json:"notification_object_id" db:"notification_object_id"`
	ActorID              uuid.UUID `json:"actor_id" db:"actor_id"`
	CreatedAt            time.Time `json:"created_at" db:"created_at"`
}

// Notification is the per-recipient delivery record. Read is terminal.
type Notification struct {
	ID                   uuid.UUID `json:"notification_id" db:"notification_id"`
	NotificationObjectID uuid.UUID `json:"notification_object_id" db:"notification_object_id"`
	NotifierID           uuid.UUID `json:"notifier_id" db:"notifier_id"`
	Read                 bool      `json:"read" db:"read"`
	CreatedAt            time.Time `json:"created_at" db:"created_at"`
}

// NotificationView is a delivery row joined with its object, action type and
// the most recent actors, as returned to the recipient.
type NotificationView struct {
	ID         uuid.UUID   `json:"notification_id"`
	ObjectID   uuid.UUID   `json:"notification_object_id"`
	Action     string      `json:"action"`
	EntityType string      `json:"entity_type"`
	EntityID   uuid.UUID   `json:"entity_id"`
	Timestamp  time.Time   `json:"timestamp"`
	Read       bool        `json:"read"`
	ActorIDs   []uuid.UUID `json:"actor_ids"`
	ActorCount int         `json:"actor_count"`
}
