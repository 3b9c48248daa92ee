package dispatch

import (
	"github.com/google/uuid"
)

// OrderRef is the part of an order the dispatcher needs. An order is served
// either by a contractor or by a directly assigned user, or both.
type OrderRef struct {
	OrderID      uuid.UUID  `json:"order_id" validate:"required"`
	ContractorID *uuid.UUID `json:"contractor_id,omitempty"`
	AssignedID   *uuid.UUID `json:"assigned_id,omitempty"`
	CustomerID   uuid.UUID  `json:"customer_id" validate:"required"`
	Title        string     `json:"title"`
}

type OrderCreated struct {
	Order   OrderRef  `json:"order"`
	ActorID uuid.UUID `json:"actor_id" validate:"required"`
}

type OrderAssigned struct {
	Order   OrderRef  `json:"order"`
	ActorID uuid.UUID `json:"actor_id" validate:"required"`
}

// OrderMessage coalesces per chat: repeated messages in one thread refresh
// one notification object.
type OrderMessage struct {
	Order    OrderRef  `json:"order"`
	ChatID   uuid.UUID `json:"chat_id" validate:"required"`
	AuthorID uuid.UUID `json:"author_id" validate:"required"`
	Preview  string    `json:"preview"`
}

type OrderStatusChanged struct {
	Order   OrderRef  `json:"order"`
	Status  string    `json:"status" validate:"required,oneof=fulfilled in_progress not_started cancelled"`
	ActorID uuid.UUID `json:"actor_id" validate:"required"`
}

type OfferSessionRef struct {
	SessionID    uuid.UUID  `json:"session_id" validate:"required"`
	ContractorID *uuid.UUID `json:"contractor_id,omitempty"`
	AssignedID   *uuid.UUID `json:"assigned_id,omitempty"`
	CustomerID   uuid.UUID  `json:"customer_id" validate:"required"`
	Title        string     `json:"title"`
}

// OfferCreated covers both the opening offer and counteroffers.
type OfferCreated struct {
	Session OfferSessionRef `json:"session"`
	ActorID uuid.UUID       `json:"actor_id" validate:"required"`
	Counter bool            `json:"counter"`
}

type OfferMessage struct {
	Session  OfferSessionRef `json:"session"`
	ChatID   uuid.UUID       `json:"chat_id" validate:"required"`
	AuthorID uuid.UUID       `json:"author_id" validate:"required"`
	Preview  string          `json:"preview"`
}

// ListingRef is a market listing sold by a contractor or by a single user.
type ListingRef struct {
	ListingID          uuid.UUID  `json:"listing_id" validate:"required"`
	ContractorSellerID *uuid.UUID `json:"contractor_seller_id,omitempty"`
	UserSellerID       *uuid.UUID `json:"user_seller_id,omitempty"`
	Title              string     `json:"title"`
}

type MarketBid struct {
	Listing  ListingRef `json:"listing"`
	BidderID uuid.UUID  `json:"bidder_id" validate:"required"`
	Amount   int64      `json:"amount"`
}

type MarketOffer struct {
	Listing ListingRef `json:"listing"`
	BuyerID uuid.UUID  `json:"buyer_id" validate:"required"`
	Amount  int64      `json:"amount"`
}

type ContractorInvite struct {
	InviteID       uuid.UUID `json:"invite_id" validate:"required"`
	ContractorID   uuid.UUID `json:"contractor_id" validate:"required"`
	ContractorName string    `json:"contractor_name"`
	UserID         uuid.UUID `json:"user_id" validate:"required"`
	InviterID      uuid.UUID `json:"inviter_id" validate:"required"`
}

// Admin alert target groups.
const (
	TargetAllUsers    = "all_users"
	TargetAdminsOnly  = "admins_only"
	TargetOrgMembers  = "org_members"
	TargetOrgOwners   = "org_owners"
	TargetSpecificOrg = "specific_org"
)

type AdminAlert struct {
	AlertID            uuid.UUID  `json:"alert_id" validate:"required"`
	Title              string     `json:"title" validate:"required"`
	Body               string     `json:"body"`
	TargetType         string     `json:"target_type" validate:"required,oneof=all_users admins_only org_members org_owners specific_org"`
	TargetContractorID *uuid.UUID `json:"target_contractor_id,omitempty" validate:"required_if=TargetType specific_org"`
	ActorID            uuid.UUID  `json:"actor_id"`
}

type ReviewRevisionRequested struct {
	ReviewID    uuid.UUID `json:"review_id" validate:"required"`
	OrderID     uuid.UUID `json:"order_id" validate:"required"`
	ReviewerID  uuid.UUID `json:"reviewer_id" validate:"required"`
	RequesterID uuid.UUID `json:"requester_id" validate:"required"`
}
