package dispatch

import (
	"context"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"github.com/nikhilbhutani/contractorhub/internal/models"
)

func orDefault(title, fallback string) string {
	if title != "" {
		return title
	}
	return fallback
}

// OrderCreated notifies the seller side: the assigned user, or the
// contractor's order managers.
func (d *Dispatcher) OrderCreated(ctx context.Context, ev OrderCreated) (Result, error) {
	recipients, err := d.sellerSide(ctx, ev.Order.ContractorID, ev.Order.AssignedID, models.PermManageOrders)
	if err != nil {
		return Result{}, err
	}
	return d.deliver(ctx, delivery{
		event:        "order_created",
		action:       models.ActionOrderCreate,
		entityID:     ev.Order.OrderID,
		actorID:      ev.ActorID,
		recipients:   recipients,
		contractorID: ev.Order.ContractorID,
		title:        "New order",
		body:         orDefault(ev.Order.Title, "You received a new order"),
		data:         map[string]string{"order_id": ev.Order.OrderID.String()},
	})
}

// OrderAssigned notifies the newly assigned user.
func (d *Dispatcher) OrderAssigned(ctx context.Context, ev OrderAssigned) (Result, error) {
	var recipients []uuid.UUID
	if ev.Order.AssignedID != nil {
		recipients = []uuid.UUID{*ev.Order.AssignedID}
	}
	return d.deliver(ctx, delivery{
		event:        "order_assigned",
		action:       models.ActionOrderAssigned,
		entityID:     ev.Order.OrderID,
		actorID:      ev.ActorID,
		recipients:   recipients,
		contractorID: ev.Order.ContractorID,
		title:        "Order assigned",
		body:         orDefault(ev.Order.Title, "An order was assigned to you"),
		data:         map[string]string{"order_id": ev.Order.OrderID.String()},
	})
}

// OrderMessage notifies both parties of the order except the author.
func (d *Dispatcher) OrderMessage(ctx context.Context, ev OrderMessage) (Result, error) {
	recipients, err := d.orderParties(ctx, ev.Order)
	if err != nil {
		return Result{}, err
	}
	return d.deliver(ctx, delivery{
		event:        "order_message",
		action:       models.ActionOrderMessage,
		entityID:     ev.ChatID,
		actorID:      ev.AuthorID,
		recipients:   recipients,
		contractorID: ev.Order.ContractorID,
		title:        orDefault(ev.Order.Title, "New order message"),
		body:         ev.Preview,
		data: map[string]string{
			"order_id": ev.Order.OrderID.String(),
			"chat_id":  ev.ChatID.String(),
		},
	})
}

// OrderStatusChanged notifies both parties of the order except the actor.
func (d *Dispatcher) OrderStatusChanged(ctx context.Context, ev OrderStatusChanged) (Result, error) {
	if !slices.Contains(models.OrderStatuses, ev.Status) {
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownStatus, ev.Status)
	}
	recipients, err := d.orderParties(ctx, ev.Order)
	if err != nil {
		return Result{}, err
	}
	return d.deliver(ctx, delivery{
		event:        "order_status_changed",
		action:       models.OrderStatusAction(ev.Status),
		entityID:     ev.Order.OrderID,
		actorID:      ev.ActorID,
		recipients:   recipients,
		contractorID: ev.Order.ContractorID,
		title:        "Order status updated",
		body:         fmt.Sprintf("%s is now %s", orDefault(ev.Order.Title, "Your order"), statusLabel(ev.Status)),
		data: map[string]string{
			"order_id": ev.Order.OrderID.String(),
			"status":   ev.Status,
		},
	})
}

// OfferCreated notifies the side that did not make the offer. An opening
// offer always goes to the seller side; a counteroffer goes to whichever
// side the actor is not on.
func (d *Dispatcher) OfferCreated(ctx context.Context, ev OfferCreated) (Result, error) {
	s := ev.Session
	action, title := models.ActionOfferCreate, "New offer"
	if ev.Counter {
		action, title = models.ActionCounterOfferCreate, "Counteroffer received"
	}

	var recipients []uuid.UUID
	if ev.Counter && ev.ActorID != s.CustomerID {
		recipients = []uuid.UUID{s.CustomerID}
	} else {
		var err error
		recipients, err = d.sellerSide(ctx, s.ContractorID, s.AssignedID, models.PermManageOrders)
		if err != nil {
			return Result{}, err
		}
	}

	return d.deliver(ctx, delivery{
		event:        "offer_created",
		action:       action,
		entityID:     s.SessionID,
		actorID:      ev.ActorID,
		recipients:   recipients,
		contractorID: s.ContractorID,
		title:        title,
		body:         orDefault(s.Title, "An offer is waiting for your response"),
		data:         map[string]string{"session_id": s.SessionID.String()},
	})
}

func (d *Dispatcher) OfferMessage(ctx context.Context, ev OfferMessage) (Result, error) {
	s := ev.Session
	seller, err := d.sellerSide(ctx, s.ContractorID, s.AssignedID, models.PermManageOrders)
	if err != nil {
		return Result{}, err
	}
	return d.deliver(ctx, delivery{
		event:        "offer_message",
		action:       models.ActionOfferMessage,
		entityID:     ev.ChatID,
		actorID:      ev.AuthorID,
		recipients:   append(seller, s.CustomerID),
		contractorID: s.ContractorID,
		title:        orDefault(s.Title, "New offer message"),
		body:         ev.Preview,
		data: map[string]string{
			"session_id": s.SessionID.String(),
			"chat_id":    ev.ChatID.String(),
		},
	})
}

// MarketBid notifies the listing's seller: the user seller, or the
// contractor's market managers.
func (d *Dispatcher) MarketBid(ctx context.Context, ev MarketBid) (Result, error) {
	recipients, err := d.listingSeller(ctx, ev.Listing)
	if err != nil {
		return Result{}, err
	}
	return d.deliver(ctx, delivery{
		event:        "market_bid",
		action:       models.ActionMarketItemBid,
		entityID:     ev.Listing.ListingID,
		actorID:      ev.BidderID,
		recipients:   recipients,
		contractorID: ev.Listing.ContractorSellerID,
		title:        "New bid",
		body:         fmt.Sprintf("New bid of %d aUEC on %s", ev.Amount, orDefault(ev.Listing.Title, "your listing")),
		data:         map[string]string{"listing_id": ev.Listing.ListingID.String()},
	})
}

func (d *Dispatcher) MarketOffer(ctx context.Context, ev MarketOffer) (Result, error) {
	recipients, err := d.listingSeller(ctx, ev.Listing)
	if err != nil {
		return Result{}, err
	}
	return d.deliver(ctx, delivery{
		event:        "market_offer",
		action:       models.ActionMarketItemOffer,
		entityID:     ev.Listing.ListingID,
		actorID:      ev.BuyerID,
		recipients:   recipients,
		contractorID: ev.Listing.ContractorSellerID,
		title:        "New offer on your listing",
		body:         fmt.Sprintf("Offer of %d aUEC on %s", ev.Amount, orDefault(ev.Listing.Title, "your listing")),
		data:         map[string]string{"listing_id": ev.Listing.ListingID.String()},
	})
}

// ContractorInvite notifies the invited user.
func (d *Dispatcher) ContractorInvite(ctx context.Context, ev ContractorInvite) (Result, error) {
	return d.deliver(ctx, delivery{
		event:      "contractor_invite",
		action:     models.ActionContractorInvite,
		entityID:   ev.InviteID,
		actorID:    ev.InviterID,
		recipients: []uuid.UUID{ev.UserID},
		title:      "Contractor invite",
		body:       fmt.Sprintf("You have been invited to join %s", orDefault(ev.ContractorName, "a contractor")),
		data: map[string]string{
			"invite_id":     ev.InviteID.String(),
			"contractor_id": ev.ContractorID.String(),
		},
	})
}

// AdminAlert expands the alert's target group and notifies every member of it.
func (d *Dispatcher) AdminAlert(ctx context.Context, ev AdminAlert) (Result, error) {
	recipients, err := d.alertTargets(ctx, ev)
	if err != nil {
		return Result{}, err
	}
	return d.deliver(ctx, delivery{
		event:        "admin_alert",
		action:       models.ActionAdminAlert,
		entityID:     ev.AlertID,
		actorID:      ev.ActorID,
		recipients:   recipients,
		contractorID: ev.TargetContractorID,
		title:        ev.Title,
		body:         ev.Body,
		data:         map[string]string{"alert_id": ev.AlertID.String()},
	})
}

// ReviewRevisionRequested notifies the review's author.
func (d *Dispatcher) ReviewRevisionRequested(ctx context.Context, ev ReviewRevisionRequested) (Result, error) {
	return d.deliver(ctx, delivery{
		event:      "review_revision_requested",
		action:     models.ActionOrderReviewRevisionRequested,
		entityID:   ev.ReviewID,
		actorID:    ev.RequesterID,
		recipients: []uuid.UUID{ev.ReviewerID},
		title:      "Review revision requested",
		body:       "The other party asked you to revise your review",
		data: map[string]string{
			"review_id": ev.ReviewID.String(),
			"order_id":  ev.OrderID.String(),
		},
	})
}

// orderParties is the customer plus the seller side of an order.
func (d *Dispatcher) orderParties(ctx context.Context, o OrderRef) ([]uuid.UUID, error) {
	seller, err := d.sellerSide(ctx, o.ContractorID, o.AssignedID, models.PermManageOrders)
	if err != nil {
		return nil, err
	}
	return append(seller, o.CustomerID), nil
}

func (d *Dispatcher) listingSeller(ctx context.Context, l ListingRef) ([]uuid.UUID, error) {
	if l.UserSellerID != nil {
		return []uuid.UUID{*l.UserSellerID}, nil
	}
	return d.sellerSide(ctx, l.ContractorSellerID, nil, models.PermManageMarket)
}

func (d *Dispatcher) alertTargets(ctx context.Context, ev AdminAlert) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	var err error
	switch ev.TargetType {
	case TargetAllUsers:
		ids, err = d.dir.AllUserIDs(ctx)
	case TargetAdminsOnly:
		ids, err = d.dir.SiteAdminIDs(ctx)
	case TargetOrgMembers:
		ids, err = d.dir.AllContractorMemberIDs(ctx)
	case TargetOrgOwners:
		ids, err = d.dir.ContractorOwnerIDs(ctx)
	case TargetSpecificOrg:
		if ev.TargetContractorID == nil {
			return nil, fmt.Errorf("%w: specific_org without contractor", ErrUnknownTarget)
		}
		ids, err = d.members.MemberIDs(ctx, *ev.TargetContractorID)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownTarget, ev.TargetType)
	}
	if err != nil {
		return nil, fmt.Errorf("resolve alert targets: %w", err)
	}
	return ids, nil
}

func statusLabel(status string) string {
	switch status {
	case "fulfilled":
		return "fulfilled"
	case "in_progress":
		return "in progress"
	case "not_started":
		return "not started"
	case "cancelled":
		return "cancelled"
	}
	return status
}
