package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nikhilbhutani/contractorhub/internal/dispatch"
)

// EventDispatcher is implemented by *dispatch.Dispatcher.
type EventDispatcher interface {
	OrderCreated(ctx context.Context, ev dispatch.OrderCreated) (dispatch.Result, error)
	OrderAssigned(ctx context.Context, ev dispatch.OrderAssigned) (dispatch.Result, error)
	OrderMessage(ctx context.Context, ev dispatch.OrderMessage) (dispatch.Result, error)
	OrderStatusChanged(ctx context.Context, ev dispatch.OrderStatusChanged) (dispatch.Result, error)
	OfferCreated(ctx context.Context, ev dispatch.OfferCreated) (dispatch.Result, error)
	OfferMessage(ctx context.Context, ev dispatch.OfferMessage) (dispatch.Result, error)
	MarketBid(ctx context.Context, ev dispatch.MarketBid) (dispatch.Result, error)
	MarketOffer(ctx context.Context, ev dispatch.MarketOffer) (dispatch.Result, error)
	ContractorInvite(ctx context.Context, ev dispatch.ContractorInvite) (dispatch.Result, error)
	AdminAlert(ctx context.Context, ev dispatch.AdminAlert) (dispatch.Result, error)
	ReviewRevisionRequested(ctx context.Context, ev dispatch.ReviewRevisionRequested) (dispatch.Result, error)
}

type eventFunc func(ctx context.Context, body json.RawMessage) (dispatch.Result, error)

// invalidEvent marks a body that failed to decode or validate.
type invalidEvent struct{ err error }

func (e invalidEvent) Error() string { return e.err.Error() }

// EventHandler is the ingress the marketplace backend posts domain events to.
type EventHandler struct {
	kinds map[string]eventFunc
}

func NewEventHandler(d EventDispatcher) *EventHandler {
	return &EventHandler{kinds: map[string]eventFunc{
		"order_created":                   bind(d.OrderCreated),
		"order_assigned":                  bind(d.OrderAssigned),
		"order_message":                   bind(d.OrderMessage),
		"order_status_changed":            bind(d.OrderStatusChanged),
		"offer_created":                   bind(d.OfferCreated),
		"offer_message":                   bind(d.OfferMessage),
		"market_bid":                      bind(d.MarketBid),
		"market_offer":                    bind(d.MarketOffer),
		"contractor_invite":               bind(d.ContractorInvite),
		"admin_alert":                     bind(d.AdminAlert),
		"review_revision_requested":       bind(d.ReviewRevisionRequested),
		"order_review_revision_requested": bind(d.ReviewRevisionRequested),
	}}
}

// bind decodes and validates the body as E before calling fn.
func bind[E any](fn func(context.Context, E) (dispatch.Result, error)) eventFunc {
	return func(ctx context.Context, body json.RawMessage) (dispatch.Result, error) {
		var ev E
		if err := json.Unmarshal(body, &ev); err != nil {
			return dispatch.Result{}, invalidEvent{err}
		}
		if err := Validate.Struct(ev); err != nil {
			return dispatch.Result{}, invalidEvent{err}
		}
		return fn(ctx, ev)
	}
}

func (h *EventHandler) Post(w http.ResponseWriter, r *http.Request) {
	kind := chi.URLParam(r, "kind")
	fn, ok := h.kinds[kind]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown event kind " + kind})
		return
	}

	var body json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		badRequest(w, "invalid request body")
		return
	}

	res, err := fn(r.Context(), body)
	var invalid invalidEvent
	if errors.As(err, &invalid) {
		badRequest(w, invalid.Error())
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, res)
}
