package handlers

import (
	"net/http"

	"github.com/nikhilbhutani/contractorhub/internal/account"
	"github.com/nikhilbhutani/contractorhub/internal/push"
)

type PushHandler struct {
	subs *push.Subscriptions
}

func NewPushHandler(subs *push.Subscriptions) *PushHandler {
	return &PushHandler{subs: subs}
}

type subscribeRequest struct {
	Platform    string `json:"platform" validate:"required,oneof=ios android"`
	DeviceToken string `json:"device_token" validate:"required,max=4096"`
}

func (h *PushHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	var req subscribeRequest
	if !decode(w, r, &req) {
		return
	}
	sub, err := h.subs.Subscribe(r.Context(), account.UserIDFromContext(r.Context()), req.Platform, req.DeviceToken)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sub)
}

func (h *PushHandler) List(w http.ResponseWriter, r *http.Request) {
	subs, err := h.subs.List(r.Context(), account.UserIDFromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"subscriptions": subs, "count": len(subs)})
}

func (h *PushHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "subscription_id")
	if !ok {
		return
	}
	if err := h.subs.Unsubscribe(r.Context(), account.UserIDFromContext(r.Context()), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
