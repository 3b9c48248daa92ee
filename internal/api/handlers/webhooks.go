package handlers

import (
	"net/http"

	"github.com/nikhilbhutani/contractorhub/internal/account"
	"github.com/nikhilbhutani/contractorhub/internal/webhook"
)

// WebhookHandler serves both contractor-owned webhooks (under a contractor
// route) and the caller's personal webhooks.
type WebhookHandler struct {
	svc *webhook.Service
}

func NewWebhookHandler(svc *webhook.Service) *WebhookHandler {
	return &WebhookHandler{svc: svc}
}

func owner(r *http.Request) webhook.Owner {
	if c := account.ContractorFromContext(r.Context()); c != nil {
		return webhook.ContractorOwner(c.ID)
	}
	return webhook.UserOwner(account.UserIDFromContext(r.Context()))
}

func (h *WebhookHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req webhook.CreateRequest
	if !decode(w, r, &req) {
		return
	}

	wh, err := h.svc.Create(r.Context(), owner(r), account.UserIDFromContext(r.Context()), req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	// The secret is only ever returned on creation.
	writeJSON(w, http.StatusCreated, map[string]any{
		"webhook": wh,
		"secret":  wh.Secret,
	})
}

func (h *WebhookHandler) List(w http.ResponseWriter, r *http.Request) {
	webhooks, err := h.svc.List(r.Context(), owner(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"webhooks": webhooks, "count": len(webhooks)})
}

func (h *WebhookHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "webhook_id")
	if !ok {
		return
	}
	if err := h.svc.Delete(r.Context(), owner(r), account.UserIDFromContext(r.Context()), id); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
