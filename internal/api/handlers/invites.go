package handlers

import (
	"net/http"

	"github.com/nikhilbhutani/contractorhub/internal/account"
	"github.com/nikhilbhutani/contractorhub/internal/invite"
)

type InviteHandler struct {
	svc *invite.Service
}

func NewInviteHandler(svc *invite.Service) *InviteHandler {
	return &InviteHandler{svc: svc}
}

func (h *InviteHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req invite.CreateRequest
	if !decode(w, r, &req) {
		return
	}
	ctx := r.Context()
	inv, err := h.svc.Create(ctx, account.ContractorFromContext(ctx), account.UserIDFromContext(ctx), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, inv)
}

func (h *InviteHandler) ListForContractor(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	invites, err := h.svc.ListForContractor(ctx, account.ContractorFromContext(ctx), account.UserIDFromContext(ctx))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"invites": invites, "count": len(invites)})
}

func (h *InviteHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	invites, err := h.svc.ListForUser(r.Context(), account.UserIDFromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"invites": invites, "count": len(invites)})
}

func (h *InviteHandler) Accept(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "invite_id")
	if !ok {
		return
	}
	inv, err := h.svc.Accept(r.Context(), id, account.UserIDFromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "joined", "contractor_id": inv.ContractorID})
}

func (h *InviteHandler) Decline(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "invite_id")
	if !ok {
		return
	}
	if err := h.svc.Decline(r.Context(), id, account.UserIDFromContext(r.Context())); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
