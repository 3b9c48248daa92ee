package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/contractorhub/internal/account"
	"github.com/nikhilbhutani/contractorhub/internal/models"
	"github.com/nikhilbhutani/contractorhub/internal/roles"
)

// RoleHandler serves role and membership management for the contractor
// resolved by auth.ContractorGuard. Hierarchy checks happen in roles.Service.
type RoleHandler struct {
	svc *roles.Service
}

func NewRoleHandler(svc *roles.Service) *RoleHandler {
	return &RoleHandler{svc: svc}
}

func (h *RoleHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	list, err := h.svc.ListRoles(ctx, account.ContractorFromContext(ctx), account.UserIDFromContext(ctx))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"roles": list, "count": len(list)})
}

func (h *RoleHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in roles.RoleInput
	if !decode(w, r, &in) {
		return
	}
	ctx := r.Context()
	role, err := h.svc.CreateRole(ctx, account.ContractorFromContext(ctx), account.UserIDFromContext(ctx), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, role)
}

func (h *RoleHandler) Update(w http.ResponseWriter, r *http.Request) {
	roleID, ok := uuidParam(w, r, "role_id")
	if !ok {
		return
	}
	var in roles.RoleInput
	if !decode(w, r, &in) {
		return
	}
	ctx := r.Context()
	role, err := h.svc.UpdateRole(ctx, account.ContractorFromContext(ctx), account.UserIDFromContext(ctx), roleID, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, role)
}

func (h *RoleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	roleID, ok := uuidParam(w, r, "role_id")
	if !ok {
		return
	}
	ctx := r.Context()
	if err := h.svc.DeleteRole(ctx, account.ContractorFromContext(ctx), account.UserIDFromContext(ctx), roleID); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *RoleHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	members, err := h.svc.ListMembers(ctx, account.ContractorFromContext(ctx), account.UserIDFromContext(ctx))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"members": members, "count": len(members)})
}

func (h *RoleHandler) AssignRole(w http.ResponseWriter, r *http.Request) {
	h.memberRole(w, r, h.svc.AssignRole)
}

func (h *RoleHandler) RemoveRole(w http.ResponseWriter, r *http.Request) {
	h.memberRole(w, r, h.svc.RemoveRole)
}

func (h *RoleHandler) memberRole(w http.ResponseWriter, r *http.Request,
	op func(ctx context.Context, c *models.Contractor, actorID, targetID, roleID uuid.UUID) error,
) {
	targetID, ok := uuidParam(w, r, "user_id")
	if !ok {
		return
	}
	roleID, ok := uuidParam(w, r, "role_id")
	if !ok {
		return
	}
	ctx := r.Context()
	if err := op(ctx, account.ContractorFromContext(ctx), account.UserIDFromContext(ctx), targetID, roleID); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *RoleHandler) Kick(w http.ResponseWriter, r *http.Request) {
	targetID, ok := uuidParam(w, r, "user_id")
	if !ok {
		return
	}
	ctx := r.Context()
	if err := h.svc.KickMember(ctx, account.ContractorFromContext(ctx), account.UserIDFromContext(ctx), targetID); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type transferRequest struct {
	UserID uuid.UUID `json:"user_id" validate:"required"`
}

func (h *RoleHandler) TransferOwnership(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if !decode(w, r, &req) {
		return
	}
	ctx := r.Context()
	if err := h.svc.TransferOwnership(ctx, account.ContractorFromContext(ctx), account.UserIDFromContext(ctx), req.UserID); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
