package handlers

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/contractorhub/internal/account"
	"github.com/nikhilbhutani/contractorhub/internal/notification"
)

type NotificationHandler struct {
	svc *notification.Service
}

func NewNotificationHandler(svc *notification.Service) *NotificationHandler {
	return &NotificationHandler{svc: svc}
}

func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	q := notification.ListQuery{
		UserID: account.UserIDFromContext(r.Context()),
		Action: r.URL.Query().Get("action"),
	}
	q.Page, q.PageSize = pageParams(r)
	q.UnreadOnly, _ = strconv.ParseBool(r.URL.Query().Get("unread"))

	page, err := h.svc.List(r.Context(), q)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *NotificationHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.UnreadCount(r.Context(), account.UserIDFromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"unread": n})
}

type markReadRequest struct {
	NotificationIDs []uuid.UUID `json:"notification_ids" validate:"required,min=1,max=500"`
}

func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	var req markReadRequest
	if !decode(w, r, &req) {
		return
	}
	n, err := h.svc.MarkRead(r.Context(), account.UserIDFromContext(r.Context()), req.NotificationIDs)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"updated": n})
}

func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.MarkAllRead(r.Context(), account.UserIDFromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"updated": n})
}

func (h *NotificationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "notification_id")
	if !ok {
		return
	}
	if err := h.svc.Delete(r.Context(), account.UserIDFromContext(r.Context()), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
