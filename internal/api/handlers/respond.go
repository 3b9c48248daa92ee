package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/nikhilbhutani/contractorhub/internal/account"
	"github.com/nikhilbhutani/contractorhub/internal/dispatch"
	"github.com/nikhilbhutani/contractorhub/internal/invite"
	"github.com/nikhilbhutani/contractorhub/internal/notification"
	"github.com/nikhilbhutani/contractorhub/internal/push"
	"github.com/nikhilbhutani/contractorhub/internal/roles"
	"github.com/nikhilbhutani/contractorhub/internal/webhook"
)

// Validate is shared by every handler; validator caches struct metadata.
var Validate = validator.New(validator.WithRequiredStructEnabled())

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
}

// writeError maps service errors onto status codes. Unknown errors are logged
// and reported as 500 without leaking their text.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, roles.ErrForbidden),
		errors.Is(err, roles.ErrProtectedRole),
		errors.Is(err, roles.ErrSelfAction):
		status = http.StatusForbidden
	case errors.Is(err, roles.ErrRoleNotFound),
		errors.Is(err, roles.ErrNotMember),
		errors.Is(err, account.ErrUserNotFound),
		errors.Is(err, account.ErrContractorNotFound),
		errors.Is(err, invite.ErrInviteNotFound),
		errors.Is(err, notification.ErrNotFound),
		errors.Is(err, webhook.ErrNotFound),
		errors.Is(err, push.ErrSubscriptionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, roles.ErrLastRole),
		errors.Is(err, invite.ErrAlreadyMember):
		status = http.StatusConflict
	case errors.Is(err, roles.ErrInvalidPosition),
		errors.Is(err, webhook.ErrUnknownAction),
		errors.Is(err, notification.ErrUnknownActionType),
		errors.Is(err, dispatch.ErrUnknownStatus),
		errors.Is(err, dispatch.ErrUnknownTarget):
		status = http.StatusBadRequest
	}

	if status == http.StatusInternalServerError {
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeJSON(w, status, map[string]string{"error": "internal error"})
		return
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// decode reads a JSON body into dst and runs struct validation.
func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		badRequest(w, "invalid request body")
		return false
	}
	if err := Validate.Struct(dst); err != nil {
		badRequest(w, err.Error())
		return false
	}
	return true
}

func uuidParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		badRequest(w, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

func pageParams(r *http.Request) (page, pageSize int) {
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ = strconv.Atoi(r.URL.Query().Get("page_size"))
	return page, pageSize
}
