package handlers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/contractorhub/internal/account"
	"github.com/nikhilbhutani/contractorhub/internal/audit"
)

type AuditHandler struct {
	rec *audit.Recorder
}

func NewAuditHandler(rec *audit.Recorder) *AuditHandler {
	return &AuditHandler{rec: rec}
}

// ContractorLogs lists the audit trail of the contractor in the route.
func (h *AuditHandler) ContractorLogs(w http.ResponseWriter, r *http.Request) {
	q, ok := auditQuery(w, r)
	if !ok {
		return
	}
	c := account.ContractorFromContext(r.Context())
	q.ContractorID = &c.ID
	h.list(w, r, q)
}

// AllLogs is the site-admin view across contractors; contractor_id may be
// passed as a filter.
func (h *AuditHandler) AllLogs(w http.ResponseWriter, r *http.Request) {
	q, ok := auditQuery(w, r)
	if !ok {
		return
	}
	if s := r.URL.Query().Get("contractor_id"); s != "" {
		id, err := uuid.Parse(s)
		if err != nil {
			badRequest(w, "invalid contractor_id")
			return
		}
		q.ContractorID = &id
	}
	h.list(w, r, q)
}

func (h *AuditHandler) list(w http.ResponseWriter, r *http.Request, q audit.Query) {
	page, err := h.rec.List(r.Context(), q)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func auditQuery(w http.ResponseWriter, r *http.Request) (audit.Query, bool) {
	v := r.URL.Query()
	q := audit.Query{
		Action:      v.Get("action"),
		SubjectType: v.Get("subject_type"),
	}
	q.Page, q.PageSize = pageParams(r)

	if s := v.Get("actor_id"); s != "" {
		id, err := uuid.Parse(s)
		if err != nil {
			badRequest(w, "invalid actor_id")
			return q, false
		}
		q.ActorID = &id
	}
	for name, dst := range map[string]**time.Time{"start_date": &q.StartDate, "end_date": &q.EndDate} {
		s := v.Get(name)
		if s == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			badRequest(w, "invalid "+name)
			return q, false
		}
		*dst = &t
	}
	return q, true
}
