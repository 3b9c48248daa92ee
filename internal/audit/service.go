package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/nikhilbhutani/contractorhub/internal/database"
	"github.com/nikhilbhutani/contractorhub/internal/models"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Recorder appends audit log rows and serves the read-only audit trail.
type Recorder struct {
	db database.Querier
}

func NewRecorder(db database.Querier) *Recorder {
	return &Recorder{db: db}
}

type Entry struct {
	Action       string
	ActorID      uuid.UUID
	ContractorID *uuid.UUID
	SubjectType  string
	SubjectID    string
	// Metadata carries caller-computed before/after values.
	Metadata map[string]any
}

// Record writes one entry outside of any caller transaction.
func (r *Recorder) Record(ctx context.Context, e Entry) error {
	return r.RecordTx(ctx, r.db, e)
}

// RecordTx writes one entry through q, which may be a transaction that also
// holds the mutation being documented.
func (r *Recorder) RecordTx(ctx context.Context, q database.Querier, e Entry) error {
	if e.Action == "" || e.SubjectType == "" {
		return fmt.Errorf("audit entry requires action and subject type")
	}

	metadata := e.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	raw, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("marshal audit metadata: %w", err)
	}

	var actor *uuid.UUID
	if e.ActorID != uuid.Nil {
		actor = &e.ActorID
	}

	_, err = q.Exec(ctx,
		`INSERT INTO audit_logs (action, actor_id, contractor_id, subject_type, subject_id, metadata)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		e.Action, actor, e.ContractorID, e.SubjectType, e.SubjectID, raw,
	)
	if err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

type Query struct {
	ContractorID *uuid.UUID
	Action       string
	ActorID      *uuid.UUID
	SubjectType  string
	StartDate    *time.Time
	EndDate      *time.Time
	Page         int
	PageSize     int
}

func (q *Query) normalize() {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize <= 0 {
		q.PageSize = defaultPageSize
	}
	if q.PageSize > maxPageSize {
		q.PageSize = maxPageSize
	}
}

type Page struct {
	Items    []models.AuditLog `json:"items"`
	Total    int               `json:"total"`
	Page     int               `json:"page"`
	PageSize int               `json:"page_size"`
}

func (r *Recorder) List(ctx context.Context, q Query) (*Page, error) {
	q.normalize()

	var conds []string
	var args []any
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if q.ContractorID != nil {
		add("contractor_id = $%d", *q.ContractorID)
	}
	if q.Action != "" {
		add("action = $%d", q.Action)
	}
	if q.ActorID != nil {
		add("actor_id = $%d", *q.ActorID)
	}
	if q.SubjectType != "" {
		add("subject_type = $%d", q.SubjectType)
	}
	if q.StartDate != nil {
		add("created_at >= $%d", *q.StartDate)
	}
	if q.EndDate != nil {
		add("created_at <= $%d", *q.EndDate)
	}

	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM audit_logs"+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count audit logs: %w", err)
	}

	query := `SELECT audit_log_id, action, actor_id, contractor_id, subject_type, subject_id, metadata, created_at
			  FROM audit_logs` + where +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, q.PageSize, (q.Page-1)*q.PageSize)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit logs: %w", err)
	}
	logs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.AuditLog, error) {
		var l models.AuditLog
		err := row.Scan(&l.ID, &l.Action, &l.ActorID, &l.ContractorID, &l.SubjectType, &l.SubjectID, &l.Metadata, &l.CreatedAt)
		return l, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan audit log: %w", err)
	}
	if logs == nil {
		logs = []models.AuditLog{}
	}

	return &Page{Items: logs, Total: total, Page: q.Page, PageSize: q.PageSize}, nil
}
