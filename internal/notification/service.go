// Package notification stores the three-tier notification model: one object
// per (entity, action), an append-only change log of contributing actors, and
// one delivery row per recipient carrying read state.
package notification

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/nikhilbhutani/contractorhub/internal/database"
	"github.com/nikhilbhutani/contractorhub/internal/models"
)

var (
	ErrUnknownActionType = errors.New("unknown notification action type")
	ErrNotFound          = errors.New("notification not found")
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
	previewActors   = 3
)

type Service struct {
	db database.Querier

	// action name -> action_type_id; rows are seeded by migration and never change.
	actionTypes sync.Map
}

func NewService(db database.Querier) *Service {
	return &Service{db: db}
}

// ObjectRef identifies a notification object and whether this call created it.
type ObjectRef struct {
	ID    uuid.UUID
	IsNew bool
}

func (s *Service) ActionTypeID(ctx context.Context, action string) (int, error) {
	if id, ok := s.actionTypes.Load(action); ok {
		return id.(int), nil
	}

	var id int
	err := s.db.QueryRow(ctx,
		"SELECT action_type_id FROM notification_action_type WHERE action_type = $1", action,
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("%w: %s", ErrUnknownActionType, action)
	}
	if err != nil {
		return 0, fmt.Errorf("lookup action type: %w", err)
	}
	s.actionTypes.Store(action, id)
	return id, nil
}

// GetOrCreateObject returns the object for (entityID, action), creating it on
// first use. A recurring action refreshes the existing object's timestamp
// instead of adding a row.
func (s *Service) GetOrCreateObject(ctx context.Context, entityID uuid.UUID, action string) (ObjectRef, error) {
	actionTypeID, err := s.ActionTypeID(ctx, action)
	if err != nil {
		return ObjectRef{}, err
	}

	var ref ObjectRef
	err = s.db.QueryRow(ctx,
		`INSERT INTO notification_object (entity_id, action_type_id)
		 VALUES ($1, $2)
		 ON CONFLICT (entity_id, action_type_id) DO UPDATE SET timestamp = now()
		 RETURNING notification_object_id, (xmax = 0)`,
		entityID, actionTypeID,
	).Scan(&ref.ID, &ref.IsNew)
	if err != nil {
		return ObjectRef{}, fmt.Errorf("upsert notification object: %w", err)
	}
	return ref, nil
}

// RecordChange appends one change row. Repeated actors accumulate.
func (s *Service) RecordChange(ctx context.Context, objectID, actorID uuid.UUID) error {
	_, err := s.db.Exec(ctx,
		"INSERT INTO notification_change (notification_object_id, actor_id) VALUES ($1, $2)",
		objectID, actorID,
	)
	if err != nil {
		return fmt.Errorf("insert notification change: %w", err)
	}
	return nil
}

// Notify inserts one unread delivery row per recipient, skipping recipients
// that already have an unread row for the object. It returns the number of
// rows inserted.
func (s *Service) Notify(ctx context.Context, objectID uuid.UUID, recipientIDs []uuid.UUID) (int, error) {
	recipients := dedupe(recipientIDs)
	if len(recipients) == 0 {
		return 0, nil
	}

	tag, err := s.db.Exec(ctx,
		`INSERT INTO notification (notification_object_id, notifier_id)
		 SELECT $1, unnest($2::uuid[])
		 ON CONFLICT (notification_object_id, notifier_id) WHERE read = false DO NOTHING`,
		objectID, recipients,
	)
	if err != nil {
		return 0, fmt.Errorf("insert notifications: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

type ListQuery struct {
	UserID     uuid.UUID
	UnreadOnly bool
	Action     string
	Page       int
	PageSize   int
}

func (q *ListQuery) normalize() {
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
	Items       []models.NotificationView `json:"items"`
	Total       int                       `json:"total"`
	UnreadCount int                       `json:"unread_count"`
	Page        int                       `json:"page"`
	PageSize    int                       `json:"page_size"`
}

func (s *Service) List(ctx context.Context, q ListQuery) (*Page, error) {
	q.normalize()

	conds := []string{"n.notifier_id = $1"}
	args := []any{q.UserID}
	if q.UnreadOnly {
		conds = append(conds, "n.read = false")
	}
	if q.Action != "" {
		args = append(args, q.Action)
		conds = append(conds, fmt.Sprintf("t.action_type = $%d", len(args)))
	}
	from := ` FROM notification n
		 JOIN notification_object o ON o.notification_object_id = n.notification_object_id
		 JOIN notification_action_type t ON t.action_type_id = o.action_type_id
		 WHERE ` + strings.Join(conds, " AND ")

	var total int
	if err := s.db.QueryRow(ctx, "SELECT COUNT(*)"+from, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count notifications: %w", err)
	}

	unread, err := s.UnreadCount(ctx, q.UserID)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT n.notification_id, o.notification_object_id, t.action_type, t.entity_type,
			o.entity_id, o.timestamp, n.read,
			COALESCE((SELECT array_agg(a.actor_id) FROM (
				SELECT actor_id, max(created_at) AS last_at FROM notification_change
				WHERE notification_object_id = o.notification_object_id
				GROUP BY actor_id ORDER BY last_at DESC LIMIT %d) a), '{}'),
			(SELECT COUNT(DISTINCT actor_id) FROM notification_change
			 WHERE notification_object_id = o.notification_object_id)`, previewActors) +
		from +
		fmt.Sprintf(" ORDER BY o.timestamp DESC, n.notification_id LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, q.PageSize, (q.Page-1)*q.PageSize)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.NotificationView, error) {
		var v models.NotificationView
		err := row.Scan(&v.ID, &v.ObjectID, &v.Action, &v.EntityType, &v.EntityID, &v.Timestamp, &v.Read, &v.ActorIDs, &v.ActorCount)
		return v, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan notification: %w", err)
	}
	if items == nil {
		items = []models.NotificationView{}
	}

	return &Page{Items: items, Total: total, UnreadCount: unread, Page: q.Page, PageSize: q.PageSize}, nil
}

// MarkRead moves the given unread rows owned by userID to read. Read is
// terminal; already-read rows are left alone.
func (s *Service) MarkRead(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := s.db.Exec(ctx,
		`UPDATE notification SET read = true
		 WHERE notifier_id = $1 AND notification_id = ANY($2) AND read = false`,
		userID, ids,
	)
	if err != nil {
		return 0, fmt.Errorf("mark notifications read: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *Service) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	tag, err := s.db.Exec(ctx,
		"UPDATE notification SET read = true WHERE notifier_id = $1 AND read = false", userID,
	)
	if err != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *Service) UnreadCount(ctx context.Context, userID uuid.UUID) (int, error) {
	var n int
	err := s.db.QueryRow(ctx,
		"SELECT COUNT(*) FROM notification WHERE notifier_id = $1 AND read = false", userID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return n, nil
}

func (s *Service) Delete(ctx context.Context, userID, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx,
		"DELETE FROM notification WHERE notification_id = $1 AND notifier_id = $2", id, userID,
	)
	if err != nil {
		return fmt.Errorf("delete notification: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
