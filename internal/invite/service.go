package invite

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/nikhilbhutani/contractorhub/internal/audit"
	"github.com/nikhilbhutani/contractorhub/internal/database"
	"github.com/nikhilbhutani/contractorhub/internal/dispatch"
	"github.com/nikhilbhutani/contractorhub/internal/models"
	"github.com/nikhilbhutani/contractorhub/internal/roles"
)

var (
	ErrInviteNotFound = errors.New("invite not found")
	ErrAlreadyMember  = errors.New("user is already a member")
)

type Permissions interface {
	HasPermission(ctx context.Context, contractorID, userID uuid.UUID, perm models.Permission) (bool, error)
	IsMember(ctx context.Context, contractorID, userID uuid.UUID) (bool, error)
}

type Auditor interface {
	Record(ctx context.Context, e audit.Entry) error
	RecordTx(ctx context.Context, q database.Querier, e audit.Entry) error
}

type Notifier interface {
	ContractorInvite(ctx context.Context, ev dispatch.ContractorInvite) (dispatch.Result, error)
}

type Service struct {
	db     database.DB
	perms  Permissions
	audit  Auditor
	notify Notifier
	cache  roles.Invalidator
}

func NewService(db database.DB, perms Permissions, auditor Auditor, notify Notifier, cache roles.Invalidator) *Service {
	return &Service{db: db, perms: perms, audit: auditor, notify: notify, cache: cache}
}

type CreateRequest struct {
	UserID  uuid.UUID `json:"user_id" validate:"required"`
	Message string    `json:"message" validate:"max=1000"`
}

const inviteColumns = `invite_id, contractor_id, user_id, inviter_id, message, created_at`

func scanInvite(row pgx.Row) (models.Invite, error) {
	var inv models.Invite
	err := row.Scan(&inv.ID, &inv.ContractorID, &inv.UserID, &inv.InviterID, &inv.Message, &inv.CreatedAt)
	return inv, err
}

// Create invites a user to the contractor. Re-inviting the same user
// replaces the pending invite's message and inviter.
func (s *Service) Create(ctx context.Context, c *models.Contractor, actorID uuid.UUID, req CreateRequest) (*models.Invite, error) {
	ok, err := s.perms.HasPermission(ctx, c.ID, actorID, models.PermManageInvites)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, roles.ErrForbidden
	}
	member, err := s.perms.IsMember(ctx, c.ID, req.UserID)
	if err != nil {
		return nil, err
	}
	if member {
		return nil, ErrAlreadyMember
	}

	inv, err := scanInvite(s.db.QueryRow(ctx,
		`INSERT INTO contractor_invites (contractor_id, user_id, inviter_id, message)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (contractor_id, user_id)
		 DO UPDATE SET inviter_id = EXCLUDED.inviter_id, message = EXCLUDED.message
		 RETURNING `+inviteColumns,
		c.ID, req.UserID, actorID, req.Message,
	))
	if err != nil {
		return nil, fmt.Errorf("insert invite: %w", err)
	}

	err = s.audit.Record(ctx, audit.Entry{
		Action:       models.AuditInviteCreated,
		ActorID:      actorID,
		ContractorID: &c.ID,
		SubjectType:  "user",
		SubjectID:    req.UserID.String(),
		Metadata:     map[string]any{"invite_id": inv.ID, "message": req.Message},
	})
	if err != nil {
		return &inv, fmt.Errorf("audit invite create: %w", err)
	}

	_, err = s.notify.ContractorInvite(ctx, dispatch.ContractorInvite{
		InviteID:       inv.ID,
		ContractorID:   c.ID,
		ContractorName: c.Name,
		UserID:         req.UserID,
		InviterID:      actorID,
	})
	if err != nil {
		return &inv, fmt.Errorf("notify invite: %w", err)
	}
	return &inv, nil
}

func (s *Service) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Invite, error) {
	return s.list(ctx, "user_id = $1", userID)
}

func (s *Service) ListForContractor(ctx context.Context, c *models.Contractor, actorID uuid.UUID) ([]models.Invite, error) {
	ok, err := s.perms.HasPermission(ctx, c.ID, actorID, models.PermManageInvites)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, roles.ErrForbidden
	}
	return s.list(ctx, "contractor_id = $1", c.ID)
}

func (s *Service) list(ctx context.Context, where string, arg any) ([]models.Invite, error) {
	rows, err := s.db.Query(ctx,
		"SELECT "+inviteColumns+" FROM contractor_invites WHERE "+where+" ORDER BY created_at DESC", arg,
	)
	if err != nil {
		return nil, fmt.Errorf("list invites: %w", err)
	}
	invites, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Invite, error) {
		return scanInvite(row)
	})
	if err != nil {
		return nil, fmt.Errorf("scan invite: %w", err)
	}
	if invites == nil {
		invites = []models.Invite{}
	}
	return invites, nil
}

// Accept joins the invited user to the contractor with its default role and
// consumes the invite. The audit entry is written in the same transaction.
func (s *Service) Accept(ctx context.Context, inviteID, userID uuid.UUID) (*models.Invite, error) {
	var inv models.Invite
	err := database.InTx(ctx, s.db, func(tx pgx.Tx) error {
		var defaultRoleID uuid.UUID
		err := tx.QueryRow(ctx,
			`DELETE FROM contractor_invites i
			 USING contractors c
			 WHERE i.invite_id = $1 AND i.user_id = $2 AND c.contractor_id = i.contractor_id
			 RETURNING i.invite_id, i.contractor_id, i.user_id, i.inviter_id, i.message, i.created_at, c.default_role_id`,
			inviteID, userID,
		).Scan(&inv.ID, &inv.ContractorID, &inv.UserID, &inv.InviterID, &inv.Message, &inv.CreatedAt, &defaultRoleID)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrInviteNotFound
		}
		if err != nil {
			return fmt.Errorf("consume invite: %w", err)
		}

		if _, err := tx.Exec(ctx,
			"INSERT INTO contractor_member_roles (user_id, role_id) VALUES ($1, $2) ON CONFLICT DO NOTHING",
			userID, defaultRoleID,
		); err != nil {
			return fmt.Errorf("grant default role: %w", err)
		}

		return s.audit.RecordTx(ctx, tx, audit.Entry{
			Action:       models.AuditMemberJoined,
			ActorID:      userID,
			ContractorID: &inv.ContractorID,
			SubjectType:  "user",
			SubjectID:    userID.String(),
			Metadata:     map[string]any{"invite_id": inv.ID, "inviter_id": inv.InviterID},
		})
	})
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, inv.ContractorID); err != nil {
			slog.Warn("role cache invalidation failed", "contractor_id", inv.ContractorID, "error", err)
		}
	}
	return &inv, nil
}

func (s *Service) Decline(ctx context.Context, inviteID, userID uuid.UUID) error {
	var contractorID uuid.UUID
	err := s.db.QueryRow(ctx,
		"DELETE FROM contractor_invites WHERE invite_id = $1 AND user_id = $2 RETURNING contractor_id",
		inviteID, userID,
	).Scan(&contractorID)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrInviteNotFound
	}
	if err != nil {
		return fmt.Errorf("delete invite: %w", err)
	}

	err = s.audit.Record(ctx, audit.Entry{
		Action:       models.AuditInviteDeclined,
		ActorID:      userID,
		ContractorID: &contractorID,
		SubjectType:  "invite",
		SubjectID:    inviteID.String(),
	})
	if err != nil {
		return fmt.Errorf("audit invite decline: %w", err)
	}
	return nil
}
