package roles

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/google/uuid"
	"github.com/nikhilbhutani/contractorhub/internal/audit"
	"github.com/nikhilbhutani/contractorhub/internal/database"
	"github.com/nikhilbhutani/contractorhub/internal/models"
)

var (
	ErrForbidden       = errors.New("insufficient permissions")
	ErrRoleNotFound    = errors.New("role not found")
	ErrProtectedRole   = errors.New("role is protected")
	ErrNotMember       = errors.New("user is not a member of this contractor")
	ErrLastRole        = errors.New("member must keep at least one role")
	ErrInvalidPosition = errors.New("position 0 is reserved for the owner role")
	ErrSelfAction      = errors.New("cannot perform this action on yourself")
)

// Store is the persistence needed by role management.
type Store interface {
	Source
	ListRoles(ctx context.Context, contractorID uuid.UUID) ([]models.Role, error)
	GetRole(ctx context.Context, contractorID, roleID uuid.UUID) (*models.Role, error)
	CreateRole(ctx context.Context, r *models.Role) error
	UpdateRole(ctx context.Context, r *models.Role) error
	DeleteRole(ctx context.Context, contractorID, roleID uuid.UUID, hook TxHook) error
	AddMemberRole(ctx context.Context, userID, roleID uuid.UUID) error
	RemoveMemberRole(ctx context.Context, userID, roleID uuid.UUID) error
	RemoveMember(ctx context.Context, contractorID, userID uuid.UUID, hook TxHook) error
	TransferOwnership(ctx context.Context, c *models.Contractor, from, to uuid.UUID, hook TxHook) error
}

type Auditor interface {
	Record(ctx context.Context, e audit.Entry) error
	RecordTx(ctx context.Context, q database.Querier, e audit.Entry) error
}

type Invalidator interface {
	Invalidate(ctx context.Context, contractorID uuid.UUID) error
}

// RoleInput is the mutable part of a role.
type RoleInput struct {
	Name     string `json:"name" validate:"required,max=64"`
	Position int    `json:"position" validate:"gte=0"`
	models.RolePermissions
}

type Member struct {
	UserID uuid.UUID     `json:"user_id"`
	Roles  []models.Role `json:"roles"`
}

// Service enforces the hierarchy rules for role and membership changes.
// Reads go through the evaluator; writes go to the store and invalidate the
// cached snapshot once committed.
type Service struct {
	store Store
	eval  *Evaluator
	audit Auditor
	cache Invalidator
}

func NewService(store Store, eval *Evaluator, auditor Auditor, cache Invalidator) *Service {
	return &Service{store: store, eval: eval, audit: auditor, cache: cache}
}

func (s *Service) Evaluator() *Evaluator {
	return s.eval
}

func (s *Service) ListRoles(ctx context.Context, c *models.Contractor, actorID uuid.UUID) ([]models.Role, error) {
	if err := s.requireMember(ctx, c.ID, actorID); err != nil {
		return nil, err
	}
	return s.store.ListRoles(ctx, c.ID)
}

func (s *Service) ListMembers(ctx context.Context, c *models.Contractor, actorID uuid.UUID) ([]Member, error) {
	if err := s.requireMember(ctx, c.ID, actorID); err != nil {
		return nil, err
	}
	snap, err := s.eval.src.Snapshot(ctx, c.ID)
	if err != nil {
		return nil, fmt.Errorf("load role snapshot: %w", err)
	}
	members, err := s.eval.src.Members(ctx, c.ID)
	if err != nil {
		return nil, fmt.Errorf("load members: %w", err)
	}

	out := make([]Member, 0, len(members))
	for userID, roleIDs := range members {
		out = append(out, Member{UserID: userID, Roles: snap.Held(roleIDs)})
	}
	slices.SortFunc(out, func(a, b Member) int {
		if ra, rb := MinPosition(a.Roles), MinPosition(b.Roles); ra != rb {
			if ra < rb {
				return -1
			}
			return 1
		}
		return compareIDs(a.UserID, b.UserID)
	})
	return out, nil
}

func (s *Service) CreateRole(ctx context.Context, c *models.Contractor, actorID uuid.UUID, in RoleInput) (*models.Role, error) {
	if in.Position == 0 {
		return nil, ErrInvalidPosition
	}
	if err := s.requireGrantable(ctx, c.ID, actorID, in); err != nil {
		return nil, err
	}

	role := &models.Role{ContractorID: c.ID, Name: in.Name, Position: in.Position, RolePermissions: in.RolePermissions}
	if err := s.store.CreateRole(ctx, role); err != nil {
		return nil, err
	}
	s.invalidate(ctx, c.ID)

	err := s.audit.Record(ctx, audit.Entry{
		Action:       models.AuditRoleCreated,
		ActorID:      actorID,
		ContractorID: &c.ID,
		SubjectType:  "role",
		SubjectID:    role.ID.String(),
		Metadata:     audit.Diff(nil, role),
	})
	if err != nil {
		return role, fmt.Errorf("audit role create: %w", err)
	}
	return role, nil
}

func (s *Service) UpdateRole(ctx context.Context, c *models.Contractor, actorID, roleID uuid.UUID, in RoleInput) (*models.Role, error) {
	before, err := s.store.GetRole(ctx, c.ID, roleID)
	if err != nil {
		return nil, err
	}
	if err := s.requireManage(ctx, c.ID, roleID, actorID); err != nil {
		return nil, err
	}
	if in.Position == 0 {
		return nil, ErrInvalidPosition
	}
	if err := s.requireGrantable(ctx, c.ID, actorID, in); err != nil {
		return nil, err
	}

	after := *before
	after.Name = in.Name
	after.Position = in.Position
	after.RolePermissions = in.RolePermissions
	if err := s.store.UpdateRole(ctx, &after); err != nil {
		return nil, err
	}
	s.invalidate(ctx, c.ID)

	err = s.audit.Record(ctx, audit.Entry{
		Action:       models.AuditRoleUpdated,
		ActorID:      actorID,
		ContractorID: &c.ID,
		SubjectType:  "role",
		SubjectID:    roleID.String(),
		Metadata:     audit.Diff(before, after),
	})
	if err != nil {
		return &after, fmt.Errorf("audit role update: %w", err)
	}
	return &after, nil
}

// DeleteRole removes a role and, through the foreign key, every assignment
// of it. The owner and default roles cannot be deleted.
func (s *Service) DeleteRole(ctx context.Context, c *models.Contractor, actorID, roleID uuid.UUID) error {
	if roleID == c.OwnerRoleID || roleID == c.DefaultRoleID {
		return ErrProtectedRole
	}
	role, err := s.store.GetRole(ctx, c.ID, roleID)
	if err != nil {
		return err
	}
	if err := s.requireManage(ctx, c.ID, roleID, actorID); err != nil {
		return err
	}

	err = s.store.DeleteRole(ctx, c.ID, roleID, s.auditHook(audit.Entry{
		Action:       models.AuditRoleDeleted,
		ActorID:      actorID,
		ContractorID: &c.ID,
		SubjectType:  "role",
		SubjectID:    roleID.String(),
		Metadata:     audit.Diff(role, nil),
	}))
	if err != nil {
		return err
	}
	s.invalidate(ctx, c.ID)
	return nil
}

// AssignRole gives target an additional role. The owner role only moves
// through TransferOwnership.
func (s *Service) AssignRole(ctx context.Context, c *models.Contractor, actorID, targetID, roleID uuid.UUID) error {
	if roleID == c.OwnerRoleID {
		return ErrProtectedRole
	}
	if _, err := s.store.GetRole(ctx, c.ID, roleID); err != nil {
		return err
	}
	if err := s.requireManage(ctx, c.ID, roleID, actorID); err != nil {
		return err
	}
	if err := s.requireTarget(ctx, c.ID, actorID, targetID); err != nil {
		return err
	}

	if err := s.store.AddMemberRole(ctx, targetID, roleID); err != nil {
		return err
	}
	s.invalidate(ctx, c.ID)

	return s.recordMember(ctx, c, actorID, targetID, models.AuditMemberRoleAdded, roleID)
}

func (s *Service) RemoveRole(ctx context.Context, c *models.Contractor, actorID, targetID, roleID uuid.UUID) error {
	if roleID == c.OwnerRoleID {
		return ErrProtectedRole
	}
	if _, err := s.store.GetRole(ctx, c.ID, roleID); err != nil {
		return err
	}
	if err := s.requireManage(ctx, c.ID, roleID, actorID); err != nil {
		return err
	}
	if err := s.requireTarget(ctx, c.ID, actorID, targetID); err != nil {
		return err
	}

	held, err := s.store.MemberRoleIDs(ctx, c.ID, targetID)
	if err != nil {
		return err
	}
	if !slices.Contains(held, roleID) {
		return nil
	}
	if len(held) == 1 {
		return ErrLastRole
	}

	if err := s.store.RemoveMemberRole(ctx, targetID, roleID); err != nil {
		return err
	}
	s.invalidate(ctx, c.ID)

	return s.recordMember(ctx, c, actorID, targetID, models.AuditMemberRoleRemoved, roleID)
}

// KickMember removes target from the contractor. The actor needs
// kick_members and must strictly outrank the target; owners cannot be kicked.
func (s *Service) KickMember(ctx context.Context, c *models.Contractor, actorID, targetID uuid.UUID) error {
	if actorID == targetID {
		return ErrSelfAction
	}
	ok, err := s.eval.HasPermission(ctx, c.ID, actorID, models.PermKickMembers)
	if err != nil {
		return err
	}
	if !ok {
		return ErrForbidden
	}

	_, held, err := s.eval.MemberRoles(ctx, c.ID, targetID)
	if err != nil {
		return err
	}
	if len(held) == 0 {
		return ErrNotMember
	}
	if slices.ContainsFunc(held, func(r models.Role) bool { return r.ID == c.OwnerRoleID }) {
		return ErrProtectedRole
	}
	if denied, err := s.eval.CannotActOn(ctx, c.ID, targetID, actorID); err != nil {
		return err
	} else if denied {
		return ErrForbidden
	}

	err = s.store.RemoveMember(ctx, c.ID, targetID, s.auditHook(audit.Entry{
		Action:       models.AuditMemberRemoved,
		ActorID:      actorID,
		ContractorID: &c.ID,
		SubjectType:  "user",
		SubjectID:    targetID.String(),
	}))
	if err != nil {
		return err
	}
	s.invalidate(ctx, c.ID)
	return nil
}

// TransferOwnership hands the owner role from the acting owner to another
// member. The previous owner keeps the default role.
func (s *Service) TransferOwnership(ctx context.Context, c *models.Contractor, actorID, newOwnerID uuid.UUID) error {
	if actorID == newOwnerID {
		return ErrSelfAction
	}
	actorRoles, err := s.store.MemberRoleIDs(ctx, c.ID, actorID)
	if err != nil {
		return err
	}
	if !slices.Contains(actorRoles, c.OwnerRoleID) {
		return ErrForbidden
	}
	member, err := s.eval.IsMember(ctx, c.ID, newOwnerID)
	if err != nil {
		return err
	}
	if !member {
		return ErrNotMember
	}

	err = s.store.TransferOwnership(ctx, c, actorID, newOwnerID, s.auditHook(audit.Entry{
		Action:       models.AuditOwnershipTransfer,
		ActorID:      actorID,
		ContractorID: &c.ID,
		SubjectType:  "contractor",
		SubjectID:    c.ID.String(),
		Metadata:     map[string]any{"from": actorID, "to": newOwnerID},
	}))
	if err != nil {
		return err
	}
	s.invalidate(ctx, c.ID)
	return nil
}

func (s *Service) requireMember(ctx context.Context, contractorID, userID uuid.UUID) error {
	ok, err := s.eval.IsMember(ctx, contractorID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrForbidden
	}
	return nil
}

func (s *Service) requireManage(ctx context.Context, contractorID, roleID, actorID uuid.UUID) error {
	ok, err := s.eval.CanManageRole(ctx, contractorID, roleID, actorID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrForbidden
	}
	return nil
}

// requireGrantable checks the actor may place a role at in.Position and
// already holds every permission the role would grant.
func (s *Service) requireGrantable(ctx context.Context, contractorID, actorID uuid.UUID, in RoleInput) error {
	ok, err := s.eval.CanCreateAt(ctx, contractorID, actorID, in.Position)
	if err != nil {
		return err
	}
	if !ok {
		return ErrForbidden
	}
	perms, err := s.eval.Permissions(ctx, contractorID, actorID)
	if err != nil {
		return err
	}
	for _, p := range models.AllPermissions {
		if in.Has(p) && !perms.Has(p) {
			return ErrForbidden
		}
	}
	return nil
}

// requireTarget checks target is a member and, unless the actor is changing
// their own roles, strictly junior to the actor.
func (s *Service) requireTarget(ctx context.Context, contractorID, actorID, targetID uuid.UUID) error {
	ok, err := s.eval.IsMember(ctx, contractorID, targetID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotMember
	}
	if actorID == targetID {
		return nil
	}
	denied, err := s.eval.CannotActOn(ctx, contractorID, targetID, actorID)
	if err != nil {
		return err
	}
	if denied {
		return ErrForbidden
	}
	return nil
}

func (s *Service) recordMember(ctx context.Context, c *models.Contractor, actorID, targetID uuid.UUID, action string, roleID uuid.UUID) error {
	err := s.audit.Record(ctx, audit.Entry{
		Action:       action,
		ActorID:      actorID,
		ContractorID: &c.ID,
		SubjectType:  "user",
		SubjectID:    targetID.String(),
		Metadata:     map[string]any{"role_id": roleID},
	})
	if err != nil {
		return fmt.Errorf("audit %s: %w", action, err)
	}
	return nil
}

func (s *Service) auditHook(e audit.Entry) TxHook {
	return func(ctx context.Context, q database.Querier) error {
		return s.audit.RecordTx(ctx, q, e)
	}
}

// invalidate is best effort: a stale snapshot ages out with its TTL.
func (s *Service) invalidate(ctx context.Context, contractorID uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, contractorID); err != nil {
		slog.Warn("role cache invalidation failed", "contractor_id", contractorID, "error", err)
	}
}
