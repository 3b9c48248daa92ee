package roles

import (
	"bytes"
	"context"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"github.com/nikhilbhutani/contractorhub/internal/models"
)

// Snapshot is the role table of one contractor at a point in time.
type Snapshot struct {
	ContractorID  uuid.UUID     `json:"contractor_id"`
	OwnerRoleID   uuid.UUID     `json:"owner_role_id"`
	DefaultRoleID uuid.UUID     `json:"default_role_id"`
	Roles         []models.Role `json:"roles"`
}

func (s *Snapshot) Role(id uuid.UUID) (models.Role, bool) {
	for _, r := range s.Roles {
		if r.ID == id {
			return r, true
		}
	}
	return models.Role{}, false
}

// Held resolves role ids against the snapshot, dropping ids that no longer exist.
func (s *Snapshot) Held(ids []uuid.UUID) []models.Role {
	held := make([]models.Role, 0, len(ids))
	for _, id := range ids {
		if r, ok := s.Role(id); ok {
			held = append(held, r)
		}
	}
	return held
}

// Source provides role data for a contractor. PGStore reads it from Postgres;
// CachedSource layers a versioned Redis snapshot on top.
type Source interface {
	Snapshot(ctx context.Context, contractorID uuid.UUID) (*Snapshot, error)
	MemberRoleIDs(ctx context.Context, contractorID, userID uuid.UUID) ([]uuid.UUID, error)
	// Members maps each member of the contractor to the role ids they hold.
	Members(ctx context.Context, contractorID uuid.UUID) (map[uuid.UUID][]uuid.UUID, error)
}

// Evaluator answers permission and rank questions. Every method is a
// predicate; a false result is not an error and callers decide how to refuse.
type Evaluator struct {
	src Source
}

func NewEvaluator(src Source) *Evaluator {
	return &Evaluator{src: src}
}

func (e *Evaluator) MemberRoles(ctx context.Context, contractorID, userID uuid.UUID) (*Snapshot, []models.Role, error) {
	snap, err := e.src.Snapshot(ctx, contractorID)
	if err != nil {
		return nil, nil, fmt.Errorf("load role snapshot: %w", err)
	}
	ids, err := e.src.MemberRoleIDs(ctx, contractorID, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("load member roles: %w", err)
	}
	return snap, snap.Held(ids), nil
}

// Rank is the user's minimum role position, or NoRank.
func (e *Evaluator) Rank(ctx context.Context, contractorID, userID uuid.UUID) (int, error) {
	_, held, err := e.MemberRoles(ctx, contractorID, userID)
	if err != nil {
		return 0, err
	}
	return MinPosition(held), nil
}

func (e *Evaluator) IsMember(ctx context.Context, contractorID, userID uuid.UUID) (bool, error) {
	_, held, err := e.MemberRoles(ctx, contractorID, userID)
	if err != nil {
		return false, err
	}
	return len(held) > 0, nil
}

// Outranks reports whether actor's most senior role is strictly more senior
// than target's. An actor with no role never outranks anyone.
func (e *Evaluator) Outranks(ctx context.Context, contractorID, targetID, actorID uuid.UUID) (bool, error) {
	targetRank, err := e.Rank(ctx, contractorID, targetID)
	if err != nil {
		return false, err
	}
	actorRank, err := e.Rank(ctx, contractorID, actorID)
	if err != nil {
		return false, err
	}
	return actorRank != NoRank && actorRank < targetRank, nil
}

// CannotActOn is the refusal form of Outranks: true when the target is equal
// or senior to the actor, including whenever the actor holds no role.
func (e *Evaluator) CannotActOn(ctx context.Context, contractorID, targetID, actorID uuid.UUID) (bool, error) {
	ok, err := e.Outranks(ctx, contractorID, targetID, actorID)
	if err != nil {
		return false, err
	}
	return !ok, nil
}

func (e *Evaluator) Permissions(ctx context.Context, contractorID, userID uuid.UUID) (models.RolePermissions, error) {
	snap, held, err := e.MemberRoles(ctx, contractorID, userID)
	if err != nil {
		return models.RolePermissions{}, err
	}
	return EffectivePermissions(held, snap.OwnerRoleID), nil
}

func (e *Evaluator) HasPermission(ctx context.Context, contractorID, userID uuid.UUID, perm models.Permission) (bool, error) {
	perms, err := e.Permissions(ctx, contractorID, userID)
	if err != nil {
		return false, err
	}
	return perms.Has(perm), nil
}

// CanManageRole requires manage_roles on at least one held role and a rank
// strictly senior to the role's position. A role that does not exist in the
// contractor cannot be managed.
func (e *Evaluator) CanManageRole(ctx context.Context, contractorID, roleID, userID uuid.UUID) (bool, error) {
	snap, held, err := e.MemberRoles(ctx, contractorID, userID)
	if err != nil {
		return false, err
	}
	role, ok := snap.Role(roleID)
	if !ok || len(held) == 0 {
		return false, nil
	}
	if !EffectivePermissions(held, snap.OwnerRoleID).ManageRoles {
		return false, nil
	}
	return MinPosition(held) < role.Position, nil
}

// CanCreateAt reports whether the user may create a role at position: the
// same rule as CanManageRole, applied to a role that does not exist yet.
func (e *Evaluator) CanCreateAt(ctx context.Context, contractorID, userID uuid.UUID, position int) (bool, error) {
	snap, held, err := e.MemberRoles(ctx, contractorID, userID)
	if err != nil {
		return false, err
	}
	if len(held) == 0 || !EffectivePermissions(held, snap.OwnerRoleID).ManageRoles {
		return false, nil
	}
	return MinPosition(held) < position, nil
}

// MembersWithPermission returns members whose OR-across-roles permissions
// include perm.
func (e *Evaluator) MembersWithPermission(ctx context.Context, contractorID uuid.UUID, perm models.Permission) ([]uuid.UUID, error) {
	snap, err := e.src.Snapshot(ctx, contractorID)
	if err != nil {
		return nil, fmt.Errorf("load role snapshot: %w", err)
	}
	members, err := e.src.Members(ctx, contractorID)
	if err != nil {
		return nil, fmt.Errorf("load members: %w", err)
	}

	var out []uuid.UUID
	for userID, roleIDs := range members {
		if EffectivePermissions(snap.Held(roleIDs), snap.OwnerRoleID).Has(perm) {
			out = append(out, userID)
		}
	}
	sortIDs(out)
	return out, nil
}

func (e *Evaluator) MemberIDs(ctx context.Context, contractorID uuid.UUID) ([]uuid.UUID, error) {
	members, err := e.src.Members(ctx, contractorID)
	if err != nil {
		return nil, fmt.Errorf("load members: %w", err)
	}
	out := make([]uuid.UUID, 0, len(members))
	for userID := range members {
		out = append(out, userID)
	}
	sortIDs(out)
	return out, nil
}

func sortIDs(ids []uuid.UUID) {
	slices.SortFunc(ids, compareIDs)
}

func compareIDs(a, b uuid.UUID) int {
	return bytes.Compare(a[:], b[:])
}
