package roles

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/nikhilbhutani/contractorhub/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutranks_OwnerAndMember(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	c := &models.Contractor{ID: uuid.New()}
	owner := store.addRole(c.ID, "owner", 0, models.RolePermissions{})
	member := store.addRole(c.ID, "member", 5, models.RolePermissions{})
	c.OwnerRoleID, c.DefaultRoleID = owner.ID, member.ID
	store.contractors[c.ID] = c
	store.members[c.ID] = map[uuid.UUID][]uuid.UUID{}

	a, b := uuid.New(), uuid.New()
	store.grant(c.ID, a, member.ID)
	store.grant(c.ID, b, owner.ID)

	eval := NewEvaluator(store)

	ok, err := eval.Outranks(ctx, c.ID, b, a)
	require.NoError(t, err)
	assert.False(t, ok, "member must not act on owner")

	ok, err = eval.Outranks(ctx, c.ID, a, b)
	require.NoError(t, err)
	assert.True(t, ok, "owner acts on member")

	denied, err := eval.CannotActOn(ctx, c.ID, b, a)
	require.NoError(t, err)
	assert.True(t, denied)
}

func TestOutranks_EqualRankIsNotOutranking(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	c := store.addContractor()
	a, b := uuid.New(), uuid.New()
	store.grant(c.ID, a, c.DefaultRoleID)
	store.grant(c.ID, b, c.DefaultRoleID)

	eval := NewEvaluator(store)
	ok, err := eval.Outranks(ctx, c.ID, b, a)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNoRoleActorCannotActOnAnyone(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	c := store.addContractor()
	member := uuid.New()
	store.grant(c.ID, member, c.DefaultRoleID)
	outsider := uuid.New()

	eval := NewEvaluator(store)

	denied, err := eval.CannotActOn(ctx, c.ID, member, outsider)
	require.NoError(t, err)
	assert.True(t, denied)

	// Neither side holds a role.
	denied, err = eval.CannotActOn(ctx, c.ID, uuid.New(), outsider)
	require.NoError(t, err)
	assert.True(t, denied)

	rank, err := eval.Rank(ctx, c.ID, outsider)
	require.NoError(t, err)
	assert.Equal(t, NoRank, rank)

	can, err := eval.CanManageRole(ctx, c.ID, c.DefaultRoleID, outsider)
	require.NoError(t, err)
	assert.False(t, can)
}

func TestRankIsMinimumPosition(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	c := store.addContractor()
	officer := store.addRole(c.ID, "officer", 3, models.RolePermissions{})
	u := uuid.New()
	store.grant(c.ID, u, c.DefaultRoleID, officer.ID)

	rank, err := NewEvaluator(store).Rank(ctx, c.ID, u)
	require.NoError(t, err)
	assert.Equal(t, 3, rank)
}

func TestEffectivePermissions_OrAcrossRoles(t *testing.T) {
	for mask := 0; mask < 1<<len(models.AllPermissions); mask += 37 {
		split := mask & 0x155
		first := permsFromMask(split)
		second := permsFromMask(mask &^ split)

		got := EffectivePermissions([]models.Role{
			{ID: uuid.New(), RolePermissions: first},
			{ID: uuid.New(), RolePermissions: second},
		}, uuid.New())

		for i, p := range models.AllPermissions {
			assert.Equal(t, mask&(1<<i) != 0, got.Has(p), "mask %b perm %s", mask, p)
		}
	}
}

func TestEffectivePermissions_OwnerImpliesAll(t *testing.T) {
	owner := models.Role{ID: uuid.New(), Name: "owner"}
	got := EffectivePermissions([]models.Role{owner}, owner.ID)
	for _, p := range models.AllPermissions {
		assert.True(t, got.Has(p), p)
	}
	assert.Equal(t, models.RolePermissions{}, EffectivePermissions(nil, owner.ID))
}

func TestCanManageRole(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	c := store.addContractor()
	admin := store.addRole(c.ID, "admin", 2, models.RolePermissions{ManageRoles: true})
	officer := store.addRole(c.ID, "officer", 2, models.RolePermissions{})
	recruiter := store.addRole(c.ID, "recruiter", 4, models.RolePermissions{ManageRecruiting: true})
	u := uuid.New()
	store.grant(c.ID, u, admin.ID)

	eval := NewEvaluator(store)

	tests := []struct {
		name   string
		roleID uuid.UUID
		want   bool
	}{
		{"junior role", recruiter.ID, true},
		{"default role", c.DefaultRoleID, true},
		{"same position", officer.ID, false},
		{"own role", admin.ID, false},
		{"owner role", c.OwnerRoleID, false},
		{"unknown role", uuid.New(), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := eval.CanManageRole(ctx, c.ID, tt.roleID, u)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	// Seniority without manage_roles is not enough.
	senior := uuid.New()
	store.grant(c.ID, senior, officer.ID)
	got, err := eval.CanManageRole(ctx, c.ID, recruiter.ID, senior)
	require.NoError(t, err)
	assert.False(t, got)
}

func TestMembersWithPermission(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	c := store.addContractor()
	market := store.addRole(c.ID, "market", 3, models.RolePermissions{ManageMarket: true})

	owner, trader, plain := uuid.New(), uuid.New(), uuid.New()
	store.grant(c.ID, owner, c.OwnerRoleID)
	store.grant(c.ID, trader, c.DefaultRoleID, market.ID)
	store.grant(c.ID, plain, c.DefaultRoleID)

	got, err := NewEvaluator(store).MembersWithPermission(ctx, c.ID, models.PermManageMarket)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{owner, trader}, got)
}

func permsFromMask(mask int) models.RolePermissions {
	var rp models.RolePermissions
	for i, p := range models.AllPermissions {
		if mask&(1<<i) == 0 {
			continue
		}
		switch p {
		case models.PermManageRoles:
			rp.ManageRoles = true
		case models.PermManageOrders:
			rp.ManageOrders = true
		case models.PermManageInvites:
			rp.ManageInvites = true
		case models.PermManageMarket:
			rp.ManageMarket = true
		case models.PermManageWebhooks:
			rp.ManageWebhooks = true
		case models.PermManageRecruiting:
			rp.ManageRecruiting = true
		case models.PermManageBlocklist:
			rp.ManageBlocklist = true
		case models.PermManageOrgDetails:
			rp.ManageOrgDetails = true
		case models.PermManageStock:
			rp.ManageStock = true
		case models.PermKickMembers:
			rp.KickMembers = true
		}
	}
	return rp
}
