package roles

import (
	"context"
	"slices"

	"github.com/google/uuid"
	"github.com/nikhilbhutani/contractorhub/internal/account"
	"github.com/nikhilbhutani/contractorhub/internal/audit"
	"github.com/nikhilbhutani/contractorhub/internal/database"
	"github.com/nikhilbhutani/contractorhub/internal/models"
)

// memStore is an in-memory Store for one or more contractors.
type memStore struct {
	contractors map[uuid.UUID]*models.Contractor
	roles       map[uuid.UUID]models.Role
	members     map[uuid.UUID]map[uuid.UUID][]uuid.UUID // contractor -> user -> roles

	snapshotCalls int
	hookErr       error
	memberErr     map[uuid.UUID]error
}

func newMemStore() *memStore {
	return &memStore{
		contractors: map[uuid.UUID]*models.Contractor{},
		roles:       map[uuid.UUID]models.Role{},
		members:     map[uuid.UUID]map[uuid.UUID][]uuid.UUID{},
	}
}

// addContractor creates a contractor with an owner role at position 0 and a
// default role at position 10.
func (m *memStore) addContractor() *models.Contractor {
	c := &models.Contractor{ID: uuid.New(), SpectrumID: "TEST", Name: "Test Org"}
	owner := m.addRole(c.ID, "owner", 0, models.RolePermissions{})
	def := m.addRole(c.ID, "member", 10, models.RolePermissions{})
	c.OwnerRoleID = owner.ID
	c.DefaultRoleID = def.ID
	m.contractors[c.ID] = c
	m.members[c.ID] = map[uuid.UUID][]uuid.UUID{}
	return c
}

func (m *memStore) addRole(contractorID uuid.UUID, name string, position int, perms models.RolePermissions) models.Role {
	r := models.Role{ID: uuid.New(), ContractorID: contractorID, Name: name, Position: position, RolePermissions: perms}
	m.roles[r.ID] = r
	return r
}

func (m *memStore) grant(contractorID, userID uuid.UUID, roleIDs ...uuid.UUID) {
	m.members[contractorID][userID] = append(m.members[contractorID][userID], roleIDs...)
}

func (m *memStore) Snapshot(_ context.Context, contractorID uuid.UUID) (*Snapshot, error) {
	m.snapshotCalls++
	c, ok := m.contractors[contractorID]
	if !ok {
		return nil, account.ErrContractorNotFound
	}
	snap := &Snapshot{ContractorID: c.ID, OwnerRoleID: c.OwnerRoleID, DefaultRoleID: c.DefaultRoleID}
	for _, r := range m.roles {
		if r.ContractorID == contractorID {
			snap.Roles = append(snap.Roles, r)
		}
	}
	return snap, nil
}

func (m *memStore) MemberRoleIDs(_ context.Context, contractorID, userID uuid.UUID) ([]uuid.UUID, error) {
	if err := m.memberErr[userID]; err != nil {
		return nil, err
	}
	return slices.Clone(m.members[contractorID][userID]), nil
}

func (m *memStore) Members(_ context.Context, contractorID uuid.UUID) (map[uuid.UUID][]uuid.UUID, error) {
	out := map[uuid.UUID][]uuid.UUID{}
	for u, ids := range m.members[contractorID] {
		if len(ids) > 0 {
			out[u] = slices.Clone(ids)
		}
	}
	return out, nil
}

func (m *memStore) ListRoles(_ context.Context, contractorID uuid.UUID) ([]models.Role, error) {
	var out []models.Role
	for _, r := range m.roles {
		if r.ContractorID == contractorID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memStore) GetRole(_ context.Context, contractorID, roleID uuid.UUID) (*models.Role, error) {
	r, ok := m.roles[roleID]
	if !ok || r.ContractorID != contractorID {
		return nil, ErrRoleNotFound
	}
	return &r, nil
}

func (m *memStore) CreateRole(_ context.Context, r *models.Role) error {
	r.ID = uuid.New()
	m.roles[r.ID] = *r
	return nil
}

func (m *memStore) UpdateRole(_ context.Context, r *models.Role) error {
	if _, ok := m.roles[r.ID]; !ok {
		return ErrRoleNotFound
	}
	m.roles[r.ID] = *r
	return nil
}

func (m *memStore) DeleteRole(ctx context.Context, contractorID, roleID uuid.UUID, hook TxHook) error {
	if err := m.runHook(ctx, hook); err != nil {
		return err
	}
	delete(m.roles, roleID)
	for u, ids := range m.members[contractorID] {
		m.members[contractorID][u] = slices.DeleteFunc(ids, func(id uuid.UUID) bool { return id == roleID })
	}
	return nil
}

func (m *memStore) AddMemberRole(_ context.Context, userID, roleID uuid.UUID) error {
	cid := m.roles[roleID].ContractorID
	if !slices.Contains(m.members[cid][userID], roleID) {
		m.grant(cid, userID, roleID)
	}
	return nil
}

func (m *memStore) RemoveMemberRole(_ context.Context, userID, roleID uuid.UUID) error {
	cid := m.roles[roleID].ContractorID
	m.members[cid][userID] = slices.DeleteFunc(m.members[cid][userID], func(id uuid.UUID) bool { return id == roleID })
	return nil
}

func (m *memStore) RemoveMember(ctx context.Context, contractorID, userID uuid.UUID, hook TxHook) error {
	if err := m.runHook(ctx, hook); err != nil {
		return err
	}
	delete(m.members[contractorID], userID)
	return nil
}

func (m *memStore) TransferOwnership(ctx context.Context, c *models.Contractor, from, to uuid.UUID, hook TxHook) error {
	if err := m.runHook(ctx, hook); err != nil {
		return err
	}
	ids := slices.DeleteFunc(m.members[c.ID][from], func(id uuid.UUID) bool { return id == c.OwnerRoleID })
	if !slices.Contains(ids, c.DefaultRoleID) {
		ids = append(ids, c.DefaultRoleID)
	}
	m.members[c.ID][from] = ids
	m.grant(c.ID, to, c.OwnerRoleID)
	return nil
}

// runHook mimics the transaction: a failing hook aborts the mutation.
func (m *memStore) runHook(ctx context.Context, hook TxHook) error {
	if m.hookErr != nil {
		return m.hookErr
	}
	if hook == nil {
		return nil
	}
	return hook(ctx, nil)
}

type fakeAuditor struct {
	entries []string
	err     error
}

func (f *fakeAuditor) Record(_ context.Context, e audit.Entry) error {
	if f.err != nil {
		return f.err
	}
	f.entries = append(f.entries, e.Action)
	return nil
}

func (f *fakeAuditor) RecordTx(ctx context.Context, _ database.Querier, e audit.Entry) error {
	return f.Record(ctx, e)
}

type fakeInvalidator struct {
	calls int
}

func (f *fakeInvalidator) Invalidate(context.Context, uuid.UUID) error {
	f.calls++
	return nil
}
