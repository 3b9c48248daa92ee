package roles

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/nikhilbhutani/contractorhub/internal/account"
	"github.com/nikhilbhutani/contractorhub/internal/database"
	"github.com/nikhilbhutani/contractorhub/internal/models"
)

// TxHook runs inside the store's transaction after the mutation, typically to
// write the audit entry documenting it.
type TxHook func(ctx context.Context, q database.Querier) error

type PGStore struct {
	db database.DB
}

func NewPGStore(db database.DB) *PGStore {
	return &PGStore{db: db}
}

const roleColumns = `role_id, contractor_id, name, position,
	manage_roles, manage_orders, manage_invites, manage_market, manage_webhooks,
	manage_recruiting, manage_blocklist, manage_org_details, manage_stock, kick_members`

func scanRole(row pgx.Row) (models.Role, error) {
	var r models.Role
	err := row.Scan(&r.ID, &r.ContractorID, &r.Name, &r.Position,
		&r.ManageRoles, &r.ManageOrders, &r.ManageInvites, &r.ManageMarket, &r.ManageWebhooks,
		&r.ManageRecruiting, &r.ManageBlocklist, &r.ManageOrgDetails, &r.ManageStock, &r.KickMembers)
	return r, err
}

func (s *PGStore) Snapshot(ctx context.Context, contractorID uuid.UUID) (*Snapshot, error) {
	snap := Snapshot{ContractorID: contractorID}
	err := s.db.QueryRow(ctx,
		"SELECT owner_role_id, default_role_id FROM contractors WHERE contractor_id = $1", contractorID,
	).Scan(&snap.OwnerRoleID, &snap.DefaultRoleID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, account.ErrContractorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get contractor roles: %w", err)
	}

	snap.Roles, err = s.ListRoles(ctx, contractorID)
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

func (s *PGStore) ListRoles(ctx context.Context, contractorID uuid.UUID) ([]models.Role, error) {
	rows, err := s.db.Query(ctx,
		"SELECT "+roleColumns+" FROM contractor_roles WHERE contractor_id = $1 ORDER BY position, name",
		contractorID,
	)
	if err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	roles, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Role, error) {
		return scanRole(row)
	})
	if err != nil {
		return nil, fmt.Errorf("scan role: %w", err)
	}
	return roles, nil
}

func (s *PGStore) GetRole(ctx context.Context, contractorID, roleID uuid.UUID) (*models.Role, error) {
	r, err := scanRole(s.db.QueryRow(ctx,
		"SELECT "+roleColumns+" FROM contractor_roles WHERE contractor_id = $1 AND role_id = $2",
		contractorID, roleID,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrRoleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get role: %w", err)
	}
	return &r, nil
}

// MemberRoleIDs falls back to the legacy contractor_members row when the user
// has no contractor_member_roles rows: 'owner' maps to the owner role and
// anything else to the default role.
func (s *PGStore) MemberRoleIDs(ctx context.Context, contractorID, userID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := s.db.Query(ctx,
		`SELECT mr.role_id
		 FROM contractor_member_roles mr
		 JOIN contractor_roles r ON r.role_id = mr.role_id
		 WHERE r.contractor_id = $1 AND mr.user_id = $2`,
		contractorID, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query member roles: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, fmt.Errorf("scan member roles: %w", err)
	}
	if len(ids) > 0 {
		return ids, nil
	}

	var legacy uuid.UUID
	err = s.db.QueryRow(ctx,
		`SELECT CASE cm.role WHEN 'owner' THEN c.owner_role_id ELSE c.default_role_id END
		 FROM contractor_members cm
		 JOIN contractors c ON c.contractor_id = cm.contractor_id
		 WHERE cm.contractor_id = $1 AND cm.user_id = $2`,
		contractorID, userID,
	).Scan(&legacy)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query legacy membership: %w", err)
	}
	return []uuid.UUID{legacy}, nil
}

func (s *PGStore) Members(ctx context.Context, contractorID uuid.UUID) (map[uuid.UUID][]uuid.UUID, error) {
	rows, err := s.db.Query(ctx,
		`SELECT mr.user_id, mr.role_id
		 FROM contractor_member_roles mr
		 JOIN contractor_roles r ON r.role_id = mr.role_id
		 WHERE r.contractor_id = $1
		 UNION ALL
		 SELECT cm.user_id, CASE cm.role WHEN 'owner' THEN c.owner_role_id ELSE c.default_role_id END
		 FROM contractor_members cm
		 JOIN contractors c ON c.contractor_id = cm.contractor_id
		 WHERE cm.contractor_id = $1
		   AND NOT EXISTS (
			 SELECT 1 FROM contractor_member_roles mr2
			 JOIN contractor_roles r2 ON r2.role_id = mr2.role_id
			 WHERE r2.contractor_id = $1 AND mr2.user_id = cm.user_id
		   )`,
		contractorID,
	)
	if err != nil {
		return nil, fmt.Errorf("query members: %w", err)
	}
	defer rows.Close()

	members := map[uuid.UUID][]uuid.UUID{}
	for rows.Next() {
		var userID, roleID uuid.UUID
		if err := rows.Scan(&userID, &roleID); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members[userID] = append(members[userID], roleID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate members: %w", err)
	}
	return members, nil
}

func (s *PGStore) CreateRole(ctx context.Context, r *models.Role) error {
	err := s.db.QueryRow(ctx,
		`INSERT INTO contractor_roles (contractor_id, name, position,
			manage_roles, manage_orders, manage_invites, manage_market, manage_webhooks,
			manage_recruiting, manage_blocklist, manage_org_details, manage_stock, kick_members)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		 RETURNING role_id`,
		r.ContractorID, r.Name, r.Position,
		r.ManageRoles, r.ManageOrders, r.ManageInvites, r.ManageMarket, r.ManageWebhooks,
		r.ManageRecruiting, r.ManageBlocklist, r.ManageOrgDetails, r.ManageStock, r.KickMembers,
	).Scan(&r.ID)
	if err != nil {
		return fmt.Errorf("insert role: %w", err)
	}
	return nil
}

func (s *PGStore) UpdateRole(ctx context.Context, r *models.Role) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE contractor_roles SET name = $3, position = $4,
			manage_roles = $5, manage_orders = $6, manage_invites = $7, manage_market = $8,
			manage_webhooks = $9, manage_recruiting = $10, manage_blocklist = $11,
			manage_org_details = $12, manage_stock = $13, kick_members = $14
		 WHERE contractor_id = $1 AND role_id = $2`,
		r.ContractorID, r.ID, r.Name, r.Position,
		r.ManageRoles, r.ManageOrders, r.ManageInvites, r.ManageMarket,
		r.ManageWebhooks, r.ManageRecruiting, r.ManageBlocklist,
		r.ManageOrgDetails, r.ManageStock, r.KickMembers,
	)
	if err != nil {
		return fmt.Errorf("update role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRoleNotFound
	}
	return nil
}

// DeleteRole refuses the contractor's owner and default roles at the SQL
// level as well; the foreign keys on contractors would reject it anyway.
func (s *PGStore) DeleteRole(ctx context.Context, contractorID, roleID uuid.UUID, hook TxHook) error {
	return database.InTx(ctx, s.db, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`DELETE FROM contractor_roles r
			 USING contractors c
			 WHERE r.role_id = $2 AND r.contractor_id = $1 AND c.contractor_id = r.contractor_id
			   AND r.role_id <> c.owner_role_id AND r.role_id <> c.default_role_id`,
			contractorID, roleID,
		)
		if err != nil {
			return fmt.Errorf("delete role: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrRoleNotFound
		}
		return runHook(ctx, tx, hook)
	})
}

// carryLegacyRole copies a legacy-only member's derived role into
// contractor_member_roles. It must run before the member's first new-style
// grant, since that row switches the MemberRoleIDs fallback off. roleID
// identifies the contractor.
func carryLegacyRole(ctx context.Context, q database.Querier, userID, roleID uuid.UUID) error {
	_, err := q.Exec(ctx,
		`INSERT INTO contractor_member_roles (user_id, role_id)
		 SELECT cm.user_id, CASE cm.role WHEN 'owner' THEN c.owner_role_id ELSE c.default_role_id END
		 FROM contractor_roles r
		 JOIN contractors c ON c.contractor_id = r.contractor_id
		 JOIN contractor_members cm ON cm.contractor_id = r.contractor_id AND cm.user_id = $1
		 WHERE r.role_id = $2
		   AND NOT EXISTS (
			 SELECT 1 FROM contractor_member_roles mr
			 JOIN contractor_roles r2 ON r2.role_id = mr.role_id
			 WHERE r2.contractor_id = r.contractor_id AND mr.user_id = $1
		   )
		 ON CONFLICT DO NOTHING`,
		userID, roleID,
	)
	if err != nil {
		return fmt.Errorf("carry legacy membership: %w", err)
	}
	return nil
}

func (s *PGStore) AddMemberRole(ctx context.Context, userID, roleID uuid.UUID) error {
	return database.InTx(ctx, s.db, func(tx pgx.Tx) error {
		if err := carryLegacyRole(ctx, tx, userID, roleID); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx,
			"INSERT INTO contractor_member_roles (user_id, role_id) VALUES ($1, $2) ON CONFLICT DO NOTHING",
			userID, roleID,
		); err != nil {
			return fmt.Errorf("insert member role: %w", err)
		}
		return nil
	})
}

func (s *PGStore) RemoveMemberRole(ctx context.Context, userID, roleID uuid.UUID) error {
	_, err := s.db.Exec(ctx,
		"DELETE FROM contractor_member_roles WHERE user_id = $1 AND role_id = $2",
		userID, roleID,
	)
	if err != nil {
		return fmt.Errorf("delete member role: %w", err)
	}
	return nil
}

func (s *PGStore) RemoveMember(ctx context.Context, contractorID, userID uuid.UUID, hook TxHook) error {
	return database.InTx(ctx, s.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`DELETE FROM contractor_member_roles mr
			 USING contractor_roles r
			 WHERE mr.role_id = r.role_id AND r.contractor_id = $1 AND mr.user_id = $2`,
			contractorID, userID,
		); err != nil {
			return fmt.Errorf("delete member roles: %w", err)
		}
		if _, err := tx.Exec(ctx,
			"DELETE FROM contractor_members WHERE contractor_id = $1 AND user_id = $2",
			contractorID, userID,
		); err != nil {
			return fmt.Errorf("delete legacy membership: %w", err)
		}
		return runHook(ctx, tx, hook)
	})
}

// TransferOwnership moves the owner role from one member to another. The
// previous owner keeps the default role so they remain a member.
func (s *PGStore) TransferOwnership(ctx context.Context, c *models.Contractor, from, to uuid.UUID, hook TxHook) error {
	return database.InTx(ctx, s.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			"INSERT INTO contractor_member_roles (user_id, role_id) VALUES ($1, $2) ON CONFLICT DO NOTHING",
			from, c.DefaultRoleID,
		); err != nil {
			return fmt.Errorf("grant default role to previous owner: %w", err)
		}
		if _, err := tx.Exec(ctx,
			"DELETE FROM contractor_member_roles WHERE user_id = $1 AND role_id = $2",
			from, c.OwnerRoleID,
		); err != nil {
			return fmt.Errorf("revoke owner role: %w", err)
		}
		if err := carryLegacyRole(ctx, tx, to, c.OwnerRoleID); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx,
			"INSERT INTO contractor_member_roles (user_id, role_id) VALUES ($1, $2) ON CONFLICT DO NOTHING",
			to, c.OwnerRoleID,
		); err != nil {
			return fmt.Errorf("grant owner role: %w", err)
		}
		return runHook(ctx, tx, hook)
	})
}

func runHook(ctx context.Context, q database.Querier, hook TxHook) error {
	if hook == nil {
		return nil
	}
	return hook(ctx, q)
}
