package account

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/nikhilbhutani/contractorhub/internal/database"
	"github.com/nikhilbhutani/contractorhub/internal/models"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrContractorNotFound = errors.New("contractor not found")
)

type Service struct {
	db database.Querier
}

func NewService(db database.Querier) *Service {
	return &Service{db: db}
}

const contractorColumns = `contractor_id, spectrum_id, name, owner_role_id, default_role_id, archived, created_at`

func (s *Service) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var u models.User
	err := s.db.QueryRow(ctx,
		"SELECT user_id, username, display_name, role, created_at FROM accounts WHERE user_id = $1", id,
	).Scan(&u.ID, &u.Username, &u.DisplayName, &u.Role, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

func (s *Service) GetContractorByID(ctx context.Context, id uuid.UUID) (*models.Contractor, error) {
	return s.getContractor(ctx, "contractor_id = $1", id)
}

func (s *Service) GetContractorBySpectrumID(ctx context.Context, spectrumID string) (*models.Contractor, error) {
	return s.getContractor(ctx, "lower(spectrum_id) = lower($1)", spectrumID)
}

func (s *Service) getContractor(ctx context.Context, where string, arg any) (*models.Contractor, error) {
	var c models.Contractor
	err := s.db.QueryRow(ctx,
		"SELECT "+contractorColumns+" FROM contractors WHERE "+where, arg,
	).Scan(&c.ID, &c.SpectrumID, &c.Name, &c.OwnerRoleID, &c.DefaultRoleID, &c.Archived, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrContractorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get contractor: %w", err)
	}
	return &c, nil
}

func (s *Service) AllUserIDs(ctx context.Context) ([]uuid.UUID, error) {
	return s.ids(ctx, "SELECT user_id FROM accounts")
}

func (s *Service) SiteAdminIDs(ctx context.Context) ([]uuid.UUID, error) {
	return s.ids(ctx, "SELECT user_id FROM accounts WHERE role = $1", models.SiteRoleAdmin)
}

// ContractorOwnerIDs returns the holders of each active contractor's owner role.
func (s *Service) ContractorOwnerIDs(ctx context.Context) ([]uuid.UUID, error) {
	return s.ids(ctx,
		`SELECT DISTINCT mr.user_id
		 FROM contractor_member_roles mr
		 JOIN contractors c ON c.owner_role_id = mr.role_id
		 WHERE c.archived = false`)
}

// AllContractorMemberIDs returns every user holding a role in any active contractor.
func (s *Service) AllContractorMemberIDs(ctx context.Context) ([]uuid.UUID, error) {
	return s.ids(ctx,
		`SELECT DISTINCT mr.user_id
		 FROM contractor_member_roles mr
		 JOIN contractor_roles r ON r.role_id = mr.role_id
		 JOIN contractors c ON c.contractor_id = r.contractor_id
		 WHERE c.archived = false
		 UNION
		 SELECT cm.user_id FROM contractor_members cm
		 JOIN contractors c ON c.contractor_id = cm.contractor_id
		 WHERE c.archived = false`)
}

func (s *Service) ids(ctx context.Context, query string, args ...any) ([]uuid.UUID, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query user ids: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, fmt.Errorf("scan user ids: %w", err)
	}
	return ids, nil
}
