package models

import (
	"time"

	"github.com/google/uuid"
)

type Contractor struct {
	ID            uuid.UUID `json:"contractor_id" db:"contractor_id"`
	SpectrumID    string    `json:"spectrum_id" db:"spectrum_id"`
	Name          string    `json:"name" db:"name"`
	OwnerRoleID   uuid.UUID `json:"owner_role_id" db:"owner_role_id"`
	DefaultRoleID uuid.UUID `json:"default_role_id" db:"default_role_id"`
	Archived      bool      `json:"archived" db:"archived"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

type Invite struct {
	ID           uuid.UUID `json:"invite_id" db:"invite_id"`
	ContractorID uuid.UUID `json:"contractor_id" db:"contractor_id"`
	UserID       uuid.UUID `json:"user_id" db:"user_id"`
	InviterID    uuid.UUID `json:"inviter_id" db:"inviter_id"`
	Message      string    `json:"message" db:"message"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}
