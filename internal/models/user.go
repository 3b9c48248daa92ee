package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	SiteRoleUser  = "user"
	SiteRoleAdmin = "admin"
)

type User struct {
	ID          uuid.UUID `json:"user_id" db:"user_id"`
	Username    string    `json:"username" db:"username"`
	DisplayName string    `json:"display_name,omitempty" db:"display_name"`
	Role        string    `json:"role" db:"role"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

func (u *User) IsAdmin() bool {
	return u != nil && u.Role == SiteRoleAdmin
}

type PushSubscription struct {
	ID          uuid.UUID `json:"subscription_id" db:"subscription_id"`
	UserID      uuid.UUID `json:"user_id" db:"user_id"`
	Platform    string    `json:"platform" db:"platform"`
	EndpointARN string    `json:"-" db:"endpoint_arn"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}
