package models

import (
	"github.com/google/uuid"
)

// Permission names one boolean flag on a contractor role. The string value is
// also the column name in contractor_roles.
type Permission string

const (
	PermManageRoles      Permission = "manage_roles"
	PermManageOrders     Permission = "manage_orders"
	PermManageInvites    Permission = "manage_invites"
	PermManageMarket     Permission = "manage_market"
	PermManageWebhooks   Permission = "manage_webhooks"
	PermManageRecruiting Permission = "manage_recruiting"
	PermManageBlocklist  Permission = "manage_blocklist"
	PermManageOrgDetails Permission = "manage_org_details"
	PermManageStock      Permission = "manage_stock"
	PermKickMembers      Permission = "kick_members"
)

var AllPermissions = []Permission{
	PermManageRoles,
	PermManageOrders,
	PermManageInvites,
	PermManageMarket,
	PermManageWebhooks,
	PermManageRecruiting,
	PermManageBlocklist,
	PermManageOrgDetails,
	PermManageStock,
	PermKickMembers,
}

func (p Permission) Valid() bool {
	for _, known := range AllPermissions {
		if p == known {
			return true
		}
	}
	return false
}

type RolePermissions struct {
	ManageRoles      bool `json:"manage_roles" db:"manage_roles"`
	ManageOrders     bool `json:"manage_orders" db:"manage_orders"`
	ManageInvites    bool `json:"manage_invites" db:"manage_invites"`
	ManageMarket     bool `json:"manage_market" db:"manage_market"`
	ManageWebhooks   bool `json:"manage_webhooks" db:"manage_webhooks"`
	ManageRecruiting bool `json:"manage_recruiting" db:"manage_recruiting"`
	ManageBlocklist  bool `json:"manage_blocklist" db:"manage_blocklist"`
	ManageOrgDetails bool `json:"manage_org_details" db:"manage_org_details"`
	ManageStock      bool `json:"manage_stock" db:"manage_stock"`
	KickMembers      bool `json:"kick_members" db:"kick_members"`
}

func (rp RolePermissions) Has(p Permission) bool {
	switch p {
	case PermManageRoles:
		return rp.ManageRoles
	case PermManageOrders:
		return rp.ManageOrders
	case PermManageInvites:
		return rp.ManageInvites
	case PermManageMarket:
		return rp.ManageMarket
	case PermManageWebhooks:
		return rp.ManageWebhooks
	case PermManageRecruiting:
		return rp.ManageRecruiting
	case PermManageBlocklist:
		return rp.ManageBlocklist
	case PermManageOrgDetails:
		return rp.ManageOrgDetails
	case PermManageStock:
		return rp.ManageStock
	case PermKickMembers:
		return rp.KickMembers
	}
	return false
}

// Or merges two permission sets flag by flag.
func (rp RolePermissions) Or(other RolePermissions) RolePermissions {
	return RolePermissions{
		ManageRoles:      rp.ManageRoles || other.ManageRoles,
		ManageOrders:     rp.ManageOrders || other.ManageOrders,
		ManageInvites:    rp.ManageInvites || other.ManageInvites,
		ManageMarket:     rp.ManageMarket || other.ManageMarket,
		ManageWebhooks:   rp.ManageWebhooks || other.ManageWebhooks,
		ManageRecruiting: rp.ManageRecruiting || other.ManageRecruiting,
		ManageBlocklist:  rp.ManageBlocklist || other.ManageBlocklist,
		ManageOrgDetails: rp.ManageOrgDetails || other.ManageOrgDetails,
		ManageStock:      rp.ManageStock || other.ManageStock,
		KickMembers:      rp.KickMembers || other.KickMembers,
	}
}

// FullPermissions is what the owner role implies regardless of its stored flags.
func FullPermissions() RolePermissions {
	return RolePermissions{
		ManageRoles: true, ManageOrders: true, ManageInvites: true, ManageMarket: true,
		ManageWebhooks: true, ManageRecruiting: true, ManageBlocklist: true,
		ManageOrgDetails: true, ManageStock: true, KickMembers: true,
	}
}

// Role belongs to exactly one contractor. Lower Position is more senior.
type Role struct {
	ID           uuid.UUID `json:"role_id" db:"role_id"`
	ContractorID uuid.UUID `json:"contractor_id" db:"contractor_id"`
	Name         string    `json:"name" db:"name"`
	Position     int       `json:"position" db:"position"`
	RolePermissions
}
