package roles

import (
	"math"

	"github.com/google/uuid"
	"github.com/nikhilbhutani/contractorhub/internal/models"
)

// NoRank is the rank of a user holding no role: junior to every role.
const NoRank = math.MaxInt

// MinPosition returns the most senior (lowest) position among roles, or
// NoRank when roles is empty.
func MinPosition(roles []models.Role) int {
	rank := NoRank
	for _, r := range roles {
		if r.Position < rank {
			rank = r.Position
		}
	}
	return rank
}

// EffectivePermissions ORs the flags of every held role. Holding the owner
// role implies every flag.
func EffectivePermissions(roles []models.Role, ownerRoleID uuid.UUID) models.RolePermissions {
	var perms models.RolePermissions
	for _, r := range roles {
		if ownerRoleID != uuid.Nil && r.ID == ownerRoleID {
			return models.FullPermissions()
		}
		perms = perms.Or(r.RolePermissions)
	}
	return perms
}
