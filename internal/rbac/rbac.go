// Package rbac decides which account roles hold which capabilities.
package rbac

import "bizdir/internal/models"

// Capability is a named permission checked by the core.
type Capability string

const (
	// CapabilityModerate is required to approve or reject moderated entries.
	CapabilityModerate Capability = "moderate"
	// CapabilityListSalesperson lets a user appear in the public salesperson directory.
	CapabilityListSalesperson Capability = "list_salesperson"
)

// RoleCapabilities defines what each role can do.
var RoleCapabilities = map[models.Role][]Capability{
	models.RoleAdmin:       {CapabilityModerate, CapabilityListSalesperson},
	models.RoleSalesperson: {CapabilityListSalesperson},
	models.RoleUser:        {},
}

// Actor is the authenticated caller of an operation.
type Actor struct {
	ID   uint
	Role models.Role
}

// ActorFromUser builds the actor for a loaded account.
func ActorFromUser(u *models.User) Actor {
	if u == nil {
		return Actor{}
	}
	return Actor{ID: u.ID, Role: u.Role}
}

// HasCapability checks if a role has a specific capability.
func HasCapability(role models.Role, c Capability) bool {
	caps, ok := RoleCapabilities[role]
	if !ok {
		return false
	}
	for _, have := range caps {
		if have == c {
			return true
		}
	}
	return false
}

// Authorize reports whether actor may exercise c. The zero Actor is never authorized.
func Authorize(actor Actor, c Capability) bool {
	if actor.ID == 0 {
		return false
	}
	return HasCapability(actor.Role, c)
}
