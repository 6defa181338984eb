package auth

import "github.com/scrapedash/scrapedash"

// HasAnyRole returns true if any held role is one of the required roles.
// When no roles are required, any authenticated user passes.
func HasAnyRole(held []scrapedash.UserRole, required ...scrapedash.UserRole) bool {
	if len(required) == 0 {
		return true
	}
	for _, h := range held {
		for _, r := range required {
			if h == r {
				return true
			}
		}
	}
	return false
}

// CanAccessUser returns true if the requester may act on the target user's
// resources: admins may act on anyone, everyone else only on themselves.
func CanAccessUser(requesterID string, requesterRoles []scrapedash.UserRole, targetUserID string) bool {
	if HasAnyRole(requesterRoles, scrapedash.UserRoleAdmin) {
		return true
	}
	return requesterID != "" && requesterID == targetUserID
}
