// Package auth classifies the roles carried in access tokens.
package auth

import "github.com/orris-inc/livedesk/internal/shared/constants"

// IsStaff reports whether role belongs to support staff (agents and admins).
func IsStaff(role string) bool {
	return role == constants.RoleAgent || role == constants.RoleAdmin
}

func IsAdmin(role string) bool {
	return role == constants.RoleAdmin
}

// IsGuest reports whether role is an anonymous visitor.
func IsGuest(role string) bool {
	return role == constants.RoleGuest
}

// IsValidRole reports whether role is one of the known roles.
func IsValidRole(role string) bool {
	switch role {
	case constants.RoleCustomer, constants.RoleGuest, constants.RoleAgent, constants.RoleAdmin:
		return true
	}
	return false
}
