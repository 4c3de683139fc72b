package authmanager

import goerrors "github.com/goliatone/go-errors"

var errEmptyRole = goerrors.New("role must not be empty", goerrors.CategoryValidation)

// RoleAdministrator is the default global role that bypasses ownership checks.
const RoleAdministrator = "administrator"

// DefaultGroupName is the group every new user joins.
const DefaultGroupName = "__default__"

// AppendRole adds role to roles when absent and reports whether it changed
// the list. Role names are compared case-sensitively.
func AppendRole(roles []string, role string) ([]string, bool) {
	if ContainsRole(roles, role) {
		return roles, false
	}
	return append(roles, role), true
}

// RemoveRole drops role from roles when present, keeping the order of the rest.
func RemoveRole(roles []string, role string) ([]string, bool) {
	for i, r := range roles {
		if r == role {
			out := make([]string, 0, len(roles)-1)
			out = append(out, roles[:i]...)
			return append(out, roles[i+1:]...), true
		}
	}
	return roles, false
}

// ContainsRole reports whether role is in roles.
func ContainsRole(roles []string, role string) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}
