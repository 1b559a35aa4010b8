package accounts

import (
	"fmt"
	"strings"
)

// UserRole is the account role
type UserRole string

const (
	// RoleAnonymous registered but not yet verified
	RoleAnonymous UserRole = "ANONYMOUS"
	// RoleAuthenticated verified account
	RoleAuthenticated UserRole = "AUTHENTICATED"
	// RoleManager manages other accounts
	RoleManager UserRole = "MANAGER"
	// RoleAdmin full administrative access
	RoleAdmin UserRole = "ADMIN"
	// RoleSelf is only meaningful inside a RoleSet: the actor is the target
	RoleSelf UserRole = "SELF"
)

// IsValid checks if the role is one of the predefined account roles
func (r UserRole) IsValid() bool {
	switch r {
	case RoleAnonymous, RoleAuthenticated, RoleManager, RoleAdmin:
		return true
	default:
		return false
	}
}

func (r UserRole) String() string {
	return string(r)
}

// GetAllRoles returns all assignable roles
func GetAllRoles() []UserRole {
	return []UserRole{
		RoleAnonymous,
		RoleAuthenticated,
		RoleManager,
		RoleAdmin,
	}
}

// ParseRole parses a string into a UserRole, case insensitive
func ParseRole(roleStr string) (UserRole, error) {
	role := UserRole(strings.ToUpper(strings.TrimSpace(roleStr)))
	if !role.IsValid() {
		return "", invalidRoleError()
	}
	return role, nil
}

// IsPrivileged reports whether assigning the role needs AssignPrivilegedRoles
func (r UserRole) IsPrivileged() bool {
	return r == RoleManager || r == RoleAdmin
}

// invalidRoleError clones ErrInvalidRole with the role field attached
func invalidRoleError() error {
	return ErrInvalidRole.Clone().WithMetadata(map[string]any{
		"fields": FieldErrors{{Field: "role", Message: roleChoices()}},
	})
}

func roleChoices() string {
	roles := GetAllRoles()
	names := make([]string, 0, len(roles))
	for _, r := range roles {
		names = append(names, r.String())
	}
	return fmt.Sprintf("must be one of %s", strings.Join(names, ", "))
}

// RoleSet is the set of roles an operation accepts
type RoleSet []UserRole

// Contains reports membership. There is no hierarchy between roles.
func (s RoleSet) Contains(role UserRole) bool {
	for _, r := range s {
		if r == role {
			return true
		}
	}
	return false
}

// AllowsSelf reports whether the set carries the SELF allowance
func (s RoleSet) AllowsSelf() bool {
	return s.Contains(RoleSelf)
}
