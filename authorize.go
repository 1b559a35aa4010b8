package accounts

import (
	"strings"
)

// Authorize reports whether role is a member of required. SELF entries never
// match a role; use Guard to resolve them against the target account.
func Authorize(role UserRole, required RoleSet) bool {
	if !role.IsValid() {
		return false
	}
	return required.Contains(role)
}

// Guard approves actor for an operation declaring the required role set.
// targetID is the account the operation acts on, empty when there is none.
func Guard(actor Actor, required RoleSet, targetID string) error {
	if actor.IsAnonymous() {
		return ErrUnauthenticated
	}

	if Authorize(actor.Role, required) {
		return nil
	}

	if required.AllowsSelf() && targetID != "" && strings.EqualFold(actor.ID, targetID) {
		return nil
	}

	return ErrUnauthorized
}

var (
	// ManageAccounts list, create and delete accounts
	ManageAccounts = RoleSet{RoleAdmin, RoleManager}
	// AccessAccount read or update a single account
	AccessAccount = RoleSet{RoleAdmin, RoleManager, RoleSelf}
	// UnlockAccounts lift a login lock
	UnlockAccounts = RoleSet{RoleAdmin}
	// AssignPrivilegedRoles create accounts holding MANAGER or ADMIN
	AssignPrivilegedRoles = RoleSet{RoleAdmin}
)
