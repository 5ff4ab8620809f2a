// Package authz decides what each role may do to the record domains.
package authz

import "intelplatform/internal/models"

type Action string

const (
	ActionRead        Action = "read"
	ActionCreate      Action = "create"
	ActionUpdate      Action = "update"
	ActionDelete      Action = "delete"
	ActionAnalyze     Action = "analyze"
	ActionManageUsers Action = "manage_users"
)

func (a Action) mutates() bool {
	switch a {
	case ActionCreate, ActionUpdate, ActionDelete:
		return true
	}
	return false
}

// Can reports whether role may perform action on domain. Analysts mutate
// only the domain they were assigned; domain is ignored for actions that
// are not domain-scoped.
func Can(role models.UserRole, assigned models.Domain, action Action, domain models.Domain) bool {
	switch role {
	case models.UserRoleAdmin:
		return true
	case models.UserRoleAnalyst:
		if action.mutates() {
			return assigned.Valid() && assigned == domain
		}
		return action == ActionRead || action == ActionAnalyze
	case models.UserRoleUser:
		return action == ActionRead || action == ActionAnalyze
	}
	return false
}

// CanUser is Can for a loaded credential.
func CanUser(user models.Credential, action Action, domain models.Domain) bool {
	return Can(user.Role, user.Domain, action, domain)
}
