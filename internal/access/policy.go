// Package access maps roles to the operations they may perform and guards
// the catalog and user directory on behalf of a logged-in session.
package access

import (
	"github.com/franz/scma/internal/store"
)

// Operation is a user-facing action
type Operation string

const (
	OpView        Operation = "view"
	OpAdd         Operation = "add"
	OpModify      Operation = "modify"
	OpDelete      Operation = "delete"
	OpManageUsers Operation = "manage-users"
)

// policy lists each role's operations in menu order
var policy = map[store.Role][]Operation{
	store.RoleViewer:  {OpView},
	store.RoleCreator: {OpView, OpAdd, OpModify},
	store.RoleAdmin:   {OpView, OpAdd, OpDelete, OpManageUsers},
}

// Allowed reports whether role may perform op
func Allowed(role store.Role, op Operation) bool {
	for _, o := range policy[role] {
		if o == op {
			return true
		}
	}
	return false
}

// Operations returns the operations available to role. Unknown roles get
// none.
func Operations(role store.Role) []Operation {
	ops := policy[role]
	out := make([]Operation, len(ops))
	copy(out, ops)
	return out
}
