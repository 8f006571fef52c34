// Package rbac decides what a session role may do with its document.
package rbac

type Role string
type Action string

const (
	RoleViewer Role = "viewer"
	RoleEditor Role = "editor"
)

const (
	ActionRead   Action = "read"
	ActionExport Action = "export"
	ActionEdit   Action = "edit"
	ActionAttach Action = "attach"
	ActionSave   Action = "save"
)

// Can reports whether role may perform action. Viewers read and export;
// editors may do everything.
func Can(role Role, action Action) bool {
	switch role {
	case RoleEditor:
		switch action {
		case ActionRead, ActionExport, ActionEdit, ActionAttach, ActionSave:
			return true
		}
		return false
	case RoleViewer:
		return action == ActionRead || action == ActionExport
	default:
		return false
	}
}

// Normalize maps unknown or empty roles to RoleViewer.
func Normalize(role string) Role {
	switch Role(role) {
	case RoleViewer, RoleEditor:
		return Role(role)
	default:
		return RoleViewer
	}
}
