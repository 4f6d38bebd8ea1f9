// Package rbac decides what a user may do with a song. Roles come from two
// places: owning the song, or appearing in its collaborator map by email.
package rbac

import "strings"

type Role string
type Action string

const (
	RoleOwner  Role = "owner"
	RoleEditor Role = "editor"
	RoleViewer Role = "viewer"
)

const (
	ActionRead   Action = "read"
	ActionWrite  Action = "write"
	ActionShare  Action = "share"
	ActionDelete Action = "delete"
)

// RoleFor resolves the viewer's role on a song. Collaborator emails are
// matched case-insensitively. Anyone who can see the song at all is at
// least a viewer; visibility itself is enforced by the store queries.
func RoleFor(ownerID string, sharedRoles map[string]string, userID, email string) Role {
	if ownerID != "" && ownerID == userID {
		return RoleOwner
	}
	if shared, ok := sharedRoles[strings.ToLower(strings.TrimSpace(email))]; ok {
		if Normalize(shared) == RoleEditor {
			return RoleEditor
		}
	}
	return RoleViewer
}

func Can(role Role, action Action) bool {
	switch role {
	case RoleOwner:
		return true
	case RoleEditor:
		return action == ActionRead || action == ActionWrite
	case RoleViewer:
		return action == ActionRead
	default:
		return false
	}
}

func Normalize(role string) Role {
	switch Role(strings.ToLower(strings.TrimSpace(role))) {
	case RoleOwner, RoleEditor, RoleViewer:
		return Role(strings.ToLower(strings.TrimSpace(role)))
	default:
		return RoleViewer
	}
}

// Capability is the write permission computed once when a song is opened
// and threaded into the editor and autosave constructors. Re-deriving it
// at each call site is exactly what this type exists to avoid.
type Capability struct {
	CanWrite bool
}

// CapabilityFor derives the capability from a resolved role.
func CapabilityFor(role Role) Capability {
	return Capability{CanWrite: Can(role, ActionWrite)}
}
