package policy

import "strings"

// Role is the ordered ownership level a user holds on an application.
type Role int

const (
	RoleNone Role = iota
	RoleReader
	RoleCollaborator
	RoleOwner
)

func ParseRole(raw string) (Role, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "reader":
		return RoleReader, true
	case "collaborator":
		return RoleCollaborator, true
	case "owner":
		return RoleOwner, true
	}
	return RoleNone, false
}

func (r Role) String() string {
	switch r {
	case RoleReader:
		return "reader"
	case RoleCollaborator:
		return "collaborator"
	case RoleOwner:
		return "owner"
	}
	return "none"
}

func (r Role) AtLeast(min Role) bool {
	return r >= min
}

// CanWrite reports whether the role may mutate the application and its
// subscriptions.
func (r Role) CanWrite() bool {
	return r.AtLeast(RoleCollaborator)
}
