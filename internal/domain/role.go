package domain

import "fmt"

// Role is the closed set of roles a user can hold. Roles are reference data:
// a roles table row exists for every value below and users always reference
// exactly one of them.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleTeacher Role = "teacher"
	RoleParent  Role = "parent"
)

// AllRoles returns every valid role. Startup seeding iterates this set.
func AllRoles() []Role {
	return []Role{RoleAdmin, RoleTeacher, RoleParent}
}

// ParseRole converts a raw string into a Role, rejecting unknown values so
// that every Role in the system is one of the closed set.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleAdmin:
		return RoleAdmin, nil
	case RoleTeacher:
		return RoleTeacher, nil
	case RoleParent:
		return RoleParent, nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

// Valid reports whether the role is one of the closed set.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleTeacher, RoleParent:
		return true
	default:
		return false
	}
}

func (r Role) String() string {
	return string(r)
}
