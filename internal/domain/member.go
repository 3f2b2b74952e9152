package domain

import "fmt"

// Role is the trust level of a member inside one room.
type Role int

const (
	RolePendingGuest Role = iota
	RoleGuest
	RoleOwner
)

func (r Role) String() string {
	switch r {
	case RolePendingGuest:
		return "pending"
	case RoleGuest:
		return "guest"
	case RoleOwner:
		return "owner"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}

// Admitted reports whether the role is fully participating.
func (r Role) Admitted() bool {
	switch r {
	case RoleGuest, RoleOwner:
		return true
	case RolePendingGuest:
		return false
	default:
		return false
	}
}

// Member represents user's participation meta for a room.
// No transport or lifecycle logic here.
type Member struct {
	User *User
	Role Role
}

// NewMember avoids raw literals in adapters and keeps construction obvious.
func NewMember(user *User, role Role) *Member {
	return &Member{User: user, Role: role}
}

func (m *Member) Admitted() bool { return m.Role.Admitted() }
