package models

// Role is a user's authorization level inside the HR application.
type Role string

const (
	// RoleSuperAdmin manages the whole platform and every company.
	RoleSuperAdmin Role = "super_admin"
	// RoleAdmin manages a single company.
	RoleAdmin Role = "admin"
	// RoleManager approves leave, claims and attendance for a team.
	RoleManager Role = "manager"
	// RoleStaff is a regular employee.
	RoleStaff Role = "staff"
)

// Valid reports whether r is one of the known user roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSuperAdmin, RoleAdmin, RoleManager, RoleStaff:
		return true
	}
	return false
}

// Invitable reports whether r can be granted through an invitation.
// super_admin is never handed out by invitation.
func (r Role) Invitable() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleStaff:
		return true
	}
	return false
}

func (r Role) String() string {
	return string(r)
}
