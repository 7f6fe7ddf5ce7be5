// Package models contains data types shared by the session orchestrator.
package models

// EmployeeProfile is the optional employee record linked to a user.
type EmployeeProfile struct {
	ID           string `json:"id"`
	EmployeeNo   string `json:"employeeNo,omitempty"`
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
	Department   string `json:"department,omitempty"`
	Position     string `json:"position,omitempty"`
	PhotoURL     string `json:"photoUrl,omitempty"`
	DateOfJoined string `json:"dateOfJoined,omitempty"`
}

// UserSnapshot is the last-known user state cached next to the bearer token.
// It is replaced wholesale on every mutation; use Clone before handing it out.
type UserSnapshot struct {
	ID                 string              `json:"id"`
	Email              string              `json:"email"`
	Role               Role                `json:"role"`
	IsActive           bool                `json:"isActive"`
	EmailVerified      bool                `json:"emailVerified"`
	CompanyID          *string             `json:"companyId"`
	EmployeeProfile    *EmployeeProfile    `json:"employeeProfile,omitempty"`
	CompanyMemberships []CompanyMembership `json:"companyMemberships"`
}

// CompanyScope returns the active company ID, or "" when the user has no company context.
func (u *UserSnapshot) CompanyScope() string {
	if u == nil || u.CompanyID == nil {
		return ""
	}
	return *u.CompanyID
}

// HasMembership reports whether the user belongs to the given company.
func (u *UserSnapshot) HasMembership(companyID string) bool {
	if u == nil {
		return false
	}
	for _, m := range u.CompanyMemberships {
		if m.CompanyID == companyID {
			return true
		}
	}
	return false
}

// Membership returns the membership for companyID, if any.
func (u *UserSnapshot) Membership(companyID string) (CompanyMembership, bool) {
	if u != nil {
		for _, m := range u.CompanyMemberships {
			if m.CompanyID == companyID {
				return m, true
			}
		}
	}
	return CompanyMembership{}, false
}

// Clone returns a deep copy of the snapshot. A nil receiver returns nil.
func (u *UserSnapshot) Clone() *UserSnapshot {
	if u == nil {
		return nil
	}
	c := *u
	if u.CompanyID != nil {
		id := *u.CompanyID
		c.CompanyID = &id
	}
	if u.EmployeeProfile != nil {
		p := *u.EmployeeProfile
		c.EmployeeProfile = &p
	}
	if u.CompanyMemberships != nil {
		c.CompanyMemberships = make([]CompanyMembership, len(u.CompanyMemberships))
		for i, m := range u.CompanyMemberships {
			if m.JoinedAt != nil {
				at := *m.JoinedAt
				m.JoinedAt = &at
			}
			c.CompanyMemberships[i] = m
		}
	}
	return &c
}
