package models

// CompanyMembership links a user to one company they belong to.
type CompanyMembership struct {
	CompanyID   string     `json:"companyId"`
	CompanyName string     `json:"companyName"`
	Role        Role       `json:"role"`
	IsDefault   bool       `json:"isDefault,omitempty"`
	JoinedAt    *Timestamp `json:"joinedAt,omitempty"`
}
