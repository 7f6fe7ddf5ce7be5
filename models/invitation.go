package models

// InvitationStatus is the server-controlled lifecycle state of an invitation.
type InvitationStatus string

const (
	InvitationPending   InvitationStatus = "pending"
	InvitationAccepted  InvitationStatus = "accepted"
	InvitationExpired   InvitationStatus = "expired"
	InvitationCancelled InvitationStatus = "cancelled"
)

// InvitationInfo is the public, read-only projection of an invitation
// returned by GET /invitations/info.
type InvitationInfo struct {
	Email       string           `json:"email"`
	Role        Role             `json:"role"`
	CompanyName string           `json:"companyName"`
	Status      InvitationStatus `json:"status,omitempty"`
	Expired     bool             `json:"expired"`
	ExpiresAt   *Timestamp       `json:"expiresAt,omitempty"`
}

// IsExpired reports whether the invitation can no longer be accepted because it expired.
// Either the explicit flag or the status is enough.
func (i *InvitationInfo) IsExpired() bool {
	return i.Expired || i.Status == InvitationExpired
}

// IsClosed reports whether the invitation was already accepted or cancelled.
func (i *InvitationInfo) IsClosed() bool {
	return i.Status == InvitationAccepted || i.Status == InvitationCancelled
}
