// Package store persists the session credential (bearer token and user
// snapshot) and the pending invitation carry.
//
// Every backend keeps token and user together: Write replaces both and Clear
// removes both, along with any pending invitation. Malformed persisted data
// reads as "no credential".
package store

import (
	"context"

	"github.com/vaintrub/hrsession/models"
)

// Store is the persistent credential holder.
type Store interface {
	// Read returns the persisted credential, or nil when none exists.
	Read(ctx context.Context) (*models.Credential, error)
	// Write persists token and user atomically.
	Write(ctx context.Context, cred models.Credential) error
	// Clear removes the credential and the pending invitation.
	Clear(ctx context.Context) error

	// PutPendingInvitation stores the invitation token to redeem after the
	// next authentication, replacing any previous one.
	PutPendingInvitation(ctx context.Context, token string) error
	// PendingInvitation returns the carried invitation token without consuming it.
	PendingInvitation(ctx context.Context) (string, error)
	// TakePendingInvitation returns the carried invitation token and deletes it.
	TakePendingInvitation(ctx context.Context) (string, error)
}

// Watcher is implemented by stores shared between processes. The returned
// channel receives a value whenever the persisted state may have changed and
// is closed when ctx is done.
type Watcher interface {
	Watch(ctx context.Context) (<-chan struct{}, error)
}

// document is the serialized form used by the file backend.
type document struct {
	Token             string               `json:"token,omitempty"`
	User              *models.UserSnapshot `json:"user,omitempty"`
	PendingInvitation string               `json:"pendingInvitation,omitempty"`
}

func (d *document) credential() *models.Credential {
	if d == nil || d.Token == "" || d.User == nil {
		return nil
	}
	return &models.Credential{Token: d.Token, User: d.User.Clone()}
}

func validCredential(cred models.Credential) error {
	if cred.Token == "" {
		return &FieldError{Field: "token", Message: "cannot be empty"}
	}
	if cred.User == nil {
		return &FieldError{Field: "user", Message: "cannot be nil"}
	}
	return nil
}

// notify does a non-blocking send; one pending signal is enough to make a
// watcher re-read the whole state.
func notify(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
