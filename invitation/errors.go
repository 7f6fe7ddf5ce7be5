package invitation

import "github.com/cockroachdb/errors"

var (
	// ErrInvalidTransition is returned when an action is not allowed in the current state.
	ErrInvalidTransition = errors.New("invalid invitation state transition")

	// ErrNoToken is the failure of a handshake started without an invitation token.
	ErrNoToken = errors.New("no invitation token provided")

	// ErrClosed is the failure of an invitation that was already accepted or cancelled.
	ErrClosed = errors.New("invitation is no longer open")

	// ErrRole is the failure of an invitation offering a role that cannot be granted by invitation.
	ErrRole = errors.New("invitation role cannot be granted")
)
