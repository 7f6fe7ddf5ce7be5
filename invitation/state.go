package invitation

import (
	"slices"

	"github.com/cockroachdb/errors"
)

// State is a step of the invitation handshake.
type State string

const (
	StateIdle                   State = "idle"
	StateLoadingInfo            State = "loading_info"
	StateExpired                State = "expired"
	StateAwaitingAuthentication State = "awaiting_authentication"
	StateAutoAccepting          State = "auto_accepting"
	StateAccepted               State = "accepted"
	StateFailed                 State = "failed"
)

func (s State) String() string {
	return string(s)
}

// Terminal reports whether the handshake waits for the user in s.
// Expired and Failed can still be left through a retry.
func (s State) Terminal() bool {
	switch s {
	case StateExpired, StateAccepted, StateFailed:
		return true
	}
	return false
}

// transitions lists the states reachable from each state.
var transitions = map[State][]State{
	StateIdle:                   {StateLoadingInfo, StateFailed},
	StateLoadingInfo:            {StateExpired, StateAwaitingAuthentication, StateAutoAccepting, StateFailed},
	StateExpired:                {StateLoadingInfo, StateFailed},
	StateAwaitingAuthentication: {StateLoadingInfo, StateFailed},
	StateAutoAccepting:          {StateAccepted, StateExpired, StateFailed},
	StateAccepted:               {},
	StateFailed:                 {StateLoadingInfo, StateFailed},
}

// CanTransition reports whether the handshake may move from one state to another.
func CanTransition(from, to State) bool {
	return slices.Contains(transitions[from], to)
}

func checkTransition(from, to State) error {
	if !CanTransition(from, to) {
		return errors.Wrapf(ErrInvalidTransition, "%s -> %s", from, to)
	}
	return nil
}

// FailureKind tells the views apart that a failed or expired handshake shows.
type FailureKind int

const (
	FailureNone FailureKind = iota
	FailureNoToken
	FailureTimeout
	FailureExpired
	FailureClosed
	FailureError
)

func (k FailureKind) String() string {
	switch k {
	case FailureNone:
		return "none"
	case FailureNoToken:
		return "no_token"
	case FailureTimeout:
		return "timeout"
	case FailureExpired:
		return "expired"
	case FailureClosed:
		return "closed"
	case FailureError:
		return "error"
	}
	return "unknown"
}
