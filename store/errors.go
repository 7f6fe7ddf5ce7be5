package store

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// ErrInvalidCredential indicates an attempt to persist a half credential.
var ErrInvalidCredential = errors.New("invalid credential")

// FieldError reports which half of a credential was missing.
type FieldError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *FieldError) Error() string {
	return fmt.Sprintf("store: %s: %s", e.Field, e.Message)
}

// Is implements errors.Is() for comparing with ErrInvalidCredential.
func (e *FieldError) Is(target error) bool {
	return target == ErrInvalidCredential
}
