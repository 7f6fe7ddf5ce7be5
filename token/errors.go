package token

import "github.com/cockroachdb/errors"

// Sentinel errors for use with errors.Is()
var (
	// ErrEmpty indicates an empty token string.
	ErrEmpty = errors.New("empty token")

	// ErrMalformed indicates the token is not a decodable JWT.
	ErrMalformed = errors.New("malformed token")
)
