package token

import (
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/golang-jwt/jwt/v5"
)

var parser = jwt.NewParser()

// Parse decodes the claims of raw without verifying its signature.
func Parse(raw string) (*Info, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrEmpty
	}

	claims := &Claims{}
	if _, _, err := parser.ParseUnverified(raw, claims); err != nil {
		return nil, errors.Mark(errors.Wrap(err, "decode token"), ErrMalformed)
	}
	return infoFromClaims(claims), nil
}

// Valid reports whether raw decodes and has not expired at now.
// Any decoding failure counts as invalid.
func Valid(raw string, now time.Time) bool {
	info, err := Parse(raw)
	if err != nil {
		return false
	}
	return !info.Expired(now)
}
