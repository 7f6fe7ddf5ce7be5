// Package token decodes the claims embedded in the bearer tokens issued by the HR API.
//
// Tokens are decoded without signature verification. The client never holds
// the signing key; the server verifies every request and answers 401 on a bad
// token. Decoding here only serves to read the expiry and the company scope.
package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims represents the JWT claims issued by the HR API.
type Claims struct {
	jwt.RegisteredClaims
	// Company scope the token is bound to (empty when no company context is active)
	CompanyID string `json:"company_id,omitempty"`
	Role      string `json:"role,omitempty"`
	Email     string `json:"email,omitempty"`
}

// Info is the decoded security context of a bearer token.
type Info struct {
	Subject   string
	Email     string
	Role      string
	CompanyID string
	IssuedAt  time.Time
	ExpiresAt time.Time // zero when the token carries no exp claim
}

// Expired reports whether the token is no longer valid at now.
// A token is valid only while its expiry is strictly after now;
// a token without an expiry claim is treated as expired.
func (i *Info) Expired(now time.Time) bool {
	if i == nil || i.ExpiresAt.IsZero() {
		return true
	}
	return !i.ExpiresAt.After(now)
}

// Remaining returns how long the token stays valid, or 0 when it already expired.
func (i *Info) Remaining(now time.Time) time.Duration {
	if i.Expired(now) {
		return 0
	}
	return i.ExpiresAt.Sub(now)
}

func infoFromClaims(c *Claims) *Info {
	info := &Info{
		Subject:   c.Subject,
		Email:     c.Email,
		Role:      c.Role,
		CompanyID: c.CompanyID,
	}
	if c.ExpiresAt != nil {
		info.ExpiresAt = c.ExpiresAt.Time
	}
	if c.IssuedAt != nil {
		info.IssuedAt = c.IssuedAt.Time
	}
	return info
}
