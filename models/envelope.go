package models

import "encoding/json"

// Envelope is the response shape shared by every endpoint of the HR API.
type Envelope[T any] struct {
	Success bool              `json:"success"`
	Message string            `json:"message,omitempty"`
	Data    T                 `json:"data,omitempty"`
	Errors  map[string]string `json:"errors,omitempty"` // field -> message on validation failures
}

// AuthPayload is the data of every response that issues a credential.
type AuthPayload struct {
	Token string        `json:"token"`
	User  *UserSnapshot `json:"user"`
}

// Issued reports whether the payload carries a usable credential.
func (p *AuthPayload) Issued() bool {
	return p != nil && p.Token != "" && p.User != nil
}

// Credential is a bearer token paired with the user snapshot it was issued for.
// Token and user are always persisted together.
type Credential struct {
	Token string        `json:"token"`
	User  *UserSnapshot `json:"user"`
}

// Clone returns a copy of the credential with a deep-copied user.
func (c *Credential) Clone() *Credential {
	if c == nil {
		return nil
	}
	return &Credential{Token: c.Token, User: c.User.Clone()}
}

// Ack is the envelope of endpoints that return no meaningful data.
type Ack = Envelope[json.RawMessage]
