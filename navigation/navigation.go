// Package navigation abstracts the host's current location so the
// orchestrator can redirect to sign-in and restore the user's destination.
package navigation

import (
	"net/url"
	"strings"
	"sync"
)

// Default paths of the views the orchestrator redirects to.
const (
	DefaultSignInPath      = "/login"
	DefaultRegisterPath    = "/register"
	DefaultInvitationPath  = "/accept-invitation"
	DefaultHomePath        = "/"
	DefaultReturnParam     = "returnUrl"
	DefaultInvitationParam = "token"
)

// Navigator reports and changes the current location of the host.
type Navigator interface {
	Location() string
	Navigate(to string)
}

// History is an in-memory Navigator that records every navigation.
// It is safe for concurrent use.
type History struct {
	mu      sync.RWMutex
	entries []string
}

var _ Navigator = (*History)(nil)

// NewHistory returns a History positioned at start.
func NewHistory(start string) *History {
	if start == "" {
		start = DefaultHomePath
	}
	return &History{entries: []string{start}}
}

// Location returns the current location.
func (h *History) Location() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.entries[len(h.entries)-1]
}

// Navigate moves to a new location.
func (h *History) Navigate(to string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries, to)
}

// Entries returns every location visited, oldest first.
func (h *History) Entries() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]string, len(h.entries))
	copy(out, h.entries)
	return out
}

// Path returns the path component of a location, ignoring query and fragment.
func Path(location string) string {
	u, err := url.Parse(location)
	if err != nil {
		if i := strings.IndexAny(location, "?#"); i >= 0 {
			return location[:i]
		}
		return location
	}
	return u.Path
}

// IsAt reports whether location points at path, ignoring query and trailing slash.
func IsAt(location, path string) bool {
	return strings.TrimSuffix(Path(location), "/") == strings.TrimSuffix(path, "/")
}

// WithParam returns path with a single query parameter set.
func WithParam(path, param, value string) string {
	q := url.Values{}
	q.Set(param, value)
	return path + "?" + q.Encode()
}

// SafeReturn returns raw if it is a same-origin relative path and fallback otherwise.
// Absolute URLs, scheme-relative URLs ("//evil") and backslash tricks are rejected.
func SafeReturn(raw, fallback string) string {
	if raw == "" || !strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "//") || strings.Contains(raw, `\`) {
		return fallback
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return fallback
	}
	return raw
}
