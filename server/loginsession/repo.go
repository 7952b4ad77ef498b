package loginsession

import (
	"maps"
	"slices"
	"time"
)

// Session is the server-side state of one browser, keyed by the session cookie.
type Session struct {
	ID string

	// Serialized identity-library token cache. Opaque to everything but tokencache.
	TokenCache []byte
	// Last access token issued for the session. Convenience only; the cache is authoritative.
	AccessToken string

	// ID token claims of the signed-in user, empty until the callback succeeds.
	User map[string]any

	CreatedAt time.Time
	ExpiresAt time.Time
}

// New starts a session that expires maxAge after now.
func New(id string, now time.Time, maxAge time.Duration) *Session {
	return &Session{
		ID:        id,
		CreatedAt: now,
		ExpiresAt: now.Add(maxAge),
	}
}

// Expired reports whether the session has passed its expiry. A zero expiry never expires.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// SignedIn reports whether a login has completed for this session.
func (s *Session) SignedIn() bool {
	return len(s.TokenCache) > 0 || s.AccessToken != ""
}

// DisplayName picks the friendliest name available in the user's claims.
func (s *Session) DisplayName() string {
	for _, key := range []string{"name", "preferred_username", "email"} {
		if v, ok := s.User[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

// Clone returns a deep copy so stored sessions are never aliased by callers.
func (s Session) Clone() Session {
	s.TokenCache = slices.Clone(s.TokenCache)
	if s.User != nil {
		s.User = maps.Clone(s.User)
	}
	return s
}

type Repo interface {
	Upsert(sessionID string, session Session) error
	Get(sessionID string) (Session, error)
	Delete(sessionID string) error
}
