package authflowrepo

import "time"

// AuthFlowState is a login that has been sent to the identity provider and
// not yet completed. It is keyed by the OAuth state parameter.
type AuthFlowState struct {
	SessionID string
	ReturnURL string
	CreatedAt time.Time
}

// Expired reports whether the flow is older than ttl at now.
func (s *AuthFlowState) Expired(now time.Time, ttl time.Duration) bool {
	return now.Sub(s.CreatedAt) > ttl
}

type Repo interface {
	Upsert(state string, authState *AuthFlowState) error
	Get(state string) (*AuthFlowState, error)
	Delete(state string) error
	// Consume returns the flow for state and removes it, so a state is accepted at most once.
	Consume(state string) (*AuthFlowState, error)
	// DeleteBefore drops flows created before cutoff and returns how many were removed.
	DeleteBefore(cutoff time.Time) int
}
