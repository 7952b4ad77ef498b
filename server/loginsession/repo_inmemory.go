package loginsession

import (
	"fmt"
	"sync"
	"time"

	"github.com/jrsteele09/go-onedrive-upload/internal/errors"
)

// InMemoryLoginSessionRepo is an in-memory implementation of Repo.
// Expired sessions are removed when they are next read.
type InMemoryLoginSessionRepo struct {
	mu       sync.RWMutex
	sessions map[string]Session // sessionID -> Session
	nowTime  func() time.Time
}

type InMemoryOption func(*InMemoryLoginSessionRepo)

// WithNowTime sets the clock used for expiry (primarily for testing)
func WithNowTime(nowFunc func() time.Time) InMemoryOption {
	return func(r *InMemoryLoginSessionRepo) {
		r.nowTime = nowFunc
	}
}

// NewInMemoryLoginSessionRepo creates a new in-memory login session repository
func NewInMemoryLoginSessionRepo(opts ...InMemoryOption) *InMemoryLoginSessionRepo {
	r := &InMemoryLoginSessionRepo{
		sessions: make(map[string]Session),
		nowTime:  time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Upsert creates or updates a login session
func (r *InMemoryLoginSessionRepo) Upsert(sessionID string, session Session) error {
	if sessionID == "" {
		return fmt.Errorf("sessionID is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions[sessionID] = session.Clone()
	return nil
}

// Get retrieves a login session, deleting it if it has expired
func (r *InMemoryLoginSessionRepo) Get(sessionID string) (Session, error) {
	if sessionID == "" {
		return Session{}, fmt.Errorf("sessionID is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[sessionID]
	if !ok {
		return Session{}, errors.ErrSessionNotFound
	}

	if session.Expired(r.nowTime()) {
		delete(r.sessions, sessionID)
		return Session{}, errors.ErrSessionExpired
	}

	return session.Clone(), nil
}

// Delete removes a login session
func (r *InMemoryLoginSessionRepo) Delete(sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("sessionID is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessions, sessionID)
	return nil
}
