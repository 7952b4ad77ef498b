package server

import (
	"context"
	"net/http"
	"sync"

	"github.com/google/uuid"
	apperrors "github.com/jrsteele09/go-onedrive-upload/internal/errors"
	"github.com/jrsteele09/go-onedrive-upload/server/loginsession"
	"github.com/rs/zerolog/log"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

// ContextKeySession stores the *sessionHandle for the request
const ContextKeySession ContextKey = "session"

// sessionHandle tracks what the handler did with the session so the middleware
// knows whether to store, skip or delete it.
type sessionHandle struct {
	session   *loginsession.Session
	isNew     bool
	touched   bool
	destroyed bool
}

// sessionWriter saves the session immediately before the response is committed,
// so a redirect is never followed before the session it depends on is stored.
type sessionWriter struct {
	http.ResponseWriter
	once   sync.Once
	commit func()
}

func (sw *sessionWriter) WriteHeader(code int) {
	sw.once.Do(sw.commit)
	sw.ResponseWriter.WriteHeader(code)
}

func (sw *sessionWriter) Write(b []byte) (int, error) {
	sw.once.Do(sw.commit)
	return sw.ResponseWriter.Write(b)
}

func (sw *sessionWriter) Unwrap() http.ResponseWriter {
	return sw.ResponseWriter
}

// SessionMiddleware loads the browser's session from its cookie, starting a new one
// when the cookie is missing, unknown or expired, and makes it available to handlers.
// New sessions are only stored once a handler uses them.
func (s *Server) SessionMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		handle := s.loadSession(r)

		sw := &sessionWriter{ResponseWriter: w}
		sw.commit = func() { s.commitSession(w, r, handle) }

		ctx := context.WithValue(r.Context(), ContextKeySession, handle)
		next(sw, r.WithContext(ctx))
		sw.once.Do(sw.commit)
	}
}

func (s *Server) loadSession(r *http.Request) *sessionHandle {
	if cookie, err := r.Cookie(sessionCookieName); err == nil && cookie.Value != "" {
		session, err := s.loginSessions.Get(cookie.Value)
		if err == nil {
			return &sessionHandle{session: &session}
		}
		switch {
		case apperrors.Is(err, apperrors.ErrSessionNotFound):
		case apperrors.Is(err, apperrors.ErrSessionExpired):
			log.Info().Str("session_id", cookie.Value).Msg("Session expired, starting a new one")
		default:
			log.Warn().Err(err).Str("session_id", cookie.Value).Msg("Unreadable session, starting a new one")
		}
	}

	session := loginsession.New(uuid.NewString(), s.nowTime(), s.config.GetMaxSessionAge())
	return &sessionHandle{session: session, isNew: true}
}

func (s *Server) commitSession(w http.ResponseWriter, r *http.Request, handle *sessionHandle) {
	if handle.destroyed {
		if err := s.loginSessions.Delete(handle.session.ID); err != nil {
			log.Err(err).Str("session_id", handle.session.ID).Msg("Failed to delete login session")
		}
		s.ClearSessionCookie(w, r)
		return
	}

	if handle.isNew && !handle.touched {
		return
	}

	if err := s.loginSessions.Upsert(handle.session.ID, *handle.session); err != nil {
		log.Err(err).Str("session_id", handle.session.ID).Msg("Failed to save login session")
		return
	}
	if handle.isNew {
		s.SetSessionCookie(w, r, handle.session.ID)
	}
}

// sessionFromContext returns the request's session for reading, or nil outside SessionMiddleware.
func sessionFromContext(ctx context.Context) *loginsession.Session {
	handle, ok := ctx.Value(ContextKeySession).(*sessionHandle)
	if !ok {
		return nil
	}
	return handle.session
}

// useSession returns the request's session and marks it to be stored after the handler.
func useSession(r *http.Request) *loginsession.Session {
	handle, ok := r.Context().Value(ContextKeySession).(*sessionHandle)
	if !ok {
		return nil
	}
	handle.touched = true
	return handle.session
}

// destroySession deletes the session and its cookie once the handler responds.
func destroySession(r *http.Request) {
	if handle, ok := r.Context().Value(ContextKeySession).(*sessionHandle); ok {
		handle.destroyed = true
	}
}
