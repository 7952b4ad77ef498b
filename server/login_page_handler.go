package server

import (
	"net/http"

	"github.com/jrsteele09/go-onedrive-upload/server/authflowrepo"
	"github.com/rs/zerolog/log"
)

// LoginHandler starts the authorization code flow (GET /login/). A random state is
// recorded against the session and the browser is sent to the identity provider.
func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session := useSession(r)

		state, err := generateRandomString(stateLength)
		if err != nil {
			log.Err(err).Msg("Login: failed to generate state")
			writeText(w, "Failed to start login", http.StatusInternalServerError)
			return
		}

		now := s.nowTime()
		s.authState.DeleteBefore(now.Add(-s.config.GetAuthFlowTimeout()))
		if err := s.authState.Upsert(state, &authflowrepo.AuthFlowState{
			SessionID: session.ID,
			ReturnURL: safeReturnURL(r.URL.Query().Get("next"), RouteUpload),
			CreatedAt: now,
		}); err != nil {
			log.Err(err).Msg("Login: failed to store auth flow state")
			writeText(w, "Failed to start login", http.StatusInternalServerError)
			return
		}

		authURL, err := s.auth.AuthCodeURL(r.Context(), session, state)
		if err != nil {
			log.Err(err).Str("session_id", session.ID).Msg("Login: failed to build authorization URL")
			writeText(w, "Failed to build authorization URL", http.StatusInternalServerError)
			return
		}

		http.Redirect(w, r, authURL, http.StatusFound)
	}
}

// LogoutHandler drops the session and its cookie (GET /logout/).
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if session := sessionFromContext(r.Context()); session != nil {
			log.Info().Str("session_id", session.ID).Msg("Logout")
		}
		destroySession(r)
		http.Redirect(w, r, RouteIndex, http.StatusFound)
	}
}
