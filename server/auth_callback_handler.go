package server

import (
	"net/http"

	"github.com/jrsteele09/go-onedrive-upload/auth"
	apperrors "github.com/jrsteele09/go-onedrive-upload/internal/errors"
	"github.com/jrsteele09/go-onedrive-upload/server/authflowrepo"
	"github.com/rs/zerolog/log"
)

// OAuthCallbackHandler completes the login (GET /callback/): it checks the code and
// state, exchanges the code for tokens, and stores the result in the session.
func (s *Server) OAuthCallbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params := auth.ParseCallbackParameters(r.URL.Query())
		if err := params.ProviderError(); err != nil {
			log.Warn().Err(err).Msg("Callback: identity provider reported an error")
		}

		if err := params.Validate(); err != nil {
			writeText(w, "No authorization code received.", http.StatusBadRequest)
			return
		}

		session := useSession(r)

		returnURL := RouteUpload
		flow, err := s.consumeAuthFlow(params.State, session.ID)
		if err != nil {
			if s.config.GetRequireState() {
				log.Warn().Err(err).Str("session_id", session.ID).Msg("Callback: invalid state")
				writeText(w, "Invalid state parameter", http.StatusBadRequest)
				return
			}
			log.Debug().Err(err).Str("session_id", session.ID).Msg("Callback: state not verified")
		} else if flow.ReturnURL != "" {
			returnURL = flow.ReturnURL
		}

		if err := s.auth.CompleteLogin(r.Context(), session, params.Code); err != nil {
			log.Warn().Err(err).Str("session_id", session.ID).Msg("Callback: authentication failed")
			writeText(w, "Authentication failed: "+err.Error(), http.StatusBadRequest)
			return
		}

		http.Redirect(w, r, returnURL, http.StatusFound)
	}
}

// consumeAuthFlow removes the pending flow for state and checks it belongs to
// sessionID and has not expired.
func (s *Server) consumeAuthFlow(state, sessionID string) (*authflowrepo.AuthFlowState, error) {
	flow, err := s.authState.Consume(state)
	if err != nil {
		return nil, err
	}
	if flow.SessionID != sessionID {
		return nil, apperrors.ErrStateMismatch
	}
	if flow.Expired(s.nowTime(), s.config.GetAuthFlowTimeout()) {
		return nil, apperrors.ErrStateExpired
	}
	return flow, nil
}
