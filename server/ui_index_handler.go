package server

import (
	"net/http"

	"github.com/rs/zerolog/log"
)

const contentTypeHTML = "text/html; charset=utf-8"

// IndexPageData contains data for rendering the home page
type IndexPageData struct {
	AppName  string
	UserName string
	SignedIn bool
}

// IndexHandler renders the home page
func (s *Server) IndexHandler() http.HandlerFunc {
	tmpl, err := ParseTemplate("index.html")
	if err != nil {
		panic("Failed to parse index template: " + err.Error())
	}

	return func(w http.ResponseWriter, r *http.Request) {
		data := IndexPageData{
			AppName: s.config.GetAppName(),
		}
		if session := sessionFromContext(r.Context()); session != nil {
			data.UserName = session.DisplayName()
			data.SignedIn = session.SignedIn()
		}

		w.Header().Set("Content-Type", contentTypeHTML)
		if err := tmpl.Execute(w, data); err != nil {
			log.Err(err).Msg("Failed to render index template")
		}
	}
}
