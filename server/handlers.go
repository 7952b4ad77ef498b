package server

import (
	"net/http"
)

// HealthHandler reports liveness (GET /healthz)
func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeText(w, "ok", http.StatusOK)
	}
}

// writeText replies with msg as the entire plain-text body. Unlike http.Error no
// newline is appended.
func writeText(w http.ResponseWriter, msg string, code int) {
	h := w.Header()
	h.Del("Content-Length")
	h.Set("Content-Type", "text/plain; charset=utf-8")
	h.Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(code)
	_, _ = w.Write([]byte(msg))
}
