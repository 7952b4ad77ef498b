package server

import (
	"fmt"
	"net/http"

	"github.com/jrsteele09/go-onedrive-upload/graph"
	apperrors "github.com/jrsteele09/go-onedrive-upload/internal/errors"
	"github.com/rs/zerolog/log"
)

// multipartOverhead is headroom for the multipart envelope around the file part.
const multipartOverhead = 1 << 20

// UploadPageData contains data for rendering the upload page
type UploadPageData struct {
	AppName        string
	UserName       string
	SignedIn       bool
	MaxUploadBytes int64
}

// UploadPageHandler renders the upload form (GET /upload/)
func (s *Server) UploadPageHandler() http.HandlerFunc {
	tmpl, err := ParseTemplate("upload.html")
	if err != nil {
		panic("Failed to parse upload template: " + err.Error())
	}

	return func(w http.ResponseWriter, r *http.Request) {
		data := UploadPageData{
			AppName:        s.config.GetAppName(),
			MaxUploadBytes: s.config.GetMaxUploadBytes(),
		}
		if session := sessionFromContext(r.Context()); session != nil {
			data.UserName = session.DisplayName()
			data.SignedIn = session.SignedIn()
		}

		w.Header().Set("Content-Type", contentTypeHTML)
		if err := tmpl.Execute(w, data); err != nil {
			log.Err(err).Msg("Failed to render upload template")
		}
	}
}

// UploadHandler sends the posted file to the user's OneDrive (POST /upload/).
// Each step is a gate: file present, token resolvable, filename valid, remote accepted.
func (s *Server) UploadHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		maxBytes := s.config.GetMaxUploadBytes()
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes+multipartOverhead)

		if err := r.ParseMultipartForm(maxBytes); err != nil {
			var tooLarge *http.MaxBytesError
			if apperrors.As(err, &tooLarge) {
				writeText(w, "File too large", http.StatusRequestEntityTooLarge)
				return
			}
			writeText(w, "No file uploaded", http.StatusBadRequest)
			return
		}
		defer func() {
			if err := r.MultipartForm.RemoveAll(); err != nil {
				log.Warn().Err(err).Msg("Upload: failed to remove temporary files")
			}
		}()

		file, header, err := r.FormFile("file")
		if err != nil {
			writeText(w, "No file uploaded", http.StatusBadRequest)
			return
		}
		defer file.Close()

		if header.Size > maxBytes {
			writeText(w, "File too large", http.StatusRequestEntityTooLarge)
			return
		}

		session := useSession(r)
		accessToken, ok := s.auth.AccessToken(r.Context(), session)
		if !ok {
			writeText(w, "No access token found. Please log in again.", http.StatusUnauthorized)
			return
		}

		if err := graph.ValidateFilename(header.Filename); err != nil {
			log.Warn().Err(err).Str("session_id", session.ID).Msg("Upload: rejected filename")
			writeText(w, "Invalid filename", http.StatusBadRequest)
			return
		}

		item, err := s.uploader.UploadContent(r.Context(), accessToken, header.Filename, file, header.Size)
		if err != nil {
			var graphErr *graph.GraphError
			if apperrors.As(err, &graphErr) {
				log.Warn().
					Int("status", graphErr.StatusCode).
					Str("request_id", graphErr.RequestID).
					Str("session_id", session.ID).
					Msg("Upload: rejected by Graph")
				writeText(w, fmt.Sprintf("Error uploading: %d %s", graphErr.StatusCode, graphErr.Message), graphErr.StatusCode)
				return
			}
			log.Err(err).Str("session_id", session.ID).Msg("Upload: request failed")
			writeText(w, "Exception during upload: "+err.Error(), http.StatusInternalServerError)
			return
		}

		log.Info().
			Str("session_id", session.ID).
			Str("item_id", item.ID).
			Str("name", header.Filename).
			Int64("size", header.Size).
			Msg("Upload: stored")

		writeText(w, "File uploaded successfully!", http.StatusOK)
	}
}
