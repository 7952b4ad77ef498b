package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jrsteele09/go-onedrive-upload/auth"
	"github.com/jrsteele09/go-onedrive-upload/graph"
	"github.com/jrsteele09/go-onedrive-upload/internal/config"
	"github.com/jrsteele09/go-onedrive-upload/server/authflowrepo"
	"github.com/jrsteele09/go-onedrive-upload/server/loginsession"
	"github.com/rs/zerolog/log"
)

// Uploader stores file content in the signed-in user's drive.
type Uploader interface {
	UploadContent(ctx context.Context, accessToken, filename string, r io.Reader, size int64) (*graph.Item, error)
}

type Server struct {
	env           string // Environment (e.g., "DEV", "PROD")
	mux           *http.ServeMux
	routes        []string
	config        config.Config
	auth          *auth.Service
	uploader      Uploader
	loginSessions loginsession.Repo
	authState     authflowrepo.Repo
	nowTime       func() time.Time // injectable for testing
}

// ServerOption defines a function type to modify the Server instance.
type ServerOption func(*Server)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) ServerOption {
	return func(s *Server) {
		s.nowTime = nowFunc
	}
}

func New(config config.Config, authService *auth.Service, uploader Uploader, loginSessionRepo loginsession.Repo, authStateRepo authflowrepo.Repo, opts ...ServerOption) (*Server, error) {
	switch {
	case config == nil:
		return nil, fmt.Errorf("[Server New] config is required")
	case authService == nil:
		return nil, fmt.Errorf("[Server New] auth service is required")
	case uploader == nil:
		return nil, fmt.Errorf("[Server New] uploader is required")
	case loginSessionRepo == nil:
		return nil, fmt.Errorf("[Server New] login session repo is required")
	case authStateRepo == nil:
		return nil, fmt.Errorf("[Server New] auth state repo is required")
	}

	s := &Server{
		mux:           http.NewServeMux(),
		config:        config,
		auth:          authService,
		uploader:      uploader,
		loginSessions: loginSessionRepo,
		authState:     authStateRepo,
		nowTime:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.env = config.GetEnv()

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

// Routes returns the registered route patterns in registration order.
func (s *Server) Routes() []string {
	return append([]string(nil), s.routes...)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.Routes() {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

func logRoute(method, path string) {
	log.Printf("[%-19s] %s", colouredMethod(method), path)
}

func colouredMethod(method string) string {
	paddedMethod := fmt.Sprintf(" %-7s", method)
	if color, ok := methodColors[method]; ok {
		return color + paddedMethod + ResetColor
	}
	return Gray + paddedMethod + ResetColor
}

// Helper function to determine the scheme (http/https)
func getScheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	if scheme := r.Header.Get("X-Forwarded-Proto"); scheme != "" {
		return scheme
	}
	return "http"
}
