package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/joho/godotenv"
	"github.com/jrsteele09/go-onedrive-upload/auth"
	"github.com/jrsteele09/go-onedrive-upload/graph"
	"github.com/jrsteele09/go-onedrive-upload/identity"
	"github.com/jrsteele09/go-onedrive-upload/internal/config"
	"github.com/jrsteele09/go-onedrive-upload/server"
	"github.com/jrsteele09/go-onedrive-upload/server/authflowrepo"
	"github.com/jrsteele09/go-onedrive-upload/server/loginsession"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Error loading .env: %s\n", err)
	}

	for {
		if err := run(); err != nil {
			log.Error().Err(err).Msg("Error running server")
			time.Sleep(1 * time.Second)
		} else {
			break
		}
	}
	log.Info().Msg("Server stopped")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("Recovered from panic")
			returnError = errors.New("panic recovered")
		}
	}()

	c := config.New()
	setupLogging(c)
	if err := config.Validate(c); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	handler, err := newHandler(context.Background(), c)
	if err != nil {
		return err
	}

	displayAppname(c.GetAppName())
	httpServer := &http.Server{
		Addr:              c.GetPort(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- listenAndServe(httpServer) }()

	select {
	case err := <-errCh:
		return err
	case <-waitForStopSignal():
	}
	return shutdown(httpServer)
}

// newHandler wires the identity backend, Graph client and session stores into the HTTP server.
func newHandler(ctx context.Context, c config.Config) (http.Handler, error) {
	factory, err := identity.NewFactory(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("identity.NewFactory: %w", err)
	}

	authService, err := auth.NewService(factory, auth.WithLogger(log.With().Str("component", "auth").Logger()))
	if err != nil {
		return nil, fmt.Errorf("auth.NewService: %w", err)
	}

	uploader := graph.NewClient(c.GetGraphBaseURL(),
		graph.WithHTTPClient(&http.Client{Timeout: c.GetGraphTimeout()}),
		graph.WithRateLimit(c.GetGraphRateLimit(), c.GetGraphRateBurst()),
		graph.WithLogger(log.With().Str("component", "graph").Logger()),
	)

	var sessions loginsession.Repo = loginsession.NewInMemoryLoginSessionRepo()
	if secret := c.GetSessionSecret(); secret != "" {
		sessions = loginsession.NewSealedRepo(sessions, loginsession.NewSealer(secret))
		log.Info().Msg("Session token material is sealed at rest")
	}

	s, err := server.New(c, authService, uploader, sessions, authflowrepo.NewInMemoryRepo())
	if err != nil {
		return nil, err
	}
	log.Info().
		Str("backend", c.GetIdentityBackend()).
		Str("redirect_uri", c.GetRedirectURI()).
		Int64("max_upload_bytes", c.GetMaxUploadBytes()).
		Msg("Server configured")
	return s, nil
}

func setupLogging(c config.Config) {
	level, err := zerolog.ParseLevel(c.GetLogLevel())
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	if c.GetEnv() == "DEV" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}

func listenAndServe(server *http.Server) error {
	log.Info().Str("addr", server.Addr).Msg("Server listening")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() <-chan os.Signal {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	return stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
