// Package auth owns the session-scoped token lifecycle: it binds the identity
// client to the token cache stored in a login session and writes the cache back
// whenever the identity library changes it.
package auth

import (
	"context"

	"github.com/jrsteele09/go-onedrive-upload/identity"
	"github.com/jrsteele09/go-onedrive-upload/server/loginsession"
	"github.com/jrsteele09/go-onedrive-upload/tokencache"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Service provides login completion and silent token resolution for sessions.
type Service struct {
	factory identity.ClientFactory // Binds identity clients to a session's cache
	logger  zerolog.Logger
}

// ServiceOption defines a function type to modify the Service instance.
type ServiceOption func(*Service)

// WithLogger sets the logger used for token acquisition failures.
func WithLogger(logger zerolog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

// NewService initializes a Service around an identity client factory.
func NewService(factory identity.ClientFactory, opts ...ServiceOption) (*Service, error) {
	if factory == nil {
		return nil, errors.New("[NewService] identity client factory is required")
	}

	s := &Service{
		factory: factory,
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// LoadCache returns the session's token cache, or an empty cache when the session has none.
func (s *Service) LoadCache(session *loginsession.Session) *tokencache.Cache {
	if len(session.TokenCache) == 0 {
		return tokencache.New()
	}
	return tokencache.Deserialize(session.TokenCache)
}

// SaveCache writes the cache back to the session if the identity library changed it.
func (s *Service) SaveCache(session *loginsession.Session, cache *tokencache.Cache) {
	if cache.HasChanged() {
		session.TokenCache = cache.Serialize()
	}
}

// AuthCodeURL builds the provider's authorization URL carrying state.
func (s *Service) AuthCodeURL(ctx context.Context, session *loginsession.Session, state string) (string, error) {
	cache := s.LoadCache(session)
	defer s.SaveCache(session, cache)

	client, err := s.factory.NewClient(cache)
	if err != nil {
		return "", errors.Wrap(err, "[AuthCodeURL] creating identity client")
	}

	authURL, err := client.AuthCodeURL(ctx, state)
	if err != nil {
		return "", errors.Wrap(err, "[AuthCodeURL] building authorization url")
	}
	return authURL, nil
}

// CompleteLogin exchanges an authorization code and records the result on the session:
// the access token, the user's ID token claims, and the updated token cache.
// Exchange failures are returned unwrapped so the provider's text reaches the caller.
func (s *Service) CompleteLogin(ctx context.Context, session *loginsession.Session, code string) error {
	if code == "" {
		return ErrMissingCode
	}

	cache := s.LoadCache(session)
	client, err := s.factory.NewClient(cache)
	if err != nil {
		return errors.Wrap(err, "[CompleteLogin] creating identity client")
	}

	result, err := client.AcquireTokenByAuthCode(ctx, code)
	if err != nil {
		return err
	}
	if result.AccessToken == "" {
		return errors.Wrap(ErrNoAccessToken, "[CompleteLogin] token response")
	}

	session.AccessToken = result.AccessToken
	session.User = result.IDTokenClaims
	if session.User == nil {
		session.User = map[string]any{}
	}
	s.SaveCache(session, cache)

	s.logger.Info().
		Str("session_id", session.ID).
		Str("account", result.Account.Username).
		Msg("login completed")
	return nil
}

// AccessToken resolves a usable access token for the session without user interaction,
// refreshing through the identity library when the cached token has expired.
// It reports false when no account is cached or silent acquisition fails.
func (s *Service) AccessToken(ctx context.Context, session *loginsession.Session) (string, bool) {
	cache := s.LoadCache(session)
	defer s.SaveCache(session, cache)

	client, err := s.factory.NewClient(cache)
	if err != nil {
		s.logger.Error().Err(err).Str("session_id", session.ID).Msg("creating identity client")
		return "", false
	}

	accounts, err := client.Accounts(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Str("session_id", session.ID).Msg("listing cached accounts")
		return "", false
	}
	if len(accounts) == 0 {
		return "", false
	}

	result, err := client.AcquireTokenSilent(ctx, accounts[0])
	if err != nil {
		s.logger.Warn().Err(err).Str("session_id", session.ID).Msg("silent token acquisition failed")
		return "", false
	}
	if result.AccessToken == "" {
		return "", false
	}

	session.AccessToken = result.AccessToken
	return result.AccessToken, true
}
