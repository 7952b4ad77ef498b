// Package identity wraps the Microsoft identity platform behind a small client
// bound to one session's token cache.
//
// Two backends are available: MSAL Go (confidential client) and golang.org/x/oauth2
// with go-oidc ID token verification. Both read and write credential state only
// through a *tokencache.Cache, so the session decides when it is persisted.
package identity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jrsteele09/go-onedrive-upload/internal/config"
	"github.com/jrsteele09/go-onedrive-upload/tokencache"
)

// AuthorityHost is the Microsoft identity platform login host.
const AuthorityHost = "https://login.microsoftonline.com/"

var (
	ErrExchangeFailed = errors.New("identity: authorization code exchange failed")
	ErrSilentFailed   = errors.New("identity: silent token acquisition failed")
	ErrUnknownAccount = errors.New("identity: account not in cache")
	ErrUnknownBackend = errors.New("identity: unknown backend")
)

// Account is a signed-in user known to the token cache.
type Account struct {
	HomeAccountID string
	Username      string

	raw any // backend-specific account record
}

// Result is the outcome of a token acquisition.
type Result struct {
	AccessToken   string
	ExpiresOn     time.Time
	Account       Account
	IDTokenClaims map[string]any
}

// Client performs token operations against one session's cache. Scopes and the
// redirect URI are fixed at construction so login, callback and silent refresh
// always send identical values.
type Client interface {
	AuthCodeURL(ctx context.Context, state string) (string, error)
	AcquireTokenByAuthCode(ctx context.Context, code string) (Result, error)
	Accounts(ctx context.Context) ([]Account, error)
	AcquireTokenSilent(ctx context.Context, account Account) (Result, error)
}

// ClientFactory binds a Client to a session's token cache.
type ClientFactory interface {
	NewClient(cache *tokencache.Cache) (Client, error)
}

// Settings identify the registered application.
type Settings struct {
	TenantID     string
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Scopes       []string
	HTTPClient   *http.Client
}

func SettingsFromConfig(c config.IdentityConfig) Settings {
	return Settings{
		TenantID:     c.GetTenantID(),
		ClientID:     c.GetClientID(),
		ClientSecret: c.GetClientSecret(),
		RedirectURI:  c.GetRedirectURI(),
		Scopes:       c.GetScopes(),
		HTTPClient:   &http.Client{Timeout: c.GetIdentityTimeout()},
	}
}

// Authority returns the tenant-specific authority URL.
func (s Settings) Authority() string {
	return AuthorityHost + s.TenantID
}

// multiTenant reports whether the tenant is one of the shared aliases whose
// tokens carry the issuing tenant rather than the alias as issuer.
func (s Settings) multiTenant() bool {
	switch strings.ToLower(s.TenantID) {
	case "common", "organizations", "consumers":
		return true
	}
	return false
}

// NewFactory returns the backend selected by configuration.
func NewFactory(ctx context.Context, c config.IdentityConfig) (ClientFactory, error) {
	settings := SettingsFromConfig(c)
	switch c.GetIdentityBackend() {
	case config.BackendMSAL:
		return NewMSALFactory(settings)
	case config.BackendOAuth2:
		return NewOAuth2Factory(ctx, settings), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, c.GetIdentityBackend())
	}
}

// NewAccount builds an Account carrying a backend record. Backends outside this
// package (test fakes) use it to round-trip their own account type.
func NewAccount(homeAccountID, username string, raw any) Account {
	return Account{HomeAccountID: homeAccountID, Username: username, raw: raw}
}
