package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/AzureAD/microsoft-authentication-library-for-go/apps/cache"
	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/jrsteele09/go-onedrive-upload/tokencache"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/microsoft"
)

var oidcScopes = []string{oidc.ScopeOpenID, "profile", oidc.ScopeOfflineAccess}

// OAuth2Option customises an OAuth2Factory.
type OAuth2Option func(*OAuth2Factory)

// WithEndpoint overrides the Azure AD authorize and token endpoints.
func WithEndpoint(endpoint oauth2.Endpoint) OAuth2Option {
	return func(f *OAuth2Factory) {
		f.config.Endpoint = endpoint
	}
}

// WithVerifier overrides the ID token verifier built from the tenant's JWKS.
func WithVerifier(verifier *oidc.IDTokenVerifier) OAuth2Option {
	return func(f *OAuth2Factory) {
		f.verifier = verifier
	}
}

// OAuth2Factory creates clients that speak the authorization code flow with
// golang.org/x/oauth2 and verify ID tokens with go-oidc.
type OAuth2Factory struct {
	settings Settings
	config   *oauth2.Config
	verifier *oidc.IDTokenVerifier
}

var _ ClientFactory = (*OAuth2Factory)(nil)

func NewOAuth2Factory(ctx context.Context, settings Settings, opts ...OAuth2Option) *OAuth2Factory {
	scopes := slices.Clone(settings.Scopes)
	for _, s := range oidcScopes {
		if !slices.Contains(scopes, s) {
			scopes = append(scopes, s)
		}
	}

	f := &OAuth2Factory{
		settings: settings,
		config: &oauth2.Config{
			ClientID:     settings.ClientID,
			ClientSecret: settings.ClientSecret,
			RedirectURL:  settings.RedirectURI,
			Endpoint:     microsoft.AzureADEndpoint(settings.TenantID),
			Scopes:       scopes,
		},
	}
	for _, opt := range opts {
		opt(f)
	}

	if f.verifier == nil {
		keysCtx := ctx
		if settings.HTTPClient != nil {
			keysCtx = oidc.ClientContext(ctx, settings.HTTPClient)
		}
		jwksURL := settings.Authority() + "/discovery/v2.0/keys"
		f.verifier = oidc.NewVerifier(settings.Authority()+"/v2.0", oidc.NewRemoteKeySet(keysCtx, jwksURL), &oidc.Config{
			ClientID:        settings.ClientID,
			SkipIssuerCheck: settings.multiTenant(),
		})
	}
	return f
}

func (f *OAuth2Factory) NewClient(tc *tokencache.Cache) (Client, error) {
	return &oauth2Client{factory: f, cache: tc}, nil
}

// oauth2Record is one account's entry in the serialized cache.
type oauth2Record struct {
	HomeAccountID string        `json:"home_account_id"`
	Username      string        `json:"username"`
	Token         *oauth2.Token `json:"token"`
}

type oauth2Store struct {
	Accounts []oauth2Record `json:"accounts"`
}

func (s *oauth2Store) Marshal() ([]byte, error) {
	return json.Marshal(s)
}

func (s *oauth2Store) Unmarshal(b []byte) error {
	*s = oauth2Store{}
	return json.Unmarshal(b, s)
}

func (s *oauth2Store) find(homeAccountID string) (int, bool) {
	for i, rec := range s.Accounts {
		if rec.HomeAccountID == homeAccountID {
			return i, true
		}
	}
	return -1, false
}

type oauth2Client struct {
	factory *OAuth2Factory
	cache   *tokencache.Cache
}

func (c *oauth2Client) httpContext(ctx context.Context) context.Context {
	if c.factory.settings.HTTPClient == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, c.factory.settings.HTTPClient)
}

func (c *oauth2Client) load(ctx context.Context) (*oauth2Store, error) {
	store := &oauth2Store{}
	if err := c.cache.Replace(ctx, store, cache.ReplaceHints{}); err != nil {
		return nil, err
	}
	return store, nil
}

func (c *oauth2Client) save(ctx context.Context, store *oauth2Store) error {
	return c.cache.Export(ctx, store, cache.ExportHints{})
}

func (c *oauth2Client) AuthCodeURL(_ context.Context, state string) (string, error) {
	return c.factory.config.AuthCodeURL(state), nil
}

func (c *oauth2Client) AcquireTokenByAuthCode(ctx context.Context, code string) (Result, error) {
	ctx = c.httpContext(ctx)

	tok, err := c.factory.config.Exchange(ctx, code)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrExchangeFailed, err)
	}

	claims := map[string]any{}
	if rawIDToken, ok := tok.Extra("id_token").(string); ok && rawIDToken != "" {
		idToken, err := c.factory.verifier.Verify(ctx, rawIDToken)
		if err != nil {
			return Result{}, fmt.Errorf("%w: id token: %v", ErrExchangeFailed, err)
		}
		if err := idToken.Claims(&claims); err != nil {
			return Result{}, fmt.Errorf("%w: id token claims: %v", ErrExchangeFailed, err)
		}
	}

	store, err := c.load(ctx)
	if err != nil {
		return Result{}, err
	}

	rec := oauth2Record{
		HomeAccountID: homeAccountID(claims),
		Username:      usernameFromClaims(claims),
		Token:         tok,
	}
	if i, ok := store.find(rec.HomeAccountID); ok {
		store.Accounts = slices.Delete(store.Accounts, i, i+1)
	}
	store.Accounts = append([]oauth2Record{rec}, store.Accounts...)

	if err := c.save(ctx, store); err != nil {
		return Result{}, err
	}

	return Result{
		AccessToken:   tok.AccessToken,
		ExpiresOn:     tok.Expiry,
		Account:       rec.account(),
		IDTokenClaims: claims,
	}, nil
}

func (c *oauth2Client) Accounts(ctx context.Context) ([]Account, error) {
	store, err := c.load(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]Account, 0, len(store.Accounts))
	for _, rec := range store.Accounts {
		out = append(out, rec.account())
	}
	return out, nil
}

func (c *oauth2Client) AcquireTokenSilent(ctx context.Context, account Account) (Result, error) {
	ctx = c.httpContext(ctx)

	store, err := c.load(ctx)
	if err != nil {
		return Result{}, err
	}
	i, ok := store.find(account.HomeAccountID)
	if !ok || store.Accounts[i].Token == nil {
		return Result{}, fmt.Errorf("%w: %s", ErrUnknownAccount, account.HomeAccountID)
	}
	rec := store.Accounts[i]

	// TokenSource returns the stored token while it is valid and refreshes it otherwise.
	tok, err := c.factory.config.TokenSource(ctx, rec.Token).Token()
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrSilentFailed, err)
	}

	if tok.AccessToken != rec.Token.AccessToken || tok.RefreshToken != rec.Token.RefreshToken {
		store.Accounts[i].Token = tok
		if err := c.save(ctx, store); err != nil {
			return Result{}, err
		}
	}

	return Result{
		AccessToken: tok.AccessToken,
		ExpiresOn:   tok.Expiry,
		Account:     rec.account(),
	}, nil
}

func (r oauth2Record) account() Account {
	return Account{HomeAccountID: r.HomeAccountID, Username: r.Username, raw: r}
}
