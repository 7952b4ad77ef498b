package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"slices"

	"github.com/AzureAD/microsoft-authentication-library-for-go/apps/confidential"
	"github.com/jrsteele09/go-onedrive-upload/tokencache"
)

// MSALOption customises an MSALFactory.
type MSALOption func(*MSALFactory)

// WithAuthority replaces the tenant authority on the Microsoft login host.
func WithAuthority(authority string) MSALOption {
	return func(f *MSALFactory) {
		f.authority = authority
	}
}

// WithoutInstanceDiscovery trusts the authority as given instead of validating
// it against the Microsoft instance discovery endpoint.
func WithoutInstanceDiscovery() MSALOption {
	return func(f *MSALFactory) {
		f.instanceDiscovery = false
	}
}

// MSALFactory creates MSAL confidential clients. The credential is parsed once;
// a client is cheap and is built per request around the session's cache.
type MSALFactory struct {
	settings          Settings
	cred              confidential.Credential
	authority         string
	instanceDiscovery bool
}

var _ ClientFactory = (*MSALFactory)(nil)

func NewMSALFactory(settings Settings, opts ...MSALOption) (*MSALFactory, error) {
	cred, err := confidential.NewCredFromSecret(settings.ClientSecret)
	if err != nil {
		return nil, fmt.Errorf("identity: msal credential: %w", err)
	}

	f := &MSALFactory{
		settings:          settings,
		cred:              cred,
		authority:         settings.Authority(),
		instanceDiscovery: true,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

func (f *MSALFactory) NewClient(cache *tokencache.Cache) (Client, error) {
	opts := []confidential.Option{
		confidential.WithCache(cache),
		confidential.WithInstanceDiscovery(f.instanceDiscovery),
	}
	if f.settings.HTTPClient != nil {
		opts = append(opts, confidential.WithHTTPClient(f.settings.HTTPClient))
	}

	app, err := confidential.New(f.authority, f.settings.ClientID, f.cred, opts...)
	if err != nil {
		return nil, fmt.Errorf("identity: msal client: %w", err)
	}
	return &msalClient{app: app, cache: cache, settings: f.settings}, nil
}

type msalClient struct {
	app      confidential.Client
	cache    *tokencache.Cache
	settings Settings
}

func (c *msalClient) AuthCodeURL(ctx context.Context, state string) (string, error) {
	authURL, err := c.app.AuthCodeURL(ctx, c.settings.ClientID, c.settings.RedirectURI, c.settings.Scopes)
	if err != nil {
		return "", fmt.Errorf("identity: building authorization url: %w", err)
	}
	if state == "" {
		return authURL, nil
	}

	u, err := url.Parse(authURL)
	if err != nil {
		return "", fmt.Errorf("identity: parsing authorization url: %w", err)
	}
	q := u.Query()
	q.Set("state", state)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *msalClient) AcquireTokenByAuthCode(ctx context.Context, code string) (Result, error) {
	ar, err := c.app.AcquireTokenByAuthCode(ctx, code, c.settings.RedirectURI, c.settings.Scopes)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrExchangeFailed, err)
	}
	return msalResult(ar)
}

// Accounts lists the users in the session's cache. A confidential client can only
// look accounts up by home account ID, so the IDs are read from the cache blob and
// each one is resolved through the client.
func (c *msalClient) Accounts(ctx context.Context) ([]Account, error) {
	ids, err := msalHomeAccountIDs(c.cache.Serialize())
	if err != nil {
		return nil, err
	}

	out := make([]Account, 0, len(ids))
	for _, id := range ids {
		a, err := c.app.Account(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("identity: reading account %s: %w", id, err)
		}
		if a.IsZero() {
			continue
		}
		out = append(out, Account{HomeAccountID: a.HomeAccountID, Username: a.PreferredUsername, raw: a})
	}
	return out, nil
}

func (c *msalClient) AcquireTokenSilent(ctx context.Context, account Account) (Result, error) {
	raw, ok := account.raw.(confidential.Account)
	if !ok {
		var err error
		if raw, err = c.app.Account(ctx, account.HomeAccountID); err != nil {
			return Result{}, fmt.Errorf("%w: %v", ErrSilentFailed, err)
		}
	}
	if raw.IsZero() {
		return Result{}, fmt.Errorf("%w: %s", ErrUnknownAccount, account.HomeAccountID)
	}

	ar, err := c.app.AcquireTokenSilent(ctx, c.settings.Scopes, confidential.WithSilentAccount(raw))
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrSilentFailed, err)
	}
	return msalResult(ar)
}

func msalResult(ar confidential.AuthResult) (Result, error) {
	claims, err := DecodeClaims(ar.IDToken.RawToken)
	if err != nil {
		return Result{}, err
	}
	return Result{
		AccessToken: ar.AccessToken,
		ExpiresOn:   ar.ExpiresOn,
		Account: Account{
			HomeAccountID: ar.Account.HomeAccountID,
			Username:      ar.Account.PreferredUsername,
			raw:           ar.Account,
		},
		IDTokenClaims: claims,
	}, nil
}

// msalCacheAccounts is the account section of the MSAL cache serialization.
type msalCacheAccounts struct {
	Account map[string]struct {
		HomeAccountID string `json:"home_account_id"`
	} `json:"Account"`
}

// msalHomeAccountIDs returns the sorted, distinct home account IDs in an MSAL cache blob.
func msalHomeAccountIDs(blob []byte) ([]string, error) {
	if len(blob) == 0 {
		return nil, nil
	}

	var contents msalCacheAccounts
	if err := json.Unmarshal(blob, &contents); err != nil {
		return nil, fmt.Errorf("identity: reading cached accounts: %w", err)
	}

	ids := make([]string, 0, len(contents.Account))
	for _, a := range contents.Account {
		if a.HomeAccountID != "" {
			ids = append(ids, a.HomeAccountID)
		}
	}
	slices.Sort(ids)
	return slices.Compact(ids), nil
}
