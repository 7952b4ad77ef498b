// Package identityfake provides an in-process identity backend for tests.
// Its credential state lives in the session's token cache exactly like a real
// backend, so persistence and refresh paths are exercised end to end.
package identityfake

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/AzureAD/microsoft-authentication-library-for-go/apps/cache"
	"github.com/jrsteele09/go-onedrive-upload/identity"
	"github.com/jrsteele09/go-onedrive-upload/tokencache"
)

const AuthorizeURL = "https://login.example.test/authorize"

// Grant is what the fake provider hands out for an authorization code.
type Grant struct {
	HomeAccountID string
	Username      string
	AccessToken   string
	Claims        map[string]any
}

type Factory struct {
	mu     sync.Mutex
	grants map[string]Grant

	// ExchangeErr, when set, fails every code exchange.
	ExchangeErr error
	// SilentErr, when set, fails every silent acquisition.
	SilentErr error
	// RotateOnSilent issues a new access token on every silent acquisition.
	RotateOnSilent bool

	exchanges   int
	silentCalls int
}

var _ identity.ClientFactory = (*Factory)(nil)

func New() *Factory {
	return &Factory{grants: make(map[string]Grant)}
}

// AddGrant registers the grant returned for code.
func (f *Factory) AddGrant(code string, g Grant) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.grants[code] = g
}

func (f *Factory) Exchanges() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.exchanges
}

func (f *Factory) SilentCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.silentCalls
}

func (f *Factory) NewClient(tc *tokencache.Cache) (identity.Client, error) {
	return &client{factory: f, cache: tc}, nil
}

type record struct {
	HomeAccountID string    `json:"home_account_id"`
	Username      string    `json:"username"`
	AccessToken   string    `json:"access_token"`
	Generation    int       `json:"generation"`
	ExpiresOn     time.Time `json:"expires_on"`
}

type state struct {
	Accounts []record `json:"accounts"`
}

func (s *state) Marshal() ([]byte, error) { return json.Marshal(s) }

func (s *state) Unmarshal(b []byte) error {
	*s = state{}
	return json.Unmarshal(b, s)
}

type client struct {
	factory *Factory
	cache   *tokencache.Cache
}

func (c *client) load(ctx context.Context) (*state, error) {
	s := &state{}
	if err := c.cache.Replace(ctx, s, cache.ReplaceHints{}); err != nil {
		return nil, err
	}
	return s, nil
}

func (c *client) AuthCodeURL(_ context.Context, st string) (string, error) {
	q := url.Values{}
	q.Set("client_id", "fake-client")
	q.Set("response_type", "code")
	if st != "" {
		q.Set("state", st)
	}
	return AuthorizeURL + "?" + q.Encode(), nil
}

func (c *client) AcquireTokenByAuthCode(ctx context.Context, code string) (identity.Result, error) {
	c.factory.mu.Lock()
	c.factory.exchanges++
	g, ok := c.factory.grants[code]
	exchangeErr := c.factory.ExchangeErr
	c.factory.mu.Unlock()

	if exchangeErr != nil {
		return identity.Result{}, fmt.Errorf("%w: %v", identity.ErrExchangeFailed, exchangeErr)
	}
	if !ok {
		return identity.Result{}, fmt.Errorf("%w: invalid_grant: unknown code %q", identity.ErrExchangeFailed, code)
	}

	s, err := c.load(ctx)
	if err != nil {
		return identity.Result{}, err
	}
	rec := record{
		HomeAccountID: g.HomeAccountID,
		Username:      g.Username,
		AccessToken:   g.AccessToken,
		ExpiresOn:     time.Now().Add(time.Hour).UTC().Truncate(time.Second),
	}
	s.Accounts = []record{rec}
	if err := c.cache.Export(ctx, s, cache.ExportHints{}); err != nil {
		return identity.Result{}, err
	}

	claims := g.Claims
	if claims == nil {
		claims = map[string]any{}
	}
	return identity.Result{
		AccessToken:   rec.AccessToken,
		ExpiresOn:     rec.ExpiresOn,
		Account:       identity.NewAccount(rec.HomeAccountID, rec.Username, rec),
		IDTokenClaims: claims,
	}, nil
}

func (c *client) Accounts(ctx context.Context) ([]identity.Account, error) {
	s, err := c.load(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]identity.Account, 0, len(s.Accounts))
	for _, rec := range s.Accounts {
		out = append(out, identity.NewAccount(rec.HomeAccountID, rec.Username, rec))
	}
	return out, nil
}

func (c *client) AcquireTokenSilent(ctx context.Context, account identity.Account) (identity.Result, error) {
	c.factory.mu.Lock()
	c.factory.silentCalls++
	silentErr := c.factory.SilentErr
	rotate := c.factory.RotateOnSilent
	c.factory.mu.Unlock()

	if silentErr != nil {
		return identity.Result{}, fmt.Errorf("%w: %v", identity.ErrSilentFailed, silentErr)
	}

	s, err := c.load(ctx)
	if err != nil {
		return identity.Result{}, err
	}
	idx := -1
	for i, rec := range s.Accounts {
		if rec.HomeAccountID == account.HomeAccountID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return identity.Result{}, fmt.Errorf("%w: %s", identity.ErrUnknownAccount, account.HomeAccountID)
	}

	if rotate {
		rec := &s.Accounts[idx]
		rec.Generation++
		rec.AccessToken = fmt.Sprintf("%s-r%d", rec.AccessToken, rec.Generation)
		if err := c.cache.Export(ctx, s, cache.ExportHints{}); err != nil {
			return identity.Result{}, err
		}
	}

	rec := s.Accounts[idx]
	return identity.Result{
		AccessToken: rec.AccessToken,
		ExpiresOn:   rec.ExpiresOn,
		Account:     identity.NewAccount(rec.HomeAccountID, rec.Username, rec),
	}, nil
}
