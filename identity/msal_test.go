package identity_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-onedrive-upload/identity"
	"github.com/jrsteele09/go-onedrive-upload/tokencache"
	"github.com/stretchr/testify/require"
)

const (
	msalTenant        = "tenant-a"
	msalHomeAccountID = "user-1.tenant-a"
)

// msalAuthority is a TLS identity provider serving the tenant discovery document
// and the token endpoint the MSAL client talks to.
type msalAuthority struct {
	*httptest.Server
	expiresIn    int
	issued       atomic.Int32
	refreshes    atomic.Int32
	refreshToken atomic.Value
}

func newMSALAuthority(t *testing.T, expiresIn int) *msalAuthority {
	t.Helper()
	a := &msalAuthority{expiresIn: expiresIn}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /"+msalTenant+"/v2.0/.well-known/openid-configuration", a.discovery)
	mux.HandleFunc("POST /"+msalTenant+"/oauth2/v2.0/token", a.token)
	a.Server = httptest.NewTLSServer(mux)
	t.Cleanup(a.Close)
	return a
}

func (a *msalAuthority) discovery(w http.ResponseWriter, _ *http.Request) {
	base := a.URL + "/" + msalTenant
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{
		"authorization_endpoint": base + "/oauth2/v2.0/authorize",
		"token_endpoint":         base + "/oauth2/v2.0/token",
		"issuer":                 base + "/v2.0",
	})
}

func (a *msalAuthority) token(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if r.PostForm.Get("client_secret") != "secret" {
		msalError(w, "invalid_client", "bad secret")
		return
	}

	switch r.PostForm.Get("grant_type") {
	case "authorization_code":
		if r.PostForm.Get("code") != "good-code" {
			msalError(w, "invalid_grant", "bad code")
			return
		}
	case "refresh_token":
		if current, _ := a.refreshToken.Load().(string); r.PostForm.Get("refresh_token") != current {
			msalError(w, "invalid_grant", "unknown refresh token")
			return
		}
		a.refreshes.Add(1)
	default:
		msalError(w, "unsupported_grant_type", r.PostForm.Get("grant_type"))
		return
	}

	n := a.issued.Add(1)
	idToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iss":                a.URL + "/" + msalTenant + "/v2.0",
		"aud":                testClientID,
		"sub":                "subject-1",
		"oid":                "user-1",
		"tid":                msalTenant,
		"name":               "Grace Hopper",
		"preferred_username": "grace@example.com",
		"iat":                time.Now().Unix(),
		"exp":                time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("id-token-key"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	refreshToken := fmt.Sprintf("msal-rt-%d", n)
	a.refreshToken.Store(refreshToken)

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"token_type":    "Bearer",
		"access_token":  fmt.Sprintf("msal-at-%d", n),
		"refresh_token": refreshToken,
		"expires_in":    a.expiresIn,
		"id_token":      idToken,
		"client_info":   base64.RawURLEncoding.EncodeToString([]byte(`{"uid":"user-1","utid":"` + msalTenant + `"}`)),
	})
}

func msalError(w http.ResponseWriter, code, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": code, "error_description": description})
}

func (a *msalAuthority) factory(t *testing.T) *identity.MSALFactory {
	t.Helper()
	settings := identity.Settings{
		TenantID:     msalTenant,
		ClientID:     testClientID,
		ClientSecret: "secret",
		RedirectURI:  "http://localhost:5000/callback/",
		Scopes:       []string{"User.Read", "Files.ReadWrite"},
		HTTPClient:   a.Client(),
	}
	f, err := identity.NewMSALFactory(settings,
		identity.WithAuthority(a.URL+"/"+msalTenant),
		identity.WithoutInstanceDiscovery(),
	)
	require.NoError(t, err)
	return f
}

// signIn exchanges a code through a fresh client and returns the serialized cache.
func (a *msalAuthority) signIn(t *testing.T) []byte {
	t.Helper()
	cache := tokencache.New()
	client, err := a.factory(t).NewClient(cache)
	require.NoError(t, err)

	_, err = client.AcquireTokenByAuthCode(context.Background(), "good-code")
	require.NoError(t, err)
	require.True(t, cache.HasChanged())
	return cache.Serialize()
}

func TestMSALAuthCodeURL(t *testing.T) {
	a := newMSALAuthority(t, 3600)
	client, err := a.factory(t).NewClient(tokencache.New())
	require.NoError(t, err)

	raw, err := client.AuthCodeURL(context.Background(), "state-123")
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	q := u.Query()
	require.Equal(t, a.URL+"/"+msalTenant+"/oauth2/v2.0/authorize", u.Scheme+"://"+u.Host+u.Path)
	require.Equal(t, "state-123", q.Get("state"))
	require.Equal(t, testClientID, q.Get("client_id"))
	require.Equal(t, "http://localhost:5000/callback/", q.Get("redirect_uri"))
	require.Equal(t, "code", q.Get("response_type"))
}

func TestMSALAcquireTokenByAuthCode(t *testing.T) {
	ctx := context.Background()

	t.Run("Exchange fills the cache", func(t *testing.T) {
		a := newMSALAuthority(t, 3600)
		cache := tokencache.New()
		client, err := a.factory(t).NewClient(cache)
		require.NoError(t, err)

		result, err := client.AcquireTokenByAuthCode(ctx, "good-code")
		require.NoError(t, err)
		require.Equal(t, "msal-at-1", result.AccessToken)
		require.Equal(t, msalHomeAccountID, result.Account.HomeAccountID)
		require.Equal(t, "grace@example.com", result.Account.Username)
		require.Equal(t, "Grace Hopper", result.IDTokenClaims["name"])
		require.True(t, cache.HasChanged())
		require.False(t, cache.IsEmpty())
	})

	t.Run("Round trip recovers the account", func(t *testing.T) {
		a := newMSALAuthority(t, 3600)
		blob := a.signIn(t)

		restored, err := a.factory(t).NewClient(tokencache.Deserialize(blob))
		require.NoError(t, err)
		accounts, err := restored.Accounts(ctx)
		require.NoError(t, err)
		require.Len(t, accounts, 1)
		require.Equal(t, msalHomeAccountID, accounts[0].HomeAccountID)
		require.Equal(t, "grace@example.com", accounts[0].Username)
	})

	t.Run("Rejected code", func(t *testing.T) {
		a := newMSALAuthority(t, 3600)
		cache := tokencache.New()
		client, err := a.factory(t).NewClient(cache)
		require.NoError(t, err)

		_, err = client.AcquireTokenByAuthCode(ctx, "bad-code")
		require.ErrorIs(t, err, identity.ErrExchangeFailed)
		require.Contains(t, err.Error(), "invalid_grant")
		require.False(t, cache.HasChanged())
	})
}

func TestMSALAccounts(t *testing.T) {
	a := newMSALAuthority(t, 3600)
	client, err := a.factory(t).NewClient(tokencache.New())
	require.NoError(t, err)

	accounts, err := client.Accounts(context.Background())
	require.NoError(t, err)
	require.Empty(t, accounts)
}

func TestMSALAcquireTokenSilent(t *testing.T) {
	ctx := context.Background()

	t.Run("Valid token is served from the cache", func(t *testing.T) {
		a := newMSALAuthority(t, 3600)
		restoredCache := tokencache.Deserialize(a.signIn(t))
		restored, err := a.factory(t).NewClient(restoredCache)
		require.NoError(t, err)
		accounts, err := restored.Accounts(ctx)
		require.NoError(t, err)
		require.Len(t, accounts, 1)

		result, err := restored.AcquireTokenSilent(ctx, accounts[0])
		require.NoError(t, err)
		require.Equal(t, "msal-at-1", result.AccessToken)
		require.Equal(t, "Grace Hopper", result.IDTokenClaims["name"])
		require.False(t, restoredCache.HasChanged())
		require.Zero(t, a.refreshes.Load())
	})

	t.Run("Expired token is refreshed and exported", func(t *testing.T) {
		// Tokens inside the library's five minute expiry margin are never served from the cache.
		a := newMSALAuthority(t, 60)
		restoredCache := tokencache.Deserialize(a.signIn(t))
		restored, err := a.factory(t).NewClient(restoredCache)
		require.NoError(t, err)
		accounts, err := restored.Accounts(ctx)
		require.NoError(t, err)
		require.Len(t, accounts, 1)

		result, err := restored.AcquireTokenSilent(ctx, accounts[0])
		require.NoError(t, err)
		require.Equal(t, "msal-at-2", result.AccessToken)
		require.True(t, restoredCache.HasChanged())
		require.Equal(t, int32(1), a.refreshes.Load())
	})

	t.Run("Unknown account", func(t *testing.T) {
		a := newMSALAuthority(t, 3600)
		client, err := a.factory(t).NewClient(tokencache.New())
		require.NoError(t, err)

		_, err = client.AcquireTokenSilent(ctx, identity.NewAccount("missing", "", nil))
		require.ErrorIs(t, err, identity.ErrUnknownAccount)
	})
}
