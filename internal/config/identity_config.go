package config

import (
	"strings"
	"time"
)

const (
	tenantIDEnvVar     = "MS_TENANT_ID"
	clientIDEnvVar     = "MS_CLIENT_ID"
	clientSecretEnvVar = "MS_CLIENT_SECRET"
	redirectURIEnvVar  = "MS_REDIRECT_URI"
	scopesEnvVar       = "MS_SCOPES"
	backendEnvVar      = "IDENTITY_BACKEND"
	identityTimeoutVar = "IDENTITY_TIMEOUT"

	BackendMSAL   = "msal"
	BackendOAuth2 = "oauth2"

	// CallbackPath is where the identity provider sends the browser back to.
	CallbackPath = "/callback/"
)

var defaultScopes = []string{"User.Read", "Files.ReadWrite"}

type IdentityConfig interface {
	GetTenantID() string
	GetClientID() string
	GetClientSecret() string
	GetRedirectURI() string
	GetScopes() []string
	GetIdentityBackend() string
	GetIdentityTimeout() time.Duration
}

type Identity struct{}

var _ IdentityConfig = Identity{}

func (Identity) GetTenantID() string {
	return GetEnv(tenantIDEnvVar, "common")
}

func (Identity) GetClientID() string {
	return GetEnv(clientIDEnvVar, "")
}

func (Identity) GetClientSecret() string {
	return GetEnv(clientSecretEnvVar, "")
}

// GetRedirectURI must match the URI registered for the application exactly.
// It is used unchanged for both the authorization request and the code exchange.
func (Identity) GetRedirectURI() string {
	return GetEnv(redirectURIEnvVar, EnvVars{}.GetBaseURL()+CallbackPath)
}

// GetScopes accepts a space or comma separated list.
func (Identity) GetScopes() []string {
	raw := GetEnv(scopesEnvVar, "")
	if raw == "" {
		return append([]string(nil), defaultScopes...)
	}
	return strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ' '
	})
}

func (Identity) GetIdentityBackend() string {
	return strings.ToLower(GetEnv(backendEnvVar, BackendMSAL))
}

func (Identity) GetIdentityTimeout() time.Duration {
	return getDuration(identityTimeoutVar, 30*time.Second)
}
