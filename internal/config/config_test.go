package config_test

import (
	"testing"
	"time"

	"github.com/jrsteele09/go-onedrive-upload/internal/config"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("MS_CLIENT_ID", "client-id")
	t.Setenv("MS_CLIENT_SECRET", "client-secret")
}

func TestConfig_Defaults(t *testing.T) {
	c := config.New()

	require.Equal(t, ":8080", c.GetPort())
	require.Equal(t, "DEV", c.GetEnv())
	require.Equal(t, "common", c.GetTenantID())
	require.Equal(t, "http://localhost:8080/callback/", c.GetRedirectURI())
	require.Equal(t, []string{"User.Read", "Files.ReadWrite"}, c.GetScopes())
	require.Equal(t, config.BackendMSAL, c.GetIdentityBackend())
	require.Equal(t, "https://graph.microsoft.com/v1.0", c.GetGraphBaseURL())
	require.Equal(t, int64(4*1024*1024), c.GetMaxUploadBytes())
	require.Equal(t, 60*time.Second, c.GetGraphTimeout())
	require.Equal(t, 30*time.Second, c.GetIdentityTimeout())
	require.True(t, c.GetRequireState())
	require.Empty(t, c.GetSessionSecret())
}

func TestConfig_EnvOverrides(t *testing.T) {
	t.Setenv("PORT", ":9000")
	t.Setenv("BASE_URL", "https://upload.example.com/")
	t.Setenv("MS_SCOPES", "Files.ReadWrite.All, User.Read")
	t.Setenv("GRAPH_TIMEOUT", "5s")
	t.Setenv("OAUTH_REQUIRE_STATE", "false")
	t.Setenv("MAX_UPLOAD_BYTES", "1024")
	c := config.New()

	require.Equal(t, ":9000", c.GetPort())
	require.Equal(t, "https://upload.example.com", c.GetBaseURL())
	require.Equal(t, "https://upload.example.com/callback/", c.GetRedirectURI())
	require.Equal(t, []string{"Files.ReadWrite.All", "User.Read"}, c.GetScopes())
	require.Equal(t, 5*time.Second, c.GetGraphTimeout())
	require.False(t, c.GetRequireState())
	require.Equal(t, int64(1024), c.GetMaxUploadBytes())
}

func TestConfig_GraphRateLimit(t *testing.T) {
	require.Equal(t, 10.0, config.New().GetGraphRateLimit())

	t.Setenv("GRAPH_RATE_LIMIT", "0.5")
	require.Equal(t, 0.5, config.New().GetGraphRateLimit())

	t.Setenv("GRAPH_RATE_LIMIT", "fast")
	require.Equal(t, 10.0, config.New().GetGraphRateLimit())
}

func TestConfig_InvalidDurationFallsBack(t *testing.T) {
	t.Setenv("SESSION_MAX_AGE", "forever")
	require.Equal(t, 8*time.Hour, config.New().GetMaxSessionAge())
}

func TestValidate(t *testing.T) {
	t.Run("missing client id", func(t *testing.T) {
		err := config.Validate(config.New())
		require.Error(t, err)
		require.Contains(t, err.Error(), "MS_CLIENT_ID")
	})

	t.Run("missing secret", func(t *testing.T) {
		t.Setenv("MS_CLIENT_ID", "client-id")
		err := config.Validate(config.New())
		require.Error(t, err)
		require.Contains(t, err.Error(), "MS_CLIENT_SECRET")
	})

	t.Run("relative redirect", func(t *testing.T) {
		setRequired(t)
		t.Setenv("MS_REDIRECT_URI", "/callback/")
		require.Error(t, config.Validate(config.New()))
	})

	t.Run("unknown backend", func(t *testing.T) {
		setRequired(t)
		t.Setenv("IDENTITY_BACKEND", "saml")
		err := config.Validate(config.New())
		require.Error(t, err)
		require.Contains(t, err.Error(), "IDENTITY_BACKEND")
	})

	t.Run("valid", func(t *testing.T) {
		setRequired(t)
		require.NoError(t, config.Validate(config.New()))
	})
}
