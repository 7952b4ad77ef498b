package config

import (
	"fmt"
	"strings"
	"time"
)

type Config interface {
	EnvConfig
	IdentityConfig
	GraphConfig
	SecurityConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
	GetBaseURL() string
	GetLogLevel() string
}

type mainConfig struct {
	EnvVars
	Identity
	Graph
	Security
}

func New() Config {
	return mainConfig{}
}

// Validate reports the first configuration problem that would stop the service
// from completing a login or an upload.
func Validate(c Config) error {
	if c.GetClientID() == "" {
		return fmt.Errorf("%s is required", clientIDEnvVar)
	}
	if c.GetClientSecret() == "" {
		return fmt.Errorf("%s is required", clientSecretEnvVar)
	}
	if !strings.HasPrefix(c.GetRedirectURI(), "http://") && !strings.HasPrefix(c.GetRedirectURI(), "https://") {
		return fmt.Errorf("%s must be an absolute http(s) URL, got %q", redirectURIEnvVar, c.GetRedirectURI())
	}
	if len(c.GetScopes()) == 0 {
		return fmt.Errorf("%s must list at least one scope", scopesEnvVar)
	}
	switch c.GetIdentityBackend() {
	case BackendMSAL, BackendOAuth2:
	default:
		return fmt.Errorf("%s must be %q or %q, got %q", backendEnvVar, BackendMSAL, BackendOAuth2, c.GetIdentityBackend())
	}
	if c.GetMaxUploadBytes() <= 0 {
		return fmt.Errorf("%s must be positive", maxUploadEnvVar)
	}
	if c.GetGraphRateLimit() <= 0 || c.GetGraphRateBurst() <= 0 {
		return fmt.Errorf("%s and %s must be positive", rateLimitEnvVar, rateBurstEnvVar)
	}
	if c.GetMaxSessionAge() <= 0 || c.GetAuthFlowTimeout() <= 0 {
		return fmt.Errorf("%s and %s must be positive durations", sessionAgeEnvVar, flowTimeoutEnvVar)
	}
	return nil
}

func getDuration(envVar string, defaultValue time.Duration) time.Duration {
	value := GetEnv(envVar, "")
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return d
}
