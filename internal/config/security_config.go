package config

import "time"

const (
	sessionSecretVar   = "SESSION_SECRET"
	sessionAgeEnvVar   = "SESSION_MAX_AGE"
	flowTimeoutEnvVar  = "AUTH_FLOW_TIMEOUT"
	requireStateEnvVar = "OAUTH_REQUIRE_STATE"
)

type SecurityConfig interface {
	GetSessionSecret() string
	GetMaxSessionAge() time.Duration
	GetAuthFlowTimeout() time.Duration
	GetRequireState() bool
}

type Security struct{}

var _ SecurityConfig = Security{}

// GetSessionSecret enables sealing of token material held in the session store when set.
func (Security) GetSessionSecret() string {
	return GetEnv(sessionSecretVar, "")
}

func (Security) GetMaxSessionAge() time.Duration {
	return getDuration(sessionAgeEnvVar, 8*time.Hour)
}

func (Security) GetAuthFlowTimeout() time.Duration {
	return getDuration(flowTimeoutEnvVar, 15*time.Minute)
}

func (Security) GetRequireState() bool {
	return getBool(requireStateEnvVar, true)
}
