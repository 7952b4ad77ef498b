package config

import "time"

const (
	graphBaseURLVar = "GRAPH_BASE_URL"
	graphTimeoutVar = "GRAPH_TIMEOUT"
	maxUploadEnvVar = "MAX_UPLOAD_BYTES"
	rateLimitEnvVar = "GRAPH_RATE_LIMIT"
	rateBurstEnvVar = "GRAPH_RATE_BURST"
)

type GraphConfig interface {
	GetGraphBaseURL() string
	GetGraphTimeout() time.Duration
	GetMaxUploadBytes() int64
	GetGraphRateLimit() float64
	GetGraphRateBurst() int
}

type Graph struct{}

var _ GraphConfig = Graph{}

func (Graph) GetGraphBaseURL() string {
	return GetEnv(graphBaseURLVar, "https://graph.microsoft.com/v1.0")
}

func (Graph) GetGraphTimeout() time.Duration {
	return getDuration(graphTimeoutVar, 60*time.Second)
}

// GetMaxUploadBytes defaults to the 4 MiB ceiling for a single-request upload.
func (Graph) GetMaxUploadBytes() int64 {
	return getInt64(maxUploadEnvVar, 4*1024*1024)
}

func (Graph) GetGraphRateLimit() float64 {
	return getFloat64(rateLimitEnvVar, 10)
}

func (Graph) GetGraphRateBurst() int {
	return int(getInt64(rateBurstEnvVar, 15))
}
