package meshy

import (
	"shapeshift/internal/core/version"
	"shapeshift/internal/platform/config"
)

// FromConfig reads MESHY_* settings; MESHY_API_KEY is required
func FromConfig(cfg config.Conf, service string) Options {
	c := cfg.Prefix("MESHY_")
	return Options{
		BaseURL:    c.MayString("BASE_URL", baseURLDefault),
		APIKey:     c.MustString("API_KEY"),
		UserAgent:  version.UserAgent(service),
		Timeout:    c.MayDuration("TIMEOUT", defaultTimeout),
		MaxRetries: c.MayInt("MAX_RETRIES", defaultMaxRetry),
		RetryBase:  c.MayDuration("RETRY_BASE", defaultRetryBase),
		RatePerSec: c.MayFloat64("RPS", defaultRPS),
		Burst:      c.MayInt("BURST", 0),
	}
}
