package module

import (
	"time"

	"shapeshift/internal/platform/config"
)

// Options controls the event buffer
type Options struct {
	Buffer     int
	BatchSize  int
	FlushEvery time.Duration
}

// FromConfig reads ANALYTICS_*
func FromConfig(cfg config.Conf) Options {
	c := cfg.Prefix("ANALYTICS_")
	return Options{
		Buffer:     c.MayInt("BUFFER", 1024),
		BatchSize:  c.MayInt("BATCH", 200),
		FlushEvery: c.MayDuration("FLUSH_EVERY", 2*time.Second),
	}
}
