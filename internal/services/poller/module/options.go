package module

import (
	"time"

	"shapeshift/internal/platform/config"
)

// Options controls the poller worker
type Options struct {
	WorkerID    string
	Concurrency int
	Batch       int
	Every       time.Duration
	LeaseFor    time.Duration
}

// FromConfig reads with the POLLER_ prefix
func FromConfig(cfg config.Conf) Options {
	c := cfg.Prefix("POLLER_")
	return Options{
		WorkerID:    c.MayString("WORKER_ID", ""),
		Concurrency: c.MayInt("CONCURRENCY", 8),
		Batch:       c.MayInt("BATCH", 64),
		Every:       c.MayDuration("EVERY", 500*time.Millisecond),
		LeaseFor:    c.MayDuration("LEASE_TTL", 60*time.Second),
	}
}
