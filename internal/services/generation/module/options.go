package module

import (
	"time"

	"shapeshift/internal/core/poll"
	"shapeshift/internal/platform/config"
)

// Options for the generation service
type Options struct {
	CreditCost   int
	CheckTimeout time.Duration
	StatusTTL    time.Duration
	Poll         poll.Policy
	MaxBackoff   time.Duration
}

// FromConfig reads GENERATION_* and the poll cadence from POLLER_*
func FromConfig(cfg config.Conf) Options {
	g := cfg.Prefix("GENERATION_")
	p := cfg.Prefix("POLLER_")
	return Options{
		CreditCost:   g.MayInt("CREDIT_COST", 5),
		CheckTimeout: g.MayDuration("CHECK_TIMEOUT", 30*time.Second),
		StatusTTL:    g.MayDuration("STATUS_TTL", 3*time.Second),
		Poll: poll.Policy{
			Interval: p.MayDuration("INTERVAL", 10*time.Second),
			MaxPolls: p.MayInt("MAX_POLLS", 30),
		},
		MaxBackoff: p.MayDuration("MAX_BACKOFF", 30*time.Second),
	}
}
