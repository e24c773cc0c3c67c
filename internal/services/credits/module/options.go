package module

import (
	"time"

	"shapeshift/internal/platform/config"
)

// Options holds configuration settings for the ledger module
type Options struct {
	DefaultCredits int
	RefundWindow   time.Duration
}

// FromConfig reads CREDITS_* settings
func FromConfig(cfg config.Conf) Options {
	c := cfg.Prefix("CREDITS_")
	return Options{
		DefaultCredits: c.MayInt("DEFAULT", 25),
		RefundWindow:   c.MayDuration("REFUND_WINDOW", 5*time.Minute),
	}
}
