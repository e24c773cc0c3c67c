// Package modkit provides module wiring and core deps
package modkit

import (
	"shapeshift/internal/modkit/repokit"
	"shapeshift/internal/platform/config"
	"shapeshift/internal/platform/logger"
	"shapeshift/internal/platform/metrics"
	"shapeshift/internal/platform/net/middleware"
	"shapeshift/internal/platform/store"

	"github.com/redis/go-redis/v9"
)

// Deps holds core dependencies passed to modules
// CH, RDS, Metrics and Auth are optional and may be nil
type Deps struct {
	Log     logger.Logger
	Cfg     config.Conf
	PG      repokit.TxRunner
	CH      store.Clickhouse
	RDS     redis.UniversalClient
	Metrics *metrics.Metrics
	Auth    middleware.AuthPort
}

// FromStore fills the backend fields from an opened store
func FromStore(s *store.Store, d Deps) Deps {
	if s == nil {
		return d
	}
	d.PG, d.CH, d.RDS = s.PG, s.CH, s.RDS
	return d
}

// Pingers lists the readiness checks for every backend present
func (d Deps) Pingers() map[string]store.Pinger {
	return (&store.Store{PG: d.PG, CH: d.CH, RDS: d.RDS}).Pingers()
}
