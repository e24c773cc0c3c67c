// Package service implements the server-side status poller
package service

import (
	"context"
	"sync"
	"time"

	"shapeshift/internal/platform/logger"
	"shapeshift/internal/platform/metrics"
	gendom "shapeshift/internal/services/generation/domain"
	dom "shapeshift/internal/services/poller/domain"

	"github.com/google/uuid"
)

// Config controls the worker
type Config struct {
	WorkerID    string
	Concurrency int
	Batch       int
	Every       time.Duration
	LeaseFor    time.Duration
}

// Svc leases due tasks and reconciles them against the provider
type Svc struct {
	rec     gendom.ReconcilePort
	metrics *metrics.Metrics
	cfg     Config
}

var _ dom.WorkerPort = (*Svc)(nil)

// New constructs the worker
func New(rec gendom.ReconcilePort, m *metrics.Metrics, cfg Config) *Svc {
	if rec == nil {
		panic("poller.Service requires a reconcile port")
	}
	if cfg.WorkerID == "" {
		cfg.WorkerID = "poller-" + uuid.NewString()[:8]
	}
	cfg.Concurrency = max(1, cfg.Concurrency)
	if cfg.Batch <= 0 {
		cfg.Batch = 64
	}
	if cfg.Every <= 0 {
		cfg.Every = 500 * time.Millisecond
	}
	if cfg.LeaseFor <= 0 {
		cfg.LeaseFor = 60 * time.Second
	}
	return &Svc{rec: rec, metrics: m, cfg: cfg}
}

// Run polls until ctx ends and waits for in-flight reconciles before returning
func (s *Svc) Run(ctx context.Context) error {
	log := logger.Named("poller").With().Str("worker", s.cfg.WorkerID).Logger()
	log.Info().Int("concurrency", s.cfg.Concurrency).Dur("every", s.cfg.Every).Msg("poller started")

	sem := make(chan struct{}, s.cfg.Concurrency)
	var wg sync.WaitGroup
	defer wg.Wait()

	ticker := time.NewTicker(s.cfg.Every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("poller stopping")
			return ctx.Err()
		case <-ticker.C:
		}

		// a lease is held until Reconcile reschedules the row, so only take what we can start soon
		free := s.cfg.Concurrency - len(sem)
		if free <= 0 {
			continue
		}
		tasks, err := s.rec.Lease(ctx, s.cfg.WorkerID, min(free, s.cfg.Batch), s.cfg.LeaseFor)
		if err != nil {
			if ctx.Err() == nil {
				log.Error().Err(err).Msg("lease tasks failed")
			}
			continue
		}
		s.metrics.Leased(len(tasks))

		for i := range tasks {
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return ctx.Err()
			}
			t := tasks[i]
			wg.Add(1)
			s.metrics.Inflight(1)
			go func() {
				defer func() {
					s.metrics.Inflight(-1)
					<-sem
					wg.Done()
				}()
				out, err := s.rec.Reconcile(ctx, t)
				s.metrics.Reconciled(string(out))
				ev := log.Debug()
				if err != nil {
					ev = log.Warn().Err(err)
				}
				ev.Str("task_id", t.ID).Str("outcome", string(out)).Int("attempts", t.PollAttempts+1).Msg("reconciled")
			}()
		}
	}
}
