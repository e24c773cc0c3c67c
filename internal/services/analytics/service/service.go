// Package service buffers generation events and flushes them to the sink in batches
package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"shapeshift/internal/platform/logger"
	str "shapeshift/internal/platform/strings"
	ptime "shapeshift/internal/platform/time"
	"shapeshift/internal/services/analytics/domain"
	"shapeshift/internal/services/analytics/repo"
)

// Config bounds the buffer
type Config struct {
	Buffer     int
	BatchSize  int
	FlushEvery time.Duration
}

// Service implements domain.RecorderPort and domain.ActivityPort
type Service struct {
	st  repo.Storage
	cfg Config
	in  chan domain.Event
	now ptime.Clock

	dropMu  sync.Mutex
	dropped int
}

var (
	_ domain.RecorderPort = (*Service)(nil)
	_ domain.ActivityPort = (*Service)(nil)
)

// New constructs the recorder; Run must be started for events to reach the sink
func New(st repo.Storage, cfg Config) *Service {
	if cfg.Buffer <= 0 {
		cfg.Buffer = 1024
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 200
	}
	if cfg.FlushEvery <= 0 {
		cfg.FlushEvery = 2 * time.Second
	}
	return &Service{st: st, cfg: cfg, in: make(chan domain.Event, cfg.Buffer), now: time.Now}
}

// Record enqueues e without blocking; a full buffer drops the event
func (s *Service) Record(_ context.Context, e domain.Event) {
	if s == nil {
		return
	}
	if e.At.IsZero() {
		e.At = s.now()
	}
	e.Reason = str.Truncate(strings.TrimSpace(e.Reason), 512)
	select {
	case s.in <- e:
	default:
		s.dropMu.Lock()
		s.dropped++
		n := s.dropped
		s.dropMu.Unlock()
		if n == 1 || n%100 == 0 {
			logger.Named("analytics").Warn().Int("dropped", n).Msg("event buffer full")
		}
	}
}

// Activity implements domain.ActivityPort
func (s *Service) Activity(ctx context.Context, userID string, since time.Time) ([]domain.Activity, error) {
	if s == nil {
		return nil, nil
	}
	return s.st.Activity(ctx, userID, since)
}

// Run flushes batches until ctx ends, then drains what is buffered
func (s *Service) Run(ctx context.Context) error {
	log := logger.Named("analytics")
	if err := s.st.EnsureSchema(ctx); err != nil {
		log.Error().Err(err).Msg("ensure generation_events failed")
	}

	t := time.NewTicker(s.cfg.FlushEvery)
	defer t.Stop()
	batch := make([]domain.Event, 0, s.cfg.BatchSize)

	flush := func(ctx context.Context) {
		if len(batch) == 0 {
			return
		}
		if err := s.st.Insert(ctx, batch); err != nil {
			log.Error().Err(err).Int("events", len(batch)).Msg("flush failed")
		}
		batch = batch[:0]
	}

	for {
		select {
		case <-ctx.Done():
			dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			for {
				select {
				case e := <-s.in:
					batch = append(batch, e)
					if len(batch) >= s.cfg.BatchSize {
						flush(dctx)
					}
				default:
					flush(dctx)
					return ctx.Err()
				}
			}
		case e := <-s.in:
			batch = append(batch, e)
			if len(batch) >= s.cfg.BatchSize {
				flush(ctx)
			}
		case <-t.C:
			flush(ctx)
		}
	}
}
