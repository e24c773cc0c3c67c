// Package service submits generation tasks, tracks them against the provider and settles credits
package service

import (
	"context"
	"errors"
	"time"

	"shapeshift/internal/adapters/provider/meshy"
	"shapeshift/internal/core/poll"
	"shapeshift/internal/core/taskstate"
	"shapeshift/internal/modkit/repokit"
	perr "shapeshift/internal/platform/errors"
	"shapeshift/internal/platform/metrics"
	"shapeshift/internal/platform/store/rds"
	ptime "shapeshift/internal/platform/time"
	andom "shapeshift/internal/services/analytics/domain"
	credom "shapeshift/internal/services/credits/domain"
	dom "shapeshift/internal/services/generation/domain"
	"shapeshift/internal/services/generation/repo"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// Provider is the slice of the provider client the service uses
type Provider interface {
	CreateImageTo3D(ctx context.Context, in meshy.ImageTo3DRequest) (string, error)
	CreateTextTo3D(ctx context.Context, in meshy.TextTo3DRequest) (string, error)
	Task(ctx context.Context, kind taskstate.Kind, id string) (meshy.Task, error)
}

// Config for the generation service
type Config struct {
	// CreditCost is charged per submission
	CreditCost int
	// CheckTimeout bounds one provider status probe
	CheckTimeout time.Duration
	// StatusTTL is how long a provider answer is shared between callers
	StatusTTL time.Duration
	// Poll bounds how long the poller keeps asking
	Poll poll.Policy
	// MaxBackoff caps the delay after transient provider errors
	MaxBackoff time.Duration
}

// Deps are the collaborators of the service
type Deps struct {
	DB       repokit.TxRunner
	Binder   repokit.Binder[repo.Storage]
	Provider Provider
	Ledger   credom.LedgerPort
	Events   andom.RecorderPort
	Cache    redis.Cmdable
	Metrics  *metrics.Metrics
}

// Service implements dom.GenerationPort, dom.ReconcilePort and dom.ModelsPort
type Service struct {
	st       repo.Storage
	provider Provider
	ledger   credom.LedgerPort
	events   andom.RecorderPort
	metrics  *metrics.Metrics
	status   *rds.Cache[meshy.Task]
	sf       singleflight.Group
	cfg      Config
	now      ptime.Clock
}

var (
	_ dom.GenerationPort = (*Service)(nil)
	_ dom.ReconcilePort  = (*Service)(nil)
	_ dom.ModelsPort     = (*Service)(nil)
)

// New constructs the service; Events, Cache and Metrics may be nil
func New(d Deps, cfg Config) *Service {
	if cfg.CreditCost <= 0 {
		cfg.CreditCost = 5
	}
	if cfg.CheckTimeout <= 0 {
		cfg.CheckTimeout = 30 * time.Second
	}
	if cfg.StatusTTL < 0 {
		cfg.StatusTTL = 0
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 30 * time.Second
	}
	cfg.Poll = cfg.Poll.Normalize()
	if d.Events == nil {
		d.Events = andom.Discard{}
	}
	return &Service{
		st:       d.Binder.Bind(d.DB),
		provider: d.Provider,
		ledger:   d.Ledger,
		events:   d.Events,
		metrics:  d.Metrics,
		status:   rds.NewCache[meshy.Task](d.Cache, "gen:status:", cfg.StatusTTL),
		cfg:      cfg,
		now:      time.Now,
	}
}

// dbErr keeps coded errors and maps raw driver errors by SQLSTATE
func dbErr(err error, msg string) error {
	if err == nil {
		return nil
	}
	if _, ok := perr.As(err); ok {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return perr.FromPostgres(err, msg)
}

func (s *Service) record(ctx context.Context, t dom.Task, typ andom.EventType, credits int, reason string) {
	s.events.Record(ctx, andom.Event{
		Type:    typ,
		Kind:    t.Kind,
		UserID:  t.UserID,
		TaskID:  t.ID,
		Credits: credits,
		Reason:  reason,
		At:      s.now(),
	})
}

// Models implements dom.ModelsPort; a limit of zero only counts
func (s *Service) Models(ctx context.Context, userID string, limit, offset int) ([]dom.Task, int, error) {
	total, err := s.st.CountByUser(ctx, userID)
	if err != nil {
		return nil, 0, dbErr(err, "count tasks")
	}
	if total == 0 || limit <= 0 || offset >= total {
		return nil, total, nil
	}
	xs, err := s.st.ListByUser(ctx, userID, limit, offset)
	return xs, total, dbErr(err, "list tasks")
}
