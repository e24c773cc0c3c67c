// Package service implements the credit ledger
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"shapeshift/internal/core/taskstate"
	"shapeshift/internal/modkit/repokit"
	perr "shapeshift/internal/platform/errors"
	"shapeshift/internal/platform/logger"
	"shapeshift/internal/platform/metrics"
	"shapeshift/internal/platform/store/rds"
	ptime "shapeshift/internal/platform/time"
	dom "shapeshift/internal/services/credits/domain"
	"shapeshift/internal/services/credits/repo"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Config for the ledger
type Config struct {
	// DefaultCredits is the grant a new account opens with
	DefaultCredits int
	// RefundWindow is how long the Redis refund guard for a task is held
	RefundWindow time.Duration
	Retry        repokit.RetryPolicy
}

// Service implements dom.LedgerPort
type Service struct {
	db      repokit.TxRunner
	binder  repokit.Binder[repo.Storage]
	guard   redis.Cmdable
	metrics *metrics.Metrics
	cfg     Config
	now     ptime.Clock
}

var _ dom.LedgerPort = (*Service)(nil)

// New constructs the ledger; guard and m may be nil
func New(db repokit.TxRunner, binder repokit.Binder[repo.Storage], guard redis.Cmdable, m *metrics.Metrics, cfg Config) *Service {
	if cfg.DefaultCredits < 0 {
		cfg.DefaultCredits = 0
	}
	if cfg.RefundWindow <= 0 {
		cfg.RefundWindow = 5 * time.Minute
	}
	if cfg.Retry.Attempts <= 0 {
		cfg.Retry = repokit.DefaultRetry
	}
	return &Service{db: db, binder: binder, guard: guard, metrics: m, cfg: cfg, now: time.Now}
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

func (s *Service) tx(ctx context.Context, fn func(st repo.Storage) error) error {
	return repokit.WithRetryTx(ctx, s.db, s.cfg.Retry, func(q repokit.Queryer) error {
		return fn(s.binder.Bind(q))
	})
}

func requireUser(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return perr.WithField(perr.InvalidArgf("user id is required"), "user_id")
	}
	return nil
}

// Balance implements dom.LedgerPort
func (s *Service) Balance(ctx context.Context, userID string) (dom.Account, error) {
	if err := requireUser(userID); err != nil {
		return dom.Account{}, err
	}
	st := s.binder.Bind(s.db)
	a, err := st.Account(ctx, userID)
	if perr.IsCode(err, perr.ErrorCodeNotFound) {
		if err := st.EnsureAccount(ctx, userID, s.cfg.DefaultCredits); err != nil {
			return dom.Account{}, dbErr(err, "open account")
		}
		a, err = st.Account(ctx, userID)
	}
	return a, dbErr(err, "load account")
}

// Reserve implements dom.LedgerPort
func (s *Service) Reserve(ctx context.Context, userID string, cost int, meta dom.UsageMeta) (dom.Reservation, error) {
	if err := requireUser(userID); err != nil {
		return dom.Reservation{}, err
	}
	if cost <= 0 {
		return dom.Reservation{}, perr.InvalidArgf("cost must be positive")
	}
	res := dom.Reservation{ID: uuid.NewString(), UserID: userID, Credits: cost, Kind: meta.Kind}
	err := s.tx(ctx, func(st repo.Storage) error {
		if err := st.EnsureAccount(ctx, userID, s.cfg.DefaultCredits); err != nil {
			return err
		}
		left, err := st.Debit(ctx, userID, cost)
		if perr.IsCode(err, perr.ErrorCodeNotFound) {
			return perr.InsufficientCreditsf("insufficient credits: %d required", cost)
		}
		if err != nil {
			return err
		}
		res.Remaining = left
		return st.InsertTx(ctx, dom.Transaction{
			ID:          res.ID,
			UserID:      userID,
			Type:        dom.TxUsage,
			Credits:     -cost,
			ModelType:   meta.Kind,
			Prompt:      meta.Prompt,
			ImageURL:    meta.ImageURL,
			Description: meta.Kind.Label() + " generation",
			Status:      dom.TxPending,
			CreatedAt:   s.now().UTC(),
		})
	})
	if err != nil {
		return dom.Reservation{}, dbErr(err, "reserve credits")
	}
	s.metrics.Debited(cost)
	return res, nil
}

// Confirm implements dom.LedgerPort
func (s *Service) Confirm(ctx context.Context, res dom.Reservation, d dom.UsageDetails) error {
	if d.TaskID == "" {
		return perr.WithField(perr.InvalidArgf("task id is required"), "task_id")
	}
	err := s.binder.Bind(s.db).SettleUsage(ctx, res.ID, d)
	if perr.IsCode(err, perr.ErrorCodeNotFound) {
		return perr.Conflictf("reservation %s is not pending", res.ID)
	}
	return dbErr(err, "confirm reservation")
}

// Release implements dom.LedgerPort
// Releasing a reservation that is no longer pending is a no-op
func (s *Service) Release(ctx context.Context, res dom.Reservation, reason string) error {
	err := s.tx(ctx, func(st repo.Storage) error {
		user, credits, err := st.FailUsage(ctx, res.ID, reason)
		if err != nil {
			return err
		}
		_, err = st.Credit(ctx, user, credits)
		return err
	})
	if perr.IsCode(err, perr.ErrorCodeNotFound) {
		logger.C(ctx).Debug().Str("reservation", res.ID).Msg("release skipped, reservation not pending")
		return nil
	}
	return dbErr(err, "release reservation")
}

// Refund implements dom.LedgerPort
// A task is refunded at most once: the Redis guard absorbs bursts within the window and
// the refund_task unique index settles anything that slips past it
func (s *Service) Refund(ctx context.Context, req dom.RefundRequest) (bool, error) {
	if err := requireUser(req.UserID); err != nil {
		return false, err
	}
	if req.TaskID == "" {
		return false, perr.WithField(perr.InvalidArgf("task id is required"), "task_id")
	}
	if req.Credits <= 0 {
		return false, perr.InvalidArgf("refund credits must be positive")
	}
	log := logger.C(ctx).With().Str("task_id", req.TaskID).Str("user_id", req.UserID).Logger()

	key := "refund:" + req.TaskID
	held := false
	if s.guard != nil {
		ok, err := rds.Claim(ctx, s.guard, key, s.cfg.RefundWindow)
		switch {
		case err != nil:
			log.Warn().Err(err).Msg("refund guard unavailable, relying on ledger")
		case !ok:
			s.metrics.RefundSkipped("redis")
			log.Info().Msg("refund already in progress or recorded")
			return false, nil
		default:
			held = true
		}
	}

	wrote := false
	err := s.tx(ctx, func(st repo.Storage) error {
		wrote = false
		if _, err := st.LockAccount(ctx, req.UserID); err != nil {
			return err
		}
		ok, err := st.InsertRefund(ctx, dom.Transaction{
			ID:          uuid.NewString(),
			UserID:      req.UserID,
			Type:        dom.TxRefund,
			Credits:     req.Credits,
			ModelType:   req.Kind,
			TaskID:      req.TaskID,
			Description: RefundDescription(req.Kind, req.Reason),
			Status:      dom.TxSuccess,
			CreatedAt:   s.now().UTC(),
		})
		if err != nil || !ok {
			return err
		}
		if _, err := st.Credit(ctx, req.UserID, req.Credits); err != nil {
			return err
		}
		wrote = true
		return nil
	})
	if err != nil {
		if held {
			// let a later attempt through
			if rerr := rds.Release(context.WithoutCancel(ctx), s.guard, key); rerr != nil {
				log.Warn().Err(rerr).Msg("refund guard release failed")
			}
		}
		return false, dbErr(err, "refund credits")
	}
	if !wrote {
		s.metrics.RefundSkipped("ledger")
		log.Info().Msg("task already refunded")
		return false, nil
	}
	s.metrics.Refunded(req.Credits)
	log.Info().Int("credits", req.Credits).Str("reason", req.Reason).Msg("credits refunded")
	return true, nil
}

// Refunded implements dom.LedgerPort
func (s *Service) Refunded(ctx context.Context, taskID string) (bool, error) {
	if taskID == "" {
		return false, perr.WithField(perr.InvalidArgf("task id is required"), "task_id")
	}
	ok, err := s.binder.Bind(s.db).HasRefund(ctx, taskID)
	return ok, dbErr(err, "look up refund")
}

// RefundDescription is the ledger text for a refund
func RefundDescription(k taskstate.Kind, reason string) string {
	return fmt.Sprintf("Refund for failed %s generation: %s", k.Label(), reason)
}

// TopUp implements dom.LedgerPort
func (s *Service) TopUp(ctx context.Context, req dom.TopUpRequest) (dom.Account, error) {
	if err := requireUser(req.UserID); err != nil {
		return dom.Account{}, err
	}
	if req.Credits <= 0 {
		return dom.Account{}, perr.WithField(perr.InvalidArgf("credits must be positive"), "credits")
	}
	if strings.TrimSpace(req.PaymentRef) == "" {
		return dom.Account{}, perr.WithField(perr.InvalidArgf("payment reference is required"), "payment_ref")
	}
	if req.Type == "" {
		req.Type = dom.TxTopUp
	}
	desc := fmt.Sprintf("Purchased %d credits", req.Credits)
	switch req.Type {
	case dom.TxTopUp:
	case dom.TxSubscription:
		if !req.Plan.Paid() {
			return dom.Account{}, perr.WithField(perr.InvalidArgf("unknown plan %q", req.Plan), "plan")
		}
		desc = fmt.Sprintf("%s subscription: %d credits", req.Plan, req.Credits)
	default:
		return dom.Account{}, perr.WithField(perr.InvalidArgf("type must be topup or subscription"), "type")
	}

	var out dom.Account
	err := s.tx(ctx, func(st repo.Storage) error {
		if err := st.EnsureAccount(ctx, req.UserID, s.cfg.DefaultCredits); err != nil {
			return err
		}
		err := st.InsertTx(ctx, dom.Transaction{
			ID:          uuid.NewString(),
			UserID:      req.UserID,
			Type:        req.Type,
			Amount:      req.Amount,
			Credits:     req.Credits,
			PaymentRef:  req.PaymentRef,
			Description: desc,
			Status:      dom.TxSuccess,
			CreatedAt:   s.now().UTC(),
		})
		if perr.IsDuplicateKey(err) {
			return perr.Conflictf("payment %s already recorded", req.PaymentRef)
		}
		if err != nil {
			return err
		}
		if _, err := st.Credit(ctx, req.UserID, req.Credits); err != nil {
			return err
		}
		if req.Type == dom.TxSubscription {
			if err := st.SetSubscription(ctx, req.UserID, req.Plan, dom.SubActive); err != nil {
				return err
			}
		}
		a, err := st.Account(ctx, req.UserID)
		out = a
		return err
	})
	return out, dbErr(err, "record top-up")
}

// Transactions implements dom.TransactionsPort
func (s *Service) Transactions(ctx context.Context, userID string, page, size int) ([]dom.Transaction, int, error) {
	if err := requireUser(userID); err != nil {
		return nil, 0, err
	}
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = 10
	}
	size = min(size, 100)
	st := s.binder.Bind(s.db)
	total, err := st.CountTx(ctx, userID)
	if err != nil {
		return nil, 0, dbErr(err, "count transactions")
	}
	if total == 0 {
		return nil, 0, nil
	}
	items, err := st.ListTx(ctx, userID, size, (page-1)*size)
	return items, total, dbErr(err, "list transactions")
}
