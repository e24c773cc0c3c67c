package service

import (
	"context"
	"errors"
	"time"

	"shapeshift/internal/adapters/provider/meshy"
	"shapeshift/internal/core/taskstate"
	perr "shapeshift/internal/platform/errors"
	"shapeshift/internal/platform/logger"
	ptime "shapeshift/internal/platform/time"
	andom "shapeshift/internal/services/analytics/domain"
	credom "shapeshift/internal/services/credits/domain"
	dom "shapeshift/internal/services/generation/domain"
)

// Check implements dom.GenerationPort
func (s *Service) Check(ctx context.Context, userID, taskID string) (dom.View, error) {
	t, err := s.current(ctx, userID, taskID)
	if err != nil {
		return dom.View{}, err
	}
	return viewOf(t), nil
}

// Status implements dom.GenerationPort
func (s *Service) Status(ctx context.Context, userID, taskID string) (dom.View, error) {
	t, err := s.current(ctx, userID, taskID)
	if err != nil {
		return dom.View{}, err
	}
	now := s.now()
	v := viewOf(t)
	v.ThumbnailURL = taskstate.CacheBust(v.ThumbnailURL, now)
	if v.ModelURLs != nil {
		m := taskstate.BustModelURLs(*v.ModelURLs, now)
		v.ModelURLs = &m
	}
	v.Textures = taskstate.BustTextures(v.Textures, now)
	v.Timestamp = ptime.Millis(now)
	return v, nil
}

// current loads the caller's task and, while it is in flight, folds in the provider's answer
func (s *Service) current(ctx context.Context, userID, taskID string) (dom.Task, error) {
	if taskID == "" {
		return dom.Task{}, perr.WithField(perr.Validationf("task id is required"), "taskId")
	}
	t, err := s.st.ForUser(ctx, userID, taskID)
	if perr.IsCode(err, perr.ErrorCodeNotFound) {
		return dom.Task{}, perr.NotFoundf("task %s not found", taskID)
	}
	if err != nil {
		return dom.Task{}, dbErr(err, "load task")
	}
	if t.ConfirmDue || t.RefundDue {
		t = s.settle(ctx, t)
	}
	if taskstate.Terminal(t.Status) {
		return t, nil
	}

	pctx, cancel := context.WithTimeout(ctx, s.cfg.CheckTimeout)
	defer cancel()
	p, err := s.probe(pctx, t)
	switch {
	case err == nil, meshy.IsNotFound(err):
	case errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil:
		return dom.Task{}, perr.Wrap(err, perr.ErrorCodeUnavailable, "provider status check timed out")
	default:
		return dom.Task{}, err
	}
	return s.apply(ctx, t, p, err)
}

// probe asks the provider once per task at a time, sharing the answer through the status cache
// The shared call outlives any one caller; each caller still stops waiting when its own ctx ends
func (s *Service) probe(ctx context.Context, t dom.Task) (meshy.Task, error) {
	if p, ok, err := s.status.Get(ctx, t.ID); err == nil && ok {
		return p, nil
	}
	ch := s.sf.DoChan(t.ID, func() (any, error) {
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.CheckTimeout)
		defer cancel()
		p, err := s.provider.Task(sctx, t.Kind, t.ID)
		if err != nil {
			return meshy.Task{}, err
		}
		if err := s.status.Set(sctx, t.ID, p); err != nil {
			logger.C(ctx).Debug().Err(err).Str("task_id", t.ID).Msg("status cache write failed")
		}
		return p, nil
	})
	select {
	case r := <-ch:
		return r.Val.(meshy.Task), r.Err
	case <-ctx.Done():
		return meshy.Task{}, ctx.Err()
	}
}

// apply moves t according to a provider answer; a provider 404 fails the task
func (s *Service) apply(ctx context.Context, t dom.Task, p meshy.Task, probeErr error) (dom.Task, error) {
	if meshy.IsNotFound(probeErr) {
		return s.fail(ctx, t, dom.MsgNotFound, andom.EventFailed)
	}
	switch p.State() {
	case taskstate.Succeeded:
		return s.succeed(ctx, t, p)
	case taskstate.Failed:
		return s.fail(ctx, t, p.FailureMessage(), andom.EventFailed)
	}
	if err := s.st.Progress(ctx, t.ID, p.Progress, p.ThumbnailURL); err != nil {
		return t, dbErr(err, "record progress")
	}
	t.Progress = max(t.Progress, p.Progress)
	if p.ThumbnailURL != "" {
		t.ThumbnailURL = p.ThumbnailURL
	}
	return t, nil
}

func (s *Service) succeed(ctx context.Context, t dom.Task, p meshy.Task) (dom.Task, error) {
	r := dom.Result{ThumbnailURL: p.ThumbnailURL, ModelURLs: p.ModelURLs, TextureURLs: p.TextureURLs}
	ctx = context.WithoutCancel(ctx)
	moved, err := s.st.Complete(ctx, t.ID, r)
	if err != nil {
		return t, dbErr(err, "complete task")
	}
	if !moved {
		return s.reload(ctx, t)
	}
	t.Status, t.Progress = taskstate.Succeeded, 100
	t.ModelURLs, t.TextureURLs = r.ModelURLs, r.TextureURLs
	if r.ThumbnailURL != "" {
		t.ThumbnailURL = r.ThumbnailURL
	}
	s.metrics.Outcome(string(t.Kind), string(taskstate.Succeeded))
	s.record(ctx, t, andom.EventSucceeded, 0, "")
	logger.C(ctx).Info().Str("task_id", t.ID).Msg("task succeeded")
	return t, nil
}

// fail marks t FAILED and refunds it
// Only the caller that moves the row owes the refund; a refund that does not land stays due on the row
func (s *Service) fail(ctx context.Context, t dom.Task, reason string, ev andom.EventType) (dom.Task, error) {
	ctx = context.WithoutCancel(ctx)
	moved, err := s.st.Fail(ctx, t.ID, reason)
	if err != nil {
		return t, dbErr(err, "fail task")
	}
	if !moved {
		return s.reload(ctx, t)
	}
	t.Status, t.TaskError, t.RefundDue = taskstate.Failed, reason, t.CreditsCharged > 0
	s.metrics.Outcome(string(t.Kind), string(taskstate.Failed))
	s.record(ctx, t, ev, 0, reason)

	t = s.settle(ctx, t)
	logger.C(ctx).Info().Str("task_id", t.ID).Str("reason", reason).Bool("refund_due", t.RefundDue).Msg("task failed")
	return t, nil
}

// reload returns the stored row after another caller moved it first
func (s *Service) reload(ctx context.Context, t dom.Task) (dom.Task, error) {
	cur, err := s.st.ForUser(ctx, t.UserID, t.ID)
	if err != nil {
		return t, dbErr(err, "reload task")
	}
	if cur.ConfirmDue || cur.RefundDue {
		cur = s.settle(ctx, cur)
	}
	return cur, nil
}

// settle retries the ledger writes t still owes and clears each one that lands
func (s *Service) settle(ctx context.Context, t dom.Task) dom.Task {
	ctx = context.WithoutCancel(ctx)
	if t.ConfirmDue && s.confirm(ctx, t) {
		t.ConfirmDue = false
	}
	if t.RefundDue && t.Status == taskstate.Failed && s.refund(ctx, t) {
		t.RefundDue = false
	}
	return t
}

// confirm settles the usage row; a reservation that is no longer pending counts as settled
func (s *Service) confirm(ctx context.Context, t dom.Task) bool {
	log := logger.C(ctx).With().Str("task_id", t.ID).Str("reservation", t.ReservationID).Logger()
	res := credom.Reservation{ID: t.ReservationID, UserID: t.UserID, Credits: t.CreditsCharged, Kind: t.Kind}
	err := s.ledger.Confirm(ctx, res, credom.UsageDetails{TaskID: t.ID, Prompt: t.Prompt})
	if err != nil && !perr.IsCode(err, perr.ErrorCodeConflict) {
		log.Error().Err(err).Msg("confirm reservation failed")
		return false
	}
	if err := s.st.MarkConfirmed(ctx, t.ID); err != nil {
		log.Error().Err(err).Msg("mark confirmed failed")
		return false
	}
	return true
}

// refund credits a failed task back; the ledger refunds a task at most once
func (s *Service) refund(ctx context.Context, t dom.Task) bool {
	log := logger.C(ctx).With().Str("task_id", t.ID).Logger()
	refunded, err := s.ledger.Refund(ctx, credom.RefundRequest{
		UserID:  t.UserID,
		TaskID:  t.ID,
		Credits: t.CreditsCharged,
		Kind:    t.Kind,
		Reason:  t.TaskError,
	})
	if err != nil {
		log.Error().Err(err).Msg("refund failed")
		return false
	}
	if refunded {
		s.record(ctx, t, andom.EventRefunded, t.CreditsCharged, t.TaskError)
	} else {
		// the guard also skips a refund another caller is still writing
		ok, err := s.ledger.Refunded(ctx, t.ID)
		if err != nil || !ok {
			log.Debug().Err(err).Msg("refund not recorded yet")
			return false
		}
	}
	if err := s.st.MarkRefunded(ctx, t.ID); err != nil {
		log.Error().Err(err).Msg("mark refunded failed")
		return false
	}
	return true
}

func viewOf(t dom.Task) dom.View {
	v := dom.View{
		TaskID:       t.ID,
		Kind:         t.Kind,
		Status:       t.Status,
		Progress:     t.Progress,
		ThumbnailURL: t.ThumbnailURL,
	}
	switch t.Status {
	case taskstate.Succeeded:
		v.Progress = 100
		m := t.ModelURLs
		v.ModelURLs = &m
		v.Textures = t.TextureURLs
	case taskstate.Failed:
		v.Error = t.TaskError
		if v.Error == "" {
			v.Error = dom.MsgFailed
		}
		v.Gone = t.TaskError == dom.MsgNotFound
	default:
		v.Message = dom.MsgInProgress
	}
	return v
}

// Lease implements dom.ReconcilePort
func (s *Service) Lease(ctx context.Context, workerID string, limit int, leaseFor time.Duration) ([]dom.Task, error) {
	xs, err := s.st.Lease(ctx, workerID, limit, leaseFor)
	return xs, dbErr(err, "lease tasks")
}

// Reconcile implements dom.ReconcilePort
// Each call counts as one poll; transient provider errors back off instead of waiting the interval
// Finished tasks are only leased while they owe a ledger write
func (s *Service) Reconcile(ctx context.Context, t dom.Task) (dom.Outcome, error) {
	if t.ConfirmDue || t.RefundDue {
		t = s.settle(ctx, t)
		if taskstate.Terminal(t.Status) {
			if t.ConfirmDue || t.RefundDue {
				return dom.OutcomeRetry, nil
			}
			return dom.OutcomeSettled, nil
		}
	}
	if taskstate.Terminal(t.Status) {
		return dom.OutcomeSkipped, nil
	}
	pctx, cancel := context.WithTimeout(ctx, s.cfg.CheckTimeout)
	p, err := s.provider.Task(pctx, t.Kind, t.ID)
	cancel()

	attempts := t.PollAttempts + 1
	switch {
	case err == nil, meshy.IsNotFound(err):
		t, err = s.apply(ctx, t, p, err)
		if err != nil {
			return dom.OutcomeRetry, err
		}
		if taskstate.Terminal(t.Status) {
			return outcomeOf(t), nil
		}
		if s.cfg.Poll.Exhausted(attempts) {
			return s.timeout(ctx, t)
		}
		return dom.OutcomePending, dbErr(s.st.Reschedule(ctx, t.ID, attempts, s.cfg.Poll.Next(s.now())), "reschedule task")

	case errors.Is(err, context.Canceled) && ctx.Err() != nil:
		return dom.OutcomeRetry, ctx.Err()
	}

	if s.cfg.Poll.Exhausted(attempts) {
		return s.timeout(ctx, t)
	}
	next := s.cfg.Poll.Next(s.now())
	if meshy.IsTransient(err) || errors.Is(err, context.DeadlineExceeded) {
		next = s.now().Add(s.backoff(t.PollAttempts))
	}
	if rerr := s.st.Reschedule(ctx, t.ID, attempts, next); rerr != nil {
		return dom.OutcomeRetry, dbErr(rerr, "reschedule task")
	}
	return dom.OutcomeRetry, err
}

// timeout fails t; if another caller finished it first the stored outcome wins
func (s *Service) timeout(ctx context.Context, t dom.Task) (dom.Outcome, error) {
	t, err := s.fail(ctx, t, dom.MsgTimedOut, andom.EventTimedOut)
	if err != nil {
		return dom.OutcomeRetry, err
	}
	return outcomeOf(t), nil
}

func outcomeOf(t dom.Task) dom.Outcome {
	switch {
	case t.Status == taskstate.Succeeded:
		return dom.OutcomeSucceeded
	case t.Status != taskstate.Failed:
		return dom.OutcomePending
	case t.TaskError == dom.MsgTimedOut:
		return dom.OutcomeTimedOut
	}
	return dom.OutcomeFailed
}

// backoff doubles the poll interval per attempt up to MaxBackoff
func (s *Service) backoff(attempt int) time.Duration {
	d := s.cfg.Poll.Interval << uint(min(attempt, 16))
	if d <= 0 || d > s.cfg.MaxBackoff {
		return s.cfg.MaxBackoff
	}
	return d
}
