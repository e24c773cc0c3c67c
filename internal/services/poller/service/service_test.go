package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"shapeshift/internal/platform/testkit"
	gendom "shapeshift/internal/services/generation/domain"
)

// queue hands out each task once and records reconcile calls
type queue struct {
	mu       sync.Mutex
	pending  []gendom.Task
	done     []string
	limits   []int
	leaseErr error
	hold     time.Duration

	inflight atomic.Int32
	peak     atomic.Int32
}

func (q *queue) Lease(_ context.Context, worker string, limit int, leaseFor time.Duration) ([]gendom.Task, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if worker == "" || leaseFor != time.Minute {
		return nil, errors.New("bad lease args")
	}
	q.limits = append(q.limits, limit)
	if q.leaseErr != nil {
		return nil, q.leaseErr
	}
	n := min(limit, len(q.pending))
	out := q.pending[:n]
	q.pending = q.pending[n:]
	return out, nil
}

func (q *queue) Reconcile(_ context.Context, t gendom.Task) (gendom.Outcome, error) {
	n := q.inflight.Add(1)
	for {
		p := q.peak.Load()
		if n <= p || q.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(q.hold)
	q.inflight.Add(-1)

	q.mu.Lock()
	defer q.mu.Unlock()
	q.done = append(q.done, t.ID)
	return gendom.OutcomePending, nil
}

func (q *queue) doneCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.done)
}

func tasks(n int) []gendom.Task {
	out := make([]gendom.Task, n)
	for i := range out {
		out[i] = gendom.Task{ID: "t" + string(rune('a'+i))}
	}
	return out
}

func run(t *testing.T, s *Svc) (cancel func() error) {
	t.Helper()
	ctx, stop := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- s.Run(ctx) }()
	return func() error {
		stop()
		select {
		case err := <-errc:
			return err
		case <-time.After(2 * time.Second):
			t.Fatalf("Run did not return")
			return nil
		}
	}
}

func TestRunReconcilesLeasedTasks(t *testing.T) {
	t.Parallel()
	q := &queue{pending: tasks(10), hold: 5 * time.Millisecond}
	s := New(q, nil, Config{Concurrency: 3, Batch: 64, Every: 5 * time.Millisecond, LeaseFor: time.Minute})

	stop := run(t, s)
	testkit.Eventually(t, 2*time.Second, func() bool { return q.doneCount() == 10 })
	if err := stop(); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run = %v", err)
	}
	if p := q.peak.Load(); p > 3 {
		t.Fatalf("peak concurrency %d over 3", p)
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, l := range q.limits {
		if l < 1 || l > 3 {
			t.Fatalf("leased %d with 3 slots", l)
		}
	}
}

func TestRunSurvivesLeaseErrors(t *testing.T) {
	t.Parallel()
	q := &queue{leaseErr: errors.New("db down")}
	s := New(q, nil, Config{Every: 5 * time.Millisecond, LeaseFor: time.Minute})
	stop := run(t, s)
	testkit.Eventually(t, time.Second, func() bool {
		q.mu.Lock()
		defer q.mu.Unlock()
		return len(q.limits) >= 3
	})
	if err := stop(); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run = %v", err)
	}
}

func TestRunWaitsForInflight(t *testing.T) {
	t.Parallel()
	q := &queue{pending: tasks(1), hold: 100 * time.Millisecond}
	s := New(q, nil, Config{Every: 5 * time.Millisecond, LeaseFor: time.Minute})
	stop := run(t, s)
	testkit.Eventually(t, time.Second, func() bool { return q.inflight.Load() == 1 })
	_ = stop()
	if q.doneCount() != 1 {
		t.Fatalf("Run returned before the reconcile finished")
	}
}

func TestNewDefaults(t *testing.T) {
	t.Parallel()
	s := New(&queue{}, nil, Config{})
	if s.cfg.Concurrency != 1 || s.cfg.Batch != 64 || s.cfg.Every != 500*time.Millisecond || s.cfg.LeaseFor != time.Minute {
		t.Fatalf("cfg = %+v", s.cfg)
	}
	if len(s.cfg.WorkerID) != len("poller-")+8 {
		t.Fatalf("worker id = %q", s.cfg.WorkerID)
	}
	testkit.MustPanic(t, func() { New(nil, nil, Config{}) })
}
