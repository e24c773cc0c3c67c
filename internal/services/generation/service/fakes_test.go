package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"shapeshift/internal/adapters/provider/meshy"
	"shapeshift/internal/core/taskstate"
	"shapeshift/internal/modkit/repokit"
	perr "shapeshift/internal/platform/errors"
	andom "shapeshift/internal/services/analytics/domain"
	credom "shapeshift/internal/services/credits/domain"
	dom "shapeshift/internal/services/generation/domain"
	"shapeshift/internal/services/generation/repo"
)

// memTasks is an in-memory repo.Storage
type memTasks struct {
	mu    sync.Mutex
	tasks map[string]dom.Task
}

func newMemTasks() *memTasks { return &memTasks{tasks: map[string]dom.Task{}} }

func (m *memTasks) Bind(repokit.Queryer) repo.Storage { return m }

func (m *memTasks) get(id string) dom.Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tasks[id]
}

func (m *memTasks) put(t dom.Task) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks[t.ID] = t
}

func (m *memTasks) Insert(_ context.Context, t dom.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[t.ID]; ok {
		return perr.DuplicateKeyf("task %s exists", t.ID)
	}
	t.CreatedAt = time.Now()
	m.tasks[t.ID] = t
	return nil
}

func (m *memTasks) ForUser(_ context.Context, userID, taskID string) (dom.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[taskID]
	if !ok || t.UserID != userID {
		return dom.Task{}, perr.ErrNotFound
	}
	return t, nil
}

func (m *memTasks) Complete(_ context.Context, taskID string, r dom.Result) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[taskID]
	if !ok || t.Status != taskstate.Processing {
		return false, nil
	}
	t.Status, t.Progress = taskstate.Succeeded, 100
	if r.ThumbnailURL != "" {
		t.ThumbnailURL = r.ThumbnailURL
	}
	t.ModelURLs, t.TextureURLs = r.ModelURLs, r.TextureURLs
	m.tasks[taskID] = t
	return true, nil
}

func (m *memTasks) Fail(_ context.Context, taskID, reason string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[taskID]
	if !ok || t.Status != taskstate.Processing {
		return false, nil
	}
	t.Status, t.TaskError, t.RefundDue = taskstate.Failed, reason, t.CreditsCharged > 0
	m.tasks[taskID] = t
	return true, nil
}

func (m *memTasks) MarkConfirmed(_ context.Context, taskID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := m.tasks[taskID]
	t.ConfirmDue = false
	m.tasks[taskID] = t
	return nil
}

func (m *memTasks) MarkRefunded(_ context.Context, taskID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := m.tasks[taskID]
	t.RefundDue = false
	m.tasks[taskID] = t
	return nil
}

func (m *memTasks) Progress(_ context.Context, taskID string, progress int, thumb string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := m.tasks[taskID]
	t.Progress = max(t.Progress, progress)
	if thumb != "" {
		t.ThumbnailURL = thumb
	}
	m.tasks[taskID] = t
	return nil
}

func (m *memTasks) Reschedule(_ context.Context, taskID string, attempts int, next time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[taskID]
	if !ok || t.Status != taskstate.Processing {
		return perr.ErrNotFound
	}
	t.PollAttempts, t.NextPollAt = attempts, next
	m.tasks[taskID] = t
	return nil
}

func (m *memTasks) Lease(_ context.Context, _ string, limit int, _ time.Duration) ([]dom.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []dom.Task
	for _, t := range m.tasks {
		due := t.Status == taskstate.Processing || t.ConfirmDue || t.RefundDue
		if due && len(out) < limit {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *memTasks) ListByUser(_ context.Context, userID string, limit, offset int) ([]dom.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var xs []dom.Task
	for _, t := range m.tasks {
		if t.UserID == userID {
			xs = append(xs, t)
		}
	}
	sort.Slice(xs, func(i, j int) bool { return xs[i].CreatedAt.After(xs[j].CreatedAt) })
	if offset >= len(xs) {
		return nil, nil
	}
	return xs[offset:min(len(xs), offset+limit)], nil
}

func (m *memTasks) CountByUser(_ context.Context, userID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.tasks {
		if t.UserID == userID {
			n++
		}
	}
	return n, nil
}

// fakeProvider answers from canned tasks and errors
// With gate set, Task signals entered and waits for gate or its ctx
type fakeProvider struct {
	mu       sync.Mutex
	nextID   string
	createEr error
	tasks    map[string]meshy.Task
	taskErr  map[string]error
	created  []any
	polls    int
	gate     chan struct{}
	entered  chan struct{}
}

func (p *fakeProvider) CreateImageTo3D(_ context.Context, in meshy.ImageTo3DRequest) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.created = append(p.created, in)
	return p.nextID, p.createEr
}

func (p *fakeProvider) CreateTextTo3D(_ context.Context, in meshy.TextTo3DRequest) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.created = append(p.created, in)
	return p.nextID, p.createEr
}

func (p *fakeProvider) Task(ctx context.Context, _ taskstate.Kind, id string) (meshy.Task, error) {
	p.mu.Lock()
	p.polls++
	gate, entered := p.gate, p.entered
	p.mu.Unlock()
	if gate != nil {
		select {
		case entered <- struct{}{}:
		default:
		}
		select {
		case <-gate:
		case <-ctx.Done():
			return meshy.Task{}, ctx.Err()
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.taskErr[id]; err != nil {
		return meshy.Task{}, err
	}
	return p.tasks[id], nil
}

func (p *fakeProvider) pollCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.polls
}

// fakeLedger keeps one balance per user and refunds a task once
// confirmErrs and refundErrs are returned, one per call, before the call goes through
type fakeLedger struct {
	credom.LedgerPort

	mu          sync.Mutex
	balance     map[string]int
	reserved    []credom.Reservation
	confirmed   []credom.UsageDetails
	released    []string
	refunds     map[string]int
	confirmErrs []error
	refundErrs  []error
}

func newFakeLedger(user string, credits int) *fakeLedger {
	return &fakeLedger{balance: map[string]int{user: credits}, refunds: map[string]int{}}
}

func (l *fakeLedger) Balance(_ context.Context, userID string) (credom.Account, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return credom.Account{UserID: userID, Credits: l.balance[userID]}, nil
}

func (l *fakeLedger) Reserve(_ context.Context, userID string, cost int, meta credom.UsageMeta) (credom.Reservation, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.balance[userID] < cost {
		return credom.Reservation{}, perr.InsufficientCreditsf("insufficient credits: %d required", cost)
	}
	l.balance[userID] -= cost
	r := credom.Reservation{ID: "res-" + userID, UserID: userID, Credits: cost, Kind: meta.Kind, Remaining: l.balance[userID]}
	l.reserved = append(l.reserved, r)
	return r, nil
}

func (l *fakeLedger) Confirm(_ context.Context, _ credom.Reservation, d credom.UsageDetails) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.confirmErrs) > 0 {
		err := l.confirmErrs[0]
		l.confirmErrs = l.confirmErrs[1:]
		return err
	}
	l.confirmed = append(l.confirmed, d)
	return nil
}

func (l *fakeLedger) Release(_ context.Context, res credom.Reservation, reason string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balance[res.UserID] += res.Credits
	l.released = append(l.released, reason)
	return nil
}

func (l *fakeLedger) Refund(_ context.Context, req credom.RefundRequest) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.refundErrs) > 0 {
		err := l.refundErrs[0]
		l.refundErrs = l.refundErrs[1:]
		return false, err
	}
	if _, ok := l.refunds[req.TaskID]; ok {
		return false, nil
	}
	l.refunds[req.TaskID] = req.Credits
	l.balance[req.UserID] += req.Credits
	return true, nil
}

func (l *fakeLedger) Refunded(_ context.Context, taskID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.refunds[taskID]
	return ok, nil
}

func (l *fakeLedger) credits(user string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balance[user]
}

type memEvents struct {
	mu  sync.Mutex
	evs []andom.Event
}

func (m *memEvents) Record(_ context.Context, e andom.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.evs = append(m.evs, e)
}

func (m *memEvents) types() []andom.EventType {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]andom.EventType, 0, len(m.evs))
	for _, e := range m.evs {
		out = append(out, e.Type)
	}
	return out
}
