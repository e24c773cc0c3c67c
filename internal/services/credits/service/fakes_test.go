package service

import (
	"context"
	"errors"
	"sync"

	"shapeshift/internal/modkit/repokit"
	perr "shapeshift/internal/platform/errors"
	dom "shapeshift/internal/services/credits/domain"
	"shapeshift/internal/services/credits/repo"

	"github.com/jackc/pgx/v5/pgconn"
)

// fakeDB runs tx bodies inline; repos never touch it directly
type fakeDB struct{}

func (f *fakeDB) Exec(context.Context, string, ...any) (repokit.CommandTag, error) {
	return nil, errors.New("unused")
}
func (f *fakeDB) Query(context.Context, string, ...any) (repokit.Rows, error) {
	return nil, errors.New("unused")
}
func (f *fakeDB) QueryRow(context.Context, string, ...any) repokit.Row { return nil }
func (f *fakeDB) Tx(_ context.Context, fn func(q repokit.Queryer) error) error {
	return fn(f)
}

// memLedger is an in-memory repo.Storage with the same constraints as the schema
type memLedger struct {
	mu       sync.Mutex
	accounts map[string]*dom.Account
	txs      []dom.Transaction
}

func newMem() *memLedger { return &memLedger{accounts: map[string]*dom.Account{}} }

func (m *memLedger) Bind(repokit.Queryer) repo.Storage { return m }

func (m *memLedger) EnsureAccount(_ context.Context, user string, grant int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[user]; !ok {
		m.accounts[user] = &dom.Account{UserID: user, Credits: grant,
			Subscription: dom.Subscription{Type: dom.PlanNone, Status: dom.SubActive}}
	}
	return nil
}

func (m *memLedger) Account(_ context.Context, user string) (dom.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[user]
	if !ok {
		return dom.Account{}, perr.ErrNotFound
	}
	return *a, nil
}

func (m *memLedger) LockAccount(ctx context.Context, user string) (dom.Account, error) {
	return m.Account(ctx, user)
}

func (m *memLedger) Debit(_ context.Context, user string, n int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[user]
	if !ok || a.Credits < n {
		return 0, perr.ErrNotFound
	}
	a.Credits -= n
	return a.Credits, nil
}

func (m *memLedger) Credit(_ context.Context, user string, n int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[user]
	if !ok {
		return 0, perr.ErrNotFound
	}
	a.Credits += n
	return a.Credits, nil
}

func (m *memLedger) SetSubscription(_ context.Context, user string, t dom.SubscriptionType, s dom.SubscriptionStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[user].Subscription = dom.Subscription{Type: t, Status: s}
	return nil
}

func (m *memLedger) InsertTx(_ context.Context, tx dom.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.txs {
		if tx.PaymentRef != "" && t.PaymentRef == tx.PaymentRef {
			return &pgconn.PgError{Code: "23505", ConstraintName: "credit_transactions_payment_ref_key"}
		}
	}
	m.txs = append(m.txs, tx)
	return nil
}

func (m *memLedger) InsertRefund(_ context.Context, tx dom.Transaction) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.txs {
		if t.Type == dom.TxRefund && t.TaskID == tx.TaskID {
			return false, nil
		}
	}
	m.txs = append(m.txs, tx)
	return true, nil
}

func (m *memLedger) HasRefund(_ context.Context, taskID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.txs {
		if t.Type == dom.TxRefund && t.TaskID == taskID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memLedger) find(id string) *dom.Transaction {
	for i := range m.txs {
		if m.txs[i].ID == id {
			return &m.txs[i]
		}
	}
	return nil
}

func (m *memLedger) SettleUsage(_ context.Context, id string, d dom.UsageDetails) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := m.find(id)
	if t == nil || t.Status != dom.TxPending {
		return perr.ErrNotFound
	}
	t.Status, t.TaskID = dom.TxSuccess, d.TaskID
	if d.ImageURL != "" {
		t.ImageURL = d.ImageURL
	}
	return nil
}

func (m *memLedger) FailUsage(_ context.Context, id, reason string) (string, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := m.find(id)
	if t == nil || t.Status != dom.TxPending {
		return "", 0, perr.ErrNotFound
	}
	t.Status = dom.TxFailed
	t.Description += " (" + reason + ")"
	return t.UserID, -t.Credits, nil
}

func (m *memLedger) ListTx(_ context.Context, user string, limit, offset int) ([]dom.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var mine []dom.Transaction
	for i := len(m.txs) - 1; i >= 0; i-- {
		if m.txs[i].UserID == user {
			mine = append(mine, m.txs[i])
		}
	}
	if offset >= len(mine) {
		return nil, nil
	}
	return mine[offset:min(len(mine), offset+limit)], nil
}

func (m *memLedger) CountTx(_ context.Context, user string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.txs {
		if t.UserID == user {
			n++
		}
	}
	return n, nil
}

func (m *memLedger) byType(typ dom.TxType) []dom.Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []dom.Transaction
	for _, t := range m.txs {
		if t.Type == typ {
			out = append(out, t)
		}
	}
	return out
}
